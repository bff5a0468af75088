package metrics

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/smallbiznis/collabhub/internal/marketplace/domain"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestClassifySchedulerJobReason(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{name: "deadline", err: context.DeadlineExceeded, want: SchedulerJobReasonDeadlineExceeded},
		{name: "forbidden", err: domain.ErrForbidden, want: SchedulerJobReasonForbidden},
		{name: "version_conflict", err: fmt.Errorf("update campaign: %w", domain.ErrConcurrentModification), want: SchedulerJobReasonVersionConflict},
		{name: "illegal_transition", err: &domain.IllegalTransitionError{Entity: domain.EntityCampaign, From: "active", To: "active"}, want: SchedulerJobReasonRuleViolation},
		{name: "db_lock_timeout", err: &pgconn.PgError{Code: "55P03"}, want: SchedulerJobReasonDBLockTimeout},
		{name: "serialization_failure", err: &pgconn.PgError{Code: "40001"}, want: SchedulerJobReasonSerializationFailure},
		{name: "unique_violation", err: gorm.ErrDuplicatedKey, want: SchedulerJobReasonUniqueViolation},
		{name: "unknown", err: errors.New("boom"), want: SchedulerJobReasonUnknown},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ClassifySchedulerJobReason(tc.err))
		})
	}
}

func TestIsSchedulerErrorRetryable(t *testing.T) {
	assert.True(t, IsSchedulerErrorRetryable(domain.ErrConcurrentModification))
	assert.True(t, IsSchedulerErrorRetryable(&pgconn.PgError{Code: "40001"}))
	assert.False(t, IsSchedulerErrorRetryable(domain.ErrForbidden))
	assert.False(t, IsSchedulerErrorRetryable(nil))
}

func TestAddBatchProcessed(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := newSchedulerMetrics(registry, Config{ServiceName: "collabhub", Environment: "test"})

	metrics.AddBatchProcessed("close_applications", "campaigns", 3)
	metrics.AddBatchProcessed("close_applications", "campaigns", 0)

	assert.Equal(t, float64(3), testutil.ToFloat64(metrics.batchProcessed.WithLabelValues("close_applications", "campaigns")))
}

func TestSetDrift(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := newSchedulerMetrics(registry, Config{})

	metrics.SetDrift(map[string]int{"campaign.slots_filled": 2, "delivery.on_time": 0})

	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.drift.WithLabelValues("campaign.slots_filled")))
	assert.Equal(t, float64(0), testutil.ToFloat64(metrics.drift.WithLabelValues("delivery.on_time")))
}
