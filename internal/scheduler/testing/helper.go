// Package testing moves marketplace deadlines so scheduler jobs can be
// exercised without waiting.
package testing

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/collabhub/internal/marketplace/domain"
	"gorm.io/gorm"
)

type TimeAccelerator struct {
	db *gorm.DB
}

func NewTimeAccelerator(db *gorm.DB) *TimeAccelerator {
	return &TimeAccelerator{db: db}
}

// ExpireApplicationWindow moves an active campaign's application deadline
// one minute before now. The row version is left alone so in-flight
// writers are not disturbed.
func (ta *TimeAccelerator) ExpireApplicationWindow(ctx context.Context, campaignID snowflake.ID, now time.Time) error {
	return ta.db.WithContext(ctx).Exec(
		`UPDATE campaigns
		 SET application_deadline = ?
		 WHERE id = ? AND status = ?`,
		now.Add(-time.Minute),
		campaignID,
		domain.CampaignStatusActive,
	).Error
}

// ExpireAllApplicationWindows does the same for every active campaign whose
// window is still open, returning the number of rows moved.
func (ta *TimeAccelerator) ExpireAllApplicationWindows(ctx context.Context, now time.Time) (int64, error) {
	result := ta.db.WithContext(ctx).Exec(
		`UPDATE campaigns
		 SET application_deadline = ?
		 WHERE status = ? AND (application_deadline IS NULL OR application_deadline > ?)`,
		now.Add(-time.Minute),
		domain.CampaignStatusActive,
		now,
	)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}
