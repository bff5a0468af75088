package guard

import (
	"testing"
	"time"

	"github.com/smallbiznis/collabhub/internal/marketplace/domain"
	"github.com/stretchr/testify/assert"
)

func TestEnsureCampaignCanCloseApplications(t *testing.T) {
	now := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	past := now.Add(-time.Minute)
	future := now.Add(time.Minute)

	assert.NoError(t, EnsureCampaignCanCloseApplications(domain.CampaignStatusActive, &past, now))
	assert.NoError(t, EnsureCampaignCanCloseApplications(domain.CampaignStatusActive, &now, now))
	assert.ErrorIs(t, EnsureCampaignCanCloseApplications(domain.CampaignStatusPaused, &past, now), ErrCampaignNotActive)
	assert.ErrorIs(t, EnsureCampaignCanCloseApplications(domain.CampaignStatusActive, nil, now), ErrMissingApplicationDeadline)
	assert.ErrorIs(t, EnsureCampaignCanCloseApplications(domain.CampaignStatusActive, &future, now), ErrApplicationWindowStillOpen)
}
