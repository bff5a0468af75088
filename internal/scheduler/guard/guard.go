package guard

import (
	"errors"
	"time"

	"github.com/smallbiznis/collabhub/internal/marketplace/domain"
)

var (
	ErrCampaignNotActive          = errors.New("campaign_not_active")
	ErrMissingApplicationDeadline = errors.New("campaign_missing_application_deadline")
	ErrApplicationWindowStillOpen = errors.New("campaign_application_window_open")
)

// EnsureCampaignCanCloseApplications re-checks a claimed campaign before the
// scheduler closes its application window.
func EnsureCampaignCanCloseApplications(status domain.CampaignStatus, applicationDeadline *time.Time, now time.Time) error {
	if status != domain.CampaignStatusActive {
		return ErrCampaignNotActive
	}
	if applicationDeadline == nil {
		return ErrMissingApplicationDeadline
	}
	if now.Before(*applicationDeadline) {
		return ErrApplicationWindowStillOpen
	}
	return nil
}
