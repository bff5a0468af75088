package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/smallbiznis/collabhub/internal/actorcontext"
	auditdomain "github.com/smallbiznis/collabhub/internal/audit/domain"
	"github.com/smallbiznis/collabhub/internal/config"
	"github.com/smallbiznis/collabhub/internal/jobs"
	"github.com/smallbiznis/collabhub/internal/marketplace/domain"
	"github.com/smallbiznis/collabhub/internal/marketplace/lifecycle"
	"github.com/smallbiznis/collabhub/internal/marketplace/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcceptFillsSlotAndOpensDelivery(t *testing.T) {
	h := newHarness(t, config.DefaultLifecyclePolicy())
	campaign := h.activeCampaign(1)
	h.creator(creatorID)
	app := h.apply(campaign.ID, creatorID)

	res, err := h.svc.AcceptApplication(asBrand(), domain.AcceptApplicationRequest{ApplicationID: app.ID})
	require.NoError(t, err)

	assert.Equal(t, domain.ApplicationStatusAccepted, res.Application.Status)
	assert.Equal(t, 1, res.Campaign.SlotsFilled)
	require.NotNil(t, res.Delivery)
	assert.Equal(t, domain.DeliveryStatusPending, res.Delivery.Status)
	assert.Equal(t, app.ID, res.Delivery.ApplicationID)
	assert.Equal(t, campaign.ID, res.Delivery.CampaignID)
	require.NotNil(t, res.Delivery.Deadline)
	assert.True(t, res.Delivery.Deadline.Equal(*campaign.Deadline))

	stored := h.reloadCampaign(campaign.ID)
	assert.Equal(t, 1, stored.SlotsFilled)
	assert.Equal(t, 1, stored.TotalApplications)
	assert.Equal(t, domain.CampaignStatusApplicationsClosed, stored.Status, "full campaign closes to new applications")
	assert.Equal(t, domain.DeliveryStatusPending, h.reloadDelivery(res.Delivery.ID).Status)
}

func TestAcceptOverCapacityIsRejectedWithoutWrites(t *testing.T) {
	h := newHarness(t, config.DefaultLifecyclePolicy())
	campaign := h.activeCampaign(1)
	h.creator(creatorID)
	h.creator(creator2ID)
	first := h.apply(campaign.ID, creatorID)
	second := h.apply(campaign.ID, creator2ID)

	_, err := h.svc.AcceptApplication(asBrand(), domain.AcceptApplicationRequest{ApplicationID: first.ID})
	require.NoError(t, err)
	before := h.reloadCampaign(campaign.ID)

	_, err = h.svc.AcceptApplication(asBrand(), domain.AcceptApplicationRequest{ApplicationID: second.ID})
	require.ErrorIs(t, err, domain.ErrRuleViolation)
	var violation *domain.RuleViolationError
	require.True(t, errors.As(err, &violation))
	assert.True(t, violation.HasRule(lifecycle.RuleCampaignCapacity))

	after := h.reloadCampaign(campaign.ID)
	assert.Equal(t, before.SlotsFilled, after.SlotsFilled)
	assert.Equal(t, before.Version, after.Version)
	assert.Equal(t, domain.ApplicationStatusPending, h.reloadApplication(second.ID).Status)
}

func TestSubmitWithoutProofIsRejected(t *testing.T) {
	h := newHarness(t, config.DefaultLifecyclePolicy())
	delivery := h.acceptedDelivery()

	_, err := h.svc.SubmitDelivery(asCreator(), domain.SubmitDeliveryRequest{DeliveryID: delivery.ID, ProofURLs: []string{}})
	var violation *domain.RuleViolationError
	require.True(t, errors.As(err, &violation))
	assert.True(t, violation.HasRule(lifecycle.RuleDeliveryProofRequired))

	_, err = h.svc.SubmitDelivery(asCreator(), domain.SubmitDeliveryRequest{DeliveryID: delivery.ID, ProofURLs: []string{"  "}})
	require.ErrorIs(t, err, domain.ErrRuleViolation)

	stored := h.reloadDelivery(delivery.ID)
	assert.Equal(t, domain.DeliveryStatusPending, stored.Status)
	assert.Nil(t, stored.SubmittedAt)
}

func TestContestOpensExactlyOneDispute(t *testing.T) {
	h := newHarness(t, config.DefaultLifecyclePolicy())
	delivery := h.submittedDelivery()

	res, err := h.svc.ContestDelivery(asBrand(), domain.ContestDeliveryRequest{DeliveryID: delivery.ID, Reason: "wrong product shown"})
	require.NoError(t, err)

	assert.Equal(t, domain.DeliveryStatusInDispute, res.Delivery.Status)
	assert.Equal(t, domain.DeliveryStatusInDispute, h.reloadDelivery(delivery.ID).Status)

	disputes := h.disputesFor(delivery.ID)
	require.Len(t, disputes, 1)
	d := disputes[0]
	assert.Equal(t, res.Dispute.ID, d.ID)
	assert.Equal(t, domain.DisputeStatusOpen, d.Status)
	assert.Equal(t, delivery.ID, d.DeliveryID)
	assert.Equal(t, delivery.CampaignID, d.CampaignID)
	assert.Equal(t, delivery.BrandID, d.BrandID)
	assert.Equal(t, delivery.CreatorID, d.CreatorID)
	assert.EqualValues(t, brandID, d.RaisedBy)

	_, err = h.svc.ContestDelivery(asBrand(), domain.ContestDeliveryRequest{DeliveryID: delivery.ID, Reason: "again"})
	require.ErrorIs(t, err, domain.ErrIllegalTransition)
	assert.Len(t, h.disputesFor(delivery.ID), 1)
}

func TestContestRequiresReason(t *testing.T) {
	h := newHarness(t, config.DefaultLifecyclePolicy())
	delivery := h.submittedDelivery()

	_, err := h.svc.ContestDelivery(asBrand(), domain.ContestDeliveryRequest{DeliveryID: delivery.ID, Reason: " "})
	var violation *domain.RuleViolationError
	require.True(t, errors.As(err, &violation))
	assert.True(t, violation.HasRule(lifecycle.RuleContestReasonRequired))
	assert.Empty(t, h.disputesFor(delivery.ID))
	assert.Equal(t, domain.DeliveryStatusSubmitted, h.reloadDelivery(delivery.ID).Status)
}

func TestHappyPathCompletesApplicationAndCreditsCreator(t *testing.T) {
	h := newHarness(t, config.DefaultLifecyclePolicy())
	delivery := h.submittedDelivery()
	assert.Equal(t, domain.DeliveryStatusSubmitted, delivery.Status)
	require.NotNil(t, delivery.OnTime)
	assert.True(t, *delivery.OnTime)

	approved, err := h.svc.ApproveDelivery(asBrand(), delivery.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DeliveryStatusApproved, approved.Status)
	require.NotNil(t, approved.ApprovedAt)

	assert.Equal(t, domain.ApplicationStatusCompleted, h.reloadApplication(delivery.ApplicationID).Status)
	assert.Equal(t, 1, h.reloadCreator(creatorID).CompletedCampaigns)

	report, err := h.svc.Reconcile(asSystem(), false)
	require.NoError(t, err)
	assert.True(t, report.Valid(), "%+v", report.Drifted())
}

func TestLateSubmissionIsFlagged(t *testing.T) {
	h := newHarness(t, config.DefaultLifecyclePolicy())
	delivery := h.acceptedDelivery()
	h.clock.Set(delivery.Deadline.AddDate(0, 0, 1))

	submitted, err := h.svc.SubmitDelivery(asCreator(), domain.SubmitDeliveryRequest{
		DeliveryID: delivery.ID,
		ProofURLs:  []string{"https://cdn.example.com/post/1"},
	})
	require.NoError(t, err)
	require.NotNil(t, submitted.OnTime)
	assert.False(t, *submitted.OnTime)
}

func TestRepeatedOperationsHitTheTable(t *testing.T) {
	h := newHarness(t, config.DefaultLifecyclePolicy())
	campaign := h.activeCampaign(2)

	_, err := h.svc.ActivateCampaign(asBrand(), campaign.ID)
	require.ErrorIs(t, err, domain.ErrIllegalTransition)

	h.creator(creatorID)
	app := h.apply(campaign.ID, creatorID)
	_, err = h.svc.AcceptApplication(asBrand(), domain.AcceptApplicationRequest{ApplicationID: app.ID})
	require.NoError(t, err)
	_, err = h.svc.AcceptApplication(asBrand(), domain.AcceptApplicationRequest{ApplicationID: app.ID})
	var illegal *domain.IllegalTransitionError
	require.True(t, errors.As(err, &illegal))
	assert.Equal(t, string(domain.ApplicationStatusAccepted), illegal.From)

	assert.Equal(t, 1, h.reloadCampaign(campaign.ID).SlotsFilled)
}

func TestResumeOnlyFromPaused(t *testing.T) {
	h := newHarness(t, config.DefaultLifecyclePolicy())
	campaign := h.activeCampaign(1)

	_, err := h.svc.ResumeCampaign(asBrand(), campaign.ID)
	require.ErrorIs(t, err, domain.ErrIllegalTransition)

	paused, err := h.svc.PauseCampaign(asBrand(), campaign.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.CampaignStatusPaused, paused.Status)

	resumed, err := h.svc.ResumeCampaign(asBrand(), campaign.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.CampaignStatusActive, resumed.Status)
}

func TestActivationRules(t *testing.T) {
	h := newHarness(t, config.DefaultLifecyclePolicy())
	past := testNow.Add(-24 * time.Hour)
	campaign, err := h.svc.CreateCampaign(asBrand(), domain.CreateCampaignRequest{Title: "Empty", SlotsTotal: 0, Deadline: &past})
	require.NoError(t, err)
	assert.Equal(t, "empty", campaign.Slug)

	_, err = h.svc.ActivateCampaign(asBrand(), campaign.ID)
	var violation *domain.RuleViolationError
	require.True(t, errors.As(err, &violation))
	assert.True(t, violation.HasRule(lifecycle.RuleCampaignSlotsMin))
	assert.True(t, violation.HasRule(lifecycle.RuleCampaignDeadlinePast))
	assert.Equal(t, domain.CampaignStatusDraft, h.reloadCampaign(campaign.ID).Status)
}

func TestCreateCampaignValidation(t *testing.T) {
	h := newHarness(t, config.DefaultLifecyclePolicy())

	_, err := h.svc.CreateCampaign(asBrand(), domain.CreateCampaignRequest{Title: "  "})
	assert.ErrorIs(t, err, domain.ErrInvalidTitle)
	_, err = h.svc.CreateCampaign(asBrand(), domain.CreateCampaignRequest{Title: "x", SlotsTotal: -1})
	assert.ErrorIs(t, err, domain.ErrInvalidSlots)
	_, err = h.svc.CreateCampaign(asBrand(), domain.CreateCampaignRequest{Title: "x", Budget: -1})
	assert.ErrorIs(t, err, domain.ErrInvalidBudget)

	deadline := testNow.AddDate(0, 0, 5)
	late := testNow.AddDate(0, 0, 6)
	_, err = h.svc.CreateCampaign(asBrand(), domain.CreateCampaignRequest{Title: "x", Deadline: &deadline, ApplicationDeadline: &late})
	assert.ErrorIs(t, err, domain.ErrInvalidDeadline)

	_, err = h.svc.CreateCampaign(asCreator(), domain.CreateCampaignRequest{Title: "x"})
	assert.ErrorIs(t, err, domain.ErrForbidden)
	_, err = h.svc.CreateCampaign(context.Background(), domain.CreateCampaignRequest{Title: "x"})
	assert.ErrorIs(t, err, domain.ErrMissingActor)
}

func TestApplyRequiresCreatorProfileAndRejectsDuplicates(t *testing.T) {
	h := newHarness(t, config.DefaultLifecyclePolicy())
	campaign := h.activeCampaign(2)

	_, err := h.svc.ApplyToCampaign(asCreator(), domain.ApplyRequest{CampaignID: campaign.ID, ProposedRate: 10})
	require.ErrorIs(t, err, domain.ErrNotFound)

	h.creator(creatorID)
	h.apply(campaign.ID, creatorID)
	_, err = h.svc.ApplyToCampaign(asCreator(), domain.ApplyRequest{CampaignID: campaign.ID, ProposedRate: 10})
	require.ErrorIs(t, err, domain.ErrDuplicateApplication)
	assert.Equal(t, 1, h.reloadCampaign(campaign.ID).TotalApplications)

	_, err = h.svc.RegisterCreator(asCreator(), domain.RegisterCreatorRequest{DisplayName: "again"})
	require.ErrorIs(t, err, domain.ErrDuplicateCreator)
}

func TestApplyRejectsClosedCampaignAndNegativeRate(t *testing.T) {
	h := newHarness(t, config.DefaultLifecyclePolicy())
	campaign := h.activeCampaign(2)
	h.creator(creatorID)
	_, err := h.svc.PauseCampaign(asBrand(), campaign.ID)
	require.NoError(t, err)

	_, err = h.svc.ApplyToCampaign(asCreator(), domain.ApplyRequest{CampaignID: campaign.ID, ProposedRate: -5})
	var violation *domain.RuleViolationError
	require.True(t, errors.As(err, &violation))
	assert.Equal(t, domain.EntityApplication, violation.Entity)
	assert.True(t, violation.HasRule(lifecycle.RuleCampaignStatus))
	assert.True(t, violation.HasRule(lifecycle.RuleApplicationProposedRateMin))
	assert.Equal(t, 0, h.reloadCampaign(campaign.ID).TotalApplications)
}

func TestWithdrawAcceptedReleasesSlot(t *testing.T) {
	h := newHarness(t, config.DefaultLifecyclePolicy())
	delivery := h.acceptedDelivery()

	app, err := h.svc.WithdrawApplication(asCreator(), delivery.ApplicationID)
	require.NoError(t, err)
	assert.Equal(t, domain.ApplicationStatusWithdrawn, app.Status)
	require.NotNil(t, app.WithdrawnAt)

	assert.Equal(t, 0, h.reloadCampaign(delivery.CampaignID).SlotsFilled)
	assert.Equal(t, domain.DeliveryStatusClosed, h.reloadDelivery(delivery.ID).Status)

	report, err := h.svc.Reconcile(asSystem(), false)
	require.NoError(t, err)
	assert.True(t, report.Valid(), "%+v", report.Drifted())
}

func TestWithdrawReopensCampaignClosedAtCapacity(t *testing.T) {
	h := newHarness(t, config.DefaultLifecyclePolicy())
	campaign := h.activeCampaign(1)
	h.creator(creatorID)
	h.creator(creator2ID)
	app := h.apply(campaign.ID, creatorID)
	_, err := h.svc.AcceptApplication(asBrand(), domain.AcceptApplicationRequest{ApplicationID: app.ID})
	require.NoError(t, err)

	closed := h.reloadCampaign(campaign.ID)
	require.Equal(t, domain.CampaignStatusApplicationsClosed, closed.Status)
	assert.Equal(t, domain.CampaignClosedCapacityReached, closed.ClosedReason)

	_, err = h.svc.WithdrawApplication(asCreator(), app.ID)
	require.NoError(t, err)

	reopened := h.reloadCampaign(campaign.ID)
	assert.Equal(t, domain.CampaignStatusActive, reopened.Status)
	assert.Empty(t, reopened.ClosedReason)
	assert.Equal(t, 0, reopened.SlotsFilled)

	second := h.apply(campaign.ID, creator2ID)
	assert.Equal(t, domain.ApplicationStatusPending, second.Status)

	report, err := h.svc.Reconcile(asSystem(), false)
	require.NoError(t, err)
	assert.True(t, report.Valid(), "%+v", report.Drifted())
}

func TestWithdrawLeavesManuallyClosedCampaignClosed(t *testing.T) {
	h := newHarness(t, config.DefaultLifecyclePolicy())
	delivery := h.acceptedDelivery()
	_, err := h.svc.CloseApplications(asBrand(), delivery.CampaignID)
	require.NoError(t, err)

	_, err = h.svc.WithdrawApplication(asCreator(), delivery.ApplicationID)
	require.NoError(t, err)

	stored := h.reloadCampaign(delivery.CampaignID)
	assert.Equal(t, domain.CampaignStatusApplicationsClosed, stored.Status)
	assert.Equal(t, 0, stored.SlotsFilled)
}

func TestWithdrawKeepsCampaignClosedWithoutAutoClosePolicy(t *testing.T) {
	policy := config.DefaultLifecyclePolicy()
	h := newHarness(t, policy)
	campaign := h.activeCampaign(1)
	h.creator(creatorID)
	app := h.apply(campaign.ID, creatorID)
	_, err := h.svc.AcceptApplication(asBrand(), domain.AcceptApplicationRequest{ApplicationID: app.ID})
	require.NoError(t, err)

	policy.AutoCloseWhenFull = false
	h.policy = config.NewStaticPolicyHolder(policy)
	h.svc = h.service(repository.Provide())
	_, err = h.svc.WithdrawApplication(asCreator(), app.ID)
	require.NoError(t, err)

	assert.Equal(t, domain.CampaignStatusApplicationsClosed, h.reloadCampaign(campaign.ID).Status)
}

func TestWithdrawAfterSubmissionIsRejected(t *testing.T) {
	h := newHarness(t, config.DefaultLifecyclePolicy())
	delivery := h.submittedDelivery()

	_, err := h.svc.WithdrawApplication(asCreator(), delivery.ApplicationID)
	var violation *domain.RuleViolationError
	require.True(t, errors.As(err, &violation))
	assert.True(t, violation.HasRule(lifecycle.RuleDeliveryStarted))
	assert.Equal(t, 1, h.reloadCampaign(delivery.CampaignID).SlotsFilled)
}

func TestRequestRevisionReturnsDeliveryToPending(t *testing.T) {
	h := newHarness(t, config.DefaultLifecyclePolicy())
	delivery := h.submittedDelivery()

	revised, err := h.svc.RequestRevision(asBrand(), domain.RequestRevisionRequest{DeliveryID: delivery.ID, Note: "add captions"})
	require.NoError(t, err)
	assert.Equal(t, domain.DeliveryStatusPending, revised.Status)
	assert.Equal(t, "add captions", h.reloadDelivery(delivery.ID).RevisionNote)

	resubmitted, err := h.svc.SubmitDelivery(asCreator(), domain.SubmitDeliveryRequest{DeliveryID: delivery.ID})
	require.NoError(t, err, "earlier proof still satisfies the rule")
	assert.Equal(t, domain.DeliveryStatusSubmitted, resubmitted.Status)
}

func TestResolveInCreatorFavor(t *testing.T) {
	h := newHarness(t, config.DefaultLifecyclePolicy())
	delivery := h.submittedDelivery()
	res, err := h.svc.ContestDelivery(asBrand(), domain.ContestDeliveryRequest{DeliveryID: delivery.ID, Reason: "late"})
	require.NoError(t, err)

	reviewed, err := h.svc.ReviewDispute(asArbitrator(), res.Dispute.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DisputeStatusUnderReview, reviewed.Status)

	_, err = h.svc.ResolveDispute(asArbitrator(), domain.ResolveDisputeRequest{DisputeID: res.Dispute.ID, Outcome: domain.DisputeOutcomeCreatorFavor})
	var violation *domain.RuleViolationError
	require.True(t, errors.As(err, &violation))
	assert.True(t, violation.HasRule(lifecycle.RuleDisputeResolutionRequired))

	resolved, err := h.svc.ResolveDispute(asArbitrator(), domain.ResolveDisputeRequest{
		DisputeID:  res.Dispute.ID,
		Outcome:    domain.DisputeOutcomeCreatorFavor,
		Resolution: "posted within the agreed window",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.DisputeStatusResolvedCreatorFavor, resolved.Status)
	require.NotNil(t, resolved.ResolvedBy)
	assert.EqualValues(t, arbitratorID, *resolved.ResolvedBy)

	assert.Equal(t, domain.DeliveryStatusApproved, h.reloadDelivery(delivery.ID).Status)
	assert.Equal(t, domain.ApplicationStatusCompleted, h.reloadApplication(delivery.ApplicationID).Status)
	assert.Equal(t, 1, h.reloadCreator(creatorID).CompletedCampaigns)

	closed, err := h.svc.CloseDispute(asArbitrator(), domain.CloseDisputeRequest{DisputeID: res.Dispute.ID})
	require.NoError(t, err)
	assert.Equal(t, domain.DisputeStatusClosed, closed.Status)
	assert.Equal(t, "posted within the agreed window", closed.Resolution)
	assert.Equal(t, domain.DeliveryStatusApproved, h.reloadDelivery(delivery.ID).Status)
}

func TestResolveInBrandFavorClosesDelivery(t *testing.T) {
	h := newHarness(t, config.DefaultLifecyclePolicy())
	delivery := h.submittedDelivery()
	res, err := h.svc.ContestDelivery(asBrand(), domain.ContestDeliveryRequest{DeliveryID: delivery.ID, Reason: "off brief"})
	require.NoError(t, err)

	_, err = h.svc.ResolveDispute(asArbitrator(), domain.ResolveDisputeRequest{DisputeID: res.Dispute.ID, Outcome: "split"})
	require.ErrorIs(t, err, domain.ErrInvalidOutcome)

	resolved, err := h.svc.ResolveDispute(asArbitrator(), domain.ResolveDisputeRequest{
		DisputeID:  res.Dispute.ID,
		Outcome:    domain.DisputeOutcomeBrandFavor,
		Resolution: "content did not match the brief",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.DisputeStatusResolvedBrandFavor, resolved.Status)
	assert.Equal(t, domain.DeliveryStatusClosed, h.reloadDelivery(delivery.ID).Status)
	assert.Equal(t, 0, h.reloadCreator(creatorID).CompletedCampaigns)
}

func TestCloseWithoutRulingResolvesDelivery(t *testing.T) {
	h := newHarness(t, config.DefaultLifecyclePolicy())
	delivery := h.submittedDelivery()
	res, err := h.svc.ContestDelivery(asBrand(), domain.ContestDeliveryRequest{DeliveryID: delivery.ID, Reason: "typo"})
	require.NoError(t, err)

	closed, err := h.svc.CloseDispute(asBrand(), domain.CloseDisputeRequest{DisputeID: res.Dispute.ID, Note: "fixed by creator"})
	require.NoError(t, err)
	assert.Equal(t, domain.DisputeStatusClosed, closed.Status)
	assert.Equal(t, domain.DeliveryStatusResolved, h.reloadDelivery(delivery.ID).Status)

	approved, err := h.svc.ApproveDelivery(asBrand(), delivery.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DeliveryStatusApproved, approved.Status)
	assert.Equal(t, 1, h.reloadCreator(creatorID).CompletedCampaigns)
}

func TestApproveInDisputeClosesOpenDispute(t *testing.T) {
	h := newHarness(t, config.DefaultLifecyclePolicy())
	delivery := h.submittedDelivery()
	res, err := h.svc.ContestDelivery(asBrand(), domain.ContestDeliveryRequest{DeliveryID: delivery.ID, Reason: "unsure"})
	require.NoError(t, err)

	_, err = h.svc.ApproveDelivery(asBrand(), delivery.ID)
	require.NoError(t, err)

	disputes := h.disputesFor(delivery.ID)
	require.Len(t, disputes, 1)
	assert.Equal(t, res.Dispute.ID, disputes[0].ID)
	assert.Equal(t, domain.DisputeStatusClosed, disputes[0].Status)
}

func TestReopenApprovedDoesNotDoubleCount(t *testing.T) {
	policy := config.DefaultLifecyclePolicy()
	policy.ReopenApproved = true
	h := newHarness(t, policy)
	delivery := h.submittedDelivery()
	_, err := h.svc.ApproveDelivery(asBrand(), delivery.ID)
	require.NoError(t, err)
	require.Equal(t, 1, h.reloadCreator(creatorID).CompletedCampaigns)

	res, err := h.svc.ContestDelivery(asBrand(), domain.ContestDeliveryRequest{DeliveryID: delivery.ID, Reason: "post was removed"})
	require.NoError(t, err)
	assert.Equal(t, domain.DeliveryStatusInDispute, res.Delivery.Status)

	_, err = h.svc.ResolveDispute(asArbitrator(), domain.ResolveDisputeRequest{
		DisputeID:  res.Dispute.ID,
		Outcome:    domain.DisputeOutcomeCreatorFavor,
		Resolution: "post restored",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.DeliveryStatusApproved, h.reloadDelivery(delivery.ID).Status)
	assert.Equal(t, 1, h.reloadCreator(creatorID).CompletedCampaigns)
}

func TestApprovedDeliveryCannotBeReopenedByDefault(t *testing.T) {
	h := newHarness(t, config.DefaultLifecyclePolicy())
	delivery := h.submittedDelivery()
	_, err := h.svc.ApproveDelivery(asBrand(), delivery.ID)
	require.NoError(t, err)

	_, err = h.svc.ContestDelivery(asBrand(), domain.ContestDeliveryRequest{DeliveryID: delivery.ID, Reason: "changed my mind"})
	require.ErrorIs(t, err, domain.ErrIllegalTransition)
	assert.Empty(t, h.disputesFor(delivery.ID))
}

func TestOwnershipIsEnforced(t *testing.T) {
	h := newHarness(t, config.DefaultLifecyclePolicy())
	delivery := h.submittedDelivery()

	other := as(actorcontext.ProfileBrand, otherBrandID)
	_, err := h.svc.ApproveDelivery(other, delivery.ID)
	require.ErrorIs(t, err, domain.ErrForbidden)
	_, err = h.svc.PauseCampaign(other, delivery.CampaignID)
	require.ErrorIs(t, err, domain.ErrForbidden)

	otherCreator := as(actorcontext.ProfileCreator, creator2ID)
	_, err = h.svc.WithdrawApplication(otherCreator, delivery.ApplicationID)
	require.ErrorIs(t, err, domain.ErrForbidden)
	_, err = h.svc.GetDelivery(otherCreator, delivery.ID)
	require.ErrorIs(t, err, domain.ErrForbidden)

	_, err = h.svc.ApproveDelivery(asCreator(), delivery.ID)
	require.ErrorIs(t, err, domain.ErrForbidden)
	assert.Equal(t, domain.DeliveryStatusSubmitted, h.reloadDelivery(delivery.ID).Status)
}

func TestCommittedWritesAreAuditedAndDispatched(t *testing.T) {
	h := newHarness(t, config.DefaultLifecyclePolicy())
	delivery := h.acceptedDelivery()

	logs, err := h.audit.List(asSystem(), auditdomain.ListAuditLogRequest{
		TargetType: string(domain.EntityApplication),
		TargetID:   delivery.ApplicationID.String(),
	})
	require.NoError(t, err)
	require.Len(t, logs.AuditLogs, 2)
	assert.Equal(t, auditdomain.ActionTransition, logs.AuditLogs[0].Action)
	assert.Equal(t, "pending", logs.AuditLogs[0].FromStatus)
	assert.Equal(t, "accepted", logs.AuditLogs[0].ToStatus)
	assert.Equal(t, "brand", logs.AuditLogs[0].ActorType)
	assert.Equal(t, auditdomain.ActionCreate, logs.AuditLogs[1].Action)

	assert.Contains(t, h.jobs.calls, jobs.JobNotificationSend)
	assert.Contains(t, h.jobs.calls, jobs.JobAnalyticsCompute)
	assert.Zero(t, len(h.jobs.calls)%2, "every change dispatches both jobs")
}
