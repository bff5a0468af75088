package authorization

const (
	ObjectCampaign       = "campaign"
	ObjectApplication    = "application"
	ObjectDelivery       = "delivery"
	ObjectDispute        = "dispute"
	ObjectCreatorProfile = "creator_profile"
	ObjectAuditLog       = "audit_log"
	ObjectConsistency    = "consistency"
)

const (
	ActionCampaignView              = "campaign.view"
	ActionCampaignCreate            = "campaign.create"
	ActionCampaignSubmitReview      = "campaign.submit_review"
	ActionCampaignActivate          = "campaign.activate"
	ActionCampaignPause             = "campaign.pause"
	ActionCampaignResume            = "campaign.resume"
	ActionCampaignCloseApplications = "campaign.close_applications"
	ActionCampaignComplete          = "campaign.complete"
	ActionCampaignCancel            = "campaign.cancel"
	ActionCampaignReturnToDraft     = "campaign.return_to_draft"

	ActionApplicationView     = "application.view"
	ActionApplicationCreate   = "application.create"
	ActionApplicationAccept   = "application.accept"
	ActionApplicationReject   = "application.reject"
	ActionApplicationWithdraw = "application.withdraw"

	ActionDeliveryView            = "delivery.view"
	ActionDeliverySubmit          = "delivery.submit"
	ActionDeliveryApprove         = "delivery.approve"
	ActionDeliveryRequestRevision = "delivery.request_revision"
	ActionDeliveryContest         = "delivery.contest"

	ActionDisputeView    = "dispute.view"
	ActionDisputeReview  = "dispute.review"
	ActionDisputeResolve = "dispute.resolve"
	ActionDisputeClose   = "dispute.close"

	ActionCreatorProfileView   = "creator_profile.view"
	ActionCreatorProfileCreate = "creator_profile.create"

	ActionAuditLogView = "audit_log.view"

	ActionConsistencyReconcile = "consistency.reconcile"
)

const (
	RoleBrand      = "role:brand"
	RoleCreator    = "role:creator"
	RoleArbitrator = "role:arbitrator"
	RoleSystem     = "role:system"
)

func defaultPolicies() [][]string {
	return [][]string{
		{RoleBrand, ObjectCampaign, ActionCampaignView},
		{RoleBrand, ObjectCampaign, ActionCampaignCreate},
		{RoleBrand, ObjectCampaign, ActionCampaignSubmitReview},
		{RoleBrand, ObjectCampaign, ActionCampaignActivate},
		{RoleBrand, ObjectCampaign, ActionCampaignPause},
		{RoleBrand, ObjectCampaign, ActionCampaignResume},
		{RoleBrand, ObjectCampaign, ActionCampaignCloseApplications},
		{RoleBrand, ObjectCampaign, ActionCampaignComplete},
		{RoleBrand, ObjectCampaign, ActionCampaignCancel},
		{RoleBrand, ObjectCampaign, ActionCampaignReturnToDraft},
		{RoleBrand, ObjectApplication, ActionApplicationView},
		{RoleBrand, ObjectApplication, ActionApplicationAccept},
		{RoleBrand, ObjectApplication, ActionApplicationReject},
		{RoleBrand, ObjectDelivery, ActionDeliveryView},
		{RoleBrand, ObjectDelivery, ActionDeliveryApprove},
		{RoleBrand, ObjectDelivery, ActionDeliveryRequestRevision},
		{RoleBrand, ObjectDelivery, ActionDeliveryContest},
		{RoleBrand, ObjectDispute, ActionDisputeView},
		{RoleBrand, ObjectDispute, ActionDisputeClose},
		{RoleBrand, ObjectCreatorProfile, ActionCreatorProfileView},

		{RoleCreator, ObjectCampaign, ActionCampaignView},
		{RoleCreator, ObjectApplication, ActionApplicationView},
		{RoleCreator, ObjectApplication, ActionApplicationCreate},
		{RoleCreator, ObjectApplication, ActionApplicationWithdraw},
		{RoleCreator, ObjectDelivery, ActionDeliveryView},
		{RoleCreator, ObjectDelivery, ActionDeliverySubmit},
		{RoleCreator, ObjectDispute, ActionDisputeView},
		{RoleCreator, ObjectCreatorProfile, ActionCreatorProfileView},
		{RoleCreator, ObjectCreatorProfile, ActionCreatorProfileCreate},

		{RoleArbitrator, ObjectCampaign, ActionCampaignView},
		{RoleArbitrator, ObjectCampaign, ActionCampaignActivate},
		{RoleArbitrator, ObjectCampaign, ActionCampaignReturnToDraft},
		{RoleArbitrator, ObjectApplication, ActionApplicationView},
		{RoleArbitrator, ObjectDelivery, ActionDeliveryView},
		{RoleArbitrator, ObjectDispute, ActionDisputeView},
		{RoleArbitrator, ObjectDispute, ActionDisputeReview},
		{RoleArbitrator, ObjectDispute, ActionDisputeResolve},
		{RoleArbitrator, ObjectDispute, ActionDisputeClose},
		{RoleArbitrator, ObjectCreatorProfile, ActionCreatorProfileView},
		{RoleArbitrator, ObjectAuditLog, ActionAuditLogView},

		{RoleSystem, ObjectCampaign, ActionCampaignView},
		{RoleSystem, ObjectCampaign, ActionCampaignCloseApplications},
		{RoleSystem, ObjectCampaign, ActionCampaignComplete},
		{RoleSystem, ObjectApplication, ActionApplicationView},
		{RoleSystem, ObjectDelivery, ActionDeliveryView},
		{RoleSystem, ObjectDispute, ActionDisputeView},
		{RoleSystem, ObjectCreatorProfile, ActionCreatorProfileView},
		{RoleSystem, ObjectAuditLog, ActionAuditLogView},
		{RoleSystem, ObjectConsistency, ActionConsistencyReconcile},
	}
}
