package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/collabhub/internal/marketplace/domain"
)

type applyRequest struct {
	ProposedRate int64  `json:"proposed_rate"`
	Pitch        string `json:"pitch"`
}

func (s *Server) ApplyToCampaign(c *gin.Context) {
	campaignID, ok := pathID(c)
	if !ok {
		return
	}
	var req applyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.marketplace.ApplyToCampaign(c.Request.Context(), domain.ApplyRequest{
		CampaignID:   campaignID,
		ProposedRate: req.ProposedRate,
		Pitch:        strings.TrimSpace(req.Pitch),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) ListApplications(c *gin.Context) {
	var query struct {
		domain.ListRequest
		CampaignID string `form:"campaign_id"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if raw := strings.TrimSpace(query.CampaignID); raw != "" {
		id, err := parseSnowflakeID(raw)
		if err != nil {
			AbortWithError(c, newValidationError("campaign_id", "invalid_campaign_id", "invalid campaign_id"))
			return
		}
		query.ListRequest.CampaignID = id
	}
	s.listApplications(c, query.ListRequest)
}

func (s *Server) ListCampaignApplications(c *gin.Context) {
	campaignID, ok := pathID(c)
	if !ok {
		return
	}
	var query domain.ListRequest
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	query.CampaignID = campaignID
	s.listApplications(c, query)
}

func (s *Server) listApplications(c *gin.Context, req domain.ListRequest) {
	req.Status = strings.TrimSpace(req.Status)
	resp, err := s.marketplace.ListApplications(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp.Applications, "page_info": resp.PageInfo})
}

func (s *Server) GetApplication(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	item, err := s.marketplace.GetApplication(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": item})
}

type acceptApplicationRequest struct {
	AgreedRate *int64 `json:"agreed_rate"`
}

// AcceptApplication returns the whole write set: the accepted application,
// the campaign with its new slot count and the delivery opened for it.
func (s *Server) AcceptApplication(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req acceptApplicationRequest
	if !bindOptionalJSON(c, &req) {
		return
	}

	resp, err := s.marketplace.AcceptApplication(c.Request.Context(), domain.AcceptApplicationRequest{
		ApplicationID: id,
		AgreedRate:    req.AgreedRate,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) RejectApplication(c *gin.Context) {
	s.transitionApplication(c, s.marketplace.RejectApplication)
}

func (s *Server) WithdrawApplication(c *gin.Context) {
	s.transitionApplication(c, s.marketplace.WithdrawApplication)
}

func (s *Server) transitionApplication(c *gin.Context, op func(context.Context, snowflake.ID) (*domain.Application, error)) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	item, err := op(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": item})
}
