package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/collabhub/internal/marketplace/domain"
)

type createCampaignRequest struct {
	Title               string     `json:"title"`
	Description         string     `json:"description"`
	SlotsTotal          int        `json:"slots_total"`
	Budget              int64      `json:"budget"`
	Deadline            *time.Time `json:"deadline"`
	ApplicationDeadline *time.Time `json:"application_deadline"`
}

func (s *Server) CreateCampaign(c *gin.Context) {
	var req createCampaignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.marketplace.CreateCampaign(c.Request.Context(), domain.CreateCampaignRequest{
		Title:               strings.TrimSpace(req.Title),
		Description:         strings.TrimSpace(req.Description),
		SlotsTotal:          req.SlotsTotal,
		Budget:              req.Budget,
		Deadline:            req.Deadline,
		ApplicationDeadline: req.ApplicationDeadline,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) ListCampaigns(c *gin.Context) {
	var query domain.ListRequest
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	query.Status = strings.TrimSpace(query.Status)

	resp, err := s.marketplace.ListCampaigns(c.Request.Context(), query)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp.Campaigns, "page_info": resp.PageInfo})
}

func (s *Server) GetCampaign(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	item, err := s.marketplace.GetCampaign(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": item})
}

type transitionCampaignRequest struct {
	Status string `json:"status"`
}

// TransitionCampaign moves a campaign to any target status the table allows
// from its current one.
func (s *Server) TransitionCampaign(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req transitionCampaignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	target := domain.CampaignStatus(strings.TrimSpace(req.Status))
	if target == "" {
		AbortWithError(c, newValidationError("status", "required", "status is required"))
		return
	}

	item, err := s.marketplace.TransitionCampaign(c.Request.Context(), id, target)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": item})
}

func (s *Server) SubmitCampaignForReview(c *gin.Context) {
	s.transitionCampaign(c, s.marketplace.SubmitCampaignForReview)
}

func (s *Server) ActivateCampaign(c *gin.Context) {
	s.transitionCampaign(c, s.marketplace.ActivateCampaign)
}

func (s *Server) PauseCampaign(c *gin.Context) {
	s.transitionCampaign(c, s.marketplace.PauseCampaign)
}

func (s *Server) ResumeCampaign(c *gin.Context) {
	s.transitionCampaign(c, s.marketplace.ResumeCampaign)
}

func (s *Server) CloseApplications(c *gin.Context) {
	s.transitionCampaign(c, s.marketplace.CloseApplications)
}

func (s *Server) CompleteCampaign(c *gin.Context) {
	s.transitionCampaign(c, s.marketplace.CompleteCampaign)
}

func (s *Server) CancelCampaign(c *gin.Context) {
	s.transitionCampaign(c, s.marketplace.CancelCampaign)
}

func (s *Server) transitionCampaign(c *gin.Context, op func(context.Context, snowflake.ID) (*domain.Campaign, error)) {
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
