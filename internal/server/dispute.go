package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/collabhub/internal/marketplace/domain"
)

func (s *Server) ListDisputes(c *gin.Context) {
	var query domain.ListRequest
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	query.Status = strings.TrimSpace(query.Status)

	resp, err := s.marketplace.ListDisputes(c.Request.Context(), query)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp.Disputes, "page_info": resp.PageInfo})
}

func (s *Server) GetDispute(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	item, err := s.marketplace.GetDispute(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": item})
}

func (s *Server) ReviewDispute(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	item, err := s.marketplace.ReviewDispute(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": item})
}

type resolveDisputeRequest struct {
	Outcome    string `json:"outcome"`
	Resolution string `json:"resolution"`
}

func (s *Server) ResolveDispute(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req resolveDisputeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	item, err := s.marketplace.ResolveDispute(c.Request.Context(), domain.ResolveDisputeRequest{
		DisputeID:  id,
		Outcome:    domain.DisputeOutcome(strings.ToLower(strings.TrimSpace(req.Outcome))),
		Resolution: strings.TrimSpace(req.Resolution),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": item})
}

func (s *Server) CloseDispute(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req noteRequest
	if !bindOptionalJSON(c, &req) {
		return
	}

	item, err := s.marketplace.CloseDispute(c.Request.Context(), domain.CloseDisputeRequest{
		DisputeID: id,
		Note:      strings.TrimSpace(req.Note),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": item})
}
