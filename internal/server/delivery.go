package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/collabhub/internal/marketplace/domain"
)

func (s *Server) ListDeliveries(c *gin.Context) {
	var query domain.ListRequest
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	query.Status = strings.TrimSpace(query.Status)

	resp, err := s.marketplace.ListDeliveries(c.Request.Context(), query)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp.Deliveries, "page_info": resp.PageInfo})
}

func (s *Server) GetDelivery(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	item, err := s.marketplace.GetDelivery(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": item})
}

type submitDeliveryRequest struct {
	ProofURLs   []string `json:"proof_urls"`
	ContentURLs []string `json:"content_urls"`
}

func (s *Server) SubmitDelivery(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req submitDeliveryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	item, err := s.marketplace.SubmitDelivery(c.Request.Context(), domain.SubmitDeliveryRequest{
		DeliveryID:  id,
		ProofURLs:   trimAll(req.ProofURLs),
		ContentURLs: trimAll(req.ContentURLs),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": item})
}

func (s *Server) ApproveDelivery(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	item, err := s.marketplace.ApproveDelivery(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": item})
}

type noteRequest struct {
	Note string `json:"note"`
}

func (s *Server) RequestRevision(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req noteRequest
	if !bindOptionalJSON(c, &req) {
		return
	}

	item, err := s.marketplace.RequestRevision(c.Request.Context(), domain.RequestRevisionRequest{
		DeliveryID: id,
		Note:       strings.TrimSpace(req.Note),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": item})
}

type contestDeliveryRequest struct {
	Reason string `json:"reason"`
}

// ContestDelivery opens a dispute and returns it with the delivery.
func (s *Server) ContestDelivery(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req contestDeliveryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.marketplace.ContestDelivery(c.Request.Context(), domain.ContestDeliveryRequest{
		DeliveryID: id,
		Reason:     strings.TrimSpace(req.Reason),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func trimAll(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
