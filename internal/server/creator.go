package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/collabhub/internal/marketplace/domain"
)

type registerCreatorRequest struct {
	DisplayName string `json:"display_name"`
}

// RegisterCreator creates the profile for the calling creator. The profile id
// is the caller's own.
func (s *Server) RegisterCreator(c *gin.Context) {
	var req registerCreatorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.marketplace.RegisterCreator(c.Request.Context(), domain.RegisterCreatorRequest{
		DisplayName: strings.TrimSpace(req.DisplayName),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) GetCreatorProfile(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	item, err := s.marketplace.GetCreatorProfile(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": item})
}
