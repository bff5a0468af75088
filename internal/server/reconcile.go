package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (s *Server) Reconcile(c *gin.Context) {
	repair, err := parseOptionalBool(c.Query("repair"))
	if err != nil {
		AbortWithError(c, newValidationError("repair", "invalid_repair", "invalid repair"))
		return
	}

	report, err := s.reconciler.Reconcile(c.Request.Context(), repair != nil && *repair)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": gin.H{
			"checked_at": report.CheckedAt,
			"valid":      report.Valid(),
			"drift":      report.DriftByCheck(),
			"drifted":    report.Drifted(),
		},
	})
}
