package server

import (
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/collabhub/internal/actorcontext"
	"github.com/smallbiznis/collabhub/internal/observability/logger"
	"go.uber.org/zap"
)

const (
	HeaderProfileType = "X-Profile-Type"
	HeaderProfileID   = "X-Profile-Id"
)

// ActorContext reads the acting profile asserted by the upstream gateway.
// Requests without one continue anonymously and are refused by the service.
// The system profile cannot be asserted over HTTP.
func ActorContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		rawType := strings.TrimSpace(c.GetHeader(HeaderProfileType))
		rawID := strings.TrimSpace(c.GetHeader(HeaderProfileID))
		if rawType == "" && rawID == "" {
			c.Next()
			return
		}

		profile, ok := actorcontext.ParseProfileType(rawType)
		if !ok || profile == actorcontext.ProfileSystem {
			AbortWithError(c, newValidationError("profile_type", "invalid_profile_type", "invalid profile type"))
			return
		}
		id, err := snowflake.ParseString(rawID)
		if err != nil || id <= 0 {
			AbortWithError(c, newValidationError("profile_id", "invalid_profile_id", "invalid profile id"))
			return
		}

		actor := actorcontext.Actor{Type: profile, ID: id}
		c.Request = c.Request.WithContext(actorcontext.WithActor(c.Request.Context(), actor))
		c.Next()
	}
}

// SystemActor runs the request as the system profile.
func SystemActor() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request = c.Request.WithContext(actorcontext.WithActor(c.Request.Context(), actorcontext.System()))
		c.Next()
	}
}

// authorizeAction gates routes whose service does not check roles itself.
func (s *Server) authorizeAction(object, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, err := s.authzSvc.Authorize(c.Request.Context(), object, action); err != nil {
			logger.FromContext(c.Request.Context()).Debug("request not authorized",
				zap.String("object", object),
				zap.String("action", action),
				zap.Error(err),
			)
			AbortWithError(c, err)
			return
		}
		c.Next()
	}
}
