package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	auditdomain "github.com/smallbiznis/collabhub/internal/audit/domain"
	"github.com/smallbiznis/collabhub/internal/authorization"
	"github.com/smallbiznis/collabhub/internal/config"
	"github.com/smallbiznis/collabhub/internal/marketplace/consistency"
	"github.com/smallbiznis/collabhub/internal/marketplace/domain"
	"github.com/smallbiznis/collabhub/internal/marketplace/service"
	"github.com/smallbiznis/collabhub/internal/observability"
	obsmiddleware "github.com/smallbiznis/collabhub/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/collabhub/internal/observability/metrics"
	obstracing "github.com/smallbiznis/collabhub/internal/observability/tracing"
	"github.com/smallbiznis/collabhub/internal/ratelimit"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(NewEngine),
	fx.Provide(func(s *service.Service) Reconciler { return s }),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

// Reconciler runs the consistency checks on demand.
type Reconciler interface {
	Reconcile(ctx context.Context, repair bool) (consistency.Report, error)
}

func NewEngine(obsCfg observability.Config) *gin.Engine {
	if !obsCfg.Debug() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if cfg.InternalRoutesEnabled && cfg.IsProduction() {
				log.Warn("internal operator routes are mounted without authentication", zap.String("environment", cfg.Environment))
			}
			go func() {
				log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("http server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
	})
}

type Server struct {
	engine      *gin.Engine
	cfg         config.Config
	marketplace domain.Service
	reconciler  Reconciler
	authzSvc    authorization.Service
	auditSvc    auditdomain.Service
	limiter     *ratelimit.MutationLimiter
	obsMetrics  *obsmetrics.Metrics
}

type ServerParams struct {
	fx.In

	Gin         *gin.Engine
	Cfg         config.Config
	Marketplace domain.Service
	Reconciler  Reconciler
	AuthzSvc    authorization.Service
	AuditSvc    auditdomain.Service
	Limiter     *ratelimit.MutationLimiter `optional:"true"`
	ObsMetrics  *obsmetrics.Metrics        `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:      p.Gin,
		cfg:         p.Cfg,
		marketplace: p.Marketplace,
		reconciler:  p.Reconciler,
		authzSvc:    p.AuthzSvc,
		auditSvc:    p.AuditSvc,
		limiter:     p.Limiter,
		obsMetrics:  p.ObsMetrics,
	}

	svc.registerAPIRoutes()
	svc.registerInternalRoutes()
	svc.registerFallback()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api")
	api.Use(ActorContext())
	api.Use(s.MutationRateLimit())

	// -------- Campaigns --------
	api.GET("/campaigns", s.ListCampaigns)
	api.POST("/campaigns", s.CreateCampaign)
	api.GET("/campaigns/:id", s.GetCampaign)
	api.POST("/campaigns/:id/transition", s.TransitionCampaign)
	api.POST("/campaigns/:id/submit-review", s.SubmitCampaignForReview)
	api.POST("/campaigns/:id/activate", s.ActivateCampaign)
	api.POST("/campaigns/:id/pause", s.PauseCampaign)
	api.POST("/campaigns/:id/resume", s.ResumeCampaign)
	api.POST("/campaigns/:id/close-applications", s.CloseApplications)
	api.POST("/campaigns/:id/complete", s.CompleteCampaign)
	api.POST("/campaigns/:id/cancel", s.CancelCampaign)
	api.GET("/campaigns/:id/applications", s.ListCampaignApplications)
	api.POST("/campaigns/:id/applications", s.ApplyToCampaign)

	// -------- Applications --------
	api.GET("/applications", s.ListApplications)
	api.GET("/applications/:id", s.GetApplication)
	api.POST("/applications/:id/accept", s.AcceptApplication)
	api.POST("/applications/:id/reject", s.RejectApplication)
	api.POST("/applications/:id/withdraw", s.WithdrawApplication)

	// -------- Deliveries --------
	api.GET("/deliveries", s.ListDeliveries)
	api.GET("/deliveries/:id", s.GetDelivery)
	api.POST("/deliveries/:id/submit", s.SubmitDelivery)
	api.POST("/deliveries/:id/approve", s.ApproveDelivery)
	api.POST("/deliveries/:id/request-revision", s.RequestRevision)
	api.POST("/deliveries/:id/contest", s.ContestDelivery)

	// -------- Disputes --------
	api.GET("/disputes", s.ListDisputes)
	api.GET("/disputes/:id", s.GetDispute)
	api.POST("/disputes/:id/review", s.ReviewDispute)
	api.POST("/disputes/:id/resolve", s.ResolveDispute)
	api.POST("/disputes/:id/close", s.CloseDispute)

	// -------- Creators --------
	api.POST("/creators", s.RegisterCreator)
	api.GET("/creators/:id", s.GetCreatorProfile)

	api.GET("/audit-logs", s.authorizeAction(authorization.ObjectAuditLog, authorization.ActionAuditLogView), s.ListAuditLogs)
}

// registerInternalRoutes exposes operator endpoints that run as the system
// actor. They carry no authentication and are mounted only on request.
func (s *Server) registerInternalRoutes() {
	if !s.cfg.InternalRoutesEnabled {
		return
	}
	internal := s.engine.Group("/internal", SystemActor())
	internal.POST("/reconcile", s.Reconcile)
}

func (s *Server) registerFallback() {
	s.engine.NoRoute(func(c *gin.Context) {
		AbortWithError(c, ErrNotFound)
	})
}
