package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/translog/internal/application"
	applicationdomain "github.com/smallbiznis/translog/internal/application/domain"
	"github.com/smallbiznis/translog/internal/config"
	"github.com/smallbiznis/translog/internal/document"
	"github.com/smallbiznis/translog/internal/notification"
	"github.com/smallbiznis/translog/internal/observability"
	obsmiddleware "github.com/smallbiznis/translog/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/translog/internal/observability/metrics"
	obstracing "github.com/smallbiznis/translog/internal/observability/tracing"
	"github.com/smallbiznis/translog/internal/payment"
	paymentdomain "github.com/smallbiznis/translog/internal/payment/domain"
	"github.com/smallbiznis/translog/internal/providers"
	"github.com/smallbiznis/translog/internal/ratelimit"
	"github.com/smallbiznis/translog/internal/reference"
	referencedomain "github.com/smallbiznis/translog/internal/reference/domain"
	"github.com/smallbiznis/translog/internal/vessel"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(NewEngine),
	providers.Module,
	document.Module,
	vessel.Module,
	application.Module,
	notification.Module,
	payment.Module,
	reference.Module,
	ratelimit.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
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
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func run(lc fx.Lifecycle, r *gin.Engine, cfg config.Config, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				log.Info("http server listening", zap.String("addr", srv.Addr))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine       *gin.Engine
	cfg          config.Config
	applications applicationdomain.Service
	webhooks     paymentdomain.Service
	refrepo      referencedomain.Repository
	limiter      *ratelimit.SubmissionLimiter
	obsMetrics   *obsmetrics.Metrics
}

type ServerParams struct {
	fx.In

	Gin          *gin.Engine
	Cfg          config.Config
	Applications applicationdomain.Service
	Webhooks     paymentdomain.Service
	Refrepo      referencedomain.Repository
	Limiter      *ratelimit.SubmissionLimiter `optional:"true"`
	ObsMetrics   *obsmetrics.Metrics          `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	registerValidatorTagNames()

	svc := &Server{
		engine:       p.Gin,
		cfg:          p.Cfg,
		applications: p.Applications,
		webhooks:     p.Webhooks,
		refrepo:      p.Refrepo,
		limiter:      p.Limiter,
		obsMetrics:   p.ObsMetrics,
	}

	svc.registerAPIRoutes()
	svc.registerFallback()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api")

	api.GET("/countries", s.ListCountries)
	api.GET("/countries/:code", s.GetCountry)

	api.GET("/applications", s.ListApplications)
	api.GET("/applications/:id", s.GetApplication)
	api.POST("/applications", s.SubmissionRateLimit(), s.CreateApplication)

	api.POST("/payments/webhooks/:provider", s.HandlePaymentWebhook)
}

func (s *Server) registerFallback() {
	s.engine.NoRoute(func(c *gin.Context) {
		AbortWithError(c, ErrNotFound)
	})
}
