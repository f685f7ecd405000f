package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/telekom/props-override/pkg/config"
	"github.com/telekom/props-override/pkg/metrics"
	"github.com/telekom/props-override/pkg/policy"
	"github.com/telekom/props-override/pkg/ratelimit"
	"github.com/telekom/props-override/pkg/system"
)

const shutdownTimeout = 10 * time.Second

type Server struct {
	gin      *gin.Engine
	config   config.Server
	log      *zap.Logger
	registry *policy.Registry
	auditor  policy.Auditor
	limiter  *ratelimit.Limiter
}

func NewServer(log *zap.Logger, cfg config.Server, registry *policy.Registry, auditor policy.Auditor, debug bool) *Server {
	if !debug {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(
		ginzap.Ginzap(log, time.RFC3339, true),
		ginzap.RecoveryWithZap(log, true),
		requestLogger(log.Sugar()),
	)

	if len(cfg.AllowedOrigins) > 0 {
		engine.Use(cors.New(cors.Config{
			AllowOrigins: cfg.AllowedOrigins,
			AllowMethods: []string{"GET", "POST", "OPTIONS"},
			AllowHeaders: []string{"Origin", "Content-Type", "X-Request-ID"},
			MaxAge:       12 * time.Hour,
		}))
	}

	s := &Server{
		gin:      engine,
		config:   cfg,
		log:      log,
		registry: registry,
		auditor:  auditor,
	}

	engine.GET("healthz", s.getHealth)
	engine.GET("metrics", gin.WrapH(metrics.MetricsHandler()))

	v1 := engine.Group("api/v1")
	if rl, ok := ratelimit.FromServerConfig(cfg.RateLimit); ok {
		s.limiter = ratelimit.New(rl, ratelimit.ByClientIP)
		v1.Use(s.limiter.Middleware())
	}
	v1.POST("evaluate", s.postEvaluate)
	v1.POST("feature", s.postFeature)
	v1.POST("attestation", s.postAttestation)
	v1.GET("profiles", s.getProfiles)
	v1.GET("profiles/:name", s.getProfile)
	v1.GET("matchsets", s.getMatchSets)

	return s
}

// Handler returns the underlying gin engine.
func (s *Server) Handler() http.Handler {
	return s.gin
}

// Listen serves until ctx is cancelled and then shuts down gracefully.
func (s *Server) Listen(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.config.ListenAddress,
		Handler:           s.gin,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("Starting decision service", zap.String("address", s.config.ListenAddress),
			zap.Bool("tls", s.config.TLSCertFile != ""))
		if s.config.TLSCertFile != "" && s.config.TLSKeyFile != "" {
			errCh <- srv.ListenAndServeTLS(s.config.TLSCertFile, s.config.TLSKeyFile)
			return
		}
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	s.log.Info("Shutting down decision service")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Close releases background resources. It does not stop a running Listen.
func (s *Server) Close() {
	if s.limiter != nil {
		s.limiter.Stop()
	}
}

// requestLogger attaches a correlation ID and a request-scoped logger.
func requestLogger(log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		cid := c.GetHeader("X-Request-ID")
		if cid == "" {
			cid = uuid.NewString()
		}
		c.Set("cid", cid)
		c.Set(system.ReqLoggerKey, log.With("cid", cid))
		c.Writer.Header().Set("X-Request-ID", cid)
		c.Next()
	}
}
