// Package http exposes the token service over HTTP: signing and
// verification endpoints, the JWKS document, health checks, metrics and
// profiling.
package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/keywheel/keywheel/internal/config"
	"github.com/keywheel/keywheel/internal/domain/service"
	"github.com/keywheel/keywheel/internal/interfaces/http/handlers"
	"github.com/keywheel/keywheel/pkg/logger"
)

// Server is the HTTP front of the keywheel service.
type Server struct {
	httpServer *http.Server
	log        logger.Logger
}

// NewServer builds the gin router and wires all handlers.
func NewServer(
	cfg *config.ServerConfig,
	tokens service.TokenService,
	active service.ActiveKeyProvider,
	registry service.KeyRegistry,
	namespace string,
	gatherer prometheus.Gatherer,
	log logger.Logger,
) *Server {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(log))
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	if cfg.Environment != "production" {
		pprof.Register(router)
	}
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	tokenHandler := handlers.NewTokenHandler(tokens, log)
	jwksHandler := handlers.NewJWKSHandler(active, registry, namespace, log)
	healthHandler := handlers.NewHealthHandler(active)

	router.GET("/healthz", healthHandler.Liveness)
	router.GET("/readyz", healthHandler.Readiness)
	router.GET("/.well-known/jwks.json", jwksHandler.JWKS)

	v1 := router.Group("/v1")
	{
		v1.POST("/tokens", tokenHandler.Sign)
		v1.POST("/tokens/verify", tokenHandler.Verify)
	}

	return &Server{
		httpServer: &http.Server{
			Addr:         cfg.Addr(),
			Handler:      router,
			ReadTimeout:  time.Duration(cfg.ReadTimeout) * time.Second,
			WriteTimeout: time.Duration(cfg.WriteTimeout) * time.Second,
		},
		log: log.WithComponent("http"),
	}
}

// requestLogger logs each request with latency and status.
func requestLogger(log logger.Logger) gin.HandlerFunc {
	log = log.WithComponent("http")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info(c.Request.Context(), "request",
			logger.String("method", c.Request.Method),
			logger.String("path", c.Request.URL.Path),
			logger.Int("status", c.Writer.Status()),
			logger.Duration("latency", time.Since(start)),
		)
	}
}

// Start begins serving and blocks until the listener fails or is shut down.
func (s *Server) Start() error {
	s.log.Info(context.Background(), "http server listening", logger.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
