package httpserver

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"chathistory-server/internal/config"
	"chathistory-server/internal/domain/user"
	"chathistory-server/internal/infrastructure"
	middleware "chathistory-server/internal/interfaces/httpserver/middlewares"
	v1 "chathistory-server/internal/interfaces/httpserver/routes/v1"
)

type HTTPServer struct {
	engine  *gin.Engine
	infra   *infrastructure.Infrastructure
	v1Route *v1.V1Route
	config  *config.Config
	server  *http.Server
}

func NewHttpServer(
	v1Route *v1.V1Route,
	userService *user.Service,
	infra *infrastructure.Infrastructure,
	cfg *config.Config,
) *HTTPServer {
	gin.SetMode(gin.ReleaseMode)
	server := HTTPServer{
		engine:  gin.New(),
		infra:   infra,
		v1Route: v1Route,
		config:  cfg,
	}
	server.engine.Use(gin.Recovery())
	server.engine.Use(middleware.RequestID())
	server.engine.Use(middleware.TracingMiddleware(cfg.ServiceName))
	server.engine.Use(middleware.LoggingMiddleware(infra.Logger))
	server.engine.Use(middleware.MetricsMiddleware())
	server.engine.Use(middleware.CORSMiddleware())

	// Root health check for orchestrators
	server.engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Public routes (no auth required)
	root := server.engine.Group("/")
	v1Route.RegisterPublicRouter(root)

	// Protected routes
	protected := server.engine.Group("/")
	protected.Use(middleware.AuthMiddleware(infra.TokenValidator, userService, infra.Logger))
	v1Route.RegisterRouter(protected)

	return &server
}

// Handler exposes the configured engine, mainly for tests.
func (httpServer *HTTPServer) Handler() http.Handler {
	return httpServer.engine
}

// Run serves HTTP until the listener fails or Shutdown is called.
func (httpServer *HTTPServer) Run() error {
	httpServer.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", httpServer.config.HTTPPort),
		Handler:           httpServer.engine,
		ReadHeaderTimeout: httpServer.config.HTTPTimeout,
	}
	if err := httpServer.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and stops the server.
func (httpServer *HTTPServer) Shutdown(ctx context.Context) error {
	if httpServer.server == nil {
		return nil
	}
	return httpServer.server.Shutdown(ctx)
}
