// Package httpserver exposes the REST API, the WhatsApp webhook mount and the
// operational endpoints (health, metrics) on a single listener.
package httpserver

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"log/slog"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wnliberio/back-bot-sistemas-empresariales/internal/metrics"
	"github.com/wnliberio/back-bot-sistemas-empresariales/internal/repo"
)

// Config holds HTTP server configuration.
type Config struct {
	Addr           string
	AppEnv         string
	CompanyName    string
	WhatsAppNumber string
}

// Dependencies exposes core dependencies to handlers.
type Dependencies struct {
	Repository repo.Repository
	Webhook    http.Handler
}

// Server wraps an http.Server with the gin router and predefined routes.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	metrics    *metrics.Metrics
	deps       Dependencies
	cfg        Config
}

// New creates a new HTTP server listening on cfg.Addr.
func New(cfg Config, logger *slog.Logger, metricRegistry *metrics.Metrics, deps Dependencies) *Server {
	if cfg.AppEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	server := &Server{
		logger:  logger.With("component", "http"),
		metrics: metricRegistry,
		deps:    deps,
		cfg:     cfg,
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(cors.Default())

	engine.GET("/healthz", server.handleHealth)
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := engine.Group("/api")
	{
		wa := api.Group("/whatsapp")
		if deps.Webhook != nil {
			wa.POST("/webhook", gin.WrapH(deps.Webhook))
		}
		wa.POST("/iniciar-chat", server.handleStartChat)
		wa.POST("/capturar-lead", server.handleCaptureLead)

		api.GET("/productos", server.handleListProducts)
		api.GET("/productos/categoria/:categoria", server.handleProductsByCategory)
		api.GET("/productos/buscar/:nombre", server.handleSearchProducts)
		api.GET("/productos/:id", server.handleProductByID)
		api.GET("/categorias", server.handleListCategories)

		api.POST("/leads", server.handleCreateLead)
		api.GET("/leads/telefono/:telefono", server.handleLeadByPhone)
		api.PUT("/leads/:id", server.handleUpdateLead)
		api.GET("/leads/:id/conversacion", server.handleLeadConversation)

		api.GET("/ordenes/:codigo", server.handleOrderByCode)
		api.POST("/ordenes/:codigo/confirmar-pago", server.handleConfirmPayment)
	}

	server.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           engine,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return server
}

// Start begins listening for incoming HTTP requests.
func (s *Server) Start() error {
	s.logger.Info("http server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server listen: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if err := s.deps.Repository.Ping(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
