// Package httpserver provides HTTP server and routing.
package httpserver

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/template/html/v2"
	"go.uber.org/zap"

	"leasekeeper-service/internal/app/service"
	"leasekeeper-service/internal/metrics"
	"leasekeeper-service/internal/transport/httpserver/dto"
	"leasekeeper-service/internal/transport/httpserver/handler"
	"leasekeeper-service/internal/transport/httpserver/middleware"
	"leasekeeper-service/internal/validator"
	"leasekeeper-service/pkg/kvstore"
	"leasekeeper-service/web"
)

// ServerConfig holds server configuration.
type ServerConfig struct {
	Port      int
	BodyLimit int
	Debug     bool
	// Backend names the store backend on the dashboard.
	Backend string
}

// Server wraps Fiber app with handlers.
type Server struct {
	App    *fiber.App
	Logger *zap.Logger
}

// NewServer creates a new HTTP server with all routes configured.
// reg may be nil, in which case /metrics is not served.
func NewServer(
	cfg ServerConfig,
	leaseSvc *service.LeaseService,
	store kvstore.Store,
	reg *metrics.Registry,
	v *validator.Validator,
	logger *zap.Logger,
) *Server {
	// Template engine for dashboard
	engine := html.NewFileSystem(http.FS(web.Templates()), ".html")
	if cfg.Debug {
		engine.Reload(true)
	}

	// Create Fiber app
	app := fiber.New(fiber.Config{
		AppName:      "leasekeeper-service",
		BodyLimit:    cfg.BodyLimit,
		ErrorHandler: errorHandler(logger),
		Views:        engine,
		// Store keys arrive path-escaped from the remote client.
		UnescapePath: true,
	})

	// Health check middleware MUST be registered BEFORE other middleware
	// for Kubernetes probes to work even during high load
	app.Use(middleware.NewHealthCheck(leaseSvc.Ping))

	// Global middleware
	app.Use(requestid.New())
	app.Use(middleware.Recover(logger))
	app.Use(middleware.Logger(logger, "/metrics"))
	if reg != nil {
		app.Use(middleware.Metrics(metrics.NewHTTPMetrics(reg)))
	}
	app.Use(middleware.CORS())
	app.Use(compress.New())

	// Create handlers
	leaseHandler := handler.NewLeaseHandler(leaseSvc, logger)
	valueHandler := handler.NewValueHandler(leaseSvc, v, logger)
	kvHandler := handler.NewKVHandler(store, v, logger)
	dashboardHandler := handler.NewDashboardHandler(leaseSvc, cfg.Backend, logger)

	if reg != nil {
		app.Get("/metrics", adaptor.HTTPHandler(reg.Handler()))
	}

	// Register routes
	registerRoutes(app, leaseHandler, valueHandler, kvHandler, dashboardHandler)

	return &Server{
		App:    app,
		Logger: logger,
	}
}

// registerRoutes sets up all API routes.
func registerRoutes(
	app *fiber.App,
	leaseHandler *handler.LeaseHandler,
	valueHandler *handler.ValueHandler,
	kvHandler *handler.KVHandler,
	dashboardHandler *handler.DashboardHandler,
) {
	// Health checks are handled by middleware (/livez, /readyz)

	// Dashboard (HTML)
	app.Get("/dashboard", dashboardHandler.Render)
	app.Get("/", func(c *fiber.Ctx) error {
		return c.Redirect("/dashboard")
	})

	// API v1 routes
	v1 := app.Group("/api/v1")
	v1.Get("/stats", dashboardHandler.Stats)

	// Leases
	leases := v1.Group("/leases")
	leases.Get("/", leaseHandler.List)
	leases.Get("/:key", leaseHandler.Get)
	leases.Delete("/:key", leaseHandler.Unlock)

	// Guarded values
	values := v1.Group("/values")
	values.Get("/:key", valueHandler.Get)
	values.Post("/:key/mutations", valueHandler.Mutate)

	// Raw store primitives for remote nodes
	kv := v1.Group("/kv")
	kv.Get("/", kvHandler.Keys)
	kv.Get("/:key", kvHandler.Get)
	kv.Post("/:key/setnx", kvHandler.SetIfAbsent)
	kv.Post("/:key/swap", kvHandler.Swap)
	kv.Delete("/:key", kvHandler.Delete)
}

// errorHandler returns a custom error handler that logs based on HTTP status code.
// 404s are logged at DEBUG level (expected client behavior), 4xx at WARN, 5xx at ERROR.
func errorHandler(logger *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError

		var fe *fiber.Error
		if errors.As(err, &fe) {
			code = fe.Code
		}

		// Log based on status code - 404s are common and not server errors
		switch {
		case code == fiber.StatusNotFound:
			logger.Debug("resource not found",
				zap.String("path", c.Path()),
				zap.String("method", c.Method()),
			)
		case code >= 500:
			logger.Error("server error",
				zap.Error(err),
				zap.Int("status", code),
				zap.String("path", c.Path()),
			)
		default:
			logger.Warn("client error",
				zap.Error(err),
				zap.Int("status", code),
				zap.String("path", c.Path()),
			)
		}

		return c.Status(code).JSON(dto.ErrorResponse{
			Error: err.Error(),
			Code:  errorCode(code),
		})
	}
}

func errorCode(status int) string {
	switch status {
	case fiber.StatusNotFound:
		return "NOT_FOUND"
	case fiber.StatusMethodNotAllowed:
		return "METHOD_NOT_ALLOWED"
	case fiber.StatusRequestEntityTooLarge:
		return "BODY_TOO_LARGE"
	default:
		return "UNHANDLED_ERROR"
	}
}

// Start starts the HTTP server.
func (s *Server) Start(port int) error {
	s.Logger.Info("starting HTTP server", zap.Int("port", port))

	return s.App.Listen(fmt.Sprintf(":%d", port))
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown() error {
	s.Logger.Info("shutting down HTTP server")

	return s.App.Shutdown()
}
