// Package router provides HTTP routing, middleware configuration, and server setup for the web application
package router

import (
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/amirphl/term-insurance-analyzer/app/dto"
	"github.com/amirphl/term-insurance-analyzer/app/handlers"
	"github.com/amirphl/term-insurance-analyzer/app/middleware"
	"github.com/amirphl/term-insurance-analyzer/config"
	"github.com/amirphl/term-insurance-analyzer/utils"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/gofiber/fiber/v3/middleware/compress"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/helmet"
	"github.com/gofiber/fiber/v3/middleware/limiter"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/gofiber/fiber/v3/middleware/requestid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const healthPath = "/api/v1/health"

// Router interface for HTTP routing
type Router interface {
	SetupRoutes()
	Start(address string) error
	GetApp() *fiber.App
}

// Handlers groups the endpoint handlers mounted by the router
type Handlers struct {
	Plan           handlers.PlanHandlerInterface
	Recommendation handlers.RecommendationHandlerInterface
	Scrape         handlers.ScrapeHandlerInterface
	Assistant      handlers.AssistantHandlerInterface
	Health         fiber.Handler
}

// FiberRouter implements Router using Fiber v3
type FiberRouter struct {
	app      *fiber.App
	handlers Handlers
	server   config.ServerConfig
	metrics  config.MetricsConfig
	logger   *utils.Logger
}

// NewFiberRouter creates a new Fiber router
func NewFiberRouter(h Handlers, server config.ServerConfig, metrics config.MetricsConfig, logger *utils.Logger) Router {
	if logger == nil {
		logger = utils.NewNopLogger()
	}
	bodyLimit := server.BodyLimit
	if bodyLimit <= 0 {
		bodyLimit = 1024 * 1024
	}

	r := &FiberRouter{
		handlers: h,
		server:   server,
		metrics:  metrics,
		logger:   logger.With("component", "http"),
	}
	r.app = fiber.New(fiber.Config{
		AppName:      "Term Insurance Analyzer API",
		ServerHeader: "term-insurance-analyzer",
		ErrorHandler: r.errorHandler,
		BodyLimit:    bodyLimit,
		ReadTimeout:  server.ReadTimeout,
		WriteTimeout: server.WriteTimeout,
		IdleTimeout:  server.IdleTimeout,
	})
	return r
}

// SetupRoutes configures all application routes
func (r *FiberRouter) SetupRoutes() {
	r.setupMiddleware()

	if r.metrics.Enabled {
		path := r.metrics.Path
		if path == "" {
			path = "/metrics"
		}
		r.app.Get(path, adaptor.HTTPHandler(promhttp.Handler()))
	}

	api := r.app.Group("/api/v1")

	// Health check route (no rate limiting)
	if r.handlers.Health != nil {
		api.Get("/health", r.handlers.Health)
	}

	limit := r.server.GlobalRateLimit
	if limit <= 0 {
		limit = 600
	}
	api.Use(limiter.New(limiter.Config{
		Max:        limit,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(dto.APIResponse{
				Success: false,
				Message: "Too many requests. Please try again later.",
				Error: dto.ErrorDetail{
					Code: "RATE_LIMIT_EXCEEDED",
				},
			})
		},
		Next: func(c fiber.Ctx) bool {
			return c.Path() == healthPath
		},
	}))

	if h := r.handlers.Plan; h != nil {
		plans := api.Group("/plans")
		plans.Get("/", h.List)
		plans.Get("/export", h.Export)
		plans.Post("/", h.Create)
		plans.Get("/:id", h.Get)
		plans.Put("/:id", h.Update)
		plans.Delete("/:id", h.Delete)

		api.Get("/stats", h.Stats)
	}

	if h := r.handlers.Recommendation; h != nil {
		api.Post("/recommend", h.Recommend)
		api.Post("/compare", h.Compare)
	}

	if h := r.handlers.Assistant; h != nil {
		api.Post("/chat", h.Chat)
		api.Post("/premium-estimate", h.PremiumEstimate)
	}

	if h := r.handlers.Scrape; h != nil {
		api.Post("/scrape", h.Trigger)
		api.Get("/scrape/runs", h.ListRuns)
	}

	r.app.Use(r.notFoundHandler)

	r.logger.Info("Routes configured")
}

// setupMiddleware configures global middleware
func (r *FiberRouter) setupMiddleware() {
	// Request ID middleware - must be first
	r.app.Use(requestid.New(requestid.Config{
		Header:    "X-Request-ID",
		Generator: generateRequestID,
	}))

	r.app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
		StackTraceHandler: func(c fiber.Ctx, e any) {
			r.logger.Error("Panic while serving request",
				"panic", e,
				"path", c.Path(),
				"method", c.Method(),
				"ip", c.IP(),
				"request_id", c.GetRespHeader("X-Request-ID"),
			)
		},
	}))

	if r.metrics.Enabled {
		path := r.metrics.Path
		if path == "" {
			path = "/metrics"
		}
		r.app.Use(middleware.Metrics(path))
	}

	r.app.Use(helmet.New(helmet.Config{
		XSSProtection:         "1; mode=block",
		ContentTypeNosniff:    "nosniff",
		XFrameOptions:         "DENY",
		HSTSMaxAge:            31536000,
		ReferrerPolicy:        "strict-origin-when-cross-origin",
		XDNSPrefetchControl:   "off",
		XDownloadOptions:      "noopen",
		XPermittedCrossDomain: "none",
	}))

	origins := r.server.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.app.Use(cors.New(cors.Config{
		AllowOrigins: origins,
		AllowMethods: []string{"GET", "POST", "PUT", "DELETE", "HEAD", "OPTIONS"},
		AllowHeaders: []string{
			"Origin",
			"Content-Type",
			"Accept",
			"X-Requested-With",
			"X-Request-ID",
			"Cache-Control",
		},
		ExposeHeaders: []string{"X-Request-ID", "Content-Disposition"},
		MaxAge:        utils.CORSMaxAge,
	}))

	r.app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))

	r.app.Use(r.accessLog)
}

// accessLog writes one structured line per request
func (r *FiberRouter) accessLog(c fiber.Ctx) error {
	start := time.Now()
	err := c.Next()
	if c.Path() == healthPath {
		return err
	}
	r.logger.Info("HTTP request",
		"method", c.Method(),
		"path", c.Path(),
		"status", c.Response().StatusCode(),
		"latency_ms", time.Since(start).Milliseconds(),
		"ip", c.IP(),
		"request_id", c.GetRespHeader("X-Request-ID"),
	)
	return err
}

// Start starts the HTTP server
func (r *FiberRouter) Start(address string) error {
	r.logger.Info("Starting server", "address", address)
	return r.app.Listen(address, fiber.ListenConfig{DisableStartupMessage: true})
}

// GetApp returns the Fiber app instance
func (r *FiberRouter) GetApp() *fiber.App {
	return r.app
}

// Not found handler
func (r *FiberRouter) notFoundHandler(c fiber.Ctx) error {
	return c.Status(fiber.StatusNotFound).JSON(dto.APIResponse{
		Success: false,
		Message: "The requested resource was not found",
		Error: dto.ErrorDetail{
			Code: "NOT_FOUND",
			Details: fiber.Map{
				"path":       c.Path(),
				"method":     c.Method(),
				"request_id": c.GetRespHeader("X-Request-ID"),
			},
		},
	})
}

// errorHandler renders errors that escaped the handlers
func (r *FiberRouter) errorHandler(c fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "An internal server error occurred"
	errCode := "INTERNAL_ERROR"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		if code < fiber.StatusInternalServerError {
			message = e.Message
			errCode = "REQUEST_ERROR"
		}
	}

	if code >= fiber.StatusInternalServerError {
		r.logger.Error("Unhandled error", "status", code, "error", err, "path", c.Path())
	}

	return c.Status(code).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code: errCode,
			Details: fiber.Map{
				"timestamp":  utils.UTCNow().Unix(),
				"request_id": c.GetRespHeader("X-Request-ID"),
			},
		},
	})
}

// generateRequestID creates a unique request ID
func generateRequestID() string {
	bytes := make([]byte, 8)
	_, _ = rand.Read(bytes)
	return hex.EncodeToString(bytes)
}
