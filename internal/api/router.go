package api

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/requestid"

	swagger "github.com/go-swagno/swagno-fiber/swagger"
	"github.com/saturnino-fabrica-de-software/estoque/internal/api/docs"
	"github.com/saturnino-fabrica-de-software/estoque/internal/api/handler"
	"github.com/saturnino-fabrica-de-software/estoque/internal/api/middleware"
	"github.com/saturnino-fabrica-de-software/estoque/internal/audit"
	"github.com/saturnino-fabrica-de-software/estoque/internal/capture"
	"github.com/saturnino-fabrica-de-software/estoque/internal/ws"
)

type Dependencies struct {
	Sessions     *capture.Registry
	Flow         FlowService
	Dashboard    handler.Dashboard
	Settings     handler.SettingsStore
	Attempts     handler.AttemptLister
	Audit        audit.Logger
	Hub          *ws.Hub
	TokenExpired middleware.TokenChecker
	// AuthRateLimit is the per-IP limit on login and register, per minute
	AuthRateLimit int
	Checks        map[string]handler.Checker
}

// FlowService is implemented by flow.Service.
type FlowService interface {
	handler.FaceVerifier
	handler.AuthFlow
}

type Router struct {
	app         *fiber.App
	logger      *slog.Logger
	deps        *Dependencies
	rateLimiter *middleware.RateLimiter
}

func NewRouter(logger *slog.Logger, deps *Dependencies) *Router {
	app := fiber.New(fiber.Config{
		ErrorHandler: middleware.ErrorHandler(logger),
		AppName:      "Estoque Console",
		BodyLimit:    8 * 1024 * 1024,
	})

	return &Router{
		app:    app,
		logger: logger,
		deps:   deps,
	}
}

func (r *Router) Setup() {
	// Global middlewares
	r.app.Use(requestid.New())
	r.app.Use(middleware.Recover(r.logger))
	r.app.Use(middleware.Logger(r.logger))
	r.app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
	}))

	// Swagger documentation
	sw := docs.NewSwagger()
	swagger.SwaggerHandler(r.app, sw.MustToJson())

	var checks map[string]handler.Checker
	if r.deps != nil {
		checks = r.deps.Checks
	}
	healthHandler := handler.NewHealthHandler(checks)
	r.app.Get("/health", healthHandler.Health)
	r.app.Get("/ready", healthHandler.Ready)

	if r.deps == nil {
		return
	}

	v1 := r.app.Group("/v1")
	requireToken := middleware.BackendToken(r.deps.TokenExpired)

	// Capture sessions
	captureHandler := handler.NewCaptureHandler(r.deps.Sessions, r.deps.Flow, r.logger.With("component", "capture_handler"))
	sessions := v1.Group("/capture/sessions")
	sessions.Post("/", captureHandler.Create)
	sessions.Get("/:id/ws", ws.UpgradeMiddleware(r.deps.Sessions), ws.Handler(r.deps.Hub, r.deps.Sessions, r.logger))
	sessions.Get("/:id", captureHandler.Get)
	sessions.Post("/:id/frames", captureHandler.PushFrame)
	sessions.Post("/:id/capture", captureHandler.Capture)
	sessions.Post("/:id/retake", captureHandler.Retake)
	sessions.Post("/:id/restart", captureHandler.Restart)
	sessions.Get("/:id/still", captureHandler.Still)
	sessions.Post("/:id/verify", captureHandler.Verify)
	sessions.Delete("/:id", captureHandler.Delete)
	if r.deps.Attempts != nil {
		attemptsHandler := handler.NewAttemptsHandler(r.deps.Attempts, r.logger.With("component", "attempts_handler"))
		sessions.Get("/:id/attempts", requireToken, attemptsHandler.List)
	}

	// Auth, rate limited per client IP
	r.rateLimiter = middleware.NewRateLimiter(middleware.RateLimiterConfig{
		PerEndpoint: middleware.AuthRateLimits(r.deps.AuthRateLimit),
	})
	authHandler := handler.NewAuthHandler(r.deps.Flow, r.logger.With("component", "auth_handler"))
	auth := v1.Group("/auth", r.rateLimiter.Handler())
	auth.Post("/login", authHandler.Login)
	auth.Post("/register", requireToken, authHandler.Register)

	// Settings: anyone may read, changes need a token
	settingsHandler := handler.NewSettingsHandler(r.deps.Settings, r.deps.Audit, r.logger.With("component", "settings_handler"))
	v1.Get("/settings", settingsHandler.Get)
	v1.Put("/settings", requireToken, settingsHandler.Update)

	// Dashboard
	dashboardHandler := handler.NewDashboardHandler(r.deps.Dashboard, r.logger.With("component", "dashboard_handler"))
	dash := v1.Group("/dashboard", requireToken)
	dash.Get("/weekly", dashboardHandler.Weekly)
	dash.Get("/top-products", dashboardHandler.TopProducts)
	dash.Get("/inventory-codes", dashboardHandler.InventoryCodes)
}

func (r *Router) App() *fiber.App {
	return r.app
}

func (r *Router) Listen(addr string) error {
	return r.app.Listen(addr)
}

func (r *Router) Shutdown() error {
	// Stop rate limiter cleanup goroutine
	if r.rateLimiter != nil {
		r.rateLimiter.Stop()
	}

	return r.app.Shutdown()
}
