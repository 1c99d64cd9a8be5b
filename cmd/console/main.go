package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/saturnino-fabrica-de-software/estoque/internal/api"
	"github.com/saturnino-fabrica-de-software/estoque/internal/api/handler"
	"github.com/saturnino-fabrica-de-software/estoque/internal/audit"
	"github.com/saturnino-fabrica-de-software/estoque/internal/backend"
	"github.com/saturnino-fabrica-de-software/estoque/internal/cache"
	"github.com/saturnino-fabrica-de-software/estoque/internal/capture"
	"github.com/saturnino-fabrica-de-software/estoque/internal/config"
	"github.com/saturnino-fabrica-de-software/estoque/internal/dashboard"
	"github.com/saturnino-fabrica-de-software/estoque/internal/database"
	"github.com/saturnino-fabrica-de-software/estoque/internal/domain"
	"github.com/saturnino-fabrica-de-software/estoque/internal/face"
	"github.com/saturnino-fabrica-de-software/estoque/internal/flow"
	"github.com/saturnino-fabrica-de-software/estoque/internal/provider"
	"github.com/saturnino-fabrica-de-software/estoque/internal/ratelimit"
	"github.com/saturnino-fabrica-de-software/estoque/internal/repository"
	"github.com/saturnino-fabrica-de-software/estoque/internal/verification"
	"github.com/saturnino-fabrica-de-software/estoque/internal/ws"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

type stores struct {
	settings handler.SettingsStore
	attempts repository.AttemptRepositoryInterface
	cache    cache.Cache
	limiter  *ratelimit.RateLimiter
	checks   map[string]handler.Checker
	close    func()
}

func run() error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Initialize logger
	logger := config.NewLogger(cfg.Environment)
	slog.SetDefault(logger)

	logger.Info("starting estoque console",
		slog.String("environment", cfg.Environment),
		slog.Int("port", cfg.Port),
		slog.String("backend", cfg.BackendURL),
		slog.String("face_provider", cfg.FaceProvider),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer st.close()

	auditLogger := audit.NewSlogLogger(logger)

	detector, err := face.NewDetectionProvider(ctx, cfg, auditLogger)
	if err != nil {
		return fmt.Errorf("failed to create detection provider: %w", err)
	}

	detect := provider.Options{
		InputSize:      cfg.CaptureInputSize,
		ScoreThreshold: cfg.CaptureMinScore,
	}

	// Capture sessions report to the WebSocket hub
	hub := ws.NewHub()

	var camera *capture.Device
	if cfg.HasCamera() {
		camera = capture.NewDevice(capture.WebcamOpener(cfg.CameraDevice))
		logger.Info("capturing from local camera", slog.Int("device", cfg.CameraDevice))
	}

	captureCfg := capture.DefaultConfig()
	captureCfg.PollInterval = cfg.CapturePollInterval
	captureCfg.MinScore = cfg.CaptureMinScore
	captureCfg.Detect = detect
	captureCfg.StillMaxSide = cfg.CaptureStillMaxSide

	registry := capture.NewRegistry(captureCfg, capture.Deps{
		Detector: detector,
		Overlay:  hub,
		Notifier: hub,
		Logger:   logger,
		Audit:    auditLogger,
	}, camera, cfg.CaptureSessionTTL)

	backendClient := backend.NewClient(backend.Config{
		BaseURL:  cfg.BackendURL,
		Timeout:  cfg.BackendTimeout,
		PageSize: cfg.BackendPageSize,
	}, logger)

	verifier := verification.NewClient(verification.Config{
		BaseURL: cfg.BackendURL,
		Timeout: cfg.BackendTimeout,
	}, logger)

	var limiter flow.Limiter
	if st.limiter != nil {
		limiter = st.limiter
	}

	flowService := flow.NewService(flow.Deps{
		Detector: detector,
		Verifier: verifier,
		Backend:  backendClient,
		Sessions: registry,
		Settings: st.settings,
		Attempts: st.attempts,
		Audit:    auditLogger,
		Logger:   logger,

		Limiter:     limiter,
		VerifyLimit: cfg.VerifyRateLimit,
	}, detect, cfg.CaptureMinScore)

	dashboardService := dashboard.NewService(backendClient, st.cache, cfg.DashboardCacheTTL, logger)

	// Background workers
	workers, cancelWorkers := context.WithCancel(context.Background())
	defer cancelWorkers()
	go hub.Run(workers)
	go registry.Run(workers)
	if st.cache != nil {
		go cache.RunJanitor(workers, st.cache, 5*time.Minute, logger)
	}
	if st.limiter != nil {
		go st.limiter.RunCleanup(workers, time.Hour, func(err error) {
			logger.Warn("rate limit cleanup failed", slog.String("error", err.Error()))
		})
	}

	router := api.NewRouter(logger, &api.Dependencies{
		Sessions:      registry,
		Flow:          flowService,
		Dashboard:     dashboardService,
		Settings:      st.settings,
		Attempts:      st.attempts,
		Audit:         auditLogger,
		Hub:           hub,
		TokenExpired:  backend.TokenExpired,
		AuthRateLimit: cfg.AuthRateLimit,
		Checks:        st.checks,
	})
	router.Setup()

	// Start server in goroutine
	errChan := make(chan error, 1)
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Port)
		logger.Info("server listening", slog.String("addr", addr))
		if err := router.Listen(addr); err != nil {
			errChan <- err
		}
	}()

	// Wait for shutdown signal or error
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	}

	logger.Info("shutting down server...")
	if err := router.Shutdown(); err != nil {
		logger.Error("shutdown error", slog.Any("error", err))
	}

	// closes every capture session and releases the camera
	cancelWorkers()
	logger.Info("server stopped")

	return nil
}

// openStores picks Postgres-backed stores when DATABASE_URL is set and
// in-memory ones otherwise.
func openStores(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*stores, error) {
	defaults := domain.Settings{FacialRecognition: cfg.FacialRecognitionEnabled}

	if !cfg.HasDatabase() {
		logger.Warn("DATABASE_URL not set, using in-memory settings, no attempt log and no verify limit")
		return &stores{
			settings: repository.NewMemorySettings(defaults),
			attempts: repository.DiscardAttempts{},
			cache:    cache.NewMemoryCache(),
			close:    func() {},
		}, nil
	}

	pool, err := database.NewPool(ctx, database.DefaultPoolConfig(cfg.DatabaseURL))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	logger.Info("connected to database")

	return &stores{
		settings: repository.NewSettingsRepository(pool, defaults),
		attempts: repository.NewAttemptRepository(pool),
		cache:    cache.NewPGCache(pool),
		limiter:  ratelimit.NewRateLimiter(pool, cfg.VerifyRateWindow),
		checks: map[string]handler.Checker{
			"database": func(ctx context.Context) error {
				return database.HealthCheck(ctx, pool)
			},
		},
		close: pool.Close,
	}, nil
}
