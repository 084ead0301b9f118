package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"todocx/internal/config"
	"todocx/internal/document"
	apperrors "todocx/internal/errors"
	"todocx/internal/files"
	"todocx/internal/infrastructure"
	"todocx/internal/license"
	"todocx/internal/media"
	customMiddleware "todocx/internal/middleware"
	"todocx/internal/quota"
	"todocx/internal/security"
	"todocx/internal/services"
	"todocx/internal/storage"
	"todocx/internal/transcribe"
	handlers "todocx/internal/transport/http"
	ws "todocx/internal/websocket"
)

// Application represents the main application container
type Application struct {
	Config        *config.Config
	Paths         *config.Paths
	Router        *chi.Mux
	Server        *http.Server
	Logger        *slog.Logger
	OTelProviders *infrastructure.OTelProviders
	Metrics       *infrastructure.BusinessMetrics
	WebSocketHub  *ws.Hub
	Services      *ServiceContainer

	errors    *apperrors.ErrorHandler
	validator *customMiddleware.Validator
}

// ServiceContainer holds all application services
type ServiceContainer struct {
	Gate       *services.Gate
	Activation *services.ActivationService
	Conversion *services.ConversionService
	Health     *services.HealthService
	Uploader   *storage.Uploader
}

// NewApplication loads the configuration and builds the application
func NewApplication() (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	return New(cfg, logger)
}

// New wires every component for cfg
func New(cfg *config.Config, logger *slog.Logger) (*Application, error) {
	logger.Info("Application starting",
		slog.String("name", config.AppName),
		slog.String("version", config.AppVersion))

	paths := config.NewPaths(cfg.Paths)
	if err := paths.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("failed to ensure directories: %w", err)
	}
	paths.LogPathResolution(logger)

	otelProviders, err := infrastructure.InitializeOTel(infrastructure.OTelConfigFrom(cfg.Metrics), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}
	metrics, err := infrastructure.CreateBusinessMetrics(otelProviders.Meter)
	if err != nil {
		return nil, fmt.Errorf("failed to create business metrics: %w", err)
	}

	app := &Application{
		Config:        cfg,
		Paths:         paths,
		Logger:        logger,
		OTelProviders: otelProviders,
		Metrics:       metrics,
		errors:        apperrors.NewErrorHandler(logger, false),
		validator:     customMiddleware.NewValidator(logger),
	}

	if err := app.initializeServices(); err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	app.setupRouter()
	app.createServer()

	return app, nil
}

// initializeServices initializes all application services
func (a *Application) initializeServices() error {
	price, err := a.Config.UnitPrice()
	if err != nil {
		return err
	}

	hub := ws.NewHub(a.Logger)
	hub.Start()
	a.WebSocketHub = hub

	gate := services.NewGate(
		security.NewFingerprintGenerator(a.Logger),
		license.NewVerifier(a.Config.License.Secret),
		license.NewStore(a.Paths.LicenseFile, a.Logger),
		quota.NewLedger(a.Paths.QuotaFile, a.Logger),
		price,
		a.Logger,
		services.WithEvents(hub),
		services.WithMetrics(a.Metrics),
	)

	ffmpeg := media.NewFFmpeg(a.Config.Media, files.NewManager(a.Paths), a.Logger)
	resolver := media.NewResolver(media.LimitsFrom(a.Config.Media), ffmpeg, ffmpeg, a.Logger, a.Metrics)

	uploader := a.newUploader()
	asr := transcribe.NewClient(a.Config.ASR, nil, a.Logger)
	transcriber := func(apiKey string) media.Transcriber {
		// A nil *storage.Uploader must reach FileTranscriber as a nil interface.
		if uploader == nil {
			return asr.ForKey(nil, apiKey)
		}
		return asr.ForKey(uploader, apiKey)
	}

	conversion := services.NewConversionService(services.ConversionDeps{
		Gate:           gate,
		Detector:       media.NewDetector(a.Config.Media, a.Logger),
		Resolver:       resolver,
		Extractor:      ffmpeg,
		Transcriber:    transcriber,
		EbookReader:    document.ExtractEPUB,
		Writer:         document.NewGenerator(a.Paths.OutputDir, a.Logger),
		Events:         hub,
		FallbackAPIKey: a.Config.ASR.APIKey,
		Metrics:        a.Metrics,
	}, a.Logger)

	health := services.NewHealthService(
		config.AppVersion,
		a.Paths,
		uploader != nil,
		a.Config.ASR.APIKey != "",
		hub,
		a.Logger,
	)

	a.Services = &ServiceContainer{
		Gate:       gate,
		Activation: services.NewActivationService(gate, a.Config.Server.MaxActivationsPM, a.Logger),
		Conversion: conversion,
		Health:     health,
		Uploader:   uploader,
	}
	return nil
}

// newUploader returns nil when object storage is not configured. Conversions
// of media then fail with an upload error while ebooks keep working.
func (a *Application) newUploader() *storage.Uploader {
	ctx := context.Background()
	uploader, err := storage.NewUploader(ctx, a.Config.Storage, a.Logger)
	if errors.Is(err, storage.ErrNotConfigured) {
		a.Logger.Warn("Object storage not configured, media conversion disabled")
		return nil
	}
	if err != nil {
		a.Logger.Error("Failed to create object storage client", slog.String("error", err.Error()))
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, a.Config.Server.ReadTimeout)
	defer cancel()
	if err := uploader.EnsureBucket(ctx); err != nil {
		// The bucket may still exist; uploads report their own failures.
		a.Logger.Warn("Could not verify storage bucket", slog.String("error", err.Error()))
	}
	return uploader
}

// setupRouter configures the HTTP router with all routes
func (a *Application) setupRouter() {
	r := chi.NewRouter()

	// RequestID -> RealIP -> OTel -> Logger -> Recoverer
	r.Use(customMiddleware.RequestID)
	r.Use(middleware.RealIP)
	r.NotFound(a.errors.NotFound)
	r.MethodNotAllowed(a.errors.MethodNotAllowed)

	// The websocket route skips the wrapping middleware; upgrades need the raw writer.
	r.Get("/ws", ws.Handler(a.WebSocketHub, a.Logger))

	r.Group(func(r chi.Router) {
		r.Use(customMiddleware.NewOTelMiddleware(a.Metrics, a.Logger).Handler)
		r.Use(customMiddleware.StructuredLogger(a.Logger))
		r.Use(customMiddleware.Recoverer(a.errors))
		r.Use(customMiddleware.SecurityHeaders)

		a.setupAPIRoutes(r)
	})

	if a.OTelProviders.PrometheusHTTP != nil {
		r.Handle("/metrics", a.OTelProviders.PrometheusHTTP)
	}

	a.Router = r
}

// setupAPIRoutes configures API endpoints
func (a *Application) setupAPIRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(a.Config.Server.ReadTimeout))

			r.Mount("/system", handlers.NewHealthHandler(a.Services.Health, a.Logger).Routes())
			r.Mount("/license", handlers.NewLicenseHandler(
				a.Services.Activation, a.validator, a.errors, a.Logger).Routes())
		})

		// Conversions wait on ffmpeg and the recognition service.
		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(a.Config.Server.ConvertTimeout))

			r.Mount("/convert", handlers.NewConvertHandler(
				a.Services.Conversion, a.Paths.OutputDir, a.validator, a.errors, a.Logger).Routes())
		})
	})
}

// createServer creates the HTTP server
func (a *Application) createServer() {
	a.Server = &http.Server{
		Addr:         a.Address(),
		Handler:      a.Router,
		ReadTimeout:  a.Config.Server.ReadTimeout,
		WriteTimeout: a.Config.Server.WriteTimeout,
		IdleTimeout:  a.Config.Server.IdleTimeout,
	}
}

// Address returns host:port the server listens on
func (a *Application) Address() string {
	return net.JoinHostPort(a.Config.Server.Host, strconv.Itoa(a.Config.Server.Port))
}

// Start starts the application
func (a *Application) Start(ctx context.Context, cancel context.CancelFunc) error {
	a.Logger.InfoContext(ctx, "Starting application",
		slog.String("name", config.AppName),
		slog.String("version", config.AppVersion),
		slog.String("address", a.Address()),
		slog.String("level", a.Config.Logging.Level))

	ln, err := net.Listen("tcp", a.Server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", a.Server.Addr, err)
	}

	go func() {
		if err := a.Server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Logger.ErrorContext(ctx, "Server error", slog.String("error", err.Error()))
			// Signal shutdown through context instead of os.Exit
			cancel()
		}
	}()

	if err := a.performStartupHealthCheck(ctx); err != nil {
		a.Logger.WarnContext(ctx, "Startup health check warnings", slog.String("warnings", err.Error()))
	}

	a.Logger.InfoContext(ctx, "Application started successfully",
		slog.String("address", fmt.Sprintf("http://%s", a.Address())))
	return nil
}

// Stop gracefully stops the application
func (a *Application) Stop(ctx context.Context) error {
	a.Logger.InfoContext(ctx, "Shutting down application")

	shutdownCtx, cancel := context.WithTimeout(ctx, a.Config.Server.ShutdownTimeout)
	defer cancel()

	var errs []error
	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("server shutdown error: %w", err))
	}

	a.WebSocketHub.Stop()

	if a.OTelProviders != nil {
		if err := a.OTelProviders.Shutdown(shutdownCtx); err != nil {
			a.Logger.ErrorContext(ctx, "Error shutting down OpenTelemetry", slog.String("error", err.Error()))
		}
	}

	a.Logger.InfoContext(ctx, "Application shutdown complete")
	return errors.Join(errs...)
}

// Run runs the application until interrupted
func (a *Application) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	if err := a.Start(ctx, cancel); err != nil {
		return err
	}

	select {
	case <-sigChan:
		a.Logger.InfoContext(ctx, "Received interrupt signal")
	case <-ctx.Done():
		a.Logger.InfoContext(ctx, "Server stopped unexpectedly")
	}

	return a.Stop(context.Background())
}

// performStartupHealthCheck reports missing tools and unwritable directories
func (a *Application) performStartupHealthCheck(ctx context.Context) error {
	status := a.Services.Health.HealthCheck(ctx)
	if status.Status == "healthy" {
		a.Logger.InfoContext(ctx, "Startup health check passed")
		return nil
	}

	var errs []error
	for name, v := range status.Services {
		if h, ok := v.(services.ServiceHealth); ok && h.Status != "ready" {
			errs = append(errs, fmt.Errorf("%s: %s", name, h.Message))
		}
	}
	return errors.Join(errs...)
}
