package app

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"golang.org/x/sync/errgroup"

	"github.com/MyysticOwl/undergrowth-website/internal/config"
	"github.com/MyysticOwl/undergrowth-website/internal/infrastructure"
	"github.com/MyysticOwl/undergrowth-website/internal/lemonsqueezy"
	"github.com/MyysticOwl/undergrowth-website/internal/license"
	"github.com/MyysticOwl/undergrowth-website/internal/mailer"
	custommw "github.com/MyysticOwl/undergrowth-website/internal/middleware"
	"github.com/MyysticOwl/undergrowth-website/internal/services"
	handlers "github.com/MyysticOwl/undergrowth-website/internal/transport/http"
)

const (
	Version = "1.0.0"
	AppName = "Undergrowth License Server"
)

var (
	// BuildTime is set at compile time via -ldflags.
	BuildTime = time.Now().Format(time.RFC3339)
	// BuildID is a unique identifier for this build.
	BuildID = generateBuildID()
)

func generateBuildID() string {
	h := sha256.New()
	h.Write([]byte(Version))
	h.Write([]byte(time.Now().Format("2006-01-02")))
	return fmt.Sprintf("%x", h.Sum(nil))[:12]
}

// Application is the dependency container for the license server.
type Application struct {
	Config        *config.Config
	Router        *chi.Mux
	Server        *http.Server
	Logger        *slog.Logger
	OTelProviders *infrastructure.OTelProviders
	Services      *ServiceContainer
}

// ServiceContainer holds all application services.
type ServiceContainer struct {
	Issuance services.IssuanceService
	Health   *services.HealthService
}

// NewApplication loads configuration and wires every dependency. A
// missing signing key is logged but not fatal: the server starts in a
// degraded state so health checks can report the problem.
func NewApplication() (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("initializing logger: %w", err)
	}

	logger.Info("application starting",
		slog.String("name", AppName),
		slog.String("version", Version),
		slog.String("build_id", BuildID),
		slog.Bool("dev_mode", cfg.DevMode()))

	otelProviders, err := infrastructure.InitializeOTel(infrastructure.DefaultOTelConfig(), logger)
	if err != nil {
		return nil, fmt.Errorf("initializing OpenTelemetry: %w", err)
	}

	codec, err := license.NewCodec(cfg.Secrets.KeyDerivationSecret, cfg.Secrets.NonceSeed)
	if err != nil {
		return nil, fmt.Errorf("initializing payload codec: %w", err)
	}

	var signer *license.Signer
	if cfg.Secrets.SigningKeyHex == "" {
		logger.Error("signing key not configured; license issuance will fail until UG_SECRETS_PRIVATE_KEY_HEX is set")
	} else {
		signer, err = license.NewSigner(cfg.Secrets.SigningKeyHex)
		if err != nil {
			return nil, fmt.Errorf("loading signing key: %w", err)
		}
	}

	issuanceMetrics, err := infrastructure.CreateIssuanceMetrics(otelProviders.Meter)
	if err != nil {
		return nil, fmt.Errorf("creating issuance metrics: %w", err)
	}

	verifier := lemonsqueezy.NewClient(cfg.Upstream.BaseURL, cfg.Upstream.APIKey, cfg.Upstream.RequestTimeout)
	mailClient := mailer.NewClient(cfg.Mail.BaseURL, cfg.Mail.APIKey, cfg.Mail.FromAddress, cfg.Mail.RequestTimeout)

	issuanceService := services.NewIssuanceService(
		codec,
		signer,
		verifier,
		mailClient,
		cfg.Secrets.WebhookSecret,
		cfg.DevMode(),
		logger,
		issuanceMetrics,
	)
	healthService := services.NewHealthService(
		Version, BuildTime,
		signer != nil,
		cfg.Secrets.WebhookSecret != "",
		cfg.DevMode(),
		logger,
	)

	app := &Application{
		Config:        cfg,
		Logger:        logger,
		OTelProviders: otelProviders,
		Services: &ServiceContainer{
			Issuance: issuanceService,
			Health:   healthService,
		},
	}

	app.setupRouter()
	app.createServer()
	return app, nil
}

func (a *Application) setupRouter() {
	r := chi.NewRouter()

	// Middleware ordering: RequestID → RealIP → Tracing → Logger →
	// Recoverer → SecurityHeaders → RateLimiter.
	r.Use(custommw.RequestID)
	r.Use(custommw.RealIP)

	r.Group(func(r chi.Router) {
		if a.OTelProviders != nil {
			tracing, err := custommw.NewTracing(a.OTelProviders)
			if err != nil {
				a.Logger.Error("failed to create tracing middleware", slog.String("error", err.Error()))
			} else {
				r.Use(tracing.Handler)
			}
		}

		r.Use(custommw.StructuredLogger(a.Logger))
		r.Use(custommw.Recoverer(a.Logger))
		r.Use(custommw.SecurityHeaders)

		if a.Config.Security.RateLimit.Enabled {
			r.Use(custommw.NewRateLimiter(
				a.Config.Security.RateLimit.RPS,
				a.Config.Security.RateLimit.Burst,
				a.Logger,
			).Handler)
		}

		a.setupAPIRoutes(r)
	})

	// Prometheus endpoint stays outside the middleware group.
	if a.OTelProviders != nil && a.OTelProviders.PrometheusHTTP != nil {
		r.Handle("/metrics", a.OTelProviders.PrometheusHTTP)
	}

	a.Router = r
}

func (a *Application) setupAPIRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))
		r.Use(custommw.Timeout(a.Config.Server.ReadTimeout, a.Logger))

		healthHandler := handlers.NewHealthHandler(a.Services.Health, Version, BuildTime, a.Logger)
		r.Get("/health", healthHandler.Health)
		r.Get("/health/live", healthHandler.Liveness)
		r.Get("/health/ready", healthHandler.Readiness)
		r.Get("/version", healthHandler.Version)

		licenseHandler := handlers.NewLicenseHandler(a.Services.Issuance, a.Logger)
		r.Mount("/license", licenseHandler.Routes())

		webhookHandler := handlers.NewWebhookHandler(a.Services.Issuance, a.Logger)
		r.Mount("/webhook", webhookHandler.Routes())
	})
}

// createServer creates the HTTP server.
func (a *Application) createServer() {
	a.Server = &http.Server{
		Addr:           fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:        a.Router,
		ReadTimeout:    a.Config.Server.ReadTimeout,
		WriteTimeout:   a.Config.Server.WriteTimeout,
		IdleTimeout:    a.Config.Server.IdleTimeout,
		MaxHeaderBytes: a.Config.Server.MaxHeaderBytes,
	}
}

// Run serves until the context is cancelled or an interrupt arrives,
// then shuts down gracefully.
func (a *Application) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.Logger.InfoContext(ctx, "server listening",
			slog.String("address", a.Server.Addr),
			slog.Int("port", a.Config.Server.Port))
		if err := a.Server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		return a.Stop(context.Background())
	})

	return g.Wait()
}

// Stop gracefully stops the server and flushes telemetry.
func (a *Application) Stop(ctx context.Context) error {
	a.Logger.InfoContext(ctx, "shutting down")

	shutdownCtx, cancel := context.WithTimeout(ctx, a.Config.Server.ShutdownTimeout)
	defer cancel()

	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	if a.OTelProviders != nil {
		if err := a.OTelProviders.Shutdown(shutdownCtx); err != nil {
			a.Logger.ErrorContext(ctx, "error shutting down OpenTelemetry", slog.String("error", err.Error()))
		}
	}

	infrastructure.CloseLogFile()
	a.Logger.InfoContext(ctx, "shutdown complete")
	return nil
}
