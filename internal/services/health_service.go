package services

import (
	"context"
	"log/slog"
	"runtime"
	"time"
)

// HealthService reports process health and issuance readiness.
type HealthService struct {
	version   string
	buildTime string
	startTime time.Time
	logger    *slog.Logger

	// Readiness facts captured at startup. They describe configuration,
	// not live upstream state; the server never calls the provider just
	// to answer a health probe.
	signerConfigured  bool
	webhookConfigured bool
	devMode           bool
}

// HealthStatus is the health endpoint response.
type HealthStatus struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Version   string            `json:"version"`
	Uptime    string            `json:"uptime"`
	Runtime   map[string]string `json:"runtime,omitempty"`
	Issuance  IssuanceReadiness `json:"issuance"`
}

// IssuanceReadiness summarizes whether each issuance path can succeed.
type IssuanceReadiness struct {
	SignerConfigured  bool `json:"signer_configured"`
	WebhookConfigured bool `json:"webhook_configured"`
	DevMode           bool `json:"dev_mode"`
}

// NewHealthService creates a health service. version and buildTime come
// from the binary's build info.
func NewHealthService(version, buildTime string, signerConfigured, webhookConfigured, devMode bool, logger *slog.Logger) *HealthService {
	if logger == nil {
		logger = slog.Default()
	}
	return &HealthService{
		version:           version,
		buildTime:         buildTime,
		startTime:         time.Now(),
		logger:            logger.With(slog.String("service", "health")),
		signerConfigured:  signerConfigured,
		webhookConfigured: webhookConfigured,
		devMode:           devMode,
	}
}

// GetHealth returns the current health snapshot. Status is "degraded"
// when the signing key is missing, since no path can issue licenses.
func (s *HealthService) GetHealth(ctx context.Context) *HealthStatus {
	status := "healthy"
	if !s.signerConfigured {
		status = "degraded"
	}

	return &HealthStatus{
		Status:    status,
		Timestamp: time.Now().UTC(),
		Version:   s.version,
		Uptime:    time.Since(s.startTime).Round(time.Second).String(),
		Runtime: map[string]string{
			"go_version": runtime.Version(),
			"os":         runtime.GOOS,
			"arch":       runtime.GOARCH,
		},
		Issuance: IssuanceReadiness{
			SignerConfigured:  s.signerConfigured,
			WebhookConfigured: s.webhookConfigured,
			DevMode:           s.devMode,
		},
	}
}
