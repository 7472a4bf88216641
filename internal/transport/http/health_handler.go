package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/render"

	"github.com/MyysticOwl/undergrowth-website/internal/services"
)

// HealthHandler serves health and version endpoints.
type HealthHandler struct {
	service   *services.HealthService
	version   string
	buildTime string
	logger    *slog.Logger
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(service *services.HealthService, version, buildTime string, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{
		service:   service,
		version:   version,
		buildTime: buildTime,
		logger:    logger.With(slog.String("handler", "health")),
	}
}

// Health handles GET /api/health.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	status := h.service.GetHealth(r.Context())

	code := http.StatusOK
	if status.Status != "healthy" {
		code = http.StatusServiceUnavailable
	}
	render.Status(r, code)
	render.JSON(w, r, status)
}

// Liveness handles GET /api/health/live. The process being able to
// answer is the whole check.
func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]string{"status": "alive"})
}

// Readiness handles GET /api/health/ready. The server is ready when it
// can actually issue licenses.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	status := h.service.GetHealth(r.Context())
	if !status.Issuance.SignerConfigured {
		render.Status(r, http.StatusServiceUnavailable)
		render.JSON(w, r, map[string]string{"status": "not_ready", "reason": "signing key not configured"})
		return
	}
	render.JSON(w, r, map[string]string{"status": "ready"})
}

// VersionInfo is the version endpoint response.
type VersionInfo struct {
	Version   string    `json:"version"`
	BuildTime string    `json:"build_time,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Version handles GET /api/version.
func (h *HealthHandler) Version(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, VersionInfo{
		Version:   h.version,
		BuildTime: h.buildTime,
		Timestamp: time.Now().UTC(),
	})
}
