package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	apperrors "github.com/MyysticOwl/undergrowth-website/internal/errors"
	"github.com/MyysticOwl/undergrowth-website/internal/infrastructure"
	"github.com/MyysticOwl/undergrowth-website/internal/middleware"
	"github.com/MyysticOwl/undergrowth-website/internal/services"
)

// Request bodies are small JSON documents; anything bigger is abuse.
const maxActivationBody = 64 << 10

var validate = validator.New()

// LicenseHandler serves the manual activation endpoint.
type LicenseHandler struct {
	service services.IssuanceService
	logger  *slog.Logger
}

// NewLicenseHandler creates a new license handler.
func NewLicenseHandler(service services.IssuanceService, logger *slog.Logger) *LicenseHandler {
	return &LicenseHandler{
		service: service,
		logger:  logger.With(slog.String("handler", "license")),
	}
}

// ActivationRequest is the manual activation payload.
type ActivationRequest struct {
	Email      string `json:"email" validate:"required,email"`
	LicenseKey string `json:"license_key" validate:"required"`
	MachineID  string `json:"machine_id,omitempty"`
}

// Routes returns a chi router for license endpoints.
func (h *LicenseHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/activate", h.Activate)
	return r
}

// decodeActivationRequest parses the request body. Some clients send the
// JSON document double-encoded as a JSON string; both forms are accepted,
// matching the previous issuer's behavior.
func decodeActivationRequest(r *http.Request, req *ActivationRequest) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxActivationBody))
	if err != nil {
		return fmt.Errorf("reading request body: %w", err)
	}

	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var inner string
		if err := json.Unmarshal(trimmed, &inner); err != nil {
			return fmt.Errorf("%w: malformed request body", apperrors.ErrMissingFields)
		}
		trimmed = []byte(inner)
	}
	if len(trimmed) == 0 {
		return apperrors.ErrMissingFields
	}

	if err := json.Unmarshal(trimmed, req); err != nil {
		return fmt.Errorf("%w: malformed request body", apperrors.ErrMissingFields)
	}
	return nil
}

// validateActivationRequest maps validator failures onto the issuance
// sentinels so the response carries the right error code.
func validateActivationRequest(req *ActivationRequest) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		for _, fe := range fieldErrs {
			if fe.Field() == "Email" && fe.Tag() == "email" {
				return fmt.Errorf("%w: %q", apperrors.ErrInvalidEmailFormat, req.Email)
			}
		}
	}
	return apperrors.ErrMissingFields
}

// Activate handles POST /api/license/activate. On success the response
// body is the license file itself, served as a download.
func (h *LicenseHandler) Activate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	reqID := middleware.GetRequestID(ctx)
	tracer := otel.Tracer("license-handler")
	start := time.Now()

	ctx, span := tracer.Start(ctx, "license_handler.activate",
		trace.WithAttributes(
			attribute.String("http.method", r.Method),
			attribute.String("http.route", "/api/license/activate"),
			attribute.String("request_id", reqID),
		),
	)
	defer span.End()

	traceID := infrastructure.GetTraceID(ctx)

	var req ActivationRequest
	if err := decodeActivationRequest(r, &req); err != nil {
		h.logger.WarnContext(ctx, "activation request rejected at parse",
			slog.String("request_id", reqID),
			slog.String("error", err.Error()),
		)
		span.RecordError(err)
		_ = render.Render(w, r, apperrors.MapIssuanceError(err, traceID))
		return
	}
	if err := validateActivationRequest(&req); err != nil {
		span.RecordError(err)
		_ = render.Render(w, r, apperrors.MapIssuanceError(err, traceID))
		return
	}

	issued, err := h.service.ActivateManual(ctx, services.ActivationRequest{
		Email:      req.Email,
		LicenseKey: req.LicenseKey,
		MachineID:  req.MachineID,
	})
	latency := time.Since(start)
	span.SetAttributes(
		attribute.Int64("request.latency_ms", latency.Milliseconds()),
		attribute.Bool("request.success", err == nil),
	)

	if err != nil {
		span.RecordError(err)
		h.logger.ErrorContext(ctx, "activation failed",
			slog.String("request_id", reqID),
			slog.Duration("latency", latency),
			slog.String("error", err.Error()),
		)
		_ = render.Render(w, r, apperrors.MapIssuanceError(err, traceID))
		return
	}

	span.SetAttributes(attribute.String("license.edition", string(issued.Edition)))
	h.logger.InfoContext(ctx, "activation completed",
		slog.String("request_id", reqID),
		slog.String("edition", string(issued.Edition)),
		slog.Duration("latency", latency),
	)

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", issued.Filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(issued.Content)
}
