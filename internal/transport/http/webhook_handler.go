package http

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	apperrors "github.com/MyysticOwl/undergrowth-website/internal/errors"
	"github.com/MyysticOwl/undergrowth-website/internal/infrastructure"
	"github.com/MyysticOwl/undergrowth-website/internal/lemonsqueezy"
	"github.com/MyysticOwl/undergrowth-website/internal/middleware"
	"github.com/MyysticOwl/undergrowth-website/internal/services"
)

// Provider webhook payloads stay well under this.
const maxWebhookBody = 1 << 20

// WebhookHandler serves payment-provider webhook deliveries.
type WebhookHandler struct {
	service services.IssuanceService
	logger  *slog.Logger
}

// NewWebhookHandler creates a new webhook handler.
func NewWebhookHandler(service services.IssuanceService, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{
		service: service,
		logger:  logger.With(slog.String("handler", "webhook")),
	}
}

// Routes returns a chi router for webhook endpoints.
func (h *WebhookHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/lemonsqueezy", h.HandleLemonSqueezy)
	return r
}

// WebhookAck acknowledges a processed order.
type WebhookAck struct {
	Success bool   `json:"success"`
	Email   string `json:"email"`
	Edition string `json:"edition"`
}

// HandleLemonSqueezy handles POST /api/webhook/lemonsqueezy. The raw body
// bytes are read before any parsing: the delivery signature covers them
// exactly as sent.
func (h *WebhookHandler) HandleLemonSqueezy(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	reqID := middleware.GetRequestID(ctx)
	tracer := otel.Tracer("webhook-handler")

	ctx, span := tracer.Start(ctx, "webhook_handler.lemonsqueezy",
		trace.WithAttributes(
			attribute.String("http.method", r.Method),
			attribute.String("http.route", "/api/webhook/lemonsqueezy"),
			attribute.String("request_id", reqID),
		),
	)
	defer span.End()

	traceID := infrastructure.GetTraceID(ctx)

	rawBody, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to read webhook body",
			slog.String("request_id", reqID),
			slog.String("error", err.Error()),
		)
		span.RecordError(err)
		_ = render.Render(w, r, apperrors.MapIssuanceError(err, traceID))
		return
	}

	outcome, err := h.service.ProcessWebhook(ctx, rawBody, r.Header.Get(lemonsqueezy.SignatureHeader))
	if err != nil {
		span.RecordError(err)
		h.logger.WarnContext(ctx, "webhook processing failed",
			slog.String("request_id", reqID),
			slog.String("error", err.Error()),
		)
		_ = render.Render(w, r, apperrors.MapIssuanceError(err, traceID))
		return
	}

	if outcome.Ignored {
		span.SetAttributes(attribute.String("webhook.ignored_event", outcome.EventName))
		render.Status(r, http.StatusOK)
		render.JSON(w, r, map[string]string{"message": "Event ignored"})
		return
	}

	span.SetAttributes(
		attribute.String("license.edition", string(outcome.Edition)),
		attribute.String("webhook.event", outcome.EventName),
	)
	h.logger.InfoContext(ctx, "webhook order processed",
		slog.String("request_id", reqID),
		slog.String("edition", string(outcome.Edition)),
	)

	render.Status(r, http.StatusOK)
	render.JSON(w, r, WebhookAck{
		Success: true,
		Email:   outcome.Email,
		Edition: string(outcome.Edition),
	})
}
