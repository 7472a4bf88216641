package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/render"
)

// Issuance-specific sentinel errors. Handlers and the issuance service wrap
// these with %w so the boundary can classify failures without string
// matching.
var (
	// Client input
	ErrMissingFields      = errors.New("required fields missing")
	ErrInvalidEmailFormat = errors.New("invalid email format")

	// Authentication
	ErrWebhookSignature = errors.New("webhook signature verification failed")
	ErrEmailMismatch    = errors.New("email does not match license owner")

	// Upstream verification
	ErrLicenseKeyRejected = errors.New("license key invalid or incorrect")
	ErrLicenseKeyInactive = errors.New("license key not active")
	ErrLicenseKeyExpired  = errors.New("license key expired")
	ErrUpstreamUnavailable = errors.New("purchase verification unavailable")

	// Server configuration. Distinct from every other class: it means an
	// operator mistake, not a bad request, and is logged as such.
	ErrServerConfiguration = errors.New("server configuration error")
)

// ProblemDetails implements RFC 7807 Problem Details for HTTP APIs
type ProblemDetails struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`

	// Additional fields for extensibility
	Extensions map[string]interface{} `json:"-"`
}

// Render implements the render.Renderer interface
func (pd *ProblemDetails) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, pd.Status)
	return nil
}

// MarshalJSON custom marshaler to include extensions
func (pd *ProblemDetails) MarshalJSON() ([]byte, error) {
	data := make(map[string]interface{})

	data["type"] = pd.Type
	data["title"] = pd.Title
	data["status"] = pd.Status

	if pd.Detail != "" {
		data["detail"] = pd.Detail
	}
	if pd.Instance != "" {
		data["instance"] = pd.Instance
	}

	for k, v := range pd.Extensions {
		data[k] = v
	}

	return json.Marshal(data)
}

// NewProblemDetails creates a new RFC 7807 compliant error
func NewProblemDetails(status int, problemType, title, detail, instance string) *ProblemDetails {
	return &ProblemDetails{
		Type:       problemType,
		Title:      title,
		Status:     status,
		Detail:     detail,
		Instance:   instance,
		Extensions: make(map[string]interface{}),
	}
}

// WithExtension adds an extension field to the problem details
func (pd *ProblemDetails) WithExtension(key string, value interface{}) *ProblemDetails {
	pd.Extensions[key] = value
	return pd
}

// MapIssuanceError maps issuance domain errors to HTTP problem details.
// Every rejection class produces a distinct, enumerable error_code.
func MapIssuanceError(err error, traceID string) render.Renderer {
	instance := fmt.Sprintf("/api/license#trace-%s", traceID)

	switch {
	case errors.Is(err, ErrMissingFields):
		return NewProblemDetails(
			http.StatusBadRequest,
			"/errors/missing-fields",
			"Missing Required Fields",
			"Email and license key are required.",
			instance,
		).WithExtension("trace_id", traceID).
			WithExtension("error_code", "MISSING_FIELDS")

	case errors.Is(err, ErrInvalidEmailFormat):
		return NewProblemDetails(
			http.StatusBadRequest,
			"/errors/invalid-email",
			"Invalid Email",
			"The provided email address is not valid.",
			instance,
		).WithExtension("trace_id", traceID).
			WithExtension("error_code", "INVALID_EMAIL")

	case errors.Is(err, ErrWebhookSignature):
		return NewProblemDetails(
			http.StatusUnauthorized,
			"/errors/invalid-signature",
			"Invalid Signature",
			"The webhook delivery signature could not be verified.",
			instance,
		).WithExtension("trace_id", traceID).
			WithExtension("error_code", "INVALID_SIGNATURE")

	case errors.Is(err, ErrEmailMismatch):
		return NewProblemDetails(
			http.StatusForbidden,
			"/errors/email-mismatch",
			"Email Mismatch",
			"The email provided does not match the license owner.",
			instance,
		).WithExtension("trace_id", traceID).
			WithExtension("error_code", "EMAIL_MISMATCH")

	case errors.Is(err, ErrLicenseKeyRejected):
		return NewProblemDetails(
			http.StatusBadRequest,
			"/errors/invalid-license-key",
			"Invalid License Key",
			"Invalid or incorrect license key.",
			instance,
		).WithExtension("trace_id", traceID).
			WithExtension("error_code", "INVALID_LICENSE_KEY")

	case errors.Is(err, ErrLicenseKeyInactive):
		return NewProblemDetails(
			http.StatusForbidden,
			"/errors/license-key-inactive",
			"License Key Not Active",
			"The license key is not active or invalid.",
			instance,
		).WithExtension("trace_id", traceID).
			WithExtension("error_code", "LICENSE_KEY_INACTIVE")

	case errors.Is(err, ErrLicenseKeyExpired):
		return NewProblemDetails(
			http.StatusForbidden,
			"/errors/license-key-expired",
			"License Key Expired",
			"The license key has expired.",
			instance,
		).WithExtension("trace_id", traceID).
			WithExtension("error_code", "LICENSE_KEY_EXPIRED")

	case errors.Is(err, ErrUpstreamUnavailable):
		return NewProblemDetails(
			http.StatusServiceUnavailable,
			"/errors/upstream-unavailable",
			"Verification Unavailable",
			"Unable to reach the purchase verification service. Please try again.",
			instance,
		).WithExtension("trace_id", traceID).
			WithExtension("error_code", "UPSTREAM_UNAVAILABLE")

	case errors.Is(err, ErrServerConfiguration):
		return NewProblemDetails(
			http.StatusInternalServerError,
			"/errors/server-misconfigured",
			"Server Configuration Error",
			"The server is not configured for license issuance. Contact the operator.",
			instance,
		).WithExtension("trace_id", traceID).
			WithExtension("error_code", "SERVER_MISCONFIGURED")

	default:
		return NewProblemDetails(
			http.StatusInternalServerError,
			"/errors/internal-error",
			"Internal Server Error",
			"An unexpected error occurred while processing your request.",
			instance,
		).WithExtension("trace_id", traceID).
			WithExtension("error_code", "INTERNAL_ERROR")
	}
}
