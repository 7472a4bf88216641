package lemonsqueezy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	apperrors "github.com/MyysticOwl/undergrowth-website/internal/errors"
	"github.com/MyysticOwl/undergrowth-website/internal/infrastructure"
)

// VerificationResult is what the issuance flow needs to know about a
// purchase after the provider has accepted an activation request.
type VerificationResult struct {
	// CustomerEmail is the purchaser email on record with the provider.
	CustomerEmail string
	// VariantName is the product variant the key was sold under. Empty
	// when the provider response carries no variant.
	VariantName string
	// Status is the provider-side key status ("active", "expired", ...).
	Status string
	// ExpiresAt is the provider expiry timestamp in RFC 3339 form, or
	// empty for perpetual keys.
	ExpiresAt string
	// InstanceID identifies the activation instance created by this
	// request, when the provider returned one.
	InstanceID string
}

// Client calls the Lemon Squeezy license API over HTTP.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient builds a provider client. baseURL has no trailing slash;
// apiKey may be empty, in which case requests are sent unauthenticated
// (the license activation endpoint accepts that for store-scoped keys).
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type activateRequest struct {
	LicenseKey   string `json:"license_key"`
	InstanceName string `json:"instance_name"`
}

type activateResponse struct {
	Activated  bool   `json:"activated"`
	Valid      bool   `json:"valid"`
	Error      string `json:"error"`
	LicenseKey struct {
		Status    string `json:"status"`
		ExpiresAt string `json:"expires_at"`
	} `json:"license_key"`
	Instance struct {
		ID string `json:"id"`
	} `json:"instance"`
	Meta struct {
		CustomerEmail string `json:"customer_email"`
		VariantName   string `json:"variant_name"`
	} `json:"meta"`
}

// VerifyPurchase activates the license key against the provider and
// reports the purchase details. instanceHint names the activation
// instance on the provider's side; it has no effect on validity.
//
// Errors are mapped onto the issuance sentinels so callers can translate
// them without knowing provider specifics: a declined key reports
// apperrors.ErrLicenseKeyRejected, a key the provider knows but will not
// activate reports ErrLicenseKeyInactive or ErrLicenseKeyExpired, and
// transport failures report ErrUpstreamUnavailable.
func (c *Client) VerifyPurchase(ctx context.Context, licenseKey, instanceHint string) (*VerificationResult, error) {
	log := infrastructure.WithComponent(infrastructure.LoggerWithContext(ctx), "lemonsqueezy")

	body, err := json.Marshal(activateRequest{
		LicenseKey:   licenseKey,
		InstanceName: instanceHint,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding activation request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/licenses/activate", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building activation request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Warn("license activation request failed", "error", err)
		return nil, fmt.Errorf("%w: %v", apperrors.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: reading activation response: %v", apperrors.ErrUpstreamUnavailable, err)
	}

	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("%w: provider returned %d", apperrors.ErrUpstreamUnavailable, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		// Best effort: the body may not be JSON at all (proxy error
		// page), but a 4xx is still the provider declining the key.
		var declined activateResponse
		_ = json.Unmarshal(raw, &declined)
		log.Info("license key rejected by provider",
			"status", resp.StatusCode,
			"provider_error", declined.Error)
		return nil, fmt.Errorf("%w: %s", apperrors.ErrLicenseKeyRejected, providerError(declined.Error))
	}

	var decoded activateResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		// The provider answered but not with the contract we expect.
		log.Warn("unparseable activation response",
			"status", resp.StatusCode)
		return nil, fmt.Errorf("%w: decoding activation response: %v", apperrors.ErrUpstreamUnavailable, err)
	}

	if decoded.LicenseKey.Status == "expired" {
		return nil, apperrors.ErrLicenseKeyExpired
	}
	if !decoded.Activated && !decoded.Valid {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrLicenseKeyInactive, providerError(decoded.Error))
	}

	return &VerificationResult{
		CustomerEmail: decoded.Meta.CustomerEmail,
		VariantName:   decoded.Meta.VariantName,
		Status:        decoded.LicenseKey.Status,
		ExpiresAt:     decoded.LicenseKey.ExpiresAt,
		InstanceID:    decoded.Instance.ID,
	}, nil
}

func providerError(msg string) string {
	if msg == "" {
		return "activation declined"
	}
	return msg
}
