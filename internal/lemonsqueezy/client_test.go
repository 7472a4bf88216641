package lemonsqueezy

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/MyysticOwl/undergrowth-website/internal/errors"
)

func TestClientVerifyPurchase(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		response   string
		wantErr    error
		wantResult *VerificationResult
	}{
		{
			name:   "activated key",
			status: http.StatusOK,
			response: `{
				"activated": true,
				"license_key": {"status": "active", "expires_at": "2027-03-01T00:00:00.000000Z"},
				"instance": {"id": "inst-123"},
				"meta": {"customer_email": "buyer@example.com", "variant_name": "Undergrowth Pro"}
			}`,
			wantResult: &VerificationResult{
				CustomerEmail: "buyer@example.com",
				VariantName:   "Undergrowth Pro",
				Status:        "active",
				ExpiresAt:     "2027-03-01T00:00:00.000000Z",
				InstanceID:    "inst-123",
			},
		},
		{
			name:   "already activated but still valid",
			status: http.StatusOK,
			response: `{
				"activated": false,
				"valid": true,
				"error": "license key already activated",
				"license_key": {"status": "active"},
				"meta": {"customer_email": "buyer@example.com", "variant_name": "Undergrowth Team"}
			}`,
			wantResult: &VerificationResult{
				CustomerEmail: "buyer@example.com",
				VariantName:   "Undergrowth Team",
				Status:        "active",
			},
		},
		{
			name:     "rejected key",
			status:   http.StatusNotFound,
			response: `{"error": "license_key not found"}`,
			wantErr:  apperrors.ErrLicenseKeyRejected,
		},
		{
			name:     "rejected key with non-JSON body",
			status:   http.StatusNotFound,
			response: `<html>not found</html>`,
			wantErr:  apperrors.ErrLicenseKeyRejected,
		},
		{
			name:     "inactive key",
			status:   http.StatusOK,
			response: `{"activated": false, "valid": false, "error": "deactivated"}`,
			wantErr:  apperrors.ErrLicenseKeyInactive,
		},
		{
			name:     "expired key",
			status:   http.StatusOK,
			response: `{"activated": false, "valid": false, "license_key": {"status": "expired"}}`,
			wantErr:  apperrors.ErrLicenseKeyExpired,
		},
		{
			name:     "provider outage",
			status:   http.StatusBadGateway,
			response: `{"error": "upstream exploded"}`,
			wantErr:  apperrors.ErrUpstreamUnavailable,
		},
		{
			name:     "garbage response body",
			status:   http.StatusOK,
			response: `<html>maintenance</html>`,
			wantErr:  apperrors.ErrUpstreamUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodPost, r.Method)
				assert.Equal(t, "/licenses/activate", r.URL.Path)
				assert.Equal(t, "Bearer test-api-key", r.Header.Get("Authorization"))

				var body activateRequest
				require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
				assert.Equal(t, "KEY-ABC", body.LicenseKey)
				assert.Equal(t, "workstation-1", body.InstanceName)

				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.response))
			}))
			defer srv.Close()

			client := NewClient(srv.URL, "test-api-key", 5*time.Second)
			result, err := client.VerifyPurchase(context.Background(), "KEY-ABC", "workstation-1")

			if tt.wantErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, result)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantResult, result)
		})
	}
}

func TestClientVerifyPurchaseNetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // closed before the request is made

	client := NewClient(srv.URL, "", time.Second)
	_, err := client.VerifyPurchase(context.Background(), "KEY-ABC", "hint")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrUpstreamUnavailable)
}

func TestClientOmitsAuthorizationWithoutKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"activated": true, "license_key": {"status": "active"}, "meta": {}}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "", time.Second)
	_, err := client.VerifyPurchase(context.Background(), "KEY-ABC", "hint")
	require.NoError(t, err)
}
