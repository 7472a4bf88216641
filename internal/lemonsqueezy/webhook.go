package lemonsqueezy

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// SignatureHeader carries the hex HMAC digest on webhook deliveries.
const SignatureHeader = "X-Signature"

// EventOrderCreated is the only webhook event that triggers issuance.
const EventOrderCreated = "order_created"

// WebhookEvent is the subset of the provider's webhook envelope that
// issuance needs. Unknown fields are ignored on decode.
type WebhookEvent struct {
	Meta struct {
		EventName string `json:"event_name"`
	} `json:"meta"`
	Data struct {
		ID         string `json:"id"`
		Attributes struct {
			UserEmail      string `json:"user_email"`
			FirstOrderItem struct {
				LicenseKey  string `json:"license_key"`
				VariantName string `json:"variant_name"`
			} `json:"first_order_item"`
		} `json:"attributes"`
	} `json:"data"`
}

// ParseWebhookEvent decodes a raw webhook body. The raw bytes must be the
// exact bytes the signature was verified over; parse only after
// VerifyWebhookSignature has accepted them.
func ParseWebhookEvent(raw []byte) (*WebhookEvent, error) {
	var ev WebhookEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		return nil, fmt.Errorf("decoding webhook event: %w", err)
	}
	return &ev, nil
}

// LicenseKey returns the order's license key, falling back to a
// deterministic "LS-<order id>" placeholder when the order carried no
// key (stores without license keys enabled still get a stable value).
func (ev *WebhookEvent) LicenseKey() string {
	if k := ev.Data.Attributes.FirstOrderItem.LicenseKey; k != "" {
		return k
	}
	return "LS-" + ev.Data.ID
}

// VariantName returns the purchased variant name, or "Unknown" when the
// order item did not name one.
func (ev *WebhookEvent) VariantName() string {
	if v := ev.Data.Attributes.FirstOrderItem.VariantName; v != "" {
		return v
	}
	return "Unknown"
}

// VerifyWebhookSignature checks the X-Signature header value against an
// HMAC-SHA256 hex digest of the raw request body. The comparison is
// constant time. An empty secret never verifies.
func VerifyWebhookSignature(rawBody []byte, signatureHex, secret string) bool {
	if secret == "" || signatureHex == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(rawBody)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signatureHex))
}
