package license

import (
	"bytes"
	"encoding/json"
)

// Header is the cleartext portion of a license artifact. It is authenticated
// by the detached signature but not encrypted, so support tooling can inspect
// it. Field order matters: the signature covers the compact serialization of
// this struct, and the on-device validator re-serializes in the same order.
type Header struct {
	Version       int     `json:"version"`
	Edition       Edition `json:"edition"`
	Email         string  `json:"email"`
	Issued        string  `json:"issued"`  // YYYY-MM-DD, UTC
	Expires       string  `json:"expires"` // YYYY-MM-DD, UTC
	LicenseKey    string  `json:"license_key"`
	InstanceID    string  `json:"instance_id,omitempty"`
	LastValidated string  `json:"last_validated"` // RFC 3339 issuance timestamp
	VariantName   string  `json:"variant_name"`
}

// PayloadMetadata tags a payload with issuance provenance.
type PayloadMetadata struct {
	Source string `json:"source"`
}

// Payload is the confidential portion of a license artifact, stored only as
// ciphertext. Features are fully determined by the header's edition;
// Entitlements is reserved for per-purchase add-ons and stays empty in the
// base flow but is always serialized.
type Payload struct {
	Features     []string        `json:"features"`
	Entitlements []string        `json:"entitlements"`
	Metadata     PayloadMetadata `json:"metadata"`
}

// Artifact is the complete license file: cleartext header, encrypted payload
// and detached signature. The top-level key names are the interop contract
// with the on-device validator and must not change.
type Artifact struct {
	Header    Header `json:"header"`
	Payload   string `json:"payload"`
	Signature string `json:"signature"`
}

// marshalCompact serializes v without HTML escaping or a trailing newline.
// The signature pre-image must match what a JSON.stringify-style serializer
// produces, so the default Go escaping of <, > and & is disabled.
func marshalCompact(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// MarshalHeader returns the exact header bytes the signature covers.
func MarshalHeader(h Header) ([]byte, error) {
	return marshalCompact(h)
}

// Encode serializes the artifact in its on-disk form: pretty-printed UTF-8
// JSON with two-space indentation.
func (a *Artifact) Encode() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(a); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// DecodeArtifact parses an artifact file produced by Encode.
func DecodeArtifact(data []byte) (*Artifact, error) {
	var a Artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, err
	}
	return &a, nil
}
