// Package license implements the offline license artifact format used by the
// Undergrowth desktop engine. It produces signed, encrypted license files that
// the engine validates without contacting a server.
//
// # Artifact Format
//
// A license artifact is a single pretty-printed JSON document:
//
//	{
//	  "header":    { ...cleartext entitlement metadata... },
//	  "payload":   "<base64 ChaCha20-Poly1305 ciphertext+tag>",
//	  "signature": "<base64 Ed25519 signature>"
//	}
//
// The header is authenticated by the signature but readable by support
// tooling. The payload carries the feature set and is confidential. The
// signature is computed over SHA-256(headerJSON || payloadBase64), where
// headerJSON is the compact serialization of the header and payloadBase64 is
// the exact base64 string embedded in the artifact. Validators must hash the
// identical byte sequence; re-serializing the header with different key order
// or whitespace breaks verification by design.
//
// # Fixed Nonce
//
// The payload cipher uses a single nonce derived from a static seed string,
// reused for every license issued under a given derivation secret. This is a
// deliberate interoperability constraint shared with the on-device validator:
// the scheme targets tamper evidence and casual-copy resistance, not
// confidentiality against an attacker who extracts the embedded secret.
// Payload plaintexts differ per license, so the only nonce-reuse leak is
// equality of identical payloads. Do not switch to random nonces without
// versioning the artifact format.
//
// # Editions
//
// Entitlements are derived entirely from the edition tier. The classifier
// maps the payment provider's free-text variant names onto the closed edition
// enum, and the policy table maps editions onto feature sets and default
// validity. Both are total functions so that unexpected provider data can
// never block issuance.
package license
