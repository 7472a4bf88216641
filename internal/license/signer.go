package license

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
)

// Signing errors. ErrSigningKeyMissing and ErrSigningKeyMalformed indicate an
// operator mistake and surface as server-configuration failures, never as a
// client error.
var (
	ErrSigningKeyMissing   = errors.New("signing key not configured")
	ErrSigningKeyMalformed = errors.New("signing key malformed")
)

// Signer produces the detached Ed25519 signature over an artifact. The
// message is SHA-256(headerJSON || payloadBase64): the digest is signed, not
// the raw concatenation.
type Signer struct {
	priv ed25519.PrivateKey
}

// NewSigner builds a Signer from a hex-encoded 32-byte Ed25519 seed supplied
// via runtime configuration. The key never lives in source or build
// artifacts.
func NewSigner(privateKeyHex string) (*Signer, error) {
	if privateKeyHex == "" {
		return nil, ErrSigningKeyMissing
	}
	seed, err := hex.DecodeString(privateKeyHex)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSigningKeyMalformed, err)
	}
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("%w: need %d-byte seed, got %d bytes",
			ErrSigningKeyMalformed, ed25519.SeedSize, len(seed))
	}
	return &Signer{priv: ed25519.NewKeyFromSeed(seed)}, nil
}

// PublicKey returns the verification key corresponding to the signing key.
func (s *Signer) PublicKey() ed25519.PublicKey {
	return s.priv.Public().(ed25519.PublicKey)
}

// Sign signs the digest of the exact serialized header concatenated with the
// exact base64 payload string and returns the base64 signature.
func (s *Signer) Sign(headerJSON []byte, payloadBase64 string) (string, error) {
	digest := signingDigest(headerJSON, payloadBase64)
	sig := ed25519.Sign(s.priv, digest)
	return base64.StdEncoding.EncodeToString(sig), nil
}

// Verify is the validator-side check: it recomputes the digest from the
// received bytes and verifies the detached signature. Any mismatch is a hard
// rejection.
func Verify(pub ed25519.PublicKey, headerJSON []byte, payloadBase64, signatureBase64 string) bool {
	sig, err := base64.StdEncoding.DecodeString(signatureBase64)
	if err != nil {
		return false
	}
	return ed25519.Verify(pub, signingDigest(headerJSON, payloadBase64), sig)
}

func signingDigest(headerJSON []byte, payloadBase64 string) []byte {
	h := sha256.New()
	h.Write(headerJSON)
	h.Write([]byte(payloadBase64))
	return h.Sum(nil)
}

// GenerateKeyPair creates a fresh Ed25519 keypair for issuance, returning the
// hex seed (the configuration value) and the hex public key (embedded in the
// validator). Used by cmd/genkey.
func GenerateKeyPair() (publicKeyHex, privateKeyHex string, err error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return "", "", fmt.Errorf("generate keypair: %w", err)
	}
	return hex.EncodeToString(pub), hex.EncodeToString(priv.Seed()), nil
}
