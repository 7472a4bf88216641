package license

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

// ErrPayloadInvalid is returned when a payload fails to decrypt or
// authenticate. Validators treat it as a hard rejection, never as a
// downgraded edition.
var ErrPayloadInvalid = errors.New("license payload invalid or tampered")

// Codec performs authenticated encryption of the license payload. The key is
// SHA-256 of a static UTF-8 secret and the nonce is derived once from a
// static seed string; see the package documentation for why the nonce is
// deliberately fixed.
type Codec struct {
	key   []byte
	nonce []byte
}

// NewCodec derives the symmetric key and fixed nonce. The nonce seed is
// truncated or zero-padded to the cipher's 12-byte nonce size, matching the
// derivation hardcoded in the on-device validator.
func NewCodec(derivationSecret, nonceSeed string) (*Codec, error) {
	if derivationSecret == "" {
		return nil, errors.New("key derivation secret is empty")
	}
	if nonceSeed == "" {
		return nil, errors.New("nonce seed is empty")
	}

	key := sha256.Sum256([]byte(derivationSecret))

	nonce := make([]byte, chacha20poly1305.NonceSize)
	copy(nonce, nonceSeed)

	return &Codec{key: key[:], nonce: nonce}, nil
}

// Encrypt serializes the payload and seals it with ChaCha20-Poly1305,
// returning the base64 ciphertext+tag embedded in the artifact.
func (c *Codec) Encrypt(p Payload) (string, error) {
	plaintext, err := marshalCompact(p)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}

	aead, err := chacha20poly1305.New(c.key)
	if err != nil {
		return "", fmt.Errorf("create cipher: %w", err)
	}

	sealed := aead.Seal(nil, c.nonce, plaintext, nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt is the validator-side inverse of Encrypt. Malformed base64, a
// truncated ciphertext or an authentication tag mismatch all fail closed
// with ErrPayloadInvalid.
func (c *Codec) Decrypt(encoded string) (*Payload, error) {
	sealed, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPayloadInvalid, err)
	}

	aead, err := chacha20poly1305.New(c.key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}

	plaintext, err := aead.Open(nil, c.nonce, sealed, nil)
	if err != nil {
		return nil, ErrPayloadInvalid
	}

	var p Payload
	if err := json.Unmarshal(plaintext, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPayloadInvalid, err)
	}
	return &p, nil
}
