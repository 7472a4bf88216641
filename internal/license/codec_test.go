package license

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testSecret    = "test_derivation_secret_v1"
	testNonceSeed = "ug_lic_nonce"
)

func newTestCodec(t *testing.T) *Codec {
	t.Helper()
	codec, err := NewCodec(testSecret, testNonceSeed)
	require.NoError(t, err)
	return codec
}

func TestNewCodecRequiresSecrets(t *testing.T) {
	_, err := NewCodec("", testNonceSeed)
	assert.Error(t, err)

	_, err = NewCodec(testSecret, "")
	assert.Error(t, err)
}

func TestCodecRoundTrip(t *testing.T) {
	codec := newTestCodec(t)

	original := Payload{
		Features:     Features(EditionTeam),
		Entitlements: []string{},
		Metadata:     PayloadMetadata{Source: "web_activation"},
	}

	encrypted, err := codec.Encrypt(original)
	require.NoError(t, err)
	require.NotEmpty(t, encrypted)

	decrypted, err := codec.Decrypt(encrypted)
	require.NoError(t, err)
	assert.Equal(t, original, *decrypted)
}

func TestCodecCiphertextIsNotPayloadJSON(t *testing.T) {
	codec := newTestCodec(t)

	encrypted, err := codec.Encrypt(Payload{
		Features:     Features(EditionPro),
		Entitlements: []string{},
		Metadata:     PayloadMetadata{Source: "web_activation"},
	})
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(encrypted)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), `"features"`,
		"payload must be ciphertext, never readable JSON")
}

func TestCodecNonceIsFixedAcrossIssuances(t *testing.T) {
	// Deliberate design constraint: every license issued under one secret
	// shares the same nonce, because the on-device validator hardcodes the
	// identical derivation. Equal payloads therefore encrypt to equal
	// ciphertexts; that is the accepted tradeoff, not a bug.
	codec := newTestCodec(t)

	p := Payload{
		Features:     Features(EditionStarter),
		Entitlements: []string{},
		Metadata:     PayloadMetadata{Source: "lemonsqueezy_webhook"},
	}

	first, err := codec.Encrypt(p)
	require.NoError(t, err)
	second, err := codec.Encrypt(p)
	require.NoError(t, err)

	assert.Equal(t, first, second, "fixed nonce must make encryption deterministic")
}

func TestCodecNonceSeedTruncatedAndPadded(t *testing.T) {
	long, err := NewCodec(testSecret, "a_seed_much_longer_than_twelve_bytes")
	require.NoError(t, err)
	truncated, err := NewCodec(testSecret, "a_seed_much_")
	require.NoError(t, err)

	p := Payload{Features: Features(EditionCommunity), Entitlements: []string{}}
	fromLong, err := long.Encrypt(p)
	require.NoError(t, err)
	fromTruncated, err := truncated.Encrypt(p)
	require.NoError(t, err)
	assert.Equal(t, fromLong, fromTruncated,
		"only the first 12 bytes of the seed participate in the nonce")

	short, err := NewCodec(testSecret, "ab")
	require.NoError(t, err)
	_, err = short.Encrypt(p)
	assert.NoError(t, err, "short seeds are zero-padded, not rejected")
}

func TestCodecDecryptFailsClosed(t *testing.T) {
	codec := newTestCodec(t)

	encrypted, err := codec.Encrypt(Payload{
		Features:     Features(EditionPro),
		Entitlements: []string{},
	})
	require.NoError(t, err)

	tests := []struct {
		name  string
		input string
	}{
		{name: "not base64", input: "%%%not-base64%%%"},
		{name: "truncated ciphertext", input: encrypted[:8]},
		{name: "empty", input: ""},
		{
			name: "flipped ciphertext byte",
			input: func() string {
				raw, _ := base64.StdEncoding.DecodeString(encrypted)
				raw[0] ^= 0x01
				return base64.StdEncoding.EncodeToString(raw)
			}(),
		},
		{
			name: "flipped auth tag byte",
			input: func() string {
				raw, _ := base64.StdEncoding.DecodeString(encrypted)
				raw[len(raw)-1] ^= 0x01
				return base64.StdEncoding.EncodeToString(raw)
			}(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := codec.Decrypt(tt.input)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrPayloadInvalid)
			assert.Nil(t, p)
		})
	}
}

func TestCodecWrongSecretFails(t *testing.T) {
	codec := newTestCodec(t)
	other, err := NewCodec("a_different_secret", testNonceSeed)
	require.NoError(t, err)

	encrypted, err := codec.Encrypt(Payload{Features: Features(EditionPro), Entitlements: []string{}})
	require.NoError(t, err)

	_, err = other.Decrypt(encrypted)
	assert.ErrorIs(t, err, ErrPayloadInvalid)
}
