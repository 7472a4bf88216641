package license

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSigner(t *testing.T) *Signer {
	t.Helper()
	_, privHex, err := GenerateKeyPair()
	require.NoError(t, err)
	signer, err := NewSigner(privHex)
	require.NoError(t, err)
	return signer
}

func testHeaderJSON(t *testing.T) []byte {
	t.Helper()
	headerJSON, err := MarshalHeader(Header{
		Version:       SchemaVersion,
		Edition:       EditionPro,
		Email:         "buyer@example.com",
		Issued:        "2026-08-30",
		Expires:       "2027-08-30",
		LicenseKey:    "LS-1234",
		LastValidated: "2026-08-30T12:00:00Z",
		VariantName:   "Pro License",
	})
	require.NoError(t, err)
	return headerJSON
}

func TestNewSignerKeyHandling(t *testing.T) {
	tests := []struct {
		name    string
		keyHex  string
		wantErr error
	}{
		{name: "missing key", keyHex: "", wantErr: ErrSigningKeyMissing},
		{name: "not hex", keyHex: "zz" + strings.Repeat("ab", 31), wantErr: ErrSigningKeyMalformed},
		{name: "wrong length", keyHex: "abcd", wantErr: ErrSigningKeyMalformed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			signer, err := NewSigner(tt.keyHex)
			assert.Nil(t, signer)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestSignVerifyRoundTrip(t *testing.T) {
	signer := newTestSigner(t)
	headerJSON := testHeaderJSON(t)
	payloadB64 := "c2VhbGVkIHBheWxvYWQgYnl0ZXM="

	sig, err := signer.Sign(headerJSON, payloadB64)
	require.NoError(t, err)

	assert.True(t, Verify(signer.PublicKey(), headerJSON, payloadB64, sig))
}

func TestVerifyRejectsMutations(t *testing.T) {
	signer := newTestSigner(t)
	headerJSON := testHeaderJSON(t)
	payloadB64 := "c2VhbGVkIHBheWxvYWQgYnl0ZXM="

	sig, err := signer.Sign(headerJSON, payloadB64)
	require.NoError(t, err)

	t.Run("single header byte flipped", func(t *testing.T) {
		mutated := append([]byte(nil), headerJSON...)
		mutated[10] ^= 0x01
		assert.False(t, Verify(signer.PublicKey(), mutated, payloadB64, sig))
	})

	t.Run("single payload byte changed", func(t *testing.T) {
		mutated := "d" + payloadB64[1:]
		assert.False(t, Verify(signer.PublicKey(), headerJSON, mutated, sig))
	})

	t.Run("reserialized header with extra whitespace", func(t *testing.T) {
		// The signature covers exact bytes; even semantically identical JSON
		// must fail. This is the interop contract, not a bug.
		spaced := strings.Replace(string(headerJSON), `{"version"`, `{ "version"`, 1)
		assert.False(t, Verify(signer.PublicKey(), []byte(spaced), payloadB64, sig))
	})

	t.Run("wrong key", func(t *testing.T) {
		other := newTestSigner(t)
		assert.False(t, Verify(other.PublicKey(), headerJSON, payloadB64, sig))
	})

	t.Run("garbage signature", func(t *testing.T) {
		assert.False(t, Verify(signer.PublicKey(), headerJSON, payloadB64, "!!!not-base64"))
		assert.False(t, Verify(signer.PublicKey(), headerJSON, payloadB64, "YWJj"))
	})
}

func TestGenerateKeyPair(t *testing.T) {
	pubHex, privHex, err := GenerateKeyPair()
	require.NoError(t, err)
	assert.Len(t, pubHex, 64)
	assert.Len(t, privHex, 64)

	// The generated seed round-trips through NewSigner.
	signer, err := NewSigner(privHex)
	require.NoError(t, err)
	assert.NotNil(t, signer)
}
