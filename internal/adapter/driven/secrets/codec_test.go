package secrets

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flavio-cbz/logistix/internal/domain/port/driven"
)

func testKey() []byte {
	return []byte("0123456789abcdef0123456789abcdef")
}

func TestCodec_RoundTrip(t *testing.T) {
	codec, err := NewCodec(testKey())
	require.NoError(t, err)

	ciphertext, err := codec.Encrypt(`{"access_token":"tok"}`, "user-1")
	require.NoError(t, err)
	assert.NotContains(t, ciphertext, "tok")

	plaintext, err := codec.Decrypt(ciphertext, "user-1")
	require.NoError(t, err)
	assert.Equal(t, `{"access_token":"tok"}`, plaintext)
}

func TestCodec_WrongUserFails(t *testing.T) {
	codec, err := NewCodec(testKey())
	require.NoError(t, err)

	ciphertext, err := codec.Encrypt("secret", "user-1")
	require.NoError(t, err)

	_, err = codec.Decrypt(ciphertext, "user-2")
	assert.ErrorIs(t, err, driven.ErrDecryptFailed)
}

func TestCodec_TamperedCiphertextFails(t *testing.T) {
	codec, err := NewCodec(testKey())
	require.NoError(t, err)

	ciphertext, err := codec.Encrypt("secret", "user-1")
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	require.NoError(t, err)
	raw[len(raw)-1] ^= 0xff
	tampered := base64.StdEncoding.EncodeToString(raw)

	_, err = codec.Decrypt(tampered, "user-1")
	assert.ErrorIs(t, err, driven.ErrDecryptFailed)
}

func TestCodec_GarbageInputFails(t *testing.T) {
	codec, err := NewCodec(testKey())
	require.NoError(t, err)

	for _, input := range []string{"", "not base64 !!!", base64.StdEncoding.EncodeToString([]byte("short"))} {
		_, err := codec.Decrypt(input, "user-1")
		assert.ErrorIs(t, err, driven.ErrDecryptFailed, "input %q", input)
	}
}

func TestNewCodec_RejectsBadKeyLength(t *testing.T) {
	_, err := NewCodec([]byte("too short"))
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "32 bytes"))
}
