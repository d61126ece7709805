// Package secrets implements the SecretCodec port with AES-256-GCM.
package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"

	"github.com/flavio-cbz/logistix/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.SecretCodec = (*Codec)(nil)

// Codec encrypts credential blobs with AES-256-GCM. The owning user's id is
// bound as additional authenticated data, so a ciphertext decrypted under a
// different user fails authentication.
type Codec struct {
	key []byte
}

// NewCodec creates a Codec. key must be exactly 32 bytes for AES-256-GCM.
func NewCodec(key []byte) (*Codec, error) {
	if len(key) != 32 {
		return nil, fmt.Errorf("secret key must be 32 bytes, got %d", len(key))
	}
	return &Codec{key: key}, nil
}

// Encrypt encrypts plaintext bound to userID and returns a base64-encoded
// string containing the nonce (12 bytes) prepended to the ciphertext.
func (c *Codec) Encrypt(plaintext, userID string) (string, error) {
	gcm, err := c.gcm()
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("rand nonce: %w", err)
	}

	// Seal appends the ciphertext to nonce, producing: nonce || ciphertext || tag.
	ciphertext := gcm.Seal(nonce, nonce, []byte(plaintext), []byte(userID))
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// Decrypt decrypts a base64-encoded AES-256-GCM ciphertext bound to userID.
// Tampered, truncated, or wrong-user input returns an error wrapping
// driven.ErrDecryptFailed.
func (c *Codec) Decrypt(encoded, userID string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("%w: base64 decode: %v", driven.ErrDecryptFailed, err)
	}

	gcm, err := c.gcm()
	if err != nil {
		return "", err
	}

	nonceSize := gcm.NonceSize()
	if len(data) < nonceSize {
		return "", fmt.Errorf("%w: ciphertext too short", driven.ErrDecryptFailed)
	}

	nonce, ciphertext := data[:nonceSize], data[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, []byte(userID))
	if err != nil {
		return "", fmt.Errorf("%w: %v", driven.ErrDecryptFailed, err)
	}

	return string(plaintext), nil
}

func (c *Codec) gcm() (cipher.AEAD, error) {
	block, err := aes.NewCipher(c.key)
	if err != nil {
		return nil, fmt.Errorf("aes.NewCipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("cipher.NewGCM: %w", err)
	}
	return gcm, nil
}
