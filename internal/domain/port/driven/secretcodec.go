package driven

import "errors"

// ErrDecryptFailed is returned by SecretCodec.Decrypt when the ciphertext is
// tampered, truncated, or encrypted for a different user. The session service
// maps it to the requires_configuration status rather than surfacing it.
var ErrDecryptFailed = errors.New("credential decryption failed")

// SecretCodec defines the driven port for credential encryption. Ciphertexts
// are bound to the owning user: decrypting another user's blob must fail with
// ErrDecryptFailed.
type SecretCodec interface {
	// Encrypt returns the ciphertext of plaintext bound to userID.
	Encrypt(plaintext, userID string) (string, error)

	// Decrypt reverses Encrypt. Returns an error wrapping ErrDecryptFailed
	// on tampered or wrong-user input.
	Decrypt(ciphertext, userID string) (string, error)
}
