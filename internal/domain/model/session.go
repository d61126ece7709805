package model

import "time"

// SessionStatus represents the lifecycle state of a user's marketplace session.
type SessionStatus string

const (
	// SessionActive means the stored credential decrypted cleanly and the
	// last validation or refresh succeeded. Sync operations require this state.
	SessionActive SessionStatus = "active"
	// SessionRefreshError means the last refresh attempt failed; the stored
	// ciphertext is retained untouched for a later retry or manual re-auth.
	SessionRefreshError SessionStatus = "refresh_error"
	// SessionRequiresConfiguration means no usable credential exists: either
	// none was ever saved or the stored ciphertext no longer decrypts.
	SessionRequiresConfiguration SessionStatus = "requires_configuration"
)

// MarketSession tracks one user's external-marketplace session. There is at
// most one row per user; it is created on the first credential save and never
// deleted by the sync engine.
type MarketSession struct {
	UserID              string
	EncryptedCredential string
	Status              SessionStatus
	LastValidatedAt     *time.Time
	LastRefreshedAt     *time.Time
	RefreshErrorMessage string
	UpdatedAt           time.Time
}
