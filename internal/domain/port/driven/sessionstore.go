package driven

import (
	"context"

	"github.com/flavio-cbz/logistix/internal/domain/model"
)

// SessionStore defines the driven port for marketplace session persistence.
// One record per user; the session service is the only writer.
type SessionStore interface {
	// Find returns the session record for the given user.
	// Returns (nil, nil) if no record exists.
	Find(ctx context.Context, userID string) (*model.MarketSession, error)

	// Upsert stores or replaces the session record keyed by its UserID.
	Upsert(ctx context.Context, session model.MarketSession) error

	// ListAll returns every stored session record, ordered by user id.
	// Used by the background keepalive loop.
	ListAll(ctx context.Context) ([]model.MarketSession, error)
}
