// Package application contains use-case orchestration services.
package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/flavio-cbz/logistix/internal/domain/model"
	"github.com/flavio-cbz/logistix/internal/domain/port/driven"
)

// ErrSessionNotConfigured is returned when an operation needs a usable
// marketplace credential and none exists for the user. The caller should
// prompt for re-authentication.
var ErrSessionNotConfigured = errors.New("marketplace session not configured")

// RefreshFailedError reports a failed validity check or refresh exchange.
// The persisted session record carries the same message under the
// refresh_error status.
type RefreshFailedError struct {
	UserID string
	Reason string
}

func (e *RefreshFailedError) Error() string {
	return fmt.Sprintf("refresh marketplace session for user %s: %s", e.UserID, e.Reason)
}

// SessionService owns the lifecycle of one marketplace session per user:
// it validates and refreshes credentials, persists status transitions, and
// serves decrypted credentials to callers. Expected failures (missing or
// undecryptable credential, failed refresh) are converted into the persisted
// record's status and error fields, never panics.
type SessionService struct {
	store  driven.SessionStore
	codec  driven.SecretCodec
	market driven.MarketplaceClient
	now    func() time.Time

	// Serializes refresh/save per user so two concurrent refreshes cannot
	// race on the read-modify-write of the persisted record.
	mu        sync.Mutex
	userLocks map[string]*sync.Mutex
}

// NewSessionService creates a SessionService with all required collaborators.
func NewSessionService(store driven.SessionStore, codec driven.SecretCodec, market driven.MarketplaceClient) *SessionService {
	return &SessionService{
		store:     store,
		codec:     codec,
		market:    market,
		now:       time.Now,
		userLocks: make(map[string]*sync.Mutex),
	}
}

// GetCredential returns the decrypted credential for the user, or nil if no
// usable credential exists. A successful read has no side effect on state.
// When the stored ciphertext cannot be decrypted the record transitions to
// requires_configuration and nil is returned; the failure never propagates.
func (s *SessionService) GetCredential(ctx context.Context, userID string) (model.TokenSet, error) {
	_, tokens, err := s.load(ctx, userID)
	return tokens, err
}

// SaveCredential encrypts and persists a new credential for the user,
// transitioning the session to active. This is the implicit-creation path:
// the first save for a user creates its session record.
func (s *SessionService) SaveCredential(ctx context.Context, userID string, tokens model.TokenSet) error {
	if tokens.AccessToken() == "" {
		return errors.New("token set missing access_token")
	}

	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	encoded, err := tokens.Encode()
	if err != nil {
		return fmt.Errorf("encode token set: %w", err)
	}
	ciphertext, err := s.codec.Encrypt(encoded, userID)
	if err != nil {
		return fmt.Errorf("encrypt credential for user %s: %w", userID, err)
	}

	session := model.MarketSession{
		UserID:              userID,
		EncryptedCredential: ciphertext,
		Status:              model.SessionActive,
	}
	if err := s.store.Upsert(ctx, session); err != nil {
		return fmt.Errorf("persist session for user %s: %w", userID, err)
	}

	slog.Info("marketplace credential saved", "user", userID)
	return nil
}

// RefreshSession ensures the user's credential is accepted by the remote
// system, performing a refresh exchange when it is not. The returned pair is
// non-nil only when an exchange actually happened; (nil, nil) means the
// existing credential is still valid. Expected failures come back as
// ErrSessionNotConfigured or *RefreshFailedError with the record updated to
// match.
func (s *SessionService) RefreshSession(ctx context.Context, userID string) (*model.TokenPair, error) {
	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	session, tokens, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	if session == nil || tokens == nil {
		return nil, ErrSessionNotConfigured
	}

	valid, err := s.market.CheckToken(ctx, tokens.AccessToken())
	if err != nil {
		return nil, s.recordRefreshFailure(ctx, session, fmt.Errorf("token validity check: %w", err))
	}

	now := s.now().UTC()

	if valid {
		session.Status = model.SessionActive
		session.LastValidatedAt = &now
		session.RefreshErrorMessage = ""
		if err := s.store.Upsert(ctx, *session); err != nil {
			return nil, fmt.Errorf("persist session for user %s: %w", userID, err)
		}
		return nil, nil
	}

	pair, err := s.market.RefreshAccessToken(ctx, tokens.RefreshToken())
	if err != nil {
		return nil, s.recordRefreshFailure(ctx, session, fmt.Errorf("refresh exchange: %w", err))
	}

	merged := tokens.Merge(pair)
	encoded, err := merged.Encode()
	if err != nil {
		return nil, fmt.Errorf("encode token set: %w", err)
	}
	ciphertext, err := s.codec.Encrypt(encoded, userID)
	if err != nil {
		return nil, fmt.Errorf("encrypt credential for user %s: %w", userID, err)
	}

	session.EncryptedCredential = ciphertext
	session.Status = model.SessionActive
	session.LastValidatedAt = &now
	session.LastRefreshedAt = &now
	session.RefreshErrorMessage = ""
	if err := s.store.Upsert(ctx, *session); err != nil {
		return nil, fmt.Errorf("persist session for user %s: %w", userID, err)
	}

	slog.Info("marketplace session refreshed", "user", userID)
	return &pair, nil
}

// Status returns the persisted session record for the user, or nil if none
// exists. The encrypted credential stays opaque to callers of this method.
func (s *SessionService) Status(ctx context.Context, userID string) (*model.MarketSession, error) {
	session, err := s.store.Find(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load session for user %s: %w", userID, err)
	}
	return session, nil
}

// ListSessions returns all persisted session records.
func (s *SessionService) ListSessions(ctx context.Context) ([]model.MarketSession, error) {
	sessions, err := s.store.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return sessions, nil
}

// load reads the session record and decrypts its credential. A decryption
// or decoding failure transitions the record to requires_configuration and
// yields nil tokens; the session pointer is still returned for callers that
// need the record itself.
func (s *SessionService) load(ctx context.Context, userID string) (*model.MarketSession, model.TokenSet, error) {
	session, err := s.store.Find(ctx, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("load session for user %s: %w", userID, err)
	}
	if session == nil {
		return nil, nil, nil
	}

	plaintext, err := s.codec.Decrypt(session.EncryptedCredential, userID)
	if err != nil {
		s.markConfigurationRequired(ctx, session, err)
		return session, nil, nil
	}

	tokens, err := model.DecodeTokenSet(plaintext)
	if err != nil {
		s.markConfigurationRequired(ctx, session, fmt.Errorf("decode token set: %w", err))
		return session, nil, nil
	}

	return session, tokens, nil
}

// markConfigurationRequired persists the requires_configuration transition.
// A persistence failure here is logged and swallowed: the caller already
// treats the credential as unusable.
func (s *SessionService) markConfigurationRequired(ctx context.Context, session *model.MarketSession, cause error) {
	slog.Warn("marketplace credential unusable", "user", session.UserID, "error", cause)

	session.Status = model.SessionRequiresConfiguration
	session.RefreshErrorMessage = cause.Error()
	if err := s.store.Upsert(ctx, *session); err != nil {
		slog.Error("persist session status failed", "user", session.UserID, "error", err)
	}
}

// recordRefreshFailure persists the refresh_error transition, retaining the
// stored ciphertext so a later manual re-auth can still reference it.
func (s *SessionService) recordRefreshFailure(ctx context.Context, session *model.MarketSession, cause error) error {
	slog.Warn("marketplace session refresh failed", "user", session.UserID, "error", cause)

	session.Status = model.SessionRefreshError
	session.RefreshErrorMessage = cause.Error()
	if err := s.store.Upsert(ctx, *session); err != nil {
		slog.Error("persist session status failed", "user", session.UserID, "error", err)
	}

	return &RefreshFailedError{UserID: session.UserID, Reason: cause.Error()}
}

func (s *SessionService) userLock(userID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	lock, ok := s.userLocks[userID]
	if !ok {
		lock = &sync.Mutex{}
		s.userLocks[userID] = lock
	}
	return lock
}
