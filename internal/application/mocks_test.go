package application_test

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/flavio-cbz/logistix/internal/domain/model"
	"github.com/flavio-cbz/logistix/internal/domain/port/driven"
)

// --- Mock implementations ---

type mockSessionStore struct {
	mu          sync.Mutex
	sessions    map[string]model.MarketSession
	findErr     error
	upsertErr   error
	upsertCalls int
}

func newMockSessionStore() *mockSessionStore {
	return &mockSessionStore{sessions: make(map[string]model.MarketSession)}
}

func (m *mockSessionStore) Find(_ context.Context, userID string) (*model.MarketSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findErr != nil {
		return nil, m.findErr
	}
	session, ok := m.sessions[userID]
	if !ok {
		return nil, nil
	}
	return &session, nil
}

func (m *mockSessionStore) Upsert(_ context.Context, session model.MarketSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.upsertErr != nil {
		return m.upsertErr
	}
	m.upsertCalls++
	m.sessions[session.UserID] = session
	return nil
}

func (m *mockSessionStore) ListAll(_ context.Context) ([]model.MarketSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.MarketSession, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

func (m *mockSessionStore) get(userID string) model.MarketSession {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[userID]
}

// fakeCodec is a reversible stand-in for the AES codec: it prefixes the
// plaintext with the owning user so wrong-user reads fail the same way.
type fakeCodec struct{}

func (fakeCodec) Encrypt(plaintext, userID string) (string, error) {
	return userID + "|" + plaintext, nil
}

func (fakeCodec) Decrypt(ciphertext, userID string) (string, error) {
	prefix := userID + "|"
	if !strings.HasPrefix(ciphertext, prefix) {
		return "", fmt.Errorf("mock codec: %w", driven.ErrDecryptFailed)
	}
	return strings.TrimPrefix(ciphertext, prefix), nil
}

type mockMarketplaceClient struct {
	checkToken func(ctx context.Context, accessToken string) (bool, error)
	refresh    func(ctx context.Context, refreshToken string) (model.TokenPair, error)
	search     func(ctx context.Context, accessToken string, query model.AnalysisQuery, page int) ([]model.SoldItem, error)
	brands     func(ctx context.Context, accessToken, search string) ([]model.Brand, error)
	catalogs   func(ctx context.Context, accessToken string) ([]model.Catalog, error)
}

func (m *mockMarketplaceClient) CheckToken(ctx context.Context, accessToken string) (bool, error) {
	if m.checkToken == nil {
		return true, nil
	}
	return m.checkToken(ctx, accessToken)
}

func (m *mockMarketplaceClient) RefreshAccessToken(ctx context.Context, refreshToken string) (model.TokenPair, error) {
	if m.refresh == nil {
		return model.TokenPair{}, nil
	}
	return m.refresh(ctx, refreshToken)
}

func (m *mockMarketplaceClient) SearchSoldItems(ctx context.Context, accessToken string, query model.AnalysisQuery, page int) ([]model.SoldItem, error) {
	if m.search == nil {
		return nil, nil
	}
	return m.search(ctx, accessToken, query, page)
}

func (m *mockMarketplaceClient) FetchBrands(ctx context.Context, accessToken, search string) ([]model.Brand, error) {
	if m.brands == nil {
		return nil, nil
	}
	return m.brands(ctx, accessToken, search)
}

func (m *mockMarketplaceClient) FetchCatalogs(ctx context.Context, accessToken string) ([]model.Catalog, error) {
	if m.catalogs == nil {
		return nil, nil
	}
	return m.catalogs(ctx, accessToken)
}

type savedAnalysis struct {
	userID     string
	searchText string
	analysis   model.MarketAnalysis
}

type mockAnalysisStore struct {
	mu      sync.Mutex
	saved   []savedAnalysis
	history []model.StoredAnalysis
	saveErr error
}

func (m *mockAnalysisStore) Save(_ context.Context, userID, searchText string, analysis model.MarketAnalysis) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saved = append(m.saved, savedAnalysis{userID: userID, searchText: searchText, analysis: analysis})
	return nil
}

func (m *mockAnalysisStore) History(_ context.Context, searchText string, limit int) ([]model.StoredAnalysis, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.StoredAnalysis
	for _, h := range m.history {
		if h.SearchText == searchText {
			out = append(out, h)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *mockAnalysisStore) ListByUser(_ context.Context, userID string) ([]model.StoredAnalysis, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.StoredAnalysis
	for _, h := range m.history {
		if h.UserID == userID {
			out = append(out, h)
		}
	}
	return out, nil
}

func (m *mockAnalysisStore) Delete(_ context.Context, _ string, _ int64) error {
	return nil
}

func (m *mockAnalysisStore) savedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.saved)
}
