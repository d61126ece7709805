package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/flavio-cbz/logistix/internal/cache"
	"github.com/flavio-cbz/logistix/internal/domain/model"
	"github.com/flavio-cbz/logistix/internal/domain/port/driven"
	"github.com/flavio-cbz/logistix/internal/runner"
)

const (
	defaultAnalysisPages = 3

	// Brand and catalog taxonomies change rarely, so they outlive the
	// analysis TTL by a wide margin.
	referenceDataTTL = 24 * time.Hour
)

// brandsCacheKey and catalogsCacheKey key the reference-data cache entries.
type brandsCacheKey struct {
	Kind   string `json:"kind"`
	Search string `json:"search,omitempty"`
}

// SyncOptions tunes the fan-out behavior of the sync engine.
type SyncOptions struct {
	// MaxConcurrent bounds simultaneous marketplace requests per operation.
	MaxConcurrent int
	// RequestSpacing is the minimum interval between request starts.
	RequestSpacing time.Duration
	// AnalysisTTL is how long a computed analysis is served from cache.
	AnalysisTTL time.Duration
	// KeepaliveInterval is the period of the background session sweep.
	KeepaliveInterval time.Duration
}

// SyncService is the sync engine's orchestrator: it fans marketplace pulls
// out through the rate-limited runner, memoizes derived analytics in the TTL
// cache, and keeps every configured session alive with a background sweep.
type SyncService struct {
	sessions *SessionService
	analyses *AnalysisService
	market   driven.MarketplaceClient
	cache    *cache.Store
	opts     SyncOptions
}

// NewSyncService wires the orchestrator. Zero-valued options fall back to
// conservative defaults.
func NewSyncService(sessions *SessionService, analyses *AnalysisService, market driven.MarketplaceClient, store *cache.Store, opts SyncOptions) *SyncService {
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = 3
	}
	if opts.AnalysisTTL <= 0 {
		opts.AnalysisTTL = 15 * time.Minute
	}
	if opts.KeepaliveInterval <= 0 {
		opts.KeepaliveInterval = 30 * time.Minute
	}
	return &SyncService{
		sessions: sessions,
		analyses: analyses,
		market:   market,
		cache:    store,
		opts:     opts,
	}
}

// AnalyzeMarket runs a market analysis for the query, serving a cached
// result when one is still fresh. Page pulls run concurrently through the
// runner and individual page failures are tolerated as long as at least one
// page succeeds.
func (s *SyncService) AnalyzeMarket(ctx context.Context, userID string, query model.AnalysisQuery) (*model.MarketAnalysis, error) {
	query.SearchText = NormalizeSearchText(query.SearchText)
	if query.Pages <= 0 {
		query.Pages = defaultAnalysisPages
	}

	if v, ok := s.cache.Get(query); ok {
		analysis := v.(model.MarketAnalysis)
		slog.Debug("analysis served from cache", "search_text", query.SearchText)
		return &analysis, nil
	}

	tokens, err := s.sessions.GetCredential(ctx, userID)
	if err != nil {
		return nil, err
	}
	if tokens == nil {
		return nil, ErrSessionNotConfigured
	}
	accessToken := tokens.AccessToken()

	tasks := make([]runner.Task[[]model.SoldItem], query.Pages)
	for i := range tasks {
		page := i + 1
		tasks[i] = func(ctx context.Context) ([]model.SoldItem, error) {
			return s.market.SearchSoldItems(ctx, accessToken, query, page)
		}
	}

	batch, err := runner.Run(ctx, tasks, runner.Options{
		MaxConcurrent:    s.opts.MaxConcurrent,
		MinStartInterval: s.opts.RequestSpacing,
		ContinueOnError:  true,
	})
	if err != nil {
		return nil, fmt.Errorf("fetch sold items for %q: %w", query.SearchText, err)
	}
	if batch.Aborted {
		return nil, ctx.Err()
	}

	var items []model.SoldItem
	var failed int
	var firstPageErr error
	for i, pageErr := range batch.Errors {
		if pageErr != nil {
			failed++
			if firstPageErr == nil {
				firstPageErr = pageErr
			}
			slog.Warn("sold items page failed", "search_text", query.SearchText, "page", i+1, "error", pageErr)
			continue
		}
		items = append(items, batch.Results[i]...)
	}
	if failed == len(tasks) {
		return nil, fmt.Errorf("fetch sold items for %q: %w", query.SearchText, firstPageErr)
	}

	analysis, err := s.analyses.Analyze(ctx, userID, query.SearchText, items)
	if err != nil {
		return nil, err
	}

	s.cache.SetTTL(query, analysis, s.opts.AnalysisTTL)
	slog.Info("market analysis computed",
		"search_text", query.SearchText,
		"items", analysis.Summary.ItemsFound,
		"pages_failed", failed)
	return &analysis, nil
}

// Brands returns the marketplace brand taxonomy, optionally filtered by a
// search term, cached for a day.
func (s *SyncService) Brands(ctx context.Context, userID, search string) ([]model.Brand, error) {
	key := brandsCacheKey{Kind: "brands", Search: search}
	if v, ok := s.cache.Get(key); ok {
		return v.([]model.Brand), nil
	}

	tokens, err := s.sessions.GetCredential(ctx, userID)
	if err != nil {
		return nil, err
	}
	if tokens == nil {
		return nil, ErrSessionNotConfigured
	}

	brands, err := s.market.FetchBrands(ctx, tokens.AccessToken(), search)
	if err != nil {
		return nil, fmt.Errorf("fetch brands: %w", err)
	}
	s.cache.SetTTL(key, brands, referenceDataTTL)
	return brands, nil
}

// Catalogs returns the marketplace catalog taxonomy, cached for a day.
func (s *SyncService) Catalogs(ctx context.Context, userID string) ([]model.Catalog, error) {
	key := brandsCacheKey{Kind: "catalogs"}
	if v, ok := s.cache.Get(key); ok {
		return v.([]model.Catalog), nil
	}

	tokens, err := s.sessions.GetCredential(ctx, userID)
	if err != nil {
		return nil, err
	}
	if tokens == nil {
		return nil, ErrSessionNotConfigured
	}

	catalogs, err := s.market.FetchCatalogs(ctx, tokens.AccessToken())
	if err != nil {
		return nil, fmt.Errorf("fetch catalogs: %w", err)
	}
	s.cache.SetTTL(key, catalogs, referenceDataTTL)
	return catalogs, nil
}

// ReferenceData fetches the brand and catalog taxonomies in one parallel
// window. Both pulls go through the cached single-taxonomy methods, so a
// partially warm cache only refetches what it is missing.
func (s *SyncService) ReferenceData(ctx context.Context, userID string) ([]model.Brand, []model.Catalog, error) {
	var brands []model.Brand
	var catalogs []model.Catalog

	fetches := []func(context.Context) error{
		func(ctx context.Context) error {
			var err error
			brands, err = s.Brands(ctx, userID, "")
			return err
		},
		func(ctx context.Context) error {
			var err error
			catalogs, err = s.Catalogs(ctx, userID)
			return err
		},
	}

	_, itemErrs := runner.BatchProcess(ctx, fetches,
		func(ctx context.Context, fetch func(context.Context) error) (struct{}, error) {
			return struct{}{}, fetch(ctx)
		},
		runner.BatchOptions{BatchSize: len(fetches)})
	if len(itemErrs) > 0 {
		return nil, nil, itemErrs[0].Err
	}

	return brands, catalogs, nil
}

// Start runs the keepalive loop until the context is cancelled: an
// immediate sweep, then one per interval. Each sweep refreshes every
// session that is not waiting on manual reconfiguration.
func (s *SyncService) Start(ctx context.Context) {
	slog.Info("sync keepalive started", "interval", s.opts.KeepaliveInterval)
	s.refreshAll(ctx)

	ticker := time.NewTicker(s.opts.KeepaliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("sync keepalive stopped")
			return
		case <-ticker.C:
			s.refreshAll(ctx)
		}
	}
}

// refreshAll sweeps every refreshable session in spaced windows. Failures
// are already persisted on the session record by RefreshSession, so here
// they are only logged.
func (s *SyncService) refreshAll(ctx context.Context) {
	sessions, err := s.sessions.ListSessions(ctx)
	if err != nil {
		slog.Error("session sweep failed", "error", err)
		return
	}

	var candidates []model.MarketSession
	for _, sess := range sessions {
		if sess.Status == model.SessionRequiresConfiguration {
			continue
		}
		candidates = append(candidates, sess)
	}
	if len(candidates) == 0 {
		return
	}

	_, itemErrs := runner.BatchProcess(ctx, candidates,
		func(ctx context.Context, sess model.MarketSession) (struct{}, error) {
			_, err := s.sessions.RefreshSession(ctx, sess.UserID)
			return struct{}{}, err
		},
		runner.BatchOptions{
			BatchSize:           s.opts.MaxConcurrent,
			DelayBetweenBatches: s.opts.RequestSpacing,
		})

	for _, ie := range itemErrs {
		slog.Warn("session keepalive failed",
			"user", candidates[ie.Index].UserID,
			"error", ie.Err)
	}
	slog.Debug("session sweep complete", "sessions", len(candidates), "failed", len(itemErrs))
}
