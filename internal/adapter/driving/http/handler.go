package httphandler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/flavio-cbz/logistix/internal/application"
	"github.com/flavio-cbz/logistix/internal/cache"
	"github.com/flavio-cbz/logistix/internal/domain/model"
	"github.com/flavio-cbz/logistix/internal/domain/port/driven"
)

// Handler is the HTTP driving adapter that serves the REST API.
type Handler struct {
	sessions *application.SessionService
	sync     *application.SyncService
	analyses driven.AnalysisStore
	cacheSvc *cache.Store
	logger   *slog.Logger
}

// NewHandler creates a Handler with all required dependencies.
func NewHandler(
	sessions *application.SessionService,
	sync *application.SyncService,
	analyses driven.AnalysisStore,
	cacheSvc *cache.Store,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		sessions: sessions,
		sync:     sync,
		analyses: analyses,
		cacheSvc: cacheSvc,
		logger:   logger,
	}
}

// NewServeMux creates an http.Handler with all routes registered and wrapped
// with request-id, logging, and recovery middleware.
func NewServeMux(h *Handler, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/health", h.Health)

	mux.HandleFunc("PUT /api/v1/users/{userID}/session", h.SaveSession)
	mux.HandleFunc("GET /api/v1/users/{userID}/session", h.GetSession)
	mux.HandleFunc("POST /api/v1/users/{userID}/session/refresh", h.RefreshSession)

	mux.HandleFunc("POST /api/v1/users/{userID}/analyses", h.AnalyzeMarket)
	mux.HandleFunc("GET /api/v1/users/{userID}/analyses", h.ListAnalyses)
	mux.HandleFunc("DELETE /api/v1/users/{userID}/analyses/{id}", h.DeleteAnalysis)
	mux.HandleFunc("GET /api/v1/users/{userID}/analyses/history", h.AnalysisHistory)

	mux.HandleFunc("GET /api/v1/users/{userID}/market/brands", h.ListBrands)
	mux.HandleFunc("GET /api/v1/users/{userID}/market/catalogs", h.ListCatalogs)

	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/cleanup", h.CacheCleanup)

	// Recovery innermost so panics are caught before logging.
	wrapped := recoveryMiddleware(logger, mux)
	wrapped = loggingMiddleware(logger, wrapped)
	wrapped = requestIDMiddleware(wrapped)

	return wrapped
}

// SaveSession stores a new marketplace credential for the user, creating the
// session record on first save.
func (h *Handler) SaveSession(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("userID")

	var req SaveSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Tokens) == 0 {
		writeError(w, http.StatusBadRequest, "tokens are required")
		return
	}

	tokens := model.TokenSet(req.Tokens)
	if tokens.AccessToken() == "" {
		writeError(w, http.StatusBadRequest, "tokens must include access_token")
		return
	}

	if err := h.sessions.SaveCredential(r.Context(), userID, tokens); err != nil {
		h.logger.Error("failed to save credential", "user", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	session, err := h.sessions.Status(r.Context(), userID)
	if err != nil || session == nil {
		h.logger.Error("failed to load session after save", "user", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, toSessionResponse(*session))
}

// GetSession returns the session status for the user. The stored credential
// itself is never exposed.
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("userID")

	session, err := h.sessions.Status(r.Context(), userID)
	if err != nil {
		h.logger.Error("failed to get session", "user", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if session == nil {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}

	writeJSON(w, http.StatusOK, toSessionResponse(*session))
}

// RefreshSession validates the user's credential against the marketplace and
// refreshes it if rejected.
func (h *Handler) RefreshSession(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("userID")

	pair, err := h.sessions.RefreshSession(r.Context(), userID)
	if err != nil {
		h.writeSessionError(w, userID, err)
		return
	}

	session, err := h.sessions.Status(r.Context(), userID)
	if err != nil || session == nil {
		h.logger.Error("failed to load session after refresh", "user", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, RefreshResponse{
		Renewed: pair != nil,
		Session: toSessionResponse(*session),
	})
}

// AnalyzeMarket runs a market analysis for the posted query.
func (h *Handler) AnalyzeMarket(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("userID")

	var query model.AnalysisQuery
	if err := json.NewDecoder(r.Body).Decode(&query); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if query.SearchText == "" {
		writeError(w, http.StatusBadRequest, "search_text is required")
		return
	}

	analysis, err := h.sync.AnalyzeMarket(r.Context(), userID, query)
	if err != nil {
		h.writeSessionError(w, userID, err)
		return
	}

	writeJSON(w, http.StatusOK, analysis)
}

// ListAnalyses returns the user's stored analyses, newest first.
func (h *Handler) ListAnalyses(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("userID")

	stored, err := h.analyses.ListByUser(r.Context(), userID)
	if err != nil {
		h.logger.Error("failed to list analyses", "user", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := make([]StoredAnalysisResponse, 0, len(stored))
	for _, s := range stored {
		resp = append(resp, toStoredAnalysisResponse(s))
	}

	writeJSON(w, http.StatusOK, resp)
}

// DeleteAnalysis removes one stored analysis owned by the user.
func (h *Handler) DeleteAnalysis(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("userID")

	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid analysis id")
		return
	}

	if err := h.analyses.Delete(r.Context(), userID, id); err != nil {
		h.logger.Error("failed to delete analysis", "user", userID, "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// AnalysisHistory returns stored analyses for a search text across users,
// newest first. This is the series the price-trend KPI is computed from.
func (h *Handler) AnalysisHistory(w http.ResponseWriter, r *http.Request) {
	searchText := application.NormalizeSearchText(r.URL.Query().Get("search_text"))
	if searchText == "" {
		writeError(w, http.StatusBadRequest, "search_text is required")
		return
	}

	limit := 30
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = parsed
	}

	stored, err := h.analyses.History(r.Context(), searchText, limit)
	if err != nil {
		h.logger.Error("failed to load analysis history", "search_text", searchText, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := make([]StoredAnalysisResponse, 0, len(stored))
	for _, s := range stored {
		resp = append(resp, toStoredAnalysisResponse(s))
	}

	writeJSON(w, http.StatusOK, resp)
}

// ListBrands returns the marketplace brand taxonomy.
func (h *Handler) ListBrands(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("userID")

	brands, err := h.sync.Brands(r.Context(), userID, r.URL.Query().Get("search"))
	if err != nil {
		h.writeSessionError(w, userID, err)
		return
	}

	resp := make([]BrandResponse, 0, len(brands))
	for _, b := range brands {
		resp = append(resp, BrandResponse{ID: b.ID, Title: b.Title})
	}

	writeJSON(w, http.StatusOK, resp)
}

// ListCatalogs returns the marketplace catalog taxonomy.
func (h *Handler) ListCatalogs(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("userID")

	catalogs, err := h.sync.Catalogs(r.Context(), userID)
	if err != nil {
		h.writeSessionError(w, userID, err)
		return
	}

	resp := make([]CatalogResponse, 0, len(catalogs))
	for _, c := range catalogs {
		resp = append(resp, CatalogResponse{ID: c.ID, Title: c.Title})
	}

	writeJSON(w, http.StatusOK, resp)
}

// Health returns a simple health check response.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status: "ok",
		Time:   time.Now().UTC().Format(time.RFC3339),
	})
}

// writeSessionError maps the session service's expected failures onto HTTP
// statuses: a missing credential is the caller's dependency problem, a failed
// refresh is the upstream's.
func (h *Handler) writeSessionError(w http.ResponseWriter, userID string, err error) {
	if errors.Is(err, application.ErrSessionNotConfigured) {
		writeError(w, http.StatusFailedDependency, "marketplace session not configured")
		return
	}

	var refreshErr *application.RefreshFailedError
	if errors.As(err, &refreshErr) {
		writeError(w, http.StatusBadGateway, "marketplace session refresh failed: "+refreshErr.Reason)
		return
	}

	h.logger.Error("request failed", "user", userID, "error", err)
	writeError(w, http.StatusInternalServerError, "internal server error")
}
