package httphandler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/flavio-cbz/logistix/internal/domain/model"
)

// writeJSON marshals v to JSON and writes it to the response with the given
// status code. If marshaling fails, a 500 error is written instead.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeError writes a JSON error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// errorResponse is the standard error response body.
type errorResponse struct {
	Error string `json:"error"`
}

// HealthResponse is the JSON representation of the health check endpoint.
type HealthResponse struct {
	Status string `json:"status"`
	Time   string `json:"time"`
}

// SaveSessionRequest is the JSON body for the save credential endpoint. The
// tokens map carries the marketplace sub-tokens (access_token, refresh_token,
// and any session cookies the marketplace requires).
type SaveSessionRequest struct {
	Tokens map[string]string `json:"tokens"`
}

// SessionResponse is the JSON representation of a session record. The
// encrypted credential is deliberately absent.
type SessionResponse struct {
	UserID              string `json:"user_id"`
	Status              string `json:"status"`
	LastValidatedAt     string `json:"last_validated_at,omitempty"`
	LastRefreshedAt     string `json:"last_refreshed_at,omitempty"`
	RefreshErrorMessage string `json:"refresh_error_message,omitempty"`
	UpdatedAt           string `json:"updated_at"`
}

// RefreshResponse is the JSON representation of a refresh attempt outcome.
type RefreshResponse struct {
	Renewed bool            `json:"renewed"`
	Session SessionResponse `json:"session"`
}

// StoredAnalysisResponse is the JSON representation of one persisted
// analysis history row.
type StoredAnalysisResponse struct {
	ID         int64                `json:"id"`
	UserID     string               `json:"user_id"`
	SearchText string               `json:"search_text"`
	AnalyzedAt string               `json:"analyzed_at"`
	Analysis   model.MarketAnalysis `json:"analysis"`
}

// BrandResponse is the JSON representation of a brand reference entry.
type BrandResponse struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
}

// CatalogResponse is the JSON representation of a catalog reference entry.
type CatalogResponse struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
}

// CacheCleanupResponse reports the outcome of an explicit cache sweep.
type CacheCleanupResponse struct {
	Removed int `json:"removed"`
}

// toSessionResponse converts a domain session record to its JSON response
// representation.
func toSessionResponse(session model.MarketSession) SessionResponse {
	return SessionResponse{
		UserID:              session.UserID,
		Status:              string(session.Status),
		LastValidatedAt:     formatOptionalTime(session.LastValidatedAt),
		LastRefreshedAt:     formatOptionalTime(session.LastRefreshedAt),
		RefreshErrorMessage: session.RefreshErrorMessage,
		UpdatedAt:           session.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

// toStoredAnalysisResponse converts a persisted analysis row to its JSON
// response representation.
func toStoredAnalysisResponse(s model.StoredAnalysis) StoredAnalysisResponse {
	return StoredAnalysisResponse{
		ID:         s.ID,
		UserID:     s.UserID,
		SearchText: s.SearchText,
		AnalyzedAt: s.AnalyzedAt.UTC().Format(time.RFC3339),
		Analysis:   s.Analysis,
	}
}

func formatOptionalTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
