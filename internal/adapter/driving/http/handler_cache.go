package httphandler

import (
	"net/http"
)

// CacheStats returns the current size and keys of the in-memory cache.
// Intended for operational debugging.
func (h *Handler) CacheStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.cacheSvc.Stats())
}

// CacheCleanup evicts all expired cache entries and reports how many were
// removed. Expired entries are otherwise evicted lazily, so this is only
// needed to reclaim memory eagerly.
func (h *Handler) CacheCleanup(w http.ResponseWriter, _ *http.Request) {
	removed := h.cacheSvc.CleanupExpired()
	writeJSON(w, http.StatusOK, CacheCleanupResponse{Removed: removed})
}
