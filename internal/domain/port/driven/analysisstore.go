package driven

import (
	"context"

	"github.com/flavio-cbz/logistix/internal/domain/model"
)

// AnalysisStore defines the driven port for market-analysis history
// persistence. History feeds the 30-day price-trend KPI.
type AnalysisStore interface {
	// Save appends one analysis row for the given user and search text.
	Save(ctx context.Context, userID, searchText string, analysis model.MarketAnalysis) error

	// History returns up to limit analyses for the search text, newest first.
	History(ctx context.Context, searchText string, limit int) ([]model.StoredAnalysis, error)

	// ListByUser returns all analyses saved by the given user, newest first.
	ListByUser(ctx context.Context, userID string) ([]model.StoredAnalysis, error)

	// Delete removes one analysis row owned by the given user.
	// Deleting a row that does not exist is not an error.
	Delete(ctx context.Context, userID string, id int64) error
}
