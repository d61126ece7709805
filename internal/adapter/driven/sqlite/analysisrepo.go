package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/flavio-cbz/logistix/internal/domain/model"
	"github.com/flavio-cbz/logistix/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.AnalysisStore = (*AnalysisRepo)(nil)

// AnalysisRepo is the SQLite implementation of the AnalysisStore port.
// The analysis payload is stored as a JSON blob; only the search text and
// timestamp are queryable columns, which is all the trend KPI needs.
type AnalysisRepo struct {
	db *DB
}

// NewAnalysisRepo creates a new AnalysisRepo backed by the given DB.
func NewAnalysisRepo(db *DB) *AnalysisRepo {
	return &AnalysisRepo{db: db}
}

// Save appends one analysis row for the given user and search text.
func (r *AnalysisRepo) Save(ctx context.Context, userID, searchText string, analysis model.MarketAnalysis) error {
	payload, err := json.Marshal(analysis)
	if err != nil {
		return fmt.Errorf("marshal analysis for %q: %w", searchText, err)
	}

	analyzedAt := analysis.AnalyzedAt
	if analyzedAt.IsZero() {
		analyzedAt = time.Now().UTC()
	}

	const query = `
		INSERT INTO market_analyses (user_id, search_text, analyzed_at, analysis_data)
		VALUES (?, ?, ?, ?)`

	_, err = r.db.Writer.ExecContext(ctx, query,
		userID, searchText, analyzedAt.UTC().Format(time.RFC3339Nano), string(payload))
	if err != nil {
		return fmt.Errorf("save analysis for %q: %w", searchText, err)
	}

	return nil
}

// History returns up to limit analyses for the search text, newest first.
func (r *AnalysisRepo) History(ctx context.Context, searchText string, limit int) ([]model.StoredAnalysis, error) {
	const query = `
		SELECT id, user_id, search_text, analyzed_at, analysis_data
		FROM market_analyses
		WHERE search_text = ?
		ORDER BY analyzed_at DESC
		LIMIT ?`

	rows, err := r.db.Reader.QueryContext(ctx, query, searchText, limit)
	if err != nil {
		return nil, fmt.Errorf("query analysis history for %q: %w", searchText, err)
	}
	defer rows.Close()

	return collectAnalyses(rows)
}

// ListByUser returns all analyses saved by the given user, newest first.
func (r *AnalysisRepo) ListByUser(ctx context.Context, userID string) ([]model.StoredAnalysis, error) {
	const query = `
		SELECT id, user_id, search_text, analyzed_at, analysis_data
		FROM market_analyses
		WHERE user_id = ?
		ORDER BY analyzed_at DESC`

	rows, err := r.db.Reader.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list analyses for user %q: %w", userID, err)
	}
	defer rows.Close()

	return collectAnalyses(rows)
}

// Delete removes one analysis row owned by the given user. Deleting a row
// that does not exist (or belongs to another user) is not an error.
func (r *AnalysisRepo) Delete(ctx context.Context, userID string, id int64) error {
	const query = `DELETE FROM market_analyses WHERE id = ? AND user_id = ?`

	if _, err := r.db.Writer.ExecContext(ctx, query, id, userID); err != nil {
		return fmt.Errorf("delete analysis %d: %w", id, err)
	}
	return nil
}

func collectAnalyses(rows *sql.Rows) ([]model.StoredAnalysis, error) {
	var analyses []model.StoredAnalysis
	for rows.Next() {
		var stored model.StoredAnalysis
		var analyzedAt, payload string

		if err := rows.Scan(&stored.ID, &stored.UserID, &stored.SearchText, &analyzedAt, &payload); err != nil {
			return nil, fmt.Errorf("scan analysis: %w", err)
		}

		t, err := parseTime(analyzedAt)
		if err != nil {
			return nil, fmt.Errorf("parse analyzed_at: %w", err)
		}
		stored.AnalyzedAt = t

		if err := json.Unmarshal([]byte(payload), &stored.Analysis); err != nil {
			return nil, fmt.Errorf("unmarshal analysis %d: %w", stored.ID, err)
		}

		analyses = append(analyses, stored)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate analyses: %w", err)
	}

	return analyses, nil
}
