package model

import "time"

// AnalysisQuery identifies one market analysis request. Queries that are
// structurally equal must memoize to the same cache entry, so the engine
// canonicalizes the struct before deriving a cache key.
type AnalysisQuery struct {
	SearchText string `json:"search_text"`
	BrandID    int64  `json:"brand_id,omitempty"`
	CatalogID  int64  `json:"catalog_id,omitempty"`
	StatusID   int64  `json:"status_id,omitempty"`
	Pages      int    `json:"pages,omitempty"`
}

// SoldItem is the slice of a marketplace listing the analyzer cares about.
type SoldItem struct {
	ID          int64
	Title       string
	Price       float64
	Brand       string
	Condition   string
	SellerLogin string
}

// PriceAnalysis summarizes the price distribution of the analyzed items.
type PriceAnalysis struct {
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	Average float64 `json:"average"`
	Median  float64 `json:"median"`
}

// AnalysisSummary carries the headline counts of an analysis.
type AnalysisSummary struct {
	ItemsFound   int `json:"items_found"`
	SellersCount int `json:"sellers_count"`
}

// KPIs are the derived performance indicators computed from one analysis run
// plus the stored history for the same search text.
type KPIs struct {
	RecommendedPrice     float64 `json:"recommended_price"`
	SellThroughRate      float64 `json:"sell_through_rate"`
	CompetitivenessScore float64 `json:"competitiveness_score"`
	PriceTrend30d        float64 `json:"price_trend_30d"`
}

// MarketAnalysis is the derived analytics payload for one query. It is
// expensive to compute (many remote pulls), so results are memoized with a
// TTL and persisted for trend history.
type MarketAnalysis struct {
	AnalyzedAt            time.Time       `json:"analyzed_at"`
	PriceAnalysis         PriceAnalysis   `json:"price_analysis"`
	Summary               AnalysisSummary `json:"summary"`
	BrandDistribution     map[string]int  `json:"brand_distribution"`
	ConditionDistribution map[string]int  `json:"condition_distribution"`
	KPIs                  KPIs            `json:"kpis"`
}

// StoredAnalysis is one persisted history row.
type StoredAnalysis struct {
	ID         int64
	UserID     string
	SearchText string
	AnalyzedAt time.Time
	Analysis   MarketAnalysis
}
