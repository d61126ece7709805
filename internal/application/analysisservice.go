package application

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/flavio-cbz/logistix/internal/domain/model"
	"github.com/flavio-cbz/logistix/internal/domain/port/driven"
)

// recommendedPriceFactor discounts the observed average slightly so a new
// listing undercuts the market.
const recommendedPriceFactor = 0.95

// trendHistoryLimit bounds how many stored analyses feed the 30-day trend.
const trendHistoryLimit = 30

// brandCorrections maps common misspellings to the canonical brand name.
var brandCorrections = map[string]string{
	"nik":     "nike",
	"nikee":   "nike",
	"addidas": "adidas",
	"adiddas": "adidas",
	"pumaa":   "puma",
	"zaara":   "zara",
}

// NormalizeSearchText lowercases the query and fixes known brand
// misspellings word by word, so "Addidas hoodie" and "adidas hoodie" share
// one analysis history.
func NormalizeSearchText(text string) string {
	words := strings.Fields(strings.ToLower(strings.TrimSpace(text)))
	for i, w := range words {
		if corrected, ok := brandCorrections[w]; ok {
			words[i] = corrected
		}
	}
	return strings.Join(words, " ")
}

// AnalysisService turns raw sold-item listings into market metrics and
// persists each result so later runs can compute a price trend.
type AnalysisService struct {
	store driven.AnalysisStore
	now   func() time.Time
}

// NewAnalysisService creates an AnalysisService backed by the given store.
func NewAnalysisService(store driven.AnalysisStore) *AnalysisService {
	return &AnalysisService{store: store, now: time.Now}
}

// Analyze computes price statistics, distributions, and KPIs over the given
// sold items, persists the result under the user's history, and returns it.
// An empty item slice yields a zeroed analysis, which is still persisted so
// the history reflects the attempt.
func (s *AnalysisService) Analyze(ctx context.Context, userID, searchText string, items []model.SoldItem) (model.MarketAnalysis, error) {
	analysis := s.compute(ctx, searchText, items)

	if err := s.store.Save(ctx, userID, searchText, analysis); err != nil {
		return model.MarketAnalysis{}, fmt.Errorf("persist analysis for %q: %w", searchText, err)
	}

	return analysis, nil
}

func (s *AnalysisService) compute(ctx context.Context, searchText string, items []model.SoldItem) model.MarketAnalysis {
	analysis := model.MarketAnalysis{
		AnalyzedAt:            s.now().UTC(),
		BrandDistribution:     map[string]int{},
		ConditionDistribution: map[string]int{},
	}
	if len(items) == 0 {
		return analysis
	}

	prices := make([]float64, 0, len(items))
	sellers := map[string]struct{}{}
	for _, item := range items {
		prices = append(prices, item.Price)
		analysis.BrandDistribution[item.Brand]++
		analysis.ConditionDistribution[item.Condition]++
		if item.SellerLogin != "" {
			sellers[item.SellerLogin] = struct{}{}
		}
	}

	avg := mean(prices)
	analysis.PriceAnalysis = model.PriceAnalysis{
		Min:     min64(prices),
		Max:     max64(prices),
		Average: round2(avg),
		Median:  round2(median(prices)),
	}
	analysis.Summary = model.AnalysisSummary{
		ItemsFound:   len(items),
		SellersCount: len(sellers),
	}

	// The marketplace exposes only sold listings, so total supply is
	// approximated as twice the sold volume.
	estimatedListed := len(items) * 2
	sellThrough := float64(len(items)) / float64(estimatedListed) * 100

	analysis.KPIs = model.KPIs{
		RecommendedPrice:     round2(avg * recommendedPriceFactor),
		SellThroughRate:      round2(sellThrough),
		CompetitivenessScore: round2(1 / (stddev(prices) + 1) * float64(len(sellers))),
		PriceTrend30d:        round2(s.priceTrend(ctx, searchText, avg)),
	}

	return analysis
}

// priceTrend compares the current average against the oldest stored average
// within the history window. History must be consulted before the current
// run is saved, or every trend would include itself.
func (s *AnalysisService) priceTrend(ctx context.Context, searchText string, currentAvg float64) float64 {
	history, err := s.store.History(ctx, searchText, trendHistoryLimit)
	if err != nil || len(history) == 0 {
		return 0
	}

	// History is newest-first; the last entry is the oldest reference point.
	oldest := history[len(history)-1].Analysis.PriceAnalysis.Average
	if oldest <= 0 {
		return 0
	}
	return (currentAvg - oldest) / oldest * 100
}

func mean(values []float64) float64 {
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func median(values []float64) float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

// stddev is the sample standard deviation; a single observation has no
// spread.
func stddev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	avg := mean(values)
	var sum float64
	for _, v := range values {
		d := v - avg
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(values)-1))
}

func min64(values []float64) float64 {
	m := values[0]
	for _, v := range values[1:] {
		if v < m {
			m = v
		}
	}
	return m
}

func max64(values []float64) float64 {
	m := values[0]
	for _, v := range values[1:] {
		if v > m {
			m = v
		}
	}
	return m
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
