package driven

import (
	"context"

	"github.com/flavio-cbz/logistix/internal/domain/model"
)

// MarketplaceClient defines the driven port for the external marketplace API.
// All calls authenticate with a bearer access token supplied by the session
// service; the adapter never persists tokens.
type MarketplaceClient interface {
	// CheckToken reports whether the remote system still accepts the access
	// token. A rejected token is (false, nil); errors are reserved for
	// network or protocol failures where validity is unknown.
	CheckToken(ctx context.Context, accessToken string) (bool, error)

	// RefreshAccessToken exchanges a refresh token for a renewed pair.
	RefreshAccessToken(ctx context.Context, refreshToken string) (model.TokenPair, error)

	// SearchSoldItems fetches one page of sold listings matching the query.
	// Pages are 1-based; an empty page signals the end of results.
	SearchSoldItems(ctx context.Context, accessToken string, query model.AnalysisQuery, page int) ([]model.SoldItem, error)

	// FetchBrands returns brand reference entries, optionally filtered by a
	// search string.
	FetchBrands(ctx context.Context, accessToken, search string) ([]model.Brand, error)

	// FetchCatalogs returns all catalog (category) reference entries.
	FetchCatalogs(ctx context.Context, accessToken string) ([]model.Catalog, error)
}
