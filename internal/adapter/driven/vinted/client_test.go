package vinted_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flavio-cbz/logistix/internal/adapter/driven/vinted"
	"github.com/flavio-cbz/logistix/internal/domain/model"
)

// newTestClient creates a Client backed by the given httptest handler.
func newTestClient(t *testing.T, handler http.Handler) *vinted.Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return vinted.NewClientWithHTTPClient(server.Client(), server.URL)
}

// itemJSON builds one marketplace catalog item payload.
func itemJSON(id int64, title, amount, brand, status, seller string) map[string]any {
	return map[string]any{
		"id":          id,
		"title":       title,
		"price":       map[string]any{"amount": amount},
		"brand_title": brand,
		"status":      status,
		"user":        map[string]any{"login": seller},
	}
}

func TestSearchSoldItems_MapsPayload(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v2/catalog/items", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, "96", r.URL.Query().Get("per_page"))
		assert.Equal(t, "2", r.URL.Query().Get("page"))
		assert.Equal(t, "nike air max", r.URL.Query().Get("search_text"))

		_ = json.NewEncoder(w).Encode(map[string]any{
			"items": []map[string]any{
				itemJSON(1, "Air Max 90", "45.50", "Nike", "Good", "alice"),
				itemJSON(2, "Air Max 95", "not-a-price", "Nike", "Good", "bob"), // skipped
				itemJSON(3, "Air Max 97", "60.00", "", "", "carol"),
			},
		})
	}))

	items, err := client.SearchSoldItems(context.Background(), "tok",
		model.AnalysisQuery{SearchText: "nike air max"}, 2)

	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, model.SoldItem{
		ID: 1, Title: "Air Max 90", Price: 45.50,
		Brand: "Nike", Condition: "Good", SellerLogin: "alice",
	}, items[0])
	assert.Equal(t, "unspecified", items[1].Brand)
	assert.Equal(t, "unspecified", items[1].Condition)
}

func TestSearchSoldItems_QueryFilters(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "7", r.URL.Query().Get("brand_ids"))
		assert.Equal(t, "12", r.URL.Query().Get("catalog_ids"))
		assert.Equal(t, "2", r.URL.Query().Get("status_ids"))
		assert.Empty(t, r.URL.Query().Get("is_for_sale"))
		_ = json.NewEncoder(w).Encode(map[string]any{"items": []any{}})
	}))

	items, err := client.SearchSoldItems(context.Background(), "tok",
		model.AnalysisQuery{BrandID: 7, CatalogID: 12, StatusID: 2}, 1)

	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestSearchSoldItems_Unauthorized(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))

	_, err := client.SearchSoldItems(context.Background(), "expired",
		model.AnalysisQuery{SearchText: "x"}, 1)

	assert.ErrorIs(t, err, vinted.ErrUnauthorized)
}

func TestCheckToken(t *testing.T) {
	t.Run("accepted", func(t *testing.T) {
		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(map[string]any{"items": []any{}})
		}))

		ok, err := client.CheckToken(context.Background(), "tok")
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("rejected", func(t *testing.T) {
		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		}))

		ok, err := client.CheckToken(context.Background(), "expired")
		require.NoError(t, err, "a rejected token is not an error")
		assert.False(t, ok)
	})

	t.Run("server error", func(t *testing.T) {
		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))

		_, err := client.CheckToken(context.Background(), "tok")
		assert.Error(t, err, "unknown validity must surface as an error")
	})
}

func TestRefreshAccessToken(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/oauth/token", r.URL.Path)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.PostForm.Get("grant_type"))
		assert.Equal(t, "old-refresh", r.PostForm.Get("refresh_token"))

		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "new-access",
			"refresh_token": "new-refresh",
		})
	}))

	pair, err := client.RefreshAccessToken(context.Background(), "old-refresh")

	require.NoError(t, err)
	assert.Equal(t, model.TokenPair{AccessToken: "new-access", RefreshToken: "new-refresh"}, pair)
}

func TestRefreshAccessToken_Rejected(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))

	_, err := client.RefreshAccessToken(context.Background(), "revoked")
	assert.ErrorIs(t, err, vinted.ErrUnauthorized)
}

func TestFetchBrandsAndCatalogs(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v2/brands":
			assert.Equal(t, "nike", r.URL.Query().Get("search_text"))
			_ = json.NewEncoder(w).Encode(map[string]any{
				"brands": []map[string]any{{"id": 53, "title": "Nike"}},
			})
		case "/api/v2/catalogs":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"catalogs": []map[string]any{{"id": 2050, "title": "Sneakers"}},
			})
		default:
			http.NotFound(w, r)
		}
	}))

	brands, err := client.FetchBrands(context.Background(), "tok", "nike")
	require.NoError(t, err)
	assert.Equal(t, []model.Brand{{ID: 53, Title: "Nike"}}, brands)

	catalogs, err := client.FetchCatalogs(context.Background(), "tok")
	require.NoError(t, err)
	assert.Equal(t, []model.Catalog{{ID: 2050, Title: "Sneakers"}}, catalogs)
}
