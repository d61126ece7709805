// Package vinted implements the MarketplaceClient port against the Vinted
// web API.
package vinted

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gregjones/httpcache"

	"github.com/flavio-cbz/logistix/internal/domain/model"
	"github.com/flavio-cbz/logistix/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.MarketplaceClient = (*Client)(nil)

// ErrUnauthorized is returned when the marketplace rejects the access token
// (HTTP 401). CheckToken maps it to (false, nil); other callers treat it as
// a signal to refresh the session.
var ErrUnauthorized = errors.New("marketplace rejected the access token")

const (
	defaultBaseURL = "https://www.vinted.fr"
	userAgent      = "Logistix/1.0"
	perPage        = 96
)

// Client implements the driven.MarketplaceClient port. Its transport stack:
//  1. httpcache (ETag-based conditional request caching)
//  2. net/http with a per-request deadline
// Authentication is a bearer access token supplied per call; the client
// holds no credentials.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// NewClient creates a marketplace client with an in-memory caching transport.
// An empty baseURL selects the production host.
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		httpClient: &http.Client{
			Transport: httpcache.NewMemoryCacheTransport(),
			Timeout:   30 * time.Second,
		},
		baseURL: strings.TrimSuffix(baseURL, "/"),
	}
}

// NewClientWithHTTPClient creates a Client with a custom http.Client and base
// URL. Intended for testing against an httptest server.
func NewClientWithHTTPClient(httpClient *http.Client, baseURL string) *Client {
	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
	}
}

// CheckToken reports whether the remote system still accepts the access
// token, using the cheapest authenticated request available.
func (c *Client) CheckToken(ctx context.Context, accessToken string) (bool, error) {
	params := url.Values{"per_page": {"1"}}
	var out catalogItemsResponse
	err := c.getJSON(ctx, accessToken, "/api/v2/catalog/items", params, &out)
	if errors.Is(err, ErrUnauthorized) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// RefreshAccessToken exchanges a refresh token for a renewed pair.
func (c *Client) RefreshAccessToken(ctx context.Context, refreshToken string) (model.TokenPair, error) {
	form := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/oauth/token", strings.NewReader(form.Encode()))
	if err != nil {
		return model.TokenPair{}, fmt.Errorf("build refresh request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return model.TokenPair{}, fmt.Errorf("refresh token exchange: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return model.TokenPair{}, fmt.Errorf("refresh token exchange: %w", ErrUnauthorized)
	}
	if resp.StatusCode != http.StatusOK {
		return model.TokenPair{}, fmt.Errorf("refresh token exchange: unexpected status %d", resp.StatusCode)
	}

	var pair model.TokenPair
	if err := json.NewDecoder(resp.Body).Decode(&pair); err != nil {
		return model.TokenPair{}, fmt.Errorf("decode refresh response: %w", err)
	}
	if pair.AccessToken == "" {
		return model.TokenPair{}, errors.New("refresh response missing access_token")
	}

	return pair, nil
}

// SearchSoldItems fetches one page of sold listings matching the query.
// Items with malformed price payloads are skipped rather than failing the page.
func (c *Client) SearchSoldItems(ctx context.Context, accessToken string, query model.AnalysisQuery, page int) ([]model.SoldItem, error) {
	params := url.Values{
		"per_page": {strconv.Itoa(perPage)},
		"page":     {strconv.Itoa(page)},
		"order":    {"relevance"},
	}
	if query.SearchText != "" {
		params.Set("search_text", query.SearchText)
	}
	if query.BrandID != 0 {
		params.Set("brand_ids", strconv.FormatInt(query.BrandID, 10))
	}
	if query.CatalogID != 0 {
		params.Set("catalog_ids", strconv.FormatInt(query.CatalogID, 10))
	}
	if query.StatusID != 0 {
		params.Set("status_ids", strconv.FormatInt(query.StatusID, 10))
	} else {
		// The marketplace flags sold listings with is_for_sale=0.
		params.Set("is_for_sale", "0")
	}

	var out catalogItemsResponse
	if err := c.getJSON(ctx, accessToken, "/api/v2/catalog/items", params, &out); err != nil {
		return nil, fmt.Errorf("search sold items (page %d): %w", page, err)
	}

	items := make([]model.SoldItem, 0, len(out.Items))
	var skipped int
	for _, item := range out.Items {
		mapped, err := mapSoldItem(item)
		if err != nil {
			skipped++
			continue
		}
		items = append(items, mapped)
	}
	if skipped > 0 {
		slog.Debug("skipped malformed listings", "page", page, "skipped", skipped)
	}

	return items, nil
}

// FetchBrands returns brand reference entries, optionally filtered by a
// search string.
func (c *Client) FetchBrands(ctx context.Context, accessToken, search string) ([]model.Brand, error) {
	params := url.Values{"per_page": {"1000"}}
	if search != "" {
		params.Set("search_text", search)
	}

	var out struct {
		Brands []referenceEntry `json:"brands"`
	}
	if err := c.getJSON(ctx, accessToken, "/api/v2/brands", params, &out); err != nil {
		return nil, fmt.Errorf("fetch brands: %w", err)
	}

	brands := make([]model.Brand, 0, len(out.Brands))
	for _, b := range out.Brands {
		brands = append(brands, model.Brand{ID: b.ID, Title: b.Title})
	}
	return brands, nil
}

// FetchCatalogs returns all catalog (category) reference entries.
func (c *Client) FetchCatalogs(ctx context.Context, accessToken string) ([]model.Catalog, error) {
	var out struct {
		Catalogs []referenceEntry `json:"catalogs"`
	}
	if err := c.getJSON(ctx, accessToken, "/api/v2/catalogs", nil, &out); err != nil {
		return nil, fmt.Errorf("fetch catalogs: %w", err)
	}

	catalogs := make([]model.Catalog, 0, len(out.Catalogs))
	for _, cat := range out.Catalogs {
		catalogs = append(catalogs, model.Catalog{ID: cat.ID, Title: cat.Title})
	}
	return catalogs, nil
}

// getJSON issues an authenticated GET and decodes the JSON response.
func (c *Client) getJSON(ctx context.Context, accessToken, path string, params url.Values, out any) error {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("build request %s: %w", path, err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return fmt.Errorf("GET %s: %w", path, ErrUnauthorized)
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("GET %s: unexpected status %d: %s", path, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

// Wire types. The marketplace payload is much richer; only the fields the
// analyzer consumes are mapped.

type catalogItemsResponse struct {
	Items []wireItem `json:"items"`
}

type wireItem struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
	Price struct {
		Amount string `json:"amount"`
	} `json:"price"`
	BrandTitle string `json:"brand_title"`
	Status     string `json:"status"`
	User       struct {
		Login string `json:"login"`
	} `json:"user"`
}

type referenceEntry struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
}

func mapSoldItem(item wireItem) (model.SoldItem, error) {
	price, err := strconv.ParseFloat(item.Price.Amount, 64)
	if err != nil {
		return model.SoldItem{}, fmt.Errorf("parse price %q: %w", item.Price.Amount, err)
	}

	brand := item.BrandTitle
	if brand == "" {
		brand = "unspecified"
	}
	condition := item.Status
	if condition == "" {
		condition = "unspecified"
	}

	return model.SoldItem{
		ID:          item.ID,
		Title:       item.Title,
		Price:       price,
		Brand:       brand,
		Condition:   condition,
		SellerLogin: item.User.Login,
	}, nil
}
