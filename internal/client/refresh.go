package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pricepulse/pulse/internal/market"
)

// AssetStore is the part of the store the Refresher drives.
type AssetStore interface {
	RefreshData()
	SetAssets(assets []market.Asset)
	SetLoading(loading bool)
	SetError(msg string)
}

// Refresher re-seeds the asset table from the feed server's catalog.
type Refresher struct {
	baseURL string
	http    *http.Client
	store   AssetStore
	logger  *zap.Logger
}

// NewRefresher returns a Refresher for the API rooted at baseURL.
func NewRefresher(baseURL string, store AssetStore, logger *zap.Logger) *Refresher {
	return &Refresher{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
		store:   store,
		logger:  logger,
	}
}

type assetsRes struct {
	Success bool           `json:"success"`
	Data    []market.Asset `json:"data"`
	Error   string         `json:"error"`
}

// Refresh marks the store loading, fetches the catalog and replaces the
// asset collection. On failure the loading flag is cleared and the error is
// published.
func (r *Refresher) Refresh(ctx context.Context) error {
	r.store.RefreshData()

	assets, err := r.fetch(ctx)
	if err != nil {
		r.logger.Warn("refresh failed", zap.Error(err))
		r.store.SetLoading(false)
		r.store.SetError("Failed to load assets")
		return err
	}

	r.store.SetAssets(assets)
	r.logger.Debug("assets refreshed", zap.Int("count", len(assets)))
	return nil
}

func (r *Refresher) fetch(ctx context.Context) ([]market.Asset, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+"/api/cryptos", nil)
	if err != nil {
		return nil, fmt.Errorf("client: build refresh request: %w", err)
	}

	resp, err := r.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("client: fetch assets: %w", err)
	}
	defer resp.Body.Close()

	var body assetsRes
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("client: decode assets (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK || !body.Success {
		return nil, fmt.Errorf("client: fetch assets: status %d: %s", resp.StatusCode, body.Error)
	}
	return body.Data, nil
}
