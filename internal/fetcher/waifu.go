package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"emilia-bot/internal/config"
	"emilia-bot/internal/models"
)

// WaifuClient talks to the waifu.pics REST API:
// GET {base}/{sfw|nsfw}/{genre} -> {"url": "..."}.
type WaifuClient struct {
	baseURL string
	client  *http.Client
}

func NewWaifu(cfg config.WaifuConfig, opts ...Option) *WaifuClient {
	o := buildOptions(cfg.Timeout, opts)
	return &WaifuClient{
		baseURL: cfg.BaseURL,
		client:  o.httpClient,
	}
}

func (c *WaifuClient) Fetch(ctx context.Context, genre string, nsfw bool) (*models.MediaItem, error) {
	mode := "sfw"
	if nsfw {
		mode = "nsfw"
	}
	url := fmt.Sprintf("%s/%s/%s", c.baseURL, mode, genre)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("waifu.pics request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("waifu.pics returned status %d", resp.StatusCode)
	}

	var payload struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, ErrNoContent
	}
	if payload.URL == "" {
		return nil, ErrNoContent
	}

	return &models.MediaItem{
		URL:    payload.URL,
		NSFW:   nsfw,
		Source: models.SourceWaifuPics,
	}, nil
}
