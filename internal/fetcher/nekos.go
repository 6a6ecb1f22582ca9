package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"emilia-bot/internal/config"
	"emilia-bot/internal/models"
)

// nekos.best only serves a subset of our SFW genres.
var nekosCategories = map[string]string{
	"waifu": "waifu",
	"neko":  "neko",
}

// NekosClient talks to the nekos.best REST API:
// GET {base}/{category} -> {"results": [{"url": "...", "artist_name": "..."}]}.
// SFW only.
type NekosClient struct {
	baseURL string
	client  *http.Client
	picker  *picker
}

func NewNekos(cfg config.NekosConfig, opts ...Option) *NekosClient {
	o := buildOptions(cfg.Timeout, opts)
	return &NekosClient{
		baseURL: cfg.BaseURL,
		client:  o.httpClient,
		picker:  newPicker(o.seed),
	}
}

func (c *NekosClient) Fetch(ctx context.Context, genre string, nsfw bool) (*models.MediaItem, error) {
	if nsfw {
		return nil, ErrUnsupportedGenre
	}
	category, ok := nekosCategories[genre]
	if !ok {
		return nil, ErrUnsupportedGenre
	}

	url := fmt.Sprintf("%s/%s", c.baseURL, category)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("nekos.best request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("nekos.best returned status %d", resp.StatusCode)
	}

	var payload struct {
		Results []struct {
			URL        string `json:"url"`
			ArtistName string `json:"artist_name"`
			SourceURL  string `json:"source_url"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, ErrNoContent
	}
	if len(payload.Results) == 0 {
		return nil, ErrNoContent
	}

	result := payload.Results[c.picker.pick(len(payload.Results))]
	if result.URL == "" {
		return nil, ErrNoContent
	}

	return &models.MediaItem{
		URL:       result.URL,
		Title:     result.ArtistName,
		SourceURL: result.SourceURL,
		NSFW:      false,
		Source:    models.SourceNekosBest,
	}, nil
}
