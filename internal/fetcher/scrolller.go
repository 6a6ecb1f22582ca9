package fetcher

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"emilia-bot/internal/config"
	"emilia-bot/internal/models"
	"emilia-bot/pkg/logger"
)

const subredditQuery = `query SubredditQuery($url: String!, $filter: SubredditPostFilter, $limit: Int) {
  getSubreddit(url: $url) {
    children(limit: $limit, filter: $filter) {
      items {
        title
        url
        isNsfw
        mediaSources {
          url
        }
      }
    }
  }
}`

// ScrolllerClient scrapes subreddit listings through the Scrolller
// GraphQL endpoint. Responses are filtered to allow-listed media URLs;
// items that do not qualify are dropped.
type ScrolllerClient struct {
	cfg    config.ScrolllerConfig
	client *http.Client
	picker *picker
	cache  MediaCache
}

func NewScrolller(cfg config.ScrolllerConfig, opts ...Option) *ScrolllerClient {
	o := buildOptions(cfg.Timeout, opts)
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.Limit <= 0 {
		cfg.Limit = 30
	}
	return &ScrolllerClient{
		cfg:    cfg,
		client: o.httpClient,
		picker: newPicker(o.seed),
	}
}

// SetCache wires the prefetch cache in; nil leaves the client purely
// live-fetching.
func (c *ScrolllerClient) SetCache(cache MediaCache) {
	c.cache = cache
}

func (c *ScrolllerClient) Fetch(ctx context.Context, genre string, nsfw bool) (*models.MediaItem, error) {
	subreddit := c.cfg.SubredditFor(genre)
	if subreddit == "" {
		return nil, ErrUnsupportedGenre
	}

	if c.cache != nil {
		if item, ok := c.cache.Random(ctx, subreddit, nsfw); ok {
			return item, nil
		}
	}

	var lastErr error
	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		items, err := c.Listing(ctx, subreddit, nsfw)
		if err != nil {
			logger.Warn("Scrolller attempt failed",
				logger.String("subreddit", subreddit),
				logger.Int("attempt", attempt),
				logger.Err(err),
			)
			lastErr = err
			continue
		}
		if len(items) == 0 {
			lastErr = ErrNoContent
			continue
		}

		if c.cache != nil {
			for i := range items {
				if err := c.cache.Add(ctx, subreddit, &items[i]); err != nil {
					logger.Debug("Failed to cache media item", logger.Err(err))
				}
			}
		}

		item := items[c.picker.pick(len(items))]
		return &item, nil
	}

	if errors.Is(lastErr, ErrNoContent) {
		return nil, ErrNoContent
	}
	return nil, fmt.Errorf("scrolller: %d attempts failed: %w", c.cfg.MaxAttempts, lastErr)
}

// Listing performs a single GraphQL request and returns the qualifying
// items. An upstream answer with nothing usable yields an empty slice,
// not an error.
func (c *ScrolllerClient) Listing(ctx context.Context, subreddit string, nsfw bool) ([]models.MediaItem, error) {
	body, err := json.Marshal(map[string]any{
		"query": subredditQuery,
		"variables": map[string]any{
			"url":    "/r/" + subreddit,
			"filter": nil,
			"limit":  c.cfg.Limit,
		},
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/api/v2/graphql", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("scrolller request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("scrolller returned status %d", resp.StatusCode)
	}

	var payload scrolllerResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("scrolller response malformed: %w", err)
	}

	var items []models.MediaItem
	for _, raw := range payload.Data.GetSubreddit.Children.Items {
		if !nsfw && raw.IsNsfw {
			continue
		}
		mediaURL := firstAllowedSource(raw.MediaSources)
		if mediaURL == "" {
			continue
		}
		items = append(items, models.MediaItem{
			URL:       mediaURL,
			Title:     raw.Title,
			SourceURL: postURL(raw.URL),
			NSFW:      nsfw,
			Source:    models.SourceScrolller,
		})
	}
	return items, nil
}

type scrolllerResponse struct {
	Data struct {
		GetSubreddit struct {
			Children struct {
				Items []scrolllerItem `json:"items"`
			} `json:"children"`
		} `json:"getSubreddit"`
	} `json:"data"`
}

type scrolllerItem struct {
	Title        string        `json:"title"`
	URL          string        `json:"url"`
	IsNsfw       bool          `json:"isNsfw"`
	MediaSources []mediaSource `json:"mediaSources"`
}

type mediaSource struct {
	URL string `json:"url"`
}

func firstAllowedSource(sources []mediaSource) string {
	for _, src := range sources {
		if AllowedMediaURL(src.URL) {
			return src.URL
		}
	}
	return ""
}

func postURL(path string) string {
	if path == "" {
		return ""
	}
	if strings.HasPrefix(path, "/") {
		return "https://scrolller.com" + path
	}
	return path
}
