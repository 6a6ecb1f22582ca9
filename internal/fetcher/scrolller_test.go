package fetcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"emilia-bot/internal/config"
	"emilia-bot/internal/models"
)

func scrolllerPayload(urls ...string) string {
	items := make([]map[string]any, len(urls))
	for i, u := range urls {
		items[i] = map[string]any{
			"title":        fmt.Sprintf("post %d", i+1),
			"url":          fmt.Sprintf("/r/test/post-%d", i+1),
			"isNsfw":       true,
			"mediaSources": []map[string]any{{"url": u}},
		}
	}
	payload := map[string]any{
		"data": map[string]any{
			"getSubreddit": map[string]any{
				"children": map[string]any{"items": items},
			},
		},
	}
	data, _ := json.Marshal(payload)
	return string(data)
}

func newScrolllerTestClient(t *testing.T, handler http.HandlerFunc) *ScrolllerClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewScrolller(config.ScrolllerConfig{
		BaseURL:     server.URL,
		Timeout:     time.Second,
		MaxAttempts: 3,
		Limit:       10,
		Subreddits:  map[string]string{"waifu": "test"},
	}, WithSeed(42))
}

func TestScrolllerFetch(t *testing.T) {
	client := newScrolllerTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(scrolllerPayload("https://i.redd.it/a.jpg")))
	})

	item, err := client.Fetch(context.Background(), "waifu", true)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if item.URL != "https://i.redd.it/a.jpg" {
		t.Errorf("URL = %s, want https://i.redd.it/a.jpg", item.URL)
	}
	if item.SourceURL != "https://scrolller.com/r/test/post-1" {
		t.Errorf("SourceURL = %s, want the scrolller post link", item.SourceURL)
	}
	if item.Source != models.SourceScrolller {
		t.Errorf("Source = %s, want %s", item.Source, models.SourceScrolller)
	}
}

// A permanently failing upstream is retried exactly MaxAttempts times,
// then surfaced as a hard error, not as no-content.
func TestScrolllerRetriesExactly(t *testing.T) {
	var requests int
	client := newScrolllerTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := client.Fetch(context.Background(), "waifu", true)
	if err == nil {
		t.Fatal("Expected error after exhausted retries")
	}
	if errors.Is(err, ErrNoContent) {
		t.Error("Hard upstream failure must be distinct from no-content")
	}
	if requests != 3 {
		t.Errorf("Upstream called %d times, want exactly 3", requests)
	}
}

// An upstream that answers but yields nothing qualifying exhausts the
// same attempt budget and reports no-content.
func TestScrolllerNoQualifyingItems(t *testing.T) {
	var requests int
	client := newScrolllerTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.Write([]byte(scrolllerPayload("https://v.redd.it/video.mp4")))
	})

	_, err := client.Fetch(context.Background(), "waifu", true)
	if !errors.Is(err, ErrNoContent) {
		t.Errorf("Fetch() error = %v, want ErrNoContent", err)
	}
	if requests != 3 {
		t.Errorf("Upstream called %d times, want 3", requests)
	}
}

func TestScrolllerListingFiltersDisallowed(t *testing.T) {
	client := newScrolllerTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(scrolllerPayload(
			"https://i.redd.it/a.jpg",
			"https://v.redd.it/clip.mp4",
			"https://i.imgur.com/b",
			"https://example.com/c.webm",
		)))
	})

	items, err := client.Listing(context.Background(), "test", true)
	if err != nil {
		t.Fatalf("Listing() error = %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("Listing() returned %d items, want 2 (disallowed dropped, not substituted)", len(items))
	}
	for _, item := range items {
		if !AllowedMediaURL(item.URL) {
			t.Errorf("Listing() returned disallowed URL %s", item.URL)
		}
	}
}

// Zero qualifying items is an empty result, not an error, at the
// listing level.
func TestScrolllerListingEmptyIsNotAnError(t *testing.T) {
	client := newScrolllerTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(scrolllerPayload()))
	})

	items, err := client.Listing(context.Background(), "test", true)
	if err != nil {
		t.Fatalf("Listing() error = %v, want nil", err)
	}
	if len(items) != 0 {
		t.Errorf("Listing() returned %d items, want 0", len(items))
	}
}

func TestScrolllerListingDropsNSFWInSFWMode(t *testing.T) {
	client := newScrolllerTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(scrolllerPayload("https://i.redd.it/a.jpg")))
	})

	items, err := client.Listing(context.Background(), "test", false)
	if err != nil {
		t.Fatalf("Listing() error = %v", err)
	}
	if len(items) != 0 {
		t.Errorf("SFW listing returned %d nsfw-flagged items, want 0", len(items))
	}
}

type recordingCache struct {
	items  map[string][]models.MediaItem
	served *models.MediaItem
}

func newRecordingCache() *recordingCache {
	return &recordingCache{items: make(map[string][]models.MediaItem)}
}

func (c *recordingCache) Add(_ context.Context, subreddit string, item *models.MediaItem) error {
	c.items[subreddit] = append(c.items[subreddit], *item)
	return nil
}

func (c *recordingCache) Random(_ context.Context, subreddit string, nsfw bool) (*models.MediaItem, bool) {
	if c.served != nil {
		return c.served, true
	}
	return nil, false
}

func TestScrolllerFetchPopulatesCache(t *testing.T) {
	client := newScrolllerTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(scrolllerPayload("https://i.redd.it/a.jpg", "https://i.redd.it/b.png")))
	})
	rc := newRecordingCache()
	client.SetCache(rc)

	if _, err := client.Fetch(context.Background(), "waifu", true); err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if len(rc.items["test"]) != 2 {
		t.Errorf("Cache holds %d items, want 2", len(rc.items["test"]))
	}
}

func TestScrolllerFetchServesFromCache(t *testing.T) {
	var requests int
	client := newScrolllerTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.Write([]byte(scrolllerPayload("https://i.redd.it/a.jpg")))
	})
	rc := newRecordingCache()
	rc.served = &models.MediaItem{URL: "https://i.redd.it/cached.jpg"}
	client.SetCache(rc)

	item, err := client.Fetch(context.Background(), "waifu", true)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if item.URL != "https://i.redd.it/cached.jpg" {
		t.Errorf("URL = %s, want the cached item", item.URL)
	}
	if requests != 0 {
		t.Errorf("Upstream called %d times, want 0 on cache hit", requests)
	}
}
