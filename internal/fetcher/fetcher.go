package fetcher

import (
	"context"
	"errors"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"emilia-bot/internal/models"
	"emilia-bot/pkg/logger"
)

var (
	// ErrNoContent means the upstream answered but nothing qualifying was
	// found. Distinct from a hard API failure.
	ErrNoContent = errors.New("no content found")

	// ErrUnsupportedGenre means this client cannot serve the requested
	// genre or mode at all.
	ErrUnsupportedGenre = errors.New("genre not supported by this source")
)

// Fetcher returns one media item for a genre in the given mode.
type Fetcher interface {
	Fetch(ctx context.Context, genre string, nsfw bool) (*models.MediaItem, error)
}

// MediaCache is consulted before going upstream and populated from
// successful listings.
type MediaCache interface {
	Add(ctx context.Context, subreddit string, item *models.MediaItem) error
	Random(ctx context.Context, subreddit string, nsfw bool) (*models.MediaItem, bool)
}

var allowedExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
}

var allowedHosts = map[string]bool{
	"i.imgur.com":              true,
	"imgur.com":                true,
	"i.redd.it":                true,
	"preview.redd.it":          true,
	"external-preview.redd.it": true,
}

// AllowedMediaURL reports whether a scraped URL points at media the bot
// can send: an allow-listed image extension or a known image host.
// Anything else is dropped, not substituted.
func AllowedMediaURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return false
	}
	if allowedHosts[strings.ToLower(u.Host)] {
		return true
	}
	path := strings.ToLower(u.Path)
	if idx := strings.LastIndex(path, "."); idx >= 0 {
		return allowedExtensions[path[idx:]]
	}
	return false
}

type options struct {
	httpClient *http.Client
	seed       int64
}

type Option func(*options)

func WithHTTPClient(client *http.Client) Option {
	return func(o *options) {
		o.httpClient = client
	}
}

// WithSeed fixes the random source, making tie-breaks deterministic in
// tests.
func WithSeed(seed int64) Option {
	return func(o *options) {
		o.seed = seed
	}
}

func buildOptions(timeout time.Duration, opts []Option) options {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.httpClient == nil {
		if timeout <= 0 {
			timeout = 5 * time.Second
		}
		o.httpClient = &http.Client{Timeout: timeout}
	}
	if o.seed == 0 {
		o.seed = time.Now().UnixNano()
	}
	return o
}

// picker wraps rand.Rand; telebot handlers run on separate goroutines.
type picker struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func newPicker(seed int64) *picker {
	return &picker{rng: rand.New(rand.NewSource(seed))}
}

func (p *picker) pick(n int) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rng.Intn(n)
}

// Router selects the upstream per mode: Scrolller for NSFW when
// configured, waifu.pics otherwise, with nekos.best as the SFW fallback.
type Router struct {
	Primary     Fetcher
	SFWFallback Fetcher
	NSFW        Fetcher
}

func (r *Router) Fetch(ctx context.Context, genre string, nsfw bool) (*models.MediaItem, error) {
	if nsfw && r.NSFW != nil {
		item, err := r.NSFW.Fetch(ctx, genre, nsfw)
		if err == nil {
			return item, nil
		}
		logger.Warn("NSFW source failed, falling back",
			logger.String("genre", genre),
			logger.Err(err),
		)
	}

	item, err := r.Primary.Fetch(ctx, genre, nsfw)
	if err == nil {
		return item, nil
	}

	if !nsfw && r.SFWFallback != nil {
		fallback, fbErr := r.SFWFallback.Fetch(ctx, genre, nsfw)
		if fbErr == nil {
			return fallback, nil
		}
	}
	return nil, err
}
