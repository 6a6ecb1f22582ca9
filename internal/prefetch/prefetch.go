package prefetch

import (
	"context"
	"fmt"
	"time"

	"emilia-bot/internal/config"
	"emilia-bot/internal/models"
	"emilia-bot/internal/queue"
	"emilia-bot/pkg/logger"
)

type Queue interface {
	PublishMedia(ctx context.Context, msg *queue.MediaMessage) error
}

type Lister interface {
	Listing(ctx context.Context, subreddit string, nsfw bool) ([]models.MediaItem, error)
}

// Prefetcher periodically pulls Scrolller listings for the configured
// subreddits and publishes qualifying items to the queue; a consumer on
// the other side fills the media cache so user requests rarely wait on
// the upstream.
type Prefetcher struct {
	cfg       config.PrefetchConfig
	scrolller config.ScrolllerConfig
	lister    Lister
	q         Queue
}

func New(cfg config.PrefetchConfig, scrolller config.ScrolllerConfig, lister Lister, q Queue) *Prefetcher {
	return &Prefetcher{
		cfg:       cfg,
		scrolller: scrolller,
		lister:    lister,
		q:         q,
	}
}

func (p *Prefetcher) Start(ctx context.Context) error {
	if !p.cfg.Enabled {
		return nil
	}

	logger.Info("Running initial prefetch...")
	if err := p.PrefetchAll(ctx); err != nil {
		logger.Error("Initial prefetch failed", logger.Err(err))
		return fmt.Errorf("initial prefetch failed: %w", err)
	}
	logger.Info("Initial prefetch completed")

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := p.PrefetchAll(ctx); err != nil {
				return fmt.Errorf("prefetch failed: %w", err)
			}
		}
	}
}

// PrefetchAll walks every configured genre's subreddit once. A failing
// subreddit is skipped, not fatal; the next tick retries it.
func (p *Prefetcher) PrefetchAll(ctx context.Context) error {
	seen := make(map[string]bool)

	for _, genre := range models.NSFWGenres {
		subreddit := p.scrolller.SubredditFor(genre)
		if subreddit == "" || seen[subreddit] {
			continue
		}
		seen[subreddit] = true

		logger.Info("Prefetching subreddit", logger.String("subreddit", subreddit))

		items, err := p.lister.Listing(ctx, subreddit, true)
		if err != nil {
			logger.Warn("Failed to prefetch subreddit",
				logger.String("subreddit", subreddit),
				logger.Err(err),
			)
			continue
		}

		for i := range items {
			item := &items[i]
			msg := &queue.MediaMessage{
				URL:       item.URL,
				Title:     item.Title,
				SourceURL: item.SourceURL,
				Subreddit: subreddit,
				NSFW:      item.NSFW,
			}
			if err := p.q.PublishMedia(ctx, msg); err != nil {
				logger.Error("Failed to publish media to queue",
					logger.Err(err),
					logger.String("subreddit", subreddit),
				)
				continue
			}
		}
		logger.Info("Prefetched subreddit",
			logger.String("subreddit", subreddit),
			logger.Int("items", len(items)),
		)
	}

	return nil
}
