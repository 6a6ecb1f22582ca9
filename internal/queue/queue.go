package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"emilia-bot/internal/config"
	"emilia-bot/internal/models"
	"emilia-bot/pkg/logger"

	"github.com/nats-io/nats.go"
)

const (
	MediaSubject  = "media.new"
	ConsumerGroup = "emilia-bot"

	// fetchMaxWait bounds how long a pull blocks waiting for messages.
	// It must stay in the hundreds of milliseconds: the consume loop
	// re-fetches immediately on timeout.
	fetchMaxWait = 500 * time.Millisecond
)

type NATS struct {
	conn      *nats.Conn
	jetstream nats.JetStream
	cfg       config.NATSConfig
}

func New(cfg config.NATSConfig) (*NATS, error) {
	conn, err := nats.Connect(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to get JetStream: %w", err)
	}

	n := &NATS{
		conn:      conn,
		jetstream: js,
		cfg:       cfg,
	}

	return n, nil
}

func (n *NATS) Close() {
	if n.conn != nil {
		n.conn.Close()
	}
}

// MediaMessage is a prefetched media item in flight between the
// prefetcher and the cache-populating consumer.
type MediaMessage struct {
	URL       string `json:"url"`
	Title     string `json:"title,omitempty"`
	SourceURL string `json:"source_url,omitempty"`
	Subreddit string `json:"subreddit"`
	NSFW      bool   `json:"nsfw"`
}

func (m *MediaMessage) Item() *models.MediaItem {
	return &models.MediaItem{
		URL:       m.URL,
		Title:     m.Title,
		SourceURL: m.SourceURL,
		NSFW:      m.NSFW,
		Source:    models.SourceScrolller,
	}
}

func (n *NATS) PublishMedia(ctx context.Context, msg *MediaMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal media message: %w", err)
	}

	_, err = n.jetstream.Publish(MediaSubject, data, nats.Context(ctx))
	if err != nil {
		return fmt.Errorf("failed to publish media message: %w", err)
	}

	logger.Debug("Media published to queue",
		logger.String("subreddit", msg.Subreddit),
		logger.String("url", msg.URL),
	)

	return nil
}

func (n *NATS) ConsumeMedia(ctx context.Context, handler func(*MediaMessage) error) error {
	sub, err := n.jetstream.PullSubscribe(
		MediaSubject,
		ConsumerGroup,
		nats.BindStream(n.cfg.StreamName),
	)
	if err != nil {
		return fmt.Errorf("failed to subscribe to media: %w", err)
	}
	defer sub.Unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			msgs, err := sub.Fetch(10, nats.MaxWait(fetchMaxWait))
			if err != nil {
				if err == nats.ErrTimeout {
					continue
				}
				return fmt.Errorf("failed to fetch messages: %w", err)
			}

			for _, msg := range msgs {
				var media MediaMessage
				if err := json.Unmarshal(msg.Data, &media); err != nil {
					logger.Error("Failed to unmarshal media message",
						logger.Err(err),
					)
					msg.Nak()
					continue
				}

				if err := handler(&media); err != nil {
					logger.Error("Failed to process media message",
						logger.Err(err),
					)
					msg.Nak()
					continue
				}

				msg.Ack()
			}
		}
	}
}
