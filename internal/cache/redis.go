package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"emilia-bot/internal/config"
	"emilia-bot/internal/models"
	"emilia-bot/pkg/logger"

	"github.com/redis/go-redis/v9"
)

type Redis struct {
	client *redis.Client
}

func NewRedis(ctx context.Context, cfg config.RedisConfig) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr, err)
	}

	return &Redis{client: client}, nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}

// RedisSubscriptionCache stores the per-user subscription check result
// with a TTL, so a revoked subscription is noticed within one freshness
// window instead of never.
type RedisSubscriptionCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisSubscriptionCache(r *Redis, ttl time.Duration) *RedisSubscriptionCache {
	return &RedisSubscriptionCache{client: r.client, ttl: ttl}
}

func subscriptionKey(userID int64) string {
	return fmt.Sprintf("sub:%d", userID)
}

func (c *RedisSubscriptionCache) Get(ctx context.Context, userID int64) (subscribed, ok bool) {
	val, err := c.client.Get(ctx, subscriptionKey(userID)).Result()
	if err != nil {
		if err != redis.Nil {
			logger.Debug("Subscription cache read failed", logger.Err(err))
		}
		return false, false
	}
	return val == "1", true
}

func (c *RedisSubscriptionCache) Set(ctx context.Context, userID int64, subscribed bool) {
	val := "0"
	if subscribed {
		val = "1"
	}
	if err := c.client.Set(ctx, subscriptionKey(userID), val, c.ttl).Err(); err != nil {
		logger.Debug("Subscription cache write failed", logger.Err(err))
	}
}

func (c *RedisSubscriptionCache) Invalidate(ctx context.Context, userID int64) {
	if err := c.client.Del(ctx, subscriptionKey(userID)).Err(); err != nil {
		logger.Debug("Subscription cache delete failed", logger.Err(err))
	}
}

// RedisMediaCache holds prefetched media items per (subreddit, nsfw)
// bucket. Buckets expire wholesale so the bot never serves week-old
// listings.
type RedisMediaCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisMediaCache(r *Redis, ttl time.Duration) *RedisMediaCache {
	return &RedisMediaCache{client: r.client, ttl: ttl}
}

func mediaKey(subreddit string, nsfw bool) string {
	return fmt.Sprintf("media:%s:%t", subreddit, nsfw)
}

func (c *RedisMediaCache) Add(ctx context.Context, subreddit string, item *models.MediaItem) error {
	data, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("failed to marshal media item: %w", err)
	}

	key := mediaKey(subreddit, item.NSFW)
	pipe := c.client.TxPipeline()
	pipe.SAdd(ctx, key, data)
	pipe.Expire(ctx, key, c.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to cache media item: %w", err)
	}
	return nil
}

func (c *RedisMediaCache) Random(ctx context.Context, subreddit string, nsfw bool) (*models.MediaItem, bool) {
	data, err := c.client.SRandMember(ctx, mediaKey(subreddit, nsfw)).Bytes()
	if err != nil {
		if err != redis.Nil {
			logger.Debug("Media cache read failed", logger.Err(err))
		}
		return nil, false
	}

	var item models.MediaItem
	if err := json.Unmarshal(data, &item); err != nil {
		logger.Debug("Media cache entry malformed", logger.Err(err))
		return nil, false
	}
	return &item, true
}
