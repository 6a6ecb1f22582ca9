package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"emilia-bot/internal/bot"
	"emilia-bot/internal/cache"
	"emilia-bot/internal/config"
	"emilia-bot/internal/database"
	"emilia-bot/internal/fetcher"
	"emilia-bot/internal/prefetch"
	"emilia-bot/internal/queue"
	"emilia-bot/internal/subscription"
	"emilia-bot/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		switch {
		case errors.Is(err, config.ErrEmptyBotToken):
			fmt.Fprintln(os.Stderr, "Error: BOT_TOKEN environment variable is required")
		case errors.Is(err, config.ErrEmptyDBPassword):
			fmt.Fprintln(os.Stderr, "Error: DB_PASSWORD environment variable is required")
		case errors.Is(err, config.ErrEmptyChannelID):
			fmt.Fprintln(os.Stderr, "Error: CHANNEL_ID environment variable is required")
		default:
			fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		}
		os.Exit(1)
	}

	logger.Init(cfg.App.LogLevel, nil)
	logger.Info("Starting emilia-bot",
		logger.String("app", cfg.App.Name),
		logger.String("environment", cfg.App.Environment),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := database.New(ctx, cfg.Database)
	if err != nil {
		var dbErr *database.ConnectionError
		if errors.As(err, &dbErr) {
			logger.Error("Failed to connect to database",
				logger.Err(dbErr),
				logger.String("host", cfg.Database.Host),
				logger.Int("port", cfg.Database.Port),
			)
		} else {
			logger.Error("Failed to connect to database",
				logger.Err(err),
			)
		}
		os.Exit(1)
	}
	defer db.Close()
	logger.Info("Connected to database")

	userRepo := database.NewUserRepository(db)
	favRepo := database.NewFavoriteRepository(db)

	var subCache subscription.Cache
	var mediaCache fetcher.MediaCache
	if cfg.Redis.Enabled {
		rdb, err := cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logger.Error("Failed to connect to redis", logger.Err(err))
			os.Exit(1)
		}
		defer rdb.Close()
		logger.Info("Connected to redis", logger.String("addr", cfg.Redis.Addr))

		subCache = cache.NewRedisSubscriptionCache(rdb, cfg.Channel.CacheTTL)
		mediaCache = cache.NewRedisMediaCache(rdb, cfg.Prefetch.CacheTTL)
	} else {
		subCache = cache.NewMemorySubscriptionCache(cfg.Channel.CacheTTL)
		mediaCache = cache.NewMemoryMediaCache(cfg.Prefetch.CacheTTL)
	}

	gate := subscription.New(cfg.Channel.ID, subCache)

	waifu := fetcher.NewWaifu(cfg.Sources.Waifu)
	router := &fetcher.Router{Primary: waifu}

	if cfg.Sources.Nekos.Enabled {
		router.SFWFallback = fetcher.NewNekos(cfg.Sources.Nekos)
	}

	var scrolller *fetcher.ScrolllerClient
	if cfg.Sources.Scrolller.Enabled {
		scrolller = fetcher.NewScrolller(cfg.Sources.Scrolller)
		scrolller.SetCache(mediaCache)
		router.NSFW = scrolller
	}

	if cfg.NATS.Enabled {
		q, err := queue.New(cfg.NATS)
		if err != nil {
			logger.Error("Failed to connect to NATS", logger.Err(err))
			os.Exit(1)
		}
		defer q.Close()
		logger.Info("Connected to NATS", logger.String("url", cfg.NATS.URL))

		go func() {
			logger.Info("Starting media consumer...")
			if err := q.ConsumeMedia(ctx, func(msg *queue.MediaMessage) error {
				if err := mediaCache.Add(ctx, msg.Subreddit, msg.Item()); err != nil {
					logger.Error("Failed to cache prefetched media",
						logger.Err(err),
						logger.String("subreddit", msg.Subreddit),
					)
					return err
				}
				logger.Debug("Prefetched media cached",
					logger.String("subreddit", msg.Subreddit),
				)
				return nil
			}); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Media consumer error", logger.Err(err))
			}
		}()

		if cfg.Prefetch.Enabled && scrolller != nil {
			go func() {
				logger.Info("Starting prefetcher...")
				p := prefetch.New(cfg.Prefetch, cfg.Sources.Scrolller, scrolller, q)
				if err := p.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
					logger.Error("Prefetcher error", logger.Err(err))
				}
			}()
		}
	}

	telegramBot, err := bot.New(
		cfg.Bot, cfg.Channel, cfg.RateLimit,
		userRepo, favRepo, gate, router,
	)
	if err != nil {
		logger.Error("Failed to create bot", logger.Err(err))
		os.Exit(1)
	}

	tbot, err := telegramBot.Start()
	if err != nil {
		logger.Error("Failed to start bot", logger.Err(err))
		os.Exit(1)
	}
	logger.Info("Telegram bot started")

	healthMux := http.NewServeMux()
	healthMux.HandleFunc(cfg.Health.Endpoint, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	healthServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Health.Port),
		Handler: healthMux,
	}

	go func() {
		logger.Info("Health server starting",
			logger.Int("port", cfg.Health.Port),
		)
		if err := healthServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Health server error", logger.Err(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down...")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	tbot.Stop()

	if err := healthServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error shutting down health server", logger.Err(err))
	}

	logger.Info("Bot stopped gracefully")
}
