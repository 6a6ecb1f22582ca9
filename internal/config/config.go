package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

var (
	ErrEmptyBotToken   = errors.New("telegram bot token is required")
	ErrEmptyDBPassword = errors.New("database password is required")
	ErrEmptyChannelID  = errors.New("subscription channel id is required")
)

type Config struct {
	App       AppConfig       `yaml:"app" env:"APP"`
	Database  DatabaseConfig  `yaml:"database" env:"DB"`
	Bot       BotConfig       `yaml:"bot" env:"BOT"`
	Channel   ChannelConfig   `yaml:"channel" env:"CHANNEL"`
	Redis     RedisConfig     `yaml:"redis" env:"REDIS"`
	NATS      NATSConfig      `yaml:"nats" env:"NATS"`
	Sources   SourcesConfig   `yaml:"sources" env:"SOURCES"`
	Prefetch  PrefetchConfig  `yaml:"prefetch" env:"PREFETCH"`
	RateLimit RateLimitConfig `yaml:"rate_limit" env:"RATE_LIMIT"`
	Health    HealthConfig    `yaml:"health" env:"HEALTH"`
}

type AppConfig struct {
	Name        string `yaml:"name" env:"NAME" env-default:"emilia-bot"`
	Environment string `yaml:"environment" env:"ENVIRONMENT" env-default:"production"`
	LogLevel    string `yaml:"log_level" env:"LOG_LEVEL" env-default:"info"`
}

type DatabaseConfig struct {
	Host           string `yaml:"host" env:"HOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"PORT" env-default:"5432"`
	User           string `yaml:"user" env:"USER" env-default:"emilia"`
	Password       string `yaml:"password" env:"PASSWORD"`
	Name           string `yaml:"name" env:"NAME" env-default:"emilia"`
	MaxConnections int    `yaml:"max_connections" env:"MAX_CONNECTIONS" env-default:"25"`
	MinConnections int    `yaml:"min_connections" env:"MIN_CONNECTIONS" env-default:"5"`
}

func (d DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name,
	)
}

type BotConfig struct {
	Token     string `yaml:"token" env:"TOKEN"`
	ParseMode string `yaml:"parse_mode" env:"PARSE_MODE" env-default:"Markdown"`
}

// ChannelConfig identifies the channel a user must be subscribed to
// before the bot serves content.
type ChannelConfig struct {
	ID       int64         `yaml:"id" env:"ID"`
	Link     string        `yaml:"link" env:"LINK"`
	CacheTTL time.Duration `yaml:"cache_ttl" env:"CACHE_TTL" env-default:"5m"`
}

type RedisConfig struct {
	Enabled  bool   `yaml:"enabled" env:"ENABLED" env-default:"false"`
	Addr     string `yaml:"addr" env:"ADDR" env-default:"localhost:6379"`
	Password string `yaml:"password" env:"PASSWORD"`
	DB       int    `yaml:"db" env:"DB" env-default:"0"`
}

type NATSConfig struct {
	Enabled    bool   `yaml:"enabled" env:"ENABLED" env-default:"false"`
	URL        string `yaml:"url" env:"URL" env-default:"nats://localhost:4222"`
	StreamName string `yaml:"stream_name" env:"STREAM_NAME" env-default:"EMILIA"`
}

type SourcesConfig struct {
	Waifu     WaifuConfig     `yaml:"waifu" env:"WAIFU"`
	Nekos     NekosConfig     `yaml:"nekos" env:"NEKOS"`
	Scrolller ScrolllerConfig `yaml:"scrolller" env:"SCROLLLER"`
}

type WaifuConfig struct {
	BaseURL string        `yaml:"base_url" env:"BASE_URL" env-default:"https://api.waifu.pics"`
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT" env-default:"5s"`
}

type NekosConfig struct {
	Enabled bool          `yaml:"enabled" env:"ENABLED" env-default:"true"`
	BaseURL string        `yaml:"base_url" env:"BASE_URL" env-default:"https://nekos.best/api/v2"`
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT" env-default:"5s"`
}

type ScrolllerConfig struct {
	Enabled     bool          `yaml:"enabled" env:"ENABLED" env-default:"true"`
	BaseURL     string        `yaml:"base_url" env:"BASE_URL" env-default:"https://api.scrolller.com"`
	Timeout     time.Duration `yaml:"timeout" env:"TIMEOUT" env-default:"10s"`
	MaxAttempts int           `yaml:"max_attempts" env:"MAX_ATTEMPTS" env-default:"3"`
	Limit       int           `yaml:"limit" env:"LIMIT" env-default:"30"`
	// Subreddits maps a NSFW genre to the subreddit it is scraped from.
	Subreddits map[string]string `yaml:"subreddits"`
}

func (s ScrolllerConfig) SubredditFor(genre string) string {
	if sub, ok := s.Subreddits[genre]; ok {
		return sub
	}
	return defaultSubreddits[genre]
}

var defaultSubreddits = map[string]string{
	"waifu": "hentai",
	"neko":  "nekogirls",
	"trap":  "femboys",
}

type PrefetchConfig struct {
	Enabled  bool          `yaml:"enabled" env:"ENABLED" env-default:"false"`
	Interval time.Duration `yaml:"interval" env:"INTERVAL" env-default:"30m"`
	CacheTTL time.Duration `yaml:"cache_ttl" env:"CACHE_TTL" env-default:"1h"`
}

type RateLimitConfig struct {
	PerSecond float64 `yaml:"per_second" env:"PER_SECOND" env-default:"1"`
	Burst     int     `yaml:"burst" env:"BURST" env-default:"3"`
}

type HealthConfig struct {
	Port     int    `yaml:"port" env:"PORT" env-default:"8080"`
	Endpoint string `yaml:"endpoint" env:"ENDPOINT" env-default:"/healthz"`
}

func Load() (*Config, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.prod.yaml"
	}

	var cfg Config

	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		return nil, fmt.Errorf("failed to read config from %s: %w", configPath, err)
	}

	cleanenv.ReadEnv(&cfg)

	if cfg.Bot.Token == "" {
		return nil, ErrEmptyBotToken
	}

	if cfg.Database.Password == "" {
		return nil, ErrEmptyDBPassword
	}

	if cfg.Channel.ID == 0 {
		return nil, ErrEmptyChannelID
	}

	return &cfg, nil
}
