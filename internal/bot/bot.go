package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"emilia-bot/internal/config"
	"emilia-bot/internal/fetcher"
	"emilia-bot/internal/models"
	"emilia-bot/internal/subscription"
	"emilia-bot/pkg/logger"

	"gopkg.in/telebot.v4"
)

var ErrRateLimited = errors.New("telegram rate limited")

// UserStore is the per-user state backend. One entry per user keyed by
// Telegram id; toggles are full overwrites.
type UserStore interface {
	GetOrCreate(ctx context.Context, user *models.User) error
	SetNSFW(ctx context.Context, telegramID int64, enabled bool) error
	ConfirmAge(ctx context.Context, telegramID int64) error
	IncrementRequests(ctx context.Context, telegramID int64) error
	Stats(ctx context.Context) (*models.Stats, error)
}

type FavoriteStore interface {
	Add(ctx context.Context, telegramID int64, imageURL string) error
	ListRecent(ctx context.Context, telegramID int64, limit int) ([]models.Favorite, error)
}

type Gate interface {
	IsSubscribed(ctx context.Context, userID int64) bool
	Refresh(ctx context.Context, userID int64) bool
	SetClient(client subscription.MembershipClient)
}

type Bot struct {
	settings  telebot.Settings
	users     UserStore
	favorites FavoriteStore
	gate      Gate
	fetch     fetcher.Fetcher
	limiters  *limiterPool
	kb        *keyboards
	cfg       config.BotConfig
	tbot      *telebot.Bot

	mu        sync.Mutex
	lastMedia map[int64]*models.MediaItem
}

func New(
	cfg config.BotConfig,
	channel config.ChannelConfig,
	rateLimit config.RateLimitConfig,
	users UserStore,
	favorites FavoriteStore,
	gate Gate,
	fetch fetcher.Fetcher,
) (*Bot, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("telegram bot token is required")
	}

	return &Bot{
		cfg:       cfg,
		users:     users,
		favorites: favorites,
		gate:      gate,
		fetch:     fetch,
		limiters:  newLimiterPool(rateLimit),
		kb:        newKeyboards(channel.Link),
		lastMedia: make(map[int64]*models.MediaItem),
		settings: telebot.Settings{
			Token:  cfg.Token,
			Poller: &telebot.LongPoller{Timeout: 10 * time.Second},
		},
	}, nil
}

func (b *Bot) Start() (*telebot.Bot, error) {
	tbot, err := telebot.NewBot(b.settings)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	b.tbot = tbot
	b.gate.SetClient(tbot)
	b.setupHandlers(tbot)

	go tbot.Start()

	return tbot, nil
}

func (b *Bot) setupHandlers(bot *telebot.Bot) {
	bot.Handle("/start", b.handleStart)
	bot.Handle("/menu", b.handleStart)
	bot.Handle("/stats", b.handleStats)
	bot.Handle("/favorites", b.handleFavorites)
	bot.Handle("/help", b.handleHelp)

	bot.Handle(telebot.OnText, func(c telebot.Context) error {
		logger.Info("Incoming text message",
			logger.Int64("user_id", c.Sender().ID),
			logger.String("username", c.Sender().Username),
			logger.String("text", c.Text()),
		)
		return b.handleText(c)
	})

	bot.Handle(&b.kb.btnCheckSub, b.handleCheckSub)
	bot.Handle(&b.kb.btnConfirmAge, b.handleConfirmAge)
	bot.Handle(&b.kb.btnFavAdd, b.handleFavAdd)
}

// upsertUser loads (or creates) the sender's row; profile fields are
// refreshed on every interaction.
func (b *Bot) upsertUser(ctx context.Context, c telebot.Context) (*models.User, error) {
	user := &models.User{
		TelegramID: c.Sender().ID,
		Username:   c.Sender().Username,
		FirstName:  c.Sender().FirstName,
		LastName:   c.Sender().LastName,
	}
	if err := b.users.GetOrCreate(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (b *Bot) handleStart(c telebot.Context) error {
	ctx := context.Background()

	user, err := b.upsertUser(ctx, c)
	if err != nil {
		logger.Error("Failed to save user", logger.Err(err))
		user = &models.User{TelegramID: c.Sender().ID}
	}

	if !b.gate.IsSubscribed(ctx, c.Sender().ID) {
		return b.sendSubscriptionRequest(c)
	}

	return c.Send(
		"🎌 Welcome! Pick a genre from the menu below.",
		b.kb.mainMenu(user.NSFWEnabled),
	)
}

func (b *Bot) sendSubscriptionRequest(c telebot.Context) error {
	return c.Send(
		"📛 Subscribe to our channel to use the bot!\nThen press the button below:",
		b.kb.subscribeMenu(),
	)
}

func (b *Bot) handleCheckSub(c telebot.Context) error {
	ctx := context.Background()

	if !b.gate.Refresh(ctx, c.Sender().ID) {
		return c.Respond(&telebot.CallbackResponse{
			Text:      "❌ You are not subscribed yet!",
			ShowAlert: true,
		})
	}

	user, err := b.upsertUser(ctx, c)
	if err != nil {
		logger.Error("Failed to save user", logger.Err(err))
		user = &models.User{TelegramID: c.Sender().ID}
	}

	if err := c.Delete(); err != nil {
		logger.Debug("Failed to delete subscription prompt", logger.Err(err))
	}
	return c.Send(
		"✅ Thanks for subscribing! You can use the bot now.",
		b.kb.mainMenu(user.NSFWEnabled),
	)
}

func (b *Bot) handleText(c telebot.Context) error {
	ctx := context.Background()

	user, err := b.upsertUser(ctx, c)
	if err != nil {
		logger.Error("Failed to save user", logger.Err(err))
		return c.Send("Something went wrong, try again later.")
	}

	if !b.gate.IsSubscribed(ctx, user.TelegramID) {
		return b.sendSubscriptionRequest(c)
	}

	switch c.Text() {
	case textEnableNSFW, textDisableNSFW:
		return b.handleToggle(ctx, c, user)
	case textRefresh:
		return c.Send(
			"🎌 Pick a genre from the menu below.",
			b.kb.mainMenu(user.NSFWEnabled),
		)
	}

	genre, ok := resolveGenre(c.Text(), user.NSFWEnabled)
	if !ok {
		return c.Send(
			"⚠ Pick a genre from the menu.",
			b.kb.mainMenu(user.NSFWEnabled),
		)
	}

	return b.handleGenre(ctx, c, user, genre)
}

func (b *Bot) handleToggle(ctx context.Context, c telebot.Context, user *models.User) error {
	if user.NSFWEnabled {
		if err := b.users.SetNSFW(ctx, user.TelegramID, false); err != nil {
			logger.Error("Failed to disable NSFW", logger.Err(err))
			return c.Send("Something went wrong, try again later.")
		}
		return c.Send("NSFW mode disabled", b.kb.mainMenu(false))
	}

	if !user.AgeConfirmed {
		return c.Send(
			"🔞 NSFW content requires age confirmation.",
			b.kb.ageConfirmMenu(),
		)
	}

	if err := b.users.SetNSFW(ctx, user.TelegramID, true); err != nil {
		logger.Error("Failed to enable NSFW", logger.Err(err))
		return c.Send("Something went wrong, try again later.")
	}
	return c.Send("NSFW mode enabled", b.kb.mainMenu(true))
}

func (b *Bot) handleConfirmAge(c telebot.Context) error {
	ctx := context.Background()

	if !b.gate.IsSubscribed(ctx, c.Sender().ID) {
		return b.sendSubscriptionRequest(c)
	}

	if err := b.users.ConfirmAge(ctx, c.Sender().ID); err != nil {
		logger.Error("Failed to confirm age", logger.Err(err))
		return c.Respond(&telebot.CallbackResponse{Text: "Something went wrong"})
	}
	if err := b.users.SetNSFW(ctx, c.Sender().ID, true); err != nil {
		logger.Error("Failed to enable NSFW", logger.Err(err))
		return c.Respond(&telebot.CallbackResponse{Text: "Something went wrong"})
	}

	if err := c.Delete(); err != nil {
		logger.Debug("Failed to delete age prompt", logger.Err(err))
	}
	return c.Send("NSFW mode enabled", b.kb.mainMenu(true))
}

func (b *Bot) handleGenre(ctx context.Context, c telebot.Context, user *models.User, genre string) error {
	if !b.limiters.Allow(user.TelegramID) {
		return c.Send("⏳ Slow down a little, then try again.")
	}

	item, err := b.fetch.Fetch(ctx, genre, user.NSFWEnabled)
	if err != nil {
		logger.Warn("Fetch failed",
			logger.Int64("user_id", user.TelegramID),
			logger.String("genre", genre),
			logger.Bool("nsfw", user.NSFWEnabled),
			logger.Err(err),
		)
		if errors.Is(err, fetcher.ErrNoContent) {
			return c.Send(fmt.Sprintf("😿 No %s content found right now, try again later.", genre))
		}
		return c.Send("😿 Content unavailable right now, try again.")
	}

	if err := b.users.IncrementRequests(ctx, user.TelegramID); err != nil {
		logger.Error("Failed to count request", logger.Err(err))
	}

	b.mu.Lock()
	if len(b.lastMedia) >= maxTrackedUsers {
		b.lastMedia = make(map[int64]*models.MediaItem)
	}
	b.lastMedia[user.TelegramID] = item
	b.mu.Unlock()

	photo := &telebot.Photo{File: telebot.FromURL(item.URL)}
	if item.Title != "" {
		photo.Caption = item.Title
	}

	return b.sendWithRetry(c, photo, b.kb.mediaMenu(item))
}

// sendWithRetry retries sends rejected by Telegram's flood control with
// a doubling delay.
func (b *Bot) sendWithRetry(c telebot.Context, what any, opts ...any) error {
	maxRetries := 3
	retryDelay := time.Second

	for i := 0; i < maxRetries; i++ {
		err := c.Send(what, opts...)
		if err != nil {
			errStr := err.Error()
			if strings.Contains(errStr, "Too Many Requests") || strings.Contains(errStr, "rate") {
				logger.Warn("Rate limited, retrying...",
					logger.Int("retry", i+1),
					logger.Int("max_retries", maxRetries),
				)
				time.Sleep(retryDelay)
				retryDelay *= 2
				continue
			}
			return fmt.Errorf("failed to send message: %w", err)
		}
		return nil
	}

	return ErrRateLimited
}

func (b *Bot) handleFavAdd(c telebot.Context) error {
	ctx := context.Background()

	b.mu.Lock()
	item := b.lastMedia[c.Sender().ID]
	b.mu.Unlock()

	if item == nil {
		return c.Respond(&telebot.CallbackResponse{Text: "Nothing to save"})
	}

	if err := b.favorites.Add(ctx, c.Sender().ID, item.URL); err != nil {
		logger.Error("Failed to save favorite", logger.Err(err))
		return c.Respond(&telebot.CallbackResponse{Text: "Something went wrong"})
	}

	return c.Respond(&telebot.CallbackResponse{Text: "⭐ Saved"})
}

func (b *Bot) handleFavorites(c telebot.Context) error {
	ctx := context.Background()

	if !b.gate.IsSubscribed(ctx, c.Sender().ID) {
		return b.sendSubscriptionRequest(c)
	}

	favorites, err := b.favorites.ListRecent(ctx, c.Sender().ID, 10)
	if err != nil {
		logger.Error("Failed to list favorites", logger.Err(err))
		return c.Send("Failed to load favorites")
	}
	if len(favorites) == 0 {
		return c.Send("You have no favorites yet. Press ⭐ Save under a photo to add one.")
	}

	var sb strings.Builder
	sb.WriteString("*Your favorites*\n\n")
	for i, f := range favorites {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, f.ImageURL)
	}

	return c.Send(sb.String(), &telebot.SendOptions{ParseMode: telebot.ModeMarkdown})
}

func (b *Bot) handleStats(c telebot.Context) error {
	ctx := context.Background()

	if !b.gate.IsSubscribed(ctx, c.Sender().ID) {
		return b.sendSubscriptionRequest(c)
	}

	stats, err := b.users.Stats(ctx)
	if err != nil {
		logger.Error("Failed to get stats", logger.Err(err))
		return c.Send("Failed to get statistics")
	}

	msg := fmt.Sprintf(
		"*Bot Statistics*\n\n"+
			"Total users: %d\n"+
			"Active today: %d\n"+
			"Images served: %d",
		stats.TotalUsers, stats.DailyActive, stats.TotalRequests,
	)

	return c.Send(msg, &telebot.SendOptions{ParseMode: telebot.ModeMarkdown})
}

func (b *Bot) handleHelp(c telebot.Context) error {
	help := "*Help*\n\n" +
		"Pick a genre from the menu to get an image.\n\n" +
		"Commands:\n" +
		"- /start - Start the bot\n" +
		"- /menu - Show the genre menu\n" +
		"- /favorites - Your saved images\n" +
		"- /stats - Bot statistics\n" +
		"- /help - Show this help message"

	return c.Send(help, &telebot.SendOptions{ParseMode: telebot.ModeMarkdown})
}
