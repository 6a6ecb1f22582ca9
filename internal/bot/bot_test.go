package bot

import (
	"context"
	"strings"
	"testing"

	"emilia-bot/internal/config"
	"emilia-bot/internal/database"
	"emilia-bot/internal/fetcher"
	"emilia-bot/internal/models"
	"emilia-bot/internal/subscription"
	"emilia-bot/pkg/logger"

	"gopkg.in/telebot.v4"
)

func init() {
	logger.Init("error", nil)
}

type stubGate struct {
	subscribed bool
}

func (g *stubGate) IsSubscribed(ctx context.Context, userID int64) bool { return g.subscribed }
func (g *stubGate) Refresh(ctx context.Context, userID int64) bool      { return g.subscribed }
func (g *stubGate) SetClient(client subscription.MembershipClient)      {}

func TestNewBot(t *testing.T) {
	cfg := config.BotConfig{
		Token:     "test-token",
		ParseMode: "Markdown",
	}
	store := database.NewMemoryStore()

	_, err := New(cfg, config.ChannelConfig{ID: -1, Link: "https://t.me/x"},
		config.RateLimitConfig{PerSecond: 1, Burst: 3},
		store, store, &stubGate{}, nil)
	if err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
}

func TestNewBotNoToken(t *testing.T) {
	cfg := config.BotConfig{
		Token:     "",
		ParseMode: "Markdown",
	}
	store := database.NewMemoryStore()

	_, err := New(cfg, config.ChannelConfig{}, config.RateLimitConfig{},
		store, store, &stubGate{}, nil)
	if err == nil {
		t.Error("Expected error when token is empty")
	}
}

// fakeTelebotContext records what the handlers send. Only the methods
// the handlers touch are implemented; anything else panics via the
// embedded nil interface.
type fakeTelebotContext struct {
	telebot.Context

	sender *telebot.User
	text   string
	sent   []sentCall
}

type sentCall struct {
	what any
	opts []any
}

func (c *fakeTelebotContext) Sender() *telebot.User { return c.sender }
func (c *fakeTelebotContext) Text() string          { return c.text }

func (c *fakeTelebotContext) Send(what any, opts ...any) error {
	c.sent = append(c.sent, sentCall{what: what, opts: opts})
	return nil
}

type fetchCall struct {
	genre string
	nsfw  bool
}

type recordingFetcher struct {
	item  *models.MediaItem
	err   error
	calls []fetchCall
}

func (f *recordingFetcher) Fetch(ctx context.Context, genre string, nsfw bool) (*models.MediaItem, error) {
	f.calls = append(f.calls, fetchCall{genre: genre, nsfw: nsfw})
	if f.err != nil {
		return nil, f.err
	}
	return f.item, nil
}

func newTestBot(t *testing.T, gate Gate, fetch fetcher.Fetcher) (*Bot, *database.MemoryStore) {
	t.Helper()

	store := database.NewMemoryStore()
	b, err := New(config.BotConfig{Token: "test-token"},
		config.ChannelConfig{ID: -100, Link: "https://t.me/x"},
		config.RateLimitConfig{PerSecond: 10, Burst: 10},
		store, store, gate, fetch)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return b, store
}

// inlineMarkupFrom digs the inline keyboard out of a recorded send.
func inlineMarkupFrom(t *testing.T, call sentCall) *telebot.ReplyMarkup {
	t.Helper()

	for _, opt := range call.opts {
		if markup, ok := opt.(*telebot.ReplyMarkup); ok {
			return markup
		}
	}
	t.Fatal("Expected a reply markup on the sent message")
	return nil
}

func TestStartUnsubscribedAsksForSubscription(t *testing.T) {
	b, _ := newTestBot(t, &stubGate{subscribed: false}, nil)

	c := &fakeTelebotContext{
		sender: &telebot.User{ID: 42, Username: "hikari"},
		text:   "/start",
	}
	if err := b.handleStart(c); err != nil {
		t.Fatalf("handleStart failed: %v", err)
	}

	if len(c.sent) != 1 {
		t.Fatalf("Expected exactly one message, got %d", len(c.sent))
	}
	text, ok := c.sent[0].what.(string)
	if !ok || !strings.Contains(text, "Subscribe") {
		t.Errorf("Expected a subscription request, got %v", c.sent[0].what)
	}

	markup := inlineMarkupFrom(t, c.sent[0])
	found := false
	for _, row := range markup.InlineKeyboard {
		for _, btn := range row {
			if btn.Unique == "check_sub" {
				found = true
			}
		}
	}
	if !found {
		t.Error("Expected the check_sub button on the subscription prompt")
	}
}

func TestStartSubscribedShowsMenu(t *testing.T) {
	b, _ := newTestBot(t, &stubGate{subscribed: true}, nil)

	c := &fakeTelebotContext{
		sender: &telebot.User{ID: 42},
		text:   "/start",
	}
	if err := b.handleStart(c); err != nil {
		t.Fatalf("handleStart failed: %v", err)
	}

	if len(c.sent) != 1 {
		t.Fatalf("Expected exactly one message, got %d", len(c.sent))
	}
	text, ok := c.sent[0].what.(string)
	if !ok || !strings.Contains(text, "Welcome") {
		t.Errorf("Expected the welcome message, got %v", c.sent[0].what)
	}
}

func TestGenreTextFetchesAndSendsPhoto(t *testing.T) {
	fetch := &recordingFetcher{
		item: &models.MediaItem{URL: "https://i.waifu.pics/abc.png", Source: models.SourceWaifuPics},
	}
	b, _ := newTestBot(t, &stubGate{subscribed: true}, fetch)

	c := &fakeTelebotContext{
		sender: &telebot.User{ID: 42},
		text:   "Waifu",
	}
	if err := b.handleText(c); err != nil {
		t.Fatalf("handleText failed: %v", err)
	}

	if len(fetch.calls) != 1 {
		t.Fatalf("Expected one fetch, got %d", len(fetch.calls))
	}
	if got := fetch.calls[0]; got.genre != "waifu" || got.nsfw {
		t.Errorf("Expected fetch (waifu, false), got (%s, %t)", got.genre, got.nsfw)
	}

	if len(c.sent) != 1 {
		t.Fatalf("Expected exactly one message, got %d", len(c.sent))
	}
	photo, ok := c.sent[0].what.(*telebot.Photo)
	if !ok {
		t.Fatalf("Expected a photo, got %T", c.sent[0].what)
	}
	if photo.FileURL != fetch.item.URL {
		t.Errorf("Expected photo URL %s, got %s", fetch.item.URL, photo.FileURL)
	}
}

func TestGenreTextGatedWhenUnsubscribed(t *testing.T) {
	fetch := &recordingFetcher{item: &models.MediaItem{URL: "https://i.waifu.pics/abc.png"}}
	b, _ := newTestBot(t, &stubGate{subscribed: false}, fetch)

	c := &fakeTelebotContext{
		sender: &telebot.User{ID: 42},
		text:   "Waifu",
	}
	if err := b.handleText(c); err != nil {
		t.Fatalf("handleText failed: %v", err)
	}

	if len(fetch.calls) != 0 {
		t.Errorf("Expected no fetches for an unsubscribed user, got %d", len(fetch.calls))
	}
	text, ok := c.sent[0].what.(string)
	if !ok || !strings.Contains(text, "Subscribe") {
		t.Errorf("Expected a subscription request, got %v", c.sent[0].what)
	}
}

func TestNoContentTellsUserToRetry(t *testing.T) {
	fetch := &recordingFetcher{err: fetcher.ErrNoContent}
	b, _ := newTestBot(t, &stubGate{subscribed: true}, fetch)

	c := &fakeTelebotContext{
		sender: &telebot.User{ID: 42},
		text:   "Neko",
	}
	if err := b.handleText(c); err != nil {
		t.Fatalf("handleText failed: %v", err)
	}

	text, ok := c.sent[0].what.(string)
	if !ok || !strings.Contains(text, "try again") {
		t.Errorf("Expected a retry hint, got %v", c.sent[0].what)
	}
}

func TestStatsGatedWhenUnsubscribed(t *testing.T) {
	b, _ := newTestBot(t, &stubGate{subscribed: false}, nil)

	c := &fakeTelebotContext{sender: &telebot.User{ID: 42}}
	if err := b.handleStats(c); err != nil {
		t.Fatalf("handleStats failed: %v", err)
	}

	text, ok := c.sent[0].what.(string)
	if !ok || !strings.Contains(text, "Subscribe") {
		t.Errorf("Expected a subscription request, got %v", c.sent[0].what)
	}
}

func TestFavoritesGatedWhenUnsubscribed(t *testing.T) {
	b, _ := newTestBot(t, &stubGate{subscribed: false}, nil)

	c := &fakeTelebotContext{sender: &telebot.User{ID: 42}}
	if err := b.handleFavorites(c); err != nil {
		t.Fatalf("handleFavorites failed: %v", err)
	}

	text, ok := c.sent[0].what.(string)
	if !ok || !strings.Contains(text, "Subscribe") {
		t.Errorf("Expected a subscription request, got %v", c.sent[0].what)
	}
}

func TestLastMediaMapResetsAtCap(t *testing.T) {
	fetch := &recordingFetcher{item: &models.MediaItem{URL: "https://i.waifu.pics/abc.png"}}
	b, _ := newTestBot(t, &stubGate{subscribed: true}, fetch)

	for id := int64(0); id < maxTrackedUsers; id++ {
		b.lastMedia[id] = fetch.item
	}

	c := &fakeTelebotContext{
		sender: &telebot.User{ID: maxTrackedUsers + 1},
		text:   "Waifu",
	}
	if err := b.handleText(c); err != nil {
		t.Fatalf("handleText failed: %v", err)
	}

	if len(b.lastMedia) != 1 {
		t.Errorf("Expected the map to reset at the cap, got %d entries", len(b.lastMedia))
	}
	if b.lastMedia[maxTrackedUsers+1] == nil {
		t.Error("Expected the fresh entry to survive the reset")
	}
}
