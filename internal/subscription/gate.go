package subscription

import (
	"context"

	"emilia-bot/pkg/logger"

	"gopkg.in/telebot.v4"
)

// Cache stores recent subscription check results per user id.
type Cache interface {
	Get(ctx context.Context, userID int64) (subscribed, ok bool)
	Set(ctx context.Context, userID int64, subscribed bool)
	Invalidate(ctx context.Context, userID int64)
}

// MembershipClient is the slice of the Telegram API the gate needs.
// *telebot.Bot satisfies it.
type MembershipClient interface {
	ChatMemberOf(chat, user telebot.Recipient) (*telebot.ChatMember, error)
}

// Gate checks whether a user is a member of the required channel before
// any content is served. Policy on upstream failure: fail open with a
// warning, so a degraded Telegram API never locks out the whole user
// base. Error results are not cached.
type Gate struct {
	chatID int64
	client MembershipClient
	cache  Cache
}

func New(chatID int64, cache Cache) *Gate {
	return &Gate{chatID: chatID, cache: cache}
}

// SetClient must be called before the first check; the bot client only
// exists after the telegram session is established.
func (g *Gate) SetClient(client MembershipClient) {
	g.client = client
}

func (g *Gate) IsSubscribed(ctx context.Context, userID int64) bool {
	if subscribed, ok := g.cache.Get(ctx, userID); ok {
		return subscribed
	}
	return g.check(ctx, userID)
}

// Refresh bypasses the cache, so a user who just subscribed is admitted
// immediately after pressing the confirmation button.
func (g *Gate) Refresh(ctx context.Context, userID int64) bool {
	g.cache.Invalidate(ctx, userID)
	return g.check(ctx, userID)
}

func (g *Gate) check(ctx context.Context, userID int64) bool {
	member, err := g.client.ChatMemberOf(
		&telebot.Chat{ID: g.chatID},
		&telebot.User{ID: userID},
	)
	if err != nil {
		logger.Warn("Subscription check failed, admitting user",
			logger.Int64("user_id", userID),
			logger.Err(err),
		)
		return true
	}

	subscribed := member.Role != telebot.Left && member.Role != telebot.Kicked
	g.cache.Set(ctx, userID, subscribed)
	return subscribed
}
