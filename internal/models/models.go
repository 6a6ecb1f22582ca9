package models

import "time"

type User struct {
	ID              int64     `json:"id"`
	TelegramID      int64     `json:"telegram_id"`
	Username        string    `json:"username"`
	FirstName       string    `json:"first_name"`
	LastName        string    `json:"last_name"`
	NSFWEnabled     bool      `json:"nsfw_enabled"`
	AgeConfirmed    bool      `json:"age_confirmed"`
	IsPremium       bool      `json:"is_premium"`
	RequestCount    int64     `json:"request_count"`
	CreatedAt       time.Time `json:"created_at"`
	LastInteraction time.Time `json:"last_interaction"`
}

// MediaItem is a single fetched image. It is ephemeral: sent to the user
// and discarded, unless saved as a favorite.
type MediaItem struct {
	URL       string      `json:"url"`
	Title     string      `json:"title,omitempty"`
	SourceURL string      `json:"source_url,omitempty"`
	NSFW      bool        `json:"nsfw"`
	Source    MediaSource `json:"source"`
}

type Favorite struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	ImageURL  string    `json:"image_url"`
	CreatedAt time.Time `json:"created_at"`
}

type Stats struct {
	TotalUsers    int   `json:"total_users"`
	DailyActive   int   `json:"daily_active"`
	TotalRequests int64 `json:"total_requests"`
}

type MediaSource string

const (
	SourceWaifuPics MediaSource = "waifu.pics"
	SourceNekosBest MediaSource = "nekos.best"
	SourceScrolller MediaSource = "scrolller"
)

// Genre allow-lists per mode. The rendered menu and the text dispatcher
// must never offer a genre outside the active mode's list.
var (
	SFWGenres  = []string{"waifu", "neko", "shinobu", "megumin"}
	NSFWGenres = []string{"waifu", "neko", "trap"}
)

func GenresFor(nsfw bool) []string {
	if nsfw {
		return NSFWGenres
	}
	return SFWGenres
}
