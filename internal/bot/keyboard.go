package bot

import (
	"strings"

	"emilia-bot/internal/models"

	"gopkg.in/telebot.v4"
)

const (
	textEnableNSFW  = "🔞 Enable NSFW"
	textDisableNSFW = "🔞 Disable NSFW"
	textRefresh     = "🔄 Refresh"
)

// keyboards holds the inline buttons that carry callbacks and builds
// the per-mode reply menus.
type keyboards struct {
	channelLink   string
	btnCheckSub   telebot.Btn
	btnConfirmAge telebot.Btn
	btnFavAdd     telebot.Btn
}

func newKeyboards(channelLink string) *keyboards {
	markup := &telebot.ReplyMarkup{}
	return &keyboards{
		channelLink:   channelLink,
		btnCheckSub:   markup.Data("✅ I subscribed", "check_sub"),
		btnConfirmAge: markup.Data("🔞 I am 18 or older", "confirm_age"),
		btnFavAdd:     markup.Data("⭐ Save", "fav_add"),
	}
}

// subscribeMenu asks the user to join the channel and confirm.
func (k *keyboards) subscribeMenu() *telebot.ReplyMarkup {
	markup := &telebot.ReplyMarkup{}
	markup.Inline(
		markup.Row(markup.URL("📢 Subscribe", k.channelLink)),
		markup.Row(k.btnCheckSub),
	)
	return markup
}

func (k *keyboards) ageConfirmMenu() *telebot.ReplyMarkup {
	markup := &telebot.ReplyMarkup{}
	markup.Inline(markup.Row(k.btnConfirmAge))
	return markup
}

// mediaMenu is attached to a served photo.
func (k *keyboards) mediaMenu(item *models.MediaItem) *telebot.ReplyMarkup {
	markup := &telebot.ReplyMarkup{}
	rows := []telebot.Row{markup.Row(k.btnFavAdd)}
	if item.SourceURL != "" {
		rows = append(rows, markup.Row(markup.URL("🔗 Source", item.SourceURL)))
	}
	markup.Inline(rows...)
	return markup
}

// mainMenu renders the genre keyboard for the user's current mode. Only
// genres from the active mode's allow-list ever appear.
func (k *keyboards) mainMenu(nsfw bool) *telebot.ReplyMarkup {
	markup := &telebot.ReplyMarkup{ResizeKeyboard: true}

	genres := models.GenresFor(nsfw)
	var rows []telebot.Row
	for i := 0; i < len(genres); i += 2 {
		if i+1 < len(genres) {
			rows = append(rows, markup.Row(
				markup.Text(capitalize(genres[i])),
				markup.Text(capitalize(genres[i+1])),
			))
		} else {
			rows = append(rows, markup.Row(markup.Text(capitalize(genres[i]))))
		}
	}

	toggle := textEnableNSFW
	if nsfw {
		toggle = textDisableNSFW
	}
	rows = append(rows,
		markup.Row(markup.Text(toggle)),
		markup.Row(markup.Text(textRefresh)),
	)

	markup.Reply(rows...)
	return markup
}

// menuGenres lists the button labels the current mode's menu offers.
func menuGenres(nsfw bool) []string {
	genres := models.GenresFor(nsfw)
	labels := make([]string, len(genres))
	for i, g := range genres {
		labels[i] = capitalize(g)
	}
	return labels
}

// resolveGenre maps free text to a genre of the current mode. Text
// outside the mode's allow-list is an input error, not a fetch.
func resolveGenre(text string, nsfw bool) (string, bool) {
	want := strings.ToLower(strings.TrimSpace(text))
	for _, genre := range models.GenresFor(nsfw) {
		if want == genre {
			return genre, true
		}
	}
	return "", false
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
