package announce

import (
	"context"
	"fmt"
	"html"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/eikowagenknecht/lootscraper-sub000/internal/model"
)

// TelegramAnnouncer posts offers to one Telegram chat.
type TelegramAnnouncer struct {
	bot    *tgbotapi.BotAPI
	chatID int64
}

func NewTelegramAnnouncer(token string, chatID int64) (*TelegramAnnouncer, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram init: %w", err)
	}
	return &TelegramAnnouncer{bot: bot, chatID: chatID}, nil
}

func (t *TelegramAnnouncer) Name() string {
	return "telegram"
}

func (t *TelegramAnnouncer) Announce(ctx context.Context, offer *model.Offer) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := tgbotapi.NewMessage(t.chatID, formatOffer(offer))
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = false

	if _, err := t.bot.Send(msg); err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}

func formatOffer(offer *model.Offer) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<b>%s</b> is free on %s (%s)!",
		html.EscapeString(offer.Title), offer.Source, offer.Platform)
	if offer.ValidTo != nil {
		fmt.Fprintf(&b, "\nValid until %s.", offer.ValidTo.Format("2006-01-02 15:04 MST"))
	}
	if offer.URL != nil {
		fmt.Fprintf(&b, "\n%s", html.EscapeString(*offer.URL))
	}
	return b.String()
}
