package announce

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/eikowagenknecht/lootscraper-sub000/internal/model"
)

// DiscordAnnouncer posts offers as embeds into one Discord channel.
type DiscordAnnouncer struct {
	session   *discordgo.Session
	channelID string
}

func NewDiscordAnnouncer(token, channelID string) (*DiscordAnnouncer, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("discord init: %w", err)
	}
	return &DiscordAnnouncer{session: session, channelID: channelID}, nil
}

func (d *DiscordAnnouncer) Name() string {
	return "discord"
}

func (d *DiscordAnnouncer) Announce(ctx context.Context, offer *model.Offer) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	embed := &discordgo.MessageEmbed{
		Title:       truncate(offer.Title, 256),
		Description: fmt.Sprintf("Free on %s (%s)", offer.Source, offer.Platform),
		Timestamp:   offer.SeenFirst.Format(time.RFC3339),
	}
	if offer.URL != nil {
		embed.URL = *offer.URL
	}
	if offer.ImageURL != nil {
		embed.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: *offer.ImageURL}
	}
	if offer.ValidTo != nil {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:  "Valid until",
			Value: offer.ValidTo.Format("2006-01-02 15:04 MST"),
		})
	}

	if _, err := d.session.ChannelMessageSendEmbed(d.channelID, embed); err != nil {
		return fmt.Errorf("discord send: %w", err)
	}
	return nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
