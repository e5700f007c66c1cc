package giveaway

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/rest"
	"github.com/disgoorg/snowflake/v2"
	"github.com/nickstarform/starbot/starbot/config"
)

// EntryButtonID is the component route of the enter button.
func EntryButtonID(id snowflake.ID) string {
	return "/giveaway/enter/" + id.String()
}

// AnnouncementEmbed renders the announcement message of g. A negative entries
// count leaves the entries field out.
func AnnouncementEmbed(g *Giveaway, entries int) discord.Embed {
	embed := discord.NewEmbedBuilder().
		SetTitle("🎉 Giveaway").
		SetDescription(g.Description).
		AddField("Hosted by", fmt.Sprintf("<@%s>", g.HostID), true).
		AddField("Winners", fmt.Sprintf("%d", g.WinnerCount), true).
		SetFooter("Giveaway "+g.AnnouncementID.String(), "").
		SetTimestamp(g.EndsAt)

	if entries >= 0 {
		embed.AddField("Entries", fmt.Sprintf("%d", entries), true)
	}

	switch g.Status {
	case StatusActive:
		embed.SetColor(config.GiveawayActiveColor).
			AddField("Status", config.ActiveGiveawayStatus, true).
			AddField("Ends", fmt.Sprintf("<t:%d:R>", g.EndsAt.Unix()), true)
	case StatusEnded:
		result := "No valid entries"
		if len(g.Winners) > 0 {
			result = mentionList(g.Winners)
		}
		embed.SetColor(config.GiveawayEndedColor).
			AddField("Status", config.EndedGiveawayStatus, true).
			AddField("Result", result, false)
	case StatusCancelled:
		embed.SetColor(config.GiveawayCancelledColor).
			AddField("Status", config.CancelledGiveawayStatus, true)
	}
	return embed.Build()
}

// AnnouncementComponents renders the enter button, disabled once the
// giveaway is no longer ACTIVE.
func AnnouncementComponents(g *Giveaway, emoji string) []discord.ContainerComponent {
	button := discord.NewPrimaryButton("Enter", EntryButtonID(g.AnnouncementID)).
		WithDisabled(!g.Active())
	if emoji != "" {
		button = button.WithEmoji(discord.ComponentEmoji{Name: emoji})
	}
	return []discord.ContainerComponent{discord.NewActionRow(button)}
}

func mentionList(ids []snowflake.ID) string {
	mentions := make([]string, len(ids))
	for i, id := range ids {
		mentions[i] = fmt.Sprintf("<@%s>", id)
	}
	return strings.Join(mentions, ", ")
}

func resultContent(g *Giveaway, winners []snowflake.ID, reroll bool) string {
	switch {
	case len(winners) == 0:
		return fmt.Sprintf("Nobody entered **%s**, so there are no winners.", g.Description)
	case reroll:
		return fmt.Sprintf("🔁 New winners for **%s**: %s", g.Description, mentionList(winners))
	default:
		return fmt.Sprintf("🎉 Congratulations %s! You won **%s**.", mentionList(winners), g.Description)
	}
}

// Announcer renders lifecycle events to Discord. The result message id is
// written back to the record after the message has been posted.
type Announcer struct {
	manager *Manager
	emoji   string

	mu     sync.RWMutex
	client bot.Client
}

func NewAnnouncer(manager *Manager, emoji string) *Announcer {
	return &Announcer{manager: manager, emoji: emoji}
}

func (a *Announcer) SetClient(client bot.Client) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.client = client
}

func (a *Announcer) getClient() bot.Client {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.client
}

func (a *Announcer) OnEvent(e Event) {
	switch e := e.(type) {
	case *FinalizedEvent:
		a.announceResult(e.Giveaway, e.Winners, e.Participants, false)
	case *RerolledEvent:
		a.announceResult(e.Giveaway, e.Winners, -1, true)
	case *CancelledEvent:
		// The announcement is gone with the guild on teardown.
		if e.Reason == CancelReasonManual {
			a.withClient(e.Giveaway, func(ctx context.Context, client bot.Client) error {
				return a.updateAnnouncement(ctx, client, e.Giveaway, -1)
			})
		}
	case *FinalizeFailedEvent:
		slog.Error("Giveaway could not be finalized",
			slog.String("type", "giveaway"),
			slog.String("announcement_id", e.AnnouncementID.String()),
			slog.Int("attempts", e.Attempts),
			slog.Any("error", e.Err))
	}
}

func (a *Announcer) withClient(g *Giveaway, fn func(ctx context.Context, client bot.Client) error) {
	client := a.getClient()
	if client == nil {
		slog.Warn("Announcer has no client, event dropped",
			slog.String("type", "giveaway"),
			slog.String("announcement_id", g.AnnouncementID.String()))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), config.AnnounceTimeout)
	defer cancel()
	if err := fn(ctx, client); err != nil {
		slog.Error("Failed to announce giveaway update",
			slog.String("type", "giveaway"),
			slog.String("announcement_id", g.AnnouncementID.String()),
			slog.String("guild_id", g.GuildID.String()),
			slog.Any("error", err))
	}
}

func (a *Announcer) announceResult(g *Giveaway, winners []snowflake.ID, entries int, reroll bool) {
	a.withClient(g, func(ctx context.Context, client bot.Client) error {
		if err := a.updateAnnouncement(ctx, client, g, entries); err != nil {
			// The result message is still worth posting.
			slog.Warn("Failed to update giveaway announcement",
				slog.String("type", "giveaway"),
				slog.String("announcement_id", g.AnnouncementID.String()),
				slog.Any("error", err))
		}

		announcementID := g.AnnouncementID
		channelID := g.ChannelID
		msg, err := client.Rest().CreateMessage(g.ChannelID, discord.MessageCreate{
			Content: resultContent(g, winners, reroll),
			MessageReference: &discord.MessageReference{
				MessageID: &announcementID,
				ChannelID: &channelID,
			},
			AllowedMentions: &discord.AllowedMentions{
				Parse: []discord.AllowedMentionType{discord.AllowedMentionTypeUsers},
			},
		}, rest.WithCtx(ctx))
		if err != nil {
			return fmt.Errorf("failed to post result: %w", err)
		}
		return a.manager.SetResultAnnouncement(ctx, g.AnnouncementID, msg.ID)
	})
}

func (a *Announcer) updateAnnouncement(ctx context.Context, client bot.Client, g *Giveaway, entries int) error {
	embeds := []discord.Embed{AnnouncementEmbed(g, entries)}
	components := AnnouncementComponents(g, a.emoji)
	_, err := client.Rest().UpdateMessage(g.ChannelID, g.AnnouncementID, discord.MessageUpdate{
		Embeds:     &embeds,
		Components: &components,
	}, rest.WithCtx(ctx))
	return err
}
