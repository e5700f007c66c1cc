package giveaway

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/handler"
	"github.com/disgoorg/snowflake/v2"
	"github.com/nickstarform/starbot/starbot/config"
	engine "github.com/nickstarform/starbot/starbot/giveaway"
)

// HandleEnter toggles the clicking user's entry. Whether entries are still
// open is read from the store on every click.
func (h *Handler) HandleEnter(e *handler.ComponentEvent) error {
	id, err := snowflake.Parse(e.Vars["id"])
	if err != nil {
		return e.CreateMessage(ephemeral("❌ Unknown giveaway."))
	}
	guildID := e.GuildID()
	if guildID == nil {
		return e.CreateMessage(ephemeral("❌ Unknown giveaway."))
	}
	user := e.User()
	if user.Bot {
		return e.CreateMessage(ephemeral("❌ Bots cannot enter giveaways."))
	}

	ctx, cancel := context.WithTimeout(context.Background(), config.CommandExecutionTimeout)
	defer cancel()

	g, err := h.manager.Get(ctx, id)
	if err != nil {
		return e.CreateMessage(ephemeral(errorMessage(err)))
	}
	if g.GuildID != *guildID {
		return e.CreateMessage(ephemeral(errorMessage(engine.ErrNotFound)))
	}
	if !entryOpen(g, time.Now()) {
		return e.CreateMessage(ephemeral(errorMessage(engine.ErrEntriesClosed)))
	}

	entered, err := h.entries.Toggle(ctx, id, g.GuildID, user.ID)
	if errors.Is(err, engine.ErrEntriesClosed) {
		return e.CreateMessage(ephemeral(errorMessage(err)))
	}
	if err != nil {
		slog.Error("Failed to toggle giveaway entry",
			slog.String("type", "giveaway"),
			slog.String("announcement_id", id.String()),
			slog.String("user_id", user.ID.String()),
			slog.Any("error", err))
		return e.CreateMessage(ephemeral("❌ Your entry could not be saved. Please try again."))
	}

	count, err := h.entries.Count(ctx, id)
	if err != nil {
		slog.Warn("Failed to count giveaway entries",
			slog.String("type", "giveaway"),
			slog.String("announcement_id", id.String()),
			slog.Any("error", err))
		count = -1
	}

	embeds := []discord.Embed{engine.AnnouncementEmbed(g, count)}
	if err = e.UpdateMessage(discord.MessageUpdate{Embeds: &embeds}); err != nil {
		return err
	}

	content := "🎉 You are entered. Click again to leave."
	if !entered {
		content = "You left the giveaway."
	}
	_, err = e.CreateFollowupMessage(ephemeral(content))
	return err
}
