package giveaway

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/handler"
	"github.com/disgoorg/disgo/rest"
	"github.com/disgoorg/snowflake/v2"
	"github.com/nickstarform/starbot/starbot/config"
	engine "github.com/nickstarform/starbot/starbot/giveaway"
	"github.com/nickstarform/starbot/starbot/utils"
)

func reply(e *handler.CommandEvent, content string) error {
	_, err := e.UpdateInteractionResponse(discord.MessageUpdate{Content: utils.Ptr(content)})
	return err
}

// HandleStart posts the announcement first so that its message id can key
// the giveaway. The message is removed again when the engine rejects it.
func (h *Handler) HandleStart(e *handler.CommandEvent) error {
	guildID := e.GuildID()
	if guildID == nil {
		return e.CreateMessage(ephemeral("❌ Giveaways can only run inside a server."))
	}

	data := e.SlashCommandInteractionData()
	duration, err := utils.ParseDuration(data.String("duration"))
	if err != nil {
		return e.CreateMessage(ephemeral(fmt.Sprintf("❌ %s", err)))
	}
	if err = e.DeferCreateMessage(true); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), config.CommandExecutionTimeout)
	defer cancel()

	req := engine.StartRequest{
		GuildID:     *guildID,
		ChannelID:   e.ChannelID(),
		HostID:      e.User().ID,
		Description: data.String("description"),
		WinnerCount: data.Int("winners"),
		Duration:    duration,
	}
	preview := &engine.Giveaway{
		GuildID:     req.GuildID,
		ChannelID:   req.ChannelID,
		HostID:      req.HostID,
		Description: req.Description,
		WinnerCount: req.WinnerCount,
		EndsAt:      time.Now().Add(duration),
		Status:      engine.StatusActive,
	}

	client := e.Client().Rest()
	msg, err := client.CreateMessage(req.ChannelID, discord.MessageCreate{
		Embeds: []discord.Embed{engine.AnnouncementEmbed(preview, 0)},
	}, rest.WithCtx(ctx))
	if err != nil {
		slog.Error("Failed to post giveaway announcement",
			slog.String("type", "giveaway"),
			slog.String("channel_id", req.ChannelID.String()),
			slog.Any("error", err))
		return reply(e, "❌ I could not post in this channel. Check my permissions.")
	}

	req.AnnouncementID = msg.ID
	g, err := h.manager.Start(ctx, req)
	if err != nil {
		if delErr := client.DeleteMessage(req.ChannelID, msg.ID, rest.WithCtx(ctx)); delErr != nil {
			slog.Warn("Failed to remove rejected giveaway announcement",
				slog.String("type", "giveaway"),
				slog.String("announcement_id", msg.ID.String()),
				slog.Any("error", delErr))
		}
		return reply(e, errorMessage(err))
	}

	embeds := []discord.Embed{engine.AnnouncementEmbed(g, 0)}
	components := engine.AnnouncementComponents(g, h.emoji)
	if _, err = client.UpdateMessage(g.ChannelID, g.AnnouncementID, discord.MessageUpdate{
		Embeds:     &embeds,
		Components: &components,
	}, rest.WithCtx(ctx)); err != nil {
		slog.Error("Failed to add entry button to giveaway",
			slog.String("type", "giveaway"),
			slog.String("announcement_id", g.AnnouncementID.String()),
			slog.Any("error", err))
		return reply(e, fmt.Sprintf("⚠️ Giveaway `%s` started, but its entry button could not be added. Cancel it and try again.", g.AnnouncementID))
	}

	return reply(e, fmt.Sprintf("✅ Giveaway started for %s. It ends <t:%d:R>.", utils.FormatDuration(duration), g.EndsAt.Unix()))
}

// resolve looks up the giveaway named by the "giveaway" option. Records of
// other guilds are reported as missing.
func (h *Handler) resolve(ctx context.Context, e *handler.CommandEvent) (*engine.Giveaway, error) {
	guildID := e.GuildID()
	if guildID == nil {
		return nil, engine.ErrNotFound
	}
	id, err := snowflake.Parse(e.SlashCommandInteractionData().String("giveaway"))
	if err != nil {
		return nil, engine.ErrNotFound
	}
	g, err := h.manager.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if g.GuildID != *guildID {
		return nil, engine.ErrNotFound
	}
	return g, nil
}

// runOnGiveaway defers the response, resolves the giveaway and replies with
// the outcome of fn.
func (h *Handler) runOnGiveaway(e *handler.CommandEvent, success string, fn func(ctx context.Context, g *engine.Giveaway) error) error {
	if err := e.DeferCreateMessage(true); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), config.CommandExecutionTimeout)
	defer cancel()

	g, err := h.resolve(ctx, e)
	if err == nil {
		err = fn(ctx, g)
	}
	if err != nil {
		return reply(e, errorMessage(err))
	}
	return reply(e, success)
}

func (h *Handler) HandleEnd(e *handler.CommandEvent) error {
	return h.runOnGiveaway(e, "✅ Giveaway ended. The winners have been announced.", func(ctx context.Context, g *engine.Giveaway) error {
		ctx, cancel := context.WithTimeout(ctx, config.FinalizeWaitTimeout)
		defer cancel()
		return h.manager.EndEarly(ctx, g.AnnouncementID)
	})
}

func (h *Handler) HandleCancel(e *handler.CommandEvent) error {
	return h.runOnGiveaway(e, "✅ Giveaway cancelled. No winners were drawn.", func(ctx context.Context, g *engine.Giveaway) error {
		return h.manager.Cancel(ctx, g.AnnouncementID)
	})
}

func (h *Handler) HandleReroll(e *handler.CommandEvent) error {
	override, _ := e.SlashCommandInteractionData().OptInt("winners")
	return h.runOnGiveaway(e, "✅ New winners have been drawn.", func(ctx context.Context, g *engine.Giveaway) error {
		_, err := h.manager.Reroll(ctx, g.AnnouncementID, override)
		return err
	})
}

func (h *Handler) HandleRetry(e *handler.CommandEvent) error {
	return h.runOnGiveaway(e, "✅ Giveaway finalized.", func(ctx context.Context, g *engine.Giveaway) error {
		ctx, cancel := context.WithTimeout(ctx, config.FinalizeWaitTimeout)
		defer cancel()
		return h.manager.RetryFinalize(ctx, g.AnnouncementID)
	})
}
