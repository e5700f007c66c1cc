package giveaway

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/nickstarform/starbot/starbot/config"
	engine "github.com/nickstarform/starbot/starbot/giveaway"
	"github.com/nickstarform/starbot/starbot/utils"
)

func ephemeral(content string) discord.MessageCreate {
	return discord.MessageCreate{
		Content: content,
		Flags:   discord.MessageFlagEphemeral,
	}
}

// errorMessage turns an engine error into the reply shown to the user.
func errorMessage(err error) string {
	var persistErr *engine.PersistenceError
	switch {
	case errors.Is(err, engine.ErrValidation):
		return "❌ " + strings.TrimPrefix(err.Error(), engine.ErrValidation.Error()+": ")
	case errors.Is(err, engine.ErrNotFound):
		return "❌ That giveaway does not exist in this server."
	case errors.Is(err, engine.ErrAlreadyFinalized):
		return "⚠️ That giveaway has already ended or was cancelled."
	case errors.Is(err, engine.ErrStillActive):
		return "⚠️ That giveaway is still running. End it before rerolling."
	case errors.Is(err, engine.ErrCancelled):
		return "⚠️ That giveaway was cancelled, there is nothing to reroll."
	case errors.Is(err, engine.ErrNoEligibleParticipants):
		return "⚠️ Nobody is entered in that giveaway anymore."
	case errors.Is(err, engine.ErrEntriesClosed):
		return "⚠️ This giveaway is no longer accepting entries."
	case errors.Is(err, engine.ErrFinalizeInProgress):
		return "⏳ The winners are still being drawn, they will be announced shortly."
	case errors.As(err, &persistErr):
		return "❌ The giveaway could not be saved. Please try again."
	default:
		return "❌ Something went wrong. Please try again."
	}
}

// entryOpen reports whether g still accepts entries at now.
func entryOpen(g *engine.Giveaway, now time.Time) bool {
	return g.Active() && now.Before(g.EndsAt)
}

func statusLabel(s engine.Status) string {
	switch s {
	case engine.StatusActive:
		return config.ActiveGiveawayStatus
	case engine.StatusEnded:
		return config.EndedGiveawayStatus
	default:
		return config.CancelledGiveawayStatus
	}
}

func listLine(g *engine.Giveaway) string {
	var b strings.Builder
	fmt.Fprintf(&b, "**%s** `%s`\n", utils.Truncate(g.Description, 80), g.AnnouncementID)
	fmt.Fprintf(&b, "%s • %d winner(s) • <#%s>", statusLabel(g.Status), g.WinnerCount, g.ChannelID)
	if g.Active() {
		fmt.Fprintf(&b, " • ends <t:%d:R>", g.EndsAt.Unix())
	} else if len(g.Winners) > 0 {
		mentions := make([]string, len(g.Winners))
		for i, w := range g.Winners {
			mentions[i] = fmt.Sprintf("<@%s>", w)
		}
		b.WriteString(" • " + strings.Join(mentions, ", "))
	}
	return b.String()
}
