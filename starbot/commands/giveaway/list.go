package giveaway

import (
	"context"
	"fmt"
	"strings"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/handler"
	"github.com/disgoorg/paginator"
	"github.com/nickstarform/starbot/starbot/config"
)

func (h *Handler) HandleList(e *handler.CommandEvent) error {
	guildID := e.GuildID()
	if guildID == nil {
		return e.CreateMessage(ephemeral("❌ Giveaways can only run inside a server."))
	}
	all, _ := e.SlashCommandInteractionData().OptBool("all")

	ctx, cancel := context.WithTimeout(context.Background(), config.CommandExecutionTimeout)
	defer cancel()

	list, err := h.manager.ListGuild(ctx, *guildID, !all)
	if err != nil {
		return e.CreateMessage(ephemeral(errorMessage(err)))
	}
	if len(list) == 0 {
		if all {
			return e.CreateMessage(ephemeral("This server has no giveaways yet."))
		}
		return e.CreateMessage(ephemeral("No giveaways are running right now."))
	}

	title := "🎉 Running Giveaways"
	if all {
		title = "🎉 Giveaways"
	}
	totalPages := (len(list) + config.GiveawaysPerPage - 1) / config.GiveawaysPerPage

	return h.paginator.Create(e.Respond, paginator.Pages{
		ID:      e.ID().String(),
		Creator: e.User().ID,
		PageFunc: func(page int, embed *discord.EmbedBuilder) {
			start := page * config.GiveawaysPerPage
			end := min(start+config.GiveawaysPerPage, len(list))

			lines := make([]string, 0, end-start)
			for _, g := range list[start:end] {
				lines = append(lines, listLine(g))
			}

			embed.
				SetTitle(title).
				SetDescription(strings.Join(lines, "\n\n")).
				SetColor(config.GiveawayEndedColor).
				SetFooter(fmt.Sprintf("Page %d/%d • %d giveaway(s)", page+1, totalPages, len(list)), "")
		},
		Pages:      totalPages,
		ExpireMode: paginator.ExpireModeAfterLastUsage,
	}, true)
}
