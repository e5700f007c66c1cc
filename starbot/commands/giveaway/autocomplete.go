package giveaway

import (
	"context"
	"fmt"
	"strings"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/handler"
	"github.com/nickstarform/starbot/starbot/config"
	engine "github.com/nickstarform/starbot/starbot/giveaway"
	"github.com/nickstarform/starbot/starbot/utils"
	"github.com/sahilm/fuzzy"
)

// giveawaySource implements fuzzy.Source over giveaway descriptions.
type giveawaySource []*engine.Giveaway

func (s giveawaySource) Len() int {
	return len(s)
}

func (s giveawaySource) String(i int) string {
	return strings.ToLower(s[i].Description)
}

func (h *Handler) HandleAutocomplete(e *handler.AutocompleteEvent) error {
	guildID := e.GuildID()
	if guildID == nil {
		return e.AutocompleteResult(nil)
	}

	// Only ended giveaways can be rerolled, everything else targets running ones.
	rerolling := e.Data.SubCommandName != nil && *e.Data.SubCommandName == "reroll"

	ctx, cancel := context.WithTimeout(context.Background(), config.CommandExecutionTimeout)
	defer cancel()

	list, err := h.manager.ListGuild(ctx, *guildID, !rerolling)
	if err != nil {
		return err
	}
	if rerolling {
		ended := list[:0]
		for _, g := range list {
			if g.Status == engine.StatusEnded {
				ended = append(ended, g)
			}
		}
		list = ended
	}

	return e.AutocompleteResult(rankChoices(list, e.Data.String("giveaway"), config.MaxAutocomplete))
}

// rankChoices orders list by how well it matches query. An exact
// announcement id comes first, then fuzzy description matches.
func rankChoices(list []*engine.Giveaway, query string, limit int) []discord.AutocompleteChoice {
	query = strings.ToLower(strings.TrimSpace(query))

	ranked := make([]*engine.Giveaway, 0, len(list))
	if query == "" {
		ranked = append(ranked, list...)
	} else {
		seen := make(map[*engine.Giveaway]struct{})
		for _, g := range list {
			if g.AnnouncementID.String() == query {
				ranked = append(ranked, g)
				seen[g] = struct{}{}
			}
		}
		for _, match := range fuzzy.FindFrom(query, giveawaySource(list)) {
			g := list[match.Index]
			if _, ok := seen[g]; !ok {
				ranked = append(ranked, g)
			}
		}
	}

	choices := make([]discord.AutocompleteChoice, 0, min(len(ranked), limit))
	for _, g := range ranked[:min(len(ranked), limit)] {
		choices = append(choices, discord.AutocompleteChoiceString{
			Name:  choiceName(g),
			Value: g.AnnouncementID.String(),
		})
	}
	return choices
}

func choiceName(g *engine.Giveaway) string {
	suffix := fmt.Sprintf(" · %d winner(s) · %s", g.WinnerCount, g.AnnouncementID)
	return utils.Truncate(g.Description, 100-len([]rune(suffix))) + suffix
}
