package giveaway

import (
	"context"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/handler"
	"github.com/disgoorg/json"
	"github.com/disgoorg/paginator"
	"github.com/disgoorg/snowflake/v2"
	engine "github.com/nickstarform/starbot/starbot/giveaway"
	"github.com/nickstarform/starbot/starbot/handlers"
	"github.com/nickstarform/starbot/starbot/utils"
)

var Command = discord.SlashCommandCreate{
	Name:                     "giveaway",
	Description:              "Run giveaways in this server",
	DefaultMemberPermissions: json.NewNullablePtr(discord.PermissionManageGuild),
	Options: []discord.ApplicationCommandOption{
		discord.ApplicationCommandOptionSubCommand{
			Name:        "start",
			Description: "Start a giveaway in this channel",
			Options: []discord.ApplicationCommandOption{
				discord.ApplicationCommandOptionString{
					Name:        "description",
					Description: "What is being given away",
					Required:    true,
					MaxLength:   utils.Ptr(1024),
				},
				discord.ApplicationCommandOptionInt{
					Name:        "winners",
					Description: "How many winners to draw",
					Required:    true,
					MinValue:    utils.Ptr(1),
				},
				discord.ApplicationCommandOptionString{
					Name:        "duration",
					Description: "How long the giveaway runs, e.g. 30m, 1h30m or 2d",
					Required:    true,
				},
			},
		},
		discord.ApplicationCommandOptionSubCommand{
			Name:        "end",
			Description: "End a running giveaway now and draw its winners",
			Options:     []discord.ApplicationCommandOption{giveawayOption()},
		},
		discord.ApplicationCommandOptionSubCommand{
			Name:        "cancel",
			Description: "Cancel a running giveaway without drawing winners",
			Options:     []discord.ApplicationCommandOption{giveawayOption()},
		},
		discord.ApplicationCommandOptionSubCommand{
			Name:        "reroll",
			Description: "Draw new winners for an ended giveaway",
			Options: []discord.ApplicationCommandOption{
				giveawayOption(),
				discord.ApplicationCommandOptionInt{
					Name:        "winners",
					Description: "Number of winners for this draw, defaults to the original count",
					MinValue:    utils.Ptr(1),
				},
			},
		},
		discord.ApplicationCommandOptionSubCommand{
			Name:        "retry",
			Description: "Retry drawing a giveaway whose end failed",
			Options:     []discord.ApplicationCommandOption{giveawayOption()},
		},
		discord.ApplicationCommandOptionSubCommand{
			Name:        "list",
			Description: "List the giveaways of this server",
			Options: []discord.ApplicationCommandOption{
				discord.ApplicationCommandOptionBool{
					Name:        "all",
					Description: "Include ended and cancelled giveaways",
				},
			},
		},
	},
}

func giveawayOption() discord.ApplicationCommandOptionString {
	return discord.ApplicationCommandOptionString{
		Name:         "giveaway",
		Description:  "The giveaway, by description or announcement id",
		Required:     true,
		Autocomplete: true,
	}
}

// EntryStore is the part of the entry repository the commands use.
type EntryStore interface {
	Toggle(ctx context.Context, announcementID, guildID, userID snowflake.ID) (bool, error)
	Count(ctx context.Context, announcementID snowflake.ID) (int, error)
}

type Handler struct {
	manager   *engine.Manager
	entries   EntryStore
	paginator *paginator.Manager
	emoji     string
}

func NewHandler(manager *engine.Manager, entries EntryStore, pages *paginator.Manager, emoji string) *Handler {
	return &Handler{
		manager:   manager,
		entries:   entries,
		paginator: pages,
		emoji:     emoji,
	}
}

func (h *Handler) Register(r handler.Router) {
	r.Route("/giveaway", func(r handler.Router) {
		r.Command("/start", handlers.WrapWithLogging("giveaway-start", h.HandleStart))
		r.Command("/end", handlers.WrapWithLogging("giveaway-end", h.HandleEnd))
		r.Command("/cancel", handlers.WrapWithLogging("giveaway-cancel", h.HandleCancel))
		r.Command("/reroll", handlers.WrapWithLogging("giveaway-reroll", h.HandleReroll))
		r.Command("/retry", handlers.WrapWithLogging("giveaway-retry", h.HandleRetry))
		r.Command("/list", handlers.WrapWithLogging("giveaway-list", h.HandleList))
		for _, sub := range []string{"/end", "/cancel", "/reroll", "/retry"} {
			r.Autocomplete(sub, handlers.WrapAutocompleteWithLogging("giveaway"+sub, h.HandleAutocomplete))
		}
		r.Component("/enter/{id}", handlers.WrapComponentWithLogging("giveaway-enter", h.HandleEnter))
	})
}
