package starbot

import (
	"context"
	"log/slog"

	"github.com/disgoorg/disgo"
	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/cache"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/disgo/gateway"
	"github.com/disgoorg/paginator"
	"github.com/nickstarform/starbot/starbot/config"
	"github.com/nickstarform/starbot/starbot/database"
	"github.com/nickstarform/starbot/starbot/database/repositories"
	"github.com/nickstarform/starbot/starbot/giveaway"
	"github.com/nickstarform/starbot/starbot/logger"
	"github.com/nickstarform/starbot/starbot/services"
	"github.com/nickstarform/starbot/starbot/utils"
)

func New(cfg Config, version string, commit string) *Bot {
	return &Bot{
		Cfg:       cfg,
		Paginator: paginator.New(),
		Processes: utils.NewBackgroundProcessManager(),
		Version:   version,
		Commit:    commit,
	}
}

type Bot struct {
	Cfg       Config
	Client    bot.Client
	Paginator *paginator.Manager
	Processes *utils.BackgroundProcessManager
	Version   string
	Commit    string

	DB        *database.DB
	Giveaways repositories.GiveawayRepository
	Entries   repositories.EntryRepository
	Archive   *services.ArchiveService
	Manager   *giveaway.Manager
	Announcer *giveaway.Announcer
}

func (b *Bot) SetupBot(listeners ...bot.EventListener) error {
	client, err := disgo.New(b.Cfg.Bot.Token,
		bot.WithGatewayConfigOpts(gateway.WithIntents(gateway.IntentGuilds, gateway.IntentGuildMembers)),
		bot.WithCacheConfigOpts(cache.WithCaches(cache.FlagGuilds)),
		bot.WithEventListeners(b.Paginator),
		bot.WithEventListeners(listeners...),
	)
	if err != nil {
		return err
	}

	b.Client = client
	if b.Announcer != nil {
		b.Announcer.SetClient(client)
	}
	return nil
}

func (b *Bot) OnReady(_ *events.Ready) {
	logger.LogSystem("Starbot is now ready",
		slog.String("version", b.Version),
		slog.String("commit", b.Commit))

	ctx, cancel := context.WithTimeout(context.Background(), config.PresenceTimeout)
	defer cancel()

	if err := b.Client.SetPresence(ctx,
		gateway.WithWatchingActivity("giveaways 🎉"),
		gateway.WithOnlineStatus(discord.OnlineStatusOnline)); err != nil {
		logger.LogError("Failed to set presence", err)
	}
}

// OnGuildLeave cancels the running giveaways of a guild the bot was removed
// from. Guild outages arrive as GuildUnavailable and never reach this.
func (b *Bot) OnGuildLeave(e *events.GuildLeave) {
	ctx, cancel := context.WithTimeout(context.Background(), b.Cfg.Giveaway.StoreTimeout.Duration)
	defer cancel()

	result, err := b.Manager.TeardownGuild(ctx, e.GuildID)
	if err != nil {
		logger.LogError("Guild teardown failed", err, slog.String("guild_id", e.GuildID.String()))
		return
	}
	logger.LogSystem("Left guild",
		slog.String("guild_id", e.GuildID.String()),
		slog.Int("cancelled", len(result.Cancelled)),
		slog.Int("purged", result.Purged))
}

// OnGuildMemberLeave drops the entries of a member who left the guild so
// they cannot be drawn.
func (b *Bot) OnGuildMemberLeave(e *events.GuildMemberLeave) {
	ctx, cancel := context.WithTimeout(context.Background(), b.Cfg.Giveaway.StoreTimeout.Duration)
	defer cancel()

	removed, err := b.Entries.RemoveMember(ctx, e.GuildID, e.User.ID)
	if err != nil {
		logger.LogError("Failed to remove entries of departed member", err,
			slog.String("guild_id", e.GuildID.String()),
			slog.String("user_id", e.User.ID.String()))
		return
	}
	if removed > 0 {
		slog.Debug("Removed entries of departed member",
			slog.String("type", "giveaway"),
			slog.String("guild_id", e.GuildID.String()),
			slog.String("user_id", e.User.ID.String()),
			slog.Int("entries", removed))
	}
}
