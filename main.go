package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/handler"
	"github.com/nickstarform/starbot/starbot"
	giveawaycmd "github.com/nickstarform/starbot/starbot/commands/giveaway"
	"github.com/nickstarform/starbot/starbot/config"
	"github.com/nickstarform/starbot/starbot/database"
	"github.com/nickstarform/starbot/starbot/database/repositories"
	"github.com/nickstarform/starbot/starbot/giveaway"
	"github.com/nickstarform/starbot/starbot/logger"
	"github.com/nickstarform/starbot/starbot/services"
)

var (
	version = "dev"
	commit  = "unknown"
)

var commands = []discord.ApplicationCommandCreate{
	giveawaycmd.Command,
}

func main() {
	shouldSyncCommands := flag.Bool("sync-commands", false, "Whether to sync commands to discord")
	path := flag.String("config", "config.toml", "path to config")
	flag.Parse()

	cfg, err := starbot.LoadConfig(*path)
	if err != nil {
		slog.Error("Failed to load configuration", slog.Any("error", err))
		os.Exit(-1)
	}

	slog.SetDefault(slog.New(logger.NewHandler(cfg.Log.Level)))
	logger.LogSystem("Starting Starbot",
		slog.String("version", version),
		slog.String("commit", commit))

	dbStartTime := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	db, err := database.New(ctx, cfg.DB)
	if err != nil {
		logger.LogError("Database connection failed", err,
			slog.Duration("attempted_for", time.Since(dbStartTime)))
		os.Exit(-1)
	}
	defer db.Close()

	if err = db.InitializeSchema(ctx); err != nil {
		logger.LogError("Failed to initialize database schema", err)
		os.Exit(-1)
	}
	logger.LogSystem("Database ready",
		slog.String("database", cfg.DB.Database),
		slog.Duration("took", time.Since(dbStartTime)))

	b := starbot.New(*cfg, version, commit)
	b.DB = db
	b.Giveaways = repositories.NewGiveawayRepository(db.BunDB())
	b.Entries = repositories.NewEntryRepository(db.BunDB(), cfg.Giveaway.EntryCacheSize)
	b.Manager = giveaway.NewManager(b.Giveaways, b.Entries, cfg.Giveaway.Engine())

	if cfg.Spaces.Bucket != "" {
		b.Archive, err = services.NewArchiveService(ctx,
			cfg.Spaces.Key,
			cfg.Spaces.Secret,
			cfg.Spaces.Region,
			cfg.Spaces.Bucket,
			cfg.Spaces.ArchiveRoot,
		)
		if err != nil {
			logger.LogError("Failed to initialize archive storage", err)
			os.Exit(-1)
		}
		b.Manager.SetArchiver(b.Archive)
		logger.LogSystem("Archive storage ready",
			slog.String("bucket", b.Archive.GetBucket()),
			slog.String("region", b.Archive.GetRegion()))
	}

	b.Announcer = giveaway.NewAnnouncer(b.Manager, cfg.Giveaway.EntryEmoji)
	b.Manager.AddListener(b.Announcer)

	h := handler.New()
	giveawaycmd.NewHandler(b.Manager, b.Entries, b.Paginator, cfg.Giveaway.EntryEmoji).Register(h)

	if err = b.SetupBot(h,
		bot.NewListenerFunc(b.OnReady),
		bot.NewListenerFunc(b.OnGuildLeave),
		bot.NewListenerFunc(b.OnGuildMemberLeave),
	); err != nil {
		logger.LogError("Failed to setup bot", err,
			slog.String("error_details", fmt.Sprintf("%+v", err)),
			slog.String("component", "bot_setup"))
		os.Exit(-1)
	}

	if *shouldSyncCommands {
		logger.LogSystem("Syncing commands", slog.Any("guild_ids", cfg.Bot.DevGuilds))
		if err = handler.SyncCommands(b.Client, commands, cfg.Bot.DevGuilds); err != nil {
			logger.LogError("Failed to sync commands", err, slog.String("component", "command_sync"))
		}
	}

	// Timers are armed before the gateway opens so that overdue giveaways
	// are drawn as soon as the client can announce them.
	recovered, err := b.Manager.Recover(ctx)
	if err != nil {
		logger.LogError("Failed to recover giveaways", err)
		os.Exit(-1)
	}
	logger.LogSystem("Giveaways recovered", slog.Int("count", recovered))

	b.Processes.StartProcess("giveaway-sweeper", "re-arms overdue giveaways", func(ctx context.Context) {
		b.Manager.RunSweeper(ctx, cfg.Giveaway.SweepInterval.Duration)
	})
	logger.LogSystem("Background processes started", slog.Any("processes", b.Processes.Running()))

	gatewayCtx, gatewayCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer gatewayCancel()
	if err = b.Client.OpenGateway(gatewayCtx); err != nil {
		logger.LogError("Failed to open gateway", err, slog.String("component", "gateway"))
		os.Exit(-1)
	}

	logger.LogSystem("Bot is running. Press CTRL-C to exit.")
	s := make(chan os.Signal, 1)
	signal.Notify(s, syscall.SIGINT, syscall.SIGTERM)
	<-s
	logger.LogSystem("Shutting down bot...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer shutdownCancel()

	if err = b.Processes.Shutdown(shutdownCtx); err != nil {
		logger.LogError("Background processes did not stop in time", err)
	}
	if err = b.Manager.Shutdown(shutdownCtx); err != nil {
		logger.LogError("Giveaway timers did not stop in time", err)
	}
	b.Client.Close(shutdownCtx)
}
