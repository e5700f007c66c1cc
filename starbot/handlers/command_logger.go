package handlers

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/handler"
	"github.com/disgoorg/snowflake/v2"
	"github.com/nickstarform/starbot/starbot/config"
)

type interaction struct {
	kind    string // "cmd" or "component"
	label   string
	name    string
	user    discord.User
	guildID *snowflake.ID
	channel snowflake.ID
}

func (i interaction) attrs() []any {
	return []any{
		slog.String("type", i.kind),
		slog.String("name", i.name),
		slog.String("user_id", i.user.ID.String()),
		slog.String("user_name", i.user.Username),
	}
}

// run executes fn with start, completion and timeout logging. A timed out
// handler keeps running in the background; only the caller stops waiting.
func run(i interaction, timeout time.Duration, fn func() error) error {
	start := time.Now()

	guild := "dm"
	if i.guildID != nil {
		guild = i.guildID.String()
	}
	slog.Debug(i.label+" started", append(i.attrs(),
		slog.String("guild_id", guild),
		slog.String("channel_id", i.channel.String()),
	)...)

	done := make(chan error, 1)
	go func() {
		done <- fn()
	}()

	select {
	case err := <-done:
		took := time.Since(start)
		attrs := append(i.attrs(), slog.Duration("took", took))
		switch {
		case err != nil:
			slog.Error(i.label+" failed", append(attrs,
				slog.Any("error", err),
				slog.String("status", "failed"),
			)...)
		case took > config.SlowCommandThreshold:
			slog.Warn(i.label+" executed slowly", append(attrs, slog.String("status", "slow"))...)
		default:
			slog.Info(i.label+" completed", append(attrs, slog.String("status", "success"))...)
		}
		return err

	case <-time.After(timeout):
		slog.Error(i.label+" timed out", append(i.attrs(),
			slog.String("status", "timeout"),
			slog.Duration("timeout", timeout),
		)...)
		return fmt.Errorf("%s timed out after %s", i.name, timeout)
	}
}

// WrapWithLogging wraps a command handler with logging functionality
func WrapWithLogging(name string, h handler.CommandHandler) handler.CommandHandler {
	return func(e *handler.CommandEvent) error {
		return run(interaction{
			kind:    "cmd",
			label:   "Command",
			name:    name,
			user:    e.User(),
			guildID: e.GuildID(),
			channel: e.ChannelID(),
		}, config.CommandExecutionTimeout, func() error { return h(e) })
	}
}

// WrapComponentWithLogging wraps a component handler with logging functionality
func WrapComponentWithLogging(name string, h handler.ComponentHandler) handler.ComponentHandler {
	return func(e *handler.ComponentEvent) error {
		return run(interaction{
			kind:    "component",
			label:   "Component interaction",
			name:    name,
			user:    e.User(),
			guildID: e.GuildID(),
			channel: e.ChannelID(),
		}, config.CommandExecutionTimeout, func() error { return h(e) })
	}
}

// WrapAutocompleteWithLogging only reports failures; autocomplete fires on
// every keystroke.
func WrapAutocompleteWithLogging(name string, h handler.AutocompleteHandler) handler.AutocompleteHandler {
	return func(e *handler.AutocompleteEvent) error {
		err := h(e)
		if err != nil {
			slog.Error("Autocomplete failed",
				slog.String("type", "cmd"),
				slog.String("name", name),
				slog.String("user_id", e.User().ID.String()),
				slog.Any("error", err))
		}
		return err
	}
}
