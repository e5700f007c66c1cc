package logger

import (
	"log/slog"

	"github.com/disgoorg/snowflake/v2"
)

// LogGiveaway logs a giveaway lifecycle transition
func LogGiveaway(msg string, announcementID, guildID snowflake.ID, attrs ...any) {
	baseAttrs := []any{
		slog.String("type", "giveaway"),
		slog.String("announcement_id", announcementID.String()),
		slog.String("guild_id", guildID.String()),
	}
	slog.Info(msg, append(baseAttrs, attrs...)...)
}

// LogSystem logs system events
func LogSystem(msg string, attrs ...any) {
	baseAttrs := []any{slog.String("type", "sys")}
	slog.Info(msg, append(baseAttrs, attrs...)...)
}

// LogError logs error events
func LogError(msg string, err error, attrs ...any) {
	baseAttrs := []any{
		slog.String("type", "error"),
		slog.Any("error", err),
	}
	slog.Error(msg, append(baseAttrs, attrs...)...)
}
