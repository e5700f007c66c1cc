package models

import (
	"time"

	"github.com/uptrace/bun"
)

type GiveawayStatus string

const (
	GiveawayStatusActive    GiveawayStatus = "active"
	GiveawayStatusEnded     GiveawayStatus = "ended"
	GiveawayStatusCancelled GiveawayStatus = "cancelled"
)

// Discord ids are stored as strings, like every other id in this schema.
type Giveaway struct {
	bun.BaseModel `bun:"table:giveaways,alias:g"`

	AnnouncementID  string         `bun:"announcement_id,pk"`
	GuildID         string         `bun:"guild_id,notnull"`
	ChannelID       string         `bun:"channel_id,notnull"`
	HostID          string         `bun:"host_id,notnull"`
	Description     string         `bun:"description,notnull"`
	WinnerCount     int            `bun:"winner_count,notnull"`
	Status          GiveawayStatus `bun:"status,notnull"`
	ResultMessageID string         `bun:"result_message_id"`
	EndsAt          time.Time      `bun:"ends_at,notnull"`

	Winners []*GiveawayWinner `bun:"rel:has-many,join:announcement_id=announcement_id"`

	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt time.Time `bun:"updated_at,notnull,default:current_timestamp"`
}

// GiveawayWinner keeps the drawn winners of a giveaway in draw order.
type GiveawayWinner struct {
	bun.BaseModel `bun:"table:giveaway_winners,alias:gw"`

	AnnouncementID string `bun:"announcement_id,pk"`
	Position       int    `bun:"position,pk"`
	UserID         string `bun:"user_id,notnull"`
}

// GiveawayEntry is one member's opt-in to a giveaway.
type GiveawayEntry struct {
	bun.BaseModel `bun:"table:giveaway_entries,alias:ge"`

	AnnouncementID string    `bun:"announcement_id,pk"`
	UserID         string    `bun:"user_id,pk"`
	GuildID        string    `bun:"guild_id,notnull"`
	CreatedAt      time.Time `bun:"created_at,notnull,default:current_timestamp"`
}
