package giveaway

import (
	"context"
	"time"

	"github.com/disgoorg/snowflake/v2"
)

type Status string

const (
	StatusActive    Status = "active"
	StatusEnded     Status = "ended"
	StatusCancelled Status = "cancelled"
)

// Giveaway is the engine's view of a persisted giveaway record. The
// announcement message id is the primary key.
type Giveaway struct {
	AnnouncementID  snowflake.ID
	GuildID         snowflake.ID
	ChannelID       snowflake.ID
	HostID          snowflake.ID
	Description     string
	WinnerCount     int
	CreatedAt       time.Time
	EndsAt          time.Time
	Status          Status
	Winners         []snowflake.ID
	ResultMessageID snowflake.ID
}

func (g *Giveaway) Active() bool {
	return g.Status == StatusActive
}

// Update is the set of fields changed by Store.Update. Nil fields are left
// untouched. When IfStatus is set the update only applies while the record
// still has that status, otherwise the Store returns ErrStaleRecord.
type Update struct {
	EndsAt          *time.Time
	Status          *Status
	Winners         *[]snowflake.ID
	ResultMessageID *snowflake.ID
	IfStatus        Status
}

// ActiveRef is the scheduling view of an ACTIVE record.
type ActiveRef struct {
	AnnouncementID snowflake.ID
	GuildID        snowflake.ID
	EndsAt         time.Time
}

//go:generate mockgen -destination=mock/store.go -package=mock . Store,ParticipantSource,Archiver

// Store is the durable source of truth for giveaway records.
type Store interface {
	Create(ctx context.Context, g *Giveaway) error
	// Get returns ErrNotFound for unknown ids.
	Get(ctx context.Context, id snowflake.ID) (*Giveaway, error)
	Update(ctx context.Context, id snowflake.ID, u Update) error
	// ListActive lists ACTIVE records of a guild, or of every guild when
	// guildID is 0.
	ListActive(ctx context.Context, guildID snowflake.ID) ([]ActiveRef, error)
	ListByGuild(ctx context.Context, guildID snowflake.ID, onlyActive bool) ([]*Giveaway, error)
	DeleteByGuild(ctx context.Context, guildID snowflake.ID) (int, error)
}

// ParticipantSource returns the current opt-in set of a giveaway.
type ParticipantSource interface {
	Participants(ctx context.Context, id snowflake.ID) ([]snowflake.ID, error)
}

// Archiver exports a guild's records before they are purged.
type Archiver interface {
	ArchiveGuild(ctx context.Context, guildID snowflake.ID, giveaways []*Giveaway) error
}
