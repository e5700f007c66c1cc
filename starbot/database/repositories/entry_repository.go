package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/disgoorg/snowflake/v2"
	lru "github.com/hashicorp/golang-lru"
	"github.com/nickstarform/starbot/starbot/database/models"
	"github.com/nickstarform/starbot/starbot/giveaway"
	"github.com/uptrace/bun"
)

const defaultEntryCacheSize = 4096

// EntryRepository stores button entries and serves them as the participant
// source of the giveaway engine.
type EntryRepository interface {
	giveaway.ParticipantSource
	// Toggle enters the user, or removes the entry when it already exists.
	// It reports whether the user is entered afterwards, and fails with
	// giveaway.ErrEntriesClosed once the giveaway is no longer open.
	Toggle(ctx context.Context, announcementID, guildID, userID snowflake.ID) (bool, error)
	Count(ctx context.Context, announcementID snowflake.ID) (int, error)
	RemoveMember(ctx context.Context, guildID, userID snowflake.ID) (int, error)
}

type entryRepository struct {
	db     *bun.DB
	counts *lru.Cache
}

func NewEntryRepository(db *bun.DB, cacheSize int) EntryRepository {
	if cacheSize <= 0 {
		cacheSize = defaultEntryCacheSize
	}
	counts, _ := lru.New(cacheSize)
	return &entryRepository{db: db, counts: counts}
}

// openGiveawayQuery selects the giveaway row while it still accepts entries
// and share-locks it for the rest of the transaction.
func openGiveawayQuery(db bun.IDB, announcementID snowflake.ID) *bun.SelectQuery {
	return db.NewSelect().
		Model((*models.Giveaway)(nil)).
		Column("announcement_id").
		Where("announcement_id = ?", announcementID.String()).
		Where("status = ?", models.GiveawayStatusActive).
		Where("ends_at > clock_timestamp()").
		For("SHARE")
}

// entryBarrierQuery waits for entry toggles of the giveaway still in flight.
func entryBarrierQuery(db bun.IDB, announcementID snowflake.ID) *bun.SelectQuery {
	return db.NewSelect().
		Model((*models.Giveaway)(nil)).
		Column("announcement_id").
		Where("announcement_id = ?", announcementID.String()).
		For("UPDATE")
}

// Participants reads the entries after every concurrent Toggle has
// committed. Toggles that start later see the giveaway as closed, because a
// finalize only runs once ends_at has passed.
func (r *entryRepository) Participants(ctx context.Context, announcementID snowflake.ID) ([]snowflake.ID, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err = entryBarrierQuery(tx, announcementID).Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to lock giveaway: %w", err)
	}

	var userIDs []string
	err = tx.NewSelect().
		Model((*models.GiveawayEntry)(nil)).
		Column("user_id").
		Where("announcement_id = ?", announcementID.String()).
		Order("created_at ASC").
		Scan(ctx, &userIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to get entries: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	participants := make([]snowflake.ID, 0, len(userIDs))
	for _, raw := range userIDs {
		id, err := parseID(raw)
		if err != nil {
			return nil, err
		}
		participants = append(participants, id)
	}
	return participants, nil
}

func (r *entryRepository) Toggle(ctx context.Context, announcementID, guildID, userID snowflake.ID) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	var open string
	err = openGiveawayQuery(tx, announcementID).Scan(ctx, &open)
	if errors.Is(err, sql.ErrNoRows) {
		return false, giveaway.ErrEntriesClosed
	}
	if err != nil {
		return false, fmt.Errorf("failed to lock giveaway: %w", err)
	}

	result, err := tx.NewDelete().
		Model((*models.GiveawayEntry)(nil)).
		Where("announcement_id = ? AND user_id = ?", announcementID.String(), userID.String()).
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to remove entry: %w", err)
	}
	removed, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}

	entered := removed == 0
	if entered {
		entry := &models.GiveawayEntry{
			AnnouncementID: announcementID.String(),
			UserID:         userID.String(),
			GuildID:        guildID.String(),
			CreatedAt:      time.Now(),
		}
		_, err = tx.NewInsert().
			Model(entry).
			On("CONFLICT (announcement_id, user_id) DO NOTHING").
			Exec(ctx)
		if err != nil {
			return false, fmt.Errorf("failed to create entry: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit transaction: %w", err)
	}
	r.counts.Remove(announcementID)
	return entered, nil
}

func (r *entryRepository) Count(ctx context.Context, announcementID snowflake.ID) (int, error) {
	if cached, ok := r.counts.Get(announcementID); ok {
		return cached.(int), nil
	}

	n, err := r.db.NewSelect().
		Model((*models.GiveawayEntry)(nil)).
		Where("announcement_id = ?", announcementID.String()).
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count entries: %w", err)
	}

	r.counts.Add(announcementID, n)
	return n, nil
}

// RemoveMember drops every entry a member holds in a guild.
func (r *entryRepository) RemoveMember(ctx context.Context, guildID, userID snowflake.ID) (int, error) {
	result, err := r.db.NewDelete().
		Model((*models.GiveawayEntry)(nil)).
		Where("guild_id = ? AND user_id = ?", guildID.String(), userID.String()).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to remove member entries: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows > 0 {
		r.counts.Purge()
	}
	return int(rows), nil
}
