package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/nickstarform/starbot/starbot/database/models"
	"github.com/nickstarform/starbot/starbot/giveaway"
	"github.com/uptrace/bun"
)

type GiveawayRepository interface {
	giveaway.Store
	DB() *bun.DB
}

type giveawayRepository struct {
	db *bun.DB
}

func NewGiveawayRepository(db *bun.DB) GiveawayRepository {
	return &giveawayRepository{db: db}
}

func (r *giveawayRepository) DB() *bun.DB {
	return r.db
}

func (r *giveawayRepository) Create(ctx context.Context, g *giveaway.Giveaway) error {
	row := fromDomain(g)
	row.CreatedAt = time.Now()
	row.UpdatedAt = row.CreatedAt

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err = tx.NewInsert().Model(row).Exec(ctx); err != nil {
		return fmt.Errorf("failed to create giveaway: %w", err)
	}
	if err = insertWinners(ctx, tx, row.AnnouncementID, g.Winners); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (r *giveawayRepository) Get(ctx context.Context, id snowflake.ID) (*giveaway.Giveaway, error) {
	row := new(models.Giveaway)
	err := r.db.NewSelect().
		Model(row).
		Relation("Winners", orderWinners).
		Where("g.announcement_id = ?", id.String()).
		Scan(ctx)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, giveaway.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get giveaway: %w", err)
	}
	return toDomain(row)
}

func (r *giveawayRepository) Update(ctx context.Context, id snowflake.ID, u giveaway.Update) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	q := tx.NewUpdate().
		Model((*models.Giveaway)(nil)).
		Set("updated_at = ?", time.Now()).
		Where("announcement_id = ?", id.String())

	if u.EndsAt != nil {
		q = q.Set("ends_at = ?", *u.EndsAt)
	}
	if u.Status != nil {
		q = q.Set("status = ?", models.GiveawayStatus(*u.Status))
	}
	if u.ResultMessageID != nil {
		q = q.Set("result_message_id = ?", idString(*u.ResultMessageID))
	}
	if u.IfStatus != "" {
		q = q.Where("status = ?", models.GiveawayStatus(u.IfStatus))
	}

	result, err := q.Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to update giveaway: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return r.missingRowError(ctx, tx, id, u)
	}

	if u.Winners != nil {
		_, err = tx.NewDelete().
			Model((*models.GiveawayWinner)(nil)).
			Where("announcement_id = ?", id.String()).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to clear winners: %w", err)
		}
		if err = insertWinners(ctx, tx, id.String(), *u.Winners); err != nil {
			return err
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (r *giveawayRepository) missingRowError(ctx context.Context, tx bun.Tx, id snowflake.ID, u giveaway.Update) error {
	if u.IfStatus == "" {
		return giveaway.ErrNotFound
	}
	exists, err := tx.NewSelect().
		Model((*models.Giveaway)(nil)).
		Where("announcement_id = ?", id.String()).
		Exists(ctx)
	if err != nil {
		return fmt.Errorf("failed to check giveaway: %w", err)
	}
	if !exists {
		return giveaway.ErrNotFound
	}
	return giveaway.ErrStaleRecord
}

func (r *giveawayRepository) ListActive(ctx context.Context, guildID snowflake.ID) ([]giveaway.ActiveRef, error) {
	var rows []*models.Giveaway
	q := r.db.NewSelect().
		Model(&rows).
		Column("announcement_id", "guild_id", "ends_at").
		Where("status = ?", models.GiveawayStatusActive).
		Order("ends_at ASC")
	if guildID != 0 {
		q = q.Where("guild_id = ?", guildID.String())
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("failed to get active giveaways: %w", err)
	}

	refs := make([]giveaway.ActiveRef, 0, len(rows))
	for _, row := range rows {
		id, err := parseID(row.AnnouncementID)
		if err != nil {
			return nil, err
		}
		guild, err := parseID(row.GuildID)
		if err != nil {
			return nil, err
		}
		refs = append(refs, giveaway.ActiveRef{AnnouncementID: id, GuildID: guild, EndsAt: row.EndsAt})
	}
	return refs, nil
}

func (r *giveawayRepository) ListByGuild(ctx context.Context, guildID snowflake.ID, onlyActive bool) ([]*giveaway.Giveaway, error) {
	var rows []*models.Giveaway
	q := r.db.NewSelect().
		Model(&rows).
		Relation("Winners", orderWinners).
		Where("g.guild_id = ?", guildID.String()).
		Order("g.created_at DESC")
	if onlyActive {
		q = q.Where("g.status = ?", models.GiveawayStatusActive)
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("failed to get guild giveaways: %w", err)
	}

	out := make([]*giveaway.Giveaway, 0, len(rows))
	for _, row := range rows {
		g, err := toDomain(row)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, nil
}

// DeleteByGuild removes every giveaway of a guild together with its winners
// and entries.
func (r *giveawayRepository) DeleteByGuild(ctx context.Context, guildID snowflake.ID) (int, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	owned := tx.NewSelect().
		Model((*models.Giveaway)(nil)).
		Column("announcement_id").
		Where("guild_id = ?", guildID.String())

	if _, err = tx.NewDelete().
		Model((*models.GiveawayWinner)(nil)).
		Where("announcement_id IN (?)", owned).
		Exec(ctx); err != nil {
		return 0, fmt.Errorf("failed to delete winners: %w", err)
	}

	if _, err = tx.NewDelete().
		Model((*models.GiveawayEntry)(nil)).
		Where("guild_id = ?", guildID.String()).
		Exec(ctx); err != nil {
		return 0, fmt.Errorf("failed to delete entries: %w", err)
	}

	result, err := tx.NewDelete().
		Model((*models.Giveaway)(nil)).
		Where("guild_id = ?", guildID.String()).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to delete giveaways: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return int(rows), nil
}

func orderWinners(q *bun.SelectQuery) *bun.SelectQuery {
	return q.Order("gw.position ASC")
}

func insertWinners(ctx context.Context, tx bun.Tx, announcementID string, winners []snowflake.ID) error {
	if len(winners) == 0 {
		return nil
	}
	rows := make([]*models.GiveawayWinner, len(winners))
	for i, w := range winners {
		rows[i] = &models.GiveawayWinner{AnnouncementID: announcementID, Position: i, UserID: w.String()}
	}
	if _, err := tx.NewInsert().Model(&rows).Exec(ctx); err != nil {
		return fmt.Errorf("failed to insert winners: %w", err)
	}
	return nil
}

func fromDomain(g *giveaway.Giveaway) *models.Giveaway {
	return &models.Giveaway{
		AnnouncementID:  g.AnnouncementID.String(),
		GuildID:         g.GuildID.String(),
		ChannelID:       g.ChannelID.String(),
		HostID:          g.HostID.String(),
		Description:     g.Description,
		WinnerCount:     g.WinnerCount,
		Status:          models.GiveawayStatus(g.Status),
		ResultMessageID: idString(g.ResultMessageID),
		EndsAt:          g.EndsAt,
		CreatedAt:       g.CreatedAt,
	}
}

func toDomain(row *models.Giveaway) (*giveaway.Giveaway, error) {
	var (
		g   = &giveaway.Giveaway{Description: row.Description, WinnerCount: row.WinnerCount}
		err error
	)
	for _, f := range []struct {
		dst *snowflake.ID
		src string
	}{
		{&g.AnnouncementID, row.AnnouncementID},
		{&g.GuildID, row.GuildID},
		{&g.ChannelID, row.ChannelID},
		{&g.HostID, row.HostID},
		{&g.ResultMessageID, row.ResultMessageID},
	} {
		if *f.dst, err = parseID(f.src); err != nil {
			return nil, err
		}
	}

	g.Status = giveaway.Status(row.Status)
	g.CreatedAt = row.CreatedAt
	g.EndsAt = row.EndsAt
	g.Winners = make([]snowflake.ID, 0, len(row.Winners))
	for _, w := range row.Winners {
		id, err := parseID(w.UserID)
		if err != nil {
			return nil, err
		}
		g.Winners = append(g.Winners, id)
	}
	return g, nil
}

func parseID(s string) (snowflake.ID, error) {
	if s == "" {
		return 0, nil
	}
	id, err := snowflake.Parse(s)
	if err != nil {
		return 0, fmt.Errorf("invalid snowflake %q: %w", s, err)
	}
	return id, nil
}

func idString(id snowflake.ID) string {
	if id == 0 {
		return ""
	}
	return id.String()
}
