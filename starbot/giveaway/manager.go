package giveaway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/disgoorg/snowflake/v2"
	"github.com/nickstarform/starbot/starbot/logger"
	"golang.org/x/sync/errgroup"
)

const (
	teardownParallelism = 8
	recordLockStripes   = 64
)

type Config struct {
	MaxDescriptionLength int
	MaxWinners           int
	MaxDuration          time.Duration
	FinalizeRetries      int
	FinalizeRetryBase    time.Duration
	StoreTimeout         time.Duration
	PurgeOnTeardown      bool
}

func DefaultConfig() Config {
	return Config{
		MaxDescriptionLength: 1024,
		MaxWinners:           20,
		MaxDuration:          30 * 24 * time.Hour,
		FinalizeRetries:      3,
		FinalizeRetryBase:    time.Second,
		StoreTimeout:         30 * time.Second,
	}
}

// StartRequest describes a new giveaway. AnnouncementID is the id of the
// already posted announcement; when zero a fresh snowflake is generated.
type StartRequest struct {
	AnnouncementID snowflake.ID
	GuildID        snowflake.ID
	ChannelID      snowflake.ID
	HostID         snowflake.ID
	Description    string
	WinnerCount    int
	Duration       time.Duration
}

// TeardownResult summarises a guild teardown.
type TeardownResult struct {
	Cancelled []snowflake.ID
	Purged    int
}

// Manager drives the giveaway lifecycle against the Store and owns the
// Scheduler that fires finalization.
type Manager struct {
	store        Store
	participants ParticipantSource
	selector     *Selector
	scheduler    *Scheduler
	archiver     Archiver
	cfg          Config

	listenersMu sync.RWMutex
	listeners   []EventListener

	locks [recordLockStripes]sync.Mutex
	now   func() time.Time
}

func NewManager(store Store, participants ParticipantSource, cfg Config) *Manager {
	if store == nil {
		panic("giveaway: nil store")
	}
	if participants == nil {
		panic("giveaway: nil participant source")
	}
	defaults := DefaultConfig()
	if cfg.MaxDescriptionLength <= 0 {
		cfg.MaxDescriptionLength = defaults.MaxDescriptionLength
	}
	if cfg.MaxWinners <= 0 {
		cfg.MaxWinners = defaults.MaxWinners
	}
	if cfg.MaxDuration <= 0 {
		cfg.MaxDuration = defaults.MaxDuration
	}
	if cfg.FinalizeRetries <= 0 {
		cfg.FinalizeRetries = defaults.FinalizeRetries
	}
	if cfg.FinalizeRetryBase <= 0 {
		cfg.FinalizeRetryBase = defaults.FinalizeRetryBase
	}
	if cfg.StoreTimeout <= 0 {
		cfg.StoreTimeout = defaults.StoreTimeout
	}

	m := &Manager{
		store:        store,
		participants: participants,
		selector:     NewSelector(nil),
		cfg:          cfg,
		now:          time.Now,
	}
	m.scheduler = NewScheduler(m.finalizeWithRetry)
	return m
}

// SetArchiver sets where purged guild records are exported to.
func (m *Manager) SetArchiver(a Archiver) {
	m.archiver = a
}

// SetSelector replaces the winner selector, mostly for seeded draws in tests.
func (m *Manager) SetSelector(s *Selector) {
	m.selector = s
}

func (m *Manager) Scheduler() *Scheduler {
	return m.scheduler
}

func (m *Manager) Config() Config {
	return m.cfg
}

func (m *Manager) lock(id snowflake.ID) func() {
	mu := &m.locks[uint64(id)%recordLockStripes]
	mu.Lock()
	return mu.Unlock
}

// Start validates and persists a new ACTIVE giveaway and arms its timer.
func (m *Manager) Start(ctx context.Context, req StartRequest) (*Giveaway, error) {
	if err := m.validate(req); err != nil {
		return nil, err
	}

	now := m.now()
	id := req.AnnouncementID
	if id == 0 {
		id = snowflake.New(now)
	}

	g := &Giveaway{
		AnnouncementID: id,
		GuildID:        req.GuildID,
		ChannelID:      req.ChannelID,
		HostID:         req.HostID,
		Description:    req.Description,
		WinnerCount:    req.WinnerCount,
		CreatedAt:      now,
		EndsAt:         now.Add(req.Duration),
		Status:         StatusActive,
		Winners:        []snowflake.ID{},
	}
	if err := m.store.Create(ctx, g); err != nil {
		return nil, persistErr("create", id, err)
	}
	m.scheduler.Schedule(g.AnnouncementID, g.GuildID, g.EndsAt)

	logger.LogGiveaway("Giveaway started", id, g.GuildID,
		slog.Int("winners", g.WinnerCount),
		slog.Time("ends_at", g.EndsAt))
	return g, nil
}

func (m *Manager) validate(req StartRequest) error {
	switch {
	case req.GuildID == 0:
		return validationErrorf("guild is required")
	case req.ChannelID == 0:
		return validationErrorf("channel is required")
	case req.HostID == 0:
		return validationErrorf("host is required")
	case req.WinnerCount < 1:
		return validationErrorf("winner count must be at least 1, got %d", req.WinnerCount)
	case req.WinnerCount > m.cfg.MaxWinners:
		return validationErrorf("winner count must be at most %d, got %d", m.cfg.MaxWinners, req.WinnerCount)
	case req.Duration <= 0:
		return validationErrorf("duration must be positive, got %s", req.Duration)
	case req.Duration > m.cfg.MaxDuration:
		return validationErrorf("duration must be at most %s, got %s", m.cfg.MaxDuration, req.Duration)
	case req.Description == "":
		return validationErrorf("description is required")
	case utf8.RuneCountInString(req.Description) > m.cfg.MaxDescriptionLength:
		return validationErrorf("description must be at most %d characters", m.cfg.MaxDescriptionLength)
	}
	return nil
}

func (m *Manager) Get(ctx context.Context, id snowflake.ID) (*Giveaway, error) {
	return m.store.Get(ctx, id)
}

func (m *Manager) ListGuild(ctx context.Context, guildID snowflake.ID, onlyActive bool) ([]*Giveaway, error) {
	return m.store.ListByGuild(ctx, guildID, onlyActive)
}

// EndEarly moves the end of an ACTIVE giveaway to now and finalizes it. It
// waits for the finalize until ctx is done, then returns
// ErrFinalizeInProgress while the finalize carries on in the background.
func (m *Manager) EndEarly(ctx context.Context, id snowflake.ID) error {
	g, err := m.moveEndToNow(ctx, id)
	if err != nil {
		return err
	}
	return m.fireNow(ctx, g)
}

func (m *Manager) moveEndToNow(ctx context.Context, id snowflake.ID) (*Giveaway, error) {
	unlock := m.lock(id)
	defer unlock()

	g, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !g.Active() {
		return nil, ErrAlreadyFinalized
	}

	now := m.now()
	if now.Before(g.EndsAt) {
		if err = m.store.Update(ctx, id, Update{EndsAt: &now, IfStatus: StatusActive}); err != nil {
			if errors.Is(err, ErrStaleRecord) {
				return nil, ErrAlreadyFinalized
			}
			return nil, persistErr("update ends_at", id, err)
		}
		g.EndsAt = now
	}
	return g, nil
}

// RetryFinalize finalizes an ACTIVE giveaway whose timer-driven finalize
// failed, or which is not tracked by the scheduler.
func (m *Manager) RetryFinalize(ctx context.Context, id snowflake.ID) error {
	g, err := m.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if !g.Active() {
		return ErrAlreadyFinalized
	}
	return m.fireNow(ctx, g)
}

func (m *Manager) fireNow(ctx context.Context, g *Giveaway) error {
	if _, tracked := m.scheduler.State(g.AnnouncementID); !tracked {
		// Arm a timer so the guard exists, then take it over right away.
		m.scheduler.Schedule(g.AnnouncementID, g.GuildID, m.now().Add(time.Minute))
	}

	type outcome struct {
		fired bool
		err   error
	}
	done := make(chan outcome, 1)
	go func() {
		fired, err := m.scheduler.TriggerNow(g.AnnouncementID)
		done <- outcome{fired: fired, err: err}
	}()

	select {
	case o := <-done:
		if !o.fired {
			return ErrAlreadyFinalized
		}
		return o.err
	case <-ctx.Done():
		return ErrFinalizeInProgress
	}
}

// Cancel stops an ACTIVE giveaway without drawing winners.
func (m *Manager) Cancel(ctx context.Context, id snowflake.ID) error {
	g, err := m.cancel(ctx, id)
	if err != nil {
		return err
	}

	logger.LogGiveaway("Giveaway cancelled", id, g.GuildID)
	m.emit(&CancelledEvent{Giveaway: g, Reason: CancelReasonManual})
	return nil
}

func (m *Manager) cancel(ctx context.Context, id snowflake.ID) (*Giveaway, error) {
	unlock := m.lock(id)
	defer unlock()

	g, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !g.Active() {
		return nil, ErrAlreadyFinalized
	}

	_, tracked := m.scheduler.State(id)
	if tracked && !m.scheduler.Cancel(id) {
		return nil, ErrAlreadyFinalized
	}

	status := StatusCancelled
	empty := []snowflake.ID{}
	err = m.store.Update(ctx, id, Update{Status: &status, Winners: &empty, IfStatus: StatusActive})
	if err != nil {
		if errors.Is(err, ErrStaleRecord) {
			return nil, ErrAlreadyFinalized
		}
		// Nothing was committed, put the timer back.
		m.scheduler.Schedule(id, g.GuildID, g.EndsAt)
		return nil, persistErr("cancel", id, err)
	}

	g.Status = StatusCancelled
	g.Winners = empty
	return g, nil
}

// finalizeWithRetry is the scheduler's fire callback. Transient failures are
// retried with exponential backoff; when retries run out a
// FinalizeFailedEvent is emitted and the error is returned so the guard is
// re-armed.
func (m *Manager) finalizeWithRetry(ctx context.Context, id snowflake.ID) error {
	var lastErr error
	for attempt := 0; attempt < m.cfg.FinalizeRetries; attempt++ {
		if attempt > 0 {
			backoff := m.cfg.FinalizeRetryBase * time.Duration(1<<(attempt-1))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		attemptCtx, cancel := context.WithTimeout(ctx, m.cfg.StoreTimeout)
		lastErr = m.finalize(attemptCtx, id)
		cancel()
		if lastErr == nil || errors.Is(lastErr, ErrAlreadyFinalized) {
			return lastErr
		}
		if ctx.Err() != nil {
			// Aborted by teardown or shutdown.
			return ctx.Err()
		}

		slog.Warn("Giveaway finalize attempt failed",
			slog.String("type", "giveaway"),
			slog.String("announcement_id", id.String()),
			slog.Int("attempt", attempt+1),
			slog.Any("error", lastErr))
	}

	slog.Error("Giveaway finalize failed",
		slog.String("type", "error"),
		slog.String("announcement_id", id.String()),
		slog.Int("attempts", m.cfg.FinalizeRetries),
		slog.Any("error", lastErr))
	m.emit(&FinalizeFailedEvent{AnnouncementID: id, Attempts: m.cfg.FinalizeRetries, Err: lastErr})
	return lastErr
}

// finalize ends an ACTIVE giveaway. It is only called from behind the
// scheduler guard and returns ErrAlreadyFinalized when the record had already
// left ACTIVE.
func (m *Manager) finalize(ctx context.Context, id snowflake.ID) error {
	g, err := m.store.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		slog.Warn("Finalize skipped, giveaway no longer exists",
			slog.String("type", "giveaway"),
			slog.String("announcement_id", id.String()))
		return nil
	}
	if err != nil {
		return persistErr("get", id, err)
	}
	if !g.Active() {
		return ErrAlreadyFinalized
	}

	participants, err := m.participants.Participants(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to fetch participants: %w", err)
	}

	winners, err := m.selector.Select(participants, g.WinnerCount)
	if err != nil && !errors.Is(err, ErrNoEligibleParticipants) {
		return err
	}
	if winners == nil {
		winners = []snowflake.ID{}
	}

	status := StatusEnded
	err = m.store.Update(ctx, id, Update{Status: &status, Winners: &winners, IfStatus: StatusActive})
	if errors.Is(err, ErrStaleRecord) {
		return ErrAlreadyFinalized
	}
	if err != nil {
		return persistErr("finalize", id, err)
	}

	g.Status = StatusEnded
	g.Winners = winners

	logger.LogGiveaway("Giveaway finalized", id, g.GuildID,
		slog.Int("participants", len(participants)),
		slog.Int("winners", len(winners)))
	m.emit(&FinalizedEvent{Giveaway: g, Winners: winners, Participants: len(participants)})
	return nil
}

// Reroll draws a new set of winners for an ENDED giveaway. A positive
// override replaces the original winner count for this draw.
func (m *Manager) Reroll(ctx context.Context, id snowflake.ID, override int) ([]snowflake.ID, error) {
	g, previous, err := m.reroll(ctx, id, override)
	if err != nil {
		return nil, err
	}

	logger.LogGiveaway("Giveaway rerolled", id, g.GuildID,
		slog.Int("winners", len(g.Winners)))
	m.emit(&RerolledEvent{Giveaway: g, Previous: previous, Winners: g.Winners})
	return g.Winners, nil
}

func (m *Manager) reroll(ctx context.Context, id snowflake.ID, override int) (*Giveaway, []snowflake.ID, error) {
	if override < 0 || override > m.cfg.MaxWinners {
		return nil, nil, validationErrorf("winner count must be between 1 and %d, got %d", m.cfg.MaxWinners, override)
	}

	unlock := m.lock(id)
	defer unlock()

	g, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	switch g.Status {
	case StatusActive:
		return nil, nil, ErrStillActive
	case StatusCancelled:
		return nil, nil, ErrCancelled
	}

	count := g.WinnerCount
	if override > 0 {
		count = override
	}

	participants, err := m.participants.Participants(ctx, id)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to fetch participants: %w", err)
	}
	winners, err := m.selector.Select(participants, count)
	if err != nil {
		return nil, nil, err
	}

	err = m.store.Update(ctx, id, Update{Winners: &winners, IfStatus: StatusEnded})
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrStaleRecord) {
		// ENDED is terminal, so a missed guard means the record was purged.
		return nil, nil, ErrNotFound
	}
	if err != nil {
		return nil, nil, persistErr("reroll", id, err)
	}

	previous := g.Winners
	g.Winners = winners
	return g, previous, nil
}

// SetResultAnnouncement records the message that announced the result.
func (m *Manager) SetResultAnnouncement(ctx context.Context, id, messageID snowflake.ID) error {
	if err := m.store.Update(ctx, id, Update{ResultMessageID: &messageID}); err != nil {
		return persistErr("set result message", id, err)
	}
	return nil
}

// TeardownGuild cancels every ACTIVE giveaway of a guild that is gone. Nothing
// is finalized. With PurgeOnTeardown the guild's records are archived and
// deleted afterwards.
func (m *Manager) TeardownGuild(ctx context.Context, guildID snowflake.ID) (TeardownResult, error) {
	var res TeardownResult

	refs, err := m.store.ListActive(ctx, guildID)
	if err != nil {
		return res, fmt.Errorf("failed to list active giveaways: %w", err)
	}

	stop := m.scheduler.CancelGuild(guildID)
	for id, fired := range stop.Firing {
		select {
		case <-fired:
		case <-ctx.Done():
			return res, fmt.Errorf("giveaway %s is still finalizing: %w", id, ctx.Err())
		}
	}

	targets := make([]snowflake.ID, 0, len(refs)+len(stop.Cancelled)+len(stop.Firing))
	seen := make(map[snowflake.ID]struct{}, cap(targets))
	add := func(id snowflake.ID) {
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			targets = append(targets, id)
		}
	}
	for _, ref := range refs {
		add(ref.AnnouncementID)
	}
	for _, id := range stop.Cancelled {
		add(id)
	}
	for id := range stop.Firing {
		add(id)
	}

	var (
		mu        sync.Mutex
		cancelled []*Giveaway
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(teardownParallelism)
	for _, id := range targets {
		g.Go(func() error {
			rec, err := m.cancelForTeardown(gctx, id)
			if err != nil || rec == nil {
				return err
			}
			mu.Lock()
			cancelled = append(cancelled, rec)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return res, err
	}

	for _, rec := range cancelled {
		res.Cancelled = append(res.Cancelled, rec.AnnouncementID)
		m.emit(&CancelledEvent{Giveaway: rec, Reason: CancelReasonTeardown})
	}

	slog.Info("Guild giveaways torn down",
		slog.String("type", "giveaway"),
		slog.String("guild_id", guildID.String()),
		slog.Int("cancelled", len(res.Cancelled)))

	if !m.cfg.PurgeOnTeardown {
		return res, nil
	}

	purged, err := m.purgeGuild(ctx, guildID)
	if err != nil {
		return res, err
	}
	res.Purged = purged
	return res, nil
}

// cancelForTeardown marks one record CANCELLED. A finalize that committed
// first wins and the record is skipped.
func (m *Manager) cancelForTeardown(ctx context.Context, id snowflake.ID) (*Giveaway, error) {
	unlock := m.lock(id)
	defer unlock()

	// Drops a timer re-armed after CancelGuild ran.
	m.scheduler.Cancel(id)

	g, err := m.store.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, persistErr("get", id, err)
	}
	if !g.Active() {
		return nil, nil
	}

	status := StatusCancelled
	empty := []snowflake.ID{}
	err = m.store.Update(ctx, id, Update{Status: &status, Winners: &empty, IfStatus: StatusActive})
	if errors.Is(err, ErrStaleRecord) {
		return nil, nil
	}
	if err != nil {
		return nil, persistErr("cancel", id, err)
	}

	g.Status = StatusCancelled
	g.Winners = empty
	return g, nil
}

func (m *Manager) purgeGuild(ctx context.Context, guildID snowflake.ID) (int, error) {
	if m.archiver != nil {
		all, err := m.store.ListByGuild(ctx, guildID, false)
		if err != nil {
			return 0, fmt.Errorf("failed to list giveaways for archive: %w", err)
		}
		if len(all) > 0 {
			if err = m.archiver.ArchiveGuild(ctx, guildID, all); err != nil {
				return 0, fmt.Errorf("failed to archive giveaways: %w", err)
			}
		}
	}

	n, err := m.store.DeleteByGuild(ctx, guildID)
	if err != nil {
		return 0, fmt.Errorf("failed to purge giveaways: %w", err)
	}

	slog.Info("Guild giveaways purged",
		slog.String("type", "giveaway"),
		slog.String("guild_id", guildID.String()),
		slog.Int("deleted", n))
	return n, nil
}
