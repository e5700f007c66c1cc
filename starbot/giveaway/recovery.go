package giveaway

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// sweepGrace is how long past its deadline a Scheduled giveaway may sit
// before the sweeper re-arms it.
const sweepGrace = 30 * time.Second

// Recover re-arms a timer for every ACTIVE giveaway in the Store. Giveaways
// whose end has already passed fire immediately.
func (m *Manager) Recover(ctx context.Context) (int, error) {
	refs, err := m.store.ListActive(ctx, 0)
	if err != nil {
		return 0, fmt.Errorf("failed to list active giveaways: %w", err)
	}

	now := m.now()
	overdue := 0
	for _, ref := range refs {
		if !ref.EndsAt.After(now) {
			overdue++
		}
		m.scheduler.Schedule(ref.AnnouncementID, ref.GuildID, ref.EndsAt)
	}

	slog.Info("Giveaway timers recovered",
		slog.String("type", "giveaway"),
		slog.Int("scheduled", len(refs)),
		slog.Int("overdue", overdue),
		slog.Int("tracked", m.scheduler.Len()))
	return len(refs), nil
}

// Sweep re-arms ACTIVE giveaways the scheduler lost track of, or whose
// finalize failed and was left waiting for a retry.
func (m *Manager) Sweep(ctx context.Context) (int, error) {
	refs, err := m.store.ListActive(ctx, 0)
	if err != nil {
		return 0, fmt.Errorf("failed to list active giveaways: %w", err)
	}

	now := m.now()
	rearmed := 0
	for _, ref := range refs {
		state, tracked := m.scheduler.State(ref.AnnouncementID)
		switch {
		case !tracked:
		case state == TimerScheduled && now.Sub(ref.EndsAt) > sweepGrace:
		default:
			continue
		}
		if m.scheduler.Schedule(ref.AnnouncementID, ref.GuildID, ref.EndsAt) {
			rearmed++
		}
	}

	if rearmed > 0 {
		slog.Info("Giveaway sweep re-armed timers",
			slog.String("type", "giveaway"),
			slog.Int("rearmed", rearmed))
	}
	return rearmed, nil
}

// RunSweeper calls Sweep every interval until ctx is done.
func (m *Manager) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		slog.Warn("Giveaway sweeper disabled",
			slog.String("type", "giveaway"),
			slog.Duration("interval", interval))
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			sweepCtx, cancel := context.WithTimeout(ctx, m.cfg.StoreTimeout)
			if _, err := m.Sweep(sweepCtx); err != nil {
				slog.Error("Failed to sweep giveaways",
					slog.String("type", "error"),
					slog.Any("error", err))
			}
			cancel()
		case <-ctx.Done():
			return
		}
	}
}

// Shutdown stops all pending timers and waits for running finalizes.
func (m *Manager) Shutdown(ctx context.Context) error {
	return m.scheduler.Shutdown(ctx)
}
