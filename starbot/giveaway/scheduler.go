package giveaway

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/disgoorg/snowflake/v2"
)

// TimerState is the scheduling state of a tracked giveaway.
type TimerState int32

const (
	TimerScheduled TimerState = iota
	TimerFiring
	TimerCancelled
	TimerDone
)

func (s TimerState) String() string {
	switch s {
	case TimerScheduled:
		return "scheduled"
	case TimerFiring:
		return "firing"
	case TimerCancelled:
		return "cancelled"
	case TimerDone:
		return "done"
	}
	return "unknown"
}

// FireFunc finalizes a giveaway. An error re-arms the entry so the giveaway
// can be fired again, except ErrAlreadyFinalized which marks it done.
type FireFunc func(ctx context.Context, id snowflake.ID) error

type timerEntry struct {
	id      snowflake.ID
	guildID snowflake.ID
	endsAt  time.Time
	state   atomic.Int32
	timer   *time.Timer

	// Set while Firing, guarded by Scheduler.mu.
	abort           context.CancelFunc
	fired           chan struct{}
	cancelRequested bool
}

func (e *timerEntry) transition(from, to TimerState) bool {
	return e.state.CompareAndSwap(int32(from), int32(to))
}

func (e *timerEntry) load() TimerState {
	return TimerState(e.state.Load())
}

// Scheduler keeps one runtime timer per tracked giveaway and guarantees that
// the fire callback runs at most once at a time per giveaway. The map is a
// cache of scheduling intent and can be rebuilt from the Store at any time.
type Scheduler struct {
	fire FireFunc

	mu      sync.Mutex
	entries map[snowflake.ID]*timerEntry
	byGuild map[snowflake.ID]map[snowflake.ID]struct{}
	closed  bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	now    func() time.Time
}

func NewScheduler(fire FireFunc) *Scheduler {
	if fire == nil {
		panic("giveaway: nil fire func")
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		fire:    fire,
		entries: make(map[snowflake.ID]*timerEntry),
		byGuild: make(map[snowflake.ID]map[snowflake.ID]struct{}),
		ctx:     ctx,
		cancel:  cancel,
		now:     time.Now,
	}
}

// Schedule arms a timer that fires at endsAt, or immediately when endsAt has
// passed. Rescheduling a Scheduled entry moves its deadline. It returns false
// when the giveaway is currently firing or the scheduler is shut down.
func (s *Scheduler) Schedule(id, guildID snowflake.ID, endsAt time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}

	delay := max(endsAt.Sub(s.now()), 0)

	if e, ok := s.entries[id]; ok {
		switch e.load() {
		case TimerScheduled:
			e.endsAt = endsAt
			e.timer.Stop()
			e.timer.Reset(delay)
			return true
		case TimerFiring:
			return false
		}
		s.removeLocked(e)
	}

	e := &timerEntry{id: id, guildID: guildID, endsAt: endsAt}
	e.timer = time.AfterFunc(delay, func() { s.run(e, "timer") })
	s.entries[id] = e
	guild, ok := s.byGuild[guildID]
	if !ok {
		guild = make(map[snowflake.ID]struct{})
		s.byGuild[guildID] = guild
	}
	guild[id] = struct{}{}

	slog.Debug("Giveaway timer scheduled",
		slog.String("type", "giveaway"),
		slog.String("announcement_id", id.String()),
		slog.String("guild_id", guildID.String()),
		slog.Duration("in", delay))
	return true
}

// TriggerNow fires a Scheduled giveaway on the calling goroutine. It reports
// whether this call won the guard, along with the fire error.
func (s *Scheduler) TriggerNow(id snowflake.ID) (bool, error) {
	s.mu.Lock()
	e, ok := s.entries[id]
	if ok && e.load() == TimerScheduled {
		e.timer.Stop()
	}
	s.mu.Unlock()

	if !ok {
		return false, nil
	}
	return s.run(e, "trigger")
}

// Cancel stops a Scheduled giveaway without firing it. False means the
// giveaway was not tracked or is already firing.
func (s *Scheduler) Cancel(id snowflake.ID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok || !e.transition(TimerScheduled, TimerCancelled) {
		return false
	}
	e.timer.Stop()
	s.removeLocked(e)
	return true
}

// GuildCancellation is what CancelGuild stopped.
type GuildCancellation struct {
	Cancelled []snowflake.ID
	// Firing holds the giveaways that were mid-finalize. Their finalize is
	// aborted and the channel is closed once it has returned; a finalize that
	// fails afterwards is not re-armed.
	Firing map[snowflake.ID]<-chan struct{}
}

// CancelGuild cancels every Scheduled giveaway of a guild and aborts the
// ones currently firing.
func (s *Scheduler) CancelGuild(guildID snowflake.ID) GuildCancellation {
	s.mu.Lock()
	defer s.mu.Unlock()

	res := GuildCancellation{Firing: make(map[snowflake.ID]<-chan struct{})}
	for id := range s.byGuild[guildID] {
		e := s.entries[id]
		if e == nil {
			continue
		}
		if e.transition(TimerScheduled, TimerCancelled) {
			e.timer.Stop()
			s.removeLocked(e)
			res.Cancelled = append(res.Cancelled, id)
			continue
		}
		if e.load() == TimerFiring {
			e.cancelRequested = true
			e.abort()
			res.Firing[id] = e.fired
		}
	}
	return res
}

// State returns the scheduling state of a tracked giveaway.
func (s *Scheduler) State(id snowflake.ID) (TimerState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok {
		return 0, false
	}
	return e.load(), true
}

func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Shutdown stops every pending timer without firing and waits for in-flight
// fires to return. Stopped giveaways stay ACTIVE in the Store.
func (s *Scheduler) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	stopped := 0
	for _, e := range s.entries {
		if e.transition(TimerScheduled, TimerCancelled) {
			e.timer.Stop()
			stopped++
		}
	}
	clear(s.entries)
	clear(s.byGuild)
	s.mu.Unlock()

	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		slog.Info("Giveaway scheduler stopped",
			slog.String("type", "giveaway"),
			slog.Int("stopped_timers", stopped))
		return nil
	case <-ctx.Done():
		slog.Warn("Timeout waiting for giveaway finalizes to stop",
			slog.String("type", "giveaway"))
		return ctx.Err()
	}
}

func (s *Scheduler) run(e *timerEntry, trigger string) (bool, error) {
	s.mu.Lock()
	if s.closed || !e.transition(TimerScheduled, TimerFiring) {
		s.mu.Unlock()
		return false, nil
	}
	fireCtx, abort := context.WithCancel(s.ctx)
	e.abort = abort
	e.fired = make(chan struct{})
	fired := e.fired
	s.wg.Add(1)
	s.mu.Unlock()
	defer s.wg.Done()

	slog.Info("Giveaway timer fired",
		slog.String("type", "giveaway"),
		slog.String("announcement_id", e.id.String()),
		slog.String("trigger", trigger))

	err := s.fire(fireCtx, e.id)
	abort()

	s.mu.Lock()
	defer s.mu.Unlock()
	defer close(fired)
	e.abort = nil
	if err != nil && !errors.Is(err, ErrAlreadyFinalized) {
		if e.cancelRequested {
			e.transition(TimerFiring, TimerCancelled)
			s.removeLocked(e)
			return true, err
		}
		// Leave the entry tracked without a pending timer so a manual retry
		// or the sweeper can fire it again.
		e.transition(TimerFiring, TimerScheduled)
		return true, err
	}
	e.transition(TimerFiring, TimerDone)
	s.removeLocked(e)
	return true, err
}

func (s *Scheduler) removeLocked(e *timerEntry) {
	if s.entries[e.id] != e {
		return
	}
	delete(s.entries, e.id)
	if guild, ok := s.byGuild[e.guildID]; ok {
		delete(guild, e.id)
		if len(guild) == 0 {
			delete(s.byGuild, e.guildID)
		}
	}
}
