package giveaway_test

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/nickstarform/starbot/starbot/giveaway"
)

var errStoreDown = errors.New("store down")

// memStore is an in-memory Store with the same guarded update semantics as
// the database repository.
type memStore struct {
	mu      sync.Mutex
	records map[snowflake.ID]*giveaway.Giveaway

	// failStatusUpdates makes that many status-changing updates fail.
	failStatusUpdates int
}

func newMemStore() *memStore {
	return &memStore{records: make(map[snowflake.ID]*giveaway.Giveaway)}
}

func clone(g *giveaway.Giveaway) *giveaway.Giveaway {
	c := *g
	c.Winners = slices.Clone(g.Winners)
	if c.Winners == nil {
		c.Winners = []snowflake.ID{}
	}
	return &c
}

func (s *memStore) put(g *giveaway.Giveaway) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[g.AnnouncementID] = clone(g)
}

func (s *memStore) setFailStatusUpdates(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failStatusUpdates = n
}

func (s *memStore) failuresLeft() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failStatusUpdates
}

func (s *memStore) Create(_ context.Context, g *giveaway.Giveaway) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[g.AnnouncementID]; ok {
		return errors.New("duplicate announcement id")
	}
	s.records[g.AnnouncementID] = clone(g)
	return nil
}

func (s *memStore) Get(_ context.Context, id snowflake.ID) (*giveaway.Giveaway, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.records[id]
	if !ok {
		return nil, giveaway.ErrNotFound
	}
	return clone(g), nil
}

func (s *memStore) Update(_ context.Context, id snowflake.ID, u giveaway.Update) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u.Status != nil && s.failStatusUpdates > 0 {
		s.failStatusUpdates--
		return errStoreDown
	}

	g, ok := s.records[id]
	if !ok {
		return giveaway.ErrNotFound
	}
	if u.IfStatus != "" && g.Status != u.IfStatus {
		return giveaway.ErrStaleRecord
	}
	if u.EndsAt != nil {
		g.EndsAt = *u.EndsAt
	}
	if u.Status != nil {
		g.Status = *u.Status
	}
	if u.Winners != nil {
		g.Winners = slices.Clone(*u.Winners)
	}
	if u.ResultMessageID != nil {
		g.ResultMessageID = *u.ResultMessageID
	}
	return nil
}

func (s *memStore) ListActive(_ context.Context, guildID snowflake.ID) ([]giveaway.ActiveRef, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var refs []giveaway.ActiveRef
	for _, g := range s.records {
		if g.Status != giveaway.StatusActive || (guildID != 0 && g.GuildID != guildID) {
			continue
		}
		refs = append(refs, giveaway.ActiveRef{AnnouncementID: g.AnnouncementID, GuildID: g.GuildID, EndsAt: g.EndsAt})
	}
	return refs, nil
}

func (s *memStore) ListByGuild(_ context.Context, guildID snowflake.ID, onlyActive bool) ([]*giveaway.Giveaway, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*giveaway.Giveaway
	for _, g := range s.records {
		if g.GuildID != guildID || (onlyActive && g.Status != giveaway.StatusActive) {
			continue
		}
		out = append(out, clone(g))
	}
	return out, nil
}

func (s *memStore) DeleteByGuild(_ context.Context, guildID snowflake.ID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, g := range s.records {
		if g.GuildID == guildID {
			delete(s.records, id)
			n++
		}
	}
	return n, nil
}

type memParticipants struct {
	mu      sync.Mutex
	entries map[snowflake.ID][]snowflake.ID
	calls   int
}

func newMemParticipants() *memParticipants {
	return &memParticipants{entries: make(map[snowflake.ID][]snowflake.ID)}
}

func (p *memParticipants) set(id snowflake.ID, users ...snowflake.ID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.entries[id] = users
}

func (p *memParticipants) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func (p *memParticipants) Participants(_ context.Context, id snowflake.ID) ([]snowflake.ID, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	return slices.Clone(p.entries[id]), nil
}

// recorder collects emitted events.
type recorder struct {
	mu     sync.Mutex
	events []giveaway.Event
	notify chan giveaway.Event
}

func newRecorder() *recorder {
	return &recorder{notify: make(chan giveaway.Event, 128)}
}

func (r *recorder) OnEvent(e giveaway.Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
	r.notify <- e
}

func (r *recorder) finalized() []*giveaway.FinalizedEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*giveaway.FinalizedEvent
	for _, e := range r.events {
		if f, ok := e.(*giveaway.FinalizedEvent); ok {
			out = append(out, f)
		}
	}
	return out
}

func (r *recorder) count(match func(giveaway.Event) bool) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if match(e) {
			n++
		}
	}
	return n
}

func waitEvent[T giveaway.Event](t *testing.T, r *recorder, timeout time.Duration) T {
	t.Helper()
	deadline := time.After(timeout)
	for {
		select {
		case e := <-r.notify:
			if typed, ok := e.(T); ok {
				return typed
			}
		case <-deadline:
			var zero T
			t.Fatalf("no %T event within %s", zero, timeout)
			return zero
		}
	}
}

func newTestManager(t *testing.T, store giveaway.Store, participants giveaway.ParticipantSource, cfg giveaway.Config) (*giveaway.Manager, *recorder) {
	t.Helper()
	m := giveaway.NewManager(store, participants, cfg)
	rec := newRecorder()
	m.AddListener(rec)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = m.Shutdown(ctx)
	})
	return m, rec
}

func startRequest(guildID snowflake.ID, winners int, d time.Duration) giveaway.StartRequest {
	return giveaway.StartRequest{
		GuildID:     guildID,
		ChannelID:   500,
		HostID:      600,
		Description: "Nitro",
		WinnerCount: winners,
		Duration:    d,
	}
}
