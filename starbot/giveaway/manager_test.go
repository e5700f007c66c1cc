package giveaway_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/nickstarform/starbot/starbot/giveaway"
	"github.com/nickstarform/starbot/starbot/giveaway/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestManager_Start(t *testing.T) {
	tests := []struct {
		name      string
		req       giveaway.StartRequest
		createErr error
		wantCall  bool
		wantErr   error
	}{
		{
			name:     "Success",
			req:      startRequest(1, 1, time.Hour),
			wantCall: true,
		},
		{
			name:    "Zero winners",
			req:     startRequest(1, 0, time.Hour),
			wantErr: giveaway.ErrValidation,
		},
		{
			name:    "Too many winners",
			req:     startRequest(1, 21, time.Hour),
			wantErr: giveaway.ErrValidation,
		},
		{
			name:    "Zero duration",
			req:     startRequest(1, 1, 0),
			wantErr: giveaway.ErrValidation,
		},
		{
			name:    "Negative duration",
			req:     startRequest(1, 1, -time.Minute),
			wantErr: giveaway.ErrValidation,
		},
		{
			name:    "Duration too long",
			req:     startRequest(1, 1, 31*24*time.Hour),
			wantErr: giveaway.ErrValidation,
		},
		{
			name: "Description too long",
			req: func() giveaway.StartRequest {
				r := startRequest(1, 1, time.Hour)
				r.Description = strings.Repeat("a", 1025)
				return r
			}(),
			wantErr: giveaway.ErrValidation,
		},
		{
			name:      "Store failure",
			req:       startRequest(1, 1, time.Hour),
			createErr: errStoreDown,
			wantCall:  true,
			wantErr:   errStoreDown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			store := mock.NewMockStore(ctrl)
			if tt.wantCall {
				store.EXPECT().Create(gomock.Any(), gomock.Any()).Return(tt.createErr)
			}
			m, _ := newTestManager(t, store, mock.NewMockParticipantSource(ctrl), giveaway.DefaultConfig())

			got, err := m.Start(context.Background(), tt.req)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, got)
				assert.Zero(t, m.Scheduler().Len())
				return
			}
			require.NoError(t, err)
			assert.NotZero(t, got.AnnouncementID)
			assert.Equal(t, giveaway.StatusActive, got.Status)
			assert.Empty(t, got.Winners)
			state, tracked := m.Scheduler().State(got.AnnouncementID)
			assert.True(t, tracked)
			assert.Equal(t, giveaway.TimerScheduled, state)
		})
	}
}

func TestManager_StoreFailureIsPersistenceError(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mock.NewMockStore(ctrl)
	store.EXPECT().Create(gomock.Any(), gomock.Any()).Return(errStoreDown)
	m, _ := newTestManager(t, store, mock.NewMockParticipantSource(ctrl), giveaway.DefaultConfig())

	_, err := m.Start(context.Background(), startRequest(1, 1, time.Hour))

	var perr *giveaway.PersistenceError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "create", perr.Op)
}

func TestManager_UnknownGiveaway(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mock.NewMockStore(ctrl)
	store.EXPECT().Get(gomock.Any(), snowflake.ID(404)).Return(nil, giveaway.ErrNotFound).Times(4)
	m, _ := newTestManager(t, store, mock.NewMockParticipantSource(ctrl), giveaway.DefaultConfig())
	ctx := context.Background()

	assert.ErrorIs(t, m.EndEarly(ctx, 404), giveaway.ErrNotFound)
	assert.ErrorIs(t, m.Cancel(ctx, 404), giveaway.ErrNotFound)
	assert.ErrorIs(t, m.RetryFinalize(ctx, 404), giveaway.ErrNotFound)
	_, err := m.Reroll(ctx, 404, 0)
	assert.ErrorIs(t, err, giveaway.ErrNotFound)
}

func TestManager_EndToEnd(t *testing.T) {
	if testing.Short() {
		t.Skip("waits for a real timer")
	}
	store := newMemStore()
	participants := newMemParticipants()
	m, rec := newTestManager(t, store, participants, giveaway.DefaultConfig())

	g, err := m.Start(context.Background(), startRequest(1, 1, 5*time.Second))
	require.NoError(t, err)
	pool := []snowflake.ID{11, 12, 13}
	participants.set(g.AnnouncementID, pool...)

	ev := waitEvent[*giveaway.FinalizedEvent](t, rec, 8*time.Second)

	require.Len(t, ev.Winners, 1)
	assert.Contains(t, pool, ev.Winners[0])
	assert.Equal(t, 3, ev.Participants)

	stored, err := store.Get(context.Background(), g.AnnouncementID)
	require.NoError(t, err)
	assert.Equal(t, giveaway.StatusEnded, stored.Status)
	assert.Equal(t, ev.Winners, stored.Winners)

	time.Sleep(200 * time.Millisecond)
	assert.Len(t, rec.finalized(), 1)
}

func TestManager_ConcurrentEndEarlyFinalizesOnce(t *testing.T) {
	store := newMemStore()
	participants := newMemParticipants()
	m, rec := newTestManager(t, store, participants, giveaway.DefaultConfig())

	g, err := m.Start(context.Background(), startRequest(1, 2, time.Hour))
	require.NoError(t, err)
	participants.set(g.AnnouncementID, 1, 2, 3, 4, 5)

	const callers = 16
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		results []error
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := m.EndEarly(context.Background(), g.AnnouncementID)
			mu.Lock()
			results = append(results, err)
			mu.Unlock()
		}()
	}
	wg.Wait()

	ok := 0
	for _, err := range results {
		if err == nil {
			ok++
			continue
		}
		assert.ErrorIs(t, err, giveaway.ErrAlreadyFinalized)
	}
	assert.Equal(t, 1, ok)
	assert.Len(t, rec.finalized(), 1)
	assert.Equal(t, 1, participants.callCount())

	stored, err := store.Get(context.Background(), g.AnnouncementID)
	require.NoError(t, err)
	assert.Equal(t, giveaway.StatusEnded, stored.Status)
	assert.Len(t, stored.Winners, 2)
}

func TestManager_EmptyPoolEndsWithoutWinners(t *testing.T) {
	store := newMemStore()
	m, rec := newTestManager(t, store, newMemParticipants(), giveaway.DefaultConfig())

	g, err := m.Start(context.Background(), startRequest(1, 3, time.Hour))
	require.NoError(t, err)
	require.NoError(t, m.EndEarly(context.Background(), g.AnnouncementID))

	events := rec.finalized()
	require.Len(t, events, 1)
	assert.Empty(t, events[0].Winners)

	stored, err := store.Get(context.Background(), g.AnnouncementID)
	require.NoError(t, err)
	assert.Equal(t, giveaway.StatusEnded, stored.Status)
	assert.Empty(t, stored.Winners)
	assert.False(t, stored.EndsAt.After(time.Now()))
}

func TestManager_ShortageAwardsEveryone(t *testing.T) {
	store := newMemStore()
	participants := newMemParticipants()
	m, _ := newTestManager(t, store, participants, giveaway.DefaultConfig())

	g, err := m.Start(context.Background(), startRequest(1, 5, time.Hour))
	require.NoError(t, err)
	participants.set(g.AnnouncementID, 30, 10, 10)
	require.NoError(t, m.EndEarly(context.Background(), g.AnnouncementID))

	stored, err := store.Get(context.Background(), g.AnnouncementID)
	require.NoError(t, err)
	assert.Equal(t, []snowflake.ID{10, 30}, stored.Winners)
}

func TestManager_CancelBeforeFire(t *testing.T) {
	store := newMemStore()
	participants := newMemParticipants()
	m, rec := newTestManager(t, store, participants, giveaway.DefaultConfig())

	g, err := m.Start(context.Background(), startRequest(1, 1, 300*time.Millisecond))
	require.NoError(t, err)
	participants.set(g.AnnouncementID, 1, 2)

	require.NoError(t, m.Cancel(context.Background(), g.AnnouncementID))
	ev := waitEvent[*giveaway.CancelledEvent](t, rec, time.Second)
	assert.Equal(t, giveaway.CancelReasonManual, ev.Reason)

	time.Sleep(600 * time.Millisecond)
	assert.Empty(t, rec.finalized())
	assert.Zero(t, participants.callCount())

	stored, err := store.Get(context.Background(), g.AnnouncementID)
	require.NoError(t, err)
	assert.Equal(t, giveaway.StatusCancelled, stored.Status)
	assert.Empty(t, stored.Winners)

	assert.ErrorIs(t, m.Cancel(context.Background(), g.AnnouncementID), giveaway.ErrAlreadyFinalized)
	assert.ErrorIs(t, m.EndEarly(context.Background(), g.AnnouncementID), giveaway.ErrAlreadyFinalized)
}

func TestManager_CancelPersistFailureKeepsTimer(t *testing.T) {
	store := newMemStore()
	m, _ := newTestManager(t, store, newMemParticipants(), giveaway.DefaultConfig())

	g, err := m.Start(context.Background(), startRequest(1, 1, time.Hour))
	require.NoError(t, err)
	store.setFailStatusUpdates(1)

	err = m.Cancel(context.Background(), g.AnnouncementID)
	var perr *giveaway.PersistenceError
	require.ErrorAs(t, err, &perr)

	state, tracked := m.Scheduler().State(g.AnnouncementID)
	assert.True(t, tracked)
	assert.Equal(t, giveaway.TimerScheduled, state)

	stored, err := store.Get(context.Background(), g.AnnouncementID)
	require.NoError(t, err)
	assert.Equal(t, giveaway.StatusActive, stored.Status)
}

func TestManager_RerollRestriction(t *testing.T) {
	store := newMemStore()
	participants := newMemParticipants()
	m, rec := newTestManager(t, store, participants, giveaway.DefaultConfig())

	g, err := m.Start(context.Background(), startRequest(1, 1, time.Hour))
	require.NoError(t, err)
	participants.set(g.AnnouncementID, 1, 2, 3)

	_, err = m.Reroll(context.Background(), g.AnnouncementID, 0)
	require.ErrorIs(t, err, giveaway.ErrStillActive)

	stored, err := store.Get(context.Background(), g.AnnouncementID)
	require.NoError(t, err)
	assert.Empty(t, stored.Winners)
	assert.Zero(t, rec.count(func(e giveaway.Event) bool {
		_, ok := e.(*giveaway.RerolledEvent)
		return ok
	}))
}

func TestManager_Reroll(t *testing.T) {
	store := newMemStore()
	participants := newMemParticipants()
	m, rec := newTestManager(t, store, participants, giveaway.DefaultConfig())
	ctx := context.Background()

	g, err := m.Start(ctx, startRequest(1, 2, time.Hour))
	require.NoError(t, err)
	pool := []snowflake.ID{1, 2, 3, 4, 5, 6}
	participants.set(g.AnnouncementID, pool...)
	require.NoError(t, m.EndEarly(ctx, g.AnnouncementID))
	first := rec.finalized()[0].Winners

	winners, err := m.Reroll(ctx, g.AnnouncementID, 3)
	require.NoError(t, err)
	require.Len(t, winners, 3)
	for _, w := range winners {
		assert.Contains(t, pool, w)
	}

	ev := waitEvent[*giveaway.RerolledEvent](t, rec, time.Second)
	assert.Equal(t, first, ev.Previous)
	assert.Equal(t, winners, ev.Winners)

	stored, err := store.Get(ctx, g.AnnouncementID)
	require.NoError(t, err)
	assert.Equal(t, giveaway.StatusEnded, stored.Status)
	assert.Equal(t, winners, stored.Winners)

	// Everyone left: the previous winners stay.
	participants.set(g.AnnouncementID)
	_, err = m.Reroll(ctx, g.AnnouncementID, 0)
	require.ErrorIs(t, err, giveaway.ErrNoEligibleParticipants)
	stored, err = store.Get(ctx, g.AnnouncementID)
	require.NoError(t, err)
	assert.Equal(t, winners, stored.Winners)
}

func TestManager_RerollCancelled(t *testing.T) {
	store := newMemStore()
	m, _ := newTestManager(t, store, newMemParticipants(), giveaway.DefaultConfig())
	ctx := context.Background()

	g, err := m.Start(ctx, startRequest(1, 1, time.Hour))
	require.NoError(t, err)
	require.NoError(t, m.Cancel(ctx, g.AnnouncementID))

	_, err = m.Reroll(ctx, g.AnnouncementID, 0)
	assert.ErrorIs(t, err, giveaway.ErrCancelled)
	_, err = m.Reroll(ctx, g.AnnouncementID, 99)
	assert.ErrorIs(t, err, giveaway.ErrValidation)
}

func TestManager_TeardownGuild(t *testing.T) {
	store := newMemStore()
	m, rec := newTestManager(t, store, newMemParticipants(), giveaway.DefaultConfig())
	ctx := context.Background()

	var inGuild []snowflake.ID
	for i := 0; i < 3; i++ {
		req := startRequest(1, 1, time.Hour)
		req.AnnouncementID = snowflake.ID(100 + i)
		g, err := m.Start(ctx, req)
		require.NoError(t, err)
		inGuild = append(inGuild, g.AnnouncementID)
	}
	otherReq := startRequest(2, 1, time.Hour)
	otherReq.AnnouncementID = 200
	other, err := m.Start(ctx, otherReq)
	require.NoError(t, err)

	res, err := m.TeardownGuild(ctx, 1)
	require.NoError(t, err)

	assert.ElementsMatch(t, inGuild, res.Cancelled)
	assert.Zero(t, res.Purged)
	for _, id := range inGuild {
		stored, err := store.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, giveaway.StatusCancelled, stored.Status)
		_, tracked := m.Scheduler().State(id)
		assert.False(t, tracked)
	}

	stored, err := store.Get(ctx, other.AnnouncementID)
	require.NoError(t, err)
	assert.Equal(t, giveaway.StatusActive, stored.Status)
	assert.Equal(t, 1, m.Scheduler().Len())

	assert.Equal(t, 3, rec.count(func(e giveaway.Event) bool {
		c, ok := e.(*giveaway.CancelledEvent)
		return ok && c.Reason == giveaway.CancelReasonTeardown
	}))
	assert.Empty(t, rec.finalized())
}

func TestManager_TeardownGuildPurges(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := newMemStore()
	archiver := mock.NewMockArchiver(ctrl)
	cfg := giveaway.DefaultConfig()
	cfg.PurgeOnTeardown = true
	m, _ := newTestManager(t, store, newMemParticipants(), cfg)
	m.SetArchiver(archiver)
	ctx := context.Background()

	_, err := m.Start(ctx, startRequest(1, 1, time.Hour))
	require.NoError(t, err)
	store.put(&giveaway.Giveaway{AnnouncementID: 77, GuildID: 1, Status: giveaway.StatusEnded, WinnerCount: 1})

	archiver.EXPECT().
		ArchiveGuild(gomock.Any(), snowflake.ID(1), gomock.Len(2)).
		Return(nil)

	res, err := m.TeardownGuild(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, res.Cancelled, 1)
	assert.Equal(t, 2, res.Purged)

	all, err := store.ListByGuild(ctx, 1, false)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestManager_FinalizeFailureLeavesRetryPath(t *testing.T) {
	store := newMemStore()
	participants := newMemParticipants()
	cfg := giveaway.DefaultConfig()
	cfg.FinalizeRetries = 2
	cfg.FinalizeRetryBase = 10 * time.Millisecond
	m, rec := newTestManager(t, store, participants, cfg)
	ctx := context.Background()

	g, err := m.Start(ctx, startRequest(1, 1, time.Hour))
	require.NoError(t, err)
	participants.set(g.AnnouncementID, 1, 2, 3)
	store.setFailStatusUpdates(2)

	err = m.EndEarly(ctx, g.AnnouncementID)
	var perr *giveaway.PersistenceError
	require.ErrorAs(t, err, &perr)
	require.True(t, errors.Is(err, errStoreDown))

	failed := waitEvent[*giveaway.FinalizeFailedEvent](t, rec, time.Second)
	assert.Equal(t, 2, failed.Attempts)
	assert.Empty(t, rec.finalized())

	stored, err := store.Get(ctx, g.AnnouncementID)
	require.NoError(t, err)
	assert.Equal(t, giveaway.StatusActive, stored.Status)
	state, tracked := m.Scheduler().State(g.AnnouncementID)
	require.True(t, tracked)
	assert.Equal(t, giveaway.TimerScheduled, state)

	require.NoError(t, m.RetryFinalize(ctx, g.AnnouncementID))
	assert.Len(t, rec.finalized(), 1)
	assert.ErrorIs(t, m.RetryFinalize(ctx, g.AnnouncementID), giveaway.ErrAlreadyFinalized)
}

func TestManager_SetResultAnnouncement(t *testing.T) {
	store := newMemStore()
	m, _ := newTestManager(t, store, newMemParticipants(), giveaway.DefaultConfig())
	ctx := context.Background()

	g, err := m.Start(ctx, startRequest(1, 1, time.Hour))
	require.NoError(t, err)
	require.NoError(t, m.EndEarly(ctx, g.AnnouncementID))
	require.NoError(t, m.SetResultAnnouncement(ctx, g.AnnouncementID, 999))

	stored, err := store.Get(ctx, g.AnnouncementID)
	require.NoError(t, err)
	assert.Equal(t, snowflake.ID(999), stored.ResultMessageID)

	err = m.SetResultAnnouncement(ctx, 12345, 1)
	assert.ErrorIs(t, err, giveaway.ErrNotFound)
}

func TestManager_ListenerPanicDoesNotBreakFinalize(t *testing.T) {
	store := newMemStore()
	m, rec := newTestManager(t, store, newMemParticipants(), giveaway.DefaultConfig())
	m.AddListener(giveaway.ListenerFunc(func(giveaway.Event) { panic("boom") }))
	ctx := context.Background()

	g, err := m.Start(ctx, startRequest(1, 1, time.Hour))
	require.NoError(t, err)
	require.NoError(t, m.EndEarly(ctx, g.AnnouncementID))
	assert.Len(t, rec.finalized(), 1)
}

func TestManager_RerollPurgedRecord(t *testing.T) {
	ended := &giveaway.Giveaway{
		AnnouncementID: 77,
		GuildID:        1,
		WinnerCount:    1,
		Status:         giveaway.StatusEnded,
		Winners:        []snowflake.ID{2},
	}

	for _, storeErr := range []error{giveaway.ErrNotFound, giveaway.ErrStaleRecord} {
		t.Run(storeErr.Error(), func(t *testing.T) {
			ctrl := gomock.NewController(t)
			store := mock.NewMockStore(ctrl)
			participants := mock.NewMockParticipantSource(ctrl)
			store.EXPECT().Get(gomock.Any(), snowflake.ID(77)).Return(ended, nil)
			participants.EXPECT().Participants(gomock.Any(), snowflake.ID(77)).Return([]snowflake.ID{2, 3}, nil)
			store.EXPECT().Update(gomock.Any(), snowflake.ID(77), gomock.Any()).Return(storeErr)
			m, rec := newTestManager(t, store, participants, giveaway.DefaultConfig())

			_, err := m.Reroll(context.Background(), 77, 0)

			require.ErrorIs(t, err, giveaway.ErrNotFound)
			var perr *giveaway.PersistenceError
			assert.False(t, errors.As(err, &perr))
			assert.Zero(t, rec.count(func(e giveaway.Event) bool {
				_, ok := e.(*giveaway.RerolledEvent)
				return ok
			}))
		})
	}
}

func TestManager_EndEarlyStopsWaitingAtDeadline(t *testing.T) {
	store := newMemStore()
	participants := newMemParticipants()
	cfg := giveaway.DefaultConfig()
	cfg.FinalizeRetryBase = 300 * time.Millisecond
	m, rec := newTestManager(t, store, participants, cfg)

	g, err := m.Start(context.Background(), startRequest(1, 1, time.Hour))
	require.NoError(t, err)
	participants.set(g.AnnouncementID, 5)
	store.setFailStatusUpdates(1)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err = m.EndEarly(ctx, g.AnnouncementID)
	require.ErrorIs(t, err, giveaway.ErrFinalizeInProgress)

	// The finalize carries on after the caller gave up.
	ev := waitEvent[*giveaway.FinalizedEvent](t, rec, 2*time.Second)
	assert.Equal(t, []snowflake.ID{5}, ev.Winners)
	stored, err := store.Get(context.Background(), g.AnnouncementID)
	require.NoError(t, err)
	assert.Equal(t, giveaway.StatusEnded, stored.Status)
}

func TestManager_TeardownAbortsRetryingFinalize(t *testing.T) {
	store := newMemStore()
	participants := newMemParticipants()
	cfg := giveaway.DefaultConfig()
	cfg.FinalizeRetries = 3
	cfg.FinalizeRetryBase = 500 * time.Millisecond
	m, rec := newTestManager(t, store, participants, cfg)
	ctx := context.Background()

	g, err := m.Start(ctx, startRequest(1, 1, time.Hour))
	require.NoError(t, err)
	participants.set(g.AnnouncementID, 2)
	store.setFailStatusUpdates(1)

	ended := make(chan error, 1)
	go func() {
		ended <- m.EndEarly(ctx, g.AnnouncementID)
	}()
	// First attempt has failed, the finalize is now backing off.
	require.Eventually(t, func() bool { return store.failuresLeft() == 0 }, time.Second, 5*time.Millisecond)

	teardownCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	res, err := m.TeardownGuild(teardownCtx, 1)
	require.NoError(t, err)
	assert.Equal(t, []snowflake.ID{g.AnnouncementID}, res.Cancelled)
	assert.ErrorIs(t, <-ended, context.Canceled)

	stored, err := store.Get(ctx, g.AnnouncementID)
	require.NoError(t, err)
	assert.Equal(t, giveaway.StatusCancelled, stored.Status)
	assert.Empty(t, stored.Winners)
	_, tracked := m.Scheduler().State(g.AnnouncementID)
	assert.False(t, tracked)

	assert.ErrorIs(t, m.RetryFinalize(ctx, g.AnnouncementID), giveaway.ErrAlreadyFinalized)
	assert.Empty(t, rec.finalized())
	assert.Zero(t, rec.count(func(e giveaway.Event) bool {
		_, ok := e.(*giveaway.FinalizeFailedEvent)
		return ok
	}))
}
