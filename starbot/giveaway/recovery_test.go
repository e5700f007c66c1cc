package giveaway_test

import (
	"context"
	"testing"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/nickstarform/starbot/starbot/giveaway"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func storedGiveaway(id snowflake.ID, status giveaway.Status, endsAt time.Time) *giveaway.Giveaway {
	return &giveaway.Giveaway{
		AnnouncementID: id,
		GuildID:        1,
		ChannelID:      500,
		HostID:         600,
		Description:    "Nitro",
		WinnerCount:    1,
		CreatedAt:      endsAt.Add(-time.Hour),
		EndsAt:         endsAt,
		Status:         status,
	}
}

func TestManager_RecoverAndSweep(t *testing.T) {
	store := newMemStore()
	participants := newMemParticipants()
	m, rec := newTestManager(t, store, participants, giveaway.DefaultConfig())

	now := time.Now()
	store.put(storedGiveaway(100, giveaway.StatusActive, now.Add(-time.Minute)))
	store.put(storedGiveaway(101, giveaway.StatusActive, now.Add(time.Hour)))
	store.put(storedGiveaway(102, giveaway.StatusEnded, now.Add(-time.Hour)))
	participants.set(100, 7, 8)

	recovered, err := m.Recover(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, recovered)

	ev := waitEvent[*giveaway.FinalizedEvent](t, rec, 2*time.Second)
	assert.Equal(t, snowflake.ID(100), ev.Giveaway.AnnouncementID)

	state, tracked := m.Scheduler().State(101)
	require.True(t, tracked)
	assert.Equal(t, giveaway.TimerScheduled, state)
	_, tracked = m.Scheduler().State(102)
	assert.False(t, tracked)

	rearmed, err := m.Sweep(context.Background())
	require.NoError(t, err)
	assert.Zero(t, rearmed)

	// A record the scheduler never saw is picked up by the next sweep.
	store.put(storedGiveaway(103, giveaway.StatusActive, now.Add(time.Hour)))
	rearmed, err = m.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, rearmed)

	state, tracked = m.Scheduler().State(103)
	require.True(t, tracked)
	assert.Equal(t, giveaway.TimerScheduled, state)
}

func TestManager_RunSweeperStopsOnCancel(t *testing.T) {
	m, _ := newTestManager(t, newMemStore(), newMemParticipants(), giveaway.DefaultConfig())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.RunSweeper(ctx, 10*time.Millisecond)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop after cancel")
	}
}
