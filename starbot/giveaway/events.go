package giveaway

import (
	"log/slog"

	"github.com/disgoorg/snowflake/v2"
)

// Event is emitted by the Manager after a lifecycle change has been persisted.
type Event interface {
	GiveawayID() snowflake.ID
}

// FinalizedEvent is emitted once per giveaway when it ends. Winners is empty
// when nobody entered.
type FinalizedEvent struct {
	Giveaway     *Giveaway
	Winners      []snowflake.ID
	Participants int
}

func (e *FinalizedEvent) GiveawayID() snowflake.ID { return e.Giveaway.AnnouncementID }

type CancelReason string

const (
	CancelReasonManual   CancelReason = "manual"
	CancelReasonTeardown CancelReason = "teardown"
)

type CancelledEvent struct {
	Giveaway *Giveaway
	Reason   CancelReason
}

func (e *CancelledEvent) GiveawayID() snowflake.ID { return e.Giveaway.AnnouncementID }

type RerolledEvent struct {
	Giveaway *Giveaway
	Previous []snowflake.ID
	Winners  []snowflake.ID
}

func (e *RerolledEvent) GiveawayID() snowflake.ID { return e.Giveaway.AnnouncementID }

// FinalizeFailedEvent reports a timer-driven finalize that gave up after its
// retries. The record stays ACTIVE and can be finalized again with
// Manager.RetryFinalize.
type FinalizeFailedEvent struct {
	AnnouncementID snowflake.ID
	Attempts       int
	Err            error
}

func (e *FinalizeFailedEvent) GiveawayID() snowflake.ID { return e.AnnouncementID }

type EventListener interface {
	OnEvent(e Event)
}

// ListenerFunc adapts a function to an EventListener.
type ListenerFunc func(e Event)

func (f ListenerFunc) OnEvent(e Event) { f(e) }

func (m *Manager) AddListener(l EventListener) {
	m.listenersMu.Lock()
	defer m.listenersMu.Unlock()
	m.listeners = append(m.listeners, l)
}

func (m *Manager) emit(e Event) {
	m.listenersMu.RLock()
	listeners := make([]EventListener, len(m.listeners))
	copy(listeners, m.listeners)
	m.listenersMu.RUnlock()

	for _, l := range listeners {
		func() {
			defer func() {
				if r := recover(); r != nil {
					slog.Error("Giveaway event listener panic",
						slog.String("type", "giveaway"),
						slog.String("announcement_id", e.GiveawayID().String()),
						slog.Any("panic", r))
				}
			}()
			l.OnEvent(e)
		}()
	}
}
