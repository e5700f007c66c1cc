package config

import "time"

// UI and Display Constants
const (
	// Pagination
	GiveawaysPerPage = 5
	MaxAutocomplete  = 25

	// Giveaway embed colors
	GiveawayActiveColor    = 0x5865F2
	GiveawayEndedColor     = 0x2B2D31
	GiveawayCancelledColor = 0x99AAB5

	// Status indicators
	ActiveGiveawayStatus    = "🟢 Running"
	EndedGiveawayStatus     = "🏁 Ended"
	CancelledGiveawayStatus = "⛔ Cancelled"
)

// Timeouts
const (
	CommandExecutionTimeout = 10 * time.Second
	SlowCommandThreshold    = 2 * time.Second
	AnnounceTimeout         = 15 * time.Second
	PresenceTimeout         = 5 * time.Second
	ShutdownTimeout         = 10 * time.Second

	// How long /giveaway end waits for the draw before replying.
	FinalizeWaitTimeout = 5 * time.Second
)
