package giveaway

import (
	"math/rand/v2"
	"slices"
	"sync"

	"github.com/disgoorg/snowflake/v2"
)

// Selector draws winners from a participant set. It is safe for concurrent use.
type Selector struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewSelector returns a Selector drawing from src. A nil src uses a randomly
// seeded PCG source.
func NewSelector(src rand.Source) *Selector {
	if src == nil {
		src = rand.NewPCG(rand.Uint64(), rand.Uint64())
	}
	return &Selector{rng: rand.New(src)}
}

// Select picks requested winners out of participants.
//
// Duplicates are ignored. An empty set fails with ErrNoEligibleParticipants.
// When there are no more participants than requested every participant wins,
// sorted by id. Otherwise winners are sampled uniformly without replacement
// and returned in draw order.
func (s *Selector) Select(participants []snowflake.ID, requested int) ([]snowflake.ID, error) {
	if requested < 1 {
		return nil, validationErrorf("winner count must be at least 1, got %d", requested)
	}

	pool := uniqueSorted(participants)
	if len(pool) == 0 {
		return nil, ErrNoEligibleParticipants
	}
	if len(pool) <= requested {
		return pool, nil
	}

	// Sorting first makes the draw independent of the order the source
	// returned entries in.
	s.mu.Lock()
	for i := 0; i < requested; i++ {
		j := i + s.rng.IntN(len(pool)-i)
		pool[i], pool[j] = pool[j], pool[i]
	}
	s.mu.Unlock()

	return slices.Clone(pool[:requested]), nil
}

func uniqueSorted(ids []snowflake.ID) []snowflake.ID {
	out := make([]snowflake.ID, 0, len(ids))
	for _, id := range ids {
		if id != 0 {
			out = append(out, id)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}
