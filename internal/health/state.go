package health

import (
	"log"
	"sync/atomic"
)

// State is the process-wide liveness flag. It starts active and is flipped
// false permanently by the first persistence-class failure; nothing flips it
// back, recovery requires a restart. A single atomic bool is all the
// synchronization the flag needs: a momentarily stale read only delays a
// health probe or an ingest short-circuit.
type State struct {
	degraded atomic.Bool
}

func NewState() *State {
	return &State{}
}

// Active reports whether ingestion is still allowed.
func (s *State) Active() bool {
	return !s.degraded.Load()
}

// MarkDegraded flips the flag false. The first call logs the reason;
// repeated calls are harmless.
func (s *State) MarkDegraded(reason string) {
	if s.degraded.CompareAndSwap(false, true) {
		log.Printf("liveness degraded: %s", reason)
	}
}
