package stats

// Scheduler decides when computed statistics are emitted downstream. It
// counts publishable updates and fires every sendEvery of them, except that
// the very first publication may be scheduled earlier (sendFirstAt) so a
// freshly booted system reports an initial reading without waiting a full
// cadence.
//
// sendEvery == 0 disables periodic publication entirely; statistics are then
// only emitted through an explicit force-publish action.
type Scheduler struct {
	sendEvery   int
	sendFirstAt int

	sinceLast int
	seenFirst bool
}

// NewScheduler builds a scheduler; sendFirstAt must not exceed sendEvery
// (validated by configuration).
func NewScheduler(sendEvery, sendFirstAt int) *Scheduler {
	if sendFirstAt <= 0 || sendFirstAt > sendEvery {
		sendFirstAt = sendEvery
	}
	return &Scheduler{sendEvery: sendEvery, sendFirstAt: sendFirstAt}
}

// Tick records one publishable update and reports whether statistics should
// be published now. The counter resets on every firing.
func (s *Scheduler) Tick() bool {
	if s.sendEvery == 0 {
		return false
	}
	s.sinceLast++

	fire := s.sinceLast >= s.sendEvery
	if !s.seenFirst && s.sinceLast >= s.sendFirstAt {
		fire = true
	}
	if fire {
		s.sinceLast = 0
		s.seenFirst = true
	}
	return fire
}

// Reset returns the scheduler to its initial state, including the early
// first-publication behavior.
func (s *Scheduler) Reset() {
	s.sinceLast = 0
	s.seenFirst = false
}
