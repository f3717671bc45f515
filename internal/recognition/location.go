package recognition

import "sync/atomic"

// LocationSlot publishes the latest geolocation fix to the frame pipeline.
// Last writer wins and readers never block; a slightly stale fix only costs
// recall, never correctness.
type LocationSlot struct {
	v atomic.Pointer[Location]
}

func (s *LocationSlot) Publish(loc Location) {
	s.v.Store(&loc)
}

// Latest returns the most recent fix, or nil when none has been published.
func (s *LocationSlot) Latest() *Location {
	return s.v.Load()
}

func (s *LocationSlot) Clear() {
	s.v.Store(nil)
}
