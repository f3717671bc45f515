package recognition

import (
	"sync"
	"time"
)

type stickyMatch struct {
	match     Match
	expiresAt time.Time
}

// Stabilizer smooths per-frame results so the displayed identity does not
// flicker. A qualifying frame sets a sticky match; frames without one keep
// showing it until the sticky window expires, provided its confidence clears
// the relaxed hysteresis floor. The stabilizer owns the sticky match and the
// recognized-key tracker exclusively; Tick and Reset hold the lock for the
// full read-decide-write sequence.
type Stabilizer struct {
	mu            sync.Mutex
	cfg           Config
	sticky        *stickyMatch
	recognizedKey string
}

func NewStabilizer(cfg Config) *Stabilizer {
	return &Stabilizer{cfg: cfg.withDefaults()}
}

// Tick consumes one frame's aggregate at time now and returns the stable
// output. It never fails: a frame that produced nothing usable simply drives
// the machine toward idle.
func (s *Stabilizer) Tick(now time.Time, frame FrameResult) Output {
	s.mu.Lock()
	defer s.mu.Unlock()

	if frame.BestOfFrame != nil {
		m := *frame.BestOfFrame
		s.sticky = &stickyMatch{match: m, expiresAt: now.Add(s.cfg.StickyWindow)}
		return Output{
			State:             StateLive,
			ActiveMatch:       &m,
			AllVisibleMatches: frame.AllMatches,
			NewlyRecognized:   s.trackIdentity(m),
		}
	}

	if s.sticky != nil && now.Before(s.sticky.expiresAt) &&
		s.sticky.match.Confidence >= s.cfg.CosineThreshold-s.cfg.HysteresisDrop {
		// Re-emit without refreshing expiry or confidence: a held match
		// survives only until its original deadline.
		m := s.sticky.match
		return Output{
			State:             StateHeld,
			ActiveMatch:       &m,
			AllVisibleMatches: frame.AllMatches,
			NewlyRecognized:   s.trackIdentity(m),
		}
	}

	state := StateIdle
	if s.sticky != nil || s.recognizedKey != "" {
		state = StateCleared
	}
	s.sticky = nil
	s.recognizedKey = ""
	return Output{State: state, AllVisibleMatches: frame.AllMatches}
}

// trackIdentity fires the one-shot recognition event when the active match's
// identity key differs from the last announced one. Re-matching the same
// identity, or holding it under hysteresis, stays silent; switching straight
// from one identity to another fires for the new one immediately.
func (s *Stabilizer) trackIdentity(m Match) *Recognition {
	key := m.Entry.Key()
	if key == "" || key == s.recognizedKey {
		return nil
	}
	s.recognizedKey = key
	return &Recognition{Entry: m.Entry, Box: m.Box}
}

// Reset clears the sticky match and the recognized-key tracker immediately,
// independent of the expiry timer. Used when a detail view is dismissed and
// scanning resumes.
func (s *Stabilizer) Reset() {
	s.mu.Lock()
	s.sticky = nil
	s.recognizedKey = ""
	s.mu.Unlock()
}
