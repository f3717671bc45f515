package recognition

import (
	"testing"
	"time"

	"github.com/artlens/artlens/internal/catalog"
)

func matchFor(id string, confidence float64) Match {
	return Match{
		Entry:      catalog.Entry{ID: id, DisplayName: id, Embedding: []float32{1, 0}},
		Confidence: confidence,
		Box:        Box{Width: 10, Height: 10},
	}
}

func frameWith(m Match) FrameResult {
	return FrameResult{AllMatches: []Match{m}, BestOfFrame: &m, RawDetections: 1}
}

func emptyFrame() FrameResult {
	return FrameResult{}
}

func TestStabilizer_LiveFrame(t *testing.T) {
	s := NewStabilizer(Config{})
	t0 := time.UnixMilli(0)

	out := s.Tick(t0, frameWith(matchFor("david", 0.9)))

	if out.State != StateLive {
		t.Errorf("expected live state, got %v", out.State)
	}
	if out.ActiveMatch == nil || out.ActiveMatch.Entry.ID != "david" {
		t.Errorf("expected active match david, got %+v", out.ActiveMatch)
	}
	if out.NewlyRecognized == nil {
		t.Error("first sighting should fire the recognition event")
	}
}

func TestStabilizer_Hysteresis(t *testing.T) {
	// COSINE_THRESHOLD=0.75, HYSTERESIS_DROP=0.04, STICKY_MS=180: a 0.72
	// match set at t=0 is held at 150ms (0.72 >= 0.71) but gone at 200ms.
	s := NewStabilizer(Config{})
	t0 := time.UnixMilli(0)

	s.Tick(t0, frameWith(matchFor("david", 0.72)))

	out := s.Tick(t0.Add(150*time.Millisecond), emptyFrame())
	if out.State != StateHeld {
		t.Fatalf("expected held at 150ms, got %v", out.State)
	}
	if out.ActiveMatch == nil || out.ActiveMatch.Confidence != 0.72 {
		t.Errorf("held output must re-emit the sticky match unchanged, got %+v", out.ActiveMatch)
	}

	out = s.Tick(t0.Add(200*time.Millisecond), emptyFrame())
	if out.State != StateCleared {
		t.Errorf("expected cleared at 200ms, got %v", out.State)
	}
	if out.ActiveMatch != nil {
		t.Error("expired sticky match must not be shown")
	}
}

func TestStabilizer_HysteresisFloor(t *testing.T) {
	// 0.70 < 0.75-0.04: too weak to be held at all
	s := NewStabilizer(Config{})
	t0 := time.UnixMilli(0)

	s.Tick(t0, frameWith(matchFor("david", 0.70)))

	out := s.Tick(t0.Add(50*time.Millisecond), emptyFrame())
	if out.State == StateHeld {
		t.Error("match below the hysteresis floor must not be held")
	}
}

func TestStabilizer_HeldMatchCannotSelfExtend(t *testing.T) {
	s := NewStabilizer(Config{})
	t0 := time.UnixMilli(0)

	s.Tick(t0, frameWith(matchFor("david", 0.9)))

	// Repeated holds inside the window do not push the expiry out
	s.Tick(t0.Add(100*time.Millisecond), emptyFrame())
	s.Tick(t0.Add(170*time.Millisecond), emptyFrame())
	out := s.Tick(t0.Add(190*time.Millisecond), emptyFrame())

	if out.ActiveMatch != nil {
		t.Error("held match survived past its original expiry")
	}
}

func TestStabilizer_EventFiresOncePerIdentity(t *testing.T) {
	s := NewStabilizer(Config{})
	t0 := time.UnixMilli(0)

	fired := 0
	for i := 0; i < 3; i++ {
		out := s.Tick(t0.Add(time.Duration(i)*30*time.Millisecond), frameWith(matchFor("david", 0.9)))
		if out.NewlyRecognized != nil {
			fired++
		}
	}
	if fired != 1 {
		t.Errorf("expected exactly one event for repeated identity, got %d", fired)
	}
}

func TestStabilizer_EventFiresOnDirectSwitch(t *testing.T) {
	s := NewStabilizer(Config{})
	t0 := time.UnixMilli(0)

	s.Tick(t0, frameWith(matchFor("david", 0.9)))
	s.Tick(t0.Add(30*time.Millisecond), frameWith(matchFor("david", 0.9)))

	out := s.Tick(t0.Add(60*time.Millisecond), frameWith(matchFor("venus", 0.85)))
	if out.NewlyRecognized == nil {
		t.Fatal("switching identities without idle must fire immediately")
	}
	if out.NewlyRecognized.Entry.ID != "venus" {
		t.Errorf("event should carry the new identity, got %s", out.NewlyRecognized.Entry.ID)
	}
}

func TestStabilizer_HoldDoesNotRefire(t *testing.T) {
	s := NewStabilizer(Config{})
	t0 := time.UnixMilli(0)

	s.Tick(t0, frameWith(matchFor("david", 0.9)))
	out := s.Tick(t0.Add(100*time.Millisecond), emptyFrame())

	if out.State != StateHeld {
		t.Fatalf("expected held, got %v", out.State)
	}
	if out.NewlyRecognized != nil {
		t.Error("holding an already announced identity must not re-fire")
	}
}

func TestStabilizer_ClearThenRematchRefires(t *testing.T) {
	s := NewStabilizer(Config{})
	t0 := time.UnixMilli(0)

	s.Tick(t0, frameWith(matchFor("david", 0.9)))
	s.Tick(t0.Add(300*time.Millisecond), emptyFrame()) // expires, clears tracker

	out := s.Tick(t0.Add(330*time.Millisecond), frameWith(matchFor("david", 0.9)))
	if out.NewlyRecognized == nil {
		t.Error("re-matching after idle must fire again")
	}
}

func TestStabilizer_Reset(t *testing.T) {
	s := NewStabilizer(Config{})
	t0 := time.UnixMilli(0)

	s.Tick(t0, frameWith(matchFor("david", 0.9)))
	s.Reset()

	// Same qualifying frame right away: tracker was cleared, so it fires
	out := s.Tick(t0.Add(30*time.Millisecond), frameWith(matchFor("david", 0.9)))
	if out.NewlyRecognized == nil {
		t.Error("reset must allow the same entry to be announced again")
	}
}

func TestStabilizer_EmptyIdentityNeverAnnounced(t *testing.T) {
	s := NewStabilizer(Config{})
	m := Match{Entry: catalog.Entry{}, Confidence: 0.9}

	out := s.Tick(time.UnixMilli(0), frameWith(m))
	if out.NewlyRecognized != nil {
		t.Error("a match with no identity key must not fire events")
	}
	if out.State != StateLive {
		t.Errorf("it is still shown live, got %v", out.State)
	}
}

func TestStabilizer_NoPriorState(t *testing.T) {
	s := NewStabilizer(Config{})

	out := s.Tick(time.UnixMilli(0), emptyFrame())
	if out.State != StateIdle {
		t.Errorf("expected idle with no prior state, got %v", out.State)
	}
	if out.ActiveMatch != nil || out.NewlyRecognized != nil || len(out.AllVisibleMatches) != 0 {
		t.Errorf("expected fully empty output, got %+v", out)
	}
}

func TestStabilizer_DisplayNameFallbackKey(t *testing.T) {
	s := NewStabilizer(Config{})
	t0 := time.UnixMilli(0)

	m := Match{Entry: catalog.Entry{DisplayName: "Unknown Fresco"}, Confidence: 0.9}
	out := s.Tick(t0, frameWith(m))
	if out.NewlyRecognized == nil {
		t.Fatal("display name should serve as identity key when id is empty")
	}

	out = s.Tick(t0.Add(30*time.Millisecond), frameWith(m))
	if out.NewlyRecognized != nil {
		t.Error("same display-name identity must not re-fire")
	}
}
