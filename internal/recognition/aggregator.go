package recognition

import (
	"sort"
	"sync"

	"github.com/artlens/artlens/internal/catalog"
)

// Engine runs the per-frame half of the pipeline: detection gating,
// proximity filtering and similarity matching. It holds no cross-frame
// state; that belongs to the Stabilizer.
type Engine struct {
	mu       sync.RWMutex
	snapshot *catalog.Snapshot

	matcher Matcher
	source  DetectionSource
	cfg     Config
}

func NewEngine(snapshot *catalog.Snapshot, matcher Matcher, cfg Config) *Engine {
	if matcher == nil {
		matcher = LinearMatcher{}
	}
	if snapshot == nil {
		snapshot = &catalog.Snapshot{}
	}
	return &Engine{
		snapshot: snapshot,
		matcher:  matcher,
		cfg:      cfg.withDefaults(),
	}
}

func (e *Engine) Config() Config {
	return e.cfg
}

// SetSnapshot swaps the catalog view, e.g. after an admin upsert.
func (e *Engine) SetSnapshot(snap *catalog.Snapshot) {
	e.mu.Lock()
	e.snapshot = snap
	e.mu.Unlock()
}

func (e *Engine) Snapshot() *catalog.Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.snapshot
}

// SetDetectionSource installs a synthetic fallback source consulted only
// when the detector reports nothing. Nil (the default) disables it.
func (e *Engine) SetDetectionSource(src DetectionSource) {
	e.source = src
}

// ProcessFrame gates the detections, matches each survivor against the
// proximity-filtered catalog, and picks the frame's single best qualifying
// match. It never mutates stabilizer state and performs no I/O.
func (e *Engine) ProcessFrame(detections []Detection, loc *Location) FrameResult {
	result := FrameResult{RawDetections: len(detections)}

	if len(detections) == 0 && e.source != nil {
		detections = e.source.Detections()
	}

	kept := make([]Detection, 0, len(detections))
	for _, d := range detections {
		if d.Score >= e.cfg.MinBoxScore {
			kept = append(kept, d)
		}
	}
	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].Score > kept[j].Score
	})
	if len(kept) > e.cfg.MaxBoxesPerFrame {
		kept = kept[:e.cfg.MaxBoxesPerFrame]
	}

	entries := e.Snapshot().Entries
	for _, d := range kept {
		candidates := FilterByProximity(entries, loc, e.cfg.RadiusKm)
		m, ok := e.matcher.BestMatch(d.Embedding, candidates)
		if !ok || m.Confidence < e.cfg.CosineThreshold {
			continue
		}
		m.Box = d.Box
		result.AllMatches = append(result.AllMatches, m)
	}

	for i := range result.AllMatches {
		if result.BestOfFrame == nil || result.AllMatches[i].Confidence > result.BestOfFrame.Confidence {
			result.BestOfFrame = &result.AllMatches[i]
		}
	}

	return result
}
