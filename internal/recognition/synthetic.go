package recognition

// DetectionSource supplies detections for frames where the detector reported
// nothing. Production engines leave it unset; the frame pipeline then pays
// nothing for it.
type DetectionSource interface {
	Detections() []Detection
}

// CenterRegionSource fabricates a single full-confidence detection covering
// the center of the frame, so a catalog can be probed without a working
// detector. Embed supplies the embedding for the synthetic region.
type CenterRegionSource struct {
	FrameWidth  int
	FrameHeight int
	Fraction    float64
	Embed       func(Box) []float32
}

func (s *CenterRegionSource) Detections() []Detection {
	if s.Embed == nil || s.FrameWidth <= 0 || s.FrameHeight <= 0 {
		return nil
	}

	frac := s.Fraction
	if frac <= 0 || frac > 1 {
		frac = 0.6
	}

	short := s.FrameWidth
	if s.FrameHeight < short {
		short = s.FrameHeight
	}
	side := int(float64(short) * frac)
	if side < 1 {
		side = 1
	}

	box := Box{
		X:      (s.FrameWidth - side) / 2,
		Y:      (s.FrameHeight - side) / 2,
		Width:  side,
		Height: side,
	}

	emb := s.Embed(box)
	if len(emb) == 0 {
		return nil
	}

	return []Detection{{Box: box, Score: 1, Embedding: emb, Label: "synthetic"}}
}
