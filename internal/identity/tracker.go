package identity

import (
	"math"

	"github.com/wicaksana/sapa-server/domain/entities"
)

const (
	defaultIoUThreshold = 0.45
	defaultMaxMissed    = 20

	// previousTracks discounts confidence by this factor per call to
	// reflect that the snapshot is one frame stale.
	staleConfidenceDecay = 0.95
)

// Tracker maintains short-lived per-session face tracks, matched
// frame-to-frame by box overlap. It is owned by exactly one session and is
// not safe for concurrent use; the video channel is its only writer.
type Tracker struct {
	iouThreshold float64
	maxMissed    int
	nextID       int
	tracks       []*entities.Track // creation order, for stable tie-breaks
}

// NewTracker creates a tracker. Zero arguments select the defaults
// (IoU threshold 0.45, eviction after 20 missed frames).
func NewTracker(iouThreshold float64, maxMissed int) *Tracker {
	if iouThreshold <= 0 {
		iouThreshold = defaultIoUThreshold
	}
	if maxMissed <= 0 {
		maxMissed = defaultMaxMissed
	}
	return &Tracker{
		iouThreshold: iouThreshold,
		maxMissed:    maxMissed,
	}
}

// Update consumes one frame's matches and returns the updated live track
// set. Every track's miss counter is incremented first and overdue tracks
// are evicted; then each known match either refreshes the overlapping
// same-person track or starts a new one. Unknown matches never create or
// update tracks.
func (t *Tracker) Update(matches []entities.FaceMatch) []entities.Track {
	kept := t.tracks[:0]
	for _, tr := range t.tracks {
		tr.FramesMissed++
		if tr.FramesMissed <= t.maxMissed {
			kept = append(kept, tr)
		}
	}
	t.tracks = kept

	for _, m := range matches {
		if !m.Known() {
			continue
		}

		var best *entities.Track
		bestIoU := 0.0
		for _, tr := range t.tracks {
			if tr.PersonID != m.PersonID {
				continue
			}
			iou := IoU(tr.Box, m.Box)
			if iou >= t.iouThreshold && iou > bestIoU {
				bestIoU = iou
				best = tr
			}
		}

		if best != nil {
			best.Box = m.Box
			best.Confidence = m.Confidence
			best.FramesMissed = 0
		} else {
			t.tracks = append(t.tracks, &entities.Track{
				ID:         t.nextID,
				PersonID:   m.PersonID,
				Box:        m.Box,
				Confidence: m.Confidence,
			})
			t.nextID++
		}
	}

	return t.snapshot(1.0)
}

// PreviousTracks returns the track set as of the prior Update call, each
// confidence discounted for staleness. The fusion engine uses these to
// re-identify faces the recognizer missed this frame.
func (t *Tracker) PreviousTracks() []entities.Track {
	return t.snapshot(staleConfidenceDecay)
}

func (t *Tracker) snapshot(confidenceFactor float64) []entities.Track {
	out := make([]entities.Track, 0, len(t.tracks))
	for _, tr := range t.tracks {
		c := *tr
		c.Confidence *= confidenceFactor
		out = append(out, c)
	}
	return out
}

// IoU computes Intersection-over-Union for two axis-aligned boxes in
// (x, y, w, h) form. A zero-area union yields 0.
func IoU(a, b entities.BoundingBox) float64 {
	ax2, ay2 := a.X+a.Width, a.Y+a.Height
	bx2, by2 := b.X+b.Width, b.Y+b.Height

	ix := math.Max(0, math.Min(ax2, bx2)-math.Max(a.X, b.X))
	iy := math.Max(0, math.Min(ay2, by2)-math.Max(a.Y, b.Y))
	inter := ix * iy

	union := a.Area() + b.Area() - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

// ReidentifyUnknown substitutes identities into unknown matches that
// overlap a track from the previous frame, recovering faces the recognizer
// briefly lost. Known matches pass through untouched.
func ReidentifyUnknown(matches []entities.FaceMatch, previous []entities.Track, iouThreshold float64) []entities.FaceMatch {
	if iouThreshold <= 0 {
		iouThreshold = defaultIoUThreshold
	}
	out := make([]entities.FaceMatch, len(matches))
	copy(out, matches)

	for i, m := range out {
		if m.Known() {
			continue
		}
		var best *entities.Track
		bestIoU := 0.0
		for j := range previous {
			tr := &previous[j]
			iou := IoU(tr.Box, m.Box)
			if iou >= iouThreshold && iou > bestIoU {
				bestIoU = iou
				best = tr
			}
		}
		if best != nil {
			out[i].PersonID = best.PersonID
			out[i].Confidence = best.Confidence
		}
	}
	return out
}
