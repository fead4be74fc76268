package identity

import (
	"math"
	"testing"

	"github.com/wicaksana/sapa-server/domain/entities"
)

func box(x, y, w, h float64) entities.BoundingBox {
	return entities.BoundingBox{X: x, Y: y, Width: w, Height: h}
}

func TestIoU_IdenticalBoxes(t *testing.T) {
	b := box(10, 20, 100, 50)
	if got := IoU(b, b); math.Abs(got-1.0) > 1e-9 {
		t.Errorf("IoU of identical boxes = %f, want 1.0", got)
	}
}

func TestIoU_DisjointBoxes(t *testing.T) {
	a := box(0, 0, 10, 10)
	b := box(100, 100, 10, 10)
	if got := IoU(a, b); got != 0 {
		t.Errorf("IoU of disjoint boxes = %f, want 0", got)
	}
}

func TestIoU_PartialOverlap(t *testing.T) {
	a := box(0, 0, 10, 10)
	b := box(5, 0, 10, 10)
	// Intersection 50, union 150.
	want := 50.0 / 150.0
	if got := IoU(a, b); math.Abs(got-want) > 1e-9 {
		t.Errorf("IoU = %f, want %f", got, want)
	}
}

func TestIoU_DegenerateBox(t *testing.T) {
	a := box(0, 0, -5, 10)
	b := box(0, 0, 10, 10)
	if got := IoU(a, b); got != 0 {
		t.Errorf("IoU with negative-width box = %f, want 0", got)
	}

	zero := box(0, 0, 0, 0)
	if got := IoU(zero, zero); got != 0 {
		t.Errorf("IoU of two zero-area boxes = %f, want 0", got)
	}
}

func TestTracker_CreatesAndUpdatesTracks(t *testing.T) {
	tr := NewTracker(0.45, 20)

	tracks := tr.Update([]entities.FaceMatch{
		{PersonID: "alice", Confidence: 0.9, Box: box(0, 0, 100, 100)},
	})
	if len(tracks) != 1 {
		t.Fatalf("expected 1 track, got %d", len(tracks))
	}
	if tracks[0].PersonID != "alice" {
		t.Errorf("track person = %s, want alice", tracks[0].PersonID)
	}
	if tracks[0].FramesMissed != 0 {
		t.Errorf("fresh track FramesMissed = %d, want 0", tracks[0].FramesMissed)
	}

	// Overlapping box for the same person updates in place.
	tracks = tr.Update([]entities.FaceMatch{
		{PersonID: "alice", Confidence: 0.8, Box: box(5, 5, 100, 100)},
	})
	if len(tracks) != 1 {
		t.Fatalf("expected 1 track after overlap update, got %d", len(tracks))
	}
	if tracks[0].ID != 0 {
		t.Errorf("track ID = %d, want 0 (updated in place)", tracks[0].ID)
	}
	if tracks[0].Confidence != 0.8 {
		t.Errorf("track confidence = %f, want 0.8", tracks[0].Confidence)
	}
}

func TestTracker_LowOverlapCreatesNewTrack(t *testing.T) {
	tr := NewTracker(0.45, 20)
	tr.Update([]entities.FaceMatch{
		{PersonID: "alice", Confidence: 0.9, Box: box(0, 0, 100, 100)},
	})
	tracks := tr.Update([]entities.FaceMatch{
		{PersonID: "alice", Confidence: 0.9, Box: box(500, 500, 100, 100)},
	})
	if len(tracks) != 2 {
		t.Fatalf("expected 2 tracks after a spatial jump, got %d", len(tracks))
	}
}

func TestTracker_UnknownMatchesIgnored(t *testing.T) {
	tr := NewTracker(0.45, 20)
	tracks := tr.Update([]entities.FaceMatch{
		{PersonID: "unknown", Box: box(0, 0, 100, 100)},
		{PersonID: "Unknown", Box: box(200, 0, 100, 100)},
	})
	if len(tracks) != 0 {
		t.Errorf("unknown matches created %d tracks, want 0", len(tracks))
	}
}

func TestTracker_EvictionAfterCeiling(t *testing.T) {
	tr := NewTracker(0.45, 30)
	tr.Update([]entities.FaceMatch{
		{PersonID: "alice", Confidence: 0.9, Box: box(0, 0, 100, 100)},
	})

	var tracks []entities.Track
	for i := 0; i < 31; i++ {
		tracks = tr.Update(nil)
	}
	if len(tracks) != 0 {
		t.Errorf("track survived %d empty updates with ceiling 30, want eviction", 31)
	}
}

func TestTracker_SurvivesBelowCeiling(t *testing.T) {
	tr := NewTracker(0.45, 30)
	tr.Update([]entities.FaceMatch{
		{PersonID: "alice", Confidence: 0.9, Box: box(0, 0, 100, 100)},
	})

	var tracks []entities.Track
	for i := 0; i < 30; i++ {
		tracks = tr.Update(nil)
	}
	if len(tracks) != 1 {
		t.Errorf("track evicted after 30 empty updates with ceiling 30, want survival")
	}
}

func TestTracker_PreviousTracksDecayConfidence(t *testing.T) {
	tr := NewTracker(0.45, 20)
	tr.Update([]entities.FaceMatch{
		{PersonID: "alice", Confidence: 1.0, Box: box(0, 0, 100, 100)},
	})

	prev := tr.PreviousTracks()
	if len(prev) != 1 {
		t.Fatalf("expected 1 previous track, got %d", len(prev))
	}
	if math.Abs(prev[0].Confidence-0.95) > 1e-9 {
		t.Errorf("previous track confidence = %f, want 0.95", prev[0].Confidence)
	}

	// The decay is presentation only; the live set keeps full confidence.
	tracks := tr.Update([]entities.FaceMatch{
		{PersonID: "alice", Confidence: 1.0, Box: box(0, 0, 100, 100)},
	})
	if tracks[0].Confidence != 1.0 {
		t.Errorf("live track confidence = %f, want 1.0", tracks[0].Confidence)
	}
}

func TestReidentifyUnknown(t *testing.T) {
	previous := []entities.Track{
		{ID: 0, PersonID: "alice", Confidence: 0.9, Box: box(0, 0, 100, 100)},
	}
	matches := []entities.FaceMatch{
		{PersonID: "unknown", Box: box(2, 2, 100, 100)},
		{PersonID: "bob", Confidence: 0.8, Box: box(500, 500, 100, 100)},
	}

	out := ReidentifyUnknown(matches, previous, 0.45)
	if out[0].PersonID != "alice" {
		t.Errorf("unknown match resolved to %q, want alice", out[0].PersonID)
	}
	if out[1].PersonID != "bob" {
		t.Errorf("known match changed to %q, want bob untouched", out[1].PersonID)
	}

	// Input slice must not be mutated.
	if matches[0].PersonID != "unknown" {
		t.Error("ReidentifyUnknown mutated its input")
	}
}

func TestReidentifyUnknown_NoOverlap(t *testing.T) {
	previous := []entities.Track{
		{ID: 0, PersonID: "alice", Confidence: 0.9, Box: box(0, 0, 100, 100)},
	}
	matches := []entities.FaceMatch{
		{PersonID: "unknown", Box: box(900, 900, 50, 50)},
	}
	out := ReidentifyUnknown(matches, previous, 0.45)
	if out[0].PersonID != "unknown" {
		t.Errorf("non-overlapping unknown resolved to %q, want unknown", out[0].PersonID)
	}
}
