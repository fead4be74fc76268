package identity

import (
	"testing"
	"time"

	"github.com/wicaksana/sapa-server/domain/entities"
)

func knownMatch(personID string) entities.FaceMatch {
	return entities.FaceMatch{PersonID: personID, Confidence: 0.9, Box: box(0, 0, 100, 100)}
}

// fakeClock lets tests drive the tracker's notion of now.
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestGreetTracker() (*GreetTracker, *fakeClock) {
	clock := &fakeClock{t: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)}
	g := NewGreetTracker(20*time.Second, 3*time.Second)
	g.now = clock.now
	return g, clock
}

func TestGreetTracker_FirstSighting(t *testing.T) {
	g, _ := newTestGreetTracker()
	g.Update([]entities.FaceMatch{knownMatch("alice")})

	state, ok := g.State("alice")
	if !ok {
		t.Fatal("expected state for alice")
	}
	if state.FramesPresent != 1 {
		t.Errorf("FramesPresent = %d, want 1", state.FramesPresent)
	}
	if state.Greeted {
		t.Error("fresh sighting should not be greeted")
	}
}

func TestGreetTracker_RecentSightingsIncrement(t *testing.T) {
	g, clock := newTestGreetTracker()
	for i := 0; i < 5; i++ {
		g.Update([]entities.FaceMatch{knownMatch("alice")})
		clock.advance(time.Second)
	}

	state, _ := g.State("alice")
	if state.FramesPresent != 5 {
		t.Errorf("FramesPresent = %d, want 5", state.FramesPresent)
	}
}

func TestGreetTracker_LongAbsenceResets(t *testing.T) {
	g, clock := newTestGreetTracker()
	for i := 0; i < 12; i++ {
		g.Update([]entities.FaceMatch{knownMatch("alice")})
		clock.advance(time.Second)
	}
	g.MarkGreeted("alice")

	clock.advance(25 * time.Second)
	g.Update([]entities.FaceMatch{knownMatch("alice")})

	state, _ := g.State("alice")
	if state.FramesPresent != 1 {
		t.Errorf("FramesPresent after long absence = %d, want 1", state.FramesPresent)
	}
	if state.Greeted {
		t.Error("long absence should clear greeted: it is a fresh encounter")
	}
}

func TestGreetTracker_MidGapResetsCountKeepsGreeted(t *testing.T) {
	g, clock := newTestGreetTracker()
	for i := 0; i < 12; i++ {
		g.Update([]entities.FaceMatch{knownMatch("alice")})
		clock.advance(time.Second)
	}
	g.MarkGreeted("alice")

	// Between the recency and absence windows.
	clock.advance(10 * time.Second)
	g.Update([]entities.FaceMatch{knownMatch("alice")})

	state, _ := g.State("alice")
	if state.FramesPresent != 1 {
		t.Errorf("FramesPresent after mid gap = %d, want 1", state.FramesPresent)
	}
	if !state.Greeted {
		t.Error("mid gap must retain greeted")
	}
}

func TestGreetTracker_Eligibility(t *testing.T) {
	g, clock := newTestGreetTracker()
	for i := 0; i < 15; i++ {
		g.Update([]entities.FaceMatch{knownMatch("alice")})
		clock.advance(time.Second)
	}

	eligible := g.EligibleForGreeting()
	if len(eligible) != 1 || eligible[0] != "alice" {
		t.Fatalf("eligible = %v, want [alice]", eligible)
	}

	g.MarkGreeted("alice")
	if eligible := g.EligibleForGreeting(); len(eligible) != 0 {
		t.Errorf("eligible after MarkGreeted = %v, want empty", eligible)
	}
}

func TestGreetTracker_StaleSightingNotEligible(t *testing.T) {
	g, clock := newTestGreetTracker()
	for i := 0; i < 15; i++ {
		g.Update([]entities.FaceMatch{knownMatch("alice")})
		clock.advance(time.Second)
	}

	// Not seen for longer than the recency window.
	clock.advance(5 * time.Second)
	if eligible := g.EligibleForGreeting(); len(eligible) != 0 {
		t.Errorf("eligible for stale sighting = %v, want empty", eligible)
	}
}

func TestGreetTracker_AntiNagSuppression(t *testing.T) {
	g, clock := newTestGreetTracker()
	for i := 0; i < 35; i++ {
		g.Update([]entities.FaceMatch{knownMatch("alice")})
		clock.advance(time.Second)
	}

	state, _ := g.State("alice")
	if !state.Greeted {
		t.Error("lingering past the suppression threshold should mark greeted")
	}
	if eligible := g.EligibleForGreeting(); len(eligible) != 0 {
		t.Errorf("eligible after lingering = %v, want empty", eligible)
	}
}

func TestGreetTracker_FramesNeverDecreaseWithoutReset(t *testing.T) {
	g, clock := newTestGreetTracker()
	last := 0
	for i := 0; i < 20; i++ {
		g.Update([]entities.FaceMatch{knownMatch("alice")})
		state, _ := g.State("alice")
		if state.FramesPresent < last {
			t.Fatalf("FramesPresent decreased from %d to %d without a reset", last, state.FramesPresent)
		}
		last = state.FramesPresent
		clock.advance(time.Second)
	}
}

func TestGreetTracker_UnknownNeverTracked(t *testing.T) {
	g, _ := newTestGreetTracker()
	g.Update([]entities.FaceMatch{knownMatch("unknown")})
	if _, ok := g.State("unknown"); ok {
		t.Error("unknown faces must not get presence state")
	}
}

func TestGreetTracker_EmptyFrameResetAfterLongAbsence(t *testing.T) {
	g, clock := newTestGreetTracker()
	for i := 0; i < 12; i++ {
		g.Update([]entities.FaceMatch{knownMatch("alice")})
		clock.advance(time.Second)
	}
	g.MarkGreeted("alice")

	clock.advance(31 * time.Second)
	g.Update(nil)

	state, _ := g.State("alice")
	if state.FramesPresent != 0 || state.Greeted {
		t.Errorf("state after empty-frame reset = %+v, want zeroed", state)
	}
}
