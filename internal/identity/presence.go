package identity

import (
	"time"

	"github.com/wicaksana/sapa-server/domain/entities"
)

const (
	defaultLongAbsence  = 20 * time.Second
	defaultShortRecency = 3 * time.Second

	// Eligibility window in frames: long enough to be confident it is
	// really them, short enough that we have not been staring at them.
	greetMinFrames = 10
	greetMaxFrames = 30

	// Anyone lingering past this many frames without an acknowledgment is
	// marked greeted so we stop suggesting it.
	greetSuppressFrames = 30

	// State older than this is reset wholesale when the frame is empty.
	emptyFrameResetAfter = 30 * time.Second
)

// GreetTracker is the per-session dwell-time state machine deciding when a
// recognized face has been seen long enough, and not yet greeted, to
// trigger a greeting. Single-writer per session, like Tracker.
type GreetTracker struct {
	states       map[string]*entities.PresenceState
	longAbsence  time.Duration
	shortRecency time.Duration

	now func() time.Time
}

// NewGreetTracker creates a greet tracker with the given windows. Zero
// durations select the defaults (20s absence, 3s recency).
func NewGreetTracker(longAbsence, shortRecency time.Duration) *GreetTracker {
	if longAbsence <= 0 {
		longAbsence = defaultLongAbsence
	}
	if shortRecency <= 0 {
		shortRecency = defaultShortRecency
	}
	return &GreetTracker{
		states:       make(map[string]*entities.PresenceState),
		longAbsence:  longAbsence,
		shortRecency: shortRecency,
		now:          time.Now,
	}
}

// Update folds in one frame's known matches.
func (g *GreetTracker) Update(matches []entities.FaceMatch) {
	now := g.now()

	if len(matches) == 0 {
		for _, state := range g.states {
			if now.Sub(state.LastSeenAt) > emptyFrameResetAfter {
				state.FramesPresent = 0
				state.LastSeenAt = now
				state.Greeted = false
			}
		}
		return
	}

	for _, m := range matches {
		if !m.Known() {
			continue
		}

		state, ok := g.states[m.PersonID]
		if !ok {
			g.states[m.PersonID] = &entities.PresenceState{
				LastSeenAt:    now,
				FramesPresent: 1,
			}
			continue
		}

		sinceSeen := now.Sub(state.LastSeenAt)
		switch {
		case sinceSeen > g.longAbsence:
			// A fresh encounter: they get a new greeting.
			state.FramesPresent = 1
			state.Greeted = false
		case sinceSeen < g.shortRecency:
			state.FramesPresent++
		default:
			// Seen a while ago; start counting over but keep greeted.
			state.FramesPresent = 1
		}
		state.LastSeenAt = now

		if state.FramesPresent > greetSuppressFrames {
			state.Greeted = true
		}
	}
}

// EligibleForGreeting returns everyone who may be greeted now: currently
// visible, present long enough, not yet greeted, not stale.
func (g *GreetTracker) EligibleForGreeting() []string {
	now := g.now()
	var eligible []string
	for personID, state := range g.states {
		if state.Greeted {
			continue
		}
		if state.FramesPresent < greetMinFrames || state.FramesPresent > greetMaxFrames {
			continue
		}
		if now.Sub(state.LastSeenAt) > g.shortRecency {
			continue
		}
		eligible = append(eligible, personID)
	}
	return eligible
}

// MarkGreeted records that a greeting for personID went out.
func (g *GreetTracker) MarkGreeted(personID string) {
	if state, ok := g.states[personID]; ok {
		state.Greeted = true
	}
}

// State exposes a person's presence state, mainly for tests.
func (g *GreetTracker) State(personID string) (entities.PresenceState, bool) {
	state, ok := g.states[personID]
	if !ok {
		return entities.PresenceState{}, false
	}
	return *state, true
}
