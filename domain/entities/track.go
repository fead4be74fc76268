package entities

import "time"

// Track is a face identity's continuity record across frames within one
// session. IDs are session-local and monotonically assigned.
type Track struct {
	ID           int
	PersonID     string
	Box          BoundingBox
	Confidence   float64
	FramesMissed int
}

// PresenceState is per-person dwell-time state within one session, used to
// decide when a recognized visitor should be greeted.
type PresenceState struct {
	LastSeenAt    time.Time
	FramesPresent int
	Greeted       bool
}
