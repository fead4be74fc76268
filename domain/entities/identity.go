package entities

import "strings"

// UnknownPersonID is the sentinel the face backend reports for a detected
// but unrecognized face.
const UnknownPersonID = "unknown"

// BoundingBox is an axis-aligned face box in pixel coordinates.
type BoundingBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Area returns the box area. Malformed boxes (non-positive width or
// height) have zero area so they never match anything.
func (b BoundingBox) Area() float64 {
	if b.Width <= 0 || b.Height <= 0 {
		return 0
	}
	return b.Width * b.Height
}

// FaceMatch is one face detected in a single frame.
type FaceMatch struct {
	PersonID   string      `json:"person_id"`
	Confidence float64     `json:"confidence"`
	Box        BoundingBox `json:"bbox"`
}

// Known reports whether the face was recognized as a registered person.
func (m FaceMatch) Known() bool {
	return m.PersonID != "" && !strings.EqualFold(m.PersonID, UnknownPersonID)
}

// FaceFrame is the face backend's result for one identified video frame.
type FaceFrame struct {
	Matches        []FaceMatch `json:"matches"`
	FaceDetected   bool        `json:"face_detected"`
	ProcessedFaces int         `json:"processed_faces"`
	NewFaces       []string    `json:"new_faces,omitempty"`
}

// VoiceResult is one diarized, transcribed utterance. UserID is empty when
// the speaker could not be matched against the voice index.
type VoiceResult struct {
	UserID     string  `json:"user_id,omitempty"`
	Transcript string  `json:"transcript"`
	Score      float64 `json:"score"`
}

// Resolved reports whether the utterance carries a speaker identity.
func (v VoiceResult) Resolved() bool {
	return v.UserID != ""
}
