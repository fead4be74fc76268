package usecase

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/wicaksana/sapa-server/domain/entities"
	"github.com/wicaksana/sapa-server/domain/repositories"
	"github.com/wicaksana/sapa-server/internal/identity"
)

const (
	trackerIoUThreshold = 0.45
	trackerMaxMissed    = 20

	presenceLongAbsence  = 20 * time.Second
	presenceShortRecency = 3 * time.Second
)

// Session is the per-connection state of one kiosk: its face link, the
// spatial tracker, the presence tracker, and the evidence carried between
// audio and video cycles. All mutable state is guarded by mu; the busy
// flags enforce single-flight processing per media channel.
type Session struct {
	KioskID string

	stream   repositories.FaceStream
	tracker  *identity.Tracker
	presence *identity.GreetTracker

	audioBusy atomic.Bool
	videoBusy atomic.Bool

	mu        sync.Mutex
	lastFrame entities.FaceFrame
	lastImage []byte
	lastAudio []byte
	retained  []entities.VoiceResult
}

// NewSession creates session state around an established face link.
func NewSession(kioskID string, stream repositories.FaceStream) *Session {
	return &Session{
		KioskID:  kioskID,
		stream:   stream,
		tracker:  identity.NewTracker(trackerIoUThreshold, trackerMaxMissed),
		presence: identity.NewGreetTracker(presenceLongAbsence, presenceShortRecency),
	}
}

// TryBeginAudio claims the audio channel. A false return means a previous
// utterance is still processing and the new one must be dropped.
func (s *Session) TryBeginAudio() bool {
	return s.audioBusy.CompareAndSwap(false, true)
}

// EndAudio releases the audio channel.
func (s *Session) EndAudio() {
	s.audioBusy.Store(false)
}

// AudioBusy reports whether an utterance is currently processing.
func (s *Session) AudioBusy() bool {
	return s.audioBusy.Load()
}

// TryBeginVideo claims the video channel. A false return means a previous
// frame is still processing and the new one must be dropped.
func (s *Session) TryBeginVideo() bool {
	return s.videoBusy.CompareAndSwap(false, true)
}

// EndVideo releases the video channel.
func (s *Session) EndVideo() {
	s.videoBusy.Store(false)
}

// Stream returns the session's persistent face link.
func (s *Session) Stream() repositories.FaceStream {
	return s.stream
}

// UpdateTracks runs the spatial tracker over a frame's matches and returns
// the surviving tracks.
func (s *Session) UpdateTracks(matches []entities.FaceMatch) []entities.Track {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tracker.Update(matches)
}

// PreviousTracks snapshots recent tracks for cross-cycle reidentification.
func (s *Session) PreviousTracks() []entities.Track {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tracker.PreviousTracks()
}

// UpdatePresence feeds the presence tracker and returns identities that
// are now due a greeting.
func (s *Session) UpdatePresence(matches []entities.FaceMatch) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.presence.Update(matches)
	return s.presence.EligibleForGreeting()
}

// MarkGreeted records that an identity has been greeted this encounter.
func (s *Session) MarkGreeted(personID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.presence.MarkGreeted(personID)
}

// SetLatestFrame stores the newest visual evidence for the next audio cycle.
func (s *Session) SetLatestFrame(frame entities.FaceFrame, jpeg []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastFrame = frame
	s.lastImage = jpeg
}

// LatestFrame returns the most recent visual evidence.
func (s *Session) LatestFrame() (entities.FaceFrame, []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastFrame, s.lastImage
}

// SetLatestAudio keeps the current utterance for enrollment intents.
func (s *Session) SetLatestAudio(wav []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastAudio = wav
}

// LatestAudio returns the current utterance.
func (s *Session) LatestAudio() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastAudio
}

// StoreRetained keeps voice results for the next fusion cycle.
func (s *Session) StoreRetained(voices []entities.VoiceResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.retained = voices
}

// TakeRetained removes and returns the carried-over voice results.
func (s *Session) TakeRetained() []entities.VoiceResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	retained := s.retained
	s.retained = nil
	return retained
}

// Close tears down the face link. Safe to call once per session.
func (s *Session) Close(ctx context.Context) error {
	return s.stream.Close(ctx)
}
