package repositories

import (
	"context"

	"github.com/wicaksana/sapa-server/domain/entities"
)

// FaceStreamConfig is the channel configuration sent to the face backend
// after every (re)connect.
type FaceStreamConfig struct {
	Threshold float64 `json:"threshold"`
	MaxFaces  int     `json:"max_faces"`
}

// FaceStream is the persistent per-session link to the face-recognition
// backend. Implementations must serialize send/receive pairs so concurrent
// frames never interleave on one link, verify liveness before every send,
// and reconnect (re-sending the configuration) when the link has gone away.
type FaceStream interface {
	// Configure updates the detection threshold and face cap. Takes effect
	// immediately on a live link and on every subsequent reconnect.
	Configure(ctx context.Context, cfg FaceStreamConfig) error
	// Identify submits one JPEG frame and returns the recognition result.
	Identify(ctx context.Context, jpeg []byte) (*entities.FaceFrame, error)
	// Close sends an explicit close message and releases the transport.
	// In-flight calls observe the closed link and fail, never hang.
	Close(ctx context.Context) error
}
