package repositories

import "context"

// IdentityStore executes the fusion engine's side-effect intents against
// the identity backends. All operations are idempotent at the collaborator:
// enrolling or rebinding the same identity twice is harmless.
type IdentityStore interface {
	// EnrollVoice attaches a voice sample (WAV) to a person.
	EnrollVoice(ctx context.Context, personID string, wav []byte) error
	// EnrollFace attaches a face image (JPEG) to a person.
	EnrollFace(ctx context.Context, personID string, jpeg []byte) error
	// RebindFace corrects an existing face binding to point at personID.
	RebindFace(ctx context.Context, personID string, jpeg []byte) error
}
