package entities

// IntentKind names a side effect the fusion engine wants executed against
// the identity store. Intents must be idempotent at the collaborator; the
// engine does not track whether a previous cycle's intent succeeded.
type IntentKind string

const (
	// IntentEnroll registers a brand-new identity with both modalities.
	IntentEnroll IntentKind = "enroll"
	// IntentBindVoice attaches the current voice sample to a known face identity.
	IntentBindVoice IntentKind = "bind_voice"
	// IntentBindFace attaches the current frame to a known voice identity.
	IntentBindFace IntentKind = "bind_face"
	// IntentRebindFace corrects a stale face binding toward the voice identity.
	IntentRebindFace IntentKind = "rebind_face"
)

// Intent is one side effect requested by a FusionDecision.
type Intent struct {
	Kind     IntentKind
	PersonID string
}

// FusionDecision is the fusion engine's output for one identification
// cycle. Computed fresh every cycle, never persisted.
type FusionDecision struct {
	// CanonicalUserID is the single identity this cycle resolved to, empty
	// when no single speaker could be attributed.
	CanonicalUserID string
	// IsNoise means no usable signal: nothing is forwarded, no side effects.
	IsNoise bool
	// Queries are the utterances safe to forward for answering, each bound
	// to a resolved user identity.
	Queries []VoiceResult
	// Intents are side effects for the caller to execute.
	Intents []Intent
	// Retained holds raw voice results to carry into the next cycle when
	// attribution was unsafe but a speaker is visibly present.
	Retained []VoiceResult
}
