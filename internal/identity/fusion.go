package identity

import (
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/wicaksana/sapa-server/domain/entities"
)

// Engine reconciles the frame's face matches with the utterance's voice
// recognition results into a single decision. It is pure: side effects are
// returned as intents and executed by the caller, which keeps every branch
// independently testable.
//
// Voice identity is trusted over stale face bindings when exactly one
// speaker is present; face evidence takes over when multiple speakers make
// voice attribution itself ambiguous.
type Engine struct {
	logger *zap.Logger
	newID  func() string
}

// NewEngine creates a fusion engine.
func NewEngine(logger *zap.Logger) *Engine {
	return &Engine{
		logger: logger,
		newID:  uuid.NewString,
	}
}

// Fuse decides a canonical identity for this cycle, which utterances are
// safe to forward, and which identity-store corrections to request.
func (e *Engine) Fuse(voices []entities.VoiceResult, face entities.FaceFrame) entities.FusionDecision {
	// Visual presence is a hard requirement to answer.
	if !face.FaceDetected || len(face.Matches) == 0 {
		e.logger.Debug("fusion: no face detected")
		return entities.FusionDecision{IsNoise: true}
	}
	if len(voices) == 0 {
		e.logger.Debug("fusion: no voice results")
		return entities.FusionDecision{IsNoise: true}
	}

	resolved := distinctResolvedIDs(voices)
	known, unknownCount := splitMatches(face.Matches)

	if len(resolved) > 1 {
		return e.fuseMultiSpeaker(voices, face, resolved, known, unknownCount)
	}

	voiceID := ""
	if len(resolved) == 1 {
		voiceID = resolved[0]
	}
	if voiceID == "" {
		return e.fuseUnresolvedVoice(voices, face)
	}
	return e.fuseResolvedVoice(voices, face, voiceID, known, unknownCount)
}

// fuseUnresolvedVoice handles a single speaker the voice index could not
// identify.
func (e *Engine) fuseUnresolvedVoice(voices []entities.VoiceResult, face entities.FaceFrame) entities.FusionDecision {
	if len(face.Matches) > 1 {
		// Ambiguous speaker among several faces; no safe attribution.
		e.logger.Debug("fusion: unresolved voice among multiple faces")
		return entities.FusionDecision{IsNoise: true}
	}

	f := face.Matches[0]
	if !f.Known() {
		// A brand-new visitor: synthesize an identity and enroll both
		// modalities.
		newID := e.newID()
		e.logger.Info("fusion: enrolling new identity", zap.String("person_id", newID))
		return entities.FusionDecision{
			CanonicalUserID: newID,
			Queries:         bindQueries(voices, newID),
			Intents:         []entities.Intent{{Kind: entities.IntentEnroll, PersonID: newID}},
		}
	}

	// The face tells us who is speaking; remember their voice.
	e.logger.Debug("fusion: binding voice to known face", zap.String("person_id", f.PersonID))
	return entities.FusionDecision{
		CanonicalUserID: f.PersonID,
		Queries:         bindQueries(voices, f.PersonID),
		Intents:         []entities.Intent{{Kind: entities.IntentBindVoice, PersonID: f.PersonID}},
	}
}

// fuseResolvedVoice handles exactly one identified speaker.
func (e *Engine) fuseResolvedVoice(voices []entities.VoiceResult, face entities.FaceFrame, voiceID string, known []entities.FaceMatch, unknownCount int) entities.FusionDecision {
	forward := filterByUser(voices, voiceID)

	if len(face.Matches) == 1 {
		f := face.Matches[0]
		if !f.Known() {
			e.logger.Debug("fusion: binding face to voice identity", zap.String("person_id", voiceID))
			return entities.FusionDecision{
				CanonicalUserID: voiceID,
				Queries:         forward,
				Intents:         []entities.Intent{{Kind: entities.IntentBindFace, PersonID: voiceID}},
			}
		}
		if f.PersonID == voiceID {
			return entities.FusionDecision{CanonicalUserID: voiceID, Queries: forward}
		}
		// Face and voice disagree; with a single clear utterance the voice
		// wins and the face binding gets corrected.
		e.logger.Info("fusion: correcting face binding toward voice identity",
			zap.String("face_id", f.PersonID),
			zap.String("voice_id", voiceID))
		return entities.FusionDecision{
			CanonicalUserID: voiceID,
			Queries:         forward,
			Intents:         []entities.Intent{{Kind: entities.IntentRebindFace, PersonID: voiceID}},
		}
	}

	// Multiple faces in frame.
	switch {
	case len(known) == 0:
		e.logger.Debug("fusion: no face recognized, binding to voice identity", zap.String("person_id", voiceID))
		return entities.FusionDecision{
			CanonicalUserID: voiceID,
			Queries:         forward,
			Intents:         []entities.Intent{{Kind: entities.IntentBindFace, PersonID: voiceID}},
		}
	case unknownCount > 0:
		if containsPerson(known, voiceID) {
			return entities.FusionDecision{CanonicalUserID: voiceID, Queries: forward}
		}
		return entities.FusionDecision{
			CanonicalUserID: voiceID,
			Queries:         forward,
			Intents:         []entities.Intent{{Kind: entities.IntentBindFace, PersonID: voiceID}},
		}
	default:
		if containsPerson(known, voiceID) {
			return entities.FusionDecision{CanonicalUserID: voiceID, Queries: forward}
		}
		return entities.FusionDecision{
			CanonicalUserID: voiceID,
			Queries:         forward,
			Intents:         []entities.Intent{{Kind: entities.IntentRebindFace, PersonID: voiceID}},
		}
	}
}

// fuseMultiSpeaker handles cycles where diarization produced more than one
// identified speaker. Attribution leans on face evidence.
func (e *Engine) fuseMultiSpeaker(voices []entities.VoiceResult, face entities.FaceFrame, resolved []string, known []entities.FaceMatch, unknownCount int) entities.FusionDecision {
	if unknownCount > 0 || len(known) != len(face.Matches) {
		// Not every face is recognized, so we cannot tell which voices
		// belong to people in frame. Hold the utterances for the next cycle.
		e.logger.Debug("fusion: multiple speakers with unrecognized faces, retaining")
		return entities.FusionDecision{IsNoise: true, Retained: voices}
	}

	faceIDs := make(map[string]bool, len(known))
	for _, m := range known {
		faceIDs[m.PersonID] = true
	}

	var matching []entities.VoiceResult
	for _, v := range voices {
		if v.Resolved() && faceIDs[v.UserID] {
			matching = append(matching, v)
		}
	}

	switch len(matching) {
	case 0:
		e.logger.Debug("fusion: no speaker matches a visible face, retaining")
		return entities.FusionDecision{IsNoise: true, Retained: voices}
	case 1:
		return entities.FusionDecision{
			CanonicalUserID: matching[0].UserID,
			Queries:         matching,
		}
	default:
		// Several visible speakers asked something; forward all and let the
		// answer service rank by confidence.
		return entities.FusionDecision{Queries: matching}
	}
}

func distinctResolvedIDs(voices []entities.VoiceResult) []string {
	seen := make(map[string]bool)
	var ids []string
	for _, v := range voices {
		if v.Resolved() && !seen[v.UserID] {
			seen[v.UserID] = true
			ids = append(ids, v.UserID)
		}
	}
	return ids
}

func splitMatches(matches []entities.FaceMatch) (known []entities.FaceMatch, unknownCount int) {
	for _, m := range matches {
		if m.Known() {
			known = append(known, m)
		} else {
			unknownCount++
		}
	}
	return known, unknownCount
}

// bindQueries assigns personID to every unresolved utterance, leaving
// already-resolved ones untouched.
func bindQueries(voices []entities.VoiceResult, personID string) []entities.VoiceResult {
	out := make([]entities.VoiceResult, len(voices))
	copy(out, voices)
	for i := range out {
		if !out[i].Resolved() {
			out[i].UserID = personID
		}
	}
	return out
}

func filterByUser(voices []entities.VoiceResult, userID string) []entities.VoiceResult {
	var out []entities.VoiceResult
	for _, v := range voices {
		if v.UserID == userID {
			out = append(out, v)
		}
	}
	return out
}

func containsPerson(matches []entities.FaceMatch, personID string) bool {
	for _, m := range matches {
		if m.PersonID == personID {
			return true
		}
	}
	return false
}
