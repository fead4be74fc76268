package repositories

import (
	"context"

	"github.com/wicaksana/sapa-server/domain/entities"
)

// VoiceRecognizer abstracts the voice-identity service. It diarizes and
// transcribes an utterance and looks each speaker up in the voice index.
type VoiceRecognizer interface {
	// Recognize submits WAV audio and returns zero or more utterances,
	// one per diarized speaker.
	Recognize(ctx context.Context, wav []byte) ([]entities.VoiceResult, error)
}
