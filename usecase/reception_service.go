package usecase

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/wicaksana/sapa-server/domain/entities"
	"github.com/wicaksana/sapa-server/domain/repositories"
	"github.com/wicaksana/sapa-server/internal/audio"
	"github.com/wicaksana/sapa-server/internal/identity"
)

// Reply is the outcome of one media cycle, ready for the wire.
type Reply struct {
	Valid      bool
	Audio      []byte
	Lipsync    json.RawMessage
	IsGreeting bool
}

// ReceptionService orchestrates one identification-and-answer cycle per
// incoming media unit. Audio drives questions; video drives presence and
// greetings. Both lean on the fusion engine for identity decisions.
type ReceptionService struct {
	voices     repositories.VoiceRecognizer
	identities repositories.IdentityStore
	answers    repositories.AnswerProvider
	speech     repositories.SpeechSynthesizer
	lipsync    repositories.LipSyncExtractor
	exchanges  repositories.ExchangeRepository

	fusion *identity.Engine
	logger *zap.Logger
}

// NewReceptionService wires the orchestrator. exchanges may be nil when
// no interaction log is configured.
func NewReceptionService(
	voices repositories.VoiceRecognizer,
	identities repositories.IdentityStore,
	answers repositories.AnswerProvider,
	speech repositories.SpeechSynthesizer,
	lipsync repositories.LipSyncExtractor,
	exchanges repositories.ExchangeRepository,
	logger *zap.Logger,
) *ReceptionService {
	return &ReceptionService{
		voices:     voices,
		identities: identities,
		answers:    answers,
		speech:     speech,
		lipsync:    lipsync,
		exchanges:  exchanges,
		fusion:     identity.NewEngine(logger),
		logger:     logger,
	}
}

// Configure pushes new detection parameters down the session's face link.
func (r *ReceptionService) Configure(ctx context.Context, session *Session, cfg repositories.FaceStreamConfig) error {
	return session.Stream().Configure(ctx, cfg)
}

// ProcessAudio runs one utterance through recognition, fusion, answering,
// and synthesis. The caller holds the audio channel's single-flight claim.
func (r *ReceptionService) ProcessAudio(ctx context.Context, session *Session, pcm []byte) (*Reply, error) {
	wav, err := audio.WrapPCM(pcm, audio.DefaultSampleRate)
	if err != nil {
		return nil, err
	}
	session.SetLatestAudio(wav)

	voices, err := r.voices.Recognize(ctx, wav)
	if err != nil {
		return nil, err
	}

	// Evidence held over from a cycle where attribution was unsafe gets
	// one more chance against the current frame.
	if retained := session.TakeRetained(); len(retained) > 0 {
		voices = append(retained, voices...)
	}

	frame, _ := session.LatestFrame()
	matches := identity.ReidentifyUnknown(frame.Matches, session.PreviousTracks(), trackerIoUThreshold)
	frame.Matches = matches

	decision := r.fusion.Fuse(voices, frame)
	if decision.IsNoise {
		session.StoreRetained(decision.Retained)
		r.logger.Debug("Utterance judged noise",
			zap.String("kioskId", session.KioskID),
			zap.Int("retained", len(decision.Retained)))
		return &Reply{Valid: false}, nil
	}

	r.executeIntents(ctx, session, decision.Intents)

	queries := make([]repositories.Query, 0, len(decision.Queries))
	for _, q := range decision.Queries {
		queries = append(queries, repositories.Query{UserID: q.UserID, Question: q.Transcript})
	}

	answer, err := r.answers.Answer(ctx, queries)
	if err != nil {
		return nil, err
	}

	reply, err := r.speak(ctx, answer, false)
	if err != nil {
		return nil, err
	}

	r.logExchange(ctx, session, decision.CanonicalUserID, queries[0].Question, answer, false)
	return reply, nil
}

// ProcessVideo runs one frame through recognition, tracking, and presence;
// when an identity becomes due a greeting and the audio channel is quiet,
// the greeting is produced here. The caller holds the video channel's
// single-flight claim.
func (r *ReceptionService) ProcessVideo(ctx context.Context, session *Session, jpeg []byte) (*Reply, error) {
	if !audio.IsJPEG(jpeg) {
		return nil, fmt.Errorf("frame is not JPEG: %w", entities.ErrDecode)
	}

	frame, err := session.Stream().Identify(ctx, jpeg)
	if err != nil {
		return nil, err
	}

	// Resolve unknowns against spatial history before the tracker and the
	// presence tracker see the frame.
	matches := identity.ReidentifyUnknown(frame.Matches, session.PreviousTracks(), trackerIoUThreshold)
	resolved := *frame
	resolved.Matches = matches

	session.UpdateTracks(matches)
	session.SetLatestFrame(resolved, jpeg)
	eligible := session.UpdatePresence(matches)

	if len(eligible) == 0 || session.AudioBusy() {
		return &Reply{Valid: false}, nil
	}

	personID := eligible[0]
	greeting, err := r.answers.Greet(ctx, personID)
	if err != nil {
		r.logger.Warn("Greeting generation failed",
			zap.String("personId", personID),
			zap.Error(err))
		return &Reply{Valid: false}, nil
	}

	reply, err := r.speak(ctx, greeting, true)
	if err != nil {
		return nil, err
	}

	session.MarkGreeted(personID)
	r.logExchange(ctx, session, personID, "", greeting, true)

	r.logger.Info("Greeting delivered",
		zap.String("kioskId", session.KioskID),
		zap.String("personId", personID))
	return reply, nil
}

// speak synthesizes the text and derives its lip-sync cues. A lip-sync
// failure degrades to audio without cues rather than failing the cycle.
func (r *ReceptionService) speak(ctx context.Context, text string, greeting bool) (*Reply, error) {
	clip, err := r.speech.Synthesize(ctx, text)
	if err != nil {
		return nil, err
	}

	cues, err := r.lipsync.Extract(ctx, clip)
	if err != nil {
		r.logger.Warn("Lip-sync extraction failed, replying without cues", zap.Error(err))
		cues = nil
	}

	return &Reply{Valid: true, Audio: clip, Lipsync: cues, IsGreeting: greeting}, nil
}

// executeIntents applies the fusion engine's identity corrections. Each
// failure is logged and skipped; the conversational flow never stalls on
// an identity write.
func (r *ReceptionService) executeIntents(ctx context.Context, session *Session, intents []entities.Intent) {
	if len(intents) == 0 {
		return
	}

	wav := session.LatestAudio()
	_, jpeg := session.LatestFrame()

	for _, intent := range intents {
		var err error
		switch intent.Kind {
		case entities.IntentEnroll:
			if err = r.identities.EnrollFace(ctx, intent.PersonID, jpeg); err == nil {
				err = r.identities.EnrollVoice(ctx, intent.PersonID, wav)
			}
		case entities.IntentBindVoice:
			err = r.identities.EnrollVoice(ctx, intent.PersonID, wav)
		case entities.IntentBindFace:
			err = r.identities.EnrollFace(ctx, intent.PersonID, jpeg)
		case entities.IntentRebindFace:
			err = r.identities.RebindFace(ctx, intent.PersonID, jpeg)
		default:
			r.logger.Error("Unknown intent kind", zap.String("kind", string(intent.Kind)))
			continue
		}

		if err != nil {
			r.logger.Error("Identity intent failed",
				zap.String("kind", string(intent.Kind)),
				zap.String("personId", intent.PersonID),
				zap.Error(err))
		}
	}
}

// logExchange appends to the interaction log, best effort.
func (r *ReceptionService) logExchange(ctx context.Context, session *Session, userID, question, answer string, greeting bool) {
	if r.exchanges == nil || userID == "" {
		return
	}

	exchange := &entities.Exchange{
		KioskID:    session.KioskID,
		UserID:     userID,
		Question:   question,
		Answer:     answer,
		IsGreeting: greeting,
	}
	if err := r.exchanges.Append(ctx, exchange); err != nil {
		r.logger.Warn("Failed to log exchange",
			zap.String("userId", userID),
			zap.Error(err))
	}
}
