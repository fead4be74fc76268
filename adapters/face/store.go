package face

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/wicaksana/sapa-server/domain/entities"
	"github.com/wicaksana/sapa-server/domain/repositories"
)

const defaultStoreTimeout = 15 * time.Second

// StoreConfig holds configuration for the identity-store client.
// Required fields:
// - FaceBaseURL: root URL of the face backend's HTTP API
// - VoiceBaseURL: root URL of the voice service
type StoreConfig struct {
	FaceBaseURL  string        // Required: face backend HTTP root
	VoiceBaseURL string        // Required: voice service root
	Timeout      time.Duration // Optional: per-request timeout
}

// Store executes identity enrollment and correction against the face and
// voice backends. Every operation is idempotent there, so a repeated
// intent from a later cycle is harmless.
type Store struct {
	faceBaseURL  string
	voiceBaseURL string
	http         *http.Client
	logger       *zap.Logger
}

var _ repositories.IdentityStore = (*Store)(nil)

// ValidateStoreConfig validates the StoreConfig.
func ValidateStoreConfig(config StoreConfig) error {
	if config.FaceBaseURL == "" {
		return fmt.Errorf("face backend base URL is required")
	}
	if config.VoiceBaseURL == "" {
		return fmt.Errorf("voice service base URL is required")
	}
	return nil
}

// NewStore creates an identity-store client.
func NewStore(config StoreConfig, logger *zap.Logger) (*Store, error) {
	if err := ValidateStoreConfig(config); err != nil {
		return nil, err
	}

	timeout := config.Timeout
	if timeout == 0 {
		timeout = defaultStoreTimeout
	}

	return &Store{
		faceBaseURL:  config.FaceBaseURL,
		voiceBaseURL: config.VoiceBaseURL,
		http:         &http.Client{Timeout: timeout},
		logger:       logger,
	}, nil
}

// EnrollVoice attaches a voice sample to a person in the voice index.
func (s *Store) EnrollVoice(ctx context.Context, personID string, wav []byte) error {
	url := s.voiceBaseURL + "/voice/add_user"
	return s.postSample(ctx, url, "user_id", personID, "utterance.wav", wav)
}

// EnrollFace registers a face embedding under a person.
func (s *Store) EnrollFace(ctx context.Context, personID string, jpeg []byte) error {
	url := s.faceBaseURL + "/api/v2/embed"
	return s.postSample(ctx, url, "person_id", personID, "frame.jpg", jpeg)
}

// RebindFace points an existing face embedding at a different person.
func (s *Store) RebindFace(ctx context.Context, personID string, jpeg []byte) error {
	url := s.faceBaseURL + "/api/v2/update"
	return s.postSample(ctx, url, "person_id", personID, "frame.jpg", jpeg)
}

func (s *Store) postSample(ctx context.Context, url, idField, personID, filename string, sample []byte) error {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	if err := writer.WriteField(idField, personID); err != nil {
		return fmt.Errorf("build multipart request: %w", err)
	}
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return fmt.Errorf("build multipart request: %w", err)
	}
	if _, err := part.Write(sample); err != nil {
		return fmt.Errorf("build multipart request: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("build multipart request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return fmt.Errorf("create identity request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := s.http.Do(req)
	if err != nil {
		return fmt.Errorf("identity store: %w", entities.ErrProviderUnavailable)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errorBody, _ := io.ReadAll(resp.Body)
		s.logger.Error("Identity store returned error",
			zap.String("url", url),
			zap.Int("statusCode", resp.StatusCode),
			zap.String("response", string(errorBody)))
		return fmt.Errorf("identity store status %d: %w", resp.StatusCode, entities.ErrProviderUnavailable)
	}

	s.logger.Info("Identity sample stored",
		zap.String("url", url),
		zap.String("personId", personID),
		zap.Int("bytes", len(sample)))
	return nil
}
