package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/wicaksana/sapa-server/domain/entities"
	"github.com/wicaksana/sapa-server/domain/repositories"
)

const defaultServiceTimeout = 30 * time.Second

// ServiceConfig holds configuration for the in-house synthesis service.
// Required fields:
// - BaseURL: root URL of the synthesis service
type ServiceConfig struct {
	BaseURL string        // Required: synthesis service root
	Timeout time.Duration // Optional: per-request timeout
}

// Service is the primary synthesizer, backed by the deployment's own
// voice-synthesis service. It returns a complete WAV clip per request.
type Service struct {
	baseURL string
	http    *http.Client
	logger  *zap.Logger
}

var _ repositories.SpeechSynthesizer = (*Service)(nil)

// ValidateServiceConfig validates the ServiceConfig.
func ValidateServiceConfig(config ServiceConfig) error {
	if config.BaseURL == "" {
		return fmt.Errorf("synthesis service base URL is required")
	}
	return nil
}

// NewService creates a synthesis-service client.
func NewService(config ServiceConfig, logger *zap.Logger) (*Service, error) {
	if err := ValidateServiceConfig(config); err != nil {
		return nil, err
	}

	timeout := config.Timeout
	if timeout == 0 {
		timeout = defaultServiceTimeout
	}

	return &Service{
		baseURL: config.BaseURL,
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}, nil
}

// Synthesize converts reply text into a WAV clip.
func (s *Service) Synthesize(ctx context.Context, text string) ([]byte, error) {
	payload, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return nil, fmt.Errorf("marshal synthesis request: %w", err)
	}

	url := s.baseURL + "/voice/tts"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create synthesis request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/wav")

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("synthesis service: %w", entities.ErrProviderUnavailable)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errorBody, _ := io.ReadAll(resp.Body)
		s.logger.Error("Synthesis service returned error",
			zap.Int("statusCode", resp.StatusCode),
			zap.String("response", string(errorBody)))
		return nil, fmt.Errorf("synthesis service status %d: %w", resp.StatusCode, entities.ErrProviderUnavailable)
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read synthesized audio: %w", err)
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("synthesis service returned empty audio")
	}

	s.logger.Debug("Synthesis completed", zap.Int("bytes", len(audio)))
	return audio, nil
}
