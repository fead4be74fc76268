package voice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/wicaksana/sapa-server/domain/entities"
	"github.com/wicaksana/sapa-server/domain/repositories"
)

const defaultRequestTimeout = 30 * time.Second

// ClientConfig holds configuration for the voice-identity service client.
// Required fields:
// - BaseURL: root URL of the voice service, e.g. "http://localhost:8001"
type ClientConfig struct {
	BaseURL string        // Required: root URL of the voice service
	Timeout time.Duration // Optional: per-request timeout
}

// Client talks to the voice-identity service over HTTP. One call diarizes
// the utterance, transcribes each speaker, and looks them up in the voice
// index.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *zap.Logger
}

var _ repositories.VoiceRecognizer = (*Client)(nil)

// ValidateClientConfig validates the ClientConfig.
func ValidateClientConfig(config ClientConfig) error {
	if config.BaseURL == "" {
		return fmt.Errorf("voice service base URL is required")
	}
	return nil
}

// NewClient creates a voice-identity service client.
func NewClient(config ClientConfig, logger *zap.Logger) (*Client, error) {
	if err := ValidateClientConfig(config); err != nil {
		return nil, err
	}

	timeout := config.Timeout
	if timeout == 0 {
		timeout = defaultRequestTimeout
		logger.Info("Using default voice request timeout", zap.Duration("timeout", timeout))
	}

	return &Client{
		baseURL: config.BaseURL,
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}, nil
}

// recognition is one speaker's result on the wire. The user id is null
// when the speaker is not in the voice index.
type recognition struct {
	UserID        *string `json:"userid"`
	Transcription string  `json:"transcription"`
	Score         float64 `json:"score"`
}

// Recognize submits a WAV utterance and returns one result per diarized
// speaker. An empty slice means the service heard nothing usable.
func (c *Client) Recognize(ctx context.Context, wav []byte) ([]entities.VoiceResult, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", "utterance.wav")
	if err != nil {
		return nil, fmt.Errorf("build multipart request: %w", err)
	}
	if _, err := part.Write(wav); err != nil {
		return nil, fmt.Errorf("build multipart request: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("build multipart request: %w", err)
	}

	url := c.baseURL + "/voice/process"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return nil, fmt.Errorf("create voice request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("voice service: %w", entities.ErrProviderUnavailable)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errorBody, _ := io.ReadAll(resp.Body)
		c.logger.Error("Voice service returned error",
			zap.Int("statusCode", resp.StatusCode),
			zap.String("response", string(errorBody)))
		return nil, fmt.Errorf("voice service status %d: %w", resp.StatusCode, entities.ErrProviderUnavailable)
	}

	var recognitions []recognition
	if err := json.NewDecoder(resp.Body).Decode(&recognitions); err != nil {
		return nil, fmt.Errorf("decode voice response: %w", err)
	}

	results := make([]entities.VoiceResult, 0, len(recognitions))
	for _, r := range recognitions {
		result := entities.VoiceResult{Transcript: r.Transcription, Score: r.Score}
		if r.UserID != nil {
			result.UserID = *r.UserID
		}
		results = append(results, result)
	}

	c.logger.Debug("Voice recognition completed", zap.Int("speakers", len(results)))
	return results, nil
}
