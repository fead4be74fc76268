package answer

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

const defaultAnswerTimeout = 45 * time.Second

// RAGConfig holds configuration for the retrieval-augmented answer service.
// Required fields:
// - RAGBaseURL: root URL of the answer service
// - UserBaseURL: root URL of the user-profile service used for greetings
type RAGConfig struct {
	RAGBaseURL  string        // Required: answer service root
	UserBaseURL string        // Required: user-profile service root
	Timeout     time.Duration // Optional: per-request timeout
}

// RAG asks the retrieval-augmented answer service. When several queries
// are submitted at once the service ranks them by recognition confidence
// and answers the strongest.
type RAG struct {
	ragBaseURL  string
	userBaseURL string
	http        *http.Client
	logger      *zap.Logger
	fallback    repositories.AnswerProvider
}

var _ repositories.AnswerProvider = (*RAG)(nil)

// ValidateRAGConfig validates the RAGConfig.
func ValidateRAGConfig(config RAGConfig) error {
	if config.RAGBaseURL == "" {
		return fmt.Errorf("answer service base URL is required")
	}
	if config.UserBaseURL == "" {
		return fmt.Errorf("user service base URL is required")
	}
	return nil
}

// NewRAG creates an answer-service client. fallback may be nil; when set
// it is consulted after the primary service fails.
func NewRAG(config RAGConfig, fallback repositories.AnswerProvider, logger *zap.Logger) (*RAG, error) {
	if err := ValidateRAGConfig(config); err != nil {
		return nil, err
	}

	timeout := config.Timeout
	if timeout == 0 {
		timeout = defaultAnswerTimeout
	}

	return &RAG{
		ragBaseURL:  config.RAGBaseURL,
		userBaseURL: config.UserBaseURL,
		http:        &http.Client{Timeout: timeout},
		logger:      logger,
		fallback:    fallback,
	}, nil
}

type multiQueryRequest struct {
	Queries []repositories.Query `json:"queries"`
}

type generationResponse struct {
	Generation string `json:"generation"`
}

// Answer forwards the resolved queries and returns the generated reply.
func (r *RAG) Answer(ctx context.Context, queries []repositories.Query) (string, error) {
	if len(queries) == 0 {
		return "", fmt.Errorf("no queries to answer")
	}

	payload, err := json.Marshal(multiQueryRequest{Queries: queries})
	if err != nil {
		return "", fmt.Errorf("marshal answer request: %w", err)
	}

	url := r.ragBaseURL + "/rag/multi_query"
	generation, err := r.post(ctx, url, payload)
	if err != nil {
		if r.fallback != nil {
			r.logger.Warn("Answer service failed, using fallback", zap.Error(err))
			return r.fallback.Answer(ctx, queries)
		}
		return "", err
	}
	return generation, nil
}

// Greet asks the user service for a personalized greeting line.
func (r *RAG) Greet(ctx context.Context, userID string) (string, error) {
	url := fmt.Sprintf("%s/users/%s/greet", r.userBaseURL, userID)
	generation, err := r.post(ctx, url, []byte("{}"))
	if err != nil {
		if r.fallback != nil {
			r.logger.Warn("Greeting service failed, using fallback", zap.Error(err))
			return r.fallback.Greet(ctx, userID)
		}
		return "", err
	}
	return generation, nil
}

func (r *RAG) post(ctx context.Context, url string, payload []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create answer request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("answer service: %w", entities.ErrProviderUnavailable)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errorBody, _ := io.ReadAll(resp.Body)
		r.logger.Error("Answer service returned error",
			zap.String("url", url),
			zap.Int("statusCode", resp.StatusCode),
			zap.String("response", string(errorBody)))
		return "", fmt.Errorf("answer service status %d: %w", resp.StatusCode, entities.ErrProviderUnavailable)
	}

	var gen generationResponse
	if err := json.NewDecoder(resp.Body).Decode(&gen); err != nil {
		return "", fmt.Errorf("decode answer response: %w", err)
	}
	if gen.Generation == "" {
		return "", fmt.Errorf("answer service returned empty generation")
	}
	return gen.Generation, nil
}
