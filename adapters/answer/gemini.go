package answer

import (
	"context"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/wicaksana/sapa-server/domain/repositories"
)

const receptionistPrompt = "You are a friendly office receptionist. " +
	"Answer briefly, in at most two sentences, in the language of the question."

// Gemini answers directly from the Gemini API. It serves as the fallback
// when the retrieval-augmented service is unreachable, so answers keep
// flowing without grounding documents.
type Gemini struct {
	client *genai.Client
	logger *zap.Logger
	model  string
}

var _ repositories.AnswerProvider = (*Gemini)(nil)

// NewGemini creates a Gemini answer provider from GEMINI_API_KEY.
func NewGemini(logger *zap.Logger) (*Gemini, error) {
	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY environment variable is required")
	}

	ctx := context.Background()
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &Gemini{
		client: client,
		logger: logger,
		model:  "gemini-2.0-flash",
	}, nil
}

// Answer generates a reply for the highest-priority query. Queries arrive
// already resolved and ordered by recognition confidence.
func (g *Gemini) Answer(ctx context.Context, queries []repositories.Query) (string, error) {
	if len(queries) == 0 {
		return "", fmt.Errorf("no queries to answer")
	}
	return g.generate(ctx, queries[0].Question)
}

// Greet generates a short generic greeting. Without the user service we
// have no profile to personalize with, so only the identity is implied.
func (g *Gemini) Greet(ctx context.Context, userID string) (string, error) {
	return g.generate(ctx, "Greet a returning visitor warmly in one short sentence.")
}

func (g *Gemini) generate(ctx context.Context, prompt string) (string, error) {
	contents := []*genai.Content{
		genai.NewContentFromText(prompt, genai.RoleUser),
	}
	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(receptionistPrompt, genai.RoleUser),
		Temperature:       genai.Ptr[float32](0.7),
		MaxOutputTokens:   256,
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, config)
	if err != nil {
		return "", fmt.Errorf("gemini generation failed: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("gemini returned no candidates")
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		sb.WriteString(part.Text)
	}
	text := strings.TrimSpace(sb.String())
	if text == "" {
		return "", fmt.Errorf("gemini returned empty text")
	}

	g.logger.Debug("Gemini generation completed", zap.Int("length", len(text)))
	return text, nil
}
