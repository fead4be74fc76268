package repositories

import "context"

// Query is one resolved question forwarded for answering.
type Query struct {
	UserID   string `json:"user_id"`
	Question string `json:"question"`
}

// AnswerProvider abstracts the retrieval-augmented answer service.
type AnswerProvider interface {
	// Answer generates a reply for one or more queries. Multiple queries
	// are ranked by the provider; a single generation comes back.
	Answer(ctx context.Context, queries []Query) (string, error)
	// Greet produces a personalized greeting for a recognized user.
	Greet(ctx context.Context, userID string) (string, error)
}
