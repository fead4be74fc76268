package entities

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Exchange is one answered interaction (question or greeting) logged for a
// resolved user. This is a best-effort operational log; conversation
// history proper lives with the answer service.
type Exchange struct {
	ID         primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	KioskID    string             `json:"kiosk_id" bson:"kiosk_id"`
	UserID     string             `json:"user_id" bson:"user_id"`
	Question   string             `json:"question" bson:"question"`
	Answer     string             `json:"answer" bson:"answer"`
	IsGreeting bool               `json:"is_greeting" bson:"is_greeting"`
	CreatedAt  time.Time          `json:"created_at" bson:"created_at"`
}
