package api

import "time"

// KioskAuthRequest represents the request payload for kiosk authentication
type KioskAuthRequest struct {
	SerialNumber string `json:"serial_number" validate:"required"`
	SecretKey    string `json:"secret_key" validate:"required"`
}

// KioskAuthResponse represents the response payload for kiosk authentication
type KioskAuthResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	KioskID   string    `json:"kiosk_id"`
}

// ExchangeResponse is one logged interaction in history listings.
type ExchangeResponse struct {
	UserID     string    `json:"user_id"`
	Question   string    `json:"question,omitempty"`
	Answer     string    `json:"answer"`
	IsGreeting bool      `json:"is_greeting"`
	CreatedAt  time.Time `json:"created_at"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
