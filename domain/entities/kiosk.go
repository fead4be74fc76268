package entities

import "time"

// Kiosk is a registered receptionist terminal allowed to open a session.
type Kiosk struct {
	ID           string    `json:"id"`
	SerialNumber string    `json:"serial_number"`
	Label        string    `json:"label"`
	CreatedAt    time.Time `json:"created_at"`
}
