package repositories

import (
	"context"

	"github.com/wicaksana/sapa-server/domain/entities"
)

// KioskRepository defines data access for registered kiosk terminals.
type KioskRepository interface {
	Create(ctx context.Context, kiosk *entities.Kiosk) error
	GetBySerialNumber(ctx context.Context, serialNumber string) (*entities.Kiosk, error)
	// ValidateKiosk checks terminal credentials for authentication.
	ValidateKiosk(serialNumber, secret string) (*entities.Kiosk, error)
}
