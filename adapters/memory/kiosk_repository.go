package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wicaksana/sapa-server/domain/entities"
	"github.com/wicaksana/sapa-server/domain/repositories"
)

// KioskRepository is an in-memory kiosk registry for development and
// tests. Production deployments register terminals out of band.
type KioskRepository struct {
	mu      sync.RWMutex
	kiosks  map[string]*entities.Kiosk
	secrets map[string]string
}

var _ repositories.KioskRepository = (*KioskRepository)(nil)

// NewKioskRepository creates an empty registry seeded with one demo
// terminal so a fresh checkout can authenticate immediately.
func NewKioskRepository() *KioskRepository {
	repo := &KioskRepository{
		kiosks:  make(map[string]*entities.Kiosk),
		secrets: make(map[string]string),
	}

	demo := &entities.Kiosk{
		ID:           uuid.NewString(),
		SerialNumber: "SAPA-DEMO-001",
		Label:        "Lobby demo kiosk",
		CreatedAt:    time.Now(),
	}
	repo.kiosks[demo.SerialNumber] = demo
	repo.secrets[demo.SerialNumber] = "demo-secret-001"

	return repo
}

// Create registers a kiosk terminal.
func (r *KioskRepository) Create(ctx context.Context, kiosk *entities.Kiosk) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if kiosk.ID == "" {
		kiosk.ID = uuid.NewString()
	}
	if kiosk.CreatedAt.IsZero() {
		kiosk.CreatedAt = time.Now()
	}
	if _, exists := r.kiosks[kiosk.SerialNumber]; exists {
		return fmt.Errorf("kiosk with serial number %s already exists", kiosk.SerialNumber)
	}

	r.kiosks[kiosk.SerialNumber] = kiosk
	return nil
}

// GetBySerialNumber looks up a kiosk terminal.
func (r *KioskRepository) GetBySerialNumber(ctx context.Context, serialNumber string) (*entities.Kiosk, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	kiosk, exists := r.kiosks[serialNumber]
	if !exists {
		return nil, fmt.Errorf("kiosk not found: %s", serialNumber)
	}
	copied := *kiosk
	return &copied, nil
}

// SetSecret assigns the shared secret a terminal authenticates with.
func (r *KioskRepository) SetSecret(serialNumber, secret string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.secrets[serialNumber] = secret
}

// ValidateKiosk checks terminal credentials for authentication.
func (r *KioskRepository) ValidateKiosk(serialNumber, secret string) (*entities.Kiosk, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	kiosk, exists := r.kiosks[serialNumber]
	if !exists {
		return nil, fmt.Errorf("invalid credentials")
	}
	if r.secrets[serialNumber] != secret {
		return nil, fmt.Errorf("invalid credentials")
	}
	copied := *kiosk
	return &copied, nil
}
