package repositories

import (
	"context"

	"github.com/wicaksana/sapa-server/domain/entities"
)

// ExchangeRepository persists answered interactions. Writes are
// best-effort: a failed append is logged and never fails the cycle.
type ExchangeRepository interface {
	Append(ctx context.Context, exchange *entities.Exchange) error
	ListByUser(ctx context.Context, userID string, limit int) ([]entities.Exchange, error)
}
