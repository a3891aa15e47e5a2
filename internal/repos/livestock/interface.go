package livestock

import (
	"context"
	"time"

	"github.com/fastprodman/groupbuy/internal/apperr"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var ErrLivestockNotFound = apperr.NotFound("livestock not found or not available")

type Livestock struct {
	ID        uuid.UUID
	Name      string
	Price     decimal.Decimal
	Available bool
	CreatedAt time.Time
}

type Catalog interface {
	GetAvailable(ctx context.Context, id uuid.UUID) (Livestock, error)
	ListAvailable(ctx context.Context) ([]Livestock, error)
}
