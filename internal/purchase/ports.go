package purchase

import (
	"context"

	"github.com/mithaiwala/sweetshop/internal/catalog"
	"github.com/mithaiwala/sweetshop/internal/orders"
	"github.com/mithaiwala/sweetshop/internal/payment"
)

// The orchestrator sees its dependencies through these narrow ports so tests
// can swap in deterministic doubles.

type Inventory interface {
	GetByID(ctx context.Context, id string) (*catalog.Sweet, error)
	DecrementStock(ctx context.Context, id string, amount int) (int, error)
	IncrementStock(ctx context.Context, id string, amount int) (int, error)
}

type Ledger interface {
	Create(ctx context.Context, o *orders.Order) error
}

type Gateway interface {
	CreateOrder(ctx context.Context, amountPaise int64) (payment.Order, error)
}

type Events interface {
	OrderCreated(ctx context.Context, o *orders.Order)
}
