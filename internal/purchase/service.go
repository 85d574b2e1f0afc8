package purchase

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/mithaiwala/sweetshop/internal/catalog"
	"github.com/mithaiwala/sweetshop/internal/logging"
	"github.com/mithaiwala/sweetshop/internal/orders"
)

var (
	ErrInvalidQuantity   = errors.New("purchase: quantity must be positive")
	ErrItemNotFound      = errors.New("purchase: sweet not found")
	ErrOutOfStock        = errors.New("purchase: out of stock")
	ErrInsufficientStock = catalog.ErrInsufficientStock
	ErrPaymentFailed     = errors.New("purchase: payment order failed")
	ErrPersistenceFailed = errors.New("purchase: order write failed")
	ErrInvalidAmount     = errors.New("purchase: restock amount must be positive")
)

// Receipt is what a successful purchase returns to the caller.
type Receipt struct {
	OrderID    string `json:"order_id"`
	PaymentRef string `json:"payment_ref"`
	TotalPaise int64  `json:"total_paise"`
	Remaining  int    `json:"remaining_stock"`
}

type Service struct {
	inv    Inventory
	ledger Ledger
	gw     Gateway
	events Events
}

func NewService(inv Inventory, ledger Ledger, gw Gateway, events Events) *Service {
	return &Service{inv: inv, ledger: ledger, gw: gw, events: events}
}

// Purchase runs the pipeline: validate, pre-check stock, create the payment
// order, write the ledger record, then decrement stock atomically.
//
// Payment comes after the local pre-checks so a doomed request never reaches
// the gateway, and the ledger write comes before the decrement so a payment
// reference always has a traceable record. The ledger write and the decrement
// are two separate operations, not one transaction: if a concurrent purchase
// wins the stock between the pre-check and the decrement, the pending order
// row stays behind with no deduction. That gap is the accepted baseline
// contract, left to reconciliation rather than hidden here.
func (s *Service) Purchase(ctx context.Context, userID, sweetID string, quantity int) (*Receipt, error) {
	log := logging.FromContext(ctx).With(
		zap.String("sweet_id", sweetID),
		zap.String("user_id", userID),
		zap.Int("quantity", quantity),
	)

	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}

	sweet, err := s.inv.GetByID(ctx, sweetID)
	if errors.Is(err, catalog.ErrNotFound) {
		return nil, ErrItemNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load sweet: %w", err)
	}

	// Cheap pre-checks before the external call. The authoritative check is
	// the conditional decrement below.
	if sweet.Quantity == 0 {
		return nil, ErrOutOfStock
	}
	if sweet.Quantity < quantity {
		return nil, &catalog.InsufficientStockError{Available: sweet.Quantity}
	}

	// List price, not the discounted price. The discount field exists on the
	// sweet but purchase totals have always ignored it; kept as-is pending
	// clarification with the shop.
	total := sweet.PricePaise * int64(quantity)

	payOrder, err := s.gw.CreateOrder(ctx, total)
	if err != nil {
		log.Warn("payment order failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrPaymentFailed, err)
	}

	order := &orders.Order{
		UserID:     userID,
		SweetID:    sweetID,
		Quantity:   quantity,
		TotalPaise: total,
		PaymentRef: payOrder.Ref,
	}
	if err := s.ledger.Create(ctx, order); err != nil {
		// The gateway already issued payOrder.Ref; it is now orphaned on our
		// side. Surface the failure loudly instead of swallowing it.
		log.Error("order write failed, payment ref orphaned",
			zap.String("payment_ref", payOrder.Ref), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrPersistenceFailed, err)
	}

	remaining, err := s.inv.DecrementStock(ctx, sweetID, quantity)
	if err != nil {
		// A concurrent purchase won the race since the pre-check. The pending
		// order row above is intentionally left in place.
		log.Warn("stock decrement lost race after ledger write",
			zap.String("order_id", order.ID), zap.Error(err))
		return nil, err
	}

	if s.events != nil {
		s.events.OrderCreated(ctx, order)
	}

	log.Info("purchase complete",
		zap.String("order_id", order.ID),
		zap.String("payment_ref", payOrder.Ref),
		zap.Int64("total_paise", total),
		zap.Int("remaining", remaining))

	return &Receipt{
		OrderID:    order.ID,
		PaymentRef: payOrder.Ref,
		TotalPaise: total,
		Remaining:  remaining,
	}, nil
}

// Restock atomically adds quantity back to a sweet. Admin-only at the HTTP
// layer; no ledger or gateway involvement.
func (s *Service) Restock(ctx context.Context, sweetID string, quantity int) (int, error) {
	if quantity <= 0 {
		return 0, ErrInvalidAmount
	}
	newQty, err := s.inv.IncrementStock(ctx, sweetID, quantity)
	if errors.Is(err, catalog.ErrNotFound) {
		return 0, ErrItemNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("restock: %w", err)
	}
	logging.FromContext(ctx).Info("restocked",
		zap.String("sweet_id", sweetID), zap.Int("added", quantity), zap.Int("new_quantity", newQty))
	return newQty, nil
}
