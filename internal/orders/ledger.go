package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Ledger is the append-mostly order record. Inserts are always pending; the
// only updates are the guarded pending -> paid/failed transitions.
type Ledger struct{ DB *pgxpool.Pool }

func (l *Ledger) Create(ctx context.Context, o *Order) error {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	o.Status = StatusPending
	err := l.DB.QueryRow(ctx, `
		INSERT INTO orders (id, user_id, sweet_id, quantity, total_paise, payment_ref, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at`,
		o.ID, o.UserID, o.SweetID, o.Quantity, o.TotalPaise, o.PaymentRef, o.Status,
	).Scan(&o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

func (l *Ledger) GetByID(ctx context.Context, id string) (*Order, error) {
	var o Order
	err := l.DB.QueryRow(ctx, `
		SELECT id, user_id, sweet_id, quantity, total_paise, payment_ref, status, created_at, updated_at
		FROM orders WHERE id = $1`, id,
	).Scan(&o.ID, &o.UserID, &o.SweetID, &o.Quantity, &o.TotalPaise,
		&o.PaymentRef, &o.Status, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	return &o, nil
}

func (l *Ledger) ListByUser(ctx context.Context, userID string) ([]Order, error) {
	rows, err := l.DB.Query(ctx, `
		SELECT id, user_id, sweet_id, quantity, total_paise, payment_ref, status, created_at, updated_at
		FROM orders WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var out []Order
	for rows.Next() {
		var o Order
		if err := rows.Scan(&o.ID, &o.UserID, &o.SweetID, &o.Quantity, &o.TotalPaise,
			&o.PaymentRef, &o.Status, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// MarkPaid flips a pending order to paid. The status guard in the UPDATE
// makes the transition safe against concurrent reconciliation deliveries.
func (l *Ledger) MarkPaid(ctx context.Context, id string) error {
	return l.transition(ctx, id, StatusPaid)
}

func (l *Ledger) MarkFailed(ctx context.Context, id string) error {
	return l.transition(ctx, id, StatusFailed)
}

func (l *Ledger) transition(ctx context.Context, id string, to Status) error {
	ct, err := l.DB.Exec(ctx, `
		UPDATE orders SET status = $2, updated_at = now()
		WHERE id = $1 AND status = $3`, id, to, StatusPending)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	if ct.RowsAffected() == 1 {
		return nil
	}
	var exists bool
	if err := l.DB.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM orders WHERE id = $1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("check order: %w", err)
	}
	if !exists {
		return ErrNotFound
	}
	return fmt.Errorf("%w: order %s is no longer pending", ErrInvalidTransition, id)
}
