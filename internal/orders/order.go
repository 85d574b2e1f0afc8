package orders

import (
	"errors"
	"time"
)

var (
	ErrNotFound          = errors.New("orders: order not found")
	ErrInvalidTransition = errors.New("orders: invalid status transition")
)

// Order is a durable record of one purchase attempt. TotalPaise is frozen at
// purchase time and is never recomputed from the sweet's later price.
type Order struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	SweetID    string    `json:"sweet_id"`
	Quantity   int       `json:"quantity"`
	TotalPaise int64     `json:"total_paise"`
	PaymentRef string    `json:"payment_ref"`
	Status     Status    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
