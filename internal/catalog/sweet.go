package catalog

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrNotFound          = errors.New("catalog: sweet not found")
	ErrInsufficientStock = errors.New("catalog: insufficient stock")
)

// InsufficientStockError carries how much stock is actually left so callers
// can say so. errors.Is(err, ErrInsufficientStock) matches it.
type InsufficientStockError struct {
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock: only %d left", e.Available)
}

func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}

type Sweet struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Category    string    `json:"category"`
	PricePaise  int64     `json:"price_paise"`
	DiscountPct int       `json:"discount_pct"`
	Quantity    int       `json:"quantity"`
	ImageURL    string    `json:"image_url"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ListFilter narrows and pages the catalog listing. Zero values mean "no
// constraint"; Page and Limit are normalised by the store.
type ListFilter struct {
	Search   string
	Category string
	MinPaise int64
	MaxPaise int64
	Page     int
	Limit    int
}

type ListResult struct {
	Sweets      []Sweet `json:"sweets"`
	TotalItems  int     `json:"total_items"`
	TotalPages  int     `json:"total_pages"`
	CurrentPage int     `json:"current_page"`
}
