package catalog

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store is the inventory store. All stock mutation goes through
// DecrementStock/IncrementStock; nothing is allowed to read a quantity and
// write it back separately.
type Store struct{ DB *pgxpool.Pool }

func (s *Store) Create(ctx context.Context, sw *Sweet) error {
	if sw.ID == "" {
		sw.ID = uuid.NewString()
	}
	err := s.DB.QueryRow(ctx, `
		INSERT INTO sweets (id, name, category, price_paise, discount_pct, quantity, image_url)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at`,
		sw.ID, sw.Name, sw.Category, sw.PricePaise, sw.DiscountPct, sw.Quantity, sw.ImageURL,
	).Scan(&sw.CreatedAt, &sw.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert sweet: %w", err)
	}
	return nil
}

func (s *Store) GetByID(ctx context.Context, id string) (*Sweet, error) {
	var sw Sweet
	err := s.DB.QueryRow(ctx, `
		SELECT id, name, category, price_paise, discount_pct, quantity, image_url, created_at, updated_at
		FROM sweets WHERE id = $1`, id,
	).Scan(&sw.ID, &sw.Name, &sw.Category, &sw.PricePaise, &sw.DiscountPct,
		&sw.Quantity, &sw.ImageURL, &sw.CreatedAt, &sw.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get sweet: %w", err)
	}
	return &sw, nil
}

// DecrementStock reduces quantity by amount as one conditional update. The
// quantity >= amount guard is evaluated and applied atomically by the
// database, so two concurrent purchases can never drive stock negative.
func (s *Store) DecrementStock(ctx context.Context, id string, amount int) (int, error) {
	var remaining int
	err := s.DB.QueryRow(ctx, `
		UPDATE sweets
		SET quantity = quantity - $2, updated_at = now()
		WHERE id = $1 AND quantity >= $2
		RETURNING quantity`, id, amount,
	).Scan(&remaining)
	if errors.Is(err, pgx.ErrNoRows) {
		// No row updated: either the sweet is missing or stock is short.
		var available int
		err2 := s.DB.QueryRow(ctx, `SELECT quantity FROM sweets WHERE id = $1`, id).Scan(&available)
		if errors.Is(err2, pgx.ErrNoRows) {
			return 0, ErrNotFound
		}
		if err2 != nil {
			return 0, fmt.Errorf("check stock: %w", err2)
		}
		return 0, &InsufficientStockError{Available: available}
	}
	if err != nil {
		return 0, fmt.Errorf("decrement stock: %w", err)
	}
	return remaining, nil
}

// IncrementStock adds amount to quantity; no upper bound.
func (s *Store) IncrementStock(ctx context.Context, id string, amount int) (int, error) {
	var quantity int
	err := s.DB.QueryRow(ctx, `
		UPDATE sweets
		SET quantity = quantity + $2, updated_at = now()
		WHERE id = $1
		RETURNING quantity`, id, amount,
	).Scan(&quantity)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("increment stock: %w", err)
	}
	return quantity, nil
}

func (s *Store) List(ctx context.Context, f ListFilter) (*ListResult, error) {
	f = f.normalised()
	where, args := f.whereClause()

	var total int
	if err := s.DB.QueryRow(ctx, `SELECT COUNT(*) FROM sweets`+where, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count sweets: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT id, name, category, price_paise, discount_pct, quantity, image_url, created_at, updated_at
		FROM sweets%s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d`, where, len(args)+1, len(args)+2)
	args = append(args, f.Limit, (f.Page-1)*f.Limit)

	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list sweets: %w", err)
	}
	defer rows.Close()

	out := make([]Sweet, 0, f.Limit)
	for rows.Next() {
		var sw Sweet
		if err := rows.Scan(&sw.ID, &sw.Name, &sw.Category, &sw.PricePaise, &sw.DiscountPct,
			&sw.Quantity, &sw.ImageURL, &sw.CreatedAt, &sw.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan sweet: %w", err)
		}
		out = append(out, sw)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &ListResult{
		Sweets:      out,
		TotalItems:  total,
		TotalPages:  int(math.Ceil(float64(total) / float64(f.Limit))),
		CurrentPage: f.Page,
	}, nil
}

func (f ListFilter) normalised() ListFilter {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 || f.Limit > 100 {
		f.Limit = 10
	}
	return f
}

// whereClause builds the filter predicate with numbered placeholders.
func (f ListFilter) whereClause() (string, []any) {
	var conds []string
	var args []any
	next := func() int { return len(args) + 1 }

	if f.Search != "" {
		conds = append(conds, fmt.Sprintf("name ILIKE $%d", next()))
		args = append(args, "%"+f.Search+"%")
	}
	if f.Category != "" {
		conds = append(conds, fmt.Sprintf("category = $%d", next()))
		args = append(args, f.Category)
	}
	if f.MinPaise > 0 {
		conds = append(conds, fmt.Sprintf("price_paise >= $%d", next()))
		args = append(args, f.MinPaise)
	}
	if f.MaxPaise > 0 {
		conds = append(conds, fmt.Sprintf("price_paise <= $%d", next()))
		args = append(args, f.MaxPaise)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}
