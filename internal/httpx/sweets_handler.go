package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/mithaiwala/sweetshop/internal/catalog"
	"github.com/mithaiwala/sweetshop/internal/logging"
	"github.com/mithaiwala/sweetshop/internal/purchase"
	"github.com/mithaiwala/sweetshop/internal/redisx"
)

type Catalog interface {
	Create(ctx context.Context, sw *catalog.Sweet) error
	List(ctx context.Context, f catalog.ListFilter) (*catalog.ListResult, error)
}

type PurchaseService interface {
	Purchase(ctx context.Context, userID, sweetID string, quantity int) (*purchase.Receipt, error)
	Restock(ctx context.Context, sweetID string, quantity int) (int, error)
}

type SweetsHandler struct {
	Catalog   Catalog
	Purchases PurchaseService
	Redis     *redis.Client
	Auth      func(http.Handler) http.Handler
}

func (h *SweetsHandler) Register(r *chi.Mux) {
	r.Route("/api/v1/sweets", func(r chi.Router) {
		r.Get("/", h.list)
		r.Group(func(r chi.Router) {
			r.Use(h.Auth)
			r.Post("/{id}/purchase", h.purchaseSweet)
			r.Group(func(r chi.Router) {
				r.Use(RequireAdmin)
				r.Post("/", h.addSweet)
				r.Post("/{id}/restock", h.restockSweet)
			})
		})
	})
}

type purchaseReq struct {
	Quantity int `json:"quantity"`
}

type purchaseResp struct {
	Message        string `json:"message"`
	OrderID        string `json:"order_id"`
	PaymentRef     string `json:"payment_ref"`
	AmountPaise    int64  `json:"amount_paise"`
	RemainingStock int    `json:"remaining_stock"`
}

func (h *SweetsHandler) purchaseSweet(w http.ResponseWriter, r *http.Request) {
	id, ok := IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Access denied.")
		return
	}
	sweetID := chi.URLParam(r, "id")

	// Quantity defaults to 1 when the body is absent or omits it.
	req := purchaseReq{Quantity: 1}
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
	}

	receipt, err := h.Purchases.Purchase(r.Context(), id.UserID, sweetID, req.Quantity)
	if err != nil {
		h.writePurchaseError(r.Context(), w, err)
		return
	}

	h.bumpCatalogVersion(r.Context())
	writeJSON(w, http.StatusOK, purchaseResp{
		Message:        "Purchase successful",
		OrderID:        receipt.OrderID,
		PaymentRef:     receipt.PaymentRef,
		AmountPaise:    receipt.TotalPaise,
		RemainingStock: receipt.Remaining,
	})
}

// PaymentFailed and PersistenceFailed stay generic for the caller; the
// request log carries the detail.
func (h *SweetsHandler) writePurchaseError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, purchase.ErrInvalidQuantity):
		writeError(w, http.StatusBadRequest, "Quantity must be positive")
	case errors.Is(err, purchase.ErrItemNotFound):
		writeError(w, http.StatusNotFound, "Sweet not found")
	case errors.Is(err, purchase.ErrOutOfStock):
		writeError(w, http.StatusBadRequest, "Out of stock")
	case errors.Is(err, purchase.ErrInsufficientStock):
		var short *catalog.InsufficientStockError
		if errors.As(err, &short) {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("Insufficient stock. Only %d left.", short.Available))
			return
		}
		writeError(w, http.StatusBadRequest, "Insufficient stock.")
	case errors.Is(err, purchase.ErrPaymentFailed):
		writeError(w, http.StatusBadGateway, "Payment could not be initiated")
	default:
		logging.FromContext(ctx).Error("purchase failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Internal Server Error")
	}
}

type restockReq struct {
	Quantity int `json:"quantity"`
}

func (h *SweetsHandler) restockSweet(w http.ResponseWriter, r *http.Request) {
	sweetID := chi.URLParam(r, "id")

	var req restockReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	newQty, err := h.Purchases.Restock(r.Context(), sweetID, req.Quantity)
	if err != nil {
		switch {
		case errors.Is(err, purchase.ErrInvalidAmount):
			writeError(w, http.StatusBadRequest, "Quantity must be a positive number")
		case errors.Is(err, purchase.ErrItemNotFound):
			writeError(w, http.StatusNotFound, "Sweet not found")
		default:
			logging.FromContext(r.Context()).Error("restock failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "Internal Server Error")
		}
		return
	}

	h.bumpCatalogVersion(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"message":      "Restock successful",
		"new_quantity": newQty,
	})
}

type addSweetReq struct {
	Name        string `json:"name"`
	Category    string `json:"category"`
	PricePaise  int64  `json:"price_paise"`
	DiscountPct int    `json:"discount_pct"`
	Quantity    int    `json:"quantity"`
	ImageURL    string `json:"image_url"`
}

func (h *SweetsHandler) addSweet(w http.ResponseWriter, r *http.Request) {
	var req addSweetReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Name == "" || req.Category == "" {
		writeError(w, http.StatusBadRequest, "All fields are required")
		return
	}
	if req.PricePaise < 0 || req.Quantity < 0 || req.DiscountPct < 0 || req.DiscountPct > 99 {
		writeError(w, http.StatusBadRequest, "Invalid price, quantity or discount")
		return
	}

	sw := &catalog.Sweet{
		Name:        req.Name,
		Category:    req.Category,
		PricePaise:  req.PricePaise,
		DiscountPct: req.DiscountPct,
		Quantity:    req.Quantity,
		ImageURL:    req.ImageURL,
	}
	if err := h.Catalog.Create(r.Context(), sw); err != nil {
		logging.FromContext(r.Context()).Error("add sweet failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	h.bumpCatalogVersion(r.Context())
	writeJSON(w, http.StatusCreated, sw)
}

func (h *SweetsHandler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := catalog.ListFilter{
		Search:   q.Get("search"),
		Category: q.Get("category"),
		MinPaise: parseInt64(q.Get("min_paise")),
		MaxPaise: parseInt64(q.Get("max_paise")),
		Page:     int(parseInt64(q.Get("page"))),
		Limit:    int(parseInt64(q.Get("limit"))),
	}

	cacheKey := h.listCacheKey(r.Context(), f)
	if cacheKey != "" {
		if s, err := h.Redis.Get(r.Context(), cacheKey).Result(); err == nil && s != "" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(s))
			return
		}
	}

	res, err := h.Catalog.List(r.Context(), f)
	if err != nil {
		logging.FromContext(r.Context()).Error("list sweets failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	if cacheKey != "" {
		if b, err := json.Marshal(res); err == nil {
			_ = h.Redis.Set(r.Context(), cacheKey, b, redisx.TTLCatalogList).Err()
		}
	}
	writeJSON(w, http.StatusOK, res)
}

// listCacheKey stamps the key with the catalog version so one INCR after any
// write invalidates every cached page at once.
func (h *SweetsHandler) listCacheKey(ctx context.Context, f catalog.ListFilter) string {
	if h.Redis == nil {
		return ""
	}
	version, err := h.Redis.Get(ctx, redisx.KeyCatalogVersion).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return ""
	}
	filter := fmt.Sprintf("%s:%s:%d:%d:%d:%d", f.Search, f.Category, f.MinPaise, f.MaxPaise, f.Page, f.Limit)
	return fmt.Sprintf(redisx.KeyCatalogList, version, filter)
}

func (h *SweetsHandler) bumpCatalogVersion(ctx context.Context) {
	if h.Redis == nil {
		return
	}
	_ = h.Redis.Incr(ctx, redisx.KeyCatalogVersion).Err()
}

func parseInt64(s string) int64 {
	if s == "" {
		return 0
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n < 0 {
		return 0
	}
	return n
}
