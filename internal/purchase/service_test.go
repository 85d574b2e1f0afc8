package purchase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/mithaiwala/sweetshop/internal/catalog"
	"github.com/mithaiwala/sweetshop/internal/orders"
	"github.com/mithaiwala/sweetshop/internal/payment"
)

// fakeInventory mirrors the store contract: the decrement guard is evaluated
// and applied under one lock, like the conditional UPDATE in postgres.
type fakeInventory struct {
	mu     sync.Mutex
	sweets map[string]*catalog.Sweet
}

func newFakeInventory(sweets ...*catalog.Sweet) *fakeInventory {
	m := make(map[string]*catalog.Sweet, len(sweets))
	for _, s := range sweets {
		m[s.ID] = s
	}
	return &fakeInventory{sweets: m}
}

func (f *fakeInventory) GetByID(_ context.Context, id string) (*catalog.Sweet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sweets[id]
	if !ok {
		return nil, catalog.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (f *fakeInventory) DecrementStock(_ context.Context, id string, amount int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sweets[id]
	if !ok {
		return 0, catalog.ErrNotFound
	}
	if s.Quantity < amount {
		return 0, &catalog.InsufficientStockError{Available: s.Quantity}
	}
	s.Quantity -= amount
	return s.Quantity, nil
}

func (f *fakeInventory) IncrementStock(_ context.Context, id string, amount int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sweets[id]
	if !ok {
		return 0, catalog.ErrNotFound
	}
	s.Quantity += amount
	return s.Quantity, nil
}

func (f *fakeInventory) quantity(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sweets[id].Quantity
}

type fakeLedger struct {
	mu      sync.Mutex
	created []orders.Order
	fail    error
}

func (f *fakeLedger) Create(_ context.Context, o *orders.Order) error {
	if f.fail != nil {
		return f.fail
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	o.ID = fmt.Sprintf("order-%d", len(f.created)+1)
	o.Status = orders.StatusPending
	f.created = append(f.created, *o)
	return nil
}

func (f *fakeLedger) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.created)
}

type fakeGateway struct {
	mu    sync.Mutex
	calls int
	fail  error
}

func (f *fakeGateway) CreateOrder(_ context.Context, amountPaise int64) (payment.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.fail != nil {
		return payment.Order{}, f.fail
	}
	return payment.Order{Ref: fmt.Sprintf("order_sim_%d", f.calls), Status: "created"}, nil
}

type fakeEvents struct {
	mu     sync.Mutex
	orders []string
}

func (f *fakeEvents) OrderCreated(_ context.Context, o *orders.Order) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.orders = append(f.orders, o.ID)
}

func testSweet(qty int) *catalog.Sweet {
	return &catalog.Sweet{
		ID:         "sweet-1",
		Name:       "Kaju Katli",
		Category:   "dry fruit",
		PricePaise: 5000,
		Quantity:   qty,
	}
}

func newTestService(inv *fakeInventory) (*Service, *fakeLedger, *fakeGateway, *fakeEvents) {
	ledger := &fakeLedger{}
	gw := &fakeGateway{}
	events := &fakeEvents{}
	return NewService(inv, ledger, gw, events), ledger, gw, events
}

func TestPurchase_Success(t *testing.T) {
	inv := newFakeInventory(testSweet(10))
	svc, ledger, _, events := newTestService(inv)

	receipt, err := svc.Purchase(context.Background(), "user-1", "sweet-1", 2)
	require.NoError(t, err)

	assert.Equal(t, int64(10000), receipt.TotalPaise)
	assert.Equal(t, 8, receipt.Remaining)
	assert.NotEmpty(t, receipt.OrderID)
	assert.NotEmpty(t, receipt.PaymentRef)
	assert.Equal(t, 8, inv.quantity("sweet-1"))

	require.Equal(t, 1, ledger.count())
	created := ledger.created[0]
	assert.Equal(t, orders.StatusPending, created.Status)
	assert.Equal(t, "user-1", created.UserID)
	assert.Equal(t, int64(10000), created.TotalPaise)
	assert.Equal(t, receipt.PaymentRef, created.PaymentRef)

	assert.Equal(t, []string{receipt.OrderID}, events.orders)
}

func TestPurchase_TotalUsesListPriceNotDiscount(t *testing.T) {
	sweet := testSweet(10)
	sweet.DiscountPct = 20
	inv := newFakeInventory(sweet)
	svc, _, _, _ := newTestService(inv)

	receipt, err := svc.Purchase(context.Background(), "user-1", "sweet-1", 2)
	require.NoError(t, err)
	assert.Equal(t, int64(10000), receipt.TotalPaise)
}

func TestPurchase_InvalidQuantity(t *testing.T) {
	inv := newFakeInventory(testSweet(10))
	svc, ledger, gw, _ := newTestService(inv)

	for _, qty := range []int{0, -1, -100} {
		_, err := svc.Purchase(context.Background(), "user-1", "sweet-1", qty)
		assert.ErrorIs(t, err, ErrInvalidQuantity)
	}
	assert.Equal(t, 0, gw.calls)
	assert.Equal(t, 0, ledger.count())
	assert.Equal(t, 10, inv.quantity("sweet-1"))
}

func TestPurchase_ItemNotFound(t *testing.T) {
	inv := newFakeInventory(testSweet(10))
	svc, _, gw, _ := newTestService(inv)

	_, err := svc.Purchase(context.Background(), "user-1", "no-such-sweet", 1)
	assert.ErrorIs(t, err, ErrItemNotFound)
	assert.NotErrorIs(t, err, ErrOutOfStock)
	assert.NotErrorIs(t, err, ErrInsufficientStock)
	assert.Equal(t, 0, gw.calls)
}

func TestPurchase_OutOfStock(t *testing.T) {
	inv := newFakeInventory(testSweet(0))
	svc, ledger, gw, _ := newTestService(inv)

	_, err := svc.Purchase(context.Background(), "user-1", "sweet-1", 1)
	assert.ErrorIs(t, err, ErrOutOfStock)
	assert.Equal(t, 0, gw.calls)
	assert.Equal(t, 0, ledger.count())
}

func TestPurchase_InsufficientStock_MentionsRemaining(t *testing.T) {
	inv := newFakeInventory(testSweet(8))
	svc, ledger, gw, _ := newTestService(inv)

	_, err := svc.Purchase(context.Background(), "user-1", "sweet-1", 100)
	require.ErrorIs(t, err, ErrInsufficientStock)
	assert.Contains(t, err.Error(), "8")
	assert.Equal(t, 0, gw.calls)
	assert.Equal(t, 0, ledger.count())
	assert.Equal(t, 8, inv.quantity("sweet-1"))
}

func TestPurchase_ExactRemainingStockThenOutOfStock(t *testing.T) {
	inv := newFakeInventory(testSweet(8))
	svc, _, _, _ := newTestService(inv)

	receipt, err := svc.Purchase(context.Background(), "user-1", "sweet-1", 8)
	require.NoError(t, err)
	assert.Equal(t, 0, receipt.Remaining)

	_, err = svc.Purchase(context.Background(), "user-1", "sweet-1", 1)
	assert.ErrorIs(t, err, ErrOutOfStock)
}

func TestPurchase_GatewayFailureLeavesNothingBehind(t *testing.T) {
	inv := newFakeInventory(testSweet(10))
	ledger := &fakeLedger{}
	gw := &fakeGateway{fail: payment.ErrGateway}
	svc := NewService(inv, ledger, gw, &fakeEvents{})

	_, err := svc.Purchase(context.Background(), "user-1", "sweet-1", 2)
	assert.ErrorIs(t, err, ErrPaymentFailed)
	assert.Equal(t, 0, ledger.count())
	assert.Equal(t, 10, inv.quantity("sweet-1"))
}

func TestPurchase_LedgerFailureIsFatal(t *testing.T) {
	inv := newFakeInventory(testSweet(10))
	ledger := &fakeLedger{fail: errors.New("connection reset")}
	svc := NewService(inv, ledger, &fakeGateway{}, &fakeEvents{})

	_, err := svc.Purchase(context.Background(), "user-1", "sweet-1", 2)
	assert.ErrorIs(t, err, ErrPersistenceFailed)
	assert.Equal(t, 10, inv.quantity("sweet-1"))
}

// lostRaceInventory reports plenty of stock at read time but has been drained
// by the time the decrement runs, modelling a concurrent purchase winning the
// window between pre-check and decrement.
type lostRaceInventory struct {
	*fakeInventory
	drained bool
}

func (l *lostRaceInventory) GetByID(ctx context.Context, id string) (*catalog.Sweet, error) {
	s, err := l.fakeInventory.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !l.drained {
		l.drained = true
		l.fakeInventory.sweets[id].Quantity = 0
	}
	s.Quantity = 10
	return s, nil
}

func TestPurchase_DecrementLostRace_OrderStaysPending(t *testing.T) {
	inv := &lostRaceInventory{fakeInventory: newFakeInventory(testSweet(10))}
	ledger := &fakeLedger{}
	svc := NewService(inv, ledger, &fakeGateway{}, &fakeEvents{})

	_, err := svc.Purchase(context.Background(), "user-1", "sweet-1", 2)
	require.ErrorIs(t, err, ErrInsufficientStock)

	// The ledger row exists at pending with no stock deduction: the known
	// gap between the two operations.
	require.Equal(t, 1, ledger.count())
	assert.Equal(t, orders.StatusPending, ledger.created[0].Status)
	assert.Equal(t, 0, inv.quantity("sweet-1"))
}

func TestPurchase_ConcurrentNeverOversells(t *testing.T) {
	const stock = 10
	inv := newFakeInventory(testSweet(stock))
	svc, ledger, _, _ := newTestService(inv)

	var g errgroup.Group
	var mu sync.Mutex
	var successes, insufficient int

	// 30 buyers of 1 against stock 10: exactly 10 succeed.
	for i := 0; i < 30; i++ {
		i := i
		g.Go(func() error {
			_, err := svc.Purchase(context.Background(), fmt.Sprintf("user-%d", i), "sweet-1", 1)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, ErrInsufficientStock) || errors.Is(err, ErrOutOfStock):
				insufficient++
			default:
				return err
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, stock, successes)
	assert.Equal(t, 20, insufficient)
	assert.Equal(t, 0, inv.quantity("sweet-1"))
	assert.GreaterOrEqual(t, ledger.count(), stock)
}

func TestPurchase_Scenario(t *testing.T) {
	// Stock 10 at 50 paise: buy 2 (total 100, 8 left), overbuy fails naming 8,
	// buy the remaining 8, then one more is out of stock.
	sweet := testSweet(10)
	sweet.PricePaise = 50
	inv := newFakeInventory(sweet)
	svc, _, _, _ := newTestService(inv)
	ctx := context.Background()

	receipt, err := svc.Purchase(ctx, "user-1", "sweet-1", 2)
	require.NoError(t, err)
	assert.Equal(t, int64(100), receipt.TotalPaise)
	assert.Equal(t, 8, receipt.Remaining)

	_, err = svc.Purchase(ctx, "user-1", "sweet-1", 100)
	require.ErrorIs(t, err, ErrInsufficientStock)
	assert.Contains(t, err.Error(), "8")
	assert.Equal(t, 8, inv.quantity("sweet-1"))

	receipt, err = svc.Purchase(ctx, "user-1", "sweet-1", 8)
	require.NoError(t, err)
	assert.Equal(t, 0, receipt.Remaining)

	_, err = svc.Purchase(ctx, "user-1", "sweet-1", 1)
	assert.ErrorIs(t, err, ErrOutOfStock)
}

func TestRestock_Success(t *testing.T) {
	inv := newFakeInventory(testSweet(3))
	svc, _, _, _ := newTestService(inv)

	newQty, err := svc.Restock(context.Background(), "sweet-1", 7)
	require.NoError(t, err)
	assert.Equal(t, 10, newQty)
	assert.Equal(t, 10, inv.quantity("sweet-1"))
}

func TestRestock_InvalidAmount(t *testing.T) {
	inv := newFakeInventory(testSweet(3))
	svc, _, _, _ := newTestService(inv)

	for _, qty := range []int{0, -5} {
		_, err := svc.Restock(context.Background(), "sweet-1", qty)
		assert.ErrorIs(t, err, ErrInvalidAmount)
	}
	assert.Equal(t, 3, inv.quantity("sweet-1"))
}

func TestRestock_ItemNotFound(t *testing.T) {
	inv := newFakeInventory(testSweet(3))
	svc, _, _, _ := newTestService(inv)

	_, err := svc.Restock(context.Background(), "no-such-sweet", 5)
	assert.ErrorIs(t, err, ErrItemNotFound)
}
