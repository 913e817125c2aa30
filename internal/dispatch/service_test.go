package dispatch

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/meridian-wms/meridian-wms/internal/shared"
	"github.com/meridian-wms/meridian-wms/internal/stock"
)

// memoryDispatchRepo models the shared database transaction: the stock fake
// is enrolled in WithTx, so a callback error or a failed commit rolls back
// order rows and stock balances together, exactly like the joined pgx
// transaction does.
type memoryDispatchRepo struct {
	mu        sync.Mutex
	orders    map[int64]Order
	byID      map[string]int64
	nextID    int64
	stk       *memoryStock
	commitErr error
}

type memoryDispatchTx struct {
	repo *memoryDispatchRepo
}

func newMemoryDispatchRepo() *memoryDispatchRepo {
	return &memoryDispatchRepo{orders: make(map[int64]Order), byID: make(map[string]int64)}
}

func (r *memoryDispatchRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	orders := make(map[int64]Order, len(r.orders))
	for id, order := range r.orders {
		orders[id] = order
	}
	byID := make(map[string]int64, len(r.byID))
	for dispatchID, id := range r.byID {
		byID[dispatchID] = id
	}
	nextID := r.nextID
	var balances map[string]float64
	if r.stk != nil {
		balances = r.stk.snapshot()
	}
	err := fn(ctx, &memoryDispatchTx{repo: r})
	if err == nil {
		err = r.commitErr
	}
	if err != nil {
		r.orders, r.byID, r.nextID = orders, byID, nextID
		if r.stk != nil {
			r.stk.restore(balances)
		}
		return err
	}
	return nil
}

func (r *memoryDispatchRepo) Get(ctx context.Context, dispatchID string) (Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byID[dispatchID]
	if !ok {
		return Order{}, &shared.NotFoundError{Entity: "dispatch", Ref: dispatchID}
	}
	return r.orders[id], nil
}

func (r *memoryDispatchRepo) List(ctx context.Context, filter Filter) ([]Order, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Order
	for _, order := range r.orders {
		if filter.Status != "" && order.Status != filter.Status {
			continue
		}
		if filter.AgentID != 0 && order.AgentID != filter.AgentID {
			continue
		}
		out = append(out, order)
	}
	return out, len(out), nil
}

func (tx *memoryDispatchTx) GetForUpdate(ctx context.Context, dispatchID string) (Order, error) {
	id, ok := tx.repo.byID[dispatchID]
	if !ok {
		return Order{}, &shared.NotFoundError{Entity: "dispatch", Ref: dispatchID}
	}
	return tx.repo.orders[id], nil
}

func (tx *memoryDispatchTx) Create(ctx context.Context, order Order) (int64, error) {
	if _, ok := tx.repo.byID[order.DispatchID]; ok {
		return 0, &shared.ConflictError{Entity: "dispatch", Ref: order.DispatchID}
	}
	tx.repo.nextID++
	order.ID = tx.repo.nextID
	tx.repo.orders[order.ID] = order
	tx.repo.byID[order.DispatchID] = order.ID
	return order.ID, nil
}

func (tx *memoryDispatchTx) UpdateStatus(ctx context.Context, id int64, status Status) error {
	order := tx.repo.orders[id]
	order.Status = status
	tx.repo.orders[id] = order
	return nil
}

// memoryStock mirrors the ledger's locked check-and-commit: the whole posting
// is evaluated and applied under one lock, all lines or none.
type memoryStock struct {
	mu       sync.Mutex
	balances map[string]float64
}

func newMemoryStock(balances map[string]float64) *memoryStock {
	copied := make(map[string]float64, len(balances))
	for sku, qty := range balances {
		copied[sku] = qty
	}
	return &memoryStock{balances: copied}
}

func (m *memoryStock) Consume(ctx context.Context, input stock.PostingInput) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, item := range input.Items {
		if item.Qty > m.balances[item.SKU] {
			return &shared.InsufficientStockError{SKU: item.SKU, Available: m.balances[item.SKU], Requested: item.Qty}
		}
	}
	for _, item := range input.Items {
		m.balances[item.SKU] -= item.Qty
	}
	return nil
}

func (m *memoryStock) Release(ctx context.Context, input stock.PostingInput) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, item := range input.Items {
		m.balances[item.SKU] += item.Qty
	}
	return nil
}

func (m *memoryStock) available(sku string) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balances[sku]
}

func (m *memoryStock) snapshot() map[string]float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := make(map[string]float64, len(m.balances))
	for sku, qty := range m.balances {
		copied[sku] = qty
	}
	return copied
}

func (m *memoryStock) restore(balances map[string]float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances = balances
}

type stubAgents struct{}

func (stubAgents) Info(ctx context.Context, agentID int64) (AgentInfo, error) {
	switch agentID {
	case 1:
		return AgentInfo{ID: 1, Name: "Ravi", Active: true}, nil
	case 2:
		return AgentInfo{ID: 2, Name: "Meena", Active: false}, nil
	default:
		return AgentInfo{}, &shared.NotFoundError{Entity: "field agent", Ref: "unknown"}
	}
}

func newTestService(balances map[string]float64) (*Service, *memoryDispatchRepo, *memoryStock) {
	repo := newMemoryDispatchRepo()
	stk := newMemoryStock(balances)
	repo.stk = stk
	svc := NewService(repo, stk, stubAgents{}, nil, nil)
	return svc, repo, stk
}

func testContext() context.Context {
	return shared.ContextWithActor(context.Background(), shared.Actor{ID: "u-7"})
}

func TestCreateConsumesStock(t *testing.T) {
	svc, _, stk := newTestService(map[string]float64{"SKU-TEA": 20})
	ctx := testContext()

	order, err := svc.Create(ctx, CreateInput{
		Destination: "Pune hub",
		AgentID:     1,
		Items:       []ItemInput{{SKU: "SKU-TEA", Quantity: 8}},
	})
	require.NoError(t, err)
	require.Equal(t, StatusPending, order.Status)
	require.Equal(t, "Ravi", order.AgentName)
	require.Equal(t, 12.0, stk.available("SKU-TEA"))
}

func TestCreateRejectsInsufficientStock(t *testing.T) {
	svc, repo, stk := newTestService(map[string]float64{"SKU-TEA": 5, "SKU-RICE": 100})
	ctx := testContext()

	_, err := svc.Create(ctx, CreateInput{
		Destination: "Nagpur hub",
		AgentID:     1,
		Items: []ItemInput{
			{SKU: "SKU-RICE", Quantity: 10},
			{SKU: "SKU-TEA", Quantity: 6},
		},
	})
	var insufficient *shared.InsufficientStockError
	require.ErrorAs(t, err, &insufficient)
	require.Equal(t, "SKU-TEA", insufficient.SKU)
	require.Equal(t, 5.0, insufficient.Available)
	require.Equal(t, 6.0, insufficient.Requested)

	// nothing persisted, nothing partially consumed
	_, total, err := repo.List(ctx, Filter{})
	require.NoError(t, err)
	require.Zero(t, total)
	require.Equal(t, 100.0, stk.available("SKU-RICE"))
	require.Equal(t, 5.0, stk.available("SKU-TEA"))
}

func TestConcurrentDispatchesNeverOversell(t *testing.T) {
	const capacity = 6
	svc, repo, stk := newTestService(map[string]float64{"SKU-TEA": capacity})
	ctx := testContext()

	var g errgroup.Group
	for i := 0; i < 10; i++ {
		g.Go(func() error {
			_, err := svc.Create(ctx, CreateInput{
				Destination: "Indore hub",
				AgentID:     1,
				Items:       []ItemInput{{SKU: "SKU-TEA", Quantity: 1}},
			})
			if err != nil && !shared.IsInsufficientStock(err) {
				return err
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	_, total, err := repo.List(ctx, Filter{})
	require.NoError(t, err)
	require.Equal(t, capacity, total)
	require.Zero(t, stk.available("SKU-TEA"))
}

func TestCreateDuplicateIDConsumesNothing(t *testing.T) {
	svc, _, stk := newTestService(map[string]float64{"SKU-TEA": 10})
	ctx := testContext()

	_, err := svc.Create(ctx, CreateInput{
		DispatchID:  "DSP-1",
		Destination: "Surat hub",
		AgentID:     1,
		Items:       []ItemInput{{SKU: "SKU-TEA", Quantity: 4}},
	})
	require.NoError(t, err)

	_, err = svc.Create(ctx, CreateInput{
		DispatchID:  "DSP-1",
		Destination: "Surat hub",
		AgentID:     1,
		Items:       []ItemInput{{SKU: "SKU-TEA", Quantity: 4}},
	})
	require.True(t, shared.IsConflict(err))
	require.Equal(t, 6.0, stk.available("SKU-TEA"))
}

func TestCreateCommitFailureConsumesNothing(t *testing.T) {
	svc, repo, stk := newTestService(map[string]float64{"SKU-TEA": 10})
	ctx := testContext()

	// a request timeout at commit must not leave stock consumed by a
	// dispatch that was never persisted
	repo.commitErr = context.DeadlineExceeded
	_, err := svc.Create(ctx, CreateInput{
		Destination: "Surat hub",
		AgentID:     1,
		Items:       []ItemInput{{SKU: "SKU-TEA", Quantity: 4}},
	})
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Equal(t, 10.0, stk.available("SKU-TEA"))

	_, total, err := repo.List(ctx, Filter{})
	require.NoError(t, err)
	require.Zero(t, total)
}

func TestCancelCommitFailureReleasesNothing(t *testing.T) {
	svc, repo, stk := newTestService(map[string]float64{"SKU-TEA": 10})
	ctx := testContext()

	order, err := svc.Create(ctx, CreateInput{
		Destination: "Goa hub",
		AgentID:     1,
		Items:       []ItemInput{{SKU: "SKU-TEA", Quantity: 3}},
	})
	require.NoError(t, err)

	// a failed cancellation must not release stock while the order stays live
	repo.commitErr = context.DeadlineExceeded
	_, err = svc.UpdateStatus(ctx, order.DispatchID, StatusCancelled)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Equal(t, 7.0, stk.available("SKU-TEA"))

	got, err := svc.Get(ctx, order.DispatchID)
	require.NoError(t, err)
	require.Equal(t, StatusPending, got.Status)
}

func TestStatusLifecycleAndCancellation(t *testing.T) {
	svc, _, stk := newTestService(map[string]float64{"SKU-TEA": 10})
	ctx := testContext()

	order, err := svc.Create(ctx, CreateInput{
		Destination: "Jaipur hub",
		AgentID:     1,
		Items:       []ItemInput{{SKU: "SKU-TEA", Quantity: 3}},
	})
	require.NoError(t, err)
	require.Equal(t, 7.0, stk.available("SKU-TEA"))

	order, err = svc.UpdateStatus(ctx, order.DispatchID, StatusInTransit)
	require.NoError(t, err)
	require.Equal(t, StatusInTransit, order.Status)

	// cancellation from in-transit returns the stock
	order, err = svc.UpdateStatus(ctx, order.DispatchID, StatusCancelled)
	require.NoError(t, err)
	require.Equal(t, StatusCancelled, order.Status)
	require.Equal(t, 10.0, stk.available("SKU-TEA"))

	_, err = svc.UpdateStatus(ctx, order.DispatchID, StatusDelivered)
	require.True(t, shared.IsInvalidState(err))
}

func TestDeliveredIsTerminal(t *testing.T) {
	svc, _, stk := newTestService(map[string]float64{"SKU-TEA": 10})
	ctx := testContext()

	order, err := svc.Create(ctx, CreateInput{
		Destination: "Kochi hub",
		AgentID:     1,
		Items:       []ItemInput{{SKU: "SKU-TEA", Quantity: 2}},
	})
	require.NoError(t, err)

	_, err = svc.UpdateStatus(ctx, order.DispatchID, StatusDelivered)
	require.True(t, shared.IsInvalidState(err))

	_, err = svc.UpdateStatus(ctx, order.DispatchID, StatusInTransit)
	require.NoError(t, err)
	_, err = svc.UpdateStatus(ctx, order.DispatchID, StatusDelivered)
	require.NoError(t, err)

	_, err = svc.UpdateStatus(ctx, order.DispatchID, StatusCancelled)
	require.True(t, shared.IsInvalidState(err))
	require.Equal(t, 8.0, stk.available("SKU-TEA"))
}

func TestCreateRejectsInactiveAgent(t *testing.T) {
	svc, _, stk := newTestService(map[string]float64{"SKU-TEA": 10})
	ctx := testContext()

	_, err := svc.Create(ctx, CreateInput{
		Destination: "Bhopal hub",
		AgentID:     2,
		Items:       []ItemInput{{SKU: "SKU-TEA", Quantity: 1}},
	})
	require.True(t, shared.IsValidation(err))
	require.Equal(t, 10.0, stk.available("SKU-TEA"))
}
