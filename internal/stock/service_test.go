package stock

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/meridian-wms/meridian-wms/internal/shared"
)

type memoryStockRepo struct {
	mu       sync.Mutex
	balances map[string]Balance
	ledger   []LedgerEntry
}

type memoryStockTx struct {
	repo *memoryStockRepo
}

func newMemoryStockRepo() *memoryStockRepo {
	return &memoryStockRepo{balances: make(map[string]Balance)}
}

func (r *memoryStockRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	tx := &memoryStockTx{repo: r}
	snapshotBalances := make(map[string]Balance, len(r.balances))
	for sku, bal := range r.balances {
		snapshotBalances[sku] = bal
	}
	snapshotLedger := len(r.ledger)
	if err := fn(ctx, tx); err != nil {
		r.balances = snapshotBalances
		r.ledger = r.ledger[:snapshotLedger]
		return err
	}
	return nil
}

func (r *memoryStockRepo) GetBalance(ctx context.Context, sku string) (Balance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	bal, ok := r.balances[sku]
	if !ok {
		return Balance{SKU: sku}, ErrBalanceNotFound
	}
	return bal, nil
}

func (r *memoryStockRepo) ListLedger(ctx context.Context, filter LedgerFilter) ([]LedgerEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []LedgerEntry
	for _, entry := range r.ledger {
		if entry.SKU == filter.SKU {
			out = append(out, entry)
		}
	}
	return out, nil
}

func (tx *memoryStockTx) GetBalancesForUpdate(ctx context.Context, skus []string) (map[string]Balance, error) {
	out := make(map[string]Balance, len(skus))
	for _, sku := range skus {
		bal, ok := tx.repo.balances[sku]
		if !ok {
			bal = Balance{SKU: sku}
		}
		out[sku] = bal
	}
	return out, nil
}

func (tx *memoryStockTx) UpsertBalance(ctx context.Context, balance Balance) error {
	tx.repo.balances[balance.SKU] = balance
	return nil
}

func (tx *memoryStockTx) InsertEntry(ctx context.Context, entry LedgerEntry) error {
	entry.ID = int64(len(tx.repo.ledger) + 1)
	tx.repo.ledger = append(tx.repo.ledger, entry)
	return nil
}

func newTestService() (*Service, *memoryStockRepo) {
	repo := newMemoryStockRepo()
	return NewService(repo, nil, nil), repo
}

func TestAvailabilityDerivesFromLedger(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	// unknown SKU is zero stock, not an error
	available, err := svc.Available(ctx, "SKU-NEW")
	require.NoError(t, err)
	require.Zero(t, available)

	// only accepted quantity counts; the caller already excluded rejections
	err = svc.PostReceipts(ctx, PostingInput{
		RefModule: "grn",
		RefID:     "GRN-1",
		Items:     []MovementItem{{SKU: "SKU-TEA", Qty: 8}, {SKU: "SKU-RICE", Qty: 3}},
	})
	require.NoError(t, err)

	available, err = svc.Available(ctx, "SKU-TEA")
	require.NoError(t, err)
	require.Equal(t, 8.0, available)

	require.NoError(t, svc.Consume(ctx, PostingInput{
		RefModule: "dispatch",
		RefID:     "DSP-1",
		Items:     []MovementItem{{SKU: "SKU-TEA", Qty: 5}},
	}))
	available, err = svc.Available(ctx, "SKU-TEA")
	require.NoError(t, err)
	require.Equal(t, 3.0, available)

	require.NoError(t, svc.Release(ctx, PostingInput{
		RefModule: "dispatch",
		RefID:     "DSP-1",
		Items:     []MovementItem{{SKU: "SKU-TEA", Qty: 5}},
	}))
	available, err = svc.Available(ctx, "SKU-TEA")
	require.NoError(t, err)
	require.Equal(t, 8.0, available)
}

func TestConsumeRejectsShortfall(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()

	require.NoError(t, svc.PostReceipts(ctx, PostingInput{
		RefID: "GRN-1",
		Items: []MovementItem{{SKU: "SKU-TEA", Qty: 5}, {SKU: "SKU-RICE", Qty: 100}},
	}))

	err := svc.Consume(ctx, PostingInput{
		RefID: "DSP-1",
		Items: []MovementItem{{SKU: "SKU-RICE", Qty: 10}, {SKU: "SKU-TEA", Qty: 6}},
	})
	var insufficient *shared.InsufficientStockError
	require.ErrorAs(t, err, &insufficient)
	require.Equal(t, "SKU-TEA", insufficient.SKU)
	require.Equal(t, 5.0, insufficient.Available)
	require.Equal(t, 6.0, insufficient.Requested)

	// the whole posting rolled back, including the line that had cover
	bal, err := repo.GetBalance(ctx, "SKU-RICE")
	require.NoError(t, err)
	require.Equal(t, 100.0, bal.Available)
}

func TestConsumeMergesDuplicateSKUs(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	require.NoError(t, svc.PostReceipts(ctx, PostingInput{
		RefID: "GRN-1",
		Items: []MovementItem{{SKU: "SKU-TEA", Qty: 5}},
	}))

	// 3 + 3 merged to 6 against 5 available must fail as one request
	err := svc.Consume(ctx, PostingInput{
		RefID: "DSP-1",
		Items: []MovementItem{{SKU: "SKU-TEA", Qty: 3}, {SKU: "SKU-TEA", Qty: 3}},
	})
	require.True(t, shared.IsInsufficientStock(err))
}

func TestPostRejectsInvalidQuantities(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	err := svc.PostReceipts(ctx, PostingInput{RefID: "GRN-1", Items: []MovementItem{{SKU: "SKU-TEA", Qty: -1}}})
	require.True(t, errors.Is(err, ErrInvalidQuantity))

	err = svc.PostReceipts(ctx, PostingInput{RefID: "GRN-1"})
	require.True(t, shared.IsValidation(err))

	_, err = svc.Available(ctx, "")
	require.True(t, shared.IsValidation(err))
}

func TestLedgerKeepsRunningBalance(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	require.NoError(t, svc.PostReceipts(ctx, PostingInput{RefID: "GRN-1", Items: []MovementItem{{SKU: "SKU-TEA", Qty: 10}}}))
	require.NoError(t, svc.Consume(ctx, PostingInput{RefID: "DSP-1", Items: []MovementItem{{SKU: "SKU-TEA", Qty: 4}}}))
	require.NoError(t, svc.Release(ctx, PostingInput{RefID: "DSP-1", Items: []MovementItem{{SKU: "SKU-TEA", Qty: 4}}}))

	entries, err := svc.Ledger(ctx, LedgerFilter{SKU: "SKU-TEA"})
	require.NoError(t, err)
	require.Len(t, entries, 3)
	require.Equal(t, EntryTypeReceipt, entries[0].Type)
	require.Equal(t, 10.0, entries[0].Balance)
	require.Equal(t, EntryTypeDispatch, entries[1].Type)
	require.Equal(t, -4.0, entries[1].Qty)
	require.Equal(t, 6.0, entries[1].Balance)
	require.Equal(t, EntryTypeRelease, entries[2].Type)
	require.Equal(t, 10.0, entries[2].Balance)
}

func TestSnapshotReportsRequestedSKUs(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	require.NoError(t, svc.PostReceipts(ctx, PostingInput{RefID: "GRN-1", Items: []MovementItem{{SKU: "SKU-TEA", Qty: 7}}}))

	snapshot, err := svc.Snapshot(ctx, []string{"SKU-TEA", "SKU-MISSING"})
	require.NoError(t, err)
	require.Equal(t, 7.0, snapshot["SKU-TEA"])
	require.Zero(t, snapshot["SKU-MISSING"])
}
