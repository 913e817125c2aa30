package stock

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/meridian-wms/meridian-wms/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetBalance(ctx context.Context, sku string) (Balance, error)
	ListLedger(ctx context.Context, filter LedgerFilter) ([]LedgerEntry, error)
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service derives and maintains per-SKU availability from the ledger.
type Service struct {
	repo  RepositoryPort
	cache *AvailabilityCache
	audit AuditPort
}

// NewService builds Service.
func NewService(repo RepositoryPort, cache *AvailabilityCache, audit AuditPort) *Service {
	return &Service{repo: repo, cache: cache, audit: audit}
}

// Available returns the committed availability for one SKU. A SKU with no
// receipt history is zero stock, not an error.
func (s *Service) Available(ctx context.Context, sku string) (float64, error) {
	if sku == "" {
		return 0, shared.NewValidationError("sku", "required")
	}
	if cached, ok := s.cache.Get(ctx, sku); ok {
		return cached, nil
	}
	balance, err := s.repo.GetBalance(ctx, sku)
	if err != nil {
		if errors.Is(err, ErrBalanceNotFound) {
			s.cache.Set(ctx, sku, 0)
			return 0, nil
		}
		return 0, err
	}
	s.cache.Set(ctx, sku, balance.Available)
	return balance.Available, nil
}

// Snapshot returns availability for several SKUs from a single consistent
// read, bypassing the cache.
func (s *Service) Snapshot(ctx context.Context, skus []string) (map[string]float64, error) {
	result := make(map[string]float64, len(skus))
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		balances, err := tx.GetBalancesForUpdate(ctx, sortedUnique(skus))
		if err != nil {
			return err
		}
		for _, sku := range skus {
			result[sku] = balances[sku].Available
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// PostReceipts adds accepted quantities to availability. Invoked by the goods
// receipt manager after a GRN is persisted.
func (s *Service) PostReceipts(ctx context.Context, input PostingInput) error {
	return s.post(ctx, EntryTypeReceipt, input, nil)
}

// Consume subtracts dispatched quantities. The availability check and the
// write happen under the same row locks; the first shortfall aborts the whole
// posting with InsufficientStockError.
func (s *Service) Consume(ctx context.Context, input PostingInput) error {
	check := func(sku string, available, requested float64) error {
		if requested > available {
			return &shared.InsufficientStockError{SKU: sku, Available: available, Requested: requested}
		}
		return nil
	}
	return s.post(ctx, EntryTypeDispatch, input, check)
}

// Release returns previously consumed quantities, used on dispatch
// cancellation.
func (s *Service) Release(ctx context.Context, input PostingInput) error {
	return s.post(ctx, EntryTypeRelease, input, nil)
}

// Ledger lists movement history for the stock card.
func (s *Service) Ledger(ctx context.Context, filter LedgerFilter) ([]LedgerEntry, error) {
	if filter.SKU == "" {
		return nil, shared.NewValidationError("sku", "required")
	}
	return s.repo.ListLedger(ctx, filter)
}

type shortfallCheck func(sku string, available, requested float64) error

func (s *Service) post(ctx context.Context, entryType EntryType, input PostingInput, check shortfallCheck) error {
	if len(input.Items) == 0 {
		return shared.NewValidationError("items", "at least one item required")
	}
	merged := make(map[string]float64, len(input.Items))
	for _, item := range input.Items {
		if item.SKU == "" {
			return shared.NewValidationError("sku", "required")
		}
		if item.Qty <= 0 {
			return fmt.Errorf("stock: %s: %w", item.SKU, ErrInvalidQuantity)
		}
		merged[item.SKU] += item.Qty
	}
	skus := make([]string, 0, len(merged))
	for sku := range merged {
		skus = append(skus, sku)
	}
	// Lock balance rows in ascending SKU order so concurrent multi-line
	// postings cannot deadlock.
	sort.Strings(skus)

	now := time.Now().UTC()
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		balances, err := tx.GetBalancesForUpdate(ctx, skus)
		if err != nil {
			return err
		}
		for _, sku := range skus {
			qty := merged[sku]
			balance := balances[sku]
			balance.SKU = sku
			if check != nil {
				if err := check(sku, balance.Available, qty); err != nil {
					return err
				}
			}
			signed := qty
			if entryType == EntryTypeDispatch {
				signed = -qty
			}
			balance.Available += signed
			balance.UpdatedAt = now
			if err := tx.UpsertBalance(ctx, balance); err != nil {
				return err
			}
			entry := LedgerEntry{
				SKU:       sku,
				Type:      entryType,
				Qty:       signed,
				Balance:   balance.Available,
				RefModule: input.RefModule,
				RefID:     input.RefID,
				Note:      input.Note,
				ActorID:   input.ActorID,
				PostedAt:  now,
			}
			if err := tx.InsertEntry(ctx, entry); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.cache.Invalidate(ctx, skus...)
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  input.ActorID,
			Action:   fmt.Sprintf("stock:%s", entryType),
			Entity:   "stock_ledger",
			EntityID: input.RefID,
			Meta:     map[string]any{"ref_module": input.RefModule, "skus": skus},
		})
	}
	return nil
}

func sortedUnique(skus []string) []string {
	seen := make(map[string]struct{}, len(skus))
	out := make([]string, 0, len(skus))
	for _, sku := range skus {
		if _, ok := seen[sku]; ok {
			continue
		}
		seen[sku] = struct{}{}
		out = append(out, sku)
	}
	sort.Strings(out)
	return out
}
