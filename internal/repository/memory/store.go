package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"finance_ledger/internal/domain"
	"finance_ledger/internal/repository"
)

// Store holds the ledger entities that participate in atomic mutations:
// accounts, holdings and records share one lock so Apply can validate and
// write them as a single unit.
type Store struct {
	mu       sync.RWMutex
	accounts map[string]*domain.Account
	holdings map[string]*domain.Holding
	records  map[string]*domain.LedgerRecord
}

func NewStore() *Store {
	return &Store{
		accounts: make(map[string]*domain.Account),
		holdings: make(map[string]*domain.Holding),
		records:  make(map[string]*domain.LedgerRecord),
	}
}

// Apply validates every entity the mutation touches before writing anything,
// so a failure leaves the store untouched.
func (s *Store) Apply(ctx context.Context, m repository.Mutation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	touched := make([]*domain.Account, 0, len(m.AccountDeltas))
	for _, d := range m.AccountDeltas {
		account, exists := s.accounts[d.AccountID]
		if !exists {
			return fmt.Errorf("%w: account %s", repository.ErrNotFound, d.AccountID)
		}
		touched = append(touched, account)
	}

	var holding *domain.Holding
	if m.Holding != nil {
		h, exists := s.holdings[m.Holding.HoldingID]
		if !exists {
			return fmt.Errorf("%w: holding %s", repository.ErrNotFound, m.Holding.HoldingID)
		}
		if h.Quantity.Add(m.Holding.QuantityDelta).IsNegative() {
			return fmt.Errorf("%w: holding %s", repository.ErrSellExceedsQuantity, m.Holding.HoldingID)
		}
		holding = h
	}

	if m.CreateRecord != nil {
		if _, exists := s.records[m.CreateRecord.ID]; exists {
			return fmt.Errorf("%w: record %s", repository.ErrDuplicate, m.CreateRecord.ID)
		}
	}
	if m.DeleteRecordID != "" {
		if _, exists := s.records[m.DeleteRecordID]; !exists {
			return fmt.Errorf("%w: record %s", repository.ErrNotFound, m.DeleteRecordID)
		}
	}

	// All checks passed, commit the whole unit.
	now := time.Now()
	for i, d := range m.AccountDeltas {
		touched[i].Balance = touched[i].Balance.Add(d.Delta)
		touched[i].LastActivityAt = now
	}
	if m.Holding != nil {
		holding.Quantity = holding.Quantity.Add(m.Holding.QuantityDelta)
		if m.Holding.SetAvgCost != nil {
			holding.AvgCost = *m.Holding.SetAvgCost
		}
		holding.UpdatedAt = now
	}
	if m.CreateRecord != nil {
		record := *m.CreateRecord
		s.records[record.ID] = &record
	}
	if m.DeleteRecordID != "" {
		delete(s.records, m.DeleteRecordID)
	}

	return nil
}
