// Package store persists contracts and their signatures.
package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"notary/internal/contracts/models"
	"notary/pkg/platform/sentinel"
)

// InMemory is a mutex-guarded store for local runs and tests.
type InMemory struct {
	mu        sync.RWMutex
	contracts map[string]*models.Contract
}

func NewInMemory() *InMemory {
	return &InMemory{contracts: make(map[string]*models.Contract)}
}

// Create inserts a contract. Returns sentinel.ErrConflict when the id is taken.
func (s *InMemory) Create(_ context.Context, c *models.Contract) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.contracts[c.ContractID]; exists {
		return fmt.Errorf("contract %s: %w", c.ContractID, sentinel.ErrConflict)
	}
	stored := cloneContract(c)
	stored.Signatures = nil
	s.contracts[c.ContractID] = stored
	return nil
}

// GetContractWithSignatures returns the contract with signatures in signing
// order. The tenant filter applies only when tenantID is non-empty.
func (s *InMemory) GetContractWithSignatures(_ context.Context, contractID, tenantID string) (*models.Contract, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.contracts[contractID]
	if !ok || (tenantID != "" && c.TenantID != tenantID) {
		return nil, sentinel.ErrNotFound
	}
	return cloneContract(c), nil
}

// FindSignature looks up a signer's signature, matching addresses case-insensitively.
func (s *InMemory) FindSignature(_ context.Context, contractID, signerAddress string) (*models.Signature, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.contracts[contractID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	for _, sig := range c.Signatures {
		if strings.EqualFold(sig.SignerAddress, signerAddress) {
			copied := sig
			return &copied, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

// AddSignature appends sig and recomputes the contract status atomically.
func (s *InMemory) AddSignature(_ context.Context, sig *models.Signature) (models.Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.contracts[sig.ContractID]
	if !ok {
		return "", sentinel.ErrNotFound
	}
	if c.Status == models.StatusFullySigned {
		return "", fmt.Errorf("contract %s: %w", c.ContractID, sentinel.ErrInvalidState)
	}
	for _, existing := range c.Signatures {
		if strings.EqualFold(existing.SignerAddress, sig.SignerAddress) {
			return "", fmt.Errorf("signer %s: %w", sig.SignerAddress, sentinel.ErrConflict)
		}
	}
	c.Signatures = append(c.Signatures, *sig)
	c.Status = models.StatusFor(len(c.Signatures), c.RequiredSignatures)
	return c.Status, nil
}

// List returns a page of contracts, newest first, and the total match count.
func (s *InMemory) List(_ context.Context, filter models.ListFilter) ([]*models.Contract, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]*models.Contract, 0, len(s.contracts))
	for _, c := range s.contracts {
		if filter.TenantID != "" && c.TenantID != filter.TenantID {
			continue
		}
		if filter.Status != "" && c.Status != filter.Status {
			continue
		}
		matched = append(matched, c)
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ContractID < matched[j].ContractID
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := len(matched)
	start := min(filter.Offset, total)
	end := total
	if filter.Limit > 0 {
		end = min(start+filter.Limit, total)
	}
	page := make([]*models.Contract, 0, end-start)
	for _, c := range matched[start:end] {
		page = append(page, cloneContract(c))
	}
	return page, total, nil
}

func cloneContract(c *models.Contract) *models.Contract {
	copied := *c
	copied.Signers = append([]string(nil), c.Signers...)
	copied.Signatures = append([]models.Signature(nil), c.Signatures...)
	return &copied
}

// LockingTx serialises units of work against the in-memory store.
type LockingTx struct {
	mu sync.Mutex
}

func (t *LockingTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return fn(ctx)
}
