// Package store holds the tenant registry.
package store

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"notary/internal/tenant/models"
	"notary/pkg/platform/sentinel"
)

// InMemory is a read-mostly tenant registry.
type InMemory struct {
	mu      sync.RWMutex
	tenants map[string]*models.Tenant
}

func NewInMemory(tenants ...models.Tenant) *InMemory {
	s := &InMemory{tenants: make(map[string]*models.Tenant, len(tenants))}
	for i := range tenants {
		t := tenants[i]
		s.tenants[t.ID] = &t
	}
	return s
}

type registryFile struct {
	Tenants []models.Tenant `yaml:"tenants"`
}

// LoadFile reads a YAML tenant registry. An empty path yields a registry
// holding only the default tenant.
func LoadFile(path string) (*InMemory, error) {
	if path == "" {
		return NewInMemory(models.Tenant{
			ID:       models.DefaultTenantID,
			Branding: models.Branding{Name: "Core"},
		}), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tenants file: %w", err)
	}
	return Parse(raw)
}

// Parse decodes a YAML tenant registry document.
func Parse(raw []byte) (*InMemory, error) {
	var doc registryFile
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode tenants file: %w", err)
	}
	seen := make(map[string]bool, len(doc.Tenants))
	for i, t := range doc.Tenants {
		id := strings.TrimSpace(t.ID)
		if id == "" {
			return nil, fmt.Errorf("tenant %d: id is required", i)
		}
		if seen[id] {
			return nil, fmt.Errorf("tenant %q: %w", id, sentinel.ErrConflict)
		}
		seen[id] = true
		doc.Tenants[i].ID = id
	}
	return NewInMemory(doc.Tenants...), nil
}

// FindByID returns sentinel.ErrNotFound for unknown tenants.
func (s *InMemory) FindByID(_ context.Context, id string) (*models.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tenants[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	copied := *t
	return &copied, nil
}

// List returns all tenants ordered by id.
func (s *InMemory) List(_ context.Context) ([]*models.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Tenant, 0, len(s.tenants))
	for _, t := range s.tenants {
		copied := *t
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
