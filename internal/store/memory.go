package store

import (
	"context"
	"slices"
	"sync"

	"github.com/erazemk/izgubljeno/internal/model"
)

// Memory keeps items and claims in process memory. It is used in tests and
// for throwaway instances.
type Memory struct {
	mu     sync.RWMutex
	items  []model.Item
	claims []model.Claim
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{}
}

// LoadAll returns a copy of the stored items.
func (m *Memory) LoadAll(_ context.Context) ([]model.Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]model.Item{}, m.items...), nil
}

// SaveAll replaces the stored items.
func (m *Memory) SaveAll(_ context.Context, items []model.Item) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = slices.Clone(items)
	return nil
}

// LoadClaims returns a copy of the stored claims.
func (m *Memory) LoadClaims(_ context.Context) ([]model.Claim, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]model.Claim{}, m.claims...), nil
}

// SaveClaims replaces the stored claims.
func (m *Memory) SaveClaims(_ context.Context, claims []model.Claim) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.claims = slices.Clone(claims)
	return nil
}

// Save replaces items and claims together.
func (m *Memory) Save(_ context.Context, items []model.Item, claims []model.Claim) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = slices.Clone(items)
	m.claims = slices.Clone(claims)
	return nil
}
