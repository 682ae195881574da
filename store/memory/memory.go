// Package memory provides an in-process Store.
package memory

import (
	"context"
	"sync"

	"github.com/warp/fleet-engine/fleet"
	"github.com/warp/fleet-engine/interest"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu       sync.RWMutex
	fleet    fleet.Fleet
	invoices interest.Data
	saves    int
}

func New() *Memory {
	return &Memory{
		fleet:    fleet.Fleet{Settings: fleet.DefaultSettings()},
		invoices: interest.Data{Settings: interest.DefaultSettings(), NextCustomerID: 1},
	}
}

func (m *Memory) LoadFleet(_ context.Context) (fleet.Fleet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.fleet.Clone(), nil
}

func (m *Memory) SaveFleet(_ context.Context, f fleet.Fleet) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fleet = f.Clone()
	m.saves++
	return nil
}

func (m *Memory) LoadInvoices(_ context.Context) (interest.Data, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.invoices.Clone(), nil
}

func (m *Memory) SaveInvoices(_ context.Context, d interest.Data) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.invoices = d.Clone()
	m.saves++
	return nil
}

// Saves counts successful saves of either dataset.
func (m *Memory) Saves() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.saves
}

func (m *Memory) Close() error { return nil }
