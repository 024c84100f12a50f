package store

import (
	"sync"

	"SignalSentinel/internal/model"
)

// Store persists the position ledger and the per-key alert times.
// The two snapshots load and fail independently.
type Store interface {
	LoadPositions() (map[string]model.Position, error)
	SavePositions(positions map[string]model.Position) error
	LoadAlerts() (map[model.PairKey]float64, error)
	SaveAlerts(lastAlertAt map[model.PairKey]float64) error
}

// MemoryStore keeps snapshots in memory. Used when persistence is disabled and in tests.
type MemoryStore struct {
	mu        sync.Mutex
	Positions map[string]model.Position
	Alerts    map[model.PairKey]float64
	Saves     int
	Err       error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		Positions: make(map[string]model.Position),
		Alerts:    make(map[model.PairKey]float64),
	}
}

func (m *MemoryStore) LoadPositions() (map[string]model.Position, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string]model.Position, len(m.Positions))
	for k, p := range m.Positions {
		out[k] = p.Clone()
	}
	return out, nil
}

func (m *MemoryStore) SavePositions(positions map[string]model.Position) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return m.Err
	}
	m.Saves++
	m.Positions = make(map[string]model.Position, len(positions))
	for k, p := range positions {
		m.Positions[k] = p.Clone()
	}
	return nil
}

func (m *MemoryStore) LoadAlerts() (map[model.PairKey]float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[model.PairKey]float64, len(m.Alerts))
	for k, v := range m.Alerts {
		out[k] = v
	}
	return out, nil
}

func (m *MemoryStore) SaveAlerts(lastAlertAt map[model.PairKey]float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return m.Err
	}
	m.Saves++
	m.Alerts = make(map[model.PairKey]float64, len(lastAlertAt))
	for k, v := range lastAlertAt {
		m.Alerts[k] = v
	}
	return nil
}
