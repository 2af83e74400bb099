package geofence

import (
	"context"
	"log/slog"
	"sort"
	"sync"
)

// MemoryRegistry is an in-process Registry. It keeps the registered
// geofences in a map keyed by id.
//
// Thread-safety: safe for concurrent use.
type MemoryRegistry struct {
	mu        sync.RWMutex
	geofences map[string]Geofence
}

// NewMemoryRegistry creates an empty registry.
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{geofences: make(map[string]Geofence)}
}

// Add registers or replaces g.
func (m *MemoryRegistry) Add(_ context.Context, g Geofence) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.geofences[g.ID] = g
	slog.Debug("geofence added", "id", g.ID, "latitude", g.Latitude, "longitude", g.Longitude, "radius", g.RadiusMeters)
	return nil
}

// RemoveAll clears the registry.
func (m *MemoryRegistry) RemoveAll(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	clear(m.geofences)
	return nil
}

// IDs returns the registered ids, sorted.
func (m *MemoryRegistry) IDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.geofences))
	for id := range m.geofences {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Get returns the geofence registered under id.
func (m *MemoryRegistry) Get(id string) (Geofence, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	g, ok := m.geofences[id]
	return g, ok
}
