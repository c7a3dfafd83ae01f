// Package registry holds the set of monitored host entries.
package registry

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"pingmonitor/internal/models"
)

// Registry exclusively owns every HostEntry. All accessors hand out copies.
type Registry struct {
	mu      sync.RWMutex
	entries []models.HostEntry
	newID   func() string
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{newID: uuid.NewString}
}

// Add validates and appends a new enabled entry.
func (r *Registry) Add(host string, interval time.Duration) (models.HostEntry, error) {
	host, err := models.ValidateHostInput(host, interval)
	if err != nil {
		return models.HostEntry{}, err
	}
	entry := models.HostEntry{
		ID:       r.newID(),
		Host:     host,
		Interval: models.Duration(interval),
		Enabled:  true,
	}

	r.mu.Lock()
	r.entries = append(r.entries, entry)
	r.mu.Unlock()
	return entry.Clone(), nil
}

// Remove deletes the entry with id and reports whether it existed.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx := r.indexLocked(id)
	if idx < 0 {
		return false
	}
	r.entries = append(r.entries[:idx], r.entries[idx+1:]...)
	return true
}

// Update replaces the entry with the same ID. It returns false when no such entry exists.
func (r *Registry) Update(entry models.HostEntry) (bool, error) {
	host, err := models.ValidateHostInput(entry.Host, entry.Interval.Std())
	if err != nil {
		return false, err
	}
	entry.Host = host

	r.mu.Lock()
	defer r.mu.Unlock()

	idx := r.indexLocked(entry.ID)
	if idx < 0 {
		return false, nil
	}
	r.entries[idx] = entry.Clone()
	return true, nil
}

// SetLastResult writes a measurement into an entry without touching its
// configuration. It returns false when the entry has been removed.
func (r *Registry) SetLastResult(id string, m models.Measurement) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx := r.indexLocked(id)
	if idx < 0 {
		return false
	}
	result := m.Clone()
	r.entries[idx].LastResult = &result
	return true
}

// Lookup returns a copy of the entry with id.
func (r *Registry) Lookup(id string) (models.HostEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	idx := r.indexLocked(id)
	if idx < 0 {
		return models.HostEntry{}, false
	}
	return r.entries[idx].Clone(), true
}

// Entries returns a copy of all entries in insertion order.
func (r *Registry) Entries() []models.HostEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.HostEntry, len(r.entries))
	for i, e := range r.entries {
		out[i] = e.Clone()
	}
	return out
}

// Len returns the number of entries.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Replace swaps in a loaded entry set. Entries that fail validation are
// dropped and returned; missing IDs are assigned.
func (r *Registry) Replace(entries []models.HostEntry) []models.HostEntry {
	kept := make([]models.HostEntry, 0, len(entries))
	var rejected []models.HostEntry
	seen := make(map[string]struct{}, len(entries))

	for _, e := range entries {
		host, err := models.ValidateHostInput(e.Host, e.Interval.Std())
		if err != nil {
			rejected = append(rejected, e)
			continue
		}
		e.Host = host
		if _, dup := seen[e.ID]; e.ID == "" || dup {
			e.ID = r.newID()
		}
		seen[e.ID] = struct{}{}
		kept = append(kept, e.Clone())
	}

	r.mu.Lock()
	r.entries = kept
	r.mu.Unlock()
	return rejected
}

func (r *Registry) indexLocked(id string) int {
	for i := range r.entries {
		if r.entries[i].ID == id {
			return i
		}
	}
	return -1
}
