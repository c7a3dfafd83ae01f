// Package history keeps the short list of recently submitted hosts.
package history

import "sync"

// DefaultCapacity is how many hosts the on-demand history keeps.
const DefaultCapacity = 3

// Recent is a bounded, deduplicated, most-recent-first list of host strings.
type Recent struct {
	mu       sync.Mutex
	capacity int
	items    []string
}

// NewRecent creates a history seeded with initial, which is trimmed to capacity
// after dropping duplicates and empty strings.
func NewRecent(capacity int, initial []string) *Recent {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	r := &Recent{capacity: capacity}
	for i := len(initial) - 1; i >= 0; i-- {
		if initial[i] != "" {
			r.pushLocked(initial[i])
		}
	}
	return r
}

// Push moves host to the front, inserting it if absent, and returns the new list.
func (r *Recent) Push(host string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pushLocked(host)
	return r.snapshotLocked()
}

// Items returns a copy of the list, most recent first.
func (r *Recent) Items() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

func (r *Recent) pushLocked(host string) {
	for i, existing := range r.items {
		if existing == host {
			r.items = append(r.items[:i], r.items[i+1:]...)
			break
		}
	}
	r.items = append([]string{host}, r.items...)
	if len(r.items) > r.capacity {
		r.items = r.items[:r.capacity]
	}
}

func (r *Recent) snapshotLocked() []string {
	out := make([]string, len(r.items))
	copy(out, r.items)
	return out
}
