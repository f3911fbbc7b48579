package confirm

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// PendingOperation is a write captured but not yet applied.
type PendingOperation struct {
	ID        string         `json:"id"`
	Operation string         `json:"operation"`
	Arguments map[string]any `json:"arguments"`
	CreatedAt time.Time      `json:"createdAt"`
}

// PendingStore owns pending writes. The alias only references the id of the
// most recently created entry; the entries table owns the payloads.
type PendingStore struct {
	mu      sync.Mutex
	entries map[string]PendingOperation
	alias   string
	counter uint64
	now     func() time.Time
}

func NewPendingStore(now func() time.Time) *PendingStore {
	if now == nil {
		now = time.Now
	}
	return &PendingStore{
		entries: make(map[string]PendingOperation),
		now:     now,
	}
}

// Create stores a pending write, points the alias at it and returns its id.
func (p *PendingStore) Create(operation string, args map[string]any) PendingOperation {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.counter++
	now := p.now()
	op := PendingOperation{
		ID:        fmt.Sprintf("op_%d_%d", now.UnixMilli(), p.counter),
		Operation: operation,
		Arguments: copyArgs(args),
		CreatedAt: now,
	}
	p.entries[op.ID] = op
	p.alias = op.ID
	return op
}

// Resolve looks an entry up by id.
func (p *PendingStore) Resolve(id string) (PendingOperation, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	op, ok := p.entries[id]
	return op, ok
}

// Latest returns the entry the alias points at without consuming anything.
func (p *PendingStore) Latest() (PendingOperation, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.alias == "" {
		return PendingOperation{}, false
	}
	op, ok := p.entries[p.alias]
	return op, ok
}

// HasAlias reports whether an alias is set, even a stale one.
func (p *PendingStore) HasAlias() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.alias != ""
}

// TakeLatest consumes the alias and removes the entry it points at in one
// step. A stale alias is consumed and reported as not found.
func (p *PendingStore) TakeLatest() (PendingOperation, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.alias == "" {
		return PendingOperation{}, false
	}
	id := p.alias
	p.alias = ""
	op, ok := p.entries[id]
	if ok {
		delete(p.entries, id)
	}
	return op, ok
}

// Take removes an entry by id and returns it. The alias is left untouched.
func (p *PendingStore) Take(id string) (PendingOperation, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	op, ok := p.entries[id]
	if ok {
		delete(p.entries, id)
	}
	return op, ok
}

// Remove deletes an entry. Removing an unknown id is a no-op.
func (p *PendingStore) Remove(id string) {
	p.mu.Lock()
	delete(p.entries, id)
	p.mu.Unlock()
}

// Sweep removes entries older than ttl and returns their ids.
// The alias is not timestamp-checked; it goes stale with its entry.
func (p *PendingStore) Sweep(ttl time.Duration) []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	cutoff := p.now().Add(-ttl)
	var expired []string
	for id, op := range p.entries {
		if op.CreatedAt.Before(cutoff) {
			delete(p.entries, id)
			expired = append(expired, id)
		}
	}
	sort.Strings(expired)
	return expired
}

// Clear drops every entry and the alias. It returns how many entries were held.
func (p *PendingStore) Clear() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := len(p.entries)
	p.entries = make(map[string]PendingOperation)
	p.alias = ""
	return n
}

func (p *PendingStore) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries)
}

// List returns pending entries, oldest first.
func (p *PendingStore) List() []PendingOperation {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]PendingOperation, 0, len(p.entries))
	for _, op := range p.entries {
		out = append(out, op)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func copyArgs(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
