package store

import (
	"context"
	"sort"
	"sync"
	"time"
)

// NewMemoryStore returns a Store kept entirely in process memory.
func NewMemoryStore() *Store {
	return &Store{
		Events: newMemRepo(func(a, b *Event) bool { return a.StartTime.Before(b.StartTime) }),
		Lists:  newMemRepo(func(a, b *List) bool { return a.Name < b.Name }),
		Items:  newMemRepo(func(a, b *Item) bool { return a.CreatedAt.Before(b.CreatedAt) }),
	}
}

type memRepo[T Entity[T]] struct {
	mu      sync.RWMutex
	records map[string]T
	less    func(a, b T) bool
	now     func() time.Time
}

func newMemRepo[T Entity[T]](less func(a, b T) bool) *memRepo[T] {
	return &memRepo[T]{
		records: make(map[string]T),
		less:    less,
		now:     time.Now,
	}
}

func (r *memRepo[T]) Create(_ context.Context, rec T) (T, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c := rec.Clone()
	if c.GetID() == "" {
		c.SetID(NewID())
	}
	c.Touch(r.now().UTC())
	r.records[c.GetID()] = c
	return c.Clone(), nil
}

func (r *memRepo[T]) FindByID(_ context.Context, id string) (T, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.records[id]
	if !ok {
		var zero T
		return zero, ErrNotFound
	}
	return rec.Clone(), nil
}

func (r *memRepo[T]) Find(_ context.Context, f Filter) ([]T, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []T
	for _, rec := range r.records {
		if Match(rec, f) {
			out = append(out, rec.Clone())
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return r.less(out[i], out[j]) })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (r *memRepo[T]) UpdateByID(_ context.Context, id string, p Patch) (T, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var zero T
	rec, ok := r.records[id]
	if !ok {
		return zero, ErrNotFound
	}
	c := rec.Clone()
	if err := c.Apply(p); err != nil {
		return zero, err
	}
	c.Touch(r.now().UTC())
	r.records[id] = c
	return c.Clone(), nil
}

func (r *memRepo[T]) DeleteByID(_ context.Context, id string) (T, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[id]
	if !ok {
		var zero T
		return zero, ErrNotFound
	}
	delete(r.records, id)
	return rec, nil
}

func (r *memRepo[T]) DeleteMany(_ context.Context, f Filter) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for id, rec := range r.records {
		if Match(rec, f) {
			delete(r.records, id)
			n++
		}
	}
	return n, nil
}
