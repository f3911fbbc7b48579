package memory

import (
	"sort"
	"sync"
	"time"

	"github.com/felixgeelhaar/agenda/internal/observe"
)

// Options configures an Engine.
type Options struct {
	// Path of the JSON document mirroring all sessions. Empty disables persistence.
	Path       string
	MaxEntries int
	Observer   *observe.Observer
	Now        func() time.Time
}

// Engine owns the session map. It is safe for concurrent use.
type Engine struct {
	mu         sync.Mutex
	sessions   map[string]*Session
	maxEntries int
	now        func() time.Time

	doc *document
	seq uint64
	obs *observe.Observer
}

// Open loads the document at opts.Path. A missing or unreadable document
// yields an empty engine; the failure is logged, never returned.
func Open(opts Options) *Engine {
	if opts.MaxEntries <= 0 {
		opts.MaxEntries = DefaultMaxEntries
	}
	if opts.Observer == nil {
		opts.Observer = observe.Nop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	e := &Engine{
		sessions:   make(map[string]*Session),
		maxEntries: opts.MaxEntries,
		now:        opts.Now,
		obs:        opts.Observer,
	}
	if opts.Path != "" {
		e.doc = &document{path: opts.Path}
		e.sessions = e.doc.load(e.obs)
	}
	return e
}

// GetOrCreateSession returns a snapshot of the session, creating it on first
// access. It always refreshes lastAccessed.
func (e *Engine) GetOrCreateSession(sessionID string) Session {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sessionLocked(sessionID).clone()
}

func (e *Engine) sessionLocked(sessionID string) *Session {
	now := e.now()
	s, ok := e.sessions[sessionID]
	if !ok {
		s = newSession(sessionID, now)
		e.sessions[sessionID] = s
	}
	s.Metadata.LastAccessed = now
	return s
}

// RecordInteraction prepends an interaction, trims the log to the configured
// bound, derives context and writes the whole store through to disk.
func (e *Engine) RecordInteraction(sessionID, operation string, args map[string]any, result any, extra map[string]any) {
	e.mu.Lock()
	s := e.sessionLocked(sessionID)

	entry := Interaction{
		Timestamp: e.now(),
		Operation: operation,
		Arguments: sanitizeArguments(args),
		Result:    sanitizeResult(result),
		Context:   copyMap(extra),
	}
	s.Interactions = append([]Interaction{entry}, s.Interactions...)
	if len(s.Interactions) > e.maxEntries {
		s.Interactions = s.Interactions[:e.maxEntries]
	}

	e.updateContext(s, operation, args, result)
	snapshot := e.encodeLocked()
	e.mu.Unlock()

	e.persist(snapshot)
}

// Cleanup evicts sessions not accessed within maxAge and persists the store.
// It returns the number of evicted sessions.
func (e *Engine) Cleanup(maxAge time.Duration) int {
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}

	e.mu.Lock()
	cutoff := e.now().Add(-maxAge)
	evicted := 0
	for id, s := range e.sessions {
		if s.Metadata.LastAccessed.Before(cutoff) {
			delete(e.sessions, id)
			evicted++
		}
	}
	snapshot := e.encodeLocked()
	e.mu.Unlock()

	e.persist(snapshot)
	if evicted > 0 {
		e.obs.Log().Info().Int("evicted", evicted).Msg("memory sessions evicted")
	}
	return evicted
}

// Save writes the store immediately and reports any failure.
func (e *Engine) Save() error {
	if e.doc == nil {
		return nil
	}
	e.mu.Lock()
	snapshot := e.encodeLocked()
	e.mu.Unlock()
	if snapshot.err != nil {
		return snapshot.err
	}
	return e.doc.write(snapshot.seq, snapshot.data)
}

// Sessions lists known sessions, most recently accessed first.
func (e *Engine) Sessions() []SessionInfo {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]SessionInfo, 0, len(e.sessions))
	for _, s := range e.sessions {
		out = append(out, SessionInfo{
			SessionID:    s.SessionID,
			Interactions: len(s.Interactions),
			Created:      s.Metadata.Created,
			LastAccessed: s.Metadata.LastAccessed,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastAccessed.After(out[j].LastAccessed) })
	return out
}

// Lookup returns a snapshot of an existing session without touching it.
func (e *Engine) Lookup(sessionID string) (Session, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.sessions[sessionID]
	if !ok {
		return Session{}, false
	}
	return s.clone(), true
}

func (e *Engine) persist(snapshot encoded) {
	if e.doc == nil {
		return
	}
	if snapshot.err == nil {
		snapshot.err = e.doc.write(snapshot.seq, snapshot.data)
	}
	if snapshot.err != nil {
		e.obs.Log().Warn().Err(snapshot.err).Str("path", e.doc.path).Msg("failed to persist memory")
	}
}

func (e *Engine) encodeLocked() encoded {
	if e.doc == nil {
		return encoded{}
	}
	e.seq++
	data, err := encodeDocument(e.sessions, e.now())
	return encoded{seq: e.seq, data: data, err: err}
}
