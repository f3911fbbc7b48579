package memory

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/felixgeelhaar/agenda/internal/observe"
)

// storedDocument is the on-disk layout: every session, rewritten whole.
type storedDocument struct {
	Sessions map[string]*Session `json:"sessions"`
	SavedAt  time.Time           `json:"savedAt"`
}

type encoded struct {
	seq  uint64
	data []byte
	err  error
}

type document struct {
	mu      sync.Mutex
	path    string
	written uint64
}

func encodeDocument(sessions map[string]*Session, now time.Time) ([]byte, error) {
	data, err := json.MarshalIndent(storedDocument{Sessions: sessions, SavedAt: now}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode memory document: %w", err)
	}
	return data, nil
}

func (d *document) load(obs *observe.Observer) map[string]*Session {
	empty := make(map[string]*Session)

	data, err := os.ReadFile(d.path) // #nosec G304
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			obs.Log().Info().Str("path", d.path).Msg("no memory document, starting empty")
		} else {
			obs.Log().Warn().Err(err).Str("path", d.path).Msg("failed to read memory document, starting empty")
		}
		return empty
	}

	var doc storedDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		obs.Log().Warn().Err(err).Str("path", d.path).Msg("corrupt memory document, starting empty")
		return empty
	}

	for id, s := range doc.Sessions {
		if s == nil {
			delete(doc.Sessions, id)
			continue
		}
		if s.SessionID == "" {
			s.SessionID = id
		}
		s.normalize()
	}
	if doc.Sessions == nil {
		return empty
	}
	obs.Log().Info().Int("sessions", len(doc.Sessions)).Str("path", d.path).Msg("memory document loaded")
	return doc.Sessions
}

// write replaces the document atomically. Snapshots older than the last one
// written are dropped so concurrent writers cannot roll the file back.
func (d *document) write(seq uint64, data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if seq != 0 && seq <= d.written {
		return nil
	}

	dir := filepath.Dir(d.path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("failed to create memory directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".memory-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write memory document: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close memory document: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0600); err != nil {
		return fmt.Errorf("failed to set memory document permissions: %w", err)
	}
	if err := os.Rename(tmp.Name(), d.path); err != nil {
		return fmt.Errorf("failed to replace memory document: %w", err)
	}

	if seq > d.written {
		d.written = seq
	}
	return nil
}
