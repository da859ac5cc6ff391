// Package reportstore persists QC reports behind a small key/value style
// interface with Redis, SQLite, Postgres and in-memory backends.
package reportstore

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/sports-qc/internal/model"
)

// KeyPrefix namespaces report keys.
const KeyPrefix = "qc:report:"

// DefaultTTL is how long reports are kept when no TTL is configured.
const DefaultTTL = 30 * 24 * time.Hour

// Key returns the storage key for a report id.
func Key(id string) string {
	return KeyPrefix + id
}

// Store persists reports. Get returns (nil, nil) when the report does not
// exist or has expired.
type Store interface {
	Save(ctx context.Context, r *model.Report) error
	Get(ctx context.Context, id string) (*model.Report, error)
	// ListRecent returns up to limit report ids starting with prefix, newest
	// first.
	ListRecent(ctx context.Context, prefix string, limit int) ([]string, error)
	Close() error
}

func encode(r *model.Report) ([]byte, error) {
	if r == nil || r.ID == "" {
		return nil, eris.New("reportstore: report has no id")
	}
	b, err := json.Marshal(r)
	if err != nil {
		return nil, eris.Wrapf(err, "reportstore: marshal report %s", r.ID)
	}
	return b, nil
}

func decode(id string, b []byte) (*model.Report, error) {
	var r model.Report
	if err := json.Unmarshal(b, &r); err != nil {
		return nil, eris.Wrapf(err, "reportstore: unmarshal report %s", id)
	}
	return &r, nil
}

// newestFirst sorts report ids descending. Ids carry a millisecond
// timestamp after the "qc_" prefix, so this is chronological for ids of
// equal length.
func newestFirst(ids []string, limit int) []string {
	sort.Slice(ids, func(i, j int) bool {
		if len(ids[i]) != len(ids[j]) {
			return len(ids[i]) > len(ids[j])
		}
		return ids[i] > ids[j]
	})
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	return ids
}

// MemoryStore keeps reports in process. It is used when no backend is
// configured and in tests.
type MemoryStore struct {
	mu      sync.RWMutex
	reports map[string][]byte
}

// NewMemory creates an empty MemoryStore.
func NewMemory() *MemoryStore {
	return &MemoryStore{reports: make(map[string][]byte)}
}

// Save stores a copy of r.
func (m *MemoryStore) Save(_ context.Context, r *model.Report) error {
	b, err := encode(r)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.reports[r.ID] = b
	m.mu.Unlock()
	return nil
}

// Get returns a copy of the stored report.
func (m *MemoryStore) Get(_ context.Context, id string) (*model.Report, error) {
	m.mu.RLock()
	b, ok := m.reports[id]
	m.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	return decode(id, b)
}

// ListRecent returns stored ids matching prefix, newest first.
func (m *MemoryStore) ListRecent(_ context.Context, prefix string, limit int) ([]string, error) {
	m.mu.RLock()
	var ids []string
	for id := range m.reports {
		if strings.HasPrefix(id, prefix) {
			ids = append(ids, id)
		}
	}
	m.mu.RUnlock()
	return newestFirst(ids, limit), nil
}

// Close is a no-op.
func (m *MemoryStore) Close() error { return nil }
