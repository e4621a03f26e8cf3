package survey

import (
	"context"
	"sync"
	"time"

	coreconfig "github.com/m3rciful/surveybot/core/config"
)

// memoryStore is an in-memory Store implementation for tests and development.
// A single mutex serializes all operations, which also provides the per-key
// transition serialization the contract requires.
type memoryStore struct {
	mu       sync.Mutex
	strategy string
	nextID   int64
	byKey    map[string][]*Record
	now      func() time.Time
}

// NewMemoryStore constructs an in-memory Store using the given strategy
// (config.StrategyMulti or config.StrategySingle).
func NewMemoryStore(strategy string) Store {
	return &memoryStore{
		strategy: strategy,
		nextID:   1,
		byKey:    make(map[string][]*Record),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (m *memoryStore) findActiveLocked(userKey string) *Record {
	records := m.byKey[userKey]
	if m.strategy == coreconfig.StrategySingle {
		if len(records) == 0 {
			return nil
		}
		return records[0]
	}
	// Most recent non-completed; records are appended in creation order.
	for i := len(records) - 1; i >= 0; i-- {
		if !records[i].Status.Terminal() {
			return records[i]
		}
	}
	return nil
}

// FindActive implements Store.
func (m *memoryStore) FindActive(_ context.Context, userKey string) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec := m.findActiveLocked(userKey); rec != nil {
		clone := *rec
		return &clone, nil
	}
	return nil, nil
}

// Create implements Store.
func (m *memoryStore) Create(_ context.Context, userKey string) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.strategy == coreconfig.StrategySingle {
		if records := m.byKey[userKey]; len(records) > 0 {
			clone := *records[0]
			return &clone, nil
		}
	}

	now := m.now()
	rec := &Record{
		ID:        m.nextID,
		UserKey:   userKey,
		Status:    StatusStarted,
		CreatedAt: now,
		UpdatedAt: now,
	}
	m.nextID++
	m.byKey[userKey] = append(m.byKey[userKey], rec)

	clone := *rec
	return &clone, nil
}

// SaveAnswer implements Store.
func (m *memoryStore) SaveAnswer(_ context.Context, userKey, answer string, expected Status) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec := m.findActiveLocked(userKey)
	if rec == nil {
		return nil, nil
	}
	if rec.Status != expected {
		clone := *rec
		return &clone, ErrStatusChanged
	}

	next, slot, ok := Transition(expected)
	if ok {
		text := answer
		switch slot {
		case 1:
			rec.Answer1 = &text
		case 2:
			rec.Answer2 = &text
		}
		rec.Status = next
		rec.UpdatedAt = m.now()
	}

	clone := *rec
	return &clone, nil
}

// ExportAll implements Store.
func (m *memoryStore) ExportAll(_ context.Context) ([]Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Record
	for _, records := range m.byKey {
		for _, rec := range records {
			out = append(out, *rec)
		}
	}
	return out, nil
}
