package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Repository is the persistence contract under the Store. Writes are
// all-or-nothing per record; ListByDevice returns most-recent first.
type Repository interface {
	Insert(ctx context.Context, rec Record) error
	Update(ctx context.Context, rec Record) error
	ListByDevice(ctx context.Context, deviceID string, limit int) ([]Record, error)
}

// InMemoryRepository keeps records in process memory. It backs tests and the
// no-database fallback mode.
type InMemoryRepository struct {
	mu      sync.RWMutex
	records map[string]Record
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{records: make(map[string]Record)}
}

func (r *InMemoryRepository) Insert(ctx context.Context, rec Record) error {
	if strings.TrimSpace(rec.ID) == "" {
		return fmt.Errorf("%w: record id is empty", ErrMemory)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.records[rec.ID]; exists {
		return fmt.Errorf("%w: duplicate record id=%s", ErrMemory, rec.ID)
	}
	r.records[rec.ID] = cloneRecord(rec)
	return nil
}

func (r *InMemoryRepository) Update(ctx context.Context, rec Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.records[rec.ID]; !exists {
		return fmt.Errorf("%w: record id=%s not found", ErrMemory, rec.ID)
	}
	r.records[rec.ID] = cloneRecord(rec)
	return nil
}

func (r *InMemoryRepository) ListByDevice(ctx context.Context, deviceID string, limit int) ([]Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Record, 0, len(r.records))
	for _, rec := range r.records {
		if rec.DeviceID == deviceID {
			out = append(out, cloneRecord(rec))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
