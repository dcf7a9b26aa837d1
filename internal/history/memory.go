package history

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore keeps the most recent records in memory, dropping the oldest
// once capacity is reached.
type MemoryStore struct {
	mu       sync.RWMutex
	records  []Record
	ids      map[uuid.UUID]struct{}
	capacity int
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates a MemoryStore holding at most capacity records.
// A non-positive capacity means MaxListLimit.
func NewMemoryStore(capacity int) *MemoryStore {
	if capacity <= 0 {
		capacity = MaxListLimit
	}
	return &MemoryStore{
		records:  make([]Record, 0, capacity),
		ids:      make(map[uuid.UUID]struct{}),
		capacity: capacity,
	}
}

// Save implements Store
func (s *MemoryStore) Save(ctx context.Context, record Record) error {
	if err := record.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.ids[record.ID]; ok {
		return ErrDuplicate
	}
	if len(s.records) == s.capacity {
		delete(s.ids, s.records[0].ID)
		s.records = s.records[1:]
	}
	s.records = append(s.records, record)
	s.ids[record.ID] = struct{}{}
	return nil
}

// List implements Store. Records are returned in reverse insertion order.
func (s *MemoryStore) List(ctx context.Context, limit int) ([]Record, error) {
	limit = normalizeLimit(limit)

	s.mu.RLock()
	defer s.mu.RUnlock()

	n := min(limit, len(s.records))
	result := make([]Record, 0, n)
	for i := len(s.records) - 1; i >= len(s.records)-n; i-- {
		result = append(result, s.records[i])
	}
	return result, nil
}
