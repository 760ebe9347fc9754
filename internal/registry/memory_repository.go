package registry

import (
	"context"
	"sync"
)

type memoryRepository struct {
	mu      sync.RWMutex
	serial  uint32
	records map[string]Record
	tokens  map[string]TokenInfo
}

// NewMemoryRepository constructs an in-memory repository for development and tests.
func NewMemoryRepository() Repository {
	return &memoryRepository{
		records: make(map[string]Record),
		tokens:  make(map[string]TokenInfo),
	}
}

func (r *memoryRepository) Record(_ context.Context, issuer string) (Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[issuer]
	if !ok {
		return Record{}, ErrNotFound
	}
	return rec, nil
}

func (r *memoryRepository) SaveRecord(_ context.Context, rec Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[rec.Issuer] = rec
	return nil
}

func (r *memoryRepository) NextSerial(_ context.Context) (uint32, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.serial++
	return r.serial, nil
}

func (r *memoryRepository) Token(_ context.Context, code string) (TokenInfo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	info, ok := r.tokens[code]
	if !ok {
		return TokenInfo{}, ErrNotFound
	}
	return info, nil
}

func (r *memoryRepository) SaveToken(_ context.Context, info TokenInfo) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tokens[info.Code] = info
	return nil
}
