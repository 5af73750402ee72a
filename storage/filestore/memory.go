package filestore

import (
	"sync"

	"github.com/GanpatGang/GanpatStudy/core/material"
)

type memStore struct {
	mu      sync.RWMutex
	records []material.Material
}

var _ material.Store = (*memStore)(nil)

// NewMemStore returns a volatile in-memory Store, used in tests and as a
// stand-in when no store path is configured.
func NewMemStore() material.Store {
	return &memStore{records: []material.Material{}}
}

func (s *memStore) Load() ([]material.Material, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]material.Material, len(s.records))
	copy(out, s.records)
	return out, nil
}

func (s *memStore) Save(records []material.Material) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = make([]material.Material, len(records))
	copy(s.records, records)
	return nil
}
