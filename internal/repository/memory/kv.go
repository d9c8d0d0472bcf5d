package memory

import (
	"context"
	"sync"
)

// KVStore is a process-local key-value store. It plays the role of browser
// local storage when no durable backend is configured.
type KVStore struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewKVStore returns an empty store.
func NewKVStore() *KVStore {
	return &KVStore{values: make(map[string]string)}
}

// Get returns the value stored under key.
func (s *KVStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok, nil
}

// Set stores value under key.
func (s *KVStore) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}

// Delete removes the given keys. Missing keys are ignored.
func (s *KVStore) Delete(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		delete(s.values, k)
	}
	return nil
}
