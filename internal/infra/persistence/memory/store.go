// Package memory keeps corpus snapshots in process memory. Payloads go
// through the same bucket encoding as the SQL stores.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"vitisexpr/internal/infra/persistence/buckets"
	"vitisexpr/pkg/expression"
)

// Store is a concurrency-safe in-memory snapshot store.
type Store struct {
	mu    sync.RWMutex
	state map[string]map[string][]byte
	now   func() time.Time
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{state: make(map[string]map[string][]byte), now: time.Now}
}

func (s *Store) Save(_ context.Context, name string, snap expression.Snapshot) error {
	payloads, err := buckets.Encode(name, snap, s.now())
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.state[name] = payloads
	s.mu.Unlock()
	return nil
}

func (s *Store) Load(_ context.Context, name string) (expression.Snapshot, error) {
	s.mu.RLock()
	payloads := s.state[name]
	s.mu.RUnlock()
	return buckets.Decode(name, payloads)
}

func (s *Store) List(_ context.Context) ([]buckets.Info, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]buckets.Info, 0, len(s.state))
	for name, payloads := range s.state {
		info, err := buckets.DecodeInfo(payloads[buckets.Meta])
		if err != nil {
			return nil, err
		}
		info.Name = name
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) Delete(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.state[name]; !ok {
		return fmt.Errorf("%w: %s", buckets.ErrNotFound, name)
	}
	delete(s.state, name)
	return nil
}

func (s *Store) Close() error { return nil }
