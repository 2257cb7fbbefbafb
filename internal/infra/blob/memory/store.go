// Package memory implements an in-memory blob Store for tests and for
// corpora assembled in process.
package memory

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"io/fs"
	"maps"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"vitisexpr/internal/blob/core"
)

type object struct {
	info core.Info
	data []byte
}

// Store keeps objects in a map with a sorted key index, so prefix listing
// and directory probes are range scans.
type Store struct {
	mu   sync.RWMutex
	objs map[string]object
	keys []string
	now  func() time.Time
}

// New returns an empty store.
func New() *Store {
	return &Store{objs: make(map[string]object), now: func() time.Time { return time.Now().UTC() }}
}

func (s *Store) Driver() core.Driver { return core.DriverMemory }

// Location returns a memory:// locator for key.
func (s *Store) Location(key string) string { return "memory://" + key }

// Put stores a new object. Keys are write-once.
func (s *Store) Put(_ context.Context, key string, r io.Reader, opts core.PutOptions) (core.Info, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return core.Info{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.objs[key]; exists {
		return core.Info{}, fmt.Errorf("blob %s already exists", key)
	}
	info := core.Info{
		Key:          key,
		Size:         int64(len(data)),
		ContentType:  opts.ContentType,
		Metadata:     maps.Clone(opts.Metadata),
		LastModified: s.now(),
	}
	s.objs[key] = object{info: info, data: data}
	i := sort.SearchStrings(s.keys, key)
	s.keys = slices.Insert(s.keys, i, key)
	return info, nil
}

func (s *Store) Get(_ context.Context, key string) (core.Info, io.ReadCloser, error) {
	obj, err := s.lookup(key)
	if err != nil {
		return core.Info{}, nil, err
	}
	return obj.info, io.NopCloser(bytes.NewReader(obj.data)), nil
}

func (s *Store) Head(_ context.Context, key string) (core.Info, error) {
	obj, err := s.lookup(key)
	return obj.info, err
}

// Exists reports whether any object is stored below dir.
func (s *Store) Exists(_ context.Context, dir string) (bool, error) {
	prefix := strings.TrimSuffix(dir, "/") + "/"
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := sort.SearchStrings(s.keys, prefix)
	return i < len(s.keys) && strings.HasPrefix(s.keys[i], prefix), nil
}

// List returns objects whose key starts with prefix, in key order.
func (s *Store) List(_ context.Context, prefix string) ([]core.Info, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []core.Info
	for i := sort.SearchStrings(s.keys, prefix); i < len(s.keys) && strings.HasPrefix(s.keys[i], prefix); i++ {
		info := s.objs[s.keys[i]].info
		info.Metadata = maps.Clone(info.Metadata)
		out = append(out, info)
	}
	return out, nil
}

// lookup returns a copy of the object so callers cannot mutate stored bytes.
func (s *Store) lookup(key string) (object, error) {
	s.mu.RLock()
	obj, ok := s.objs[key]
	s.mu.RUnlock()
	if !ok {
		return object{}, fmt.Errorf("blob %s: %w", key, fs.ErrNotExist)
	}
	obj.info.Metadata = maps.Clone(obj.info.Metadata)
	obj.data = bytes.Clone(obj.data)
	return obj, nil
}
