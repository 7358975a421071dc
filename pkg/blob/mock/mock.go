// Package mock provides an in-memory [blob.Store] for tests.
package mock

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Tavasya/speakdrill/pkg/blob"
)

// Store is an in-memory blob store. The zero value is not usable; use [New].
// PutErr, when non-nil, makes every Put fail.
type Store struct {
	PutErr error

	mu      sync.Mutex
	objects map[string][]byte
	puts    int
}

var _ blob.Store = (*Store)(nil)

// New creates an empty in-memory store.
func New() *Store {
	return &Store{objects: make(map[string][]byte)}
}

// Put implements [blob.Store].
func (s *Store) Put(_ context.Context, key string, data []byte, contentType string) (blob.Object, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.puts++
	if s.PutErr != nil {
		return blob.Object{}, s.PutErr
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	s.objects[key] = cp
	return blob.Object{
		Key:         key,
		Ref:         "mem://" + key,
		Size:        int64(len(data)),
		ContentType: contentType,
	}, nil
}

// Get implements [blob.Store].
func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[key]
	if !ok {
		return nil, fmt.Errorf("mock: no object %q", key)
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	return cp, nil
}

func refKey(ref string) (string, error) {
	key, ok := strings.CutPrefix(ref, "mem://")
	if !ok || key == "" {
		return "", fmt.Errorf("mock: foreign ref %q", ref)
	}
	return key, nil
}

// PublicURL implements [blob.Store].
func (s *Store) PublicURL(ref string) (string, error) {
	key, err := refKey(ref)
	if err != nil {
		return "", err
	}
	return "https://mock.blob/" + key, nil
}

// SignedURL implements [blob.Store]. The TTL is embedded in the query so
// tests can assert it was threaded through.
func (s *Store) SignedURL(_ context.Context, ref string, ttl time.Duration) (string, error) {
	key, err := refKey(ref)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("https://mock.blob/%s?expires=%d", key, int64(ttl.Seconds())), nil
}

// Delete implements [blob.Store].
func (s *Store) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	return nil
}

// Len returns the number of stored objects.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}

// Puts returns the number of Put calls, including failed ones.
func (s *Store) Puts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.puts
}

// Keys returns the stored object keys in unspecified order.
func (s *Store) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.objects))
	for k := range s.objects {
		keys = append(keys, k)
	}
	return keys
}
