package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
)

// Store is the per-visitor key-value store that the token manager, the API
// client and the profile cache keep their state in. Values are stored as
// JSON, so any value that round-trips through encoding/json can be kept.
type Store interface {
	// ID identifies the visitor's session. It is stable for the lifetime of
	// the session and changes after Clear.
	ID() string
	// Get decodes the value stored under key into dst and reports whether
	// the key was present.
	Get(key string, dst any) (bool, error)
	Set(key string, v any) error
	Delete(key string) error
	// Clear removes every key.
	Clear() error
}

// Session is the Store implementation handed to request handlers. It is
// safe for concurrent use by the goroutines serving one request.
type Session struct {
	mu      sync.Mutex
	id      string
	values  map[string]json.RawMessage
	dirty   bool
	cleared bool
}

// New returns a session with the given id and initial values. The values
// map is owned by the session afterwards.
func New(id string, values map[string]json.RawMessage) *Session {
	if values == nil {
		values = make(map[string]json.RawMessage)
	}
	return &Session{id: id, values: values}
}

// ID returns the session identifier.
func (s *Session) ID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

// Get implements Store.
func (s *Session) Get(key string, dst any) (bool, error) {
	s.mu.Lock()
	raw, ok := s.values[key]
	s.mu.Unlock()

	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return true, fmt.Errorf("decoding session value %q: %w", key, err)
	}
	return true, nil
}

// Set implements Store.
func (s *Session) Set(key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding session value %q: %w", key, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = raw
	s.dirty = true
	return nil
}

// Delete implements Store. Deleting an absent key is not an error.
func (s *Session) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.values[key]; ok {
		delete(s.values, key)
		s.dirty = true
	}
	return nil
}

// Clear implements Store. The session is issued a new identifier when it
// is committed.
func (s *Session) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values = make(map[string]json.RawMessage)
	s.dirty = true
	s.cleared = true
	return nil
}

// Keys returns the stored keys in sorted order.
func (s *Session) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.values))
	for k := range s.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Modified reports whether the session changed since it was loaded.
func (s *Session) Modified() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirty
}

// snapshot returns a copy of the values together with the modification
// flags and resets them.
func (s *Session) snapshot() (values map[string]json.RawMessage, dirty, cleared bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	values = make(map[string]json.RawMessage, len(s.values))
	for k, v := range s.values {
		values[k] = v
	}
	dirty, cleared = s.dirty, s.cleared
	s.dirty, s.cleared = false, false
	return values, dirty, cleared
}

func (s *Session) setID(id string) {
	s.mu.Lock()
	s.id = id
	s.mu.Unlock()
}

type contextKey struct{}

// NewContext returns a copy of ctx carrying sess.
func NewContext(ctx context.Context, sess *Session) context.Context {
	return context.WithValue(ctx, contextKey{}, sess)
}

// FromContext returns the session stored in ctx by the middleware.
func FromContext(ctx context.Context) (*Session, bool) {
	sess, ok := ctx.Value(contextKey{}).(*Session)
	return sess, ok && sess != nil
}
