package session

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/giantswarm/discord-oauth/pkg/logging"
)

type memoryEntry struct {
	values    map[string]json.RawMessage
	expiresAt time.Time
}

// MemoryBackend keeps sessions in process memory. Sessions are lost on
// restart and are not shared between replicas.
type MemoryBackend struct {
	mu       sync.RWMutex
	sessions map[string]memoryEntry
	now      func() time.Time

	cleanupInterval time.Duration
	stopCleanup     chan struct{}
	stopOnce        sync.Once
}

// NewMemoryBackend creates an in-memory backend and starts a background
// goroutine that evicts expired sessions. Call Stop to end it.
func NewMemoryBackend() *MemoryBackend {
	b := &MemoryBackend{
		sessions:        make(map[string]memoryEntry),
		now:             time.Now,
		cleanupInterval: 5 * time.Minute,
		stopCleanup:     make(chan struct{}),
	}

	go b.cleanupLoop()

	return b
}

// Load implements Backend.
func (b *MemoryBackend) Load(_ context.Context, cookieValue string) (string, map[string]json.RawMessage, bool, error) {
	if _, err := uuid.Parse(cookieValue); err != nil {
		return "", nil, false, nil
	}

	b.mu.RLock()
	entry, ok := b.sessions[cookieValue]
	b.mu.RUnlock()

	if !ok || !b.now().Before(entry.expiresAt) {
		return "", nil, false, nil
	}

	values := make(map[string]json.RawMessage, len(entry.values))
	for k, v := range entry.values {
		values[k] = v
	}
	return cookieValue, values, true, nil
}

// Save implements Backend.
func (b *MemoryBackend) Save(_ context.Context, id string, values map[string]json.RawMessage, maxAge time.Duration) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.sessions[id] = memoryEntry{
		values:    values,
		expiresAt: b.now().Add(maxAge),
	}
	return id, nil
}

// Destroy implements Backend.
func (b *MemoryBackend) Destroy(_ context.Context, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.sessions, id)
	return nil
}

// Count returns the number of stored sessions, expired ones included.
func (b *MemoryBackend) Count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.sessions)
}

// Stop stops the background cleanup goroutine.
func (b *MemoryBackend) Stop() {
	b.stopOnce.Do(func() { close(b.stopCleanup) })
}

func (b *MemoryBackend) cleanupLoop() {
	ticker := time.NewTicker(b.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			b.cleanup()
		case <-b.stopCleanup:
			return
		}
	}
}

func (b *MemoryBackend) cleanup() {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	count := 0
	for id, entry := range b.sessions {
		if !now.Before(entry.expiresAt) {
			delete(b.sessions, id)
			count++
		}
	}

	if count > 0 {
		logging.Debug("Session", "Cleaned up %d expired sessions", count)
	}
}
