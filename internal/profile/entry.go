package profile

import "time"

// Entry wraps a cached value with its expiry.
type Entry[T any] struct {
	Value     T         `json:"value"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// NewEntry returns an entry for v that expires ttl after now.
func NewEntry[T any](v T, now time.Time, ttl time.Duration) Entry[T] {
	return Entry[T]{Value: v, ExpiresAt: now.Add(ttl)}
}

// Fresh reports whether the entry may still be served at now.
func (e Entry[T]) Fresh(now time.Time) bool {
	return now.Before(e.ExpiresAt)
}
