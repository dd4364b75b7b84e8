package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// SplitBackend stores some keys of each session in a local backend keyed by
// session id and the rest through the primary backend. It is used with the
// cookie backend to keep bulky, rebuildable values (such as cached API
// responses) out of the cookie while credentials stay in it.
//
// Local values are best effort: a restart or another replica simply does not
// see them.
type SplitBackend struct {
	primary Backend
	local   Backend
	isLocal func(key string) bool
}

// NewSplitBackend routes keys for which isLocal returns true to local and
// everything else to primary.
func NewSplitBackend(primary, local Backend, isLocal func(key string) bool) *SplitBackend {
	return &SplitBackend{
		primary: primary,
		local:   local,
		isLocal: isLocal,
	}
}

// Load implements Backend. A failing local backend does not fail the load.
func (b *SplitBackend) Load(ctx context.Context, cookieValue string) (string, map[string]json.RawMessage, bool, error) {
	id, values, found, err := b.primary.Load(ctx, cookieValue)
	if err != nil || !found {
		return id, values, found, err
	}
	if values == nil {
		values = make(map[string]json.RawMessage)
	}

	_, local, ok, err := b.local.Load(ctx, id)
	if err != nil || !ok {
		return id, values, true, nil
	}
	for k, v := range local {
		if b.isLocal(k) {
			values[k] = v
		}
	}
	return id, values, true, nil
}

// Save implements Backend. The local part is written first so that a
// failing primary leaves no cookie pointing at missing values.
func (b *SplitBackend) Save(ctx context.Context, id string, values map[string]json.RawMessage, maxAge time.Duration) (string, error) {
	primary := make(map[string]json.RawMessage, len(values))
	local := make(map[string]json.RawMessage)
	for k, v := range values {
		if b.isLocal(k) {
			local[k] = v
		} else {
			primary[k] = v
		}
	}

	if len(local) > 0 {
		if _, err := b.local.Save(ctx, id, local, maxAge); err != nil {
			return "", fmt.Errorf("failed to save local session values: %w", err)
		}
	} else if err := b.local.Destroy(ctx, id); err != nil {
		return "", fmt.Errorf("failed to drop local session values: %w", err)
	}

	return b.primary.Save(ctx, id, primary, maxAge)
}

// Destroy implements Backend.
func (b *SplitBackend) Destroy(ctx context.Context, id string) error {
	if err := b.local.Destroy(ctx, id); err != nil {
		return err
	}
	return b.primary.Destroy(ctx, id)
}
