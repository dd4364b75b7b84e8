package session

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func isCacheKey(key string) bool {
	return strings.HasPrefix(key, "cache:")
}

func newSplitBackend(t *testing.T) (*SplitBackend, *MemoryBackend) {
	t.Helper()
	local := NewMemoryBackend()
	t.Cleanup(local.Stop)
	return NewSplitBackend(NewCookieBackend([]byte("0123456789abcdef0123456789abcdef")), local, isCacheKey), local
}

func TestSplitBackend_KeepsLocalKeysOutOfCookie(t *testing.T) {
	b, local := newSplitBackend(t)
	ctx := context.Background()
	id := uuid.NewString()

	// Far more than a cookie can carry.
	bulky := json.RawMessage(`"` + strings.Repeat("x", 20000) + `"`)
	cookie, err := b.Save(ctx, id, map[string]json.RawMessage{
		"token":      json.RawMessage(`"refresh-2"`),
		"cache:list": bulky,
	}, time.Hour)
	require.NoError(t, err)
	assert.Less(t, len(cookie), maxCookieBytes)
	assert.Equal(t, 1, local.Count())

	gotID, values, found, err := b.Load(ctx, cookie)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, id, gotID)
	assert.JSONEq(t, `"refresh-2"`, string(values["token"]))
	assert.Equal(t, string(bulky), string(values["cache:list"]))
}

func TestSplitBackend_LocalValuesAreOptional(t *testing.T) {
	b, local := newSplitBackend(t)
	ctx := context.Background()
	id := uuid.NewString()

	cookie, err := b.Save(ctx, id, map[string]json.RawMessage{
		"token":   json.RawMessage(`"t"`),
		"cache:a": json.RawMessage(`1`),
	}, time.Hour)
	require.NoError(t, err)

	// Lost local state, as after a restart.
	require.NoError(t, local.Destroy(ctx, id))

	_, values, found, err := b.Load(ctx, cookie)
	require.NoError(t, err)
	require.True(t, found)
	assert.Contains(t, values, "token")
	assert.NotContains(t, values, "cache:a")
}

func TestSplitBackend_DroppedLocalKeysStayDropped(t *testing.T) {
	b, local := newSplitBackend(t)
	ctx := context.Background()
	id := uuid.NewString()

	_, err := b.Save(ctx, id, map[string]json.RawMessage{"cache:a": json.RawMessage(`1`)}, time.Hour)
	require.NoError(t, err)
	cookie, err := b.Save(ctx, id, map[string]json.RawMessage{"token": json.RawMessage(`"t"`)}, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 0, local.Count())

	_, values, _, err := b.Load(ctx, cookie)
	require.NoError(t, err)
	assert.NotContains(t, values, "cache:a")
}

func TestSplitBackend_PrimaryStillEnforcesLimit(t *testing.T) {
	b, _ := newSplitBackend(t)
	_, err := b.Save(context.Background(), uuid.NewString(), map[string]json.RawMessage{
		"token": json.RawMessage(fmt.Sprintf("%q", strings.Repeat("y", 8000))),
	}, time.Hour)
	assert.ErrorIs(t, err, ErrCookieTooLarge)
}

func TestSplitBackend_Destroy(t *testing.T) {
	b, local := newSplitBackend(t)
	ctx := context.Background()
	id := uuid.NewString()

	_, err := b.Save(ctx, id, map[string]json.RawMessage{"cache:a": json.RawMessage(`1`)}, time.Hour)
	require.NoError(t, err)
	require.NoError(t, b.Destroy(ctx, id))
	assert.Equal(t, 0, local.Count())
}
