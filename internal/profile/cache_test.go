package profile

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/giantswarm/discord-oauth/internal/discord"
	"github.com/giantswarm/discord-oauth/internal/session"
)

const (
	userJSON   = `{"id":"80351110224678912","username":"nelly","discriminator":"1337","avatar":"abc"}`
	guildsJSON = `[{"id":"41771983423143937","name":"Krew","owner":true,"permissions":"8","features":["NEWS"]},{"id":"2","name":"Other","permissions":"0"}]`
	memberJSON = `{"user":{"id":"80351110224678912","username":"nelly"},"nick":"Nel","roles":["7"],"joined_at":"2015-04-26T06:26:56.936000+00:00"}`
)

// fakeQuerier answers from a fixed path table and counts calls per path.
type fakeQuerier struct {
	mu        sync.Mutex
	responses map[string]string
	errs      map[string]error
	calls     map[string]int
	delay     time.Duration
}

func newFakeQuerier() *fakeQuerier {
	return &fakeQuerier{
		responses: map[string]string{
			discord.PathCurrentUser:                               userJSON,
			discord.PathCurrentUserGuilds:                         guildsJSON,
			discord.PathCurrentUserGuildMember(41771983423143937): memberJSON,
		},
		errs:  map[string]error{},
		calls: map[string]int{},
	}
}

func (f *fakeQuerier) Query(ctx context.Context, sess session.Store, path string) (json.RawMessage, error) {
	f.mu.Lock()
	f.calls[path]++
	body, ok := f.responses[path]
	err := f.errs[path]
	delay := f.delay
	f.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &discord.HTTPError{Path: path, StatusCode: 404, Message: "Unknown"}
	}
	return json.RawMessage(body), nil
}

func (f *fakeQuerier) count(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[path]
}

func (f *fakeQuerier) setErr(path string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[path] = err
}

// clock is a settable time source.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestCache(t *testing.T) (*Cache, *fakeQuerier, *clock) {
	t.Helper()
	api := newFakeQuerier()
	clk := &clock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	return NewCache(api, WithClock(clk.Now)), api, clk
}

func TestEntry_Fresh(t *testing.T) {
	now := time.Now()
	e := NewEntry("v", now, 15*time.Second)

	assert.True(t, e.Fresh(now))
	assert.True(t, e.Fresh(now.Add(15*time.Second-time.Nanosecond)))
	assert.False(t, e.Fresh(now.Add(15*time.Second)))
	assert.False(t, Entry[string]{}.Fresh(now))
}

func TestNewCache_Defaults(t *testing.T) {
	assert.Equal(t, DefaultTTL, NewCache(nil).TTL())
	assert.Equal(t, DefaultTTL, NewCache(nil, WithTTL(0)).TTL())
	assert.Equal(t, time.Minute, NewCache(nil, WithTTL(time.Minute)).TTL())
}

func TestUser_CachedWithinTTL(t *testing.T) {
	c, api, _ := newTestCache(t)
	sess := session.New("s1", nil)
	ctx := context.Background()

	first, err := c.User(ctx, sess)
	require.NoError(t, err)
	second, err := c.User(ctx, sess)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, "nelly", first.Username)
	assert.Equal(t, 1, api.count(discord.PathCurrentUser))

	var rawID string
	ok, err := sess.Get(KeyUserID, &rawID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "80351110224678912", rawID)
}

func TestUser_TTLBoundary(t *testing.T) {
	c, api, clk := newTestCache(t)
	sess := session.New("s1", nil)
	ctx := context.Background()

	_, err := c.User(ctx, sess)
	require.NoError(t, err)

	clk.Advance(DefaultTTL - time.Millisecond)
	_, err = c.User(ctx, sess)
	require.NoError(t, err)
	assert.Equal(t, 1, api.count(discord.PathCurrentUser), "strictly before expiry is served from cache")

	clk.Advance(time.Millisecond)
	_, err = c.User(ctx, sess)
	require.NoError(t, err)
	assert.Equal(t, 2, api.count(discord.PathCurrentUser), "at expiry triggers exactly one refetch")

	_, err = c.User(ctx, sess)
	require.NoError(t, err)
	assert.Equal(t, 2, api.count(discord.PathCurrentUser))
}

func TestUser_SessionsDoNotShare(t *testing.T) {
	c, api, _ := newTestCache(t)
	ctx := context.Background()

	_, err := c.User(ctx, session.New("s1", nil))
	require.NoError(t, err)
	_, err = c.User(ctx, session.New("s2", nil))
	require.NoError(t, err)

	assert.Equal(t, 2, api.count(discord.PathCurrentUser))
}

func TestUser_ErrorLeavesCacheUntouched(t *testing.T) {
	c, api, _ := newTestCache(t)
	api.setErr(discord.PathCurrentUser, &discord.HTTPError{Path: discord.PathCurrentUser, StatusCode: 500})
	sess := session.New("s1", nil)

	_, err := c.User(context.Background(), sess)
	assert.ErrorIs(t, err, discord.ErrHTTP)
	assert.Empty(t, sess.Keys())
}

func TestUser_DecodeErrorLeavesCacheUntouched(t *testing.T) {
	c, api, _ := newTestCache(t)
	api.responses[discord.PathCurrentUser] = `{"username":"no id"}`
	sess := session.New("s1", nil)

	_, err := c.User(context.Background(), sess)
	assert.ErrorIs(t, err, discord.ErrDecode)
	assert.Empty(t, sess.Keys())
}

func TestUser_ConcurrentMissesShareOneFetch(t *testing.T) {
	c, api, _ := newTestCache(t)
	api.delay = 50 * time.Millisecond
	sess := session.New("s1", nil)

	var wg sync.WaitGroup
	var failures atomic.Int32
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := c.User(context.Background(), sess); err != nil {
				failures.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Zero(t, failures.Load())
	assert.Equal(t, 1, api.count(discord.PathCurrentUser))
}

func TestUser_SharedFillSurvivesCancelledLeader(t *testing.T) {
	c, api, _ := newTestCache(t)
	api.delay = 200 * time.Millisecond
	sess := session.New("s1", nil)

	leaderCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	leaderDone := make(chan error, 1)
	go func() {
		_, err := c.User(leaderCtx, sess)
		leaderDone <- err
	}()
	require.Eventually(t, func() bool { return api.count(discord.PathCurrentUser) == 1 },
		time.Second, 5*time.Millisecond)

	followerDone := make(chan error, 1)
	go func() {
		_, err := c.User(context.Background(), sess)
		followerDone <- err
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()

	assert.NoError(t, <-followerDone)
	assert.NoError(t, <-leaderDone)
	assert.Equal(t, 1, api.count(discord.PathCurrentUser))
}

func TestGuilds_ResolvesUserFirst(t *testing.T) {
	c, api, _ := newTestCache(t)
	sess := session.New("s1", nil)
	ctx := context.Background()

	guilds, err := c.Guilds(ctx, sess)
	require.NoError(t, err)
	require.Len(t, guilds, 2)
	assert.Equal(t, "Krew", guilds[0].Name)

	assert.Equal(t, 1, api.count(discord.PathCurrentUser))
	assert.Equal(t, 1, api.count(discord.PathCurrentUserGuilds))
	assert.ElementsMatch(t, []string{KeyUser, KeyUserID, KeyGuilds(80351110224678912)}, sess.Keys())

	_, err = c.Guilds(ctx, sess)
	require.NoError(t, err)
	assert.Equal(t, 1, api.count(discord.PathCurrentUserGuilds))
}

func TestGuilds_UserIDOutlivesUserEntry(t *testing.T) {
	c, api, clk := newTestCache(t)
	sess := session.New("s1", nil)
	ctx := context.Background()

	_, err := c.Guilds(ctx, sess)
	require.NoError(t, err)

	clk.Advance(time.Hour)
	_, err = c.Guilds(ctx, sess)
	require.NoError(t, err)

	assert.Equal(t, 1, api.count(discord.PathCurrentUser), "the resolved user id is kept for the session")
	assert.Equal(t, 2, api.count(discord.PathCurrentUserGuilds))
}

func TestGuilds_RateLimitedLeavesCacheUntouched(t *testing.T) {
	c, api, _ := newTestCache(t)
	sess := session.New("s1", nil)
	ctx := context.Background()

	_, err := c.User(ctx, sess)
	require.NoError(t, err)
	before := sess.Keys()

	api.setErr(discord.PathCurrentUserGuilds, &discord.RateLimitedError{
		Path:       discord.PathCurrentUserGuilds,
		RetryAfter: 5 * time.Second,
	})

	_, err = c.Guilds(ctx, sess)
	require.Error(t, err)

	var rl *discord.RateLimitedError
	require.True(t, errors.As(err, &rl))
	assert.Equal(t, 5*time.Second, rl.RetryAfter)
	assert.Equal(t, "/users/@me/guilds", rl.Path)

	assert.Equal(t, before, sess.Keys())
	ok, err := sess.Get(KeyGuilds(80351110224678912), &Entry[[]discord.Guild]{})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGuild(t *testing.T) {
	c, _, _ := newTestCache(t)
	sess := session.New("s1", nil)
	ctx := context.Background()

	g, err := c.Guild(ctx, sess, 41771983423143937)
	require.NoError(t, err)
	require.NotNil(t, g)
	assert.Equal(t, "Krew", g.Name)
	assert.True(t, g.Owner)

	g, err = c.Guild(ctx, sess, 999)
	require.NoError(t, err)
	assert.Nil(t, g)
}

func TestMember(t *testing.T) {
	c, api, _ := newTestCache(t)
	sess := session.New("s1", nil)
	ctx := context.Background()

	m, err := c.Member(ctx, sess, 41771983423143937)
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, uint64(80351110224678912), m.ID)
	assert.Equal(t, "Nel", m.DisplayName())
	assert.Equal(t, "Krew", m.Guild.Name)
	assert.Equal(t, []uint64{7}, m.Roles)

	_, err = c.Member(ctx, sess, 41771983423143937)
	require.NoError(t, err)

	path := discord.PathCurrentUserGuildMember(41771983423143937)
	assert.Equal(t, 2, api.count(path), "membership is never cached")
	assert.Equal(t, 1, api.count(discord.PathCurrentUserGuilds))
}

func TestMember_UnlistedGuildSkipsRequest(t *testing.T) {
	c, api, _ := newTestCache(t)
	sess := session.New("s1", nil)

	m, err := c.Member(context.Background(), sess, 999)
	require.NoError(t, err)
	assert.Nil(t, m)
	assert.Zero(t, api.count(discord.PathCurrentUserGuildMember(999)))
}

func TestMember_ErrorPropagates(t *testing.T) {
	c, api, _ := newTestCache(t)
	path := discord.PathCurrentUserGuildMember(41771983423143937)
	api.setErr(path, &discord.HTTPError{Path: path, StatusCode: 403, Code: 50001})

	_, err := c.Member(context.Background(), session.New("s1", nil), 41771983423143937)
	assert.ErrorIs(t, err, discord.ErrHTTP)
}

func TestInvalidate(t *testing.T) {
	c, api, _ := newTestCache(t)
	sess := session.New("s1", nil)
	require.NoError(t, sess.Set("unrelated", true))
	ctx := context.Background()

	_, err := c.Guilds(ctx, sess)
	require.NoError(t, err)

	require.NoError(t, c.Invalidate(sess))
	assert.Equal(t, []string{"unrelated"}, sess.Keys())

	_, err = c.Guilds(ctx, sess)
	require.NoError(t, err)
	assert.Equal(t, 2, api.count(discord.PathCurrentUser))
	assert.Equal(t, 2, api.count(discord.PathCurrentUserGuilds))
}

func TestUser_UnreadableEntryIsAMiss(t *testing.T) {
	c, api, _ := newTestCache(t)
	sess := session.New("s1", map[string]json.RawMessage{
		KeyUser: json.RawMessage(`"garbage"`),
	})

	u, err := c.User(context.Background(), sess)
	require.NoError(t, err)
	assert.Equal(t, "nelly", u.Username)
	assert.Equal(t, 1, api.count(discord.PathCurrentUser))
}
