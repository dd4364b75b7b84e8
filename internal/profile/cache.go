package profile

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/giantswarm/discord-oauth/internal/discord"
	"github.com/giantswarm/discord-oauth/internal/session"
	"github.com/giantswarm/discord-oauth/pkg/logging"
)

// DefaultTTL is how long cached lookups are served.
const DefaultTTL = 15 * time.Second

// Session keys owned by the cache.
const (
	KeyPrefix       = "profile:"
	KeyUser         = KeyPrefix + "user"
	KeyUserID       = KeyPrefix + "user_id"
	keyGuildsPrefix = KeyPrefix + "guilds:"
)

// IsCacheKey reports whether a session key belongs to the cache.
func IsCacheKey(key string) bool {
	return strings.HasPrefix(key, KeyPrefix)
}

// KeyGuilds is the session key of the guild list cached for userID.
func KeyGuilds(userID uint64) string {
	return keyGuildsPrefix + discord.FormatSnowflake(userID)
}

// Querier fetches a raw API resource on behalf of a session.
// *discord.Client implements it.
type Querier interface {
	Query(ctx context.Context, sess session.Store, path string) (json.RawMessage, error)
}

// Cache serves user, guild and member lookups for the session passed to
// each call.
type Cache struct {
	api Querier
	ttl time.Duration
	now func() time.Time

	// Collapses concurrent misses of one session for one resource.
	inflight singleflight.Group
}

// Option configures a Cache.
type Option func(*Cache)

// WithTTL sets the cache window. Zero or less keeps DefaultTTL.
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		c.now = now
	}
}

// NewCache returns a cache that fills misses through api.
func NewCache(api Querier, opts ...Option) *Cache {
	c := &Cache{
		api: api,
		ttl: DefaultTTL,
		now: time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// TTL returns the configured cache window.
func (c *Cache) TTL() time.Duration {
	return c.ttl
}

// User returns the signed-in user. On a miss it fetches /users/@me and also
// remembers the user id, which keys the dependent lookups.
func (c *Cache) User(ctx context.Context, sess session.Store) (discord.User, error) {
	var entry Entry[discord.User]
	if c.lookup(sess, KeyUser, &entry) {
		return entry.Value, nil
	}

	v, err, shared := c.inflight.Do(sess.ID()+"\x00user", func() (any, error) {
		raw, err := c.api.Query(fillContext(ctx), sess, discord.PathCurrentUser)
		if err != nil {
			return nil, err
		}
		return discord.DecodeUser(raw)
	})
	if err != nil {
		return discord.User{}, err
	}
	user := v.(discord.User)

	if err := sess.Set(KeyUser, NewEntry(user, c.now(), c.ttl)); err != nil {
		return discord.User{}, err
	}
	if err := sess.Set(KeyUserID, discord.FormatSnowflake(user.ID)); err != nil {
		return discord.User{}, err
	}
	logging.Debug("ProfileCache", "Cached user %d for session=%s (shared=%t)",
		user.ID, logging.TruncateSessionID(sess.ID()), shared)
	return user, nil
}

// UserID returns the id of the signed-in user, fetching the user record if
// it has not been resolved in this session yet.
func (c *Cache) UserID(ctx context.Context, sess session.Store) (uint64, error) {
	var raw string
	if ok, err := sess.Get(KeyUserID, &raw); err == nil && ok {
		if id, err := discord.ParseSnowflake(raw); err == nil && id != 0 {
			return id, nil
		}
	}

	user, err := c.User(ctx, sess)
	if err != nil {
		return 0, err
	}
	return user.ID, nil
}

// Guilds returns the guilds the signed-in user belongs to.
func (c *Cache) Guilds(ctx context.Context, sess session.Store) ([]discord.Guild, error) {
	userID, err := c.UserID(ctx, sess)
	if err != nil {
		return nil, err
	}
	key := KeyGuilds(userID)

	var entry Entry[[]discord.Guild]
	if c.lookup(sess, key, &entry) {
		return entry.Value, nil
	}

	v, err, shared := c.inflight.Do(sess.ID()+"\x00"+key, func() (any, error) {
		raw, err := c.api.Query(fillContext(ctx), sess, discord.PathCurrentUserGuilds)
		if err != nil {
			return nil, err
		}
		return discord.DecodeGuilds(raw)
	})
	if err != nil {
		return nil, err
	}
	guilds := v.([]discord.Guild)

	if err := sess.Set(key, NewEntry(guilds, c.now(), c.ttl)); err != nil {
		return nil, err
	}
	logging.Debug("ProfileCache", "Cached %d guilds for user %d session=%s (shared=%t)",
		len(guilds), userID, logging.TruncateSessionID(sess.ID()), shared)
	return guilds, nil
}

// Guild returns the guild with the given id, or nil if the signed-in user is
// not listed as a member of it.
func (c *Cache) Guild(ctx context.Context, sess session.Store, guildID uint64) (*discord.Guild, error) {
	guilds, err := c.Guilds(ctx, sess)
	if err != nil {
		return nil, err
	}
	for i := range guilds {
		if guilds[i].ID == guildID {
			g := guilds[i]
			return &g, nil
		}
	}
	return nil, nil
}

// Member returns the signed-in user's membership in a guild, or nil if the
// guild is not in their guild list. Membership is not cached.
func (c *Cache) Member(ctx context.Context, sess session.Store, guildID uint64) (*discord.Member, error) {
	guild, err := c.Guild(ctx, sess, guildID)
	if err != nil {
		return nil, err
	}
	if guild == nil {
		logging.Debug("ProfileCache", "Guild %d not listed for session=%s, skipping member lookup",
			guildID, logging.TruncateSessionID(sess.ID()))
		return nil, nil
	}

	raw, err := c.api.Query(ctx, sess, discord.PathCurrentUserGuildMember(guildID))
	if err != nil {
		return nil, err
	}
	member, err := discord.DecodeMember(raw, *guild)
	if err != nil {
		return nil, err
	}
	return &member, nil
}

// Invalidate drops every cached entry of the session.
func (c *Cache) Invalidate(sess session.Store) error {
	var raw string
	if ok, _ := sess.Get(KeyUserID, &raw); ok {
		if id, err := discord.ParseSnowflake(raw); err == nil {
			if err := sess.Delete(KeyGuilds(id)); err != nil {
				return err
			}
		}
	}
	for _, key := range []string{KeyUser, KeyUserID} {
		if err := sess.Delete(key); err != nil {
			return fmt.Errorf("failed to invalidate %s: %w", key, err)
		}
	}
	return nil
}

// fillContext detaches a shared fill from the cancellation of the request
// that started it, so callers waiting on the same flight are not failed by
// another request going away. Values and deadlines of the HTTP client still
// apply.
func fillContext(ctx context.Context) context.Context {
	return context.WithoutCancel(ctx)
}

// lookup decodes key into dst and reports whether it holds a fresh entry.
// An unreadable entry counts as a miss and is overwritten by the next fill.
func (c *Cache) lookup(sess session.Store, key string, dst interface{ Fresh(time.Time) bool }) bool {
	ok, err := sess.Get(key, dst)
	if err != nil {
		logging.Debug("ProfileCache", "Ignoring unreadable entry %s: %v", key, err)
		return false
	}
	if !ok {
		return false
	}
	if !dst.Fresh(c.now()) {
		logging.Debug("ProfileCache", "Entry %s expired for session=%s", key, logging.TruncateSessionID(sess.ID()))
		return false
	}
	return true
}
