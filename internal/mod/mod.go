// Package mod caches per-user moderation flags.
package mod

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/fitztrev/lila-ws/internal/cache"
	"github.com/fitztrev/lila-ws/internal/db"
)

// UserID identifies a user.
type UserID string

// FlagCache answers "is this user flagged?" from an access-based TTL
// cache: frequently checked moderation state stays warm, unlike round
// metadata which must expire deterministically.
type FlagCache struct {
	store db.Store
	flag  string
	users *cache.Cache[UserID, bool]
}

// NewFlagCache creates the cache for one moderation mark (e.g. "troll").
func NewFlagCache(store db.Store, flag string, ttl time.Duration, log zerolog.Logger) *FlagCache {
	c := &FlagCache{store: store, flag: flag}
	loader := func(ctx context.Context, uid UserID) (bool, bool, error) {
		n, err := store.Count(ctx, "user", bson.M{"_id": string(uid), "marks": flag})
		if err != nil {
			return false, false, err
		}
		return n > 0, true, nil
	}
	c.users = cache.New("flag:"+flag, loader, ttl, cache.ExpireAfterAccess, log)
	return c
}

// IsFlagged reports whether the user carries the mark. Unknown users are
// simply unflagged.
func (c *FlagCache) IsFlagged(ctx context.Context, uid UserID) (bool, error) {
	flagged, _, err := c.users.Get(ctx, uid)
	return flagged, err
}

// Set pushes an externally known flag change ahead of natural expiry,
// e.g. straight after a moderation action.
func (c *FlagCache) Set(uid UserID, flagged bool) {
	c.users.Put(uid, flagged)
}

// Warm pre-populates every currently flagged user and returns how many
// it found.
func (c *FlagCache) Warm(ctx context.Context) (int, error) {
	ids, err := c.store.Distinct(ctx, "user", "_id", bson.M{"marks": c.flag})
	if err != nil {
		return 0, err
	}
	n := 0
	for _, id := range ids {
		if s, ok := id.(string); ok {
			c.users.Put(UserID(s), true)
			n++
		}
	}
	return n, nil
}

// Stats exposes the underlying cache counters.
func (c *FlagCache) Stats() cache.Stats { return c.users.Stats() }

// Close stops the cache sweeper.
func (c *FlagCache) Close() { c.users.Close() }
