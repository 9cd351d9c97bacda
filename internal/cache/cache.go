// Package cache provides an asynchronous read-through cache with
// single-flight population and TTL expiry.
package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// Loader fetches a value from the backing store on a cache miss.
// found=false means the entity does not exist; that is a valid outcome
// and is cached for the full TTL (negative caching). An error is never
// cached and is delivered to every caller waiting on the load.
type Loader[K ~string, V any] func(ctx context.Context, key K) (V, bool, error)

// Policy selects when the expiry timer resets.
type Policy uint8

const (
	// ExpireAfterWrite resets the timer only when the entry is populated
	// or overwritten.
	ExpireAfterWrite Policy = iota
	// ExpireAfterAccess pushes the timer forward on every read hit.
	ExpireAfterAccess
)

type entry[V any] struct {
	value    V
	found    bool
	expireAt time.Time
}

type loaded[V any] struct {
	value V
	found bool
}

// Cache is a keyed read-through cache. Concurrent Gets for a missing key
// share exactly one loader invocation.
type Cache[K ~string, V any] struct {
	name   string
	loader Loader[K, V]
	ttl    time.Duration
	policy Policy
	log    zerolog.Logger

	mu      sync.Mutex
	entries map[K]*entry[V]
	sf      singleflight.Group

	hits     uint64
	misses   uint64
	loads    uint64
	loadErrs uint64

	stop      chan struct{}
	closeOnce sync.Once
}

// New creates a cache and starts its background sweeper.
func New[K ~string, V any](name string, loader Loader[K, V], ttl time.Duration, policy Policy, log zerolog.Logger) *Cache[K, V] {
	c := &Cache[K, V]{
		name:    name,
		loader:  loader,
		ttl:     ttl,
		policy:  policy,
		log:     log.With().Str("cache", name).Logger(),
		entries: make(map[K]*entry[V]),
		stop:    make(chan struct{}),
	}
	go c.sweep()
	return c
}

// Get returns the cached value for key, loading it on a miss. found=false
// means the entity does not exist (possibly a cached negative result).
// A caller that stops waiting (ctx done) abandons the result; the shared
// load itself is never cancelled.
func (c *Cache[K, V]) Get(ctx context.Context, key K) (V, bool, error) {
	if v, found, ok := c.peek(key); ok {
		atomic.AddUint64(&c.hits, 1)
		return v, found, nil
	}
	atomic.AddUint64(&c.misses, 1)

	ch := c.sf.DoChan(string(key), func() (any, error) {
		// Another flight may have populated the key between our miss and
		// this call being scheduled.
		if v, found, ok := c.peek(key); ok {
			return loaded[V]{v, found}, nil
		}
		atomic.AddUint64(&c.loads, 1)
		v, found, err := c.loader(context.WithoutCancel(ctx), key)
		if err != nil {
			atomic.AddUint64(&c.loadErrs, 1)
			c.log.Debug().Err(err).Str("key", string(key)).Msg("load failed")
			return nil, err
		}
		c.set(key, v, found)
		return loaded[V]{v, found}, nil
	})

	select {
	case <-ctx.Done():
		var zero V
		return zero, false, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			var zero V
			return zero, false, res.Err
		}
		l := res.Val.(loaded[V])
		return l.value, l.found, nil
	}
}

// Put unconditionally overwrites the cached value with a fresh write
// deadline, ahead of natural expiry.
func (c *Cache[K, V]) Put(key K, value V) {
	c.set(key, value, true)
}

// peek returns the entry if present and fresh, refreshing the deadline
// under the access policy.
func (c *Cache[K, V]) peek(key K) (V, bool, bool) {
	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		var zero V
		return zero, false, false
	}
	if !now.Before(e.expireAt) {
		delete(c.entries, key)
		var zero V
		return zero, false, false
	}
	if c.policy == ExpireAfterAccess {
		e.expireAt = now.Add(c.ttl)
	}
	return e.value, e.found, true
}

func (c *Cache[K, V]) set(key K, value V, found bool) {
	c.mu.Lock()
	c.entries[key] = &entry[V]{value: value, found: found, expireAt: time.Now().Add(c.ttl)}
	c.mu.Unlock()
}

// sweep evicts expired entries in the background so the map does not
// grow with keys nobody reads again.
func (c *Cache[K, V]) sweep() {
	interval := c.ttl
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			now := time.Now()
			c.mu.Lock()
			for k, e := range c.entries {
				if !now.Before(e.expireAt) {
					delete(c.entries, k)
				}
			}
			c.mu.Unlock()
		}
	}
}

// Close stops the background sweeper.
func (c *Cache[K, V]) Close() {
	c.closeOnce.Do(func() { close(c.stop) })
}

// Stats is a point-in-time snapshot of cache counters.
type Stats struct {
	Hits     uint64
	Misses   uint64
	Loads    uint64
	LoadErrs uint64
	Size     int
}

// Stats returns current counters and entry count.
func (c *Cache[K, V]) Stats() Stats {
	c.mu.Lock()
	size := len(c.entries)
	c.mu.Unlock()
	return Stats{
		Hits:     atomic.LoadUint64(&c.hits),
		Misses:   atomic.LoadUint64(&c.misses),
		Loads:    atomic.LoadUint64(&c.loads),
		LoadErrs: atomic.LoadUint64(&c.loadErrs),
		Size:     size,
	}
}
