package round

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/fitztrev/lila-ws/internal/db"
)

func seedGame(store *db.Mem) {
	store.Insert("game5", bson.M{
		"_id": "abcdefgh",
		"is":  "wwwwbbbb",
		"us":  bson.A{"white-user", ""},
		"tid": "tour1",
	})
}

func newTestCache(store *db.Mem, ttl time.Duration) *Cache {
	return NewCache(store, ttl, zerolog.Nop())
}

func TestPlayerAuthorization(t *testing.T) {
	store := db.NewMem()
	seedGame(store)
	c := newTestCache(store, time.Minute)
	defer c.Close()

	tests := []struct {
		name      string
		fullID    FullID
		claimed   string
		wantOK    bool
		wantColor Color
	}{
		{"white with matching user", "abcdefghwwww", "white-user", true, White},
		{"white with wrong user", "abcdefghwwww", "intruder", false, White},
		{"white anonymous claim", "abcdefghwwww", "", true, White},
		{"black anonymous seat", "abcdefghbbbb", "", true, Black},
		{"black with claimed user on anon seat", "abcdefghbbbb", "someone", false, Black},
		{"unknown side token", "abcdefghxxxx", "", false, White},
		{"unknown game", "zzzzzzzzwwww", "", false, White},
		{"malformed full id", "short", "", false, White},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, ok, err := c.Player(context.Background(), tt.fullID, tt.claimed)
			require.NoError(t, err)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.wantColor, p.Color)
			}
		})
	}
}

func TestPlayerCarriesContext(t *testing.T) {
	store := db.NewMem()
	seedGame(store)
	c := newTestCache(store, time.Minute)
	defer c.Close()

	p, ok, err := c.Player(context.Background(), "abcdefghwwww", "white-user")
	require.NoError(t, err)
	require.True(t, ok)
	require.NotNil(t, p.Ext)
	assert.Equal(t, ExtTour, p.Ext.Kind())
	assert.Equal(t, "tour1", p.Ext.ID())
}

func TestExtMutualExclusivity(t *testing.T) {
	// tid wins over sid/iid if a document ever carries more than one.
	g := gameFromDoc(gameDoc{ID: "abcdefgh", Is: "wwwwbbbb", Tid: "t", Sid: "s", Iid: "i"})
	require.NotNil(t, g.Ext)
	assert.Equal(t, ExtTour, g.Ext.Kind())

	g = gameFromDoc(gameDoc{ID: "abcdefgh", Is: "wwwwbbbb", Sid: "s"})
	assert.Equal(t, ExtSwiss, g.Ext.Kind())

	g = gameFromDoc(gameDoc{ID: "abcdefgh", Is: "wwwwbbbb", Iid: "i"})
	assert.Equal(t, ExtSimul, g.Ext.Kind())

	g = gameFromDoc(gameDoc{ID: "abcdefgh", Is: "wwwwbbbb"})
	assert.Nil(t, g.Ext)
}

func TestGameLoadsOnceWithinTTL(t *testing.T) {
	store := db.NewMem()
	seedGame(store)
	c := newTestCache(store, time.Minute)
	defer c.Close()

	for i := 0; i < 4; i++ {
		_, found, err := c.Game(context.Background(), "abcdefgh")
		require.NoError(t, err)
		assert.True(t, found)
	}
	assert.EqualValues(t, 1, store.Finds(), "round metadata loads once per TTL window")
}

func TestNegativeCachingOfMissingGame(t *testing.T) {
	store := db.NewMem()
	c := newTestCache(store, time.Minute)
	defer c.Close()

	for i := 0; i < 4; i++ {
		_, found, err := c.Game(context.Background(), "nosuchgm")
		require.NoError(t, err)
		assert.False(t, found)
	}
	assert.EqualValues(t, 1, store.Finds(), "absence is cached for the TTL")
}

func TestWriteTTLExpiryTriggersReload(t *testing.T) {
	store := db.NewMem()
	seedGame(store)
	c := newTestCache(store, 50*time.Millisecond)
	defer c.Close()

	_, _, err := c.Game(context.Background(), "abcdefgh")
	require.NoError(t, err)
	assert.EqualValues(t, 1, store.Finds())

	time.Sleep(80 * time.Millisecond)
	_, _, err = c.Game(context.Background(), "abcdefgh")
	require.NoError(t, err)
	assert.EqualValues(t, 2, store.Finds(), "expired entry reloads on next access")
}
