// Package round caches minimal per-game metadata and gates player
// identity claims against it. No game logic lives here.
package round

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/fitztrev/lila-ws/internal/cache"
	"github.com/fitztrev/lila-ws/internal/db"
)

// GameID is the 8-character game identifier.
type GameID string

// PlayerID is the 4-character per-side token.
type PlayerID string

// FullID is a player-scoped game identifier: game id + side token.
type FullID string

const (
	gameIDSize = 8
	fullIDSize = 12
)

// GameID returns the game part of a full id, or "" if malformed.
func (f FullID) GameID() GameID {
	if len(f) != fullIDSize {
		return ""
	}
	return GameID(f[:gameIDSize])
}

// PlayerID returns the side token part of a full id, or "" if malformed.
func (f FullID) PlayerID() PlayerID {
	if len(f) != fullIDSize {
		return ""
	}
	return PlayerID(f[gameIDSize:])
}

// Color is a side in a game.
type Color uint8

const (
	White Color = iota
	Black
)

func (c Color) String() string {
	if c == Black {
		return "black"
	}
	return "white"
}

// Player is one side's seat: its token and, unless anonymous, its user.
type Player struct {
	ID     PlayerID
	UserID string // empty for anonymous seats
}

// ExtKind tags the context a game belongs to.
type ExtKind uint8

const (
	ExtTour ExtKind = iota
	ExtSwiss
	ExtSimul
)

// Ext is the game's context reference: exactly one of tournament, swiss
// or simul. A game without context carries a nil *Ext. Constructors keep
// the kinds mutually exclusive.
type Ext struct {
	kind ExtKind
	id   string
}

// TourExt references a tournament.
func TourExt(id string) *Ext { return &Ext{kind: ExtTour, id: id} }

// SwissExt references a swiss event.
func SwissExt(id string) *Ext { return &Ext{kind: ExtSwiss, id: id} }

// SimulExt references a simul.
func SimulExt(id string) *Ext { return &Ext{kind: ExtSimul, id: id} }

// Kind returns the context kind.
func (e *Ext) Kind() ExtKind { return e.kind }

// ID returns the referenced event id.
func (e *Ext) ID() string { return e.id }

// Game is the round metadata the service needs: two seats and an
// optional context reference.
type Game struct {
	ID      GameID
	Players [2]Player
	Ext     *Ext
}

// RoundPlayer is a successfully authorized seat.
type RoundPlayer struct {
	Color Color
	Ext   *Ext
}

// Cache is the read-through round metadata cache. TTL is write-based:
// game state changes without the cache being told, so entries expire
// deterministically regardless of access pattern.
type Cache struct {
	games *cache.Cache[GameID, Game]
}

type gameDoc struct {
	ID  string   `bson:"_id"`
	Is  string   `bson:"is"` // both 4-char player ids, white first
	Us  []string `bson:"us"` // user ids per side, "" for anonymous
	Tid string   `bson:"tid"`
	Sid string   `bson:"sid"`
	Iid string   `bson:"iid"`
}

var gameProjection = bson.M{"is": 1, "us": 1, "tid": 1, "sid": 1, "iid": 1}

// NewCache creates the round cache over store.
func NewCache(store db.Store, ttl time.Duration, log zerolog.Logger) *Cache {
	loader := func(ctx context.Context, id GameID) (Game, bool, error) {
		var doc gameDoc
		found, err := store.FindOne(ctx, "game5", bson.M{"_id": string(id)}, gameProjection, &doc)
		if err != nil || !found {
			return Game{}, false, err
		}
		return gameFromDoc(doc), true, nil
	}
	return &Cache{
		games: cache.New("round", loader, ttl, cache.ExpireAfterWrite, log),
	}
}

func gameFromDoc(doc gameDoc) Game {
	g := Game{ID: GameID(doc.ID)}
	if len(doc.Is) == 2*4 {
		g.Players[White].ID = PlayerID(doc.Is[:4])
		g.Players[Black].ID = PlayerID(doc.Is[4:])
	}
	for i := range g.Players {
		if i < len(doc.Us) {
			g.Players[i].UserID = doc.Us[i]
		}
	}
	switch {
	case doc.Tid != "":
		g.Ext = TourExt(doc.Tid)
	case doc.Sid != "":
		g.Ext = SwissExt(doc.Sid)
	case doc.Iid != "":
		g.Ext = SimulExt(doc.Iid)
	}
	return g
}

// Game returns the cached metadata for a game.
func (c *Cache) Game(ctx context.Context, id GameID) (Game, bool, error) {
	return c.games.Get(ctx, id)
}

// Player authorizes a seat claim. The side token must match one of the
// game's seats, and a claimed user id must equal that seat's stored
// user; an empty claim is accepted. Any mismatch, including an unknown
// game, is absent, never an error.
func (c *Cache) Player(ctx context.Context, fullID FullID, claimedUser string) (RoundPlayer, bool, error) {
	gameID := fullID.GameID()
	if gameID == "" {
		return RoundPlayer{}, false, nil
	}
	game, found, err := c.games.Get(ctx, gameID)
	if err != nil || !found {
		return RoundPlayer{}, false, err
	}
	pid := fullID.PlayerID()
	for i, p := range game.Players {
		if p.ID != pid {
			continue
		}
		if claimedUser != "" && claimedUser != p.UserID {
			return RoundPlayer{}, false, nil
		}
		return RoundPlayer{Color: Color(i), Ext: game.Ext}, true, nil
	}
	return RoundPlayer{}, false, nil
}

// Stats exposes the underlying cache counters.
func (c *Cache) Stats() cache.Stats { return c.games.Stats() }

// Close stops the cache sweeper.
func (c *Cache) Close() { c.games.Close() }
