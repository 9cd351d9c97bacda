package db

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/fitztrev/lila-ws/internal/chess"
	"github.com/fitztrev/lila-ws/internal/evalcache"
)

const evalColl = "eval_cache"

// EvalStore is the collaborator surface the merge pipeline writes
// through. Reads go through the same findOne contract the caches use;
// the write side exists because some collaborator has to persist merged
// entries, and here that is us.
type EvalStore interface {
	GetEval(ctx context.Context, id chess.ID) (evalcache.Entry, bool, error)
	UpsertEval(ctx context.Context, entry evalcache.Entry) error
}

// GetEval fetches the canonical entry for a position.
func (m *Mongo) GetEval(ctx context.Context, id chess.ID) (evalcache.Entry, bool, error) {
	var entry evalcache.Entry
	found, err := m.FindOne(ctx, evalColl, bson.M{"_id": id.String()}, nil, &entry)
	return entry, found, err
}

// UpsertEval replaces the stored entry for its position.
func (m *Mongo) UpsertEval(ctx context.Context, entry evalcache.Entry) error {
	_, err := m.db.Collection(evalColl).ReplaceOne(
		ctx,
		bson.M{"_id": entry.ID.String()},
		entry,
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("upsert eval: %w", err)
	}
	return nil
}

// GetEval implements EvalStore for the in-memory store.
func (m *Mem) GetEval(ctx context.Context, id chess.ID) (evalcache.Entry, bool, error) {
	var entry evalcache.Entry
	found, err := m.FindOne(ctx, evalColl, bson.M{"_id": id.String()}, nil, &entry)
	return entry, found, err
}

// UpsertEval implements EvalStore for the in-memory store.
func (m *Mem) UpsertEval(ctx context.Context, entry evalcache.Entry) error {
	raw, err := bson.Marshal(entry)
	if err != nil {
		return err
	}
	var doc bson.M
	if err := bson.Unmarshal(raw, &doc); err != nil {
		return err
	}
	m.Remove(evalColl, bson.M{"_id": entry.ID.String()})
	m.Insert(evalColl, doc)
	return nil
}
