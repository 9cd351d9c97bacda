package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// Mongo implements Store against a MongoDB database.
type Mongo struct {
	client *mongo.Client
	db     *mongo.Database
	log    zerolog.Logger
}

// Connect dials the MongoDB deployment at uri and pings it.
func Connect(ctx context.Context, uri, database string, log zerolog.Logger) (*Mongo, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}
	log.Info().Str("database", database).Msg("connected to mongodb")
	return &Mongo{
		client: client,
		db:     client.Database(database),
		log:    log.With().Str("component", "db").Logger(),
	}, nil
}

// FindOne implements Store.
func (m *Mongo) FindOne(ctx context.Context, coll string, selector, projection bson.M, out any) (bool, error) {
	opts := options.FindOne()
	if projection != nil {
		opts.SetProjection(projection)
	}
	err := m.db.Collection(coll).FindOne(ctx, selector, opts).Decode(out)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("findOne %s: %w", coll, err)
	}
	return true, nil
}

// Count implements Store.
func (m *Mongo) Count(ctx context.Context, coll string, selector bson.M) (int64, error) {
	n, err := m.db.Collection(coll).CountDocuments(ctx, selector)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", coll, err)
	}
	return n, nil
}

// Distinct implements Store.
func (m *Mongo) Distinct(ctx context.Context, coll, field string, selector bson.M) ([]any, error) {
	vals, err := m.db.Collection(coll).Distinct(ctx, field, selector)
	if err != nil {
		return nil, fmt.Errorf("distinct %s.%s: %w", coll, field, err)
	}
	return vals, nil
}

// Close disconnects the client.
func (m *Mongo) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}
