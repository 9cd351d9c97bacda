// Package db holds the persistent document store boundary. The core only
// relies on the read contract in Store; everything else on the concrete
// types is collaborator surface used by the daemon and tools.
package db

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
)

// Store is the read contract the caches rely on. All selectors used by
// this module are single-equality selections on an identifier field;
// projections request only the fields the caller needs.
//
// FindOne decodes the matching document into out and reports whether one
// was found. Absence is (false, nil), never an error. Errors mean the
// store was unreachable or the document could not be decoded; they are
// surfaced once to the caller and never cached.
type Store interface {
	FindOne(ctx context.Context, coll string, selector, projection bson.M, out any) (bool, error)
	Count(ctx context.Context, coll string, selector bson.M) (int64, error)
	Distinct(ctx context.Context, coll, field string, selector bson.M) ([]any, error)
}
