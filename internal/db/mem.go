package db

import (
	"context"
	"sync"
	"sync/atomic"

	"go.mongodb.org/mongo-driver/bson"
)

// Mem is an in-memory Store for tests and local development. It supports
// the same single-equality selector shape the caches use, including
// matching a scalar against an array-valued field.
type Mem struct {
	mu    sync.RWMutex
	colls map[string][]bson.M

	finds     int64
	counts    int64
	distincts int64
}

// NewMem creates an empty in-memory store.
func NewMem() *Mem {
	return &Mem{colls: make(map[string][]bson.M)}
}

// Insert appends a document to a collection.
func (m *Mem) Insert(coll string, doc bson.M) {
	m.mu.Lock()
	m.colls[coll] = append(m.colls[coll], doc)
	m.mu.Unlock()
}

// Remove deletes all documents in coll matching selector.
func (m *Mem) Remove(coll string, selector bson.M) {
	m.mu.Lock()
	defer m.mu.Unlock()
	docs := m.colls[coll][:0]
	for _, doc := range m.colls[coll] {
		if !matches(doc, selector) {
			docs = append(docs, doc)
		}
	}
	m.colls[coll] = docs
}

// FindOne implements Store.
func (m *Mem) FindOne(ctx context.Context, coll string, selector, projection bson.M, out any) (bool, error) {
	atomic.AddInt64(&m.finds, 1)
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, doc := range m.colls[coll] {
		if matches(doc, selector) {
			raw, err := bson.Marshal(doc)
			if err != nil {
				return false, err
			}
			if err := bson.Unmarshal(raw, out); err != nil {
				return false, err
			}
			return true, nil
		}
	}
	return false, nil
}

// Count implements Store.
func (m *Mem) Count(ctx context.Context, coll string, selector bson.M) (int64, error) {
	atomic.AddInt64(&m.counts, 1)
	m.mu.RLock()
	defer m.mu.RUnlock()
	var n int64
	for _, doc := range m.colls[coll] {
		if matches(doc, selector) {
			n++
		}
	}
	return n, nil
}

// Distinct implements Store.
func (m *Mem) Distinct(ctx context.Context, coll, field string, selector bson.M) ([]any, error) {
	atomic.AddInt64(&m.distincts, 1)
	m.mu.RLock()
	defer m.mu.RUnlock()
	seen := make(map[any]bool)
	var vals []any
	for _, doc := range m.colls[coll] {
		if !matches(doc, selector) {
			continue
		}
		switch v := doc[field].(type) {
		case bson.A:
			for _, el := range v {
				if !seen[el] {
					seen[el] = true
					vals = append(vals, el)
				}
			}
		case nil:
		default:
			if !seen[v] {
				seen[v] = true
				vals = append(vals, v)
			}
		}
	}
	return vals, nil
}

// Finds returns the number of FindOne calls observed.
func (m *Mem) Finds() int64 { return atomic.LoadInt64(&m.finds) }

// Counts returns the number of Count calls observed.
func (m *Mem) Counts() int64 { return atomic.LoadInt64(&m.counts) }

// Distincts returns the number of Distinct calls observed.
func (m *Mem) Distincts() int64 { return atomic.LoadInt64(&m.distincts) }

func matches(doc, selector bson.M) bool {
	for field, want := range selector {
		have, ok := doc[field]
		if !ok {
			return false
		}
		if arr, isArr := have.(bson.A); isArr {
			found := false
			for _, el := range arr {
				if el == want {
					found = true
					break
				}
			}
			if !found {
				return false
			}
			continue
		}
		if have != want {
			return false
		}
	}
	return true
}
