// Package store defines the document store the analytics engine writes raw
// events and daily rollups to, plus the backends that implement it.
package store

import (
	"context"
	"time"
)

// KeyField holds the document key on every document returned by a Store.
const KeyField = "_id"

// Document is a schemaless record. Nested objects are map[string]any.
type Document map[string]any

type Op string

const (
	OpEqual          Op = "=="
	OpGreater        Op = ">"
	OpGreaterOrEqual Op = ">="
	OpLess           Op = "<"
	OpLessOrEqual    Op = "<="
)

// Filter compares the value at a dot-separated field path.
type Filter struct {
	Field string
	Op    Op
	Value any
}

type Query struct {
	Filters    []Filter
	OrderBy    string
	Descending bool
	Limit      int // 0 = unlimited
}

// Where starts a query with a single filter.
func Where(field string, op Op, value any) Query {
	return Query{Filters: []Filter{{Field: field, Op: op, Value: value}}}
}

// And adds a filter. Two filters on one field form a range query.
func (q Query) And(field string, op Op, value any) Query {
	q.Filters = append(q.Filters, Filter{Field: field, Op: op, Value: value})
	return q
}

func (q Query) Order(field string, descending bool) Query {
	q.OrderBy = field
	q.Descending = descending
	return q
}

func (q Query) Take(limit int) Query {
	q.Limit = limit
	return q
}

type Store interface {
	// Create writes a new document. It fails with ErrDuplicateKey when the key exists.
	Create(ctx context.Context, collection, key string, doc Document) error
	// Get returns ErrNotFound when the key is absent.
	Get(ctx context.Context, collection, key string) (Document, error)
	Query(ctx context.Context, collection string, q Query) ([]Document, error)
	// Increment atomically adds each delta to its field path, creating the
	// document and any missing fields first. On error no delta is applied.
	Increment(ctx context.Context, collection, key string, deltas map[string]int64) error
	// Merge upserts the document and overwrites only the given fields.
	Merge(ctx context.Context, collection, key string, partial Document) error
}

// Clock is implemented by stores that own the authoritative time for new records.
type Clock interface {
	Now() time.Time
}

// Now returns the store's time when it has one and the local clock otherwise.
func Now(s Store) time.Time {
	if c, ok := s.(Clock); ok {
		return c.Now()
	}
	return time.Now().UTC()
}
