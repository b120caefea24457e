package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// MongoStore maps each logical collection onto a MongoDB collection and the
// document key onto _id.
type MongoStore struct {
	db     *mongo.Database
	logger *zap.Logger
}

func NewMongoStore(db *mongo.Database, logger *zap.Logger) *MongoStore {
	return &MongoStore{
		db:     db,
		logger: logger,
	}
}

func (s *MongoStore) Now() time.Time {
	// BSON dates carry millisecond precision.
	return time.Now().UTC().Truncate(time.Millisecond)
}

func (s *MongoStore) Create(ctx context.Context, collection, key string, doc Document) error {
	record := bson.M{}
	for k, v := range doc {
		record[k] = v
	}
	record[KeyField] = key

	_, err := s.db.Collection(collection).InsertOne(ctx, record)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			s.logger.Warn("Duplicate document ignored",
				zap.String("collection", collection),
				zap.String("key", key),
			)
			return ErrDuplicateKey
		}
		s.logger.Error("Failed to create document", zap.String("collection", collection), zap.Error(err))
		return fmt.Errorf("%w: failed to create document: %v", ErrUnavailable, err)
	}

	return nil
}

func (s *MongoStore) Get(ctx context.Context, collection, key string) (Document, error) {
	var raw bson.M
	err := s.db.Collection(collection).FindOne(ctx, bson.M{KeyField: key}).Decode(&raw)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: failed to get document: %v", ErrUnavailable, err)
	}

	return normalizeDocument(raw), nil
}

func (s *MongoStore) Query(ctx context.Context, collection string, q Query) ([]Document, error) {
	opts := options.Find()
	if q.OrderBy != "" {
		direction := 1
		if q.Descending {
			direction = -1
		}
		opts.SetSort(bson.D{{Key: q.OrderBy, Value: direction}})
	}
	if q.Limit > 0 {
		opts.SetLimit(int64(q.Limit))
	}

	cursor, err := s.db.Collection(collection).Find(ctx, buildFilter(q.Filters), opts)
	if err != nil {
		s.logger.Error("Failed to query documents", zap.String("collection", collection), zap.Error(err))
		return nil, fmt.Errorf("%w: failed to query documents: %v", ErrUnavailable, err)
	}
	defer cursor.Close(ctx)

	var raw []bson.M
	if err := cursor.All(ctx, &raw); err != nil {
		return nil, fmt.Errorf("%w: failed to decode documents: %v", ErrUnavailable, err)
	}

	docs := make([]Document, len(raw))
	for i, r := range raw {
		docs[i] = normalizeDocument(r)
	}

	s.logger.Debug("Documents queried",
		zap.String("collection", collection),
		zap.Int("count", len(docs)),
	)

	return docs, nil
}

func (s *MongoStore) Increment(ctx context.Context, collection, key string, deltas map[string]int64) error {
	inc := bson.M{}
	for path, delta := range deltas {
		inc[path] = delta
	}

	_, err := s.db.Collection(collection).UpdateOne(
		ctx,
		bson.M{KeyField: key},
		bson.M{"$inc": inc},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		s.logger.Error("Failed to increment document",
			zap.String("collection", collection),
			zap.String("key", key),
			zap.Error(err),
		)
		return fmt.Errorf("%w: failed to increment document: %v", ErrUnavailable, err)
	}

	return nil
}

func (s *MongoStore) Merge(ctx context.Context, collection, key string, partial Document) error {
	set := bson.M{}
	for path, value := range partial {
		set[path] = value
	}

	_, err := s.db.Collection(collection).UpdateOne(
		ctx,
		bson.M{KeyField: key},
		bson.M{"$set": set},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("%w: failed to merge document: %v", ErrUnavailable, err)
	}

	return nil
}

func buildFilter(filters []Filter) bson.M {
	filter := bson.M{}
	for _, f := range filters {
		if f.Op == OpEqual {
			filter[f.Field] = f.Value
			continue
		}

		ops, ok := filter[f.Field].(bson.M)
		if !ok {
			ops = bson.M{}
			filter[f.Field] = ops
		}
		switch f.Op {
		case OpGreater:
			ops["$gt"] = f.Value
		case OpGreaterOrEqual:
			ops["$gte"] = f.Value
		case OpLess:
			ops["$lt"] = f.Value
		case OpLessOrEqual:
			ops["$lte"] = f.Value
		}
	}
	return filter
}

// normalizeDocument converts driver types into the plain Go values the rest
// of the engine reads.
func normalizeDocument(raw bson.M) Document {
	return Document(normalizeMap(raw))
}

func normalizeMap(raw map[string]any) map[string]any {
	out := make(map[string]any, len(raw))
	for k, v := range raw {
		out[k] = normalizeValue(v)
	}
	return out
}

func normalizeValue(v any) any {
	switch t := v.(type) {
	case bson.M:
		return normalizeMap(t)
	case bson.D:
		m := make(map[string]any, len(t))
		for _, e := range t {
			m[e.Key] = normalizeValue(e.Value)
		}
		return m
	case bson.A:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = normalizeValue(item)
		}
		return out
	case primitive.DateTime:
		return t.Time().UTC()
	case primitive.ObjectID:
		return t.Hex()
	case int32:
		return int64(t)
	default:
		return v
	}
}
