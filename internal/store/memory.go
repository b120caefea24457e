package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryStore keeps collections in process. A single mutex serialises writes,
// which gives Increment the same atomicity a document database provides.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]map[string]Document
	now         func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		collections: make(map[string]map[string]Document),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// WithClock replaces the store's clock. Used to pin "now" in tests.
func (s *MemoryStore) WithClock(now func() time.Time) *MemoryStore {
	s.now = now
	return s
}

func (s *MemoryStore) Now() time.Time {
	return s.now()
}

func (s *MemoryStore) Create(ctx context.Context, collection, key string, doc Document) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	docs := s.collection(collection)
	if _, exists := docs[key]; exists {
		return ErrDuplicateKey
	}
	stored := Document(copyMap(doc))
	stored[KeyField] = key
	docs[key] = stored
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, collection, key string) (Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.collections[collection][key]
	if !ok {
		return nil, ErrNotFound
	}
	return Document(copyMap(doc)), nil
}

func (s *MemoryStore) Query(ctx context.Context, collection string, q Query) ([]Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	docs := s.collections[collection]
	keys := make([]string, 0, len(docs))
	for key := range docs {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	result := make([]Document, 0)
	for _, key := range keys {
		doc := docs[key]
		if matchesAll(doc, q.Filters) {
			result = append(result, doc)
		}
	}

	if q.OrderBy != "" {
		sort.SliceStable(result, func(i, j int) bool {
			a, _ := Lookup(result[i], q.OrderBy)
			b, _ := Lookup(result[j], q.OrderBy)
			c, _ := compare(a, b)
			if q.Descending {
				return c > 0
			}
			return c < 0
		})
	}

	if q.Limit > 0 && len(result) > q.Limit {
		result = result[:q.Limit]
	}

	out := make([]Document, len(result))
	for i, doc := range result {
		out[i] = Document(copyMap(doc))
	}
	return out, nil
}

func (s *MemoryStore) Increment(ctx context.Context, collection, key string, deltas map[string]int64) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Deltas land on a copy that replaces the document only when every path
	// applies, so a failed call leaves it untouched.
	docs := s.collection(collection)
	next := Document{KeyField: key}
	if doc, ok := docs[key]; ok {
		next = Document(copyMap(doc))
	}
	for _, path := range sortedPaths(deltas) {
		parent, field, err := parentOf(next, path)
		if err != nil {
			return err
		}
		current, _ := AsInt64(parent[field])
		parent[field] = current + deltas[path]
	}
	docs[key] = next
	return nil
}

func sortedPaths(deltas map[string]int64) []string {
	paths := make([]string, 0, len(deltas))
	for path := range deltas {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}

func (s *MemoryStore) Merge(ctx context.Context, collection, key string, partial Document) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc := s.document(collection, key)
	for path, value := range partial {
		parent, field, err := parentOf(doc, path)
		if err != nil {
			return err
		}
		parent[field] = deepCopy(value)
	}
	return nil
}

func (s *MemoryStore) collection(name string) map[string]Document {
	docs, ok := s.collections[name]
	if !ok {
		docs = make(map[string]Document)
		s.collections[name] = docs
	}
	return docs
}

func (s *MemoryStore) document(collection, key string) Document {
	docs := s.collection(collection)
	doc, ok := docs[key]
	if !ok {
		doc = Document{KeyField: key}
		docs[key] = doc
	}
	return doc
}

// parentOf walks path, creating intermediate objects, and returns the object
// that owns the last segment.
func parentOf(doc Document, path string) (map[string]any, string, error) {
	parts := strings.Split(path, ".")
	current := map[string]any(doc)
	for _, part := range parts[:len(parts)-1] {
		next, exists := current[part]
		if !exists {
			child := make(map[string]any)
			current[part] = child
			current = child
			continue
		}
		child, ok := asMap(next)
		if !ok {
			return nil, "", fmt.Errorf("field %q is not an object", part)
		}
		current = child
	}
	return current, parts[len(parts)-1], nil
}

func matchesAll(doc Document, filters []Filter) bool {
	for _, f := range filters {
		if !matches(doc, f) {
			return false
		}
	}
	return true
}
