// Package resource holds the in-memory data of a resource handle: either a
// single object or an identity-indexed ordered collection.
package resource

import (
	"errors"
	"fmt"
	"sync"
)

// DefaultIDField is the identity field used when a request names none.
const DefaultIDField = "id"

var (
	// ErrNotArray is returned when a collection merge receives a non-sequence.
	ErrNotArray = errors.New("response isn't of the type array")
	// ErrNotObject is returned when a single merge receives a non-object.
	ErrNotObject = errors.New("response isn't of the type object")
)

// Value is the tagged shape of a resource's data: Single or Collection.
type Value interface {
	isValue()
}

// Single is the data of a resource holding one object.
type Single map[string]any

// Collection is the data of a resource holding an ordered list of objects
// and the position of every element that carries an identity.
type Collection struct {
	Items []any
	IDs   map[string]int
}

func (Single) isValue()     {}
func (Collection) isValue() {}

// Store is the mutable data behind one resource handle. The identity index
// only changes under the same lock as the collection it indexes.
type Store struct {
	mu     sync.RWMutex
	single map[string]any
	items  []any
	ids    map[string]int
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		single: make(map[string]any),
		ids:    make(map[string]int),
	}
}

// Clear resets the single object, the collection and the identity index.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clear()
}

func (s *Store) clear() {
	for k := range s.single {
		delete(s.single, k)
	}
	s.items = s.items[:0]
	s.ids = make(map[string]int)
}

// MergeCollection merges incoming into the collection. Without extend the
// collection is cleared first. Elements whose identity is already indexed
// are replaced in place; all others are appended. Nil elements are skipped.
// A non-sequence is rejected with ErrNotArray and nothing is changed.
func (s *Store) MergeCollection(incoming any, idField string, extend bool) ([]any, error) {
	list, err := AsList(incoming)
	if err != nil {
		return nil, err
	}
	if idField == "" {
		idField = DefaultIDField
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !extend {
		s.clear()
	}

	for _, item := range list {
		if item == nil {
			continue
		}
		id, hasID := Identity(item, idField)
		if hasID {
			if idx, ok := s.ids[id]; ok {
				s.items[idx] = item
				continue
			}
		}
		s.items = append(s.items, item)
		if hasID {
			s.ids[id] = len(s.items) - 1
		}
	}

	return s.itemsCopy(), nil
}

// MergeSingle replaces the single object field by field with the fields of
// incoming. An incoming identity is recorded at position 0. A nil incoming
// only clears; anything other than an object is rejected with ErrNotObject.
func (s *Store) MergeSingle(incoming any, idField string) (map[string]any, error) {
	var obj map[string]any
	if incoming != nil {
		m, ok := incoming.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: got %T", ErrNotObject, incoming)
		}
		obj = m
	}
	if idField == "" {
		idField = DefaultIDField
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.clear()
	for k, v := range obj {
		s.single[k] = v
	}
	if id, ok := Identity(obj, idField); ok {
		s.ids[id] = 0
	}

	return s.singleCopy(), nil
}

// Snapshot returns a copy of the data in the requested shape.
func (s *Store) Snapshot(collection bool) Value {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if collection {
		return Collection{Items: s.itemsCopy(), IDs: s.idsCopy()}
	}
	return Single(s.singleCopy())
}

// Items returns a copy of the collection.
func (s *Store) Items() []any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.itemsCopy()
}

// Object returns a copy of the single object.
func (s *Store) Object() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.singleCopy()
}

// IDs returns a copy of the identity index.
func (s *Store) IDs() map[string]int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.idsCopy()
}

// Len returns the number of collection elements.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

func (s *Store) itemsCopy() []any {
	out := make([]any, len(s.items))
	copy(out, s.items)
	return out
}

func (s *Store) singleCopy() map[string]any {
	out := make(map[string]any, len(s.single))
	for k, v := range s.single {
		out[k] = v
	}
	return out
}

func (s *Store) idsCopy() map[string]int {
	out := make(map[string]int, len(s.ids))
	for k, v := range s.ids {
		out[k] = v
	}
	return out
}

// Identity returns the identity value of item formatted as an index key.
// Items that are not objects, or whose identity field is missing or nil,
// have no identity.
func Identity(item any, idField string) (string, bool) {
	obj, ok := item.(map[string]any)
	if !ok {
		return "", false
	}
	v, ok := obj[idField]
	if !ok || v == nil {
		return "", false
	}
	return fmt.Sprint(v), true
}

// AsList converts a decoded sequence into []any.
func AsList(v any) ([]any, error) {
	switch t := v.(type) {
	case []any:
		return t, nil
	case []map[string]any:
		out := make([]any, len(t))
		for i, m := range t {
			if m != nil {
				out[i] = m
			}
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: got %T", ErrNotArray, v)
	}
}
