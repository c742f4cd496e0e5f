// Package document holds the in-memory representation of a tenant dataset:
// named collections of schemaless JSON records.
package document

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"github.com/google/uuid"
)

// Sentinel errors returned by Store operations. The HTTP layer maps these
// onto status codes.
var (
	ErrCollectionNotFound = errors.New("collection not found")
	ErrRecordNotFound     = errors.New("record not found")
	ErrRecordExists       = errors.New("record already exists")
)

// idField identifies a record within its collection.
const idField = "id"

// Record is a single schemaless JSON object.
type Record map[string]interface{}

// Dataset maps collection names to ordered record lists. One dataset is the
// unit of durable persistence for one tenant.
type Dataset map[string][]Record

// FromValue converts a decoded JSON or YAML document into a Dataset. The
// value must be an object whose every field is an array of objects. The
// returned dataset shares memory with v; callers that need isolation should
// Clone it.
func FromValue(v interface{}) (Dataset, error) {
	root, ok := v.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("dataset root must be an object, got %T", v)
	}

	ds := make(Dataset, len(root))
	for name, raw := range root {
		items, ok := raw.([]interface{})
		if !ok {
			return nil, fmt.Errorf("collection %q must be an array, got %T", name, raw)
		}
		records := make([]Record, 0, len(items))
		for i, item := range items {
			obj, ok := item.(map[string]interface{})
			if !ok {
				return nil, fmt.Errorf("collection %q item %d must be an object, got %T", name, i, item)
			}
			records = append(records, Record(obj))
		}
		ds[name] = records
	}
	return ds, nil
}

// DecodeJSON parses raw JSON bytes into a Dataset.
func DecodeJSON(data []byte) (Dataset, error) {
	var v interface{}
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("failed to parse dataset: %w", err)
	}
	return FromValue(v)
}

// Clone returns a deep copy of the dataset.
func (d Dataset) Clone() Dataset {
	if d == nil {
		return nil
	}
	out := make(Dataset, len(d))
	for name, records := range d {
		copied := make([]Record, len(records))
		for i, rec := range records {
			copied[i] = rec.Clone()
		}
		out[name] = copied
	}
	return out
}

// Clone returns a deep copy of the record.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, item := range val {
			out[k] = cloneValue(item)
		}
		return out
	case Record:
		return val.Clone()
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return v
	}
}

// idString renders an id value the way it appears in a URL path segment.
// JSON numbers decode as float64, so integral values print without a
// decimal point: a stored id of 7 matches the path segment "7".
func idString(v interface{}) string {
	switch id := v.(type) {
	case string:
		return id
	case float64:
		return strconv.FormatFloat(id, 'f', -1, 64)
	case json.Number:
		return id.String()
	default:
		return fmt.Sprintf("%v", v)
	}
}

// Store holds one tenant's dataset in memory behind a read-write mutex.
// Every record handed back to a caller is a deep copy, so results can be
// read and encoded without holding the lock.
type Store struct {
	mu   sync.RWMutex
	data Dataset
}

// NewStore creates a store around data, taking ownership of it. A nil
// dataset is treated as empty.
func NewStore(data Dataset) *Store {
	if data == nil {
		data = Dataset{}
	}
	return &Store{data: data}
}

// Collections returns the sorted collection names present in the dataset.
func (s *Store) Collections() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.data))
	for name := range s.data {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// List returns all records of a collection in insertion order.
func (s *Store) List(collection string) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records, ok := s.data[collection]
	if !ok {
		return nil, ErrCollectionNotFound
	}
	out := make([]Record, len(records))
	for i, rec := range records {
		out[i] = rec.Clone()
	}
	return out, nil
}

// Get returns the record whose id field matches id.
func (s *Store) Get(collection, id string) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records, ok := s.data[collection]
	if !ok {
		return nil, ErrCollectionNotFound
	}
	_, rec := findRecord(records, id)
	if rec == nil {
		return nil, ErrRecordNotFound
	}
	return rec.Clone(), nil
}

// Create appends a record to a collection. A missing id field is filled
// with a generated UUID string; a duplicate id is rejected.
func (s *Store) Create(collection string, rec Record) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, ok := s.data[collection]
	if !ok {
		return nil, ErrCollectionNotFound
	}

	stored := rec.Clone()
	if stored == nil {
		stored = Record{}
	}
	if rawID, hasID := stored[idField]; !hasID || rawID == nil {
		stored[idField] = uuid.NewString()
	} else if _, existing := findRecord(records, idString(rawID)); existing != nil {
		return nil, ErrRecordExists
	}

	s.data[collection] = append(records, stored)
	return stored.Clone(), nil
}

// Replace swaps the stored record for rec wholesale, keeping the original
// id value regardless of what the replacement carries.
func (s *Store) Replace(collection, id string, rec Record) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, ok := s.data[collection]
	if !ok {
		return nil, ErrCollectionNotFound
	}
	idx, existing := findRecord(records, id)
	if existing == nil {
		return nil, ErrRecordNotFound
	}

	stored := rec.Clone()
	if stored == nil {
		stored = Record{}
	}
	stored[idField] = existing[idField]
	records[idx] = stored
	return stored.Clone(), nil
}

// Patch merges fields into the stored record. The id field is immutable
// and is ignored if present in the patch.
func (s *Store) Patch(collection, id string, fields Record) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, ok := s.data[collection]
	if !ok {
		return nil, ErrCollectionNotFound
	}
	_, existing := findRecord(records, id)
	if existing == nil {
		return nil, ErrRecordNotFound
	}

	for k, v := range fields {
		if k == idField {
			continue
		}
		existing[k] = cloneValue(v)
	}
	return existing.Clone(), nil
}

// Delete removes a record, preserving the order of the remaining ones.
func (s *Store) Delete(collection, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, ok := s.data[collection]
	if !ok {
		return ErrCollectionNotFound
	}
	idx, existing := findRecord(records, id)
	if existing == nil {
		return ErrRecordNotFound
	}
	s.data[collection] = append(records[:idx], records[idx+1:]...)
	return nil
}

// Snapshot returns a deep copy of the full dataset, safe to encode or
// persist while the store keeps serving writes.
func (s *Store) Snapshot() Dataset {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.Clone()
}

func findRecord(records []Record, id string) (int, Record) {
	for i, rec := range records {
		if raw, ok := rec[idField]; ok && idString(raw) == id {
			return i, rec
		}
	}
	return -1, nil
}
