package table

import (
	"fmt"
	"sort"
	"sync"
)

// PrimaryKeyIndexName is the reserved index name materializing a
// table's declared primary key, per spec §3/§4.G.3.
const PrimaryKeyIndexName = "__primary_key"

// Index is spec §3/§4.G.3's TableIndex: an unordered map from composite
// key to a sorted set of row ids. Keys are encoded via Value.encodeKey
// and joined, so lookup is exact-match; the spec's "range lookup" over
// an index is not exercised by any table operation in this package
// (query/find_by_index both work against exact keys), so no ordered
// tree structure is carried beyond the sorted id slice each key maps
// to. See DESIGN.md.
type Index struct {
	mu      sync.RWMutex
	name    string
	columns []string
	unique  bool
	entries map[string][]uint64
}

func newIndex(name string, columns []string, unique bool) *Index {
	return &Index{
		name:    name,
		columns: append([]string(nil), columns...),
		unique:  unique,
		entries: make(map[string][]uint64),
	}
}

func (idx *Index) Name() string      { return idx.name }
func (idx *Index) Columns() []string { return append([]string(nil), idx.columns...) }
func (idx *Index) Unique() bool      { return idx.unique }

// extractKey builds the composite-key encoding for row under this
// index's declared columns, treating an absent column as Null.
func (idx *Index) extractKey(values map[string]Value) string {
	key := ""
	for i, col := range idx.columns {
		v, ok := values[col]
		if !ok {
			v = Null()
		}
		if i > 0 {
			key += "\x1f"
		}
		key += v.encodeKey()
	}
	return key
}

// insert adds rowID under row's extracted key, refusing if it would
// violate uniqueness.
func (idx *Index) insert(rowID uint64, values map[string]Value) error {
	key := idx.extractKey(values)
	idx.mu.Lock()
	defer idx.mu.Unlock()
	existing := idx.entries[key]
	if idx.unique && len(existing) > 0 {
		return fmt.Errorf("table: unique index %q violated for key %q", idx.name, key)
	}
	idx.entries[key] = insertSorted(existing, rowID)
	return nil
}

// update moves rowID's entry from oldValues' key to newValues' key,
// refusing if the new key would violate uniqueness. Leaves the index
// unchanged on failure.
func (idx *Index) update(rowID uint64, oldValues, newValues map[string]Value) error {
	oldKey := idx.extractKey(oldValues)
	newKey := idx.extractKey(newValues)
	if oldKey == newKey {
		return nil
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()
	if idx.unique && len(idx.entries[newKey]) > 0 {
		return fmt.Errorf("table: unique index %q violated for key %q", idx.name, newKey)
	}
	idx.entries[oldKey] = removeFromSorted(idx.entries[oldKey], rowID)
	if len(idx.entries[oldKey]) == 0 {
		delete(idx.entries, oldKey)
	}
	idx.entries[newKey] = insertSorted(idx.entries[newKey], rowID)
	return nil
}

// remove deletes rowID's entry under values' key.
func (idx *Index) remove(rowID uint64, values map[string]Value) {
	key := idx.extractKey(values)
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.entries[key] = removeFromSorted(idx.entries[key], rowID)
	if len(idx.entries[key]) == 0 {
		delete(idx.entries, key)
	}
}

// findExact returns the row ids currently stored under the key that
// values encode to (extracted the same way insert does).
func (idx *Index) findExact(values map[string]Value) []uint64 {
	key := idx.extractKey(values)
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	ids := idx.entries[key]
	out := make([]uint64, len(ids))
	copy(out, ids)
	return out
}

func insertSorted(ids []uint64, id uint64) []uint64 {
	i := sort.Search(len(ids), func(i int) bool { return ids[i] >= id })
	if i < len(ids) && ids[i] == id {
		return ids
	}
	ids = append(ids, 0)
	copy(ids[i+1:], ids[i:])
	ids[i] = id
	return ids
}

func removeFromSorted(ids []uint64, id uint64) []uint64 {
	i := sort.Search(len(ids), func(i int) bool { return ids[i] >= id })
	if i < len(ids) && ids[i] == id {
		return append(ids[:i], ids[i+1:]...)
	}
	return ids
}
