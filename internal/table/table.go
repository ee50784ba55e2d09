package table

import (
	"fmt"
	"sort"
	"sync"
	"time"
	"unsafe"

	"github.com/corefoundry/substrate/internal/logging"
)

// Table is spec §3/§4.G's Table: schema, rows, indexes, callbacks, and
// the monotone counters and timestamps spec §3 names.
type Table struct {
	mu sync.RWMutex

	schema *Schema
	rows   map[uint64]*Row
	nextID uint64

	indexes map[string]*Index

	callbackMu sync.Mutex
	callbacks  map[string]ChangeCallback

	inserts      uint64
	updates      uint64
	deletes      uint64
	createdAt    time.Time
	lastModified time.Time

	nextTxnID uint64

	log *logging.Logger
}

// New creates an empty table governed by schema. If schema declares a
// primary key, it is materialized as the reserved __primary_key unique
// index.
func New(schema *Schema, log *logging.Logger) *Table {
	t := &Table{
		schema:    schema,
		rows:      make(map[uint64]*Row),
		indexes:   make(map[string]*Index),
		callbacks: make(map[string]ChangeCallback),
		createdAt: time.Now(),
		log:       log,
	}
	t.lastModified = t.createdAt
	if len(schema.PrimaryKey) > 0 {
		t.indexes[PrimaryKeyIndexName] = newIndex(PrimaryKeyIndexName, schema.PrimaryKey, true)
	}
	return t
}

// Name returns the owning schema's name.
func (t *Table) Name() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.schema.Name
}

// Schema returns a copy of the table's current schema.
func (t *Table) Schema() Schema {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return *t.schema.clone()
}

// --- change callbacks -------------------------------------------------------

// AddChangeCallback registers fn under name, replacing any prior
// callback with that name.
func (t *Table) AddChangeCallback(name string, fn ChangeCallback) {
	t.callbackMu.Lock()
	defer t.callbackMu.Unlock()
	t.callbacks[name] = fn
}

// RemoveChangeCallback removes the callback registered under name.
func (t *Table) RemoveChangeCallback(name string) {
	t.callbackMu.Lock()
	defer t.callbackMu.Unlock()
	delete(t.callbacks, name)
}

// fireChange invokes every registered callback synchronously on the
// calling goroutine, after the write lock that produced event has
// already been released. Callbacks are forbidden from calling back
// into the same table (spec §9); firing after unlock means a callback
// that breaks that rule deadlocks on its own re-entry rather than
// wedging every other reader/writer waiting on the table for the
// callback's whole duration. Panics are caught and logged; other
// callbacks still fire.
func (t *Table) fireChange(event ChangeEvent) {
	t.callbackMu.Lock()
	callbacks := make([]ChangeCallback, 0, len(t.callbacks))
	for _, cb := range t.callbacks {
		callbacks = append(callbacks, cb)
	}
	t.callbackMu.Unlock()

	for _, cb := range callbacks {
		t.invokeCallback(cb, event)
	}
}

func (t *Table) invokeCallback(cb ChangeCallback, event ChangeEvent) {
	defer func() {
		if r := recover(); r != nil && t.log != nil {
			t.log.Error("table %s: change callback panicked: %v", t.schema.Name, r)
		}
	}()
	cb(event)
}

// --- insert/update/delete ----------------------------------------------------

// Insert implements spec §4.G.3's insert operation.
func (t *Table) Insert(values map[string]Value) (uint64, error) {
	t.mu.Lock()

	if errs := t.schema.ValidationErrors(values); len(errs) > 0 {
		t.mu.Unlock()
		return 0, &ValidationFailedError{Errors: errs}
	}

	t.nextID++
	id := t.nextID
	row := newRow(id, t.withDefaults(values))

	inserted := make([]*Index, 0, len(t.indexes))
	for _, idx := range t.indexes {
		if err := idx.insert(id, row.Values); err != nil {
			for _, done := range inserted {
				done.remove(id, row.Values)
			}
			t.nextID--
			t.mu.Unlock()
			return 0, &UniqueViolationError{Index: idx.Name(), Cause: err}
		}
		inserted = append(inserted, idx)
	}

	t.rows[id] = row
	t.inserts++
	t.lastModified = time.Now()
	snapshot := row.Snapshot()
	t.mu.Unlock()

	t.fireChange(ChangeEvent{
		Kind:      RowInserted,
		TableName: t.schema.Name,
		RowID:     &id,
		NewValues: snapshot.Values,
		Timestamp: time.Now(),
	})
	return id, nil
}

func (t *Table) withDefaults(values map[string]Value) map[string]Value {
	merged := cloneValues(values)
	for _, col := range t.schema.Columns {
		if _, present := merged[col.Name]; !present && col.Default != nil {
			merged[col.Name] = *col.Default
		}
	}
	return merged
}

// Update implements spec §4.G.3's update operation. A unique conflict
// on any index aborts before any stored state changes, per the "no
// partial state observable" requirement, and, per spec §9's resolved
// open question, does not bump the row's version.
func (t *Table) Update(rowID uint64, patch map[string]Value) (bool, error) {
	t.mu.Lock()

	row, ok := t.rows[rowID]
	if !ok {
		t.mu.Unlock()
		return false, nil
	}

	merged := row.applyValues(patch)
	if errs := t.schema.ValidationErrors(merged); len(errs) > 0 {
		t.mu.Unlock()
		return false, &ValidationFailedError{Errors: errs}
	}

	updated := make([]*Index, 0, len(t.indexes))
	for _, idx := range t.indexes {
		if err := idx.update(rowID, row.Values, merged); err != nil {
			for _, done := range updated {
				done.update(rowID, merged, row.Values)
			}
			t.mu.Unlock()
			return false, &UniqueViolationError{Index: idx.Name(), Cause: err}
		}
		updated = append(updated, idx)
	}

	old := row.Snapshot()
	row.Values = merged
	row.IncrementVersion()
	t.updates++
	t.lastModified = time.Now()
	newSnapshot := row.Snapshot()
	t.mu.Unlock()

	t.fireChange(ChangeEvent{
		Kind:      RowUpdated,
		TableName: t.schema.Name,
		RowID:     &rowID,
		OldValues: old.Values,
		NewValues: newSnapshot.Values,
		Timestamp: time.Now(),
	})
	return true, nil
}

// Delete implements spec §4.G.3's delete operation.
func (t *Table) Delete(rowID uint64) bool {
	t.mu.Lock()
	row, ok := t.rows[rowID]
	if !ok {
		t.mu.Unlock()
		return false
	}
	for _, idx := range t.indexes {
		idx.remove(rowID, row.Values)
	}
	delete(t.rows, rowID)
	t.deletes++
	t.lastModified = time.Now()
	old := row.Snapshot()
	t.mu.Unlock()

	t.fireChange(ChangeEvent{
		Kind:      RowDeleted,
		TableName: t.schema.Name,
		RowID:     &rowID,
		OldValues: old.Values,
		Timestamp: time.Now(),
	})
	return true
}

// --- reads --------------------------------------------------------------

// Get returns a snapshot of rowID's row, if present.
func (t *Table) Get(rowID uint64) (Row, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	row, ok := t.rows[rowID]
	if !ok {
		return Row{}, false
	}
	return row.Snapshot(), true
}

// AllRows returns a snapshot of every row, in ascending id order for
// determinism.
func (t *Table) AllRows() []Row {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.allRowsLocked()
}

func (t *Table) allRowsLocked() []Row {
	out := make([]Row, 0, len(t.rows))
	for _, row := range t.rows {
		out = append(out, row.Snapshot())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// RowCount returns the current row count.
func (t *Table) RowCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.rows)
}

// FindByIndex returns snapshots of every row whose extracted key under
// indexName equals key.
func (t *Table) FindByIndex(indexName string, key map[string]Value) ([]Row, error) {
	t.mu.RLock()
	idx, ok := t.indexes[indexName]
	if !ok {
		t.mu.RUnlock()
		return nil, fmt.Errorf("table: index %q not found", indexName)
	}
	ids := idx.findExact(key)
	out := make([]Row, 0, len(ids))
	for _, id := range ids {
		if row, ok := t.rows[id]; ok {
			out = append(out, row.Snapshot())
		}
	}
	t.mu.RUnlock()
	return out, nil
}

// Query implements spec §4.G.3's query operation.
func (t *Table) Query(q Query) []Row {
	rows := t.AllRows()
	return applyQuery(rows, q)
}

// --- indexes --------------------------------------------------------------

// CreateIndex builds a new index over columns, pre-populating from
// every current row; a unique violation during population aborts
// creation and the index is not retained.
func (t *Table) CreateIndex(name string, columns []string, unique bool) error {
	t.mu.Lock()
	if _, exists := t.indexes[name]; exists {
		t.mu.Unlock()
		return fmt.Errorf("table: index %q already exists", name)
	}
	for _, col := range columns {
		if _, ok := t.schema.findColumn(col); !ok {
			t.mu.Unlock()
			return fmt.Errorf("table: index column %q not found in schema", col)
		}
	}
	rows := t.allRowsLocked()
	t.mu.Unlock()

	idx := newIndex(name, columns, unique)
	for _, row := range rows {
		if err := idx.insert(row.ID, row.Values); err != nil {
			return &UniqueViolationError{Index: name, Cause: err}
		}
	}

	t.mu.Lock()
	t.indexes[name] = idx
	t.mu.Unlock()

	t.fireChange(ChangeEvent{Kind: IndexCreated, TableName: t.schema.Name, Timestamp: time.Now()})
	return nil
}

// DropIndex removes a non-reserved index.
func (t *Table) DropIndex(name string) error {
	if name == PrimaryKeyIndexName {
		return fmt.Errorf("table: cannot drop reserved index %q", PrimaryKeyIndexName)
	}
	t.mu.Lock()
	if _, ok := t.indexes[name]; !ok {
		t.mu.Unlock()
		return fmt.Errorf("table: index %q not found", name)
	}
	delete(t.indexes, name)
	t.mu.Unlock()

	t.fireChange(ChangeEvent{Kind: IndexDropped, TableName: t.schema.Name, Timestamp: time.Now()})
	return nil
}

// IndexNames returns the currently defined index names.
func (t *Table) IndexNames() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	names := make([]string, 0, len(t.indexes))
	for name := range t.indexes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// --- schema evolution -------------------------------------------------------

// EvolveSchema replaces the table's schema with newSchema, requiring
// the same name and a strictly greater version, per spec §4.G.3. Rows
// are kept as-is.
func (t *Table) EvolveSchema(newSchema *Schema) error {
	t.mu.Lock()
	if newSchema.Name != t.schema.Name {
		t.mu.Unlock()
		return &SchemaIncompatibleError{Reason: "table name mismatch"}
	}
	if newSchema.Version <= t.schema.Version {
		t.mu.Unlock()
		return &SchemaIncompatibleError{Reason: "new version must exceed current version"}
	}
	t.schema = newSchema.clone()
	t.mu.Unlock()

	t.fireChange(ChangeEvent{Kind: SchemaChanged, TableName: newSchema.Name, Timestamp: time.Now()})
	return nil
}

// --- lifecycle --------------------------------------------------------------

// Clear removes all rows and rebuilds every index empty, keeping the
// schema and callbacks. It briefly releases the lock while rebuilding
// the primary-key index to match spec §4.G.4's deadlock-avoidance
// note for index-recreating operations.
func (t *Table) Clear() {
	t.mu.Lock()
	t.rows = make(map[uint64]*Row)
	names := make([]string, 0, len(t.indexes))
	columns := make(map[string][]string, len(t.indexes))
	unique := make(map[string]bool, len(t.indexes))
	for name, idx := range t.indexes {
		names = append(names, name)
		columns[name] = idx.Columns()
		unique[name] = idx.Unique()
	}
	t.mu.Unlock()

	rebuilt := make(map[string]*Index, len(names))
	for _, name := range names {
		rebuilt[name] = newIndex(name, columns[name], unique[name])
	}

	t.mu.Lock()
	t.indexes = rebuilt
	t.lastModified = time.Now()
	t.mu.Unlock()
}

// Empty reports whether the table currently has no rows.
func (t *Table) Empty() bool {
	return t.RowCount() == 0
}

// Clone deep-copies schema, rows, indexes, and callbacks into a new
// Table.
func (t *Table) Clone() *Table {
	t.mu.RLock()
	defer t.mu.RUnlock()

	clone := New(t.schema.clone(), t.log)
	clone.nextID = t.nextID
	clone.inserts, clone.updates, clone.deletes = t.inserts, t.updates, t.deletes
	clone.createdAt, clone.lastModified = t.createdAt, t.lastModified

	for id, row := range t.rows {
		copied := row.Snapshot()
		clone.rows[id] = &copied
	}
	for name, idx := range t.indexes {
		newIdx := newIndex(name, idx.Columns(), idx.Unique())
		for id, row := range clone.rows {
			_ = newIdx.insert(id, row.Values)
		}
		clone.indexes[name] = newIdx
	}
	t.callbackMu.Lock()
	for name, cb := range t.callbacks {
		clone.callbacks[name] = cb
	}
	t.callbackMu.Unlock()

	return clone
}

// MergeFrom copies every row of other into t, requiring schema
// compatibility by name+type for every column of t's schema. Rows get
// a fresh id range; rows that fail validation against t's schema are
// skipped.
func (t *Table) MergeFrom(other *Table) (merged, skipped int, err error) {
	if compatErr := t.checkMergeCompatible(other); compatErr != nil {
		return 0, 0, compatErr
	}
	for _, row := range other.AllRows() {
		if _, insertErr := t.Insert(row.Values); insertErr != nil {
			skipped++
			continue
		}
		merged++
	}
	return merged, skipped, nil
}

func (t *Table) checkMergeCompatible(other *Table) error {
	otherSchema := other.Schema()
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, col := range t.schema.Columns {
		otherCol, ok := find(otherSchema.Columns, col.Name)
		if !ok || otherCol.Type != col.Type {
			return &SchemaIncompatibleError{Reason: fmt.Sprintf("column %q missing or type-mismatched in source table", col.Name)}
		}
	}
	return nil
}

func find(cols []ColumnDefinition, name string) (ColumnDefinition, bool) {
	for _, c := range cols {
		if c.Name == name {
			return c, true
		}
	}
	return ColumnDefinition{}, false
}

// Swap exchanges t and other's entire internal state.
func (t *Table) Swap(other *Table) {
	first, second := t, other
	if uintptr(unsafe.Pointer(first)) > uintptr(unsafe.Pointer(second)) {
		first, second = second, first
	}
	first.mu.Lock()
	defer first.mu.Unlock()
	second.mu.Lock()
	defer second.mu.Unlock()

	t.schema, other.schema = other.schema, t.schema
	t.rows, other.rows = other.rows, t.rows
	t.nextID, other.nextID = other.nextID, t.nextID
	t.indexes, other.indexes = other.indexes, t.indexes
	t.inserts, other.inserts = other.inserts, t.inserts
	t.updates, other.updates = other.updates, t.updates
	t.deletes, other.deletes = other.deletes, t.deletes
	t.createdAt, other.createdAt = other.createdAt, t.createdAt
	t.lastModified, other.lastModified = other.lastModified, t.lastModified
}

// Statistics is the counters+timestamps block of spec §6.5's JSON
// persistence format.
type Statistics struct {
	TotalInserts uint64
	TotalUpdates uint64
	TotalDeletes uint64
	CreatedAt    time.Time
	LastModified time.Time
}

func (t *Table) Stats() Statistics {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return Statistics{
		TotalInserts: t.inserts,
		TotalUpdates: t.updates,
		TotalDeletes: t.deletes,
		CreatedAt:    t.createdAt,
		LastModified: t.lastModified,
	}
}
