package table

import "time"

// ChangeKind enumerates spec §3's ChangeEvent.kind values.
type ChangeKind int

const (
	RowInserted ChangeKind = iota
	RowUpdated
	RowDeleted
	SchemaChanged
	IndexCreated
	IndexDropped
)

func (k ChangeKind) String() string {
	switch k {
	case RowInserted:
		return "row_inserted"
	case RowUpdated:
		return "row_updated"
	case RowDeleted:
		return "row_deleted"
	case SchemaChanged:
		return "schema_changed"
	case IndexCreated:
		return "index_created"
	case IndexDropped:
		return "index_dropped"
	default:
		return "unknown"
	}
}

// ChangeEvent is spec §3's ChangeEvent.
type ChangeEvent struct {
	Kind          ChangeKind
	TableName     string
	RowID         *uint64
	OldValues     map[string]Value
	NewValues     map[string]Value
	Timestamp     time.Time
	TransactionID uint64
}

// ChangeCallback observes every ChangeEvent fired by a table.
type ChangeCallback func(ChangeEvent)
