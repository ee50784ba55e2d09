// Persistence for Table, matching the wire schema of spec §6.5 exactly
// (field names, binary-as-hex, datetime-as-epoch-millis, Null-as-null).
// encoding/json is the standard library's own codec, not a third-party
// dependency, so it is used directly here rather than through the
// reactor/logging-style pluggable-interface indirection spec.md
// reserves for actually external libraries.
package table

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/corefoundry/substrate/internal/logging"
)

func millisToTime(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

type jsonDoc struct {
	Schema     jsonSchema     `json:"schema"`
	Rows       []jsonRow      `json:"rows"`
	Indexes    []jsonIndexDef `json:"indexes"`
	Statistics jsonStatistics `json:"statistics"`
}

type jsonSchema struct {
	Name       string       `json:"name"`
	Version    int          `json:"version"`
	Columns    []jsonColumn `json:"columns"`
	PrimaryKey []string     `json:"primary_key"`
}

type jsonColumn struct {
	Name        string          `json:"name"`
	Type        string          `json:"type"`
	Nullable    bool            `json:"nullable"`
	Description string          `json:"description,omitempty"`
	Default     json.RawMessage `json:"default,omitempty"`
}

type jsonRow struct {
	ID        uint64                     `json:"id"`
	Version   uint64                     `json:"version"`
	CreatedAt int64                      `json:"created_at"`
	UpdatedAt int64                      `json:"updated_at"`
	Values    map[string]json.RawMessage `json:"values"`
}

type jsonIndexDef struct {
	Name    string   `json:"name"`
	Columns []string `json:"columns"`
	Unique  bool     `json:"unique"`
}

type jsonStatistics struct {
	TotalInserts uint64 `json:"total_inserts"`
	TotalUpdates uint64 `json:"total_updates"`
	TotalDeletes uint64 `json:"total_deletes"`
	CreatedAt    int64  `json:"created_at"`
	LastModified int64  `json:"last_modified"`
}

func encodeValue(v Value) (json.RawMessage, error) {
	switch v.Kind {
	case KindNull:
		return json.RawMessage("null"), nil
	case KindInteger:
		return json.Marshal(v.I)
	case KindDouble:
		return json.Marshal(v.F)
	case KindString:
		return json.Marshal(v.S)
	case KindBoolean:
		return json.Marshal(v.B)
	case KindDateTime:
		return json.Marshal(v.T.UnixMilli())
	case KindBinary:
		return json.Marshal("0x" + hex.EncodeToString(v.Bin))
	case KindJSON:
		return json.Marshal(v.S)
	default:
		return nil, fmt.Errorf("table: cannot encode value of kind %v", v.Kind)
	}
}

// decodeValue reconstructs a Value from raw JSON using decl's declared
// type, since JSON alone cannot distinguish e.g. a datetime-as-millis
// from a plain integer column.
func decodeValue(raw json.RawMessage, decl ColumnDefinition) (Value, error) {
	if string(raw) == "null" {
		return Null(), nil
	}
	switch decl.Type {
	case KindInteger:
		var i int64
		if err := json.Unmarshal(raw, &i); err != nil {
			return Value{}, err
		}
		return Integer(i), nil
	case KindDouble:
		var f float64
		if err := json.Unmarshal(raw, &f); err != nil {
			return Value{}, err
		}
		return Double(f), nil
	case KindString:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return Value{}, err
		}
		return String(s), nil
	case KindBoolean:
		var b bool
		if err := json.Unmarshal(raw, &b); err != nil {
			return Value{}, err
		}
		return Boolean(b), nil
	case KindDateTime:
		var millis int64
		if err := json.Unmarshal(raw, &millis); err != nil {
			return Value{}, err
		}
		return DateTime(millisToTime(millis)), nil
	case KindBinary:
		var hexStr string
		if err := json.Unmarshal(raw, &hexStr); err != nil {
			return Value{}, err
		}
		hexStr = trimHexPrefix(hexStr)
		decoded, err := hex.DecodeString(hexStr)
		if err != nil {
			return Value{}, err
		}
		return Binary(decoded), nil
	case KindJSON:
		return JSON(string(raw)), nil
	default:
		return Value{}, fmt.Errorf("table: cannot decode value for column type %v", decl.Type)
	}
}

func trimHexPrefix(s string) string {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		return s[2:]
	}
	return s
}

// ToJSON round-trips schema, rows, index definitions, and statistics
// per spec §6.5/§4.G.3.
func (t *Table) ToJSON() ([]byte, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	doc := jsonDoc{
		Schema: jsonSchema{
			Name:       t.schema.Name,
			Version:    t.schema.Version,
			PrimaryKey: append([]string(nil), t.schema.PrimaryKey...),
		},
		Statistics: jsonStatistics{
			TotalInserts: t.inserts,
			TotalUpdates: t.updates,
			TotalDeletes: t.deletes,
			CreatedAt:    t.createdAt.UnixMilli(),
			LastModified: t.lastModified.UnixMilli(),
		},
	}

	for _, col := range t.schema.Columns {
		jc := jsonColumn{Name: col.Name, Type: col.Type.String(), Nullable: col.Nullable, Description: col.Description}
		if col.Default != nil {
			raw, err := encodeValue(*col.Default)
			if err != nil {
				return nil, err
			}
			jc.Default = raw
		}
		doc.Schema.Columns = append(doc.Schema.Columns, jc)
	}

	for _, row := range t.allRowsLocked() {
		jr := jsonRow{ID: row.ID, Version: row.Version, CreatedAt: row.CreatedAt.UnixMilli(), UpdatedAt: row.UpdatedAt.UnixMilli(), Values: make(map[string]json.RawMessage, len(row.Values))}
		for col, v := range row.Values {
			raw, err := encodeValue(v)
			if err != nil {
				return nil, err
			}
			jr.Values[col] = raw
		}
		doc.Rows = append(doc.Rows, jr)
	}

	for name, idx := range t.indexes {
		doc.Indexes = append(doc.Indexes, jsonIndexDef{Name: name, Columns: idx.Columns(), Unique: idx.Unique()})
	}

	return json.MarshalIndent(doc, "", "  ")
}

// FromJSON rebuilds a Table from the wire format ToJSON produces,
// including rebuilding every index.
func FromJSON(data []byte, log *logging.Logger) (*Table, error) {
	var doc jsonDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("table: decode: %w", err)
	}

	schema := &Schema{Name: doc.Schema.Name, Version: doc.Schema.Version, PrimaryKey: doc.Schema.PrimaryKey}
	for _, jc := range doc.Schema.Columns {
		col := ColumnDefinition{Name: jc.Name, Type: parseValueKind(jc.Type), Nullable: jc.Nullable, Description: jc.Description}
		if len(jc.Default) > 0 {
			v, err := decodeValue(jc.Default, col)
			if err != nil {
				return nil, err
			}
			col.Default = &v
		}
		schema.Columns = append(schema.Columns, col)
	}

	t := New(schema, log)
	t.createdAt = millisToTime(doc.Statistics.CreatedAt)
	t.lastModified = millisToTime(doc.Statistics.LastModified)
	t.inserts = doc.Statistics.TotalInserts
	t.updates = doc.Statistics.TotalUpdates
	t.deletes = doc.Statistics.TotalDeletes

	var maxID uint64
	for _, jr := range doc.Rows {
		values := make(map[string]Value, len(jr.Values))
		for col, raw := range jr.Values {
			decl, _ := schema.Column(col)
			v, err := decodeValue(raw, decl)
			if err != nil {
				return nil, err
			}
			values[col] = v
		}
		t.rows[jr.ID] = &Row{
			ID:        jr.ID,
			Version:   jr.Version,
			CreatedAt: millisToTime(jr.CreatedAt),
			UpdatedAt: millisToTime(jr.UpdatedAt),
			Values:    values,
		}
		if jr.ID > maxID {
			maxID = jr.ID
		}
	}
	t.nextID = maxID

	for _, jidx := range doc.Indexes {
		if jidx.Name == PrimaryKeyIndexName {
			continue // already built in New() from schema.PrimaryKey
		}
		idx := newIndex(jidx.Name, jidx.Columns, jidx.Unique)
		t.indexes[jidx.Name] = idx
	}
	for _, idx := range t.indexes {
		for _, row := range t.rows {
			_ = idx.insert(row.ID, row.Values)
		}
	}

	return t, nil
}

func parseValueKind(s string) ValueKind {
	switch s {
	case "integer":
		return KindInteger
	case "double":
		return KindDouble
	case "string":
		return KindString
	case "boolean":
		return KindBoolean
	case "datetime":
		return KindDateTime
	case "binary":
		return KindBinary
	case "json":
		return KindJSON
	default:
		return KindNull
	}
}

// SaveToFile is a thin wrapper around ToJSON.
func (t *Table) SaveToFile(path string) error {
	data, err := t.ToJSON()
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// LoadFromFile is a thin wrapper around FromJSON.
func LoadFromFile(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromJSON(data, nil)
}
