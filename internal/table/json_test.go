package table

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONRoundTripPreservesSchemaRowsIndexesAndCounters(t *testing.T) {
	tb := newPersonTable()
	require.NoError(t, tb.CreateIndex("by_age", []string{"age"}, false))

	_, err := tb.Insert(map[string]Value{"id": Integer(1), "name": String("A"), "age": Integer(30)})
	require.NoError(t, err)
	id2, err := tb.Insert(map[string]Value{"id": Integer(2), "name": String("B"), "age": Integer(25)})
	require.NoError(t, err)
	_, err = tb.Update(id2, map[string]Value{"age": Integer(26)})
	require.NoError(t, err)

	data, err := tb.ToJSON()
	require.NoError(t, err)

	restored, err := FromJSON(data, nil)
	require.NoError(t, err)

	assert.Equal(t, tb.RowCount(), restored.RowCount())
	assert.Equal(t, tb.Schema().Version, restored.Schema().Version)
	assert.ElementsMatch(t, tb.IndexNames(), restored.IndexNames())

	origStats, restoredStats := tb.Stats(), restored.Stats()
	assert.Equal(t, origStats.TotalInserts, restoredStats.TotalInserts)
	assert.Equal(t, origStats.TotalUpdates, restoredStats.TotalUpdates)

	found, ferr := restored.FindByIndex("by_age", map[string]Value{"age": Integer(26)})
	require.NoError(t, ferr)
	require.Len(t, found, 1)
	assert.Equal(t, id2, found[0].ID)
}

func TestJSONRoundTripsBinaryAndDateTimeValues(t *testing.T) {
	s := NewSchema("blobs")
	require.NoError(t, s.AddColumn(ColumnDefinition{Name: "payload", Type: KindBinary}))
	require.NoError(t, s.AddColumn(ColumnDefinition{Name: "created", Type: KindDateTime}))
	tb := New(s, nil)

	when := time.Now().UTC().Truncate(time.Millisecond)
	_, err := tb.Insert(map[string]Value{
		"payload": Binary([]byte{0xde, 0xad, 0xbe, 0xef}),
		"created": DateTime(when),
	})
	require.NoError(t, err)

	data, err := tb.ToJSON()
	require.NoError(t, err)

	restored, err := FromJSON(data, nil)
	require.NoError(t, err)

	rows := restored.AllRows()
	require.Len(t, rows, 1)
	assert.Equal(t, []byte{0xde, 0xad, 0xbe, 0xef}, rows[0].Values["payload"].Bin)
	assert.True(t, when.Equal(rows[0].Values["created"].T))
}
