package table

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransactionCommitKeepsAppliedChanges(t *testing.T) {
	tb := newPersonTable()
	tx := tb.BeginTransaction()
	tx.Begin()

	id, err := tx.InsertRow(map[string]Value{"id": Integer(1), "name": String("A"), "age": Integer(30)})
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	row, ok := tb.Get(id)
	require.True(t, ok)
	assert.Equal(t, "A", row.Values["name"].S)
}

func TestTransactionRollbackUndoesInsertUpdateDelete(t *testing.T) {
	tb := newPersonTable()
	existingID, err := tb.Insert(map[string]Value{"id": Integer(1), "name": String("A"), "age": Integer(30)})
	require.NoError(t, err)
	deletedID, err := tb.Insert(map[string]Value{"id": Integer(3), "name": String("C"), "age": Integer(40)})
	require.NoError(t, err)

	tx := tb.BeginTransaction()
	tx.Begin()

	insertedID, err := tx.InsertRow(map[string]Value{"id": Integer(2), "name": String("B"), "age": Integer(25)})
	require.NoError(t, err)

	ok, err := tx.UpdateRow(existingID, map[string]Value{"age": Integer(99)})
	require.NoError(t, err)
	require.True(t, ok)

	require.True(t, tx.DeleteRow(deletedID))

	require.NoError(t, tx.Rollback())

	_, stillThere := tb.Get(insertedID)
	assert.False(t, stillThere)

	restored, ok := tb.Get(existingID)
	require.True(t, ok)
	assert.Equal(t, int64(30), restored.Values["age"].I)

	// The deleted row comes back under a new row id.
	reinserted, err := tb.FindByIndex(PrimaryKeyIndexName, map[string]Value{"id": Integer(3)})
	require.NoError(t, err)
	require.Len(t, reinserted, 1)
	assert.Equal(t, "C", reinserted[0].Values["name"].S)
}

func TestTransactionCannotRollbackAfterCommit(t *testing.T) {
	tb := newPersonTable()
	tx := tb.BeginTransaction()
	tx.Begin()
	_, err := tx.InsertRow(map[string]Value{"id": Integer(1), "name": String("A"), "age": Integer(30)})
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	assert.Error(t, tx.Rollback())
}
