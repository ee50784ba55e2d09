package table

import "fmt"

type changeLogEntry struct {
	undo func()
}

// Transaction is spec §3/§4.G.3's TableTransaction: operations apply
// eagerly against the owning table, and the change log exists purely
// to drive Rollback's compensating actions; this design confers no
// isolation across concurrent readers, per spec §9.
type Transaction struct {
	table     *Table
	id        uint64
	active    bool
	committed bool
	rolledBack bool
	log       []changeLogEntry
}

// BeginTransaction starts a new transaction against t.
func (t *Table) BeginTransaction() *Transaction {
	t.mu.Lock()
	t.nextTxnID++
	id := t.nextTxnID
	t.mu.Unlock()
	return &Transaction{table: t, id: id}
}

// ID returns the transaction's identifier.
func (tx *Transaction) ID() uint64 { return tx.id }

// Begin marks the transaction active; no-op if already active.
func (tx *Transaction) Begin() {
	tx.active = true
}

// InsertRow inserts values within the transaction, recording an undo
// action (a delete) in the change log.
func (tx *Transaction) InsertRow(values map[string]Value) (uint64, error) {
	id, err := tx.table.Insert(values)
	if err != nil {
		return 0, err
	}
	tx.log = append(tx.log, changeLogEntry{undo: func() { tx.table.Delete(id) }})
	return id, nil
}

// UpdateRow updates rowID within the transaction, recording an undo
// action that restores the pre-update values.
func (tx *Transaction) UpdateRow(rowID uint64, patch map[string]Value) (bool, error) {
	before, existed := tx.table.Get(rowID)
	ok, err := tx.table.Update(rowID, patch)
	if err != nil || !ok {
		return ok, err
	}
	tx.log = append(tx.log, changeLogEntry{undo: func() {
		if existed {
			tx.table.Update(rowID, before.Values)
		}
	}})
	return true, nil
}

// DeleteRow deletes rowID within the transaction, recording an undo
// action that reinserts the row (under a new id: the spec does not
// promise id reuse across a rollback).
func (tx *Transaction) DeleteRow(rowID uint64) bool {
	before, existed := tx.table.Get(rowID)
	ok := tx.table.Delete(rowID)
	if ok && existed {
		tx.log = append(tx.log, changeLogEntry{undo: func() {
			tx.table.Insert(before.Values)
		}})
	}
	return ok
}

// Commit finalizes the transaction; the change log is discarded since
// operations were already applied eagerly.
func (tx *Transaction) Commit() error {
	if tx.rolledBack {
		return fmt.Errorf("table: transaction %d already rolled back", tx.id)
	}
	tx.committed = true
	tx.active = false
	tx.log = nil
	return nil
}

// Rollback applies every undo action in reverse order, compensating
// for the transaction's eager writes.
func (tx *Transaction) Rollback() error {
	if tx.committed {
		return fmt.Errorf("table: transaction %d already committed", tx.id)
	}
	for i := len(tx.log) - 1; i >= 0; i-- {
		tx.log[i].undo()
	}
	tx.log = nil
	tx.rolledBack = true
	tx.active = false
	return nil
}

// Active reports whether the transaction is still open.
func (tx *Transaction) Active() bool { return tx.active }
