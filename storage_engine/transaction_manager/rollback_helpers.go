package txn

import (
	"ridgedb/types"
	"encoding/binary"
)

/*
A transaction's outcome isn't known until COMMIT or ABORT, so every write it
makes is recorded here first. If the transaction aborts, rollbackWriteSet
walks the deletes, then the updates, then the inserts, each slice in
reverse (most recent of that kind first), and inverts each one: an insert is undone by deleting the row it added, an
update by restoring the row's prior bytes, and a delete by reinserting what
was removed.
*/

// RecordInsert adds a row to the transaction's write-set for rollback.
func (txn *Transaction) RecordInsert(table string, rowPtr types.RowPointer, primaryKey []byte) {
	txn.mu.Lock()
	defer txn.mu.Unlock()
	txn.InsertedRows = append(txn.InsertedRows, InsertedRow{
		Table:      table,
		RowPtr:     rowPtr,
		PrimaryKey: primaryKey,
	})
}

// RecordUpdate saves the old row state before an update for rollback.
func (txn *Transaction) RecordUpdate(table string, oldPtr, newPtr types.RowPointer, oldRowData []byte, primaryKey []byte) {
	txn.mu.Lock()
	defer txn.mu.Unlock()
	txn.UpdatedRows = append(txn.UpdatedRows, UpdatedRow{
		Table:      table,
		OldRowPtr:  oldPtr,
		NewRowPtr:  newPtr,
		OldRowData: oldRowData,
		PrimaryKey: primaryKey,
	})
}

// RecordDelete saves a deleted row's bytes before removal for rollback.
func (txn *Transaction) RecordDelete(table string, rowPtr types.RowPointer, rowData []byte, primaryKey []byte) {
	txn.mu.Lock()
	defer txn.mu.Unlock()
	txn.DeletedRows = append(txn.DeletedRows, DeletedRow{
		Table:      table,
		RowPtr:     rowPtr,
		RowData:    rowData,
		PrimaryKey: primaryKey,
	})
}

// rollbackWriteSet undoes every recorded write, most recent first within
// each kind, via the RollbackCollaborator wired into the manager. Deletes are undone first
// (reinserted), since an undone update that follows might otherwise target
// a row pointer a later-undone delete hasn't restored yet.
func (tm *TxnManager) rollbackWriteSet(t *Transaction) error {
	for i := len(t.DeletedRows) - 1; i >= 0; i-- {
		d := t.DeletedRows[i]
		if err := tm.rollback.ReinsertRow(d.Table, d.RowPtr, d.RowData); err != nil {
			return err
		}
		if err := tm.rollback.InsertIndexEntry(d.Table, d.PrimaryKey, encodeRowPointer(d.RowPtr)); err != nil {
			return err
		}
	}

	for i := len(t.UpdatedRows) - 1; i >= 0; i-- {
		u := t.UpdatedRows[i]
		if err := tm.rollback.DeleteRow(u.Table, u.NewRowPtr); err != nil {
			return err
		}
		if err := tm.rollback.ReinsertRow(u.Table, u.OldRowPtr, u.OldRowData); err != nil {
			return err
		}
	}

	for i := len(t.InsertedRows) - 1; i >= 0; i-- {
		ins := t.InsertedRows[i]
		if err := tm.rollback.DeleteRow(ins.Table, ins.RowPtr); err != nil {
			return err
		}
		if err := tm.rollback.DeleteIndexEntry(ins.Table, ins.PrimaryKey); err != nil {
			return err
		}
	}

	return nil
}

// encodeRowPointer packs a RowPointer into the flat byte value the index
// stores, mirroring however the caller originally encoded it on insert.
func encodeRowPointer(ptr types.RowPointer) []byte {
	buf := make([]byte, 10)
	binary.LittleEndian.PutUint32(buf[0:], ptr.FileID)
	binary.LittleEndian.PutUint32(buf[4:], ptr.PageNumber)
	binary.LittleEndian.PutUint16(buf[8:], ptr.SlotIndex)
	return buf
}
