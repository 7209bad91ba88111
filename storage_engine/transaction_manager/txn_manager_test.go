package txn

import (
	"fmt"
	"testing"

	"ridgedb/types"
)

// fakeLockReleaser records ReleaseAll calls without touching any real lock
// state, so Commit/Abort can be exercised without pulling in the lock
// manager package.
type fakeLockReleaser struct {
	released []uint64
}

func (f *fakeLockReleaser) ReleaseAll(t *Transaction) {
	f.released = append(f.released, t.ID)
}

// fakeCollaborator plays the role of the heap/index managers for rollback
// tests: it tracks a tiny table->key->value map and replays undo calls
// against it so a test can assert on the resulting state after Abort.
type fakeCollaborator struct {
	rows  map[types.RowPointer][]byte
	index map[string][]byte
	calls []string
}

func newFakeCollaborator() *fakeCollaborator {
	return &fakeCollaborator{
		rows:  make(map[types.RowPointer][]byte),
		index: make(map[string][]byte),
	}
}

func (f *fakeCollaborator) DeleteRow(table string, ptr types.RowPointer) error {
	f.calls = append(f.calls, fmt.Sprintf("DeleteRow(%s,%v)", table, ptr))
	delete(f.rows, ptr)
	return nil
}

func (f *fakeCollaborator) ReinsertRow(table string, ptr types.RowPointer, data []byte) error {
	f.calls = append(f.calls, fmt.Sprintf("ReinsertRow(%s,%v)", table, ptr))
	f.rows[ptr] = data
	return nil
}

func (f *fakeCollaborator) DeleteIndexEntry(table string, key []byte) error {
	f.calls = append(f.calls, fmt.Sprintf("DeleteIndexEntry(%s,%s)", table, key))
	delete(f.index, table+"|"+string(key))
	return nil
}

func (f *fakeCollaborator) InsertIndexEntry(table string, key []byte, value []byte) error {
	f.calls = append(f.calls, fmt.Sprintf("InsertIndexEntry(%s,%s)", table, key))
	f.index[table+"|"+string(key)] = value
	return nil
}

func TestBeginAssignsIncreasingIDsAndGrowingState(t *testing.T) {
	tm := NewTxnManager()

	t1 := tm.Begin()
	t2 := tm.Begin()

	if t2.ID <= t1.ID {
		t.Fatalf("expected increasing txn IDs, got %d then %d", t1.ID, t2.ID)
	}
	if t1.GetState() != StateGrowing {
		t.Fatalf("expected new transaction in GROWING, got %v", t1.GetState())
	}
	if tm.GetTransaction(t1.ID) != t1 {
		t.Fatalf("GetTransaction did not return the same transaction")
	}
}

func TestBeginDefaultsToConfiguredIsolation(t *testing.T) {
	tm := NewTxnManager(WithDefaultIsolation(ReadCommitted))

	t1 := tm.Begin()
	if t1.Isolation != ReadCommitted {
		t.Fatalf("expected default isolation ReadCommitted, got %v", t1.Isolation)
	}

	t2 := tm.Begin(ReadUncommitted)
	if t2.Isolation != ReadUncommitted {
		t.Fatalf("expected explicit isolation ReadUncommitted, got %v", t2.Isolation)
	}
}

func TestCommitReleasesLocksAndRemovesFromActive(t *testing.T) {
	releaser := &fakeLockReleaser{}
	tm := NewTxnManager(WithLockReleaser(releaser))

	t1 := tm.Begin()
	if err := tm.Commit(t1.ID); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	if t1.GetState() != StateCommitted {
		t.Fatalf("expected COMMITTED, got %v", t1.GetState())
	}
	if len(releaser.released) != 1 || releaser.released[0] != t1.ID {
		t.Fatalf("expected ReleaseAll called once for txn %d, got %v", t1.ID, releaser.released)
	}
	if tm.GetTransaction(t1.ID) != nil {
		t.Fatalf("expected transaction removed from active set after commit")
	}
}

func TestCommitAfterAbortIsNoop(t *testing.T) {
	tm := NewTxnManager()
	t1 := tm.Begin()
	if err := tm.Abort(t1.ID); err != nil {
		t.Fatalf("Abort: %v", err)
	}

	// t1 is no longer active; committing an unknown ID is a no-op, not an
	// error — mirrors how a caller racing a deadlock-detector abort sees it.
	if err := tm.Commit(t1.ID); err != nil {
		t.Fatalf("Commit after already-finalized txn should be a no-op, got: %v", err)
	}
}

func TestAbortRollsBackInsertsInReverseOrder(t *testing.T) {
	collab := newFakeCollaborator()
	releaser := &fakeLockReleaser{}
	tm := NewTxnManager(WithLockReleaser(releaser), WithRollbackCollaborator(collab))

	t1 := tm.Begin()
	rp1 := types.RowPointer{FileID: 1, PageNumber: 0, SlotIndex: 0}
	rp2 := types.RowPointer{FileID: 1, PageNumber: 0, SlotIndex: 1}
	collab.rows[rp1] = []byte("alice")
	collab.rows[rp2] = []byte("bob")

	t1.RecordInsert("accounts", rp1, []byte("alice"))
	t1.RecordInsert("accounts", rp2, []byte("bob"))

	if err := tm.Abort(t1.ID); err != nil {
		t.Fatalf("Abort: %v", err)
	}

	if t1.GetState() != StateAborted {
		t.Fatalf("expected ABORTED, got %v", t1.GetState())
	}
	if _, ok := collab.rows[rp1]; ok {
		t.Fatalf("expected inserted row 1 to be deleted by rollback")
	}
	if _, ok := collab.rows[rp2]; ok {
		t.Fatalf("expected inserted row 2 to be deleted by rollback")
	}

	// bob was inserted last, so its undo must run first.
	if len(collab.calls) < 4 {
		t.Fatalf("expected at least 4 rollback calls, got %d: %v", len(collab.calls), collab.calls)
	}
	if collab.calls[0] != "DeleteRow(accounts,{1 0 1})" {
		t.Fatalf("expected bob's row deleted first, got %q", collab.calls[0])
	}
}

func TestAbortRollsBackDeleteByReinserting(t *testing.T) {
	collab := newFakeCollaborator()
	tm := NewTxnManager(WithRollbackCollaborator(collab))

	t1 := tm.Begin()
	rp := types.RowPointer{FileID: 1, PageNumber: 0, SlotIndex: 0}
	t1.RecordDelete("accounts", rp, []byte("carol"), []byte("carol-key"))

	if err := tm.Abort(t1.ID); err != nil {
		t.Fatalf("Abort: %v", err)
	}

	if string(collab.rows[rp]) != "carol" {
		t.Fatalf("expected deleted row restored by rollback, got %q", collab.rows[rp])
	}
	if _, ok := collab.index["accounts|carol-key"]; !ok {
		t.Fatalf("expected index entry restored by rollback")
	}
}

func TestAbortRollsBackUpdateByRestoringOldRow(t *testing.T) {
	collab := newFakeCollaborator()
	tm := NewTxnManager(WithRollbackCollaborator(collab))

	t1 := tm.Begin()
	oldPtr := types.RowPointer{FileID: 1, PageNumber: 0, SlotIndex: 0}
	newPtr := types.RowPointer{FileID: 1, PageNumber: 0, SlotIndex: 1}
	collab.rows[newPtr] = []byte("balance=200")
	t1.RecordUpdate("accounts", oldPtr, newPtr, []byte("balance=100"), []byte("alice-key"))

	if err := tm.Abort(t1.ID); err != nil {
		t.Fatalf("Abort: %v", err)
	}

	if _, ok := collab.rows[newPtr]; ok {
		t.Fatalf("expected updated row pointer deleted by rollback")
	}
	if string(collab.rows[oldPtr]) != "balance=100" {
		t.Fatalf("expected old row restored by rollback, got %q", collab.rows[oldPtr])
	}
}

func TestAbortAfterCommitIsNoop(t *testing.T) {
	tm := NewTxnManager()
	t1 := tm.Begin()
	if err := tm.Commit(t1.ID); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if err := tm.Abort(t1.ID); err != nil {
		t.Fatalf("Abort after already-finalized txn should be a no-op, got: %v", err)
	}
}

func TestActiveTransactionsSnapshot(t *testing.T) {
	tm := NewTxnManager()
	t1 := tm.Begin()
	t2 := tm.Begin()

	active := tm.ActiveTransactions()
	if len(active) != 2 {
		t.Fatalf("expected 2 active transactions, got %d", len(active))
	}

	if err := tm.Commit(t1.ID); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	active = tm.ActiveTransactions()
	if len(active) != 1 || active[0].ID != t2.ID {
		t.Fatalf("expected only txn %d active after commit, got %v", t2.ID, active)
	}
}
