package lockmgr

import (
	"sync"
	"testing"
	"time"

	txn "ridgedb/storage_engine/transaction_manager"
	"ridgedb/types"
)

func newTestTxnManager() *txn.TxnManager {
	return txn.NewTxnManager(txn.WithDefaultIsolation(txn.RepeatableRead))
}

func TestLockTableSharedLocksAreCompatible(t *testing.T) {
	lm := NewLockManager()
	tm := newTestTxnManager()

	t1 := tm.Begin()
	t2 := tm.Begin()

	if err := lm.LockTable(t1, Shared, 1); err != nil {
		t.Fatalf("t1 lock shared: %v", err)
	}
	if err := lm.LockTable(t2, Shared, 1); err != nil {
		t.Fatalf("t2 lock shared: %v", err)
	}
}

func TestLockTableExclusiveBlocksShared(t *testing.T) {
	lm := NewLockManager()
	tm := newTestTxnManager()

	holder := tm.Begin()
	waiter := tm.Begin()

	if err := lm.LockTable(holder, Exclusive, 1); err != nil {
		t.Fatalf("holder lock exclusive: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- lm.LockTable(waiter, Shared, 1) }()

	select {
	case <-done:
		t.Fatalf("expected waiter to block while exclusive lock is held")
	case <-time.After(50 * time.Millisecond):
	}

	if err := lm.UnlockTable(holder, 1); err != nil {
		t.Fatalf("unlock: %v", err)
	}

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("waiter lock after release: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("waiter never granted after holder released")
	}
}

func TestLockTableRepeatedSameModeIsNoop(t *testing.T) {
	lm := NewLockManager()
	tm := newTestTxnManager()
	t1 := tm.Begin()

	if err := lm.LockTable(t1, Shared, 1); err != nil {
		t.Fatalf("first lock: %v", err)
	}
	if err := lm.LockTable(t1, Shared, 1); err != nil {
		t.Fatalf("repeated lock: %v", err)
	}
}

func TestLockTableUpgradeFromSharedToExclusive(t *testing.T) {
	lm := NewLockManager()
	tm := newTestTxnManager()
	t1 := tm.Begin()

	if err := lm.LockTable(t1, Shared, 1); err != nil {
		t.Fatalf("lock shared: %v", err)
	}
	if err := lm.LockTable(t1, Exclusive, 1); err != nil {
		t.Fatalf("upgrade to exclusive: %v", err)
	}

	if _, held := t1.GetSharedTableLockSet()[1]; held {
		t.Fatalf("shared lock should have been cleared on upgrade")
	}
	if _, held := t1.GetExclusiveTableLockSet()[1]; !held {
		t.Fatalf("exclusive lock should be held after upgrade")
	}
}

func TestLockTableInvalidUpgradeAborts(t *testing.T) {
	lm := NewLockManager()
	tm := newTestTxnManager()
	t1 := tm.Begin()

	if err := lm.LockTable(t1, Exclusive, 1); err != nil {
		t.Fatalf("lock exclusive: %v", err)
	}
	// X can't go to anything — downgrading to Shared must abort.
	err := lm.LockTable(t1, Shared, 1)
	if err == nil {
		t.Fatalf("expected downgrade X->S to fail")
	}
	if t1.GetState() != txn.StateAborted {
		t.Fatalf("expected transaction aborted, got %v", t1.GetState())
	}
}

func TestLockRowRequiresCoveringTableLock(t *testing.T) {
	lm := NewLockManager()
	tm := newTestTxnManager()
	t1 := tm.Begin()

	rid := types.RowPointer{FileID: 1, PageNumber: 0, SlotIndex: 0}
	err := lm.LockRow(t1, Shared, 1, rid)
	if err == nil {
		t.Fatalf("expected row lock without a table lock to fail")
	}
	if t1.GetState() != txn.StateAborted {
		t.Fatalf("expected transaction aborted, got %v", t1.GetState())
	}
}

func TestLockRowWithCoveringTableLockSucceeds(t *testing.T) {
	lm := NewLockManager()
	tm := newTestTxnManager()
	t1 := tm.Begin()

	rid := types.RowPointer{FileID: 1, PageNumber: 0, SlotIndex: 0}
	if err := lm.LockTable(t1, IntentionExclusive, 1); err != nil {
		t.Fatalf("lock table IX: %v", err)
	}
	if err := lm.LockRow(t1, Exclusive, 1, rid); err != nil {
		t.Fatalf("lock row X: %v", err)
	}
}

func TestLockRowIntentionModeRejected(t *testing.T) {
	lm := NewLockManager()
	tm := newTestTxnManager()
	t1 := tm.Begin()

	rid := types.RowPointer{FileID: 1, PageNumber: 0, SlotIndex: 0}
	if err := lm.LockTable(t1, IntentionExclusive, 1); err != nil {
		t.Fatalf("lock table IX: %v", err)
	}
	if err := lm.LockRow(t1, IntentionExclusive, 1, rid); err == nil {
		t.Fatalf("expected intention mode on a row to be rejected")
	}
}

func TestUnlockTableBeforeRowsHeldAborts(t *testing.T) {
	lm := NewLockManager()
	tm := newTestTxnManager()
	t1 := tm.Begin()

	rid := types.RowPointer{FileID: 1, PageNumber: 0, SlotIndex: 0}
	if err := lm.LockTable(t1, IntentionExclusive, 1); err != nil {
		t.Fatalf("lock table IX: %v", err)
	}
	if err := lm.LockRow(t1, Shared, 1, rid); err != nil {
		t.Fatalf("lock row S: %v", err)
	}

	if err := lm.UnlockTable(t1, 1); err == nil {
		t.Fatalf("expected unlocking the table while a row is still locked to fail")
	}
	if t1.GetState() != txn.StateAborted {
		t.Fatalf("expected transaction aborted, got %v", t1.GetState())
	}
}

func TestUnlockMovesRepeatableReadToShrinking(t *testing.T) {
	lm := NewLockManager()
	tm := newTestTxnManager()
	t1 := tm.Begin(txn.RepeatableRead)

	if err := lm.LockTable(t1, Shared, 1); err != nil {
		t.Fatalf("lock shared: %v", err)
	}
	if err := lm.UnlockTable(t1, 1); err != nil {
		t.Fatalf("unlock: %v", err)
	}
	if t1.GetState() != txn.StateShrinking {
		t.Fatalf("expected SHRINKING after unlock under RepeatableRead, got %v", t1.GetState())
	}
}

func TestReleaseAllDropsRowsBeforeTables(t *testing.T) {
	lm := NewLockManager()
	tm := newTestTxnManager()
	t1 := tm.Begin()

	ridA := types.RowPointer{FileID: 1, PageNumber: 0, SlotIndex: 0}
	ridB := types.RowPointer{FileID: 1, PageNumber: 0, SlotIndex: 1}

	if err := lm.LockTable(t1, IntentionExclusive, 1); err != nil {
		t.Fatalf("lock table: %v", err)
	}
	if err := lm.LockRow(t1, Exclusive, 1, ridA); err != nil {
		t.Fatalf("lock row A: %v", err)
	}
	if err := lm.LockRow(t1, Exclusive, 1, ridB); err != nil {
		t.Fatalf("lock row B: %v", err)
	}

	lm.ReleaseAll(t1)

	if len(t1.GetExclusiveRowLockSet()) != 0 {
		t.Fatalf("expected no row locks left after ReleaseAll")
	}
	if len(t1.GetIntentionExclusiveTableLockSet()) != 0 {
		t.Fatalf("expected no table locks left after ReleaseAll")
	}
}

func TestCycleDetectionAbortsOneOfTwoDeadlockedTransactions(t *testing.T) {
	lm := NewLockManager()
	lm.detectionInterval = 5 * time.Millisecond
	tm := newTestTxnManager()

	t1 := tm.Begin()
	t2 := tm.Begin()

	ridA := types.RowPointer{FileID: 1, PageNumber: 0, SlotIndex: 0}
	ridB := types.RowPointer{FileID: 1, PageNumber: 0, SlotIndex: 1}

	if err := lm.LockTable(t1, IntentionExclusive, 1); err != nil {
		t.Fatalf("t1 lock table: %v", err)
	}
	if err := lm.LockTable(t2, IntentionExclusive, 1); err != nil {
		t.Fatalf("t2 lock table: %v", err)
	}

	if err := lm.LockRow(t1, Exclusive, 1, ridA); err != nil {
		t.Fatalf("t1 lock rowA: %v", err)
	}
	if err := lm.LockRow(t2, Exclusive, 1, ridB); err != nil {
		t.Fatalf("t2 lock rowB: %v", err)
	}

	lm.StartCycleDetection(tm.GetTransaction)
	defer lm.StopCycleDetection()

	var wg sync.WaitGroup
	results := make([]error, 2)
	wg.Add(2)
	go func() {
		defer wg.Done()
		results[0] = lm.LockRow(t1, Exclusive, 1, ridB)
		if results[0] != nil {
			lm.ReleaseAll(t1)
		}
	}()
	go func() {
		defer wg.Done()
		results[1] = lm.LockRow(t2, Exclusive, 1, ridA)
		if results[1] != nil {
			lm.ReleaseAll(t2)
		}
	}()

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("deadlock detector never broke the cycle")
	}

	abortedCount := 0
	for _, err := range results {
		if err != nil {
			abortedCount++
		}
	}
	if abortedCount != 1 {
		t.Fatalf("expected exactly one transaction aborted out of the deadlock, got %d", abortedCount)
	}
}
