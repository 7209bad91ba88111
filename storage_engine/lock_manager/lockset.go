package lockmgr

import (
	txn "ridgedb/storage_engine/transaction_manager"
	"ridgedb/types"
)

// checkTableLockAdmission enforces the per-isolation-level rules on when a
// table lock of the given mode may even be requested, aborting the
// transaction and returning a typed error if not.
func checkTableLockAdmission(t *txn.Transaction, mode LockMode) error {
	switch t.Isolation {
	case txn.RepeatableRead:
		if t.GetState() == txn.StateShrinking {
			t.SetState(txn.StateAborted)
			return txn.NewAbortError(t.ID, txn.AbortLockOnShrinking)
		}
	case txn.ReadCommitted:
		if t.GetState() == txn.StateShrinking && mode != Shared && mode != IntentionShared {
			t.SetState(txn.StateAborted)
			return txn.NewAbortError(t.ID, txn.AbortLockOnShrinking)
		}
	case txn.ReadUncommitted:
		if mode != Exclusive && mode != IntentionExclusive {
			t.SetState(txn.StateAborted)
			return txn.NewAbortError(t.ID, txn.AbortLockSharedOnReadUncommitted)
		}
		if t.GetState() == txn.StateShrinking {
			t.SetState(txn.StateAborted)
			return txn.NewAbortError(t.ID, txn.AbortLockOnShrinking)
		}
	}
	return nil
}

// checkRowLockAdmission enforces the same isolation rules for rows, plus
// the row-specific restriction that intention modes never apply to rows and
// that a row lock requires an already-held covering table lock.
func checkRowLockAdmission(t *txn.Transaction, mode LockMode, oid uint32) error {
	if mode == IntentionShared || mode == IntentionExclusive || mode == SharedIntentionExclusive {
		t.SetState(txn.StateAborted)
		return txn.NewAbortError(t.ID, txn.AbortAttemptedIntentionLockOnRow)
	}

	switch t.Isolation {
	case txn.RepeatableRead:
		if t.GetState() == txn.StateShrinking {
			t.SetState(txn.StateAborted)
			return txn.NewAbortError(t.ID, txn.AbortLockOnShrinking)
		}
	case txn.ReadCommitted:
		if t.GetState() == txn.StateShrinking && mode != Shared {
			t.SetState(txn.StateAborted)
			return txn.NewAbortError(t.ID, txn.AbortLockOnShrinking)
		}
	case txn.ReadUncommitted:
		if mode != Exclusive {
			t.SetState(txn.StateAborted)
			return txn.NewAbortError(t.ID, txn.AbortLockSharedOnReadUncommitted)
		}
		if t.GetState() == txn.StateShrinking {
			t.SetState(txn.StateAborted)
			return txn.NewAbortError(t.ID, txn.AbortLockOnShrinking)
		}
	}

	covered := false
	if mode == Exclusive {
		_, x := t.GetExclusiveTableLockSet()[oid]
		_, ix := t.GetIntentionExclusiveTableLockSet()[oid]
		_, six := t.GetSharedIntentionExclusiveTableLockSet()[oid]
		covered = x || ix || six
	} else {
		_, s := t.GetSharedTableLockSet()[oid]
		_, x := t.GetExclusiveTableLockSet()[oid]
		_, is := t.GetIntentionSharedTableLockSet()[oid]
		_, ix := t.GetIntentionExclusiveTableLockSet()[oid]
		_, six := t.GetSharedIntentionExclusiveTableLockSet()[oid]
		covered = s || x || is || ix || six
	}
	if !covered {
		t.SetState(txn.StateAborted)
		return txn.NewAbortError(t.ID, txn.AbortTableLockNotPresent)
	}

	return nil
}

func tableLockSetFor(t *txn.Transaction, mode LockMode) map[uint32]struct{} {
	switch mode {
	case Shared:
		return t.GetSharedTableLockSet()
	case Exclusive:
		return t.GetExclusiveTableLockSet()
	case IntentionShared:
		return t.GetIntentionSharedTableLockSet()
	case IntentionExclusive:
		return t.GetIntentionExclusiveTableLockSet()
	default:
		return t.GetSharedIntentionExclusiveTableLockSet()
	}
}

func setTableLockSet(t *txn.Transaction, mode LockMode, oid uint32) {
	tableLockSetFor(t, mode)[oid] = struct{}{}
}

func clearTableLockSet(t *txn.Transaction, mode LockMode, oid uint32) {
	delete(tableLockSetFor(t, mode), oid)
}

func rowLockSetFor(t *txn.Transaction, mode LockMode) map[uint32]map[types.RowPointer]struct{} {
	if mode == Exclusive {
		return t.GetExclusiveRowLockSet()
	}
	return t.GetSharedRowLockSet()
}

func setRowLockSet(t *txn.Transaction, mode LockMode, oid uint32, rid types.RowPointer) {
	set := rowLockSetFor(t, mode)
	if set[oid] == nil {
		set[oid] = make(map[types.RowPointer]struct{})
	}
	set[oid][rid] = struct{}{}
}

func clearRowLockSet(t *txn.Transaction, mode LockMode, oid uint32, rid types.RowPointer) {
	sets := rowLockSetFor(t, mode)
	if set := sets[oid]; set != nil {
		delete(set, rid)
		if len(set) == 0 {
			delete(sets, oid)
		}
	}
}
