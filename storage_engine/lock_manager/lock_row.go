package lockmgr

import (
	txn "ridgedb/storage_engine/transaction_manager"
	"ridgedb/types"
)

// LockRow acquires mode (Shared or Exclusive only) on rid within table oid
// for t, blocking until granted. Requires t to already hold a table lock on
// oid covering mode — a row lock is never granted without one.
func (lm *LockManager) LockRow(t *txn.Transaction, mode LockMode, oid uint32, rid types.RowPointer) error {
	if err := checkRowLockAdmission(t, mode, oid); err != nil {
		return err
	}

	q := lm.rowQueue(rid)
	q.mu.Lock()

	if req, held := q.granted[t.ID]; held {
		if req.Mode == mode {
			q.mu.Unlock()
			return nil
		}
		if !(req.Mode == Shared && mode == Exclusive) {
			q.mu.Unlock()
			t.SetState(txn.StateAborted)
			return txn.NewAbortError(t.ID, txn.AbortIncompatibleUpgrade)
		}
		if q.upgrading != noUpgrader && q.upgrading != t.ID {
			q.mu.Unlock()
			t.SetState(txn.StateAborted)
			return txn.NewAbortError(t.ID, txn.AbortUpgradeConflict)
		}
		q.upgrading = t.ID
		q.grantedCounts[req.Mode]--
		delete(q.granted, t.ID)
		clearRowLockSet(t, req.Mode, oid, rid)
		q.requests = append([]*LockRequest{{TxnID: t.ID, Mode: mode, OID: oid, RID: rid}}, q.requests...)
	} else {
		q.requests = append(q.requests, &LockRequest{TxnID: t.ID, Mode: mode, OID: oid, RID: rid})
	}

	for (!checkCanLock(q, mode) || q.requests[0].TxnID != t.ID) && t.GetState() != txn.StateAborted {
		q.cond.Wait()
	}

	if t.GetState() == txn.StateAborted {
		removeFromQueue(q, t.ID)
		if q.upgrading == t.ID {
			q.upgrading = noUpgrader
		}
		q.cond.Broadcast()
		q.mu.Unlock()
		return txn.NewAbortError(t.ID, txn.AbortDeadlock)
	}

	req := q.requests[0]
	req.Granted = true
	q.grantedCounts[mode]++
	q.granted[t.ID] = req
	q.requests = q.requests[1:]
	if q.upgrading == t.ID {
		q.upgrading = noUpgrader
	}
	setRowLockSet(t, mode, oid, rid)
	q.cond.Broadcast()
	q.mu.Unlock()

	return nil
}

// UnlockRow releases t's lock on rid. force skips the "no lock held" check,
// used by TxnManager when tearing down a transaction that may have already
// had some of its row locks released individually.
func (lm *LockManager) UnlockRow(t *txn.Transaction, oid uint32, rid types.RowPointer, force bool) error {
	q := lm.rowQueue(rid)
	q.mu.Lock()
	defer q.mu.Unlock()

	req, held := q.granted[t.ID]
	if !held {
		if force {
			return nil
		}
		t.SetState(txn.StateAborted)
		return txn.NewAbortError(t.ID, txn.AbortAttemptedUnlockButNoLockHeld)
	}

	q.grantedCounts[req.Mode]--
	delete(q.granted, t.ID)

	if t.Isolation == txn.RepeatableRead {
		if (req.Mode == Shared || req.Mode == Exclusive) && t.GetState() == txn.StateGrowing {
			t.SetState(txn.StateShrinking)
		}
	} else {
		if req.Mode == Exclusive && t.GetState() == txn.StateGrowing {
			t.SetState(txn.StateShrinking)
		}
	}

	clearRowLockSet(t, req.Mode, oid, rid)
	q.cond.Broadcast()
	return nil
}
