package lockmgr

import (
	txn "ridgedb/storage_engine/transaction_manager"
)

// removeFromQueue drops txnID's pending request from the front-to-back
// request queue. Called when a waiting transaction gets aborted out from
// under itself, by the deadlock detector or otherwise.
func removeFromQueue(q *LockRequestQueue, txnID uint64) {
	for i, r := range q.requests {
		if r.TxnID == txnID {
			q.requests = append(q.requests[:i], q.requests[i+1:]...)
			return
		}
	}
}

// LockTable acquires mode on oid for t, blocking until the request reaches
// the front of the queue and is compatible with every already-granted lock.
// Requesting a stronger mode than one already held upgrades in place;
// requesting the same mode again is a no-op.
func (lm *LockManager) LockTable(t *txn.Transaction, mode LockMode, oid uint32) error {
	if err := checkTableLockAdmission(t, mode); err != nil {
		return err
	}

	q := lm.tableQueue(oid)
	q.mu.Lock()

	if req, held := q.granted[t.ID]; held {
		if req.Mode == mode {
			q.mu.Unlock()
			return nil
		}
		if !isValidUpgrade(req.Mode, mode) {
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
		clearTableLockSet(t, req.Mode, oid)
		q.requests = append([]*LockRequest{{TxnID: t.ID, Mode: mode, OID: oid, IsTable: true}}, q.requests...)
	} else {
		q.requests = append(q.requests, &LockRequest{TxnID: t.ID, Mode: mode, OID: oid, IsTable: true})
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
	setTableLockSet(t, mode, oid)
	q.cond.Broadcast()
	q.mu.Unlock()

	return nil
}

// UnlockTable releases t's lock on oid. Under REPEATABLE READ, releasing
// either S or X moves the transaction into SHRINKING; under the weaker
// levels, only releasing X does.
func (lm *LockManager) UnlockTable(t *txn.Transaction, oid uint32) error {
	if len(t.GetSharedRowLockSet()[oid]) != 0 {
		t.SetState(txn.StateAborted)
		return txn.NewAbortError(t.ID, txn.AbortTableUnlockedBeforeUnlockingRows)
	}

	q := lm.tableQueue(oid)
	q.mu.Lock()
	defer q.mu.Unlock()

	req, held := q.granted[t.ID]
	if !held {
		t.SetState(txn.StateAborted)
		return txn.NewAbortError(t.ID, txn.AbortAttemptedUnlockButNoLockHeld)
	}

	q.grantedCounts[req.Mode]--
	delete(q.granted, t.ID)

	if t.Isolation == txn.RepeatableRead {
		if req.Mode == Shared || req.Mode == Exclusive {
			if t.GetState() == txn.StateGrowing {
				t.SetState(txn.StateShrinking)
			}
		}
	} else {
		if req.Mode == Exclusive && t.GetState() == txn.StateGrowing {
			t.SetState(txn.StateShrinking)
		}
	}

	clearTableLockSet(t, req.Mode, oid)
	q.cond.Broadcast()
	return nil
}
