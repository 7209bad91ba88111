package lockmgr

import (
	txn "ridgedb/storage_engine/transaction_manager"
)

// ReleaseAll drops every lock t holds, rows first and tables second, per
// BusTub's ReleaseLocks ordering — a table can only be safely unlocked once
// nothing underneath it is still locked. Called by TxnManager at commit and
// abort; by that point the transaction's final state is already set, so
// this bypasses the individual unlock checks that exist to catch protocol
// violations mid-transaction.
func (lm *LockManager) ReleaseAll(t *txn.Transaction) {
	for oid, rids := range t.GetSharedRowLockSet() {
		for rid := range rids {
			_ = lm.UnlockRow(t, oid, rid, true)
		}
	}
	for oid, rids := range t.GetExclusiveRowLockSet() {
		for rid := range rids {
			_ = lm.UnlockRow(t, oid, rid, true)
		}
	}

	for oid := range t.GetSharedTableLockSet() {
		_ = lm.unlockTableForced(t, oid)
	}
	for oid := range t.GetExclusiveTableLockSet() {
		_ = lm.unlockTableForced(t, oid)
	}
	for oid := range t.GetIntentionSharedTableLockSet() {
		_ = lm.unlockTableForced(t, oid)
	}
	for oid := range t.GetIntentionExclusiveTableLockSet() {
		_ = lm.unlockTableForced(t, oid)
	}
	for oid := range t.GetSharedIntentionExclusiveTableLockSet() {
		_ = lm.unlockTableForced(t, oid)
	}
}

// unlockTableForced releases a table lock without the row-locks-still-held
// guard UnlockTable otherwise enforces — by the time ReleaseAll runs, row
// locks are already clear.
func (lm *LockManager) unlockTableForced(t *txn.Transaction, oid uint32) error {
	q := lm.tableQueue(oid)
	q.mu.Lock()
	defer q.mu.Unlock()

	req, held := q.granted[t.ID]
	if !held {
		return nil
	}
	q.grantedCounts[req.Mode]--
	delete(q.granted, t.ID)
	clearTableLockSet(t, req.Mode, oid)
	q.cond.Broadcast()
	return nil
}
