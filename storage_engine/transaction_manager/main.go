package txn

import (
	"fmt"
	"log"
	"sync/atomic"
)

/*
TxnManager owns the transaction id space and the two-phase-locking state
machine. LockManager reads and writes a Transaction's state and lock sets
directly (see the GetState/SetState/Get*LockSet accessors below) the same
way BusTub's LockManager reaches into Transaction's public members — the
two packages are tightly coupled by design, the lock manager's whole job is
enforcing the rules this struct encodes.
*/

type TxnManagerOption func(*TxnManager)

// WithDefaultIsolation overrides the isolation level Begin uses when the
// caller doesn't specify one.
func WithDefaultIsolation(level IsolationLevel) TxnManagerOption {
	return func(tm *TxnManager) { tm.defaultIsolation = level }
}

// WithLockReleaser wires in the collaborator that releases every lock a
// transaction holds on Commit/Abort. Tests that don't exercise locking can
// omit it.
func WithLockReleaser(r LockReleaser) TxnManagerOption {
	return func(tm *TxnManager) { tm.lockReleaser = r }
}

// WithRollbackCollaborator wires in the heap/index undo hooks Abort uses to
// walk back a transaction's write-set.
func WithRollbackCollaborator(c RollbackCollaborator) TxnManagerOption {
	return func(tm *TxnManager) { tm.rollback = c }
}

func NewTxnManager(opts ...TxnManagerOption) *TxnManager {
	tm := &TxnManager{
		nextID:           1,
		activeTxns:       make(map[uint64]*Transaction),
		defaultIsolation: RepeatableRead,
	}
	for _, opt := range opts {
		opt(tm)
	}
	return tm
}

// Begin starts a new transaction in the GROWING state and registers it as
// active. isolation defaults to the manager's configured default when
// omitted.
func (tm *TxnManager) Begin(isolation ...IsolationLevel) *Transaction {
	level := tm.defaultIsolation
	if len(isolation) > 0 {
		level = isolation[0]
	}

	txnID := atomic.AddUint64(&tm.nextID, 1) - 1
	transaction := newTransaction(txnID, level)

	tm.mu.Lock()
	tm.activeTxns[txnID] = transaction
	tm.mu.Unlock()

	log.Printf("[txn] BEGIN txnID=%d isolation=%v", txnID, level)
	return transaction
}

// Commit releases every lock the transaction holds and marks it COMMITTED.
// A transaction already in SHRINKING or GROWING can commit; one already
// ABORTED cannot.
func (tm *TxnManager) Commit(txnID uint64) error {
	tm.mu.Lock()
	transaction, exists := tm.activeTxns[txnID]
	if exists {
		delete(tm.activeTxns, txnID)
	}
	tm.mu.Unlock()

	if !exists {
		return nil // already finalized or never existed — idempotent
	}

	transaction.mu.Lock()
	if transaction.state == StateAborted {
		transaction.mu.Unlock()
		return fmt.Errorf("transaction %d was already aborted", txnID)
	}
	transaction.state = StateCommitted
	transaction.mu.Unlock()

	if tm.lockReleaser != nil {
		tm.lockReleaser.ReleaseAll(transaction)
	}

	log.Printf("[txn] COMMIT txnID=%d", txnID)
	return nil
}

// Abort rolls back the transaction's write-set, releases its locks, and
// marks it ABORTED. Safe to call on a transaction LockManager has already
// forced into ABORTED (the rollback and lock release still need to run).
func (tm *TxnManager) Abort(txnID uint64) error {
	tm.mu.Lock()
	transaction, exists := tm.activeTxns[txnID]
	if exists {
		delete(tm.activeTxns, txnID)
	}
	tm.mu.Unlock()

	if !exists {
		return nil
	}

	transaction.mu.Lock()
	if transaction.state == StateCommitted {
		transaction.mu.Unlock()
		return fmt.Errorf("transaction %d was already committed", txnID)
	}
	transaction.state = StateAborted
	transaction.mu.Unlock()

	if tm.rollback != nil {
		if err := tm.rollbackWriteSet(transaction); err != nil {
			log.Printf("[txn] ABORT txnID=%d rollback error: %v", txnID, err)
		}
	}
	if tm.lockReleaser != nil {
		tm.lockReleaser.ReleaseAll(transaction)
	}

	log.Printf("[txn] ABORT txnID=%d", txnID)
	return nil
}

// GetTransaction returns the transaction with the given ID, or nil if it is
// not currently active.
func (tm *TxnManager) GetTransaction(txnID uint64) *Transaction {
	tm.mu.RLock()
	defer tm.mu.RUnlock()
	return tm.activeTxns[txnID]
}

// ActiveTransactions returns a snapshot of all currently active transactions.
func (tm *TxnManager) ActiveTransactions() []*Transaction {
	tm.mu.RLock()
	defer tm.mu.RUnlock()

	txns := make([]*Transaction, 0, len(tm.activeTxns))
	for _, transaction := range tm.activeTxns {
		txns = append(txns, transaction)
	}
	return txns
}

// ---- accessors LockManager reaches into directly ----

func (t *Transaction) GetState() TxnState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

func (t *Transaction) SetState(s TxnState) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state = s
}

func (t *Transaction) GetSharedTableLockSet() map[uint32]struct{}             { return t.sharedTableLocks }
func (t *Transaction) GetExclusiveTableLockSet() map[uint32]struct{}          { return t.exclusiveTableLocks }
func (t *Transaction) GetIntentionSharedTableLockSet() map[uint32]struct{}    { return t.isTableLocks }
func (t *Transaction) GetIntentionExclusiveTableLockSet() map[uint32]struct{} { return t.ixTableLocks }
func (t *Transaction) GetSharedIntentionExclusiveTableLockSet() map[uint32]struct{} {
	return t.sixTableLocks
}
func (t *Transaction) GetSharedRowLockSet() rowLockSet    { return t.sharedRowLocks }
func (t *Transaction) GetExclusiveRowLockSet() rowLockSet { return t.exclusiveRowLocks }
