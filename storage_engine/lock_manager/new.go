package lockmgr

import (
	"ridgedb/types"
	"time"
)

// DefaultDeadlockDetectionInterval matches the cadence BusTub's background
// detector runs at when nothing else is configured.
const DefaultDeadlockDetectionInterval = 50 * time.Millisecond

// NewLockManager creates a LockManager with empty table/row lock maps. Call
// StartCycleDetection separately to run the background deadlock detector —
// tests that only exercise lock/unlock directly don't need it running.
func NewLockManager() *LockManager {
	return &LockManager{
		tableLockMap:      make(map[uint32]*LockRequestQueue),
		rowLockMap:        make(map[types.RowPointer]*LockRequestQueue),
		waitsFor:          make(map[uint64]map[uint64]bool),
		detectionInterval: DefaultDeadlockDetectionInterval,
	}
}

func (lm *LockManager) tableQueue(oid uint32) *LockRequestQueue {
	lm.tableLockMapMu.Lock()
	defer lm.tableLockMapMu.Unlock()
	q, ok := lm.tableLockMap[oid]
	if !ok {
		q = newLockRequestQueue()
		lm.tableLockMap[oid] = q
	}
	return q
}

func (lm *LockManager) rowQueue(rid types.RowPointer) *LockRequestQueue {
	lm.rowLockMapMu.Lock()
	defer lm.rowLockMapMu.Unlock()
	q, ok := lm.rowLockMap[rid]
	if !ok {
		q = newLockRequestQueue()
		lm.rowLockMap[rid] = q
	}
	return q
}
