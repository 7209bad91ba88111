package lockmgr

import (
	txn "ridgedb/storage_engine/transaction_manager"
	"ridgedb/types"
	"sync"
	"time"
)

// LockMode is one of the five multi-granularity lock modes. The zero value
// is IntentionShared deliberately — it is the weakest mode, so a
// zero-valued LockRequest is never mistaken for something stronger than
// intended.
type LockMode int

const (
	IntentionShared LockMode = iota
	IntentionExclusive
	Shared
	SharedIntentionExclusive
	Exclusive

	numLockModes = 5
)

func (m LockMode) String() string {
	switch m {
	case IntentionShared:
		return "IS"
	case IntentionExclusive:
		return "IX"
	case Shared:
		return "S"
	case SharedIntentionExclusive:
		return "SIX"
	case Exclusive:
		return "X"
	default:
		return "?"
	}
}

// LockRequest is one transaction's ask for a lock on a table or row. It sits
// in its LockRequestQueue until Granted, and is removed once the holder
// unlocks or the request is abandoned mid-wait.
type LockRequest struct {
	TxnID   uint64
	Mode    LockMode
	OID     uint32
	RID     types.RowPointer
	IsTable bool
	Granted bool
}

const noUpgrader = 0

// LockRequestQueue serializes lock/unlock traffic against one table or row.
// grantedCounts lets checkCanLock answer "does anything incompatible
// already hold this resource" in O(1) instead of scanning every granted
// request.
type LockRequestQueue struct {
	mu            sync.Mutex
	cond          *sync.Cond
	requests      []*LockRequest
	grantedCounts [numLockModes]int
	granted       map[uint64]*LockRequest
	upgrading     uint64 // txn ID currently upgrading, or noUpgrader
}

func newLockRequestQueue() *LockRequestQueue {
	q := &LockRequestQueue{
		granted:   make(map[uint64]*LockRequest),
		upgrading: noUpgrader,
	}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// LockManager grants and tracks table and row locks across every active
// transaction, and watches the resulting wait-for graph for deadlocks.
type LockManager struct {
	tableLockMapMu sync.Mutex
	tableLockMap   map[uint32]*LockRequestQueue

	rowLockMapMu sync.Mutex
	rowLockMap   map[types.RowPointer]*LockRequestQueue

	graphMu  sync.Mutex
	waitsFor map[uint64]map[uint64]bool // txnID -> set of txnIDs it waits on

	detectionInterval time.Duration
	stopDetection      chan struct{}
}

var _ txn.LockReleaser = (*LockManager)(nil)
