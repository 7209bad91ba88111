package lockmgr

import (
	txn "ridgedb/storage_engine/transaction_manager"
	"sort"
	"time"
)

/*
The deadlock detector runs as a dedicated goroutine. Each tick it takes both
resource-map latches and the graph latch, rebuilds the wait-for graph from
scratch out of every queue's pending (ungranted) requests against that
queue's currently granted holders, then DFSes it for cycles. Vertices and
each vertex's neighbor list are walked in ascending transaction-id order so
two runs over the same state always pick the same victim. The youngest
(highest-id) transaction on a found cycle is aborted, removed from the
graph, and every queue it had been waiting in is woken so it can observe
the abort — repeated until the graph is acyclic.
*/

// StartCycleDetection launches the background detector. getTxn resolves a
// transaction ID to its Transaction so the detector can set its state; the
// detector never holds a reference to a transaction the manager did not
// just hand it. Call StopCycleDetection to shut it down.
func (lm *LockManager) StartCycleDetection(getTxn func(uint64) *txn.Transaction) {
	lm.stopDetection = make(chan struct{})
	go lm.runCycleDetection(getTxn)
}

// StopCycleDetection signals the background detector to exit. Safe to call
// when detection was never started.
func (lm *LockManager) StopCycleDetection() {
	if lm.stopDetection != nil {
		close(lm.stopDetection)
		lm.stopDetection = nil
	}
}

func (lm *LockManager) runCycleDetection(getTxn func(uint64) *txn.Transaction) {
	ticker := time.NewTicker(lm.detectionInterval)
	defer ticker.Stop()
	for {
		select {
		case <-lm.stopDetection:
			return
		case <-ticker.C:
			lm.detectAndBreakCycles(getTxn)
		}
	}
}

// detectAndBreakCycles runs one full detection pass, aborting victims until
// the wait-for graph has no remaining cycle.
func (lm *LockManager) detectAndBreakCycles(getTxn func(uint64) *txn.Transaction) {
	lm.tableLockMapMu.Lock()
	lm.rowLockMapMu.Lock()
	lm.graphMu.Lock()

	waitsFor := make(map[uint64]map[uint64]bool)
	waitingIn := make(map[uint64][]*LockRequestQueue)

	collect := func(q *LockRequestQueue) {
		q.mu.Lock()
		for _, req := range q.requests {
			waitingIn[req.TxnID] = append(waitingIn[req.TxnID], q)
			for holder := range q.granted {
				if holder == req.TxnID {
					continue
				}
				if waitsFor[req.TxnID] == nil {
					waitsFor[req.TxnID] = make(map[uint64]bool)
				}
				waitsFor[req.TxnID][holder] = true
			}
		}
		q.mu.Unlock()
	}
	for _, q := range lm.tableLockMap {
		collect(q)
	}
	for _, q := range lm.rowLockMap {
		collect(q)
	}

	lm.waitsFor = waitsFor
	lm.rowLockMapMu.Unlock()
	lm.tableLockMapMu.Unlock()

	for {
		victim, found := findCycleVictim(lm.waitsFor)
		if !found {
			break
		}

		if t := getTxn(victim); t != nil {
			t.SetState(txn.StateAborted)
		}

		delete(lm.waitsFor, victim)
		for _, neighbors := range lm.waitsFor {
			delete(neighbors, victim)
		}

		for _, q := range waitingIn[victim] {
			q.mu.Lock()
			q.cond.Broadcast()
			q.mu.Unlock()
		}
	}

	lm.waitsFor = make(map[uint64]map[uint64]bool)
	lm.graphMu.Unlock()
}

// findCycleVictim walks graph deterministically (ascending id order at
// every branch) and returns the youngest transaction on the first cycle it
// finds, or (0, false) if the graph is acyclic.
func findCycleVictim(graph map[uint64]map[uint64]bool) (uint64, bool) {
	vertices := make([]uint64, 0, len(graph))
	for v := range graph {
		vertices = append(vertices, v)
	}
	sort.Slice(vertices, func(i, j int) bool { return vertices[i] < vertices[j] })

	visited := make(map[uint64]bool)
	onStack := make(map[uint64]bool)
	var stack []uint64

	var dfs func(v uint64) (uint64, bool)
	dfs = func(v uint64) (uint64, bool) {
		visited[v] = true
		onStack[v] = true
		stack = append(stack, v)

		neighbors := make([]uint64, 0, len(graph[v]))
		for n := range graph[v] {
			neighbors = append(neighbors, n)
		}
		sort.Slice(neighbors, func(i, j int) bool { return neighbors[i] < neighbors[j] })

		for _, n := range neighbors {
			if onStack[n] {
				start := 0
				for i, s := range stack {
					if s == n {
						start = i
						break
					}
				}
				youngest := stack[start]
				for _, id := range stack[start:] {
					if id > youngest {
						youngest = id
					}
				}
				return youngest, true
			}
			if !visited[n] {
				if victim, found := dfs(n); found {
					return victim, true
				}
			}
		}

		onStack[v] = false
		stack = stack[:len(stack)-1]
		return 0, false
	}

	for _, v := range vertices {
		if !visited[v] {
			if victim, found := dfs(v); found {
				return victim, true
			}
		}
	}
	return 0, false
}

// GetEdgeList returns a snapshot of the wait-for graph's edges as
// (waiter, holder) pairs, for tests to assert on detector state between
// runs.
func (lm *LockManager) GetEdgeList() [][2]uint64 {
	lm.graphMu.Lock()
	defer lm.graphMu.Unlock()

	edges := make([][2]uint64, 0)
	for waiter, holders := range lm.waitsFor {
		for holder := range holders {
			edges = append(edges, [2]uint64{waiter, holder})
		}
	}
	return edges
}
