package bufferpool

import (
	"fmt"
	"sync"
)

// lruKReplacer tracks frame access history and picks an eviction victim using
// the LRU-K policy: a frame's priority for eviction is its *backward k-distance*,
// the gap between the current timestamp and the timestamp of its k-th most
// recent access. A frame with fewer than k recorded accesses has infinite
// backward k-distance and is preferred for eviction over any frame that has
// seen k accesses; among frames that are all still below k accesses, the one
// whose earliest recorded access is oldest (smallest timestamp) loses.
//
// Only frames marked evictable are eligible. A frame becomes non-evictable
// while pinned and evictable again once its pin count drops to zero.
type lruKReplacer struct {
	mu sync.Mutex

	k         int
	nodes     map[int]*lruKNode
	size      int // number of currently evictable frames
	clockTick int64
}

type lruKNode struct {
	frameID   int
	history   []int64 // most recent access last, capped at k entries
	evictable bool
}

func newLRUKReplacer(k int) *lruKReplacer {
	if k < 1 {
		k = 1
	}
	return &lruKReplacer{
		k:     k,
		nodes: make(map[int]*lruKNode),
	}
}

// backwardKDistance returns the node's backward k-distance, or
// math.MaxInt64 if it has fewer than k recorded accesses.
func (n *lruKNode) backwardKDistance(now int64) int64 {
	if len(n.history) < n.k() {
		return 1<<63 - 1
	}
	kth := n.history[len(n.history)-n.k()]
	return now - kth
}

func (n *lruKNode) k() int {
	return cap(n.history)
}

func (n *lruKNode) leastRecent() int64 {
	if len(n.history) == 0 {
		return 0
	}
	return n.history[0]
}

func (n *lruKNode) access(ts int64) {
	if len(n.history) == cap(n.history) && cap(n.history) > 0 {
		copy(n.history, n.history[1:])
		n.history[len(n.history)-1] = ts
		return
	}
	n.history = append(n.history, ts)
}

// RecordAccess notes that frameID was accessed, advancing the global clock.
func (r *lruKReplacer) RecordAccess(frameID int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.clockTick++
	node, ok := r.nodes[frameID]
	if !ok {
		node = &lruKNode{frameID: frameID, history: make([]int64, 0, r.k)}
		r.nodes[frameID] = node
	}
	node.access(r.clockTick)
}

// SetEvictable marks frameID as evictable or pinned. Only transitions change
// the evictable-frame count.
func (r *lruKReplacer) SetEvictable(frameID int, evictable bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	node, ok := r.nodes[frameID]
	if !ok {
		return
	}
	if node.evictable == evictable {
		return
	}
	node.evictable = evictable
	if evictable {
		r.size++
	} else {
		r.size--
	}
}

// Evict picks the highest-priority evictable frame, removes its history and
// returns it. Returns false if no frame is evictable.
func (r *lruKReplacer) Evict() (int, bool) {
	r.mu.Lock()

	var victim *lruKNode
	for _, node := range r.nodes {
		if !node.evictable {
			continue
		}
		if victim == nil {
			victim = node
			continue
		}
		vd, nd := victim.backwardKDistance(r.clockTick), node.backwardKDistance(r.clockTick)
		switch {
		case nd > vd:
			victim = node
		case nd == vd && node.leastRecent() < victim.leastRecent():
			victim = node
		}
	}
	if victim == nil {
		r.mu.Unlock()
		return 0, false
	}
	frameID := victim.frameID
	r.mu.Unlock()

	r.Remove(frameID)
	return frameID, true
}

// Remove drops all history for frameID, as when its page is deleted outright.
// frameID must either be untracked or already evictable — removing a pinned
// frame out from under its caller is a bug in the caller, not a case to
// handle gracefully.
func (r *lruKReplacer) Remove(frameID int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	node, ok := r.nodes[frameID]
	if !ok {
		return
	}
	if !node.evictable {
		panic(fmt.Sprintf("lruKReplacer.Remove: frame %d is tracked but not evictable", frameID))
	}
	r.size--
	delete(r.nodes, frameID)
}

// Size returns the number of frames currently eligible for eviction.
func (r *lruKReplacer) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.size
}
