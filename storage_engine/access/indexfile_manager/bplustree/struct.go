// Structure of B+ Tree
/*
Tree
 ├── Internal Node (keys + child pointers)
 │      └── Child Internal Nodes ...
 │             └── Leaf Nodes (keys + values + next pointer)


- keys: sorted ascending order
- internal nodes: children length == len(keys)+1
- leaf nodes: values length == len(keys)
- leaf nodes linked with `next` for fast range scans
- all leaves at the same depth
*/
package bplus

import (
	"ridgedb/storage_engine/bufferpool"
	diskmanager "ridgedb/storage_engine/disk_manager"
)

type NodeType int

const (
	NodeInternal NodeType = iota
	NodeLeaf
)

const (
	// MaxKeys/MinKeys are the fan-out DefaultCapacities uses — the fixture
	// most tests run a tree at. OpenBPlusTree accepts a Capacities value so
	// a caller can configure leaf and internal node capacity independently
	// per tree instead of sharing this one fixed constant.
	MaxKeys = 32
	MinKeys = MaxKeys / 2

	MaxKeyLen = 256  // in bytes
	MaxValLen = 4096 // in bytes
)

// Capacities sets how many keys a leaf or internal node may hold before it
// splits. A node becomes eligible for borrow/merge once it drops below half
// its type's max, rounded down.
type Capacities struct {
	LeafMax     int
	InternalMax int
}

// DefaultCapacities is the fan-out every caller used before capacities
// became configurable per tree.
func DefaultCapacities() Capacities {
	return Capacities{LeafMax: MaxKeys, InternalMax: MaxKeys}
}

func (c Capacities) leafMin() int     { return c.LeafMax / 2 }
func (c Capacities) internalMin() int { return c.InternalMax / 2 }

// Node is the in-memory form of a B+ tree page. It carries no latch or pin
// of its own — those live on the page.Page behind whichever guard is
// currently holding it. A Node is only meaningful while its backing guard
// is live; callers load one, mutate it, and serialize it back before the
// guard drops.
type Node struct {
	pageID   int64
	nodeType NodeType
	keys     [][]byte // sorted ascending
	children []int64  // internal nodes only, len == len(keys)+1
	values   [][]byte // leaf nodes only, len == len(keys)
	next     int64    // leaf nodes only, page.InvalidPageID if none
	parent   int64    // best-effort, written for on-disk debuggability only —
	// navigation during insert/delete never trusts this field; it relies on
	// the write-set path tracked by the operation's crabbing context instead.
}

func (n *Node) isLeaf() bool { return n.nodeType == NodeLeaf }
func (n *Node) size() int    { return len(n.keys) }

// isFull reports whether this node has reached max keys for its type.
func (n *Node) isFull(max int) bool { return n.size() >= max }

// isSafeForInsert reports whether this node can accept one more key
// without overflowing max for its type.
func (n *Node) isSafeForInsert(max int) bool {
	return n.size() < max
}

// isSafeForDelete reports whether this node can lose one entry without
// underflowing below min for its type. Root nodes are handled specially by
// the caller (a root is always "safe" in the sense that its min-size rule
// is waived — collapse, not redistribution, resolves an under-full root).
func (n *Node) isSafeForDelete(min int) bool {
	return n.size() > min
}

type BPlusTree struct {
	fileID      uint32                   // DiskManager file ID for this index
	bufferPool  *bufferpool.BufferPool   // shared buffer pool
	diskManager *diskmanager.DiskManager // shared disk manager
	cmp         func(a, b []byte) int    // key comparator, supplied by the caller
	capacities  Capacities               // leaf/internal node capacity, supplied by the caller

	// headerPageID is this tree's header page: a page at a fixed id (local
	// page 0 of the index file) holding only the current root page id.
	// Writers that might replace the root (insert splitting the root,
	// delete collapsing it) write-latch it for the whole operation and
	// release it once a node on the path is proven incapable of
	// propagating a change that far up; readers and non-root-replacing
	// writers take a brief latch on it just long enough to resolve the
	// root and then release it before descending further.
	headerPageID int64
}

// maxFor returns the configured max key count for nodes of the given type.
func (t *BPlusTree) maxFor(nodeType NodeType) int {
	if nodeType == NodeLeaf {
		return t.capacities.LeafMax
	}
	return t.capacities.InternalMax
}

// minFor returns the configured min key count for nodes of the given type.
func (t *BPlusTree) minFor(nodeType NodeType) int {
	if nodeType == NodeLeaf {
		return t.capacities.leafMin()
	}
	return t.capacities.internalMin()
}
