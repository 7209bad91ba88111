package bplus

import "ridgedb/storage_engine/bufferpool"

/*
writeCrabContext tracks the ancestor write guards accumulated while
descending into the tree for an Insert or Remove, including the header
page guard at its top — header plays the same role BusTub gives
ctx.header_page_: held for as long as the descent might still need to
replace the root, dropped the moment the node currently being visited is
provably "safe" — it cannot itself need to split (insert) or borrow/merge
(delete) regardless of what its child does — along with every other guard
held so far: nothing above a safe node can ever need to change as a result
of this operation. If the current node turns out unsafe, its guard joins
the context so split/merge propagation can walk back up through real
ancestors instead of re-fetching them (which would deadlock against
itself).
*/
type writeCrabContext struct {
	header *bufferpool.WritePageGuard
	path   []bufferpool.WritePageGuard
	nodes  []*Node
}

func (c *writeCrabContext) push(g bufferpool.WritePageGuard, n *Node) {
	c.path = append(c.path, g)
	c.nodes = append(c.nodes, n)
}

// releaseAncestors drops every guard accumulated so far, plus the header
// page guard if still held. Safe to call when the current node (not yet
// pushed) is proven incapable of propagating a structural change upward.
func (c *writeCrabContext) releaseAncestors(t *BPlusTree) {
	for i := range c.path {
		c.path[i].Drop()
	}
	c.path = c.path[:0]
	c.nodes = c.nodes[:0]
	if c.header != nil {
		c.header.Drop()
		c.header = nil
	}
}

// releaseAll is releaseAncestors under a more final-sounding name, used at
// the end of an operation once there is nothing left to propagate.
func (c *writeCrabContext) releaseAll(t *BPlusTree) {
	c.releaseAncestors(t)
}

// popParent removes and returns the nearest remaining ancestor, handing
// guard ownership to the caller. ok is false once the path is exhausted —
// meaning the node the caller started from was the root.
func (c *writeCrabContext) popParent() (g bufferpool.WritePageGuard, n *Node, ok bool) {
	if len(c.path) == 0 {
		return bufferpool.WritePageGuard{}, nil, false
	}
	i := len(c.path) - 1
	g, n = c.path[i], c.nodes[i]
	c.path = c.path[:i]
	c.nodes = c.nodes[:i]
	return g, n, true
}
