package bplus

import (
	"ridgedb/storage_engine/bufferpool"
	"ridgedb/storage_engine/page"
	"ridgedb/types"
	"fmt"
)

// loadNode deserializes the Node backing a held guard. The guard must stay
// alive for as long as the returned Node is used for anything but reading —
// mutations are written back into the guard's page with storeNode before
// the guard is dropped.
func (t *BPlusTree) loadNode(pg *page.Page) (*Node, error) {
	n, err := DeserializeNode(pg.Data, t.fileID)
	if err != nil {
		return nil, fmt.Errorf("loadNode: %w", err)
	}
	n.pageID = pg.ID
	return n, nil
}

// storeNode serializes n back into pg's bytes and marks it dirty. Caller
// still owns the write latch via whichever guard wraps pg.
func storeNode(pg *page.Page, n *Node) error {
	if err := SerializeNode(n, pg.Data); err != nil {
		return fmt.Errorf("storeNode: %w", err)
	}
	pg.IsDirty = true
	return nil
}

// allocNode allocates a brand new page, write-latches it, and returns both
// the guard (caller must Drop it) and a freshly initialized Node of the
// given type ready to be populated and stored.
func (t *BPlusTree) allocNode(nodeType NodeType) (bufferpool.WritePageGuard, *Node, error) {
	guard, err := t.bufferPool.NewPageGuarded(t.fileID, types.PageTypeBPlusNode)
	if err != nil {
		return bufferpool.WritePageGuard{}, nil, fmt.Errorf("allocNode: failed to allocate page: %w", err)
	}

	n := &Node{
		pageID:   guard.PageID(),
		nodeType: nodeType,
		keys:     make([][]byte, 0),
		children: make([]int64, 0),
		values:   make([][]byte, 0),
		next:     page.InvalidPageID,
		parent:   page.InvalidPageID,
	}
	if err := storeNode(guard.Page(), n); err != nil {
		guard.Drop()
		return bufferpool.WritePageGuard{}, nil, err
	}
	return guard, n, nil
}
