package bplus

import (
	"ridgedb/storage_engine/bufferpool"
	"fmt"
)

// splitLeafAndPropagate splits an overflowing leaf already write-latched by
// leafGuard, then inserts the promoted separator into the leaf's parent
// (found in ctx), cascading further splits as necessary.
func (t *BPlusTree) splitLeafAndPropagate(ctx *writeCrabContext, leafGuard bufferpool.WritePageGuard, leaf *Node) error {
	mid := len(leaf.keys) / 2

	rightGuard, right, err := t.allocNode(NodeLeaf)
	if err != nil {
		leafGuard.Drop()
		ctx.releaseAll(t)
		return fmt.Errorf("splitLeafAndPropagate: failed to allocate right sibling: %w", err)
	}

	right.keys = append(right.keys, leaf.keys[mid:]...)
	right.values = append(right.values, leaf.values[mid:]...)
	right.next = leaf.next

	leaf.keys = leaf.keys[:mid]
	leaf.values = leaf.values[:mid]
	leaf.next = right.pageID

	if err := storeNode(leafGuard.Page(), leaf); err != nil {
		rightGuard.Drop()
		leafGuard.Drop()
		ctx.releaseAll(t)
		return err
	}
	if err := storeNode(rightGuard.Page(), right); err != nil {
		rightGuard.Drop()
		leafGuard.Drop()
		ctx.releaseAll(t)
		return err
	}

	sepKey := right.keys[0]
	leftID := leaf.pageID
	rightID := right.pageID

	rightGuard.Drop()
	leafGuard.Drop()

	return t.insertIntoParent(ctx, leftID, sepKey, rightID)
}
