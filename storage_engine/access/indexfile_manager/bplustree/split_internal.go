package bplus

import (
	"ridgedb/storage_engine/bufferpool"
	"fmt"
)

// splitInternalAndPropagate splits an overflowing internal node, promoting
// its middle key into the parent found in ctx.
func (t *BPlusTree) splitInternalAndPropagate(ctx *writeCrabContext, nodeGuard bufferpool.WritePageGuard, node *Node) error {
	mid := len(node.keys) / 2
	promoteKey := node.keys[mid]

	rightGuard, right, err := t.allocNode(NodeInternal)
	if err != nil {
		nodeGuard.Drop()
		ctx.releaseAll(t)
		return fmt.Errorf("splitInternalAndPropagate: failed to allocate right sibling: %w", err)
	}

	right.keys = append(right.keys, node.keys[mid+1:]...)
	right.children = append(right.children, node.children[mid+1:]...)

	node.keys = node.keys[:mid]
	node.children = node.children[:mid+1]

	if err := storeNode(nodeGuard.Page(), node); err != nil {
		rightGuard.Drop()
		nodeGuard.Drop()
		ctx.releaseAll(t)
		return err
	}
	if err := storeNode(rightGuard.Page(), right); err != nil {
		rightGuard.Drop()
		nodeGuard.Drop()
		ctx.releaseAll(t)
		return err
	}

	leftID := node.pageID
	rightID := right.pageID

	rightGuard.Drop()
	nodeGuard.Drop()

	return t.insertIntoParent(ctx, leftID, promoteKey, rightID)
}
