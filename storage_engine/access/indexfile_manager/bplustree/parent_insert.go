package bplus

import "fmt"

// insertIntoParent places sepKey and rightID into the parent of leftID.
// If ctx has no ancestor left, leftID was the root and a new root is
// created instead. A parent that itself overflows is split and propagated
// further up the same way.
func (t *BPlusTree) insertIntoParent(ctx *writeCrabContext, leftID int64, sepKey []byte, rightID int64) error {
	parentGuard, parent, ok := ctx.popParent()
	if !ok {
		return t.createNewRoot(ctx, leftID, sepKey, rightID)
	}

	idx := 0
	for idx < len(parent.children) && parent.children[idx] != leftID {
		idx++
	}
	if idx > len(parent.children) {
		idx = len(parent.children)
	}

	parent.keys = insert(parent.keys, idx, sepKey)
	parent.children = insert(parent.children, idx+1, rightID)

	if len(parent.keys) <= t.maxFor(NodeInternal) {
		if err := storeNode(parentGuard.Page(), parent); err != nil {
			parentGuard.Drop()
			ctx.releaseAll(t)
			return fmt.Errorf("insertIntoParent: %w", err)
		}
		parentGuard.Drop()
		ctx.releaseAll(t)
		return nil
	}

	return t.splitInternalAndPropagate(ctx, parentGuard, parent)
}
