package bplus

import (
	"ridgedb/storage_engine/bufferpool"
	"ridgedb/storage_engine/page"
	"fmt"
)

// nodeSafeForDelete reports whether the given node, once on the path of a
// delete, can be proven incapable of propagating a merge/collapse further
// up the tree. A root is held to a looser rule than other nodes: it never
// underflows in the min-keys sense, but an internal root can still collapse
// if it drops to zero separator keys, so it only counts as safe once it
// has more than one key to lose.
func (t *BPlusTree) nodeSafeForDelete(node *Node, isRoot bool) bool {
	if isRoot {
		return node.isLeaf() || len(node.keys) > 1
	}
	return node.isSafeForDelete(t.minFor(node.nodeType))
}

// Remove deletes key from the tree, if present. Like Insert, it descends
// with write-latch crabbing, releasing every ancestor proven safe before
// continuing down, and only walks back up through the retained write-set
// when a leaf's deletion actually underflows it.
func (t *BPlusTree) Remove(key []byte) error {
	ctx := &writeCrabContext{}
	headerGuard, err := t.bufferPool.FetchPageWrite(t.headerPageID)
	if err != nil {
		return fmt.Errorf("Remove: failed to fetch header page: %w", err)
	}
	ctx.header = &headerGuard
	root := decodeHeaderRoot(headerGuard.Page())

	if root == page.InvalidPageID {
		ctx.releaseAll(t)
		return nil
	}

	curID := root
	for {
		guard, err := t.bufferPool.FetchPageWrite(curID)
		if err != nil {
			ctx.releaseAll(t)
			return fmt.Errorf("Remove: failed to fetch page %d: %w", curID, err)
		}
		node, err := t.loadNode(guard.Page())
		if err != nil {
			guard.Drop()
			ctx.releaseAll(t)
			return err
		}

		if node.isLeaf() {
			idx := binarySearch(node.keys, key, t.cmp)
			if idx == -1 {
				guard.Drop()
				ctx.releaseAll(t)
				return nil
			}
			node.keys = remove(node.keys, idx)
			node.values = remove(node.values, idx)

			isRoot := node.pageID == root
			if err := storeNode(guard.Page(), node); err != nil {
				guard.Drop()
				ctx.releaseAll(t)
				return err
			}

			if isRoot || len(node.keys) >= t.minFor(node.nodeType) {
				guard.Drop()
				ctx.releaseAll(t)
				return nil
			}

			return t.fixUnderflow(ctx, guard, node)
		}

		i := lowerBound(node.keys, key, t.cmp)
		if i < len(node.keys) && t.cmp(node.keys[i], key) == 0 {
			i++ // a key equal to a separator lives in the right child
		}
		if i >= len(node.children) {
			i = len(node.children) - 1
		}
		childID := node.children[i]

		isRoot := node.pageID == root
		if t.nodeSafeForDelete(node, isRoot) {
			ctx.releaseAncestors(t)
		}
		ctx.push(guard, node)
		curID = childID
	}
}

// fixUnderflow repairs node, which has dropped below its type's minimum, by borrowing
// a key from a sibling or, failing that, merging with one. A merge removes
// a separator from the parent, which may itself need to be repaired or —
// if it is the root and has just emptied out — collapsed.
func (t *BPlusTree) fixUnderflow(ctx *writeCrabContext, guard bufferpool.WritePageGuard, node *Node) error {
	parentGuard, parent, ok := ctx.popParent()
	if !ok {
		// node is the root. An under-full leaf root is simply a small
		// tree; nothing to fix.
		guard.Drop()
		ctx.releaseAll(t)
		return nil
	}

	idx := -1
	for i, c := range parent.children {
		if c == node.pageID {
			idx = i
			break
		}
	}
	if idx == -1 {
		guard.Drop()
		parentGuard.Drop()
		ctx.releaseAll(t)
		return fmt.Errorf("fixUnderflow: node %d not found among parent %d's children", node.pageID, parent.pageID)
	}

	leftID, rightID := int64(page.InvalidPageID), int64(page.InvalidPageID)
	if idx > 0 {
		leftID = parent.children[idx-1]
	}
	if idx < len(parent.children)-1 {
		rightID = parent.children[idx+1]
	}

	if leftID != page.InvalidPageID {
		leftGuard, err := t.bufferPool.FetchPageWrite(leftID)
		if err == nil {
			left, lerr := t.loadNode(leftGuard.Page())
			if lerr == nil && len(left.keys) > t.minFor(node.nodeType) {
				borrowFromLeft(node, left, parent, idx)
				_ = storeNode(guard.Page(), node)
				_ = storeNode(leftGuard.Page(), left)
				_ = storeNode(parentGuard.Page(), parent)
				leftGuard.Drop()
				guard.Drop()
				parentGuard.Drop()
				ctx.releaseAll(t)
				return nil
			}
			leftGuard.Drop()
		}
	}

	if rightID != page.InvalidPageID {
		rightGuard, err := t.bufferPool.FetchPageWrite(rightID)
		if err == nil {
			right, rerr := t.loadNode(rightGuard.Page())
			if rerr == nil && len(right.keys) > t.minFor(node.nodeType) {
				borrowFromRight(node, right, parent, idx)
				_ = storeNode(guard.Page(), node)
				_ = storeNode(rightGuard.Page(), right)
				_ = storeNode(parentGuard.Page(), parent)
				rightGuard.Drop()
				guard.Drop()
				parentGuard.Drop()
				ctx.releaseAll(t)
				return nil
			}
			rightGuard.Drop()
		}
	}

	// Neither sibling has a spare key — merge with whichever exists.
	if leftID != page.InvalidPageID {
		leftGuard, err := t.bufferPool.FetchPageWrite(leftID)
		if err != nil {
			guard.Drop()
			parentGuard.Drop()
			ctx.releaseAll(t)
			return fmt.Errorf("fixUnderflow: failed to fetch left sibling %d: %w", leftID, err)
		}
		left, err := t.loadNode(leftGuard.Page())
		if err != nil {
			leftGuard.Drop()
			guard.Drop()
			parentGuard.Drop()
			ctx.releaseAll(t)
			return err
		}
		mergeInto(left, node, parent, idx-1)
		_ = storeNode(leftGuard.Page(), left)
		_ = storeNode(parentGuard.Page(), parent)
		leftGuard.Drop()
		guard.Drop()
		_ = t.bufferPool.DeletePage(node.pageID)
	} else {
		rightGuard, err := t.bufferPool.FetchPageWrite(rightID)
		if err != nil {
			guard.Drop()
			parentGuard.Drop()
			ctx.releaseAll(t)
			return fmt.Errorf("fixUnderflow: failed to fetch right sibling %d: %w", rightID, err)
		}
		right, err := t.loadNode(rightGuard.Page())
		if err != nil {
			rightGuard.Drop()
			guard.Drop()
			parentGuard.Drop()
			ctx.releaseAll(t)
			return err
		}
		mergeInto(node, right, parent, idx)
		_ = storeNode(guard.Page(), node)
		_ = storeNode(parentGuard.Page(), parent)
		rightGuard.Drop()
		guard.Drop()
		_ = t.bufferPool.DeletePage(right.pageID)
	}

	isParentRoot := ctx.header != nil && parent.pageID == decodeHeaderRoot(ctx.header.Page())
	if isParentRoot {
		if len(parent.keys) == 0 && len(parent.children) == 1 {
			return t.collapseRoot(ctx, parentGuard, parent)
		}
		parentGuard.Drop()
		ctx.releaseAll(t)
		return nil
	}
	if len(parent.keys) >= t.minFor(NodeInternal) {
		parentGuard.Drop()
		ctx.releaseAll(t)
		return nil
	}
	return t.fixUnderflow(ctx, parentGuard, parent)
}

// collapseRoot replaces an internal root that merged down to a single
// child with that child, shrinking the tree's height by one.
func (t *BPlusTree) collapseRoot(ctx *writeCrabContext, rootGuard bufferpool.WritePageGuard, root *Node) error {
	defer ctx.releaseAll(t)

	newRootID := root.children[0]
	oldRootID := root.pageID
	rootGuard.Drop()

	encodeHeaderRoot(ctx.header.Page(), newRootID)
	_ = t.bufferPool.DeletePage(oldRootID)
	return nil
}
