package bplus

import (
	"ridgedb/storage_engine/page"
	"fmt"
)

// Insert adds key/value to the tree. It reports false, with no error, if
// key is already present — duplicate keys are rejected, not upserted. It
// descends with write-latch crabbing: each node is latched before its
// child is chosen, and every ancestor proven "safe" (incapable of
// splitting further up the tree) is released before the descent
// continues, so a split only ever holds latches on the path that actually
// needs rewriting.
func (t *BPlusTree) Insert(key, value []byte) (bool, error) {
	ctx := &writeCrabContext{}
	headerGuard, err := t.bufferPool.FetchPageWrite(t.headerPageID)
	if err != nil {
		return false, fmt.Errorf("Insert: failed to fetch header page: %w", err)
	}
	ctx.header = &headerGuard
	root := decodeHeaderRoot(headerGuard.Page())

	if root == page.InvalidPageID {
		guard, leaf, err := t.allocNode(NodeLeaf)
		if err != nil {
			ctx.releaseAll(t)
			return false, fmt.Errorf("Insert: failed to allocate root: %w", err)
		}
		leaf.keys = append(leaf.keys, key)
		leaf.values = append(leaf.values, value)
		if err := storeNode(guard.Page(), leaf); err != nil {
			guard.Drop()
			ctx.releaseAll(t)
			return false, err
		}
		encodeHeaderRoot(ctx.header.Page(), leaf.pageID)
		guard.Drop()
		ctx.releaseAll(t)
		return true, nil
	}

	curID := root
	for {
		guard, err := t.bufferPool.FetchPageWrite(curID)
		if err != nil {
			ctx.releaseAll(t)
			return false, fmt.Errorf("Insert: failed to fetch page %d: %w", curID, err)
		}
		node, err := t.loadNode(guard.Page())
		if err != nil {
			guard.Drop()
			ctx.releaseAll(t)
			return false, err
		}

		if node.isLeaf() {
			idx := binarySearch(node.keys, key, t.cmp)
			if idx != -1 {
				guard.Drop()
				ctx.releaseAll(t)
				return false, nil
			}

			pos := lowerBound(node.keys, key, t.cmp)
			node.keys = insert(node.keys, pos, key)
			node.values = insert(node.values, pos, value)

			if len(node.keys) <= t.maxFor(NodeLeaf) {
				storeErr := storeNode(guard.Page(), node)
				guard.Drop()
				ctx.releaseAll(t)
				return storeErr == nil, storeErr
			}

			if err := t.splitLeafAndPropagate(ctx, guard, node); err != nil {
				return false, err
			}
			return true, nil
		}

		i := lowerBound(node.keys, key, t.cmp)
		if i < len(node.keys) && t.cmp(node.keys[i], key) == 0 {
			i++ // a key equal to a separator lives in the right child
		}
		if i >= len(node.children) {
			i = len(node.children) - 1
		}
		childID := node.children[i]

		if node.isSafeForInsert(t.maxFor(NodeInternal)) {
			ctx.releaseAncestors(t)
		}
		ctx.push(guard, node)
		curID = childID
	}
}
