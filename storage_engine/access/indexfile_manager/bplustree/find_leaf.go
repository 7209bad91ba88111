package bplus

import (
	"ridgedb/storage_engine/bufferpool"
	"ridgedb/storage_engine/page"
	"fmt"
)

// findLeafForRead descends to the leaf that would contain key using
// read-latch crabbing: a child is latched before its parent is released,
// so a concurrent writer splitting the tree can never be observed
// mid-update, while readers never contend with other readers anywhere in
// the tree.
func (t *BPlusTree) findLeafForRead(key []byte) (bufferpool.ReadPageGuard, *Node, error) {
	headerGuard, err := t.bufferPool.FetchPageRead(t.headerPageID)
	if err != nil {
		return bufferpool.ReadPageGuard{}, nil, fmt.Errorf("findLeafForRead: failed to fetch header: %w", err)
	}
	root := decodeHeaderRoot(headerGuard.Page())
	if root == page.InvalidPageID {
		headerGuard.Drop()
		return bufferpool.ReadPageGuard{}, nil, fmt.Errorf("findLeafForRead: empty tree")
	}

	guard, err := t.bufferPool.FetchPageRead(root)
	headerGuard.Drop()
	if err != nil {
		return bufferpool.ReadPageGuard{}, nil, fmt.Errorf("findLeafForRead: failed to fetch root: %w", err)
	}
	node, err := t.loadNode(guard.Page())
	if err != nil {
		guard.Drop()
		return bufferpool.ReadPageGuard{}, nil, err
	}

	for !node.isLeaf() {
		i := lowerBound(node.keys, key, t.cmp)
		if i < len(node.keys) && t.cmp(node.keys[i], key) == 0 {
			i++ // a key equal to a separator lives in the right child
		}
		if i >= len(node.children) {
			i = len(node.children) - 1
		}
		childID := node.children[i]

		childGuard, err := t.bufferPool.FetchPageRead(childID)
		if err != nil {
			guard.Drop()
			return bufferpool.ReadPageGuard{}, nil, fmt.Errorf("findLeafForRead: failed to fetch child %d: %w", childID, err)
		}
		childNode, err := t.loadNode(childGuard.Page())
		if err != nil {
			childGuard.Drop()
			guard.Drop()
			return bufferpool.ReadPageGuard{}, nil, err
		}

		guard.Drop()
		guard = childGuard
		node = childNode
	}

	return guard, node, nil
}

// findLeftmostLeaf descends via each node's first child, with the same
// read-latch crabbing as findLeafForRead, to reach the tree's first leaf
// regardless of key type or comparator.
func (t *BPlusTree) findLeftmostLeaf() (bufferpool.ReadPageGuard, *Node, error) {
	headerGuard, err := t.bufferPool.FetchPageRead(t.headerPageID)
	if err != nil {
		return bufferpool.ReadPageGuard{}, nil, fmt.Errorf("findLeftmostLeaf: failed to fetch header: %w", err)
	}
	root := decodeHeaderRoot(headerGuard.Page())
	if root == page.InvalidPageID {
		headerGuard.Drop()
		return bufferpool.ReadPageGuard{}, nil, fmt.Errorf("findLeftmostLeaf: empty tree")
	}

	guard, err := t.bufferPool.FetchPageRead(root)
	headerGuard.Drop()
	if err != nil {
		return bufferpool.ReadPageGuard{}, nil, fmt.Errorf("findLeftmostLeaf: failed to fetch root: %w", err)
	}
	node, err := t.loadNode(guard.Page())
	if err != nil {
		guard.Drop()
		return bufferpool.ReadPageGuard{}, nil, err
	}

	for !node.isLeaf() {
		childID := node.children[0]

		childGuard, err := t.bufferPool.FetchPageRead(childID)
		if err != nil {
			guard.Drop()
			return bufferpool.ReadPageGuard{}, nil, fmt.Errorf("findLeftmostLeaf: failed to fetch child %d: %w", childID, err)
		}
		childNode, err := t.loadNode(childGuard.Page())
		if err != nil {
			childGuard.Drop()
			guard.Drop()
			return bufferpool.ReadPageGuard{}, nil, err
		}

		guard.Drop()
		guard = childGuard
		node = childNode
	}

	return guard, node, nil
}
