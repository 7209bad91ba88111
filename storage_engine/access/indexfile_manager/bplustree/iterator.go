package bplus

import (
	"ridgedb/storage_engine/bufferpool"
	"ridgedb/storage_engine/page"
)

// Iterator provides a forward-only range scan over the tree's leaves,
// crossing leaf boundaries through their next pointers. It holds a read
// guard on exactly one leaf at a time; Close (or exhaustion) releases it.
type Iterator struct {
	tree  *BPlusTree
	guard bufferpool.ReadPageGuard
	leaf  *Node
	index int
	valid bool
}

// Begin returns an iterator positioned at the tree's first key.
func (t *BPlusTree) Begin() *Iterator {
	it := &Iterator{tree: t}

	guard, leaf, err := t.findLeftmostLeaf()
	if err != nil {
		it.valid = false
		return it
	}
	if len(leaf.keys) == 0 {
		guard.Drop()
		it.valid = false
		return it
	}

	it.guard = guard
	it.leaf = leaf
	it.index = 0
	it.valid = true
	return it
}

// BeginAt returns an iterator positioned at the first key >= target — the
// keyed counterpart of Begin.
func (t *BPlusTree) BeginAt(target []byte) *Iterator {
	return t.SeekGE(target)
}

// End returns an iterator already past the tree's last key. IsEnd is true
// for it, and for any iterator a scan has since run off the end of.
func (t *BPlusTree) End() *Iterator {
	return &Iterator{tree: t, valid: false}
}

// SeekGE positions the iterator at the first key >= target. It is the
// implementation behind BeginAt.
func (t *BPlusTree) SeekGE(target []byte) *Iterator {
	it := &Iterator{tree: t}

	guard, leaf, err := t.findLeafForRead(target)
	if err != nil {
		it.valid = false
		return it
	}

	i := lowerBound(leaf.keys, target, t.cmp)
	for i >= len(leaf.keys) {
		nextID := leaf.next
		guard.Drop()
		if nextID == page.InvalidPageID {
			it.valid = false
			return it
		}
		nextGuard, err := t.bufferPool.FetchPageRead(nextID)
		if err != nil {
			it.valid = false
			return it
		}
		nextLeaf, err := t.loadNode(nextGuard.Page())
		if err != nil {
			nextGuard.Drop()
			it.valid = false
			return it
		}
		guard = nextGuard
		leaf = nextLeaf
		i = 0
	}

	it.guard = guard
	it.leaf = leaf
	it.index = i
	it.valid = true
	return it
}

// Next advances the iterator, crossing into the next leaf if the current
// one is exhausted. Returns false once there is nothing left to scan.
func (it *Iterator) Next() bool {
	if !it.valid {
		return false
	}
	it.index++
	if it.index < len(it.leaf.keys) {
		return true
	}

	nextID := it.leaf.next
	it.guard.Drop()
	if nextID == page.InvalidPageID {
		it.leaf = nil
		it.valid = false
		return false
	}

	nextGuard, err := it.tree.bufferPool.FetchPageRead(nextID)
	if err != nil {
		it.leaf = nil
		it.valid = false
		return false
	}
	nextLeaf, err := it.tree.loadNode(nextGuard.Page())
	if err != nil || len(nextLeaf.keys) == 0 {
		nextGuard.Drop()
		it.leaf = nil
		it.valid = false
		return false
	}

	it.guard = nextGuard
	it.leaf = nextLeaf
	it.index = 0
	return true
}

// Close releases the currently held leaf guard, if any. Safe to call more
// than once, and safe to skip once Next has returned false.
func (it *Iterator) Close() {
	if it.leaf != nil {
		it.guard.Drop()
		it.leaf = nil
	}
	it.valid = false
}

// Key returns the current key, or nil past the end of the scan.
func (it *Iterator) Key() []byte {
	if !it.valid {
		return nil
	}
	return it.leaf.keys[it.index]
}

// Value returns the current value, or nil past the end of the scan.
func (it *Iterator) Value() []byte {
	if !it.valid {
		return nil
	}
	return it.leaf.values[it.index]
}

// IsEnd reports whether the iterator has no current key, either because it
// was produced by End or because a scan has run past the last entry.
func (it *Iterator) IsEnd() bool {
	return !it.valid
}
