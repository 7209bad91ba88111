package bplus

import (
	"fmt"
	"strings"

	"ridgedb/storage_engine/page"
)

// GetRootPageId returns the tree's current root page ID, or
// page.InvalidPageID for an empty tree.
func (t *BPlusTree) GetRootPageId() int64 {
	guard, err := t.bufferPool.FetchPageRead(t.headerPageID)
	if err != nil {
		return page.InvalidPageID
	}
	defer guard.Drop()
	return decodeHeaderRoot(guard.Page())
}

// Snapshot renders the tree's shape level by level, one line per node, for
// tests to assert on after a split, merge, or collapse. Each node is
// rendered as its page ID followed by its keys; internal nodes show their
// child page IDs in brackets.
func (t *BPlusTree) Snapshot() string {
	root := t.GetRootPageId()

	if root == page.InvalidPageID {
		return "<empty>"
	}

	var sb strings.Builder
	level := []int64{root}
	depth := 0
	for len(level) > 0 {
		fmt.Fprintf(&sb, "L%d:", depth)
		var next []int64
		for _, id := range level {
			guard, err := t.bufferPool.FetchPageRead(id)
			if err != nil {
				fmt.Fprintf(&sb, " <err:%d>", id)
				continue
			}
			node, err := t.loadNode(guard.Page())
			if err != nil {
				guard.Drop()
				fmt.Fprintf(&sb, " <err:%d>", id)
				continue
			}

			if node.isLeaf() {
				fmt.Fprintf(&sb, " [%d:%s]", id, joinKeys(node.keys))
			} else {
				fmt.Fprintf(&sb, " [%d:%s|children=%v]", id, joinKeys(node.keys), node.children)
				next = append(next, node.children...)
			}
			guard.Drop()
		}
		sb.WriteByte('\n')
		level = next
		depth++
	}
	return sb.String()
}

func joinKeys(keys [][]byte) string {
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = string(k)
	}
	return strings.Join(parts, ",")
}
