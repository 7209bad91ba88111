package bplus

import (
	"encoding/binary"

	"ridgedb/storage_engine/page"
)

// The header page holds nothing but the tree's current root page id, at
// bytes 0-7. Every operation that needs to know or change the root fetches
// and latches this exact page through the buffer pool first — it is a tree
// page like any other, not separate state carried on the BPlusTree value.

func decodeHeaderRoot(pg *page.Page) int64 {
	return int64(binary.LittleEndian.Uint64(pg.Data[:8]))
}

func encodeHeaderRoot(pg *page.Page, root int64) {
	binary.LittleEndian.PutUint64(pg.Data[:8], uint64(root))
	pg.IsDirty = true
}
