package bplus

import (
	"ridgedb/storage_engine/bufferpool"
	diskmanager "ridgedb/storage_engine/disk_manager"
	"ridgedb/storage_engine/page"
	"ridgedb/types"
	"fmt"
	"log"
	"os"
)

// OpenBPlusTree creates or reopens a B+ tree that stores its pages in the
// file identified by fileID, using the shared BufferPool and DiskManager.
//
// capacities sets how many keys a leaf or internal node may hold before it
// splits; leaf and internal nodes are sized independently. cmp orders keys
// — it must agree with however the caller encodes them, since the tree
// never interprets a key's bytes itself. Pass DefaultCapacities() and
// bytes.Compare for the common case.
//
// The tree's root page ID lives in a header page at a fixed id — local page
// 0 of the index file — fetched and latched through the buffer pool like
// any other tree page. A brand new file allocates only the header page and
// records page.InvalidPageID as the root; the first Insert allocates the
// leaf root. Reopening an
// existing file resolves the header page's deterministic id and registers
// its already-allocated pages with the disk manager so later fetches can
// resolve them.
func OpenBPlusTree(indexPath string, fileID uint32, bufferPool *bufferpool.BufferPool, diskManager *diskmanager.DiskManager, capacities Capacities, cmp func(a, b []byte) int) (*BPlusTree, error) {
	_, statErr := os.Stat(indexPath)
	isNew := os.IsNotExist(statErr)

	if _, err := diskManager.OpenFileWithID(indexPath, fileID); err != nil {
		return nil, fmt.Errorf("OpenBPlusTree: failed to open index file %s: %w", indexPath, err)
	}

	t := &BPlusTree{
		fileID:      fileID,
		bufferPool:  bufferPool,
		diskManager: diskManager,
		cmp:         cmp,
		capacities:  capacities,
	}

	if isNew {
		headerGuard, err := bufferPool.NewPageGuarded(fileID, types.PageTypeMetadata)
		if err != nil {
			return nil, fmt.Errorf("OpenBPlusTree: failed to allocate header page: %w", err)
		}
		t.headerPageID = headerGuard.PageID()

		encodeHeaderRoot(headerGuard.Page(), page.InvalidPageID)
		headerGuard.Drop()

		log.Printf("[bplustree] new tree fileID=%d headerPage=%d", fileID, t.headerPageID)
	} else {
		fd, err := diskManager.GetFileDescriptor(fileID)
		if err != nil {
			return nil, err
		}
		for localPage := int64(0); localPage < fd.NextPageID; localPage++ {
			if err := diskManager.RegisterPage(fileID, localPage); err != nil {
				return nil, err
			}
		}

		headerPageID, err := diskManager.GetGlobalPageID(fileID, 0)
		if err != nil {
			return nil, fmt.Errorf("OpenBPlusTree: failed to resolve header page: %w", err)
		}
		t.headerPageID = headerPageID

		log.Printf("[bplustree] loaded tree fileID=%d headerPage=%d", fileID, t.headerPageID)
	}

	return t, nil
}

// Close flushes every dirty page in the shared buffer pool (not only this
// tree's) and syncs every file the disk manager has open.
func (t *BPlusTree) Close() error {
	if err := t.bufferPool.FlushAllPages(); err != nil {
		return fmt.Errorf("Close: failed to flush pages: %w", err)
	}
	if err := t.diskManager.Sync(); err != nil {
		return fmt.Errorf("Close: failed to sync disk: %w", err)
	}
	return nil
}
