package engine

import (
	"fmt"

	heapfile "ridgedb/storage_engine/access/heapfile_manager"
	indexfile "ridgedb/storage_engine/access/indexfile_manager"
	bplus "ridgedb/storage_engine/access/indexfile_manager/bplustree"
	"ridgedb/storage_engine/catalog"
	txn "ridgedb/storage_engine/transaction_manager"
	"ridgedb/types"
)

// storageCollaborator satisfies txn.RollbackCollaborator by translating its
// table-name-and-RowPointer vocabulary into calls against the heap file
// manager and the per-table B+ tree index, resolving the index file for a
// table through the catalog on each call rather than caching it — rollback
// is rare enough that the extra lookup doesn't matter.
type storageCollaborator struct {
	catalog    *catalog.CatalogManager
	heapFiles  *heapfile.HeapFileManager
	indexFiles *indexfile.IndexFileManager
}

var _ txn.RollbackCollaborator = (*storageCollaborator)(nil)

func (c *storageCollaborator) DeleteRow(table string, ptr types.RowPointer) error {
	return c.heapFiles.DeleteRow(&ptr, 0)
}

func (c *storageCollaborator) ReinsertRow(table string, ptr types.RowPointer, data []byte) error {
	return c.heapFiles.InsertRowAtPointer(ptr.FileID, &ptr, data, 0)
}

func (c *storageCollaborator) DeleteIndexEntry(table string, key []byte) error {
	tree, err := c.indexFor(table)
	if err != nil {
		return err
	}
	return tree.Remove(key)
}

func (c *storageCollaborator) InsertIndexEntry(table string, key []byte, value []byte) error {
	tree, err := c.indexFor(table)
	if err != nil {
		return err
	}
	inserted, err := tree.Insert(key, value)
	if err != nil {
		return err
	}
	if !inserted {
		return fmt.Errorf("rollback: index entry for table %q already present on reinsert", table)
	}
	return nil
}

func (c *storageCollaborator) indexFor(table string) (*bplus.BPlusTree, error) {
	indexFileID, err := c.catalog.GetIndexFileID(table)
	if err != nil {
		return nil, fmt.Errorf("rollback: no index for table %q: %w", table, err)
	}
	tree, err := c.indexFiles.GetOrCreateIndex(table, indexFileID)
	if err != nil {
		return nil, fmt.Errorf("rollback: failed to open index for table %q: %w", table, err)
	}
	return tree, nil
}
