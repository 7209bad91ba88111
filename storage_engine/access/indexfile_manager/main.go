package indexfile

import (
	bplus "ridgedb/storage_engine/access/indexfile_manager/bplustree"
	"ridgedb/storage_engine/bufferpool"
	diskmanager "ridgedb/storage_engine/disk_manager"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
)

/*
IndexFileManager owns the primary-key B+ tree index for each table, keyed
by table name. Like HeapFileManager it shares the disk manager and buffer
pool with the rest of the engine — a tree's nodes are just pages flowing
through the same pool as heap pages, stamped PageTypeBPlusNode/Metadata
instead of PageTypeHeapData.

Engine.CreateTable opens (and so creates) a table's index the moment the
table is created; the engine's rollback collaborator and cmd/seed both
reach trees through GetOrCreateIndex rather than holding one directly, so
a tree can be evicted from this cache and reopened without callers
noticing.
*/

func NewIndexFileManager(baseDir string, diskManager *diskmanager.DiskManager, bufferPool *bufferpool.BufferPool) (*IndexFileManager, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create indexes directory: %w", err)
	}

	return &IndexFileManager{
		baseDir:     baseDir,
		indexes:     make(map[string]*bplus.BPlusTree),
		bufferPool:  bufferPool,
		diskManager: diskManager,
	}, nil
}

// GetOrCreateIndex returns the B+ tree primary index for the given table,
// mapping primary key to row pointer (file, page, slot). Callers use it for
// point lookups, inserting a new key→pointer pair, and removing a key during
// rollback. Indexes are cached per table; CloseAll flushes and syncs every
// cached tree and drops the cache on engine shutdown. It closes no file handle.
func (ifm *IndexFileManager) GetOrCreateIndex(tableName string, indexFileID uint32) (*bplus.BPlusTree, error) {

	ifm.mu.RLock()
	btree, exists := ifm.indexes[tableName]
	ifm.mu.RUnlock()

	if exists && btree != nil {
		return btree, nil
	}

	// Slow path: open or create the index file.
	ifm.mu.Lock()
	defer ifm.mu.Unlock()

	// Double-check after acquiring write lock (another goroutine may have
	// opened it while we were waiting for the lock).
	if btree, exists := ifm.indexes[tableName]; exists && btree != nil {
		return btree, nil
	}

	// Build the index file path: indexes/tableName_primary.idx
	indexKey := fmt.Sprintf("%s_primary", tableName)
	indexPath := filepath.Join(ifm.baseDir, indexKey+".idx")

	// OpenBPlusTree creates the file if it doesn't exist.
	btree, err := bplus.OpenBPlusTree(indexPath, indexFileID, ifm.bufferPool, ifm.diskManager, bplus.DefaultCapacities(), bytes.Compare)
	if err != nil {
		return nil, fmt.Errorf("failed to open B+ tree for table '%s': %w", tableName, err)
	}

	// Cache it so subsequent calls are O(1).
	ifm.indexes[tableName] = btree
	return btree, nil
}

// CloseIndex closes the B+ tree for a specific table and removes it from cache.
// The index is flushed to disk before closing.
func (ifm *IndexFileManager) CloseIndex(tableName string) error {
	ifm.mu.Lock()
	defer ifm.mu.Unlock()

	btree, exists := ifm.indexes[tableName]
	if !exists {
		return nil // not open, nothing to do
	}

	if err := btree.Close(); err != nil {
		return fmt.Errorf("failed to close index for table '%s': %w", tableName, err)
	}

	delete(ifm.indexes, tableName)
	return nil
}

// DeleteIndex closes the B+ tree for tableName, if open, and removes its
// backing file from disk. It is the index-side half of dropping a table.
func (ifm *IndexFileManager) DeleteIndex(tableName string, indexFileID uint32) error {
	ifm.mu.Lock()
	defer ifm.mu.Unlock()

	if btree, exists := ifm.indexes[tableName]; exists {
		if err := btree.Close(); err != nil {
			return fmt.Errorf("failed to close index for table '%s' before delete: %w", tableName, err)
		}
		delete(ifm.indexes, tableName)
	}

	_ = ifm.diskManager.CloseFile(indexFileID) // already closed is not an error here

	indexKey := fmt.Sprintf("%s_primary", tableName)
	indexPath := filepath.Join(ifm.baseDir, indexKey+".idx")
	if err := os.Remove(indexPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove index file for table '%s': %w", tableName, err)
	}

	return nil
}

// CloseAll closes all cached indexes and clears the cache.
// Called when switching databases or shutting down the storage engine.
func (ifm *IndexFileManager) CloseAll() error {
	ifm.mu.Lock()
	defer ifm.mu.Unlock()

	var lastErr error
	for tableName, btree := range ifm.indexes {
		if err := btree.Close(); err != nil {
			lastErr = fmt.Errorf("failed to close index for table '%s': %w", tableName, err)
		}
		delete(ifm.indexes, tableName)
	}

	return lastErr
}

// LoadIndex opens an existing index file and caches it.
// Used during database initialization to preload all indexes for open tables.
func (ifm *IndexFileManager) LoadIndex(tableName string, IndexFileID uint32) error {
	ifm.mu.Lock()
	defer ifm.mu.Unlock()

	// Already cached — nothing to do.
	if _, exists := ifm.indexes[tableName]; exists {
		return nil
	}

	indexKey := fmt.Sprintf("%s_primary", tableName)
	indexPath := filepath.Join(ifm.baseDir, indexKey+".idx")

	// Verify the file exists before opening.
	if _, err := os.Stat(indexPath); os.IsNotExist(err) {
		return fmt.Errorf("index file for table '%s' not found at %s", tableName, indexPath)
	}

	btree, err := bplus.OpenBPlusTree(indexPath, IndexFileID, ifm.bufferPool, ifm.diskManager, bplus.DefaultCapacities(), bytes.Compare)
	if err != nil {
		return fmt.Errorf("failed to load index for table '%s': %w", tableName, err)
	}

	ifm.indexes[tableName] = btree
	return nil
}
