package engine

import (
	"fmt"

	heapfile "ridgedb/storage_engine/access/heapfile_manager"
	indexfile "ridgedb/storage_engine/access/indexfile_manager"
	"ridgedb/storage_engine/bufferpool"
	"ridgedb/storage_engine/catalog"
	diskmanager "ridgedb/storage_engine/disk_manager"
	lockmgr "ridgedb/storage_engine/lock_manager"
	txn "ridgedb/storage_engine/transaction_manager"
	"ridgedb/types"
)

/*
Engine wires the four core subsystems — buffer pool, B+ tree indexes, lock
manager, transaction manager — together with the storage-adjacent
collaborators (catalog, heap files) that give them something real to act
on. Nothing in the other packages reaches back into Engine; it only exists
to assemble them in the right order and hand out the pieces query-layer
code would need.
*/
type Engine struct {
	DiskManager *diskmanager.DiskManager
	BufferPool  *bufferpool.BufferPool
	Catalog     *catalog.CatalogManager
	HeapFiles   *heapfile.HeapFileManager
	IndexFiles  *indexfile.IndexFileManager
	LockManager *lockmgr.LockManager
	TxnManager  *txn.TxnManager
}

// Config controls the sizing knobs every constructor in the underlying
// packages already exposes as plain parameters.
type Config struct {
	DBRoot              string
	BufferPoolFrames    int
	ReplacerK           int
	DefaultIsolation    txn.IsolationLevel
	RunDeadlockDetector bool
}

// NewEngine assembles one database's worth of storage engine: a shared
// buffer pool and disk manager underneath both the heap files and the B+
// tree indexes, a catalog for table→file resolution, a lock manager wired
// as the transaction manager's LockReleaser, and the transaction manager
// itself wired to roll writes back through the heap/index collaborator.
func NewEngine(cfg Config) (*Engine, error) {
	if cfg.BufferPoolFrames <= 0 {
		cfg.BufferPoolFrames = 128
	}
	if cfg.ReplacerK <= 0 {
		cfg.ReplacerK = 2
	}

	dm := diskmanager.NewDiskManager()
	bp := bufferpool.NewBufferPool(cfg.BufferPoolFrames, cfg.ReplacerK, dm)

	cat, err := catalog.NewCatalogManager(cfg.DBRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to create catalog manager: %w", err)
	}

	hfm, err := heapfile.NewHeapFileManager(cfg.DBRoot+"/tables", dm, bp)
	if err != nil {
		return nil, fmt.Errorf("failed to create heap file manager: %w", err)
	}

	ifm, err := indexfile.NewIndexFileManager(cfg.DBRoot+"/indexes", dm, bp)
	if err != nil {
		return nil, fmt.Errorf("failed to create index file manager: %w", err)
	}

	lm := lockmgr.NewLockManager()

	collab := &storageCollaborator{catalog: cat, heapFiles: hfm, indexFiles: ifm}

	tm := txn.NewTxnManager(
		txn.WithDefaultIsolation(cfg.DefaultIsolation),
		txn.WithLockReleaser(lm),
		txn.WithRollbackCollaborator(collab),
	)

	if cfg.RunDeadlockDetector {
		lm.StartCycleDetection(tm.GetTransaction)
	}

	return &Engine{
		DiskManager: dm,
		BufferPool:  bp,
		Catalog:     cat,
		HeapFiles:   hfm,
		IndexFiles:  ifm,
		LockManager: lm,
		TxnManager:  tm,
	}, nil
}

// Close stops the background deadlock detector and releases the catalog's
// schema cache. The underlying files are left as the disk manager's OS
// handles manage them.
func (e *Engine) Close() {
	e.LockManager.StopCycleDetection()
	e.Catalog.Close()
}

// CreateTable registers a new table in the catalog and backs it with a
// heap file and a primary-key B+ tree index — the unit of work a CREATE
// TABLE statement would drive, from a query layer this engine has no
// surface for.
func (e *Engine) CreateTable(schema types.TableSchema) error {
	heapFileID, indexFileID, err := e.Catalog.RegisterNewTable(schema)
	if err != nil {
		return fmt.Errorf("failed to register table %q: %w", schema.TableName, err)
	}

	if err := e.HeapFiles.CreateHeapfile(schema.TableName, int(heapFileID)); err != nil {
		return fmt.Errorf("failed to create heap file for table %q: %w", schema.TableName, err)
	}

	if _, err := e.IndexFiles.GetOrCreateIndex(schema.TableName, indexFileID); err != nil {
		return fmt.Errorf("failed to create index for table %q: %w", schema.TableName, err)
	}

	return nil
}

// DropTable removes a table's heap file, its primary-key index, and its
// catalog entry. It is the inverse of CreateTable and is not transactional
// — callers must ensure no transaction holds locks on the table.
func (e *Engine) DropTable(tableName string) error {
	indexFileID, err := e.Catalog.GetIndexFileID(tableName)
	if err != nil {
		return fmt.Errorf("failed to resolve index for table %q: %w", tableName, err)
	}

	if err := e.IndexFiles.DeleteIndex(tableName, indexFileID); err != nil {
		return fmt.Errorf("failed to delete index for table %q: %w", tableName, err)
	}

	if err := e.HeapFiles.DeleteHeapfile(tableName); err != nil {
		return fmt.Errorf("failed to delete heap file for table %q: %w", tableName, err)
	}

	if err := e.Catalog.UnregisterTable(tableName); err != nil {
		return fmt.Errorf("failed to unregister table %q: %w", tableName, err)
	}

	return nil
}
