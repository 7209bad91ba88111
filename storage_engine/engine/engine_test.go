package engine

import (
	"testing"

	txn "ridgedb/storage_engine/transaction_manager"
	"ridgedb/types"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()

	eng, err := NewEngine(Config{
		DBRoot:           t.TempDir(),
		BufferPoolFrames: 32,
		ReplacerK:        2,
		DefaultIsolation: txn.RepeatableRead,
	})
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	t.Cleanup(eng.Close)
	return eng
}

func accountsSchema() types.TableSchema {
	return types.TableSchema{
		TableName: "accounts",
		Columns: []types.ColumnDef{
			{Name: "id", Type: "string", IsPrimaryKey: true},
			{Name: "balance", Type: "int"},
		},
	}
}

func TestEngineCreateTableRegistersHeapAndIndex(t *testing.T) {
	eng := newTestEngine(t)

	if err := eng.CreateTable(accountsSchema()); err != nil {
		t.Fatalf("CreateTable: %v", err)
	}

	if !eng.Catalog.TableExists("accounts") {
		t.Fatalf("TableExists(accounts) = false after CreateTable")
	}

	heapFileID, err := eng.Catalog.GetTableFileID("accounts")
	if err != nil {
		t.Fatalf("GetTableFileID: %v", err)
	}
	if _, err := eng.HeapFiles.GetHeapFileByID(heapFileID); err != nil {
		t.Fatalf("heap file not registered: %v", err)
	}

	indexFileID, err := eng.Catalog.GetIndexFileID("accounts")
	if err != nil {
		t.Fatalf("GetIndexFileID: %v", err)
	}
	if _, err := eng.IndexFiles.GetOrCreateIndex("accounts", indexFileID); err != nil {
		t.Fatalf("index not registered: %v", err)
	}
}

func TestEngineDropTableRemovesHeapIndexAndCatalogEntry(t *testing.T) {
	eng := newTestEngine(t)

	if err := eng.CreateTable(accountsSchema()); err != nil {
		t.Fatalf("CreateTable: %v", err)
	}

	if err := eng.DropTable("accounts"); err != nil {
		t.Fatalf("DropTable: %v", err)
	}

	if eng.Catalog.TableExists("accounts") {
		t.Fatalf("TableExists(accounts) = true after DropTable")
	}
	if _, err := eng.HeapFiles.GetHeapFileByTable("accounts"); err == nil {
		t.Fatalf("expected heap file lookup to fail after DropTable")
	}

	// Recreating the table afterward must succeed — DropTable must not leave
	// stale file handles or cache entries behind.
	if err := eng.CreateTable(accountsSchema()); err != nil {
		t.Fatalf("CreateTable after DropTable: %v", err)
	}
}

func TestEngineDropTableUnknownTableFails(t *testing.T) {
	eng := newTestEngine(t)

	if err := eng.DropTable("ghost"); err == nil {
		t.Fatalf("expected DropTable(unknown table) to fail")
	}
}
