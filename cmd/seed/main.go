// Seed program: stands up a database with one table, runs a handful of
// transactions through it directly against the storage engine (no SQL
// surface exists to drive this through), and prints what each one did.
// Run: go run ./cmd/seed
package main

import (
	"encoding/binary"
	"fmt"
	"log"
	"sync"

	"ridgedb/storage_engine/engine"
	lockmgr "ridgedb/storage_engine/lock_manager"
	txn "ridgedb/storage_engine/transaction_manager"
	"ridgedb/types"
)

const dbRoot = "databases/seed"

func main() {
	eng, err := engine.NewEngine(engine.Config{
		DBRoot:              dbRoot,
		BufferPoolFrames:    64,
		ReplacerK:           2,
		DefaultIsolation:    txn.RepeatableRead,
		RunDeadlockDetector: true,
	})
	if err != nil {
		log.Fatalf("new engine: %v", err)
	}
	defer eng.Close()

	eng.Catalog.SetCurrentDatabase("seed")

	schema := types.TableSchema{
		TableName: "accounts",
		Columns: []types.ColumnDef{
			{Name: "id", Type: "string", IsPrimaryKey: true},
			{Name: "balance", Type: "int"},
		},
	}
	if err := eng.CreateTable(schema); err != nil {
		log.Fatalf("create table: %v", err)
	}

	heapFileID, err := eng.Catalog.GetTableFileID("accounts")
	if err != nil {
		log.Fatalf("resolve heap file id: %v", err)
	}
	indexFileID, err := eng.Catalog.GetIndexFileID("accounts")
	if err != nil {
		log.Fatalf("resolve index file id: %v", err)
	}
	tree, err := eng.IndexFiles.GetOrCreateIndex("accounts", indexFileID)
	if err != nil {
		log.Fatalf("open index: %v", err)
	}

	insertAccount := func(t *txn.Transaction, id string, balance int) types.RowPointer {
		if err := eng.LockManager.LockTable(t, lockmgr.IntentionExclusive, heapFileID); err != nil {
			log.Fatalf("lock table: %v", err)
		}

		rowData := fmt.Appendf(nil, "%s|%d", id, balance)
		rp, err := eng.HeapFiles.InsertRow(heapFileID, rowData, 0)
		if err != nil {
			log.Fatalf("insert row: %v", err)
		}
		inserted, err := tree.Insert([]byte(id), encodeRowPointer(*rp))
		if err != nil {
			log.Fatalf("insert index entry: %v", err)
		}
		if !inserted {
			log.Fatalf("insert index entry: duplicate key %q", id)
		}
		t.RecordInsert("accounts", *rp, []byte(id))
		return *rp
	}

	fmt.Println("--- txn 1: seed two accounts, commit ---")
	t1 := eng.TxnManager.Begin()
	insertAccount(t1, "alice", 100)
	insertAccount(t1, "bob", 50)
	if err := eng.TxnManager.Commit(t1.ID); err != nil {
		log.Fatalf("commit txn1: %v", err)
	}
	fmt.Println("committed, accounts table now has alice=100 bob=50")

	fmt.Println("\n--- txn 2: seed a third account, then abort ---")
	t2 := eng.TxnManager.Begin()
	insertAccount(t2, "carol", 75)
	if err := eng.TxnManager.Abort(t2.ID); err != nil {
		log.Fatalf("abort txn2: %v", err)
	}
	fmt.Println("aborted — carol's insert and index entry were rolled back")

	fmt.Println("\n--- txn 3 & 4: deadlock on accounts/alice and accounts/bob ---")
	runDeadlockDemo(eng, heapFileID)
}

// runDeadlockDemo has two transactions lock the same two rows in opposite
// order, forcing the background detector to pick a victim.
func runDeadlockDemo(eng *engine.Engine, oid uint32) {
	rowA := types.RowPointer{FileID: oid, PageNumber: 0, SlotIndex: 0}
	rowB := types.RowPointer{FileID: oid, PageNumber: 0, SlotIndex: 1}

	var wg sync.WaitGroup
	wg.Add(2)

	run := func(label string, first, second types.RowPointer) {
		defer wg.Done()
		t := eng.TxnManager.Begin()

		if err := eng.LockManager.LockTable(t, lockmgr.IntentionExclusive, oid); err != nil {
			fmt.Printf("%s: table lock failed: %v\n", label, err)
			_ = eng.TxnManager.Abort(t.ID)
			return
		}
		if err := eng.LockManager.LockRow(t, lockmgr.Exclusive, oid, first); err != nil {
			fmt.Printf("%s: aborted acquiring first row lock: %v\n", label, err)
			_ = eng.TxnManager.Abort(t.ID)
			return
		}
		if err := eng.LockManager.LockRow(t, lockmgr.Exclusive, oid, second); err != nil {
			fmt.Printf("%s: aborted acquiring second row lock: %v\n", label, err)
			_ = eng.TxnManager.Abort(t.ID)
			return
		}

		fmt.Printf("%s: acquired both row locks, committing\n", label)
		_ = eng.TxnManager.Commit(t.ID)
	}

	go run("txn3", rowA, rowB)
	go run("txn4", rowB, rowA)
	wg.Wait()
}

func encodeRowPointer(ptr types.RowPointer) []byte {
	buf := make([]byte, 10)
	binary.LittleEndian.PutUint32(buf[0:], ptr.FileID)
	binary.LittleEndian.PutUint32(buf[4:], ptr.PageNumber)
	binary.LittleEndian.PutUint16(buf[8:], ptr.SlotIndex)
	return buf
}
