package bufferpool

import "testing"

func TestBasicPageGuardDropIsIdempotent(t *testing.T) {
	bp, _, fileID := newTestPool(t, 4, 2)

	p, err := bp.NewPage(fileID, 0)
	if err != nil {
		t.Fatalf("NewPage: %v", err)
	}
	guard := newBasicPageGuard(bp, p)
	pageID := guard.PageID()

	guard.Drop()
	guard.Drop() // must be a safe no-op, not a double-unpin

	pg := bp.frames[bp.pageTable[pageID]]
	if pg.PinCount != 0 {
		t.Fatalf("PinCount = %d after two Drops, want 0", pg.PinCount)
	}
}

func TestReadPageGuardDropReleasesLatchOnce(t *testing.T) {
	bp, _, fileID := newTestPool(t, 4, 2)

	writer, err := bp.NewPageGuarded(fileID, 0)
	if err != nil {
		t.Fatalf("NewPageGuarded: %v", err)
	}
	pageID := writer.PageID()
	writer.Drop()

	guard, err := bp.FetchPageRead(pageID)
	if err != nil {
		t.Fatalf("FetchPageRead: %v", err)
	}
	guard.Drop()
	guard.Drop() // a second Drop must not double-RUnlock the page's latch

	// If the latch were double-released, taking it again would succeed
	// trivially either way — the real hazard is a panic from RWMutex
	// detecting a bad unlock, which a double Drop must never trigger.
	again, err := bp.FetchPageRead(pageID)
	if err != nil {
		t.Fatalf("FetchPageRead after double Drop: %v", err)
	}
	again.Drop()
}

func TestWritePageGuardDropMarksDirtyOnce(t *testing.T) {
	bp, dm, fileID := newTestPool(t, 4, 2)

	guard, err := bp.NewPageGuarded(fileID, 0)
	if err != nil {
		t.Fatalf("NewPageGuarded: %v", err)
	}
	pageID := guard.PageID()
	copy(guard.Page().Data, []byte("written through guard"))
	guard.Drop()
	guard.Drop()

	if err := bp.FlushPage(pageID); err != nil {
		t.Fatalf("FlushPage: %v", err)
	}

	reloaded, err := dm.ReadPage(pageID)
	if err != nil {
		t.Fatalf("ReadPage: %v", err)
	}
	want := "written through guard"
	if got := string(reloaded.Data[:len(want)]); got != want {
		t.Fatalf("reloaded data = %q, want %q", got, want)
	}
}
