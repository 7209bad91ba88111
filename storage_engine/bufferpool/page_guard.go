package bufferpool

import (
	"ridgedb/storage_engine/page"
	"ridgedb/types"
)

/*
Page guards tie a pinned page's lifetime to RAII-in-spirit scoping. C++'s
move-only guard cannot be expressed directly in Go, so Drop (called once,
usually via defer) nils out the guard's backing pointer — a second Drop on
an already-dropped guard is then a safe no-op instead of a double-unpin.

BasicPageGuard only owns the pin; it does not touch the page's content
latch, matching BasicPageGuard's role as the common innards of the other
two. ReadPageGuard and WritePageGuard each wrap a BasicPageGuard and
additionally hold the page's RWMutex for the guard's lifetime.
*/

// BasicPageGuard owns a single pin on a page without holding any content
// latch. Callers that only need pin lifetime management (not safe
// concurrent reads/writes of the page bytes) use this directly.
type BasicPageGuard struct {
	bp      *BufferPool
	pg      *page.Page
	isDirty bool
}

func newBasicPageGuard(bp *BufferPool, pg *page.Page) BasicPageGuard {
	return BasicPageGuard{bp: bp, pg: pg}
}

// Page returns the underlying page, or nil if the guard has been dropped.
func (g *BasicPageGuard) Page() *page.Page { return g.pg }

// PageID returns the guarded page's ID, or page.InvalidPageID if dropped.
func (g *BasicPageGuard) PageID() int64 {
	if g.pg == nil {
		return page.InvalidPageID
	}
	return g.pg.ID
}

// MarkDirty flags the page as modified; the flag is applied on Drop.
func (g *BasicPageGuard) MarkDirty() { g.isDirty = true }

// Drop unpins the page, if the guard has not already been dropped.
func (g *BasicPageGuard) Drop() {
	if g.bp != nil && g.pg != nil {
		_ = g.bp.UnpinPage(g.pg.ID, g.isDirty)
		g.bp = nil
		g.pg = nil
		g.isDirty = false
	}
}

// ReadPageGuard holds a pin plus the page's read latch.
type ReadPageGuard struct {
	guard BasicPageGuard
}

func newReadPageGuard(bp *BufferPool, pg *page.Page) ReadPageGuard {
	pg.RLock()
	return ReadPageGuard{guard: newBasicPageGuard(bp, pg)}
}

func (g *ReadPageGuard) Page() *page.Page { return g.guard.Page() }
func (g *ReadPageGuard) PageID() int64    { return g.guard.PageID() }

// Drop releases the read latch and then unpins the page.
func (g *ReadPageGuard) Drop() {
	if g.guard.pg != nil {
		pg := g.guard.pg
		pg.RUnlock()
		g.guard.Drop()
	}
}

// WritePageGuard holds a pin plus the page's write latch.
type WritePageGuard struct {
	guard BasicPageGuard
}

func newWritePageGuard(bp *BufferPool, pg *page.Page) WritePageGuard {
	pg.Lock()
	return WritePageGuard{guard: newBasicPageGuard(bp, pg)}
}

func (g *WritePageGuard) Page() *page.Page { return g.guard.Page() }
func (g *WritePageGuard) PageID() int64    { return g.guard.PageID() }
func (g *WritePageGuard) MarkDirty()       { g.guard.MarkDirty() }

// Drop releases the write latch and then unpins the page.
func (g *WritePageGuard) Drop() {
	if g.guard.pg != nil {
		pg := g.guard.pg
		g.guard.isDirty = true
		pg.Unlock()
		g.guard.Drop()
	}
}

// FetchPageBasic fetches and pins a page without taking a content latch.
func (bp *BufferPool) FetchPageBasic(pageID int64) (BasicPageGuard, error) {
	pg, err := bp.FetchPage(pageID)
	if err != nil {
		return BasicPageGuard{}, err
	}
	return newBasicPageGuard(bp, pg), nil
}

// FetchPageRead fetches, pins, and read-latches a page.
func (bp *BufferPool) FetchPageRead(pageID int64) (ReadPageGuard, error) {
	pg, err := bp.FetchPage(pageID)
	if err != nil {
		return ReadPageGuard{}, err
	}
	return newReadPageGuard(bp, pg), nil
}

// FetchPageWrite fetches, pins, and write-latches a page.
func (bp *BufferPool) FetchPageWrite(pageID int64) (WritePageGuard, error) {
	pg, err := bp.FetchPage(pageID)
	if err != nil {
		return WritePageGuard{}, err
	}
	return newWritePageGuard(bp, pg), nil
}

// NewPageGuarded allocates a fresh page and returns it already write-latched.
func (bp *BufferPool) NewPageGuarded(fileID uint32, pageType types.PageType) (WritePageGuard, error) {
	pg, err := bp.NewPage(fileID, pageType)
	if err != nil {
		return WritePageGuard{}, err
	}
	return newWritePageGuard(bp, pg), nil
}
