package bufferpool

import (
	diskmanager "ridgedb/storage_engine/disk_manager"
	"ridgedb/storage_engine/page"
	"ridgedb/types"
	"encoding/binary"
	"fmt"
	"log"
)

/*
This file is the main file of the bufferpool.

The pool holds a fixed number of frames. A page miss either takes a frame
off the free list or asks the LRU-K replacer to evict one; a page hit pins
the existing frame and records the access. Flushing to disk and loading from
disk both go through the DiskManager, which owns the global page-ID space.
*/

// NewBufferPool creates a buffer pool with `capacity` frames, evicting via
// LRU-K with history depth k.
func NewBufferPool(capacity int, k int, diskManager *diskmanager.DiskManager) *BufferPool {
	if k < 1 {
		k = DefaultLRUK
	}
	return &BufferPool{
		frames:      make([]*page.Page, capacity),
		pageTable:   make(map[int64]int, capacity),
		freeList:    makeRange(capacity),
		replacer:    newLRUKReplacer(k),
		capacity:    capacity,
		diskManager: diskManager,
	}
}

func makeRange(n int) []int {
	r := make([]int, n)
	for i := range r {
		r[i] = i
	}
	return r
}

// getFreeFrame returns a frame index ready to receive a new page, evicting
// an unpinned frame if the pool is full. Caller must hold bp.mu.
func (bp *BufferPool) getFreeFrame() (int, error) {
	if n := len(bp.freeList); n > 0 {
		frame := bp.freeList[n-1]
		bp.freeList = bp.freeList[:n-1]
		return frame, nil
	}

	frame, ok := bp.replacer.Evict()
	if !ok {
		return 0, fmt.Errorf("buffer pool exhausted: all %d frames pinned", bp.capacity)
	}

	victim := bp.frames[frame]
	if victim != nil {
		victim.Lock()
		if victim.IsDirty && bp.diskManager != nil {
			if err := bp.diskManager.WritePage(victim); err != nil {
				victim.Unlock()
				return 0, fmt.Errorf("failed to flush evicted page %d: %w", victim.ID, err)
			}
			victim.IsDirty = false
		}
		victim.Unlock()
		delete(bp.pageTable, victim.ID)
		log.Printf("[bufferpool] EVICT pageID=%d frame=%d", victim.ID, frame)
	}
	bp.frames[frame] = nil
	return frame, nil
}

// FetchPage retrieves a page from the buffer pool, loading from disk if
// necessary. Returns the page with pin count incremented; callers must
// UnpinPage it (directly, or via a page guard) exactly once per Fetch/New.
func (bp *BufferPool) FetchPage(pageID int64) (*page.Page, error) {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	if frame, exists := bp.pageTable[pageID]; exists {
		pg := bp.frames[frame]
		pg.PinCount++
		bp.replacer.RecordAccess(frame)
		bp.replacer.SetEvictable(frame, false)
		log.Printf("[bufferpool] HIT pageID=%d pinCount=%d", pageID, pg.PinCount)
		return pg, nil
	}

	log.Printf("[bufferpool] MISS pageID=%d — loading from disk", pageID)
	if bp.diskManager == nil {
		return nil, fmt.Errorf("disk manager not set")
	}

	pg, err := bp.diskManager.ReadPage(pageID)
	if err != nil {
		return nil, fmt.Errorf("failed to read page %d from disk: %w", pageID, err)
	}
	if pg.PageType == types.PageTypeHeapData && len(pg.Data) >= 8 {
		pg.LSN = binary.LittleEndian.Uint64(pg.Data[page.PageLSNOffset:])
	}

	frame, err := bp.getFreeFrame()
	if err != nil {
		return nil, err
	}

	pg.PinCount = 1
	bp.frames[frame] = pg
	bp.pageTable[pageID] = frame
	bp.replacer.RecordAccess(frame)
	bp.replacer.SetEvictable(frame, false)

	return pg, nil
}

// NewPage allocates a fresh page for fileID, pins it, and places it in the
// pool. The caller is responsible for initializing its contents and marking
// it dirty (it already is, by default, since it has never been flushed).
func (bp *BufferPool) NewPage(fileID uint32, pageType types.PageType) (*page.Page, error) {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	if bp.diskManager == nil {
		return nil, fmt.Errorf("disk manager not set")
	}

	pageID, err := bp.diskManager.AllocatePage(fileID, pageType)
	if err != nil {
		return nil, fmt.Errorf("failed to allocate page: %w", err)
	}

	frame, err := bp.getFreeFrame()
	if err != nil {
		return nil, err
	}

	pg := diskmanager.NewPage(pageID, fileID, pageType)
	pg.IsDirty = true
	pg.PinCount = 1

	bp.frames[frame] = pg
	bp.pageTable[pageID] = frame
	bp.replacer.RecordAccess(frame)
	bp.replacer.SetEvictable(frame, false)

	return pg, nil
}

// UnpinPage decrements the pin count for a page. Once the pin count reaches
// zero the frame becomes eligible for eviction.
func (bp *BufferPool) UnpinPage(pageID int64, isDirty bool) error {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	frame, exists := bp.pageTable[pageID]
	if !exists {
		return fmt.Errorf("page %d not in buffer pool", pageID)
	}
	pg := bp.frames[frame]

	if pg.PinCount > 0 {
		pg.PinCount--
	}
	if isDirty {
		pg.IsDirty = true
	}
	pinned := pg.PinCount > 0

	if !pinned {
		bp.replacer.SetEvictable(frame, true)
	}
	return nil
}

// FlushPage writes a specific page to disk if dirty.
func (bp *BufferPool) FlushPage(pageID int64) error {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	frame, exists := bp.pageTable[pageID]
	if !exists {
		return fmt.Errorf("page %d not in buffer pool", pageID)
	}
	pg := bp.frames[frame]

	pg.Lock()
	defer pg.Unlock()

	if !pg.IsDirty {
		return nil
	}
	if err := bp.diskManager.WritePage(pg); err != nil {
		return fmt.Errorf("failed to flush page %d: %w", pageID, err)
	}
	pg.IsDirty = false
	return nil
}

// FlushAllPages writes every dirty page in the pool to disk.
func (bp *BufferPool) FlushAllPages() error {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	if bp.diskManager == nil {
		return fmt.Errorf("disk manager not set")
	}

	for _, pg := range bp.frames {
		if pg == nil {
			continue
		}
		pg.Lock()
		if pg.IsDirty {
			if err := bp.diskManager.WritePage(pg); err != nil {
				pg.Unlock()
				return fmt.Errorf("failed to flush page %d: %w", pg.ID, err)
			}
			pg.IsDirty = false
		}
		pg.Unlock()
	}
	return nil
}

// DeletePage removes a page from the pool outright. It refuses to delete a
// still-pinned page — the caller must unpin every outstanding guard first.
func (bp *BufferPool) DeletePage(pageID int64) error {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	frame, exists := bp.pageTable[pageID]
	if !exists {
		return nil
	}
	pg := bp.frames[frame]

	pinned := pg.PinCount > 0
	if pinned {
		return fmt.Errorf("cannot delete pinned page %d", pageID)
	}

	delete(bp.pageTable, pageID)
	bp.frames[frame] = nil
	bp.replacer.Remove(frame)
	bp.freeList = append(bp.freeList, frame)
	return nil
}
