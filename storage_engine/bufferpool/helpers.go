package bufferpool

import (
	"ridgedb/storage_engine/page"
	"fmt"
)

/*
This file holds helper functions for the bufferpool
*/

// GetStats returns current buffer pool statistics
func (bp *BufferPool) GetStats() BufferPoolStats {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	stats := BufferPoolStats{
		TotalPages: len(bp.pageTable),
		Capacity:   bp.capacity,
	}

	for _, pg := range bp.frames {
		if pg == nil {
			continue
		}
		pg.RLock()
		if pg.PinCount > 0 {
			stats.PinnedPages++
		}
		if pg.IsDirty {
			stats.DirtyPages++
		}
		pg.RUnlock()
	}

	return stats
}

// Reset flushes and clears every page from the pool. Intended for tests.
func (bp *BufferPool) Reset() error {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	for _, pg := range bp.frames {
		if pg == nil {
			continue
		}
		pg.Lock()
		if pg.IsDirty && bp.diskManager != nil {
			if err := bp.diskManager.WritePage(pg); err != nil {
				pg.Unlock()
				return fmt.Errorf("failed to flush page during reset: %w", err)
			}
		}
		pg.Unlock()
	}

	bp.frames = make([]*page.Page, bp.capacity)
	bp.pageTable = make(map[int64]int, bp.capacity)
	bp.freeList = makeRange(bp.capacity)
	bp.replacer = newLRUKReplacer(bp.replacer.k)

	return nil
}

// Size returns the number of resident pages in the buffer pool.
func (bp *BufferPool) Size() int {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	return len(bp.pageTable)
}

// Capacity returns the maximum number of frames in the buffer pool.
func (bp *BufferPool) Capacity() int {
	return bp.capacity
}

// GetPage returns a resident page without loading it from disk or pinning
// it. Returns nil if the page is not currently cached.
func (bp *BufferPool) GetPage(pageID int64) *page.Page {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	if frame, exists := bp.pageTable[pageID]; exists {
		return bp.frames[frame]
	}
	return nil
}

// MarkDirty flags a resident page as modified without touching its pin count.
func (bp *BufferPool) MarkDirty(pageID int64) error {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	frame, exists := bp.pageTable[pageID]
	if !exists {
		return fmt.Errorf("page %d not in buffer pool", pageID)
	}
	pg := bp.frames[frame]
	pg.Lock()
	pg.IsDirty = true
	pg.Unlock()
	return nil
}
