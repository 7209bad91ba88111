package bufferpool

import "testing"

func TestLRUKReplacerEvictsColdestFrameFirst(t *testing.T) {
	r := newLRUKReplacer(2)

	// Frame 1 is accessed three times, frame 2 twice, frame 3 once — all
	// below k=2's threshold only for frame 3.
	r.RecordAccess(1)
	r.RecordAccess(2)
	r.RecordAccess(1)
	r.RecordAccess(3)
	r.RecordAccess(2)
	r.RecordAccess(1)

	r.SetEvictable(1, true)
	r.SetEvictable(2, true)
	r.SetEvictable(3, true)

	// Frame 3 has fewer than k=2 accesses, so it has infinite backward
	// k-distance and must be evicted before anything with two accesses.
	victim, ok := r.Evict()
	if !ok || victim != 3 {
		t.Fatalf("expected frame 3 to be evicted first, got %d (ok=%v)", victim, ok)
	}
}

func TestLRUKReplacerPrefersLargerBackwardKDistance(t *testing.T) {
	r := newLRUKReplacer(2)

	// Frame 1's two accesses are older than frame 2's, so frame 1 has the
	// larger backward k-distance from "now" and should be evicted first.
	r.RecordAccess(1)
	r.RecordAccess(1)
	r.RecordAccess(2)
	r.RecordAccess(2)

	r.SetEvictable(1, true)
	r.SetEvictable(2, true)

	victim, ok := r.Evict()
	if !ok || victim != 1 {
		t.Fatalf("expected frame 1 (older k-th access) to be evicted first, got %d (ok=%v)", victim, ok)
	}
}

func TestLRUKReplacerSkipsNonEvictableFrames(t *testing.T) {
	r := newLRUKReplacer(2)

	r.RecordAccess(1)
	r.SetEvictable(1, true)
	r.SetEvictable(1, false) // pinned again

	if _, ok := r.Evict(); ok {
		t.Fatalf("expected no evictable frame, but Evict succeeded")
	}
}

func TestLRUKReplacerSizeTracksEvictableCount(t *testing.T) {
	r := newLRUKReplacer(2)

	r.RecordAccess(1)
	r.RecordAccess(2)
	r.SetEvictable(1, true)
	r.SetEvictable(2, true)

	if got := r.Size(); got != 2 {
		t.Fatalf("Size() = %d, want 2", got)
	}

	r.SetEvictable(1, false)
	if got := r.Size(); got != 1 {
		t.Fatalf("Size() after pin = %d, want 1", got)
	}
}

func TestLRUKReplacerRemoveDropsHistory(t *testing.T) {
	r := newLRUKReplacer(2)

	r.RecordAccess(1)
	r.SetEvictable(1, true)
	r.Remove(1)

	if got := r.Size(); got != 0 {
		t.Fatalf("Size() after Remove = %d, want 0", got)
	}
	if _, ok := r.Evict(); ok {
		t.Fatalf("expected nothing left to evict after Remove")
	}
}
