package buffer

import (
	"sync"

	"coredb/pkg/buffer/lrulist"
)

// LRUReplacer tracks unpinned frames and chooses a victim to evict when the
// buffer pool needs a free frame. A frame enters the replacer's tracking
// list the moment it is unpinned; a second Unpin call for the same frame
// before it is re-pinned does not move it (one-shot-unpin semantics) —
// matching the original lru_replacer's list_unpinned_ behavior, which only
// inserts a frame that isn't already tracked.
type LRUReplacer struct {
	mu    sync.Mutex
	list  *lrulist.List
	links map[FrameID]*lrulist.Link
}

// NewLRUReplacer returns an empty replacer.
func NewLRUReplacer() *LRUReplacer {
	return &LRUReplacer{
		list:  lrulist.New(),
		links: make(map[FrameID]*lrulist.Link),
	}
}

// Unpin marks frameID as evictable, appending it to the back of the
// tracking list unless it's already tracked.
func (r *LRUReplacer) Unpin(frameID FrameID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.links[frameID]; ok {
		return
	}
	r.links[frameID] = r.list.PushTail(int(frameID))
}

// Pin removes frameID from the tracking list, making it ineligible for
// eviction. It is a no-op if frameID isn't tracked.
func (r *LRUReplacer) Pin(frameID FrameID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	link, ok := r.links[frameID]
	if !ok {
		return
	}
	link.PopSelf()
	delete(r.links, frameID)
}

// Victim removes and returns the least-recently-unpinned frame id. The
// second return value is false if no frame is evictable.
func (r *LRUReplacer) Victim() (FrameID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	head := r.list.PeekHead()
	if head == nil {
		return 0, false
	}
	frameID := FrameID(head.FrameID())
	head.PopSelf()
	delete(r.links, frameID)
	return frameID, true
}

// Size returns the number of frames currently evictable.
func (r *LRUReplacer) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.links)
}
