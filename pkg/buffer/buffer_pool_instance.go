// Package buffer implements the buffer pool: a fixed-capacity cache of
// disk pages with LRU eviction, composed into a sharded parallel variant.
package buffer

import (
	"errors"
	"sync"

	"coredb/pkg/storage"
)

// ErrNoFreeFrames is returned when a buffer pool instance has no free frame
// and no evictable (unpinned) frame to reclaim.
var ErrNoFreeFrames = errors.New("buffer: no free frames available")

// ErrPageNotFound is returned by UnpinPage/FlushPage when the given page id
// isn't currently resident. DeletePage of a non-resident page succeeds.
var ErrPageNotFound = errors.New("buffer: page not found in buffer pool")

// ErrPagePinned is returned by DeletePage when the page is still pinned.
var ErrPagePinned = errors.New("buffer: page is pinned")

// DiskManager is the subset of diskmanager.DiskManager a buffer pool
// instance needs.
type DiskManager interface {
	AllocatePage() storage.PageID
	DeallocatePage(storage.PageID)
	ReadPage(storage.PageID, []byte) error
	WritePage(storage.PageID, []byte) error
}

// BufferPoolInstance is a single shard of the buffer pool: poolSize frames,
// an LRU replacer for eviction, and a disk manager for fault-in/flush.
//
// When numInstances > 1 this instance only ever owns pages whose id is
// congruent to instanceIndex modulo numInstances; NewPage enforces this by
// construction and FetchPage/UnpinPage/FlushPage/DeletePage assert it on
// entry, mirroring the original buffer_pool_manager_instance's
// ValidatePageId.
type BufferPoolInstance struct {
	mu             sync.Mutex
	frames         []*Frame
	pageTable      map[storage.PageID]FrameID
	freeList       []FrameID
	replacer       *LRUReplacer
	disk           DiskManager
	numInstances   int64
	instanceIndex  int64
	nextPageIDSeed storage.PageID
}

// NewBufferPoolInstance constructs a buffer pool instance with poolSize
// frames of newBlock() bytes each, shard instanceIndex of numInstances
// total instances (pass numInstances=1, instanceIndex=0 for a standalone
// instance).
func NewBufferPoolInstance(poolSize int, numInstances, instanceIndex int64, disk DiskManager, newBlock func() []byte) *BufferPoolInstance {
	if instanceIndex < 0 || (numInstances > 0 && instanceIndex >= numInstances) {
		panic("buffer: instanceIndex out of range for numInstances")
	}
	bpi := &BufferPoolInstance{
		frames:         make([]*Frame, poolSize),
		pageTable:      make(map[storage.PageID]FrameID),
		freeList:       make([]FrameID, poolSize),
		replacer:       NewLRUReplacer(),
		disk:           disk,
		numInstances:   numInstances,
		instanceIndex:  instanceIndex,
		nextPageIDSeed: storage.PageID(instanceIndex),
	}
	for i := 0; i < poolSize; i++ {
		bpi.frames[i] = &Frame{pageID: storage.InvalidPageID, data: newBlock()}
		bpi.freeList[i] = FrameID(i)
	}
	return bpi
}

// validatePageID panics if pageID doesn't belong to this shard. It mirrors
// the original implementation's unchecked invariant: a caller that routes
// a page id to the wrong instance has a programmer bug, not a recoverable
// error.
func (b *BufferPoolInstance) validatePageID(pageID storage.PageID) {
	if b.numInstances > 1 && int64(pageID)%b.numInstances != b.instanceIndex {
		panic("buffer: page id does not belong to this buffer pool instance")
	}
}

// findFreeFrame returns a frame ready to hold a new page: the free list is
// tried first, then the LRU replacer is asked for a victim, flushing it to
// disk first if dirty. Caller must hold b.mu.
func (b *BufferPoolInstance) findFreeFrame() (FrameID, error) {
	if n := len(b.freeList); n > 0 {
		id := b.freeList[n-1]
		b.freeList = b.freeList[:n-1]
		return id, nil
	}
	victim, ok := b.replacer.Victim()
	if !ok {
		return 0, ErrNoFreeFrames
	}
	frame := b.frames[victim]
	if frame.IsDirty() {
		if err := b.disk.WritePage(frame.pageID, frame.data); err != nil {
			return 0, err
		}
		frame.SetDirty(false)
	}
	delete(b.pageTable, frame.pageID)
	return victim, nil
}

// NewPage allocates a fresh page, pins it, and returns its frame.
func (b *BufferPoolInstance) NewPage() (storage.PageID, *Frame, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	frameID, err := b.findFreeFrame()
	if err != nil {
		return storage.InvalidPageID, nil, err
	}
	pageID := b.nextPageIDSeed
	step := b.numInstances
	if step <= 0 {
		step = 1
	}
	b.nextPageIDSeed += storage.PageID(step)
	b.validatePageID(pageID)
	frame := b.frames[frameID]
	frame.pageID = pageID
	frame.dirty = true
	frame.pinCount.Store(1)
	for i := range frame.data {
		frame.data[i] = 0
	}
	b.pageTable[pageID] = frameID
	b.replacer.Pin(frameID)
	return pageID, frame, nil
}

// FetchPage returns the frame holding pageID, faulting it in from disk if
// it isn't already resident. The returned frame is pinned.
func (b *BufferPoolInstance) FetchPage(pageID storage.PageID) (*Frame, error) {
	b.validatePageID(pageID)
	b.mu.Lock()
	defer b.mu.Unlock()
	if frameID, ok := b.pageTable[pageID]; ok {
		frame := b.frames[frameID]
		if frame.pinCount.Load() == 0 {
			b.replacer.Pin(frameID)
		}
		frame.Pin()
		return frame, nil
	}
	frameID, err := b.findFreeFrame()
	if err != nil {
		return nil, err
	}
	frame := b.frames[frameID]
	if err := b.disk.ReadPage(pageID, frame.data); err != nil {
		b.freeList = append(b.freeList, frameID)
		return nil, err
	}
	frame.pageID = pageID
	frame.dirty = false
	frame.pinCount.Store(1)
	b.pageTable[pageID] = frameID
	return frame, nil
}

// UnpinPage decrements pageID's pin count. If isDirty, the frame is marked
// dirty regardless of its previous state. Once the pin count reaches zero
// the frame becomes eligible for eviction.
func (b *BufferPoolInstance) UnpinPage(pageID storage.PageID, isDirty bool) error {
	b.validatePageID(pageID)
	b.mu.Lock()
	defer b.mu.Unlock()
	frameID, ok := b.pageTable[pageID]
	if !ok {
		return ErrPageNotFound
	}
	frame := b.frames[frameID]
	if isDirty {
		frame.dirty = true
	}
	if frame.pinCount.Load() <= 0 {
		return nil
	}
	if frame.Unpin() == 0 {
		b.replacer.Unpin(frameID)
	}
	return nil
}

// FlushPage writes pageID's frame to disk if resident, regardless of its
// dirty bit, and clears the dirty bit. Returns true on success.
func (b *BufferPoolInstance) FlushPage(pageID storage.PageID) (bool, error) {
	b.validatePageID(pageID)
	b.mu.Lock()
	defer b.mu.Unlock()
	frameID, ok := b.pageTable[pageID]
	if !ok {
		return false, ErrPageNotFound
	}
	frame := b.frames[frameID]
	if err := b.disk.WritePage(pageID, frame.data); err != nil {
		return false, err
	}
	frame.SetDirty(false)
	return true, nil
}

// FlushAllPages flushes every resident page.
func (b *BufferPoolInstance) FlushAllPages() error {
	b.mu.Lock()
	ids := make([]storage.PageID, 0, len(b.pageTable))
	for id := range b.pageTable {
		ids = append(ids, id)
	}
	b.mu.Unlock()
	for _, id := range ids {
		if _, err := b.FlushPage(id); err != nil && err != ErrPageNotFound {
			return err
		}
	}
	return nil
}

// DeletePage removes pageID from the buffer pool and deallocates it on
// disk. Returns ErrPagePinned if the page is still in use.
func (b *BufferPoolInstance) DeletePage(pageID storage.PageID) error {
	b.validatePageID(pageID)
	b.mu.Lock()
	defer b.mu.Unlock()
	frameID, ok := b.pageTable[pageID]
	if !ok {
		return nil
	}
	frame := b.frames[frameID]
	if frame.pinCount.Load() > 0 {
		return ErrPagePinned
	}
	b.replacer.Pin(frameID)
	delete(b.pageTable, pageID)
	frame.pageID = storage.InvalidPageID
	frame.dirty = false
	b.disk.DeallocatePage(pageID)
	b.freeList = append(b.freeList, frameID)
	return nil
}
