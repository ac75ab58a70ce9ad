package buffer

import (
	"sync"
	"sync/atomic"

	"coredb/pkg/storage"
)

// FrameID indexes into a BufferPoolInstance's fixed-size frame array.
type FrameID int

// Frame is one slot of in-memory page storage owned by a buffer pool
// instance. A frame's pageID is storage.InvalidPageID when the frame is
// free. Concurrency note: latch guards the page's bytes for readers and
// writers of the page's contents; pinCount is managed separately by the
// buffer pool instance under its own mutex.
type Frame struct {
	pageID   storage.PageID
	pinCount atomic.Int64
	dirty    bool
	latch    sync.RWMutex
	data     []byte
}

// PageID returns the id of the page currently held in this frame.
func (f *Frame) PageID() storage.PageID {
	return f.pageID
}

// Data returns the frame's backing byte slice. Callers must hold RLock or
// Lock while reading or writing it.
func (f *Frame) Data() []byte {
	return f.data
}

// IsDirty reports whether the frame's contents differ from disk.
func (f *Frame) IsDirty() bool {
	return f.dirty
}

// SetDirty marks the frame dirty or clean.
func (f *Frame) SetDirty(dirty bool) {
	f.dirty = dirty
}

// PinCount returns the current pin count.
func (f *Frame) PinCount() int64 {
	return f.pinCount.Load()
}

// Pin increments the pin count.
func (f *Frame) Pin() {
	f.pinCount.Add(1)
}

// Unpin decrements the pin count and returns the new value.
func (f *Frame) Unpin() int64 {
	return f.pinCount.Add(-1)
}

// RLock/RUnlock/Lock/Unlock guard the frame's page contents.
func (f *Frame) RLock()   { f.latch.RLock() }
func (f *Frame) RUnlock() { f.latch.RUnlock() }
func (f *Frame) Lock()    { f.latch.Lock() }
func (f *Frame) Unlock()  { f.latch.Unlock() }
