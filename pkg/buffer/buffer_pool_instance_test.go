package buffer

import (
	"sync"
	"testing"

	"coredb/pkg/storage"
)

const testPageSize = 64

func testBlock() []byte {
	return make([]byte, testPageSize)
}

// memDisk is an in-memory stand-in for diskmanager.DiskManager, sized for
// tests that don't need real file-backed persistence.
type memDisk struct {
	mu    sync.Mutex
	pages map[storage.PageID][]byte
	next  int64
}

func newMemDisk() *memDisk {
	return &memDisk{pages: make(map[storage.PageID][]byte)}
}

func (d *memDisk) AllocatePage() storage.PageID {
	d.mu.Lock()
	defer d.mu.Unlock()
	id := storage.PageID(d.next)
	d.next++
	return id
}

func (d *memDisk) DeallocatePage(id storage.PageID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.pages, id)
}

func (d *memDisk) ReadPage(id storage.PageID, dst []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if data, ok := d.pages[id]; ok {
		copy(dst, data)
		return nil
	}
	for i := range dst {
		dst[i] = 0
	}
	return nil
}

func (d *memDisk) WritePage(id storage.PageID, src []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	buf := make([]byte, len(src))
	copy(buf, src)
	d.pages[id] = buf
	return nil
}

func setupBPI(poolSize int) (*BufferPoolInstance, *memDisk) {
	disk := newMemDisk()
	return NewBufferPoolInstance(poolSize, 1, 0, disk, testBlock), disk
}

func TestBufferPoolInstance(t *testing.T) {
	t.Run("NewPage", testBPINewPage)
	t.Run("FetchUnknownFaultsZeroed", testBPIFetchZeroed)
	t.Run("OutOfFrames", testBPIOutOfFrames)
	t.Run("EvictsUnpinnedLRU", testBPIEvictsUnpinnedLRU)
	t.Run("FlushPersists", testBPIFlushPersists)
	t.Run("DeletePinnedFails", testBPIDeletePinnedFails)
	t.Run("ShardingAssertion", testBPIShardingAssertion)
}

func testBPINewPage(t *testing.T) {
	bpi, _ := setupBPI(4)
	id, frame, err := bpi.NewPage()
	if err != nil {
		t.Fatalf("NewPage failed: %s", err)
	}
	if id != 0 {
		t.Errorf("expected first page id 0, got %d", id)
	}
	if frame.PinCount() != 1 {
		t.Errorf("expected new page to be pinned once, got %d", frame.PinCount())
	}
	if !frame.IsDirty() {
		t.Error("expected new page to be marked dirty")
	}
}

func testBPIFetchZeroed(t *testing.T) {
	bpi, disk := setupBPI(4)
	id := disk.AllocatePage()
	frame, err := bpi.FetchPage(id)
	if err != nil {
		t.Fatalf("FetchPage failed: %s", err)
	}
	for _, b := range frame.Data() {
		if b != 0 {
			t.Fatal("expected zeroed page for a page never written")
		}
	}
}

func testBPIOutOfFrames(t *testing.T) {
	bpi, _ := setupBPI(2)
	if _, _, err := bpi.NewPage(); err != nil {
		t.Fatal(err)
	}
	if _, _, err := bpi.NewPage(); err != nil {
		t.Fatal(err)
	}
	if _, _, err := bpi.NewPage(); err != ErrNoFreeFrames {
		t.Errorf("expected ErrNoFreeFrames, got %v", err)
	}
}

func testBPIEvictsUnpinnedLRU(t *testing.T) {
	bpi, _ := setupBPI(2)
	id0, _, _ := bpi.NewPage()
	_, frame1, _ := bpi.NewPage()
	if err := bpi.UnpinPage(id0, false); err != nil {
		t.Fatal(err)
	}
	// The second page stays pinned; id0 is the only evictable frame, so
	// the next NewPage must succeed by reclaiming it.
	_, frame2, err := bpi.NewPage()
	if err != nil {
		t.Fatalf("expected eviction to free a frame, got %s", err)
	}
	if frame2 == frame1 {
		t.Error("new page reused a still-pinned frame")
	}
	if _, err := bpi.FetchPage(id0); err == nil {
		t.Error("expected id0's frame to have been evicted")
	}
}

func testBPIFlushPersists(t *testing.T) {
	bpi, disk := setupBPI(2)
	id, frame, _ := bpi.NewPage()
	frame.Data()[0] = 0x42
	ok, err := bpi.FlushPage(id)
	if err != nil || !ok {
		t.Fatalf("FlushPage failed: ok=%v err=%v", ok, err)
	}
	if disk.pages[id][0] != 0x42 {
		t.Error("flush did not persist the written byte")
	}
	if frame.IsDirty() {
		t.Error("expected dirty bit cleared after flush")
	}
}

func testBPIDeletePinnedFails(t *testing.T) {
	bpi, _ := setupBPI(2)
	id, _, _ := bpi.NewPage()
	if err := bpi.DeletePage(id); err != ErrPagePinned {
		t.Errorf("expected ErrPagePinned, got %v", err)
	}
	bpi.UnpinPage(id, false)
	if err := bpi.DeletePage(id); err != nil {
		t.Errorf("expected delete to succeed once unpinned, got %s", err)
	}
}

func testBPIShardingAssertion(t *testing.T) {
	disk := newMemDisk()
	bpi := NewBufferPoolInstance(2, 4, 1, disk, testBlock)
	defer func() {
		if recover() == nil {
			t.Error("expected panic for a page id outside this shard")
		}
	}()
	_, _ = bpi.FetchPage(storage.PageID(0))
}
