package hashindex

import (
	"sync"

	"coredb/pkg/config"
	"coredb/pkg/storage"
)

func testBlock() []byte {
	return make([]byte, config.PageSize)
}

// memDisk is a minimal in-memory disk manager stand-in, local to this
// package's tests.
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
