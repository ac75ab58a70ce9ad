// Package diskmanager implements page-aligned file I/O for the buffer pool.
//
// It is the external "Disk Manager" component of the storage engine: the
// buffer pool calls ReadPage/WritePage when it needs to fault a page in or
// flush it back out, and AllocatePage when it needs a fresh page id backed
// by disk space. Deleted pages are neither tracked nor reclaimed on disk,
// matching the conservative "never shrink the file" behavior the buffer
// pool's DeletePage contract expects.
package diskmanager

import (
	"errors"
	"io"
	"os"
	"strings"
	"sync"

	"coredb/pkg/config"
	"coredb/pkg/storage"

	"github.com/ncw/directio"
)

// ErrInvalidPageID is returned when a caller asks to read/write a negative
// page id. Ids past the file's current extent are not rejected.
var ErrInvalidPageID = errors.New("diskmanager: invalid page id")

// DiskManager reads and writes fixed-size, directio-aligned pages to a
// single backing file. A DiskManager does not cache pages; that is the
// buffer pool's job.
type DiskManager struct {
	mu       sync.Mutex
	file     *os.File
	numPages int64
}

// Open (re-)initializes a DiskManager backed by a database file at
// filePath. If the file doesn't already exist, it is created. Returns an
// error if the file's length isn't a whole number of pages.
func Open(filePath string) (*DiskManager, error) {
	if idx := strings.LastIndex(filePath, "/"); idx != -1 {
		if err := os.MkdirAll(filePath[:idx], 0775); err != nil {
			return nil, err
		}
	}
	file, err := directio.OpenFile(filePath, os.O_RDWR|os.O_CREATE, 0666)
	if err != nil {
		return nil, err
	}
	info, err := file.Stat()
	if err != nil {
		return nil, err
	}
	length := info.Size()
	if length%config.PageSize != 0 {
		return nil, errors.New("diskmanager: database file has been corrupted")
	}
	return &DiskManager{file: file, numPages: length / config.PageSize}, nil
}

// AllocateBlock returns a properly aligned buffer sized to hold exactly one
// page's worth of data, usable as page storage for a buffer pool frame.
func AllocateBlock() []byte {
	return directio.AlignedBlock(config.PageSize)
}

// NumPages returns the number of pages currently backed by the file.
func (dm *DiskManager) NumPages() int64 {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	return dm.numPages
}

// AllocatePage extends the backing file by one page and returns its id.
// The caller is responsible for assigning page ids consistent with any
// sharding scheme (e.g. page_id % num_instances) before calling this; this
// method only tracks how many pages the file has grown to.
func (dm *DiskManager) AllocatePage() storage.PageID {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	id := dm.numPages
	dm.numPages++
	return storage.PageID(id)
}

// DeallocatePage is a no-op placeholder: this disk manager never reclaims
// page ids or truncates the file, since nothing above it currently reuses
// freed page ids across a restart.
func (dm *DiskManager) DeallocatePage(storage.PageID) {}

// ReadPage fills dst (which must be exactly config.PageSize bytes) with the
// on-disk contents of the given page. Reading past the end of the file
// (e.g. a page that was allocated but never written) zero-fills dst.
func (dm *DiskManager) ReadPage(id storage.PageID, dst []byte) error {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	if id < 0 {
		return ErrInvalidPageID
	}
	if _, err := dm.file.Seek(int64(id)*config.PageSize, 0); err != nil {
		return err
	}
	if _, err := io.ReadFull(dm.file, dst); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			for i := range dst {
				dst[i] = 0
			}
			return nil
		}
		return err
	}
	return nil
}

// WritePage writes src (exactly config.PageSize bytes) to the given page's
// offset in the backing file.
func (dm *DiskManager) WritePage(id storage.PageID, src []byte) error {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	if id < 0 {
		return ErrInvalidPageID
	}
	_, err := dm.file.WriteAt(src, int64(id)*config.PageSize)
	return err
}

// Close closes the backing file. It does not flush: callers are expected
// to flush every dirty frame through the buffer pool first.
func (dm *DiskManager) Close() error {
	return dm.file.Close()
}
