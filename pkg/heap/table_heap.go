package heap

import (
	"errors"
	"sync"

	"coredb/pkg/buffer"
	"coredb/pkg/storage"
	"coredb/pkg/txn"
)

// ErrTupleNotFound is returned by GetTuple/UpdateTuple/DeleteTuple for an
// rid whose slot isn't occupied.
var ErrTupleNotFound = errors.New("heap: tuple not found")

// BufferPoolManager is the subset of the buffer pool a table heap needs.
type BufferPoolManager interface {
	NewPage() (storage.PageID, *buffer.Frame, error)
	FetchPage(storage.PageID) (*buffer.Frame, error)
	UnpinPage(storage.PageID, bool) error
}

// TableHeap is a singly linked chain of heap pages holding fixed-size
// tuple slots. Every operation except InsertTuple acquires the matching
// record lock before touching the page and releases it per the
// transaction's isolation level, following the same acquire-pin-mutate-unpin-release sequencing
// the original sequential scan / insert / delete / update executors use
// on top of the buffer pool and lock manager.
type TableHeap struct {
	bpm         BufferPoolManager
	locks       *txn.LockManager
	mu          sync.Mutex
	firstPageID storage.PageID
	lastPageID  storage.PageID
}

// NewTableHeap allocates the heap's first page.
func NewTableHeap(bpm BufferPoolManager, locks *txn.LockManager) (*TableHeap, error) {
	pageID, frame, err := bpm.NewPage()
	if err != nil {
		return nil, err
	}
	page := newHeapPage(pageID)
	copy(frame.Data(), page.marshal())
	bpm.UnpinPage(pageID, true)
	return &TableHeap{bpm: bpm, locks: locks, firstPageID: pageID, lastPageID: pageID}, nil
}

// InsertTuple appends data as a new tuple in the heap's last page,
// allocating a fresh page if that page is full, and returns its rid. Free
// slots in earlier pages are not reused. Insert takes no lock
// itself (there's no rid until the tuple exists); callers that need
// exclusive access to the inserted tuple immediately afterward should
// lock its rid before releasing control to other transactions.
func (h *TableHeap) InsertTuple(data []byte) (txn.RID, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	pageID := h.lastPageID
	for {
		frame, err := h.bpm.FetchPage(pageID)
		if err != nil {
			return txn.RID{}, err
		}
		frame.Lock()
		page := unmarshalHeapPage(pageID, frame.Data())
		if slot, ok := page.insert(data); ok {
			copy(frame.Data(), page.marshal())
			frame.Unlock()
			h.bpm.UnpinPage(pageID, true)
			return txn.RID{PageID: pageID, SlotNum: slot}, nil
		}
		frame.Unlock()

		if page.nextPageID != storage.InvalidPageID {
			h.bpm.UnpinPage(pageID, false)
			pageID = page.nextPageID
			continue
		}

		newPageID, newFrame, err := h.bpm.NewPage()
		if err != nil {
			h.bpm.UnpinPage(pageID, false)
			return txn.RID{}, err
		}
		newPage := newHeapPage(newPageID)
		copy(newFrame.Data(), newPage.marshal())
		h.bpm.UnpinPage(newPageID, true)

		frame.Lock()
		page.nextPageID = newPageID
		copy(frame.Data(), page.marshal())
		frame.Unlock()
		h.bpm.UnpinPage(pageID, true)

		h.lastPageID = newPageID
		pageID = newPageID
	}
}

// GetTuple acquires a shared lock on rid (if txn doesn't already hold a
// lock on it), reads the tuple, and releases that shared lock under
// READ_COMMITTED. Under REPEATABLE_READ the lock is held until commit,
// so GetTuple leaves it in place. READ_UNCOMMITTED reads take no lock, and
// a lock txn already held on rid is left in place.
func (h *TableHeap) GetTuple(transaction *txn.Transaction, rid txn.RID) ([]byte, error) {
	locked := false
	if transaction.Isolation != txn.ReadUncommitted && !transaction.HoldsShared(rid) && !transaction.HoldsExclusive(rid) {
		if err := h.locks.LockShared(transaction, rid); err != nil {
			return nil, err
		}
		locked = true
	}
	frame, err := h.bpm.FetchPage(rid.PageID)
	if err != nil {
		return nil, err
	}
	frame.RLock()
	page := unmarshalHeapPage(rid.PageID, frame.Data())
	data, ok := page.get(rid.SlotNum)
	frame.RUnlock()
	h.bpm.UnpinPage(rid.PageID, false)

	if locked && transaction.Isolation != txn.RepeatableRead {
		h.locks.Unlock(transaction, rid)
	}
	if !ok {
		return nil, ErrTupleNotFound
	}
	return data, nil
}

// UpdateTuple acquires (or upgrades to) an exclusive lock on rid, then
// overwrites its tuple in place.
func (h *TableHeap) UpdateTuple(transaction *txn.Transaction, rid txn.RID, data []byte) error {
	if err := h.acquireExclusive(transaction, rid); err != nil {
		return err
	}
	frame, err := h.bpm.FetchPage(rid.PageID)
	if err != nil {
		return err
	}
	frame.Lock()
	page := unmarshalHeapPage(rid.PageID, frame.Data())
	ok := page.update(rid.SlotNum, data)
	if ok {
		copy(frame.Data(), page.marshal())
	}
	frame.Unlock()
	h.bpm.UnpinPage(rid.PageID, ok)
	if !ok {
		return ErrTupleNotFound
	}
	return nil
}

// DeleteTuple acquires (or upgrades to) an exclusive lock on rid, then
// clears its slot.
func (h *TableHeap) DeleteTuple(transaction *txn.Transaction, rid txn.RID) error {
	if err := h.acquireExclusive(transaction, rid); err != nil {
		return err
	}
	frame, err := h.bpm.FetchPage(rid.PageID)
	if err != nil {
		return err
	}
	frame.Lock()
	page := unmarshalHeapPage(rid.PageID, frame.Data())
	ok := page.delete(rid.SlotNum)
	if ok {
		copy(frame.Data(), page.marshal())
	}
	frame.Unlock()
	h.bpm.UnpinPage(rid.PageID, ok)
	if !ok {
		return ErrTupleNotFound
	}
	return nil
}

func (h *TableHeap) acquireExclusive(transaction *txn.Transaction, rid txn.RID) error {
	if transaction.HoldsExclusive(rid) {
		return nil
	}
	if transaction.HoldsShared(rid) {
		return h.locks.LockUpgrade(transaction, rid)
	}
	return h.locks.LockExclusive(transaction, rid)
}

// FirstPageID returns the heap's first page, the entry point for a
// sequential scan.
func (h *TableHeap) FirstPageID() storage.PageID {
	return h.firstPageID
}
