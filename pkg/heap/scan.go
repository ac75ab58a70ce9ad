package heap

import (
	"coredb/pkg/storage"
	"coredb/pkg/txn"
)

// Scan is a sequential-scan cursor over a TableHeap, threading shared
// lock/unlock calls per the scanning transaction's isolation level as it
// advances, the same protocol the original sequential scan executor
// follows on top of the buffer pool and lock manager.
type Scan struct {
	heap        *TableHeap
	transaction *txn.Transaction
	pageID      storage.PageID
	slot        uint32
	done        bool
}

// NewScan returns a cursor positioned before the heap's first tuple.
func NewScan(h *TableHeap, transaction *txn.Transaction) *Scan {
	return &Scan{heap: h, transaction: transaction, pageID: h.FirstPageID()}
}

// Next advances to the next live tuple, returning false once the heap is
// exhausted.
func (s *Scan) Next() (txn.RID, []byte, bool, error) {
	if s.done {
		return txn.RID{}, nil, false, nil
	}
	for s.pageID != storage.InvalidPageID {
		frame, err := s.heap.bpm.FetchPage(s.pageID)
		if err != nil {
			return txn.RID{}, nil, false, err
		}
		frame.RLock()
		page := unmarshalHeapPage(s.pageID, frame.Data())
		frame.RUnlock()

		for s.slot < SlotsPerPage {
			slot := s.slot
			s.slot++
			if !page.occupied.Test(uint(slot)) {
				continue
			}
			rid := txn.RID{PageID: s.pageID, SlotNum: slot}
			locked := false
			if s.transaction.Isolation != txn.ReadUncommitted && !s.transaction.HoldsShared(rid) && !s.transaction.HoldsExclusive(rid) {
				if err := s.heap.locks.LockShared(s.transaction, rid); err != nil {
					s.heap.bpm.UnpinPage(s.pageID, false)
					return txn.RID{}, nil, false, err
				}
				locked = true
			}
			data, ok := page.get(slot)
			if locked && s.transaction.Isolation != txn.RepeatableRead {
				s.heap.locks.Unlock(s.transaction, rid)
			}
			if !ok {
				continue
			}
			s.heap.bpm.UnpinPage(s.pageID, false)
			return rid, data, true, nil
		}

		s.heap.bpm.UnpinPage(s.pageID, false)
		s.pageID = page.nextPageID
		s.slot = 0
	}
	s.done = true
	return txn.RID{}, nil, false, nil
}
