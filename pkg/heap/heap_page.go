// Package heap implements a minimal slotted-page table heap sitting on
// top of the buffer pool and lock manager. It is not a query engine: there
// is no catalog, no tuple schema, no heap file format beyond what's needed
// to give the lock manager's acquire/pin/mutate/unpin/release protocol
// something real to exercise end to end.
package heap

import (
	"encoding/binary"

	"coredb/pkg/config"
	"coredb/pkg/storage"

	"github.com/bits-and-blooms/bitset"
)

// TupleSize is the fixed size of every tuple slot. Tuples are the raw
// bytes the caller provides, truncated or zero-padded to this length.
const TupleSize = 128

// SlotsPerPage is the number of tuple slots a heap page can hold, sized
// to leave room for the page header (next page id + bitmap).
const SlotsPerPage = (config.PageSize - 16) / TupleSize

// heapPage is one page of a table heap: a next-page link for the page
// chain, an occupied bitmap (styled after hashpage.BucketPage's
// occupied/readable bitmaps), and a fixed tuple slot array.
type heapPage struct {
	nextPageID storage.PageID
	occupied   *bitset.BitSet
	slots      [SlotsPerPage][TupleSize]byte
	pageID     storage.PageID
}

func newHeapPage(pageID storage.PageID) *heapPage {
	return &heapPage{
		pageID:     pageID,
		nextPageID: storage.InvalidPageID,
		occupied:   bitset.New(SlotsPerPage),
	}
}

// insert writes data into the first free slot, returning its slot number.
func (p *heapPage) insert(data []byte) (uint32, bool) {
	for i := uint(0); i < SlotsPerPage; i++ {
		if !p.occupied.Test(i) {
			var tuple [TupleSize]byte
			copy(tuple[:], data)
			p.slots[i] = tuple
			p.occupied.Set(i)
			return uint32(i), true
		}
	}
	return 0, false
}

func (p *heapPage) get(slot uint32) ([]byte, bool) {
	if !p.occupied.Test(uint(slot)) {
		return nil, false
	}
	out := make([]byte, TupleSize)
	copy(out, p.slots[slot][:])
	return out, true
}

func (p *heapPage) update(slot uint32, data []byte) bool {
	if !p.occupied.Test(uint(slot)) {
		return false
	}
	var tuple [TupleSize]byte
	copy(tuple[:], data)
	p.slots[slot] = tuple
	return true
}

func (p *heapPage) delete(slot uint32) bool {
	if !p.occupied.Test(uint(slot)) {
		return false
	}
	p.occupied.Clear(uint(slot))
	return true
}

const heapHeaderSize = 12

func (p *heapPage) marshal() []byte {
	buf := make([]byte, config.PageSize)
	binary.BigEndian.PutUint64(buf[0:8], uint64(p.nextPageID))
	occWords, _ := p.occupied.MarshalBinary()
	binary.BigEndian.PutUint32(buf[8:12], uint32(len(occWords)))
	offset := heapHeaderSize
	copy(buf[offset:], occWords)
	offset += len(occWords)
	for i, tuple := range p.slots {
		copy(buf[offset+i*TupleSize:], tuple[:])
	}
	return buf
}

func unmarshalHeapPage(pageID storage.PageID, buf []byte) *heapPage {
	p := &heapPage{pageID: pageID, occupied: bitset.New(SlotsPerPage)}
	p.nextPageID = storage.PageID(binary.BigEndian.Uint64(buf[0:8]))
	occLen := binary.BigEndian.Uint32(buf[8:12])
	offset := heapHeaderSize
	_ = p.occupied.UnmarshalBinary(buf[offset : offset+int(occLen)])
	offset += int(occLen)
	for i := range p.slots {
		copy(p.slots[i][:], buf[offset+i*TupleSize:offset+(i+1)*TupleSize])
	}
	return p
}
