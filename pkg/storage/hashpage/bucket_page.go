package hashpage

import (
	"encoding/binary"

	"coredb/pkg/config"
	"coredb/pkg/storage"

	"github.com/bits-and-blooms/bitset"
)

// entrySize is the marshaled width of one Entry: two int64s, big-endian.
const entrySize = 16

// bucketPageHeaderBudget reserves room for Marshal's 8-byte occupied/readable
// length header plus both bitmaps' own encoded bytes, which grow with
// BucketArraySize (roughly 8 bytes of bitset overhead plus one word per 64
// slots, per bitmap); 200 bytes comfortably covers that at this array size.
const bucketPageHeaderBudget = 200

// BucketArraySize bounds the number of key/value slots per bucket page,
// sized so Marshal's header, bitmaps, and entry array fit in one
// config.PageSize page, the same arithmetic heap.SlotsPerPage uses.
const BucketArraySize = (config.PageSize - bucketPageHeaderBudget) / entrySize

// BucketPage is a fixed-capacity array of entries guarded by two bitmaps:
// occupied marks a slot as ever having held an entry (it stays set after a
// delete, so Insert does not reuse the slot until Clear), readable marks a
// slot as currently holding a live entry. Lookups scan every slot and
// consult only readable. This mirrors
// the original hash_table_bucket_page's occupied_/readable_ byte arrays,
// built here on top of bitset.BitSet instead of hand-rolled bit twiddling.
type BucketPage struct {
	occupied *bitset.BitSet
	readable *bitset.BitSet
	entries  [BucketArraySize]Entry
	pageID   storage.PageID
}

// NewBucketPage returns an empty bucket page.
func NewBucketPage(pageID storage.PageID) *BucketPage {
	return &BucketPage{
		occupied: bitset.New(BucketArraySize),
		readable: bitset.New(BucketArraySize),
		pageID:   pageID,
	}
}

// PageID returns the page id this bucket is stored at.
func (b *BucketPage) PageID() storage.PageID {
	return b.pageID
}

// GetValue appends the value of every readable entry whose key matches key.
func (b *BucketPage) GetValue(key int64) []int64 {
	var values []int64
	for i := uint(0); i < BucketArraySize; i++ {
		if !b.readable.Test(i) {
			continue
		}
		if b.entries[i].Key == key {
			values = append(values, b.entries[i].Value)
		}
	}
	return values
}

// Insert adds (key, value) to the first free slot. Returns false if the
// pair is already present or the bucket is full.
func (b *BucketPage) Insert(key, value int64) bool {
	freeSlot := -1
	for i := uint(0); i < BucketArraySize; i++ {
		if b.readable.Test(i) {
			if b.entries[i].Key == key && b.entries[i].Value == value {
				return false
			}
			continue
		}
		if freeSlot == -1 && !b.occupied.Test(i) {
			freeSlot = int(i)
		}
	}
	if freeSlot == -1 {
		return false
	}
	b.entries[freeSlot] = Entry{Key: key, Value: value}
	b.occupied.Set(uint(freeSlot))
	b.readable.Set(uint(freeSlot))
	return true
}

// Remove deletes the first (key, value) entry found. Returns false if no
// such entry exists.
func (b *BucketPage) Remove(key, value int64) bool {
	for i := uint(0); i < BucketArraySize; i++ {
		if b.readable.Test(i) && b.entries[i].Key == key && b.entries[i].Value == value {
			b.readable.Clear(i)
			return true
		}
	}
	return false
}

// KeyAt returns the key stored at slot i.
func (b *BucketPage) KeyAt(i uint) int64 {
	return b.entries[i].Key
}

// ValueAt returns the value stored at slot i.
func (b *BucketPage) ValueAt(i uint) int64 {
	return b.entries[i].Value
}

// IsOccupied reports whether slot i has ever held an entry.
func (b *BucketPage) IsOccupied(i uint) bool {
	return b.occupied.Test(i)
}

// IsReadable reports whether slot i currently holds a live entry.
func (b *BucketPage) IsReadable(i uint) bool {
	return b.readable.Test(i)
}

// IsFull reports whether every slot is occupied.
func (b *BucketPage) IsFull() bool {
	return b.occupied.Count() == BucketArraySize
}

// NumReadable returns the number of slots currently holding a live entry.
func (b *BucketPage) NumReadable() uint {
	return b.readable.Count()
}

// IsEmpty reports whether no slot currently holds a live entry.
func (b *BucketPage) IsEmpty() bool {
	return b.readable.None()
}

// AllEntries returns every (key, value) currently readable, for rehashing
// during a split or for a sequential scan.
func (b *BucketPage) AllEntries() []Entry {
	var out []Entry
	for i := uint(0); i < BucketArraySize; i++ {
		if b.readable.Test(i) {
			out = append(out, b.entries[i])
		}
	}
	return out
}

// Clear resets the bucket to empty, keeping its page id.
func (b *BucketPage) Clear() {
	b.occupied.ClearAll()
	b.readable.ClearAll()
}

const bucketHeaderSize = 8 // encoded byte length of the occupied and readable bitmaps, 4 bytes each

// Marshal serializes the bucket page into a config.PageSize buffer: the
// occupied and readable bitmaps (as their uint64 words), followed by the
// fixed entry array.
func (b *BucketPage) Marshal() []byte {
	buf := make([]byte, config.PageSize)
	occWords, _ := b.occupied.MarshalBinary()
	readWords, _ := b.readable.MarshalBinary()
	binary.BigEndian.PutUint32(buf[0:4], uint32(len(occWords)))
	binary.BigEndian.PutUint32(buf[4:8], uint32(len(readWords)))
	offset := bucketHeaderSize
	copy(buf[offset:], occWords)
	offset += len(occWords)
	copy(buf[offset:], readWords)
	offset += len(readWords)
	for i, e := range b.entries {
		binary.BigEndian.PutUint64(buf[offset+i*entrySize:offset+i*entrySize+8], uint64(e.Key))
		binary.BigEndian.PutUint64(buf[offset+i*entrySize+8:offset+i*entrySize+entrySize], uint64(e.Value))
	}
	return buf
}

// UnmarshalBucketPage reconstructs a bucket page from a config.PageSize
// buffer previously produced by Marshal.
func UnmarshalBucketPage(pageID storage.PageID, buf []byte) *BucketPage {
	b := &BucketPage{pageID: pageID, occupied: bitset.New(BucketArraySize), readable: bitset.New(BucketArraySize)}
	occLen := binary.BigEndian.Uint32(buf[0:4])
	readLen := binary.BigEndian.Uint32(buf[4:8])
	offset := bucketHeaderSize
	_ = b.occupied.UnmarshalBinary(buf[offset : offset+int(occLen)])
	offset += int(occLen)
	_ = b.readable.UnmarshalBinary(buf[offset : offset+int(readLen)])
	offset += int(readLen)
	for i := range b.entries {
		key := int64(binary.BigEndian.Uint64(buf[offset+i*entrySize : offset+i*entrySize+8]))
		val := int64(binary.BigEndian.Uint64(buf[offset+i*entrySize+8 : offset+i*entrySize+entrySize]))
		b.entries[i] = Entry{Key: key, Value: val}
	}
	return b
}
