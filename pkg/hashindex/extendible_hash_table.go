// Package hashindex implements a disk-backed extendible hash table: a
// directory of buckets that doubles or halves as buckets split or merge,
// keeping average bucket occupancy bounded without ever rehashing the
// whole table at once.
package hashindex

import (
	"errors"

	"coredb/pkg/buffer"
	"coredb/pkg/storage"
	"coredb/pkg/storage/hashpage"
)

// ErrKeyNotFound is returned by Remove when no matching (key, value) entry
// exists.
var ErrKeyNotFound = errors.New("hashindex: key not found")

// ErrDuplicateEntry is returned by Insert when the exact (key, value) pair
// is already stored.
var ErrDuplicateEntry = errors.New("hashindex: duplicate (key, value) entry")

// ErrTooManySplits guards against an unbounded split loop; legitimate
// workloads never approach this since it would require a directory depth
// beyond what DirArraySize can represent.
var ErrTooManySplits = errors.New("hashindex: exceeded maximum split depth")

const maxSplitDepth = 9 // log2(hashpage.DirArraySize)

// BufferPoolManager is the subset of buffer.BufferPoolInstance /
// buffer.ParallelBufferPoolManager the hash table needs.
type BufferPoolManager interface {
	NewPage() (storage.PageID, *buffer.Frame, error)
	FetchPage(storage.PageID) (*buffer.Frame, error)
	UnpinPage(storage.PageID, bool) error
	DeletePage(storage.PageID) error
}

// ExtendibleHashTable is a persistent hash index keyed on int64. Every
// directory and bucket access pins its page in the buffer pool for the
// duration of the access and latches it (shared for reads, exclusive for
// mutation) before touching its bytes, then writes the (possibly mutated)
// page back and unpins.
type ExtendibleHashTable struct {
	bpm             BufferPoolManager
	directoryPageID storage.PageID
}

// NewExtendibleHashTable allocates a directory page and two bucket pages,
// wiring up a fresh table with global depth 1.
func NewExtendibleHashTable(bpm BufferPoolManager) (*ExtendibleHashTable, error) {
	dirID, dirFrame, err := bpm.NewPage()
	if err != nil {
		return nil, err
	}
	bucket0ID, bucket0Frame, err := bpm.NewPage()
	if err != nil {
		return nil, err
	}
	bucket1ID, bucket1Frame, err := bpm.NewPage()
	if err != nil {
		return nil, err
	}

	dir := hashpage.NewDirectoryPage(dirID, bucket0ID, bucket1ID)
	copy(dirFrame.Data(), dir.Marshal())
	copy(bucket0Frame.Data(), hashpage.NewBucketPage(bucket0ID).Marshal())
	copy(bucket1Frame.Data(), hashpage.NewBucketPage(bucket1ID).Marshal())

	bpm.UnpinPage(dirID, true)
	bpm.UnpinPage(bucket0ID, true)
	bpm.UnpinPage(bucket1ID, true)

	return &ExtendibleHashTable{bpm: bpm, directoryPageID: dirID}, nil
}

// OpenExtendibleHashTable wraps an already-initialized table whose
// directory lives at directoryPageID.
func OpenExtendibleHashTable(bpm BufferPoolManager, directoryPageID storage.PageID) *ExtendibleHashTable {
	return &ExtendibleHashTable{bpm: bpm, directoryPageID: directoryPageID}
}

func (h *ExtendibleHashTable) fetchDirectory() (*hashpage.DirectoryPage, *buffer.Frame, error) {
	frame, err := h.bpm.FetchPage(h.directoryPageID)
	if err != nil {
		return nil, nil, err
	}
	return hashpage.UnmarshalDirectoryPage(h.directoryPageID, frame.Data()), frame, nil
}

func (h *ExtendibleHashTable) fetchBucket(pageID storage.PageID) (*hashpage.BucketPage, *buffer.Frame, error) {
	frame, err := h.bpm.FetchPage(pageID)
	if err != nil {
		return nil, nil, err
	}
	return hashpage.UnmarshalBucketPage(pageID, frame.Data()), frame, nil
}

func writeBackDirectory(frame *buffer.Frame, dir *hashpage.DirectoryPage) {
	copy(frame.Data(), dir.Marshal())
}

func writeBackBucket(frame *buffer.Frame, bucket *hashpage.BucketPage) {
	copy(frame.Data(), bucket.Marshal())
}

// GetValue returns every value stored under key.
func (h *ExtendibleHashTable) GetValue(key int64) ([]int64, error) {
	dir, dirFrame, err := h.fetchDirectory()
	if err != nil {
		return nil, err
	}
	dirFrame.RLock()
	idx := dir.KeyToDirectoryIndex(Hash(key))
	bucketID := dir.BucketPageID(idx)
	dirFrame.RUnlock()
	h.bpm.UnpinPage(h.directoryPageID, false)

	bucket, bucketFrame, err := h.fetchBucket(bucketID)
	if err != nil {
		return nil, err
	}
	bucketFrame.RLock()
	values := bucket.GetValue(key)
	bucketFrame.RUnlock()
	h.bpm.UnpinPage(bucketID, false)
	return values, nil
}

// Insert adds (key, value), splitting buckets as needed. Duplicate
// (key, value) pairs are rejected with ErrDuplicateEntry, matching the
// underlying bucket's dedup semantics.
func (h *ExtendibleHashTable) Insert(key, value int64) error {
	for attempt := 0; attempt < maxSplitDepth+1; attempt++ {
		dir, dirFrame, err := h.fetchDirectory()
		if err != nil {
			return err
		}
		dirFrame.RLock()
		idx := dir.KeyToDirectoryIndex(Hash(key))
		bucketID := dir.BucketPageID(idx)
		dirFrame.RUnlock()
		h.bpm.UnpinPage(h.directoryPageID, false)

		bucket, bucketFrame, err := h.fetchBucket(bucketID)
		if err != nil {
			return err
		}
		bucketFrame.Lock()
		if bucket.Insert(key, value) {
			writeBackBucket(bucketFrame, bucket)
			bucketFrame.Unlock()
			h.bpm.UnpinPage(bucketID, true)
			return nil
		}
		duplicate := false
		for _, v := range bucket.GetValue(key) {
			if v == value {
				duplicate = true
			}
		}
		bucketFrame.Unlock()
		h.bpm.UnpinPage(bucketID, false)
		if duplicate {
			return ErrDuplicateEntry
		}

		if err := h.splitInsert(idx, bucketID); err != nil {
			return err
		}
	}
	return ErrTooManySplits
}

// splitInsert splits the bucket at directory slot idx, growing the
// directory first if the bucket's local depth has caught up to the global
// depth. It rehashes the split bucket's entries between the old bucket and
// a freshly allocated sibling.
func (h *ExtendibleHashTable) splitInsert(idx uint32, bucketID storage.PageID) error {
	dir, dirFrame, err := h.fetchDirectory()
	if err != nil {
		return err
	}
	dirFrame.Lock()
	defer func() {
		dirFrame.Unlock()
	}()
	dir = hashpage.UnmarshalDirectoryPage(h.directoryPageID, dirFrame.Data())

	// Re-resolve: another writer may have already split this bucket.
	if dir.BucketPageID(idx) != bucketID {
		h.bpm.UnpinPage(h.directoryPageID, false)
		return nil
	}

	bucket, bucketFrame, err := h.fetchBucket(bucketID)
	if err != nil {
		h.bpm.UnpinPage(h.directoryPageID, false)
		return err
	}
	bucketFrame.Lock()
	bucket = hashpage.UnmarshalBucketPage(bucketID, bucketFrame.Data())
	if !bucket.IsFull() {
		bucketFrame.Unlock()
		h.bpm.UnpinPage(bucketID, false)
		h.bpm.UnpinPage(h.directoryPageID, false)
		return nil
	}

	if uint32(dir.LocalDepth(idx)) == dir.GlobalDepth() {
		if dir.GlobalDepth() >= maxSplitDepth {
			bucketFrame.Unlock()
			h.bpm.UnpinPage(bucketID, false)
			h.bpm.UnpinPage(h.directoryPageID, false)
			return ErrTooManySplits
		}
		oldSize := dir.Size()
		dir.IncrGlobalDepth()
		for i := uint32(0); i < oldSize; i++ {
			dir.SetBucketPageID(oldSize+i, dir.BucketPageID(i))
			dir.SetLocalDepth(oldSize+i, dir.LocalDepth(i))
		}
	}
	dir.IncrLocalDepth(idx)
	newLocalDepth := dir.LocalDepth(idx)

	newBucketID, newBucketFrame, err := h.bpm.NewPage()
	if err != nil {
		bucketFrame.Unlock()
		h.bpm.UnpinPage(bucketID, false)
		h.bpm.UnpinPage(h.directoryPageID, false)
		return err
	}
	newBucket := hashpage.NewBucketPage(newBucketID)

	size := dir.Size()
	splitMask := uint32(1) << (newLocalDepth - 1)
	for i := uint32(0); i < size; i++ {
		if dir.BucketPageID(i) != bucketID {
			continue
		}
		dir.SetLocalDepth(i, newLocalDepth)
		if i&splitMask != 0 {
			dir.SetBucketPageID(i, newBucketID)
		}
	}

	oldEntries := bucket.AllEntries()
	bucket.Clear()
	for _, e := range oldEntries {
		targetIdx := dir.KeyToDirectoryIndex(Hash(e.Key))
		if dir.BucketPageID(targetIdx) == newBucketID {
			newBucket.Insert(e.Key, e.Value)
		} else {
			bucket.Insert(e.Key, e.Value)
		}
	}

	writeBackDirectory(dirFrame, dir)
	writeBackBucket(newBucketFrame, newBucket)
	writeBackBucket(bucketFrame, bucket)

	bucketFrame.Unlock()
	h.bpm.UnpinPage(bucketID, true)
	h.bpm.UnpinPage(newBucketID, true)
	h.bpm.UnpinPage(h.directoryPageID, true)
	return nil
}

// Remove deletes the first matching (key, value) entry, merging the
// emptied bucket with its split image if possible.
func (h *ExtendibleHashTable) Remove(key, value int64) error {
	dir, dirFrame, err := h.fetchDirectory()
	if err != nil {
		return err
	}
	dirFrame.RLock()
	idx := dir.KeyToDirectoryIndex(Hash(key))
	bucketID := dir.BucketPageID(idx)
	dirFrame.RUnlock()
	h.bpm.UnpinPage(h.directoryPageID, false)

	bucket, bucketFrame, err := h.fetchBucket(bucketID)
	if err != nil {
		return err
	}
	bucketFrame.Lock()
	removed := bucket.Remove(key, value)
	empty := bucket.IsEmpty()
	writeBackBucket(bucketFrame, bucket)
	bucketFrame.Unlock()
	h.bpm.UnpinPage(bucketID, removed)

	if !removed {
		return ErrKeyNotFound
	}
	if empty {
		return h.merge(idx, bucketID)
	}
	return nil
}

// merge conservatively collapses bucketID (known empty) with its split
// image if they share the same local depth, then shrinks the directory
// while every slot pair allows it. The emptied bucket page is never
// deallocated: future splits can reclaim it by overwriting.
func (h *ExtendibleHashTable) merge(idx uint32, bucketID storage.PageID) error {
	dir, dirFrame, err := h.fetchDirectory()
	if err != nil {
		return err
	}
	dirFrame.Lock()
	defer dirFrame.Unlock()
	defer h.bpm.UnpinPage(h.directoryPageID, true)

	localDepth := dir.LocalDepth(idx)
	if localDepth <= 1 {
		return nil
	}
	imageIdx := dir.SplitImageIndex(idx)
	imageBucketID := dir.BucketPageID(imageIdx)
	if imageBucketID == bucketID || dir.LocalDepth(imageIdx) != localDepth {
		return nil
	}

	size := dir.Size()
	for i := uint32(0); i < size; i++ {
		if dir.BucketPageID(i) == bucketID || dir.BucketPageID(i) == imageBucketID {
			dir.SetBucketPageID(i, imageBucketID)
			dir.DecrLocalDepth(i)
		}
	}

	for dir.GlobalDepth() > 1 && dir.CanShrink() {
		dir.DecrGlobalDepth()
	}

	writeBackDirectory(dirFrame, dir)
	return nil
}
