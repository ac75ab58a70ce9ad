// Package hashpage implements the on-disk layout of the extendible hash
// table's directory and bucket pages.
package hashpage

import (
	"encoding/binary"

	"coredb/pkg/config"
	"coredb/pkg/storage"
)

// DirArraySize bounds the number of directory slots (and so the maximum
// global depth to log2(DirArraySize)).
const DirArraySize = config.DirArraySize

// DirectoryPage tracks, for every directory slot, which bucket page owns it
// and that bucket's local depth. Layout on disk (see wire format in the
// design notes): 4 bytes global depth, DirArraySize bytes of local depths,
// DirArraySize*4 bytes of bucket page ids (32-bit each), 4 bytes page id.
type DirectoryPage struct {
	globalDepth   uint32
	localDepths   [DirArraySize]uint8
	bucketPageIDs [DirArraySize]storage.PageID
	pageID        storage.PageID
}

// NewDirectoryPage returns a directory with global depth 1 and its first
// two slots pointing at bucket0 and bucket1, matching the original
// extendible hash table's constructor.
func NewDirectoryPage(pageID storage.PageID, bucket0, bucket1 storage.PageID) *DirectoryPage {
	d := &DirectoryPage{pageID: pageID, globalDepth: 1}
	for i := range d.bucketPageIDs {
		d.bucketPageIDs[i] = storage.InvalidPageID
	}
	d.bucketPageIDs[0] = bucket0
	d.bucketPageIDs[1] = bucket1
	d.localDepths[0] = 1
	d.localDepths[1] = 1
	return d
}

// PageID returns the page id this directory is stored at.
func (d *DirectoryPage) PageID() storage.PageID {
	return d.pageID
}

// GlobalDepth returns the directory's current global depth.
func (d *DirectoryPage) GlobalDepth() uint32 {
	return d.globalDepth
}

// Size returns the number of directory slots in use: 2^globalDepth.
func (d *DirectoryPage) Size() uint32 {
	return 1 << d.globalDepth
}

// IncrGlobalDepth doubles the directory by incrementing the global depth.
// Callers must copy slot i's contents into slot i+2^oldDepth themselves
// (done by the hash table during split, which needs to decide which new
// slots redirect to the split bucket).
func (d *DirectoryPage) IncrGlobalDepth() {
	d.globalDepth++
}

// DecrGlobalDepth halves the directory.
func (d *DirectoryPage) DecrGlobalDepth() {
	d.globalDepth--
}

// BucketPageID returns the bucket page id owning directory slot idx.
func (d *DirectoryPage) BucketPageID(idx uint32) storage.PageID {
	return d.bucketPageIDs[idx]
}

// SetBucketPageID points directory slot idx at bucketPageID.
func (d *DirectoryPage) SetBucketPageID(idx uint32, bucketPageID storage.PageID) {
	d.bucketPageIDs[idx] = bucketPageID
}

// LocalDepth returns the local depth of the bucket owning directory slot idx.
func (d *DirectoryPage) LocalDepth(idx uint32) uint8 {
	return d.localDepths[idx]
}

// SetLocalDepth sets the local depth recorded at directory slot idx.
func (d *DirectoryPage) SetLocalDepth(idx uint32, depth uint8) {
	d.localDepths[idx] = depth
}

// IncrLocalDepth increments the local depth recorded at directory slot idx.
func (d *DirectoryPage) IncrLocalDepth(idx uint32) {
	d.localDepths[idx]++
}

// DecrLocalDepth decrements the local depth recorded at directory slot idx.
func (d *DirectoryPage) DecrLocalDepth(idx uint32) {
	d.localDepths[idx]--
}

// SplitImageIndex returns the directory slot that is idx's split image:
// the slot that shares every bit of idx except the one at position
// localDepth-1, which is flipped.
func (d *DirectoryPage) SplitImageIndex(idx uint32) uint32 {
	depth := d.localDepths[idx]
	if depth == 0 {
		return idx
	}
	return idx ^ (1 << (depth - 1))
}

// CanShrink reports whether every directory slot in use at the current
// global depth has a local depth strictly less than the global depth,
// which is the precondition for halving the directory.
func (d *DirectoryPage) CanShrink() bool {
	size := d.Size()
	for i := uint32(0); i < size; i++ {
		if d.localDepths[i] == uint8(d.globalDepth) {
			return false
		}
	}
	return true
}

// KeyToDirectoryIndex maps a hashed key to its directory slot: the low
// globalDepth bits of hash.
func (d *DirectoryPage) KeyToDirectoryIndex(hash uint32) uint32 {
	return hash & (d.Size() - 1)
}

const directoryWireSize = 4 + DirArraySize + DirArraySize*4 + 4

// Marshal serializes the directory page into a config.PageSize buffer.
func (d *DirectoryPage) Marshal() []byte {
	buf := make([]byte, config.PageSize)
	binary.BigEndian.PutUint32(buf[0:4], d.globalDepth)
	offset := 4
	copy(buf[offset:offset+DirArraySize], d.localDepths[:])
	offset += DirArraySize
	for i, id := range d.bucketPageIDs {
		binary.BigEndian.PutUint32(buf[offset+i*4:offset+i*4+4], uint32(int32(id)))
	}
	offset += DirArraySize * 4
	binary.BigEndian.PutUint32(buf[offset:offset+4], uint32(int32(d.pageID)))
	return buf
}

// UnmarshalDirectoryPage reconstructs a directory page from a
// config.PageSize buffer previously produced by Marshal.
func UnmarshalDirectoryPage(pageID storage.PageID, buf []byte) *DirectoryPage {
	d := &DirectoryPage{pageID: pageID}
	d.globalDepth = binary.BigEndian.Uint32(buf[0:4])
	offset := 4
	copy(d.localDepths[:], buf[offset:offset+DirArraySize])
	offset += DirArraySize
	for i := range d.bucketPageIDs {
		d.bucketPageIDs[i] = storage.PageID(int32(binary.BigEndian.Uint32(buf[offset+i*4 : offset+i*4+4])))
	}
	return d
}
