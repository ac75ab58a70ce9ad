package hashindex

import (
	"encoding/binary"

	"github.com/cespare/xxhash"
	"github.com/spaolacci/murmur3"
)

// rawHash returns the 64-bit hash of a key using the given hasher.
func rawHash(hasher func(b []byte) uint64, key int64) uint64 {
	buf := make([]byte, binary.MaxVarintLen64)
	binary.PutVarint(buf, key)
	return hasher(buf)
}

// Hash returns the xxHash hash of key, truncated to the 32 bits the
// directory page indexes with.
func Hash(key int64) uint32 {
	return uint32(rawHash(xxhash.Sum64, key))
}

// secondaryHash returns the MurmurHash3 hash of key, a second hash
// independent of Hash. The directory never indexes with it.
func secondaryHash(key int64) uint64 {
	return rawHash(murmur3.Sum64, key)
}
