// Global storage-engine config.
package config

import "github.com/ncw/directio"

// PageSize is the fixed size in bytes of every page handled by the buffer
// pool and the disk manager. Pages must be directio.BlockSize-aligned since
// the disk manager does unbuffered page-aligned I/O.
const PageSize = directio.BlockSize

// DefaultPoolSize is the number of frames held by a single buffer pool
// instance.
const DefaultPoolSize = 32

// DefaultNumInstances is the number of buffer pool instances composed by a
// ParallelBufferPoolManager when none is specified.
const DefaultNumInstances = 4

// DirArraySize is the number of directory slots in a hash table directory
// page (global depth is therefore bounded by log2(DirArraySize)).
const DirArraySize = 512
