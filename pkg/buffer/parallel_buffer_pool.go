package buffer

import (
	"sync"

	"coredb/pkg/storage"

	"golang.org/x/sync/errgroup"
)

// ParallelBufferPoolManager composes several BufferPoolInstance shards
// behind one interface. A page id routes to shard `page_id % len(instances)`;
// NewPage round-robins across shards starting from a rotating cursor so
// that allocation pressure doesn't pile onto one instance, mirroring the
// original parallel_buffer_pool_manager's last_alloc_idx_ cursor.
type ParallelBufferPoolManager struct {
	mu        sync.Mutex
	instances []*BufferPoolInstance
	nextShard int
}

// NewParallelBufferPoolManager builds numInstances BufferPoolInstance
// shards of poolSize frames each, each backed by the same disk manager.
func NewParallelBufferPoolManager(numInstances, poolSize int, disk DiskManager, newBlock func() []byte) *ParallelBufferPoolManager {
	instances := make([]*BufferPoolInstance, numInstances)
	for i := range instances {
		instances[i] = NewBufferPoolInstance(poolSize, int64(numInstances), int64(i), disk, newBlock)
	}
	return &ParallelBufferPoolManager{instances: instances}
}

// shardFor returns the instance that owns pageID.
func (p *ParallelBufferPoolManager) shardFor(pageID storage.PageID) *BufferPoolInstance {
	return p.instances[int64(pageID)%int64(len(p.instances))]
}

// NewPage allocates a page from the next shard in round-robin order,
// advancing the cursor whether or not the attempt succeeds, and trying
// every shard once before giving up.
func (p *ParallelBufferPoolManager) NewPage() (storage.PageID, *Frame, error) {
	p.mu.Lock()
	start := p.nextShard
	p.mu.Unlock()

	var lastErr error
	for i := 0; i < len(p.instances); i++ {
		idx := (start + i) % len(p.instances)
		p.mu.Lock()
		p.nextShard = (idx + 1) % len(p.instances)
		p.mu.Unlock()
		pageID, frame, err := p.instances[idx].NewPage()
		if err == nil {
			return pageID, frame, nil
		}
		lastErr = err
	}
	return storage.InvalidPageID, nil, lastErr
}

// FetchPage routes to the owning shard.
func (p *ParallelBufferPoolManager) FetchPage(pageID storage.PageID) (*Frame, error) {
	return p.shardFor(pageID).FetchPage(pageID)
}

// UnpinPage routes to the owning shard.
func (p *ParallelBufferPoolManager) UnpinPage(pageID storage.PageID, isDirty bool) error {
	return p.shardFor(pageID).UnpinPage(pageID, isDirty)
}

// FlushPage routes to the owning shard.
func (p *ParallelBufferPoolManager) FlushPage(pageID storage.PageID) (bool, error) {
	return p.shardFor(pageID).FlushPage(pageID)
}

// DeletePage routes to the owning shard.
func (p *ParallelBufferPoolManager) DeletePage(pageID storage.PageID) error {
	return p.shardFor(pageID).DeletePage(pageID)
}

// FlushAllPages flushes every shard concurrently.
func (p *ParallelBufferPoolManager) FlushAllPages() error {
	var g errgroup.Group
	for _, instance := range p.instances {
		instance := instance
		g.Go(instance.FlushAllPages)
	}
	return g.Wait()
}

// NumInstances returns the number of shards.
func (p *ParallelBufferPoolManager) NumInstances() int {
	return len(p.instances)
}
