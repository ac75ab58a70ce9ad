package buffer

import (
	"testing"

	"coredb/pkg/storage"
)

func TestParallelBufferPoolManager(t *testing.T) {
	t.Run("RoutesToOwningShard", testParallelRoutesToOwningShard)
	t.Run("RoundRobinsNewPage", testParallelRoundRobin)
	t.Run("FlushAll", testParallelFlushAll)
}

func setupParallel(numInstances, poolSize int) *ParallelBufferPoolManager {
	disk := newMemDisk()
	return NewParallelBufferPoolManager(numInstances, poolSize, disk, testBlock)
}

func testParallelRoutesToOwningShard(t *testing.T) {
	p := setupParallel(4, 4)
	for i := 0; i < 8; i++ {
		id, _, err := p.NewPage()
		if err != nil {
			t.Fatalf("NewPage failed: %s", err)
		}
		shard := p.shardFor(id)
		if _, err := shard.FetchPage(id); err != nil {
			t.Errorf("page %d not resident in its owning shard: %s", id, err)
		}
		shard.UnpinPage(id, false)
		p.UnpinPage(id, false)
	}
}

func testParallelRoundRobin(t *testing.T) {
	p := setupParallel(3, 4)
	seen := map[int]bool{}
	for i := 0; i < 3; i++ {
		id, _, err := p.NewPage()
		if err != nil {
			t.Fatal(err)
		}
		seen[int(id)%3] = true
	}
	if len(seen) != 3 {
		t.Errorf("expected round-robin to touch all 3 shards, touched %d", len(seen))
	}
}

func testParallelFlushAll(t *testing.T) {
	p := setupParallel(2, 4)
	ids := make([]storage.PageID, 0, 4)
	for i := 0; i < 4; i++ {
		id, frame, err := p.NewPage()
		if err != nil {
			t.Fatal(err)
		}
		frame.Data()[0] = byte(i + 1)
		ids = append(ids, id)
	}
	if err := p.FlushAllPages(); err != nil {
		t.Fatalf("FlushAllPages failed: %s", err)
	}
	for _, id := range ids {
		p.UnpinPage(id, false)
	}
}
