package hashpage

import (
	"coredb/pkg/storage"
	"testing"
)

func TestDirectoryPage(t *testing.T) {
	t.Run("NewDirectoryHasTwoSlots", testDirNewHasTwoSlots)
	t.Run("SplitImageFlipsLocalDepthBit", testDirSplitImage)
	t.Run("CanShrink", testDirCanShrink)
	t.Run("MarshalRoundTrip", testDirMarshalRoundTrip)
}

func testDirNewHasTwoSlots(t *testing.T) {
	d := NewDirectoryPage(0, 1, 2)
	if d.GlobalDepth() != 1 || d.Size() != 2 {
		t.Fatalf("expected global depth 1 (size 2), got depth=%d size=%d", d.GlobalDepth(), d.Size())
	}
	if d.BucketPageID(0) != 1 || d.BucketPageID(1) != 2 {
		t.Errorf("expected slots [1, 2], got [%d, %d]", d.BucketPageID(0), d.BucketPageID(1))
	}
	if d.LocalDepth(0) != 1 || d.LocalDepth(1) != 1 {
		t.Error("expected both initial buckets to have local depth 1")
	}
}

func testDirSplitImage(t *testing.T) {
	d := NewDirectoryPage(0, 1, 2)
	d.IncrGlobalDepth()
	d.SetBucketPageID(2, 1)
	d.SetBucketPageID(3, 2)
	d.SetLocalDepth(0, 2)
	d.SetLocalDepth(2, 2)
	if d.SplitImageIndex(0) != 2 {
		t.Errorf("expected split image of 0 at local depth 2 to be 2, got %d", d.SplitImageIndex(0))
	}
}

func testDirCanShrink(t *testing.T) {
	d := NewDirectoryPage(0, 1, 2)
	if d.CanShrink() {
		t.Error("expected a depth-1 directory with both buckets at depth 1 not to be shrinkable")
	}
	d.IncrGlobalDepth()
	if !d.CanShrink() {
		t.Error("expected a depth-2 directory with every slot below depth 2 to be shrinkable")
	}
	d.SetLocalDepth(2, 2)
	d.SetLocalDepth(3, 2)
	if d.CanShrink() {
		t.Error("expected directory not to shrink while any slot is at global depth")
	}
}

func testDirMarshalRoundTrip(t *testing.T) {
	d := NewDirectoryPage(5, 10, 20)
	d.IncrGlobalDepth()
	d.SetBucketPageID(2, 30)
	d.SetLocalDepth(2, 2)

	buf := d.Marshal()
	restored := UnmarshalDirectoryPage(5, buf)

	if restored.GlobalDepth() != 2 {
		t.Errorf("expected global depth 2 after round-trip, got %d", restored.GlobalDepth())
	}
	if restored.BucketPageID(2) != storage.PageID(30) {
		t.Errorf("expected slot 2 to point at page 30, got %d", restored.BucketPageID(2))
	}
	if restored.LocalDepth(2) != 2 {
		t.Errorf("expected slot 2 local depth 2, got %d", restored.LocalDepth(2))
	}
}
