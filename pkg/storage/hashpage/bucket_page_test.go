package hashpage

import "testing"

func TestBucketPage(t *testing.T) {
	t.Run("InsertAndGet", testBucketInsertAndGet)
	t.Run("RemoveKeepsOccupied", testBucketRemoveKeepsOccupied)
	t.Run("DuplicateInsertRejected", testBucketDuplicateInsertRejected)
	t.Run("FullWhenAllSlotsOccupied", testBucketFull)
	t.Run("MarshalRoundTrip", testBucketMarshalRoundTrip)
}

func testBucketInsertAndGet(t *testing.T) {
	b := NewBucketPage(0)
	if !b.Insert(1, 100) {
		t.Fatal("expected insert to succeed")
	}
	values := b.GetValue(1)
	if len(values) != 1 || values[0] != 100 {
		t.Errorf("expected [100], got %v", values)
	}
	if b.NumReadable() != 1 {
		t.Errorf("expected 1 readable entry, got %d", b.NumReadable())
	}
}

func testBucketRemoveKeepsOccupied(t *testing.T) {
	b := NewBucketPage(0)
	b.Insert(1, 100)
	if !b.Remove(1, 100) {
		t.Fatal("expected remove to succeed")
	}
	if b.NumReadable() != 0 {
		t.Error("expected no readable entries after remove")
	}
	if !b.IsOccupied(0) {
		t.Error("expected slot 0 to remain occupied after a logical delete")
	}
	if !b.IsEmpty() {
		t.Error("expected bucket to report empty after removing its only entry")
	}
}

func testBucketDuplicateInsertRejected(t *testing.T) {
	b := NewBucketPage(0)
	b.Insert(1, 100)
	if b.Insert(1, 100) {
		t.Error("expected duplicate (key, value) insert to be rejected")
	}
}

func testBucketFull(t *testing.T) {
	b := NewBucketPage(0)
	for i := 0; i < BucketArraySize; i++ {
		if !b.Insert(int64(i), int64(i)) {
			t.Fatalf("insert %d unexpectedly failed before bucket was full", i)
		}
	}
	if !b.IsFull() {
		t.Error("expected bucket to report full")
	}
	if b.Insert(int64(BucketArraySize), 0) {
		t.Error("expected insert into a full bucket to fail")
	}
}

func testBucketMarshalRoundTrip(t *testing.T) {
	b := NewBucketPage(3)
	b.Insert(1, 10)
	b.Insert(2, 20)
	b.Remove(1, 10)

	buf := b.Marshal()
	restored := UnmarshalBucketPage(3, buf)

	if restored.NumReadable() != 1 {
		t.Fatalf("expected 1 readable entry after round-trip, got %d", restored.NumReadable())
	}
	if !restored.IsOccupied(0) {
		t.Error("expected slot 0's occupied bit to survive round-trip")
	}
	values := restored.GetValue(2)
	if len(values) != 1 || values[0] != 20 {
		t.Errorf("expected [20] for key 2, got %v", values)
	}
}
