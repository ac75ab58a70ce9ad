package diskmanager

import (
	"os"
	"testing"
)

func tempFile(t *testing.T) string {
	f, err := os.CreateTemp("", "*.db")
	if err != nil {
		t.Fatal(err)
	}
	name := f.Name()
	f.Close()
	t.Cleanup(func() { os.Remove(name) })
	return name
}

func TestDiskManager(t *testing.T) {
	t.Run("AllocateReadWriteRoundTrip", testAllocateReadWriteRoundTrip)
	t.Run("ReadUnwrittenPageIsZeroed", testReadUnwrittenZeroed)
	t.Run("ReopenPreservesNumPages", testReopenPreservesNumPages)
}

func testAllocateReadWriteRoundTrip(t *testing.T) {
	dm, err := Open(tempFile(t))
	if err != nil {
		t.Fatal(err)
	}
	defer dm.Close()

	id := dm.AllocatePage()
	block := AllocateBlock()
	block[0] = 0x7
	block[len(block)-1] = 0x9
	if err := dm.WritePage(id, block); err != nil {
		t.Fatalf("WritePage failed: %s", err)
	}

	readBack := AllocateBlock()
	if err := dm.ReadPage(id, readBack); err != nil {
		t.Fatalf("ReadPage failed: %s", err)
	}
	if readBack[0] != 0x7 || readBack[len(readBack)-1] != 0x9 {
		t.Error("read-back page did not match what was written")
	}
}

func testReadUnwrittenZeroed(t *testing.T) {
	dm, err := Open(tempFile(t))
	if err != nil {
		t.Fatal(err)
	}
	defer dm.Close()

	id := dm.AllocatePage()
	block := AllocateBlock()
	for i := range block {
		block[i] = 0xFF
	}
	if err := dm.ReadPage(id, block); err != nil {
		t.Fatalf("ReadPage failed: %s", err)
	}
	for _, b := range block {
		if b != 0 {
			t.Fatal("expected a never-written page to read back zeroed")
		}
	}
}

func testReopenPreservesNumPages(t *testing.T) {
	path := tempFile(t)
	dm, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		id := dm.AllocatePage()
		dm.WritePage(id, AllocateBlock())
	}
	dm.Close()

	dm2, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer dm2.Close()
	if dm2.NumPages() != 3 {
		t.Errorf("expected 3 pages after reopen, got %d", dm2.NumPages())
	}
}
