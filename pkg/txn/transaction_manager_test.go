package txn

import (
	"testing"

	"github.com/google/uuid"
)

func TestTransactionManager(t *testing.T) {
	t.Run("BeginAssignsMonotonicIDs", testBeginAssignsMonotonicIDs)
	t.Run("CommitReleasesLocks", testCommitReleasesLocks)
	t.Run("AbortReleasesLocks", testAbortReleasesLocks)
}

func testBeginAssignsMonotonicIDs(t *testing.T) {
	tm := newTestManager()
	t1 := tm.Begin(uuid.New(), RepeatableRead)
	t2 := tm.Begin(uuid.New(), RepeatableRead)
	if t2.TxnID <= t1.TxnID {
		t.Errorf("expected monotonically increasing txn ids, got %d then %d", t1.TxnID, t2.TxnID)
	}
}

func testCommitReleasesLocks(t *testing.T) {
	tm := newTestManager()
	rid := RID{PageID: 1, SlotNum: 0}
	txn := tm.Begin(uuid.New(), RepeatableRead)
	tm.LockManager().LockExclusive(txn, rid)
	tm.Commit(txn)
	if txn.State() != Committed {
		t.Errorf("expected COMMITTED, got %v", txn.State())
	}

	other := tm.Begin(uuid.New(), RepeatableRead)
	if err := tm.LockManager().LockExclusive(other, rid); err != nil {
		t.Errorf("expected lock to be free after commit, got %s", err)
	}
}

func testAbortReleasesLocks(t *testing.T) {
	tm := newTestManager()
	rid := RID{PageID: 1, SlotNum: 0}
	txn := tm.Begin(uuid.New(), RepeatableRead)
	tm.LockManager().LockExclusive(txn, rid)
	tm.Abort(txn)
	if txn.State() != Aborted {
		t.Errorf("expected ABORTED, got %v", txn.State())
	}

	other := tm.Begin(uuid.New(), RepeatableRead)
	if err := tm.LockManager().LockExclusive(other, rid); err != nil {
		t.Errorf("expected lock to be free after abort, got %s", err)
	}
}
