package txn

import (
	"errors"
	"sync"
)

// ErrTransactionAborted is returned by any lock call on a transaction
// that is already ABORTED, including one wounded by an older request
// while it was waiting, and by LockExclusive when it aborts the requester
// in favor of an older granted holder.
var ErrTransactionAborted = errors.New("txn: transaction is aborted")

// ErrLockOnShrinking is returned when a GROWING-only lock acquisition is
// attempted by a transaction already in SHRINKING.
var ErrLockOnShrinking = errors.New("txn: cannot acquire locks while shrinking")

// ErrSharedOnReadUncommitted is returned when a READ_UNCOMMITTED
// transaction requests a shared lock, which that isolation level forbids
// since it never needs to block on other readers or writers.
var ErrSharedOnReadUncommitted = errors.New("txn: READ_UNCOMMITTED transactions may not take shared locks")

// ErrUpgradeConflict is returned when two transactions race to upgrade the
// same record's lock at once.
var ErrUpgradeConflict = errors.New("txn: another transaction is already upgrading this lock")

// ErrNotLocked is returned by Unlock when the transaction doesn't hold a
// lock on the given record.
var ErrNotLocked = errors.New("txn: transaction does not hold a lock on this record")

// LockMode is the mode a lock request asks for.
type LockMode int

const (
	SharedLock LockMode = iota
	ExclusiveLock
)

// lockRequest is one entry in a record's wait queue.
type lockRequest struct {
	txnID   int64
	mode    LockMode
	granted bool
}

// lockRequestQueue holds the granted lock requests for one record, in the
// order they were granted, plus the condition variable waiters block on.
// A waiting request is not queued; the waiter re-sweeps on wake-up.
type lockRequestQueue struct {
	requests  []*lockRequest
	cond      *sync.Cond
	upgrading bool
}

// transactionLookup resolves a transaction id back to its Transaction, so
// the lock manager can wound (abort) a holder by id alone.
type transactionLookup interface {
	GetTransaction(txnID int64) (*Transaction, bool)
}

// LockManager grants and releases record-level shared/exclusive locks
// using wound-wait: when a request conflicts with a younger transaction's
// granted lock, the younger transaction is wounded (forced to abort) and
// its request is erased; when it conflicts with an older transaction's
// granted lock, the requester waits (LockShared, LockUpgrade) or aborts
// itself (LockExclusive). This guarantees the lock graph is
// always acyclic, since a transaction only ever waits for an older one.
type LockManager struct {
	mu     sync.Mutex
	queues map[RID]*lockRequestQueue
	txns   transactionLookup
}

// NewLockManager returns a lock manager that resolves transaction ids
// against txns when it needs to wound a holder.
func NewLockManager(txns transactionLookup) *LockManager {
	return &LockManager{
		queues: make(map[RID]*lockRequestQueue),
		txns:   txns,
	}
}

func (lm *LockManager) queueFor(rid RID) *lockRequestQueue {
	q, ok := lm.queues[rid]
	if !ok {
		q = &lockRequestQueue{}
		q.cond = sync.NewCond(&lm.mu)
		lm.queues[rid] = q
	}
	return q
}

// findRequest returns txn's own request in the queue, if any.
func findRequest(q *lockRequestQueue, txnID int64) *lockRequest {
	for _, r := range q.requests {
		if r.txnID == txnID {
			return r
		}
	}
	return nil
}

// LockShared acquires a shared lock on rid for txn, blocking until it is
// granted, wounding younger exclusive holders, or returns an error if the
// request is illegal or the transaction is/becomes aborted.
func (lm *LockManager) LockShared(txn *Transaction, rid RID) error {
	if txn.State() == Aborted {
		return ErrTransactionAborted
	}
	if txn.Isolation == ReadUncommitted {
		txn.SetState(Aborted)
		return ErrSharedOnReadUncommitted
	}
	if txn.State() == Shrinking {
		txn.SetState(Aborted)
		return ErrLockOnShrinking
	}
	if txn.HoldsShared(rid) || txn.HoldsExclusive(rid) {
		return nil
	}

	lm.mu.Lock()
	defer lm.mu.Unlock()
	q := lm.queueFor(rid)

recheck:
	olderHolderExists := false
	for i := 0; i < len(q.requests); i++ {
		req := q.requests[i]
		if !req.granted || req.mode != ExclusiveLock {
			continue
		}
		if req.txnID > txn.TxnID {
			lm.woundLocked(q, i)
			i--
			continue
		}
		olderHolderExists = true
	}
	if olderHolderExists {
		q.cond.Wait()
		if txn.State() == Aborted {
			return ErrTransactionAborted
		}
		goto recheck
	}

	q.requests = append(q.requests, &lockRequest{txnID: txn.TxnID, mode: SharedLock, granted: true})
	txn.addSharedLock(rid)
	return nil
}

// LockExclusive acquires an exclusive lock on rid for txn. Unlike
// LockShared/LockUpgrade, it never waits: if any granted holder (shared or
// exclusive) is older than txn, txn aborts itself immediately and fails —
// the older transaction always wins. Younger granted holders are wounded as
// usual.
func (lm *LockManager) LockExclusive(txn *Transaction, rid RID) error {
	if txn.State() == Aborted {
		return ErrTransactionAborted
	}
	if txn.State() == Shrinking {
		txn.SetState(Aborted)
		return ErrLockOnShrinking
	}
	if txn.HoldsExclusive(rid) {
		return nil
	}

	lm.mu.Lock()
	defer lm.mu.Unlock()
	q := lm.queueFor(rid)

	for i := 0; i < len(q.requests); i++ {
		req := q.requests[i]
		if !req.granted {
			continue
		}
		if req.txnID > txn.TxnID {
			lm.woundLocked(q, i)
			i--
			continue
		}
		txn.SetState(Aborted)
		return ErrTransactionAborted
	}

	q.requests = append(q.requests, &lockRequest{txnID: txn.TxnID, mode: ExclusiveLock, granted: true})
	txn.addExclusiveLock(rid)
	return nil
}

// LockUpgrade promotes txn's existing shared lock on rid to exclusive.
// Only one transaction may upgrade a given record at a time; a concurrent
// second upgrader is rejected rather than queued, matching the original
// lock manager's single `upgrading_` flag per queue.
func (lm *LockManager) LockUpgrade(txn *Transaction, rid RID) error {
	if txn.State() == Aborted {
		return ErrTransactionAborted
	}
	if !txn.HoldsShared(rid) {
		return ErrNotLocked
	}
	if txn.HoldsExclusive(rid) {
		return nil
	}

	lm.mu.Lock()
	defer lm.mu.Unlock()
	q := lm.queueFor(rid)
	if q.upgrading {
		return ErrUpgradeConflict
	}
	q.upgrading = true
	defer func() { q.upgrading = false }()

recheck:
	olderHolderExists := false
	for i := 0; i < len(q.requests); i++ {
		req := q.requests[i]
		if !req.granted || req.txnID == txn.TxnID {
			continue
		}
		if req.txnID > txn.TxnID {
			lm.woundLocked(q, i)
			i--
			continue
		}
		olderHolderExists = true
	}
	if olderHolderExists {
		q.cond.Wait()
		if txn.State() == Aborted {
			return ErrTransactionAborted
		}
		goto recheck
	}

	own := findRequest(q, txn.TxnID)
	if own == nil {
		return ErrNotLocked
	}
	own.mode = ExclusiveLock
	txn.promoteToExclusive(rid)
	return nil
}

// Unlock releases txn's lock on rid. Under REPEATABLE_READ a transaction
// that unlocks while GROWING moves to SHRINKING, since REPEATABLE_READ
// requires every lock acquisition to happen before the first release.
// Under READ_COMMITTED the transaction may keep acquiring locks after an
// unlock, so it stays GROWING.
func (lm *LockManager) Unlock(txn *Transaction, rid RID) error {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	q, ok := lm.queues[rid]
	if !ok {
		return ErrNotLocked
	}
	idx := -1
	for i, r := range q.requests {
		if r.txnID == txn.TxnID {
			idx = i
			break
		}
	}
	if idx == -1 {
		return ErrNotLocked
	}
	q.requests = append(q.requests[:idx], q.requests[idx+1:]...)
	txn.removeLock(rid)

	if txn.State() == Growing && txn.Isolation == RepeatableRead {
		txn.SetState(Shrinking)
	}
	q.cond.Broadcast()
	return nil
}

// woundLocked forcibly aborts the transaction holding q.requests[i] and
// erases its request. Caller must hold lm.mu.
func (lm *LockManager) woundLocked(q *lockRequestQueue, i int) {
	victimID := q.requests[i].txnID
	q.requests = append(q.requests[:i], q.requests[i+1:]...)
	if victim, ok := lm.txns.GetTransaction(victimID); ok {
		victim.SetState(Aborted)
	}
	q.cond.Broadcast()
}
