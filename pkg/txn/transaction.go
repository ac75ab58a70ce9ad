package txn

import (
	"sync"

	"github.com/google/uuid"
)

// IsolationLevel governs which lock acquisitions are legal and when a
// transaction transitions to SHRINKING.
type IsolationLevel int

const (
	ReadUncommitted IsolationLevel = iota
	ReadCommitted
	RepeatableRead
)

// TransactionState is the two-phase-locking state machine: a transaction
// only acquires locks while GROWING, only releases them while SHRINKING
// (REPEATABLE_READ) or freely (READ_COMMITTED), and is terminal once
// COMMITTED or ABORTED.
type TransactionState int

const (
	Growing TransactionState = iota
	Shrinking
	Committed
	Aborted
)

// Transaction tracks one client session's in-progress work: its identity,
// isolation level, 2PL state, and the set of records it currently holds
// shared or exclusive locks on.
type Transaction struct {
	TxnID     int64
	ClientID  uuid.UUID
	Isolation IsolationLevel

	mu               sync.Mutex
	state            TransactionState
	sharedLockSet    map[RID]struct{}
	exclusiveLockSet map[RID]struct{}
}

// newTransaction constructs a GROWING transaction with the given id,
// client identity, and isolation level.
func newTransaction(txnID int64, clientID uuid.UUID, isolation IsolationLevel) *Transaction {
	return &Transaction{
		TxnID:            txnID,
		ClientID:         clientID,
		Isolation:        isolation,
		state:            Growing,
		sharedLockSet:    make(map[RID]struct{}),
		exclusiveLockSet: make(map[RID]struct{}),
	}
}

// State returns the transaction's current 2PL state.
func (t *Transaction) State() TransactionState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// SetState transitions the transaction's 2PL state.
func (t *Transaction) SetState(state TransactionState) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state = state
}

// HoldsShared reports whether the transaction currently holds a shared
// lock on rid.
func (t *Transaction) HoldsShared(rid RID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.sharedLockSet[rid]
	return ok
}

// HoldsExclusive reports whether the transaction currently holds an
// exclusive lock on rid.
func (t *Transaction) HoldsExclusive(rid RID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.exclusiveLockSet[rid]
	return ok
}

func (t *Transaction) addSharedLock(rid RID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sharedLockSet[rid] = struct{}{}
}

func (t *Transaction) addExclusiveLock(rid RID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.exclusiveLockSet[rid] = struct{}{}
}

func (t *Transaction) promoteToExclusive(rid RID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.sharedLockSet, rid)
	t.exclusiveLockSet[rid] = struct{}{}
}

func (t *Transaction) removeLock(rid RID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.sharedLockSet, rid)
	delete(t.exclusiveLockSet, rid)
}

// LockedRIDs returns every record currently locked by the transaction,
// shared or exclusive.
func (t *Transaction) LockedRIDs() []RID {
	t.mu.Lock()
	defer t.mu.Unlock()
	rids := make([]RID, 0, len(t.sharedLockSet)+len(t.exclusiveLockSet))
	for rid := range t.sharedLockSet {
		rids = append(rids, rid)
	}
	for rid := range t.exclusiveLockSet {
		rids = append(rids, rid)
	}
	return rids
}
