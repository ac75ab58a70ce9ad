package txn

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// TransactionManager owns the registry of in-progress transactions and the
// lock manager they share. Transaction ids are assigned monotonically so
// wound-wait can compare "older" and "younger" by simple integer order.
type TransactionManager struct {
	mu           sync.RWMutex
	transactions map[int64]*Transaction
	nextTxnID    atomic.Int64
	lockManager  *LockManager
}

// NewTransactionManager returns a manager with its own wound-wait lock
// manager wired to this registry.
func NewTransactionManager() *TransactionManager {
	tm := &TransactionManager{transactions: make(map[int64]*Transaction)}
	tm.lockManager = NewLockManager(tm)
	return tm
}

// LockManager returns the manager's lock manager.
func (tm *TransactionManager) LockManager() *LockManager {
	return tm.lockManager
}

// Begin starts a new GROWING transaction for clientID under the given
// isolation level.
func (tm *TransactionManager) Begin(clientID uuid.UUID, isolation IsolationLevel) *Transaction {
	txnID := tm.nextTxnID.Add(1)
	txn := newTransaction(txnID, clientID, isolation)
	tm.mu.Lock()
	tm.transactions[txnID] = txn
	tm.mu.Unlock()
	return txn
}

// GetTransaction looks up a transaction by id. Used by the lock manager to
// resolve a holder it needs to wound.
func (tm *TransactionManager) GetTransaction(txnID int64) (*Transaction, bool) {
	tm.mu.RLock()
	defer tm.mu.RUnlock()
	txn, ok := tm.transactions[txnID]
	return txn, ok
}

// Commit releases every lock txn holds and marks it COMMITTED.
func (tm *TransactionManager) Commit(txn *Transaction) {
	for _, rid := range txn.LockedRIDs() {
		tm.lockManager.Unlock(txn, rid)
	}
	txn.SetState(Committed)
	tm.mu.Lock()
	delete(tm.transactions, txn.TxnID)
	tm.mu.Unlock()
}

// Abort releases every lock txn holds and marks it ABORTED. Safe to call
// on a transaction the lock manager has already wounded.
func (tm *TransactionManager) Abort(txn *Transaction) {
	for _, rid := range txn.LockedRIDs() {
		tm.lockManager.Unlock(txn, rid)
	}
	txn.SetState(Aborted)
	tm.mu.Lock()
	delete(tm.transactions, txn.TxnID)
	tm.mu.Unlock()
}
