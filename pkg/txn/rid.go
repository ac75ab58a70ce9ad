// Package txn implements record-level shared/exclusive locking with
// wound-wait deadlock prevention, and the two-phase-locking transaction
// state machine built on top of it.
package txn

import "coredb/pkg/storage"

// RID identifies a single record: the page it lives on and its slot
// within that page.
type RID struct {
	PageID  storage.PageID
	SlotNum uint32
}
