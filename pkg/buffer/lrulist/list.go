// Package lrulist implements the intrusive doubly-linked list the LRU
// replacer tracks unpinned frames with. It is specialized to frame ids
// instead of carrying an interface{} payload, since it has exactly one
// caller.
package lrulist

// List is a doubly-linked list of frame ids, ordered from least to most
// recently unpinned: PeekHead returns the LRU candidate.
type List struct {
	head *Link
	tail *Link
}

// New returns an empty list.
func New() *List {
	return &List{}
}

// PeekHead returns the head link, or nil if the list is empty.
func (l *List) PeekHead() *Link {
	return l.head
}

// PushTail appends frameID to the end of the list and returns its link.
func (l *List) PushTail(frameID int) *Link {
	link := &Link{list: l, prev: l.tail, frameID: frameID}
	if l.tail != nil {
		l.tail.next = link
	}
	l.tail = link
	if l.head == nil {
		l.head = link
	}
	return link
}

// Find returns the first link holding frameID, or nil.
func (l *List) Find(frameID int) *Link {
	for cur := l.head; cur != nil; cur = cur.next {
		if cur.frameID == frameID {
			return cur
		}
	}
	return nil
}

// Link is one node of a List.
type Link struct {
	list    *List
	prev    *Link
	next    *Link
	frameID int
}

// FrameID returns the frame id this link holds.
func (link *Link) FrameID() int {
	return link.frameID
}

// PopSelf removes link from its list.
func (link *Link) PopSelf() {
	if link.prev == nil {
		link.list.head = link.next
	} else {
		link.prev.next = link.next
	}
	if link.next == nil {
		link.list.tail = link.prev
	} else {
		link.next.prev = link.prev
	}
	link.list, link.prev, link.next = nil, nil, nil
}
