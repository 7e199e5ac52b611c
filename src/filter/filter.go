package filter

import (
	"container/list"
	"time"
)

// Filter is a bounded dedup cache over message identities. A message seen
// once is suppressed on every later sighting until it either ages out or is
// displaced by newer traffic.
//
// Filter is not safe for concurrent use; the relay loop owns it.
type Filter struct {
	capacity int
	ttl      time.Duration

	// order holds identities from most to least recently marked. Lookups go
	// through entries.
	order   *list.List
	entries map[string]*list.Element
}

type entry struct {
	id       string
	expireAt time.Time
}

// New returns a filter holding at most capacity identities, each for at most
// ttl after it was first marked.
func New(capacity int, ttl time.Duration) *Filter {
	return &Filter{
		capacity: capacity,
		ttl:      ttl,
		order:    list.New(),
		entries:  make(map[string]*list.Element),
	}
}

// HasSeen reports whether id is currently tracked. Expired entries count as
// unseen even before a sweep collects them.
func (f *Filter) HasSeen(id string, now time.Time) bool {
	elem, ok := f.entries[id]
	if !ok {
		return false
	}
	if now.After(elem.Value.(*entry).expireAt) {
		f.remove(elem)
		return false
	}
	return true
}

// MarkSeen records id. Marking an already tracked identity refreshes its
// recency but not its expiry; marking is idempotent. When the filter is full
// the least recently marked identity is dropped.
func (f *Filter) MarkSeen(id string, now time.Time) {
	if elem, ok := f.entries[id]; ok {
		f.order.MoveToFront(elem)
		return
	}

	for f.order.Len() >= f.capacity {
		f.remove(f.order.Back())
	}

	f.entries[id] = f.order.PushFront(&entry{
		id:       id,
		expireAt: now.Add(f.ttl),
	})
}

// Sweep drops every entry whose ttl has elapsed and returns how many were
// dropped.
func (f *Filter) Sweep(now time.Time) int {
	dropped := 0
	for elem := f.order.Back(); elem != nil; {
		prev := elem.Prev()
		if now.After(elem.Value.(*entry).expireAt) {
			f.remove(elem)
			dropped++
		}
		elem = prev
	}
	return dropped
}

// Len returns the number of tracked identities.
func (f *Filter) Len() int {
	return f.order.Len()
}

func (f *Filter) remove(elem *list.Element) {
	delete(f.entries, elem.Value.(*entry).id)
	f.order.Remove(elem)
}
