package routing

import (
	"errors"
	"sort"

	"github.com/overnet/overnet/src/peers"
	"github.com/overnet/overnet/src/xorname"
)

// Outcome is the result of an AddContact call.
type Outcome uint8

const (
	// Added means the contact was inserted in the table.
	Added Outcome = iota
	// AlreadyPresent means a contact with the same name is already tracked.
	AlreadyPresent
	// Rejected means the contact was refused; the reason is in
	// AddResult.Reason.
	Rejected
)

// String ...
func (o Outcome) String() string {
	switch o {
	case Added:
		return "Added"
	case AlreadyPresent:
		return "AlreadyPresent"
	case Rejected:
		return "Rejected"
	default:
		return "Unknown"
	}
}

// Rejection reasons.
var (
	ErrOwnName    = errors.New("contact bears the local node's name")
	ErrBucketFull = errors.New("bucket full and contact not closer than its furthest member")
)

// AddResult describes the effect of an AddContact call. Evicted is set when
// inserting the new contact displaced a further one from a full bucket.
type AddResult struct {
	Outcome Outcome
	Reason  error
	Evicted *peers.Contact
}

// Table is the routing table. It owns all buckets plus the local name. It is
// not safe for concurrent use; the relay engine serializes all access through
// its event loop.
type Table struct {
	localName xorname.XorName
	groupSize int

	buckets [xorname.Bits][]*peers.Contact
	byName  map[xorname.XorName]*peers.Contact
	byAddr  map[string]*peers.Contact
}

// NewTable creates an empty routing table centred on localName. groupSize is
// both the bucket capacity K and the close-group size G.
func NewTable(localName xorname.XorName, groupSize int) *Table {
	return &Table{
		localName: localName,
		groupSize: groupSize,
		byName:    make(map[xorname.XorName]*peers.Contact),
		byAddr:    make(map[string]*peers.Contact),
	}
}

// LocalName returns the name the table is centred on.
func (t *Table) LocalName() xorname.XorName {
	return t.localName
}

// GroupSize returns the close-group size G.
func (t *Table) GroupSize() int {
	return t.groupSize
}

// Len returns the number of contacts in the table.
func (t *Table) Len() int {
	return len(t.byName)
}

// AddContact inserts a contact in the bucket matching its common prefix with
// the local name. A full bucket rejects contacts that are not closer to the
// local name than the bucket's furthest member, which stops distant peers
// from flooding the table under churn. Contacts that would join the local
// close group are always accepted, growing the bucket if necessary.
func (t *Table) AddContact(contact *peers.Contact) AddResult {
	name := contact.Name()

	if name == t.localName {
		return AddResult{Outcome: Rejected, Reason: ErrOwnName}
	}

	if _, ok := t.byName[name]; ok {
		return AddResult{Outcome: AlreadyPresent}
	}

	idx := xorname.CommonPrefixLen(t.localName, name)
	bucket := t.buckets[idx]

	if len(bucket) < t.groupSize || t.inCloseRange(name) {
		t.insert(idx, contact)
		return AddResult{Outcome: Added}
	}

	// Bucket full: the furthest member is last since buckets are kept
	// ordered by distance from the local name.
	worst := bucket[len(bucket)-1]
	if !xorname.CloserToTarget(t.localName, name, worst.Name()) {
		return AddResult{Outcome: Rejected, Reason: ErrBucketFull}
	}

	t.unlink(worst)
	t.insert(idx, contact)
	return AddResult{Outcome: Added, Evicted: worst}
}

// RemoveContact removes the contact with the given name. It returns false if
// no such contact is tracked. Emptied buckets simply stay empty.
func (t *Table) RemoveContact(name xorname.XorName) bool {
	contact, ok := t.byName[name]
	if !ok {
		return false
	}
	t.unlink(contact)
	return true
}

// Contact returns the tracked contact with the given name, or nil.
func (t *Table) Contact(name xorname.XorName) *peers.Contact {
	return t.byName[name]
}

// ContactByAddr returns the tracked contact with the given transport address,
// or nil.
func (t *Table) ContactByAddr(netAddr string) *peers.Contact {
	return t.byAddr[netAddr]
}

// CloseGroup returns the names of up to G contacts closest to target,
// strictly ordered by increasing distance. The result is deterministic given
// the current table state.
func (t *Table) CloseGroup(target xorname.XorName) []xorname.XorName {
	contacts := t.CloseGroupContacts(target)
	names := make([]xorname.XorName, len(contacts))
	for i, c := range contacts {
		names[i] = c.Name()
	}
	return names
}

// CloseGroupContacts is CloseGroup returning the full contacts.
func (t *Table) CloseGroupContacts(target xorname.XorName) []*peers.Contact {
	sorted := t.sortedContacts(target)
	if len(sorted) > t.groupSize {
		sorted = sorted[:t.groupSize]
	}
	return sorted
}

// IsInCloseGroup reports whether the local node is one of the G nodes closest
// to name, as far as this table can tell. It decides whether the local node
// must participate in signing group messages addressed near name.
func (t *Table) IsInCloseGroup(name xorname.XorName) bool {
	sorted := t.sortedContacts(name)
	if len(sorted) < t.groupSize {
		return true
	}
	return xorname.CloserToTarget(name, t.localName, sorted[t.groupSize-1].Name())
}

// NextHopDirect returns the single contact strictly closer to destination
// than the local node, or nil if no such contact exists, in which case the
// local node is the final hop.
func (t *Table) NextHopDirect(destination xorname.XorName) *peers.Contact {
	var best *peers.Contact
	for _, c := range t.byName {
		if !xorname.CloserToTarget(destination, c.Name(), t.localName) {
			continue
		}
		if best == nil || xorname.CloserToTarget(destination, c.Name(), best.Name()) {
			best = c
		}
	}
	return best
}

// NextHopsGroup returns the full close-group membership around the target;
// each member relays a group message independently.
func (t *Table) NextHopsGroup(target xorname.XorName) []*peers.Contact {
	return t.CloseGroupContacts(target)
}

// WantContact reports whether the table would accept a contact with the
// given name. It is used for node harvesting: connect requests are only sent
// to names the table has room for.
func (t *Table) WantContact(name xorname.XorName) bool {
	if name == t.localName {
		return false
	}
	if _, ok := t.byName[name]; ok {
		return false
	}

	idx := xorname.CommonPrefixLen(t.localName, name)
	bucket := t.buckets[idx]
	if len(bucket) < t.groupSize || t.inCloseRange(name) {
		return true
	}
	worst := bucket[len(bucket)-1]
	return xorname.CloserToTarget(t.localName, name, worst.Name())
}

// Contacts returns all tracked contacts ordered by increasing distance from
// the local name.
func (t *Table) Contacts() []*peers.Contact {
	return t.sortedContacts(t.localName)
}

// inCloseRange reports whether name would belong to the local close group.
func (t *Table) inCloseRange(name xorname.XorName) bool {
	sorted := t.sortedContacts(t.localName)
	if len(sorted) < t.groupSize {
		return true
	}
	return xorname.CloserToTarget(t.localName, name, sorted[t.groupSize-1].Name())
}

func (t *Table) insert(idx int, contact *peers.Contact) {
	bucket := t.buckets[idx]
	name := contact.Name()

	pos := sort.Search(len(bucket), func(i int) bool {
		return xorname.CloserToTarget(t.localName, name, bucket[i].Name())
	})

	bucket = append(bucket, nil)
	copy(bucket[pos+1:], bucket[pos:])
	bucket[pos] = contact

	t.buckets[idx] = bucket
	t.byName[name] = contact
	t.byAddr[contact.NetAddr] = contact
}

func (t *Table) unlink(contact *peers.Contact) {
	name := contact.Name()
	idx := xorname.CommonPrefixLen(t.localName, name)

	bucket := t.buckets[idx]
	for i, c := range bucket {
		if c.Name() == name {
			t.buckets[idx] = append(bucket[:i], bucket[i+1:]...)
			break
		}
	}

	delete(t.byName, name)
	delete(t.byAddr, contact.NetAddr)
}

func (t *Table) sortedContacts(target xorname.XorName) []*peers.Contact {
	contacts := make([]*peers.Contact, 0, len(t.byName))
	for _, c := range t.byName {
		contacts = append(contacts, c)
	}
	sort.Slice(contacts, func(i, j int) bool {
		return xorname.CloserToTarget(target, contacts[i].Name(), contacts[j].Name())
	})
	return contacts
}
