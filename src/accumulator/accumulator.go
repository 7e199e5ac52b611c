package accumulator

import (
	"errors"
	"time"

	"github.com/overnet/overnet/src/message"
	"github.com/overnet/overnet/src/xorname"
)

// Status is the outcome of adding a message copy to the accumulator.
type Status uint8

const (
	// Pending means the message has not yet gathered a quorum of signatures.
	Pending Status = iota
	// Quorum means this copy pushed the message over its quorum. The entry is
	// consumed and the merged message returned.
	Quorum
	// Rejected means the copy contributed nothing: every signature on it was
	// invalid, from a non-member, or already counted and the entry is still
	// below quorum.
	Rejected
)

// String ...
func (s Status) String() string {
	switch s {
	case Pending:
		return "Pending"
	case Quorum:
		return "Quorum"
	case Rejected:
		return "Rejected"
	default:
		return "Unknown"
	}
}

// Rejection reasons.
var (
	ErrNotGroupMember = errors.New("signer is not a close-group member")
	ErrAlreadyCounted = errors.New("signer already contributed")
)

// Result reports what Add did with a message copy.
type Result struct {
	Status Status
	// Count is the number of distinct valid signers gathered so far.
	Count int
	// Reason is set when Status is Rejected.
	Reason error
	// Message is the merged message carrying all gathered signatures. Set
	// when Status is Quorum.
	Message *message.Message
}

type entry struct {
	msg      *message.Message
	signers  map[xorname.XorName]bool
	expireAt time.Time
}

// Accumulator gathers partial copies of group messages until a quorum of
// distinct close-group members has signed one. Each pending message lives for
// at most ttl after its first copy arrives.
//
// Accumulator is not safe for concurrent use; the relay loop owns it.
type Accumulator struct {
	quorum  int
	ttl     time.Duration
	entries map[string]*entry
}

// New returns an accumulator requiring quorum distinct signers.
func New(quorum int, ttl time.Duration) *Accumulator {
	return &Accumulator{
		quorum:  quorum,
		ttl:     ttl,
		entries: make(map[string]*entry),
	}
}

// Add merges the signatures of a message copy into its pending entry. The
// member predicate decides whether a signer belongs to the destination's
// close group. Signatures that fail verification, come from non-members, or
// duplicate an already counted signer are dropped without poisoning the
// entry. The source's own signature is exempt from the membership check: it
// is kept at the front of the merged message so the message still verifies
// against its claimed source downstream, but it only counts towards quorum
// when the source is itself a group member. On quorum the entry is consumed
// and the merged message returned.
func (a *Accumulator) Add(msg *message.Message, member func(xorname.XorName) bool, now time.Time) Result {
	id := msg.ID()

	e, ok := a.entries[id]
	if ok && now.After(e.expireAt) {
		delete(a.entries, id)
		ok = false
	}
	if !ok {
		e = &entry{
			msg:      message.New(msg.Kind, msg.Source, msg.Destination, msg.Payload),
			signers:  make(map[xorname.XorName]bool),
			expireAt: now.Add(a.ttl),
		}
	}

	digest := msg.Digest()

	merged := 0
	srcMerged := false
	var reason error
	for i := range msg.Signatures {
		sig := msg.Signatures[i]
		if sig.Signer == msg.Source && !e.signers[sig.Signer] {
			if e.msg.SignedBy(sig.Signer) {
				if reason == nil {
					reason = ErrAlreadyCounted
				}
				continue
			}
			if err := sig.Verify(digest); err != nil {
				if reason == nil {
					reason = err
				}
				continue
			}
			e.msg.Signatures = append([]message.Signature{sig}, e.msg.Signatures...)
			srcMerged = true
			if member(sig.Signer) {
				e.signers[sig.Signer] = true
				merged++
			}
			continue
		}
		if e.signers[sig.Signer] {
			if reason == nil {
				reason = ErrAlreadyCounted
			}
			continue
		}
		if !member(sig.Signer) {
			if reason == nil {
				reason = ErrNotGroupMember
			}
			continue
		}
		if err := sig.Verify(digest); err != nil {
			if reason == nil {
				reason = err
			}
			continue
		}
		e.signers[sig.Signer] = true
		e.msg.Signatures = append(e.msg.Signatures, sig)
		merged++
	}

	if merged == 0 && !srcMerged {
		if len(e.signers) == 0 && len(e.msg.Signatures) == 0 {
			// Nothing valid ever arrived for this identity; do not track it.
			return Result{Status: Rejected, Reason: reason}
		}
		a.entries[id] = e
		return Result{Status: Rejected, Count: len(e.signers), Reason: reason}
	}

	if len(e.signers) >= a.quorum {
		delete(a.entries, id)
		return Result{Status: Quorum, Count: len(e.signers), Message: e.msg}
	}

	a.entries[id] = e
	return Result{Status: Pending, Count: len(e.signers)}
}

// Sweep drops every pending entry whose ttl has elapsed and returns how many
// were dropped. An expired message never fires, however many signatures it
// gathered.
func (a *Accumulator) Sweep(now time.Time) int {
	dropped := 0
	for id, e := range a.entries {
		if now.After(e.expireAt) {
			delete(a.entries, id)
			dropped++
		}
	}
	return dropped
}

// Len returns the number of pending entries.
func (a *Accumulator) Len() int {
	return len(a.entries)
}
