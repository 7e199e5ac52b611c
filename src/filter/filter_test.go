package filter

import (
	"fmt"
	"testing"
	"time"
)

func TestMarkSeenIdempotent(t *testing.T) {
	now := time.Now()
	f := New(10, time.Minute)

	if f.HasSeen("a", now) {
		t.Fatal("fresh filter should not have seen anything")
	}

	f.MarkSeen("a", now)
	if !f.HasSeen("a", now) {
		t.Fatal("marked identity should be seen")
	}

	f.MarkSeen("a", now)
	f.MarkSeen("a", now)
	if f.Len() != 1 {
		t.Fatalf("remarking should not grow the filter. Got %d", f.Len())
	}
}

func TestCapacityEviction(t *testing.T) {
	now := time.Now()
	f := New(3, time.Minute)

	for i := 0; i < 3; i++ {
		f.MarkSeen(fmt.Sprintf("id-%d", i), now)
	}

	// Refresh id-0 so id-1 becomes the eviction candidate.
	f.MarkSeen("id-0", now)
	f.MarkSeen("id-3", now)

	if f.Len() != 3 {
		t.Fatalf("filter should hold exactly its capacity. Got %d", f.Len())
	}
	if f.HasSeen("id-1", now) {
		t.Fatal("least recently marked identity should have been dropped")
	}
	if !f.HasSeen("id-0", now) || !f.HasSeen("id-2", now) || !f.HasSeen("id-3", now) {
		t.Fatal("recent identities should survive eviction")
	}

	// A dropped identity is treated as brand new again, so a late copy of a
	// displaced message would be relayed a second time.
	f.MarkSeen("id-1", now)
	if !f.HasSeen("id-1", now) {
		t.Fatal("re-marking a dropped identity should track it again")
	}
}

func TestTTLExpiry(t *testing.T) {
	now := time.Now()
	f := New(10, time.Minute)

	f.MarkSeen("old", now)
	f.MarkSeen("new", now.Add(30*time.Second))

	// Refreshing recency does not extend the ttl.
	f.MarkSeen("old", now.Add(30*time.Second))

	later := now.Add(61 * time.Second)
	if f.HasSeen("old", later) {
		t.Fatal("expired identity should read as unseen")
	}
	if !f.HasSeen("new", later) {
		t.Fatal("unexpired identity should still be seen")
	}

	if dropped := f.Sweep(later); dropped != 0 {
		// HasSeen already collected the expired entry.
		t.Fatalf("expected nothing left to sweep. Got %d", dropped)
	}

	f.MarkSeen("another", now)
	if dropped := f.Sweep(later); dropped != 1 {
		t.Fatalf("sweep should drop 1 expired entry. Got %d", dropped)
	}
	if f.Len() != 1 {
		t.Fatalf("only the live entry should remain. Got %d", f.Len())
	}
}
