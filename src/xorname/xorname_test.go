package xorname

import (
	"math/big"
	"testing"
)

func nameWithFirstByte(b byte) XorName {
	var n XorName
	n[0] = b
	return n
}

func TestDistance(t *testing.T) {
	a := nameWithFirstByte(0x00)
	b := nameWithFirstByte(0x80)

	d := Distance(a, b)

	expected := new(big.Int).Lsh(big.NewInt(1), Bits-1)
	if d.Cmp(expected) != 0 {
		t.Fatalf("Distance should be 2^255. Got %v", d)
	}

	if Distance(a, a).Sign() != 0 {
		t.Fatal("Distance to self should be 0")
	}

	if Distance(a, b).Cmp(Distance(b, a)) != 0 {
		t.Fatal("Distance should be symmetric")
	}
}

func TestCloserToTarget(t *testing.T) {
	target := nameWithFirstByte(0x00)
	near := nameWithFirstByte(0x01)
	far := nameWithFirstByte(0xf0)

	if !CloserToTarget(target, near, far) {
		t.Fatal("near should be closer to target than far")
	}

	if CloserToTarget(target, far, near) {
		t.Fatal("far should not be closer to target than near")
	}

	// Strict: a name is not closer than itself.
	if CloserToTarget(target, near, near) {
		t.Fatal("a name should not be strictly closer than itself")
	}
}

func TestCommonPrefixLen(t *testing.T) {
	a := nameWithFirstByte(0x00)

	if l := CommonPrefixLen(a, a); l != Bits {
		t.Fatalf("prefix length with self should be %d. Got %d", Bits, l)
	}

	if l := CommonPrefixLen(a, nameWithFirstByte(0x80)); l != 0 {
		t.Fatalf("prefix length should be 0. Got %d", l)
	}

	if l := CommonPrefixLen(a, nameWithFirstByte(0x01)); l != 7 {
		t.Fatalf("prefix length should be 7. Got %d", l)
	}

	var b XorName
	b[5] = 0x10
	if l := CommonPrefixLen(a, b); l != 43 {
		t.Fatalf("prefix length should be 43. Got %d", l)
	}
}

func TestHexRoundTrip(t *testing.T) {
	n := Random()

	decoded, err := FromHex(n.Hex())
	if err != nil {
		t.Fatal(err)
	}

	if decoded != n {
		t.Fatalf("hex round trip mismatch. %v != %v", decoded, n)
	}
}

func TestFromBytesRejectsBadLength(t *testing.T) {
	if _, err := FromBytes(make([]byte, Size-1)); err == nil {
		t.Fatal("FromBytes should reject short input")
	}
}
