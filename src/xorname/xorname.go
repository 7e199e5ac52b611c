package xorname

import (
	"bytes"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"
)

// Size is the number of bytes in a XorName.
const Size = 32

// Bits is the number of bits in a XorName.
const Bits = Size * 8

// XorName is a fixed-length identifier in the network address space. It is
// both the name of a node and the coordinate used to compute distances
// between nodes. Names are immutable once assigned.
type XorName [Size]byte

// FromBytes builds a XorName from a raw 32-byte slice.
func FromBytes(b []byte) (XorName, error) {
	var n XorName
	if len(b) != Size {
		return n, fmt.Errorf("wrong length for name: got %d, want %d", len(b), Size)
	}
	copy(n[:], b)
	return n, nil
}

// FromHex parses the hexadecimal representation of a XorName.
func FromHex(s string) (XorName, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return XorName{}, err
	}
	return FromBytes(b)
}

// Random returns a uniformly random XorName. It is mainly used in tests and
// to pick refresh targets.
func Random() XorName {
	var n XorName
	if _, err := rand.Read(n[:]); err != nil {
		panic(fmt.Errorf("failed to read random bytes: %v", err))
	}
	return n
}

// Hex returns the full hexadecimal representation of the name.
func (n XorName) Hex() string {
	return hex.EncodeToString(n[:])
}

// String returns an abbreviated representation used in logs.
func (n XorName) String() string {
	return fmt.Sprintf("%02x%02x%02x..%02x%02x%02x",
		n[0], n[1], n[2], n[Size-3], n[Size-2], n[Size-1])
}

// IsZero reports whether the name is the zero value.
func (n XorName) IsZero() bool {
	return n == XorName{}
}

// Distance returns the XOR of a and b interpreted as a big-endian unsigned
// integer. A smaller distance means closer in the address space.
func Distance(a, b XorName) *big.Int {
	var d [Size]byte
	for i := 0; i < Size; i++ {
		d[i] = a[i] ^ b[i]
	}
	return new(big.Int).SetBytes(d[:])
}

// CloserToTarget returns true if a is strictly closer to target than b. Ties
// on distance are broken by raw byte comparison of the names, which induces a
// deterministic total order per target.
func CloserToTarget(target, a, b XorName) bool {
	for i := 0; i < Size; i++ {
		da := a[i] ^ target[i]
		db := b[i] ^ target[i]
		if da != db {
			return da < db
		}
	}
	return bytes.Compare(a[:], b[:]) < 0
}

// CommonPrefixLen returns the number of leading bits shared by a and b. It is
// the bucket index of b in a routing table centred on a.
func CommonPrefixLen(a, b XorName) int {
	for i := 0; i < Size; i++ {
		x := a[i] ^ b[i]
		if x != 0 {
			count := 0
			for x&0x80 == 0 {
				x <<= 1
				count++
			}
			return i*8 + count
		}
	}
	return Bits
}
