package keys

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"encoding/hex"
	"strings"

	"github.com/overnet/overnet/src/crypto"
	"github.com/overnet/overnet/src/xorname"
)

// ToPublicKey is a wrapper around elliptic.Unmarshal which calls Curve() to
// determine which elliptic.Curve to use. The argument pub is expected to be
// the uncompressed form of a point on the curve, as returned by
// FromPublicKey. It returns nil if pub is not a valid point.
func ToPublicKey(pub []byte) *ecdsa.PublicKey {
	if len(pub) == 0 {
		return nil
	}
	x, y := elliptic.Unmarshal(Curve(), pub)
	if x == nil {
		return nil
	}
	return &ecdsa.PublicKey{Curve: Curve(), X: x, Y: y}
}

// FromPublicKey is a wrapper around elliptic.Marshal which calls Curve() to
// determine which elliptic.Curve to use. It outputs the point in uncompressed
// form.
func FromPublicKey(pub *ecdsa.PublicKey) []byte {
	if pub == nil || pub.X == nil || pub.Y == nil {
		return nil
	}
	return elliptic.Marshal(Curve(), pub.X, pub.Y)
}

// PublicKeyHex returns the hexadecimal representation of the uncompressed
// form of the public key, prefixed with 0x.
func PublicKeyHex(pub *ecdsa.PublicKey) string {
	return "0x" + strings.ToUpper(hex.EncodeToString(FromPublicKey(pub)))
}

// ParsePublicKeyHex decodes a public key from the representation produced by
// PublicKeyHex.
func ParsePublicKeyHex(s string) *ecdsa.PublicKey {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	raw, err := hex.DecodeString(strings.ToLower(s))
	if err != nil {
		return nil
	}
	return ToPublicKey(raw)
}

// PublicKeyName derives the network name of a node from the uncompressed form
// of its public key. The name is the SHA256 hash of the key, which gives a
// uniform distribution over the address space and binds a name to exactly one
// key.
func PublicKeyName(pubBytes []byte) xorname.XorName {
	name, _ := xorname.FromBytes(crypto.SHA256(pubBytes))
	return name
}
