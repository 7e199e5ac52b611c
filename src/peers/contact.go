package peers

import (
	"crypto/ecdsa"
	"encoding/hex"
	"strings"
	"time"

	"github.com/overnet/overnet/src/crypto/keys"
	"github.com/overnet/overnet/src/xorname"
)

// Contact is a peer the local node can reach directly. It binds a network
// name to a public key and a transport address. Contacts are created when a
// connection is established and identified, and removed when the connection
// is lost or the contact is evicted from the routing table.
type Contact struct {
	NetAddr   string
	PubKeyHex string
	Moniker   string `json:",omitempty"`

	name      xorname.XorName
	hasName   bool
	firstSeen time.Time
}

// NewContact creates a Contact from a hex encoded public key and a transport
// address.
func NewContact(pubKeyHex, netAddr, moniker string) *Contact {
	return &Contact{
		PubKeyHex: pubKeyHex,
		NetAddr:   netAddr,
		Moniker:   moniker,
		firstSeen: time.Now(),
	}
}

// NewContactWithName creates a Contact with an explicit name instead of
// deriving it from the public key. Callers are responsible for checking that
// the name matches the key; the relay engine does so when processing
// identify messages.
func NewContactWithName(name xorname.XorName, pubKeyHex, netAddr, moniker string) *Contact {
	contact := NewContact(pubKeyHex, netAddr, moniker)
	contact.name = name
	contact.hasName = true
	return contact
}

// Name returns the contact's network name, derived from its public key. The
// value is computed lazily and cached. The cache flag is explicit because the
// all-zero name is a legitimate value.
func (c *Contact) Name() xorname.XorName {
	if !c.hasName {
		c.name = keys.PublicKeyName(c.PubKeyBytes())
		c.hasName = true
	}
	return c.name
}

// PubKeyBytes returns the decoded bytes of the contact's public key.
func (c *Contact) PubKeyBytes() []byte {
	s := strings.TrimPrefix(strings.TrimPrefix(c.PubKeyHex, "0x"), "0X")
	res, _ := hex.DecodeString(strings.ToLower(s))
	return res
}

// PubKey returns the contact's ecdsa public key, or nil if the hex dump is
// not a valid curve point.
func (c *Contact) PubKey() *ecdsa.PublicKey {
	return keys.ParsePublicKeyHex(c.PubKeyHex)
}

// FirstSeen returns the time at which the Contact was created.
func (c *Contact) FirstSeen() time.Time {
	return c.firstSeen
}

// ExcludeContact returns the list of contacts with the contact bearing the
// given address removed, along with its index in the original list.
func ExcludeContact(contacts []*Contact, netAddr string) (int, []*Contact) {
	index := -1
	otherContacts := make([]*Contact, 0, len(contacts))
	for i, c := range contacts {
		if c.NetAddr != netAddr {
			otherContacts = append(otherContacts, c)
		} else {
			index = i
		}
	}
	return index, otherContacts
}
