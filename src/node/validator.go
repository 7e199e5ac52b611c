package node

import (
	"crypto/ecdsa"

	"github.com/overnet/overnet/src/crypto/keys"
	"github.com/overnet/overnet/src/xorname"
)

//Validator holds the key material behind a node's overlay identity
type Validator struct {
	Key     *ecdsa.PrivateKey
	Moniker string

	name     xorname.XorName
	hasName  bool
	pubBytes []byte
	pubHex   string
}

//NewValidator is a factory method for a Validator
func NewValidator(key *ecdsa.PrivateKey, moniker string) *Validator {
	return &Validator{
		Key:     key,
		Moniker: moniker,
	}
}

//Name returns the overlay name derived from the validator's public key
func (v *Validator) Name() xorname.XorName {
	if !v.hasName {
		v.name = keys.PublicKeyName(v.PublicKeyBytes())
		v.hasName = true
	}
	return v.name
}

//PublicKeyBytes returns the validator's public key as a byte array
func (v *Validator) PublicKeyBytes() []byte {
	if len(v.pubBytes) == 0 {
		v.pubBytes = keys.FromPublicKey(&v.Key.PublicKey)
	}
	return v.pubBytes
}

//PublicKeyHex returns the validator's public key as a hex string
func (v *Validator) PublicKeyHex() string {
	if len(v.pubHex) == 0 {
		v.pubHex = keys.PublicKeyHex(&v.Key.PublicKey)
	}
	return v.pubHex
}
