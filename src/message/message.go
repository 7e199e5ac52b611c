package message

import (
	"crypto/ecdsa"
	"encoding/hex"
	"errors"

	"github.com/overnet/overnet/src/crypto"
	"github.com/overnet/overnet/src/crypto/keys"
	"github.com/overnet/overnet/src/xorname"
)

// Kind discriminates how a message is routed and authenticated.
type Kind uint8

const (
	// Direct messages travel to a single destination node and carry one
	// signature from their source.
	Direct Kind = iota
	// Group messages are addressed to the close group of a target name and
	// only become actionable after a quorum of that group has signed them.
	Group
)

// String ...
func (k Kind) String() string {
	switch k {
	case Direct:
		return "Direct"
	case Group:
		return "Group"
	default:
		return "Unknown"
	}
}

// Errors returned when validating signatures.
var (
	ErrNoSignature     = errors.New("message carries no signature")
	ErrBadSignature    = errors.New("signature verification failed")
	ErrNameKeyMismatch = errors.New("signer name does not match public key")
	ErrWrongSigner     = errors.New("signature is not from the claimed source")
)

// Signature is one signer's endorsement of a message. The public key is
// embedded so that any node can check both the signature and the binding
// between the signer's name and its key.
type Signature struct {
	Signer    xorname.XorName
	PubKeyHex string
	Sig       string
}

// Verify checks the signature against the given digest. It fails if the
// embedded key does not hash to the signer's name, or if the cryptographic
// check fails.
func (s *Signature) Verify(digest []byte) error {
	pub := keys.ParsePublicKeyHex(s.PubKeyHex)
	if pub == nil {
		return ErrBadSignature
	}
	if keys.PublicKeyName(keys.FromPublicKey(pub)) != s.Signer {
		return ErrNameKeyMismatch
	}
	if !keys.VerifyEncoded(pub, digest, s.Sig) {
		return ErrBadSignature
	}
	return nil
}

// Message is a routed overlay message. Payload is opaque to the routing
// layer.
type Message struct {
	Kind        Kind
	Source      xorname.XorName
	Destination xorname.XorName
	Payload     []byte
	Signatures  []Signature
}

// New builds an unsigned message.
func New(kind Kind, source, destination xorname.XorName, payload []byte) *Message {
	return &Message{
		Kind:        kind,
		Source:      source,
		Destination: destination,
		Payload:     payload,
	}
}

// Digest returns the content identity of the message: a hash over kind,
// source, destination, and payload. Signatures are excluded so that all
// partial copies of the same group message share an identity.
func (m *Message) Digest() []byte {
	return crypto.SHA256Concat(
		[]byte{byte(m.Kind)},
		m.Source[:],
		m.Destination[:],
		m.Payload,
	)
}

// ID returns the hexadecimal form of the message digest. It keys the message
// filter and the group accumulator.
func (m *Message) ID() string {
	return hex.EncodeToString(m.Digest())
}

// Sign appends the caller's signature over the message digest. It refuses to
// double-sign.
func (m *Message) Sign(priv *ecdsa.PrivateKey) error {
	pubBytes := keys.FromPublicKey(&priv.PublicKey)
	signer := keys.PublicKeyName(pubBytes)

	if m.SignedBy(signer) {
		return nil
	}

	sig, err := keys.SignEncoded(priv, m.Digest())
	if err != nil {
		return err
	}

	m.Signatures = append(m.Signatures, Signature{
		Signer:    signer,
		PubKeyHex: keys.PublicKeyHex(&priv.PublicKey),
		Sig:       sig,
	})
	return nil
}

// SignedBy reports whether the message already carries a signature from the
// given name.
func (m *Message) SignedBy(name xorname.XorName) bool {
	for _, s := range m.Signatures {
		if s.Signer == name {
			return true
		}
	}
	return false
}

// VerifySource checks that a Direct message carries a valid signature from
// its claimed source.
func (m *Message) VerifySource() error {
	if len(m.Signatures) == 0 {
		return ErrNoSignature
	}
	sig := m.Signatures[0]
	if sig.Signer != m.Source {
		return ErrWrongSigner
	}
	return sig.Verify(m.Digest())
}
