package message

import (
	"bytes"
	"crypto/ecdsa"
	"errors"

	"github.com/ugorji/go/codec"

	"github.com/overnet/overnet/src/crypto"
	"github.com/overnet/overnet/src/crypto/keys"
	"github.com/overnet/overnet/src/xorname"
)

// Wire envelope types.
const (
	// WireIdentify frames an identity handshake sent right after a
	// connection is established, and re-announced on close-group changes.
	WireIdentify uint8 = iota
	// WireRelay frames a routed Message.
	WireRelay
	// WireConnect frames a connect request: the requester's identity routed
	// toward the name of a contact it wants to reach. The target answers
	// the requester's advertised address with an identity handshake.
	WireConnect
)

// ErrEmptyEnvelope is returned when decoding an envelope that carries
// neither an Identify nor a Message.
var ErrEmptyEnvelope = errors.New("envelope carries no content")

// Identify is the signed identity a node presents to its neighbors. Peers
// only admit a contact to their routing table after verifying it.
type Identify struct {
	PubKeyHex string
	NetAddr   string
	Moniker   string
	Sig       string
}

// NewIdentify builds and signs an Identify for the given key.
func NewIdentify(priv *ecdsa.PrivateKey, netAddr, moniker string) (*Identify, error) {
	id := &Identify{
		PubKeyHex: keys.PublicKeyHex(&priv.PublicKey),
		NetAddr:   netAddr,
		Moniker:   moniker,
	}
	sig, err := keys.SignEncoded(priv, id.digest())
	if err != nil {
		return nil, err
	}
	id.Sig = sig
	return id, nil
}

func (id *Identify) digest() []byte {
	return crypto.SHA256Concat(
		[]byte(id.PubKeyHex),
		[]byte(id.NetAddr),
		[]byte(id.Moniker),
	)
}

// Verify checks the identity signature and returns the name derived from the
// embedded public key.
func (id *Identify) Verify() (xorname.XorName, error) {
	pub := keys.ParsePublicKeyHex(id.PubKeyHex)
	if pub == nil {
		return xorname.XorName{}, ErrBadSignature
	}
	if !keys.VerifyEncoded(pub, id.digest(), id.Sig) {
		return xorname.XorName{}, ErrBadSignature
	}
	return keys.PublicKeyName(keys.FromPublicKey(pub)), nil
}

// Envelope is the unit of transport framing: an identity handshake, a connect
// request, or a relayed message.
type Envelope struct {
	Type     uint8
	Identify *Identify `codec:",omitempty"`
	Message  *Message  `codec:",omitempty"`

	// Target is the wanted contact's name; only set for WireConnect.
	Target xorname.XorName `codec:",omitempty"`
}

// WrapIdentify frames an Identify.
func WrapIdentify(id *Identify) *Envelope {
	return &Envelope{Type: WireIdentify, Identify: id}
}

// WrapMessage frames a Message.
func WrapMessage(m *Message) *Envelope {
	return &Envelope{Type: WireRelay, Message: m}
}

// WrapConnect frames a connect request for the contact named target.
func WrapConnect(id *Identify, target xorname.XorName) *Envelope {
	return &Envelope{Type: WireConnect, Identify: id, Target: target}
}

// Marshal - json encoding of Envelope.
func (e *Envelope) Marshal() ([]byte, error) {
	b := new(bytes.Buffer)
	jh := new(codec.JsonHandle)
	jh.Canonical = true
	enc := codec.NewEncoder(b, jh)

	if err := enc.Encode(e); err != nil {
		return nil, err
	}

	return b.Bytes(), nil
}

// Unmarshal - json decoding of Envelope.
func (e *Envelope) Unmarshal(data []byte) error {
	b := bytes.NewBuffer(data)
	jh := new(codec.JsonHandle)
	jh.Canonical = true
	dec := codec.NewDecoder(b, jh)

	if err := dec.Decode(e); err != nil {
		return err
	}

	switch e.Type {
	case WireIdentify, WireConnect:
		if e.Identify == nil {
			return ErrEmptyEnvelope
		}
	case WireRelay:
		if e.Message == nil {
			return ErrEmptyEnvelope
		}
	}
	return nil
}
