package node

import (
	"crypto/ecdsa"
	"testing"
	"time"

	"github.com/overnet/overnet/src/crypto/keys"
	"github.com/overnet/overnet/src/message"
	"github.com/overnet/overnet/src/proxy/dummy"
	"github.com/overnet/overnet/src/xorname"
)

func newTestCore(t *testing.T, key *ecdsa.PrivateKey, addr string) (*Core, *Validator, *dummy.DummyClient) {
	if key == nil {
		var err error
		key, err = keys.GenerateECDSAKey()
		if err != nil {
			t.Fatal(err)
		}
	}
	validator := NewValidator(key, "")

	conf := TestConfig(t)
	client := dummy.NewDummyClient(conf.Logger)

	core, err := NewCore(validator, conf, addr, client, conf.Logger)
	if err != nil {
		t.Fatal(err)
	}
	return core, validator, client
}

func genKey(t *testing.T) *ecdsa.PrivateKey {
	key, err := keys.GenerateECDSAKey()
	if err != nil {
		t.Fatal(err)
	}
	return key
}

func keyName(key *ecdsa.PrivateKey) xorname.XorName {
	return keys.PublicKeyName(keys.FromPublicKey(&key.PublicKey))
}

// admit runs an identity handshake so the peer lands in the core's table.
func admit(t *testing.T, core *Core, key *ecdsa.PrivateKey, addr string, now time.Time) {
	t.Helper()
	id, err := message.NewIdentify(key, addr, "")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := core.HandleEnvelope(addr, message.WrapIdentify(id), now); err != nil {
		t.Fatal(err)
	}
}

func TestForgedCopyDoesNotSuppressValid(t *testing.T) {
	now := time.Now()
	core, validator, client := newTestCore(t, nil, "local-addr")

	peerKey := genKey(t)
	admit(t, core, peerKey, "peer-addr", now)

	valid := message.New(message.Direct, keyName(peerKey), validator.Name(), []byte("payload"))
	if err := valid.Sign(peerKey); err != nil {
		t.Fatal(err)
	}

	// Same identity, garbage signature, arriving first.
	forged := message.New(valid.Kind, valid.Source, valid.Destination, valid.Payload)
	forged.Signatures = []message.Signature{{
		Signer:    valid.Source,
		PubKeyHex: valid.Signatures[0].PubKeyHex,
		Sig:       "1|2",
	}}

	if _, err := core.HandleEnvelope("peer-addr", message.WrapMessage(forged), now); err == nil {
		t.Fatal("forged copy should be rejected")
	}

	// The forged copy must not have poisoned the filter.
	if _, err := core.HandleEnvelope("peer-addr", message.WrapMessage(valid), now); err != nil {
		t.Fatal(err)
	}
	if len(client.State().Delivered()) != 1 {
		t.Fatal("valid message should be delivered after a forged predecessor")
	}
}

func TestHarvestEmitsConnectRequest(t *testing.T) {
	now := time.Now()

	// The relay must sit between the local node and the stranger so the
	// connect request has a next hop.
	var localKey, relayKey, strangerKey *ecdsa.PrivateKey
	for {
		localKey, relayKey, strangerKey = genKey(t), genKey(t), genKey(t)
		if xorname.CloserToTarget(keyName(strangerKey), keyName(relayKey), keyName(localKey)) {
			break
		}
	}

	core, validator, _ := newTestCore(t, localKey, "local-addr")
	admit(t, core, relayKey, "relay-addr", now)

	// A message from an unknown signer arrives through the known relay.
	strangerName := keyName(strangerKey)
	msg := message.New(message.Direct, strangerName, validator.Name(), []byte("hello"))
	if err := msg.Sign(strangerKey); err != nil {
		t.Fatal(err)
	}

	out, err := core.HandleEnvelope("relay-addr", message.WrapMessage(msg), now)
	if err != nil {
		t.Fatal(err)
	}

	var connect *Outbound
	for i := range out {
		if out[i].Env.Type == message.WireConnect {
			connect = &out[i]
		}
	}
	if connect == nil {
		t.Fatal("an unknown wanted signer should trigger a connect request")
	}
	if connect.Target != "relay-addr" {
		t.Fatalf("connect request should route via the relay. Got %s", connect.Target)
	}
	if connect.Env.Target != strangerName {
		t.Fatal("connect request should name the unknown signer")
	}

	// A second message from the same signer within the filter window does
	// not spam another request.
	again := message.New(message.Direct, strangerName, validator.Name(), []byte("hello again"))
	if err := again.Sign(strangerKey); err != nil {
		t.Fatal(err)
	}
	out, err = core.HandleEnvelope("relay-addr", message.WrapMessage(again), now)
	if err != nil {
		t.Fatal(err)
	}
	for _, o := range out {
		if o.Env.Type == message.WireConnect {
			t.Fatal("connect requests should be rate-limited per name")
		}
	}
}

func TestConnectRequestAnsweredByTarget(t *testing.T) {
	now := time.Now()
	core, validator, _ := newTestCore(t, nil, "local-addr")

	requesterKey := genKey(t)
	requesterID, err := message.NewIdentify(requesterKey, "requester-addr", "")
	if err != nil {
		t.Fatal(err)
	}

	out, err := core.HandleEnvelope("hop-addr", message.WrapConnect(requesterID, validator.Name()), now)
	if err != nil {
		t.Fatal(err)
	}

	// The target adopts the requester and identifies back to its advertised
	// address, completing the introduction.
	if core.table.Len() != 1 {
		t.Fatalf("requester should be in the table. Got %d contacts", core.table.Len())
	}
	found := false
	for _, o := range out {
		if o.Env.Type == message.WireIdentify && o.Target == "requester-addr" {
			found = true
		}
	}
	if !found {
		t.Fatal("target should identify back to the requester")
	}
}

func TestConnectRequestRelayedTowardTarget(t *testing.T) {
	now := time.Now()
	core, _, _ := newTestCore(t, nil, "local-addr")

	hopKey := genKey(t)
	admit(t, core, hopKey, "hop-addr", now)

	requesterKey := genKey(t)
	requesterID, err := message.NewIdentify(requesterKey, "requester-addr", "")
	if err != nil {
		t.Fatal(err)
	}

	// A request for the hop's own name routes straight to it.
	out, err := core.HandleEnvelope("elsewhere", message.WrapConnect(requesterID, keyName(hopKey)), now)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 1 || out[0].Target != "hop-addr" || out[0].Env.Type != message.WireConnect {
		t.Fatalf("connect request should be relayed to the hop. Got %+v", out)
	}
}
