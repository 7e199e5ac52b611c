package node

import (
	"bytes"
	"fmt"
	"testing"
	"time"

	"github.com/overnet/overnet/src/crypto/keys"
	"github.com/overnet/overnet/src/message"
	"github.com/overnet/overnet/src/net"
	"github.com/overnet/overnet/src/peers"
	"github.com/overnet/overnet/src/proxy/dummy"
	"github.com/overnet/overnet/src/xorname"
)

type testNetwork struct {
	nodes  []*Node
	states []*dummy.State
	trans  []*net.InmemTransport
	addrs  []string
}

// initNetwork builds a fully meshed in-memory network of n nodes and starts
// their event loops.
func initNetwork(t *testing.T, n int, quorum int) *testNetwork {
	return initNetworkWithGroup(t, n, 8, quorum)
}

func initNetworkWithGroup(t *testing.T, n int, groupSize int, quorum int) *testNetwork {
	network := &testNetwork{}

	validators := make([]*Validator, n)
	for i := 0; i < n; i++ {
		key, err := keys.GenerateECDSAKey()
		if err != nil {
			t.Fatal(err)
		}
		validators[i] = NewValidator(key, fmt.Sprintf("node%d", i))

		addr, trans := net.NewInmemTransport("")
		network.addrs = append(network.addrs, addr)
		network.trans = append(network.trans, trans)
	}

	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i != j {
				network.trans[i].Connect(network.addrs[j], network.trans[j])
			}
		}
	}

	for i := 0; i < n; i++ {
		conf := TestConfig(t)
		conf.GroupSize = groupSize
		conf.Quorum = quorum
		conf.SweepInterval = 100 * time.Millisecond

		var contacts []*peers.Contact
		for j := 0; j < n; j++ {
			if i != j {
				contacts = append(contacts, peers.NewContactWithName(
					validators[j].Name(),
					validators[j].PublicKeyHex(),
					network.addrs[j],
					validators[j].Moniker))
			}
		}

		client := dummy.NewDummyClient(conf.Logger)
		network.states = append(network.states, client.State())

		nd, err := NewNode(conf, validators[i], contacts, network.trans[i], client)
		if err != nil {
			t.Fatal(err)
		}
		network.nodes = append(network.nodes, nd)
	}

	for _, nd := range network.nodes {
		nd.RunAsync()
	}
	for _, nd := range network.nodes {
		if err := nd.Init(); err != nil {
			t.Fatal(err)
		}
	}

	return network
}

func (tn *testNetwork) shutdown() {
	for _, nd := range tn.nodes {
		nd.Shutdown()
	}
}

func waitUntil(t *testing.T, timeout time.Duration, what string, cond func() bool) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestBootstrap(t *testing.T) {
	network := initNetwork(t, 4, 3)
	defer network.shutdown()

	waitUntil(t, 3*time.Second, "routing tables to fill", func() bool {
		for _, nd := range network.nodes {
			if len(nd.GetContacts()) != 3 {
				return false
			}
		}
		return true
	})

	for i, nd := range network.nodes {
		group := nd.GetCloseGroup()
		if len(group) != 3 {
			t.Fatalf("node %d close group should have 3 members. Got %d", i, len(group))
		}
		for _, name := range group {
			if name == nd.GetName() {
				t.Fatalf("node %d close group contains itself", i)
			}
		}
	}
}

func TestDirectMessageDelivery(t *testing.T) {
	network := initNetwork(t, 4, 3)
	defer network.shutdown()

	waitUntil(t, 3*time.Second, "routing tables to fill", func() bool {
		for _, nd := range network.nodes {
			if len(nd.GetContacts()) != 3 {
				return false
			}
		}
		return true
	})

	payload := []byte("direct payload")
	if err := network.nodes[0].SendDirect(network.nodes[2].GetName(), payload); err != nil {
		t.Fatal(err)
	}

	waitUntil(t, 3*time.Second, "direct delivery", func() bool {
		return len(network.states[2].Delivered()) == 1
	})

	msg := network.states[2].Delivered()[0]
	if msg.Kind != message.Direct {
		t.Fatalf("delivered message should be Direct. Got %v", msg.Kind)
	}
	if msg.Source != network.nodes[0].GetName() {
		t.Fatal("delivered message has the wrong source")
	}
	if !bytes.Equal(msg.Payload, payload) {
		t.Fatalf("payload mismatch: %q", msg.Payload)
	}
	if err := msg.VerifySource(); err != nil {
		t.Fatalf("delivered message should carry a valid source signature. Got %v", err)
	}

	// Nobody else received it.
	for i, state := range network.states {
		if i != 2 && len(state.Delivered()) != 0 {
			t.Fatalf("node %d should not have received the message", i)
		}
	}
}

func TestSendDirectToSelf(t *testing.T) {
	network := initNetwork(t, 2, 1)
	defer network.shutdown()

	payload := []byte("to self")
	if err := network.nodes[0].SendDirect(network.nodes[0].GetName(), payload); err != nil {
		t.Fatal(err)
	}

	delivered := network.states[0].Delivered()
	if len(delivered) != 1 || !bytes.Equal(delivered[0].Payload, payload) {
		t.Fatal("self-addressed message should be delivered locally")
	}
}

func TestGroupMessageQuorum(t *testing.T) {
	network := initNetwork(t, 6, 4)
	defer network.shutdown()

	waitUntil(t, 3*time.Second, "routing tables to fill", func() bool {
		for _, nd := range network.nodes {
			if len(nd.GetContacts()) != 5 {
				return false
			}
		}
		return true
	})

	// With 6 nodes and groups of 8, every node is in the close group of any
	// target, so every node must countersign and eventually deliver.
	target := xorname.Random()
	payload := []byte("group payload")
	if err := network.nodes[0].SendGroup(target, payload); err != nil {
		t.Fatal(err)
	}

	waitUntil(t, 5*time.Second, "group delivery on all members", func() bool {
		for _, state := range network.states {
			if len(state.Delivered()) == 0 {
				return false
			}
		}
		return true
	})

	for i, state := range network.states {
		delivered := state.Delivered()
		if len(delivered) != 1 {
			t.Fatalf("node %d should deliver exactly once. Got %d", i, len(delivered))
		}
		msg := delivered[0]
		if msg.Kind != message.Group {
			t.Fatalf("delivered message should be Group. Got %v", msg.Kind)
		}
		if !bytes.Equal(msg.Payload, payload) {
			t.Fatalf("payload mismatch: %q", msg.Payload)
		}
		if len(msg.Signatures) < 4 {
			t.Fatalf("node %d delivered below quorum: %d signatures", i, len(msg.Signatures))
		}
	}
}

func TestGroupMessageFromOutsideSender(t *testing.T) {
	network := initNetworkWithGroup(t, 4, 3, 2)
	defer network.shutdown()

	waitUntil(t, 3*time.Second, "routing tables to fill", func() bool {
		for _, nd := range network.nodes {
			if len(nd.GetContacts()) != 3 {
				return false
			}
		}
		return true
	})

	// With groups of 3 among 4 nodes, the node furthest from the target is
	// outside the destination group: the normal case for a routed group
	// message.
	target := xorname.Random()
	sender := 0
	for i, nd := range network.nodes {
		if xorname.CloserToTarget(target, network.nodes[sender].GetName(), nd.GetName()) {
			sender = i
		}
	}

	payload := []byte("group payload from outside")
	if err := network.nodes[sender].SendGroup(target, payload); err != nil {
		t.Fatal(err)
	}

	waitUntil(t, 5*time.Second, "group delivery on all members", func() bool {
		for i, state := range network.states {
			if i != sender && len(state.Delivered()) == 0 {
				return false
			}
		}
		return true
	})

	for i, state := range network.states {
		delivered := state.Delivered()
		if i == sender {
			if len(delivered) != 0 {
				t.Fatalf("the outside sender should not deliver its own group message. Got %d", len(delivered))
			}
			continue
		}
		if len(delivered) != 1 {
			t.Fatalf("node %d should deliver exactly once. Got %d", i, len(delivered))
		}
		msg := delivered[0]
		if !bytes.Equal(msg.Payload, payload) {
			t.Fatalf("payload mismatch: %q", msg.Payload)
		}
		if len(msg.Signatures) < 3 {
			t.Fatalf("node %d delivered with %d signatures, want source + quorum", i, len(msg.Signatures))
		}
		if msg.Signatures[0].Signer != network.nodes[sender].GetName() {
			t.Fatalf("node %d: source signature should lead the delivered message", i)
		}
		if err := msg.VerifySource(); err != nil {
			t.Fatalf("node %d: delivered message should verify its source. Got %v", i, err)
		}
	}
}

func TestChurnGroupChanged(t *testing.T) {
	network := initNetwork(t, 4, 3)
	defer network.shutdown()

	waitUntil(t, 3*time.Second, "routing tables to fill", func() bool {
		for _, nd := range network.nodes {
			if len(nd.GetContacts()) != 3 {
				return false
			}
		}
		return true
	})

	lostName := network.nodes[3].GetName()
	lostAddr := network.addrs[3]

	// Sever node 3 from everybody's transport.
	network.nodes[3].Shutdown()
	for i := 0; i < 3; i++ {
		network.trans[i].Disconnect(lostAddr)
	}

	waitUntil(t, 3*time.Second, "group change to propagate", func() bool {
		for i := 0; i < 3; i++ {
			group := network.states[i].Group()
			if len(group) != 2 {
				return false
			}
			for _, name := range group {
				if name == lostName {
					return false
				}
			}
		}
		return true
	})

	for i := 0; i < 3; i++ {
		if len(network.nodes[i].GetContacts()) != 2 {
			t.Fatalf("node %d should have dropped the lost contact", i)
		}
	}
}

func TestPoisonedEnvelopeDoesNotHaltLoop(t *testing.T) {
	network := initNetwork(t, 2, 1)
	defer network.shutdown()

	waitUntil(t, 3*time.Second, "routing tables to fill", func() bool {
		return len(network.nodes[0].GetContacts()) == 1 &&
			len(network.nodes[1].GetContacts()) == 1
	})

	// Inject garbage straight into node 0's transport.
	_, rogue := net.NewInmemTransport("")
	rogue.Connect(network.addrs[0], network.trans[0])
	if err := rogue.Send(network.addrs[0], []byte("not an envelope")); err != nil {
		t.Fatal(err)
	}

	// The loop must still relay messages afterwards.
	payload := []byte("still alive")
	if err := network.nodes[1].SendDirect(network.nodes[0].GetName(), payload); err != nil {
		t.Fatal(err)
	}

	waitUntil(t, 3*time.Second, "delivery after poisoned event", func() bool {
		return len(network.states[0].Delivered()) == 1
	})
}

func TestStats(t *testing.T) {
	network := initNetwork(t, 3, 2)
	defer network.shutdown()

	waitUntil(t, 3*time.Second, "routing tables to fill", func() bool {
		for _, nd := range network.nodes {
			if len(nd.GetContacts()) != 2 {
				return false
			}
		}
		return true
	})

	stats := network.nodes[0].GetStats()
	if stats["num_contacts"] != "2" {
		t.Fatalf("num_contacts should be 2. Got %s", stats["num_contacts"])
	}
	if stats["state"] != "Relaying" {
		t.Fatalf("state should be Relaying. Got %s", stats["state"])
	}
	if stats["name"] != network.nodes[0].GetName().String() {
		t.Fatal("stats should carry the node name")
	}
}
