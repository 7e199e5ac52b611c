package net

// Event is a notification surfaced by a transport: a connection came up, a
// connection went away, or a framed payload arrived.
type Event interface {
	isEvent()
}

// ConnectedEvent signals that an inbound connection was accepted.
type ConnectedEvent struct {
	// Addr is the remote end of the connection.
	Addr string
}

// DisconnectedEvent signals that a connection was lost. Addr matches the From
// of the messages previously received over it.
type DisconnectedEvent struct {
	Addr string
}

// MessageEvent carries one framed payload received from a peer.
type MessageEvent struct {
	// From is the remote end of the connection the frame arrived on. For
	// in-memory transports it equals the sender's advertised address; over
	// TCP it is the ephemeral remote address, and the payload itself names
	// the sender.
	From    string
	Payload []byte
}

func (ConnectedEvent) isEvent()    {}
func (DisconnectedEvent) isEvent() {}
func (MessageEvent) isEvent()      {}

// Transport provides an interface for network transports to allow a node to
// exchange framed payloads with other nodes. Delivery is fire-and-forget:
// Send reports transmission errors but never waits for a response.
type Transport interface {

	// Starts the transport listening
	Listen()

	// Consumer returns a channel used to consume transport events.
	Consumer() <-chan Event

	// Send transmits one framed payload to the target address.
	Send(target string, payload []byte) error

	// LocalAddr is used to return our local address
	LocalAddr() string

	// AdvertiseAddr is used to return our advertise address where other peers
	// can reach us
	AdvertiseAddr() string

	// Close permanently closes a transport, stopping
	// any associated goroutines and freeing other resources.
	Close() error
}
