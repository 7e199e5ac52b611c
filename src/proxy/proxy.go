package proxy

import (
	"github.com/overnet/overnet/src/message"
	"github.com/overnet/overnet/src/xorname"
)

// AppProxy is the interface between the routing layer and the application.
// The node calls Deliver for every message it has fully authenticated: Direct
// messages addressed to this node, and Group messages whose quorum was
// reached in a group this node belongs to. GroupChanged fires whenever the
// membership of the node's own close group changes.
type AppProxy interface {
	Deliver(msg *message.Message) error
	GroupChanged(group []xorname.XorName)
}

// ProxyHandler is implemented by the application to receive callbacks from an
// InmemProxy.
type ProxyHandler interface {
	DeliverHandler(msg *message.Message) error
	GroupChangedHandler(group []xorname.XorName)
}
