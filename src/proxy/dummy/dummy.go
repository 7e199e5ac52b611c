package dummy

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/overnet/overnet/src/message"
	"github.com/overnet/overnet/src/proxy/inmem"
	"github.com/overnet/overnet/src/xorname"
)

// State is a minimal application: it records every delivered message and the
// latest close group. It backs the dummy client used by the CLI and by tests.
type State struct {
	sync.Mutex
	logger    *logrus.Logger
	delivered []*message.Message
	group     []xorname.XorName
}

// NewState ...
func NewState(logger *logrus.Logger) *State {
	return &State{logger: logger}
}

// DeliverHandler implements the ProxyHandler interface
func (s *State) DeliverHandler(msg *message.Message) error {
	s.Lock()
	defer s.Unlock()

	s.delivered = append(s.delivered, msg)

	s.logger.WithFields(logrus.Fields{
		"kind":    msg.Kind.String(),
		"payload": len(msg.Payload),
	}).Debug("Delivered message")

	return nil
}

// GroupChangedHandler implements the ProxyHandler interface
func (s *State) GroupChangedHandler(group []xorname.XorName) {
	s.Lock()
	defer s.Unlock()

	s.group = group

	s.logger.WithField("size", len(group)).Debug("Close group changed")
}

// Delivered returns the messages delivered so far.
func (s *State) Delivered() []*message.Message {
	s.Lock()
	defer s.Unlock()

	out := make([]*message.Message, len(s.delivered))
	copy(out, s.delivered)
	return out
}

// Group returns the latest close group.
func (s *State) Group() []xorname.XorName {
	s.Lock()
	defer s.Unlock()

	out := make([]xorname.XorName, len(s.group))
	copy(out, s.group)
	return out
}

// DummyClient is an in-memory application proxy over a recording State.
type DummyClient struct {
	*inmem.InmemProxy
	state *State
}

// NewDummyClient ...
func NewDummyClient(logger *logrus.Logger) *DummyClient {
	state := NewState(logger)
	return &DummyClient{
		InmemProxy: inmem.NewInmemProxy(state, logger),
		state:      state,
	}
}

// State exposes the recording state.
func (c *DummyClient) State() *State {
	return c.state
}
