package node

import (
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/overnet/overnet/src/message"
	"github.com/overnet/overnet/src/net"
	"github.com/overnet/overnet/src/peers"
	"github.com/overnet/overnet/src/proxy"
	"github.com/overnet/overnet/src/xorname"
)

//Node is the relay engine: a single event loop that owns a Core and applies
//every transport event, API request, and sweep tick to it in sequence.
type Node struct {
	state

	conf   *Config
	logger *logrus.Entry

	validator *Validator

	core     *Core
	coreLock sync.Mutex

	trans net.Transport
	netCh <-chan net.Event

	proxy proxy.AppProxy

	bootstrapPeers []*peers.Contact

	sigintCh   chan os.Signal
	shutdownCh chan struct{}

	controlTimer *ControlTimer

	start time.Time
}

//NewNode is a factory method that returns a Node instance
func NewNode(conf *Config,
	validator *Validator,
	bootstrapPeers []*peers.Contact,
	trans net.Transport,
	appProxy proxy.AppProxy,
) (*Node, error) {

	core, err := NewCore(validator, conf, trans.AdvertiseAddr(), appProxy, conf.Logger)
	if err != nil {
		return nil, err
	}

	//Prepare sigintCh to relay SIGINT system calls
	sigintCh := make(chan os.Signal, 1)
	signal.Notify(sigintCh, os.Interrupt, syscall.SIGINT)

	node := Node{
		validator:      validator,
		conf:           conf,
		logger:         conf.Logger.WithField("this_name", validator.Name().String()),
		core:           core,
		trans:          trans,
		netCh:          trans.Consumer(),
		proxy:          appProxy,
		bootstrapPeers: bootstrapPeers,
		sigintCh:       sigintCh,
		shutdownCh:     make(chan struct{}),
		controlTimer:   NewRandomControlTimer(),
	}

	return &node, nil
}

//Init announces the local identity to the bootstrap peers. Their replies
//seed the routing table.
func (n *Node) Init() error {
	n.coreLock.Lock()
	out := n.core.Bootstrap(n.bootstrapPeers)
	n.coreLock.Unlock()

	n.logger.WithField("peers", len(out)).Debug("Bootstrap")

	n.transmit(out)

	return nil
}

//RunAsync calls Run as a separate thread
func (n *Node) RunAsync() {
	go n.Run()
}

//Run invokes the main loop of the node. Every event is applied to the core in
//sequence; a failing event is logged and dropped, never fatal.
func (n *Node) Run() {
	//The ControlTimer drives the periodic expiry sweeps of the filter and
	//the accumulator.
	n.goFunc(func() {
		n.controlTimer.Run(n.conf.SweepInterval)
	})

	go n.trans.Listen()

	n.start = time.Now()

	for {
		select {
		case ev := <-n.netCh:
			n.processEvent(ev)
		case <-n.controlTimer.tickCh:
			n.coreLock.Lock()
			n.core.Sweep(time.Now())
			n.coreLock.Unlock()
			n.resetTimer()
		case <-n.sigintCh:
			n.logger.Debug("Reacting to SIGINT")
			n.Shutdown()
		case <-n.shutdownCh:
			return
		}
	}
}

func (n *Node) resetTimer() {
	if !n.controlTimer.set {
		n.controlTimer.resetCh <- n.conf.SweepInterval
	}
}

func (n *Node) processEvent(ev net.Event) {
	switch e := ev.(type) {
	case net.MessageEvent:
		var env message.Envelope
		if err := env.Unmarshal(e.Payload); err != nil {
			n.logger.WithFields(logrus.Fields{
				"from":  e.From,
				"error": err,
			}).Error("Failed to decode envelope")
			return
		}

		n.coreLock.Lock()
		out, err := n.core.HandleEnvelope(e.From, &env, time.Now())
		n.coreLock.Unlock()

		if err != nil {
			n.logger.WithFields(logrus.Fields{
				"from":  e.From,
				"error": err,
			}).Debug("Dropped envelope")
		}

		n.transmit(out)

	case net.DisconnectedEvent:
		n.coreLock.Lock()
		out := n.core.HandleDisconnected(e.Addr)
		n.coreLock.Unlock()

		n.transmit(out)

	case net.ConnectedEvent:
		n.logger.WithField("addr", e.Addr).Debug("Connection accepted")
	}
}

//transmit sends a batch of envelopes. A failed send is treated as the loss of
//the target peer, which may itself produce churn announcements; those join
//the queue. The queue drains because every failure shrinks the routing table.
func (n *Node) transmit(out []Outbound) {
	queue := out
	for len(queue) > 0 {
		o := queue[0]
		queue = queue[1:]

		raw, err := o.Env.Marshal()
		if err != nil {
			n.logger.WithField("error", err).Error("Failed to encode envelope")
			continue
		}

		if err := n.trans.Send(o.Target, raw); err != nil {
			n.logger.WithFields(logrus.Fields{
				"target": o.Target,
				"error":  err,
			}).Debug("Send failed")

			n.coreLock.Lock()
			more := n.core.HandleSendFailure(o.Target)
			n.coreLock.Unlock()

			queue = append(queue, more...)
		}
	}
}

//SendDirect signs and routes a direct message from this node.
func (n *Node) SendDirect(destination xorname.XorName, payload []byte) error {
	n.coreLock.Lock()
	out, err := n.core.SendDirect(destination, payload, time.Now())
	n.coreLock.Unlock()

	if err != nil {
		return err
	}

	n.transmit(out)
	return nil
}

//SendGroup signs and routes a group message from this node.
func (n *Node) SendGroup(destination xorname.XorName, payload []byte) error {
	n.coreLock.Lock()
	out, err := n.core.SendGroup(destination, payload, time.Now())
	n.coreLock.Unlock()

	if err != nil {
		return err
	}

	n.transmit(out)
	return nil
}

//GetName returns the local overlay name
func (n *Node) GetName() xorname.XorName {
	return n.validator.Name()
}

//GetContacts returns the routing table's contacts ordered by distance
func (n *Node) GetContacts() []*peers.Contact {
	n.coreLock.Lock()
	defer n.coreLock.Unlock()
	return n.core.Contacts()
}

//GetCloseGroup returns the local close group
func (n *Node) GetCloseGroup() []xorname.XorName {
	n.coreLock.Lock()
	defer n.coreLock.Unlock()
	return n.core.CloseGroup()
}

//GetStats returns operational figures for monitoring
func (n *Node) GetStats() map[string]string {
	n.coreLock.Lock()
	stats := n.core.Stats()
	n.coreLock.Unlock()

	stats["state"] = n.getState().String()
	stats["addr"] = n.trans.AdvertiseAddr()
	if !n.start.IsZero() {
		stats["uptime"] = time.Since(n.start).String()
	}
	return stats
}

//Shutdown stops the event loop and closes the transport
func (n *Node) Shutdown() {
	if n.getState() == Shutdown {
		return
	}

	n.logger.Debug("Shutdown")

	n.setState(Shutdown)

	close(n.shutdownCh)

	n.controlTimer.Shutdown()

	n.waitRoutines()

	n.trans.Close()
}
