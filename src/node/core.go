package node

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/overnet/overnet/src/accumulator"
	"github.com/overnet/overnet/src/filter"
	"github.com/overnet/overnet/src/message"
	"github.com/overnet/overnet/src/peers"
	"github.com/overnet/overnet/src/proxy"
	"github.com/overnet/overnet/src/routing"
	"github.com/overnet/overnet/src/xorname"
)

// ErrNoRoute is returned when the routing table holds no contact closer to a
// destination than the local node.
var ErrNoRoute = errors.New("no route to destination")

// Outbound is an envelope ready for transmission to a target address.
type Outbound struct {
	Target string
	Env    *message.Envelope
}

// Core owns all the mutable state of the relay engine: the routing table, the
// message filter, and the group accumulator. It never touches the network
// directly; handlers return the envelopes to transmit and the node's event
// loop performs the sends. Core is not safe for concurrent use.
type Core struct {
	validator *Validator
	conf      *Config

	table *routing.Table
	flt   *filter.Filter
	acc   *accumulator.Accumulator

	proxy proxy.AppProxy

	// identify is this node's signed identity, announced on handshakes and
	// on churn.
	identify *message.Identify

	// connToName maps transport-level source addresses to the overlay names
	// that identified over them.
	connToName map[string]xorname.XorName

	// lastGroup is the close group last reported to the application.
	lastGroup []xorname.XorName

	logger *logrus.Entry

	relayed    int
	delivered  int
	suppressed int
	rejected   int
}

// NewCore ...
func NewCore(
	validator *Validator,
	conf *Config,
	advertiseAddr string,
	appProxy proxy.AppProxy,
	logger *logrus.Logger,
) (*Core, error) {

	if logger == nil {
		logger = logrus.New()
		logger.Level = logrus.DebugLevel
	}
	logEntry := logger.WithField("this_name", validator.Name().String())

	identify, err := message.NewIdentify(validator.Key, advertiseAddr, validator.Moniker)
	if err != nil {
		return nil, err
	}

	core := &Core{
		validator:  validator,
		conf:       conf,
		table:      routing.NewTable(validator.Name(), conf.GroupSize),
		flt:        filter.New(conf.CacheSize, conf.FilterTTL),
		acc:        accumulator.New(conf.Quorum, conf.AccumulateTimeout),
		proxy:      appProxy,
		identify:   identify,
		connToName: make(map[string]xorname.XorName),
		logger:     logEntry,
	}

	return core, nil
}

// Name returns the local overlay name.
func (c *Core) Name() xorname.XorName {
	return c.validator.Name()
}

// Bootstrap produces identify envelopes for a set of known contacts. The
// replies drive the routing table handshake.
func (c *Core) Bootstrap(contacts []*peers.Contact) []Outbound {
	_, others := peers.ExcludeContact(contacts, c.identify.NetAddr)
	out := make([]Outbound, 0, len(others))
	for _, contact := range others {
		out = append(out, Outbound{
			Target: contact.NetAddr,
			Env:    message.WrapIdentify(c.identify),
		})
	}
	return out
}

// HandleEnvelope dispatches a received envelope. It returns the envelopes to
// transmit in response. Errors mean the envelope was dropped; they never
// poison the core's state.
func (c *Core) HandleEnvelope(from string, env *message.Envelope, now time.Time) ([]Outbound, error) {
	switch env.Type {
	case message.WireIdentify:
		return c.handleIdentify(from, env.Identify)
	case message.WireConnect:
		return c.handleConnect(env)
	case message.WireRelay:
		return c.handleMessage(env.Message, now)
	default:
		return nil, fmt.Errorf("unknown envelope type %d", env.Type)
	}
}

// HandleDisconnected processes the loss of a connection: the peer behind it
// leaves the routing table and the close group is re-evaluated.
func (c *Core) HandleDisconnected(addr string) []Outbound {
	contact := c.table.ContactByAddr(addr)
	if contact == nil {
		if name, ok := c.connToName[addr]; ok {
			contact = c.table.Contact(name)
		}
	}
	delete(c.connToName, addr)

	if contact == nil {
		return nil
	}

	c.table.RemoveContact(contact.Name())

	c.logger.WithFields(logrus.Fields{
		"name": contact.Name().String(),
		"addr": addr,
	}).Debug("Lost contact")

	return c.checkGroupChanged("")
}

// HandleSendFailure treats a failed transmission as the loss of the target
// peer.
func (c *Core) HandleSendFailure(target string) []Outbound {
	return c.HandleDisconnected(target)
}

func (c *Core) handleIdentify(from string, id *message.Identify) ([]Outbound, error) {
	name, err := id.Verify()
	if err != nil {
		c.rejected++
		return nil, fmt.Errorf("identify from %s: %v", from, err)
	}

	if name == c.validator.Name() {
		return nil, nil
	}

	c.connToName[from] = name

	contact := peers.NewContactWithName(name, id.PubKeyHex, id.NetAddr, id.Moniker)
	res := c.table.AddContact(contact)

	switch res.Outcome {
	case routing.AlreadyPresent:
		return nil, nil
	case routing.Rejected:
		c.logger.WithFields(logrus.Fields{
			"name":   name.String(),
			"reason": res.Reason,
		}).Debug("Contact rejected")
		return nil, nil
	}

	c.logger.WithFields(logrus.Fields{
		"name": name.String(),
		"addr": id.NetAddr,
	}).Debug("Added contact")

	if res.Evicted != nil {
		c.logger.WithField("name", res.Evicted.Name().String()).Debug("Evicted contact")
	}

	// Reciprocate so the new contact can admit us too.
	out := []Outbound{{Target: id.NetAddr, Env: message.WrapIdentify(c.identify)}}

	return append(out, c.checkGroupChanged(id.NetAddr)...), nil
}

// checkGroupChanged re-evaluates the local close group after a table change.
// When the membership moved, the application is notified and the local
// identity re-announced to the new group, so that neighborhoods converge
// after churn. skipAddr suppresses the announcement to a contact that was
// just sent one.
func (c *Core) checkGroupChanged(skipAddr string) []Outbound {
	group := c.table.CloseGroup(c.validator.Name())

	if sameGroup(group, c.lastGroup) {
		return nil
	}
	c.lastGroup = group

	c.proxy.GroupChanged(group)

	var out []Outbound
	for _, contact := range c.table.CloseGroupContacts(c.validator.Name()) {
		if contact.NetAddr == skipAddr {
			continue
		}
		out = append(out, Outbound{
			Target: contact.NetAddr,
			Env:    message.WrapIdentify(c.identify),
		})
	}
	return out
}

func sameGroup(a, b []xorname.XorName) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func (c *Core) handleMessage(msg *message.Message, now time.Time) ([]Outbound, error) {
	switch msg.Kind {
	case message.Direct:
		return c.handleDirect(msg, now)
	case message.Group:
		return c.handleGroup(msg, now)
	default:
		return nil, fmt.Errorf("unknown message kind %d", msg.Kind)
	}
}

func (c *Core) handleDirect(msg *message.Message, now time.Time) ([]Outbound, error) {
	id := msg.ID()

	if c.flt.HasSeen(id, now) {
		c.suppressed++
		c.logger.WithField("id", id).Debug("Duplicate suppressed")
		return nil, nil
	}

	// Verify before marking, or a forged copy of the identity would
	// filter-suppress the legitimate message behind it.
	if err := msg.VerifySource(); err != nil {
		c.rejected++
		return nil, err
	}
	c.flt.MarkSeen(id, now)

	out := c.harvest(msg, now)

	if msg.Destination == c.validator.Name() {
		c.delivered++
		return out, c.proxy.Deliver(msg)
	}

	hop := c.table.NextHopDirect(msg.Destination)
	if hop == nil {
		// Local node is the closest it knows to the destination; nowhere
		// left to relay.
		c.logger.WithFields(logrus.Fields{
			"id":  id,
			"dst": msg.Destination.String(),
		}).Debug("Dropping terminal direct message")
		return out, nil
	}

	c.relayed++
	return append(out, Outbound{Target: hop.NetAddr, Env: message.WrapMessage(msg)}), nil
}

func (c *Core) handleGroup(msg *message.Message, now time.Time) ([]Outbound, error) {
	id := msg.ID()

	// A tracked plain identity means the message already fired here.
	if c.flt.HasSeen(id, now) {
		c.suppressed++
		c.logger.WithField("id", id).Debug("Duplicate suppressed")
		return nil, nil
	}

	// Partial copies share the plain identity, so replay suppression for
	// pending group messages is keyed by identity plus signer set.
	key := copyKey(msg)
	if c.flt.HasSeen(key, now) {
		c.suppressed++
		return nil, nil
	}

	// Verify before marking, or a forged copy of the signer set would
	// filter-suppress the legitimate one behind it.
	if err := msg.VerifySource(); err != nil {
		c.rejected++
		return nil, err
	}
	c.flt.MarkSeen(key, now)

	if !c.table.IsInCloseGroup(msg.Destination) {
		// Not our group; relay the copy toward the destination's
		// neighborhood.
		hops := c.table.NextHopsGroup(msg.Destination)
		if len(hops) == 0 {
			return nil, ErrNoRoute
		}
		c.relayed++
		out := make([]Outbound, 0, len(hops))
		for _, hop := range hops {
			out = append(out, Outbound{Target: hop.NetAddr, Env: message.WrapMessage(msg)})
		}
		return out, nil
	}

	// This node is in the destination's close group: vouch for the message
	// by countersigning before accumulating. Quorum is only reached once
	// enough members have done the same.
	if !msg.SignedBy(c.validator.Name()) {
		if err := msg.Sign(c.validator.Key); err != nil {
			return nil, err
		}
		// Suppress echoes of the countersigned copy too.
		c.flt.MarkSeen(copyKey(msg), now)
	}

	harvested := c.harvest(msg, now)

	res := c.acc.Add(msg, c.memberOf(msg.Destination), now)

	switch res.Status {
	case accumulator.Rejected:
		c.rejected++
		return harvested, res.Reason

	case accumulator.Pending:
		c.logger.WithFields(logrus.Fields{
			"id":    id,
			"count": res.Count,
		}).Debug("Accumulating group message")
		// Swarm the copy so the rest of the group accumulates it too.
		return append(harvested, c.swarm(msg)...), nil

	case accumulator.Quorum:
		c.flt.MarkSeen(id, now)
		c.delivered++
		c.logger.WithFields(logrus.Fields{
			"id":    id,
			"count": res.Count,
		}).Debug("Group message reached quorum")
		// Swarm the merged message; peers holding fewer signatures reach
		// quorum instantly from it.
		out := append(harvested, c.swarm(res.Message)...)
		return out, c.proxy.Deliver(res.Message)
	}

	return harvested, nil
}

// harvest inspects the signers of a verified message for names the routing
// table has room for and emits connect requests routed toward them. Requests
// per name are rate-limited through the filter.
func (c *Core) harvest(msg *message.Message, now time.Time) []Outbound {
	var out []Outbound
	for _, sig := range msg.Signatures {
		name := sig.Signer
		if !c.table.WantContact(name) {
			continue
		}

		key := "connect|" + name.Hex()
		if c.flt.HasSeen(key, now) {
			continue
		}
		c.flt.MarkSeen(key, now)

		hop := c.table.NextHopDirect(name)
		if hop == nil {
			continue
		}

		c.logger.WithField("name", name.String()).Debug("Harvesting contact")
		out = append(out, Outbound{
			Target: hop.NetAddr,
			Env:    message.WrapConnect(c.identify, name),
		})
	}
	return out
}

// handleConnect processes a connect request harvested by another node. The
// request is routed toward its target name; the target answers the requester
// directly with an identity handshake.
func (c *Core) handleConnect(env *message.Envelope) ([]Outbound, error) {
	id := env.Identify

	if env.Target == c.validator.Name() {
		// We are the wanted contact; identifying to the requester's
		// advertised address completes the introduction both ways.
		return c.handleIdentify(id.NetAddr, id)
	}

	name, err := id.Verify()
	if err != nil {
		c.rejected++
		return nil, fmt.Errorf("connect request: %v", err)
	}
	if name == c.validator.Name() {
		return nil, nil
	}

	hop := c.table.NextHopDirect(env.Target)
	if hop == nil {
		c.logger.WithField("target", env.Target.String()).Debug("Dropping terminal connect request")
		return nil, nil
	}

	c.relayed++
	return []Outbound{{Target: hop.NetAddr, Env: env}}, nil
}

// memberOf builds the close-group membership predicate for a target name, as
// far as the local table can tell. The local node is a candidate like any
// contact; only the G closest names qualify.
func (c *Core) memberOf(target xorname.XorName) func(xorname.XorName) bool {
	names := c.table.CloseGroup(target)
	if c.table.IsInCloseGroup(target) {
		names = append(names, c.validator.Name())
	}
	sort.Slice(names, func(i, j int) bool {
		return xorname.CloserToTarget(target, names[i], names[j])
	})
	if len(names) > c.conf.GroupSize {
		names = names[:c.conf.GroupSize]
	}

	members := make(map[xorname.XorName]bool)
	for _, name := range names {
		members[name] = true
	}
	return func(n xorname.XorName) bool { return members[n] }
}

// swarm builds relay envelopes to every member of the local view of the
// destination's close group.
func (c *Core) swarm(msg *message.Message) []Outbound {
	contacts := c.table.CloseGroupContacts(msg.Destination)
	out := make([]Outbound, 0, len(contacts))
	for _, contact := range contacts {
		out = append(out, Outbound{Target: contact.NetAddr, Env: message.WrapMessage(msg)})
	}
	if len(out) > 0 {
		c.relayed++
	}
	return out
}

// copyKey derives a replay-suppression key for one signed copy of a group
// message.
func copyKey(msg *message.Message) string {
	key := msg.ID()
	for _, sig := range msg.Signatures {
		key += "|" + sig.Signer.Hex()
	}
	return key
}

// SendDirect builds, signs and routes a direct message from this node.
func (c *Core) SendDirect(destination xorname.XorName, payload []byte, now time.Time) ([]Outbound, error) {
	msg := message.New(message.Direct, c.validator.Name(), destination, payload)
	if err := msg.Sign(c.validator.Key); err != nil {
		return nil, err
	}

	c.flt.MarkSeen(msg.ID(), now)

	if destination == c.validator.Name() {
		c.delivered++
		return nil, c.proxy.Deliver(msg)
	}

	hop := c.table.NextHopDirect(destination)
	if hop == nil {
		return nil, ErrNoRoute
	}

	c.relayed++
	return []Outbound{{Target: hop.NetAddr, Env: message.WrapMessage(msg)}}, nil
}

// SendGroup builds, signs and routes a group message from this node. The
// message only becomes actionable once a quorum of the destination's close
// group has countersigned it.
func (c *Core) SendGroup(destination xorname.XorName, payload []byte, now time.Time) ([]Outbound, error) {
	msg := message.New(message.Group, c.validator.Name(), destination, payload)
	if err := msg.Sign(c.validator.Key); err != nil {
		return nil, err
	}

	c.flt.MarkSeen(copyKey(msg), now)

	if c.table.IsInCloseGroup(destination) {
		// Our own copy goes straight into the accumulator; the rest of the
		// group gets it swarmed.
		res := c.acc.Add(msg, c.memberOf(destination), now)
		switch res.Status {
		case accumulator.Rejected:
			return nil, res.Reason
		case accumulator.Quorum:
			c.flt.MarkSeen(msg.ID(), now)
			c.delivered++
			return c.swarm(res.Message), c.proxy.Deliver(res.Message)
		}
		return c.swarm(msg), nil
	}

	hops := c.table.NextHopsGroup(destination)
	if len(hops) == 0 {
		return nil, ErrNoRoute
	}
	c.relayed++
	out := make([]Outbound, 0, len(hops))
	for _, hop := range hops {
		out = append(out, Outbound{Target: hop.NetAddr, Env: message.WrapMessage(msg)})
	}
	return out, nil
}

// Sweep expires stale filter and accumulator entries.
func (c *Core) Sweep(now time.Time) {
	expired := c.flt.Sweep(now)
	timedOut := c.acc.Sweep(now)

	if expired > 0 || timedOut > 0 {
		c.logger.WithFields(logrus.Fields{
			"filter_expired":    expired,
			"accumulator_drops": timedOut,
		}).Debug("Sweep")
	}
}

// Contacts returns the routing table's contacts ordered by distance.
func (c *Core) Contacts() []*peers.Contact {
	return c.table.Contacts()
}

// CloseGroup returns the local close group.
func (c *Core) CloseGroup() []xorname.XorName {
	return c.table.CloseGroup(c.validator.Name())
}

// Stats ...
func (c *Core) Stats() map[string]string {
	return map[string]string{
		"name":         c.validator.Name().String(),
		"moniker":      c.validator.Moniker,
		"num_contacts": strconv.Itoa(c.table.Len()),
		"group_size":   strconv.Itoa(len(c.lastGroup)),
		"pending":      strconv.Itoa(c.acc.Len()),
		"filtered":     strconv.Itoa(c.flt.Len()),
		"relayed":      strconv.Itoa(c.relayed),
		"delivered":    strconv.Itoa(c.delivered),
		"suppressed":   strconv.Itoa(c.suppressed),
		"rejected":     strconv.Itoa(c.rejected),
	}
}
