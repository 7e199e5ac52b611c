package inmem

import (
	"github.com/sirupsen/logrus"

	"github.com/overnet/overnet/src/message"
	"github.com/overnet/overnet/src/proxy"
	"github.com/overnet/overnet/src/xorname"
)

//InmemProxy implements the AppProxy interface natively
type InmemProxy struct {
	handler proxy.ProxyHandler
	logger  *logrus.Logger
}

// NewInmemProxy instantiates an InmemProxy from a handler.
// If no logger, a new one is created
func NewInmemProxy(handler proxy.ProxyHandler, logger *logrus.Logger) *InmemProxy {
	if logger == nil {
		logger = logrus.New()

		logger.Level = logrus.DebugLevel
	}

	return &InmemProxy{
		handler: handler,
		logger:  logger,
	}
}

//Deliver calls the deliver handler
func (p *InmemProxy) Deliver(msg *message.Message) error {
	err := p.handler.DeliverHandler(msg)

	p.logger.WithFields(logrus.Fields{
		"kind": msg.Kind.String(),
		"id":   msg.ID(),
		"err":  err,
	}).Debug("InmemProxy.Deliver")

	return err
}

//GroupChanged calls the group changed handler
func (p *InmemProxy) GroupChanged(group []xorname.XorName) {
	p.handler.GroupChangedHandler(group)

	p.logger.WithField("size", len(group)).Debug("InmemProxy.GroupChanged")
}
