package overnet

import (
	"crypto/ecdsa"
	"fmt"
	"os"

	"github.com/overnet/overnet/src/config"
	"github.com/overnet/overnet/src/crypto/keys"
	"github.com/overnet/overnet/src/net"
	"github.com/overnet/overnet/src/node"
	"github.com/overnet/overnet/src/peers"
	"github.com/overnet/overnet/src/proxy/dummy"
	"github.com/overnet/overnet/src/service"
)

// Overnet is a sample implementation of the full stack: transport, relay
// node, and HTTP service, assembled from a config object.
type Overnet struct {
	Config    *config.Config
	Node      *node.Node
	Transport net.Transport
	Peers     []*peers.Contact
	Service   *service.Service
}

// NewOvernet ...
func NewOvernet(conf *config.Config) *Overnet {
	engine := &Overnet{
		Config: conf,
	}

	return engine
}

func (o *Overnet) initTransport() error {
	transport, err := net.NewTCPTransport(
		o.Config.BindAddr,
		o.Config.AdvertiseAddr,
		o.Config.MaxPool,
		o.Config.TCPTimeout,
		o.Config.Logger(),
	)

	if err != nil {
		return err
	}

	o.Transport = transport

	return nil
}

func (o *Overnet) initPeers() error {
	if o.Peers != nil {
		return nil
	}

	peerStore := peers.NewJSONPeers(o.Config.DataDir)

	contacts, err := peerStore.Contacts()
	if err != nil {
		if os.IsNotExist(err) {
			// A seed node starts with an empty table and waits for others
			// to identify to it.
			o.Config.Logger().Warn("No peers.json; starting with an empty routing table")
			return nil
		}
		return err
	}

	o.Peers = contacts

	return nil
}

func (o *Overnet) initKey() error {
	if o.Config.Key == nil {
		keyfile := keys.NewSimpleKeyfile(o.Config.Keyfile())

		privKey, err := keyfile.ReadKey()
		if err != nil {
			o.Config.Logger().Warn("Cannot read private key from file", err)

			privKey, err = Keygen(o.Config.Keyfile())
			if err != nil {
				o.Config.Logger().Error("Cannot generate a new private key", err)

				return err
			}

			o.Config.Logger().Info("Created a new key: ", keys.PublicKeyHex(&privKey.PublicKey))
		}

		o.Config.Key = privKey
	}
	return nil
}

func (o *Overnet) initNode() error {
	validator := node.NewValidator(o.Config.Key, o.Config.Moniker)

	appProxy := o.Config.Proxy
	if appProxy == nil {
		appProxy = dummy.NewDummyClient(o.Config.RawLogger())
	}

	nodeConfig := node.NewConfig(
		o.Config.GroupSize,
		o.Config.Quorum,
		o.Config.CacheSize,
		o.Config.FilterTTL,
		o.Config.AccumulateTimeout,
		o.Config.SweepInterval,
		o.Config.TCPTimeout,
		o.Config.RawLogger(),
	)

	n, err := node.NewNode(
		nodeConfig,
		validator,
		o.Peers,
		o.Transport,
		appProxy,
	)
	if err != nil {
		return fmt.Errorf("failed to create node: %s", err)
	}

	o.Node = n

	return nil
}

func (o *Overnet) initService() error {
	if !o.Config.NoService {
		o.Service = service.NewService(o.Config.ServiceAddr, o.Node, o.Config.Logger())
	}
	return nil
}

// Init assembles the engine from its config.
func (o *Overnet) Init() error {
	if o.Config.Quorum <= o.Config.GroupSize/2 {
		return fmt.Errorf("quorum (%d) must exceed half the group size (%d)",
			o.Config.Quorum, o.Config.GroupSize)
	}

	if err := o.initPeers(); err != nil {
		return err
	}

	if err := o.initTransport(); err != nil {
		return err
	}

	if err := o.initKey(); err != nil {
		return err
	}

	if err := o.initNode(); err != nil {
		return err
	}

	if err := o.initService(); err != nil {
		return err
	}

	return nil
}

// Run starts the service and the node's event loop. It blocks until the node
// shuts down.
func (o *Overnet) Run() error {
	if o.Service != nil {
		go o.Service.Serve()
	}

	if err := o.Node.Init(); err != nil {
		return fmt.Errorf("failed to initialize node: %s", err)
	}

	o.Node.Run()

	return nil
}

// Keygen generates a new key pair and persists it to the given keyfile.
func Keygen(keyfilePath string) (*ecdsa.PrivateKey, error) {
	keyfile := keys.NewSimpleKeyfile(keyfilePath)

	_, err := keyfile.ReadKey()
	if err == nil {
		return nil, fmt.Errorf("another key already lives under %s", keyfilePath)
	}

	privKey, err := keys.GenerateECDSAKey()
	if err != nil {
		return nil, err
	}

	if err := keyfile.WriteKey(privKey); err != nil {
		return nil, err
	}

	return privKey, nil
}
