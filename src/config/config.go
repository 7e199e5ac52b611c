package config

import (
	"crypto/ecdsa"
	"os"
	"os/user"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"

	"github.com/overnet/overnet/src/common"
	"github.com/overnet/overnet/src/proxy"
)

// Default filenames.
const (
	// DefaultKeyfile is the default name of the file containing the node's
	// private key
	DefaultKeyfile = "priv_key"

	// DefaultPeersFile is the default name of the file containing the
	// bootstrap contacts
	DefaultPeersFile = "peers.json"
)

// Default configuration values.
const (
	DefaultLogLevel      = "debug"
	DefaultBindAddr      = "127.0.0.1:1337"
	DefaultServiceAddr   = "127.0.0.1:8000"
	DefaultTCPTimeout    = 1000 * time.Millisecond
	DefaultMaxPool       = 2
	DefaultGroupSize     = 8
	DefaultQuorum        = 5
	DefaultCacheSize     = 5000
	DefaultFilterTTL     = 10 * time.Minute
	DefaultAccTimeout    = 60 * time.Second
	DefaultSweepInterval = 10 * time.Second
)

// Config contains all the configuration properties of an overnet node.
type Config struct {
	// DataDir is the top-level directory containing configuration and data
	DataDir string `mapstructure:"datadir"`

	// LogLevel determines the chattiness of the log output.
	LogLevel string `mapstructure:"log"`

	// BindAddr is the local address:port where this node talks to other
	// nodes. In some cases, there may be a routable address that cannot be
	// bound. Use AdvertiseAddr to advertise a different address to support
	// this. If this address is not routable, the node will be in a constant
	// flapping state as other nodes will treat the non-routability as a
	// failure.
	BindAddr string `mapstructure:"listen"`

	// AdvertiseAddr is used to change the address that we advertise to other
	// nodes.
	AdvertiseAddr string `mapstructure:"advertise"`

	// NoService disables the HTTP API service.
	NoService bool `mapstructure:"no-service"`

	// ServiceAddr is the address:port of the optional HTTP service. If not
	// specified, and "no-service" is not set, the API handlers are registered
	// with the DefaultServerMux of the http package.
	ServiceAddr string `mapstructure:"service-listen"`

	// MaxPool controls how many connections are pooled per target by the
	// transport.
	MaxPool int `mapstructure:"max-pool"`

	// TCPTimeout is the timeout applied to outbound sends.
	TCPTimeout time.Duration `mapstructure:"timeout"`

	// GroupSize is the close-group size; it is also the capacity of a
	// routing-table bucket.
	GroupSize int `mapstructure:"group-size"`

	// Quorum is the number of distinct close-group signatures a group
	// message needs before it is delivered.
	Quorum int `mapstructure:"quorum"`

	// CacheSize is the max number of items in the message filter.
	CacheSize int `mapstructure:"cache-size"`

	// FilterTTL is how long a message identity stays in the filter.
	FilterTTL time.Duration `mapstructure:"filter-ttl"`

	// AccumulateTimeout is how long a group message may gather signatures.
	AccumulateTimeout time.Duration `mapstructure:"accumulate-timeout"`

	// SweepInterval is the period of the cache expiry timer.
	SweepInterval time.Duration `mapstructure:"sweep-interval"`

	// Moniker defines the friendly name of this node
	Moniker string `mapstructure:"moniker"`

	// Proxy is the application proxy that enables the routing layer to
	// communicate with the application.
	Proxy proxy.AppProxy

	// Key is the private key behind the node's overlay identity.
	Key *ecdsa.PrivateKey

	logger *logrus.Logger
}

// NewDefaultConfig returns a config object with default values.
func NewDefaultConfig() *Config {
	config := &Config{
		DataDir:           DefaultDataDir(),
		LogLevel:          DefaultLogLevel,
		BindAddr:          DefaultBindAddr,
		ServiceAddr:       DefaultServiceAddr,
		MaxPool:           DefaultMaxPool,
		TCPTimeout:        DefaultTCPTimeout,
		GroupSize:         DefaultGroupSize,
		Quorum:            DefaultQuorum,
		CacheSize:         DefaultCacheSize,
		FilterTTL:         DefaultFilterTTL,
		AccumulateTimeout: DefaultAccTimeout,
		SweepInterval:     DefaultSweepInterval,
	}

	return config
}

// NewTestConfig returns a config object with default values and a special
// logger for debugging tests.
func NewTestConfig(t testing.TB, level logrus.Level) *Config {
	config := NewDefaultConfig()
	config.logger = common.NewTestLogger(t, level)
	return config
}

// SetDataDir sets the top-level overnet directory.
func (c *Config) SetDataDir(dataDir string) {
	c.DataDir = dataDir
}

// Keyfile returns the full path of the file containing the private key.
func (c *Config) Keyfile() string {
	return filepath.Join(c.DataDir, DefaultKeyfile)
}

// PeersFile returns the full path of the file containing the bootstrap
// contacts.
func (c *Config) PeersFile() string {
	return filepath.Join(c.DataDir, DefaultPeersFile)
}

// Logger returns a formatted logrus Entry, with prefix set to "overnet".
func (c *Config) Logger() *logrus.Entry {
	if c.logger == nil {
		c.logger = logrus.New()
		c.logger.Level = LogLevel(c.LogLevel)
		c.logger.Formatter = new(prefixed.TextFormatter)
	}
	return c.logger.WithField("prefix", "overnet")
}

// RawLogger returns the underlying logrus Logger.
func (c *Config) RawLogger() *logrus.Logger {
	c.Logger()
	return c.logger
}

// DefaultDataDir return the default directory name for top-level overnet
// config based on the underlying OS, attempting to respect conventions.
func DefaultDataDir() string {
	// Try to place the data folder in the user's home dir
	home := HomeDir()
	if home != "" {
		if runtime.GOOS == "darwin" {
			return filepath.Join(home, ".Overnet")
		} else if runtime.GOOS == "windows" {
			return filepath.Join(home, "AppData", "Roaming", "Overnet")
		} else {
			return filepath.Join(home, ".overnet")
		}
	}
	// As we cannot guess a stable location, return empty and handle later
	return ""
}

// HomeDir returns the user's home directory.
func HomeDir() string {
	if home := os.Getenv("HOME"); home != "" {
		return home
	}
	if usr, err := user.Current(); err == nil {
		return usr.HomeDir
	}
	return ""
}

// LogLevel parses a string into a Logrus log level.
func LogLevel(l string) logrus.Level {
	switch l {
	case "debug":
		return logrus.DebugLevel
	case "info":
		return logrus.InfoLevel
	case "warn":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	case "fatal":
		return logrus.FatalLevel
	case "panic":
		return logrus.PanicLevel
	default:
		return logrus.DebugLevel
	}
}
