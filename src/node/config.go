package node

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/overnet/overnet/src/common"
)

// Config holds the parameters of the relay engine.
type Config struct {
	// GroupSize is the close-group size G; it is also the capacity of a
	// routing-table bucket.
	GroupSize int `mapstructure:"group-size"`

	// Quorum is the number of distinct close-group signatures a group
	// message needs before it is delivered. It must exceed GroupSize/2.
	Quorum int `mapstructure:"quorum"`

	// CacheSize bounds the message filter.
	CacheSize int `mapstructure:"cache-size"`

	// FilterTTL is how long a message identity stays in the filter.
	FilterTTL time.Duration `mapstructure:"filter-ttl"`

	// AccumulateTimeout is how long a group message may gather signatures
	// before its pending entry is dropped.
	AccumulateTimeout time.Duration `mapstructure:"accumulate-timeout"`

	// SweepInterval is the period of the cache expiry timer.
	SweepInterval time.Duration `mapstructure:"sweep-interval"`

	// TCPTimeout is the I/O deadline applied to outbound sends.
	TCPTimeout time.Duration `mapstructure:"timeout"`

	Logger *logrus.Logger
}

// NewConfig ...
func NewConfig(
	groupSize int,
	quorum int,
	cacheSize int,
	filterTTL time.Duration,
	accumulateTimeout time.Duration,
	sweepInterval time.Duration,
	timeout time.Duration,
	logger *logrus.Logger) *Config {

	return &Config{
		GroupSize:         groupSize,
		Quorum:            quorum,
		CacheSize:         cacheSize,
		FilterTTL:         filterTTL,
		AccumulateTimeout: accumulateTimeout,
		SweepInterval:     sweepInterval,
		TCPTimeout:        timeout,
		Logger:            logger,
	}
}

// DefaultConfig returns the default group geometry: groups of 8 with a
// majority quorum of 5.
func DefaultConfig() *Config {
	logger := logrus.New()
	logger.Level = logrus.DebugLevel

	return &Config{
		GroupSize:         8,
		Quorum:            5,
		CacheSize:         5000,
		FilterTTL:         10 * time.Minute,
		AccumulateTimeout: 60 * time.Second,
		SweepInterval:     10 * time.Second,
		TCPTimeout:        1000 * time.Millisecond,
		Logger:            logger,
	}
}

// TestConfig ...
func TestConfig(t *testing.T) *Config {
	config := DefaultConfig()
	config.Logger = common.NewTestLogger(t, logrus.DebugLevel)
	return config
}
