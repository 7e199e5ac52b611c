package commands

import (
	"path/filepath"

	"github.com/rifflock/lfshook"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/overnet/overnet/src/overnet"
	"github.com/overnet/overnet/src/proxy/dummy"
)

var logToFile bool

//NewRunCmd returns the command that starts an overnet node
func NewRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "run",
		Short:   "Run node",
		PreRunE: loadConfig,
		RunE:    runOvernet,
	}
	AddRunFlags(cmd)
	return cmd
}

/*******************************************************************************
* RUN
*******************************************************************************/

func runOvernet(cmd *cobra.Command, args []string) error {
	_config.Proxy = dummy.NewDummyClient(_config.RawLogger())

	engine := overnet.NewOvernet(_config)

	if err := engine.Init(); err != nil {
		_config.Logger().Error("Cannot initialize engine:", err)
		return err
	}

	return engine.Run()
}

/*******************************************************************************
* CONFIG
*******************************************************************************/

//AddRunFlags adds flags to the Run command
func AddRunFlags(cmd *cobra.Command) {

	cmd.Flags().String("datadir", _config.DataDir, "Top-level directory for configuration and data")
	cmd.Flags().String("log", _config.LogLevel, "debug, info, warn, error, fatal, panic")
	cmd.Flags().String("moniker", _config.Moniker, "Optional name")
	cmd.Flags().BoolVar(&logToFile, "log-to-file", false, "Also write logs to [datadir]/overnet.log")

	// Network
	cmd.Flags().StringP("listen", "l", _config.BindAddr, "Listen IP:Port for overnet node")
	cmd.Flags().StringP("advertise", "a", _config.AdvertiseAddr, "Advertise IP:Port for overnet node")
	cmd.Flags().DurationP("timeout", "t", _config.TCPTimeout, "TCP Timeout")
	cmd.Flags().Int("max-pool", _config.MaxPool, "Connection pool size max")

	// Service
	cmd.Flags().Bool("no-service", _config.NoService, "Disable the HTTP service")
	cmd.Flags().StringP("service-listen", "s", _config.ServiceAddr, "Listen IP:Port for HTTP service")

	// Routing
	cmd.Flags().Int("group-size", _config.GroupSize, "Close-group size")
	cmd.Flags().Int("quorum", _config.Quorum, "Group-message quorum")
	cmd.Flags().Int("cache-size", _config.CacheSize, "Number of items in the message filter")
	cmd.Flags().Duration("filter-ttl", _config.FilterTTL, "Message filter entry lifetime")
	cmd.Flags().Duration("accumulate-timeout", _config.AccumulateTimeout, "Group message accumulation timeout")
	cmd.Flags().Duration("sweep-interval", _config.SweepInterval, "Cache expiry sweep period")
}

func loadConfig(cmd *cobra.Command, args []string) error {

	err := bindFlagsLoadViper(cmd)
	if err != nil {
		return err
	}

	if logToFile {
		logPath := filepath.Join(_config.DataDir, "overnet.log")
		_config.RawLogger().AddHook(lfshook.NewHook(logPath, &logrus.JSONFormatter{}))
	}

	_config.Logger().WithFields(logrus.Fields{
		"DataDir":           _config.DataDir,
		"BindAddr":          _config.BindAddr,
		"AdvertiseAddr":     _config.AdvertiseAddr,
		"ServiceAddr":       _config.ServiceAddr,
		"MaxPool":           _config.MaxPool,
		"LogLevel":          _config.LogLevel,
		"Moniker":           _config.Moniker,
		"TCPTimeout":        _config.TCPTimeout,
		"GroupSize":         _config.GroupSize,
		"Quorum":            _config.Quorum,
		"CacheSize":         _config.CacheSize,
		"FilterTTL":         _config.FilterTTL,
		"AccumulateTimeout": _config.AccumulateTimeout,
		"SweepInterval":     _config.SweepInterval,
	}).Debug("RUN")

	return nil
}

// Bind all flags and read the config into viper
func bindFlagsLoadViper(cmd *cobra.Command) error {
	// Register flags with viper. Include flags from this command and all other
	// persistent flags from the parent
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	// look for config file in [datadir]/overnet.toml (.json, .yaml also work)
	viper.SetConfigName("overnet")
	viper.AddConfigPath(viper.GetString("datadir"))

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		_config.Logger().Debugf("Using config file: %s", viper.ConfigFileUsed())
	} else if _, ok := err.(viper.ConfigFileNotFoundError); ok {
		_config.Logger().Debugf("No config file found in: %s", viper.GetString("datadir"))
	} else {
		return err
	}

	return viper.Unmarshal(_config)
}
