package commands

import (
	"github.com/spf13/cobra"

	"github.com/overnet/overnet/src/config"
)

var (
	_config = config.NewDefaultConfig()
)

//RootCmd is the root command for overnet
var RootCmd = &cobra.Command{
	Use:              "overnet",
	Short:            "overnet secured-storage routing",
	TraverseChildren: true,
}
