package cmd

import (
	"fmt"
	"os"

	"github.com/ostafen/kvdb"
	"github.com/ostafen/kvdb/cmd/record"
	"github.com/ostafen/kvdb/cmd/util"
	"github.com/spf13/cobra"
)

const (
	Version = "0.3.0"
)

var (
	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "kvdb",
		Short: "record store over interchangeable backends",
		Long: fmt.Sprintf(`kvdb (v%s)

Insert, read and scan int64-keyed records in an in-memory, badger, bbolt,
PostgreSQL or MySQL store through one interface.`, Version),
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			kvdb.ConfigureLogging()
		},
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of kvdb",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("kvdb v%s\n", Version)
		},
	}
)

func init() {
	cobra.OnInitialize(util.InitConfig)

	util.SetupBackendFlags(RootCmd)

	for _, c := range record.Commands {
		RootCmd.AddCommand(c)
	}
	RootCmd.AddCommand(versionCmd)
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
