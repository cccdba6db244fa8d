// Command hatchery boots one guest program under hatchery's hardware
// virtualization engine: a Master that runs to quiescence and freezes as
// a copy-on-write template, and a pool of Worker forks that each serve
// one client connection before resetting back to it.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "hatchery",
	Short: "Hardware-virtualized request server",
	Long: `hatchery boots a guest program inside a hardware-virtualized Master,
freezes it at quiescence, and serves requests with copy-on-write Worker
forks that reset back to the frozen template after every connection.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "Layer a TOML config file underneath the CLI flags")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
