// Package cmd implements the streamcore CLI using cobra: persistent flags
// plus subcommand registration.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	topologyFile string
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "streamcore",
	Short: "streamcore - executor core for a distributed stream-processing runtime",
	Long: `streamcore implements the Executor core of a distributed stream-processing
runtime: task dispatch across bounded ring buffers, pluggable stream
groupings, backpressure coordination, and periodic tick/metrics injection.

This binary runs a small in-process demo topology to exercise the core
end to end, and validates topology configuration files.`,
	Version: "0.1.0",
}

// Execute adds all child commands to the root command. Called once by
// main.main().
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&topologyFile, "config", "c", "",
		"topology config file path (YAML/JSON/TOML); empty uses built-in defaults")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(validateCmd)
}

func exitWithError(msg string, err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s: %v\n", msg, err)
	} else {
		fmt.Fprintf(os.Stderr, "Error: %s\n", msg)
	}
	os.Exit(1)
}
