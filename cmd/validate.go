package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"firestige.xyz/streamcore/internal/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate <topology-config-file>",
	Short: "Validate a topology configuration file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return validateTopologyFile(args[0])
	},
}

func validateTopologyFile(path string) error {
	cfg, err := config.LoadTopologyConfig(path)
	if err != nil {
		exitWithError("invalid topology config", err)
		return err
	}

	if high, low := cfg.GetFloat64(config.KeyBackpressureHighWM), cfg.GetFloat64(config.KeyBackpressureLowWM); low >= high {
		err := fmt.Errorf("%s (%v) must be lower than %s (%v)", config.KeyBackpressureLowWM, low, config.KeyBackpressureHighWM, high)
		exitWithError("invalid topology config", err)
		return err
	}
	if size := cfg.GetInt(config.KeyExecutorSendBufferSize); size <= 0 {
		err := fmt.Errorf("%s must be positive, got %d", config.KeyExecutorSendBufferSize, size)
		exitWithError("invalid topology config", err)
		return err
	}

	fmt.Printf("%s: valid\n", path)
	for k, v := range cfg.All() {
		fmt.Printf("  %s = %v\n", k, v)
	}
	return nil
}
