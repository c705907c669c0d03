package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"rpcreg/pkg/core/config"
	"rpcreg/pkg/core/logging"
)

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "rpcreg",
	Short: "rpcreg - named RPC client registry toolkit",
	Long: `rpcreg manages named gRPC clients: one live client per name,
connection labels assembled from config, collectors, process
properties and the environment.

Commands:
  check    - build the configured clients and report channel states
  labels   - resolve and print the label set for a client
  version  - print version information`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// A .env file may provision RPCREG_LABEL_* variables for the
		// environment label tier. Missing files are fine.
		_ = godotenv.Load()
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./configs/rpcreg.toml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

// loadConfig resolves the configuration and applies its logging settings.
func loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if cfgFile != "" {
		cfg, err = config.Load(cfgFile)
	} else {
		cfg, err = config.LoadFromEnv()
	}
	if err != nil {
		return nil, err
	}

	level := cfg.Logging.Level
	if verbose {
		level = "debug"
	}
	logging.Configure(logging.Config{Level: level, Format: cfg.Logging.Format})

	return cfg, nil
}

func printError(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
}
