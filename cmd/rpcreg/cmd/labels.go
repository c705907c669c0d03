package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"rpcreg/pkg/core/labels"
)

var labelsCmd = &cobra.Command{
	Use:   "labels [client]",
	Short: "Resolve and print the label set for a client",
	Long: `Resolves the label set a client would attach to its requests:
the client's explicit labels merged over the collected tiers
(properties, collectors, process properties, environment), then
namespaced. The result is printed as YAML.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLabels,
}

func init() {
	rootCmd.AddCommand(labelsCmd)
}

func runLabels(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	explicit := cfg.Labels.Static
	if len(args) == 1 {
		clientCfg, ok := cfg.Clients[args[0]]
		if !ok {
			return fmt.Errorf("client %q not configured", args[0])
		}
		explicit = labels.MergeByOrder(clientCfg.Labels, cfg.Labels.Static)
	}

	var props *labels.Properties
	if len(cfg.Labels.Properties) > 0 {
		props = labels.FromMap(cfg.Labels.Properties)
	}

	resolved := labels.Resolve(explicit, props)

	out, err := yaml.Marshal(resolved)
	if err != nil {
		return fmt.Errorf("encode labels: %w", err)
	}
	fmt.Print(string(out))
	return nil
}
