package cmd

import (
	"context"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"rpcreg/pkg/core/config"
	"rpcreg/pkg/core/labels"
	"rpcreg/pkg/core/remote"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Build the configured clients and report channel states",
	Long: `Builds every client declared in the configuration through the
registry, connects each to its targets and reports the resulting
channel state. All clients are destroyed before the command exits.`,
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if len(cfg.Clients) == 0 {
		return fmt.Errorf("no clients configured")
	}

	registry := remote.NewRegistry()
	defer registry.ShutdownAll()

	ctx := context.Background()
	names := cfg.ClientNames()
	sort.Strings(names)

	failures := 0
	for _, name := range names {
		clientCfg := cfg.Clients[name]

		client, err := buildClient(registry, name, clientCfg, cfg)
		if err != nil {
			printError(fmt.Sprintf("create client %s", name), err)
			failures++
			continue
		}
		if err := client.Connect(ctx, clientCfg.Targets...); err != nil {
			printError(fmt.Sprintf("connect client %s", name), err)
			failures++
		}
	}

	fmt.Println("Clients:")
	fmt.Println("--------")
	status := registry.Status()
	for _, name := range names {
		state, ok := status[name]
		if !ok {
			state = "NOT CREATED"
		}
		fmt.Printf("  %-24s %s\n", name, state)
	}

	if failures > 0 {
		return fmt.Errorf("%d client(s) failed", failures)
	}
	return nil
}

// buildClient maps a config block onto the registry's construction request.
func buildClient(registry *remote.Registry, name string, clientCfg config.ClientConfig, cfg *config.Config) (remote.Client, error) {
	if len(clientCfg.Targets) == 0 {
		return nil, fmt.Errorf("no targets configured")
	}

	dial := remote.DefaultDialConfig()
	dial.Timeout = clientCfg.Timeout.Duration
	dial.Block = clientCfg.Block

	opts := remote.ClientOptions{
		WorkerCoreSize: clientCfg.WorkerCoreSize,
		WorkerMaxSize:  clientCfg.WorkerMaxSize,
		Labels:         labels.MergeByOrder(clientCfg.Labels, cfg.Labels.Static),
		TLS:            mapTLS(clientCfg.TLS),
		Dial:           &dial,
	}
	if len(cfg.Labels.Properties) > 0 {
		opts.Properties = labels.FromMap(cfg.Labels.Properties)
	}

	connType := remote.ConnectionType(normalizeType(clientCfg.Type))
	if clientCfg.Cluster {
		return registry.CreateClusterClient(name, connType, opts)
	}
	return registry.CreateClient(name, connType, opts)
}

func normalizeType(t string) string {
	switch t {
	case "", "grpc", "GRPC":
		return string(remote.ConnectionTypeGRPC)
	default:
		return t
	}
}

func mapTLS(t *config.TLSConfig) *remote.TLSConfig {
	if t == nil {
		return nil
	}
	return &remote.TLSConfig{
		CertFile:           t.CertFile,
		KeyFile:            t.KeyFile,
		CAFile:             t.CAFile,
		ServerName:         t.ServerName,
		InsecureSkipVerify: t.InsecureSkipVerify,
	}
}
