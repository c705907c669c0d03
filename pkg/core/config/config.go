package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config holds the complete rpcreg tool configuration.
type Config struct {
	General GeneralConfig           `toml:"general"`
	Logging LoggingConfig           `toml:"logging"`
	Labels  LabelsConfig            `toml:"labels"`
	Clients map[string]ClientConfig `toml:"clients"`
}

// GeneralConfig holds general settings.
type GeneralConfig struct {
	Name        string `toml:"name"`
	Environment string `toml:"environment"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// LabelsConfig holds label sources shared by every configured client.
type LabelsConfig struct {
	// Static labels are passed as the explicit label set.
	Static map[string]string `toml:"static"`

	// Properties seeds the raw configuration payload (highest collection
	// tier). When empty, label collection is skipped entirely.
	Properties map[string]string `toml:"properties"`
}

// ClientConfig declares one named client in the registry.
type ClientConfig struct {
	Targets        []string          `toml:"targets"`
	Type           string            `toml:"type"`    // transport kind, "grpc"
	Cluster        bool              `toml:"cluster"` // cluster variant over the target list
	Labels         map[string]string `toml:"labels"`
	WorkerCoreSize int               `toml:"worker_core_size"`
	WorkerMaxSize  int               `toml:"worker_max_size"`
	Timeout        Duration          `toml:"timeout"`
	Block          bool              `toml:"block"`
	TLS            *TLSConfig        `toml:"tls"`
}

// TLSConfig mirrors the transport security settings of a client block.
type TLSConfig struct {
	CertFile           string `toml:"cert_file"`
	KeyFile            string `toml:"key_file"`
	CAFile             string `toml:"ca_file"`
	ServerName         string `toml:"server_name"`
	InsecureSkipVerify bool   `toml:"insecure_skip_verify"`
}

// Duration wraps time.Duration for TOML parsing.
type Duration struct {
	time.Duration
}

// UnmarshalText parses a duration string.
func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText formats the duration as a string.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Load loads configuration from a TOML file.
func Load(path string) (*Config, error) {
	// Expand environment variables in path
	path = os.ExpandEnv(path)

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s", path)
	}

	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyDefaults()
	cfg.expandEnvVars()

	return &cfg, nil
}

// LoadFromEnv loads configuration from the RPCREG_CONFIG environment
// variable, falling back to the default search paths.
func LoadFromEnv() (*Config, error) {
	path := os.Getenv("RPCREG_CONFIG")
	if path == "" {
		defaultPaths := []string{
			"./configs/rpcreg.toml",
			"./rpcreg.toml",
			filepath.Join(os.Getenv("HOME"), ".config/rpcreg/rpcreg.toml"),
		}
		for _, p := range defaultPaths {
			if _, err := os.Stat(p); err == nil {
				path = p
				break
			}
		}
	}

	if path == "" {
		return nil, fmt.Errorf("no config file found, set RPCREG_CONFIG or create configs/rpcreg.toml")
	}

	return Load(path)
}

// applyDefaults sets default values for missing configuration.
func (c *Config) applyDefaults() {
	if c.General.Name == "" {
		c.General.Name = "rpcreg"
	}
	if c.General.Environment == "" {
		c.General.Environment = "development"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}

	for name, client := range c.Clients {
		if client.Type == "" {
			client.Type = "grpc"
		}
		if client.Timeout.Duration == 0 {
			client.Timeout.Duration = 30 * time.Second
		}
		c.Clients[name] = client
	}
}

// expandEnvVars expands environment variables in path-valued fields.
func (c *Config) expandEnvVars() {
	for name, client := range c.Clients {
		if client.TLS == nil {
			continue
		}
		client.TLS.CertFile = os.ExpandEnv(client.TLS.CertFile)
		client.TLS.KeyFile = os.ExpandEnv(client.TLS.KeyFile)
		client.TLS.CAFile = os.ExpandEnv(client.TLS.CAFile)
		c.Clients[name] = client
	}
}

// ClientNames returns the configured client names in no particular order.
func (c *Config) ClientNames() []string {
	names := make([]string, 0, len(c.Clients))
	for name := range c.Clients {
		names = append(names, name)
	}
	return names
}
