package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

const (
	DefaultListen         = "0.0.0.0:9586"
	DefaultAllowedIPMode  = "combined"
	DefaultDumpTimeoutSec = 5
)

// Config holds the exporter settings. Every field can come from the YAML
// config file; command-line flags override individual fields afterwards.
type Config struct {
	// Listen is the host:port the HTTP server binds to.
	Listen string `yaml:"listen"`

	// Interfaces lists the WireGuard interfaces to dump, in request order.
	// Empty means ["all"], which asks wg for every interface in one call.
	Interfaces []string `yaml:"interfaces,omitempty"`

	// ConfigFiles are WireGuard config files scanned for friendly_name /
	// friendly_json peer comments. Parsed in order; later files win.
	ConfigFiles []string `yaml:"config_files,omitempty"`

	// AllowedIPMode is "combined" (one allowed_ips label) or "split"
	// (allowed_ip_N / allowed_subnet_N label pairs).
	AllowedIPMode string `yaml:"allowed_ip_mode"`

	// ExportRemoteEndpoint adds endpoint and remote_port labels for peers
	// with a known endpoint.
	ExportRemoteEndpoint bool `yaml:"export_remote_endpoint"`

	// HandshakeTimeoutSec, when set, splits wireguard_peers_total per
	// interface into seen_recently="true"/"false" samples.
	HandshakeTimeoutSec *uint64 `yaml:"handshake_timeout_sec,omitempty"`

	// PrependSudo runs wg via sudo for setups where the exporter does not
	// own CAP_NET_ADMIN.
	PrependSudo bool `yaml:"prepend_sudo"`

	// DumpTimeoutSec bounds each wg show invocation. A dump slower than
	// this fails the scrape.
	DumpTimeoutSec int `yaml:"dump_timeout_sec"`

	Verbose bool `yaml:"verbose"`
}

// Load reads and parses a YAML config file.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse %s: %w", path, err)
	}

	ApplyDefaults(&cfg)
	return cfg, nil
}

// Validate performs minimal validation for required fields.
func Validate(cfg Config) error {
	if cfg.Listen == "" {
		return fmt.Errorf("listen is required")
	}
	if cfg.AllowedIPMode != "combined" && cfg.AllowedIPMode != "split" {
		return fmt.Errorf("allowed_ip_mode must be combined or split, got %q", cfg.AllowedIPMode)
	}
	for _, iface := range cfg.Interfaces {
		if iface == "" {
			return fmt.Errorf("interfaces must not contain empty names")
		}
	}
	if cfg.DumpTimeoutSec <= 0 {
		return fmt.Errorf("dump_timeout_sec must be positive")
	}
	return nil
}

// ApplyDefaults fills in default values when empty.
func ApplyDefaults(cfg *Config) {
	if cfg.Listen == "" {
		cfg.Listen = DefaultListen
	}
	if len(cfg.Interfaces) == 0 {
		cfg.Interfaces = []string{"all"}
	}
	if cfg.AllowedIPMode == "" {
		cfg.AllowedIPMode = DefaultAllowedIPMode
	}
	if cfg.DumpTimeoutSec == 0 {
		cfg.DumpTimeoutSec = DefaultDumpTimeoutSec
	}
}
