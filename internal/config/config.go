package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const fileName = "fiscalia.yml"

// Config models fiscalia.yml.
type Config struct {
	Fiscalias    []FiscaliaConfig   `yaml:"fiscalias" json:"fiscalias"`
	Reassignment ReassignmentConfig `yaml:"reassignment" json:"reassignment"`
	Log          LogConfig          `yaml:"log" json:"log"`
	Server       ServerConfig       `yaml:"server" json:"server"`
	Webhooks     []WebhookConfig    `yaml:"webhooks" json:"webhooks,omitempty"`
}

type FiscaliaConfig struct {
	ID   int64  `yaml:"id" json:"id"`
	Name string `yaml:"nombre" json:"nombre"`
}

type ReassignmentConfig struct {
	// AllowSameFiscal accepts a reassignment to the fiscal already holding the case.
	AllowSameFiscal bool `yaml:"allow_same_fiscal" json:"allow_same_fiscal"`
}

type LogConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
}

type ServerConfig struct {
	Addr     string `yaml:"addr" json:"addr"`
	BasePath string `yaml:"base_path" json:"base_path"`
}

type WebhookConfig struct {
	URL            string `yaml:"url" json:"url"`
	Secret         string `yaml:"secret" json:"-"`
	TimeoutSeconds int    `yaml:"timeout_seconds" json:"timeout_seconds,omitempty"`
	Enabled        *bool  `yaml:"enabled" json:"enabled,omitempty"`
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; create one with fsc config init", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// LoadOptional returns the default config if the file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if len(c.Fiscalias) == 0 {
		return fmt.Errorf("config.fiscalias must list at least one fiscalia")
	}
	seen := make(map[int64]struct{}, len(c.Fiscalias))
	for _, f := range c.Fiscalias {
		if f.ID <= 0 {
			return fmt.Errorf("fiscalia id must be a positive integer, got %d", f.ID)
		}
		if strings.TrimSpace(f.Name) == "" {
			return fmt.Errorf("fiscalia %d has empty nombre", f.ID)
		}
		if _, ok := seen[f.ID]; ok {
			return fmt.Errorf("fiscalia %d declared twice", f.ID)
		}
		seen[f.ID] = struct{}{}
	}
	switch c.Log.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config.log.level %q is not one of debug, info, warn, error", c.Log.Level)
	}
	switch c.Log.Format {
	case "", "json", "console":
	default:
		return fmt.Errorf("config.log.format %q is not one of json, console", c.Log.Format)
	}
	if c.Server.BasePath != "" && !strings.HasPrefix(c.Server.BasePath, "/") {
		return fmt.Errorf("config.server.base_path must start with /")
	}
	for i, hook := range c.Webhooks {
		u, err := url.Parse(hook.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("webhook %d has invalid url %q", i, hook.URL)
		}
		if hook.TimeoutSeconds < 0 {
			return fmt.Errorf("webhook %d has negative timeout", i)
		}
	}
	return nil
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, fileName)
}

// GenerateDefault returns default config YAML.
func GenerateDefault() string {
	return defaultTemplate
}

// Default returns the default Config struct.
func Default() *Config {
	cfg, err := FromYAML([]byte(defaultTemplate))
	if err != nil {
		panic(fmt.Sprintf("default config invalid: %v", err))
	}
	return cfg
}

// FromYAML parses and validates config from raw YAML bytes.
func FromYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

// FiscaliaIDs returns the configured fiscalia ids in declaration order.
func (c *Config) FiscaliaIDs() []int64 {
	ids := make([]int64, 0, len(c.Fiscalias))
	for _, f := range c.Fiscalias {
		ids = append(ids, f.ID)
	}
	return ids
}

const defaultTemplate = `fiscalias:
  - id: 1
    nombre: "Fiscalía General"

reassignment:
  allow_same_fiscal: false

log:
  level: info
  format: json

server:
  addr: 127.0.0.1:3000
  base_path: /api
`
