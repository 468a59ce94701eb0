// Package config reads the finledger.yaml configuration file.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rumor-ml/commons.systems/finledger/internal/parsers/bankcsv"
)

// Config represents the top-level finledger.yaml configuration.
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Currency CurrencyConfig `yaml:"currency"`
	Rules    RulesConfig    `yaml:"rules"`
	Import   ImportConfig   `yaml:"import"`
}

// DatabaseConfig locates the transaction store.
type DatabaseConfig struct {
	// Path to the SQLite file. Empty means an in-memory store.
	Path string `yaml:"path,omitempty"`
}

// CurrencyConfig controls conversion and the rate provider.
type CurrencyConfig struct {
	// Base is the settlement currency for transfer reconciliation.
	Base string `yaml:"base"`
	// ProviderURL is the exchange-rate endpoint. Empty disables live
	// rates and falls back to the built-in table.
	ProviderURL     string   `yaml:"provider_url,omitempty"`
	ProviderTimeout Duration `yaml:"provider_timeout,omitempty"`
}

// Duration wraps time.Duration so YAML values like "5s" parse.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// RulesConfig locates categorization rules.
type RulesConfig struct {
	// Path to a YAML rule file. Empty uses the embedded defaults.
	Path string `yaml:"path,omitempty"`
}

// ImportConfig controls the import run.
type ImportConfig struct {
	// Dir is the statement directory scanned for files.
	Dir string `yaml:"dir,omitempty"`
	// ReportPath receives the JSON run report. Empty writes to stdout.
	ReportPath string `yaml:"report_path,omitempty"`
	// CSVMappings registers additional bank CSV layouts alongside the
	// built-in ones.
	CSVMappings []bankcsv.Mapping `yaml:"csv_mappings,omitempty"`
}

// Load reads a finledger.yaml file from disk and applies defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes a Config to a YAML file.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Currency.Base == "" {
		c.Currency.Base = "USD"
	}
	if c.Currency.ProviderTimeout == 0 {
		c.Currency.ProviderTimeout = Duration(10 * time.Second)
	}
}

func (c *Config) validate() error {
	if len(c.Currency.Base) != 3 {
		return fmt.Errorf("invalid base currency %q: must be a 3-letter code", c.Currency.Base)
	}
	for i := range c.Import.CSVMappings {
		if err := c.Import.CSVMappings[i].Validate(); err != nil {
			return fmt.Errorf("csv mapping %d: %w", i+1, err)
		}
	}
	return nil
}
