// Package config loads the configuration of a hedge input session.
// It is read once at startup and passed to the session as a value.
package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/MTES-MCT/envergo/internal/embed"
	"github.com/MTES-MCT/envergo/internal/models"
	"github.com/MTES-MCT/envergo/internal/validation"
	"github.com/pelletier/go-toml/v2"
)

const (
	ConfigFile = "haies.toml"

	DefaultDebounceMS            = 500
	DefaultRequestTimeoutSeconds = 10
)

// Config represents the session configuration
type Config struct {
	Mode                  string  `toml:"mode"`
	Origin                string  `toml:"origin"`
	ConditionsURL         string  `toml:"conditions_url,omitempty"`
	SaveURL               string  `toml:"save_url,omitempty"`
	HostURL               string  `toml:"host_url,omitempty"` // relay receiving host messages
	MinimumLengthToPlant  float64 `toml:"minimum_length_to_plant"`
	DebounceMS            int     `toml:"debounce_ms"`
	RequestTimeoutSeconds int     `toml:"request_timeout_seconds"`
	HedgesFile            string  `toml:"hedges_file,omitempty"` // previously saved dataset

	// Schema replaces the attributes asked for a hedge type, keyed by type.
	Schema map[string][]validation.Attribute `toml:"schema,omitempty"`

	path string // path to the config file
}

// Default returns a configuration with every default applied.
func Default() *Config {
	return &Config{
		Mode:                  string(models.ModePlantation),
		DebounceMS:            DefaultDebounceMS,
		RequestTimeoutSeconds: DefaultRequestTimeoutSeconds,
	}
}

// Find finds haies.toml by walking up from the current directory
func Find() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		path := filepath.Join(dir, ConfigFile)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("no %s found (in the current directory or any parent up to root)", ConfigFile)
		}
		dir = parent
	}
}

// Load loads and validates the configuration file at path. An empty path
// searches the current directory and its parents.
func Load(path string) (*Config, error) {
	if path == "" {
		found, err := Find()
		if err != nil {
			return nil, err
		}
		path = found
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := Default()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.path = path

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Save saves the configuration to disk
func (c *Config) Save() error {
	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	return os.WriteFile(c.path, data, 0644)
}

// Path returns the path of the config file
func (c *Config) Path() string {
	return c.path
}

// Initialize writes a new haies.toml in dir.
func Initialize(dir, mode, origin string) (*Config, error) {
	path := filepath.Join(dir, ConfigFile)

	// Check if already initialized
	if _, err := os.Stat(path); err == nil {
		return nil, fmt.Errorf("%s already exists", path)
	}

	cfg := Default()
	cfg.Mode = mode
	cfg.Origin = origin
	cfg.path = path
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if err := cfg.Save(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks every setting.
func (c *Config) Validate() error {
	if _, err := models.ParseMode(c.Mode); err != nil {
		return err
	}
	if _, err := embed.NormalizeOrigin(c.Origin); err != nil {
		return fmt.Errorf("origin: %w", err)
	}
	for name, raw := range map[string]string{
		"conditions_url": c.ConditionsURL,
		"save_url":       c.SaveURL,
		"host_url":       c.HostURL,
	} {
		if raw == "" {
			continue
		}
		u, err := url.Parse(raw)
		if err != nil || !u.IsAbs() || u.Host == "" {
			return fmt.Errorf("%s: %q is not an absolute URL", name, raw)
		}
	}
	if c.MinimumLengthToPlant < 0 {
		return fmt.Errorf("minimum_length_to_plant must not be negative")
	}
	if c.DebounceMS < 0 {
		return fmt.Errorf("debounce_ms must not be negative")
	}
	if c.RequestTimeoutSeconds < 0 {
		return fmt.Errorf("request_timeout_seconds must not be negative")
	}
	if _, err := c.SchemaOverrides(); err != nil {
		return err
	}
	return nil
}

// ParsedMode returns the session mode. The config must be valid.
func (c *Config) ParsedMode() models.Mode {
	m, _ := models.ParseMode(c.Mode)
	return m
}

// Debounce returns the compliance debounce period.
func (c *Config) Debounce() time.Duration {
	return time.Duration(c.DebounceMS) * time.Millisecond
}

// RequestTimeout returns the timeout of remote requests.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

// SchemaOverrides returns the declared attribute schemas.
func (c *Config) SchemaOverrides() ([]validation.Schema, error) {
	var schemas []validation.Schema
	for _, t := range models.HedgeTypes {
		attrs, ok := c.Schema[string(t)]
		if !ok {
			continue
		}
		s := validation.Schema{Type: t, Attributes: attrs}
		if err := s.Validate(); err != nil {
			return nil, err
		}
		schemas = append(schemas, s)
	}
	for key := range c.Schema {
		if !models.HedgeType(key).Valid() {
			return nil, fmt.Errorf("schema: unknown hedge type %q", key)
		}
	}
	return schemas, nil
}

// LoadHedges reads the previously saved dataset, if any. A relative
// hedges_file is resolved against the config file directory.
func (c *Config) LoadHedges() ([]models.HedgeRecord, error) {
	if c.HedgesFile == "" {
		return nil, nil
	}
	path := c.HedgesFile
	if !filepath.IsAbs(path) && c.path != "" {
		path = filepath.Join(filepath.Dir(c.path), path)
	}
	return ReadHedges(path)
}

// ReadHedges reads a JSON array of hedge records.
func ReadHedges(path string) ([]models.HedgeRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read hedges: %w", err)
	}
	var records []models.HedgeRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("parse hedges %s: %w", path, err)
	}
	return records, nil
}
