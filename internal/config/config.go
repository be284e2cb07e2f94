package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// FileName is the config file looked up by LoadFromDir.
const FileName = "slidestudio.yaml"

// Storage backends.
const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendFolder   = "folder"
)

// Config represents the slidestudio configuration
type Config struct {
	Title   string        `yaml:"title"`
	Server  ServerConfig  `yaml:"server"`
	Storage StorageConfig `yaml:"storage"`
	Design  DesignConfig  `yaml:"design"`
	Log     LogConfig     `yaml:"log"`
	Rate    RateConfig    `yaml:"rate"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port  int    `yaml:"port"`
	Host  string `yaml:"host"`
	Debug bool   `yaml:"debug"`
}

// StorageConfig selects where the deck is persisted.
type StorageConfig struct {
	Backend  string `yaml:"backend"`            // memory, sqlite, postgres or folder
	Path     string `yaml:"path,omitempty"`     // sqlite file or deck folder (relative to the config dir)
	DSN      string `yaml:"dsn,omitempty"`      // postgres connection string (env vars expanded)
	Autosave string `yaml:"autosave,omitempty"` // debounce delay, e.g. "1500ms"
}

// DesignConfig tunes design mode.
type DesignConfig struct {
	// EmitDuringDrag sends document updates on every pointer move instead
	// of once on pointer-up.
	EmitDuringDrag bool `yaml:"emit_during_drag"`
	NaturalWidth   int  `yaml:"natural_width,omitempty"`
	NaturalHeight  int  `yaml:"natural_height,omitempty"`
}

// LogConfig enables rotating file output. Empty File logs to stderr only.
type LogConfig struct {
	File       string `yaml:"file,omitempty"`
	MaxSizeMB  int    `yaml:"max_size_mb,omitempty"`
	MaxBackups int    `yaml:"max_backups,omitempty"`
	MaxAgeDays int    `yaml:"max_age_days,omitempty"`
}

// RateConfig holds rate limiting configuration for the API
type RateConfig struct {
	RPS   float64 `yaml:"rps,omitempty"`   // requests per second per client (default: 20)
	Burst int     `yaml:"burst,omitempty"` // default: 40
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Title: "Slide Studio",
		Server: ServerConfig{
			Port:  8080,
			Host:  "localhost",
			Debug: false,
		},
		Storage: StorageConfig{
			Backend: BackendMemory,
		},
		Design: DesignConfig{
			NaturalWidth:  1280,
			NaturalHeight: 720,
		},
	}
}

// GetAutosaveDelay returns the autosave debounce delay (default: 1500ms)
func (s StorageConfig) GetAutosaveDelay() time.Duration {
	if s.Autosave == "" {
		return 1500 * time.Millisecond
	}
	d, err := time.ParseDuration(s.Autosave)
	if err != nil || d <= 0 {
		return 1500 * time.Millisecond
	}
	return d
}

// GetDSN returns the DSN with environment variable expansion
func (s StorageConfig) GetDSN() string {
	return os.ExpandEnv(s.DSN)
}

// GetRPS returns the per-client request rate (default: 20)
func (r RateConfig) GetRPS() float64 {
	if r.RPS <= 0 {
		return 20
	}
	return r.RPS
}

// GetBurst returns the burst size (default: 40)
func (r RateConfig) GetBurst() int {
	if r.Burst <= 0 {
		return 40
	}
	return r.Burst
}

// GetMaxSizeMB returns the size at which the log file rotates (default: 10)
func (l LogConfig) GetMaxSizeMB() int {
	if l.MaxSizeMB <= 0 {
		return 10
	}
	return l.MaxSizeMB
}

// GetMaxBackups returns how many rotated files to keep (default: 3)
func (l LogConfig) GetMaxBackups() int {
	if l.MaxBackups <= 0 {
		return 3
	}
	return l.MaxBackups
}

// GetMaxAgeDays returns how long rotated files are kept (default: 28)
func (l LogConfig) GetMaxAgeDays() int {
	if l.MaxAgeDays <= 0 {
		return 28
	}
	return l.MaxAgeDays
}

// Addr returns host:port.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// Validate checks the storage and server settings.
func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d is out of range", c.Server.Port)
	}
	switch c.Storage.Backend {
	case "", BackendMemory:
	case BackendSQLite, BackendFolder:
		if c.Storage.Path == "" {
			return fmt.Errorf("storage.path is required for the %s backend", c.Storage.Backend)
		}
	case BackendPostgres:
		if c.Storage.GetDSN() == "" {
			return fmt.Errorf("storage.dsn is required for the postgres backend")
		}
	default:
		return fmt.Errorf("storage.backend %q is not one of memory, sqlite, postgres, folder", c.Storage.Backend)
	}
	if c.Design.NaturalWidth < 0 || c.Design.NaturalHeight < 0 {
		return fmt.Errorf("design natural size cannot be negative")
	}
	return nil
}

// Load loads configuration from a YAML file
// If the file doesn't exist, returns the default configuration
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		return DefaultConfig(), nil
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return DefaultConfig(), nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig() // Start with defaults
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Relative storage paths are resolved against the config file.
	if config.Storage.Path != "" && !filepath.IsAbs(config.Storage.Path) {
		config.Storage.Path = filepath.Join(filepath.Dir(configPath), config.Storage.Path)
	}

	return config, nil
}

// LoadFromDir looks for slidestudio.yaml in the given directory.
// If it is not found, returns the default configuration
func LoadFromDir(dir string) (*Config, error) {
	return Load(filepath.Join(dir, FileName))
}

// Save writes the configuration to a YAML file
func (c *Config) Save(configPath string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
