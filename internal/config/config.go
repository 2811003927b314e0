// Package config loads the izgubljeno configuration file.
//
// Values of the form ${VAR} are replaced with environment variables before
// the YAML is parsed. Durations are written as Go duration strings.
package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Storage backends.
const (
	BackendSQLite = "sqlite"
	BackendFile   = "file"
	BackendMemory = "memory"
)

// Config is the complete service configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Auth      AuthConfig      `yaml:"auth"`
	Logging   LoggingConfig   `yaml:"logging"`
	Images    ImagesConfig    `yaml:"images"`
	Bootstrap BootstrapConfig `yaml:"bootstrap"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr         string        `yaml:"addr"`
	ReadTimeout  time.Duration `yaml:"-"`
	WriteTimeout time.Duration `yaml:"-"`

	ReadTimeoutRaw  string `yaml:"read_timeout"`
	WriteTimeoutRaw string `yaml:"write_timeout"`
}

// StorageConfig selects where items and claims are kept. Users and
// sessions always live in SQLite at DatabasePath.
type StorageConfig struct {
	Backend      string `yaml:"backend"`
	Path         string `yaml:"path"`
	DatabasePath string `yaml:"database_path"`
}

// AuthConfig holds token settings. An empty JWTSecret uses the secret
// stored in the database.
type AuthConfig struct {
	JWTSecret   string        `yaml:"jwt_secret"`
	TokenTTL    time.Duration `yaml:"-"`
	TokenTTLRaw string        `yaml:"token_ttl"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file"`
}

// ImagesConfig limits uploaded photos.
type ImagesConfig struct {
	MaxDimension   int   `yaml:"max_dimension"`
	MaxUploadBytes int64 `yaml:"max_upload_bytes"`
	JPEGQuality    int   `yaml:"jpeg_quality"`
}

// BootstrapConfig describes the platform admin created on first start.
type BootstrapConfig struct {
	AdminEmail string `yaml:"admin_email"`
	AdminName  string `yaml:"admin_name"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:         ":8080",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 60 * time.Second,
		},
		Storage: StorageConfig{
			Backend:      BackendSQLite,
			DatabasePath: "izgubljeno.sqlite3",
		},
		Auth:    AuthConfig{TokenTTL: 7 * 24 * time.Hour},
		Logging: LoggingConfig{Level: "info", Format: "text"},
		Images: ImagesConfig{
			MaxDimension:   1024,
			MaxUploadBytes: 5 << 20,
			JPEGQuality:    85,
		},
		Bootstrap: BootstrapConfig{
			AdminEmail: "admin@localhost",
			AdminName:  "Admin",
		},
	}
}

// Load reads the configuration file at path on top of Default.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML configuration on top of Default and validates it.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal([]byte(expandEnvVars(string(data))), cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := parseDurations(cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

var envPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR_NAME} with the environment variable's value,
// or an empty string if it is unset.
func expandEnvVars(s string) string {
	return envPattern.ReplaceAllStringFunc(s, func(match string) string {
		return os.Getenv(envPattern.FindStringSubmatch(match)[1])
	})
}

// Validate checks that the configuration is usable. It reports the first
// problem found.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	switch c.Storage.Backend {
	case BackendSQLite, BackendMemory:
	case BackendFile:
		if c.Storage.Path == "" {
			return fmt.Errorf("storage.path is required for the file backend")
		}
	default:
		return fmt.Errorf("storage.backend must be sqlite, file or memory, got %q", c.Storage.Backend)
	}
	if c.Storage.DatabasePath == "" {
		return fmt.Errorf("storage.database_path is required")
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn or error, got %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}
	if c.Images.MaxDimension <= 0 {
		return fmt.Errorf("images.max_dimension must be positive")
	}
	if c.Images.MaxUploadBytes <= 0 {
		return fmt.Errorf("images.max_upload_bytes must be positive")
	}
	if c.Bootstrap.AdminEmail == "" {
		return fmt.Errorf("bootstrap.admin_email is required")
	}
	return nil
}

func parseDurations(cfg *Config) error {
	fields := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"server.read_timeout", cfg.Server.ReadTimeoutRaw, &cfg.Server.ReadTimeout},
		{"server.write_timeout", cfg.Server.WriteTimeoutRaw, &cfg.Server.WriteTimeout},
		{"auth.token_ttl", cfg.Auth.TokenTTLRaw, &cfg.Auth.TokenTTL},
	}
	for _, f := range fields {
		if f.raw == "" {
			continue
		}
		d, err := time.ParseDuration(f.raw)
		if err != nil {
			return fmt.Errorf("parsing %s %q: %w", f.name, f.raw, err)
		}
		*f.dst = d
	}
	return nil
}
