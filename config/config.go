package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DefaultAPIKey = "TopSecretAPIKey"

	defaultDSN             = "cafes.db"
	defaultPort            = "8083"
	defaultMode            = "debug"
	defaultOrigin          = "http://localhost:3000"
	defaultLogLevel        = "info"
	defaultLogFormat       = "text"
	defaultShutdownTimeout = 10 * time.Second
)

type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Server   ServerConfig   `yaml:"server"`
	Auth     AuthConfig     `yaml:"auth"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

type ServerConfig struct {
	Port            string        `yaml:"port"`
	Mode            string        `yaml:"mode"`
	AllowedOrigins  []string      `yaml:"allowed_origins"`
	ShutdownTimeout time.Duration `yaml:"-"`

	ShutdownTimeoutRaw string `yaml:"shutdown_timeout"`
}

type AuthConfig struct {
	// APIKey guards deletion. Either the plaintext key or its bcrypt hash.
	APIKey string `yaml:"api_key"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func Default() *Config {
	return &Config{
		Database: DatabaseConfig{DSN: defaultDSN},
		Server: ServerConfig{
			Port:            defaultPort,
			Mode:            defaultMode,
			AllowedOrigins:  []string{defaultOrigin},
			ShutdownTimeout: defaultShutdownTimeout,
		},
		Auth:    AuthConfig{APIKey: DefaultAPIKey},
		Logging: LoggingConfig{Level: defaultLogLevel, Format: defaultLogFormat},
	}
}

// Load builds the configuration from defaults, the YAML file named by
// CAFE_CONFIG, a .env file in the working directory and the environment,
// in increasing order of precedence.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	cfg := Default()
	if path := os.Getenv("CAFE_CONFIG"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal([]byte(expandEnvVars(string(data))), c); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}

	if c.Server.ShutdownTimeoutRaw != "" {
		d, err := time.ParseDuration(c.Server.ShutdownTimeoutRaw)
		if err != nil {
			return fmt.Errorf("invalid server.shutdown_timeout %q: %w", c.Server.ShutdownTimeoutRaw, err)
		}
		c.Server.ShutdownTimeout = d
	}
	return nil
}

func (c *Config) applyEnv() error {
	setFromEnv(&c.Database.DSN, "DATABASE_DSN")
	setFromEnv(&c.Server.Port, "PORT")
	setFromEnv(&c.Server.Mode, "GIN_MODE")
	setFromEnv(&c.Auth.APIKey, "API_KEY")
	setFromEnv(&c.Logging.Level, "LOG_LEVEL")
	setFromEnv(&c.Logging.Format, "LOG_FORMAT")

	if v := os.Getenv("ALLOWED_ORIGINS"); v != "" {
		var origins []string
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
		c.Server.AllowedOrigins = origins
	}

	if v := os.Getenv("SHUTDOWN_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid SHUTDOWN_TIMEOUT value %q: %w", v, err)
		}
		c.Server.ShutdownTimeout = d
	}
	return nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.Database.DSN) == "" {
		return errors.New("database dsn must not be empty")
	}
	if strings.TrimSpace(c.Server.Port) == "" {
		return errors.New("server port must not be empty")
	}
	if c.Server.ShutdownTimeout <= 0 {
		return errors.New("shutdown timeout must be > 0")
	}
	if c.Auth.APIKey == "" {
		return errors.New("api key must not be empty")
	}
	if len(c.Server.AllowedOrigins) == 0 {
		return errors.New("at least one allowed origin is required")
	}
	for _, o := range c.Server.AllowedOrigins {
		if o != "*" && !strings.HasPrefix(o, "http://") && !strings.HasPrefix(o, "https://") {
			return fmt.Errorf("allowed origin %q must start with http:// or https://", o)
		}
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log level must be one of debug, info, warn, error, got %q", c.Logging.Level)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("log format must be text or json, got %q", c.Logging.Format)
	}

	if c.IsRelease() && c.Auth.APIKey == DefaultAPIKey {
		return errors.New("in release mode API_KEY must be set and not default")
	}
	return nil
}

func (c *Config) IsRelease() bool {
	return strings.EqualFold(c.Server.Mode, "release")
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR} with the environment value, or "" if unset.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		return os.Getenv(envVarPattern.FindStringSubmatch(match)[1])
	})
}

func setFromEnv(dst *string, name string) {
	if v := os.Getenv(name); v != "" {
		*dst = v
	}
}
