package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Version information - set by GoReleaser during build
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// GetVersionInfo returns a formatted version string
func GetVersionInfo() string {
	return fmt.Sprintf("oauth-playground version %s, commit %s, built at %s", version, commit, date)
}

// EnvPrefix is the prefix of the environment variables that override playground settings.
const EnvPrefix = "OAUTH_PLAYGROUND"

type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Logging     LoggingConfig     `mapstructure:"logging"`
	HTTP        HTTPConfig        `mapstructure:"http"`
	Persistence PersistenceConfig `mapstructure:"persistence"`
	OIDC        OIDCConfig        `mapstructure:"oidc"`
}

type ServerConfig struct {
	Host       string        `mapstructure:"host"`
	Port       int           `mapstructure:"port"`
	SessionTTL time.Duration `mapstructure:"session_ttl"`
}

// Addr returns the listen address of the dashboard.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type LoggingConfig struct {
	Level             string `mapstructure:"level"`
	Format            string `mapstructure:"format"`
	Color             bool   `mapstructure:"color"`
	DisableStacktrace bool   `mapstructure:"disable_stacktrace"`
	OutputPath        string `mapstructure:"output_path"`
	AppendToFile      bool   `mapstructure:"append_to_file"`
	DisableConsole    bool   `mapstructure:"disable_console"`
}

// HTTPConfig configures the outbound client used against provider endpoints.
type HTTPConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
}

// SinkDriver names a persistence backend.
type SinkDriver string

const (
	SinkDriverNone     SinkDriver = ""
	SinkDriverPostgres SinkDriver = "postgres"
	SinkDriverSQLite   SinkDriver = "sqlite"
)

type PersistenceConfig struct {
	Driver SinkDriver `mapstructure:"driver"`
	DSN    string     `mapstructure:"dsn"`
	Table  string     `mapstructure:"table"`
}

// Enabled reports whether a sink has been configured.
func (p PersistenceConfig) Enabled() bool {
	return p.Driver != SinkDriverNone && p.DSN != ""
}

type OIDCConfig struct {
	VerifyIDToken bool `mapstructure:"verify_id_token"`
}

// InitFlags initializes command line flags (without parsing)
func InitFlags(fs *pflag.FlagSet) {
	fs.String("config", "", "Path to a config.yaml file")
	fs.String("log-level", "", "Log level (debug|info|warn|error)")
	fs.Int("port", 0, "Dashboard port (defaults to server.port)")
	// Note: no Parse() here as cobra parses the flags
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 8501)
	v.SetDefault("server.session_ttl", 30*time.Minute)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.disable_stacktrace", true)
	v.SetDefault("http.timeout", 30*time.Second)
	v.SetDefault("persistence.table", "oauth_credentials")
	v.SetDefault("oidc.verify_id_token", false)
}

// LoadDotEnv loads .env files into the process environment. Missing files are ignored,
// values already present in the environment win.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	return nil
}

// Load reads the playground settings from defaults, an optional config file, the
// environment and the given flag set.
func Load(fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if fs != nil {
		if err := v.BindPFlags(fs); err != nil {
			return nil, err
		}
	}

	if path := v.GetString("config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/oauth-playground")
		if err := v.ReadInConfig(); err != nil {
			// No config file is fine, defaults and env are enough
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, err
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if level := v.GetString("log-level"); level != "" {
		cfg.Logging.Level = level
	}
	if port := v.GetInt("port"); port != 0 {
		cfg.Server.Port = port
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the settings that cannot be defaulted.
func (c *Config) Validate() error {
	switch c.Persistence.Driver {
	case SinkDriverNone, SinkDriverPostgres, SinkDriverSQLite:
	default:
		return fmt.Errorf("unsupported persistence.driver %q, expected postgres or sqlite", c.Persistence.Driver)
	}
	if c.Persistence.Driver != SinkDriverNone && c.Persistence.DSN == "" {
		return fmt.Errorf("persistence.dsn is required when persistence.driver is set, pass %s_PERSISTENCE_DSN", EnvPrefix)
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port %d", c.Server.Port)
	}
	return nil
}
