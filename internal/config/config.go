// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"mcp-food-log/internal/nutrition"
	"mcp-food-log/internal/storage"
)

const EnvPrefix = "FOODLOG"

// SSE transport paths.
const (
	SSEPath     = "/sse"
	MessagePath = "/message"
)

const (
	defaultHost        = "0.0.0.0"
	defaultPort        = 8011
	defaultHTTPTimeout = 10 * time.Second
)

var ErrInvalidConfig = errors.New("invalid config")

type Config struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	DBPath       string        `mapstructure:"db_path"`
	OFFBaseURL   string        `mapstructure:"off_base_url"`
	HTTPTimeout  time.Duration `mapstructure:"http_timeout"`
	UserAgent    string        `mapstructure:"user_agent"`
	PortionsFile string        `mapstructure:"portions_file"`
	PublicURL    string        `mapstructure:"public_url"`
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// MessageURL is the MCP message endpoint advertised to SSE clients. It is
// built from public_url when set, otherwise from the listen address.
func (c *Config) MessageURL() string {
	if c.PublicURL != "" {
		return strings.TrimRight(c.PublicURL, "/") + MessagePath
	}
	host := c.Host
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "localhost"
	}
	return "http://" + net.JoinHostPort(host, strconv.Itoa(c.Port)) + MessagePath
}

// flagKeys maps command-line flag names onto config keys.
var flagKeys = map[string]string{
	"host":          "host",
	"port":          "port",
	"db-path":       "db_path",
	"off-base-url":  "off_base_url",
	"http-timeout":  "http_timeout",
	"user-agent":    "user_agent",
	"portions-file": "portions_file",
	"public-url":    "public_url",
}

// Load merges, lowest to highest precedence: defaults, the optional YAML
// file at path, FOODLOG_* environment variables, and flags that were set.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	v.SetDefault("host", defaultHost)
	v.SetDefault("port", defaultPort)
	v.SetDefault("db_path", storage.MemoryDSN)
	v.SetDefault("off_base_url", nutrition.DefaultBaseURL)
	v.SetDefault("http_timeout", defaultHTTPTimeout)
	v.SetDefault("user_agent", nutrition.DefaultUserAgent)
	v.SetDefault("portions_file", "")
	v.SetDefault("public_url", "")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file failed (%s): %w", path, err)
		}
	}

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("binding flag %s: %w", name, err)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config failed: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("%w: port %d out of range", ErrInvalidConfig, c.Port)
	}
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("%w: http_timeout must be positive", ErrInvalidConfig)
	}
	u, err := url.Parse(c.OFFBaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%w: off_base_url %q is not an absolute URL", ErrInvalidConfig, c.OFFBaseURL)
	}
	if c.PublicURL != "" {
		if u, err := url.Parse(c.PublicURL); err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("%w: public_url %q is not an absolute URL", ErrInvalidConfig, c.PublicURL)
		}
	}
	return nil
}
