package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"chatlink/internal/logger"
)

// Config holds everything the client needs to reach the chat backend.
type Config struct {
	// Server is the REST base URL, e.g. "https://chat.example.com".
	Server string `yaml:"server"`
	// AuthBase is the path prefix of the auth endpoints, "/users" by default.
	AuthBase string `yaml:"authBase"`
	// WSHost and WSPort locate the websocket endpoint. The scheme is derived
	// from Server: wss when Server is https, ws otherwise.
	WSHost string `yaml:"wsHost"`
	WSPort string `yaml:"wsPort"`
	// TokenDB is the sqlite file holding the stored tokens.
	TokenDB string `yaml:"tokenDb"`

	Logger logger.Config `yaml:"logger"`
}

// Load reads an optional YAML file, an optional .env file, and environment
// overrides, in that order of increasing precedence.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	// A missing .env is fine; explicit env vars still apply.
	_ = godotenv.Load()
	applyEnv(cfg)
	setDefaults(cfg)

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("CHATLINK_SERVER"); v != "" {
		cfg.Server = v
	}
	if v := os.Getenv("CHATLINK_AUTH_BASE"); v != "" {
		cfg.AuthBase = v
	}
	if v := os.Getenv("CHATLINK_WS_HOST"); v != "" {
		cfg.WSHost = v
	}
	if v := os.Getenv("CHATLINK_WS_PORT"); v != "" {
		cfg.WSPort = v
	}
	if v := os.Getenv("CHATLINK_TOKEN_DB"); v != "" {
		cfg.TokenDB = v
	}
	if v := os.Getenv("CHATLINK_LOG_LEVEL"); v != "" {
		cfg.Logger.Level = v
	}
}

func setDefaults(cfg *Config) {
	if cfg.Server == "" {
		cfg.Server = "http://localhost:8080"
	}
	if cfg.AuthBase == "" {
		cfg.AuthBase = "/users"
	}
	if cfg.WSHost == "" {
		cfg.WSHost = "localhost"
	}
	if cfg.WSPort == "" {
		cfg.WSPort = "9876"
	}
	if cfg.TokenDB == "" {
		cfg.TokenDB = "chatlink.db"
	}
	if cfg.Logger.Level == "" {
		cfg.Logger.Level = "info"
	}
	if cfg.Logger.Format == "" {
		cfg.Logger.Format = "console"
	}
}

func validate(cfg *Config) error {
	if !strings.HasPrefix(cfg.Server, "http://") && !strings.HasPrefix(cfg.Server, "https://") {
		return fmt.Errorf("config: server must be an http(s) URL, got %q", cfg.Server)
	}
	if !strings.HasPrefix(cfg.AuthBase, "/") {
		return fmt.Errorf("config: authBase must start with /, got %q", cfg.AuthBase)
	}
	return nil
}

// Secure reports whether the REST base is https, which also selects wss for
// the websocket.
func (c *Config) Secure() bool {
	return strings.HasPrefix(c.Server, "https://")
}
