// Package config handles graphtool configuration via YAML files and
// environment variables.
//
// Configuration precedence (highest to lowest):
//  1. Command-line flags (--host, --port, etc.)
//  2. Environment variables (GRAPHTOOL_*)
//  3. Config file (graphtool.yaml)
//  4. Built-in defaults
//
// Environment variables (all use the GRAPHTOOL_ prefix):
//   - GRAPHTOOL_SCHEME="http"
//   - GRAPHTOOL_HOST="localhost"
//   - GRAPHTOOL_PORT=7474
//   - GRAPHTOOL_USER=""
//   - GRAPHTOOL_PASSWORD=""
//   - GRAPHTOOL_FORMAT="text"
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds the connection and rendering settings for one invocation.
type Config struct {
	// Scheme is the URL scheme used to reach the server (http or https).
	Scheme string `yaml:"scheme"`
	// Host and Port locate the server's HTTP endpoint.
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	// User and Password are HTTP basic auth credentials; empty disables auth.
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	// Format is the default output format for query results.
	Format string `yaml:"format"`
}

// LoadDefaults returns the built-in defaults: an unauthenticated local
// server on the standard HTTP port, text output.
func LoadDefaults() *Config {
	return &Config{
		Scheme: "http",
		Host:   "localhost",
		Port:   7474,
		Format: "text",
	}
}

// LoadFromEnv layers GRAPHTOOL_* environment variables over cfg.
func LoadFromEnv(cfg *Config) *Config {
	cfg.Scheme = getEnv("GRAPHTOOL_SCHEME", cfg.Scheme)
	cfg.Host = getEnv("GRAPHTOOL_HOST", cfg.Host)
	cfg.Port = getEnvInt("GRAPHTOOL_PORT", cfg.Port)
	cfg.User = getEnv("GRAPHTOOL_USER", cfg.User)
	cfg.Password = getEnv("GRAPHTOOL_PASSWORD", cfg.Password)
	cfg.Format = getEnv("GRAPHTOOL_FORMAT", cfg.Format)
	return cfg
}

// LoadFromFile reads a YAML config file over the built-in defaults. A
// missing file is not an error; defaults are returned.
func LoadFromFile(configPath string) (*Config, error) {
	cfg := LoadDefaults()
	if configPath == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	var fileCfg Config
	if err := yaml.Unmarshal(data, &fileCfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if fileCfg.Scheme != "" {
		cfg.Scheme = fileCfg.Scheme
	}
	if fileCfg.Host != "" {
		cfg.Host = fileCfg.Host
	}
	if fileCfg.Port > 0 {
		cfg.Port = fileCfg.Port
	}
	if fileCfg.User != "" {
		cfg.User = fileCfg.User
	}
	if fileCfg.Password != "" {
		cfg.Password = fileCfg.Password
	}
	if fileCfg.Format != "" {
		cfg.Format = fileCfg.Format
	}
	return cfg, nil
}

// Load resolves the config file (if any) and applies environment overrides.
func Load() (*Config, error) {
	cfg, err := LoadFromFile(FindConfigFile())
	if err != nil {
		return nil, err
	}
	return LoadFromEnv(cfg), nil
}

// FindConfigFile returns the first config file that exists, searching the
// home dotdir, the current directory, and the XDG config path.
func FindConfigFile() string {
	var candidates []string
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".graphtool", "config.yaml"))
	}
	candidates = append(candidates, "graphtool.yaml")
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".config", "graphtool", "config.yaml"))
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// Validate rejects settings the client cannot use.
func (c *Config) Validate() error {
	if c.Scheme != "http" && c.Scheme != "https" {
		return fmt.Errorf("unsupported scheme %q (want http or https)", c.Scheme)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}
