package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration
type Config struct {
	// Backend settings
	BackendURL     string        `yaml:"backend_url"`
	RequestTimeout time.Duration `yaml:"request_timeout"` // 0 disables the per-request timeout
	UserAgent      string        `yaml:"user_agent"`

	// History settings
	HistoryPath    string `yaml:"history_path"`
	MaxHistorySize int    `yaml:"max_history_size"`

	// Logging
	LogPath string `yaml:"log_path"`
	Verbose bool   `yaml:"verbose"`

	// Watch mode
	WatchDir        string        `yaml:"watch_dir"`
	WatchExtensions []string      `yaml:"watch_extensions"`
	WatchDebounce   time.Duration `yaml:"watch_debounce"`
}

// NewConfig creates a new configuration with default values
func NewConfig() *Config {
	return &Config{
		// Backend defaults
		BackendURL:     "http://localhost:5000",
		RequestTimeout: 5 * time.Minute,
		UserAgent:      "docchat/1.0",

		// History defaults
		HistoryPath:    expandHome("~/.docchat/history.json"),
		MaxHistorySize: 20,

		LogPath: expandHome("~/.docchat/docchat.log"),

		WatchExtensions: []string{".pdf", ".txt", ".md", ".docx"},
		WatchDebounce:   500 * time.Millisecond,
	}
}

// LoadDotEnv loads variables from a .env file into the process
// environment. A missing file is not an error.
func LoadDotEnv(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// LoadFile overlays values from a YAML file onto c
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(expandHome(path))
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	c.HistoryPath = expandHome(c.HistoryPath)
	c.LogPath = expandHome(c.LogPath)
	return nil
}

// ApplyEnv overlays DOCCHAT_* environment variables onto c
func (c *Config) ApplyEnv() error {
	if v := GetEnv("DOCCHAT_BACKEND_URL"); v != "" {
		c.BackendURL = v
	}
	if v := GetEnv("DOCCHAT_REQUEST_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid DOCCHAT_REQUEST_TIMEOUT: %w", err)
		}
		c.RequestTimeout = d
	}
	if v := GetEnv("DOCCHAT_HISTORY_PATH"); v != "" {
		c.HistoryPath = expandHome(v)
	}
	if v := GetEnv("DOCCHAT_LOG_PATH"); v != "" {
		c.LogPath = expandHome(v)
	}
	if v := GetEnv("DOCCHAT_WATCH_DIR"); v != "" {
		c.WatchDir = v
	}
	if v := GetEnv("DOCCHAT_VERBOSE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid DOCCHAT_VERBOSE: %w", err)
		}
		c.Verbose = b
	}
	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.BackendURL == "" {
		return fmt.Errorf("backend URL cannot be empty")
	}
	u, err := url.Parse(c.BackendURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("backend URL must be an absolute http(s) URL: %q", c.BackendURL)
	}
	if c.RequestTimeout < 0 {
		return fmt.Errorf("request timeout cannot be negative")
	}
	if c.MaxHistorySize < 1 {
		return fmt.Errorf("max history size must be at least 1")
	}
	for _, ext := range c.WatchExtensions {
		if !strings.HasPrefix(ext, ".") {
			return fmt.Errorf("watch extension %q must start with a dot", ext)
		}
	}
	return nil
}

// expandHome expands the ~ in file paths to the user's home directory
func expandHome(path string) string {
	if len(path) > 0 && path[0] == '~' {
		homeDir := getHomeDir()
		return homeDir + path[1:]
	}
	return path
}

// getHomeDir returns the user's home directory
func getHomeDir() string {
	if home := GetEnv("HOME"); home != "" {
		return home
	}
	// Fallback for Windows
	if home := GetEnv("USERPROFILE"); home != "" {
		return home
	}
	return "."
}

// GetEnv is a wrapper around os.Getenv for easier testing
var GetEnv = os.Getenv
