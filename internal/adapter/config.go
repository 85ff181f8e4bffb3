package adapter

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	HTTP    HTTPConfig    `mapstructure:"http"`
	Polling PollingConfig `mapstructure:"polling"`
	Push    PushConfig    `mapstructure:"push"`
	OAuth   OAuthConfig   `mapstructure:"oauth"`
	Browser BrowserConfig `mapstructure:"browser"`
	UI      UIConfig      `mapstructure:"ui"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ServerConfig holds backend connection settings
type ServerConfig struct {
	URL     string `mapstructure:"url"`      // Backend base URL
	PushURL string `mapstructure:"push_url"` // WebSocket endpoint, derived from URL when empty
}

// HTTPConfig holds per-deployment request timeouts
type HTTPConfig struct {
	Timeout       time.Duration `mapstructure:"timeout"`
	ReportTimeout time.Duration `mapstructure:"report_timeout"` // 0 = unbounded
}

// PollingConfig holds refetch intervals for dashboard queries
type PollingConfig struct {
	Counts        time.Duration `mapstructure:"counts"`
	Followups     time.Duration `mapstructure:"followups"`
	OutlookStatus time.Duration `mapstructure:"outlook_status"`
	Assignments   time.Duration `mapstructure:"assignments"`
}

// PushConfig holds the push channel reconnect policy
type PushConfig struct {
	ReconnectMin time.Duration `mapstructure:"reconnect_min"`
	ReconnectMax time.Duration `mapstructure:"reconnect_max"`
	MaxAttempts  int           `mapstructure:"max_attempts"` // 0 = unlimited
}

// OAuthConfig holds the authorization window polling settings
type OAuthConfig struct {
	PollInterval time.Duration `mapstructure:"poll_interval"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

// BrowserConfig selects the program used to open authorization windows
type BrowserConfig struct {
	Command string   `mapstructure:"command"` // empty for system default
	Args    []string `mapstructure:"args"`
}

// UIConfig holds dashboard configuration
type UIConfig struct {
	ErrorDisplayCap int           `mapstructure:"error_display_cap"`
	NotificationTTL time.Duration `mapstructure:"notification_ttl"`
	DefaultTab      string        `mapstructure:"default_tab"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	File  string `mapstructure:"file"`
	Level string `mapstructure:"level"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			URL: "http://localhost:8000",
		},
		HTTP: HTTPConfig{
			Timeout:       30 * time.Second,
			ReportTimeout: 0,
		},
		Polling: PollingConfig{
			Counts:        30 * time.Second,
			Followups:     60 * time.Second,
			OutlookStatus: 60 * time.Second,
			Assignments:   30 * time.Second,
		},
		Push: PushConfig{
			ReconnectMin: 1 * time.Second,
			ReconnectMax: 30 * time.Second,
		},
		OAuth: OAuthConfig{
			PollInterval: 1 * time.Second,
			Timeout:      5 * time.Minute,
		},
		Browser: BrowserConfig{
			Args: []string{},
		},
		UI: UIConfig{
			ErrorDisplayCap: 5,
			NotificationTTL: 5 * time.Second,
			DefaultTab:      "overview",
		},
		Logging: LoggingConfig{
			File:  defaultLogPath(),
			Level: "INFO",
		},
	}
}

// defaultLogPath returns the default log file path for the current OS
func defaultLogPath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "leadops", "leadops.log")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".local", "share", "leadops", "leadops.log")
	}
}

// defaultConfigPath returns the default config file path for the current OS
func defaultConfigPath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "leadops")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".config", "leadops")
	}
}

// defaultDataPath returns the directory holding the session store
func defaultDataPath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("LOCALAPPDATA"), "leadops")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".local", "share", "leadops")
	}
}

// LoadConfig loads configuration from file and environment
func LoadConfig() (*Config, error) {
	return loadConfig(viper.GetViper(), defaultConfigPath(), ".")
}

func loadConfig(v *viper.Viper, paths ...string) (*Config, error) {
	cfg := DefaultConfig()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	for _, p := range paths {
		v.AddConfigPath(p)
	}

	// Environment variable overrides, e.g. LEADOPS_SERVER_URL
	v.SetEnvPrefix("LEADOPS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindDefaults(v, cfg)

	// Read config file if it exists
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, use defaults
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}

	return cfg, nil
}

// bindDefaults registers every key so AutomaticEnv can override keys that are
// absent from the config file.
func bindDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("server.url", cfg.Server.URL)
	v.SetDefault("server.push_url", cfg.Server.PushURL)
	v.SetDefault("http.timeout", cfg.HTTP.Timeout)
	v.SetDefault("http.report_timeout", cfg.HTTP.ReportTimeout)
	v.SetDefault("polling.counts", cfg.Polling.Counts)
	v.SetDefault("polling.followups", cfg.Polling.Followups)
	v.SetDefault("polling.outlook_status", cfg.Polling.OutlookStatus)
	v.SetDefault("polling.assignments", cfg.Polling.Assignments)
	v.SetDefault("push.reconnect_min", cfg.Push.ReconnectMin)
	v.SetDefault("push.reconnect_max", cfg.Push.ReconnectMax)
	v.SetDefault("push.max_attempts", cfg.Push.MaxAttempts)
	v.SetDefault("oauth.poll_interval", cfg.OAuth.PollInterval)
	v.SetDefault("oauth.timeout", cfg.OAuth.Timeout)
	v.SetDefault("browser.command", cfg.Browser.Command)
	v.SetDefault("browser.args", cfg.Browser.Args)
	v.SetDefault("ui.error_display_cap", cfg.UI.ErrorDisplayCap)
	v.SetDefault("ui.notification_ttl", cfg.UI.NotificationTTL)
	v.SetDefault("ui.default_tab", cfg.UI.DefaultTab)
	v.SetDefault("logging.file", cfg.Logging.File)
	v.SetDefault("logging.level", cfg.Logging.Level)
}

// SaveServer updates just the server section in the configuration
func SaveServer(serverURL, pushURL string) error {
	viper.Set("server.url", serverURL)
	viper.Set("server.push_url", pushURL)
	return writeConfig()
}

// ClearServerConfig resets the backend connection settings while preserving
// everything else (polling, UI, logging)
func ClearServerConfig() error {
	viper.Set("server.url", "")
	viper.Set("server.push_url", "")
	return writeConfig()
}

func writeConfig() error {
	configPath := defaultConfigPath()
	if err := os.MkdirAll(configPath, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	configFile := filepath.Join(configPath, "config.yaml")
	if err := viper.WriteConfigAs(configFile); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// IsConfigured returns true if the backend URL is set
func (c *Config) IsConfigured() bool {
	return c.Server.URL != ""
}

// ResolvePushURL returns the configured push URL, or derives ws(s)://host/ws
// from the server URL.
func (c *Config) ResolvePushURL() (string, error) {
	if c.Server.PushURL != "" {
		return c.Server.PushURL, nil
	}
	u, err := url.Parse(c.Server.URL)
	if err != nil {
		return "", fmt.Errorf("invalid server url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	default:
		return "", fmt.Errorf("unsupported server url scheme %q", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws"
	u.RawQuery = ""
	return u.String(), nil
}

// ClearData removes the session store and persisted caches
func ClearData() error {
	if err := os.RemoveAll(defaultDataPath()); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to clear data: %w", err)
	}
	return nil
}

// GetDataPath returns the session store directory path
func GetDataPath() string {
	return defaultDataPath()
}
