// Package config provides configuration management for girder-nav.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"gopkg.in/ini.v1"

	"github.com/girdertools/girder-nav/internal/models"
)

// Config holds everything girder-nav needs to talk to a Girder server.
//
// Config file location:
//   - Windows: %USERPROFILE%\.config\girder-nav\config
//   - Unix: ~/.config/girder-nav/config
//
// INI format:
//
//	[girder]
//	api_url = https://data.example.org/api/v1
//	api_key = <api-key>
//	token = <session-token>
//	item_mode = files
//
//	[browser.customRoot]
//	id = 5b1ab0d8e
//	type = collection
//	name = MyProject
//
//	[proxy]
//	mode = no-proxy
//	host =
//	port = 8080
//	user =
//	no_proxy =
type Config struct {
	// Girder connection settings
	APIURL string `ini:"api_url"`
	APIKey string `ini:"api_key"`
	// Token is a short-lived session token minted by `girder-nav login`.
	// When both are present the token wins; an expired token falls back to
	// re-authentication with the API key.
	Token string `ini:"token"`

	// ItemMode selects how items are shown in listings: "files", "folders",
	// or "bump" (folders with file bumping).
	ItemMode string `ini:"item_mode"`

	// CustomRoot restricts browsing to the subtree below this node.
	CustomRoot CustomRootConfig

	// Proxy settings
	Proxy ProxyConfig
}

// CustomRootConfig identifies an ancestor to pin the breadcrumb to.
// All three fields must be set for the custom root to take effect.
type CustomRootConfig struct {
	ID   string `ini:"id"`
	Type string `ini:"type"`
	Name string `ini:"name"`
}

// ProxyConfig holds outbound proxy settings.
type ProxyConfig struct {
	// Mode is one of "no-proxy", "system", "basic", "ntlm".
	Mode string `ini:"mode"`
	Host string `ini:"host"`
	Port int    `ini:"port"`
	User string `ini:"user"`
	// Password is never persisted; it is prompted for or taken from the
	// environment at startup.
	Password string `ini:"-"`
	// NoProxy is a comma-separated bypass list (hosts, domains, CIDRs).
	NoProxy string `ini:"no_proxy"`
}

// Validation errors
var (
	ErrMissingAPIURL        = errors.New("api_url is required")
	ErrMissingCredentials   = errors.New("either token or api_key is required")
	ErrInvalidItemMode      = errors.New(`item_mode must be "files", "folders", or "bump"`)
	ErrIncompleteCustomRoot = errors.New("custom root requires id, type, and name")
)

// DefaultConfigPath returns the default path for the config file.
func DefaultConfigPath() (string, error) {
	var configDir string

	if runtime.GOOS == "windows" {
		userProfile := os.Getenv("USERPROFILE")
		if userProfile == "" {
			return "", errors.New("USERPROFILE environment variable not set")
		}
		configDir = filepath.Join(userProfile, ".config", "girder-nav")
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(home, ".config", "girder-nav")
	}

	return filepath.Join(configDir, "config"), nil
}

// New creates a Config with default values.
func New() *Config {
	return &Config{
		ItemMode: "files",
		Proxy: ProxyConfig{
			Mode: "no-proxy",
			Port: 8080,
		},
	}
}

// Load reads configuration from an INI file. A missing file is not an
// error; defaults are returned. An unreadable or malformed file is.
func Load(path string) (*Config, error) {
	cfg := New()

	if path == "" {
		var err error
		path, err = DefaultConfigPath()
		if err != nil {
			return cfg, nil
		}
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	iniFile, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	girderSection := iniFile.Section("girder")
	cfg.APIURL = girderSection.Key("api_url").String()
	cfg.APIKey = girderSection.Key("api_key").String()
	cfg.Token = girderSection.Key("token").String()
	cfg.ItemMode = girderSection.Key("item_mode").MustString(cfg.ItemMode)

	rootSection := iniFile.Section("browser.customRoot")
	cfg.CustomRoot.ID = rootSection.Key("id").String()
	cfg.CustomRoot.Type = rootSection.Key("type").String()
	cfg.CustomRoot.Name = rootSection.Key("name").String()

	proxySection := iniFile.Section("proxy")
	cfg.Proxy.Mode = proxySection.Key("mode").MustString(cfg.Proxy.Mode)
	cfg.Proxy.Host = proxySection.Key("host").String()
	cfg.Proxy.Port = proxySection.Key("port").MustInt(cfg.Proxy.Port)
	cfg.Proxy.User = proxySection.Key("user").String()
	cfg.Proxy.NoProxy = proxySection.Key("no_proxy").String()

	return cfg, nil
}

// Save writes the configuration to an INI file, creating parent directories
// as needed. The token is stored in the file, so it is written atomically
// with user-only permissions.
func Save(cfg *Config, path string) error {
	if path == "" {
		var err error
		path, err = DefaultConfigPath()
		if err != nil {
			return fmt.Errorf("failed to determine config path: %w", err)
		}
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	iniFile := ini.Empty()

	girderSection, err := iniFile.NewSection("girder")
	if err != nil {
		return fmt.Errorf("failed to create girder section: %w", err)
	}
	girderSection.Key("api_url").SetValue(cfg.APIURL)
	girderSection.Key("api_key").SetValue(cfg.APIKey)
	girderSection.Key("token").SetValue(cfg.Token)
	girderSection.Key("item_mode").SetValue(cfg.ItemMode)

	if cfg.CustomRoot != (CustomRootConfig{}) {
		rootSection, err := iniFile.NewSection("browser.customRoot")
		if err != nil {
			return fmt.Errorf("failed to create customRoot section: %w", err)
		}
		rootSection.Key("id").SetValue(cfg.CustomRoot.ID)
		rootSection.Key("type").SetValue(cfg.CustomRoot.Type)
		rootSection.Key("name").SetValue(cfg.CustomRoot.Name)
	}

	proxySection, err := iniFile.NewSection("proxy")
	if err != nil {
		return fmt.Errorf("failed to create proxy section: %w", err)
	}
	proxySection.Key("mode").SetValue(cfg.Proxy.Mode)
	proxySection.Key("host").SetValue(cfg.Proxy.Host)
	proxySection.Key("port").SetValue(fmt.Sprintf("%d", cfg.Proxy.Port))
	proxySection.Key("user").SetValue(cfg.Proxy.User)
	proxySection.Key("no_proxy").SetValue(cfg.Proxy.NoProxy)

	// Temporary file + rename for atomicity; the token is sensitive.
	tmpPath := path + ".tmp"
	if err := iniFile.SaveTo(tmpPath); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	if runtime.GOOS != "windows" {
		if err := os.Chmod(tmpPath, 0600); err != nil {
			os.Remove(tmpPath)
			return fmt.Errorf("failed to set config permissions: %w", err)
		}
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to save config: %w", err)
	}

	return nil
}

// Validate checks the full configuration.
func (cfg *Config) Validate() error {
	if err := cfg.ValidateForConnection(); err != nil {
		return err
	}
	switch cfg.ItemMode {
	case "files", "folders", "bump":
	default:
		return ErrInvalidItemMode
	}
	if cfg.CustomRoot != (CustomRootConfig{}) {
		if cfg.CustomRoot.ID == "" || cfg.CustomRoot.Type == "" || cfg.CustomRoot.Name == "" {
			return ErrIncompleteCustomRoot
		}
		if _, err := models.ParseNodeType(cfg.CustomRoot.Type); err != nil {
			return fmt.Errorf("custom root: %w", err)
		}
	}
	return nil
}

// ValidateForConnection checks only the settings needed to reach the server.
// Login is allowed with neither token nor key (it mints the token), so this
// is not called on the login path.
func (cfg *Config) ValidateForConnection() error {
	if strings.TrimSpace(cfg.APIURL) == "" {
		return ErrMissingAPIURL
	}
	if strings.TrimSpace(cfg.Token) == "" && strings.TrimSpace(cfg.APIKey) == "" {
		return ErrMissingCredentials
	}
	return nil
}

// CustomRootNode converts the configured custom root into a NodeRef, or a
// zero ref when no custom root is configured.
func (cfg *Config) CustomRootNode() (models.NodeRef, error) {
	if cfg.CustomRoot == (CustomRootConfig{}) {
		return models.NodeRef{}, nil
	}
	t, err := models.ParseNodeType(cfg.CustomRoot.Type)
	if err != nil {
		return models.NodeRef{}, err
	}
	return models.NodeRef{Name: cfg.CustomRoot.Name, ID: cfg.CustomRoot.ID, Type: t}, nil
}
