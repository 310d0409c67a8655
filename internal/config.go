package internal

import (
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strconv"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/ansuz/internal/editor"
	"github.com/starford/ansuz/internal/recent"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App       ApplicationConfig `yaml:"app"`
	Documents DocumentsConfig   `yaml:"documents"`
	Recent    RecentConfig      `yaml:"recent"`
	Preview   PreviewConfig     `yaml:"preview"`
	Auth      AuthConfig        `yaml:"auth"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Documents.Validate(); err != nil {
		return err
	}
	if err := c.Recent.Validate(); err != nil {
		return err
	}
	return c.Auth.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel    slog.Level `yaml:"log_level"`
	Name        string     `yaml:"name"`
	OpenBrowser bool       `yaml:"open_browser"`
	HTTP        HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Name, validation.Required),
	); err != nil {
		return err
	}
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// URL returns the address the editor page is reachable at.
func (c *HTTPConfig) URL() string {
	host := c.Host
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "localhost"
	}
	return "http://" + net.JoinHostPort(host, strconv.Itoa(c.Port)) + "/"
}

// AllowedHosts returns the Host names accepted besides loopback ones: the
// configured host when it names a specific interface.
func (c *HTTPConfig) AllowedHosts() []string {
	switch c.Host {
	case "", "0.0.0.0", "::":
		return nil
	}
	return []string{c.Host}
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// DocumentsConfig holds the directory save and export pickers start in.
type DocumentsConfig struct {
	Dir string `yaml:"dir"`
}

// Validate validates the documents configuration.
func (c *DocumentsConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Dir, validation.Required),
	)
}

// RecentConfig holds the recent documents database configuration.
type RecentConfig struct {
	Path  string `yaml:"path"`
	Limit int    `yaml:"limit"`
}

// Validate validates the recent documents configuration.
func (c *RecentConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
		validation.Field(&c.Limit, validation.Min(0), validation.Max(100)),
	)
}

// PreviewConfig holds preview rendering configuration.
// An empty Stylesheet selects the built-in one.
type PreviewConfig struct {
	Stylesheet string `yaml:"stylesheet"`
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required.
//   - "token": Bearer token or cookie authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel:    slog.LevelInfo,
			Name:        editor.DefaultAppName,
			OpenBrowser: true,
			HTTP: HTTPConfig{
				Host: "127.0.0.1",
				Port: 7340,
			},
		},
		Documents: DocumentsConfig{
			Dir: defaultDocumentsDir(),
		},
		Recent: RecentConfig{
			Path:  defaultRecentPath(),
			Limit: recent.DefaultLimit,
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}

func defaultDocumentsDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, "Documents")
}

func defaultRecentPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "./ansuz-recent.db"
	}
	return filepath.Join(dir, "ansuz", "recent.db")
}
