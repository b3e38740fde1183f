package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shindakun/loginform/internal/authclient"
	"github.com/shindakun/loginform/internal/cookie"
	"golang.org/x/net/http/httpguts"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Login     LoginConfig     `yaml:"login"`
	Cookie    CookieConfig    `yaml:"cookie"`
	Session   SessionConfig   `yaml:"session"`
	Mounts    MountsConfig    `yaml:"mounts"`
	Storage   StorageConfig   `yaml:"storage"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Port            int            `yaml:"port"`
	Host            string         `yaml:"host"`
	BaseURL         string         `yaml:"base_url"` // Optional: public URL (e.g., https://login.example.com)
	ReadTimeout     time.Duration  `yaml:"read_timeout"`
	WriteTimeout    time.Duration  `yaml:"write_timeout"`
	IdleTimeout     time.Duration  `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration  `yaml:"shutdown_timeout"`
	Security        SecurityConfig `yaml:"security"`
}

// SecurityConfig contains security-related settings
type SecurityConfig struct {
	CSRFEnabled     bool                  `yaml:"csrf_enabled"`
	CSRFFieldName   string                `yaml:"csrf_field_name"`
	MaxRequestBytes int64                 `yaml:"max_request_bytes"`
	Headers         SecurityHeadersConfig `yaml:"headers"`
}

// SecurityHeadersConfig contains HTTP security header settings
type SecurityHeadersConfig struct {
	XFrameOptions           string `yaml:"x_frame_options"`
	XContentTypeOptions     string `yaml:"x_content_type_options"`
	ReferrerPolicy          string `yaml:"referrer_policy"`
	ContentSecurityPolicy   string `yaml:"content_security_policy"`
	StrictTransportSecurity string `yaml:"strict_transport_security"`
}

// LoginConfig points at the remote login service
type LoginConfig struct {
	EndpointURL    string        `yaml:"endpoint_url"`
	RequestTimeout time.Duration `yaml:"request_timeout"` // 0 means no timeout
}

// CookieConfig controls the attributes of the session token cookie
type CookieConfig struct {
	Name     string `yaml:"name"`
	Path     string `yaml:"path"`
	Domain   string `yaml:"domain"`
	MaxAge   int    `yaml:"max_age"` // 0 means a browser-session cookie
	Secure   string `yaml:"secure"`  // "auto", "true", "false"
	SameSite string `yaml:"same_site"`
}

// SessionConfig contains the browser session used to tie mounts to a browser
type SessionConfig struct {
	Secret string `yaml:"secret"`
	MaxAge int    `yaml:"max_age"`
}

// MountsConfig bounds the number and lifetime of mounted forms
type MountsConfig struct {
	Max int           `yaml:"max"`
	TTL time.Duration `yaml:"ttl"`
}

// StorageConfig contains the login attempt audit log settings
type StorageConfig struct {
	DBPath       string        `yaml:"db_path"`
	AuditEnabled bool          `yaml:"audit_enabled"`
	Retention    time.Duration `yaml:"retention"` // 0 keeps attempts forever
}

// RateLimitConfig paces requests to the login service
type RateLimitConfig struct {
	RequestsPerWindow int           `yaml:"requests_per_window"` // 0 disables limiting
	WindowDuration    time.Duration `yaml:"window_duration"`
	Burst             int           `yaml:"burst"`
}

// MetricsConfig controls the Prometheus endpoint
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Default returns the configuration used for any value the file leaves out
func Default() Config {
	return Config{
		Server: ServerConfig{
			Port:            8080,
			Host:            "localhost",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			Security: SecurityConfig{
				CSRFEnabled:     true,
				CSRFFieldName:   "csrf_token",
				MaxRequestBytes: 64 << 10,
				Headers: SecurityHeadersConfig{
					XFrameOptions:           "DENY",
					XContentTypeOptions:     "nosniff",
					ReferrerPolicy:          "strict-origin-when-cross-origin",
					StrictTransportSecurity: "max-age=31536000; includeSubDomains",
				},
			},
		},
		Login: LoginConfig{
			EndpointURL: authclient.DefaultEndpoint,
		},
		Cookie: CookieConfig{
			Name:   "session-cookie",
			Path:   "/",
			Secure: "false",
		},
		Session: SessionConfig{
			MaxAge: 86400,
		},
		Mounts: MountsConfig{
			Max: 10000,
			TTL: 30 * time.Minute,
		},
		Storage: StorageConfig{
			DBPath:       "./data/loginform.db",
			AuditEnabled: true,
			Retention:    30 * 24 * time.Hour,
		},
		RateLimit: RateLimitConfig{
			WindowDuration: time.Minute,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}

// Load reads configuration from the specified file path. A .env file in
// the working directory is loaded into the environment first when present.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		var pathErr *os.PathError
		if !errors.As(err, &pathErr) {
			return nil, fmt.Errorf("failed to load .env: %w", err)
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return Parse(data)
}

// Parse builds a validated Config from YAML, expanding ${VAR} references
// and applying environment overrides
func Parse(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// Override with environment variables if set
	if baseURL := os.Getenv("BASE_URL"); baseURL != "" {
		cfg.Server.BaseURL = baseURL
	}
	if endpoint := os.Getenv("LOGIN_ENDPOINT"); endpoint != "" {
		cfg.Login.EndpointURL = endpoint
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// Validate checks that all required configuration fields are set
func (c *Config) Validate() error {
	// Session validation
	if c.Session.Secret == "" || strings.Contains(c.Session.Secret, "${") {
		return fmt.Errorf("session.secret is required (set SESSION_SECRET environment variable)")
	}
	if len(c.Session.Secret) < 32 {
		return fmt.Errorf("session.secret must be at least 32 characters")
	}

	// Server validation
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}

	// Login validation
	u, err := url.Parse(c.Login.EndpointURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("login.endpoint_url must be an absolute http(s) URL")
	}
	if c.Login.RequestTimeout < 0 {
		return fmt.Errorf("login.request_timeout cannot be negative")
	}

	// Cookie validation
	if c.Cookie.Name == "" {
		return fmt.Errorf("cookie.name is required")
	}
	// net/http drops cookies whose name is not a valid token
	if !httpguts.ValidHeaderFieldName(c.Cookie.Name) {
		return fmt.Errorf("cookie.name %q is not a valid cookie name", c.Cookie.Name)
	}
	switch strings.ToLower(c.Cookie.Secure) {
	case "", "auto", "true", "false":
	default:
		return fmt.Errorf("cookie.secure must be auto, true or false")
	}
	if _, err := cookie.ParseSameSite(c.Cookie.SameSite); err != nil {
		return fmt.Errorf("cookie.same_site: %w", err)
	}

	// Mount validation
	if c.Mounts.Max < 1 {
		return fmt.Errorf("mounts.max must be at least 1")
	}
	if c.Mounts.TTL <= 0 {
		return fmt.Errorf("mounts.ttl must be positive")
	}

	// Storage validation
	if c.Storage.AuditEnabled && c.Storage.DBPath == "" {
		return fmt.Errorf("storage.db_path is required when audit is enabled")
	}

	// Rate limit validation
	if c.RateLimit.RequestsPerWindow < 0 {
		return fmt.Errorf("rate_limit.requests_per_window cannot be negative")
	}
	if c.RateLimit.RequestsPerWindow > 0 && c.RateLimit.WindowDuration <= 0 {
		return fmt.Errorf("rate_limit.window_duration must be positive")
	}

	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		return fmt.Errorf("metrics.path must start with /")
	}

	return nil
}

// GetAddr returns the full server address (host:port)
func (c *Config) GetAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// GetBaseURL returns the public base URL
// Uses base_url if set, otherwise constructs from host:port
func (c *Config) GetBaseURL() string {
	if c.Server.BaseURL != "" {
		return c.Server.BaseURL
	}
	return fmt.Sprintf("http://%s", c.GetAddr())
}

// IsHTTPS returns true if the base URL uses HTTPS
func (c *Config) IsHTTPS() bool {
	return strings.HasPrefix(strings.ToLower(c.GetBaseURL()), "https://")
}

// CookieSecure resolves cookie.secure, where "auto" follows the base URL scheme
func (c *Config) CookieSecure() bool {
	switch strings.ToLower(c.Cookie.Secure) {
	case "true":
		return true
	case "auto":
		return c.IsHTTPS()
	default:
		return false
	}
}

// CookieOptions returns the attributes for the session token cookie
func (c *Config) CookieOptions() cookie.Options {
	sameSite, _ := cookie.ParseSameSite(c.Cookie.SameSite)
	return cookie.Options{
		Path:     c.Cookie.Path,
		Domain:   c.Cookie.Domain,
		MaxAge:   c.Cookie.MaxAge,
		Secure:   c.CookieSecure(),
		SameSite: sameSite,
	}
}
