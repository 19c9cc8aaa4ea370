package goSession

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config configures a [Client].
//
// Config instances are intended to be configured during initialization and then treated as immutable.
type Config struct {
	// BaseURL is the API origin, for example "https://api.example.com".
	BaseURL     string `env:"GOSESSION_BASE_URL"`
	RefreshPath string `env:"GOSESSION_REFRESH_PATH" env-default:"/auth/refresh"`
	SessionPath string `env:"GOSESSION_SESSION_PATH" env-default:"/auth/session"`
	LoginPath   string `env:"GOSESSION_LOGIN_PATH" env-default:"/auth/login"`
	ReturnParam string `env:"GOSESSION_RETURN_PARAM" env-default:"returnUrl"`

	// RefreshTimeout bounds one refresh exchange. The exchange is not tied to any
	// caller's context.
	RefreshTimeout time.Duration `env:"GOSESSION_REFRESH_TIMEOUT" env-default:"10s"`

	// ProactiveRefresh refreshes before sending when the held token is known to
	// expire within RefreshLeeway. Reactive refresh on 401 is always on.
	ProactiveRefresh bool          `env:"GOSESSION_PROACTIVE_REFRESH" env-default:"false"`
	RefreshLeeway    time.Duration `env:"GOSESSION_REFRESH_LEEWAY" env-default:"30s"`

	// SyncSessionOnRefresh posts every refreshed token to SessionPath and deletes
	// the bridged token on logout.
	SyncSessionOnRefresh bool `env:"GOSESSION_SYNC_SESSION" env-default:"false"`

	Audit   AuditConfig
	Metrics MetricsConfig
}

// AuditConfig configures the asynchronous audit dispatcher.
type AuditConfig struct {
	Enabled    bool `env:"GOSESSION_AUDIT_ENABLED" env-default:"false"`
	BufferSize int  `env:"GOSESSION_AUDIT_BUFFER" env-default:"256"`
	DropIfFull bool `env:"GOSESSION_AUDIT_DROP_IF_FULL" env-default:"true"`
}

// MetricsConfig configures in-process counters.
type MetricsConfig struct {
	Enabled                 bool `env:"GOSESSION_METRICS_ENABLED" env-default:"false"`
	EnableLatencyHistograms bool `env:"GOSESSION_METRICS_LATENCY" env-default:"false"`
}

/*
====================================
DEFAULT CONFIG
====================================
*/

func defaultConfig() Config {
	return Config{
		RefreshPath:          "/auth/refresh",
		SessionPath:          "/auth/session",
		LoginPath:            "/auth/login",
		ReturnParam:          "returnUrl",
		RefreshTimeout:       10 * time.Second,
		ProactiveRefresh:     false,
		RefreshLeeway:        30 * time.Second,
		SyncSessionOnRefresh: false,
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
	}
}

// DefaultConfig returns the configuration used when none is supplied.
func DefaultConfig() Config {
	return defaultConfig()
}

// ConfigFromEnv reads a Config from GOSESSION_* environment variables, falling
// back to defaults for unset values.
func ConfigFromEnv() (Config, error) {
	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return Config{}, fmt.Errorf("read config from env: %w", err)
	}
	return cfg, nil
}

func cloneConfig(cfg Config) Config {
	return cfg
}

/*
====================================
VALIDATION
====================================
*/

// Validate checks the configuration for values the client cannot operate with.
func (c *Config) Validate() error {
	base := strings.TrimSpace(c.BaseURL)
	if base == "" {
		return errors.New("BaseURL must be set")
	}
	u, err := url.Parse(base)
	if err != nil {
		return fmt.Errorf("BaseURL invalid: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.New("BaseURL must use http or https")
	}
	if u.Host == "" {
		return errors.New("BaseURL must include a host")
	}

	for name, path := range map[string]string{
		"RefreshPath": c.RefreshPath,
		"SessionPath": c.SessionPath,
		"LoginPath":   c.LoginPath,
	} {
		if !strings.HasPrefix(path, "/") {
			return fmt.Errorf("%s must start with /", name)
		}
	}
	if strings.TrimSpace(c.ReturnParam) == "" {
		return errors.New("ReturnParam must be set")
	}

	if c.RefreshTimeout <= 0 {
		return errors.New("RefreshTimeout must be > 0")
	}
	if c.RefreshLeeway < 0 || c.RefreshLeeway > 10*time.Minute {
		return errors.New("RefreshLeeway must be between 0 and 10m")
	}

	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}
	if c.Metrics.EnableLatencyHistograms && !c.Metrics.Enabled {
		return errors.New("Metrics latency histograms require metrics to be enabled")
	}

	return nil
}

func (c Config) endpoint(path string) string {
	return strings.TrimRight(c.BaseURL, "/") + path
}
