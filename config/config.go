package config

import (
	"log/slog"
	"net"
	"net/url"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

const (
	EnvDev     = "dev"
	EnvStaging = "staging"
	EnvProd    = "prod"
)

const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"
)

// EnvPrefix is prepended to every environment override, e.g.
// HEALTHDASH_DASHBOARD_BASE_URL.
const EnvPrefix = "HEALTHDASH"

type ServerConfig struct {
	Address         string `mapstructure:"address"`
	Environment     string `mapstructure:"environment"`
	StateFile       string `mapstructure:"state_file"`
	MonitorVersion  string `mapstructure:"monitor_version"`
	ReadTimeout     string `mapstructure:"read_timeout"`
	WriteTimeout    string `mapstructure:"write_timeout"`
	IdleTimeout     string `mapstructure:"idle_timeout"`
	ShutdownTimeout string `mapstructure:"shutdown_timeout"`
}

type DashboardConfig struct {
	BaseURL         string `mapstructure:"base_url"`
	StatusPath      string `mapstructure:"status_path"`
	SystemPath      string `mapstructure:"system_path"`
	RefreshInterval string `mapstructure:"refresh_interval"`
	NotificationTTL string `mapstructure:"notification_ttl"`
	RequestTimeout  string `mapstructure:"request_timeout"`
	TimeLayout      string `mapstructure:"time_layout"`
	AutoRefresh     bool   `mapstructure:"auto_refresh"`
}

type LoggingConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Dashboard DashboardConfig `mapstructure:"dashboard"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// Timeouts returns the read, write and idle timeouts of the HTTP server.
// Validate guarantees they parse.
func (s ServerConfig) Timeouts() (read, write, idle time.Duration) {
	read, _ = time.ParseDuration(s.ReadTimeout)
	write, _ = time.ParseDuration(s.WriteTimeout)
	idle, _ = time.ParseDuration(s.IdleTimeout)
	return read, write, idle
}

// GracePeriod returns how long shutdown waits for open requests.
func (s ServerConfig) GracePeriod() time.Duration {
	v, _ := time.ParseDuration(s.ShutdownTimeout)
	return v
}

// RefreshEvery returns the polling cadence. Validate guarantees it parses.
func (d DashboardConfig) RefreshEvery() time.Duration {
	v, _ := time.ParseDuration(d.RefreshInterval)
	return v
}

// NotificationLifetime returns how long a notification stays visible.
func (d DashboardConfig) NotificationLifetime() time.Duration {
	v, _ := time.ParseDuration(d.NotificationTTL)
	return v
}

// Timeout returns the per-request timeout of the status client.
func (d DashboardConfig) Timeout() time.Duration {
	v, _ := time.ParseDuration(d.RequestTimeout)
	return v
}

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.environment", EnvDev)
	v.SetDefault("server.address", ":5000")
	v.SetDefault("server.state_file", "estado_actual.json")
	v.SetDefault("server.monitor_version", "1.0.0")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.idle_timeout", "60s")
	v.SetDefault("server.shutdown_timeout", "5s")

	v.SetDefault("dashboard.base_url", "http://127.0.0.1:5000")
	v.SetDefault("dashboard.status_path", "/api/status")
	v.SetDefault("dashboard.system_path", "/api/system")
	v.SetDefault("dashboard.refresh_interval", "30s")
	v.SetDefault("dashboard.notification_ttl", "3s")
	v.SetDefault("dashboard.request_timeout", "10s")
	v.SetDefault("dashboard.time_layout", "02/01/2006, 15:04:05")
	v.SetDefault("dashboard.auto_refresh", true)

	v.SetDefault("logging.level", LogLevelInfo)
	v.SetDefault("logging.file", "")
}

// Load reads configuration into a fresh viper instance. An explicit file
// path wins; otherwise config.yaml is looked up in ./config and the working
// directory. A missing implicit file is not an error.
func Load(file string) (*Config, error) {
	return LoadWith(viper.New(), file)
}

// LoadWith is Load on a caller-provided viper instance, so flags bound with
// BindPFlag take part in the lookup.
func LoadWith(v *viper.Viper, file string) (*Config, error) {
	SetDefaults(v)

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			slog.Error("failed to read config file", slog.String("error", err.Error()))
			return nil, errors.Wrap(err, "read config")
		}
		slog.Debug("config file not found, using defaults and environment variables")
	} else {
		slog.Debug("loaded config file", slog.String("file", v.ConfigFileUsed()))
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		slog.Error("failed to unmarshal config", slog.String("error", err.Error()))
		return nil, errors.Wrap(err, "unmarshal config")
	}

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Server,
			validation.By(func(value interface{}) error {
				sc, ok := value.(ServerConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a ServerConfig")
				}
				return validation.ValidateStruct(&sc,
					validation.Field(&sc.Environment,
						validation.Required,
						validation.In(EnvDev, EnvStaging, EnvProd),
					),
					validation.Field(&sc.Address,
						validation.Required,
						validation.By(validateHostPort),
					),
					validation.Field(&sc.StateFile, validation.Required),
					validation.Field(&sc.MonitorVersion, validation.Required),
					validation.Field(&sc.ReadTimeout,
						validation.Required,
						validation.By(validatePositiveDuration),
					),
					validation.Field(&sc.WriteTimeout,
						validation.Required,
						validation.By(validatePositiveDuration),
					),
					validation.Field(&sc.IdleTimeout,
						validation.Required,
						validation.By(validatePositiveDuration),
					),
					validation.Field(&sc.ShutdownTimeout,
						validation.Required,
						validation.By(validatePositiveDuration),
					),
				)
			}),
		),
		validation.Field(&c.Dashboard,
			validation.By(func(value interface{}) error {
				dc, ok := value.(DashboardConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a DashboardConfig")
				}
				return validation.ValidateStruct(&dc,
					validation.Field(&dc.BaseURL,
						validation.Required,
						validation.By(validateServerURL),
					),
					validation.Field(&dc.StatusPath,
						validation.Required,
						validation.By(validatePath),
					),
					validation.Field(&dc.SystemPath,
						validation.Required,
						validation.By(validatePath),
					),
					validation.Field(&dc.RefreshInterval,
						validation.Required,
						validation.By(validatePositiveDuration),
					),
					validation.Field(&dc.NotificationTTL,
						validation.Required,
						validation.By(validatePositiveDuration),
					),
					validation.Field(&dc.RequestTimeout,
						validation.Required,
						validation.By(validatePositiveDuration),
					),
					validation.Field(&dc.TimeLayout, validation.Required),
				)
			}),
		),
		validation.Field(&c.Logging,
			validation.By(func(value interface{}) error {
				lc, ok := value.(LoggingConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a LoggingConfig")
				}
				return validation.ValidateStruct(&lc,
					validation.Field(&lc.Level,
						validation.Required,
						validation.In(LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError),
					),
				)
			}),
		),
	)
}

func validateHostPort(value interface{}) error {
	addr, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}

	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return validation.NewError("validation_invalid_hostport", "must be in host:port format")
	}

	if port == "" {
		return validation.NewError("validation_invalid_port", "port cannot be empty")
	}

	if host != "" {
		if err := is.Host.Validate(host); err != nil {
			return validation.NewError("validation_invalid_host", "invalid host")
		}
	}

	return nil
}

func validatePositiveDuration(value interface{}) error {
	durationStr, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}

	d, err := time.ParseDuration(durationStr)
	if err != nil {
		return validation.NewError("validation_invalid_duration", "must be a valid duration (e.g., 3s, 30s, 1m)")
	}

	if d <= 0 {
		return validation.NewError("validation_nonpositive_duration", "must be greater than zero")
	}

	return nil
}

func validatePath(value interface{}) error {
	p, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}

	if !strings.HasPrefix(p, "/") {
		return validation.NewError("validation_invalid_path", "must start with /")
	}

	return nil
}

func validateServerURL(value interface{}) error {
	serverURL, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}

	if serverURL == "" {
		return validation.NewError("validation_empty_url", "server URL cannot be empty")
	}

	parsedURL, err := url.Parse(serverURL)
	if err != nil {
		return validation.NewError("validation_invalid_url", "must be a valid URL")
	}

	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return validation.NewError("validation_invalid_scheme", "URL must use http or https scheme")
	}

	if parsedURL.Host == "" {
		return validation.NewError("validation_missing_host", "URL must have a host")
	}

	return nil
}
