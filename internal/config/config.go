// Package config loads and validates the service configuration.
//
// Configuration lives in a YAML file (sites, blend targets, model metadata,
// storage and delivery settings). Secrets are taken from the environment on
// top of the file: the FTP password is env-only and never read from YAML.
// A .env file in the working directory is honored for local development.
package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/lakewx/nwp-blend/internal/domain"
)

// Environment variables recognized on top of the YAML file.
const (
	EnvFTPHost     = "NWP_FTP_HOST"
	EnvFTPUser     = "NWP_FTP_USER"
	EnvFTPPassword = "NWP_FTP_PASSWORD" // env-only, never in YAML
)

// Config holds all service settings for one deployment.
type Config struct {
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
	HTTPAddr  string `yaml:"http_addr"`

	// Schedule is the cron expression used in daemon mode.
	Schedule string `yaml:"schedule"`

	BatchTimeoutMinutes    int `yaml:"batch_timeout_minutes"`
	ShutdownTimeoutSeconds int `yaml:"shutdown_timeout_seconds"`

	Storage StorageConfig `yaml:"storage"`
	NWP     NWPConfig     `yaml:"nwp"`
	Blend   BlendConfig   `yaml:"blend"`
	Sites   []Site        `yaml:"sites"`
	Targets []Target      `yaml:"targets"`
	FTP     FTPConfig     `yaml:"ftp"`
	Kafka   KafkaConfig   `yaml:"kafka"`
}

// StorageConfig locates the on-disk forecast store.
type StorageConfig struct {
	// Root holds one directory per model run, named by the run's init id.
	Root string `yaml:"root"`

	// DateLayout is the Go reference layout for init ids. It must format
	// to a fixed-width, digits-only string (default YYYYMMDDHH).
	DateLayout string `yaml:"date_layout"`
}

// NWPConfig describes the model pair and the parameter vocabulary a run
// must provide to count as complete.
type NWPConfig struct {
	Parameters []string    `yaml:"parameters"`
	ShortRange ModelConfig `yaml:"short_range"`
	MidRange   ModelConfig `yaml:"mid_range"`
}

// ModelConfig carries per-model metadata: lead-time range in hours (Stop
// exclusive), init frequency in hours and native grid step in degrees.
type ModelConfig struct {
	Name     string  `yaml:"name"`
	Start    int     `yaml:"start"`
	Stop     int     `yaml:"stop"`
	Freq     int     `yaml:"freq"`
	GridStep float64 `yaml:"grid_step"`
}

// BlendConfig sets the cross-fade window between the two model ranges.
type BlendConfig struct {
	Window  int       `yaml:"window"`
	Weights []float64 `yaml:"weights"`
}

// Site is a named point of interest on the model grid.
type Site struct {
	Name string  `yaml:"name"`
	Lon  float64 `yaml:"lon"`
	Lat  float64 `yaml:"lat"`
}

// Target selects one parameter to blend and publish per site, plus the
// metadata attached to the resulting artifact. Accumulated parameters are
// de-aggregated into per-interval values before extraction. Targets with
// thresholds additionally publish exceedance probability columns, in the
// parameter's unit.
type Target struct {
	Parameter   string    `yaml:"parameter"`
	Description string    `yaml:"description"`
	Unit        string    `yaml:"unit"`
	Quantiles   []float64 `yaml:"quantiles"`
	Thresholds  []float64 `yaml:"thresholds"`
	Accumulated bool      `yaml:"accumulated"`
}

// FTPConfig describes the remote artifact store. The password comes from
// NWP_FTP_PASSWORD and is never read from the file.
type FTPConfig struct {
	Host               string `yaml:"host"`
	User               string `yaml:"user"`
	Password           string `yaml:"-"`
	RemoteDir          string `yaml:"remote_dir"`
	DialTimeoutSeconds int    `yaml:"dial_timeout_seconds"`
	MaxAttempts        int    `yaml:"max_attempts"`
	RetryDelaySeconds  int    `yaml:"retry_delay_seconds"`
}

// KafkaConfig controls the optional publish-notification producer.
type KafkaConfig struct {
	Enabled bool     `yaml:"enabled"`
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

var siteNameRe = regexp.MustCompile(`^[a-z0-9_]+$`)

// Load reads the YAML file at path, applies environment overrides and
// validates the result. A .env file is loaded first if present.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg := defaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	if v := os.Getenv(EnvFTPHost); v != "" {
		cfg.FTP.Host = v
	}
	if v := os.Getenv(EnvFTPUser); v != "" {
		cfg.FTP.User = v
	}
	cfg.FTP.Password = os.Getenv(EnvFTPPassword)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		LogLevel:               "info",
		LogFormat:              "json",
		HTTPAddr:               ":8080",
		Schedule:               "@hourly",
		BatchTimeoutMinutes:    30,
		ShutdownTimeoutSeconds: 10,
		Storage: StorageConfig{
			Root:       "data",
			DateLayout: "2006010215",
		},
		NWP: NWPConfig{
			Parameters: []string{
				"VMAX_10M", "U_10M", "V_10M", "T_2M", "TD_2M",
				"HZEROCL", "DURSUN", "PMSL", "TOT_PREC",
			},
			ShortRange: ModelConfig{Name: "ICON1", Start: 0, Stop: 34, Freq: 3, GridStep: 0.01},
			MidRange:   ModelConfig{Name: "ICON2", Start: 34, Stop: 121, Freq: 6, GridStep: 0.02},
		},
		Blend: BlendConfig{Window: 3, Weights: []float64{0.25, 0.5, 0.75}},
		FTP: FTPConfig{
			DialTimeoutSeconds: 10,
			MaxAttempts:        3,
			RetryDelaySeconds:  1,
		},
		Kafka: KafkaConfig{Topic: "published-forecasts"},
	}
}

// BlendSpec converts the blend section into its domain form.
func (c *Config) BlendSpec() domain.BlendSpec {
	return domain.BlendSpec{Window: c.Blend.Window, Weights: c.Blend.Weights}
}

// BatchTimeout bounds one pipeline batch in daemon mode.
func (c *Config) BatchTimeout() time.Duration {
	return time.Duration(c.BatchTimeoutMinutes) * time.Minute
}

// ShutdownTimeout bounds graceful shutdown of the daemon.
func (c *Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutSeconds) * time.Second
}

// DialTimeout bounds one connection attempt to the remote store.
func (f FTPConfig) DialTimeout() time.Duration {
	return time.Duration(f.DialTimeoutSeconds) * time.Second
}

// RetryDelay is the base backoff between upload attempts.
func (f FTPConfig) RetryDelay() time.Duration {
	return time.Duration(f.RetryDelaySeconds) * time.Second
}

func (c *Config) validate() error {
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level: unsupported level %q", c.LogLevel)
	}
	switch strings.ToLower(c.LogFormat) {
	case "json", "text":
	default:
		return fmt.Errorf("log_format: unsupported format %q", c.LogFormat)
	}
	if c.BatchTimeoutMinutes <= 0 {
		return fmt.Errorf("batch_timeout_minutes must be positive, got %d", c.BatchTimeoutMinutes)
	}
	if c.ShutdownTimeoutSeconds <= 0 {
		return fmt.Errorf("shutdown_timeout_seconds must be positive, got %d", c.ShutdownTimeoutSeconds)
	}
	if c.Schedule == "" {
		return fmt.Errorf("schedule must not be empty")
	}

	if c.Storage.Root == "" {
		return fmt.Errorf("storage.root must not be empty")
	}
	if err := validateDateLayout(c.Storage.DateLayout); err != nil {
		return fmt.Errorf("storage.date_layout: %w", err)
	}

	if len(c.NWP.Parameters) == 0 {
		return fmt.Errorf("nwp.parameters must not be empty")
	}
	if err := validateModel("nwp.short_range", c.NWP.ShortRange); err != nil {
		return err
	}
	if err := validateModel("nwp.mid_range", c.NWP.MidRange); err != nil {
		return err
	}
	if c.NWP.ShortRange.Name == c.NWP.MidRange.Name {
		return fmt.Errorf("nwp models must have distinct names, both are %q", c.NWP.ShortRange.Name)
	}

	if err := c.BlendSpec().Validate(); err != nil {
		return fmt.Errorf("blend: %w", err)
	}

	if len(c.Sites) == 0 {
		return fmt.Errorf("sites must not be empty")
	}
	for _, s := range c.Sites {
		if !siteNameRe.MatchString(s.Name) {
			return fmt.Errorf("site name %q must match %s", s.Name, siteNameRe)
		}
		if s.Lat < -90 || s.Lat > 90 {
			return fmt.Errorf("site %s: latitude %v out of range", s.Name, s.Lat)
		}
		if s.Lon < -180 || s.Lon > 180 {
			return fmt.Errorf("site %s: longitude %v out of range", s.Name, s.Lon)
		}
	}

	if len(c.Targets) == 0 {
		return fmt.Errorf("targets must not be empty")
	}
	known := make(map[string]bool, len(c.NWP.Parameters)+2)
	for _, p := range c.NWP.Parameters {
		known[p] = true
	}
	known[domain.ParamWindDir] = true
	known[domain.ParamWindSpeed] = true
	for _, t := range c.Targets {
		if !known[t.Parameter] {
			return fmt.Errorf("target parameter %q is not provided by the configured models", t.Parameter)
		}
		if len(t.Quantiles) == 0 {
			return fmt.Errorf("target %s: quantiles must not be empty", t.Parameter)
		}
		for _, q := range t.Quantiles {
			if q < 0 || q > 1 {
				return fmt.Errorf("target %s: quantile %v out of [0, 1]", t.Parameter, q)
			}
		}
		for i := 1; i < len(t.Thresholds); i++ {
			if t.Thresholds[i] <= t.Thresholds[i-1] {
				return fmt.Errorf("target %s: thresholds must be strictly increasing", t.Parameter)
			}
		}
	}

	if c.FTP.Host == "" {
		return fmt.Errorf("ftp.host must not be empty (or set %s)", EnvFTPHost)
	}
	if c.FTP.User == "" {
		return fmt.Errorf("ftp.user must not be empty (or set %s)", EnvFTPUser)
	}
	if c.FTP.Password == "" {
		return fmt.Errorf("%s must be set", EnvFTPPassword)
	}
	if c.FTP.DialTimeoutSeconds <= 0 {
		return fmt.Errorf("ftp.dial_timeout_seconds must be positive, got %d", c.FTP.DialTimeoutSeconds)
	}
	if c.FTP.MaxAttempts <= 0 {
		return fmt.Errorf("ftp.max_attempts must be positive, got %d", c.FTP.MaxAttempts)
	}
	if c.FTP.RetryDelaySeconds <= 0 {
		return fmt.Errorf("ftp.retry_delay_seconds must be positive, got %d", c.FTP.RetryDelaySeconds)
	}

	if c.Kafka.Enabled {
		if len(c.Kafka.Brokers) == 0 {
			return fmt.Errorf("kafka.brokers must not be empty when kafka is enabled")
		}
		if c.Kafka.Topic == "" {
			return fmt.Errorf("kafka.topic must not be empty when kafka is enabled")
		}
	}
	return nil
}

func validateModel(key string, m ModelConfig) error {
	if m.Name == "" {
		return fmt.Errorf("%s.name must not be empty", key)
	}
	if m.Freq <= 0 {
		return fmt.Errorf("%s.freq must be positive, got %d", key, m.Freq)
	}
	if m.Stop <= m.Start {
		return fmt.Errorf("%s: stop %d must be greater than start %d", key, m.Stop, m.Start)
	}
	return nil
}

// validateDateLayout rejects layouts that would not yield fixed-width,
// digits-only init ids. Run discovery derives its directory-name pattern
// from the layout's width.
func validateDateLayout(layout string) error {
	if layout == "" {
		return fmt.Errorf("must not be empty")
	}
	ref := time.Date(2023, 12, 25, 23, 0, 0, 0, time.UTC)
	id := ref.Format(layout)
	if len(id) != len(layout) {
		return fmt.Errorf("layout %q is not fixed-width", layout)
	}
	for _, r := range id {
		if r < '0' || r > '9' {
			return fmt.Errorf("layout %q does not format to digits only", layout)
		}
	}
	if _, err := time.Parse(layout, id); err != nil {
		return fmt.Errorf("layout %q does not round-trip: %w", layout, err)
	}
	return nil
}
