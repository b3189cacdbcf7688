package settings

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/q-controller/imagedrop/src/pkg/logging"
	"github.com/q-controller/imagedrop/src/pkg/scheduler"
	"github.com/q-controller/imagedrop/src/pkg/utils"
)

// reservedMounts are served by the gateway itself.
var reservedMounts = []string{"/", "/static", "/upload", "/v1", "/healthz", "/metrics", "/docs", "/openapi.yaml"}

type ServerConfig struct {
	Address string `yaml:"address"`
	// PublicBaseURL replaces the request origin when building blob URLs.
	PublicBaseURL   string        `yaml:"public_base_url"`
	MaxUploadBytes  int64         `yaml:"max_upload_bytes"`
	UploadTimeout   time.Duration `yaml:"upload_timeout"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type StorageConfig struct {
	UploadDir       string `yaml:"upload_dir"`
	Mount           string `yaml:"mount"`
	StaticDir       string `yaml:"static_dir"`
	DetectExtension bool   `yaml:"detect_extension"`
}

type RetentionConfig struct {
	MaxAgeDays   int           `yaml:"max_age_days"`
	SweepAt      string        `yaml:"sweep_at"`
	PollInterval time.Duration `yaml:"poll_interval"`
}

type Config struct {
	LogLevel  string          `yaml:"log_level"`
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Retention RetentionConfig `yaml:"retention"`
}

// MaxAge is the retention window as a duration.
func (c *Config) MaxAge() time.Duration {
	return time.Duration(c.Retention.MaxAgeDays) * 24 * time.Hour
}

func Default() *Config {
	return &Config{
		LogLevel: "info",
		Server: ServerConfig{
			Address:         ":8000",
			MaxUploadBytes:  20 << 20,
			UploadTimeout:   30 * time.Second,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Storage: StorageConfig{
			UploadDir: "uploads",
			Mount:     "/uploads",
			StaticDir: "static",
		},
		Retention: RetentionConfig{
			MaxAgeDays:   7,
			SweepAt:      "03:00",
			PollInterval: time.Minute,
		},
	}
}

// Load reads the YAML file at path over the defaults. An empty path yields the defaults.
func Load(path string) (*Config, error) {
	config := Default()
	if path != "" {
		if unmarshalErr := utils.Unmarshal(config, path); unmarshalErr != nil {
			return nil, fmt.Errorf("failed to read config: %w", unmarshalErr)
		}
	}

	config.Storage.Mount = "/" + strings.Trim(config.Storage.Mount, "/")
	config.Server.PublicBaseURL = strings.TrimSuffix(config.Server.PublicBaseURL, "/")

	if validateErr := config.Validate(); validateErr != nil {
		return nil, fmt.Errorf("invalid config: %w", validateErr)
	}
	return config, nil
}

func (c *Config) Validate() error {
	var errs []error
	if _, ok := logging.ParseLevel(c.LogLevel); !ok {
		errs = append(errs, fmt.Errorf("unknown log_level %q", c.LogLevel))
	}
	if c.Server.Address == "" {
		errs = append(errs, errors.New("server.address must be set"))
	}
	if c.Server.MaxUploadBytes <= 0 {
		errs = append(errs, errors.New("server.max_upload_bytes must be positive"))
	}
	if c.Server.UploadTimeout <= 0 {
		errs = append(errs, errors.New("server.upload_timeout must be positive"))
	}
	if c.Storage.UploadDir == "" {
		errs = append(errs, errors.New("storage.upload_dir must be set"))
	}
	if slices.Contains(reservedMounts, c.Storage.Mount) {
		errs = append(errs, fmt.Errorf("storage.mount %q collides with another route", c.Storage.Mount))
	}
	if c.Storage.StaticDir == "" {
		errs = append(errs, errors.New("storage.static_dir must be set"))
	}
	if c.Retention.MaxAgeDays <= 0 {
		errs = append(errs, errors.New("retention.max_age_days must be positive"))
	}
	if _, _, clockErr := scheduler.ParseClock(c.Retention.SweepAt); clockErr != nil {
		errs = append(errs, fmt.Errorf("retention.sweep_at: %w", clockErr))
	}
	if c.Retention.PollInterval <= 0 {
		errs = append(errs, errors.New("retention.poll_interval must be positive"))
	}
	return errors.Join(errs...)
}
