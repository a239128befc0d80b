// Package config loads the service configuration. Values are layered: an
// optional .env file, an optional YAML file named by PX_CONFIG_FILE, then
// PX_* environment variables, which always win.
package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	StorageDisk  = "disk"
	StorageMinio = "minio"
)

type Config struct {
	Addr             string          `yaml:"addr"`
	UploadPath       string          `yaml:"uploadPath"`
	Storage          string          `yaml:"storage"`
	S3               S3Config        `yaml:"s3"`
	Workers          int             `yaml:"workers"`
	MaxUploadBytes   int64           `yaml:"maxUploadBytes"`
	SerializeUploads bool            `yaml:"serializeUploads"`
	RateLimit        RateLimitConfig `yaml:"rateLimit"`
	Log              LogConfig       `yaml:"log"`
	ShutdownTimeout  time.Duration   `yaml:"shutdownTimeout"`
	ReadTimeout      time.Duration   `yaml:"readTimeout"`
	IdleTimeout      time.Duration   `yaml:"idleTimeout"`
	Build            BuildInfo       `yaml:"build"`

	// TrustProxyHeaders makes X-Forwarded-For and X-Real-IP identify the
	// client. Enable it only behind a proxy that overwrites them.
	TrustProxyHeaders bool `yaml:"trustProxyHeaders"`
}

// S3Config points the minio storage backend at a bucket. Prefix plays the
// role of the upload root inside the bucket.
type S3Config struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"accessKey"`
	SecretKey string `yaml:"secretKey"`
	Bucket    string `yaml:"bucket"`
	Prefix    string `yaml:"prefix"`
}

// RateLimitConfig is a per-client token bucket. RPS 0 disables limiting.
type RateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type BuildInfo struct {
	Version string `yaml:"version"`
	Commit  string `yaml:"commit"`
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		Addr:             ":8080",
		Storage:          StorageDisk,
		Workers:          4 * runtime.GOMAXPROCS(0),
		SerializeUploads: true,
		Log:              LogConfig{Level: "info", Format: "text"},
		ShutdownTimeout:  5 * time.Second,
		ReadTimeout:      2 * time.Minute,
		IdleTimeout:      2 * time.Minute,
		Build:            BuildInfo{Version: "dev", Commit: "unknown"},
	}
}

// Load builds the configuration from .env, the optional YAML file and the
// environment, then validates it.
func Load() (Config, error) {
	// A missing .env is the normal case outside local development.
	_ = godotenv.Load()

	cfg := Default()
	if path := os.Getenv("PX_CONFIG_FILE"); path != "" {
		if err := LoadFile(path, &cfg); err != nil {
			return cfg, err
		}
	}

	v := NewValidator()
	applyEnv(v, &cfg)
	cfg.validate(v)
	if v.HasErrors() {
		return cfg, errors.New(v.ErrorString())
	}
	return cfg, nil
}

// LoadFile overlays the YAML file at path onto cfg.
func LoadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func applyEnv(v *Validator, cfg *Config) {
	envString("PX_ADDR", &cfg.Addr)
	envString("PX_UPLOAD_PATH", &cfg.UploadPath)
	envString("PX_STORAGE", &cfg.Storage)
	envString("PX_S3_ENDPOINT", &cfg.S3.Endpoint)
	envString("PX_S3_ACCESS_KEY", &cfg.S3.AccessKey)
	envString("PX_S3_SECRET_KEY", &cfg.S3.SecretKey)
	envString("PX_BUCKET", &cfg.S3.Bucket)
	envString("PX_S3_PREFIX", &cfg.S3.Prefix)
	envString("PX_LOG_LEVEL", &cfg.Log.Level)
	envString("PX_LOG_FORMAT", &cfg.Log.Format)
	envString("PX_VERSION", &cfg.Build.Version)
	envString("PX_COMMIT", &cfg.Build.Commit)

	if raw := os.Getenv("PX_WORKERS"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			v.AddError("PX_WORKERS", "must be a valid integer")
		} else {
			cfg.Workers = n
		}
	}
	if raw := os.Getenv("PX_MAX_UPLOAD_BYTES"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			v.AddError("PX_MAX_UPLOAD_BYTES", "must be a valid integer")
		} else {
			cfg.MaxUploadBytes = n
		}
	}
	if raw := os.Getenv("PX_SERIALIZE_UPLOADS"); raw != "" {
		b, err := strconv.ParseBool(raw)
		if err != nil {
			v.AddError("PX_SERIALIZE_UPLOADS", "must be true or false")
		} else {
			cfg.SerializeUploads = b
		}
	}
	if raw := os.Getenv("PX_TRUST_PROXY_HEADERS"); raw != "" {
		b, err := strconv.ParseBool(raw)
		if err != nil {
			v.AddError("PX_TRUST_PROXY_HEADERS", "must be true or false")
		} else {
			cfg.TrustProxyHeaders = b
		}
	}
	if raw := os.Getenv("PX_RATE_LIMIT_RPS"); raw != "" {
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			v.AddError("PX_RATE_LIMIT_RPS", "must be a number")
		} else {
			cfg.RateLimit.RPS = f
		}
	}
	if raw := os.Getenv("PX_RATE_LIMIT_BURST"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			v.AddError("PX_RATE_LIMIT_BURST", "must be a valid integer")
		} else {
			cfg.RateLimit.Burst = n
		}
	}
	envDuration(v, "PX_SHUTDOWN_TIMEOUT", &cfg.ShutdownTimeout)
	envDuration(v, "PX_READ_TIMEOUT", &cfg.ReadTimeout)
	envDuration(v, "PX_IDLE_TIMEOUT", &cfg.IdleTimeout)
}

func envDuration(v *Validator, key string, dst *time.Duration) {
	raw := os.Getenv(key)
	if raw == "" {
		return
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		v.AddError(key, "must be a duration such as 5s")
		return
	}
	*dst = d
}

func envString(key string, dst *string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

// validate checks cross-field rules. The upload root is only required to be
// set; whether it exists and is writable is reported by the health endpoint.
func (c *Config) validate(v *Validator) {
	v.ValidateAddr("PX_ADDR", c.Addr)
	v.ValidateEnum("PX_STORAGE", c.Storage, []string{StorageDisk, StorageMinio})
	v.ValidateEnum("PX_LOG_FORMAT", c.Log.Format, []string{"text", "json"})
	v.ValidateEnum("PX_LOG_LEVEL", c.Log.Level, []string{"debug", "info", "warn", "error"})

	switch c.Storage {
	case StorageDisk:
		v.ValidateRequired("PX_UPLOAD_PATH", c.UploadPath)
	case StorageMinio:
		v.ValidateRequired("PX_S3_ENDPOINT", c.S3.Endpoint)
		v.ValidateRequired("PX_S3_ACCESS_KEY", c.S3.AccessKey)
		v.ValidateRequired("PX_S3_SECRET_KEY", c.S3.SecretKey)
		v.ValidateRequired("PX_BUCKET", c.S3.Bucket)
	}

	if c.Workers < 1 {
		v.AddError("PX_WORKERS", "must be at least 1")
	}
	if c.MaxUploadBytes < 0 {
		v.AddError("PX_MAX_UPLOAD_BYTES", "must not be negative (0 means no limit)")
	}
	if c.RateLimit.RPS < 0 {
		v.AddError("PX_RATE_LIMIT_RPS", "must not be negative (0 disables limiting)")
	}
	if c.RateLimit.RPS > 0 && c.RateLimit.Burst < 1 {
		v.AddError("PX_RATE_LIMIT_BURST", "must be at least 1 when rate limiting is enabled")
	}
	if c.ShutdownTimeout <= 0 {
		v.AddError("PX_SHUTDOWN_TIMEOUT", "must be positive")
	}
	// The read timeout bounds how long a slow upload body can take.
	if c.ReadTimeout <= 0 {
		v.AddError("PX_READ_TIMEOUT", "must be positive")
	}
	if c.IdleTimeout <= 0 {
		v.AddError("PX_IDLE_TIMEOUT", "must be positive")
	}
}
