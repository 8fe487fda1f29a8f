package app

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/yungbote/mockly-backend/internal/clients/livekit"
	"github.com/yungbote/mockly-backend/internal/clients/ml"
	"github.com/yungbote/mockly-backend/internal/data/db"
	"github.com/yungbote/mockly-backend/internal/jobs/worker"
	"github.com/yungbote/mockly-backend/internal/observability"
	"github.com/yungbote/mockly-backend/internal/platform/envutil"
	"github.com/yungbote/mockly-backend/internal/platform/gcp"
	"github.com/yungbote/mockly-backend/internal/platform/logger"
	"github.com/yungbote/mockly-backend/internal/realtime/bus"
)

const (
	defaultJWTSecret = "defaultsecret"
	configPathEnv    = "MOCKLY_CONFIG_PATH"
)

type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
	Issuer    string `yaml:"issuer"`
}

type Config struct {
	Env            string   `yaml:"env"`
	LogMode        string   `yaml:"log_mode"`
	Port           string   `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"`

	Postgres db.PostgresConfig        `yaml:"postgres"`
	Redis    bus.RedisConfig          `yaml:"redis"`
	Worker   worker.Config            `yaml:"worker"`
	ML       ml.Options               `yaml:"ml"`
	LiveKit  livekit.Config           `yaml:"livekit"`
	Storage  gcp.ObjectStorageConfig  `yaml:"storage"`
	Otel     observability.OtelConfig `yaml:"otel"`
	Auth     AuthConfig               `yaml:"auth"`

	UploadURLTTL         time.Duration `yaml:"upload_url_ttl"`
	ReportDownloadURLTTL time.Duration `yaml:"report_download_url_ttl"`
}

func (c Config) Addr() string {
	port := strings.TrimPrefix(strings.TrimSpace(c.Port), ":")
	return ":" + port
}

func (c Config) IsProduction() bool {
	switch strings.ToLower(c.Env) {
	case "prod", "production":
		return true
	}
	return false
}

func DefaultConfig() Config {
	return Config{
		Env:     "development",
		LogMode: "development",
		Port:    "8080",
		Postgres: db.PostgresConfig{
			Host:         "localhost",
			Port:         "5432",
			User:         "postgres",
			Name:         "mockly",
			SSLMode:      "disable",
			MaxOpenConns: 20,
			MaxIdleConns: 5,
		},
		Redis:  bus.RedisConfig{Channel: "mockly:events"},
		Worker: worker.Config{Concurrency: worker.DefaultConcurrency, QueueSize: worker.DefaultQueueSize},
		ML: ml.Options{
			BaseURL:    "http://localhost:8000",
			Timeout:    30 * time.Second,
			MaxRetries: 2,
		},
		LiveKit: livekit.Config{TokenTTL: livekit.DefaultTokenTTL},
		Storage: gcp.ObjectStorageConfig{Bucket: "mockly-recordings"},
		Otel: observability.OtelConfig{
			ServiceName: "mockly-api",
			SampleRatio: 1,
		},
		Auth:                 AuthConfig{JWTSecret: defaultJWTSecret, Issuer: "mockly"},
		UploadURLTTL:         time.Hour,
		ReportDownloadURLTTL: time.Hour,
	}
}

// LoadConfig layers defaults, the optional YAML file named by MOCKLY_CONFIG_PATH
// and environment overrides, in that order.
func LoadConfig(log *logger.Logger) (Config, error) {
	cfg := DefaultConfig()

	if path := strings.TrimSpace(os.Getenv(configPathEnv)); path != "" {
		if err := loadConfigFile(path, &cfg); err != nil {
			return cfg, err
		}
		log.Info("Loaded config file", "path", path)
	}

	applyEnv(&cfg)

	storage, err := gcp.ResolveObjectStorageConfigFromEnv(cfg.Storage)
	if err != nil {
		return cfg, fmt.Errorf("object storage config: %w", err)
	}
	cfg.Storage = storage

	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	if cfg.Auth.JWTSecret == defaultJWTSecret {
		log.Warn("JWT_SECRET_KEY not set; using the development default")
	}
	if cfg.LiveKit.APIKey == "" || cfg.LiveKit.APISecret == "" {
		log.Warn("LiveKit credentials not set; room tokens are disabled")
	}
	return cfg, nil
}

func loadConfigFile(path string, cfg *Config) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	cfg.Env = envutil.String("APP_ENV", cfg.Env)
	cfg.LogMode = envutil.String("LOG_MODE", cfg.LogMode)
	cfg.Port = envutil.String("PORT", cfg.Port)
	if v := envutil.String("CORS_ALLOWED_ORIGINS", ""); v != "" {
		cfg.AllowedOrigins = splitList(v)
	}

	pg := &cfg.Postgres
	pg.DSN = envutil.String("DATABASE_URL", pg.DSN)
	pg.Host = envutil.String("POSTGRES_HOST", pg.Host)
	pg.Port = envutil.String("POSTGRES_PORT", pg.Port)
	pg.User = envutil.String("POSTGRES_USER", pg.User)
	pg.Password = envutil.String("POSTGRES_PASSWORD", pg.Password)
	pg.Name = envutil.String("POSTGRES_NAME", pg.Name)
	pg.SSLMode = envutil.String("POSTGRES_SSLMODE", pg.SSLMode)
	pg.MaxOpenConns = envutil.Int("POSTGRES_MAX_OPEN_CONNS", pg.MaxOpenConns)
	pg.MaxIdleConns = envutil.Int("POSTGRES_MAX_IDLE_CONNS", pg.MaxIdleConns)

	cfg.Redis.Addr = envutil.String("REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = envutil.String("REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Redis.DB = envutil.Int("REDIS_DB", cfg.Redis.DB)
	cfg.Redis.Channel = envutil.String("REDIS_EVENTS_CHANNEL", cfg.Redis.Channel)

	cfg.Worker.Concurrency = envutil.Int("WORKER_CONCURRENCY", cfg.Worker.Concurrency)
	cfg.Worker.QueueSize = envutil.Int("WORKER_QUEUE_SIZE", cfg.Worker.QueueSize)

	cfg.ML.BaseURL = envutil.String("ML_SERVICE_URL", cfg.ML.BaseURL)
	cfg.ML.Timeout = envutil.Duration("ML_SERVICE_TIMEOUT", cfg.ML.Timeout)
	cfg.ML.MaxRetries = envutil.Int("ML_SERVICE_MAX_RETRIES", cfg.ML.MaxRetries)

	cfg.LiveKit.URL = envutil.String("LIVEKIT_URL", cfg.LiveKit.URL)
	cfg.LiveKit.APIKey = envutil.String("LIVEKIT_API_KEY", cfg.LiveKit.APIKey)
	cfg.LiveKit.APISecret = envutil.String("LIVEKIT_API_SECRET", cfg.LiveKit.APISecret)
	cfg.LiveKit.WebhookSecret = envutil.String("LIVEKIT_WEBHOOK_SECRET", cfg.LiveKit.WebhookSecret)
	cfg.LiveKit.TokenTTL = envutil.Duration("LIVEKIT_TOKEN_TTL", cfg.LiveKit.TokenTTL)

	cfg.Auth.JWTSecret = envutil.String("JWT_SECRET_KEY", cfg.Auth.JWTSecret)
	cfg.Auth.Issuer = envutil.String("JWT_ISSUER", cfg.Auth.Issuer)

	cfg.UploadURLTTL = envutil.Duration("UPLOAD_URL_TTL", cfg.UploadURLTTL)
	cfg.ReportDownloadURLTTL = envutil.Duration("REPORT_DOWNLOAD_URL_TTL", cfg.ReportDownloadURLTTL)

	o := &cfg.Otel
	o.Enabled = envutil.Bool("OTEL_ENABLED", o.Enabled)
	o.ServiceName = envutil.String("OTEL_SERVICE_NAME", o.ServiceName)
	o.Environment = envutil.String("APP_ENV", o.Environment)
	o.Version = envutil.String("APP_VERSION", o.Version)
	o.Endpoint = envutil.String("OTEL_EXPORTER_OTLP_ENDPOINT", o.Endpoint)
	o.Insecure = envutil.Bool("OTEL_EXPORTER_OTLP_INSECURE", o.Insecure)
	if v := envutil.String("OTEL_EXPORTER_OTLP_HEADERS", ""); v != "" {
		o.Headers = observability.ParseHeaders(v)
	}
	if v := envutil.String("OTEL_TRACES_SAMPLER_ARG", ""); v != "" {
		var ratio float64
		if _, err := fmt.Sscanf(v, "%g", &ratio); err == nil {
			o.SampleRatio = ratio
		}
	}
}

func (c Config) validate() error {
	var errs []error
	if strings.TrimSpace(c.Port) == "" {
		errs = append(errs, errors.New("port is required"))
	}
	if strings.TrimSpace(c.ML.BaseURL) == "" {
		errs = append(errs, errors.New("ML_SERVICE_URL is required"))
	}
	if c.IsProduction() && c.Auth.JWTSecret == defaultJWTSecret {
		errs = append(errs, errors.New("JWT_SECRET_KEY must be set in production"))
	}
	if c.UploadURLTTL <= 0 || c.ReportDownloadURLTTL <= 0 {
		errs = append(errs, errors.New("presigned URL TTLs must be positive"))
	}
	return errors.Join(errs...)
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
