package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/hive-corporation/ioc-console/internal/adapter/httpclient"
	"github.com/joho/godotenv"
)

// Config is the runtime configuration of the console binaries.
type Config struct {
	RESTPort       string
	GRPCListenAddr string

	// DatabaseURL selects the Postgres store; empty means in-memory.
	DatabaseURL       string
	RepositoryLatency time.Duration
	SeedFile          string

	SessionSecret string
	SessionTTL    time.Duration

	DashboardRefreshInterval time.Duration

	Slack  SlackConfig
	Export ExportConfig
	Notify httpclient.Config
	// NotifyTimeout bounds one background alert, retries included.
	NotifyTimeout time.Duration

	LogLevel  string
	LogFormat string
}

type SlackConfig struct {
	BotToken    string
	Channel     string
	MentionTeam string
	BaseURL     string
}

// Enabled reports whether critical IoC alerts should be sent.
func (s SlackConfig) Enabled() bool { return s.BotToken != "" }

type ExportConfig struct {
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
}

// Enabled reports whether exports can be published to object storage.
func (e ExportConfig) Enabled() bool { return e.Bucket != "" }

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	// A missing .env is fine; the environment may carry everything.
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv builds a Config from the process environment only.
func FromEnv() (*Config, error) {
	notify := httpclient.DefaultConfig("slack-api")
	notify.EnableCircuitBreaker = getEnvBool("NOTIFY_CIRCUIT_BREAKER_ENABLED", notify.EnableCircuitBreaker)
	notify.MaxFailures = uint32(getEnvInt("NOTIFY_CIRCUIT_BREAKER_MAX_FAILURES", int(notify.MaxFailures)))
	notify.CircuitTimeout = getEnvDuration("NOTIFY_CIRCUIT_BREAKER_TIMEOUT", notify.CircuitTimeout)
	notify.MaxRetries = getEnvInt("NOTIFY_RETRY_MAX_ATTEMPTS", notify.MaxRetries)
	notify.InitialInterval = getEnvDuration("NOTIFY_RETRY_INITIAL_INTERVAL", notify.InitialInterval)
	notify.MaxInterval = getEnvDuration("NOTIFY_RETRY_MAX_INTERVAL", notify.MaxInterval)

	cfg := &Config{
		RESTPort:                 getEnv("REST_API_PORT", "8080"),
		GRPCListenAddr:           getEnv("GRPC_LISTEN_ADDR", "127.0.0.1:50051"),
		DatabaseURL:              os.Getenv("DATABASE_URL"),
		RepositoryLatency:        getEnvDuration("REPOSITORY_LATENCY", 0),
		SeedFile:                 os.Getenv("SEED_FILE"),
		SessionSecret:            os.Getenv("SESSION_SECRET"),
		SessionTTL:               time.Duration(getEnvInt("SESSION_TTL_HOURS", 24)) * time.Hour,
		DashboardRefreshInterval: getEnvDuration("DASHBOARD_REFRESH_INTERVAL", 5*time.Minute),
		Slack: SlackConfig{
			BotToken:    os.Getenv("SLACK_BOT_TOKEN"),
			Channel:     getEnv("SLACK_CHANNEL_SECURITY", "#security-alerts"),
			MentionTeam: getEnv("SLACK_MENTION_TEAM", "@security-team"),
			BaseURL:     getEnv("SLACK_API_URL", "https://slack.com/api"),
		},
		Export: ExportConfig{
			Bucket:          os.Getenv("EXPORT_S3_BUCKET"),
			Region:          getEnv("EXPORT_S3_REGION", "us-east-1"),
			Endpoint:        os.Getenv("EXPORT_S3_ENDPOINT"),
			AccessKeyID:     os.Getenv("EXPORT_S3_ACCESS_KEY"),
			SecretAccessKey: os.Getenv("EXPORT_S3_SECRET_KEY"),
		},
		Notify:        notify,
		NotifyTimeout: getEnvDuration("NOTIFY_TIMEOUT", 30*time.Second),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		LogFormat:     getEnv("LOG_FORMAT", "text"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.SessionTTL <= 0 {
		errs = append(errs, fmt.Errorf("SESSION_TTL_HOURS must be positive"))
	}
	if c.RepositoryLatency < 0 {
		errs = append(errs, fmt.Errorf("REPOSITORY_LATENCY must not be negative"))
	}
	if c.SessionSecret != "" && len(c.SessionSecret) < 32 {
		errs = append(errs, fmt.Errorf("SESSION_SECRET must be at least 32 bytes"))
	}
	if (c.Export.AccessKeyID == "") != (c.Export.SecretAccessKey == "") {
		errs = append(errs, fmt.Errorf("EXPORT_S3_ACCESS_KEY and EXPORT_S3_SECRET_KEY must be set together"))
	}
	return errors.Join(errs...)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if val := os.Getenv(key); val != "" {
		if boolVal, err := strconv.ParseBool(val); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultValue
}
