package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	SES      SESConfig      `yaml:"ses"`
	Auth     AuthConfig     `yaml:"auth"`
	Workflow WorkflowConfig `yaml:"workflow"`
	Tracking TrackingConfig `yaml:"tracking"`
	Storage  StorageConfig  `yaml:"storage"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port                int      `yaml:"port"`
	Host                string   `yaml:"host"`
	ReadTimeoutSeconds  int      `yaml:"read_timeout_seconds"`
	WriteTimeoutSeconds int      `yaml:"write_timeout_seconds"`
	AllowedOrigins      []string `yaml:"allowed_origins"`
}

// GetHost returns the server host, with ECS detection
func (c ServerConfig) GetHost() string {
	// On ECS/container, listen on all interfaces
	if os.Getenv("ECS_CONTAINER_METADATA_URI") != "" || os.Getenv("AWS_EXECUTION_ENV") != "" {
		return "0.0.0.0"
	}
	if host := os.Getenv("SERVER_HOST"); host != "" {
		return host
	}
	return c.Host
}

// Addr is the listen address.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.GetHost(), c.Port)
}

func (c ServerConfig) ReadTimeout() time.Duration {
	return time.Duration(c.ReadTimeoutSeconds) * time.Second
}

func (c ServerConfig) WriteTimeout() time.Duration {
	return time.Duration(c.WriteTimeoutSeconds) * time.Second
}

// DatabaseConfig holds PostgreSQL settings. An empty URL selects the
// in-memory store.
type DatabaseConfig struct {
	URL             string `yaml:"url"`
	MaxOpenConns    int    `yaml:"max_open_conns"`
	MaxIdleConns    int    `yaml:"max_idle_conns"`
	ConnMaxLifetime int    `yaml:"conn_max_lifetime_minutes"`
}

// RedisConfig holds the Redis URL used for locks and sessions.
type RedisConfig struct {
	URL string `yaml:"url"`
}

// SESConfig holds AWS SES v2 sending configuration
type SESConfig struct {
	Region           string `yaml:"region"`
	AccessKey        string `yaml:"access_key"`
	SecretKey        string `yaml:"secret_key"`
	FromName         string `yaml:"from_name"`
	FromEmail        string `yaml:"from_email"`
	ReplyTo          string `yaml:"reply_to"`
	ConfigurationSet string `yaml:"configuration_set"`
	TimeoutSeconds   int    `yaml:"timeout_seconds"`
}

// Enabled reports whether SES sending is configured.
func (c SESConfig) Enabled() bool {
	return c.AccessKey != "" && c.SecretKey != "" && c.FromEmail != ""
}

func (c SESConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// AuthConfig holds Google OAuth configuration for HR staff
type AuthConfig struct {
	Enabled            bool     `yaml:"enabled"`
	GoogleClientID     string   `yaml:"google_client_id"`
	GoogleClientSecret string   `yaml:"google_client_secret"`
	RedirectURL        string   `yaml:"redirect_url"`
	AllowedDomain      string   `yaml:"allowed_domain"`
	SessionSecret      string   `yaml:"session_secret"`
	CookieName         string   `yaml:"cookie_name"`
	CookieMaxAge       int      `yaml:"cookie_max_age"`
	HREmails           []string `yaml:"hr_emails"`
	DevMode            bool     `yaml:"dev_mode"`
}

// WorkflowConfig holds hiring workflow settings
type WorkflowConfig struct {
	BaseURL             string  `yaml:"base_url"`
	LoginURL            string  `yaml:"login_url"`
	HRNotifyEmail       string  `yaml:"hr_notify_email"`
	PaymentAmount       float64 `yaml:"payment_amount"`
	PaymentCurrency     string  `yaml:"payment_currency"`
	PaymentInstructions string  `yaml:"payment_instructions"`
	TokenBytes          int     `yaml:"token_bytes"`
}

// TrackingConfig holds open-tracking pixel settings
type TrackingConfig struct {
	Enabled    bool   `yaml:"enabled"`
	BaseURL    string `yaml:"base_url"`
	SigningKey string `yaml:"signing_key"`
	QueueURL   string `yaml:"queue_url"`
	Region     string `yaml:"region"`
}

// StorageConfig holds payment receipt storage settings
type StorageConfig struct {
	Type          string `yaml:"type"` // "s3" or "local"
	LocalPath     string `yaml:"local_path"`
	ReceiptBucket string `yaml:"receipt_bucket"`
	AWSRegion     string `yaml:"aws_region"`
}

// LoggingConfig holds structured logger settings
type LoggingConfig struct {
	Level     string `yaml:"level"`
	RedactPII bool   `yaml:"redact_pii"`
}

// Load reads configuration from a YAML file and applies defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return &cfg, nil
}

// Default returns a configuration with defaults only.
func Default() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}

func (cfg *Config) applyDefaults() {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.ReadTimeoutSeconds == 0 {
		cfg.Server.ReadTimeoutSeconds = 15
	}
	if cfg.Server.WriteTimeoutSeconds == 0 {
		cfg.Server.WriteTimeoutSeconds = 30
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 20
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 30
	}
	if cfg.SES.Region == "" {
		cfg.SES.Region = "us-west-2"
	}
	if cfg.SES.TimeoutSeconds == 0 {
		cfg.SES.TimeoutSeconds = 30
	}
	if cfg.SES.FromName == "" {
		cfg.SES.FromName = "HR Team"
	}
	if cfg.Auth.CookieName == "" {
		cfg.Auth.CookieName = "onboarding_session"
	}
	if cfg.Auth.CookieMaxAge == 0 {
		cfg.Auth.CookieMaxAge = 86400
	}
	if cfg.Workflow.BaseURL == "" {
		cfg.Workflow.BaseURL = "http://localhost:3000"
	}
	if cfg.Workflow.LoginURL == "" {
		cfg.Workflow.LoginURL = cfg.Workflow.BaseURL + "/login"
	}
	if cfg.Workflow.PaymentAmount == 0 {
		cfg.Workflow.PaymentAmount = 150
	}
	if cfg.Workflow.PaymentCurrency == "" {
		cfg.Workflow.PaymentCurrency = "EUR"
	}
	if cfg.Workflow.TokenBytes == 0 {
		cfg.Workflow.TokenBytes = 32
	}
	if cfg.Tracking.Region == "" {
		cfg.Tracking.Region = cfg.SES.Region
	}
	if cfg.Storage.Type == "" {
		cfg.Storage.Type = "local"
	}
	if cfg.Storage.LocalPath == "" {
		cfg.Storage.LocalPath = "./data/receipts"
	}
	if cfg.Storage.AWSRegion == "" {
		cfg.Storage.AWSRegion = cfg.SES.Region
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
}

// LoadFromEnv loads configuration with environment variable overrides.
// A missing config file is not an error; defaults and env apply.
func LoadFromEnv(path string) (*Config, error) {
	_ = godotenv.Load()

	var cfg *Config
	if path != "" {
		loaded, err := Load(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, err
		}
		cfg = loaded
	}
	if cfg == nil {
		cfg = Default()
	}

	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Server.Port = p
		}
	}
	if url := os.Getenv("DATABASE_URL"); url != "" {
		cfg.Database.URL = url
	}
	if url := os.Getenv("REDIS_URL"); url != "" {
		cfg.Redis.URL = url
	}
	if accessKey := os.Getenv("AWS_SES_ACCESS_KEY"); accessKey != "" {
		cfg.SES.AccessKey = accessKey
	}
	if secretKey := os.Getenv("AWS_SES_SECRET_KEY"); secretKey != "" {
		cfg.SES.SecretKey = secretKey
	}
	if region := os.Getenv("AWS_SES_REGION"); region != "" {
		cfg.SES.Region = region
	}
	if from := os.Getenv("AWS_SES_FROM_EMAIL"); from != "" {
		cfg.SES.FromEmail = from
	}
	if clientID := os.Getenv("GOOGLE_CLIENT_ID"); clientID != "" {
		cfg.Auth.GoogleClientID = clientID
	}
	if clientSecret := os.Getenv("GOOGLE_CLIENT_SECRET"); clientSecret != "" {
		cfg.Auth.GoogleClientSecret = clientSecret
	}
	if redirect := os.Getenv("GOOGLE_REDIRECT_URL"); redirect != "" {
		cfg.Auth.RedirectURL = redirect
	}
	if secret := os.Getenv("SESSION_SECRET"); secret != "" {
		cfg.Auth.SessionSecret = secret
	}
	if baseURL := os.Getenv("WORKFLOW_BASE_URL"); baseURL != "" {
		cfg.Workflow.BaseURL = baseURL
	}
	if hr := os.Getenv("HR_NOTIFY_EMAIL"); hr != "" {
		cfg.Workflow.HRNotifyEmail = hr
	}
	if key := os.Getenv("TRACKING_SIGNING_KEY"); key != "" {
		cfg.Tracking.SigningKey = key
	}
	if queue := os.Getenv("SQS_TRACKING_QUEUE_URL"); queue != "" {
		cfg.Tracking.QueueURL = queue
	}
	if bucket := os.Getenv("RECEIPTS_S3_BUCKET"); bucket != "" {
		cfg.Storage.ReceiptBucket = bucket
		cfg.Storage.Type = "s3"
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}

	return cfg, nil
}
