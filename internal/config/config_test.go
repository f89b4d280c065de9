package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad(t *testing.T) {
	configPath := writeConfig(t, `
server:
  port: 9090
  host: "0.0.0.0"
  allowed_origins: ["https://careers.example.com"]

database:
  url: "postgres://app:secret@db:5432/onboarding?sslmode=disable"
  max_open_conns: 40

ses:
  region: "eu-west-1"
  from_email: "hr@example.com"
  from_name: "Example HR"
  configuration_set: "onboarding"

workflow:
  base_url: "https://careers.example.com"
  hr_notify_email: "payments@example.com"
  payment_amount: 99.5
  payment_currency: "USD"

storage:
  type: "s3"
  receipt_bucket: "receipts-bucket"

logging:
  level: "debug"
  redact_pii: true
`)

	cfg, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, []string{"https://careers.example.com"}, cfg.Server.AllowedOrigins)

	assert.Equal(t, "postgres://app:secret@db:5432/onboarding?sslmode=disable", cfg.Database.URL)
	assert.Equal(t, 40, cfg.Database.MaxOpenConns)

	assert.Equal(t, "eu-west-1", cfg.SES.Region)
	assert.Equal(t, "Example HR", cfg.SES.FromName)
	assert.Equal(t, "onboarding", cfg.SES.ConfigurationSet)
	assert.False(t, cfg.SES.Enabled(), "no credentials configured")

	assert.Equal(t, "https://careers.example.com", cfg.Workflow.BaseURL)
	assert.Equal(t, "https://careers.example.com/login", cfg.Workflow.LoginURL)
	assert.Equal(t, "payments@example.com", cfg.Workflow.HRNotifyEmail)
	assert.Equal(t, 99.5, cfg.Workflow.PaymentAmount)
	assert.Equal(t, "USD", cfg.Workflow.PaymentCurrency)

	assert.Equal(t, "s3", cfg.Storage.Type)
	assert.Equal(t, "receipts-bucket", cfg.Storage.ReceiptBucket)
	assert.Equal(t, "eu-west-1", cfg.Storage.AWSRegion)

	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Logging.RedactPII)
}

func TestLoadDefaults(t *testing.T) {
	configPath := writeConfig(t, `
auth:
  allowed_domain: "example.com"
`)

	cfg, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "localhost", cfg.Server.Host)
	assert.Equal(t, "us-west-2", cfg.SES.Region)
	assert.Equal(t, "onboarding_session", cfg.Auth.CookieName)
	assert.Equal(t, 86400, cfg.Auth.CookieMaxAge)
	assert.Equal(t, "http://localhost:3000", cfg.Workflow.BaseURL)
	assert.Equal(t, 150.0, cfg.Workflow.PaymentAmount)
	assert.Equal(t, "EUR", cfg.Workflow.PaymentCurrency)
	assert.Equal(t, 32, cfg.Workflow.TokenBytes)
	assert.Equal(t, "local", cfg.Storage.Type)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "us-west-2", cfg.Tracking.Region)
}

func TestLoadFromEnv(t *testing.T) {
	configPath := writeConfig(t, `
database:
  url: "postgres://file/db"
workflow:
  base_url: "https://file.example.com"
`)

	t.Setenv("DATABASE_URL", "postgres://env/db")
	t.Setenv("WORKFLOW_BASE_URL", "https://env.example.com")
	t.Setenv("AWS_SES_ACCESS_KEY", "AKIAENV")
	t.Setenv("AWS_SES_SECRET_KEY", "secret")
	t.Setenv("AWS_SES_FROM_EMAIL", "hr@env.example.com")
	t.Setenv("TRACKING_SIGNING_KEY", "signing-key")
	t.Setenv("SQS_TRACKING_QUEUE_URL", "https://sqs.us-west-2.amazonaws.com/123/opens")
	t.Setenv("RECEIPTS_S3_BUCKET", "env-receipts")

	cfg, err := LoadFromEnv(configPath)
	require.NoError(t, err)

	assert.Equal(t, "postgres://env/db", cfg.Database.URL)
	assert.Equal(t, "https://env.example.com", cfg.Workflow.BaseURL)
	assert.True(t, cfg.SES.Enabled())
	assert.Equal(t, "signing-key", cfg.Tracking.SigningKey)
	assert.Equal(t, "https://sqs.us-west-2.amazonaws.com/123/opens", cfg.Tracking.QueueURL)
	assert.Equal(t, "env-receipts", cfg.Storage.ReceiptBucket)
	assert.Equal(t, "s3", cfg.Storage.Type)
}

func TestLoadFromEnvMissingFile(t *testing.T) {
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")

	cfg, err := LoadFromEnv(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "redis://localhost:6379/0", cfg.Redis.URL)
}

func TestLoadFileNotFound(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	assert.Error(t, err)
}

func TestLoadInvalidYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "server: [unclosed"))
	assert.Error(t, err)
}

func TestServerTimeouts(t *testing.T) {
	cfg := ServerConfig{ReadTimeoutSeconds: 15, WriteTimeoutSeconds: 45}
	assert.Equal(t, 15*time.Second, cfg.ReadTimeout())
	assert.Equal(t, 45*time.Second, cfg.WriteTimeout())
}

func TestGetHost(t *testing.T) {
	t.Setenv("ECS_CONTAINER_METADATA_URI", "")
	t.Setenv("AWS_EXECUTION_ENV", "")
	t.Setenv("SERVER_HOST", "")

	cfg := ServerConfig{Host: "localhost", Port: 8080}
	assert.Equal(t, "localhost:8080", cfg.Addr())

	t.Setenv("SERVER_HOST", "127.0.0.1")
	assert.Equal(t, "127.0.0.1", cfg.GetHost())

	t.Setenv("ECS_CONTAINER_METADATA_URI", "http://169.254.170.2/v4")
	assert.Equal(t, "0.0.0.0", cfg.GetHost())
}
