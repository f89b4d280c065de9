package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/redis/go-redis/v9"

	"github.com/ignite/onboarding/internal/api"
	"github.com/ignite/onboarding/internal/auth"
	"github.com/ignite/onboarding/internal/config"
	"github.com/ignite/onboarding/internal/pkg/distlock"
	"github.com/ignite/onboarding/internal/pkg/logger"
	"github.com/ignite/onboarding/internal/repository/memory"
	"github.com/ignite/onboarding/internal/repository/postgres"
	"github.com/ignite/onboarding/internal/service/hiring"
	"github.com/ignite/onboarding/internal/service/notify"
	"github.com/ignite/onboarding/internal/storage"
	"github.com/ignite/onboarding/internal/tracking"
)

// checkPortAvailable verifies that the target port is not already in use.
func checkPortAvailable(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("address %s is already in use: %v", addr, err)
	}
	ln.Close()
	return nil
}

func extractHost(dsn string) string {
	at := strings.Index(dsn, "@")
	if at < 0 {
		return "(unknown)"
	}
	rest := dsn[at+1:]
	if slash := strings.Index(rest, "/"); slash >= 0 {
		rest = rest[:slash]
	}
	return rest
}

func openDB(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.URL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return db, nil
}

func openRedis(ctx context.Context, url string) *redis.Client {
	if url == "" {
		return nil
	}
	var client *redis.Client
	if opts, err := redis.ParseURL(url); err == nil {
		client = redis.NewClient(opts)
	} else {
		client = redis.NewClient(&redis.Options{Addr: url})
	}
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		log.Printf("Warning: Redis connection failed: %v", err)
		client.Close()
		return nil
	}
	return client
}

// store is everything the workflow needs from persistence.
type store interface {
	hiring.ApplicationRepository
	hiring.JobRepository
	hiring.ProvisioningStore
}

type pgStore struct {
	*postgres.ApplicationRepo
	*postgres.JobRepo
	*postgres.AccountRepo
}

func main() {
	log.Println("Starting onboarding API server...")

	cfg, err := config.LoadFromEnv(envOr("CONFIG_PATH", "config/config.yaml"))
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logger.SetLevel(logger.ParseLevel(cfg.Logging.Level))
	logger.SetRedactPII(cfg.Logging.RedactPII)

	addr := cfg.Server.Addr()
	if err := checkPortAvailable(addr); err != nil {
		log.Fatalf("Pre-flight check FAILED: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Persistence
	var (
		db    *sql.DB
		repos store
	)
	if cfg.Database.URL != "" {
		log.Printf("DB host: ...@%s/...", extractHost(cfg.Database.URL))
		db, err = openDB(ctx, cfg.Database)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer db.Close()
		repos = pgStore{
			ApplicationRepo: postgres.NewApplicationRepo(db),
			JobRepo:         postgres.NewJobRepo(db),
			AccountRepo:     postgres.NewAccountRepo(db),
		}
		log.Println("PostgreSQL store connected")
	} else {
		repos = memory.New()
		log.Println("DATABASE_URL not set; using the in-memory store")
	}

	redisClient := openRedis(ctx, cfg.Redis.URL)
	if redisClient != nil {
		defer redisClient.Close()
		log.Println("Redis connected (distributed locking and sessions)")
	}

	var locker hiring.Locker
	if redisClient != nil || db != nil {
		locker = distlock.NewLocker(redisClient, db)
	} else {
		locker = distlock.NewLocalLocker()
	}

	// Email
	var sender notify.Sender
	if cfg.SES.Enabled() {
		ses, err := notify.NewSESSender(ctx, cfg.SES.AccessKey, cfg.SES.SecretKey, cfg.SES.Region, cfg.SES.ConfigurationSet)
		if err != nil {
			log.Fatalf("Failed to initialize SES: %v", err)
		}
		sender = ses
		log.Printf("SES sender enabled (region %s)", cfg.SES.Region)
	} else {
		sender = notify.NewLogSender(200)
		log.Println("SES not configured; emails are logged only")
	}

	signer := tracking.NewSigner(cfg.Tracking.SigningKey)
	pixelBase := cfg.Tracking.BaseURL
	if pixelBase == "" {
		pixelBase = cfg.Workflow.BaseURL
	}
	var pixel notify.PixelFunc
	if cfg.Tracking.Enabled {
		pixel = signer.PixelURL(pixelBase)
	}
	mailer := notify.NewMailer(notify.NewRenderer(), sender, notify.From{
		Name:    cfg.SES.FromName,
		Email:   cfg.SES.FromEmail,
		ReplyTo: cfg.SES.ReplyTo,
	}, pixel)

	// Workflow
	settings := hiring.Settings{
		BaseURL:             cfg.Workflow.BaseURL,
		LoginURL:            cfg.Workflow.LoginURL,
		HRNotifyEmail:       cfg.Workflow.HRNotifyEmail,
		PaymentAmount:       cfg.Workflow.PaymentAmount,
		PaymentCurrency:     cfg.Workflow.PaymentCurrency,
		PaymentInstructions: cfg.Workflow.PaymentInstructions,
	}
	tokens := hiring.RandomTokens{Bytes: cfg.Workflow.TokenBytes}
	controller := hiring.NewController(repos, repos, mailer, tokens, settings)
	provisioner := hiring.NewProvisioner(repos, repos, repos, locker, mailer, settings)

	receipts, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		log.Fatalf("Failed to initialize receipt storage: %v", err)
	}
	controller.SetReceiptStore(receipts)

	handlers := api.NewHandlers(controller, provisioner)
	handlers.SetReceiptReader(receipts)

	health := api.NewHealthChecker(db, redisClient)
	if cfg.Storage.Type == "s3" {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Storage.AWSRegion))
		if err != nil {
			log.Printf("Warning: AWS config for receipt health check failed: %v", err)
		} else {
			health.SetBucket(s3.NewFromConfig(awsCfg), cfg.Storage.ReceiptBucket)
		}
	}

	// Open tracking: queue to SQS for cmd/worker when configured, else apply inline.
	var recorder tracking.Recorder = tracking.NewDirectRecorder(controller)
	if cfg.Tracking.QueueURL != "" {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Tracking.Region))
		if err != nil {
			log.Fatalf("Failed to load AWS config for SQS: %v", err)
		}
		recorder = tracking.NewPublisher(sqs.NewFromConfig(awsCfg), cfg.Tracking.QueueURL)
		log.Printf("Open events published to SQS (queue=%s)", cfg.Tracking.QueueURL)
	}
	var trackingHandler *tracking.Handler
	if cfg.Tracking.Enabled {
		if !signer.Enabled() {
			log.Fatal("tracking.enabled requires tracking.signing_key")
		}
		trackingHandler = tracking.NewHandler(signer, recorder)
	}

	// HR authentication
	var authManager *auth.AuthManager
	if cfg.Auth.Enabled || cfg.Auth.DevMode {
		var sessions auth.SessionStore = auth.NewMemorySessionStore()
		if redisClient != nil {
			sessions = auth.NewRedisSessionStore(redisClient)
		}
		authManager = auth.NewAuthManager(&cfg.Auth, cfg.Workflow.BaseURL, sessions)
		authManager.CleanupExpiredSessions(ctx)
		if cfg.Auth.DevMode {
			log.Println("WARNING: auth dev mode is on; X-Dev-Actor headers are trusted")
		}
		log.Printf("Google OAuth enabled for domain: %s", cfg.Auth.AllowedDomain)
	} else {
		log.Println("Authentication disabled; HR routes will reject every request")
	}

	router := api.SetupRoutes(handlers, authManager, api.RouteOptions{
		Health:         health,
		Tracking:       trackingHandler,
		AllowedOrigins: cfg.Server.AllowedOrigins,
	})

	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout(),
		WriteTimeout: cfg.Server.WriteTimeout(),
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("Starting server on %s", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-done
	log.Println("Shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
	log.Println("Server stopped")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
