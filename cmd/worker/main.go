package main

import (
	"context"
	"database/sql"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	_ "github.com/lib/pq"

	"github.com/ignite/onboarding/internal/config"
	"github.com/ignite/onboarding/internal/pkg/logger"
	"github.com/ignite/onboarding/internal/repository/postgres"
	"github.com/ignite/onboarding/internal/service/hiring"
	"github.com/ignite/onboarding/internal/tracking"
)

func main() {
	log.Println("Starting onboarding tracking worker...")

	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "config/config.yaml"
	}
	cfg, err := config.LoadFromEnv(path)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logger.SetLevel(logger.ParseLevel(cfg.Logging.Level))
	logger.SetRedactPII(cfg.Logging.RedactPII)

	if cfg.Database.URL == "" {
		log.Fatal("DATABASE_URL is required")
	}
	if cfg.Tracking.QueueURL == "" {
		log.Fatal("SQS_TRACKING_QUEUE_URL is required")
	}

	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := db.PingContext(pingCtx); err != nil {
		pingCancel()
		log.Fatalf("Failed to ping database: %v", err)
	}
	pingCancel()
	log.Println("Connected to database")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Tracking.Region))
	if err != nil {
		log.Fatalf("Failed to load AWS config: %v", err)
	}

	repo := postgres.NewApplicationRepo(db)
	// Opens only touch the ledger; no mail goes out from here.
	controller := hiring.NewController(repo, postgres.NewJobRepo(db), nil, nil, hiring.Settings{})
	consumer := tracking.NewConsumer(sqs.NewFromConfig(awsCfg), cfg.Tracking.QueueURL, controller)
	go consumer.Run(ctx)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down worker...")
	cancel()
	consumer.Stop()
	log.Println("Worker stopped")
}
