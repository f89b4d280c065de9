// Command tracking serves the open-tracking pixel on its own and queues
// verified opens to SQS for cmd/worker. It needs no database access.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/ignite/onboarding/internal/config"
	"github.com/ignite/onboarding/internal/tracking"
)

func main() {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "config/config.yaml"
	}
	cfg, err := config.LoadFromEnv(path)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	port := os.Getenv("TRACKING_PORT")
	if port == "" {
		port = "8081"
	}
	if cfg.Tracking.QueueURL == "" {
		log.Fatal("SQS_TRACKING_QUEUE_URL is required")
	}
	signer := tracking.NewSigner(cfg.Tracking.SigningKey)
	if !signer.Enabled() {
		log.Fatal("TRACKING_SIGNING_KEY is required")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), awsconfig.WithRegion(cfg.Tracking.Region))
	if err != nil {
		log.Fatalf("aws config: %v", err)
	}
	pub := tracking.NewPublisher(sqs.NewFromConfig(awsCfg), cfg.Tracking.QueueURL)

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	tracking.NewHandler(signer, pub).Mount(r)

	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Printf("tracking service listening on :%s", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down tracking service...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	srv.Shutdown(ctx)
}
