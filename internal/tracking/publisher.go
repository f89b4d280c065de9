package tracking

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/ignite/onboarding/internal/domain"
)

// OpenEvent is one pixel load.
type OpenEvent struct {
	ApplicationID string           `json:"application_id"`
	Kind          domain.EmailKind `json:"kind"`
	IPAddress     string           `json:"ip_address"`
	UserAgent     string           `json:"user_agent"`
	Timestamp     time.Time        `json:"timestamp"`
}

// Recorder accepts open events from the pixel handler.
type Recorder interface {
	RecordOpen(ctx context.Context, evt OpenEvent) error
}

// OpenMarker applies an open to the email ledger. hiring.Controller
// implements it.
type OpenMarker interface {
	MarkEmailOpened(ctx context.Context, id string, kind domain.EmailKind, at time.Time) error
}

// DirectRecorder applies opens synchronously, for deployments without a queue.
type DirectRecorder struct {
	marker OpenMarker
}

func NewDirectRecorder(marker OpenMarker) *DirectRecorder {
	return &DirectRecorder{marker: marker}
}

func (d *DirectRecorder) RecordOpen(ctx context.Context, evt OpenEvent) error {
	return d.marker.MarkEmailOpened(ctx, evt.ApplicationID, evt.Kind, evt.Timestamp)
}

type sqsAPI interface {
	SendMessage(ctx context.Context, in *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
	ReceiveMessage(ctx context.Context, in *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, in *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

// Publisher queues open events on SQS for the worker.
type Publisher struct {
	client   sqsAPI
	queueURL string
}

func NewPublisher(client *sqs.Client, queueURL string) *Publisher {
	return &Publisher{client: client, queueURL: queueURL}
}

func (p *Publisher) RecordOpen(ctx context.Context, evt OpenEvent) error {
	body, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal open event: %w", err)
	}

	// the pixel request may be gone before SQS answers
	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	_, err = p.client.SendMessage(sctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(p.queueURL),
		MessageBody: aws.String(string(body)),
	})
	if err != nil {
		log.Printf("ERROR publishing open event to SQS: %v", err)
		return fmt.Errorf("publish open event: %w", err)
	}
	return nil
}

var (
	_ Recorder = (*DirectRecorder)(nil)
	_ Recorder = (*Publisher)(nil)
)
