package tracking

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/ignite/onboarding/internal/service/hiring"
)

// Consumer drains open events from SQS into the email ledger.
type Consumer struct {
	sqsClient sqsAPI
	queueURL  string
	marker    OpenMarker
	done      chan struct{}
}

func NewConsumer(sqsClient *sqs.Client, queueURL string, marker OpenMarker) *Consumer {
	return newConsumer(sqsClient, queueURL, marker)
}

func newConsumer(client sqsAPI, queueURL string, marker OpenMarker) *Consumer {
	return &Consumer{
		sqsClient: client,
		queueURL:  queueURL,
		marker:    marker,
		done:      make(chan struct{}),
	}
}

// Run polls until ctx is done or Stop is called.
func (c *Consumer) Run(ctx context.Context) {
	log.Printf("SQS tracking consumer started (queue=%s)", c.queueURL)
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			return
		default:
		}

		if _, err := c.receiveOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Printf("SQS receive error: %v", err)
			time.Sleep(5 * time.Second)
		}
	}
}

func (c *Consumer) Stop() {
	close(c.done)
}

// receiveOnce handles one batch and returns how many events were applied.
func (c *Consumer) receiveOnce(ctx context.Context) (int, error) {
	out, err := c.sqsClient.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(c.queueURL),
		MaxNumberOfMessages: 10,
		WaitTimeSeconds:     20,
	})
	if err != nil {
		return 0, err
	}

	applied := 0
	for _, msg := range out.Messages {
		var evt OpenEvent
		if err := json.Unmarshal([]byte(aws.ToString(msg.Body)), &evt); err != nil {
			log.Printf("SQS bad message: %v", err)
			c.deleteMessage(ctx, msg.ReceiptHandle)
			continue
		}

		err := c.marker.MarkEmailOpened(ctx, evt.ApplicationID, evt.Kind, evt.Timestamp)
		switch hiring.KindOf(err) {
		case "":
			applied++
		case hiring.KindNotFound, hiring.KindValidation:
			// will never apply; drop it
			log.Printf("SQS dropping open for %s: %v", evt.ApplicationID, err)
		default:
			log.Printf("SQS process error (open %s): %v", evt.ApplicationID, err)
			continue
		}
		c.deleteMessage(ctx, msg.ReceiptHandle)
	}
	return applied, nil
}

func (c *Consumer) deleteMessage(ctx context.Context, handle *string) {
	_, err := c.sqsClient.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(c.queueURL),
		ReceiptHandle: handle,
	})
	if err != nil {
		log.Printf("SQS delete error: %v", err)
	}
}
