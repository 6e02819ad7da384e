// Package queue provides the SQS-based producer that fans verified payment
// events out to downstream workers.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqsTypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/google/uuid"

	"paybridge/internal/config"
	"paybridge/internal/types"
)

// SQSSender abstracts the SQS SendMessage operation for testability.
// Production code uses the *sqs.Client from aws-sdk-go-v2.
type SQSSender interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// EventPublisher serializes verified payment events and dispatches them to
// the payment-events queue. Publication happens only after verification:
// nothing unauthenticated ever reaches the queue.
type EventPublisher struct {
	client   SQSSender
	queueURL string
	logger   *slog.Logger
}

// NewEventPublisher creates an EventPublisher with the given SQS client and
// configuration.
func NewEventPublisher(client SQSSender, awsCfg config.AWSConfig, logger *slog.Logger) *EventPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventPublisher{
		client:   client,
		queueURL: awsCfg.EventQueueURL,
		logger:   logger,
	}
}

// Publish enqueues a verified payment event. deliveryID identifies the
// inbound webhook delivery the event was authenticated from; it doubles as
// the key for retrieving the archived raw payload.
func (p *EventPublisher) Publish(ctx context.Context, provider types.Provider, event types.PaymentEvent, deliveryID string) error {
	msg := types.PaymentEventMessage{
		DeliveryID: deliveryID,
		TraceID:    uuid.New().String(),
		Provider:   provider,
		Event:      event,
		ReceivedAt: time.Now().UTC(),
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("queue: failed to marshal payment event message: %w", err)
	}

	input := &sqs.SendMessageInput{
		QueueUrl:    aws.String(p.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]sqsTypes.MessageAttributeValue{
			"provider": {
				DataType:    aws.String("String"),
				StringValue: aws.String(string(provider)),
			},
			"event_type": {
				DataType:    aws.String("String"),
				StringValue: aws.String(event.Type),
			},
		},
	}

	if _, err := p.client.SendMessage(ctx, input); err != nil {
		return types.NewAppError(
			types.ErrCodeUpstreamQueue,
			fmt.Sprintf("failed to publish payment event to %s", p.queueURL),
			err,
		)
	}

	p.logger.InfoContext(ctx, "payment event published",
		"queue_url", p.queueURL,
		"delivery_id", deliveryID,
		"trace_id", msg.TraceID,
		"provider", string(provider),
		"payment_id", event.PaymentID,
		"event_type", event.Type,
	)

	return nil
}
