// Package main is the entrypoint for the webhook worker Lambda function.
//
// The worker consumes PaymentEventMessage batches from the payment-events SQS
// queue and records each verified event against its originating intent. The
// API server publishes to the queue only after webhook verification, so every
// message here is already authenticated.
//
// Lambda SQS integration uses partial batch responses: messages that fail
// processing are returned in batchItemFailures so SQS retries only those.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"paybridge/internal/config"
	"paybridge/internal/db"
	"paybridge/internal/types"
)

// EventRecorder persists verified payment events. Implemented by
// db.IntentRepository.
type EventRecorder interface {
	RecordEvent(ctx context.Context, provider types.Provider, event types.PaymentEvent, deliveryID string) error
}

// Handler holds the dependencies for the webhook worker Lambda handler.
type Handler struct {
	recorder EventRecorder
	logger   *slog.Logger
}

// Handle processes an SQS event containing one or more payment event
// messages. Each message is processed independently.
func (h *Handler) Handle(ctx context.Context, sqsEvent events.SQSEvent) (events.SQSEventResponse, error) {
	response := events.SQSEventResponse{}

	for _, record := range sqsEvent.Records {
		if err := h.processMessage(ctx, record); err != nil {
			h.logger.ErrorContext(ctx, "failed to process SQS message",
				"message_id", record.MessageId,
				"error", err,
			)
			response.BatchItemFailures = append(response.BatchItemFailures,
				events.SQSBatchItemFailure{ItemIdentifier: record.MessageId},
			)
		}
	}

	return response, nil
}

// processMessage records a single payment event message.
func (h *Handler) processMessage(ctx context.Context, record events.SQSMessage) error {
	var msg types.PaymentEventMessage
	if err := json.Unmarshal([]byte(record.Body), &msg); err != nil {
		h.logger.ErrorContext(ctx, "failed to unmarshal payment event message",
			"message_id", record.MessageId,
			"error", err,
		)
		// Permanent parse failure; retrying cannot help, so ACK it.
		return nil
	}

	ctx = types.WithDeliveryID(ctx, msg.DeliveryID)

	if err := h.recorder.RecordEvent(ctx, msg.Provider, msg.Event, msg.DeliveryID); err != nil {
		return fmt.Errorf("recording event for payment %s: %w", msg.Event.PaymentID, err)
	}

	h.logger.InfoContext(ctx, "payment event recorded",
		"delivery_id", msg.DeliveryID,
		"trace_id", msg.TraceID,
		"provider", string(msg.Provider),
		"payment_id", msg.Event.PaymentID,
		"event_type", msg.Event.Type,
	)
	return nil
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	pool, err := db.NewPool(context.Background(), cfg.Database)
	if err != nil {
		logger.Error("failed to connect database", "error", err)
		os.Exit(1)
	}

	handler := &Handler{
		recorder: db.NewIntentRepository(pool),
		logger:   logger,
	}

	lambda.Start(handler.Handle)
}
