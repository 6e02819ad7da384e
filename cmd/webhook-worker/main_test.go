package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"paybridge/internal/types"
)

type mockRecorder struct {
	recorded []string
	failOn   string
}

func (m *mockRecorder) RecordEvent(_ context.Context, _ types.Provider, event types.PaymentEvent, _ string) error {
	if event.PaymentID == m.failOn {
		return errors.New("database unavailable")
	}
	m.recorded = append(m.recorded, event.PaymentID)
	return nil
}

func sqsRecord(t *testing.T, messageID, paymentID string) events.SQSMessage {
	t.Helper()
	body, err := json.Marshal(types.PaymentEventMessage{
		DeliveryID: "dlv_" + messageID,
		TraceID:    "trace-" + messageID,
		Provider:   types.ProviderPayfast,
		Event: types.PaymentEvent{
			PaymentID: paymentID,
			Status:    types.StatusPtr(types.StatusComplete),
			Type:      "COMPLETE",
			Data:      `{}`,
		},
		ReceivedAt: time.Now().UTC(),
	})
	require.NoError(t, err)
	return events.SQSMessage{MessageId: messageID, Body: string(body)}
}

func TestHandle_RecordsEachMessage(t *testing.T) {
	recorder := &mockRecorder{}
	h := &Handler{recorder: recorder, logger: slog.New(slog.DiscardHandler)}

	resp, err := h.Handle(context.Background(), events.SQSEvent{Records: []events.SQSMessage{
		sqsRecord(t, "m1", "pf_one"),
		sqsRecord(t, "m2", "pf_two"),
	}})

	require.NoError(t, err)
	assert.Empty(t, resp.BatchItemFailures)
	assert.Equal(t, []string{"pf_one", "pf_two"}, recorder.recorded)
}

func TestHandle_ReportsPartialBatchFailure(t *testing.T) {
	recorder := &mockRecorder{failOn: "pf_bad"}
	h := &Handler{recorder: recorder, logger: slog.New(slog.DiscardHandler)}

	resp, err := h.Handle(context.Background(), events.SQSEvent{Records: []events.SQSMessage{
		sqsRecord(t, "m1", "pf_good"),
		sqsRecord(t, "m2", "pf_bad"),
	}})

	require.NoError(t, err)
	require.Len(t, resp.BatchItemFailures, 1)
	assert.Equal(t, "m2", resp.BatchItemFailures[0].ItemIdentifier)
	assert.Equal(t, []string{"pf_good"}, recorder.recorded)
}

func TestHandle_AcksUnparseableMessages(t *testing.T) {
	recorder := &mockRecorder{}
	h := &Handler{recorder: recorder, logger: slog.New(slog.DiscardHandler)}

	resp, err := h.Handle(context.Background(), events.SQSEvent{Records: []events.SQSMessage{
		{MessageId: "m1", Body: "not json"},
	}})

	require.NoError(t, err)
	assert.Empty(t, resp.BatchItemFailures, "poison messages must not be retried")
	assert.Empty(t, recorder.recorded)
}
