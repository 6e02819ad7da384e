package queue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"paybridge/internal/config"
	"paybridge/internal/types"
)

type mockSender struct {
	input *sqs.SendMessageInput
	err   error
}

func (m *mockSender) SendMessage(_ context.Context, params *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	m.input = params
	if m.err != nil {
		return nil, m.err
	}
	return &sqs.SendMessageOutput{}, nil
}

func testEvent() types.PaymentEvent {
	return types.PaymentEvent{
		PaymentID: "pf_4Ac9XWmEjNa",
		Status:    types.StatusPtr(types.StatusComplete),
		Type:      "COMPLETE",
		Data:      `{"payment_status":"COMPLETE"}`,
	}
}

func TestPublish_Success(t *testing.T) {
	sender := &mockSender{}
	p := NewEventPublisher(sender, config.AWSConfig{
		EventQueueURL: "https://sqs.us-east-1.amazonaws.com/123/payment-events",
	}, nil)

	err := p.Publish(context.Background(), types.ProviderPayfast, testEvent(), "dlv_1")
	require.NoError(t, err)
	require.NotNil(t, sender.input)

	assert.Equal(t, "https://sqs.us-east-1.amazonaws.com/123/payment-events", *sender.input.QueueUrl)
	assert.Equal(t, "payfast", *sender.input.MessageAttributes["provider"].StringValue)
	assert.Equal(t, "COMPLETE", *sender.input.MessageAttributes["event_type"].StringValue)

	var msg types.PaymentEventMessage
	require.NoError(t, json.Unmarshal([]byte(*sender.input.MessageBody), &msg))
	assert.Equal(t, "dlv_1", msg.DeliveryID)
	assert.NotEmpty(t, msg.TraceID)
	assert.Equal(t, types.ProviderPayfast, msg.Provider)
	assert.Equal(t, "pf_4Ac9XWmEjNa", msg.Event.PaymentID)
	assert.True(t, msg.Event.IsComplete())
}

func TestPublish_SendFailure(t *testing.T) {
	sender := &mockSender{err: errors.New("throttled")}
	p := NewEventPublisher(sender, config.AWSConfig{EventQueueURL: "https://q"}, nil)

	err := p.Publish(context.Background(), types.ProviderStripe, testEvent(), "dlv_2")

	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeUpstreamQueue, appErr.Code)
}
