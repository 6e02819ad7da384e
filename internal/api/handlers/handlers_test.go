package handlers

import (
	"context"
	"log/slog"

	"paybridge/internal/db"
	"paybridge/internal/types"
)

// mockPay is a hand-rolled pay.Pay with per-method function hooks. Methods
// without a hook return zero values.
type mockPay struct {
	provider          types.Provider
	getContextFn      func(ctx context.Context) (types.ProviderContext, error)
	createCustomerFn  func(ctx context.Context, user types.User) (types.User, error)
	destroyCustomerFn func(ctx context.Context, customerID string) error
	createIntentFn    func(ctx context.Context, user types.User, item string, amount int64, currency string) (types.PaymentIntent, error)
	verifyEventFn     func(ctx context.Context, delivery types.WebhookDelivery) (types.PaymentEvent, error)
}

func (m *mockPay) Provider() types.Provider { return m.provider }

func (m *mockPay) GetContext(ctx context.Context) (types.ProviderContext, error) {
	if m.getContextFn == nil {
		return types.ProviderContext{}, nil
	}
	return m.getContextFn(ctx)
}

func (m *mockPay) CreateCustomer(ctx context.Context, user types.User) (types.User, error) {
	if m.createCustomerFn == nil {
		return user, nil
	}
	return m.createCustomerFn(ctx, user)
}

func (m *mockPay) DestroyCustomer(ctx context.Context, customerID string) error {
	if m.destroyCustomerFn == nil {
		return nil
	}
	return m.destroyCustomerFn(ctx, customerID)
}

func (m *mockPay) CreateIntent(ctx context.Context, user types.User, item string, amount int64, currency string) (types.PaymentIntent, error) {
	if m.createIntentFn == nil {
		return types.PaymentIntent{}, nil
	}
	return m.createIntentFn(ctx, user, item, amount, currency)
}

func (m *mockPay) VerifyEvent(ctx context.Context, delivery types.WebhookDelivery) (types.PaymentEvent, error) {
	if m.verifyEventFn == nil {
		return types.PaymentEvent{}, nil
	}
	return m.verifyEventFn(ctx, delivery)
}

// mockIntentStore records calls and serves canned results.
type mockIntentStore struct {
	created      []db.IntentRecord
	createErr    error
	getRecord    *db.IntentRecord
	getErr       error
	recordEvents []recordedEvent
	recordErr    error
}

type recordedEvent struct {
	provider   types.Provider
	event      types.PaymentEvent
	deliveryID string
}

func (m *mockIntentStore) Create(_ context.Context, provider types.Provider, intent types.PaymentIntent, itemName string) error {
	m.created = append(m.created, db.IntentRecord{
		PaymentID:  intent.PaymentID,
		CustomerID: intent.CustomerID,
		Provider:   provider,
		Amount:     intent.Amount,
		Currency:   intent.Currency,
		ItemName:   itemName,
		Data:       intent.Data,
	})
	return m.createErr
}

func (m *mockIntentStore) GetByPaymentID(_ context.Context, _ string) (*db.IntentRecord, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	return m.getRecord, nil
}

func (m *mockIntentStore) RecordEvent(_ context.Context, provider types.Provider, event types.PaymentEvent, deliveryID string) error {
	m.recordEvents = append(m.recordEvents, recordedEvent{provider: provider, event: event, deliveryID: deliveryID})
	return m.recordErr
}

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
