// Package handlers contains the HTTP handler implementations for the
// PayBridge API.
package handlers

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"paybridge/internal/core"
	"paybridge/internal/pay"
	"paybridge/internal/types"
)

// maxWebhookBodySize is the maximum allowed size of a webhook payload
// (64 KB). Provider notifications are small; the limit protects against
// abuse.
const maxWebhookBodySize = 64 * 1024

// EventRecorder persists verified payment events against their intents.
// Implemented by db.IntentRepository.
type EventRecorder interface {
	RecordEvent(ctx context.Context, provider types.Provider, event types.PaymentEvent, deliveryID string) error
}

// DeliveryArchiver stores raw webhook deliveries for later replay.
// Implemented by audit.Archive.
type DeliveryArchiver interface {
	Save(ctx context.Context, deliveryID string, provider types.Provider, delivery types.WebhookDelivery) error
}

// EventSink fans verified events out to downstream workers. Implemented by
// queue.EventPublisher.
type EventSink interface {
	Publish(ctx context.Context, provider types.Provider, event types.PaymentEvent, deliveryID string) error
}

// WebhookHandler receives provider notifications, verifies them through the
// matching provider facade, and records and publishes the resulting events.
//
// The endpoint is unauthenticated by design: providers call it directly, and
// authentication is the provider's own signature scheme, enforced inside
// VerifyEvent. A non-2xx response is what makes providers re-deliver, so
// every failure path maps to the status the redelivery semantics need.
type WebhookHandler struct {
	registry *pay.Registry
	recorder EventRecorder
	archive  DeliveryArchiver
	sink     EventSink
	logger   *slog.Logger
}

// NewWebhookHandler creates a WebhookHandler. archive and sink may be nil in
// reduced deployments; recording is mandatory.
func NewWebhookHandler(registry *pay.Registry, recorder EventRecorder, archive DeliveryArchiver, sink EventSink, logger *slog.Logger) *WebhookHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &WebhookHandler{
		registry: registry,
		recorder: recorder,
		archive:  archive,
		sink:     sink,
		logger:   logger,
	}
}

// RegisterRoutes mounts the webhook endpoints. Webhook routes live at the
// router root, outside /v1: the paths are registered with the providers and
// must stay stable across API versions.
func (h *WebhookHandler) RegisterRoutes(r chi.Router) {
	r.Post("/webhooks/{provider}", h.Handle)
}

// webhookAck is the success response body. Providers only need the 2xx, but
// the ids make manual delivery tracing possible.
type webhookAck struct {
	DeliveryID string `json:"delivery_id"`
	PaymentID  string `json:"payment_id"`
}

// Handle processes one inbound provider notification.
func (h *WebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	provider := types.Provider(chi.URLParam(r, "provider"))
	facade, err := h.registry.Get(provider)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	// The raw bytes must be captured before any parsing: both providers'
	// signature schemes bind to the exact wire payload.
	r.Body = http.MaxBytesReader(w, r.Body, maxWebhookBodySize)
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		h.logger.WarnContext(r.Context(), "failed to read webhook body",
			"provider", string(provider), "error", err)
		core.Error(w, r, types.NewAppError(
			types.ErrCodeMalformedPayload,
			"failed to read request body",
			err,
		))
		return
	}

	deliveryID := "dlv_" + uuid.New().String()
	ctx := types.WithDeliveryID(r.Context(), deliveryID)

	delivery := types.WebhookDelivery{
		RawBody: payload,
		Headers: r.Header,
	}
	// Best-effort parse for consumers that want the body pre-decoded.
	// Verifiers re-parse RawBody themselves.
	_ = json.Unmarshal(payload, &delivery.Body)

	// Archive before verification: rejected deliveries are exactly the ones
	// worth investigating later. Archival failure is logged, not fatal; the
	// payment pipeline must not depend on the audit trail.
	if h.archive != nil {
		if err := h.archive.Save(ctx, deliveryID, provider, delivery); err != nil {
			h.logger.ErrorContext(ctx, "failed to archive webhook delivery",
				"provider", string(provider), "delivery_id", deliveryID, "error", err)
		}
	}

	event, err := facade.VerifyEvent(ctx, delivery)
	if err != nil {
		h.logger.WarnContext(ctx, "webhook verification rejected delivery",
			"provider", string(provider), "delivery_id", deliveryID, "error", err)
		core.Error(w, r, err)
		return
	}

	// Recording failure must surface as 5xx so the provider re-delivers.
	if err := h.recorder.RecordEvent(ctx, provider, event, deliveryID); err != nil {
		h.logger.ErrorContext(ctx, "failed to record payment event",
			"provider", string(provider), "payment_id", event.PaymentID, "error", err)
		core.Error(w, r, err)
		return
	}

	if h.sink != nil {
		if err := h.sink.Publish(ctx, provider, event, deliveryID); err != nil {
			h.logger.ErrorContext(ctx, "failed to publish payment event",
				"provider", string(provider), "payment_id", event.PaymentID, "error", err)
			core.Error(w, r, err)
			return
		}
	}

	h.logger.InfoContext(ctx, "webhook delivery processed",
		"provider", string(provider),
		"delivery_id", deliveryID,
		"payment_id", event.PaymentID,
		"event_type", event.Type,
		"complete", event.IsComplete(),
	)

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: webhookAck{
		DeliveryID: deliveryID,
		PaymentID:  event.PaymentID,
	}})
}
