package types

import "time"

// PaymentEventMessage is the envelope published to the event queue after a
// webhook delivery has been authenticated and normalized. Downstream workers
// consume it to record the event against the originating intent.
//
// The raw payload itself is not carried on the queue; it is archived
// separately keyed by DeliveryID so the exact bytes can be re-verified.
type PaymentEventMessage struct {
	DeliveryID string       `json:"delivery_id"`
	TraceID    string       `json:"trace_id"`
	Provider   Provider     `json:"provider"`
	Event      PaymentEvent `json:"event"`
	ReceivedAt time.Time    `json:"received_at"`
}
