package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"paybridge/internal/core"
	"paybridge/internal/db"
	"paybridge/internal/pay"
	"paybridge/internal/types"
)

// IntentStore persists payment intents created through the API. Implemented
// by db.IntentRepository.
type IntentStore interface {
	Create(ctx context.Context, provider types.Provider, intent types.PaymentIntent, itemName string) error
	GetByPaymentID(ctx context.Context, paymentID string) (*db.IntentRecord, error)
}

// PaymentsHandler exposes the provider-agnostic payment operations: customer
// lifecycle, intent creation, and provider context retrieval. Provider
// routing happens per request via the path's {provider} segment.
type PaymentsHandler struct {
	registry  *pay.Registry
	intents   IntentStore
	validator *core.Validator
	logger    *slog.Logger
}

// NewPaymentsHandler creates a PaymentsHandler.
func NewPaymentsHandler(registry *pay.Registry, intents IntentStore, validator *core.Validator, logger *slog.Logger) *PaymentsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &PaymentsHandler{
		registry:  registry,
		intents:   intents,
		validator: validator,
		logger:    logger,
	}
}

// RegisterRoutes mounts the payment endpoints under the versioned router.
func (h *PaymentsHandler) RegisterRoutes(r chi.Router) {
	r.Post("/{provider}/customers", h.CreateCustomer)
	r.Delete("/{provider}/customers/{customerID}", h.DestroyCustomer)
	r.Post("/{provider}/intents", h.CreateIntent)
	r.Get("/{provider}/context", h.GetContext)
	r.Get("/intents/{paymentID}", h.GetIntent)
}

// facade resolves the Pay implementation for the request's provider segment.
func (h *PaymentsHandler) facade(r *http.Request) (pay.Pay, error) {
	return h.registry.Get(types.Provider(chi.URLParam(r, "provider")))
}

// ---
// Customers

type createCustomerRequest struct {
	FirstName string `json:"first_name" validate:"required"`
	LastName  string `json:"last_name"`
	Email     string `json:"email" validate:"required,email"`
	Phone     string `json:"phone"`
}

// CreateCustomer registers a customer with the provider and returns the
// provider-assigned customer id.
func (h *PaymentsHandler) CreateCustomer(w http.ResponseWriter, r *http.Request) {
	facade, err := h.facade(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	var req createCustomerRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	user, err := facade.CreateCustomer(r.Context(), types.User{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Phone:     req.Phone,
	})
	if err != nil {
		core.Error(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "customer created",
		"provider", string(facade.Provider()), "customer_id", user.CustomerID)

	core.JSON(w, r, http.StatusCreated, core.APIResponse{Data: user})
}

// DestroyCustomer removes the provider-side customer record.
func (h *PaymentsHandler) DestroyCustomer(w http.ResponseWriter, r *http.Request) {
	facade, err := h.facade(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	customerID := chi.URLParam(r, "customerID")
	if customerID == "" {
		core.Error(w, r, types.NewAppError(
			types.ErrCodeValidationMissingField,
			"missing required field: customer_id",
			nil,
		))
		return
	}

	if err := facade.DestroyCustomer(r.Context(), customerID); err != nil {
		core.Error(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "customer destroyed",
		"provider", string(facade.Provider()), "customer_id", customerID)

	w.WriteHeader(http.StatusNoContent)
}

// ---
// Intents

type createIntentRequest struct {
	// CustomerID is required by providers that bill against a provider-side
	// customer record; redirect-based providers ignore it.
	CustomerID string `json:"customer_id"`
	FirstName  string `json:"first_name" validate:"required"`
	LastName   string `json:"last_name"`
	Email      string `json:"email" validate:"required,email"`
	Phone      string `json:"phone"`
	Item       string `json:"item" validate:"required"`
	// Amount is in integer minor currency units.
	Amount   int64  `json:"amount" validate:"required,gt=0"`
	Currency string `json:"currency" validate:"required,len=3"`
}

// CreateIntent starts a checkout attempt and persists the resulting intent
// for later webhook correlation.
func (h *PaymentsHandler) CreateIntent(w http.ResponseWriter, r *http.Request) {
	facade, err := h.facade(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	var req createIntentRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	user := types.User{
		CustomerID: req.CustomerID,
		FirstName:  req.FirstName,
		LastName:   req.LastName,
		Email:      req.Email,
		Phone:      req.Phone,
	}

	intent, err := facade.CreateIntent(r.Context(), user, req.Item, req.Amount, req.Currency)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	if err := h.intents.Create(r.Context(), facade.Provider(), intent, req.Item); err != nil {
		core.Error(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "payment intent created",
		"provider", string(facade.Provider()),
		"payment_id", intent.PaymentID,
		"amount", intent.Amount,
		"currency", intent.Currency,
	)

	core.JSON(w, r, http.StatusCreated, core.APIResponse{Data: intent})
}

// intentResponse is a stored intent as returned to clients, bookkeeping
// columns included.
type intentResponse struct {
	PaymentID  string               `json:"payment_id"`
	CustomerID string               `json:"customer_id"`
	Provider   types.Provider       `json:"provider"`
	Amount     int64                `json:"amount"`
	Currency   string               `json:"currency"`
	ItemName   string               `json:"item_name"`
	Data       string               `json:"data"`
	Status     *types.PaymentStatus `json:"status,omitempty"`
	CreatedAt  time.Time            `json:"created_at"`
	UpdatedAt  time.Time            `json:"updated_at"`
}

// GetIntent retrieves a stored intent by payment id.
func (h *PaymentsHandler) GetIntent(w http.ResponseWriter, r *http.Request) {
	rec, err := h.intents.GetByPaymentID(r.Context(), chi.URLParam(r, "paymentID"))
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: intentResponse{
		PaymentID:  rec.PaymentID,
		CustomerID: rec.CustomerID,
		Provider:   rec.Provider,
		Amount:     rec.Amount,
		Currency:   rec.Currency,
		ItemName:   rec.ItemName,
		Data:       rec.Data,
		Status:     rec.Status,
		CreatedAt:  rec.CreatedAt,
		UpdatedAt:  rec.UpdatedAt,
	}})
}

// ---
// Context

// GetContext returns the static provider values a client needs to initialize
// checkout.
func (h *PaymentsHandler) GetContext(w http.ResponseWriter, r *http.Request) {
	facade, err := h.facade(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	pctx, err := facade.GetContext(r.Context())
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: pctx})
}
