package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"app/internal/api/v1/dto"
	"app/internal/middleware"
	"app/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

// SubscriptionHandler exposes checkout, billing portal and subscription
// status endpoints, plus the Stripe webhook.
type SubscriptionHandler struct {
	stripeService *service.StripeService
	subService    service.SubscriptionService
	validate      *validator.Validate
	logger        zerolog.Logger
}

func NewSubscriptionHandler(stripeService *service.StripeService, subService service.SubscriptionService, v *validator.Validate, logger zerolog.Logger) *SubscriptionHandler {
	return &SubscriptionHandler{
		stripeService: stripeService,
		subService:    subService,
		validate:      v,
		logger:        logger.With().Str("handler", "SubscriptionHandler").Logger(),
	}
}

// RegisterRoutes mounts v1 subscription routes. The webhook route skips auth
// middleware: Stripe authenticates with its signature header.
func (h *SubscriptionHandler) RegisterRoutes(mux *http.ServeMux, authMw func(http.Handler) http.Handler) {
	mux.Handle("/subscriptions/checkout", authMw(http.HandlerFunc(h.createCheckout)))
	mux.Handle("/subscriptions/portal", authMw(http.HandlerFunc(h.createPortal)))
	mux.Handle("/subscriptions/status", authMw(http.HandlerFunc(h.getStatus)))
	mux.Handle("/webhooks/stripe", http.HandlerFunc(h.stripeWebhook))
}

func (h *SubscriptionHandler) stripeWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}
	h.stripeService.HandleWebhook(w, r)
}

func (h *SubscriptionHandler) createCheckout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}
	userID, ok := r.Context().Value(middleware.UserContextKey).(string)
	if !ok || userID == "" {
		writeError(w, http.StatusUnauthorized, "user ID not found in context", "")
		return
	}

	var req dto.CheckoutCreateDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON payload", err.Error())
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		writeError(w, http.StatusBadRequest, "validation failed", err.Error())
		return
	}

	sess, err := h.stripeService.CreateCheckoutSession(r.Context(), userID, req.PriceID, req.SuccessURL, req.CancelURL)
	if err != nil {
		h.writeCheckoutError(w, req.PriceID, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.CheckoutResponseDTO{URL: sess.URL, SessionID: sess.SessionID})
}

func (h *SubscriptionHandler) writeCheckoutError(w http.ResponseWriter, priceID string, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidPriceID):
		writeError(w, http.StatusBadRequest, "invalid price ID",
			"expected a price ID starting with \"price_\", got: "+priceID+". Product IDs (prod_) cannot be used directly.")
	case errors.Is(err, service.ErrUnknownPrice):
		writeError(w, http.StatusBadRequest, "price ID does not exist", priceID)
	case errors.Is(err, service.ErrAccountSuspended):
		writeJSON(w, http.StatusServiceUnavailable, errorBody{
			Error:            "payment processing is temporarily unavailable",
			AccountSuspended: true,
		})
	case errors.Is(err, service.ErrUserNotFound):
		writeError(w, http.StatusNotFound, "user not found", "")
	default:
		writeError(w, http.StatusInternalServerError, "failed to create checkout session", "")
	}
}

func (h *SubscriptionHandler) createPortal(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}
	userID, ok := r.Context().Value(middleware.UserContextKey).(string)
	if !ok || userID == "" {
		writeError(w, http.StatusUnauthorized, "user ID not found in context", "")
		return
	}

	var req dto.PortalCreateDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON payload", err.Error())
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		writeError(w, http.StatusBadRequest, "validation failed", err.Error())
		return
	}

	url, err := h.stripeService.CreatePortalSession(r.Context(), userID, req.ReturnURL)
	if err != nil {
		if errors.Is(err, service.ErrNoCustomer) {
			writeError(w, http.StatusBadRequest, "no billing account", "complete a checkout before opening the billing portal")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to create portal session", "")
		return
	}

	writeJSON(w, http.StatusOK, dto.PortalResponseDTO{URL: url})
}

func (h *SubscriptionHandler) getStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}
	userID, ok := r.Context().Value(middleware.UserContextKey).(string)
	if !ok || userID == "" {
		writeError(w, http.StatusUnauthorized, "user ID not found in context", "")
		return
	}

	sub, err := h.subService.GetOrDefault(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to fetch subscription", "")
		return
	}

	writeJSON(w, http.StatusOK, dto.SubscriptionResponseDTO{
		Plan:               sub.Plan,
		Status:             sub.Status,
		CurrentPeriodStart: sub.CurrentPeriodStart,
		CurrentPeriodEnd:   sub.CurrentPeriodEnd,
		CancelAtPeriodEnd:  sub.CancelAtPeriodEnd,
		TrialEnd:           sub.TrialEnd,
	})
}
