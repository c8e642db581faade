package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"app/internal/config"
	"app/internal/model"
	"app/internal/repository"

	"github.com/rs/zerolog"
	"github.com/stripe/stripe-go/v82"
	billingsession "github.com/stripe/stripe-go/v82/billingportal/session"
	checkoutsession "github.com/stripe/stripe-go/v82/checkout/session"
	"github.com/stripe/stripe-go/v82/webhook"
)

// Distinguished Stripe failure modes the handlers map to specific responses.
var (
	// ErrInvalidPriceID means the caller passed something that is not a price
	// ID (usually a prod_ product ID). Checked before any Stripe call.
	ErrInvalidPriceID = errors.New("invalid price id: must start with \"price_\"")
	// ErrUnknownPrice means Stripe does not know the price ID.
	ErrUnknownPrice = errors.New("price id does not exist in stripe")
	// ErrAccountSuspended means the merchant account cannot create charges.
	ErrAccountSuspended = errors.New("stripe account suspended")
	// ErrNoCustomer means the user has no stored Stripe customer ID yet.
	ErrNoCustomer = errors.New("no stripe customer for user")
)

// CheckoutSession is the minted session returned to the frontend.
type CheckoutSession struct {
	URL       string
	SessionID string
}

// StripeService manages Stripe integration: session minting and the billing
// webhook reconciliation.
type StripeService struct {
	cfg      *config.Config
	userRepo repository.UserRepository
	subSvc   SubscriptionService
	logger   zerolog.Logger
}

// NewStripeService initializes the Stripe key and returns the service with a
// scoped logger.
func NewStripeService(cfg *config.Config, userRepo repository.UserRepository, subSvc SubscriptionService, logger zerolog.Logger) *StripeService {
	stripe.Key = cfg.StripeSecretKey
	lg := logger.With().Str("service", "StripeService").Logger()
	return &StripeService{cfg: cfg, userRepo: userRepo, subSvc: subSvc, logger: lg}
}

// CreateCheckoutSession mints a Stripe Checkout session for the given price.
// The caller's Clerk ID rides along in session and subscription metadata so
// the webhook can resolve the user later.
func (s *StripeService) CreateCheckoutSession(ctx context.Context, userID, priceID, successURL, cancelURL string) (*CheckoutSession, error) {
	if !strings.HasPrefix(priceID, "price_") {
		return nil, ErrInvalidPriceID
	}

	user, err := s.userRepo.GetByClerkID(ctx, userID)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to fetch user for checkout session")
		return nil, fmt.Errorf("fetch user: %w", err)
	}
	if user == nil {
		s.logger.Error().Str("user_id", userID).Msg("User not found for checkout session")
		return nil, fmt.Errorf("%w: %s", ErrUserNotFound, userID)
	}

	params := &stripe.CheckoutSessionParams{
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		LineItems:          []*stripe.CheckoutSessionLineItemParams{{Price: stripe.String(priceID), Quantity: stripe.Int64(1)}},
		Mode:               stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		SuccessURL:         stripe.String(successURL),
		CancelURL:          stripe.String(cancelURL),
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: map[string]string{"userId": userID},
		},
	}
	params.AddMetadata("userId", userID)
	if user.StripeCustomerID != nil && *user.StripeCustomerID != "" {
		params.Customer = stripe.String(*user.StripeCustomerID)
	} else if user.Email != "" {
		params.CustomerEmail = stripe.String(user.Email)
	}

	sess, err := checkoutsession.New(params)
	if err != nil {
		s.logger.Error().Err(err).Str("price_id", priceID).Msg("Failed to create Stripe checkout session")
		return nil, s.classifyStripeError(err, priceID)
	}

	return &CheckoutSession{URL: sess.URL, SessionID: sess.ID}, nil
}

// CreatePortalSession creates a Stripe Customer Portal session.
func (s *StripeService) CreatePortalSession(ctx context.Context, userID, returnURL string) (string, error) {
	user, err := s.userRepo.GetByClerkID(ctx, userID)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to fetch user for portal session")
		return "", fmt.Errorf("fetch user: %w", err)
	}
	if user == nil || user.StripeCustomerID == nil || *user.StripeCustomerID == "" {
		s.logger.Error().Str("user_id", userID).Msg("No Stripe customer ID found for user when creating portal session")
		return "", fmt.Errorf("%w: %s", ErrNoCustomer, userID)
	}

	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(*user.StripeCustomerID),
		ReturnURL: stripe.String(returnURL),
	}
	sess, err := billingsession.New(params)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to create Stripe billing portal session")
		return "", fmt.Errorf("create billing portal session: %w", err)
	}
	return sess.URL, nil
}

// classifyStripeError maps well-known Stripe failures onto sentinel errors.
func (s *StripeService) classifyStripeError(err error, priceID string) error {
	msg := err.Error()
	if isAccountSuspendedMessage(msg) {
		return fmt.Errorf("%w: %s", ErrAccountSuspended, msg)
	}
	if strings.Contains(msg, "No such price") {
		return fmt.Errorf("%w: %s", ErrUnknownPrice, priceID)
	}
	return fmt.Errorf("create checkout session: %w", err)
}

func isAccountSuspendedMessage(msg string) bool {
	return strings.Contains(msg, "account has been suspended") ||
		strings.Contains(msg, "account cannot create charges") ||
		strings.Contains(msg, "payments disabled")
}

// HandleWebhook processes Stripe webhook events.
func (s *StripeService) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to read Stripe webhook payload")
		http.Error(w, "failed to read payload", http.StatusBadRequest)
		return
	}
	sig := r.Header.Get("Stripe-Signature")
	event, err := webhook.ConstructEvent(payload, sig, s.cfg.StripeWebhookSecret)
	if err != nil {
		s.logger.Error().Err(err).Msg("Signature verification failed for Stripe webhook")
		http.Error(w, "signature verification failed", http.StatusBadRequest)
		return
	}
	s.logger.Info().Str("event_type", string(event.Type)).Msg("Stripe webhook received")

	ctx := r.Context()
	switch event.Type {
	case "customer.subscription.created", "customer.subscription.updated":
		err = s.handleSubscriptionChange(ctx, event.Data.Raw)
	case "customer.subscription.deleted":
		err = s.handleSubscriptionDeleted(ctx, event.Data.Raw)
	case "invoice.payment_succeeded":
		err = s.handleInvoice(ctx, event.Data.Raw, model.PaymentStatusSucceeded)
	case "invoice.payment_failed":
		err = s.handleInvoice(ctx, event.Data.Raw, model.PaymentStatusFailed)
	case "checkout.session.completed":
		err = s.handleCheckoutCompleted(ctx, event.Data.Raw)
	case "customer.created", "customer.updated":
		err = s.handleCustomerUpsert(ctx, event.Data.Raw)
	default:
		s.logger.Warn().Str("event_type", string(event.Type)).Msg("Unhandled Stripe webhook event")
	}
	if err != nil {
		// The provider retries 4xx/5xx deliveries on its own schedule; no
		// local retry here.
		s.logger.Error().Err(err).Str("event_type", string(event.Type)).Msg("Failed to process Stripe webhook event")
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]bool{"received": true})
}

func (s *StripeService) handleSubscriptionChange(ctx context.Context, raw json.RawMessage) error {
	var ss stripe.Subscription
	if err := json.Unmarshal(raw, &ss); err != nil {
		return fmt.Errorf("invalid subscription payload: %w", err)
	}
	if ss.Customer == nil || ss.Customer.ID == "" {
		return errors.New("subscription event without customer")
	}
	if ss.Items == nil || len(ss.Items.Data) == 0 {
		return fmt.Errorf("subscription %s has no items", ss.ID)
	}
	item := ss.Items.Data[0]
	if item.Price == nil || item.Price.ID == "" {
		return fmt.Errorf("subscription %s has no price", ss.ID)
	}

	user, err := s.userRepo.GetByStripeCustomerID(ctx, ss.Customer.ID)
	if err != nil {
		return fmt.Errorf("lookup user by customer %s: %w", ss.Customer.ID, err)
	}
	if user == nil {
		// The event may precede our checkout.session.completed write; the
		// provider will redeliver if it matters.
		s.logger.Warn().Str("stripe_customer_id", ss.Customer.ID).Msg("No user for customer ID, dropping subscription event")
		return nil
	}

	fields := repository.StripeSubscriptionFields{
		StripeCustomerID:     ss.Customer.ID,
		StripeSubscriptionID: ss.ID,
		StripePriceID:        item.Price.ID,
		Status:               string(ss.Status),
		CurrentPeriodStart:   time.Unix(item.CurrentPeriodStart, 0),
		CurrentPeriodEnd:     time.Unix(item.CurrentPeriodEnd, 0),
		CancelAtPeriodEnd:    ss.CancelAtPeriodEnd,
	}
	if ss.TrialStart > 0 {
		t := time.Unix(ss.TrialStart, 0)
		fields.TrialStart = &t
	}
	if ss.TrialEnd > 0 {
		t := time.Unix(ss.TrialEnd, 0)
		fields.TrialEnd = &t
	}

	return s.subSvc.ReconcileFromStripe(ctx, user.ClerkID, fields)
}

func (s *StripeService) handleSubscriptionDeleted(ctx context.Context, raw json.RawMessage) error {
	var ss stripe.Subscription
	if err := json.Unmarshal(raw, &ss); err != nil {
		return fmt.Errorf("invalid subscription payload: %w", err)
	}
	if ss.Customer == nil || ss.Customer.ID == "" {
		return errors.New("subscription event without customer")
	}

	user, err := s.userRepo.GetByStripeCustomerID(ctx, ss.Customer.ID)
	if err != nil {
		return fmt.Errorf("lookup user by customer %s: %w", ss.Customer.ID, err)
	}
	if user == nil {
		s.logger.Warn().Str("stripe_customer_id", ss.Customer.ID).Msg("No user for customer ID, dropping subscription.deleted event")
		return nil
	}

	var cancelReason string
	if ss.CancellationDetails != nil {
		cancelReason = string(ss.CancellationDetails.Reason)
	}
	return s.subSvc.Downgrade(ctx, user.ClerkID, cancelReason)
}

func (s *StripeService) handleInvoice(ctx context.Context, raw json.RawMessage, status string) error {
	var invoice stripe.Invoice
	if err := json.Unmarshal(raw, &invoice); err != nil {
		return fmt.Errorf("invalid invoice payload: %w", err)
	}
	if invoice.Customer == nil || invoice.Customer.ID == "" {
		return errors.New("invoice event without customer")
	}

	user, err := s.userRepo.GetByStripeCustomerID(ctx, invoice.Customer.ID)
	if err != nil {
		return fmt.Errorf("lookup user by customer %s: %w", invoice.Customer.ID, err)
	}
	if user == nil {
		s.logger.Warn().Str("stripe_customer_id", invoice.Customer.ID).Msg("No user for customer ID, dropping invoice event")
		return nil
	}

	amount := invoice.AmountPaid
	if status == model.PaymentStatusFailed {
		amount = invoice.AmountDue
	}
	rec := model.PaymentRecord{
		Date:        time.Unix(invoice.Created, 0),
		AmountCents: amount,
		Status:      status,
		InvoiceID:   invoice.ID,
	}
	return s.subSvc.RecordPayment(ctx, user.ClerkID, rec)
}

func (s *StripeService) handleCheckoutCompleted(ctx context.Context, raw json.RawMessage) error {
	var cs stripe.CheckoutSession
	if err := json.Unmarshal(raw, &cs); err != nil {
		return fmt.Errorf("invalid checkout.session payload: %w", err)
	}
	if cs.Mode != stripe.CheckoutSessionModeSubscription {
		return nil
	}

	// The metadata was written by our own checkout initiator, so it is the
	// one place a bare userId is trusted without a reverse lookup.
	userID := cs.Metadata["userId"]
	if userID == "" {
		s.logger.Warn().Str("session_id", cs.ID).Msg("Checkout session completed without userId metadata, skipping")
		return nil
	}
	if cs.Customer == nil || cs.Customer.ID == "" {
		s.logger.Warn().Str("session_id", cs.ID).Msg("Checkout session completed without customer, skipping")
		return nil
	}

	if err := s.userRepo.UpdateStripeCustomerID(ctx, userID, cs.Customer.ID); err != nil {
		return err
	}
	s.logger.Info().Str("user_id", userID).Str("stripe_customer_id", cs.Customer.ID).Msg("Checkout completed, customer ID stored")
	return nil
}

func (s *StripeService) handleCustomerUpsert(ctx context.Context, raw json.RawMessage) error {
	var c stripe.Customer
	if err := json.Unmarshal(raw, &c); err != nil {
		return fmt.Errorf("invalid customer payload: %w", err)
	}

	userID := c.Metadata["userId"]
	if userID == "" {
		s.logger.Warn().Str("stripe_customer_id", c.ID).Msg("Customer event without userId metadata, skipping")
		return nil
	}

	return s.userRepo.UpdateStripeCustomerID(ctx, userID, c.ID)
}
