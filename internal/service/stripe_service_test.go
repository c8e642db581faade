package service

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"app/internal/config"
	"app/internal/model"
	"app/internal/repository"

	"github.com/rs/zerolog"
	"github.com/stripe/stripe-go/v82"
)

const testWebhookSecret = "whsec_test_secret"

// fakeSubService records reconciliation calls driven by webhook events.
type fakeSubService struct {
	reconciled []repository.StripeSubscriptionFields
	downgrades []string
	payments   []model.PaymentRecord
}

func (f *fakeSubService) Get(ctx context.Context, userID string) (*model.Subscription, error) {
	return nil, nil
}

func (f *fakeSubService) GetOrDefault(ctx context.Context, userID string) (*model.Subscription, error) {
	return &model.Subscription{UserID: userID, Plan: model.PlanFree, Status: model.SubscriptionStatusActive}, nil
}

func (f *fakeSubService) EnsureDefault(ctx context.Context, userID string) error { return nil }

func (f *fakeSubService) ReconcileFromStripe(ctx context.Context, userID string, fields repository.StripeSubscriptionFields) error {
	f.reconciled = append(f.reconciled, fields)
	return nil
}

func (f *fakeSubService) Downgrade(ctx context.Context, userID, cancelReason string) error {
	f.downgrades = append(f.downgrades, userID+":"+cancelReason)
	return nil
}

func (f *fakeSubService) RecordPayment(ctx context.Context, userID string, rec model.PaymentRecord) error {
	f.payments = append(f.payments, rec)
	return nil
}

func newTestStripeService(userRepo repository.UserRepository, subSvc SubscriptionService) *StripeService {
	cfg := &config.Config{
		StripeSecretKey:     "sk_test_x",
		StripeWebhookSecret: testWebhookSecret,
	}
	return NewStripeService(cfg, userRepo, subSvc, zerolog.Nop())
}

func TestCreateCheckoutSessionRejectsProductID(t *testing.T) {
	userRepo := newFakeUserRepo()
	svc := newTestStripeService(userRepo, &fakeSubService{})

	_, err := svc.CreateCheckoutSession(context.Background(), "user_1", "prod_ABC123", "https://ok", "https://cancel")
	if !errors.Is(err, ErrInvalidPriceID) {
		t.Fatalf("expected ErrInvalidPriceID, got %v", err)
	}
	// Validation must run before any lookup or network call.
	if len(userRepo.calls) != 0 {
		t.Errorf("expected no repository calls, got %v", userRepo.calls)
	}
}

func TestCreateCheckoutSessionUnknownUser(t *testing.T) {
	svc := newTestStripeService(newFakeUserRepo(), &fakeSubService{})

	_, err := svc.CreateCheckoutSession(context.Background(), "user_missing", "price_premium_monthly", "https://ok", "https://cancel")
	if !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestCreatePortalSessionWithoutCustomer(t *testing.T) {
	userRepo := newFakeUserRepo()
	userRepo.users["user_1"] = &model.User{ClerkID: "user_1", Email: "a@example.com"}
	svc := newTestStripeService(userRepo, &fakeSubService{})

	_, err := svc.CreatePortalSession(context.Background(), "user_1", "https://back")
	if !errors.Is(err, ErrNoCustomer) {
		t.Fatalf("expected ErrNoCustomer, got %v", err)
	}
}

func TestIsAccountSuspendedMessage(t *testing.T) {
	tests := []struct {
		msg  string
		want bool
	}{
		{"Your account has been suspended pending review.", true},
		{"This account cannot create charges.", true},
		{"Account has payments disabled.", true},
		{"No such price: price_x", false},
		{"rate limit exceeded", false},
	}
	for _, tt := range tests {
		if got := isAccountSuspendedMessage(tt.msg); got != tt.want {
			t.Errorf("isAccountSuspendedMessage(%q) = %v, want %v", tt.msg, got, tt.want)
		}
	}
}

func TestClassifyStripeError(t *testing.T) {
	svc := newTestStripeService(newFakeUserRepo(), &fakeSubService{})

	err := svc.classifyStripeError(errors.New("No such price: 'price_x'"), "price_x")
	if !errors.Is(err, ErrUnknownPrice) {
		t.Errorf("expected ErrUnknownPrice, got %v", err)
	}
	err = svc.classifyStripeError(errors.New("Your account cannot create charges."), "price_x")
	if !errors.Is(err, ErrAccountSuspended) {
		t.Errorf("expected ErrAccountSuspended, got %v", err)
	}
	err = svc.classifyStripeError(errors.New("connection reset"), "price_x")
	if errors.Is(err, ErrUnknownPrice) || errors.Is(err, ErrAccountSuspended) {
		t.Errorf("generic error misclassified: %v", err)
	}
}

// signedWebhookRequest builds a POST with a valid Stripe-Signature header.
func signedWebhookRequest(t *testing.T, eventType, object string) *http.Request {
	t.Helper()
	payload := fmt.Sprintf(`{"id":"evt_1","api_version":%q,"type":%q,"data":{"object":%s}}`,
		stripe.APIVersion, eventType, object)
	ts := time.Now().Unix()
	mac := hmac.New(sha256.New, []byte(testWebhookSecret))
	fmt.Fprintf(mac, "%d.%s", ts, payload)
	sig := hex.EncodeToString(mac.Sum(nil))

	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", bytes.NewBufferString(payload))
	req.Header.Set("Stripe-Signature", fmt.Sprintf("t=%d,v1=%s", ts, sig))
	return req
}

func TestHandleWebhookRejectsBadSignature(t *testing.T) {
	svc := newTestStripeService(newFakeUserRepo(), &fakeSubService{})

	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", bytes.NewBufferString(`{}`))
	req.Header.Set("Stripe-Signature", "t=123,v1=deadbeef")
	rec := httptest.NewRecorder()
	svc.HandleWebhook(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestHandleWebhookRejectsMissingSignature(t *testing.T) {
	svc := newTestStripeService(newFakeUserRepo(), &fakeSubService{})

	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", bytes.NewBufferString(`{}`))
	rec := httptest.NewRecorder()
	svc.HandleWebhook(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestHandleWebhookSubscriptionDeleted(t *testing.T) {
	userRepo := newFakeUserRepo()
	cusID := "cus_1"
	userRepo.users["user_1"] = &model.User{ClerkID: "user_1", StripeCustomerID: &cusID}
	subSvc := &fakeSubService{}
	svc := newTestStripeService(userRepo, subSvc)

	object := `{"id":"sub_1","customer":"cus_1","cancellation_details":{"reason":"cancellation_requested"}}`
	rec := httptest.NewRecorder()
	svc.HandleWebhook(rec, signedWebhookRequest(t, "customer.subscription.deleted", object))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body: %s", rec.Code, rec.Body.String())
	}
	if len(subSvc.downgrades) != 1 || subSvc.downgrades[0] != "user_1:cancellation_requested" {
		t.Errorf("downgrades = %v", subSvc.downgrades)
	}
}

func TestHandleWebhookUnknownCustomerIsNoOp(t *testing.T) {
	subSvc := &fakeSubService{}
	svc := newTestStripeService(newFakeUserRepo(), subSvc)

	object := `{"id":"sub_1","customer":"cus_nobody","cancellation_details":{"reason":"cancellation_requested"}}`
	rec := httptest.NewRecorder()
	svc.HandleWebhook(rec, signedWebhookRequest(t, "customer.subscription.deleted", object))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body: %s", rec.Code, rec.Body.String())
	}
	if len(subSvc.downgrades) != 0 {
		t.Errorf("expected no downgrades for unknown customer, got %v", subSvc.downgrades)
	}
}

func TestHandleWebhookSubscriptionUpdated(t *testing.T) {
	userRepo := newFakeUserRepo()
	cusID := "cus_1"
	userRepo.users["user_1"] = &model.User{ClerkID: "user_1", StripeCustomerID: &cusID}
	subSvc := &fakeSubService{}
	svc := newTestStripeService(userRepo, subSvc)

	object := `{
		"id": "sub_1",
		"customer": "cus_1",
		"status": "active",
		"cancel_at_period_end": false,
		"items": {"data": [{"id": "si_1", "price": {"id": "price_premium_monthly"}, "current_period_start": 1750000000, "current_period_end": 1752600000}]}
	}`
	rec := httptest.NewRecorder()
	svc.HandleWebhook(rec, signedWebhookRequest(t, "customer.subscription.updated", object))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body: %s", rec.Code, rec.Body.String())
	}
	if len(subSvc.reconciled) != 1 {
		t.Fatalf("expected one reconcile, got %d", len(subSvc.reconciled))
	}
	got := subSvc.reconciled[0]
	if got.StripePriceID != "price_premium_monthly" || got.Status != "active" {
		t.Errorf("reconciled fields = %+v", got)
	}
	if got.CurrentPeriodStart.Unix() != 1750000000 || got.CurrentPeriodEnd.Unix() != 1752600000 {
		t.Errorf("period bounds = %v .. %v", got.CurrentPeriodStart, got.CurrentPeriodEnd)
	}
}

func TestHandleWebhookCheckoutCompletedStoresCustomer(t *testing.T) {
	userRepo := newFakeUserRepo()
	userRepo.users["user_1"] = &model.User{ClerkID: "user_1"}
	svc := newTestStripeService(userRepo, &fakeSubService{})

	object := `{"id":"cs_1","mode":"subscription","customer":"cus_9","metadata":{"userId":"user_1"}}`
	rec := httptest.NewRecorder()
	svc.HandleWebhook(rec, signedWebhookRequest(t, "checkout.session.completed", object))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body: %s", rec.Code, rec.Body.String())
	}
	u := userRepo.users["user_1"]
	if u.StripeCustomerID == nil || *u.StripeCustomerID != "cus_9" {
		t.Errorf("stripeCustomerId not stored: %+v", u.StripeCustomerID)
	}
}

func TestHandleWebhookCheckoutCompletedWithoutMetadata(t *testing.T) {
	userRepo := newFakeUserRepo()
	userRepo.users["user_1"] = &model.User{ClerkID: "user_1"}
	svc := newTestStripeService(userRepo, &fakeSubService{})

	object := `{"id":"cs_1","mode":"subscription","customer":"cus_9","metadata":{}}`
	rec := httptest.NewRecorder()
	svc.HandleWebhook(rec, signedWebhookRequest(t, "checkout.session.completed", object))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body: %s", rec.Code, rec.Body.String())
	}
	if userRepo.users["user_1"].StripeCustomerID != nil {
		t.Error("customer ID must not be stored without userId metadata")
	}
}

func TestHandleWebhookInvoicePaymentFailed(t *testing.T) {
	userRepo := newFakeUserRepo()
	cusID := "cus_1"
	userRepo.users["user_1"] = &model.User{ClerkID: "user_1", StripeCustomerID: &cusID}
	subSvc := &fakeSubService{}
	svc := newTestStripeService(userRepo, subSvc)

	object := `{"id":"in_1","customer":"cus_1","created":1750000000,"amount_due":999,"amount_paid":0}`
	rec := httptest.NewRecorder()
	svc.HandleWebhook(rec, signedWebhookRequest(t, "invoice.payment_failed", object))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body: %s", rec.Code, rec.Body.String())
	}
	if len(subSvc.payments) != 1 {
		t.Fatalf("expected one payment record, got %d", len(subSvc.payments))
	}
	p := subSvc.payments[0]
	if p.Status != model.PaymentStatusFailed || p.AmountCents != 999 || p.InvoiceID != "in_1" {
		t.Errorf("payment record = %+v", p)
	}
}
