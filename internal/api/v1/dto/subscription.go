package dto

import "time"

// CheckoutCreateDTO is the body for creating a Stripe Checkout session.
type CheckoutCreateDTO struct {
	PriceID    string `json:"priceId" validate:"required"`
	SuccessURL string `json:"successUrl" validate:"required,url"`
	CancelURL  string `json:"cancelUrl" validate:"required,url"`
}

type CheckoutResponseDTO struct {
	URL       string `json:"url"`
	SessionID string `json:"sessionId"`
}

// PortalCreateDTO is the body for creating a billing portal session.
type PortalCreateDTO struct {
	ReturnURL string `json:"returnUrl" validate:"required,url"`
}

type PortalResponseDTO struct {
	URL string `json:"url"`
}

type SubscriptionResponseDTO struct {
	Plan               string     `json:"plan"`
	Status             string     `json:"status"`
	CurrentPeriodStart *time.Time `json:"currentPeriodStart,omitempty"`
	CurrentPeriodEnd   *time.Time `json:"currentPeriodEnd,omitempty"`
	CancelAtPeriodEnd  bool       `json:"cancelAtPeriodEnd"`
	TrialEnd           *time.Time `json:"trialEnd,omitempty"`
}
