package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Plan tags derived from the Stripe price catalog.
const (
	PlanFree    = "free"
	PlanPremium = "premium"
	PlanPro     = "pro"
)

// Subscription statuses. These track Stripe's own status strings.
const (
	SubscriptionStatusActive     = "active"
	SubscriptionStatusCanceled   = "canceled"
	SubscriptionStatusPastDue    = "past_due"
	SubscriptionStatusTrialing   = "trialing"
	SubscriptionStatusIncomplete = "incomplete"
	SubscriptionStatusUnpaid     = "unpaid"
)

// Payment attempt outcomes recorded in the payment history.
const (
	PaymentStatusSucceeded = "succeeded"
	PaymentStatusFailed    = "failed"
	PaymentStatusPending   = "pending"
)

// PaymentRecord is one entry in the append-only payment log.
type PaymentRecord struct {
	Date        time.Time `bson:"date" json:"date"`
	AmountCents int64     `bson:"amountCents" json:"amountCents"`
	Status      string    `bson:"status" json:"status"`
	InvoiceID   string    `bson:"invoiceId,omitempty" json:"invoiceId,omitempty"`
}

// Subscription mirrors the subscriptions collection. UserID is unique: every
// write goes through a single upsert keyed on it, so the collection can never
// hold two documents for one user.
type Subscription struct {
	ID                   primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	UserID               string             `bson:"userId" json:"userId"`
	StripeCustomerID     string             `bson:"stripeCustomerId,omitempty" json:"stripeCustomerId,omitempty"`
	StripeSubscriptionID string             `bson:"stripeSubscriptionId,omitempty" json:"stripeSubscriptionId,omitempty"`
	StripePriceID        string             `bson:"stripePriceId,omitempty" json:"stripePriceId,omitempty"`
	Status               string             `bson:"status" json:"status"`
	Plan                 string             `bson:"plan" json:"plan"`
	CurrentPeriodStart   *time.Time         `bson:"currentPeriodStart,omitempty" json:"currentPeriodStart,omitempty"`
	CurrentPeriodEnd     *time.Time         `bson:"currentPeriodEnd,omitempty" json:"currentPeriodEnd,omitempty"`
	CancelAtPeriodEnd    bool               `bson:"cancelAtPeriodEnd" json:"cancelAtPeriodEnd"`
	TrialStart           *time.Time         `bson:"trialStart,omitempty" json:"trialStart,omitempty"`
	TrialEnd             *time.Time         `bson:"trialEnd,omitempty" json:"trialEnd,omitempty"`
	FirstPurchaseDate    *time.Time         `bson:"firstPurchaseDate,omitempty" json:"firstPurchaseDate,omitempty"`
	LatestPurchaseDate   *time.Time         `bson:"latestPurchaseDate,omitempty" json:"latestPurchaseDate,omitempty"`
	PaymentHistory       []PaymentRecord    `bson:"paymentHistory,omitempty" json:"paymentHistory,omitempty"`
	CancelReason         string             `bson:"cancelReason,omitempty" json:"cancelReason,omitempty"`
	CreatedAt            time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt            time.Time          `bson:"updatedAt" json:"updatedAt"`
}
