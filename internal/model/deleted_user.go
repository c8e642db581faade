package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Who triggered an account deletion.
const (
	DeletionSourceClerk  = "clerk"
	DeletionSourceUser   = "user"
	DeletionSourceAdmin  = "admin"
	DeletionSourceSystem = "system"
)

// SubscriptionSummary is the trimmed subscription view kept in the archive.
// Payment history is intentionally not copied.
type SubscriptionSummary struct {
	Plan         string `bson:"plan,omitempty" json:"plan,omitempty"`
	Status       string `bson:"status,omitempty" json:"status,omitempty"`
	CancelReason string `bson:"cancelReason,omitempty" json:"cancelReason,omitempty"`
}

// DeletionFeedback is optional exit-survey data attached to an archive record.
type DeletionFeedback struct {
	Reason   string `bson:"reason,omitempty" json:"reason,omitempty"`
	Comments string `bson:"comments,omitempty" json:"comments,omitempty"`
	Rating   int    `bson:"rating,omitempty" json:"rating,omitempty"`
}

// DeletedUser is a write-once snapshot taken at deletion time. It must be
// persisted before the live user document is removed.
type DeletedUser struct {
	ID               primitive.ObjectID  `bson:"_id,omitempty" json:"id,omitempty"`
	ClerkID          string              `bson:"clerkId" json:"clerkId"`
	Email            string              `bson:"email" json:"email"`
	Name             string              `bson:"name,omitempty" json:"name,omitempty"`
	StripeCustomerID *string             `bson:"stripeCustomerId,omitempty" json:"stripeCustomerId,omitempty"`
	Plan             string              `bson:"plan,omitempty" json:"plan,omitempty"`
	DeletedAt        time.Time           `bson:"deletedAt" json:"deletedAt"`
	CreatedAt        *time.Time          `bson:"createdAt,omitempty" json:"createdAt,omitempty"`
	UsageStats       UsageStats          `bson:"usageStats" json:"usageStats"`
	SubscriptionInfo SubscriptionSummary `bson:"subscriptionInfo" json:"subscriptionInfo"`
	DeletionReason   string              `bson:"deletionReason,omitempty" json:"deletionReason,omitempty"`
	DeletionSource   string              `bson:"deletionSource" json:"deletionSource"`
	Feedback         *DeletionFeedback   `bson:"feedbackData,omitempty" json:"feedbackData,omitempty"`
}

// DeletedUserStats aggregates the archive for the admin dashboard.
type DeletedUserStats struct {
	TotalDeleted int64            `json:"totalDeleted"`
	ByReason     map[string]int64 `json:"byReason"`
	BySource     map[string]int64 `json:"bySource"`
	ByMonth      map[string]int64 `json:"byMonth"`
}
