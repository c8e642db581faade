package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"app/internal/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const subscriptionCollection = "subscriptions"

// StripeSubscriptionFields carries everything a billing webhook event tells us
// about a subscription. Plan is derived by the service before the write.
type StripeSubscriptionFields struct {
	StripeCustomerID     string
	StripeSubscriptionID string
	StripePriceID        string
	Status               string
	Plan                 string
	CurrentPeriodStart   time.Time
	CurrentPeriodEnd     time.Time
	CancelAtPeriodEnd    bool
	TrialStart           *time.Time
	TrialEnd             *time.Time
}

// SubscriptionRepository defines methods for accessing subscription documents.
type SubscriptionRepository interface {
	Get(ctx context.Context, userID string) (*model.Subscription, error)
	// EnsureDefault creates a free/active subscription for a new user if none
	// exists. Existing documents are left untouched.
	EnsureDefault(ctx context.Context, userID string) error
	// UpsertStripeSubscription reconciles the user's single subscription
	// document with the state reported by Stripe. Keyed on userId, so repeated
	// deliveries of the same event converge on the same document.
	UpsertStripeSubscription(ctx context.Context, userID string, fields StripeSubscriptionFields) error
	// DowngradeToFree marks the subscription canceled and drops the user back
	// to the free plan when Stripe reports the subscription deleted.
	DowngradeToFree(ctx context.Context, userID, cancelReason string) error
	AppendPayment(ctx context.Context, userID string, rec model.PaymentRecord) error
	UpdateStatus(ctx context.Context, userID, status string) error
	Delete(ctx context.Context, userID string) (bool, error)
}

type subscriptionRepo struct {
	coll *mongo.Collection
}

func NewSubscriptionRepo(db *mongo.Database) SubscriptionRepository {
	return &subscriptionRepo{coll: db.Collection(subscriptionCollection)}
}

func (r *subscriptionRepo) Get(ctx context.Context, userID string) (*model.Subscription, error) {
	var s model.Subscription
	if err := r.coll.FindOne(ctx, bson.M{"userId": userID}).Decode(&s); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch subscription for user %s: %w", userID, err)
	}
	return &s, nil
}

func (r *subscriptionRepo) EnsureDefault(ctx context.Context, userID string) error {
	now := time.Now()
	update := bson.M{
		"$setOnInsert": bson.M{
			"userId":            userID,
			"status":            model.SubscriptionStatusActive,
			"plan":              model.PlanFree,
			"cancelAtPeriodEnd": false,
			"createdAt":         now,
			"updatedAt":         now,
		},
	}
	opts := options.Update().SetUpsert(true)
	if _, err := r.coll.UpdateOne(ctx, bson.M{"userId": userID}, update, opts); err != nil {
		return fmt.Errorf("ensure default subscription for user %s: %w", userID, err)
	}
	return nil
}

func (r *subscriptionRepo) UpsertStripeSubscription(ctx context.Context, userID string, f StripeSubscriptionFields) error {
	now := time.Now()
	set := bson.M{
		"stripeCustomerId":     f.StripeCustomerID,
		"stripeSubscriptionId": f.StripeSubscriptionID,
		"stripePriceId":        f.StripePriceID,
		"status":               f.Status,
		"plan":                 f.Plan,
		"currentPeriodStart":   f.CurrentPeriodStart,
		"currentPeriodEnd":     f.CurrentPeriodEnd,
		"cancelAtPeriodEnd":    f.CancelAtPeriodEnd,
		"updatedAt":            now,
	}
	if f.TrialStart != nil {
		set["trialStart"] = *f.TrialStart
	}
	if f.TrialEnd != nil {
		set["trialEnd"] = *f.TrialEnd
	}
	update := bson.M{
		"$set": set,
		"$setOnInsert": bson.M{
			"userId":    userID,
			"createdAt": now,
		},
	}
	// $min writes firstPurchaseDate only when absent (or older); $max keeps
	// latestPurchaseDate moving forward. Both stay untouched on free plans.
	if f.Plan != model.PlanFree {
		update["$min"] = bson.M{"firstPurchaseDate": now}
		update["$max"] = bson.M{"latestPurchaseDate": now}
	}
	opts := options.Update().SetUpsert(true)
	if _, err := r.coll.UpdateOne(ctx, bson.M{"userId": userID}, update, opts); err != nil {
		return fmt.Errorf("upsert stripe subscription for user %s: %w", userID, err)
	}
	return nil
}

func (r *subscriptionRepo) DowngradeToFree(ctx context.Context, userID, cancelReason string) error {
	set := bson.M{
		"status":            model.SubscriptionStatusCanceled,
		"plan":              model.PlanFree,
		"cancelAtPeriodEnd": true,
		"updatedAt":         time.Now(),
	}
	if cancelReason != "" {
		set["cancelReason"] = cancelReason
	}
	if _, err := r.coll.UpdateOne(ctx, bson.M{"userId": userID}, bson.M{"$set": set}); err != nil {
		return fmt.Errorf("downgrade user %s to free plan: %w", userID, err)
	}
	return nil
}

func (r *subscriptionRepo) AppendPayment(ctx context.Context, userID string, rec model.PaymentRecord) error {
	now := time.Now()
	update := bson.M{
		"$push": bson.M{"paymentHistory": rec},
		"$set":  bson.M{"updatedAt": now},
		"$setOnInsert": bson.M{
			"userId":            userID,
			"status":            model.SubscriptionStatusActive,
			"plan":              model.PlanFree,
			"cancelAtPeriodEnd": false,
			"createdAt":         now,
		},
	}
	opts := options.Update().SetUpsert(true)
	if _, err := r.coll.UpdateOne(ctx, bson.M{"userId": userID}, update, opts); err != nil {
		return fmt.Errorf("append payment for user %s: %w", userID, err)
	}
	return nil
}

func (r *subscriptionRepo) UpdateStatus(ctx context.Context, userID, status string) error {
	update := bson.M{"$set": bson.M{"status": status, "updatedAt": time.Now()}}
	if _, err := r.coll.UpdateOne(ctx, bson.M{"userId": userID}, update); err != nil {
		return fmt.Errorf("update subscription status for user %s: %w", userID, err)
	}
	return nil
}

func (r *subscriptionRepo) Delete(ctx context.Context, userID string) (bool, error) {
	res, err := r.coll.DeleteOne(ctx, bson.M{"userId": userID})
	if err != nil {
		return false, fmt.Errorf("delete subscription for user %s: %w", userID, err)
	}
	return res.DeletedCount == 1, nil
}
