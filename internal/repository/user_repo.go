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

const userCollection = "users"

// UserRepository defines methods for accessing user documents.
type UserRepository interface {
	// UpsertIdentity writes identity-provider fields keyed by clerkId. On first
	// write it also seeds plan, preferences and zeroed stats, so webhook
	// replays are no-ops rather than duplicate users.
	UpsertIdentity(ctx context.Context, clerkID, email, name string) (*model.User, error)
	GetByClerkID(ctx context.Context, clerkID string) (*model.User, error)
	GetByStripeCustomerID(ctx context.Context, customerID string) (*model.User, error)
	UpdateStripeCustomerID(ctx context.Context, clerkID, customerID string) error
	UpdatePlan(ctx context.Context, clerkID, plan string) error
	UpdatePreferences(ctx context.Context, clerkID string, prefs model.Preferences) (*model.User, error)
	ApplySessionStats(ctx context.Context, clerkID, category string, minutes, streakDays int, sessionDate time.Time) error
	Delete(ctx context.Context, clerkID string) (bool, error)
}

type userRepo struct {
	coll *mongo.Collection
}

func NewUserRepo(db *mongo.Database) UserRepository {
	return &userRepo{coll: db.Collection(userCollection)}
}

func (r *userRepo) UpsertIdentity(ctx context.Context, clerkID, email, name string) (*model.User, error) {
	now := time.Now()
	set := bson.M{
		"email":     email,
		"updatedAt": now,
	}
	// An empty derived name stays absent rather than overwriting a stored one.
	if name != "" {
		set["name"] = name
	}
	update := bson.M{
		"$set": set,
		"$setOnInsert": bson.M{
			"clerkId":   clerkID,
			"plan":      model.PlanFree,
			"stats":     model.UsageStats{},
			"createdAt": now,
		},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var u model.User
	if err := r.coll.FindOneAndUpdate(ctx, bson.M{"clerkId": clerkID}, update, opts).Decode(&u); err != nil {
		return nil, fmt.Errorf("upsert user %s: %w", clerkID, err)
	}
	return &u, nil
}

func (r *userRepo) GetByClerkID(ctx context.Context, clerkID string) (*model.User, error) {
	var u model.User
	if err := r.coll.FindOne(ctx, bson.M{"clerkId": clerkID}).Decode(&u); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch user %s: %w", clerkID, err)
	}
	return &u, nil
}

func (r *userRepo) GetByStripeCustomerID(ctx context.Context, customerID string) (*model.User, error) {
	var u model.User
	if err := r.coll.FindOne(ctx, bson.M{"stripeCustomerId": customerID}).Decode(&u); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch user by customer %s: %w", customerID, err)
	}
	return &u, nil
}

func (r *userRepo) UpdateStripeCustomerID(ctx context.Context, clerkID, customerID string) error {
	update := bson.M{"$set": bson.M{"stripeCustomerId": customerID, "updatedAt": time.Now()}}
	if _, err := r.coll.UpdateOne(ctx, bson.M{"clerkId": clerkID}, update); err != nil {
		return fmt.Errorf("update stripe customer id for user %s: %w", clerkID, err)
	}
	return nil
}

func (r *userRepo) UpdatePlan(ctx context.Context, clerkID, plan string) error {
	update := bson.M{"$set": bson.M{"plan": plan, "updatedAt": time.Now()}}
	if _, err := r.coll.UpdateOne(ctx, bson.M{"clerkId": clerkID}, update); err != nil {
		return fmt.Errorf("update plan for user %s: %w", clerkID, err)
	}
	return nil
}

func (r *userRepo) UpdatePreferences(ctx context.Context, clerkID string, prefs model.Preferences) (*model.User, error) {
	update := bson.M{"$set": bson.M{"preferences": prefs, "updatedAt": time.Now()}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var u model.User
	if err := r.coll.FindOneAndUpdate(ctx, bson.M{"clerkId": clerkID}, update, opts).Decode(&u); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("update preferences for user %s: %w", clerkID, err)
	}
	return &u, nil
}

func (r *userRepo) ApplySessionStats(ctx context.Context, clerkID, category string, minutes, streakDays int, sessionDate time.Time) error {
	update := bson.M{
		"$inc": bson.M{
			"stats.totalSessionsCompleted":      1,
			"stats.totalMinutesListened":        minutes,
			"stats.categoriesUsage." + category: 1,
		},
		"$set": bson.M{
			"stats.streakDays":      streakDays,
			"stats.lastSessionDate": sessionDate,
			"updatedAt":             time.Now(),
		},
	}
	if _, err := r.coll.UpdateOne(ctx, bson.M{"clerkId": clerkID}, update); err != nil {
		return fmt.Errorf("apply session stats for user %s: %w", clerkID, err)
	}
	return nil
}

func (r *userRepo) Delete(ctx context.Context, clerkID string) (bool, error) {
	res, err := r.coll.DeleteOne(ctx, bson.M{"clerkId": clerkID})
	if err != nil {
		return false, fmt.Errorf("delete user %s: %w", clerkID, err)
	}
	return res.DeletedCount == 1, nil
}
