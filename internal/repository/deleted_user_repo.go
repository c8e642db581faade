package repository

import (
	"context"
	"fmt"
	"time"

	"app/internal/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const deletedUserCollection = "deleted_users"

// DeletedUserListOptions filters and pages the archive listing.
type DeletedUserListOptions struct {
	Limit     int64
	Skip      int64
	SortBy    string
	SortOrder string // "asc" or "desc"
	FromDate  *time.Time
	ToDate    *time.Time
	Source    string
}

// DeletedUserRepository owns the write-once archive collection. Records are
// inserted at deletion time and never updated.
type DeletedUserRepository interface {
	Insert(ctx context.Context, du *model.DeletedUser) error
	GetByClerkID(ctx context.Context, clerkID string) (*model.DeletedUser, error)
	List(ctx context.Context, opts DeletedUserListOptions) ([]model.DeletedUser, error)
	// Count applies the same filter as List, ignoring paging.
	Count(ctx context.Context, opts DeletedUserListOptions) (int64, error)
	Stats(ctx context.Context) (*model.DeletedUserStats, error)
}

type deletedUserRepo struct {
	coll *mongo.Collection
}

func NewDeletedUserRepo(db *mongo.Database) DeletedUserRepository {
	return &deletedUserRepo{coll: db.Collection(deletedUserCollection)}
}

func (r *deletedUserRepo) Insert(ctx context.Context, du *model.DeletedUser) error {
	if _, err := r.coll.InsertOne(ctx, du); err != nil {
		return fmt.Errorf("archive deleted user %s: %w", du.ClerkID, err)
	}
	return nil
}

func (r *deletedUserRepo) GetByClerkID(ctx context.Context, clerkID string) (*model.DeletedUser, error) {
	var du model.DeletedUser
	if err := r.coll.FindOne(ctx, bson.M{"clerkId": clerkID}).Decode(&du); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch deleted user %s: %w", clerkID, err)
	}
	return &du, nil
}

func listFilter(o DeletedUserListOptions) bson.M {
	filter := bson.M{}
	if o.FromDate != nil || o.ToDate != nil {
		rangeFilter := bson.M{}
		if o.FromDate != nil {
			rangeFilter["$gte"] = *o.FromDate
		}
		if o.ToDate != nil {
			rangeFilter["$lte"] = *o.ToDate
		}
		filter["deletedAt"] = rangeFilter
	}
	if o.Source != "" {
		filter["deletionSource"] = o.Source
	}
	return filter
}

func (r *deletedUserRepo) List(ctx context.Context, o DeletedUserListOptions) ([]model.DeletedUser, error) {
	filter := listFilter(o)

	sortBy := o.SortBy
	if sortBy == "" {
		sortBy = "deletedAt"
	}
	order := -1
	if o.SortOrder == "asc" {
		order = 1
	}

	findOpts := options.Find().
		SetSort(bson.D{{Key: sortBy, Value: order}}).
		SetSkip(o.Skip).
		SetLimit(o.Limit)

	cur, err := r.coll.Find(ctx, filter, findOpts)
	if err != nil {
		return nil, fmt.Errorf("list deleted users: %w", err)
	}
	defer cur.Close(ctx)

	var users []model.DeletedUser
	if err := cur.All(ctx, &users); err != nil {
		return nil, fmt.Errorf("decode deleted users: %w", err)
	}
	return users, nil
}

func (r *deletedUserRepo) Count(ctx context.Context, o DeletedUserListOptions) (int64, error) {
	n, err := r.coll.CountDocuments(ctx, listFilter(o))
	if err != nil {
		return 0, fmt.Errorf("count deleted users: %w", err)
	}
	return n, nil
}

func (r *deletedUserRepo) Stats(ctx context.Context) (*model.DeletedUserStats, error) {
	total, err := r.coll.CountDocuments(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("count deleted users: %w", err)
	}

	byReason, err := r.groupCounts(ctx, "$deletionReason")
	if err != nil {
		return nil, err
	}
	bySource, err := r.groupCounts(ctx, "$deletionSource")
	if err != nil {
		return nil, err
	}

	// Month buckets keyed "YYYY-MM" on the deletion date.
	pipeline := mongo.Pipeline{
		{{Key: "$project", Value: bson.M{
			"yearMonth": bson.M{"$dateToString": bson.M{"format": "%Y-%m", "date": "$deletedAt"}},
		}}},
		{{Key: "$group", Value: bson.M{"_id": "$yearMonth", "count": bson.M{"$sum": 1}}}},
		{{Key: "$sort", Value: bson.M{"_id": 1}}},
	}
	cur, err := r.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("aggregate deleted users by month: %w", err)
	}
	defer cur.Close(ctx)

	byMonth := map[string]int64{}
	for cur.Next(ctx) {
		var row struct {
			ID    string `bson:"_id"`
			Count int64  `bson:"count"`
		}
		if err := cur.Decode(&row); err != nil {
			return nil, fmt.Errorf("decode month bucket: %w", err)
		}
		byMonth[row.ID] = row.Count
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("iterate month buckets: %w", err)
	}

	return &model.DeletedUserStats{
		TotalDeleted: total,
		ByReason:     byReason,
		BySource:     bySource,
		ByMonth:      byMonth,
	}, nil
}

func (r *deletedUserRepo) groupCounts(ctx context.Context, field string) (map[string]int64, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.M{"_id": field, "count": bson.M{"$sum": 1}}}},
	}
	cur, err := r.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("aggregate deleted users by %s: %w", field, err)
	}
	defer cur.Close(ctx)

	counts := map[string]int64{}
	for cur.Next(ctx) {
		var row struct {
			ID    *string `bson:"_id"`
			Count int64   `bson:"count"`
		}
		if err := cur.Decode(&row); err != nil {
			return nil, fmt.Errorf("decode %s bucket: %w", field, err)
		}
		key := "unknown"
		if row.ID != nil && *row.ID != "" {
			key = *row.ID
		}
		counts[key] = row.Count
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s buckets: %w", field, err)
	}
	return counts, nil
}
