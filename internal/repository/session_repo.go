package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"app/internal/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const sessionCollection = "sessions"

// SessionRepository defines methods for accessing listening-session documents.
type SessionRepository interface {
	Insert(ctx context.Context, s *model.Session) error
	// Complete marks the session finished and returns the updated document.
	// Only sessions owned by userID can be completed.
	Complete(ctx context.Context, id primitive.ObjectID, userID string, completedDuration int, tracks []model.SessionTrack, endedAt time.Time) (*model.Session, error)
}

type sessionRepo struct {
	coll *mongo.Collection
}

func NewSessionRepo(db *mongo.Database) SessionRepository {
	return &sessionRepo{coll: db.Collection(sessionCollection)}
}

func (r *sessionRepo) Insert(ctx context.Context, s *model.Session) error {
	res, err := r.coll.InsertOne(ctx, s)
	if err != nil {
		return fmt.Errorf("insert session for user %s: %w", s.UserID, err)
	}
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		s.ID = oid
	}
	return nil
}

func (r *sessionRepo) Complete(ctx context.Context, id primitive.ObjectID, userID string, completedDuration int, tracks []model.SessionTrack, endedAt time.Time) (*model.Session, error) {
	set := bson.M{
		"completedDuration": completedDuration,
		"endedAt":           endedAt,
		"isCompleted":       true,
	}
	if len(tracks) > 0 {
		set["tracks"] = tracks
	}
	// isCompleted in the filter keeps a double-complete from counting twice.
	filter := bson.M{"_id": id, "userId": userID, "isCompleted": false}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var s model.Session
	if err := r.coll.FindOneAndUpdate(ctx, filter, bson.M{"$set": set}, opts).Decode(&s); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("complete session %s: %w", id.Hex(), err)
	}
	return &s, nil
}
