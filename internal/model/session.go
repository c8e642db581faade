package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// SessionTrack records how long a single track played within a session.
type SessionTrack struct {
	TrackID        string `bson:"trackId" json:"trackId"`
	PlayedDuration int    `bson:"playedDuration" json:"playedDuration"` // minutes
}

// Session is one listening session. Completing a session rolls its minutes
// into the owning user's denormalized usage stats.
type Session struct {
	ID                primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	UserID            string             `bson:"userId" json:"userId"`
	Category          string             `bson:"category" json:"category"`
	Duration          int                `bson:"duration" json:"duration"` // planned minutes
	CompletedDuration int                `bson:"completedDuration" json:"completedDuration"`
	StartedAt         time.Time          `bson:"startedAt" json:"startedAt"`
	EndedAt           *time.Time         `bson:"endedAt,omitempty" json:"endedAt,omitempty"`
	Tracks            []SessionTrack     `bson:"tracks,omitempty" json:"tracks,omitempty"`
	IsCompleted       bool               `bson:"isCompleted" json:"isCompleted"`
}
