package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Music categories a user can listen to.
const (
	CategoryFocus = "focus"
	CategoryRelax = "relax"
	CategorySleep = "sleep"
)

// Preferences is the per-user settings bag. All fields are optional; absent
// fields fall back to client-side defaults.
type Preferences struct {
	FavoriteCategory     string `bson:"favoriteCategory,omitempty" json:"favoriteCategory,omitempty"`
	PreferredDuration    int    `bson:"preferredDuration,omitempty" json:"preferredDuration,omitempty"` // minutes
	Volume               *int   `bson:"volume,omitempty" json:"volume,omitempty"`
	InterfaceTheme       string `bson:"interfaceTheme,omitempty" json:"interfaceTheme,omitempty"`
	NotificationsEnabled *bool  `bson:"notificationsEnabled,omitempty" json:"notificationsEnabled,omitempty"`
	WeeklyReportEnabled  *bool  `bson:"weeklyReportEnabled,omitempty" json:"weeklyReportEnabled,omitempty"`
}

// UsageStats is denormalized listening history kept on the user document so
// profile reads stay a single point lookup.
type UsageStats struct {
	TotalSessionsCompleted int            `bson:"totalSessionsCompleted" json:"totalSessionsCompleted"`
	TotalMinutesListened   int            `bson:"totalMinutesListened" json:"totalMinutesListened"`
	StreakDays             int            `bson:"streakDays" json:"streakDays"`
	LastSessionDate        *time.Time     `bson:"lastSessionDate,omitempty" json:"lastSessionDate,omitempty"`
	CategoriesUsage        map[string]int `bson:"categoriesUsage,omitempty" json:"categoriesUsage,omitempty"`
}

// User mirrors the users collection. ClerkID is the natural key; a unique
// index on it is what makes identity-webhook replays safe.
type User struct {
	ID               primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	ClerkID          string             `bson:"clerkId" json:"clerkId"`
	Email            string             `bson:"email" json:"email"`
	Name             string             `bson:"name,omitempty" json:"name,omitempty"`
	StripeCustomerID *string            `bson:"stripeCustomerId,omitempty" json:"stripeCustomerId,omitempty"`
	Plan             string             `bson:"plan" json:"plan"`
	Preferences      Preferences        `bson:"preferences" json:"preferences"`
	Stats            UsageStats         `bson:"stats" json:"stats"`
	CreatedAt        time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt        time.Time          `bson:"updatedAt" json:"updatedAt"`
}
