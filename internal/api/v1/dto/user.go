package dto

import (
	"time"

	"app/internal/model"
)

// PreferencesUpdateDTO carries the full preference bag; the document field is
// replaced wholesale, so clients send every preference they want kept.
type PreferencesUpdateDTO struct {
	FavoriteCategory     string `json:"favoriteCategory,omitempty" validate:"omitempty,oneof=focus relax sleep"`
	PreferredDuration    int    `json:"preferredDuration,omitempty" validate:"omitempty,min=1,max=480"`
	Volume               *int   `json:"volume,omitempty" validate:"omitempty,min=0,max=100"`
	InterfaceTheme       string `json:"interfaceTheme,omitempty" validate:"omitempty,oneof=light dark system"`
	NotificationsEnabled *bool  `json:"notificationsEnabled,omitempty"`
	WeeklyReportEnabled  *bool  `json:"weeklyReportEnabled,omitempty"`
}

// ProfileResponseDTO joins the user document with its subscription view.
type ProfileResponseDTO struct {
	ClerkID      string                  `json:"clerkId"`
	Email        string                  `json:"email"`
	Name         string                  `json:"name,omitempty"`
	Plan         string                  `json:"plan"`
	Preferences  model.Preferences       `json:"preferences"`
	Stats        model.UsageStats        `json:"stats"`
	Subscription SubscriptionResponseDTO `json:"subscription"`
	CreatedAt    time.Time               `json:"createdAt"`
}
