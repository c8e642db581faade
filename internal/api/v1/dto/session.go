package dto

import (
	"time"

	"app/internal/model"
)

type SessionStartDTO struct {
	Category string `json:"category" validate:"required,oneof=focus relax sleep"`
	Duration int    `json:"duration" validate:"required,min=1,max=480"` // planned minutes
}

type SessionCompleteDTO struct {
	SessionID         string               `json:"sessionId" validate:"required"`
	CompletedDuration int                  `json:"completedDuration" validate:"min=0,max=1440"`
	Tracks            []model.SessionTrack `json:"tracks,omitempty"`
}

type SessionResponseDTO struct {
	ID                string     `json:"id"`
	Category          string     `json:"category"`
	Duration          int        `json:"duration"`
	CompletedDuration int        `json:"completedDuration"`
	StartedAt         time.Time  `json:"startedAt"`
	EndedAt           *time.Time `json:"endedAt,omitempty"`
	IsCompleted       bool       `json:"isCompleted"`
}
