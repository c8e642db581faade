package service

import (
	"context"
	"errors"
	"time"

	"app/internal/model"
	"app/internal/repository"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var ErrSessionNotFound = errors.New("session not found or already completed")

// SessionService tracks listening sessions and rolls completed sessions into
// the user's usage stats.
type SessionService interface {
	Start(ctx context.Context, userID, category string, duration int) (*model.Session, error)
	Complete(ctx context.Context, userID string, sessionID primitive.ObjectID, completedDuration int, tracks []model.SessionTrack) (*model.Session, error)
}

type sessionService struct {
	sessionRepo repository.SessionRepository
	userRepo    repository.UserRepository
	logger      zerolog.Logger
	now         func() time.Time
}

// NewSessionService creates a new SessionService with a scoped logger.
func NewSessionService(sessionRepo repository.SessionRepository, userRepo repository.UserRepository, logger zerolog.Logger) SessionService {
	return &sessionService{
		sessionRepo: sessionRepo,
		userRepo:    userRepo,
		logger:      logger.With().Str("service", "SessionService").Logger(),
		now:         time.Now,
	}
}

func (s *sessionService) Start(ctx context.Context, userID, category string, duration int) (*model.Session, error) {
	sess := &model.Session{
		UserID:    userID,
		Category:  category,
		Duration:  duration,
		StartedAt: s.now(),
	}
	if err := s.sessionRepo.Insert(ctx, sess); err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to start session")
		return nil, err
	}
	return sess, nil
}

func (s *sessionService) Complete(ctx context.Context, userID string, sessionID primitive.ObjectID, completedDuration int, tracks []model.SessionTrack) (*model.Session, error) {
	endedAt := s.now()
	sess, err := s.sessionRepo.Complete(ctx, sessionID, userID, completedDuration, tracks, endedAt)
	if err != nil {
		s.logger.Error().Err(err).Str("session_id", sessionID.Hex()).Msg("Failed to complete session")
		return nil, err
	}
	if sess == nil {
		return nil, ErrSessionNotFound
	}

	user, err := s.userRepo.GetByClerkID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		s.logger.Warn().Str("user_id", userID).Msg("Completed session for unknown user, skipping stats rollup")
		return sess, nil
	}

	streak := nextStreak(user.Stats.StreakDays, user.Stats.LastSessionDate, endedAt)
	if err := s.userRepo.ApplySessionStats(ctx, userID, sess.Category, completedDuration, streak, endedAt); err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to roll session into usage stats")
		return nil, err
	}

	s.logger.Info().Str("user_id", userID).Str("category", sess.Category).Int("minutes", completedDuration).Msg("Session completed")
	return sess, nil
}

// nextStreak computes the consecutive-day counter. Same calendar day leaves it
// unchanged, the day after the last session extends it, anything older resets
// to 1.
func nextStreak(current int, last *time.Time, now time.Time) int {
	if last == nil {
		return 1
	}
	today := dateOf(now)
	lastDay := dateOf(*last)
	switch {
	case lastDay.Equal(today):
		if current < 1 {
			return 1
		}
		return current
	case lastDay.Equal(today.AddDate(0, 0, -1)):
		return current + 1
	default:
		return 1
	}
}

func dateOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
