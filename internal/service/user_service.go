package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"app/internal/model"
	"app/internal/repository"

	"github.com/rs/zerolog"
)

var ErrUserNotFound = errors.New("user not found")

// UserService owns the identity-provider side of the user lifecycle plus the
// deletion archive.
type UserService interface {
	// CreateFromIdentity handles a user.created event: upserts the user keyed
	// by clerkId and seeds the companion free subscription.
	CreateFromIdentity(ctx context.Context, clerkID, email, name string) (*model.User, error)
	// UpdateFromIdentity handles a user.updated event. Plan and subscription
	// are never touched here.
	UpdateFromIdentity(ctx context.Context, clerkID, email, name string) (*model.User, error)
	// DeleteAndArchive snapshots the user into deleted_users and only then
	// removes the live user and subscription documents.
	DeleteAndArchive(ctx context.Context, clerkID, source, reason string) error
	Get(ctx context.Context, clerkID string) (*model.User, error)
	GetProfile(ctx context.Context, clerkID string) (*model.User, *model.Subscription, error)
	UpdatePreferences(ctx context.Context, clerkID string, prefs model.Preferences) (*model.User, error)
	// ListDeletedUsers returns one page of the archive plus the total match
	// count for pagination.
	ListDeletedUsers(ctx context.Context, opts repository.DeletedUserListOptions) ([]model.DeletedUser, int64, error)
	DeletedUserStats(ctx context.Context) (*model.DeletedUserStats, error)
}

type userService struct {
	userRepo    repository.UserRepository
	subRepo     repository.SubscriptionRepository
	deletedRepo repository.DeletedUserRepository
	logger      zerolog.Logger
}

// NewUserService creates a new UserService with a scoped logger.
func NewUserService(userRepo repository.UserRepository, subRepo repository.SubscriptionRepository, deletedRepo repository.DeletedUserRepository, logger zerolog.Logger) UserService {
	return &userService{
		userRepo:    userRepo,
		subRepo:     subRepo,
		deletedRepo: deletedRepo,
		logger:      logger.With().Str("service", "UserService").Logger(),
	}
}

func (s *userService) CreateFromIdentity(ctx context.Context, clerkID, email, name string) (*model.User, error) {
	user, err := s.userRepo.UpsertIdentity(ctx, clerkID, email, name)
	if err != nil {
		s.logger.Error().Err(err).Str("clerk_id", clerkID).Msg("Failed to create user from identity event")
		return nil, err
	}

	// The user and subscription writes are not transactional. If this second
	// write is lost, readers treat the missing subscription as the free plan,
	// and the provider's redelivery converges both.
	if err := s.subRepo.EnsureDefault(ctx, clerkID); err != nil {
		s.logger.Error().Err(err).Str("clerk_id", clerkID).Msg("Failed to create default subscription")
		return nil, err
	}

	s.logger.Info().Str("clerk_id", clerkID).Msg("User created")
	return user, nil
}

func (s *userService) UpdateFromIdentity(ctx context.Context, clerkID, email, name string) (*model.User, error) {
	user, err := s.userRepo.UpsertIdentity(ctx, clerkID, email, name)
	if err != nil {
		s.logger.Error().Err(err).Str("clerk_id", clerkID).Msg("Failed to update user from identity event")
		return nil, err
	}
	return user, nil
}

func (s *userService) DeleteAndArchive(ctx context.Context, clerkID, source, reason string) error {
	user, err := s.userRepo.GetByClerkID(ctx, clerkID)
	if err != nil {
		return err
	}
	if user == nil {
		// Already gone; deletion events are replayed by the provider.
		s.logger.Warn().Str("clerk_id", clerkID).Msg("Delete event for unknown user, skipping")
		return nil
	}

	sub, err := s.subRepo.Get(ctx, clerkID)
	if err != nil {
		return err
	}

	createdAt := user.CreatedAt
	archive := &model.DeletedUser{
		ClerkID:          user.ClerkID,
		Email:            user.Email,
		Name:             user.Name,
		StripeCustomerID: user.StripeCustomerID,
		Plan:             user.Plan,
		DeletedAt:        time.Now(),
		CreatedAt:        &createdAt,
		UsageStats:       user.Stats,
		DeletionReason:   reason,
		DeletionSource:   source,
	}
	if sub != nil {
		archive.SubscriptionInfo = model.SubscriptionSummary{
			Plan:         sub.Plan,
			Status:       sub.Status,
			CancelReason: sub.CancelReason,
		}
	}

	// Archive first, always. A crash after this point loses nothing; a crash
	// before it leaves the live records for the retry.
	if err := s.deletedRepo.Insert(ctx, archive); err != nil {
		s.logger.Error().Err(err).Str("clerk_id", clerkID).Msg("Failed to archive user before deletion")
		return err
	}

	if _, err := s.userRepo.Delete(ctx, clerkID); err != nil {
		s.logger.Error().Err(err).Str("clerk_id", clerkID).Msg("Failed to delete user after archiving")
		return err
	}
	if _, err := s.subRepo.Delete(ctx, clerkID); err != nil {
		s.logger.Error().Err(err).Str("clerk_id", clerkID).Msg("Failed to delete subscription after archiving")
		return err
	}

	s.logger.Info().Str("clerk_id", clerkID).Str("source", source).Msg("User archived and deleted")
	return nil
}

func (s *userService) Get(ctx context.Context, clerkID string) (*model.User, error) {
	user, err := s.userRepo.GetByClerkID(ctx, clerkID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, fmt.Errorf("%w: %s", ErrUserNotFound, clerkID)
	}
	return user, nil
}

func (s *userService) GetProfile(ctx context.Context, clerkID string) (*model.User, *model.Subscription, error) {
	user, err := s.Get(ctx, clerkID)
	if err != nil {
		return nil, nil, err
	}
	sub, err := s.subRepo.Get(ctx, clerkID)
	if err != nil {
		return nil, nil, err
	}
	return user, sub, nil
}

func (s *userService) UpdatePreferences(ctx context.Context, clerkID string, prefs model.Preferences) (*model.User, error) {
	user, err := s.userRepo.UpdatePreferences(ctx, clerkID, prefs)
	if err != nil {
		s.logger.Error().Err(err).Str("clerk_id", clerkID).Msg("Failed to update preferences")
		return nil, err
	}
	if user == nil {
		return nil, fmt.Errorf("%w: %s", ErrUserNotFound, clerkID)
	}
	return user, nil
}

func (s *userService) ListDeletedUsers(ctx context.Context, opts repository.DeletedUserListOptions) ([]model.DeletedUser, int64, error) {
	users, err := s.deletedRepo.List(ctx, opts)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to list deleted users")
		return nil, 0, err
	}
	total, err := s.deletedRepo.Count(ctx, opts)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to count deleted users")
		return nil, 0, err
	}
	return users, total, nil
}

func (s *userService) DeletedUserStats(ctx context.Context) (*model.DeletedUserStats, error) {
	stats, err := s.deletedRepo.Stats(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to aggregate deleted user stats")
		return nil, err
	}
	return stats, nil
}
