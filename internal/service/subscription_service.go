package service

import (
	"context"
	"strings"
	"time"

	"app/internal/model"
	"app/internal/repository"

	"github.com/rs/zerolog"
)

// PlanFromPriceID derives the internal plan tag from a Stripe price ID by
// substring match, assuming the price catalog keeps "premium"/"pro" in its
// IDs. "premium" wins over "pro" since it contains no "pro" substring today;
// the check order is load-bearing and pinned by tests.
func PlanFromPriceID(priceID string) string {
	switch {
	case strings.Contains(priceID, "premium"):
		return model.PlanPremium
	case strings.Contains(priceID, "pro"):
		return model.PlanPro
	default:
		return model.PlanFree
	}
}

// SubscriptionService defines business logic methods for subscriptions.
type SubscriptionService interface {
	Get(ctx context.Context, userID string) (*model.Subscription, error)
	// GetOrDefault returns the stored subscription, or a synthesized free/active
	// one when the user has no subscription document.
	GetOrDefault(ctx context.Context, userID string) (*model.Subscription, error)
	EnsureDefault(ctx context.Context, userID string) error
	// ReconcileFromStripe applies a subscription.created/updated event: derives
	// the plan from the price ID, upserts the single subscription document and
	// keeps the denormalized user plan tag in sync.
	ReconcileFromStripe(ctx context.Context, userID string, fields repository.StripeSubscriptionFields) error
	// Downgrade handles subscription.deleted: canceled status, free plan.
	Downgrade(ctx context.Context, userID, cancelReason string) error
	// RecordPayment appends to the payment history; failed payments also mark
	// the subscription past_due.
	RecordPayment(ctx context.Context, userID string, rec model.PaymentRecord) error
}

type subscriptionService struct {
	subRepo  repository.SubscriptionRepository
	userRepo repository.UserRepository
	logger   zerolog.Logger
}

// NewSubscriptionService creates a new SubscriptionService with a scoped logger.
func NewSubscriptionService(subRepo repository.SubscriptionRepository, userRepo repository.UserRepository, logger zerolog.Logger) SubscriptionService {
	return &subscriptionService{
		subRepo:  subRepo,
		userRepo: userRepo,
		logger:   logger.With().Str("service", "SubscriptionService").Logger(),
	}
}

func (s *subscriptionService) Get(ctx context.Context, userID string) (*model.Subscription, error) {
	sub, err := s.subRepo.Get(ctx, userID)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to fetch subscription")
		return nil, err
	}
	return sub, nil
}

func (s *subscriptionService) GetOrDefault(ctx context.Context, userID string) (*model.Subscription, error) {
	sub, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		// Absence of a subscription document means the free plan.
		end := time.Now().AddDate(1, 0, 0)
		sub = &model.Subscription{
			UserID:           userID,
			Status:           model.SubscriptionStatusActive,
			Plan:             model.PlanFree,
			CurrentPeriodEnd: &end,
		}
	}
	return sub, nil
}

func (s *subscriptionService) EnsureDefault(ctx context.Context, userID string) error {
	if err := s.subRepo.EnsureDefault(ctx, userID); err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to ensure default subscription")
		return err
	}
	return nil
}

func (s *subscriptionService) ReconcileFromStripe(ctx context.Context, userID string, fields repository.StripeSubscriptionFields) error {
	fields.Plan = PlanFromPriceID(fields.StripePriceID)

	if err := s.subRepo.UpsertStripeSubscription(ctx, userID, fields); err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Str("price_id", fields.StripePriceID).Msg("Failed to upsert stripe subscription")
		return err
	}
	if err := s.userRepo.UpdatePlan(ctx, userID, fields.Plan); err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Str("plan", fields.Plan).Msg("Failed to sync plan onto user")
		return err
	}

	s.logger.Info().Str("user_id", userID).Str("plan", fields.Plan).Str("status", fields.Status).Msg("Subscription reconciled")
	return nil
}

func (s *subscriptionService) Downgrade(ctx context.Context, userID, cancelReason string) error {
	if err := s.subRepo.DowngradeToFree(ctx, userID, cancelReason); err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to downgrade subscription")
		return err
	}
	if err := s.userRepo.UpdatePlan(ctx, userID, model.PlanFree); err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to sync free plan onto user")
		return err
	}

	s.logger.Info().Str("user_id", userID).Msg("Subscription canceled, user downgraded to free")
	return nil
}

func (s *subscriptionService) RecordPayment(ctx context.Context, userID string, rec model.PaymentRecord) error {
	if err := s.subRepo.AppendPayment(ctx, userID, rec); err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to append payment record")
		return err
	}
	if rec.Status == model.PaymentStatusFailed {
		if err := s.subRepo.UpdateStatus(ctx, userID, model.SubscriptionStatusPastDue); err != nil {
			s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to mark subscription past_due")
			return err
		}
	}
	return nil
}
