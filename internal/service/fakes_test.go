package service

import (
	"context"
	"time"

	"app/internal/model"
	"app/internal/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// In-memory fakes over the repository interfaces. Each fake appends to calls
// so tests can assert operation ordering.

type fakeUserRepo struct {
	users map[string]*model.User
	calls []string

	upsertErr error
	deleteErr error
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: map[string]*model.User{}}
}

func (f *fakeUserRepo) UpsertIdentity(ctx context.Context, clerkID, email, name string) (*model.User, error) {
	f.calls = append(f.calls, "UpsertIdentity")
	if f.upsertErr != nil {
		return nil, f.upsertErr
	}
	u, ok := f.users[clerkID]
	if !ok {
		u = &model.User{ClerkID: clerkID, Plan: model.PlanFree, CreatedAt: time.Now()}
		f.users[clerkID] = u
	}
	u.Email = email
	if name != "" {
		u.Name = name
	}
	u.UpdatedAt = time.Now()
	return u, nil
}

func (f *fakeUserRepo) GetByClerkID(ctx context.Context, clerkID string) (*model.User, error) {
	f.calls = append(f.calls, "GetByClerkID")
	return f.users[clerkID], nil
}

func (f *fakeUserRepo) GetByStripeCustomerID(ctx context.Context, customerID string) (*model.User, error) {
	f.calls = append(f.calls, "GetByStripeCustomerID")
	for _, u := range f.users {
		if u.StripeCustomerID != nil && *u.StripeCustomerID == customerID {
			return u, nil
		}
	}
	return nil, nil
}

func (f *fakeUserRepo) UpdateStripeCustomerID(ctx context.Context, clerkID, customerID string) error {
	f.calls = append(f.calls, "UpdateStripeCustomerID")
	if u, ok := f.users[clerkID]; ok {
		u.StripeCustomerID = &customerID
	}
	return nil
}

func (f *fakeUserRepo) UpdatePlan(ctx context.Context, clerkID, plan string) error {
	f.calls = append(f.calls, "UpdatePlan")
	if u, ok := f.users[clerkID]; ok {
		u.Plan = plan
	}
	return nil
}

func (f *fakeUserRepo) UpdatePreferences(ctx context.Context, clerkID string, prefs model.Preferences) (*model.User, error) {
	f.calls = append(f.calls, "UpdatePreferences")
	u, ok := f.users[clerkID]
	if !ok {
		return nil, nil
	}
	u.Preferences = prefs
	return u, nil
}

func (f *fakeUserRepo) ApplySessionStats(ctx context.Context, clerkID, category string, minutes, streakDays int, sessionDate time.Time) error {
	f.calls = append(f.calls, "ApplySessionStats")
	u, ok := f.users[clerkID]
	if !ok {
		return nil
	}
	u.Stats.TotalSessionsCompleted++
	u.Stats.TotalMinutesListened += minutes
	u.Stats.StreakDays = streakDays
	d := sessionDate
	u.Stats.LastSessionDate = &d
	if u.Stats.CategoriesUsage == nil {
		u.Stats.CategoriesUsage = map[string]int{}
	}
	u.Stats.CategoriesUsage[category]++
	return nil
}

func (f *fakeUserRepo) Delete(ctx context.Context, clerkID string) (bool, error) {
	f.calls = append(f.calls, "Delete")
	if f.deleteErr != nil {
		return false, f.deleteErr
	}
	_, ok := f.users[clerkID]
	delete(f.users, clerkID)
	return ok, nil
}

type fakeSubRepo struct {
	subs  map[string]*model.Subscription
	calls []string
}

func newFakeSubRepo() *fakeSubRepo {
	return &fakeSubRepo{subs: map[string]*model.Subscription{}}
}

func (f *fakeSubRepo) Get(ctx context.Context, userID string) (*model.Subscription, error) {
	f.calls = append(f.calls, "Get")
	return f.subs[userID], nil
}

func (f *fakeSubRepo) EnsureDefault(ctx context.Context, userID string) error {
	f.calls = append(f.calls, "EnsureDefault")
	if _, ok := f.subs[userID]; !ok {
		f.subs[userID] = &model.Subscription{
			UserID: userID,
			Status: model.SubscriptionStatusActive,
			Plan:   model.PlanFree,
		}
	}
	return nil
}

func (f *fakeSubRepo) UpsertStripeSubscription(ctx context.Context, userID string, fields repository.StripeSubscriptionFields) error {
	f.calls = append(f.calls, "UpsertStripeSubscription")
	s, ok := f.subs[userID]
	if !ok {
		s = &model.Subscription{UserID: userID}
		f.subs[userID] = s
	}
	s.StripeCustomerID = fields.StripeCustomerID
	s.StripeSubscriptionID = fields.StripeSubscriptionID
	s.StripePriceID = fields.StripePriceID
	s.Status = fields.Status
	s.Plan = fields.Plan
	start, end := fields.CurrentPeriodStart, fields.CurrentPeriodEnd
	s.CurrentPeriodStart = &start
	s.CurrentPeriodEnd = &end
	s.CancelAtPeriodEnd = fields.CancelAtPeriodEnd
	s.TrialStart = fields.TrialStart
	s.TrialEnd = fields.TrialEnd
	if fields.Plan != model.PlanFree {
		now := time.Now()
		if s.FirstPurchaseDate == nil {
			s.FirstPurchaseDate = &now
		}
		s.LatestPurchaseDate = &now
	}
	return nil
}

func (f *fakeSubRepo) DowngradeToFree(ctx context.Context, userID, cancelReason string) error {
	f.calls = append(f.calls, "DowngradeToFree")
	s, ok := f.subs[userID]
	if !ok {
		return nil
	}
	s.Status = model.SubscriptionStatusCanceled
	s.Plan = model.PlanFree
	s.CancelAtPeriodEnd = true
	if cancelReason != "" {
		s.CancelReason = cancelReason
	}
	return nil
}

func (f *fakeSubRepo) AppendPayment(ctx context.Context, userID string, rec model.PaymentRecord) error {
	f.calls = append(f.calls, "AppendPayment")
	s, ok := f.subs[userID]
	if !ok {
		s = &model.Subscription{UserID: userID, Status: model.SubscriptionStatusActive, Plan: model.PlanFree}
		f.subs[userID] = s
	}
	s.PaymentHistory = append(s.PaymentHistory, rec)
	return nil
}

func (f *fakeSubRepo) UpdateStatus(ctx context.Context, userID, status string) error {
	f.calls = append(f.calls, "UpdateStatus")
	if s, ok := f.subs[userID]; ok {
		s.Status = status
	}
	return nil
}

func (f *fakeSubRepo) Delete(ctx context.Context, userID string) (bool, error) {
	f.calls = append(f.calls, "DeleteSub")
	_, ok := f.subs[userID]
	delete(f.subs, userID)
	return ok, nil
}

type fakeDeletedRepo struct {
	archived  []*model.DeletedUser
	calls     []string
	insertErr error
}

func newFakeDeletedRepo() *fakeDeletedRepo { return &fakeDeletedRepo{} }

func (f *fakeDeletedRepo) Insert(ctx context.Context, du *model.DeletedUser) error {
	f.calls = append(f.calls, "Archive")
	if f.insertErr != nil {
		return f.insertErr
	}
	f.archived = append(f.archived, du)
	return nil
}

func (f *fakeDeletedRepo) GetByClerkID(ctx context.Context, clerkID string) (*model.DeletedUser, error) {
	for _, du := range f.archived {
		if du.ClerkID == clerkID {
			return du, nil
		}
	}
	return nil, nil
}

func (f *fakeDeletedRepo) List(ctx context.Context, opts repository.DeletedUserListOptions) ([]model.DeletedUser, error) {
	out := make([]model.DeletedUser, 0, len(f.archived))
	for _, du := range f.archived {
		out = append(out, *du)
	}
	return out, nil
}

func (f *fakeDeletedRepo) Count(ctx context.Context, opts repository.DeletedUserListOptions) (int64, error) {
	return int64(len(f.archived)), nil
}

func (f *fakeDeletedRepo) Stats(ctx context.Context) (*model.DeletedUserStats, error) {
	stats := &model.DeletedUserStats{
		TotalDeleted: int64(len(f.archived)),
		ByReason:     map[string]int64{},
		BySource:     map[string]int64{},
		ByMonth:      map[string]int64{},
	}
	for _, du := range f.archived {
		reason := du.DeletionReason
		if reason == "" {
			reason = "unknown"
		}
		stats.ByReason[reason]++
		stats.BySource[du.DeletionSource]++
		stats.ByMonth[du.DeletedAt.Format("2006-01")]++
	}
	return stats, nil
}

type fakeSessionRepo struct {
	sessions map[primitive.ObjectID]*model.Session
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{sessions: map[primitive.ObjectID]*model.Session{}}
}

func (f *fakeSessionRepo) Insert(ctx context.Context, s *model.Session) error {
	s.ID = primitive.NewObjectID()
	cp := *s
	f.sessions[s.ID] = &cp
	return nil
}

func (f *fakeSessionRepo) Complete(ctx context.Context, id primitive.ObjectID, userID string, completedDuration int, tracks []model.SessionTrack, endedAt time.Time) (*model.Session, error) {
	s, ok := f.sessions[id]
	if !ok || s.UserID != userID || s.IsCompleted {
		return nil, nil
	}
	s.CompletedDuration = completedDuration
	if len(tracks) > 0 {
		s.Tracks = tracks
	}
	e := endedAt
	s.EndedAt = &e
	s.IsCompleted = true
	return s, nil
}
