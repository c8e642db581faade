package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"app/internal/model"
	"app/internal/repository"

	"github.com/rs/zerolog"
	svix "github.com/svix/svix-webhooks/go"
)

const testClerkSecret = "whsec_MfKQ9r8GKYqrTwjUPD8ILPZIo2LaLaSw"

// fakeUserService records lifecycle calls from the webhook handler.
type fakeUserService struct {
	created []string
	updated []string
	deleted []string

	listOpts  *repository.DeletedUserListOptions
	listUsers []model.DeletedUser
	listTotal int64
	stats     *model.DeletedUserStats
}

func (f *fakeUserService) CreateFromIdentity(ctx context.Context, clerkID, email, name string) (*model.User, error) {
	f.created = append(f.created, clerkID+"|"+email+"|"+name)
	return &model.User{ClerkID: clerkID, Email: email, Name: name, Plan: model.PlanFree}, nil
}

func (f *fakeUserService) UpdateFromIdentity(ctx context.Context, clerkID, email, name string) (*model.User, error) {
	f.updated = append(f.updated, clerkID+"|"+email+"|"+name)
	return &model.User{ClerkID: clerkID, Email: email, Name: name}, nil
}

func (f *fakeUserService) DeleteAndArchive(ctx context.Context, clerkID, source, reason string) error {
	f.deleted = append(f.deleted, clerkID+"|"+source+"|"+reason)
	return nil
}

func (f *fakeUserService) Get(ctx context.Context, clerkID string) (*model.User, error) {
	return &model.User{ClerkID: clerkID}, nil
}

func (f *fakeUserService) GetProfile(ctx context.Context, clerkID string) (*model.User, *model.Subscription, error) {
	return &model.User{ClerkID: clerkID}, nil, nil
}

func (f *fakeUserService) UpdatePreferences(ctx context.Context, clerkID string, prefs model.Preferences) (*model.User, error) {
	return &model.User{ClerkID: clerkID, Preferences: prefs}, nil
}

func (f *fakeUserService) ListDeletedUsers(ctx context.Context, opts repository.DeletedUserListOptions) ([]model.DeletedUser, int64, error) {
	f.listOpts = &opts
	return f.listUsers, f.listTotal, nil
}

func (f *fakeUserService) DeletedUserStats(ctx context.Context) (*model.DeletedUserStats, error) {
	if f.stats != nil {
		return f.stats, nil
	}
	return &model.DeletedUserStats{}, nil
}

func newClerkHandler(t *testing.T, svc *fakeUserService) *ClerkWebhookHandler {
	t.Helper()
	h, err := NewClerkWebhookHandler(svc, testClerkSecret, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewClerkWebhookHandler: %v", err)
	}
	return h
}

// signedClerkRequest signs the payload the way the identity provider does.
func signedClerkRequest(t *testing.T, payload string) *http.Request {
	t.Helper()
	wh, err := svix.NewWebhook(testClerkSecret)
	if err != nil {
		t.Fatalf("svix.NewWebhook: %v", err)
	}
	msgID := "msg_test"
	now := time.Now()
	sig, err := wh.Sign(msgID, now, []byte(payload))
	if err != nil {
		t.Fatalf("sign payload: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/webhooks/clerk", bytes.NewBufferString(payload))
	req.Header.Set("svix-id", msgID)
	req.Header.Set("svix-timestamp", strconv.FormatInt(now.Unix(), 10))
	req.Header.Set("svix-signature", sig)
	return req
}

func TestClerkWebhookMissingHeaders(t *testing.T) {
	h := newClerkHandler(t, &fakeUserService{})

	req := httptest.NewRequest(http.MethodPost, "/webhooks/clerk", bytes.NewBufferString(`{}`))
	rec := httptest.NewRecorder()
	h.handleWebhook(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestClerkWebhookBadSignature(t *testing.T) {
	h := newClerkHandler(t, &fakeUserService{})

	req := httptest.NewRequest(http.MethodPost, "/webhooks/clerk", bytes.NewBufferString(`{}`))
	req.Header.Set("svix-id", "msg_x")
	req.Header.Set("svix-timestamp", "1750000000")
	req.Header.Set("svix-signature", "v1,bm90LXRoZS1yZWFsLXNpZ25hdHVyZQ==")
	rec := httptest.NewRecorder()
	h.handleWebhook(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestClerkWebhookUserCreated(t *testing.T) {
	svc := &fakeUserService{}
	h := newClerkHandler(t, svc)

	payload := `{
		"type": "user.created",
		"data": {
			"id": "user_abc",
			"first_name": "Ada",
			"last_name": "Lovelace",
			"email_addresses": [{"email_address": "ada@example.com"}]
		}
	}`
	rec := httptest.NewRecorder()
	h.handleWebhook(rec, signedClerkRequest(t, payload))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body: %s", rec.Code, rec.Body.String())
	}
	var body map[string]bool
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil || !body["success"] {
		t.Errorf("unexpected body: %s", rec.Body.String())
	}
	if len(svc.created) != 1 || svc.created[0] != "user_abc|ada@example.com|Ada Lovelace" {
		t.Errorf("created = %v", svc.created)
	}
}

func TestClerkWebhookUserCreatedWithoutEmail(t *testing.T) {
	svc := &fakeUserService{}
	h := newClerkHandler(t, svc)

	payload := `{"type": "user.created", "data": {"id": "user_abc", "email_addresses": []}}`
	rec := httptest.NewRecorder()
	h.handleWebhook(rec, signedClerkRequest(t, payload))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if len(svc.created) != 0 {
		t.Errorf("no user should be created without email, got %v", svc.created)
	}
}

func TestClerkWebhookUserDeleted(t *testing.T) {
	svc := &fakeUserService{}
	h := newClerkHandler(t, svc)

	payload := `{"type": "user.deleted", "data": {"id": "user_abc"}}`
	rec := httptest.NewRecorder()
	h.handleWebhook(rec, signedClerkRequest(t, payload))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body: %s", rec.Code, rec.Body.String())
	}
	if len(svc.deleted) != 1 || svc.deleted[0] != "user_abc|clerk|" {
		t.Errorf("deleted = %v", svc.deleted)
	}
}

func TestClerkWebhookUnknownEventAccepted(t *testing.T) {
	svc := &fakeUserService{}
	h := newClerkHandler(t, svc)

	payload := `{"type": "organization.created", "data": {"id": "org_1"}}`
	rec := httptest.NewRecorder()
	h.handleWebhook(rec, signedClerkRequest(t, payload))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body: %s", rec.Code, rec.Body.String())
	}
	if len(svc.created)+len(svc.updated)+len(svc.deleted) != 0 {
		t.Error("unknown event must not touch the user service")
	}
}
