package handler

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"app/internal/model"
	"app/internal/service"

	"github.com/rs/zerolog"
	svix "github.com/svix/svix-webhooks/go"
)

// clerkEvent is the identity-provider webhook envelope. Only the fields the
// lifecycle handlers need are decoded.
type clerkEvent struct {
	Type string `json:"type"`
	Data struct {
		ID             string `json:"id"`
		FirstName      string `json:"first_name"`
		LastName       string `json:"last_name"`
		EmailAddresses []struct {
			EmailAddress string `json:"email_address"`
		} `json:"email_addresses"`
		DeleteReason string `json:"delete_reason"`
	} `json:"data"`
}

// ClerkWebhookHandler verifies and processes Clerk identity webhooks.
type ClerkWebhookHandler struct {
	userService service.UserService
	wh          *svix.Webhook
	logger      zerolog.Logger
}

func NewClerkWebhookHandler(userService service.UserService, webhookSecret string, logger zerolog.Logger) (*ClerkWebhookHandler, error) {
	wh, err := svix.NewWebhook(webhookSecret)
	if err != nil {
		return nil, err
	}
	return &ClerkWebhookHandler{
		userService: userService,
		wh:          wh,
		logger:      logger.With().Str("handler", "ClerkWebhookHandler").Logger(),
	}, nil
}

// RegisterRoutes mounts the webhook route. No auth middleware: the svix
// signature is the authentication.
func (h *ClerkWebhookHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.Handle("/webhooks/clerk", http.HandlerFunc(h.handleWebhook))
}

func (h *ClerkWebhookHandler) handleWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	if r.Header.Get("svix-id") == "" || r.Header.Get("svix-timestamp") == "" || r.Header.Get("svix-signature") == "" {
		h.logger.Warn().Msg("Clerk webhook missing svix headers")
		writeError(w, http.StatusBadRequest, "missing svix headers", "")
		return
	}

	payload, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read payload", "")
		return
	}
	if err := h.wh.Verify(payload, r.Header); err != nil {
		h.logger.Warn().Err(err).Msg("Clerk webhook signature verification failed")
		writeError(w, http.StatusBadRequest, "signature verification failed", "")
		return
	}

	var event clerkEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload", err.Error())
		return
	}
	h.logger.Info().Str("event_type", event.Type).Str("clerk_id", event.Data.ID).Msg("Clerk webhook received")

	ctx := r.Context()
	switch event.Type {
	case "user.created", "user.updated":
		email := primaryEmail(event)
		if email == "" {
			h.logger.Warn().Str("clerk_id", event.Data.ID).Msg("Identity event without email address")
			writeError(w, http.StatusBadRequest, "no email address in event", "")
			return
		}
		name := strings.TrimSpace(strings.TrimSpace(event.Data.FirstName) + " " + strings.TrimSpace(event.Data.LastName))
		if event.Type == "user.created" {
			_, err = h.userService.CreateFromIdentity(ctx, event.Data.ID, email, name)
		} else {
			_, err = h.userService.UpdateFromIdentity(ctx, event.Data.ID, email, name)
		}
	case "user.deleted":
		err = h.userService.DeleteAndArchive(ctx, event.Data.ID, model.DeletionSourceClerk, event.Data.DeleteReason)
	default:
		h.logger.Warn().Str("event_type", event.Type).Msg("Unhandled Clerk webhook event")
	}
	if err != nil {
		h.logger.Error().Err(err).Str("event_type", event.Type).Str("clerk_id", event.Data.ID).Msg("Failed to process Clerk webhook event")
		writeError(w, http.StatusInternalServerError, "failed to process event", "")
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func primaryEmail(event clerkEvent) string {
	if len(event.Data.EmailAddresses) == 0 {
		return ""
	}
	return event.Data.EmailAddresses[0].EmailAddress
}
