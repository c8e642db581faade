package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"app/internal/api/v1/dto"
	"app/internal/middleware"
	"app/internal/model"
	"app/internal/service"

	"github.com/go-playground/validator/v10"
)

type UserHandler struct {
	userService service.UserService
	validate    *validator.Validate
}

func NewUserHandler(userService service.UserService, v *validator.Validate) *UserHandler {
	return &UserHandler{userService: userService, validate: v}
}

// RegisterRoutes mounts v1 user routes
func (h *UserHandler) RegisterRoutes(mux *http.ServeMux, authMw func(http.Handler) http.Handler) {
	mux.Handle("/users/me", authMw(http.HandlerFunc(h.getProfile)))
	mux.Handle("/users/me/preferences", authMw(http.HandlerFunc(h.updatePreferences)))
}

func (h *UserHandler) getProfile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}
	userID, ok := r.Context().Value(middleware.UserContextKey).(string)
	if !ok || userID == "" {
		writeError(w, http.StatusUnauthorized, "user ID not found in context", "")
		return
	}

	user, sub, err := h.userService.GetProfile(r.Context(), userID)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			writeError(w, http.StatusNotFound, "user not found", "")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to fetch profile", "")
		return
	}

	resp := dto.ProfileResponseDTO{
		ClerkID:     user.ClerkID,
		Email:       user.Email,
		Name:        user.Name,
		Plan:        user.Plan,
		Preferences: user.Preferences,
		Stats:       user.Stats,
		CreatedAt:   user.CreatedAt,
	}
	if sub != nil {
		resp.Subscription = dto.SubscriptionResponseDTO{
			Plan:               sub.Plan,
			Status:             sub.Status,
			CurrentPeriodStart: sub.CurrentPeriodStart,
			CurrentPeriodEnd:   sub.CurrentPeriodEnd,
			CancelAtPeriodEnd:  sub.CancelAtPeriodEnd,
			TrialEnd:           sub.TrialEnd,
		}
	} else {
		resp.Subscription = dto.SubscriptionResponseDTO{
			Plan:   model.PlanFree,
			Status: model.SubscriptionStatusActive,
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *UserHandler) updatePreferences(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}
	userID, ok := r.Context().Value(middleware.UserContextKey).(string)
	if !ok || userID == "" {
		writeError(w, http.StatusUnauthorized, "user ID not found in context", "")
		return
	}

	var req dto.PreferencesUpdateDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON payload", err.Error())
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		writeError(w, http.StatusBadRequest, "validation failed", err.Error())
		return
	}

	prefs := model.Preferences{
		FavoriteCategory:     req.FavoriteCategory,
		PreferredDuration:    req.PreferredDuration,
		Volume:               req.Volume,
		InterfaceTheme:       req.InterfaceTheme,
		NotificationsEnabled: req.NotificationsEnabled,
		WeeklyReportEnabled:  req.WeeklyReportEnabled,
	}
	user, err := h.userService.UpdatePreferences(r.Context(), userID, prefs)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			writeError(w, http.StatusNotFound, "user not found", "")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to update preferences", "")
		return
	}

	writeJSON(w, http.StatusOK, user.Preferences)
}
