package handler

import (
	"net/http"
	"strconv"
	"time"

	"app/internal/api/v1/dto"
	"app/internal/repository"
	"app/internal/service"

	"github.com/rs/zerolog"
)

const (
	defaultDeletedUsersLimit = 50
	maxDeletedUsersLimit     = 100
)

// AdminHandler exposes the deleted-user archive to operators.
type AdminHandler struct {
	userService service.UserService
	logger      zerolog.Logger
}

func NewAdminHandler(userService service.UserService, logger zerolog.Logger) *AdminHandler {
	return &AdminHandler{
		userService: userService,
		logger:      logger.With().Str("handler", "AdminHandler").Logger(),
	}
}

// RegisterRoutes mounts v1 admin routes behind auth plus the admin allowlist.
func (h *AdminHandler) RegisterRoutes(mux *http.ServeMux, authMw, adminMw func(http.Handler) http.Handler) {
	mux.Handle("/admin/deleted-users", authMw(adminMw(http.HandlerFunc(h.listDeletedUsers))))
}

func (h *AdminHandler) listDeletedUsers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	q := r.URL.Query()
	opts := repository.DeletedUserListOptions{
		Limit:     parseIntParam(q.Get("limit"), defaultDeletedUsersLimit),
		Skip:      parseIntParam(q.Get("skip"), 0),
		SortBy:    q.Get("sortBy"),
		SortOrder: q.Get("sortOrder"),
		Source:    q.Get("source"),
	}
	if opts.Limit < 1 {
		opts.Limit = defaultDeletedUsersLimit
	}
	if opts.Limit > maxDeletedUsersLimit {
		opts.Limit = maxDeletedUsersLimit
	}
	if opts.Skip < 0 {
		opts.Skip = 0
	}

	var err error
	if opts.FromDate, err = parseDateParam(q.Get("fromDate")); err != nil {
		writeError(w, http.StatusBadRequest, "invalid fromDate", q.Get("fromDate"))
		return
	}
	if opts.ToDate, err = parseDateParam(q.Get("toDate")); err != nil {
		writeError(w, http.StatusBadRequest, "invalid toDate", q.Get("toDate"))
		return
	}

	users, total, err := h.userService.ListDeletedUsers(r.Context(), opts)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list deleted users", "")
		return
	}

	resp := dto.DeletedUserListResponseDTO{
		Users: users,
		Pagination: dto.PaginationDTO{
			Limit:   opts.Limit,
			Skip:    opts.Skip,
			Total:   int(total),
			HasMore: opts.Skip+int64(len(users)) < total,
		},
	}
	if q.Get("stats") == "true" {
		stats, err := h.userService.DeletedUserStats(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to aggregate stats", "")
			return
		}
		resp.Stats = stats
	}

	writeJSON(w, http.StatusOK, resp)
}

func parseIntParam(s string, fallback int64) int64 {
	if s == "" {
		return fallback
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fallback
	}
	return n
}

func parseDateParam(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		// Date-only form is accepted too.
		t, err = time.Parse("2006-01-02", s)
		if err != nil {
			return nil, err
		}
	}
	return &t, nil
}
