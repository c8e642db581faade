package dto

import "app/internal/model"

// PaginationDTO echoes the applied paging back to the admin client.
type PaginationDTO struct {
	Limit   int64 `json:"limit"`
	Skip    int64 `json:"skip"`
	Total   int   `json:"total"`
	HasMore bool  `json:"hasMore"`
}

type DeletedUserListResponseDTO struct {
	Users      []model.DeletedUser     `json:"users"`
	Pagination PaginationDTO           `json:"pagination"`
	Stats      *model.DeletedUserStats `json:"stats,omitempty"`
}
