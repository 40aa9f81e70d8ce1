package venues

import "venuely/internal/shared/utils/response"

type PaginatedVenues struct {
	Venues     []Venue             `json:"venues"`
	Pagination response.Pagination `json:"pagination"`
}
