package venues

import (
	"context"
	"fmt"

	"venuely/internal/shared/constants"
	"venuely/pkg/cache"
)

func listCacheKey(f VenueFilters) string {
	maxPrice := "-"
	if f.MaxPrice != nil {
		maxPrice = fmt.Sprintf("%.2f", *f.MaxPrice)
	}
	return constants.BuildVenueListKey(fmt.Sprintf("city:%s:q:%s:g:%d:p:%s:page:%d:limit:%d",
		f.City, f.Search, f.Guests, maxPrice, f.Page, f.Limit))
}

// invalidateVenueCache drops the detail entry and every cached listing page.
func invalidateVenueCache(ctx context.Context, c cache.Service, venueID string) error {
	if err := c.Delete(ctx, constants.BuildVenueDetailKey(venueID)); err != nil {
		return err
	}
	return c.DeletePattern(ctx, constants.PATTERN_INVALIDATE_VENUES_LIST)
}
