package constants

import (
	"fmt"
	"time"
)

// Redis key layout: venuely:{module}:{operation}:{identifier}:{params?}

// ================== CACHE TTL DURATIONS ==================

const (
	TTL_SEMI_STATIC_SHORT = 1 * time.Hour    // venue details
	TTL_SEMI_STATIC_QUICK = 15 * time.Minute // venue listings
)

// ================== REDIS KEY PREFIXES ==================

const (
	CACHE_PREFIX = "venuely"
)

// ================== VENUES MODULE ==================

const (
	CACHE_KEY_VENUE_DETAIL = CACHE_PREFIX + ":venues:detail:uuid:" // + venue-id
	CACHE_KEY_VENUES_LIST  = CACHE_PREFIX + ":venues:list"         // + :hash
)

const (
	TTL_VENUE_DETAIL = TTL_SEMI_STATIC_SHORT
	TTL_VENUES_LIST  = TTL_SEMI_STATIC_QUICK
)

// ================== BOOKINGS MODULE ==================

// Slot locks serialize create/reschedule per venue and calendar day.
const (
	LOCK_KEY_VENUE_DAY = CACHE_PREFIX + ":bookings:lock:venue:" // + venue-id:day:YYYY-MM-DD
)

// ================== AUTH MODULE ==================

const (
	CACHE_KEY_REVOKED_TOKEN = CACHE_PREFIX + ":auth:revoked:jti:" // + token-id
)

// ================== RATE LIMITING ==================

const (
	CACHE_KEY_RATE_LIMIT = CACHE_PREFIX + ":ratelimit:" // + ip:type
)

// ================== CACHE INVALIDATION PATTERNS ==================

const (
	PATTERN_INVALIDATE_VENUES_LIST = CACHE_KEY_VENUES_LIST + ":*"
)

// ================== HELPER FUNCTIONS ==================

func BuildVenueDetailKey(venueID string) string {
	return CACHE_KEY_VENUE_DETAIL + venueID
}

func BuildVenueListKey(fingerprint string) string {
	return CACHE_KEY_VENUES_LIST + ":" + fingerprint
}

// BuildVenueDayLockKey -> "venuely:bookings:lock:venue:<id>:day:2025-03-14"
func BuildVenueDayLockKey(venueID string, day time.Time) string {
	return fmt.Sprintf("%s%s:day:%s", LOCK_KEY_VENUE_DAY, venueID, day.UTC().Format("2006-01-02"))
}

func BuildRevokedTokenKey(tokenID string) string {
	return CACHE_KEY_REVOKED_TOKEN + tokenID
}
