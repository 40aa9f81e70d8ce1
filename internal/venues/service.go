package venues

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"

	"venuely/internal/cancellation"
	"venuely/internal/shared/apperrors"
	"venuely/internal/shared/clock"
	"venuely/internal/shared/constants"
	"venuely/internal/shared/utils/response"
	"venuely/internal/users"
	"venuely/pkg/cache"
	"venuely/pkg/logger"

	"github.com/google/uuid"
)

type Service interface {
	CreateVenue(ctx context.Context, ownerID uuid.UUID, req CreateVenueRequest) (*Venue, error)
	GetVenue(ctx context.Context, id uuid.UUID) (*Venue, error)
	ListVenues(ctx context.Context, filters VenueFilters) (*PaginatedVenues, error)
	ListOwnerVenues(ctx context.Context, ownerID uuid.UUID, filters VenueFilters) (*PaginatedVenues, error)
	UpdateVenue(ctx context.Context, id, actorID uuid.UUID, role users.Role, req UpdateVenueRequest) (*Venue, error)
	DeactivateVenue(ctx context.Context, id, actorID uuid.UUID, role users.Role) error
	BlockDates(ctx context.Context, id, actorID uuid.UUID, role users.Role, dates []string) (*Venue, error)
	UnblockDate(ctx context.Context, id, actorID uuid.UUID, role users.Role, date string) (*Venue, error)
}

type service struct {
	repo  Repository
	cache cache.Service
	log   *logger.Logger
}

func NewService(repo Repository, c cache.Service, log *logger.Logger) Service {
	return &service{repo: repo, cache: c, log: log}
}

func (s *service) CreateVenue(ctx context.Context, ownerID uuid.UUID, req CreateVenueRequest) (*Venue, error) {
	policy := cancellation.DefaultPolicy()
	if req.CancellationPolicy != nil {
		policy = *req.CancellationPolicy
	}

	venue := &Venue{
		OwnerID:            ownerID,
		Name:               req.Name,
		Description:        req.Description,
		Address:            req.Address,
		City:               req.City,
		MinCapacity:        req.MinCapacity,
		MaxCapacity:        req.MaxCapacity,
		PricePerHour:       req.PricePerHour,
		OpeningTime:        req.OpeningTime,
		ClosingTime:        req.ClosingTime,
		BlockedDates:       []string{},
		CancellationPolicy: policy,
		IsActive:           true,
	}
	if err := validateVenue(venue); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, venue); err != nil {
		return nil, fmt.Errorf("failed to create venue: %w", err)
	}
	s.invalidate(ctx, venue.ID)
	return venue, nil
}

func (s *service) GetVenue(ctx context.Context, id uuid.UUID) (*Venue, error) {
	var venue Venue
	err := s.cache.GetOrSet(ctx, constants.BuildVenueDetailKey(id.String()), constants.TTL_VENUE_DETAIL,
		func() (interface{}, error) { return s.repo.GetByID(ctx, id) }, &venue)
	if err != nil {
		return nil, mapRepoError(err)
	}
	return &venue, nil
}

func (s *service) ListVenues(ctx context.Context, filters VenueFilters) (*PaginatedVenues, error) {
	filters.normalize()
	filters.OwnerID = nil
	filters.IncludeInactive = false

	var result PaginatedVenues
	err := s.cache.GetOrSet(ctx, listCacheKey(filters), constants.TTL_VENUES_LIST, func() (interface{}, error) {
		return s.list(ctx, filters)
	}, &result)
	if err != nil {
		return nil, fmt.Errorf("failed to list venues: %w", err)
	}
	return &result, nil
}

func (s *service) ListOwnerVenues(ctx context.Context, ownerID uuid.UUID, filters VenueFilters) (*PaginatedVenues, error) {
	filters.normalize()
	filters.OwnerID = &ownerID
	filters.IncludeInactive = true
	return s.list(ctx, filters)
}

func (s *service) list(ctx context.Context, filters VenueFilters) (*PaginatedVenues, error) {
	venues, total, err := s.repo.List(ctx, filters)
	if err != nil {
		return nil, err
	}
	if venues == nil {
		venues = []Venue{}
	}
	return &PaginatedVenues{
		Venues:     venues,
		Pagination: response.NewPagination(filters.Page, filters.Limit, total),
	}, nil
}

func (s *service) UpdateVenue(ctx context.Context, id, actorID uuid.UUID, role users.Role, req UpdateVenueRequest) (*Venue, error) {
	venue, err := s.loadForManagement(ctx, id, actorID, role)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		venue.Name = *req.Name
	}
	if req.Description != nil {
		venue.Description = *req.Description
	}
	if req.Address != nil {
		venue.Address = *req.Address
	}
	if req.City != nil {
		venue.City = *req.City
	}
	if req.MinCapacity != nil {
		venue.MinCapacity = *req.MinCapacity
	}
	if req.MaxCapacity != nil {
		venue.MaxCapacity = *req.MaxCapacity
	}
	if req.PricePerHour != nil {
		venue.PricePerHour = *req.PricePerHour
	}
	if req.OpeningTime != nil {
		venue.OpeningTime = *req.OpeningTime
	}
	if req.ClosingTime != nil {
		venue.ClosingTime = *req.ClosingTime
	}
	if req.CancellationPolicy != nil {
		venue.CancellationPolicy = *req.CancellationPolicy
	}
	if req.IsActive != nil {
		venue.IsActive = *req.IsActive
	}

	if err := validateVenue(venue); err != nil {
		return nil, err
	}
	return venue, s.save(ctx, venue)
}

// DeactivateVenue hides the venue from search and rejects new bookings.
// Existing bookings are untouched.
func (s *service) DeactivateVenue(ctx context.Context, id, actorID uuid.UUID, role users.Role) error {
	venue, err := s.loadForManagement(ctx, id, actorID, role)
	if err != nil {
		return err
	}
	venue.IsActive = false
	return s.save(ctx, venue)
}

func (s *service) BlockDates(ctx context.Context, id, actorID uuid.UUID, role users.Role, dates []string) (*Venue, error) {
	venue, err := s.loadForManagement(ctx, id, actorID, role)
	if err != nil {
		return nil, err
	}

	blocked := slices.Clone([]string(venue.BlockedDates))
	for _, raw := range dates {
		day, err := clock.ParseDate(raw)
		if err != nil {
			return nil, apperrors.Validation("%s", err.Error())
		}
		d := clock.FormatDate(day)
		if !slices.Contains(blocked, d) {
			blocked = append(blocked, d)
		}
	}
	sort.Strings(blocked)
	venue.BlockedDates = blocked

	return venue, s.save(ctx, venue)
}

func (s *service) UnblockDate(ctx context.Context, id, actorID uuid.UUID, role users.Role, date string) (*Venue, error) {
	venue, err := s.loadForManagement(ctx, id, actorID, role)
	if err != nil {
		return nil, err
	}
	day, err := clock.ParseDate(date)
	if err != nil {
		return nil, apperrors.Validation("%s", err.Error())
	}

	d := clock.FormatDate(day)
	venue.BlockedDates = slices.DeleteFunc(slices.Clone([]string(venue.BlockedDates)), func(x string) bool { return x == d })
	return venue, s.save(ctx, venue)
}

// loadForManagement reads the venue from the database, never the cache, and
// checks that the actor owns it or is an admin.
func (s *service) loadForManagement(ctx context.Context, id, actorID uuid.UUID, role users.Role) (*Venue, error) {
	venue, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, mapRepoError(err)
	}
	if role != users.RoleAdmin && !venue.OwnedBy(actorID) {
		return nil, apperrors.Forbidden("only the venue owner or an admin can manage this venue")
	}
	return venue, nil
}

func (s *service) save(ctx context.Context, venue *Venue) error {
	if err := s.repo.Save(ctx, venue); err != nil {
		return fmt.Errorf("failed to save venue: %w", err)
	}
	s.invalidate(ctx, venue.ID)
	return nil
}

func (s *service) invalidate(ctx context.Context, id uuid.UUID) {
	if err := invalidateVenueCache(ctx, s.cache, id.String()); err != nil {
		s.log.WarnContext(ctx, "failed to invalidate venue cache", "venue_id", id, "error", err)
	}
}

func validateVenue(v *Venue) error {
	if v.MinCapacity < 1 || v.MaxCapacity < v.MinCapacity {
		return apperrors.Validation("capacity range is invalid: min %d, max %d", v.MinCapacity, v.MaxCapacity)
	}
	if v.PricePerHour <= 0 {
		return apperrors.Validation("price per hour must be positive")
	}
	open, err := clock.Minutes(v.OpeningTime)
	if err != nil {
		return apperrors.Validation("opening time: %s", err.Error())
	}
	closing, err := clock.Minutes(v.ClosingTime)
	if err != nil {
		return apperrors.Validation("closing time: %s", err.Error())
	}
	if closing <= open {
		return apperrors.Validation("closing time must be after opening time")
	}
	if err := v.CancellationPolicy.Validate(); err != nil {
		return apperrors.Validation("cancellation policy: %s", err.Error())
	}
	return nil
}

func mapRepoError(err error) error {
	if errors.Is(err, ErrVenueNotFound) {
		return apperrors.NotFound("venue not found")
	}
	return err
}
