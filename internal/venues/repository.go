package venues

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var ErrVenueNotFound = errors.New("venue not found")

// Repository interface for venue operations
type Repository interface {
	Create(ctx context.Context, venue *Venue) error
	GetByID(ctx context.Context, id uuid.UUID) (*Venue, error)
	List(ctx context.Context, filters VenueFilters) ([]Venue, int64, error)
	Save(ctx context.Context, venue *Venue) error
}

// repository implements Repository interface
type repository struct {
	db *gorm.DB
}

// NewRepository creates a new venue repository
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, venue *Venue) error {
	return r.db.WithContext(ctx).Create(venue).Error
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*Venue, error) {
	var venue Venue
	err := r.db.WithContext(ctx).First(&venue, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrVenueNotFound
		}
		return nil, err
	}
	return &venue, nil
}

func (r *repository) List(ctx context.Context, filters VenueFilters) ([]Venue, int64, error) {
	filters.normalize()

	query := r.db.WithContext(ctx).Model(&Venue{})
	if !filters.IncludeInactive {
		query = query.Where("is_active = ?", true)
	}
	if filters.OwnerID != nil {
		query = query.Where("owner_id = ?", *filters.OwnerID)
	}
	if filters.City != "" {
		query = query.Where("LOWER(city) = ?", strings.ToLower(filters.City))
	}
	if filters.Search != "" {
		like := "%" + strings.ToLower(filters.Search) + "%"
		query = query.Where("(LOWER(name) LIKE ? OR LOWER(description) LIKE ?)", like, like)
	}
	if filters.Guests > 0 {
		query = query.Where("min_capacity <= ? AND max_capacity >= ?", filters.Guests, filters.Guests)
	}
	if filters.MaxPrice != nil {
		query = query.Where("price_per_hour <= ?", *filters.MaxPrice)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var venues []Venue
	offset := (filters.Page - 1) * filters.Limit
	if err := query.Order("created_at DESC").Offset(offset).Limit(filters.Limit).Find(&venues).Error; err != nil {
		return nil, 0, err
	}
	return venues, total, nil
}

func (r *repository) Save(ctx context.Context, venue *Venue) error {
	return r.db.WithContext(ctx).Save(venue).Error
}
