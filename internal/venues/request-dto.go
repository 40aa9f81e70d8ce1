package venues

import "venuely/internal/cancellation"

type CreateVenueRequest struct {
	Name               string               `json:"name" binding:"required,min=3,max=255"`
	Description        string               `json:"description" binding:"max=2000"`
	Address            string               `json:"address" binding:"required,max=500"`
	City               string               `json:"city" binding:"required,max=100"`
	MinCapacity        int                  `json:"min_capacity" binding:"required,min=1"`
	MaxCapacity        int                  `json:"max_capacity" binding:"required,min=1"`
	PricePerHour       float64              `json:"price_per_hour" binding:"required,gt=0"`
	OpeningTime        string               `json:"opening_time" binding:"required,len=5"`
	ClosingTime        string               `json:"closing_time" binding:"required,len=5"`
	CancellationPolicy *cancellation.Policy `json:"cancellation_policy"`
}

type UpdateVenueRequest struct {
	Name               *string              `json:"name" binding:"omitempty,min=3,max=255"`
	Description        *string              `json:"description" binding:"omitempty,max=2000"`
	Address            *string              `json:"address" binding:"omitempty,max=500"`
	City               *string              `json:"city" binding:"omitempty,max=100"`
	MinCapacity        *int                 `json:"min_capacity" binding:"omitempty,min=1"`
	MaxCapacity        *int                 `json:"max_capacity" binding:"omitempty,min=1"`
	PricePerHour       *float64             `json:"price_per_hour" binding:"omitempty,gt=0"`
	OpeningTime        *string              `json:"opening_time" binding:"omitempty,len=5"`
	ClosingTime        *string              `json:"closing_time" binding:"omitempty,len=5"`
	CancellationPolicy *cancellation.Policy `json:"cancellation_policy"`
	IsActive           *bool                `json:"is_active"`
}

type BlockDatesRequest struct {
	Dates []string `json:"dates" binding:"required,min=1,max=366,dive,datetime=2006-01-02"`
}
