package notifications

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrNotificationNotFound = errors.New("notification not found")

type Repository interface {
	// Create is idempotent on the notification id so redelivered Kafka
	// messages do not duplicate inbox entries.
	Create(ctx context.Context, n *Notification) error
	ListForRecipient(ctx context.Context, recipientID uuid.UUID, query ListQuery) ([]Notification, int64, error)
	MarkRead(ctx context.Context, id, recipientID uuid.UUID) error
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, n *Notification) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, DoNothing: true}).
		Create(n).Error
}

func (r *repository) ListForRecipient(ctx context.Context, recipientID uuid.UUID, query ListQuery) ([]Notification, int64, error) {
	query.normalize()

	base := r.db.WithContext(ctx).Model(&Notification{}).Where("recipient_id = ?", recipientID)
	if query.UnreadOnly {
		base = base.Where("is_read = ?", false)
	}

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var items []Notification
	err := base.Order("created_at DESC").
		Offset((query.Page - 1) * query.Limit).
		Limit(query.Limit).
		Find(&items).Error
	return items, total, err
}

func (r *repository) MarkRead(ctx context.Context, id, recipientID uuid.UUID) error {
	res := r.db.WithContext(ctx).
		Model(&Notification{}).
		Where("id = ? AND recipient_id = ?", id, recipientID).
		Update("is_read", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotificationNotFound
	}
	return nil
}
