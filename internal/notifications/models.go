package notifications

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type NotificationType string

const (
	NotificationTypeBookingCreated       NotificationType = "BOOKING_CREATED"
	NotificationTypeBookingStatusChanged NotificationType = "BOOKING_STATUS_CHANGED"
	NotificationTypeBookingRescheduled   NotificationType = "BOOKING_RESCHEDULED"
	NotificationTypeBookingDeleted       NotificationType = "BOOKING_DELETED"
	NotificationTypePaymentCompleted     NotificationType = "PAYMENT_COMPLETED"
	NotificationTypePaymentFailed        NotificationType = "PAYMENT_FAILED"
	NotificationTypeRefundRequested      NotificationType = "REFUND_REQUESTED"
	NotificationTypeRefundSettled        NotificationType = "REFUND_SETTLED"
)

type NotificationChannel string

const (
	NotificationChannelInApp NotificationChannel = "IN_APP"
	NotificationChannelEmail NotificationChannel = "EMAIL"
)

type NotificationPriority string

const (
	NotificationPriorityLow    NotificationPriority = "LOW"
	NotificationPriorityMedium NotificationPriority = "MEDIUM"
	NotificationPriorityHigh   NotificationPriority = "HIGH"
)

type NotificationStatus string

const (
	NotificationStatusPending  NotificationStatus = "PENDING"
	NotificationStatusQueued   NotificationStatus = "QUEUED"
	NotificationStatusSent     NotificationStatus = "SENT"
	NotificationStatusFailed   NotificationStatus = "FAILED"
	NotificationStatusRetrying NotificationStatus = "RETRYING"
	NotificationStatusExpired  NotificationStatus = "EXPIRED"
)

// Message is the envelope that travels through a Sink, either in process or
// as JSON on the Kafka notification topic.
type Message struct {
	ID       uuid.UUID            `json:"id"`
	Type     NotificationType     `json:"type"`
	Priority NotificationPriority `json:"priority"`

	RecipientID    uuid.UUID `json:"recipient_id"`
	RecipientEmail string    `json:"recipient_email,omitempty"`
	RecipientName  string    `json:"recipient_name,omitempty"`

	Subject      string                 `json:"subject"`
	Body         string                 `json:"body"`
	ReferenceID  string                 `json:"reference_id,omitempty"`
	Channels     []NotificationChannel  `json:"channels"`
	TemplateData map[string]interface{} `json:"template_data,omitempty"`

	Status     NotificationStatus `json:"status"`
	RetryCount int                `json:"retry_count"`
	MaxRetries int                `json:"max_retries"`
	LastError  *string            `json:"last_error,omitempty"`
	CreatedAt  time.Time          `json:"created_at"`
	SentAt     *time.Time         `json:"sent_at,omitempty"`
}

type MessageBuilder struct {
	message *Message
}

// NewMessageBuilder starts a message for both the inbox and email.
func NewMessageBuilder() *MessageBuilder {
	return &MessageBuilder{
		message: &Message{
			ID:           uuid.New(),
			Status:       NotificationStatusPending,
			Priority:     NotificationPriorityMedium,
			Channels:     []NotificationChannel{NotificationChannelInApp, NotificationChannelEmail},
			MaxRetries:   3,
			TemplateData: make(map[string]interface{}),
			CreatedAt:    time.Now(),
		},
	}
}

func (mb *MessageBuilder) WithType(t NotificationType) *MessageBuilder {
	mb.message.Type = t
	mb.message.Priority = GetDefaultPriority(t)
	return mb
}

func (mb *MessageBuilder) WithRecipient(userID uuid.UUID) *MessageBuilder {
	mb.message.RecipientID = userID
	return mb
}

func (mb *MessageBuilder) WithSubject(subject string) *MessageBuilder {
	mb.message.Subject = subject
	return mb
}

func (mb *MessageBuilder) WithBody(body string) *MessageBuilder {
	mb.message.Body = body
	return mb
}

func (mb *MessageBuilder) WithReference(referenceID string) *MessageBuilder {
	mb.message.ReferenceID = referenceID
	return mb
}

func (mb *MessageBuilder) WithChannels(channels ...NotificationChannel) *MessageBuilder {
	mb.message.Channels = channels
	return mb
}

func (mb *MessageBuilder) WithTemplateData(data map[string]interface{}) *MessageBuilder {
	mb.message.TemplateData = data
	return mb
}

func (mb *MessageBuilder) Build() *Message {
	return mb.message
}

func GetDefaultPriority(t NotificationType) NotificationPriority {
	switch t {
	case NotificationTypePaymentCompleted, NotificationTypePaymentFailed, NotificationTypeBookingStatusChanged:
		return NotificationPriorityHigh
	case NotificationTypeBookingDeleted:
		return NotificationPriorityLow
	default:
		return NotificationPriorityMedium
	}
}

func (m *Message) HasChannel(ch NotificationChannel) bool {
	for _, c := range m.Channels {
		if c == ch {
			return true
		}
	}
	return false
}

// GetPartitionKey keeps one recipient's messages ordered on a single partition.
func (m *Message) GetPartitionKey() string {
	return m.RecipientID.String()
}

func (m *Message) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func (m *Message) ShouldRetry() bool {
	return m.RetryCount < m.MaxRetries && m.Status == NotificationStatusFailed
}

func (m *Message) MarkSent() {
	now := time.Now()
	m.Status = NotificationStatusSent
	m.SentAt = &now
}

func (m *Message) MarkFailed(err error) {
	m.Status = NotificationStatusFailed
	errStr := err.Error()
	m.LastError = &errStr
}

func (m *Message) IncrementRetry() {
	m.RetryCount++
	if m.ShouldRetry() {
		m.Status = NotificationStatusRetrying
	} else {
		m.Status = NotificationStatusExpired
	}
}

// Notification is an in-app inbox entry.
type Notification struct {
	ID          uuid.UUID                   `json:"id" gorm:"type:uuid;primaryKey"`
	RecipientID uuid.UUID                   `json:"recipient_id" gorm:"type:uuid;not null;index"`
	Title       string                      `json:"title" gorm:"type:varchar(255);not null"`
	Message     string                      `json:"message" gorm:"type:text"`
	Type        NotificationType            `json:"type" gorm:"type:varchar(50);not null"`
	ReferenceID string                      `json:"reference_id" gorm:"type:varchar(100);index"`
	Channels    datatypes.JSONSlice[string] `json:"channels"`
	IsRead      bool                        `json:"is_read" gorm:"not null;index"`
	CreatedAt   time.Time                   `json:"created_at"`
}

func (Notification) TableName() string {
	return "notifications"
}

func (n *Notification) BeforeCreate(tx *gorm.DB) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	return nil
}

func newInboxEntry(m *Message) *Notification {
	channels := make([]string, 0, len(m.Channels))
	for _, c := range m.Channels {
		channels = append(channels, string(c))
	}
	return &Notification{
		ID:          m.ID,
		RecipientID: m.RecipientID,
		Title:       m.Subject,
		Message:     m.Body,
		Type:        m.Type,
		ReferenceID: m.ReferenceID,
		Channels:    channels,
	}
}

type ListQuery struct {
	UnreadOnly bool `form:"unread"`
	Page       int  `form:"page,default=1" binding:"omitempty,min=1"`
	Limit      int  `form:"limit,default=20" binding:"omitempty,min=1,max=100"`
}

func (q *ListQuery) normalize() {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit < 1 || q.Limit > 100 {
		q.Limit = 20
	}
}
