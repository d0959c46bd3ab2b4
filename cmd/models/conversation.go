package models

import (
	"time"

	"gorm.io/gorm"
)

// Conversation statuses. Declined, cancelled and completed are terminal.
const (
	ConversationPending    = "pending"
	ConversationAccepted   = "accepted"
	ConversationDeclined   = "declined"
	ConversationCancelled  = "cancelled"
	ConversationInProgress = "in_progress"
	ConversationCompleted  = "completed"
)

// Payment statuses for a paid conversation.
const (
	PaymentNone      = "none"
	PaymentPending   = "pending"
	PaymentConfirmed = "confirmed"
	PaymentFailed    = "failed"
)

type Conversation struct {
	gorm.Model
	CandidateID     uint      `gorm:"column:candidate_id;not null;index" json:"candidate_id"`
	EmployeeID      uint      `gorm:"column:employee_id;not null;index" json:"employee_id"`
	Topic           string    `gorm:"column:topic;size:255;not null" json:"topic"`
	Status          string    `gorm:"column:status;size:20;not null;default:pending" json:"status"`
	ScheduledTime   time.Time `gorm:"column:scheduled_time;not null" json:"scheduled_time"`
	DurationMinutes int       `gorm:"column:duration_minutes;not null" json:"duration_minutes"`

	// HourlyRate is snapshotted at booking time so later rate changes never
	// move the agreed price.
	HourlyRate  float64 `gorm:"column:hourly_rate;not null" json:"hourly_rate"`
	TotalAmount float64 `gorm:"column:total_amount;not null" json:"total_amount"`
	CouponCode  string  `gorm:"column:coupon_code;size:50" json:"coupon_code,omitempty"`

	PaymentStatus string `gorm:"column:payment_status;size:20;not null;default:none" json:"payment_status"`
	PaymentRef    string `gorm:"column:payment_ref;size:255;index" json:"payment_ref,omitempty"`

	OriginFreeConversationID *uint `gorm:"column:origin_free_conversation_id" json:"origin_free_conversation_id,omitempty"`

	StartedAt *time.Time `gorm:"column:started_at" json:"started_at,omitempty"`
	EndedAt   *time.Time `gorm:"column:ended_at" json:"ended_at,omitempty"`

	Rating           *int   `gorm:"column:rating" json:"rating,omitempty"`
	Feedback         string `gorm:"column:feedback;type:text" json:"feedback,omitempty"`
	EmployeeResponse string `gorm:"column:employee_response;type:text" json:"employee_response,omitempty"`

	Candidate *User     `gorm:"foreignKey:CandidateID" json:"candidate,omitempty"`
	Employee  *Employee `gorm:"foreignKey:EmployeeID" json:"employee,omitempty"`
}
