package models

import (
	"gorm.io/gorm"
)

// Free conversation statuses. The flip to upgrade_required is one-way.
const (
	FreeConversationActive          = "active"
	FreeConversationUpgradeRequired = "upgrade_required"
	FreeConversationCompleted       = "completed"
	FreeConversationCancelled       = "cancelled"
)

const DefaultMaxMessagesPerUser = 10

type FreeConversation struct {
	gorm.Model
	CandidateID uint   `gorm:"column:candidate_id;not null;index" json:"candidate_id"`
	EmployeeID  uint   `gorm:"column:employee_id;not null;index" json:"employee_id"`
	ReferralID  string `gorm:"column:referral_id;size:255" json:"referral_id,omitempty"`
	Status      string `gorm:"column:status;size:20;not null;default:active" json:"status"`

	CandidateMessageCount int `gorm:"column:candidate_message_count;not null;default:0" json:"candidate_message_count"`
	EmployeeMessageCount  int `gorm:"column:employee_message_count;not null;default:0" json:"employee_message_count"`
	MaxMessagesPerUser    int `gorm:"column:max_messages_per_user;not null;default:10" json:"max_messages_per_user"`

	Candidate *User     `gorm:"foreignKey:CandidateID" json:"candidate,omitempty"`
	Employee  *Employee `gorm:"foreignKey:EmployeeID" json:"employee,omitempty"`
	Messages  []FreeMessage `gorm:"foreignKey:FreeConversationID;constraint:OnDelete:CASCADE" json:"messages,omitempty"`
}

type FreeMessage struct {
	gorm.Model
	FreeConversationID uint   `gorm:"column:free_conversation_id;not null;index" json:"free_conversation_id"`
	SenderRole         string `gorm:"column:sender_role;size:20;not null" json:"sender_role"`
	SenderID           uint   `gorm:"column:sender_id;not null" json:"sender_id"`
	Content            string `gorm:"column:content;type:text;not null" json:"content"`
}
