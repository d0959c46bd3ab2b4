package freechat

import (
	"errors"
	"fmt"

	"github.com/KOseiBonsu/Konekt-server/cmd/models"
	"gorm.io/gorm"
)

var ErrUpgradeNotRequired = errors.New("free conversation has not reached the upgrade threshold")

// BookingDraft is a pre-filled booking request carrying context from a capped
// free conversation into the paid flow. It creates nothing itself.
type BookingDraft struct {
	EmployeeID               uint   `json:"employee_id"`
	Topic                    string `json:"topic"`
	OriginFreeConversationID uint   `json:"origin_free_conversation_id"`
	SuggestedDurations       []int  `json:"suggested_durations"`
}

// BuildBookingDraft turns a capped free conversation into a booking request
// draft for the same employee. Pure read, no writes.
func BuildBookingDraft(db *gorm.DB, freeConversationID uint, allowedDurations []int) (*BookingDraft, error) {
	var conv models.FreeConversation
	if err := db.First(&conv, freeConversationID).Error; err != nil {
		return nil, err
	}

	if conv.Status != models.FreeConversationUpgradeRequired {
		return nil, ErrUpgradeNotRequired
	}

	return &BookingDraft{
		EmployeeID:               conv.EmployeeID,
		Topic:                    fmt.Sprintf("Continuing free conversation #%d", conv.ID),
		OriginFreeConversationID: conv.ID,
		SuggestedDurations:       allowedDurations,
	}, nil
}
