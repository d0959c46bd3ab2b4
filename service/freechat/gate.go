package freechat

import (
	"errors"

	"github.com/KOseiBonsu/Konekt-server/cmd/models"
	"gorm.io/gorm"
)

var (
	ErrQuotaExceeded      = errors.New("message quota exceeded for this party")
	ErrConversationClosed = errors.New("free conversation no longer accepts messages")
	ErrNotParticipant     = errors.New("sender is not a party to this conversation")
)

// Gate enforces the per-party message quota on the unpaid tier. The counter
// increment and the cap check happen in one conditional UPDATE so two racing
// messages can never both slip past the cap.
type Gate struct {
	db *gorm.DB
}

func NewGate(db *gorm.DB) *Gate {
	return &Gate{db: db}
}

func counterColumn(senderRole string) string {
	if senderRole == models.RoleEmployee {
		return "employee_message_count"
	}
	return "candidate_message_count"
}

// PostMessage appends a message for senderRole, bumping that party's counter
// atomically. The moment either counter reaches the cap, the conversation
// flips to upgrade_required and stays there.
func (g *Gate) PostMessage(freeConversationID uint, senderRole string, senderID uint, content string) (*models.FreeMessage, *models.FreeConversation, error) {
	if senderRole != models.RoleCandidate && senderRole != models.RoleEmployee {
		return nil, nil, ErrNotParticipant
	}

	col := counterColumn(senderRole)
	var msg models.FreeMessage
	var conv models.FreeConversation

	txErr := g.db.Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.FreeConversation{}).
			Where("id = ? AND status = ? AND "+col+" < max_messages_per_user",
				freeConversationID, models.FreeConversationActive).
			UpdateColumn(col, gorm.Expr(col+" + 1"))
		if result.Error != nil {
			return result.Error
		}

		if result.RowsAffected == 0 {
			if err := tx.First(&conv, freeConversationID).Error; err != nil {
				return err
			}
			if conv.Status != models.FreeConversationActive {
				return ErrConversationClosed
			}
			return ErrQuotaExceeded
		}

		msg = models.FreeMessage{
			FreeConversationID: freeConversationID,
			SenderRole:         senderRole,
			SenderID:           senderID,
			Content:            content,
		}
		if err := tx.Create(&msg).Error; err != nil {
			return err
		}

		if err := tx.First(&conv, freeConversationID).Error; err != nil {
			return err
		}
		capReached := conv.CandidateMessageCount >= conv.MaxMessagesPerUser ||
			conv.EmployeeMessageCount >= conv.MaxMessagesPerUser
		if capReached && conv.Status == models.FreeConversationActive {
			conv.Status = models.FreeConversationUpgradeRequired
			if err := tx.Model(&conv).Update("status", models.FreeConversationUpgradeRequired).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if txErr != nil {
		return nil, nil, txErr
	}
	return &msg, &conv, nil
}
