package conversation

import (
	"errors"
	"fmt"
	"time"

	"github.com/KOseiBonsu/Konekt-server/cmd/models"
)

var (
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrRatingNotAllowed  = errors.New("rating may only be attached by the candidate on completion")
)

// transitions is the full legal matrix. Anything not listed here is rejected.
var transitions = map[string][]string{
	models.ConversationPending:    {models.ConversationAccepted, models.ConversationDeclined, models.ConversationCancelled},
	models.ConversationAccepted:   {models.ConversationInProgress, models.ConversationCancelled},
	models.ConversationInProgress: {models.ConversationCompleted},
}

// TransitionInput carries the optional payload a caller may attach to a
// transition request.
type TransitionInput struct {
	EmployeeResponse string
	Rating           *int
	Feedback         string
}

// StateMachine owns conversation status. No other component writes status.
type StateMachine struct{}

func NewStateMachine() *StateMachine {
	return &StateMachine{}
}

func (m *StateMachine) Legal(from, to string) bool {
	for _, t := range transitions[from] {
		if t == to {
			return true
		}
	}
	return false
}

func (m *StateMachine) Terminal(status string) bool {
	return status == models.ConversationDeclined ||
		status == models.ConversationCancelled ||
		status == models.ConversationCompleted
}

// Apply mutates conv in memory for a legal transition and returns an error
// leaving conv untouched otherwise. employeeUserID is the user account behind
// conv.EmployeeID; actorID identifies who asked for the transition.
func (m *StateMachine) Apply(conv *models.Conversation, employeeUserID, actorID uint, target string, input TransitionInput, now time.Time) error {
	if !m.Legal(conv.Status, target) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, conv.Status, target)
	}

	isEmployee := actorID == employeeUserID
	isCandidate := actorID == conv.CandidateID
	if !isEmployee && !isCandidate {
		return fmt.Errorf("%w: actor is not a party to the conversation", ErrInvalidTransition)
	}

	switch target {
	case models.ConversationAccepted, models.ConversationDeclined:
		if !isEmployee {
			return fmt.Errorf("%w: only the employee may %s a request", ErrInvalidTransition, target)
		}
		// A provisional hold awaiting payment is not actionable yet.
		if conv.PaymentStatus == models.PaymentPending {
			return fmt.Errorf("%w: payment has not been confirmed", ErrInvalidTransition)
		}
		conv.EmployeeResponse = input.EmployeeResponse

	case models.ConversationCancelled:
		if conv.StartedAt != nil {
			return fmt.Errorf("%w: conversation already started", ErrInvalidTransition)
		}

	case models.ConversationInProgress:
		if !isEmployee {
			return fmt.Errorf("%w: only the employee may start the session", ErrInvalidTransition)
		}
		startedAt := now
		conv.StartedAt = &startedAt

	case models.ConversationCompleted:
		if input.Rating != nil || input.Feedback != "" {
			if !isCandidate {
				return ErrRatingNotAllowed
			}
			if input.Rating != nil && (*input.Rating < 1 || *input.Rating > 5) {
				return fmt.Errorf("%w: rating must be between 1 and 5", ErrRatingNotAllowed)
			}
		}
		endedAt := now
		conv.EndedAt = &endedAt
		if input.Rating != nil {
			rating := *input.Rating
			conv.Rating = &rating
		}
		if input.Feedback != "" {
			conv.Feedback = input.Feedback
		}
	}

	conv.Status = target
	return nil
}
