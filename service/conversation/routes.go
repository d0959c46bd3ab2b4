package conversation

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/KOseiBonsu/Konekt-server/cmd/models"
	"github.com/KOseiBonsu/Konekt-server/cmd/utils"
	"github.com/gorilla/mux"
	"gorm.io/gorm"
)

// Mailer sends the candidate a notice when a booked conversation is called
// off. Delivery failures are logged, never surfaced to the caller.
type Mailer interface {
	BookingCancelled(to string, conv *models.Conversation) error
}

type ConversationHandler struct {
	db      *gorm.DB
	machine *StateMachine
	hub     *models.Hub
	mailer  Mailer
}

func NewConversationHandler(db *gorm.DB, machine *StateMachine, hub *models.Hub) *ConversationHandler {
	return &ConversationHandler{db: db, machine: machine, hub: hub}
}

func (h *ConversationHandler) WithMailer(m Mailer) *ConversationHandler {
	h.mailer = m
	return h
}

func (h *ConversationHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/conversations/{id:[0-9]+}", utils.AuthMiddleware(h.UpdateStatus)).Methods("PATCH")
	router.HandleFunc("/conversations/{id:[0-9]+}", h.GetConversation).Methods("GET")
	router.HandleFunc("/conversations/candidate/{candidateId}", h.GetCandidateConversations).Methods("GET")
	router.HandleFunc("/conversations/employee/{employeeId}", h.GetEmployeeConversations).Methods("GET")
}

type statusUpdateRequest struct {
	Status           string `json:"status"`
	EmployeeResponse string `json:"employee_response,omitempty"`
	Rating           *int   `json:"rating,omitempty"`
	Feedback         string `json:"feedback,omitempty"`
}

// UpdateStatus drives every status change of a paid conversation through the
// state machine. A rejected transition leaves the row exactly as it was.
func (h *ConversationHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	conversationID, err := strconv.ParseUint(vars["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid conversation ID", http.StatusBadRequest)
		return
	}

	actorID, err := utils.GetUserIDFromContext(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req statusUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	var conv models.Conversation
	applyErr := h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&conv, conversationID).Error; err != nil {
			return err
		}

		var employee models.Employee
		if err := tx.First(&employee, conv.EmployeeID).Error; err != nil {
			return err
		}

		input := TransitionInput{
			EmployeeResponse: req.EmployeeResponse,
			Rating:           req.Rating,
			Feedback:         req.Feedback,
		}
		if err := h.machine.Apply(&conv, employee.UserID, actorID, req.Status, input, time.Now().UTC()); err != nil {
			return err
		}

		if err := tx.Save(&conv).Error; err != nil {
			return err
		}

		if conv.Status == models.ConversationCompleted && conv.Rating != nil {
			total := employee.TotalRatings + 1
			employee.AverageRating = (employee.AverageRating*float64(employee.TotalRatings) + float64(*conv.Rating)) / float64(total)
			employee.TotalRatings = total
			if err := tx.Save(&employee).Error; err != nil {
				return err
			}
		}
		return nil
	})

	if applyErr != nil {
		switch {
		case errors.Is(applyErr, gorm.ErrRecordNotFound):
			http.Error(w, "Conversation not found", http.StatusNotFound)
		case errors.Is(applyErr, ErrInvalidTransition):
			http.Error(w, applyErr.Error(), http.StatusConflict)
		case errors.Is(applyErr, ErrRatingNotAllowed):
			http.Error(w, applyErr.Error(), http.StatusUnprocessableEntity)
		default:
			http.Error(w, "Error updating conversation", http.StatusInternalServerError)
		}
		return
	}

	if conv.Status == models.ConversationCancelled && h.mailer != nil {
		var candidate models.User
		if err := h.db.First(&candidate, conv.CandidateID).Error; err == nil {
			if err := h.mailer.BookingCancelled(candidate.Email, &conv); err != nil {
				log.Printf("sending cancellation email for conversation %d: %v", conv.ID, err)
			}
		}
	}

	if h.hub != nil {
		h.notifyParties(&conv)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(conv)
}

func (h *ConversationHandler) notifyParties(conv *models.Conversation) {
	payload, err := json.Marshal(map[string]interface{}{
		"type":            "conversation_status",
		"conversation_id": conv.ID,
		"status":          conv.Status,
	})
	if err != nil {
		return
	}
	h.hub.NotifyUser(conv.CandidateID, payload)

	var employee models.Employee
	if err := h.db.First(&employee, conv.EmployeeID).Error; err == nil {
		h.hub.NotifyUser(employee.UserID, payload)
	}
}

func (h *ConversationHandler) GetConversation(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	conversationID, err := strconv.ParseUint(vars["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid conversation ID", http.StatusBadRequest)
		return
	}

	var conv models.Conversation
	if err := h.db.Preload("Candidate").Preload("Employee").First(&conv, conversationID).Error; err != nil {
		http.Error(w, "Conversation not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(conv)
}

func (h *ConversationHandler) GetCandidateConversations(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	candidateID, err := strconv.ParseUint(vars["candidateId"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid candidate ID", http.StatusBadRequest)
		return
	}
	h.listConversations(w, r, h.db.Model(&models.Conversation{}).
		Where("candidate_id = ?", candidateID).Preload("Employee"))
}

// GetEmployeeConversations lists an employee's conversations. Provisional
// holds still awaiting payment are hidden from the employee.
func (h *ConversationHandler) GetEmployeeConversations(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	employeeID, err := strconv.ParseUint(vars["employeeId"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid employee ID", http.StatusBadRequest)
		return
	}
	h.listConversations(w, r, h.db.Model(&models.Conversation{}).
		Where("employee_id = ? AND payment_status != ?", employeeID, models.PaymentPending).
		Preload("Candidate"))
}

func (h *ConversationHandler) listConversations(w http.ResponseWriter, r *http.Request, query *gorm.DB) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	pageSize := 100

	if status := r.URL.Query().Get("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	query.Count(&total)

	var conversations []models.Conversation
	if err := query.Offset((page - 1) * pageSize).Limit(pageSize).
		Order("scheduled_time DESC").Find(&conversations).Error; err != nil {
		http.Error(w, "Error retrieving conversations", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"conversations": conversations,
		"total":         total,
		"page":          page,
		"page_size":     pageSize,
		"total_pages":   (total + int64(pageSize) - 1) / int64(pageSize),
	})
}
