package freechat

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/KOseiBonsu/Konekt-server/cmd/models"
	"github.com/KOseiBonsu/Konekt-server/cmd/utils"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"gorm.io/gorm"
)

type FreeChatHandler struct {
	db               *gorm.DB
	gate             *Gate
	hub              *models.Hub
	allowedDurations []int
}

func NewFreeChatHandler(db *gorm.DB, gate *Gate, hub *models.Hub, allowedDurations []int) *FreeChatHandler {
	return &FreeChatHandler{db: db, gate: gate, hub: hub, allowedDurations: allowedDurations}
}

func (h *FreeChatHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/free-conversations", utils.AuthMiddleware(h.CreateFreeConversation)).Methods("POST")
	router.HandleFunc("/free-conversations/{id}", h.GetFreeConversation).Methods("GET")
	router.HandleFunc("/free-conversations/{id}", utils.AuthMiddleware(h.CloseFreeConversation)).Methods("PATCH")
	router.HandleFunc("/free-conversations/{id}/messages", utils.AuthMiddleware(h.PostMessage)).Methods("POST")
	router.HandleFunc("/free-conversations/{id}/messages", h.GetMessages).Methods("GET")
	router.HandleFunc("/free-conversations/{id}/upgrade-draft", utils.AuthMiddleware(h.BuildUpgradeDraft)).Methods("POST")
}

func (h *FreeChatHandler) CreateFreeConversation(w http.ResponseWriter, r *http.Request) {
	candidateID, err := utils.GetUserIDFromContext(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var body struct {
		EmployeeID uint   `json:"employee_id"`
		ReferralID string `json:"referral_id,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	var employee models.Employee
	if err := h.db.First(&employee, body.EmployeeID).Error; err != nil {
		http.Error(w, "Employee not found", http.StatusNotFound)
		return
	}

	if body.ReferralID == "" {
		body.ReferralID = uuid.New().String()
	}

	conv := models.FreeConversation{
		CandidateID:        candidateID,
		EmployeeID:         body.EmployeeID,
		ReferralID:         body.ReferralID,
		Status:             models.FreeConversationActive,
		MaxMessagesPerUser: models.DefaultMaxMessagesPerUser,
	}
	if err := h.db.Create(&conv).Error; err != nil {
		http.Error(w, "Error creating free conversation", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(conv)
}

func (h *FreeChatHandler) GetFreeConversation(w http.ResponseWriter, r *http.Request) {
	conv, ok := h.loadConversation(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(conv)
}

// senderRole resolves which side of the conversation the authenticated user
// is on.
func (h *FreeChatHandler) senderRole(conv *models.FreeConversation, userID uint) (string, error) {
	if userID == conv.CandidateID {
		return models.RoleCandidate, nil
	}
	var employee models.Employee
	if err := h.db.First(&employee, conv.EmployeeID).Error; err != nil {
		return "", err
	}
	if userID == employee.UserID {
		return models.RoleEmployee, nil
	}
	return "", ErrNotParticipant
}

func (h *FreeChatHandler) PostMessage(w http.ResponseWriter, r *http.Request) {
	userID, err := utils.GetUserIDFromContext(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	conv, ok := h.loadConversation(w, r)
	if !ok {
		return
	}

	var body struct {
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if body.Content == "" {
		http.Error(w, "Content is required", http.StatusUnprocessableEntity)
		return
	}

	role, err := h.senderRole(conv, userID)
	if err != nil {
		http.Error(w, "Not a participant in this conversation", http.StatusForbidden)
		return
	}

	msg, updated, err := h.gate.PostMessage(conv.ID, role, userID, body.Content)
	if err != nil {
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			http.Error(w, "Free conversation not found", http.StatusNotFound)
		case errors.Is(err, ErrQuotaExceeded), errors.Is(err, ErrConversationClosed):
			http.Error(w, err.Error(), http.StatusConflict)
		default:
			http.Error(w, "Error posting message", http.StatusInternalServerError)
		}
		return
	}

	h.notifyParticipants(updated, msg)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"message":      msg,
		"conversation": updated,
	})
}

func (h *FreeChatHandler) notifyParticipants(conv *models.FreeConversation, msg *models.FreeMessage) {
	if h.hub == nil {
		return
	}
	payload, err := json.Marshal(map[string]interface{}{
		"type":                 "free_message",
		"free_conversation_id": conv.ID,
		"status":               conv.Status,
		"message":              msg,
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

func (h *FreeChatHandler) GetMessages(w http.ResponseWriter, r *http.Request) {
	conv, ok := h.loadConversation(w, r)
	if !ok {
		return
	}

	var messages []models.FreeMessage
	if err := h.db.Where("free_conversation_id = ?", conv.ID).
		Order("created_at").Find(&messages).Error; err != nil {
		http.Error(w, "Error retrieving messages", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"conversation": conv,
		"messages":     messages,
	})
}

// CloseFreeConversation marks a free conversation completed or cancelled.
// Reopening is not possible; upgrade_required never reverts to active.
func (h *FreeChatHandler) CloseFreeConversation(w http.ResponseWriter, r *http.Request) {
	userID, err := utils.GetUserIDFromContext(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	conv, ok := h.loadConversation(w, r)
	if !ok {
		return
	}

	if _, err := h.senderRole(conv, userID); err != nil {
		http.Error(w, "Not a participant in this conversation", http.StatusForbidden)
		return
	}

	var body struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if body.Status != models.FreeConversationCompleted && body.Status != models.FreeConversationCancelled {
		http.Error(w, "Status must be completed or cancelled", http.StatusUnprocessableEntity)
		return
	}
	if conv.Status == models.FreeConversationCompleted || conv.Status == models.FreeConversationCancelled {
		http.Error(w, "Free conversation is already closed", http.StatusConflict)
		return
	}

	if err := h.db.Model(conv).Update("status", body.Status).Error; err != nil {
		http.Error(w, "Error updating free conversation", http.StatusInternalServerError)
		return
	}
	conv.Status = body.Status

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(conv)
}

func (h *FreeChatHandler) BuildUpgradeDraft(w http.ResponseWriter, r *http.Request) {
	conv, ok := h.loadConversation(w, r)
	if !ok {
		return
	}

	draft, err := BuildBookingDraft(h.db, conv.ID, h.allowedDurations)
	if err != nil {
		if errors.Is(err, ErrUpgradeNotRequired) {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		http.Error(w, "Error building booking draft", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(draft)
}

func (h *FreeChatHandler) loadConversation(w http.ResponseWriter, r *http.Request) (*models.FreeConversation, bool) {
	vars := mux.Vars(r)
	id, err := strconv.ParseUint(vars["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid free conversation ID", http.StatusBadRequest)
		return nil, false
	}

	var conv models.FreeConversation
	if err := h.db.First(&conv, id).Error; err != nil {
		http.Error(w, "Free conversation not found", http.StatusNotFound)
		return nil, false
	}
	return &conv, true
}
