package booking

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/KOseiBonsu/Konekt-server/cmd/models"
	"github.com/KOseiBonsu/Konekt-server/cmd/utils"
	"github.com/KOseiBonsu/Konekt-server/service/availability"
	"github.com/KOseiBonsu/Konekt-server/service/coupon"
	"github.com/KOseiBonsu/Konekt-server/service/payment"
	"github.com/gorilla/mux"
	"gorm.io/gorm"
)

type BookingHandler struct {
	orchestrator *Orchestrator
}

func NewBookingHandler(orchestrator *Orchestrator) *BookingHandler {
	return &BookingHandler{orchestrator: orchestrator}
}

func (h *BookingHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/conversations", utils.AuthMiddleware(h.RequestBooking)).Methods("POST")
	router.HandleFunc("/conversations/{id}/confirm-payment", utils.AuthMiddleware(h.ConfirmPayment)).Methods("POST")
	router.HandleFunc("/conversations/webhook", h.HandlePaymentWebhook).Methods("POST")
}

type bookingRequestBody struct {
	EmployeeID               uint      `json:"employee_id"`
	Topic                    string    `json:"topic"`
	DurationMinutes          int       `json:"duration_minutes"`
	ScheduledTime            time.Time `json:"scheduled_time"`
	CouponCode               string    `json:"coupon_code,omitempty"`
	OriginFreeConversationID *uint     `json:"origin_free_conversation_id,omitempty"`
}

func (h *BookingHandler) RequestBooking(w http.ResponseWriter, r *http.Request) {
	candidateID, err := utils.GetUserIDFromContext(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var body bookingRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	result, err := h.orchestrator.RequestBooking(BookingRequest{
		CandidateID:              candidateID,
		EmployeeID:               body.EmployeeID,
		Topic:                    body.Topic,
		DurationMinutes:          body.DurationMinutes,
		ScheduledTime:            body.ScheduledTime,
		CouponCode:               body.CouponCode,
		OriginFreeConversationID: body.OriginFreeConversationID,
	})
	if err != nil {
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			http.Error(w, "Employee not found", http.StatusNotFound)
		case errors.Is(err, availability.ErrSlotUnavailable):
			http.Error(w, err.Error(), http.StatusConflict)
		case errors.Is(err, availability.ErrLeadTimeViolation):
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		case errors.Is(err, ErrInvalidDuration), errors.Is(err, ErrInvalidCoupon), errors.Is(err, coupon.ErrNegativeAmount):
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		default:
			log.Printf("booking request failed: %v", err)
			http.Error(w, "Error creating booking", http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(result)
}

func (h *BookingHandler) ConfirmPayment(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	conversationID, err := strconv.ParseUint(vars["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid conversation ID", http.StatusBadRequest)
		return
	}

	var body struct {
		PaymentIntentID string `json:"payment_intent_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if body.PaymentIntentID == "" {
		http.Error(w, "payment_intent_id is required", http.StatusBadRequest)
		return
	}

	conv, err := h.orchestrator.ConfirmPayment(uint(conversationID), body.PaymentIntentID)
	if err != nil {
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			http.Error(w, "Conversation not found", http.StatusNotFound)
		case errors.Is(err, ErrPaymentFailed), errors.Is(err, ErrPaymentNotCompleted):
			http.Error(w, err.Error(), http.StatusPaymentRequired)
		case errors.Is(err, ErrReferenceMismatch), errors.Is(err, ErrNoPaymentDue):
			http.Error(w, err.Error(), http.StatusConflict)
		default:
			log.Printf("payment confirmation failed for conversation %d: %v", conversationID, err)
			http.Error(w, "Error confirming payment", http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(conv)
}

// HandlePaymentWebhook processes the provider's charge events. Delivery is
// at-least-once; confirmation is idempotent by reference so retries are safe.
func (h *BookingHandler) HandlePaymentWebhook(w http.ResponseWriter, r *http.Request) {
	signature := r.Header.Get("X-Paystack-Signature")
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Error reading request body", http.StatusBadRequest)
		return
	}

	if !payment.VerifyWebhookSignature(body, signature, os.Getenv("PAYSTACK_SECRET_KEY")) {
		http.Error(w, "Invalid signature", http.StatusBadRequest)
		return
	}

	var event struct {
		Event string `json:"event"`
		Data  struct {
			Reference string  `json:"reference"`
			Status    string  `json:"status"`
			Amount    float64 `json:"amount"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &event); err != nil {
		http.Error(w, "Error parsing webhook payload", http.StatusBadRequest)
		return
	}

	if event.Event != "charge.success" && event.Event != "charge.failed" {
		w.WriteHeader(http.StatusOK)
		return
	}

	conversationID, ok := conversationIDFromReference(event.Data.Reference)
	if !ok {
		log.Printf("webhook for unknown reference: %s", event.Data.Reference)
		w.WriteHeader(http.StatusOK)
		return
	}

	if _, err := h.orchestrator.ConfirmPayment(conversationID, event.Data.Reference); err != nil {
		if errors.Is(err, ErrPaymentFailed) {
			// The hold was released; the provider does not need a retry.
			w.WriteHeader(http.StatusOK)
			return
		}
		log.Printf("webhook confirmation for conversation %d: %v", conversationID, err)
		http.Error(w, "Error processing webhook", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
}

// conversationIDFromReference parses references of the form CONV-<id>-<unix>.
func conversationIDFromReference(reference string) (uint, bool) {
	if !strings.HasPrefix(reference, "CONV-") {
		return 0, false
	}
	parts := strings.Split(reference, "-")
	if len(parts) < 3 {
		return 0, false
	}
	id, err := strconv.ParseUint(parts[1], 10, 32)
	if err != nil {
		return 0, false
	}
	return uint(id), true
}

func statusEvent(conv *models.Conversation) []byte {
	payload, err := json.Marshal(map[string]interface{}{
		"type":            "conversation_status",
		"conversation_id": conv.ID,
		"status":          conv.Status,
		"payment_status":  conv.PaymentStatus,
	})
	if err != nil {
		return nil
	}
	return payload
}
