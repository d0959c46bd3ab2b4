package booking

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/KOseiBonsu/Konekt-server/cmd/models"
	"github.com/KOseiBonsu/Konekt-server/service/availability"
	"github.com/KOseiBonsu/Konekt-server/service/coupon"
	"github.com/KOseiBonsu/Konekt-server/service/payment"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrInvalidDuration     = errors.New("duration is not one of the allowed session lengths")
	ErrInvalidCoupon       = errors.New("coupon code is not valid")
	ErrPaymentFailed       = errors.New("payment failed")
	ErrPaymentNotCompleted = errors.New("payment has not completed")
	ErrReferenceMismatch   = errors.New("payment reference does not match this conversation")
	ErrNoPaymentDue        = errors.New("conversation does not require payment")
)

type Config struct {
	LeadTime         time.Duration
	HoldTimeout      time.Duration
	SweepInterval    time.Duration
	AllowedDurations []int
}

func DefaultConfig() Config {
	return Config{
		LeadTime:         60 * time.Minute,
		HoldTimeout:      30 * time.Minute,
		SweepInterval:    5 * time.Minute,
		AllowedDurations: []int{30, 45, 60, 90},
	}
}

// ConfigFromEnv applies BOOKING_LEAD_MINUTES and PAYMENT_HOLD_MINUTES on top
// of the defaults.
func ConfigFromEnv() Config {
	cfg := DefaultConfig()
	if v := os.Getenv("BOOKING_LEAD_MINUTES"); v != "" {
		if minutes, err := strconv.Atoi(v); err == nil && minutes > 0 {
			cfg.LeadTime = time.Duration(minutes) * time.Minute
		}
	}
	if v := os.Getenv("PAYMENT_HOLD_MINUTES"); v != "" {
		if minutes, err := strconv.Atoi(v); err == nil && minutes > 0 {
			cfg.HoldTimeout = time.Duration(minutes) * time.Minute
		}
	}
	return cfg
}

// keyedMutex hands out one mutex per key so bookings for different employees
// never contend with each other.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*sync.Mutex)}
}

func (km *keyedMutex) get(key string) *sync.Mutex {
	km.mu.Lock()
	defer km.mu.Unlock()
	m, ok := km.locks[key]
	if !ok {
		m = &sync.Mutex{}
		km.locks[key] = m
	}
	return m
}

// Mailer sends booking lifecycle emails. Delivery failures are logged, never
// surfaced to the caller.
type Mailer interface {
	BookingConfirmed(to string, conv *models.Conversation) error
	BookingCancelled(to string, conv *models.Conversation) error
}

type BookingRequest struct {
	CandidateID              uint
	EmployeeID               uint
	Topic                    string
	DurationMinutes          int
	ScheduledTime            time.Time
	CouponCode               string
	OriginFreeConversationID *uint
}

type BookingResult struct {
	Conversation *models.Conversation `json:"conversation"`
	NeedsPayment bool                 `json:"needs_payment"`
	Payment      *payment.Intent      `json:"payment,omitempty"`
}

// Orchestrator coordinates availability, pricing, payment and the provisional
// slot hold for paid conversations.
type Orchestrator struct {
	db        *gorm.DB
	gateway   payment.Gateway
	resolver  *availability.Resolver
	validator *coupon.Validator
	cfg       Config
	mailer    Mailer
	hub       *models.Hub

	employeeLocks     *keyedMutex
	conversationLocks *keyedMutex

	now func() time.Time
}

func NewOrchestrator(db *gorm.DB, gateway payment.Gateway, resolver *availability.Resolver, validator *coupon.Validator, cfg Config) *Orchestrator {
	return &Orchestrator{
		db:                db,
		gateway:           gateway,
		resolver:          resolver,
		validator:         validator,
		cfg:               cfg,
		employeeLocks:     newKeyedMutex(),
		conversationLocks: newKeyedMutex(),
		now:               func() time.Time { return time.Now().UTC() },
	}
}

func (o *Orchestrator) WithMailer(m Mailer) *Orchestrator {
	o.mailer = m
	return o
}

func (o *Orchestrator) WithHub(h *models.Hub) *Orchestrator {
	o.hub = h
	return o
}

func (o *Orchestrator) allowedDuration(minutes int) bool {
	for _, d := range o.cfg.AllowedDurations {
		if d == minutes {
			return true
		}
	}
	return false
}

func round2(v float64) float64 {
	return float64(int64(v*100+0.5)) / 100
}

// lockForUpdate takes a row lock where the dialect supports it, so concurrent
// holds serialize at the database and not only behind this process's mutexes.
// sqlite has no row locks; its writers already serialize.
func lockForUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "postgres" {
		return tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return tx
}

// RequestBooking validates the slot, prices the session with the rate
// snapshotted now, applies an optional coupon and persists the provisional
// hold. A held conversation that still needs payment carries
// payment_status=pending and stays invisible to the employee until confirmed.
func (o *Orchestrator) RequestBooking(req BookingRequest) (*BookingResult, error) {
	if !o.allowedDuration(req.DurationMinutes) {
		return nil, ErrInvalidDuration
	}
	if req.Topic == "" {
		return nil, errors.New("topic is required")
	}

	now := o.now()

	var conv models.Conversation
	needsPayment := false

	// Serialize holds per employee so two overlapping requests cannot both
	// pass the availability check. The lock covers only the hold transaction;
	// it is released before any gateway I/O.
	lock := o.employeeLocks.get(fmt.Sprintf("employee-%d", req.EmployeeID))
	lock.Lock()
	txErr := o.db.Transaction(func(tx *gorm.DB) error {
		var employee models.Employee
		if err := lockForUpdate(tx).First(&employee, req.EmployeeID).Error; err != nil {
			return err
		}
		if !employee.IsAvailable {
			return availability.ErrSlotUnavailable
		}

		if err := o.resolver.ValidateSlot(tx, req.EmployeeID, req.ScheduledTime, req.DurationMinutes, now); err != nil {
			return err
		}

		original := round2(employee.HourlyRate * float64(req.DurationMinutes) / 60)
		final := original

		if req.CouponCode != "" {
			result, err := o.validator.Validate(tx, req.CouponCode, original, now)
			if err != nil {
				return err
			}
			if !result.Valid {
				return ErrInvalidCoupon
			}
			final = result.FinalAmount
		}

		needsPayment = final > 0

		paymentStatus := models.PaymentNone
		if needsPayment {
			paymentStatus = models.PaymentPending
		}

		conv = models.Conversation{
			CandidateID:              req.CandidateID,
			EmployeeID:               req.EmployeeID,
			Topic:                    req.Topic,
			Status:                   models.ConversationPending,
			ScheduledTime:            req.ScheduledTime.UTC(),
			DurationMinutes:          req.DurationMinutes,
			HourlyRate:               employee.HourlyRate,
			TotalAmount:              final,
			CouponCode:               req.CouponCode,
			PaymentStatus:            paymentStatus,
			OriginFreeConversationID: req.OriginFreeConversationID,
		}

		if err := tx.Create(&conv).Error; err != nil {
			return err
		}

		if needsPayment {
			conv.PaymentRef = fmt.Sprintf("CONV-%d-%d", conv.ID, now.Unix())
			if err := tx.Model(&conv).Update("payment_ref", conv.PaymentRef).Error; err != nil {
				return err
			}
		}
		return nil
	})
	lock.Unlock()
	if txErr != nil {
		return nil, txErr
	}

	result := &BookingResult{Conversation: &conv, NeedsPayment: needsPayment}
	if !needsPayment {
		return result, nil
	}

	// The hold is committed and the lock released; the intent is created
	// outside both. If the gateway refuses, the hold is released immediately
	// instead of waiting for the sweeper.
	var candidate models.User
	if err := o.db.First(&candidate, req.CandidateID).Error; err != nil {
		return nil, err
	}

	description := fmt.Sprintf("Premium conversation #%d (%d minutes)", conv.ID, conv.DurationMinutes)
	intent, err := o.gateway.CreateIntent(conv.TotalAmount, candidate.Email, conv.PaymentRef, description)
	if err != nil {
		o.releaseHold(&conv)
		return nil, fmt.Errorf("initializing payment: %w", err)
	}

	result.Payment = intent
	return result, nil
}

func (o *Orchestrator) releaseHold(conv *models.Conversation) {
	err := o.db.Model(&models.Conversation{}).Where("id = ?", conv.ID).
		Updates(map[string]interface{}{
			"status":         models.ConversationCancelled,
			"payment_status": models.PaymentFailed,
		}).Error
	if err != nil {
		log.Printf("releasing hold for conversation %d: %v", conv.ID, err)
		return
	}
	conv.Status = models.ConversationCancelled
	conv.PaymentStatus = models.PaymentFailed
	o.afterCancellation(conv)
}

// ConfirmPayment settles the provisional hold once the gateway reports the
// intent's outcome. It is idempotent keyed by reference: repeating a
// confirmation for an already confirmed conversation is a no-op success.
func (o *Orchestrator) ConfirmPayment(conversationID uint, reference string) (*models.Conversation, error) {
	var conv models.Conversation
	if err := o.db.First(&conv, conversationID).Error; err != nil {
		return nil, err
	}

	// Fast path for webhook retries: already settled with this reference.
	if conv.PaymentStatus == models.PaymentConfirmed {
		if conv.PaymentRef == reference {
			return &conv, nil
		}
		return nil, ErrReferenceMismatch
	}
	if conv.PaymentStatus == models.PaymentNone {
		return nil, ErrNoPaymentDue
	}
	if conv.PaymentRef != reference {
		return nil, ErrReferenceMismatch
	}

	// External call happens before any lock is taken.
	status, err := o.gateway.IntentStatus(reference)
	if err != nil {
		return nil, fmt.Errorf("querying payment status: %w", err)
	}

	lock := o.conversationLocks.get(fmt.Sprintf("conversation-%d", conversationID))
	lock.Lock()
	defer lock.Unlock()

	confirmed := false
	txErr := o.db.Transaction(func(tx *gorm.DB) error {
		if err := lockForUpdate(tx).First(&conv, conversationID).Error; err != nil {
			return err
		}
		// Re-check under the lock; a concurrent delivery may have won.
		if conv.PaymentStatus == models.PaymentConfirmed {
			if conv.PaymentRef == reference {
				return nil
			}
			return ErrReferenceMismatch
		}
		if conv.PaymentStatus != models.PaymentPending {
			return ErrNoPaymentDue
		}

		switch status {
		case payment.StatusSucceeded:
			conv.PaymentStatus = models.PaymentConfirmed
			if err := tx.Model(&conv).Update("payment_status", models.PaymentConfirmed).Error; err != nil {
				return err
			}
			transaction := models.Transaction{
				UserID:    conv.CandidateID,
				Amount:    conv.TotalAmount,
				Method:    "Paystack",
				Purpose:   "Conversation",
				Reference: reference,
			}
			if err := tx.Create(&transaction).Error; err != nil {
				return err
			}
			confirmed = true
			return nil

		case payment.StatusFailed:
			conv.PaymentStatus = models.PaymentFailed
			conv.Status = models.ConversationCancelled
			return tx.Model(&conv).Updates(map[string]interface{}{
				"payment_status": models.PaymentFailed,
				"status":         models.ConversationCancelled,
			}).Error

		default:
			return ErrPaymentNotCompleted
		}
	})
	if txErr != nil {
		return nil, txErr
	}

	if conv.PaymentStatus == models.PaymentFailed {
		o.afterCancellation(&conv)
		return &conv, ErrPaymentFailed
	}

	if confirmed {
		o.afterConfirmation(&conv)
	}
	return &conv, nil
}

func (o *Orchestrator) afterCancellation(conv *models.Conversation) {
	var candidate models.User
	if err := o.db.First(&candidate, conv.CandidateID).Error; err == nil && o.mailer != nil {
		if err := o.mailer.BookingCancelled(candidate.Email, conv); err != nil {
			log.Printf("sending cancellation email for conversation %d: %v", conv.ID, err)
		}
	}

	if o.hub != nil {
		if payload := statusEvent(conv); payload != nil {
			o.hub.NotifyUser(conv.CandidateID, payload)
		}
	}
}

func (o *Orchestrator) afterConfirmation(conv *models.Conversation) {
	var candidate models.User
	if err := o.db.First(&candidate, conv.CandidateID).Error; err == nil && o.mailer != nil {
		if err := o.mailer.BookingConfirmed(candidate.Email, conv); err != nil {
			log.Printf("sending confirmation email for conversation %d: %v", conv.ID, err)
		}
	}

	if o.hub != nil {
		if payload := statusEvent(conv); payload != nil {
			o.hub.NotifyUser(conv.CandidateID, payload)
			var employee models.Employee
			if err := o.db.First(&employee, conv.EmployeeID).Error; err == nil {
				o.hub.NotifyUser(employee.UserID, payload)
			}
		}
	}
}
