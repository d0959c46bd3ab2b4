package conversation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/KOseiBonsu/Konekt-server/cmd/models"
	"github.com/KOseiBonsu/Konekt-server/cmd/utils"
	"github.com/glebarez/sqlite"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Employee{},
		&models.Conversation{},
	))
	return db
}

type handlerFixture struct {
	db             *gorm.DB
	h              *ConversationHandler
	candidateID    uint
	employeeUserID uint
	employeeID     uint
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()
	db := newTestDB(t)

	candidate := models.User{FullName: "Ama Mensah", Email: "ama@example.com", Role: models.RoleCandidate}
	require.NoError(t, db.Create(&candidate).Error)

	employeeUser := models.User{FullName: "Kwame Osei", Email: "kwame@example.com", Role: models.RoleEmployee}
	require.NoError(t, db.Create(&employeeUser).Error)

	employee := models.Employee{UserID: employeeUser.ID, HourlyRate: 60, IsAvailable: true, MaxDailySessions: 8}
	require.NoError(t, db.Create(&employee).Error)

	return &handlerFixture{
		db:             db,
		h:              NewConversationHandler(db, NewStateMachine(), nil),
		candidateID:    candidate.ID,
		employeeUserID: employeeUser.ID,
		employeeID:     employee.ID,
	}
}

func (f *handlerFixture) createConversation(t *testing.T, status, paymentStatus string) *models.Conversation {
	t.Helper()
	conv := &models.Conversation{
		CandidateID:     f.candidateID,
		EmployeeID:      f.employeeID,
		Topic:           "career advice",
		Status:          status,
		PaymentStatus:   paymentStatus,
		ScheduledTime:   time.Now().UTC().Add(24 * time.Hour),
		DurationMinutes: 30,
		HourlyRate:      60,
		TotalAmount:     30,
	}
	require.NoError(t, f.db.Create(conv).Error)
	return conv
}

func (f *handlerFixture) patchStatus(t *testing.T, actorID, conversationID uint, body map[string]interface{}) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPatch,
		fmt.Sprintf("/conversations/%d", conversationID), bytes.NewReader(payload))
	req = req.WithContext(context.WithValue(req.Context(), utils.UserIDKey, actorID))
	req = mux.SetURLVars(req, map[string]string{"id": fmt.Sprint(conversationID)})

	rec := httptest.NewRecorder()
	f.h.UpdateStatus(rec, req)
	return rec
}

func TestUpdateStatusAccept(t *testing.T) {
	f := newHandlerFixture(t)
	conv := f.createConversation(t, models.ConversationPending, models.PaymentConfirmed)

	rec := f.patchStatus(t, f.employeeUserID, conv.ID, map[string]interface{}{
		"status":            models.ConversationAccepted,
		"employee_response": "see you then",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var stored models.Conversation
	require.NoError(t, f.db.First(&stored, conv.ID).Error)
	assert.Equal(t, models.ConversationAccepted, stored.Status)
	assert.Equal(t, "see you then", stored.EmployeeResponse)
}

func TestUpdateStatusIllegalTransitionConflicts(t *testing.T) {
	f := newHandlerFixture(t)
	conv := f.createConversation(t, models.ConversationPending, models.PaymentConfirmed)

	rec := f.patchStatus(t, f.employeeUserID, conv.ID, map[string]interface{}{
		"status": models.ConversationCompleted,
	})
	require.Equal(t, http.StatusConflict, rec.Code)

	var stored models.Conversation
	require.NoError(t, f.db.First(&stored, conv.ID).Error)
	assert.Equal(t, models.ConversationPending, stored.Status)
}

func TestUpdateStatusAcceptWhilePaymentPending(t *testing.T) {
	f := newHandlerFixture(t)
	conv := f.createConversation(t, models.ConversationPending, models.PaymentPending)

	rec := f.patchStatus(t, f.employeeUserID, conv.ID, map[string]interface{}{
		"status": models.ConversationAccepted,
	})
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestUpdateStatusCompletionUpdatesRatingAggregate(t *testing.T) {
	f := newHandlerFixture(t)
	require.NoError(t, f.db.Model(&models.Employee{}).Where("id = ?", f.employeeID).
		Updates(map[string]interface{}{"average_rating": 4.0, "total_ratings": 1}).Error)

	conv := f.createConversation(t, models.ConversationInProgress, models.PaymentConfirmed)
	started := time.Now().UTC().Add(-time.Hour)
	require.NoError(t, f.db.Model(conv).Update("started_at", started).Error)

	rec := f.patchStatus(t, f.candidateID, conv.ID, map[string]interface{}{
		"status":   models.ConversationCompleted,
		"rating":   5,
		"feedback": "very helpful",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var employee models.Employee
	require.NoError(t, f.db.First(&employee, f.employeeID).Error)
	assert.Equal(t, 2, employee.TotalRatings)
	assert.InDelta(t, 4.5, employee.AverageRating, 0.0001)

	var stored models.Conversation
	require.NoError(t, f.db.First(&stored, conv.ID).Error)
	require.NotNil(t, stored.Rating)
	assert.Equal(t, 5, *stored.Rating)
	assert.NotNil(t, stored.EndedAt)
}

func TestUpdateStatusRatingByEmployeeRejected(t *testing.T) {
	f := newHandlerFixture(t)
	conv := f.createConversation(t, models.ConversationInProgress, models.PaymentConfirmed)

	rec := f.patchStatus(t, f.employeeUserID, conv.ID, map[string]interface{}{
		"status": models.ConversationCompleted,
		"rating": 4,
	})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	var employee models.Employee
	require.NoError(t, f.db.First(&employee, f.employeeID).Error)
	assert.Zero(t, employee.TotalRatings)
}

type fakeMailer struct {
	cancelled []string
}

func (f *fakeMailer) BookingCancelled(to string, conv *models.Conversation) error {
	f.cancelled = append(f.cancelled, to)
	return nil
}

func TestUpdateStatusCancellationSendsMail(t *testing.T) {
	f := newHandlerFixture(t)
	mailer := &fakeMailer{}
	f.h = f.h.WithMailer(mailer)

	conv := f.createConversation(t, models.ConversationAccepted, models.PaymentConfirmed)
	rec := f.patchStatus(t, f.candidateID, conv.ID, map[string]interface{}{
		"status": models.ConversationCancelled,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var candidate models.User
	require.NoError(t, f.db.First(&candidate, f.candidateID).Error)
	assert.Equal(t, []string{candidate.Email}, mailer.cancelled)
}

func TestUpdateStatusAcceptSendsNoMail(t *testing.T) {
	f := newHandlerFixture(t)
	mailer := &fakeMailer{}
	f.h = f.h.WithMailer(mailer)

	conv := f.createConversation(t, models.ConversationPending, models.PaymentConfirmed)
	rec := f.patchStatus(t, f.employeeUserID, conv.ID, map[string]interface{}{
		"status": models.ConversationAccepted,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, mailer.cancelled)
}

func TestUpdateStatusMissingConversation(t *testing.T) {
	f := newHandlerFixture(t)

	rec := f.patchStatus(t, f.candidateID, 404, map[string]interface{}{
		"status": models.ConversationCancelled,
	})
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetEmployeeConversationsHidesUnpaidHolds(t *testing.T) {
	f := newHandlerFixture(t)
	f.createConversation(t, models.ConversationPending, models.PaymentPending)
	paid := f.createConversation(t, models.ConversationPending, models.PaymentConfirmed)
	free := f.createConversation(t, models.ConversationPending, models.PaymentNone)

	req := httptest.NewRequest(http.MethodGet,
		fmt.Sprintf("/conversations/employee/%d", f.employeeID), nil)
	req = mux.SetURLVars(req, map[string]string{"employeeId": fmt.Sprint(f.employeeID)})

	rec := httptest.NewRecorder()
	f.h.GetEmployeeConversations(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Conversations []models.Conversation `json:"conversations"`
		Total         int64                 `json:"total"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.EqualValues(t, 2, resp.Total)

	ids := make(map[uint]bool)
	for _, c := range resp.Conversations {
		ids[c.ID] = true
	}
	assert.True(t, ids[paid.ID])
	assert.True(t, ids[free.ID])
}
