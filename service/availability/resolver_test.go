package availability

import (
	"testing"
	"time"

	"github.com/KOseiBonsu/Konekt-server/cmd/models"
	"github.com/glebarez/sqlite"
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
		&models.AvailabilityWindow{},
		&models.Conversation{},
	))
	return db
}

// monday is a fixed reference Monday so weekday math is deterministic.
var monday = time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)

func seedEmployee(t *testing.T, db *gorm.DB, maxDaily int) *models.Employee {
	t.Helper()
	employee := &models.Employee{
		UserID:           1,
		HourlyRate:       60,
		IsAvailable:      true,
		MaxDailySessions: maxDaily,
	}
	require.NoError(t, db.Create(employee).Error)

	// Mondays 09:00-17:00 UTC.
	window := &models.AvailabilityWindow{
		EmployeeID:  employee.ID,
		DayOfWeek:   1,
		StartMinute: 9 * 60,
		EndMinute:   17 * 60,
		Timezone:    "UTC",
	}
	require.NoError(t, db.Create(window).Error)
	return employee
}

func TestOpenSlotsExpandsWeeklyWindow(t *testing.T) {
	db := newTestDB(t)
	employee := seedEmployee(t, db, 8)
	r := NewResolver(0)

	slots, err := r.OpenSlots(db, employee.ID, monday, monday.AddDate(0, 0, 1))
	require.NoError(t, err)
	require.Len(t, slots, 1)
	require.Equal(t, monday.Add(9*time.Hour), slots[0].Start)
	require.Equal(t, monday.Add(17*time.Hour), slots[0].End)
}

func TestOpenSlotsSubtractsHeldConversations(t *testing.T) {
	db := newTestDB(t)
	employee := seedEmployee(t, db, 8)
	r := NewResolver(0)

	held := models.Conversation{
		CandidateID:     2,
		EmployeeID:      employee.ID,
		Topic:           "interview prep",
		Status:          models.ConversationAccepted,
		ScheduledTime:   monday.Add(10 * time.Hour),
		DurationMinutes: 30,
		HourlyRate:      60,
		TotalAmount:     30,
	}
	require.NoError(t, db.Create(&held).Error)

	slots, err := r.OpenSlots(db, employee.ID, monday, monday.AddDate(0, 0, 1))
	require.NoError(t, err)
	require.Len(t, slots, 2)
	require.Equal(t, monday.Add(9*time.Hour), slots[0].Start)
	require.Equal(t, monday.Add(10*time.Hour), slots[0].End)
	require.Equal(t, monday.Add(10*time.Hour+30*time.Minute), slots[1].Start)
	require.Equal(t, monday.Add(17*time.Hour), slots[1].End)
}

func TestOpenSlotsDeclinedAndCancelledDoNotHold(t *testing.T) {
	db := newTestDB(t)
	employee := seedEmployee(t, db, 8)
	r := NewResolver(0)

	for _, status := range []string{models.ConversationDeclined, models.ConversationCancelled} {
		conv := models.Conversation{
			CandidateID:     2,
			EmployeeID:      employee.ID,
			Topic:           "released",
			Status:          status,
			ScheduledTime:   monday.Add(11 * time.Hour),
			DurationMinutes: 60,
			HourlyRate:      60,
			TotalAmount:     60,
		}
		require.NoError(t, db.Create(&conv).Error)
	}

	slots, err := r.OpenSlots(db, employee.ID, monday, monday.AddDate(0, 0, 1))
	require.NoError(t, err)
	require.Len(t, slots, 1)
}

func TestOpenSlotsUnavailableEmployee(t *testing.T) {
	db := newTestDB(t)
	employee := seedEmployee(t, db, 8)
	require.NoError(t, db.Model(employee).Update("is_available", false).Error)

	slots, err := NewResolver(0).OpenSlots(db, employee.ID, monday, monday.AddDate(0, 0, 1))
	require.NoError(t, err)
	require.Empty(t, slots)
}

func TestValidateSlotLeadTime(t *testing.T) {
	db := newTestDB(t)
	employee := seedEmployee(t, db, 8)
	r := NewResolver(60 * time.Minute)

	now := monday.Add(9*time.Hour + 30*time.Minute)

	err := r.ValidateSlot(db, employee.ID, now.Add(30*time.Minute), 30, now)
	require.ErrorIs(t, err, ErrLeadTimeViolation)

	err = r.ValidateSlot(db, employee.ID, now.Add(2*time.Hour), 30, now)
	require.NoError(t, err)
}

func TestValidateSlotOutsideWindow(t *testing.T) {
	db := newTestDB(t)
	employee := seedEmployee(t, db, 8)
	r := NewResolver(60 * time.Minute)

	now := monday.Add(8 * time.Hour)

	// Ends at 17:30, past the window edge.
	err := r.ValidateSlot(db, employee.ID, monday.Add(17*time.Hour-30*time.Minute), 60, now)
	require.ErrorIs(t, err, ErrSlotUnavailable)

	// Tuesday has no window at all.
	err = r.ValidateSlot(db, employee.ID, monday.AddDate(0, 0, 1).Add(10*time.Hour), 30, now)
	require.ErrorIs(t, err, ErrSlotUnavailable)
}

func TestValidateSlotConflict(t *testing.T) {
	db := newTestDB(t)
	employee := seedEmployee(t, db, 8)
	r := NewResolver(60 * time.Minute)

	held := models.Conversation{
		CandidateID:     2,
		EmployeeID:      employee.ID,
		Topic:           "system design",
		Status:          models.ConversationPending,
		ScheduledTime:   monday.Add(10 * time.Hour),
		DurationMinutes: 60,
		HourlyRate:      60,
		TotalAmount:     60,
	}
	require.NoError(t, db.Create(&held).Error)

	now := monday.Add(8 * time.Hour)

	// Overlaps the provisional hold.
	err := r.ValidateSlot(db, employee.ID, monday.Add(10*time.Hour+30*time.Minute), 30, now)
	require.ErrorIs(t, err, ErrSlotUnavailable)

	// Right after the hold is fine.
	err = r.ValidateSlot(db, employee.ID, monday.Add(11*time.Hour), 30, now)
	require.NoError(t, err)
}

func TestValidateSlotDailyCap(t *testing.T) {
	db := newTestDB(t)
	employee := seedEmployee(t, db, 1)
	r := NewResolver(60 * time.Minute)

	held := models.Conversation{
		CandidateID:     2,
		EmployeeID:      employee.ID,
		Topic:           "mock interview",
		Status:          models.ConversationAccepted,
		ScheduledTime:   monday.Add(9 * time.Hour),
		DurationMinutes: 30,
		HourlyRate:      60,
		TotalAmount:     30,
	}
	require.NoError(t, db.Create(&held).Error)

	now := monday.Add(8 * time.Hour)
	err := r.ValidateSlot(db, employee.ID, monday.Add(14*time.Hour), 30, now)
	require.ErrorIs(t, err, ErrSlotUnavailable)
}
