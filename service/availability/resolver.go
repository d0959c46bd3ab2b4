package availability

import (
	"errors"
	"sort"
	"time"

	"github.com/KOseiBonsu/Konekt-server/cmd/models"
	"gorm.io/gorm"
)

var (
	ErrSlotUnavailable   = errors.New("requested slot is not available")
	ErrLeadTimeViolation = errors.New("scheduled time is inside the booking lead time")
)

const DefaultLeadTime = 60 * time.Minute

// holdStatuses are the conversation statuses that keep a slot occupied. A
// pending conversation is a provisional hold and blocks the slot until it is
// confirmed, declined or swept.
var holdStatuses = []string{
	models.ConversationPending,
	models.ConversationAccepted,
	models.ConversationInProgress,
}

// Slot is a concrete bookable interval, [Start, End).
type Slot struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

type Resolver struct {
	Lead time.Duration
}

func NewResolver(lead time.Duration) *Resolver {
	if lead <= 0 {
		lead = DefaultLeadTime
	}
	return &Resolver{Lead: lead}
}

// OpenSlots expands the employee's weekly windows into concrete intervals
// between from and to, minus intervals already held by conversations. The
// result is clipped to [from, to) and ordered by start time.
func (r *Resolver) OpenSlots(db *gorm.DB, employeeID uint, from, to time.Time) ([]Slot, error) {
	if !to.After(from) {
		return nil, nil
	}

	var employee models.Employee
	if err := db.First(&employee, employeeID).Error; err != nil {
		return nil, err
	}
	if !employee.IsAvailable {
		return nil, nil
	}

	var windows []models.AvailabilityWindow
	if err := db.Where("employee_id = ?", employeeID).Find(&windows).Error; err != nil {
		return nil, err
	}

	slots := expandWindows(windows, from, to)
	if len(slots) == 0 {
		return nil, nil
	}

	busy, err := heldIntervals(db, employeeID, from, to)
	if err != nil {
		return nil, err
	}

	open := subtract(slots, busy)
	sort.Slice(open, func(i, j int) bool { return open[i].Start.Before(open[j].Start) })
	return open, nil
}

// ValidateSlot checks that a requested booking starts after the lead time and
// fits entirely inside one open interval, and that the employee's daily
// session cap is not exhausted for that day.
func (r *Resolver) ValidateSlot(db *gorm.DB, employeeID uint, start time.Time, durationMinutes int, now time.Time) error {
	if start.Before(now.Add(r.Lead)) {
		return ErrLeadTimeViolation
	}

	end := start.Add(time.Duration(durationMinutes) * time.Minute)

	open, err := r.OpenSlots(db, employeeID, start, end)
	if err != nil {
		return err
	}

	contained := false
	for _, s := range open {
		if !s.Start.After(start) && !s.End.Before(end) {
			contained = true
			break
		}
	}
	if !contained {
		return ErrSlotUnavailable
	}

	var employee models.Employee
	if err := db.First(&employee, employeeID).Error; err != nil {
		return err
	}

	dayStart := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	var sameDay int64
	err = db.Model(&models.Conversation{}).
		Where("employee_id = ? AND status IN ? AND scheduled_time >= ? AND scheduled_time < ?",
			employeeID, holdStatuses, dayStart, dayStart.Add(24*time.Hour)).
		Count(&sameDay).Error
	if err != nil {
		return err
	}
	if int(sameDay) >= employee.MaxDailySessions {
		return ErrSlotUnavailable
	}

	return nil
}

func expandWindows(windows []models.AvailabilityWindow, from, to time.Time) []Slot {
	var slots []Slot
	for _, w := range windows {
		loc, err := time.LoadLocation(w.Timezone)
		if err != nil {
			loc = time.UTC
		}

		// Walk one day past each edge so windows straddling the range in the
		// window's own timezone are not missed.
		day := from.In(loc).AddDate(0, 0, -1)
		day = time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, loc)
		last := to.In(loc).AddDate(0, 0, 1)

		for ; !day.After(last); day = day.AddDate(0, 0, 1) {
			if int(day.Weekday()) != w.DayOfWeek {
				continue
			}
			start := day.Add(time.Duration(w.StartMinute) * time.Minute)
			end := day.Add(time.Duration(w.EndMinute) * time.Minute)
			if !end.After(start) {
				continue
			}
			if start.Before(from) {
				start = from
			}
			if end.After(to) {
				end = to
			}
			if end.After(start) {
				slots = append(slots, Slot{Start: start.UTC(), End: end.UTC()})
			}
		}
	}
	return slots
}

func heldIntervals(db *gorm.DB, employeeID uint, from, to time.Time) ([]Slot, error) {
	// Bookings starting up to a day before the range could still reach into it.
	var conversations []models.Conversation
	err := db.Where("employee_id = ? AND status IN ? AND scheduled_time < ? AND scheduled_time > ?",
		employeeID, holdStatuses, to, from.Add(-24*time.Hour)).
		Find(&conversations).Error
	if err != nil {
		return nil, err
	}

	var busy []Slot
	for _, c := range conversations {
		end := c.ScheduledTime.Add(time.Duration(c.DurationMinutes) * time.Minute)
		if end.After(from) {
			busy = append(busy, Slot{Start: c.ScheduledTime.UTC(), End: end.UTC()})
		}
	}
	return busy, nil
}

func subtract(slots, busy []Slot) []Slot {
	open := slots
	for _, b := range busy {
		var next []Slot
		for _, s := range open {
			if !b.Start.Before(s.End) || !b.End.After(s.Start) {
				next = append(next, s)
				continue
			}
			if b.Start.After(s.Start) {
				next = append(next, Slot{Start: s.Start, End: b.Start})
			}
			if b.End.Before(s.End) {
				next = append(next, Slot{Start: b.End, End: s.End})
			}
		}
		open = next
	}
	return open
}
