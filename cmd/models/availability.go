package models

import (
	"gorm.io/gorm"
)

// AvailabilityWindow is a weekly recurring window during which an employee
// accepts bookings. Times are minutes since midnight in the window's timezone.
type AvailabilityWindow struct {
	gorm.Model
	EmployeeID  uint   `gorm:"column:employee_id;not null;index" json:"employee_id"`
	DayOfWeek   int    `gorm:"column:day_of_week;not null" json:"day_of_week"`
	StartMinute int    `gorm:"column:start_minute;not null" json:"start_minute"`
	EndMinute   int    `gorm:"column:end_minute;not null" json:"end_minute"`
	Timezone    string `gorm:"column:timezone;size:64;not null;default:UTC" json:"timezone"`

	Employee *Employee `gorm:"foreignKey:EmployeeID" json:"-"`
}

func (AvailabilityWindow) TableName() string {
	return "availability_windows"
}
