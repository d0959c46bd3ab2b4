package models

import (
	"gorm.io/gorm"
)

const (
	RoleCandidate = "candidate"
	RoleEmployee  = "employee"
)

type User struct {
	gorm.Model
	FullName           string `gorm:"column:full_name;size:255;not null" json:"full_name"`
	Email              string `gorm:"column:email;size:255;not null" json:"email"`
	Role               string `gorm:"column:role;size:50;not null" json:"role"`
	Phone              string `gorm:"column:phone;size:20" json:"phone,omitempty"`
	Status             string `gorm:"column:status;size:50;not null;default:active" json:"status"`
	ProfilePicturePath string `gorm:"column:profile_picture_path;size:255" json:"profile_picture_path,omitempty"`

	Employee *Employee `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"employee,omitempty"`
}

type Employee struct {
	gorm.Model
	UserID           uint    `gorm:"column:user_id;not null" json:"user_id"`
	HourlyRate       float64 `gorm:"column:hourly_rate;not null" json:"hourly_rate"`
	Expertise        string  `gorm:"column:expertise;size:255" json:"expertise"`
	Bio              string  `gorm:"column:bio;type:text" json:"bio"`
	IsAvailable      bool    `gorm:"column:is_available;default:true" json:"is_available"`
	MaxDailySessions int     `gorm:"column:max_daily_sessions;not null;default:8" json:"max_daily_sessions"`

	AverageRating float64 `gorm:"column:average_rating;default:0" json:"average_rating"`
	TotalRatings  int     `gorm:"column:total_ratings;default:0" json:"total_ratings"`

	Windows []AvailabilityWindow `gorm:"foreignKey:EmployeeID;constraint:OnDelete:CASCADE" json:"windows,omitempty"`
	User    *User                `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

func (Employee) TableName() string {
	return "employees"
}
