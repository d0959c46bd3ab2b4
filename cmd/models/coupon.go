package models

import (
	"time"

	"gorm.io/gorm"
)

// Coupon discount kinds.
const (
	DiscountPercentage = "percentage"
	DiscountFixed      = "fixed"
	DiscountFull       = "full"
)

// Coupon is a stateless discount code. Codes are stored upper-case and
// matched case-insensitively. No redemption counter is kept.
type Coupon struct {
	gorm.Model
	Code         string     `gorm:"column:code;size:50;not null;uniqueIndex" json:"code"`
	DiscountKind string     `gorm:"column:discount_kind;size:20;not null" json:"discount_kind"`
	Value        float64    `gorm:"column:value;not null;default:0" json:"value"`
	Active       bool       `gorm:"column:active;default:true" json:"active"`
	ExpiresAt    *time.Time `gorm:"column:expires_at" json:"expires_at,omitempty"`
}
