package coupon

import (
	"errors"
	"math"
	"strings"
	"time"

	"github.com/KOseiBonsu/Konekt-server/cmd/models"
	"gorm.io/gorm"
)

// ErrNegativeAmount is the only failure a coupon lookup ever raises; unknown
// or expired codes simply come back invalid.
var ErrNegativeAmount = errors.New("original amount must not be negative")

type Result struct {
	Valid       bool    `json:"valid"`
	FinalAmount float64 `json:"final_amount,omitempty"`
}

type Validator struct{}

func NewValidator() *Validator {
	return &Validator{}
}

// Validate looks up code case-insensitively and returns the discounted total,
// clamped at zero. A final amount of exactly zero tells the orchestrator to
// skip payment entirely.
func (v *Validator) Validate(db *gorm.DB, code string, originalAmount float64, now time.Time) (Result, error) {
	if originalAmount < 0 {
		return Result{}, ErrNegativeAmount
	}

	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return Result{Valid: false}, nil
	}

	var c models.Coupon
	if err := db.Where("code = ?", code).First(&c).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Result{Valid: false}, nil
		}
		return Result{}, err
	}

	if !c.Active {
		return Result{Valid: false}, nil
	}
	if c.ExpiresAt != nil && c.ExpiresAt.Before(now) {
		return Result{Valid: false}, nil
	}

	var final float64
	switch c.DiscountKind {
	case models.DiscountFull:
		final = 0
	case models.DiscountPercentage:
		final = originalAmount * (1 - c.Value/100)
	case models.DiscountFixed:
		final = originalAmount - c.Value
	default:
		return Result{Valid: false}, nil
	}

	final = math.Max(0, final)
	final = math.Round(final*100) / 100
	return Result{Valid: true, FinalAmount: final}, nil
}
