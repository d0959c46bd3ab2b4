package coupon

import (
	"testing"
	"time"

	"github.com/KOseiBonsu/Konekt-server/cmd/models"
	"github.com/glebarez/sqlite"
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

	require.NoError(t, db.AutoMigrate(&models.Coupon{}))
	return db
}

func seedCoupon(t *testing.T, db *gorm.DB, c models.Coupon) {
	t.Helper()
	require.NoError(t, db.Create(&c).Error)
}

func TestValidatePercentage(t *testing.T) {
	db := newTestDB(t)
	seedCoupon(t, db, models.Coupon{Code: "SAVE25", DiscountKind: models.DiscountPercentage, Value: 25, Active: true})

	res, err := NewValidator().Validate(db, "SAVE25", 60, time.Now())
	require.NoError(t, err)
	assert.True(t, res.Valid)
	assert.Equal(t, 45.0, res.FinalAmount)
}

func TestValidateFixedClampsAtZero(t *testing.T) {
	db := newTestDB(t)
	seedCoupon(t, db, models.Coupon{Code: "MINUS50", DiscountKind: models.DiscountFixed, Value: 50, Active: true})

	res, err := NewValidator().Validate(db, "MINUS50", 30, time.Now())
	require.NoError(t, err)
	assert.True(t, res.Valid)
	assert.Equal(t, 0.0, res.FinalAmount)
}

func TestValidateFullAlwaysZero(t *testing.T) {
	db := newTestDB(t)
	seedCoupon(t, db, models.Coupon{Code: "COMPED", DiscountKind: models.DiscountFull, Value: 0, Active: true})

	res, err := NewValidator().Validate(db, "COMPED", 500, time.Now())
	require.NoError(t, err)
	assert.True(t, res.Valid)
	assert.Equal(t, 0.0, res.FinalAmount)
}

func TestValidateCaseInsensitive(t *testing.T) {
	db := newTestDB(t)
	seedCoupon(t, db, models.Coupon{Code: "SAVE10", DiscountKind: models.DiscountPercentage, Value: 10, Active: true})

	res, err := NewValidator().Validate(db, "  save10 ", 100, time.Now())
	require.NoError(t, err)
	assert.True(t, res.Valid)
	assert.Equal(t, 90.0, res.FinalAmount)
}

func TestValidateUnknownCode(t *testing.T) {
	db := newTestDB(t)

	res, err := NewValidator().Validate(db, "NOPE", 100, time.Now())
	require.NoError(t, err)
	assert.False(t, res.Valid)
}

func TestValidateInactiveCode(t *testing.T) {
	db := newTestDB(t)
	seedCoupon(t, db, models.Coupon{Code: "OLD", DiscountKind: models.DiscountPercentage, Value: 10, Active: false})

	res, err := NewValidator().Validate(db, "OLD", 100, time.Now())
	require.NoError(t, err)
	assert.False(t, res.Valid)
}

func TestValidateExpiredCode(t *testing.T) {
	db := newTestDB(t)
	expired := time.Now().Add(-time.Hour)
	seedCoupon(t, db, models.Coupon{Code: "LATE", DiscountKind: models.DiscountPercentage, Value: 10, Active: true, ExpiresAt: &expired})

	res, err := NewValidator().Validate(db, "LATE", 100, time.Now())
	require.NoError(t, err)
	assert.False(t, res.Valid)
}

func TestValidateFutureExpiryStillValid(t *testing.T) {
	db := newTestDB(t)
	future := time.Now().Add(time.Hour)
	seedCoupon(t, db, models.Coupon{Code: "SOON", DiscountKind: models.DiscountFixed, Value: 5, Active: true, ExpiresAt: &future})

	res, err := NewValidator().Validate(db, "SOON", 30, time.Now())
	require.NoError(t, err)
	assert.True(t, res.Valid)
	assert.Equal(t, 25.0, res.FinalAmount)
}

func TestValidateNegativeAmount(t *testing.T) {
	db := newTestDB(t)

	_, err := NewValidator().Validate(db, "SAVE25", -1, time.Now())
	require.ErrorIs(t, err, ErrNegativeAmount)
}

func TestValidateRoundsToCents(t *testing.T) {
	db := newTestDB(t)
	seedCoupon(t, db, models.Coupon{Code: "THIRD", DiscountKind: models.DiscountPercentage, Value: 33.333, Active: true})

	res, err := NewValidator().Validate(db, "THIRD", 10, time.Now())
	require.NoError(t, err)
	assert.True(t, res.Valid)
	assert.Equal(t, 6.67, res.FinalAmount)
}
