package coupon

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/KOseiBonsu/Konekt-server/cmd/models"
	"github.com/gorilla/mux"
	"gorm.io/gorm"
)

type CouponHandler struct {
	db        *gorm.DB
	validator *Validator
}

func NewCouponHandler(db *gorm.DB, validator *Validator) *CouponHandler {
	return &CouponHandler{db: db, validator: validator}
}

func (h *CouponHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/conversations/validate-coupon", h.ValidateCoupon).Methods("POST")
	router.HandleFunc("/coupons", h.CreateCoupon).Methods("POST")
	router.HandleFunc("/coupons", h.GetCoupons).Methods("GET")
}

func (h *CouponHandler) ValidateCoupon(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code           string  `json:"code"`
		OriginalAmount float64 `json:"original_amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	result, err := h.validator.Validate(h.db, req.Code, req.OriginalAmount, time.Now().UTC())
	if err != nil {
		if errors.Is(err, ErrNegativeAmount) {
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
			return
		}
		http.Error(w, "Error validating coupon", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

func (h *CouponHandler) CreateCoupon(w http.ResponseWriter, r *http.Request) {
	var coupon models.Coupon
	if err := json.NewDecoder(r.Body).Decode(&coupon); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	coupon.Code = strings.ToUpper(strings.TrimSpace(coupon.Code))
	if coupon.Code == "" {
		http.Error(w, "Code is required", http.StatusUnprocessableEntity)
		return
	}
	switch coupon.DiscountKind {
	case models.DiscountPercentage:
		if coupon.Value <= 0 || coupon.Value > 100 {
			http.Error(w, "Percentage value must be between 0 and 100", http.StatusUnprocessableEntity)
			return
		}
	case models.DiscountFixed:
		if coupon.Value <= 0 {
			http.Error(w, "Fixed value must be positive", http.StatusUnprocessableEntity)
			return
		}
	case models.DiscountFull:
	default:
		http.Error(w, "Unknown discount kind", http.StatusUnprocessableEntity)
		return
	}

	if err := h.db.Create(&coupon).Error; err != nil {
		http.Error(w, "Error creating coupon", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(coupon)
}

func (h *CouponHandler) GetCoupons(w http.ResponseWriter, r *http.Request) {
	var coupons []models.Coupon
	if err := h.db.Order("code").Find(&coupons).Error; err != nil {
		http.Error(w, "Error retrieving coupons", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(coupons)
}
