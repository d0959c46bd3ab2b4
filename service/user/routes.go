package user

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/KOseiBonsu/Konekt-server/cmd/models"
	"github.com/KOseiBonsu/Konekt-server/cmd/utils"
	"github.com/gorilla/mux"
	"gorm.io/gorm"
)

type Handler struct {
	db *gorm.DB
}

func NewHandler(db *gorm.DB) *Handler {
	return &Handler{db: db}
}

func (h *Handler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/conversations/employees", h.GetEmployees).Methods("GET")
	router.HandleFunc("/employees/{id}", h.GetEmployee).Methods("GET")
	router.HandleFunc("/employees/{id}/settings", utils.AuthMiddleware(h.UpdateEmployeeSettings)).Methods("PATCH")
}

// GetEmployees is the bookable directory. Supports expertise, min_rating and
// available filters plus pagination.
func (h *Handler) GetEmployees(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	pageSize := 20

	query := h.db.Model(&models.Employee{}).Preload("User").Preload("Windows")

	if expertise := r.URL.Query().Get("expertise"); expertise != "" {
		query = query.Where("expertise LIKE ?", "%"+expertise+"%")
	}
	if minRating := r.URL.Query().Get("min_rating"); minRating != "" {
		rating, err := strconv.ParseFloat(minRating, 64)
		if err != nil {
			http.Error(w, "Invalid min_rating", http.StatusBadRequest)
			return
		}
		query = query.Where("average_rating >= ?", rating)
	}
	if r.URL.Query().Get("available") == "true" {
		query = query.Where("is_available = ?", true)
	}

	var total int64
	query.Count(&total)

	var employees []models.Employee
	if err := query.Offset((page - 1) * pageSize).Limit(pageSize).
		Order("average_rating DESC, total_ratings DESC").Find(&employees).Error; err != nil {
		http.Error(w, "Error retrieving employees", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"employees":   employees,
		"total":       total,
		"page":        page,
		"page_size":   pageSize,
		"total_pages": (total + int64(pageSize) - 1) / int64(pageSize),
	})
}

func (h *Handler) GetEmployee(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	employeeID, err := strconv.ParseUint(vars["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid employee ID", http.StatusBadRequest)
		return
	}

	var employee models.Employee
	if err := h.db.Preload("User").Preload("Windows").First(&employee, employeeID).Error; err != nil {
		http.Error(w, "Employee not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(employee)
}

type settingsUpdateRequest struct {
	HourlyRate       *float64 `json:"hourly_rate,omitempty"`
	Expertise        *string  `json:"expertise,omitempty"`
	Bio              *string  `json:"bio,omitempty"`
	IsAvailable      *bool    `json:"is_available,omitempty"`
	MaxDailySessions *int     `json:"max_daily_sessions,omitempty"`
}

// UpdateEmployeeSettings is the only mutation path for an employee profile,
// and only the employee's own account may use it. Rate changes never touch
// existing bookings; the rate is snapshotted per conversation.
func (h *Handler) UpdateEmployeeSettings(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	employeeID, err := strconv.ParseUint(vars["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid employee ID", http.StatusBadRequest)
		return
	}

	actorID, err := utils.GetUserIDFromContext(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var employee models.Employee
	if err := h.db.First(&employee, employeeID).Error; err != nil {
		http.Error(w, "Employee not found", http.StatusNotFound)
		return
	}
	if employee.UserID != actorID {
		http.Error(w, "Only the employee may update their settings", http.StatusForbidden)
		return
	}

	var req settingsUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.HourlyRate != nil {
		if *req.HourlyRate <= 0 {
			http.Error(w, "hourly_rate must be positive", http.StatusUnprocessableEntity)
			return
		}
		employee.HourlyRate = *req.HourlyRate
	}
	if req.MaxDailySessions != nil {
		if *req.MaxDailySessions < 1 {
			http.Error(w, "max_daily_sessions must be at least 1", http.StatusUnprocessableEntity)
			return
		}
		employee.MaxDailySessions = *req.MaxDailySessions
	}
	if req.Expertise != nil {
		employee.Expertise = *req.Expertise
	}
	if req.Bio != nil {
		employee.Bio = *req.Bio
	}
	if req.IsAvailable != nil {
		employee.IsAvailable = *req.IsAvailable
	}

	if err := h.db.Save(&employee).Error; err != nil {
		http.Error(w, "Error updating employee settings", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(employee)
}
