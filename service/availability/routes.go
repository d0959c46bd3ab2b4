package availability

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/KOseiBonsu/Konekt-server/cmd/models"
	"github.com/gorilla/mux"
	"gorm.io/gorm"
)

type AvailabilityHandler struct {
	db       *gorm.DB
	resolver *Resolver
}

func NewAvailabilityHandler(db *gorm.DB, resolver *Resolver) *AvailabilityHandler {
	return &AvailabilityHandler{db: db, resolver: resolver}
}

func (h *AvailabilityHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/employees/{employeeId}/windows", h.CreateWindow).Methods("POST")
	router.HandleFunc("/employees/{employeeId}/windows", h.GetWindows).Methods("GET")
	router.HandleFunc("/employees/{employeeId}/windows/{id}", h.UpdateWindow).Methods("PUT")
	router.HandleFunc("/employees/{employeeId}/windows/{id}", h.DeleteWindow).Methods("DELETE")
	router.HandleFunc("/employees/{employeeId}/slots", h.GetOpenSlots).Methods("GET")
}

func validWindow(w models.AvailabilityWindow) string {
	if w.DayOfWeek < 0 || w.DayOfWeek > 6 {
		return "day_of_week must be between 0 and 6"
	}
	if w.StartMinute < 0 || w.EndMinute > 24*60 || w.EndMinute <= w.StartMinute {
		return "end_minute must be after start_minute within one day"
	}
	if _, err := time.LoadLocation(w.Timezone); err != nil {
		return "unknown timezone"
	}
	return ""
}

func (h *AvailabilityHandler) CreateWindow(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	employeeID, err := strconv.ParseUint(vars["employeeId"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid employee ID", http.StatusBadRequest)
		return
	}

	var window models.AvailabilityWindow
	if err := json.NewDecoder(r.Body).Decode(&window); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if window.Timezone == "" {
		window.Timezone = "UTC"
	}
	if msg := validWindow(window); msg != "" {
		http.Error(w, msg, http.StatusUnprocessableEntity)
		return
	}

	var employee models.Employee
	if err := h.db.First(&employee, employeeID).Error; err != nil {
		http.Error(w, "Employee not found", http.StatusNotFound)
		return
	}

	// Reject overlap with an existing window on the same weekday.
	var existing models.AvailabilityWindow
	overlap := h.db.Where("employee_id = ? AND day_of_week = ? AND start_minute < ? AND end_minute > ?",
		employeeID, window.DayOfWeek, window.EndMinute, window.StartMinute).First(&existing)
	if overlap.Error == nil {
		http.Error(w, "Window overlaps with existing availability", http.StatusConflict)
		return
	}
	if overlap.Error != gorm.ErrRecordNotFound {
		http.Error(w, "Database error", http.StatusInternalServerError)
		return
	}

	window.EmployeeID = uint(employeeID)
	if err := h.db.Create(&window).Error; err != nil {
		http.Error(w, "Error creating availability window", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(window)
}

func (h *AvailabilityHandler) GetWindows(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	employeeID, err := strconv.ParseUint(vars["employeeId"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid employee ID", http.StatusBadRequest)
		return
	}

	var windows []models.AvailabilityWindow
	if err := h.db.Where("employee_id = ?", employeeID).
		Order("day_of_week, start_minute").Find(&windows).Error; err != nil {
		http.Error(w, "Error retrieving availability windows", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(windows)
}

func (h *AvailabilityHandler) UpdateWindow(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	employeeID, err := strconv.ParseUint(vars["employeeId"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid employee ID", http.StatusBadRequest)
		return
	}
	windowID, err := strconv.ParseUint(vars["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid window ID", http.StatusBadRequest)
		return
	}

	var updateData models.AvailabilityWindow
	if err := json.NewDecoder(r.Body).Decode(&updateData); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if updateData.Timezone == "" {
		updateData.Timezone = "UTC"
	}
	if msg := validWindow(updateData); msg != "" {
		http.Error(w, msg, http.StatusUnprocessableEntity)
		return
	}

	var window models.AvailabilityWindow
	if err := h.db.Where("id = ? AND employee_id = ?", windowID, employeeID).First(&window).Error; err != nil {
		http.Error(w, "Window not found", http.StatusNotFound)
		return
	}

	var existing models.AvailabilityWindow
	overlap := h.db.Where("id != ? AND employee_id = ? AND day_of_week = ? AND start_minute < ? AND end_minute > ?",
		windowID, employeeID, updateData.DayOfWeek, updateData.EndMinute, updateData.StartMinute).First(&existing)
	if overlap.Error == nil {
		http.Error(w, "Window overlaps with existing availability", http.StatusConflict)
		return
	}

	window.DayOfWeek = updateData.DayOfWeek
	window.StartMinute = updateData.StartMinute
	window.EndMinute = updateData.EndMinute
	window.Timezone = updateData.Timezone

	if err := h.db.Save(&window).Error; err != nil {
		http.Error(w, "Error updating window", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(window)
}

func (h *AvailabilityHandler) DeleteWindow(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	employeeID, err := strconv.ParseUint(vars["employeeId"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid employee ID", http.StatusBadRequest)
		return
	}
	windowID, err := strconv.ParseUint(vars["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid window ID", http.StatusBadRequest)
		return
	}

	result := h.db.Where("id = ? AND employee_id = ?", windowID, employeeID).Delete(&models.AvailabilityWindow{})
	if result.Error != nil {
		http.Error(w, "Error deleting window", http.StatusInternalServerError)
		return
	}
	if result.RowsAffected == 0 {
		http.Error(w, "Window not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"message": "Availability window deleted successfully",
	})
}

// GetOpenSlots lists concrete bookable intervals for an employee. Defaults to
// the next seven days when no range is given.
func (h *AvailabilityHandler) GetOpenSlots(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	employeeID, err := strconv.ParseUint(vars["employeeId"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid employee ID", http.StatusBadRequest)
		return
	}

	now := time.Now().UTC()
	from := now
	to := now.AddDate(0, 0, 7)

	if s := r.URL.Query().Get("from"); s != "" {
		from, err = time.Parse(time.RFC3339, s)
		if err != nil {
			http.Error(w, "Invalid from. Use RFC3339", http.StatusBadRequest)
			return
		}
	}
	if s := r.URL.Query().Get("to"); s != "" {
		to, err = time.Parse(time.RFC3339, s)
		if err != nil {
			http.Error(w, "Invalid to. Use RFC3339", http.StatusBadRequest)
			return
		}
	}

	slots, err := h.resolver.OpenSlots(h.db, uint(employeeID), from, to)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			http.Error(w, "Employee not found", http.StatusNotFound)
			return
		}
		http.Error(w, "Error resolving open slots", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"employee_id": employeeID,
		"from":        from,
		"to":          to,
		"slots":       slots,
	})
}
