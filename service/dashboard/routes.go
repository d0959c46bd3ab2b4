package dashboard

import (
	"encoding/json"
	"net/http"

	"github.com/KOseiBonsu/Konekt-server/cmd/models"
	"github.com/gorilla/mux"
	"gorm.io/gorm"
)

type DashboardHandler struct {
	db *gorm.DB
}

func NewDashboardHandler(db *gorm.DB) *DashboardHandler {
	return &DashboardHandler{db: db}
}

func (h *DashboardHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/dashboard/stats", h.GetDashboardStats).Methods("GET")
}

func (h *DashboardHandler) GetDashboardStats(w http.ResponseWriter, r *http.Request) {
	statuses := []string{
		models.ConversationPending,
		models.ConversationAccepted,
		models.ConversationInProgress,
		models.ConversationCompleted,
		models.ConversationCancelled,
		models.ConversationDeclined,
	}

	byStatus := make(map[string]int64, len(statuses))
	for _, status := range statuses {
		var count int64
		if err := h.db.Model(&models.Conversation{}).Where("status = ?", status).Count(&count).Error; err != nil {
			http.Error(w, "Error computing dashboard stats", http.StatusInternalServerError)
			return
		}
		byStatus[status] = count
	}

	revenue, err := h.fetchTotalRevenue()
	if err != nil {
		http.Error(w, "Error computing revenue", http.StatusInternalServerError)
		return
	}

	var activeFreeChats int64
	h.db.Model(&models.FreeConversation{}).
		Where("status = ?", models.FreeConversationActive).Count(&activeFreeChats)

	var upgradesPending int64
	h.db.Model(&models.FreeConversation{}).
		Where("status = ?", models.FreeConversationUpgradeRequired).Count(&upgradesPending)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"conversations_by_status": byStatus,
		"total_revenue":           revenue,
		"active_free_chats":       activeFreeChats,
		"upgrades_pending":        upgradesPending,
	})
}

func (h *DashboardHandler) fetchTotalRevenue() (float64, error) {
	var total float64
	err := h.db.Model(&models.Transaction{}).
		Select("COALESCE(SUM(amount), 0)").Scan(&total).Error
	return total, err
}
