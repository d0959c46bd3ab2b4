package api

import (
	"log"
	"net/http"

	"github.com/KOseiBonsu/Konekt-server/cmd/models"
	"github.com/KOseiBonsu/Konekt-server/service/availability"
	"github.com/KOseiBonsu/Konekt-server/service/booking"
	"github.com/KOseiBonsu/Konekt-server/service/conversation"
	"github.com/KOseiBonsu/Konekt-server/service/coupon"
	"github.com/KOseiBonsu/Konekt-server/service/dashboard"
	"github.com/KOseiBonsu/Konekt-server/service/freechat"
	"github.com/KOseiBonsu/Konekt-server/service/payment"
	"github.com/KOseiBonsu/Konekt-server/service/transactions"
	"github.com/KOseiBonsu/Konekt-server/service/user"
	"github.com/KOseiBonsu/Konekt-server/service/ws"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"gorm.io/gorm"
)

type APIServer struct {
	address string
	db      *gorm.DB
	cfg     booking.Config
}

func NewApiServer(address string, db *gorm.DB, cfg booking.Config) *APIServer {
	return &APIServer{
		address: address,
		db:      db,
		cfg:     cfg,
	}
}

func (s *APIServer) Run() error {
	router := mux.NewRouter()
	subrouter := router.PathPrefix("/api/v1").Subrouter()

	hub := models.NewHub()
	go hub.Run()

	resolver := availability.NewResolver(s.cfg.LeadTime)
	validator := coupon.NewValidator()
	gateway := payment.NewPaystackClient()

	mailer := booking.NewSMTPMailer()
	orchestrator := booking.NewOrchestrator(s.db, gateway, resolver, validator, s.cfg).
		WithMailer(mailer).
		WithHub(hub)

	userHandler := user.NewHandler(s.db)
	userHandler.RegisterRoutes(subrouter)

	availabilityHandler := availability.NewAvailabilityHandler(s.db, resolver)
	availabilityHandler.RegisterRoutes(subrouter)

	couponHandler := coupon.NewCouponHandler(s.db, validator)
	couponHandler.RegisterRoutes(subrouter)

	bookingHandler := booking.NewBookingHandler(orchestrator)
	bookingHandler.RegisterRoutes(subrouter)

	conversationHandler := conversation.NewConversationHandler(s.db, conversation.NewStateMachine(), hub).
		WithMailer(mailer)
	conversationHandler.RegisterRoutes(subrouter)

	freechatHandler := freechat.NewFreeChatHandler(s.db, freechat.NewGate(s.db), hub, s.cfg.AllowedDurations)
	freechatHandler.RegisterRoutes(subrouter)

	transactionHandler := transactions.NewTransactionHandler(s.db)
	transactionHandler.RegisterRoutes(subrouter)

	dashboardHandler := dashboard.NewDashboardHandler(s.db)
	dashboardHandler.RegisterRoutes(subrouter)

	wsHandler := ws.NewHandler(hub)
	wsHandler.RegisterRoutes(router)

	cors := handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods([]string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}),
		handlers.AllowedHeaders([]string{"Content-Type", "Authorization"}),
	)

	log.Println("Server running at", s.address)
	return http.ListenAndServe(s.address, cors(router))
}
