package handlers

import (
	"net/http"
	"strings"

	"treasury/internal/authority"
	"treasury/internal/config"
	"treasury/internal/middleware"
	"treasury/internal/websocket"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	gorillaws "github.com/gorilla/websocket"
	"go.uber.org/zap"
)

type Handler struct {
	cfg          config.Config
	log          *zap.Logger
	requisitions RequisitionService
	funds        FundService
	hub          *websocket.Hub
	upgrader     gorillaws.Upgrader
}

func New(cfg config.Config, log *zap.Logger, requisitions RequisitionService, funds FundService, hub *websocket.Hub) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{
		cfg:          cfg,
		log:          log,
		requisitions: requisitions,
		funds:        funds,
		hub:          hub,
		upgrader:     websocket.NewUpgrader(cfg.AllowedOrigins),
	}
}

func (h *Handler) Routes() http.Handler {
	router := chi.NewRouter()
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.Recoverer)
	router.Use(middleware.RequestLogger(h.log))
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(h.cfg.AllowedOrigins),
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	router.Route("/api/v1", func(r chi.Router) {
		r.With(middleware.AuthWS(h.cfg.JWTSecret)).Get("/ws/funds", h.WSFunds)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(h.cfg.JWTSecret))

			r.With(middleware.RequireAdmin()).Post("/funds/provision", h.ProvisionFunds)
			r.Get("/funds", h.ListFunds)
			r.Get("/funds/reconcile", h.Reconcile)
			r.Get("/funds/{id}", h.GetFund)
			r.Get("/funds/{id}/movements", h.ListMovements)
			r.Post("/incomes", h.RecordIncome)

			r.Post("/requisitions", h.CreateRequisition)
			r.Get("/requisitions", h.ListRequisitions)
			r.Get("/requisitions/{id}", h.GetRequisition)
			r.Post("/requisitions/{id}/submit", h.SubmitRequisition)
			r.Post("/requisitions/{id}/approve", h.ApproveRequisition)
			r.Post("/requisitions/{id}/reject", h.RejectRequisition)
			r.Post("/requisitions/{id}/cancel", h.CancelRequisition)
			r.Post("/requisitions/{id}/execute", h.ExecuteRequisition)

			r.With(middleware.RequireAuthority(authority.LevelOne)).Get("/audit", h.ListAuditRecords)
		})
	})

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	return router
}

func allowedOrigins(raw string) []string {
	var origins []string
	for _, origin := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(origin); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}
