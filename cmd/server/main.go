package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"treasury/internal/authority"
	"treasury/internal/config"
	"treasury/internal/db"
	"treasury/internal/handlers"
	"treasury/internal/logger"
	"treasury/internal/money"
	"treasury/internal/services"
	"treasury/internal/store"
	"treasury/internal/websocket"

	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg.AppEnv, cfg.LogLevel)
	defer func() { _ = log.Sync() }()

	dualFrom, err := authority.ParseMagnitude(cfg.DualApprovalFrom)
	if err != nil {
		log.Fatal("invalid DUAL_APPROVAL_MAGNITUDE", zap.String("value", cfg.DualApprovalFrom), zap.Error(err))
	}
	resolver, err := authority.NewResolver(authority.Thresholds{
		Small:  money.FromMajor(cfg.SmallThreshold),
		Medium: money.FromMajor(cfg.MediumThreshold),
		Large:  money.FromMajor(cfg.LargeThreshold),
	}, dualFrom)
	if err != nil {
		log.Fatal("invalid approval thresholds", zap.Error(err))
	}

	database, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal("failed to connect database", zap.Error(err))
	}
	defer database.Close()

	funds := store.NewFundStore(database)
	movements := store.NewMovementStore(database)
	expenses := store.NewExpenseStore(database)
	incomes := store.NewIncomeStore(database)
	requisitions := store.NewRequisitionStore(database)
	audit := store.NewAuditStore(database)
	txRunner := db.NewTxRunner(database, cfg.TxMaxAttempts)
	hub := websocket.NewHub()

	ledger := services.NewLedger(funds, movements, expenses)
	requisitionService := services.NewRequisitionService(txRunner, resolver, requisitions, funds, ledger, audit, hub, log)
	fundService := services.NewFundService(txRunner, funds, incomes, movements, ledger, audit, hub, log)

	handler := handlers.New(cfg, log, requisitionService, fundService, hub)
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler.Routes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("treasury API listening",
			zap.String("addr", server.Addr),
			zap.String("small", cfg.SmallThreshold.String()),
			zap.String("medium", cfg.MediumThreshold.String()),
			zap.String("large", cfg.LargeThreshold.String()),
			zap.String("dual_approval_from", string(dualFrom)),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server error", zap.Error(err))
		}
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)
	<-shutdown

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Fatal("shutdown error", zap.Error(err))
	}
	log.Info("treasury API stopped")
}
