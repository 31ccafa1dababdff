package main

import (
	"flag"

	"treasury/internal/config"
	"treasury/internal/db"
	"treasury/internal/logger"

	"go.uber.org/zap"
)

func main() {
	dir := flag.String("dir", "migrations", "directory holding *.sql migrations")
	flag.Parse()

	cfg := config.Load()
	log := logger.New(cfg.AppEnv, cfg.LogLevel)
	defer func() { _ = log.Sync() }()

	database, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal("failed to connect database", zap.Error(err))
	}
	defer database.Close()

	applied, err := db.Migrate(database, *dir)
	if err != nil {
		log.Fatal("migration failed", zap.Error(err))
	}
	for _, name := range applied {
		log.Info("applied migration", zap.String("file", name))
	}
	log.Info("schema up to date", zap.Int("applied", len(applied)))
}
