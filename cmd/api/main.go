package main

import (
	"fmt"
	"log/slog"
	"os"

	"storefront/internal/config"
	"storefront/internal/infra/db"
	"storefront/internal/server"

	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

var envFile string

func main() {
	rootCmd := &cobra.Command{
		Use:           "storefront",
		Short:         "Storefront API (catalog, orders, mock payments)",
		Version:       server.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file to load before reading the environment")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(importProductsCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// 各コマンド共通: 設定・ロガー・DB
func bootstrap() (config.Config, *slog.Logger, *gorm.DB, error) {
	cfg, err := config.Load(envFile)
	if err != nil {
		return config.Config{}, nil, nil, err
	}
	log := newLogger(cfg.Debug)

	gormDB, err := db.Connect(cfg)
	if err != nil {
		return config.Config{}, nil, nil, err
	}
	return cfg, log, gormDB, nil
}

// DEBUGのときだけ読みやすいtext
func newLogger(debug bool) *slog.Logger {
	if debug {
		return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
}

func closeDB(gormDB *gorm.DB, log *slog.Logger) {
	sqlDB, err := gormDB.DB()
	if err != nil {
		return
	}
	if err := sqlDB.Close(); err != nil {
		log.Warn("close database", slog.Any("error", err))
	}
}
