package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"storefront/internal/config"
	"storefront/internal/infra/cache"
	"storefront/internal/infra/db"
	"storefront/internal/infra/importer"
	infraRepo "storefront/internal/infra/repository"
	"storefront/internal/metrics"
	"storefront/internal/server"

	"github.com/spf13/cobra"
)

func serveCmd() *cobra.Command {
	var skipImport bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Migrate, import the product CSV if the catalog is empty, and start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			cfg, log, gormDB, err := bootstrap()
			if err != nil {
				return err
			}
			defer closeDB(gormDB, log)

			if err := db.Migrate(gormDB, log); err != nil {
				return err
			}

			if !skipImport {
				imp := importer.NewProductImporter(infraRepo.NewProductGormRepository(gormDB), log)
				//取り込みに失敗しても起動は続ける
				if _, err := imp.ImportFile(ctx, cfg.ProductsCSVPath); err != nil {
					log.Error("product import failed", slog.String("path", cfg.ProductsCSVPath), slog.Any("error", err))
				}
			}

			productCache, closeCache := openProductCache(ctx, cfg, log)
			defer closeCache()

			e, err := server.New(server.Deps{
				Config:       cfg,
				DB:           gormDB,
				Log:          log,
				Metrics:      metrics.New(),
				ProductCache: productCache,
			})
			if err != nil {
				return fmt.Errorf("build server: %w", err)
			}

			return server.Start(ctx, e, cfg.Addr(), log)
		},
	}

	cmd.Flags().BoolVar(&skipImport, "skip-import", false, "do not import PRODUCTS_CSV_PATH on start-up")
	return cmd
}

// REDIS_ADDRが空、または繋がらなければキャッシュなしで動かす
func openProductCache(ctx context.Context, cfg config.Config, log *slog.Logger) (cache.ProductCache, func()) {
	if cfg.RedisAddr == "" {
		return nil, func() {}
	}
	client, err := cache.NewRedisClient(ctx, cfg)
	if err != nil {
		log.Warn("product cache disabled", slog.Any("error", err))
		return nil, func() {}
	}
	log.Info("product cache enabled", slog.String("addr", cfg.RedisAddr))
	return cache.NewRedisProductCache(client, cfg.ProductCacheTTL), func() { _ = client.Close() }
}
