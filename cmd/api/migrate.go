package main

import (
	"fmt"
	"log/slog"

	"storefront/internal/infra/db"
	"storefront/internal/infra/importer"
	infraRepo "storefront/internal/infra/repository"

	"github.com/spf13/cobra"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update all tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, log, gormDB, err := bootstrap()
			if err != nil {
				return err
			}
			defer closeDB(gormDB, log)

			return db.Migrate(gormDB, log)
		},
	}
}

func importProductsCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "import-products",
		Short: "Import products from a CSV file (only when the catalog is empty)",
		Long: `Import products from a CSV file with the header
id,title,description,price,location

Rows that cannot be parsed are skipped and logged. Nothing is imported
when the products table already has rows.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, gormDB, err := bootstrap()
			if err != nil {
				return err
			}
			defer closeDB(gormDB, log)

			if err := db.Migrate(gormDB, log); err != nil {
				return err
			}

			path := file
			if path == "" {
				path = cfg.ProductsCSVPath
			}

			res, err := importer.NewProductImporter(infraRepo.NewProductGormRepository(gormDB), log).ImportFile(cmd.Context(), path)
			if err != nil {
				return fmt.Errorf("import %s: %w", path, err)
			}
			log.Info("import finished",
				slog.Int("imported", res.Imported),
				slog.Int("skipped", res.Skipped),
				slog.Bool("already_seeded", res.AlreadySeeded),
			)
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "CSV path (defaults to PRODUCTS_CSV_PATH)")
	return cmd
}
