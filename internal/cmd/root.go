package cmd

import (
	"fmt"
	"os"

	"artisan-storefront/config"
	"artisan-storefront/internal/store"
	"artisan-storefront/internal/store/memstore"
	"artisan-storefront/internal/util"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "storefront",
	Short: "Artisan storefront backend",
	Long: `Serves the artisan storefront API: product catalog, categories,
carts and order placement, plus operational commands for schema
migration, sample data and admin bootstrap.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg = config.Load()
		if err := util.InitLogger(cfg.Server.Env, cfg.Server.LogLevel); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		util.SyncLogger()
	},
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// openRepository connects the configured data store
func openRepository() (store.Repository, error) {
	logger := util.GetLogger()

	switch cfg.Database.Driver {
	case "memory":
		logger.Warn("Using in-memory store; data is lost on exit")
		return memstore.New(), nil
	case "postgres", "":
		db, err := store.NewStore(cfg.Database.URL, cfg.Database.MaxOpenConns)
		if err != nil {
			return nil, err
		}
		logger.Info("Database connected", zap.String("driver", "postgres"))
		return db, nil
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
	}
}
