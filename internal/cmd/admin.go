package cmd

import (
	"fmt"

	"artisan-storefront/internal/auth"
	"artisan-storefront/internal/blob"
	"artisan-storefront/internal/broker"
	"artisan-storefront/internal/service"
	"artisan-storefront/internal/store"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the Postgres schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		repo, err := openRepository()
		if err != nil {
			return err
		}
		defer repo.Close()

		pg, ok := repo.(*store.Store)
		if !ok {
			return fmt.Errorf("migrate needs the postgres driver, got %q", cfg.Database.Driver)
		}
		if err := pg.Migrate(cmd.Context()); err != nil {
			return err
		}
		fmt.Println("Schema applied")
		return nil
	},
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Insert sample catalog data when the catalog is empty",
	RunE: func(cmd *cobra.Command, args []string) error {
		repo, err := openRepository()
		if err != nil {
			return err
		}
		defer repo.Close()

		images := blob.NewStore(cfg.Blob.PublicBaseURL, cfg.Blob.UploadBaseURL, cfg.Blob.UploadSecret, cfg.Blob.UploadTTL)
		catalog := service.NewServices(repo, images, broker.NopPublisher{}, nil, cfg.Business).Catalog
		result, err := catalog.SeedSampleData(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Println(result)
		return nil
	},
}

var makeAdminCmd = &cobra.Command{
	Use:   "make-admin <userId>",
	Short: "Grant the admin role to a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		repo, err := openRepository()
		if err != nil {
			return err
		}
		defer repo.Close()

		record, err := service.NewAccessService(repo).BootstrapAdmin(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Printf("User %s is now %s\n", record.UserID, record.Role)
		return nil
	},
}

var tokenCmd = &cobra.Command{
	Use:   "token <userId>",
	Short: "Print a signed bearer token for a user (development)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		token, err := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.TokenTTL).Issue(args[0])
		if err != nil {
			return err
		}
		fmt.Println(token)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(makeAdminCmd)
	rootCmd.AddCommand(tokenCmd)
}
