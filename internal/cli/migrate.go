package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/magabrotheeeer/redcajeros/internal/migrations"
	"github.com/magabrotheeeer/redcajeros/internal/storage/repository"
)

func init() {
	rootCmd.AddCommand(migrateCmd)
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	Args:  cobra.NoArgs,
	RunE:  runMigrate,
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	db, err := repository.New(cfg.StorageConnectionString)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	if err := migrations.Run(db.DB, cfg.MigrationsPath); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
	return nil
}
