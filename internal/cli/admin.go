package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(seedAdminCmd)
}

var seedAdminCmd = &cobra.Command{
	Use:   "seed-admin",
	Short: "Create the platform admin or promote an existing account",
	Long: `Create the platform admin account from the admin section of the config.
Running it again with the same data changes nothing.`,
	Args: cobra.NoArgs,
	RunE: runSeedAdmin,
}

func runSeedAdmin(cmd *cobra.Command, _ []string) error {
	env, err := openEnvironment(cmd.Context())
	if err != nil {
		return err
	}
	defer env.close()

	account, err := env.services.Auth.EnsureAdmin(cmd.Context(), env.cfg.AdminEmail, env.cfg.AdminPassword, env.cfg.AdminName)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "admin %s ready (id %s)\n", account.Email, account.ID)
	return nil
}
