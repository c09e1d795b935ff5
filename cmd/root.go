package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/imedia765/memberhub/cmd/iam"
	"github.com/imedia765/memberhub/cmd/users"
	"github.com/imedia765/memberhub/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "memberhub",
	Short: "Membership management API server",
	Long: `MemberHub serves the membership management dashboard backend.
It exposes HTTP endpoints for authentication, role-gated navigation,
member and payment records, and the password change protocol.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		return nil
	},
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().String("db-url", "", "Database connection URL (env: DATABASE_URL)")
	rootCmd.PersistentFlags().String("server-addr", "", "Server bind address (env: SERVER_ADDR)")
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging (env: DEBUG)")

	// Add subcommands
	rootCmd.AddCommand(users.UsersCmd)
	rootCmd.AddCommand(iam.IamCmd)
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
