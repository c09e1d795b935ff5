package users

import "github.com/spf13/cobra"

// UsersCmd is the parent command for member account operations
var UsersCmd = &cobra.Command{
	Use:   "users",
	Short: "Manage member accounts",
	Long:  `Commands for managing member accounts directly from the server.`,
}

func init() {
	createCmd.Flags().StringVar(&memberNumberFlag, "member-number", "", "Member number of the account (e.g. MH00042)")
	createCmd.Flags().StringVar(&emailFlag, "email", "", "Email address of the member")
	createCmd.Flags().StringVar(&nameFlag, "name", "", "Display name of the member")
	createCmd.Flags().StringVar(&passwordFlag, "password", "", "Password for the member (use --stdin to avoid shell history)")
	createCmd.Flags().StringVar(&roleFlag, "role", "member", "Nominal profile role (member, collector or admin)")
	createCmd.Flags().BoolVar(&stdinFlag, "stdin", false, "Read password from stdin instead of --password flag")

	setRoleCmd.Flags().StringVar(&memberNumberFlag, "member-number", "", "Member number of the account")
	setRoleCmd.Flags().StringVar(&roleFlag, "role", "", "Nominal profile role to set (member, collector or admin)")

	UsersCmd.AddCommand(createCmd)
	UsersCmd.AddCommand(setRoleCmd)
}
