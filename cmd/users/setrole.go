package users

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/imedia765/memberhub/internal/config"
	"github.com/imedia765/memberhub/internal/db/bunx"
	"github.com/imedia765/memberhub/internal/repository"
	"github.com/imedia765/memberhub/internal/roles"
)

var setRoleCmd = &cobra.Command{
	Use:   "set-role",
	Short: "Set the nominal profile role of a member",
	Long: `Updates the role column on the member row. This is the lowest-priority
role source during resolution; explicit admin or collector grants managed
with the iam commands take precedence.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if memberNumberFlag == "" {
			return fmt.Errorf("--member-number flag is required")
		}

		role, ok := roles.ParseRole(roleFlag)
		if !ok {
			return fmt.Errorf("invalid role %q (valid roles are: member, collector, admin)", roleFlag)
		}

		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		db, err := bunx.NewDB(cfg.DatabaseURL, cfg.MaxDBConnections)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer bunx.Close(db)

		ctx := context.Background()
		memberRepo := repository.NewBunMemberRepository(db)

		member, err := memberRepo.GetByMemberNumber(ctx, strings.ToUpper(memberNumberFlag))
		if err != nil {
			return fmt.Errorf("failed to look up member: %w", err)
		}

		roleName := string(role)
		member.Role = &roleName
		if err := memberRepo.Update(ctx, member); err != nil {
			return fmt.Errorf("failed to update member: %w", err)
		}

		fmt.Printf("Set role '%s' on member %s (%s)\n", roleName, member.MemberNumber, member.Email)
		return nil
	},
}
