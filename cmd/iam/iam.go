package iam

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/imedia765/memberhub/internal/auth"
	"github.com/imedia765/memberhub/internal/authority"
	"github.com/imedia765/memberhub/internal/config"
	"github.com/imedia765/memberhub/internal/db/bunx"
	"github.com/imedia765/memberhub/internal/db/models"
	"github.com/imedia765/memberhub/internal/repository"
	"github.com/uptrace/bun"
)

var (
	memberNumberFlag string
	roleFlag         string
)

// IamCmd is the parent command for role grant operations
var IamCmd = &cobra.Command{
	Use:   "iam",
	Short: "Manage explicit role grants",
	Long: `Commands for managing explicit admin and collector role grants.
Grants take precedence over the nominal profile role during resolution.`,
}

func init() {
	grantCmd.Flags().StringVar(&memberNumberFlag, "member-number", "", "Member number of the account")
	grantCmd.Flags().StringVar(&roleFlag, "role", "", "Role to grant (admin or collector)")
	revokeCmd.Flags().StringVar(&memberNumberFlag, "member-number", "", "Member number of the account")
	revokeCmd.Flags().StringVar(&roleFlag, "role", "", "Role to revoke (admin or collector)")
	listCmd.Flags().StringVar(&memberNumberFlag, "member-number", "", "Member number of the account")

	IamCmd.AddCommand(grantCmd)
	IamCmd.AddCommand(revokeCmd)
	IamCmd.AddCommand(listCmd)
}

// roleSubject maps a role flag value to its casbin grouping subject.
func roleSubject(role string) (string, error) {
	switch role {
	case "admin":
		return auth.RoleSubjectAdmin, nil
	case "collector":
		return auth.RoleSubjectCollector, nil
	}
	return "", fmt.Errorf("invalid role %q (grantable roles are: admin, collector)", role)
}

// open connects to the database and builds the role authority plus the
// member lookup the subcommands share.
func open() (*bun.DB, *authority.CasbinAuthority, repository.MemberRepository, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	db, err := bunx.NewDB(cfg.DatabaseURL, cfg.MaxDBConnections)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	enforcer, err := auth.InitEnforcer(db)
	if err != nil {
		bunx.Close(db)
		return nil, nil, nil, fmt.Errorf("failed to initialize casbin enforcer: %w", err)
	}

	memberRepo := repository.NewBunMemberRepository(db)
	return db, authority.NewCasbinAuthority(enforcer, memberRepo), memberRepo, nil
}

func lookupMember(ctx context.Context, memberRepo repository.MemberRepository) (*models.Member, error) {
	if memberNumberFlag == "" {
		return nil, fmt.Errorf("--member-number flag is required")
	}
	member, err := memberRepo.GetByMemberNumber(ctx, strings.ToUpper(memberNumberFlag))
	if err != nil {
		return nil, fmt.Errorf("failed to look up member: %w", err)
	}
	return member, nil
}

var grantCmd = &cobra.Command{
	Use:   "grant",
	Short: "Grant an explicit role to a member",
	RunE: func(cmd *cobra.Command, args []string) error {
		subject, err := roleSubject(roleFlag)
		if err != nil {
			return err
		}

		ctx := context.Background()
		db, roleAuthority, memberRepo, err := open()
		if err != nil {
			return err
		}
		defer bunx.Close(db)

		member, err := lookupMember(ctx, memberRepo)
		if err != nil {
			return err
		}

		if err := roleAuthority.GrantRole(ctx, member.ID, subject); err != nil {
			return fmt.Errorf("failed to grant role: %w", err)
		}

		fmt.Printf("Granted '%s' to member %s (%s)\n", roleFlag, member.MemberNumber, member.Email)
		return nil
	},
}

var revokeCmd = &cobra.Command{
	Use:   "revoke",
	Short: "Revoke an explicit role from a member",
	RunE: func(cmd *cobra.Command, args []string) error {
		subject, err := roleSubject(roleFlag)
		if err != nil {
			return err
		}

		ctx := context.Background()
		db, roleAuthority, memberRepo, err := open()
		if err != nil {
			return err
		}
		defer bunx.Close(db)

		member, err := lookupMember(ctx, memberRepo)
		if err != nil {
			return err
		}

		if err := roleAuthority.RevokeRole(ctx, member.ID, subject); err != nil {
			return fmt.Errorf("failed to revoke role: %w", err)
		}

		fmt.Printf("Revoked '%s' from member %s (%s)\n", roleFlag, member.MemberNumber, member.Email)
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List explicit role grants of a member",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		db, roleAuthority, memberRepo, err := open()
		if err != nil {
			return err
		}
		defer bunx.Close(db)

		member, err := lookupMember(ctx, memberRepo)
		if err != nil {
			return err
		}

		grants, err := roleAuthority.ListGrants(ctx, member.ID)
		if err != nil {
			return fmt.Errorf("failed to list grants: %w", err)
		}

		if len(grants) == 0 {
			fmt.Printf("Member %s has no explicit role grants\n", member.MemberNumber)
			return nil
		}

		fmt.Printf("Grants for member %s (%s):\n", member.MemberNumber, member.Email)
		for _, grant := range grants {
			fmt.Printf("  %s\n", grant)
		}
		return nil
	},
}
