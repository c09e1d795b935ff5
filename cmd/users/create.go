package users

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net/mail"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/imedia765/memberhub/internal/auth"
	"github.com/imedia765/memberhub/internal/config"
	"github.com/imedia765/memberhub/internal/db/bunx"
	"github.com/imedia765/memberhub/internal/db/models"
	"github.com/imedia765/memberhub/internal/repository"
	"github.com/imedia765/memberhub/internal/roles"
)

var (
	memberNumberFlag string
	emailFlag        string
	nameFlag         string
	passwordFlag     string
	roleFlag         string
	stdinFlag        bool
)

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a new member account",
	RunE: func(cmd *cobra.Command, args []string) error {
		// Validate required flags
		if memberNumberFlag == "" {
			return fmt.Errorf("--member-number flag is required")
		}

		if emailFlag == "" {
			return fmt.Errorf("--email flag is required")
		}

		if nameFlag == "" {
			return fmt.Errorf("--name flag is required")
		}

		role, ok := roles.ParseRole(roleFlag)
		if !ok {
			return fmt.Errorf("invalid role %q (valid roles are: member, collector, admin)", roleFlag)
		}

		password := passwordFlag
		if stdinFlag {
			// Read password from stdin
			scanner := bufio.NewScanner(os.Stdin)
			fmt.Print("Enter password: ")
			if scanner.Scan() {
				password = scanner.Text()
			}
			if err := scanner.Err(); err != nil {
				return fmt.Errorf("failed to read password: %w", err)
			}
		}

		if password == "" {
			return fmt.Errorf("password is required (use --password or --stdin)")
		}

		// Validate email format
		if _, err := mail.ParseAddress(emailFlag); err != nil {
			return fmt.Errorf("invalid email format: %w", err)
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

		memberNumber := strings.ToUpper(memberNumberFlag)

		// Check uniqueness up front for a readable error
		existing, err := memberRepo.GetByMemberNumber(ctx, memberNumber)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("failed to check member number uniqueness: %w", err)
		}
		if existing != nil {
			return fmt.Errorf("member with number %q already exists", memberNumber)
		}

		existing, err = memberRepo.GetByEmail(ctx, emailFlag)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("failed to check email uniqueness: %w", err)
		}
		if existing != nil {
			return fmt.Errorf("member with email %q already exists", emailFlag)
		}

		hashedPassword, err := auth.HashPassword(password)
		if err != nil {
			return fmt.Errorf("failed to hash password: %w", err)
		}

		roleName := string(role)
		member := &models.Member{
			ID:           bunx.NewUUIDv7(),
			MemberNumber: memberNumber,
			Email:        strings.ToLower(emailFlag),
			Name:         nameFlag,
			Role:         &roleName,
			PasswordHash: hashedPassword,
		}

		if err := memberRepo.Create(ctx, member); err != nil {
			return fmt.Errorf("failed to create member: %w", err)
		}

		fmt.Println("Member created successfully!")
		fmt.Println("----------------------------------------")
		fmt.Printf("Member ID: %s\n", member.ID)
		fmt.Printf("Member number: %s\n", member.MemberNumber)
		fmt.Printf("Email: %s\n", member.Email)
		fmt.Printf("Name: %s\n", member.Name)
		fmt.Printf("Role: %s\n", roleName)
		fmt.Println("----------------------------------------")

		return nil
	},
}
