package migrations

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	"github.com/imedia765/memberhub/internal/auth"
	casbinbunadapter "github.com/imedia765/memberhub/internal/auth/bunadapter"
	"github.com/imedia765/memberhub/internal/db/models"
)

func init() {
	Migrations.MustRegister(up_20250901000002, down_20250901000002)
}

// defaultAdminID is the well-known ID of the bootstrap admin account so the
// seed stays idempotent across reruns.
const defaultAdminID = "00000000-0000-0000-0000-000000000001"

// up_20250901000002 seeds the bootstrap admin account and its role grant
func up_20250901000002(ctx context.Context, db *bun.DB) error {
	fmt.Print(" [up] seeding bootstrap admin account...")

	// The bootstrap password must be rotated on first login.
	passwordHash, err := auth.HashPassword("change-me-now")
	if err != nil {
		return fmt.Errorf("failed to hash bootstrap password: %w", err)
	}

	adminRole := "admin"
	admin := models.Member{
		ID:           defaultAdminID,
		MemberNumber: "MH00001",
		Email:        "admin@memberhub.local",
		Name:         "Administrator",
		Role:         &adminRole,
		PasswordHash: passwordHash,
		Status:       "active",
	}

	_, err = db.NewInsert().
		Model(&admin).
		On("CONFLICT (id) DO NOTHING"). // Idempotent
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to seed bootstrap admin: %w", err)
	}
	fmt.Println(" OK")

	fmt.Print(" [up] seeding admin role grant...")

	grant := casbinbunadapter.CasbinRule{
		Ptype: "g",
		V0:    auth.MemberPrincipal(defaultAdminID),
		V1:    auth.RoleSubjectAdmin,
	}

	_, err = db.NewInsert().
		Model(&grant).
		On("CONFLICT (ptype, v0, v1, v2, v3, v4, v5) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to seed admin role grant: %w", err)
	}
	fmt.Println(" OK")

	return nil
}

// down_20250901000002 removes the bootstrap admin account and its grant
func down_20250901000002(ctx context.Context, db *bun.DB) error {
	fmt.Print(" [down] removing admin role grant...")

	_, err := db.NewDelete().
		Model((*casbinbunadapter.CasbinRule)(nil)).
		Where("ptype = ? AND v0 = ?", "g", auth.MemberPrincipal(defaultAdminID)).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to remove admin role grant: %w", err)
	}
	fmt.Println(" OK")

	fmt.Print(" [down] removing bootstrap admin account...")

	_, err = db.NewDelete().
		Model((*models.Member)(nil)).
		Where("id = ?", defaultAdminID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to remove bootstrap admin: %w", err)
	}
	fmt.Println(" OK")

	return nil
}
