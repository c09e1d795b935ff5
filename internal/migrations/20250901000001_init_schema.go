package migrations

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	casbinbunadapter "github.com/imedia765/memberhub/internal/auth/bunadapter"
	"github.com/imedia765/memberhub/internal/db/models"
)

func init() {
	Migrations.MustRegister(up_20250901000001, down_20250901000001)
}

// up_20250901000001 creates the full application schema
func up_20250901000001(ctx context.Context, db *bun.DB) error {
	// 1. Create members table
	fmt.Print(" [up] creating members table...")
	_, err := db.NewCreateTable().
		Model((*models.Member)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create members table: %w", err)
	}

	// Create indexes for members
	_, err = db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS idx_members_member_number ON members(member_number)`)
	if err != nil {
		return fmt.Errorf("failed to create members member_number index: %w", err)
	}

	_, err = db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS idx_members_email ON members(email)`)
	if err != nil {
		return fmt.Errorf("failed to create members email index: %w", err)
	}

	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_members_collector_id ON members(collector_id)`)
	if err != nil {
		return fmt.Errorf("failed to create members collector_id index: %w", err)
	}

	// SQLite cannot add constraints after table creation
	if IsPostgreSQL(db) {
		_, err = db.Exec(`
			ALTER TABLE members
			ADD CONSTRAINT fk_members_collector_id
			FOREIGN KEY (collector_id) REFERENCES members(id)
		`)
		if err != nil {
			return fmt.Errorf("failed to add members collector_id FK: %w", err)
		}
	}
	fmt.Println(" OK")

	// 2. Create sessions table
	fmt.Print(" [up] creating sessions table...")
	_, err = db.NewCreateTable().
		Model((*models.Session)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create sessions table: %w", err)
	}

	// Create indexes for sessions
	_, err = db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS idx_sessions_token_hash ON sessions(token_hash)`)
	if err != nil {
		return fmt.Errorf("failed to create sessions token_hash index: %w", err)
	}

	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_sessions_member_id ON sessions(member_id)`)
	if err != nil {
		return fmt.Errorf("failed to create sessions member_id index: %w", err)
	}

	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_sessions_expires_at ON sessions(expires_at)`)
	if err != nil {
		return fmt.Errorf("failed to create sessions expires_at index: %w", err)
	}

	if IsPostgreSQL(db) {
		_, err = db.Exec(`
			ALTER TABLE sessions
			ADD CONSTRAINT fk_sessions_member_id
			FOREIGN KEY (member_id) REFERENCES members(id) ON DELETE CASCADE
		`)
		if err != nil {
			return fmt.Errorf("failed to add sessions member_id FK: %w", err)
		}
	}
	fmt.Println(" OK")

	// 3. Create payments table
	fmt.Print(" [up] creating payments table...")
	_, err = db.NewCreateTable().
		Model((*models.Payment)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create payments table: %w", err)
	}

	// Create indexes for payments
	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_payments_member_id ON payments(member_id)`)
	if err != nil {
		return fmt.Errorf("failed to create payments member_id index: %w", err)
	}

	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_payments_collector_id ON payments(collector_id)`)
	if err != nil {
		return fmt.Errorf("failed to create payments collector_id index: %w", err)
	}

	if IsPostgreSQL(db) {
		_, err = db.Exec(`
			ALTER TABLE payments
			ADD CONSTRAINT fk_payments_member_id
			FOREIGN KEY (member_id) REFERENCES members(id) ON DELETE CASCADE
		`)
		if err != nil {
			return fmt.Errorf("failed to add payments member_id FK: %w", err)
		}

		_, err = db.Exec(`
			ALTER TABLE payments
			ADD CONSTRAINT fk_payments_collector_id
			FOREIGN KEY (collector_id) REFERENCES members(id)
		`)
		if err != nil {
			return fmt.Errorf("failed to add payments collector_id FK: %w", err)
		}

		_, err = db.Exec(`
			ALTER TABLE payments
			ADD CONSTRAINT chk_payments_amount_positive
			CHECK (amount > 0)
		`)
		if err != nil {
			return fmt.Errorf("failed to add payments amount check: %w", err)
		}
	}
	fmt.Println(" OK")

	// 4. Create password_reset_audit table
	fmt.Print(" [up] creating password_reset_audit table...")
	_, err = db.NewCreateTable().
		Model((*models.PasswordResetAudit)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create password_reset_audit table: %w", err)
	}

	// Create index for audit lookups by member
	_, err = db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_password_reset_audit_member_number
		ON password_reset_audit(member_number)
	`)
	if err != nil {
		return fmt.Errorf("failed to create password_reset_audit member_number index: %w", err)
	}
	fmt.Println(" OK")

	// 5. Create revoked_jti table
	fmt.Print(" [up] creating revoked_jti table...")
	_, err = db.NewCreateTable().
		Model((*models.RevokedJTI)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create revoked_jti table: %w", err)
	}

	// Create index on exp for cleanup queries
	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_revoked_jti_exp ON revoked_jti(exp)`)
	if err != nil {
		return fmt.Errorf("failed to create revoked_jti exp index: %w", err)
	}
	fmt.Println(" OK")

	// 6. Create casbin_rules table for role grants
	fmt.Print(" [up] creating casbin_rules table...")
	_, err = db.NewCreateTable().
		Model((*casbinbunadapter.CasbinRule)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create casbin_rules table: %w", err)
	}
	fmt.Println(" OK")

	return nil
}

// down_20250901000001 drops the full application schema
func down_20250901000001(ctx context.Context, db *bun.DB) error {
	// Drop in reverse dependency order
	tables := []any{
		(*casbinbunadapter.CasbinRule)(nil),
		(*models.RevokedJTI)(nil),
		(*models.PasswordResetAudit)(nil),
		(*models.Payment)(nil),
		(*models.Session)(nil),
		(*models.Member)(nil),
	}

	for _, table := range tables {
		fmt.Print(" [down] dropping table...")
		_, err := db.NewDropTable().
			Model(table).
			IfExists().
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to drop table: %w", err)
		}
		fmt.Println(" OK")
	}

	return nil
}
