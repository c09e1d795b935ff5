package repository

import (
	"context"
	"fmt"

	"github.com/imedia765/memberhub/internal/db/models"
	"github.com/uptrace/bun"
)

// BunAuditRepository implements AuditRepository using Bun ORM
type BunAuditRepository struct {
	db *bun.DB
}

// NewBunAuditRepository creates a new Bun-based audit repository
func NewBunAuditRepository(db *bun.DB) *BunAuditRepository {
	return &BunAuditRepository{db: db}
}

// Create inserts a password-reset audit entry
func (r *BunAuditRepository) Create(ctx context.Context, entry *models.PasswordResetAudit) error {
	_, err := r.db.NewInsert().
		Model(entry).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("create audit entry: %w", err)
	}
	return nil
}

// ListByMemberNumber returns a member's audit entries, newest first
func (r *BunAuditRepository) ListByMemberNumber(ctx context.Context, memberNumber string) ([]models.PasswordResetAudit, error) {
	var entries []models.PasswordResetAudit
	err := r.db.NewSelect().
		Model(&entries).
		Where("member_number = ?", memberNumber).
		Order("created_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	return entries, nil
}
