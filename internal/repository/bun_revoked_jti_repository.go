package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/imedia765/memberhub/internal/db/models"
	"github.com/uptrace/bun"
)

// BunRevokedJTIRepository implements RevokedJTIRepository using Bun ORM
type BunRevokedJTIRepository struct {
	db *bun.DB
}

// NewBunRevokedJTIRepository creates a new Bun-based revoked JTI repository
func NewBunRevokedJTIRepository(db *bun.DB) *BunRevokedJTIRepository {
	return &BunRevokedJTIRepository{db: db}
}

// Revoke records a token JTI as revoked. Inserting an already-revoked JTI is
// a no-op rather than an error so revocation is idempotent.
func (r *BunRevokedJTIRepository) Revoke(ctx context.Context, entry *models.RevokedJTI) error {
	_, err := r.db.NewInsert().
		Model(entry).
		On("CONFLICT (jti) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("revoke jti: %w", err)
	}
	return nil
}

// IsRevoked reports whether a token JTI has been revoked
func (r *BunRevokedJTIRepository) IsRevoked(ctx context.Context, jti string) (bool, error) {
	exists, err := r.db.NewSelect().
		Model((*models.RevokedJTI)(nil)).
		Where("jti = ?", jti).
		Exists(ctx)
	if err != nil {
		return false, fmt.Errorf("check revoked jti: %w", err)
	}
	return exists, nil
}

// DeleteExpired removes revocation rows whose tokens have expired anyway
func (r *BunRevokedJTIRepository) DeleteExpired(ctx context.Context) error {
	_, err := r.db.NewDelete().
		Model((*models.RevokedJTI)(nil)).
		Where("exp < ?", time.Now()).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("delete expired jtis: %w", err)
	}
	return nil
}
