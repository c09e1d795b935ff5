package repository

import (
	"context"

	"github.com/imedia765/memberhub/internal/db/models"
)

// MemberRepository exposes persistence operations for member profiles.
type MemberRepository interface {
	Create(ctx context.Context, member *models.Member) error
	GetByID(ctx context.Context, id string) (*models.Member, error)
	GetByMemberNumber(ctx context.Context, memberNumber string) (*models.Member, error)
	GetByEmail(ctx context.Context, email string) (*models.Member, error)
	Update(ctx context.Context, member *models.Member) error
	UpdatePasswordHash(ctx context.Context, id, passwordHash string) error
	UpdateLastLogin(ctx context.Context, id string) error

	// Search matches member number, email or name; empty term lists all.
	Search(ctx context.Context, term string) ([]models.Member, error)
	Count(ctx context.Context) (int, error)
	ListByCollector(ctx context.Context, collectorID string) ([]models.Member, error)
	ListByIDs(ctx context.Context, ids []string) ([]models.Member, error)
}

// SessionRepository exposes persistence operations for login sessions.
type SessionRepository interface {
	Create(ctx context.Context, session *models.Session) error
	GetByTokenHash(ctx context.Context, tokenHash string) (*models.Session, error)
	UpdateLastUsed(ctx context.Context, id string) error
	Revoke(ctx context.Context, id string) error
	RevokeByMemberID(ctx context.Context, memberID string) error
	DeleteExpired(ctx context.Context) error
}

// PaymentRepository exposes persistence operations for membership payments.
type PaymentRepository interface {
	Create(ctx context.Context, payment *models.Payment) error
	ListByMember(ctx context.Context, memberID string) ([]models.Payment, error)
	ListByCollector(ctx context.Context, collectorID string) ([]models.Payment, error)
	List(ctx context.Context) ([]models.Payment, error)
}

// AuditRepository records terminal outcomes of password-change attempts.
type AuditRepository interface {
	Create(ctx context.Context, entry *models.PasswordResetAudit) error
	ListByMemberNumber(ctx context.Context, memberNumber string) ([]models.PasswordResetAudit, error)
}

// RevokedJTIRepository tracks revoked API token IDs.
type RevokedJTIRepository interface {
	Revoke(ctx context.Context, entry *models.RevokedJTI) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
	DeleteExpired(ctx context.Context) error
}
