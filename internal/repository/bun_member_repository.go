package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/imedia765/memberhub/internal/db/models"
	"github.com/uptrace/bun"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// BunMemberRepository implements MemberRepository using Bun ORM
type BunMemberRepository struct {
	db *bun.DB
}

// NewBunMemberRepository creates a new Bun-based member repository
func NewBunMemberRepository(db *bun.DB) *BunMemberRepository {
	return &BunMemberRepository{db: db}
}

// Create inserts a new member into the database
func (r *BunMemberRepository) Create(ctx context.Context, member *models.Member) error {
	_, err := r.db.NewInsert().
		Model(member).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("create member: %w", err)
	}
	return nil
}

// GetByID retrieves a member by their ID
func (r *BunMemberRepository) GetByID(ctx context.Context, id string) (*models.Member, error) {
	member := new(models.Member)
	err := r.db.NewSelect().
		Model(member).
		Where("id = ?", id).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("member %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("get member by ID: %w", err)
	}
	return member, nil
}

// GetByMemberNumber retrieves a member by their member number
func (r *BunMemberRepository) GetByMemberNumber(ctx context.Context, memberNumber string) (*models.Member, error) {
	member := new(models.Member)
	err := r.db.NewSelect().
		Model(member).
		Where("member_number = ?", memberNumber).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("member number %s: %w", memberNumber, ErrNotFound)
		}
		return nil, fmt.Errorf("get member by number: %w", err)
	}
	return member, nil
}

// GetByEmail retrieves a member by their email
func (r *BunMemberRepository) GetByEmail(ctx context.Context, email string) (*models.Member, error) {
	member := new(models.Member)
	err := r.db.NewSelect().
		Model(member).
		Where("email = ?", email).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("member email %s: %w", email, ErrNotFound)
		}
		return nil, fmt.Errorf("get member by email: %w", err)
	}
	return member, nil
}

// Update persists changed member fields
func (r *BunMemberRepository) Update(ctx context.Context, member *models.Member) error {
	member.UpdatedAt = time.Now()
	_, err := r.db.NewUpdate().
		Model(member).
		WherePK().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("update member: %w", err)
	}
	return nil
}

// UpdatePasswordHash replaces the stored credential hash for a member
func (r *BunMemberRepository) UpdatePasswordHash(ctx context.Context, id, passwordHash string) error {
	res, err := r.db.NewUpdate().
		Model((*models.Member)(nil)).
		Set("password_hash = ?", passwordHash).
		Set("updated_at = ?", time.Now()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("update password hash: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("member %s: %w", id, ErrNotFound)
	}
	return nil
}

// UpdateLastLogin stamps the member's last successful login
func (r *BunMemberRepository) UpdateLastLogin(ctx context.Context, id string) error {
	_, err := r.db.NewUpdate().
		Model((*models.Member)(nil)).
		Set("last_login_at = ?", time.Now()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("update last login: %w", err)
	}
	return nil
}

// Search matches member number, email or name; empty term lists all members
func (r *BunMemberRepository) Search(ctx context.Context, term string) ([]models.Member, error) {
	var members []models.Member
	q := r.db.NewSelect().
		Model(&members).
		Order("member_number ASC")
	if term != "" {
		like := "%" + term + "%"
		q = q.WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.
				Where("member_number LIKE ?", like).
				WhereOr("email LIKE ?", like).
				WhereOr("name LIKE ?", like)
		})
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("search members: %w", err)
	}
	return members, nil
}

// Count returns the total number of members
func (r *BunMemberRepository) Count(ctx context.Context) (int, error) {
	count, err := r.db.NewSelect().
		Model((*models.Member)(nil)).
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count members: %w", err)
	}
	return count, nil
}

// ListByCollector returns the members assigned to a collector
func (r *BunMemberRepository) ListByCollector(ctx context.Context, collectorID string) ([]models.Member, error) {
	var members []models.Member
	err := r.db.NewSelect().
		Model(&members).
		Where("collector_id = ?", collectorID).
		Order("member_number ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list members by collector: %w", err)
	}
	return members, nil
}

// ListByIDs retrieves the members whose IDs are in the given set. Unknown
// IDs are skipped silently.
func (r *BunMemberRepository) ListByIDs(ctx context.Context, ids []string) ([]models.Member, error) {
	if len(ids) == 0 {
		return []models.Member{}, nil
	}
	var members []models.Member
	err := r.db.NewSelect().
		Model(&members).
		Where("id IN (?)", bun.In(ids)).
		Order("member_number ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list members by IDs: %w", err)
	}
	return members, nil
}
