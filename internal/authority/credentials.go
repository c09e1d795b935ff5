package authority

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/btcsuite/btcutil/base58"
	"github.com/google/uuid"

	"github.com/imedia765/memberhub/internal/auth"
	"github.com/imedia765/memberhub/internal/db/bunx"
	"github.com/imedia765/memberhub/internal/db/models"
	"github.com/imedia765/memberhub/internal/repository"
	"github.com/imedia765/memberhub/internal/secure"
)

// Audit outcomes recorded for password-change attempts.
const (
	OutcomeSucceeded = "succeeded"
	OutcomeRejected  = "rejected"
	OutcomeExhausted = "exhausted"
)

// DBCredentialAuthority applies password changes against the members table
// and records every terminal outcome in the audit trail. Errors are
// classified with the secure package sentinels so the executor knows what
// is worth retrying.
type DBCredentialAuthority struct {
	members repository.MemberRepository
	audits  repository.AuditRepository
}

// NewCredentialAuthority creates a credential authority over the member and
// audit repositories.
func NewCredentialAuthority(members repository.MemberRepository, audits repository.AuditRepository) *DBCredentialAuthority {
	return &DBCredentialAuthority{members: members, audits: audits}
}

// ChangePassword verifies the current credential and stores the new hash.
// On success it returns the success document the executor validates:
// a success flag, a short reference code for support tickets, and the
// change timestamp.
func (a *DBCredentialAuthority) ChangePassword(ctx context.Context, principalID, currentPassword, newPassword string) (map[string]any, error) {
	member, err := a.members.GetByID(ctx, principalID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("member %s: %v: %w", principalID, err, secure.ErrAuthorityFailure)
		}
		return nil, classifyStorageError("load member", err)
	}

	if err := auth.VerifyPassword(member.PasswordHash, currentPassword); err != nil {
		a.record(ctx, member.MemberNumber, OutcomeRejected)
		return nil, fmt.Errorf("current password does not match: %w", secure.ErrAuthorityFailure)
	}

	hash, err := auth.HashPassword(newPassword)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, secure.ErrAuthorityFailure)
	}

	if err := a.members.UpdatePasswordHash(ctx, member.ID, hash); err != nil {
		return nil, classifyStorageError("store password hash", err)
	}

	changedAt := time.Now().UTC()
	reference := NewReference(member.MemberNumber, changedAt)
	a.record(ctx, member.MemberNumber, OutcomeSucceeded)

	return map[string]any{
		"success":    true,
		"reference":  reference,
		"changed_at": changedAt.Format(time.RFC3339),
	}, nil
}

// RecordExhausted notes that all retry attempts for the member were spent.
// Callers resolve the member number themselves since the change never
// reached this authority's happy path.
func (a *DBCredentialAuthority) RecordExhausted(ctx context.Context, principalID string) {
	member, err := a.members.GetByID(ctx, principalID)
	if err != nil {
		log.Printf("audit: resolve member %s: %v", principalID, err)
		return
	}
	a.record(ctx, member.MemberNumber, OutcomeExhausted)
}

// record writes an audit row. Auditing is diagnostic: a failed write is
// logged, never surfaced, so a completed password change cannot be
// reported as failed because the audit insert lost a race.
func (a *DBCredentialAuthority) record(ctx context.Context, memberNumber, outcome string) {
	entry := &models.PasswordResetAudit{
		ID:           bunx.NewUUIDv7(),
		MemberNumber: memberNumber,
		Reference:    NewReference(memberNumber, time.Now().UTC()),
		Outcome:      outcome,
		ClientInfo:   ClientInfoFromContext(ctx),
	}
	if err := a.audits.Create(ctx, entry); err != nil {
		log.Printf("audit: record %s for %s: %v", outcome, memberNumber, err)
	}
}

// NewReference derives a short base58 code tying an audit entry to an
// attempt without exposing anything about the member or the credential.
func NewReference(memberNumber string, at time.Time) string {
	h := sha256.Sum256([]byte(memberNumber + "|" + at.Format(time.RFC3339Nano) + "|" + uuid.NewString()))
	return base58.Encode(h[:8])
}

// classifyStorageError maps storage failures onto the secure sentinels.
// Dropped or reset connections are worth retrying; everything else is not.
func classifyStorageError(op string, err error) error {
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) || isConnectionError(err) {
		return fmt.Errorf("%s: %v: %w", op, err, secure.ErrTransientConflict)
	}
	return fmt.Errorf("%s: %v: %w", op, err, secure.ErrAuthorityFailure)
}

func isConnectionError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "broken pipe") ||
		strings.Contains(msg, "connection refused")
}

type clientInfoKey struct{}

// WithClientInfo attaches request metadata recorded alongside audit rows.
func WithClientInfo(ctx context.Context, info models.ClientInfo) context.Context {
	return context.WithValue(ctx, clientInfoKey{}, info)
}

// ClientInfoFromContext returns the attached metadata, or an empty map.
func ClientInfoFromContext(ctx context.Context) models.ClientInfo {
	if info, ok := ctx.Value(clientInfoKey{}).(models.ClientInfo); ok {
		return info
	}
	return models.ClientInfo{}
}
