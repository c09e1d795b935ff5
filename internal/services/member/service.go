// Package member implements account and session operations: credential
// login by member number or email, session issue and revocation, and the
// role-scoped member directory.
package member

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/imedia765/memberhub/internal/auth"
	"github.com/imedia765/memberhub/internal/db/bunx"
	"github.com/imedia765/memberhub/internal/db/models"
	"github.com/imedia765/memberhub/internal/repository"
	"github.com/imedia765/memberhub/internal/roles"
)

var (
	// ErrInvalidCredentials is returned for unknown accounts and wrong
	// passwords alike; callers must not be able to tell them apart.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountDisabled is returned when the account exists but has been
	// disabled.
	ErrAccountDisabled = errors.New("account disabled")
	// ErrForbidden is returned when the caller's role does not permit the
	// directory query.
	ErrForbidden = errors.New("forbidden")
)

// dummyHash keeps login timing flat for unknown identifiers.
var dummyHash, _ = auth.HashPassword("timing-equalization-only")

// GrantSource lists the principals holding an explicit role grant. The
// casbin role authority satisfies it.
type GrantSource interface {
	GrantHolders(ctx context.Context, roleSubject string) ([]string, error)
}

// Service implements member account operations over the repositories.
type Service struct {
	members         repository.MemberRepository
	sessions        repository.SessionRepository
	broker          *auth.Broker
	grants          GrantSource
	sessionDuration time.Duration
}

// NewService creates the member service. The broker may be nil when no
// navigation state machine is attached (CLI usage).
func NewService(members repository.MemberRepository, sessions repository.SessionRepository, broker *auth.Broker, sessionDuration time.Duration) *Service {
	return &Service{
		members:         members,
		sessions:        sessions,
		broker:          broker,
		sessionDuration: sessionDuration,
	}
}

// WithGrantSource attaches the grant lister backing the collector list.
func (s *Service) WithGrantSource(grants GrantSource) *Service {
	s.grants = grants
	return s
}

// Authenticate verifies a member-number-or-email identifier against the
// stored credential. All failure modes collapse into ErrInvalidCredentials
// except a disabled account, which the member is told about.
func (s *Service) Authenticate(ctx context.Context, identifier, password string) (*models.Member, error) {
	member, err := s.lookup(ctx, identifier)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// Burn a hash comparison so unknown identifiers cost the same
			// as wrong passwords.
			_ = auth.VerifyPassword(dummyHash, password)
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("authenticate %s: %w", identifier, err)
	}

	if err := auth.VerifyPassword(member.PasswordHash, password); err != nil {
		return nil, ErrInvalidCredentials
	}
	if member.DisabledAt != nil {
		return nil, ErrAccountDisabled
	}

	if err := s.members.UpdateLastLogin(ctx, member.ID); err != nil {
		log.Printf("update last login for %s: %v", member.ID, err)
	}
	return member, nil
}

func (s *Service) lookup(ctx context.Context, identifier string) (*models.Member, error) {
	if strings.Contains(identifier, "@") {
		return s.members.GetByEmail(ctx, strings.ToLower(identifier))
	}
	return s.members.GetByMemberNumber(ctx, strings.ToUpper(identifier))
}

// CreateSession issues a bearer token for the member and publishes the
// sign-in. The plaintext token is returned exactly once; only its hash is
// stored.
func (s *Service) CreateSession(ctx context.Context, memberID, userAgent, ipAddress string) (string, *models.Session, error) {
	token, tokenHash, err := auth.GenerateBearerToken()
	if err != nil {
		return "", nil, fmt.Errorf("create session: %w", err)
	}

	session := &models.Session{
		ID:         bunx.NewUUIDv7(),
		MemberID:   memberID,
		TokenHash:  tokenHash,
		ExpiresAt:  time.Now().Add(s.sessionDuration),
		LastUsedAt: time.Now(),
		UserAgent:  optional(userAgent),
		IPAddress:  optional(ipAddress),
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return "", nil, fmt.Errorf("store session: %w", err)
	}

	s.publish(auth.ForPrincipal(memberID))
	return token, session, nil
}

// Logout revokes the session behind the bearer token. Unknown tokens are a
// no-op: the caller ends up signed out either way.
func (s *Service) Logout(ctx context.Context, token string) error {
	session, err := s.sessions.GetByTokenHash(ctx, auth.HashToken(token))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.publish(auth.Anonymous())
			return nil
		}
		return fmt.Errorf("logout: %w", err)
	}
	if err := s.sessions.Revoke(ctx, session.ID); err != nil {
		return fmt.Errorf("revoke session %s: %w", session.ID, err)
	}
	s.publish(auth.Anonymous())
	return nil
}

// RevokeAllSessions revokes every session of the member, the calling one
// included. Used after a password change: the member is signed out
// everywhere and re-authenticates with the new credential, so no session
// outlives the old one.
func (s *Service) RevokeAllSessions(ctx context.Context, memberID string) error {
	if err := s.sessions.RevokeByMemberID(ctx, memberID); err != nil {
		return fmt.Errorf("revoke sessions for %s: %w", memberID, err)
	}
	return nil
}

// Profile returns the member's own profile row.
func (s *Service) Profile(ctx context.Context, memberID string) (*models.Member, error) {
	member, err := s.members.GetByID(ctx, memberID)
	if err != nil {
		return nil, fmt.Errorf("load profile %s: %w", memberID, err)
	}
	return member, nil
}

// Directory lists members visible to the caller: admins see everyone,
// collectors see their own members, everyone else sees nothing.
func (s *Service) Directory(ctx context.Context, callerID string, callerRoles roles.RoleSet, term string) ([]models.Member, error) {
	switch {
	case callerRoles.HasRole(roles.RoleAdmin):
		members, err := s.members.Search(ctx, term)
		if err != nil {
			return nil, fmt.Errorf("search members: %w", err)
		}
		return members, nil
	case callerRoles.HasRole(roles.RoleCollector):
		members, err := s.members.ListByCollector(ctx, callerID)
		if err != nil {
			return nil, fmt.Errorf("list collector members: %w", err)
		}
		if term == "" {
			return members, nil
		}
		return filterMembers(members, term), nil
	default:
		return nil, ErrForbidden
	}
}

// Collectors lists the members holding an explicit collector grant.
// Visible to admins and collectors.
func (s *Service) Collectors(ctx context.Context, callerRoles roles.RoleSet) ([]models.Member, error) {
	if !callerRoles.HasRole(roles.RoleAdmin) && !callerRoles.HasRole(roles.RoleCollector) {
		return nil, ErrForbidden
	}
	if s.grants == nil {
		return nil, errors.New("no grant source configured")
	}
	ids, err := s.grants.GrantHolders(ctx, auth.RoleSubjectCollector)
	if err != nil {
		return nil, fmt.Errorf("list collector grants: %w", err)
	}
	collectors, err := s.members.ListByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load collectors: %w", err)
	}
	return collectors, nil
}

// Count returns the total number of members. Admin only.
func (s *Service) Count(ctx context.Context, callerRoles roles.RoleSet) (int, error) {
	if !callerRoles.HasRole(roles.RoleAdmin) {
		return 0, ErrForbidden
	}
	n, err := s.members.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count members: %w", err)
	}
	return n, nil
}

func filterMembers(members []models.Member, term string) []models.Member {
	needle := strings.ToLower(term)
	out := make([]models.Member, 0, len(members))
	for _, m := range members {
		if strings.Contains(strings.ToLower(m.MemberNumber), needle) ||
			strings.Contains(strings.ToLower(m.Email), needle) ||
			strings.Contains(strings.ToLower(m.Name), needle) {
			out = append(out, m)
		}
	}
	return out
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func (s *Service) publish(session auth.Session) {
	if s.broker != nil {
		s.broker.Publish(auth.Change{Session: session})
	}
}
