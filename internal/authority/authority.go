// Package authority implements the remote collaborators the core decision
// logic talks to: the role authority queried during role resolution and the
// credential authority that applies password changes. Both are backed by the
// application database here, but consumers only see the interfaces, so a
// deployment can point them at a separate service without touching the core.
package authority

import (
	"context"
	"errors"
	"fmt"

	"github.com/casbin/casbin/v2"
	"github.com/imedia765/memberhub/internal/auth"
	"github.com/imedia765/memberhub/internal/repository"
)

// RoleAuthority answers the three lookups consumed by role resolution.
// Each call may fail independently; any failure makes the whole resolution
// fail closed.
type RoleAuthority interface {
	// IsAdmin reports whether the member holds an explicit admin grant.
	IsAdmin(ctx context.Context, memberID string) (bool, error)
	// IsCollector reports whether the member holds an explicit collector grant.
	IsCollector(ctx context.Context, memberID string) (bool, error)
	// ProfileRole returns the member's nominal profile role, or empty when
	// none is recorded. A missing member row is "no role", not an error.
	ProfileRole(ctx context.Context, memberID string) (string, error)
}

// CasbinAuthority answers grant lookups from the casbin enforcer and profile
// lookups from the members table. Admin and collector grants are grouping
// policies; they take precedence over the descriptive profile role, which is
// the resolver's concern, not this type's.
type CasbinAuthority struct {
	enforcer casbin.IEnforcer
	members  repository.MemberRepository
}

// NewCasbinAuthority creates a role authority over an initialized enforcer.
func NewCasbinAuthority(enforcer casbin.IEnforcer, members repository.MemberRepository) *CasbinAuthority {
	return &CasbinAuthority{enforcer: enforcer, members: members}
}

// IsAdmin reports whether the member holds an admin grant.
func (a *CasbinAuthority) IsAdmin(ctx context.Context, memberID string) (bool, error) {
	return a.hasGrant(ctx, memberID, auth.RoleSubjectAdmin)
}

// IsCollector reports whether the member holds a collector grant.
func (a *CasbinAuthority) IsCollector(ctx context.Context, memberID string) (bool, error) {
	return a.hasGrant(ctx, memberID, auth.RoleSubjectCollector)
}

func (a *CasbinAuthority) hasGrant(ctx context.Context, memberID, roleSubject string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	ok, err := a.enforcer.HasGroupingPolicy(auth.MemberPrincipal(memberID), roleSubject)
	if err != nil {
		return false, fmt.Errorf("check %s grant: %w", roleSubject, err)
	}
	return ok, nil
}

// ProfileRole returns the member's nominal role field.
func (a *CasbinAuthority) ProfileRole(ctx context.Context, memberID string) (string, error) {
	member, err := a.members.GetByID(ctx, memberID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", nil
		}
		return "", fmt.Errorf("profile role lookup: %w", err)
	}
	return member.ProfileRole(), nil
}

// GrantRole adds an explicit role grant for a member. Granting an
// already-held role is a no-op.
func (a *CasbinAuthority) GrantRole(ctx context.Context, memberID, roleSubject string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := a.enforcer.AddGroupingPolicy(auth.MemberPrincipal(memberID), roleSubject); err != nil {
		return fmt.Errorf("grant %s: %w", roleSubject, err)
	}
	return nil
}

// RevokeRole removes an explicit role grant for a member.
func (a *CasbinAuthority) RevokeRole(ctx context.Context, memberID, roleSubject string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := a.enforcer.RemoveGroupingPolicy(auth.MemberPrincipal(memberID), roleSubject); err != nil {
		return fmt.Errorf("revoke %s: %w", roleSubject, err)
	}
	return nil
}

// GrantHolders returns the IDs of every member holding an explicit grant of
// the given role subject.
func (a *CasbinAuthority) GrantHolders(ctx context.Context, roleSubject string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rules, err := a.enforcer.GetFilteredGroupingPolicy(1, roleSubject)
	if err != nil {
		return nil, fmt.Errorf("list %s holders: %w", roleSubject, err)
	}
	ids := make([]string, 0, len(rules))
	for _, rule := range rules {
		if len(rule) == 0 {
			continue
		}
		if id, ok := auth.PrincipalMemberID(rule[0]); ok {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// ListGrants returns the role subjects explicitly granted to a member.
func (a *CasbinAuthority) ListGrants(ctx context.Context, memberID string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	roles, err := a.enforcer.GetRolesForUser(auth.MemberPrincipal(memberID))
	if err != nil {
		return nil, fmt.Errorf("list grants: %w", err)
	}
	return roles, nil
}
