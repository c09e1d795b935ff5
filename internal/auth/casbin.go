package auth

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	"github.com/imedia765/memberhub/internal/auth/bunadapter"
	"github.com/uptrace/bun"
)

//go:embed model.conf
var casbinModelContent string

// Casbin identifiers. Grants are grouping policies binding a member principal
// to a role subject, e.g. "g, member:<uuid>, role:admin". An admin or
// collector grant here is authoritative over the member's profile role.
const (
	RoleSubjectAdmin     = "role:admin"
	RoleSubjectCollector = "role:collector"
)

// MemberPrincipal returns the casbin subject for a member ID.
func MemberPrincipal(memberID string) string {
	return "member:" + memberID
}

// PrincipalMemberID extracts the member ID from a casbin subject. The second
// return is false for subjects that are not member principals (role subjects
// in particular).
func PrincipalMemberID(subject string) (string, bool) {
	return strings.CutPrefix(subject, "member:")
}

// InitEnforcer creates a casbin enforcer backed by the application database.
// The enforcer stores role grants (grouping policies); auto-save keeps the
// casbin_rules table in sync with grant and revoke operations.
func InitEnforcer(db *bun.DB) (casbin.IEnforcer, error) {
	adapter, err := bunadapter.NewAdapter(db)
	if err != nil {
		return nil, fmt.Errorf("create casbin adapter: %w", err)
	}

	m, err := model.NewModelFromString(casbinModelContent)
	if err != nil {
		return nil, fmt.Errorf("parse casbin model: %w", err)
	}

	enforcer, err := casbin.NewSyncedEnforcer(m, adapter)
	if err != nil {
		return nil, fmt.Errorf("create casbin enforcer: %w", err)
	}

	if err := enforcer.LoadPolicy(); err != nil {
		return nil, fmt.Errorf("load casbin policies: %w", err)
	}

	return enforcer, nil
}
