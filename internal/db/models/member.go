package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/uptrace/bun"
)

// Member represents a registered member of the organisation. Every
// authenticated principal is backed by a member row; the Role column holds
// the nominal profile role only. Admin and collector status are granted
// separately (casbin grouping policies) and take precedence over this field
// during role resolution.
type Member struct {
	bun.BaseModel `bun:"table:members,alias:m"`

	ID           string     `bun:"id,pk,type:uuid"`
	MemberNumber string     `bun:"member_number,notnull,unique"`
	Email        string     `bun:"email,notnull,unique"`
	Name         string     `bun:"name,notnull"`
	Role         *string    `bun:"role"` // nominal profile role, nullable
	PasswordHash string     `bun:"password_hash,notnull"`
	Status       string     `bun:"status,notnull,default:'active'"`
	CollectorID  *string    `bun:"collector_id,type:uuid"` // FK to members(id), nullable
	CreatedAt    time.Time  `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt    time.Time  `bun:"updated_at,notnull,default:current_timestamp"`
	LastLoginAt  *time.Time `bun:"last_login_at"`
	DisabledAt   *time.Time `bun:"disabled_at"`
}

// ProfileRole returns the nominal role stored on the member row, or empty
// when none was recorded.
func (m *Member) ProfileRole() string {
	if m == nil || m.Role == nil {
		return ""
	}
	return *m.Role
}

// Attributes returns the member fields exposed to destination `when`
// expressions. Only non-sensitive descriptive fields are included.
func (m *Member) Attributes() map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return map[string]any{
		"member_number": m.MemberNumber,
		"status":        m.Status,
		"has_collector": m.CollectorID != nil,
	}
}

// Payment records a membership payment collected from a member.
type Payment struct {
	bun.BaseModel `bun:"table:payments,alias:p"`

	ID          string    `bun:"id,pk,type:uuid"`
	MemberID    string    `bun:"member_id,notnull,type:uuid"` // FK to members(id)
	CollectorID *string   `bun:"collector_id,type:uuid"`      // FK to members(id), nullable
	Amount      float64   `bun:"amount,notnull"`
	Status      string    `bun:"status,notnull,default:'pending'"` // paid | pending
	PaymentDate time.Time `bun:"payment_date,notnull"`
	CreatedAt   time.Time `bun:"created_at,notnull,default:current_timestamp"`
}

const (
	PaymentStatusPaid    = "paid"
	PaymentStatusPending = "pending"
)

// ClientInfo carries non-sensitive diagnostic metadata attached to
// credential-change audit rows. Never contains credential material.
type ClientInfo map[string]any

// Scan implements sql.Scanner for reading from database
func (ci *ClientInfo) Scan(value any) error {
	if value == nil {
		*ci = make(ClientInfo)
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return fmt.Errorf("failed to scan ClientInfo: expected []byte, got %T", value)
	}
	return json.Unmarshal(bytes, ci)
}

// Value implements driver.Valuer for writing to database
func (ci ClientInfo) Value() (driver.Value, error) {
	if ci == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(ci)
}

// PasswordResetAudit records one terminal outcome of a password-change
// attempt. Reference is a short base58 code quoted back to the user and in
// support tickets.
type PasswordResetAudit struct {
	bun.BaseModel `bun:"table:password_reset_audit,alias:pra"`

	ID           string     `bun:"id,pk,type:uuid"`
	MemberNumber string     `bun:"member_number,notnull"`
	Reference    string     `bun:"reference,notnull,unique"`
	Outcome      string     `bun:"outcome,notnull"` // succeeded | rejected | exhausted
	ClientInfo   ClientInfo `bun:"client_info,type:jsonb,notnull,default:'{}'"`
	CreatedAt    time.Time  `bun:"created_at,notnull,default:current_timestamp"`
}
