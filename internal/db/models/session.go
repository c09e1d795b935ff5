package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Session tracks active login sessions for members
type Session struct {
	bun.BaseModel `bun:"table:sessions,alias:sess"`

	ID         string    `bun:"id,pk,type:uuid"`
	MemberID   string    `bun:"member_id,notnull,type:uuid"` // FK to members(id)
	TokenHash  string    `bun:"token_hash,notnull,unique"`   // SHA256 hash of bearer token
	ExpiresAt  time.Time `bun:"expires_at,notnull"`
	CreatedAt  time.Time `bun:"created_at,notnull,default:current_timestamp"`
	LastUsedAt time.Time `bun:"last_used_at,notnull,default:current_timestamp"`
	UserAgent  *string   `bun:"user_agent"`
	IPAddress  *string   `bun:"ip_address"`
	Revoked    bool      `bun:"revoked,notnull,default:false"`
}

// RevokedJTI tracks revoked API tokens by their JTI claim for denylist-based revocation
type RevokedJTI struct {
	bun.BaseModel `bun:"table:revoked_jti,alias:rjti"`

	JTI       string    `bun:"jti,pk"`
	Subject   string    `bun:"subject,notnull"` // member ID the token was minted for
	Exp       time.Time `bun:"exp,notnull"`     // token expiry, for cleanup
	RevokedAt time.Time `bun:"revoked_at,notnull,default:current_timestamp"`
	RevokedBy *string   `bun:"revoked_by"` // optional member ID of the revoker
}
