package auth

import (
	"time"

	"github.com/uptrace/bun"
)

// User is the account model. PasswordHash is nil for admin-provisioned
// accounts that have not yet redeemed their reset token.
type User struct {
	bun.BaseModel `bun:"table:users,alias:usr"`
	ID            int64      `bun:"id,pk,autoincrement" json:"id,omitempty"`
	Email         string     `bun:"email,notnull,unique" json:"email,omitempty"`
	PasswordHash  *string    `bun:"password_hash" json:"-"`
	FirstName     string     `bun:"first_name,notnull" json:"first_name,omitempty"`
	LastName      string     `bun:"last_name,notnull" json:"last_name,omitempty"`
	Phone         string     `bun:"phone_number" json:"phone_number,omitempty"`
	Department    Department `bun:"department,notnull" json:"department,omitempty"`
	Role          UserRole   `bun:"user_role,notnull" json:"user_role,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// HasPassword reports whether the account finished provisioning.
func (u *User) HasPassword() bool {
	return u != nil && u.PasswordHash != nil && *u.PasswordHash != ""
}

// IsAdmin reports whether the account holds the admin role.
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// SetPasswordHash stores a hash on the record.
func (u *User) SetPasswordHash(hash string) *User {
	u.PasswordHash = &hash
	return u
}

// ResetToken is a single-use, hour-bounded password credential issued during
// admin provisioning. The token string carries 256 bits of entropy.
type ResetToken struct {
	bun.BaseModel `bun:"table:reset_tokens,alias:rst"`
	ID            int64      `bun:"id,pk,autoincrement" json:"id,omitempty"`
	UserID        int64      `bun:"user_id,notnull" json:"user_id,omitempty"`
	User          *User      `bun:"rel:belongs-to,join:user_id=id" json:"user,omitempty"`
	Token         string     `bun:"token,notnull,unique" json:"-"`
	ExpiresAt     time.Time  `bun:"expires_at,notnull" json:"expires_at,omitempty"`
	Used          bool       `bun:"used" json:"used"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
}

// LogEntry is one append-only audit record. UserID is nil for failures that
// could not be attributed to an account (e.g. login with an unknown email).
type LogEntry struct {
	bun.BaseModel `bun:"table:logs,alias:lg"`
	ID            int64      `bun:"id,pk,autoincrement" json:"id,omitempty"`
	UserID        *int64     `bun:"user_id" json:"user_id,omitempty"`
	Action        string     `bun:"action,notnull" json:"action,omitempty"`
	Description   string     `bun:"description" json:"description,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
}
