package model

import (
	"fmt"
	"time"
)

// User is an authentication account joined with its profile and role.
type User struct {
	ID           string    `db:"id" json:"id"`
	Email        string    `db:"email" json:"email"`
	Username     string    `db:"username" json:"username"`
	PasswordHash string    `db:"password_hash" json:"-"`
	Role         Role      `db:"role" json:"role"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// Profile is the public part of a user account.
type Profile struct {
	ID        string    `db:"id" json:"id"`
	Username  string    `db:"username" json:"username"`
	Email     string    `db:"email" json:"email"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// UserRole assigns a role to a user.
type UserRole struct {
	ID        string    `db:"id" json:"id"`
	UserID    string    `db:"user_id" json:"user_id"`
	Role      Role      `db:"role" json:"role"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Role is an access level.
type Role string

// Roles.
const (
	RoleSuperadmin Role = "superadmin"
	RoleAdmin      Role = "admin"
	RoleViewer     Role = "viewer"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleSuperadmin || r == RoleAdmin || r == RoleViewer
}

// RoleAtLeast checks if role meets or exceeds the minimum required role.
func RoleAtLeast(role, minimum Role) bool {
	levels := map[Role]int{
		RoleSuperadmin: 3,
		RoleAdmin:      2,
		RoleViewer:     1,
	}
	return levels[role] >= levels[minimum] && levels[minimum] > 0
}

// MinPasswordLength is the shortest accepted password.
const MinPasswordLength = 8

// ValidatePassword checks password strength requirements.
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return fmt.Errorf("password must be at least %d characters", MinPasswordLength)
	}
	return nil
}

// Session identifies the caller of an operation. It is built per request by
// the API layer and passed explicitly to every service call.
type Session struct {
	UserID   string
	Email    string
	Username string
	Role     Role
}

// Can reports whether the session holds at least the given role.
func (s Session) Can(minimum Role) bool {
	return RoleAtLeast(s.Role, minimum)
}
