package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/erazemk/zaloga/internal/model"
)

const userSelect = `SELECT u.id, u.email, COALESCE(p.username, '') AS username, u.password_hash,
	COALESCE(r.role, 'viewer') AS role, u.created_at
	FROM users u
	LEFT JOIN profiles p ON p.id = u.id
	LEFT JOIN user_roles r ON r.user_id = u.id`

// CreateUser creates an account together with its profile and role row.
// Callers pass a transaction so a failed role insert leaves no account behind.
func CreateUser(ctx context.Context, q sqlx.ExtContext, email, username, passwordHash string, role model.Role) (*model.User, error) {
	if !role.Valid() {
		return nil, model.Invalid("role", "unknown role")
	}

	id := uuid.NewString()
	now := time.Now().UTC()
	email = strings.TrimSpace(email)

	if _, err := q.ExecContext(ctx,
		`INSERT INTO users (id, email, password_hash, created_at) VALUES (?, ?, ?, ?)`,
		id, email, passwordHash, now,
	); err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("email %s already registered: %w", email, model.ErrConflict)
		}
		return nil, fmt.Errorf("creating user: %w", err)
	}

	if _, err := q.ExecContext(ctx,
		`INSERT INTO profiles (id, username, email, created_at) VALUES (?, ?, ?, ?)`,
		id, username, email, now,
	); err != nil {
		return nil, fmt.Errorf("creating profile: %w", err)
	}

	if _, err := q.ExecContext(ctx,
		`INSERT INTO user_roles (id, user_id, role, created_at) VALUES (?, ?, ?, ?)`,
		uuid.NewString(), id, role, now,
	); err != nil {
		return nil, fmt.Errorf("assigning role: %w", err)
	}

	return GetUser(ctx, q, id)
}

// GetUser returns a user by ID.
func GetUser(ctx context.Context, q sqlx.QueryerContext, id string) (*model.User, error) {
	u := &model.User{}
	err := sqlx.GetContext(ctx, q, u, userSelect+` WHERE u.id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting user: %w", err)
	}
	return u, nil
}

// GetUserByEmail returns a user by email, ignoring case.
func GetUserByEmail(ctx context.Context, q sqlx.QueryerContext, email string) (*model.User, error) {
	u := &model.User{}
	err := sqlx.GetContext(ctx, q, u, userSelect+` WHERE LOWER(u.email) = LOWER(?)`, strings.TrimSpace(email))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting user by email: %w", err)
	}
	return u, nil
}

// ListUsers returns all users ordered by creation time.
func ListUsers(ctx context.Context, q sqlx.QueryerContext) ([]model.User, error) {
	var users []model.User
	if err := sqlx.SelectContext(ctx, q, &users, userSelect+` ORDER BY u.created_at, u.id`); err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	return users, nil
}

// CountUsers returns the number of accounts.
func CountUsers(ctx context.Context, q sqlx.QueryerContext) (int, error) {
	var n int
	if err := sqlx.GetContext(ctx, q, &n, `SELECT COUNT(*) FROM users`); err != nil {
		return 0, fmt.Errorf("counting users: %w", err)
	}
	return n, nil
}

// ListProfiles returns every profile row.
func ListProfiles(ctx context.Context, q sqlx.QueryerContext) ([]model.Profile, error) {
	var profiles []model.Profile
	if err := sqlx.SelectContext(ctx, q, &profiles,
		`SELECT id, username, email, created_at FROM profiles ORDER BY created_at, id`,
	); err != nil {
		return nil, fmt.Errorf("listing profiles: %w", err)
	}
	return profiles, nil
}

// ListUserRoles returns every role assignment.
func ListUserRoles(ctx context.Context, q sqlx.QueryerContext) ([]model.UserRole, error) {
	var roles []model.UserRole
	if err := sqlx.SelectContext(ctx, q, &roles,
		`SELECT id, user_id, role, created_at FROM user_roles ORDER BY created_at, id`,
	); err != nil {
		return nil, fmt.Errorf("listing user roles: %w", err)
	}
	return roles, nil
}

// UpdateUserRole changes a user's role.
func UpdateUserRole(ctx context.Context, q sqlx.ExtContext, id string, role model.Role) error {
	if !role.Valid() {
		return model.Invalid("role", "unknown role")
	}

	res, err := q.ExecContext(ctx,
		`INSERT INTO user_roles (id, user_id, role, created_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET role = excluded.role`,
		uuid.NewString(), id, role, time.Now().UTC(),
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("user %s: %w", id, model.ErrNotFound)
		}
		return fmt.Errorf("updating user role: %w", err)
	}
	return requireRow(res, "user", id)
}

// UpdateUserPassword updates a user's password hash.
func UpdateUserPassword(ctx context.Context, q sqlx.ExtContext, id, passwordHash string) error {
	res, err := q.ExecContext(ctx,
		`UPDATE users SET password_hash = ? WHERE id = ?`,
		passwordHash, id,
	)
	if err != nil {
		return fmt.Errorf("updating user password: %w", err)
	}
	return requireRow(res, "user", id)
}

// DeleteUser removes an account. Profile and role rows cascade.
func DeleteUser(ctx context.Context, q sqlx.ExtContext, id string) error {
	res, err := q.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting user: %w", err)
	}
	return requireRow(res, "user", id)
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func isForeignKeyViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}
