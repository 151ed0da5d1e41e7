package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/erazemk/zaloga/internal/activity"
	"github.com/erazemk/zaloga/internal/auth"
	"github.com/erazemk/zaloga/internal/cache"
	"github.com/erazemk/zaloga/internal/model"
	"github.com/erazemk/zaloga/internal/store"
)

// UserInput creates an account.
type UserInput struct {
	Email    string     `json:"email"`
	Password string     `json:"password"`
	Username string     `json:"username"`
	Role     model.Role `json:"role"`
}

// ListUsers returns all accounts with their roles.
func (s *Service) ListUsers(ctx context.Context, sess model.Session) ([]model.User, error) {
	if err := authorize(sess, model.RoleSuperadmin); err != nil {
		return nil, err
	}
	return store.ListUsers(ctx, s.db)
}

// CreateUser creates an account, its profile and its role in one
// transaction, so a failed role assignment leaves no account behind.
func (s *Service) CreateUser(ctx context.Context, sess model.Session, in UserInput) (*model.User, error) {
	if err := authorize(sess, model.RoleSuperadmin); err != nil {
		return nil, err
	}

	addr, err := mail.ParseAddress(strings.TrimSpace(in.Email))
	if err != nil {
		return nil, model.Invalid("email", "is not a valid address")
	}
	if err := model.ValidatePassword(in.Password); err != nil {
		return nil, model.Invalid("password", err.Error())
	}
	if in.Role == "" {
		in.Role = model.RoleViewer
	}
	if !in.Role.Valid() {
		return nil, model.Invalid("role", fmt.Sprintf("unknown role %q", in.Role))
	}
	username := strings.TrimSpace(in.Username)
	if username == "" {
		username = activity.DisplayName(addr.Address)
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	var user *model.User
	err = s.inTx(ctx, func(tx *sqlx.Tx) error {
		user, err = store.CreateUser(ctx, tx, addr.Address, username, hash, in.Role)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.activity.Log(sess, model.ActionAdd,
		fmt.Sprintf("Created user %s (%s)", user.Email, user.Role), tableUsers, user.ID)
	s.versions.Bump(cache.Users)
	slog.Info("user created", "user", sess.Email, "new_user", user.Email, "role", user.Role)
	return user, nil
}

// SetUserRole changes another account's role.
func (s *Service) SetUserRole(ctx context.Context, sess model.Session, id string, role model.Role) (*model.User, error) {
	if err := authorize(sess, model.RoleSuperadmin); err != nil {
		return nil, err
	}
	if id == sess.UserID {
		return nil, fmt.Errorf("cannot change own role: %w", model.ErrForbidden)
	}
	if !role.Valid() {
		return nil, model.Invalid("role", fmt.Sprintf("unknown role %q", role))
	}

	var user *model.User
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		if err := store.UpdateUserRole(ctx, tx, id, role); err != nil {
			return err
		}
		var err error
		user, err = store.GetUser(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.activity.Log(sess, model.ActionUpdate,
		fmt.Sprintf("Changed role of %s to %s", user.Email, role), tableUsers, id)
	s.versions.Bump(cache.Users)
	slog.Info("user role updated", "user", sess.Email, "target_user", user.Email, "new_role", role)
	return user, nil
}

// ResetPassword sets another account's password.
func (s *Service) ResetPassword(ctx context.Context, sess model.Session, id, password string) error {
	if err := authorize(sess, model.RoleSuperadmin); err != nil {
		return err
	}
	if err := model.ValidatePassword(password); err != nil {
		return model.Invalid("password", err.Error())
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	if err := store.UpdateUserPassword(ctx, s.db, id, hash); err != nil {
		return err
	}

	s.activity.Log(sess, model.ActionUpdate, "Reset a user's password", tableUsers, id)
	slog.Info("user password reset", "user", sess.Email, "target_user_id", id)
	return nil
}

// DeleteUser removes another account with its profile and role.
func (s *Service) DeleteUser(ctx context.Context, sess model.Session, id string) error {
	if err := authorize(sess, model.RoleSuperadmin); err != nil {
		return err
	}
	if id == sess.UserID {
		return fmt.Errorf("cannot delete own account: %w", model.ErrForbidden)
	}

	var target *model.User
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		target, err = store.GetUser(ctx, tx, id)
		if err != nil {
			return err
		}
		if target == nil {
			return fmt.Errorf("user %s: %w", id, model.ErrNotFound)
		}
		return store.DeleteUser(ctx, tx, id)
	})
	if err != nil {
		return err
	}

	s.activity.Log(sess, model.ActionDelete, fmt.Sprintf("Deleted user %s", target.Email), tableUsers, id)
	s.versions.Bump(cache.Users)
	slog.Info("user deleted", "user", sess.Email, "deleted_user", target.Email)
	return nil
}
