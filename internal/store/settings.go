package store

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

const settingJWTSecret = "jwt_secret"

// GetJWTSecret returns the signing secret, generating and storing one on
// first use. INSERT OR IGNORE followed by a read keeps concurrent first
// starts consistent.
func GetJWTSecret(ctx context.Context, q sqlx.ExtContext) (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating jwt secret: %w", err)
	}

	if _, err := q.ExecContext(ctx,
		`INSERT OR IGNORE INTO settings (key, value) VALUES (?, ?)`,
		settingJWTSecret, hex.EncodeToString(buf),
	); err != nil {
		return "", fmt.Errorf("storing jwt secret: %w", err)
	}

	secret, err := GetSetting(ctx, q, settingJWTSecret)
	if err != nil {
		return "", err
	}
	return secret, nil
}

// GetSetting returns a setting value, or "" if it is not set.
func GetSetting(ctx context.Context, q sqlx.QueryerContext, key string) (string, error) {
	var value string
	err := sqlx.GetContext(ctx, q, &value, `SELECT value FROM settings WHERE key = ?`, key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading setting %s: %w", key, err)
	}
	return value, nil
}

// PutSetting stores a setting value.
func PutSetting(ctx context.Context, q sqlx.ExtContext, key, value string) error {
	if _, err := q.ExecContext(ctx,
		`INSERT INTO settings (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	); err != nil {
		return fmt.Errorf("writing setting %s: %w", key, err)
	}
	return nil
}
