package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// RevokeToken adds a token's JTI to the revocation list and prunes entries
// that have expired anyway.
func RevokeToken(ctx context.Context, q sqlx.ExtContext, jti string, expiresAt time.Time) error {
	if _, err := q.ExecContext(ctx,
		`INSERT OR IGNORE INTO revoked_tokens (jti, expires_at) VALUES (?, ?)`,
		jti, expiresAt.UTC(),
	); err != nil {
		return fmt.Errorf("revoking token: %w", err)
	}

	_, _ = q.ExecContext(ctx,
		`DELETE FROM revoked_tokens WHERE expires_at < ?`, time.Now().UTC(),
	)
	return nil
}

// IsTokenRevoked checks if a token's JTI has been revoked.
func IsTokenRevoked(ctx context.Context, q sqlx.QueryerContext, jti string) (bool, error) {
	var revoked bool
	if err := sqlx.GetContext(ctx, q, &revoked,
		`SELECT EXISTS (SELECT 1 FROM revoked_tokens WHERE jti = ?)`, jti,
	); err != nil {
		return false, fmt.Errorf("checking token revocation: %w", err)
	}
	return revoked, nil
}
