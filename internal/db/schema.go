package db

import (
	"fmt"

	"github.com/jmoiron/sqlx"
)

// schema is the full database schema.
const schema = `
CREATE TABLE IF NOT EXISTS users (
    id            TEXT PRIMARY KEY,
    email         TEXT NOT NULL,
    password_hash TEXT NOT NULL,
    created_at    DATETIME NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_users_email ON users(LOWER(email));

CREATE TABLE IF NOT EXISTS profiles (
    id         TEXT PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
    username   TEXT NOT NULL,
    email      TEXT NOT NULL DEFAULT '',
    created_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS user_roles (
    id         TEXT PRIMARY KEY,
    user_id    TEXT NOT NULL UNIQUE REFERENCES users(id) ON DELETE CASCADE,
    role       TEXT NOT NULL CHECK (role IN ('superadmin', 'admin', 'viewer')),
    created_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS inventory_items (
    id            TEXT PRIMARY KEY,
    name          TEXT NOT NULL,
    category      TEXT NOT NULL,
    location      TEXT NOT NULL,
    description   TEXT NOT NULL DEFAULT '',
    condition     TEXT NOT NULL DEFAULT 'Good'
                  CHECK (condition IN ('Brand New', 'Good', 'Fair', 'Defected')),
    quantity      INTEGER NOT NULL DEFAULT 0 CHECK (quantity >= 0),
    total_items   INTEGER NOT NULL DEFAULT 0,
    unit_price    TEXT NOT NULL DEFAULT '0',
    reorder_point INTEGER NOT NULL DEFAULT 0,
    status        TEXT NOT NULL CHECK (status IN ('In Stock', 'Low Stock', 'Out of Stock')),
    image_url     TEXT NOT NULL DEFAULT '',
    created_at    DATETIME NOT NULL,
    updated_at    DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_inventory_items_condition ON inventory_items(condition);

CREATE TABLE IF NOT EXISTS borrowed_items (
    id                  TEXT PRIMARY KEY,
    item_id             TEXT REFERENCES inventory_items(id) ON DELETE SET NULL,
    item_name           TEXT NOT NULL,
    unit_price          TEXT NOT NULL DEFAULT '0',
    image_url           TEXT NOT NULL DEFAULT '',
    description         TEXT NOT NULL DEFAULT '',
    borrower_name       TEXT NOT NULL,
    borrower_department TEXT NOT NULL DEFAULT '',
    quantity            INTEGER NOT NULL CHECK (quantity > 0),
    borrow_date         DATETIME NOT NULL,
    return_date         DATETIME NOT NULL,
    actual_return_date  DATETIME,
    status              TEXT NOT NULL CHECK (status IN ('Active', 'Returned')),
    signature_url       TEXT NOT NULL DEFAULT '',
    created_at          DATETIME NOT NULL,
    updated_at          DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_borrowed_items_item ON borrowed_items(item_id);

CREATE TABLE IF NOT EXISTS used_given_items (
    id                   TEXT PRIMARY KEY,
    item_id              TEXT REFERENCES inventory_items(id) ON DELETE SET NULL,
    item_name            TEXT NOT NULL,
    unit_price           TEXT NOT NULL DEFAULT '0',
    image_url            TEXT NOT NULL DEFAULT '',
    description          TEXT NOT NULL DEFAULT '',
    type                 TEXT NOT NULL CHECK (type IN ('used', 'given')),
    quantity             INTEGER NOT NULL CHECK (quantity > 0),
    recipient_name       TEXT NOT NULL DEFAULT '',
    recipient_department TEXT NOT NULL DEFAULT '',
    reason               TEXT NOT NULL DEFAULT '',
    date                 DATETIME NOT NULL,
    created_at           DATETIME NOT NULL,
    updated_at           DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_used_given_items_item ON used_given_items(item_id);

CREATE TABLE IF NOT EXISTS activity_logs (
    id                 TEXT PRIMARY KEY,
    user_id            TEXT NOT NULL,
    user_email         TEXT NOT NULL DEFAULT '',
    action_type        TEXT NOT NULL,
    action_description TEXT NOT NULL,
    table_name         TEXT NOT NULL DEFAULT '',
    record_id          TEXT NOT NULL DEFAULT '',
    created_at         DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_activity_logs_created ON activity_logs(created_at);

CREATE TABLE IF NOT EXISTS settings (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS revoked_tokens (
    jti        TEXT PRIMARY KEY,
    expires_at DATETIME NOT NULL
);
`

// EnsureSchema creates all tables and indexes if they don't already exist.
func EnsureSchema(db *sqlx.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}
