package db

import (
	"database/sql"
	"fmt"
)

// schema is the full database schema.
//
// Items and claims are rewritten as whole snapshots, so they carry a seq
// column that preserves insertion order and no foreign keys between them.
const schema = `
CREATE TABLE IF NOT EXISTS organizations (
    id         TEXT PRIMARY KEY,
    name       TEXT NOT NULL,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    deleted_at DATETIME
);

CREATE TABLE IF NOT EXISTS users (
    id              TEXT PRIMARY KEY,
    name            TEXT NOT NULL,
    email           TEXT NOT NULL,
    password_hash   TEXT NOT NULL,
    role            TEXT NOT NULL DEFAULT 'user' CHECK (role IN ('superAdmin', 'admin', 'user')),
    organization_id TEXT REFERENCES organizations(id),
    created_at      DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    deleted_at      DATETIME
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_users_email_active
    ON users(email) WHERE deleted_at IS NULL;

CREATE TABLE IF NOT EXISTS items (
    id              TEXT PRIMARY KEY,
    seq             INTEGER NOT NULL,
    title           TEXT NOT NULL,
    description     TEXT NOT NULL,
    category        TEXT NOT NULL CHECK (category IN ('electronic', 'clothing', 'accessory', 'document', 'book', 'other')),
    status          TEXT NOT NULL CHECK (status IN ('Lost', 'Found', 'Claimed', 'Resolved')),
    location        TEXT NOT NULL,
    contact         TEXT,
    image_url       TEXT,
    owner_id        TEXT NOT NULL,
    organization_id TEXT,
    created_at      TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS claims (
    id           TEXT PRIMARY KEY,
    seq          INTEGER NOT NULL,
    item_id      TEXT NOT NULL,
    claimant_id  TEXT NOT NULL,
    status       TEXT NOT NULL CHECK (status IN ('pending', 'approved', 'rejected')),
    message      TEXT,
    prior_status TEXT NOT NULL,
    created_at   TEXT NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_claims_one_pending
    ON claims(item_id) WHERE status = 'pending';

CREATE TABLE IF NOT EXISTS item_images (
    item_id TEXT PRIMARY KEY,
    image   BLOB NOT NULL,
    mime    TEXT NOT NULL
);

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
func EnsureSchema(db *sql.DB) error {
	_, err := db.Exec(schema)
	if err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}
