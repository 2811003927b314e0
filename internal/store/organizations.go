package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/erazemk/izgubljeno/internal/model"
)

// CreateOrganization creates a new organization.
func CreateOrganization(ctx context.Context, db *sql.DB, name string) (*model.Organization, error) {
	id := uuid.NewString()
	_, err := db.ExecContext(ctx,
		`INSERT INTO organizations (id, name) VALUES (?, ?)`,
		id, name,
	)
	if err != nil {
		return nil, fmt.Errorf("creating organization: %w", err)
	}
	return GetOrganization(ctx, db, id)
}

// GetOrganization returns an organization by ID.
func GetOrganization(ctx context.Context, db *sql.DB, id string) (*model.Organization, error) {
	o := &model.Organization{}
	err := db.QueryRowContext(ctx,
		`SELECT id, name, created_at, deleted_at
		 FROM organizations WHERE id = ?`, id,
	).Scan(&o.ID, &o.Name, &o.CreatedAt, &o.DeletedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting organization: %w", err)
	}
	return o, nil
}

// ListOrganizations returns all non-deleted organizations by name.
func ListOrganizations(ctx context.Context, db *sql.DB) ([]model.Organization, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, name, created_at, deleted_at
		 FROM organizations WHERE deleted_at IS NULL ORDER BY name`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing organizations: %w", err)
	}
	defer rows.Close()

	var orgs []model.Organization
	for rows.Next() {
		var o model.Organization
		if err := rows.Scan(&o.ID, &o.Name, &o.CreatedAt, &o.DeletedAt); err != nil {
			return nil, fmt.Errorf("scanning organization: %w", err)
		}
		orgs = append(orgs, o)
	}
	return orgs, rows.Err()
}

// DeleteOrganization soft-deletes an organization. Fails while it still has
// active members.
func DeleteOrganization(ctx context.Context, db *sql.DB, id string) error {
	var count int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM users WHERE organization_id = ? AND deleted_at IS NULL`, id,
	).Scan(&count)
	if err != nil {
		return fmt.Errorf("checking organization members: %w", err)
	}
	if count > 0 {
		return fmt.Errorf("organization still has %d members: %w", count, model.ErrConflict)
	}

	_, err = db.ExecContext(ctx,
		`UPDATE organizations SET deleted_at = CURRENT_TIMESTAMP WHERE id = ? AND deleted_at IS NULL`,
		id,
	)
	if err != nil {
		return fmt.Errorf("deleting organization: %w", err)
	}
	return nil
}
