package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/erazemk/izgubljeno/internal/model"
)

// SQLite stores item and claim snapshots in a SQLite database.
type SQLite struct {
	DB *sql.DB
}

// NewSQLite returns a SQLite store on an open database with the schema
// already applied.
func NewSQLite(db *sql.DB) *SQLite {
	return &SQLite{DB: db}
}

// LoadAll returns all items in insertion order.
func (s *SQLite) LoadAll(ctx context.Context) ([]model.Item, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, title, description, category, status, location, contact, image_url,
		        owner_id, organization_id, created_at
		 FROM items ORDER BY seq`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing items: %w", err)
	}
	defer rows.Close()

	items := []model.Item{}
	for rows.Next() {
		var item model.Item
		var contact, imageURL, orgID sql.NullString
		var createdAt string
		if err := rows.Scan(&item.ID, &item.Title, &item.Description, &item.Category, &item.Status,
			&item.Location, &contact, &imageURL, &item.OwnerID, &orgID, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning item: %w", err)
		}
		item.Contact = contact.String
		item.ImageURL = imageURL.String
		item.OrganizationID = orgID.String
		if item.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, fmt.Errorf("item %s: %w", item.ID, err)
		}
		item.Claimed = model.ClaimedFor(item.Status)
		items = append(items, item)
	}
	return items, rows.Err()
}

// SaveAll replaces every stored item with items in a single transaction.
// Images of items that no longer exist are dropped.
func (s *SQLite) SaveAll(ctx context.Context, items []model.Item) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		return writeItems(ctx, tx, items)
	})
}

// Save replaces items and claims together in one transaction, so either
// both snapshots are stored or neither is.
func (s *SQLite) Save(ctx context.Context, items []model.Item, claims []model.Claim) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if err := writeItems(ctx, tx, items); err != nil {
			return err
		}
		return writeClaims(ctx, tx, claims)
	})
}

func (s *SQLite) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

func writeItems(ctx context.Context, tx *sql.Tx, items []model.Item) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM items`); err != nil {
		return fmt.Errorf("clearing items: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO items (id, seq, title, description, category, status, location, contact,
		                    image_url, owner_id, organization_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return fmt.Errorf("preparing item insert: %w", err)
	}
	defer stmt.Close()

	for i, item := range items {
		if _, err := stmt.ExecContext(ctx,
			item.ID, i, item.Title, item.Description, item.Category, item.Status, item.Location,
			nullString(item.Contact), nullString(item.ImageURL), item.OwnerID,
			nullString(item.OrganizationID), formatTime(item.CreatedAt),
		); err != nil {
			return fmt.Errorf("inserting item %s: %w", item.ID, err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM item_images WHERE item_id NOT IN (SELECT id FROM items)`,
	); err != nil {
		return fmt.Errorf("removing orphaned images: %w", err)
	}
	return nil
}

// SetItemImage sets an item's image data.
func SetItemImage(ctx context.Context, db *sql.DB, itemID string, image []byte, mime string) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO item_images (item_id, image, mime) VALUES (?, ?, ?)
		 ON CONFLICT (item_id) DO UPDATE SET image = excluded.image, mime = excluded.mime`,
		itemID, image, mime,
	)
	if err != nil {
		return fmt.Errorf("setting item image: %w", err)
	}
	return nil
}

// GetItemImage returns an item's image data and MIME type.
func GetItemImage(ctx context.Context, db *sql.DB, itemID string) ([]byte, string, error) {
	var image []byte
	var mime string
	err := db.QueryRowContext(ctx,
		`SELECT image, mime FROM item_images WHERE item_id = ?`, itemID,
	).Scan(&image, &mime)
	if err == sql.ErrNoRows {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("getting item image: %w", err)
	}
	return image, mime, nil
}

// DeleteItemImage removes an item's image, if any.
func DeleteItemImage(ctx context.Context, db *sql.DB, itemID string) error {
	if _, err := db.ExecContext(ctx, `DELETE FROM item_images WHERE item_id = ?`, itemID); err != nil {
		return fmt.Errorf("deleting item image: %w", err)
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing timestamp %q: %w", s, err)
	}
	return t, nil
}
