package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/erazemk/izgubljeno/internal/model"
)

// LoadClaims returns all claims in the order they were filed.
func (s *SQLite) LoadClaims(ctx context.Context) ([]model.Claim, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, item_id, claimant_id, status, message, prior_status, created_at
		 FROM claims ORDER BY seq`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing claims: %w", err)
	}
	defer rows.Close()

	claims := []model.Claim{}
	for rows.Next() {
		var c model.Claim
		var message sql.NullString
		var createdAt string
		if err := rows.Scan(&c.ID, &c.ItemID, &c.ClaimantID, &c.Status, &message, &c.PriorStatus, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning claim: %w", err)
		}
		c.Message = message.String
		if c.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, fmt.Errorf("claim %s: %w", c.ID, err)
		}
		claims = append(claims, c)
	}
	return claims, rows.Err()
}

// SaveClaims replaces the claim ledger in a single transaction. The
// database refuses a snapshot with two pending claims on one item.
func (s *SQLite) SaveClaims(ctx context.Context, claims []model.Claim) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		return writeClaims(ctx, tx, claims)
	})
}

func writeClaims(ctx context.Context, tx *sql.Tx, claims []model.Claim) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM claims`); err != nil {
		return fmt.Errorf("clearing claims: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO claims (id, seq, item_id, claimant_id, status, message, prior_status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return fmt.Errorf("preparing claim insert: %w", err)
	}
	defer stmt.Close()

	for i, c := range claims {
		if _, err := stmt.ExecContext(ctx,
			c.ID, i, c.ItemID, c.ClaimantID, c.Status, nullString(c.Message), c.PriorStatus, formatTime(c.CreatedAt),
		); err != nil {
			return fmt.Errorf("inserting claim %s: %w", c.ID, err)
		}
	}
	return nil
}
