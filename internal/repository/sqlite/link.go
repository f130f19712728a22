package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/xid"
	"github.com/sakif/linkspark/internal/apperror"
	"github.com/sakif/linkspark/internal/model"
	"github.com/sakif/linkspark/internal/repository"
)

var _ repository.LinkRepository = (*DB)(nil)

const linkColumns = `id, user_id, title, url, position, active, clicks, created_at, updated_at`

// AddLink appends a link to its owner's collection.
//
// The next position is computed by the INSERT itself (max+1, or 0 for the
// first link), so two concurrent adds can never read the same maximum.
func (db *DB) AddLink(ctx context.Context, link *model.Link) error {
	now := time.Now().UTC()
	link.ID = xid.New().String()
	link.CreatedAt = now
	link.UpdatedAt = now

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO links (`+linkColumns+`)
		 SELECT ?, ?, ?, ?, COALESCE(MAX(position), -1) + 1, ?, 0, ?, ?
		 FROM links WHERE user_id = ?`,
		link.ID,
		link.UserID,
		link.Title,
		link.URL,
		link.Active,
		link.CreatedAt,
		link.UpdatedAt,
		link.UserID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: adding link for %s: %w", link.UserID, err)
	}

	err = db.conn.QueryRowContext(ctx,
		`SELECT position FROM links WHERE id = ?`, link.ID,
	).Scan(&link.Order)
	if err != nil {
		return fmt.Errorf("sqlite: reading position of link %s: %w", link.ID, err)
	}
	return nil
}

// GetLink reads one link scoped to its owner.
func (db *DB) GetLink(ctx context.Context, userID, id string) (*model.Link, error) {
	l, err := scanLink(db.conn.QueryRowContext(ctx,
		`SELECT `+linkColumns+` FROM links WHERE id = ? AND user_id = ?`, id, userID))
	if err == sql.ErrNoRows {
		return nil, apperror.NotFound("link", id)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: getting link %s: %w", id, err)
	}
	return l, nil
}

// ListLinks returns the owner's links in ascending display order.
func (db *DB) ListLinks(ctx context.Context, userID string, activeOnly bool) ([]model.Link, error) {
	query := `SELECT ` + linkColumns + ` FROM links WHERE user_id = ?`
	if activeOnly {
		query += ` AND active = 1`
	}
	query += ` ORDER BY position ASC, created_at ASC, id ASC`

	rows, err := db.conn.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing links for %s: %w", userID, err)
	}
	defer rows.Close()

	links := make([]model.Link, 0)
	for rows.Next() {
		var l model.Link
		if err := rows.Scan(
			&l.ID, &l.UserID, &l.Title, &l.URL, &l.Order,
			&l.Active, &l.Clicks, &l.CreatedAt, &l.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("sqlite: scanning link row: %w", err)
		}
		links = append(links, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating links: %w", err)
	}
	return links, nil
}

// UpdateLink writes title and url of an existing link.
func (db *DB) UpdateLink(ctx context.Context, link *model.Link) error {
	link.UpdatedAt = time.Now().UTC()

	result, err := db.conn.ExecContext(ctx,
		`UPDATE links SET title = ?, url = ?, updated_at = ? WHERE id = ? AND user_id = ?`,
		link.Title, link.URL, link.UpdatedAt, link.ID, link.UserID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating link %s: %w", link.ID, err)
	}
	return requireRow(result, "link", link.ID)
}

// SetLinkActive flips the public visibility of a link.
func (db *DB) SetLinkActive(ctx context.Context, userID, id string, active bool) error {
	result, err := db.conn.ExecContext(ctx,
		`UPDATE links SET active = ?, updated_at = ? WHERE id = ? AND user_id = ?`,
		active, time.Now().UTC(), id, userID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: toggling link %s: %w", id, err)
	}
	return requireRow(result, "link", id)
}

// DeleteLink removes a link. Nothing is soft-deleted.
func (db *DB) DeleteLink(ctx context.Context, userID, id string) error {
	result, err := db.conn.ExecContext(ctx,
		`DELETE FROM links WHERE id = ? AND user_id = ?`, id, userID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: deleting link %s: %w", id, err)
	}
	return requireRow(result, "link", id)
}

// ReorderLinks rewrites positions to 0..n-1 in the order of ids.
func (db *DB) ReorderLinks(ctx context.Context, userID string, ids []string) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning reorder: %w", err)
	}
	defer rollback(tx)

	rows, err := tx.QueryContext(ctx, `SELECT id FROM links WHERE user_id = ?`, userID)
	if err != nil {
		return fmt.Errorf("sqlite: reading link ids: %w", err)
	}
	existing := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return fmt.Errorf("sqlite: scanning link id: %w", err)
		}
		existing[id] = true
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("sqlite: iterating link ids: %w", err)
	}

	if len(ids) != len(existing) {
		return apperror.ValidationFailed("ids", "reorder must list every link exactly once")
	}
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if !existing[id] || seen[id] {
			return apperror.ValidationFailed("ids", "reorder must list every link exactly once")
		}
		seen[id] = true
	}

	now := time.Now().UTC()
	for position, id := range ids {
		if _, err := tx.ExecContext(ctx,
			`UPDATE links SET position = ?, updated_at = ? WHERE id = ? AND user_id = ?`,
			position, now, id, userID,
		); err != nil {
			return fmt.Errorf("sqlite: moving link %s: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: committing reorder: %w", err)
	}
	return nil
}

// IncrementClicks counts one click-through on an active link.
// Inactive links are not publicly reachable and report not found.
func (db *DB) IncrementClicks(ctx context.Context, id string) (*model.Link, error) {
	l, err := scanLink(db.conn.QueryRowContext(ctx,
		`UPDATE links SET clicks = clicks + 1 WHERE id = ? AND active = 1
		 RETURNING `+linkColumns, id))
	if err == sql.ErrNoRows {
		return nil, apperror.NotFound("link", id)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: counting click on %s: %w", id, err)
	}
	return l, nil
}

// CountLinks returns how many links the owner has.
func (db *DB) CountLinks(ctx context.Context, userID string) (int, error) {
	var n int
	if err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM links WHERE user_id = ?`, userID,
	).Scan(&n); err != nil {
		return 0, fmt.Errorf("sqlite: counting links for %s: %w", userID, err)
	}
	return n, nil
}

func scanLink(row *sql.Row) (*model.Link, error) {
	var l model.Link
	if err := row.Scan(
		&l.ID, &l.UserID, &l.Title, &l.URL, &l.Order,
		&l.Active, &l.Clicks, &l.CreatedAt, &l.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &l, nil
}

// requireRow maps "zero rows affected" to NotFound.
func requireRow(result sql.Result, resource, id string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if n == 0 {
		return apperror.NotFound(resource, id)
	}
	return nil
}
