package timetracking

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// itemColumns is the column list scanned by scanItem
const itemColumns = `id, item_key, project_id, parent_id, title, time_tracking, version`

// Repository persists items and their timer sub-state.
// The sub-state lives in a JSON column; total_time_spent and active_count are
// denormalized copies kept in the same UPDATE so sweeps and reports can filter in SQL.
// Every write is conditional on the version read by the caller.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new item repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repository", "items").Logger(),
	}
}

// Upsert registers an item or refreshes its key, project, parent and title.
// A new item starts with item.TimeTracking at version 1; an existing item keeps
// its stored timer sub-state and version. The stored item is returned.
func (r *Repository) Upsert(ctx context.Context, item *Item) (*Item, error) {
	raw, err := json.Marshal(item.TimeTracking)
	if err != nil {
		return nil, fmt.Errorf("failed to encode time tracking for %s: %w", item.ID, err)
	}

	now := time.Now().Unix()
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO items (id, item_key, project_id, parent_id, title, time_tracking,
		                   total_time_spent, active_count, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			item_key = excluded.item_key,
			project_id = excluded.project_id,
			parent_id = excluded.parent_id,
			title = excluded.title,
			updated_at = excluded.updated_at
	`, item.ID, item.Key, item.ProjectID, nullable(item.ParentID), item.Title, string(raw),
		item.TimeTracking.TotalTimeSpent, len(item.TimeTracking.ActiveTimeEntries), now, now)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert item %s: %w", item.ID, err)
	}
	return r.Get(ctx, item.ID)
}

// Get fetches an item by id
func (r *Repository) Get(ctx context.Context, itemID string) (*Item, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM items WHERE id = ?`, itemID)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrItemNotFound, itemID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get item %s: %w", itemID, err)
	}
	return item, nil
}

// Save writes item.TimeTracking if the stored version still equals item.Version.
// On success item.Version is advanced; when another writer got there first
// ErrVersionConflict is returned and nothing is written.
func (r *Repository) Save(ctx context.Context, item *Item) error {
	raw, err := json.Marshal(item.TimeTracking)
	if err != nil {
		return fmt.Errorf("failed to encode time tracking for %s: %w", item.ID, err)
	}

	result, err := r.db.ExecContext(ctx, `
		UPDATE items
		SET time_tracking = ?, total_time_spent = ?, active_count = ?,
		    version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?
	`, string(raw), item.TimeTracking.TotalTimeSpent, len(item.TimeTracking.ActiveTimeEntries),
		time.Now().Unix(), item.ID, item.Version)
	if err != nil {
		return fmt.Errorf("failed to save item %s: %w", item.ID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows for %s: %w", item.ID, err)
	}
	if affected == 0 {
		return ErrVersionConflict
	}

	item.Version++
	return nil
}

// ListWithActiveEntries returns every item holding at least one active entry
func (r *Repository) ListWithActiveEntries(ctx context.Context) ([]*Item, error) {
	return r.query(ctx, `SELECT `+itemColumns+` FROM items WHERE active_count > 0 ORDER BY id`)
}

// ListByProject returns every item of a project
func (r *Repository) ListByProject(ctx context.Context, projectID string) ([]*Item, error) {
	return r.query(ctx, `SELECT `+itemColumns+` FROM items WHERE project_id = ? ORDER BY id`, projectID)
}

// ListChildren returns the items whose parent pointer references parentID
func (r *Repository) ListChildren(ctx context.Context, parentID string) ([]*Item, error) {
	return r.query(ctx, `SELECT `+itemColumns+` FROM items WHERE parent_id = ? ORDER BY id`, parentID)
}

// ListAll returns every item; used by per-user reports
func (r *Repository) ListAll(ctx context.Context) ([]*Item, error) {
	return r.query(ctx, `SELECT `+itemColumns+` FROM items ORDER BY id`)
}

func (r *Repository) query(ctx context.Context, query string, args ...interface{}) ([]*Item, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query items: %w", err)
	}
	defer rows.Close()

	var items []*Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			r.log.Warn().Err(err).Msg("Failed to scan item row")
			continue
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating items: %w", err)
	}
	return items, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanItem(s scanner) (*Item, error) {
	var (
		item     Item
		parentID sql.NullString
		raw      string
	)
	if err := s.Scan(&item.ID, &item.Key, &item.ProjectID, &parentID, &item.Title, &raw, &item.Version); err != nil {
		return nil, err
	}
	if parentID.Valid {
		item.ParentID = &parentID.String
	}
	if err := json.Unmarshal([]byte(raw), &item.TimeTracking); err != nil {
		return nil, fmt.Errorf("failed to decode time tracking for %s: %w", item.ID, err)
	}
	return &item, nil
}

func nullable(s *string) interface{} {
	if s == nil {
		return nil
	}
	return *s
}
