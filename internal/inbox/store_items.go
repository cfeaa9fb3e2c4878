package inbox

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

const itemColumns = `id, path, status, first_seen_at, last_size, last_size_at,
    attempt_count, job_id, archived_path, error_message, created_at, updated_at`

// Register inserts a newly discovered descriptor or returns the existing
// record for the path. Existing records are what make restart recovery work:
// a file whose record says submitted must not be submitted again.
func (s *Store) Register(ctx context.Context, path string, size int64) (*Item, error) {
	if existing, err := s.GetByPath(ctx, path); err != nil {
		return nil, err
	} else if existing != nil {
		return existing, nil
	}

	now := time.Now().UTC()
	timestamp := now.Format(time.RFC3339Nano)

	res, err := s.execWithRetry(
		ctx,
		`INSERT INTO inbox_items (
            path, status, first_seen_at, last_size, last_size_at,
            attempt_count, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		path,
		StatusDiscovered,
		timestamp,
		size,
		timestamp,
		0,
		timestamp,
		timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert item: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(ctx, id)
}

// GetByID fetches a tracked item by identifier. Missing items return nil.
func (s *Store) GetByID(ctx context.Context, id int64) (*Item, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM inbox_items WHERE id = ?`, id)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	return item, nil
}

// GetByPath fetches a tracked item by its watched-directory path.
func (s *Store) GetByPath(ctx context.Context, path string) (*Item, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM inbox_items WHERE path = ?`, path)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get item by path: %w", err)
	}
	return item, nil
}

// Update persists changes to an existing item.
func (s *Store) Update(ctx context.Context, item *Item) error {
	if item == nil {
		return errors.New("item is nil")
	}
	item.UpdatedAt = time.Now().UTC()
	if _, err := s.execWithRetry(
		ctx,
		`UPDATE inbox_items
         SET path = ?, status = ?, first_seen_at = ?, last_size = ?, last_size_at = ?,
             attempt_count = ?, job_id = ?, archived_path = ?, error_message = ?, updated_at = ?
         WHERE id = ?`,
		item.Path,
		item.Status,
		item.FirstSeenAt.UTC().Format(time.RFC3339Nano),
		item.LastSize,
		item.LastSizeAt.UTC().Format(time.RFC3339Nano),
		item.AttemptCount,
		nullableString(item.JobID),
		nullableString(item.ArchivedPath),
		nullableString(item.ErrorMessage),
		item.UpdatedAt.Format(time.RFC3339Nano),
		item.ID,
	); err != nil {
		return fmt.Errorf("update item: %w", err)
	}
	return nil
}

// Delete removes a tracking record.
func (s *Store) Delete(ctx context.Context, id int64) error {
	if _, err := s.execWithRetry(ctx, `DELETE FROM inbox_items WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete item: %w", err)
	}
	return nil
}

// List returns items filtered by the given statuses (all when empty),
// ordered oldest first by first_seen_at for deterministic, fair processing.
func (s *Store) List(ctx context.Context, statuses ...Status) ([]*Item, error) {
	query := `SELECT ` + itemColumns + ` FROM inbox_items`
	args := make([]any, 0, len(statuses))
	if len(statuses) > 0 {
		placeholders := make([]string, len(statuses))
		for i, status := range statuses {
			placeholders[i] = "?"
			args = append(args, status)
		}
		query += ` WHERE status IN (` + strings.Join(placeholders, ", ") + `)`
	}
	query += ` ORDER BY first_seen_at, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	defer rows.Close()

	var items []*Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// Counts returns the number of items per status.
func (s *Store) Counts(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM inbox_items GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count items: %w", err)
	}
	defer rows.Close()

	counts := make(map[Status]int, len(allStatuses))
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		counts[status] = count
	}
	return counts, rows.Err()
}

// PruneArchived removes terminal archived records and returns how many were
// deleted. Quarantined records are kept so operators can inspect and retry.
func (s *Store) PruneArchived(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM inbox_items WHERE status = ?`, StatusArchived)
	if err != nil {
		return 0, fmt.Errorf("prune archived: %w", err)
	}
	return res.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (*Item, error) {
	var (
		item         Item
		firstSeen    string
		lastSizeAt   string
		createdAt    string
		updatedAt    string
		jobID        sql.NullString
		archivedPath sql.NullString
		errorMessage sql.NullString
	)
	if err := row.Scan(
		&item.ID,
		&item.Path,
		&item.Status,
		&firstSeen,
		&item.LastSize,
		&lastSizeAt,
		&item.AttemptCount,
		&jobID,
		&archivedPath,
		&errorMessage,
		&createdAt,
		&updatedAt,
	); err != nil {
		return nil, err
	}

	var err error
	if item.FirstSeenAt, err = parseTimestamp(firstSeen); err != nil {
		return nil, err
	}
	if item.LastSizeAt, err = parseTimestamp(lastSizeAt); err != nil {
		return nil, err
	}
	if item.CreatedAt, err = parseTimestamp(createdAt); err != nil {
		return nil, err
	}
	if item.UpdatedAt, err = parseTimestamp(updatedAt); err != nil {
		return nil, err
	}
	item.JobID = jobID.String
	item.ArchivedPath = archivedPath.String
	item.ErrorMessage = errorMessage.String
	return &item, nil
}

func parseTimestamp(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	parsed, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", value, err)
	}
	return parsed, nil
}

func nullableString(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}
