package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/georemind/internal/reminder"
)

// Save inserts r, or updates every field of the reminder with the same id.
// An update keeps the reminder's original position in List order.
func (s *Store) Save(ctx context.Context, r reminder.Reminder) error {
	if err := r.Validate(); err != nil {
		return fmt.Errorf("save reminder: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO reminders (id, title, description, owner_id, latitude, longitude, completed)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			description = excluded.description,
			owner_id = excluded.owner_id,
			latitude = excluded.latitude,
			longitude = excluded.longitude,
			completed = excluded.completed
	`,
		r.ID,
		r.Title,
		r.Description,
		r.OwnerID,
		r.Latitude,
		r.Longitude,
		r.Completed,
	)
	if err != nil {
		return fmt.Errorf("save reminder %s: %w", r.ID, err)
	}

	s.publishLocked(ctx)
	return nil
}

// Get returns the reminder with the given id, or ErrNotFound.
func (s *Store) Get(ctx context.Context, id string) (reminder.Reminder, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, title, description, owner_id, latitude, longitude, completed
		FROM reminders
		WHERE id = ?
	`, id)

	r, err := scanReminder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return reminder.Reminder{}, fmt.Errorf("get reminder %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return reminder.Reminder{}, fmt.Errorf("get reminder %s: %w", id, err)
	}
	return r, nil
}

// List returns every reminder in insertion order.
//
// Returns an empty slice (not nil) when the collection is empty.
func (s *Store) List(ctx context.Context) ([]reminder.Reminder, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, description, owner_id, latitude, longitude, completed
		FROM reminders
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query reminders: %w", err)
	}
	defer rows.Close()

	reminders := []reminder.Reminder{}
	for rows.Next() {
		r, err := scanReminder(rows)
		if err != nil {
			return nil, err
		}
		reminders = append(reminders, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reminders: %w", err)
	}
	return reminders, nil
}

// Complete marks a reminder completed. Completing a completed reminder is
// not an error.
func (s *Store) Complete(ctx context.Context, id string) error {
	return s.setCompleted(ctx, id, true)
}

// Activate marks a reminder active again.
func (s *Store) Activate(ctx context.Context, id string) error {
	return s.setCompleted(ctx, id, false)
}

func (s *Store) setCompleted(ctx context.Context, id string, completed bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `UPDATE reminders SET completed = ? WHERE id = ?`, completed, id)
	if err != nil {
		return fmt.Errorf("update reminder %s: %w", id, err)
	}
	if err := requireAffected(res, id); err != nil {
		return err
	}

	s.publishLocked(ctx)
	return nil
}

// Delete removes one reminder.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM reminders WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete reminder %s: %w", id, err)
	}
	if err := requireAffected(res, id); err != nil {
		return err
	}

	s.publishLocked(ctx)
	return nil
}

// ClearCompleted removes every completed reminder and returns how many were
// removed.
func (s *Store) ClearCompleted(ctx context.Context) (int, error) {
	return s.deleteWhere(ctx, `DELETE FROM reminders WHERE completed = 1`)
}

// DeleteAll empties the collection and returns how many reminders were
// removed.
func (s *Store) DeleteAll(ctx context.Context) (int, error) {
	return s.deleteWhere(ctx, `DELETE FROM reminders`)
}

func (s *Store) deleteWhere(ctx context.Context, query string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("delete reminders: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete reminders: %w", err)
	}

	s.publishLocked(ctx)
	return int(n), nil
}

// Stats summarises the collection.
func (s *Store) Stats(ctx context.Context) (reminder.Stats, error) {
	reminders, err := s.List(ctx)
	if err != nil {
		return reminder.Stats{}, fmt.Errorf("stats: %w", err)
	}
	return reminder.ComputeStats(reminders), nil
}

func requireAffected(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reminder %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("reminder %s: %w", id, ErrNotFound)
	}
	return nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanReminder(row rowScanner) (reminder.Reminder, error) {
	var r reminder.Reminder
	err := row.Scan(
		&r.ID,
		&r.Title,
		&r.Description,
		&r.OwnerID,
		&r.Latitude,
		&r.Longitude,
		&r.Completed,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return r, err
		}
		return r, fmt.Errorf("scan reminder: %w", err)
	}
	return r, nil
}
