package schedule

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Repository stores timetable entries in Postgres.
type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a validated entry.
func (r *Repository) Create(ctx context.Context, e Entry) (Entry, error) {
	if err := e.Normalize(); err != nil {
		return Entry{}, err
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO schedule_entries (id, subject, room, teacher, starts_at, duration_minutes, free)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, e.ID, e.Subject, e.Room, e.Teacher, e.StartsAt, e.DurationMinutes, e.Free)
	if err != nil {
		return Entry{}, errors.Wrap(err, "insert schedule entry")
	}
	return e, nil
}

// Day lists the entries starting within the UTC day containing day, earliest first.
func (r *Repository) Day(ctx context.Context, day time.Time) ([]Entry, error) {
	start := day.UTC().Truncate(24 * time.Hour)
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, subject, room, teacher, starts_at, duration_minutes, free
		FROM schedule_entries
		WHERE starts_at >= $1 AND starts_at < $2
		ORDER BY starts_at
	`, start, start.Add(24*time.Hour))
	if err != nil {
		return nil, errors.Wrap(err, "list schedule")
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.Subject, &e.Room, &e.Teacher, &e.StartsAt, &e.DurationMinutes, &e.Free); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
