package store

import (
	"context"

	"github.com/pkg/errors"
)

const schema = `
CREATE TABLE IF NOT EXISTS profiles (
	user_id             TEXT PRIMARY KEY,
	full_name           TEXT NOT NULL DEFAULT '',
	role                TEXT NOT NULL,
	profile_picture_url TEXT,
	created_at          TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at          TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS attendance_records (
	id              TEXT PRIMARY KEY,
	student_id      TEXT NOT NULL,
	class_id        TEXT NOT NULL,
	session_id      TEXT,
	attendance_type TEXT NOT NULL,
	status          TEXT NOT NULL DEFAULT 'present',
	marked_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE UNIQUE INDEX IF NOT EXISTS uq_attendance_student_session
	ON attendance_records (student_id, session_id) WHERE session_id IS NOT NULL;
CREATE INDEX IF NOT EXISTS idx_attendance_class ON attendance_records (class_id);
CREATE INDEX IF NOT EXISTS idx_attendance_student ON attendance_records (student_id);

CREATE TABLE IF NOT EXISTS activities (
	id          TEXT PRIMARY KEY,
	teacher_id  TEXT NOT NULL,
	title       TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	due_date    TIMESTAMPTZ,
	max_marks   INTEGER NOT NULL DEFAULT 100,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS schedule_entries (
	id               TEXT PRIMARY KEY,
	subject          TEXT NOT NULL DEFAULT '',
	room             TEXT NOT NULL DEFAULT '',
	teacher          TEXT NOT NULL DEFAULT '',
	starts_at        TIMESTAMPTZ NOT NULL,
	duration_minutes INTEGER NOT NULL,
	free             BOOLEAN NOT NULL DEFAULT FALSE
);

CREATE INDEX IF NOT EXISTS idx_schedule_starts ON schedule_entries (starts_at);
`

// Migrate creates the tables the service needs if they are missing.
func (d *DB) Migrate(ctx context.Context) error {
	if d == nil || d.Client == nil {
		return errors.New("migrate: no database")
	}
	_, err := d.Client.ExecContext(ctx, schema)
	return errors.Wrap(err, "migrate")
}
