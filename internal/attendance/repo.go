package attendance

import (
	"context"
	"database/sql"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Repository persists attendance data in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const recordColumns = `id, student_id, class_id, COALESCE(session_id, ''), attendance_type, status, marked_at`

func scanRecord(row interface{ Scan(...any) error }) (Record, error) {
	var rec Record
	err := row.Scan(&rec.ID, &rec.StudentID, &rec.ClassID, &rec.SessionID, &rec.Method, &rec.Status, &rec.MarkedAt)
	return rec, err
}

// InsertRecord writes a record. A second record for the same (student, session)
// pair is not written; the stored one is returned with created=false.
func (r *Repository) InsertRecord(ctx context.Context, rec Record) (Record, bool, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.MarkedAt.IsZero() {
		rec.MarkedAt = time.Now().UTC()
	}
	if rec.Status == "" {
		rec.Status = StatusPresent
	}
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO attendance_records (id, student_id, class_id, session_id, attendance_type, status, marked_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7)
		ON CONFLICT (student_id, session_id) WHERE session_id IS NOT NULL DO NOTHING
		RETURNING marked_at
	`, rec.ID, rec.StudentID, rec.ClassID, rec.SessionID, rec.Method, rec.Status, rec.MarkedAt)
	if err := row.Scan(&rec.MarkedAt); err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return Record{}, false, errors.Wrap(err, "insert attendance record")
		}
		existing, err := r.recordForSession(ctx, rec.StudentID, rec.SessionID)
		return existing, false, err
	}
	return rec, true, nil
}

func (r *Repository) recordForSession(ctx context.Context, studentID, sessionID string) (Record, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+recordColumns+`
		FROM attendance_records
		WHERE student_id = $1 AND session_id = $2
	`, studentID, sessionID)
	rec, err := scanRecord(row)
	return rec, errors.Wrap(err, "load existing attendance record")
}

// CountStatuses counts records per status for a class and/or a student.
func (r *Repository) CountStatuses(ctx context.Context, classID, studentID string) (map[Status]int, error) {
	where, args := filterClauses(classID, studentID)
	rows, err := r.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM attendance_records`+where+` GROUP BY status`, args...)
	if err != nil {
		return nil, errors.Wrap(err, "count attendance")
	}
	defer rows.Close()
	counts := make(map[Status]int)
	for rows.Next() {
		var status Status
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

// ListRecords returns records newest first.
func (r *Repository) ListRecords(ctx context.Context, f Filter) ([]Record, error) {
	if f.Limit <= 0 {
		f.Limit = 50
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	where, args := filterClauses(f.ClassID, f.StudentID)
	query := `SELECT ` + recordColumns + ` FROM attendance_records` + where +
		` ORDER BY marked_at DESC LIMIT $` + strconv.Itoa(len(args)+1) + ` OFFSET $` + strconv.Itoa(len(args)+2)
	args = append(args, f.Limit, f.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "list attendance")
	}
	defer rows.Close()
	var res []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, rec)
	}
	return res, rows.Err()
}

func filterClauses(classID, studentID string) (string, []any) {
	var clauses []string
	var args []any
	if classID != "" {
		args = append(args, classID)
		clauses = append(clauses, "class_id = $"+strconv.Itoa(len(args)))
	}
	if studentID != "" {
		args = append(args, studentID)
		clauses = append(clauses, "student_id = $"+strconv.Itoa(len(args)))
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}
