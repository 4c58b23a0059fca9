package activity

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	pkgerrors "github.com/pkg/errors"
)

// DefaultMaxMarks is used when a teacher leaves max marks unset.
const DefaultMaxMarks = 100

var ErrTitleRequired = errors.New("title required")

// Activity is an assignment a teacher posts to the dashboard.
type Activity struct {
	ID          string     `json:"id"`
	TeacherID   string     `json:"teacher_id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	MaxMarks    int        `json:"max_marks"`
	CreatedAt   time.Time  `json:"created_at"`
}

// Normalize fills defaults and validates a new activity.
func (a *Activity) Normalize() error {
	a.Title = strings.TrimSpace(a.Title)
	if a.Title == "" {
		return ErrTitleRequired
	}
	if a.MaxMarks <= 0 {
		a.MaxMarks = DefaultMaxMarks
	}
	if a.DueDate != nil {
		d := a.DueDate.UTC()
		a.DueDate = &d
	}
	return nil
}

// Repository stores activities in Postgres.
type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a validated activity.
func (r *Repository) Create(ctx context.Context, a Activity) (Activity, error) {
	if err := a.Normalize(); err != nil {
		return Activity{}, err
	}
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO activities (id, teacher_id, title, description, due_date, max_marks)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`, a.ID, a.TeacherID, a.Title, a.Description, a.DueDate, a.MaxMarks)
	if err := row.Scan(&a.CreatedAt); err != nil {
		return Activity{}, pkgerrors.Wrap(err, "insert activity")
	}
	return a, nil
}

// List returns the newest activities first.
func (r *Repository) List(ctx context.Context, limit int) ([]Activity, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, teacher_id, title, description, due_date, max_marks, created_at
		FROM activities
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "list activities")
	}
	defer rows.Close()

	var out []Activity
	for rows.Next() {
		var a Activity
		if err := rows.Scan(&a.ID, &a.TeacherID, &a.Title, &a.Description, &a.DueDate, &a.MaxMarks, &a.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
