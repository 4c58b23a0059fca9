package attendance

import (
	"context"

	"github.com/pkg/errors"

	"classattend/internal/facematch"
)

// UpsertProfile creates or updates a dashboard profile.
func (r *Repository) UpsertProfile(ctx context.Context, userID, fullName, role string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO profiles (user_id, full_name, role)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE SET
			full_name = COALESCE(NULLIF(EXCLUDED.full_name, ''), profiles.full_name),
			role = EXCLUDED.role,
			updated_at = NOW()
	`, userID, fullName, role)
	return errors.Wrap(err, "upsert profile")
}

// SetProfilePicture stores the public URL of an uploaded picture.
func (r *Repository) SetProfilePicture(ctx context.Context, userID, url string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE profiles SET profile_picture_url = $2, updated_at = NOW()
		WHERE user_id = $1
	`, userID, url)
	if err != nil {
		return errors.Wrap(err, "set profile picture")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.Errorf("profile %s not found", userID)
	}
	return nil
}

// FaceCandidates lists students that have a profile picture.
func (r *Repository) FaceCandidates(ctx context.Context) ([]facematch.Candidate, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT user_id, full_name, profile_picture_url
		FROM profiles
		WHERE role = 'student' AND profile_picture_url IS NOT NULL
		ORDER BY user_id
	`)
	if err != nil {
		return nil, errors.Wrap(err, "list face candidates")
	}
	defer rows.Close()
	var out []facematch.Candidate
	for rows.Next() {
		var c facematch.Candidate
		if err := rows.Scan(&c.UserID, &c.FullName, &c.PictureURL); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
