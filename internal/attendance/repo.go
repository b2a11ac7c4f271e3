package attendance

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Repository persists attendance scans in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// RecentScan returns a scan for the same person within the window, if any.
func (r *Repository) RecentScan(ctx context.Context, lrn, role, name string, window time.Duration) (*Event, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, student_lrn, student_name, scanned_role, scanned_name, scanned_at, created_at
		FROM attendance_events
		WHERE student_lrn = $1 AND scanned_role = $2 AND scanned_name = $3
			AND scanned_at >= NOW() - ($4 * interval '1 second')
		ORDER BY scanned_at DESC
		LIMIT 1
	`, lrn, role, name, window.Seconds())
	var evt Event
	if err := row.Scan(&evt.ID, &evt.StudentLRN, &evt.StudentName, &evt.Role, &evt.Name, &evt.ScannedAt, &evt.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &evt, nil
}

// InsertScan writes a new attendance event.
func (r *Repository) InsertScan(ctx context.Context, evt Event) (Event, error) {
	if evt.ID == "" {
		evt.ID = uuid.NewString()
	}
	if evt.ScannedAt.IsZero() {
		evt.ScannedAt = time.Now().UTC()
	}
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO attendance_events (id, student_lrn, student_name, scanned_role, scanned_name, scanned_at)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING created_at
	`, evt.ID, evt.StudentLRN, evt.StudentName, evt.Role, evt.Name, evt.ScannedAt)
	if err := row.Scan(&evt.CreatedAt); err != nil {
		return Event{}, err
	}
	return evt, nil
}

// ListScans returns attendance events, newest first, optionally filtered by
// student LRN.
func (r *Repository) ListScans(ctx context.Context, lrn string, limit, offset int) ([]Event, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	query := `
		SELECT id, student_lrn, student_name, scanned_role, scanned_name, scanned_at, created_at
		FROM attendance_events`
	args := []any{}
	if lrn != "" {
		query += ` WHERE student_lrn = $1`
		args = append(args, lrn)
	}
	query += ` ORDER BY scanned_at DESC LIMIT $` + itoa(len(args)+1) + ` OFFSET $` + itoa(len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Event
	for rows.Next() {
		var evt Event
		if err := rows.Scan(&evt.ID, &evt.StudentLRN, &evt.StudentName, &evt.Role, &evt.Name, &evt.ScannedAt, &evt.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, evt)
	}
	return res, rows.Err()
}

// MatchParent reports whether a parent record exists with this student LRN,
// role, and name.
func (r *Repository) MatchParent(ctx context.Context, lrn, role, name string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM parents_guardians pg
			JOIN students s ON s.id = pg.student_id
			WHERE s.lrn = $1 AND pg.role = $2 AND pg.name = $3
		)
	`, lrn, role, name).Scan(&exists)
	return exists, err
}

// GuardianStatus returns the approval status of a guardian claim matching the
// scanned name and student.
func (r *Repository) GuardianStatus(ctx context.Context, name, studentName string) (string, bool, error) {
	var status string
	err := r.db.QueryRowContext(ctx, `
		SELECT status FROM guardians
		WHERE name = $1 AND student_name = $2
		ORDER BY created_at DESC LIMIT 1
	`, name, studentName).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return status, true, nil
}

// InsertUnauthorized logs a rejected scan.
func (r *Repository) InsertUnauthorized(ctx context.Context, p UnauthorizedPerson) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO unauthorized_persons (name, student_name, guardian_name, relation, contact)
		VALUES ($1,$2,$3,$4,$5)
	`, p.Name, p.StudentName, p.GuardianName, p.Relation, p.Contact)
	return err
}

// ListUnauthorized returns logged rejected scans, newest first.
func (r *Repository) ListUnauthorized(ctx context.Context, limit int) ([]UnauthorizedPerson, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, student_name, guardian_name, relation, contact, created_at
		FROM unauthorized_persons ORDER BY created_at DESC LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []UnauthorizedPerson
	for rows.Next() {
		var p UnauthorizedPerson
		if err := rows.Scan(&p.ID, &p.Name, &p.StudentName, &p.GuardianName, &p.Relation, &p.Contact, &p.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, rows.Err()
}

func itoa(i int) string { return strconv.Itoa(i) }
