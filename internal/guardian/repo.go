package guardian

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
)

// Repository persists guardians and their approval trail in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const guardianColumns = `id, teacher_id, name, age, address, relationship, contact,
	student_name, photo_url, status, created_at`

func scanGuardian(row interface{ Scan(...any) error }) (Guardian, error) {
	var g Guardian
	err := row.Scan(&g.ID, &g.TeacherID, &g.Name, &g.Age, &g.Address, &g.Relationship,
		&g.Contact, &g.StudentName, &g.PhotoURL, &g.Status, &g.CreatedAt)
	return g, err
}

// Insert creates a guardian in pending state.
func (r *Repository) Insert(ctx context.Context, g Guardian) (Guardian, error) {
	if g.Status == "" {
		g.Status = StatusPending
	}
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO guardians (teacher_id, name, age, address, relationship, contact, student_name, photo_url, status)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		RETURNING id, created_at
	`, g.TeacherID, g.Name, g.Age, g.Address, g.Relationship, g.Contact, g.StudentName, g.PhotoURL, g.Status)
	if err := row.Scan(&g.ID, &g.CreatedAt); err != nil {
		return Guardian{}, err
	}
	return g, nil
}

// ByID returns a guardian, nil when absent.
func (r *Repository) ByID(ctx context.Context, id int64) (*Guardian, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+guardianColumns+` FROM guardians WHERE id = $1`, id)
	g, err := scanGuardian(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &g, nil
}

// List returns a teacher's guardians, newest first, optionally filtered by
// status.
func (r *Repository) List(ctx context.Context, teacherID int64, status string, limit, offset int) ([]Guardian, int, error) {
	where := `WHERE teacher_id = $1`
	args := []any{teacherID}
	if status != "" {
		where += ` AND status = $2`
		args = append(args, status)
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM guardians `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, limit, offset)
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+guardianColumns+` FROM guardians `+where+`
		ORDER BY created_at DESC LIMIT $`+itoa(len(args)-1)+` OFFSET $`+itoa(len(args)),
		args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var res []Guardian
	for rows.Next() {
		g, err := scanGuardian(rows)
		if err != nil {
			return nil, 0, err
		}
		res = append(res, g)
	}
	return res, total, rows.Err()
}

// RecordApproval sets the guardian's status and appends one audit row, both
// in the same transaction so the trail can never diverge from the status.
func (r *Repository) RecordApproval(ctx context.Context, guardianID int64, status string, actedBy *int64, reason, source string) (Approval, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return Approval{}, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `UPDATE guardians SET status = $2 WHERE id = $1`, guardianID, status)
	if err != nil {
		return Approval{}, err
	}
	if n, err := res.RowsAffected(); err != nil {
		return Approval{}, err
	} else if n == 0 {
		return Approval{}, ErrNotFound
	}

	a := Approval{GuardianID: guardianID, Status: status, ActedBy: actedBy, Reason: reason, Source: source}
	row := tx.QueryRowContext(ctx, `
		INSERT INTO guardian_approvals (guardian_id, status, acted_by, reason, source)
		VALUES ($1,$2,$3,$4,$5)
		RETURNING id, created_at
	`, a.GuardianID, a.Status, a.ActedBy, a.Reason, a.Source)
	if err := row.Scan(&a.ID, &a.CreatedAt); err != nil {
		return Approval{}, err
	}

	if err := tx.Commit(); err != nil {
		return Approval{}, err
	}
	return a, nil
}

// BulkSetStatus updates every matching guardian and appends one audit row per
// affected guardian, all in one transaction.
func (r *Repository) BulkSetStatus(ctx context.Context, ids []int64, status string, actedBy *int64, source string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	updated := 0
	for _, id := range ids {
		res, err := tx.ExecContext(ctx, `UPDATE guardians SET status = $2 WHERE id = $1`, id, status)
		if err != nil {
			return 0, err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, err
		}
		if n == 0 {
			continue
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO guardian_approvals (guardian_id, status, acted_by, reason, source)
			VALUES ($1,$2,$3,'',$4)
		`, id, status, actedBy, source); err != nil {
			return 0, err
		}
		updated++
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return updated, nil
}

// BulkReset moves guardians back to pending. Pending is the unactioned state,
// so no audit rows are written.
func (r *Repository) BulkReset(ctx context.Context, ids []int64) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	updated := 0
	for _, id := range ids {
		res, err := r.db.ExecContext(ctx, `UPDATE guardians SET status = $2 WHERE id = $1`, id, StatusPending)
		if err != nil {
			return updated, err
		}
		if n, _ := res.RowsAffected(); n > 0 {
			updated++
		}
	}
	return updated, nil
}

// Approvals returns a guardian's audit trail, newest first.
func (r *Repository) Approvals(ctx context.Context, guardianID int64) ([]Approval, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, guardian_id, status, acted_by, reason, source, created_at
		FROM guardian_approvals WHERE guardian_id = $1
		ORDER BY created_at DESC
	`, guardianID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Approval
	for rows.Next() {
		var a Approval
		if err := rows.Scan(&a.ID, &a.GuardianID, &a.Status, &a.ActedBy, &a.Reason, &a.Source, &a.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, a)
	}
	return res, rows.Err()
}

func itoa(i int) string { return strconv.Itoa(i) }
