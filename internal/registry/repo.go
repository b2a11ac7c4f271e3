package registry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Repository persists registration data in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const parentColumns = `id, student_id, teacher_id, role, name, contact_number, email, address,
	username, password_hash, qr_code_data, avatar_url, must_change_credentials, created_at`

func scanParent(row interface{ Scan(...any) error }) (ParentGuardian, error) {
	var p ParentGuardian
	err := row.Scan(&p.ID, &p.StudentID, &p.TeacherID, &p.Role, &p.Name, &p.ContactNumber,
		&p.Email, &p.Address, &p.Username, &p.PasswordHash, &p.QRCodeData, &p.AvatarURL,
		&p.MustChangeCredentials, &p.CreatedAt)
	return p, err
}

// TeacherByID returns a teacher profile by primary key, nil when absent.
func (r *Repository) TeacherByID(ctx context.Context, id int64) (*Teacher, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, username, password_hash, name, section, gender, contact
		FROM teachers WHERE id = $1
	`, id)
	return scanTeacher(row)
}

// TeacherByUserID returns the teacher profile owned by a user account.
func (r *Repository) TeacherByUserID(ctx context.Context, userID int64) (*Teacher, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, username, password_hash, name, section, gender, contact
		FROM teachers WHERE user_id = $1
	`, userID)
	return scanTeacher(row)
}

// TeacherByUsername returns a teacher by login name.
func (r *Repository) TeacherByUsername(ctx context.Context, username string) (*Teacher, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, username, password_hash, name, section, gender, contact
		FROM teachers WHERE username = $1
	`, username)
	return scanTeacher(row)
}

func scanTeacher(row *sql.Row) (*Teacher, error) {
	var t Teacher
	if err := row.Scan(&t.ID, &t.UserID, &t.Username, &t.PasswordHash, &t.Name, &t.Section, &t.Gender, &t.Contact); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &t, nil
}

// ReplaceRegistration upserts the student by LRN, wipes its parent set, and
// inserts the new one, all in a single transaction. It reports whether the
// student row was newly created.
func (r *Repository) ReplaceRegistration(ctx context.Context, student Student, parents []ParentGuardian) (Student, []ParentGuardian, bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return Student{}, nil, false, err
	}
	defer tx.Rollback()

	var created bool
	// xmax = 0 distinguishes a fresh insert from a conflict update.
	row := tx.QueryRowContext(ctx, `
		INSERT INTO students (lrn, name, gender, grade_level, section, teacher_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (lrn) DO UPDATE SET
			name = EXCLUDED.name,
			gender = EXCLUDED.gender,
			grade_level = EXCLUDED.grade_level,
			section = EXCLUDED.section,
			teacher_id = EXCLUDED.teacher_id
		RETURNING id, (xmax = 0)
	`, student.LRN, student.Name, student.Gender, student.GradeLevel, student.Section, student.TeacherID)
	if err := row.Scan(&student.ID, &created); err != nil {
		return Student{}, nil, false, err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM parents_guardians WHERE student_id = $1`, student.ID); err != nil {
		return Student{}, nil, false, err
	}

	inserted := make([]ParentGuardian, 0, len(parents))
	for _, p := range parents {
		p.StudentID = student.ID
		p.TeacherID = student.TeacherID
		row := tx.QueryRowContext(ctx, `
			INSERT INTO parents_guardians
				(student_id, teacher_id, role, name, contact_number, email, address,
				 username, password_hash, qr_code_data, avatar_url, must_change_credentials)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
			RETURNING id, created_at
		`, p.StudentID, p.TeacherID, p.Role, p.Name, p.ContactNumber, p.Email, p.Address,
			p.Username, p.PasswordHash, p.QRCodeData, p.AvatarURL, p.MustChangeCredentials)
		if err := row.Scan(&p.ID, &p.CreatedAt); err != nil {
			return Student{}, nil, false, err
		}
		inserted = append(inserted, p)
	}

	if err := tx.Commit(); err != nil {
		return Student{}, nil, false, err
	}
	return student, inserted, created, nil
}

// StudentByLRN returns a student with its parent set.
func (r *Repository) StudentByLRN(ctx context.Context, lrn string) (*Student, []ParentGuardian, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, lrn, name, gender, grade_level, section, teacher_id
		FROM students WHERE lrn = $1
	`, lrn)
	var s Student
	if err := row.Scan(&s.ID, &s.LRN, &s.Name, &s.Gender, &s.GradeLevel, &s.Section, &s.TeacherID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, nil
		}
		return nil, nil, err
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT `+parentColumns+` FROM parents_guardians
		WHERE student_id = $1 ORDER BY id
	`, s.ID)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()
	var parents []ParentGuardian
	for rows.Next() {
		p, err := scanParent(rows)
		if err != nil {
			return nil, nil, err
		}
		parents = append(parents, p)
	}
	return &s, parents, rows.Err()
}

// StudentByName returns the most recently registered student with this
// display name, with its parent set. Guardian claims reference students by
// name only.
func (r *Repository) StudentByName(ctx context.Context, name string) (*Student, []ParentGuardian, error) {
	var lrn string
	err := r.db.QueryRowContext(ctx,
		`SELECT lrn FROM students WHERE name = $1 ORDER BY id DESC LIMIT 1`, name).Scan(&lrn)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}
	return r.StudentByLRN(ctx, lrn)
}

// ListStudents returns a teacher's students page plus the total count.
func (r *Repository) ListStudents(ctx context.Context, teacherID int64, limit, offset int) ([]Student, int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM students WHERE teacher_id = $1`, teacherID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, lrn, name, gender, grade_level, section, teacher_id
		FROM students WHERE teacher_id = $1
		ORDER BY name LIMIT $2 OFFSET $3
	`, teacherID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var res []Student
	for rows.Next() {
		var s Student
		if err := rows.Scan(&s.ID, &s.LRN, &s.Name, &s.Gender, &s.GradeLevel, &s.Section, &s.TeacherID); err != nil {
			return nil, 0, err
		}
		res = append(res, s)
	}
	return res, total, rows.Err()
}

// ListParents returns a teacher's parent records, optionally filtered by the
// student LRN, plus the total count.
func (r *Repository) ListParents(ctx context.Context, teacherID int64, lrn string, limit, offset int) ([]ParentGuardian, int, error) {
	where := `WHERE pg.teacher_id = $1`
	args := []any{teacherID}
	if lrn != "" {
		where += ` AND s.lrn = $2`
		args = append(args, lrn)
	}

	var total int
	countQuery := `SELECT COUNT(*) FROM parents_guardians pg JOIN students s ON s.id = pg.student_id ` + where
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`
		SELECT pg.id, pg.student_id, pg.teacher_id, pg.role, pg.name, pg.contact_number,
			pg.email, pg.address, pg.username, pg.password_hash, pg.qr_code_data,
			pg.avatar_url, pg.must_change_credentials, pg.created_at
		FROM parents_guardians pg JOIN students s ON s.id = pg.student_id
		%s ORDER BY pg.id LIMIT $%d OFFSET $%d
	`, where, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var res []ParentGuardian
	for rows.Next() {
		p, err := scanParent(rows)
		if err != nil {
			return nil, 0, err
		}
		res = append(res, p)
	}
	return res, total, rows.Err()
}

// ParentByID returns a parent record, nil when absent.
func (r *Repository) ParentByID(ctx context.Context, id int64) (*ParentGuardian, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+parentColumns+` FROM parents_guardians WHERE id = $1`, id)
	p, err := scanParent(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

// ParentByUsername returns a parent record by login name, nil when absent.
func (r *Repository) ParentByUsername(ctx context.Context, username string) (*ParentGuardian, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+parentColumns+` FROM parents_guardians WHERE username = $1`, username)
	p, err := scanParent(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

// UpdateParent applies a partial update and returns the fresh row.
func (r *Repository) UpdateParent(ctx context.Context, id int64, patch ParentPatch) (*ParentGuardian, error) {
	if patch.Empty() {
		return r.ParentByID(ctx, id)
	}

	set := []string{}
	args := []any{}
	add := func(col string, val any) {
		args = append(args, val)
		set = append(set, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	if patch.Name != nil {
		add("name", *patch.Name)
	}
	if patch.Username != nil {
		add("username", *patch.Username)
	}
	if patch.ContactNumber != nil {
		add("contact_number", *patch.ContactNumber)
	}
	if patch.Address != nil {
		add("address", *patch.Address)
	}
	if patch.Email != nil {
		add("email", *patch.Email)
	}
	if patch.AvatarURL != nil {
		add("avatar_url", *patch.AvatarURL)
	}
	if patch.PasswordHash != nil {
		add("password_hash", *patch.PasswordHash)
		add("must_change_credentials", false)
	}
	args = append(args, id)
	query := fmt.Sprintf(`UPDATE parents_guardians SET %s WHERE id = $%d RETURNING `+parentColumns,
		joinSet(set), len(args))
	row := r.db.QueryRowContext(ctx, query, args...)
	p, err := scanParent(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

func joinSet(parts []string) string {
	out := parts[0]
	for i := 1; i < len(parts); i++ {
		out += ", " + parts[i]
	}
	return out
}

// ParentsMissingCredentials returns rows with a blank username or password.
func (r *Repository) ParentsMissingCredentials(ctx context.Context) ([]ParentGuardian, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+parentColumns+` FROM parents_guardians
		WHERE username IS NULL OR btrim(username) = '' OR password_hash IS NULL OR btrim(password_hash) = ''
		ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []ParentGuardian
	for rows.Next() {
		p, err := scanParent(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, rows.Err()
}

// UsernameTaken reports whether another parent row already holds username.
func (r *Repository) UsernameTaken(ctx context.Context, username string, excludeID int64) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM parents_guardians WHERE username = $1 AND id <> $2)
	`, username, excludeID).Scan(&exists)
	return exists, err
}

// SetParentCredentials assigns backfilled credentials to a parent row.
func (r *Repository) SetParentCredentials(ctx context.Context, id int64, username, passwordHash string, mustChange bool) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE parents_guardians
		SET username = $2, password_hash = $3, must_change_credentials = $4
		WHERE id = $1
	`, id, username, passwordHash, mustChange)
	return err
}

// InsertNotification writes a parent notification.
func (r *Repository) InsertNotification(ctx context.Context, n Notification) (Notification, error) {
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO notifications (parent_id, title, body, read, created_at)
		VALUES ($1,$2,$3,$4,$5)
		RETURNING id
	`, n.ParentID, n.Title, n.Body, n.Read, n.CreatedAt)
	if err := row.Scan(&n.ID); err != nil {
		return Notification{}, err
	}
	return n, nil
}

// ListNotifications returns a parent's notifications, newest first.
func (r *Repository) ListNotifications(ctx context.Context, parentID int64, limit int) ([]Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, parent_id, title, body, read, created_at
		FROM notifications WHERE parent_id = $1
		ORDER BY created_at DESC LIMIT $2
	`, parentID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Notification
	for rows.Next() {
		var n Notification
		if err := rows.Scan(&n.ID, &n.ParentID, &n.Title, &n.Body, &n.Read, &n.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, n)
	}
	return res, rows.Err()
}

// InsertEvent writes a school event.
func (r *Repository) InsertEvent(ctx context.Context, evt Event) (Event, error) {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO events (parent_id, student_lrn, title, description, scheduled_at)
		VALUES (NULLIF($1, 0), $2, $3, $4, $5)
		RETURNING id, created_at
	`, evt.ParentID, evt.StudentLRN, evt.Title, evt.Description, evt.ScheduledAt)
	if err := row.Scan(&evt.ID, &evt.CreatedAt); err != nil {
		return Event{}, err
	}
	return evt, nil
}

// ListEvents returns events soonest first, optionally scoped to a parent or a
// student. Scoped filters also match school-wide events.
func (r *Repository) ListEvents(ctx context.Context, parentID int64, lrn string, limit, offset int) ([]Event, error) {
	where := []string{}
	args := []any{}
	if parentID != 0 {
		args = append(args, parentID)
		where = append(where, fmt.Sprintf("(parent_id IS NULL OR parent_id = $%d)", len(args)))
	}
	if lrn != "" {
		args = append(args, lrn)
		where = append(where, fmt.Sprintf("(student_lrn = '' OR student_lrn = $%d)", len(args)))
	}

	query := `SELECT id, COALESCE(parent_id, 0), student_lrn, title, description, scheduled_at, created_at FROM events`
	for i, cond := range where {
		if i == 0 {
			query += " WHERE " + cond
		} else {
			query += " AND " + cond
		}
	}
	query += fmt.Sprintf(" ORDER BY scheduled_at LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Event
	for rows.Next() {
		var evt Event
		if err := rows.Scan(&evt.ID, &evt.ParentID, &evt.StudentLRN, &evt.Title, &evt.Description, &evt.ScheduledAt, &evt.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, evt)
	}
	return res, rows.Err()
}

// InsertSchedule writes a class schedule slot.
func (r *Repository) InsertSchedule(ctx context.Context, sch Schedule) (Schedule, error) {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO schedules (student_id, subject, time_slot, room)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`, sch.StudentID, sch.Subject, sch.Time, sch.Room)
	if err := row.Scan(&sch.ID, &sch.CreatedAt); err != nil {
		return Schedule{}, err
	}
	return sch, nil
}

// ListSchedules returns schedule slots, optionally for one student.
func (r *Repository) ListSchedules(ctx context.Context, studentID int64, limit, offset int) ([]Schedule, error) {
	query := `SELECT id, student_id, subject, time_slot, room, created_at FROM schedules`
	args := []any{}
	if studentID != 0 {
		query += ` WHERE student_id = $1`
		args = append(args, studentID)
	}
	query += fmt.Sprintf(" ORDER BY id LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Schedule
	for rows.Next() {
		var sch Schedule
		if err := rows.Scan(&sch.ID, &sch.StudentID, &sch.Subject, &sch.Time, &sch.Room, &sch.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, sch)
	}
	return res, rows.Err()
}

// SaveRefreshToken stores a refresh token for rotation checks.
func (r *Repository) SaveRefreshToken(ctx context.Context, userID int64, token string, expiresAt time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO refresh_tokens (user_id, token, expires_at)
		VALUES ($1, $2, $3)
	`, userID, token, expiresAt)
	return err
}

// RefreshTokenLive reports whether a refresh token is stored, unrevoked, and
// unexpired.
func (r *Repository) RefreshTokenLive(ctx context.Context, token string) (bool, error) {
	var live bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM refresh_tokens
			WHERE token = $1 AND NOT revoked AND expires_at > NOW()
		)
	`, token).Scan(&live)
	return live, err
}

// RevokeRefreshToken marks a token revoked.
func (r *Repository) RevokeRefreshToken(ctx context.Context, token string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE refresh_tokens SET revoked = TRUE WHERE token = $1`, token)
	return err
}
