package registry

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Store is the persistence surface the service needs. *Repository satisfies
// it; tests use an in-memory fake.
type Store interface {
	TeacherByID(ctx context.Context, id int64) (*Teacher, error)
	TeacherByUserID(ctx context.Context, userID int64) (*Teacher, error)
	TeacherByUsername(ctx context.Context, username string) (*Teacher, error)
	ReplaceRegistration(ctx context.Context, student Student, parents []ParentGuardian) (Student, []ParentGuardian, bool, error)
	ParentByID(ctx context.Context, id int64) (*ParentGuardian, error)
	ParentByUsername(ctx context.Context, username string) (*ParentGuardian, error)
	UpdateParent(ctx context.Context, id int64, patch ParentPatch) (*ParentGuardian, error)
	ParentsMissingCredentials(ctx context.Context) ([]ParentGuardian, error)
	UsernameTaken(ctx context.Context, username string, excludeID int64) (bool, error)
	SetParentCredentials(ctx context.Context, id int64, username, passwordHash string, mustChange bool) error
	StudentByLRN(ctx context.Context, lrn string) (*Student, []ParentGuardian, error)
	ListStudents(ctx context.Context, teacherID int64, limit, offset int) ([]Student, int, error)
	ListParents(ctx context.Context, teacherID int64, lrn string, limit, offset int) ([]ParentGuardian, int, error)
	InsertEvent(ctx context.Context, evt Event) (Event, error)
	ListEvents(ctx context.Context, parentID int64, lrn string, limit, offset int) ([]Event, error)
	InsertSchedule(ctx context.Context, sch Schedule) (Schedule, error)
	ListSchedules(ctx context.Context, studentID int64, limit, offset int) ([]Schedule, error)
}

// Service coordinates the registration and credential workflows.
type Service struct {
	store Store
}

// NewService creates a service backed by a store.
func NewService(store Store) *Service {
	return &Service{store: store}
}

// Register upserts the student identified by in.LRN and replaces its parent
// set. actingUserID is 0 for public registrations, which then must carry a
// teacher_id. The write is transactional: either the upsert and the full
// parent replacement commit, or neither does.
func (s *Service) Register(ctx context.Context, in RegistrationInput, actingUserID int64) (RegistrationResult, error) {
	teacher, err := s.resolveTeacher(ctx, in.TeacherID, actingUserID)
	if err != nil {
		return RegistrationResult{}, err
	}

	student := Student{
		LRN:        in.LRN,
		Name:       in.StudentName,
		Gender:     in.Gender,
		GradeLevel: in.GradeLevel,
		Section:    in.Section,
		TeacherID:  teacher.ID,
	}

	parents, err := s.buildParents(student, in)
	if err != nil {
		return RegistrationResult{}, err
	}

	upserted, created, wasNew, err := s.store.ReplaceRegistration(ctx, student, parents)
	if err != nil {
		return RegistrationResult{}, fmt.Errorf("registration persist failed: %w", err)
	}
	return RegistrationResult{Student: upserted, Parents: created, Created: wasNew}, nil
}

// resolveTeacher prefers an explicit teacher_id over the acting user.
func (s *Service) resolveTeacher(ctx context.Context, teacherID, actingUserID int64) (*Teacher, error) {
	if teacherID != 0 {
		t, err := s.store.TeacherByID(ctx, teacherID)
		if err != nil {
			return nil, err
		}
		if t == nil {
			return nil, ErrTeacherNotFound
		}
		return t, nil
	}
	if actingUserID == 0 {
		return nil, ErrTeacherRequired
	}
	t, err := s.store.TeacherByUserID(ctx, actingUserID)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, ErrTeacherNotFound
	}
	return t, nil
}

// buildParents assembles the replacement parent set in the fixed role order,
// skipping sub-payloads without a name.
func (s *Service) buildParents(student Student, in RegistrationInput) ([]ParentGuardian, error) {
	inputs := []struct {
		role string
		in   ParentInput
	}{
		{RoleParent1, in.Parent1},
		{RoleParent2, in.Parent2},
		{RoleGuardian, in.Guardian},
	}

	var parents []ParentGuardian
	for _, entry := range inputs {
		if entry.in.Name == "" {
			continue
		}
		hash := ""
		if entry.in.Password != "" {
			h, err := bcrypt.GenerateFromPassword([]byte(entry.in.Password), bcrypt.DefaultCost)
			if err != nil {
				return nil, fmt.Errorf("hash password: %w", err)
			}
			hash = string(h)
		}
		qr := QRPayload{
			LRN:     student.LRN,
			Student: student.Name,
			Gender:  student.Gender,
			Role:    entry.role,
			Name:    entry.in.Name,
		}
		parents = append(parents, ParentGuardian{
			Role:          entry.role,
			Name:          entry.in.Name,
			ContactNumber: entry.in.Contact,
			Email:         entry.in.Email,
			Address:       in.Address,
			Username:      entry.in.Username,
			PasswordHash:  hash,
			QRCodeData:    qr.Encode(),
		})
	}
	return parents, nil
}

// TeacherForUser returns the teacher profile owned by a user account.
func (s *Service) TeacherForUser(ctx context.Context, userID int64) (*Teacher, error) {
	return s.resolveTeacher(ctx, 0, userID)
}

// Students returns one page of a teacher's students plus the total count.
func (s *Service) Students(ctx context.Context, teacherID int64, limit, offset int) ([]Student, int, error) {
	return s.store.ListStudents(ctx, teacherID, limit, offset)
}

// Parents returns one page of a teacher's parent records, optionally filtered
// by student LRN, plus the total count.
func (s *Service) Parents(ctx context.Context, teacherID int64, lrn string, limit, offset int) ([]ParentGuardian, int, error) {
	return s.store.ListParents(ctx, teacherID, lrn, limit, offset)
}

// StudentDetail returns a student with its parent set, scoped to a teacher.
func (s *Service) StudentDetail(ctx context.Context, lrn string, teacherID int64) (*Student, []ParentGuardian, error) {
	student, parents, err := s.store.StudentByLRN(ctx, lrn)
	if err != nil {
		return nil, nil, err
	}
	if student == nil || student.TeacherID != teacherID {
		return nil, nil, ErrStudentNotFound
	}
	return student, parents, nil
}

// Parent returns a parent record by id.
func (s *Service) Parent(ctx context.Context, id int64) (*ParentGuardian, error) {
	p, err := s.store.ParentByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, ErrParentNotFound
	}
	return p, nil
}

// Login authenticates a parent by username and password.
func (s *Service) Login(ctx context.Context, username, password string) (*ParentGuardian, error) {
	if username == "" || password == "" {
		return nil, ErrInvalidCredentials
	}
	p, err := s.store.ParentByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(p.PasswordHash), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}
	return p, nil
}

// TeacherLogin authenticates a teacher by username and password.
func (s *Service) TeacherLogin(ctx context.Context, username, password string) (*Teacher, error) {
	if username == "" || password == "" {
		return nil, ErrInvalidCredentials
	}
	t, err := s.store.TeacherByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(t.PasswordHash), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}
	return t, nil
}

// ParentUpdate is a partial update of a parent record. A password change must
// carry the matching current password.
type ParentUpdate struct {
	Name            *string
	Username        *string
	ContactNumber   *string
	Address         *string
	Email           *string
	AvatarURL       *string
	NewPassword     *string
	CurrentPassword string
}

// UpdateParent applies a partial update to a parent record.
func (s *Service) UpdateParent(ctx context.Context, id int64, upd ParentUpdate) (*ParentGuardian, error) {
	existing, err := s.store.ParentByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, ErrParentNotFound
	}

	patch := ParentPatch{
		Name:          upd.Name,
		Username:      upd.Username,
		ContactNumber: upd.ContactNumber,
		Address:       upd.Address,
		Email:         upd.Email,
		AvatarURL:     upd.AvatarURL,
	}
	if upd.NewPassword != nil {
		if bcrypt.CompareHashAndPassword([]byte(existing.PasswordHash), []byte(upd.CurrentPassword)) != nil {
			return nil, ErrWrongPassword
		}
		h, err := bcrypt.GenerateFromPassword([]byte(*upd.NewPassword), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
		hash := string(h)
		patch.PasswordHash = &hash
	}

	if patch.Empty() {
		return existing, nil
	}

	updated, err := s.store.UpdateParent(ctx, id, patch)
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, ErrParentNotFound
	}
	return updated, nil
}

// CreateEvent publishes a school event. A zero ScheduledAt falls back to the
// creation time.
func (s *Service) CreateEvent(ctx context.Context, evt Event) (Event, error) {
	if evt.Title == "" {
		return Event{}, errors.New("title required")
	}
	if evt.ScheduledAt.IsZero() {
		evt.ScheduledAt = time.Now().UTC()
	}
	return s.store.InsertEvent(ctx, evt)
}

// Events returns events soonest first, optionally scoped to a parent or a
// student LRN. Scoped queries still include school-wide events.
func (s *Service) Events(ctx context.Context, parentID int64, lrn string, limit, offset int) ([]Event, error) {
	return s.store.ListEvents(ctx, parentID, lrn, limit, offset)
}

// CreateSchedule adds a class schedule slot for a student.
func (s *Service) CreateSchedule(ctx context.Context, sch Schedule) (Schedule, error) {
	if sch.Subject == "" {
		return Schedule{}, errors.New("subject required")
	}
	if sch.StudentID == 0 {
		return Schedule{}, errors.New("student_id required")
	}
	return s.store.InsertSchedule(ctx, sch)
}

// Schedules returns schedule slots, optionally for one student.
func (s *Service) Schedules(ctx context.Context, studentID int64, limit, offset int) ([]Schedule, error) {
	return s.store.ListSchedules(ctx, studentID, limit, offset)
}

// BackfillCredentials assigns default credentials to parent rows missing a
// username or password. The username is derived from the last name token,
// suffixed with an increasing integer on collision; the default password is
// "{username}123", stored hashed with must_change_credentials set. Re-running
// is a no-op because the blank checks guard re-assignment.
func (s *Service) BackfillCredentials(ctx context.Context) (int, error) {
	rows, err := s.store.ParentsMissingCredentials(ctx)
	if err != nil {
		return 0, err
	}

	updated := 0
	for _, p := range rows {
		username := strings.TrimSpace(p.Username)
		if username == "" {
			candidate := usernameBase(p.Name)
			suffix := 1
			for {
				taken, err := s.store.UsernameTaken(ctx, candidate, p.ID)
				if err != nil {
					return updated, err
				}
				if !taken {
					break
				}
				candidate = fmt.Sprintf("%s%d", usernameBase(p.Name), suffix)
				suffix++
			}
			username = candidate
		}

		hash := strings.TrimSpace(p.PasswordHash)
		if hash == "" {
			h, err := bcrypt.GenerateFromPassword([]byte(username+"123"), bcrypt.DefaultCost)
			if err != nil {
				return updated, fmt.Errorf("hash password: %w", err)
			}
			hash = string(h)
		}

		if err := s.store.SetParentCredentials(ctx, p.ID, username, hash, true); err != nil {
			return updated, err
		}
		updated++
	}
	return updated, nil
}

// usernameBase derives the default username from the last whitespace token of
// the parent's name, lowercased, falling back to "parent".
func usernameBase(name string) string {
	parts := strings.Fields(name)
	if len(parts) == 0 {
		return "parent"
	}
	return strings.ToLower(parts[len(parts)-1])
}
