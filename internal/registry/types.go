package registry

import (
	"encoding/json"
	"time"
)

// Parent/guardian roles, in the fixed order they are created during
// registration.
const (
	RoleParent1  = "Parent1"
	RoleParent2  = "Parent2"
	RoleGuardian = "Guardian"
)

// Teacher is the profile that owns students and their parent records.
type Teacher struct {
	ID           int64  `json:"id"`
	UserID       int64  `json:"user_id"`
	Username     string `json:"username"`
	PasswordHash string `json:"-"`
	Name         string `json:"name"`
	Section      string `json:"section"`
	Gender       string `json:"gender,omitempty"`
	Contact      string `json:"contact,omitempty"`
}

// Student is keyed by its LRN (Learner Reference Number), the natural
// unique identifier. Re-registration with the same LRN overwrites the row.
type Student struct {
	ID         int64  `json:"id"`
	LRN        string `json:"lrn"`
	Name       string `json:"name"`
	Gender     string `json:"gender"`
	GradeLevel string `json:"grade_level"`
	Section    string `json:"section"`
	TeacherID  int64  `json:"teacher_id"`
}

// ParentGuardian is one parent/guardian contact for a student. The full set
// is replaced on every registration submission.
type ParentGuardian struct {
	ID                    int64     `json:"id"`
	StudentID             int64     `json:"student_id"`
	TeacherID             int64     `json:"teacher_id"`
	Role                  string    `json:"role"`
	Name                  string    `json:"name"`
	ContactNumber         string    `json:"contact_number"`
	Email                 string    `json:"email"`
	Address               string    `json:"address"`
	Username              string    `json:"username"`
	PasswordHash          string    `json:"-"`
	QRCodeData            string    `json:"qr_code_data"`
	AvatarURL             string    `json:"avatar_url,omitempty"`
	MustChangeCredentials bool      `json:"must_change_credentials"`
	CreatedAt             time.Time `json:"created_at"`
}

// Notification is a message for a parent, written by the worker when
// registrations and approvals happen.
type Notification struct {
	ID        int64     `json:"id"`
	ParentID  int64     `json:"parent_id"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
}

// QRPayload is the identification blob embedded in each parent record,
// scanned at the gate to mark attendance.
type QRPayload struct {
	LRN     string `json:"lrn"`
	Student string `json:"student"`
	Gender  string `json:"gender"`
	Role    string `json:"role"`
	Name    string `json:"name"`
}

// Encode serializes the payload with a fixed field order.
func (p QRPayload) Encode() string {
	b, _ := json.Marshal(p)
	return string(b)
}

// ParentInput is one parent/guardian sub-payload of a registration request.
// A sub-payload with an empty name is skipped.
type ParentInput struct {
	Name     string
	Contact  string
	Email    string
	Username string
	Password string
}

// RegistrationInput is the validated registration payload.
type RegistrationInput struct {
	LRN         string
	StudentName string
	Gender      string
	GradeLevel  string
	Section     string
	Address     string
	TeacherID   int64 // 0 when not supplied
	Parent1     ParentInput
	Parent2     ParentInput
	Guardian    ParentInput
}

// RegistrationResult is what a registration call produces: the upserted
// student, the freshly created parent set, and whether the student row was
// newly created.
type RegistrationResult struct {
	Student Student
	Parents []ParentGuardian
	Created bool
}

// ParentPatch carries the optional fields of a parent detail update. Nil
// means leave the column untouched.
type ParentPatch struct {
	Name          *string
	Username      *string
	ContactNumber *string
	Address       *string
	Email         *string
	AvatarURL     *string
	PasswordHash  *string
}

// Empty reports whether the patch changes nothing.
func (p ParentPatch) Empty() bool {
	return p.Name == nil && p.Username == nil && p.ContactNumber == nil &&
		p.Address == nil && p.Email == nil && p.AvatarURL == nil && p.PasswordHash == nil
}

// Event is a school announcement shown in the parent app. ParentID and
// StudentLRN scope it to one parent or one student; both zero means
// school-wide. ScheduledAt falls back to the creation time when not supplied.
type Event struct {
	ID          int64     `json:"id"`
	ParentID    int64     `json:"parent_id,omitempty"`
	StudentLRN  string    `json:"student_lrn,omitempty"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	ScheduledAt time.Time `json:"scheduled_at"`
	CreatedAt   time.Time `json:"created_at"`
}

// Schedule is one class schedule slot for a student.
type Schedule struct {
	ID        int64     `json:"id"`
	StudentID int64     `json:"student_id"`
	Subject   string    `json:"subject"`
	Time      string    `json:"time"`
	Room      string    `json:"room"`
	CreatedAt time.Time `json:"created_at"`
}
