package guardian

import (
	"errors"
	"time"
)

// Guardian statuses. Pending is the default unactioned state; approval
// actions only ever move a guardian to allowed or declined.
const (
	StatusPending  = "pending"
	StatusAllowed  = "allowed"
	StatusDeclined = "declined"
)

var (
	// ErrNotFound is returned on lookups of missing guardians.
	ErrNotFound = errors.New("guardian not found")

	// ErrBadStatus is returned when a status outside the allowed set is
	// submitted.
	ErrBadStatus = errors.New("status must be allowed or declined")
)

// Guardian is a person claiming guardianship over a student, pending teacher
// approval.
type Guardian struct {
	ID           int64     `json:"id"`
	TeacherID    int64     `json:"teacher_id"`
	Name         string    `json:"name"`
	Age          int       `json:"age"`
	Address      string    `json:"address"`
	Relationship string    `json:"relationship"`
	Contact      string    `json:"contact"`
	StudentName  string    `json:"student_name"`
	PhotoURL     string    `json:"photo_url,omitempty"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
}

// Approval is one immutable audit record of a status change. ActedBy is nil
// for automated actions. Rows are only ever appended, never updated.
type Approval struct {
	ID         int64     `json:"id"`
	GuardianID int64     `json:"guardian_id"`
	Status     string    `json:"status"`
	ActedBy    *int64    `json:"acted_by"`
	Reason     string    `json:"reason,omitempty"`
	Source     string    `json:"source,omitempty"`
	CreatedAt  time.Time `json:"timestamp"`
}
