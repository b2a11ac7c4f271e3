package registry

import "errors"

var (
	// ErrTeacherRequired is returned when a registration arrives without a
	// teacher_id and without an acting user to resolve one from.
	ErrTeacherRequired = errors.New("teacher_id is required for public registrations")

	// ErrTeacherNotFound is returned when the teacher_id or acting user does
	// not resolve to a teacher profile.
	ErrTeacherNotFound = errors.New("teacher profile not found")

	// ErrParentNotFound is returned on lookups of missing parent records.
	ErrParentNotFound = errors.New("parent not found")

	// ErrInvalidCredentials is returned on failed parent or teacher logins.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrWrongPassword is returned when a password change carries the wrong
	// current password.
	ErrWrongPassword = errors.New("current password is incorrect")

	// ErrStudentNotFound is returned on lookups of missing students.
	ErrStudentNotFound = errors.New("student not found")
)
