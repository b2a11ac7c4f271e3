package guardian

import (
	"context"
	"errors"
)

// Store is the persistence surface the service needs.
type Store interface {
	Insert(ctx context.Context, g Guardian) (Guardian, error)
	ByID(ctx context.Context, id int64) (*Guardian, error)
	List(ctx context.Context, teacherID int64, status string, limit, offset int) ([]Guardian, int, error)
	RecordApproval(ctx context.Context, guardianID int64, status string, actedBy *int64, reason, source string) (Approval, error)
	BulkSetStatus(ctx context.Context, ids []int64, status string, actedBy *int64, source string) (int, error)
	BulkReset(ctx context.Context, ids []int64) (int, error)
	Approvals(ctx context.Context, guardianID int64) ([]Approval, error)
}

// Service manages guardian records and their approval state transitions.
type Service struct {
	store Store
}

// NewService creates a service backed by a store.
func NewService(store Store) *Service {
	return &Service{store: store}
}

// Create registers a new guardian claim in pending state.
func (s *Service) Create(ctx context.Context, g Guardian) (Guardian, error) {
	if g.Name == "" || g.StudentName == "" {
		return Guardian{}, errors.New("name and student_name required")
	}
	if g.TeacherID == 0 {
		return Guardian{}, errors.New("teacher_id required")
	}
	g.Status = StatusPending
	return s.store.Insert(ctx, g)
}

// Get returns a guardian by id.
func (s *Service) Get(ctx context.Context, id int64) (*Guardian, error) {
	g, err := s.store.ByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if g == nil {
		return nil, ErrNotFound
	}
	return g, nil
}

// List returns a teacher's guardians filtered by status.
func (s *Service) List(ctx context.Context, teacherID int64, status string, limit, offset int) ([]Guardian, int, error) {
	if status != "" && status != StatusPending && status != StatusAllowed && status != StatusDeclined {
		return nil, 0, ErrBadStatus
	}
	return s.store.List(ctx, teacherID, status, limit, offset)
}

// RecordApproval moves a guardian to allowed or declined and appends one
// audit row. The status write and the audit insert commit together.
func (s *Service) RecordApproval(ctx context.Context, guardianID int64, status string, actedBy *int64, reason, source string) (Approval, error) {
	if status != StatusAllowed && status != StatusDeclined {
		return Approval{}, ErrBadStatus
	}
	return s.store.RecordApproval(ctx, guardianID, status, actedBy, reason, source)
}

// BulkSetStatus applies one approval action to many guardians. Each affected
// guardian gets its own audit row, tagged with the bulk source.
func (s *Service) BulkSetStatus(ctx context.Context, ids []int64, status string, actedBy *int64) (int, error) {
	if status != StatusAllowed && status != StatusDeclined {
		return 0, ErrBadStatus
	}
	return s.store.BulkSetStatus(ctx, ids, status, actedBy, "bulk-admin")
}

// BulkReset returns guardians to the pending state without audit rows.
func (s *Service) BulkReset(ctx context.Context, ids []int64) (int, error) {
	return s.store.BulkReset(ctx, ids)
}

// Trail returns a guardian's approval history, newest first.
func (s *Service) Trail(ctx context.Context, guardianID int64) ([]Approval, error) {
	g, err := s.store.ByID(ctx, guardianID)
	if err != nil {
		return nil, err
	}
	if g == nil {
		return nil, ErrNotFound
	}
	return s.store.Approvals(ctx, guardianID)
}
