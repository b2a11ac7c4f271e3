package attendance

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"schoolregistry/internal/guardian"
	"schoolregistry/internal/registry"
)

var (
	// ErrBadPayload is returned when the scanned QR data is not a valid
	// identification payload.
	ErrBadPayload = errors.New("invalid qr payload")

	// ErrNotAuthorized is returned when the scanned person is unknown or not
	// allowed to pick up the student. The scan is logged either way.
	ErrNotAuthorized = errors.New("person not authorized")
)

// Event is one recorded gate scan.
type Event struct {
	ID          string    `json:"id"`
	StudentLRN  string    `json:"student_lrn"`
	StudentName string    `json:"student_name"`
	Role        string    `json:"role"`
	Name        string    `json:"name"`
	ScannedAt   time.Time `json:"scanned_at"`
	CreatedAt   time.Time `json:"created_at"`
}

// UnauthorizedPerson is a log entry for a rejected scan.
type UnauthorizedPerson struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	StudentName  string    `json:"student_name"`
	GuardianName string    `json:"guardian_name,omitempty"`
	Relation     string    `json:"relation,omitempty"`
	Contact      string    `json:"contact,omitempty"`
	CreatedAt    time.Time `json:"timestamp"`
}

// Store is the persistence surface the service needs.
type Store interface {
	RecentScan(ctx context.Context, lrn, role, name string, window time.Duration) (*Event, error)
	InsertScan(ctx context.Context, evt Event) (Event, error)
	ListScans(ctx context.Context, lrn string, limit, offset int) ([]Event, error)
	MatchParent(ctx context.Context, lrn, role, name string) (bool, error)
	GuardianStatus(ctx context.Context, name, studentName string) (string, bool, error)
	InsertUnauthorized(ctx context.Context, p UnauthorizedPerson) error
	ListUnauthorized(ctx context.Context, limit int) ([]UnauthorizedPerson, error)
}

// Service verifies scanned QR payloads and records attendance events with
// deduplication.
type Service struct {
	store       Store
	dedupWindow time.Duration
}

// NewService creates a service backed by a store.
func NewService(store Store, dedupWindow time.Duration) *Service {
	if dedupWindow <= 0 {
		dedupWindow = 5 * time.Minute
	}
	return &Service{store: store, dedupWindow: dedupWindow}
}

// Scan verifies a raw QR payload and records an attendance event. A repeated
// scan inside the dedup window returns the earlier event instead of a new
// row. Unknown or declined persons are logged and rejected.
func (s *Service) Scan(ctx context.Context, qrData string) (Event, error) {
	var payload registry.QRPayload
	if err := json.Unmarshal([]byte(qrData), &payload); err != nil {
		return Event{}, ErrBadPayload
	}
	if payload.LRN == "" || payload.Name == "" {
		return Event{}, ErrBadPayload
	}

	ok, err := s.authorize(ctx, payload)
	if err != nil {
		return Event{}, err
	}
	if !ok {
		_ = s.store.InsertUnauthorized(ctx, UnauthorizedPerson{
			Name:        payload.Name,
			StudentName: payload.Student,
			Relation:    payload.Role,
		})
		return Event{}, ErrNotAuthorized
	}

	if recent, err := s.store.RecentScan(ctx, payload.LRN, payload.Role, payload.Name, s.dedupWindow); err != nil {
		return Event{}, err
	} else if recent != nil {
		return *recent, nil
	}

	evt := Event{
		StudentLRN:  payload.LRN,
		StudentName: payload.Student,
		Role:        payload.Role,
		Name:        payload.Name,
		ScannedAt:   time.Now().UTC(),
	}
	return s.store.InsertScan(ctx, evt)
}

// List returns attendance events, optionally filtered by student LRN.
func (s *Service) List(ctx context.Context, lrn string, limit, offset int) ([]Event, error) {
	return s.store.ListScans(ctx, lrn, limit, offset)
}

// Unauthorized returns logged rejected scans.
func (s *Service) Unauthorized(ctx context.Context, limit int) ([]UnauthorizedPerson, error) {
	return s.store.ListUnauthorized(ctx, limit)
}

func (s *Service) authorize(ctx context.Context, payload registry.QRPayload) (bool, error) {
	matched, err := s.store.MatchParent(ctx, payload.LRN, payload.Role, payload.Name)
	if err != nil {
		return false, err
	}
	if matched {
		return true, nil
	}
	status, found, err := s.store.GuardianStatus(ctx, payload.Name, payload.Student)
	if err != nil {
		return false, err
	}
	return found && status == guardian.StatusAllowed, nil
}
