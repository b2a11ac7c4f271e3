package guardian

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeStore struct {
	guardians map[int64]*Guardian
	approvals []Approval
	nextID    int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{guardians: map[int64]*Guardian{}}
}

func (f *fakeStore) id() int64 {
	f.nextID++
	return f.nextID
}

func (f *fakeStore) Insert(_ context.Context, g Guardian) (Guardian, error) {
	g.ID = f.id()
	if g.Status == "" {
		g.Status = StatusPending
	}
	g.CreatedAt = time.Now()
	f.guardians[g.ID] = &g
	return g, nil
}

func (f *fakeStore) ByID(_ context.Context, id int64) (*Guardian, error) {
	g, ok := f.guardians[id]
	if !ok {
		return nil, nil
	}
	out := *g
	return &out, nil
}

func (f *fakeStore) List(_ context.Context, teacherID int64, status string, limit, offset int) ([]Guardian, int, error) {
	var res []Guardian
	for _, g := range f.guardians {
		if g.TeacherID != teacherID {
			continue
		}
		if status != "" && g.Status != status {
			continue
		}
		res = append(res, *g)
	}
	return res, len(res), nil
}

func (f *fakeStore) RecordApproval(_ context.Context, guardianID int64, status string, actedBy *int64, reason, source string) (Approval, error) {
	g, ok := f.guardians[guardianID]
	if !ok {
		return Approval{}, ErrNotFound
	}
	g.Status = status
	a := Approval{
		ID:         f.id(),
		GuardianID: guardianID,
		Status:     status,
		ActedBy:    actedBy,
		Reason:     reason,
		Source:     source,
		CreatedAt:  time.Now(),
	}
	f.approvals = append(f.approvals, a)
	return a, nil
}

func (f *fakeStore) BulkSetStatus(_ context.Context, ids []int64, status string, actedBy *int64, source string) (int, error) {
	updated := 0
	for _, id := range ids {
		if _, err := f.RecordApproval(context.Background(), id, status, actedBy, "", source); err != nil {
			continue
		}
		updated++
	}
	return updated, nil
}

func (f *fakeStore) BulkReset(_ context.Context, ids []int64) (int, error) {
	updated := 0
	for _, id := range ids {
		g, ok := f.guardians[id]
		if !ok {
			continue
		}
		g.Status = StatusPending
		updated++
	}
	return updated, nil
}

func (f *fakeStore) Approvals(_ context.Context, guardianID int64) ([]Approval, error) {
	var res []Approval
	for i := len(f.approvals) - 1; i >= 0; i-- {
		if f.approvals[i].GuardianID == guardianID {
			res = append(res, f.approvals[i])
		}
	}
	return res, nil
}

func seedGuardian(t *testing.T, svc *Service) Guardian {
	t.Helper()
	g, err := svc.Create(context.Background(), Guardian{
		Name:        "Uncle Bob",
		StudentName: "Jane Doe",
		TeacherID:   1,
		Status:      StatusAllowed, // must be ignored
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	return g
}

func TestCreateForcesPending(t *testing.T) {
	svc := NewService(newFakeStore())
	g := seedGuardian(t, svc)
	if g.Status != StatusPending {
		t.Errorf("status = %q, want %q regardless of submitted status", g.Status, StatusPending)
	}
}

func TestCreateValidation(t *testing.T) {
	svc := NewService(newFakeStore())
	cases := []Guardian{
		{StudentName: "Jane Doe", TeacherID: 1},
		{Name: "Uncle Bob", TeacherID: 1},
		{Name: "Uncle Bob", StudentName: "Jane Doe"},
	}
	for i, g := range cases {
		if _, err := svc.Create(context.Background(), g); err == nil {
			t.Errorf("case %d: expected validation error", i)
		}
	}
}

func TestRecordApprovalWritesAudit(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store)
	g := seedGuardian(t, svc)

	actor := int64(10)
	a, err := svc.RecordApproval(context.Background(), g.ID, StatusAllowed, &actor, "id checked", "admin")
	if err != nil {
		t.Fatalf("approval failed: %v", err)
	}
	if a.Status != StatusAllowed || a.GuardianID != g.ID {
		t.Errorf("audit row = %+v", a)
	}
	if a.ActedBy == nil || *a.ActedBy != 10 {
		t.Errorf("acted_by = %v, want 10", a.ActedBy)
	}

	got, err := svc.Get(context.Background(), g.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.Status != StatusAllowed {
		t.Errorf("guardian status = %q, want %q", got.Status, StatusAllowed)
	}
	if len(store.approvals) != 1 {
		t.Errorf("audit rows = %d, want 1", len(store.approvals))
	}
}

func TestRecordApprovalRejectsBadStatus(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store)
	g := seedGuardian(t, svc)

	for _, status := range []string{StatusPending, "approved", ""} {
		if _, err := svc.RecordApproval(context.Background(), g.ID, status, nil, "", "admin"); !errors.Is(err, ErrBadStatus) {
			t.Errorf("status %q: err = %v, want ErrBadStatus", status, err)
		}
	}
	if len(store.approvals) != 0 {
		t.Errorf("audit rows = %d, want 0 after rejected actions", len(store.approvals))
	}
}

func TestRecordApprovalMissingGuardian(t *testing.T) {
	svc := NewService(newFakeStore())
	if _, err := svc.RecordApproval(context.Background(), 99, StatusAllowed, nil, "", "admin"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestBulkSetStatusAuditsEachGuardian(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store)
	g1 := seedGuardian(t, svc)
	g2 := seedGuardian(t, svc)

	actor := int64(10)
	updated, err := svc.BulkSetStatus(context.Background(), []int64{g1.ID, g2.ID}, StatusDeclined, &actor)
	if err != nil {
		t.Fatalf("bulk failed: %v", err)
	}
	if updated != 2 {
		t.Errorf("updated = %d, want 2", updated)
	}
	if len(store.approvals) != 2 {
		t.Fatalf("audit rows = %d, want one per guardian", len(store.approvals))
	}
	for _, a := range store.approvals {
		if a.Source != "bulk-admin" {
			t.Errorf("source = %q, want %q", a.Source, "bulk-admin")
		}
		if a.Status != StatusDeclined {
			t.Errorf("status = %q, want %q", a.Status, StatusDeclined)
		}
	}

	if _, err := svc.BulkSetStatus(context.Background(), []int64{g1.ID}, StatusPending, &actor); !errors.Is(err, ErrBadStatus) {
		t.Errorf("err = %v, want ErrBadStatus for bulk pending", err)
	}
}

func TestBulkResetSkipsAudit(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store)
	g := seedGuardian(t, svc)

	if _, err := svc.RecordApproval(context.Background(), g.ID, StatusAllowed, nil, "", "admin"); err != nil {
		t.Fatalf("approval failed: %v", err)
	}

	updated, err := svc.BulkReset(context.Background(), []int64{g.ID})
	if err != nil {
		t.Fatalf("reset failed: %v", err)
	}
	if updated != 1 {
		t.Errorf("updated = %d, want 1", updated)
	}
	got, _ := svc.Get(context.Background(), g.ID)
	if got.Status != StatusPending {
		t.Errorf("status = %q, want %q", got.Status, StatusPending)
	}
	if len(store.approvals) != 1 {
		t.Errorf("audit rows = %d, want reset to leave the trail untouched", len(store.approvals))
	}
}

func TestTrailNewestFirst(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store)
	g := seedGuardian(t, svc)

	for _, status := range []string{StatusAllowed, StatusDeclined, StatusAllowed} {
		if _, err := svc.RecordApproval(context.Background(), g.ID, status, nil, "", "admin"); err != nil {
			t.Fatalf("approval failed: %v", err)
		}
	}

	trail, err := svc.Trail(context.Background(), g.ID)
	if err != nil {
		t.Fatalf("trail failed: %v", err)
	}
	if len(trail) != 3 {
		t.Fatalf("trail length = %d, want 3", len(trail))
	}
	if trail[0].Status != StatusAllowed || trail[1].Status != StatusDeclined {
		t.Errorf("trail not newest first: %v, %v", trail[0].Status, trail[1].Status)
	}

	if _, err := svc.Trail(context.Background(), 99); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound for missing guardian", err)
	}
}

func TestListStatusFilter(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store)
	g1 := seedGuardian(t, svc)
	seedGuardian(t, svc)

	if _, err := svc.RecordApproval(context.Background(), g1.ID, StatusAllowed, nil, "", "admin"); err != nil {
		t.Fatalf("approval failed: %v", err)
	}

	pending, count, err := svc.List(context.Background(), 1, StatusPending, 12, 0)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if count != 1 || len(pending) != 1 {
		t.Errorf("pending count = %d (%d rows), want 1", count, len(pending))
	}

	if _, _, err := svc.List(context.Background(), 1, "bogus", 12, 0); !errors.Is(err, ErrBadStatus) {
		t.Errorf("err = %v, want ErrBadStatus", err)
	}
}
