//go:build integration

package integration

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medora/medora/internal/domain/scheduling"
	"github.com/medora/medora/internal/platform/apierr"
	"github.com/medora/medora/internal/platform/auth"
)

func at(day, hour int) time.Time {
	return time.Date(2024, time.May, day, hour, 0, 0, 0, time.UTC)
}

func createTestAppointment(t *testing.T, ctx context.Context, pool *pgxpool.Pool, patientID uuid.UUID, when time.Time, status string) *scheduling.Appointment {
	t.Helper()
	a := &scheduling.Appointment{
		PatientID:       patientID,
		DoctorName:      "Dr. House",
		AppointmentDate: when,
		Status:          status,
		IsActive:        true,
	}
	if err := scheduling.NewAppointmentRepo(pool).Create(ctx, a); err != nil {
		t.Fatalf("create test appointment: %v", err)
	}
	return a
}

func TestAppointmentRepo_CRUD(t *testing.T) {
	ctx := context.Background()
	pool := newSchemaPool(t, ctx)
	repo := scheduling.NewAppointmentRepo(pool)
	owner := createTestUser(t, ctx, pool, "owner", auth.RoleDoctor)
	p := createTestPatient(t, ctx, pool, owner.ID, "MED20240101AAAAAA", "Jane", "Smith")

	a := createTestAppointment(t, ctx, pool, p.ID, at(20, 14), scheduling.StatusScheduled)

	got, err := repo.GetByID(ctx, a.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.OwnerID != owner.ID {
		t.Errorf("owner not loaded: %s", got.OwnerID)
	}
	if !got.AppointmentDate.Equal(at(20, 14)) {
		t.Errorf("date round-trip: %s", got.AppointmentDate)
	}

	got.Status = "completed"
	got.Diagnosis = ptrStr("Flu")
	if err := repo.Update(ctx, got); err != nil {
		t.Fatalf("Update: %v", err)
	}
	reread, _ := repo.GetByID(ctx, a.ID)
	if reread.Status != "completed" || reread.Diagnosis == nil || *reread.Diagnosis != "Flu" {
		t.Errorf("update not persisted: %+v", reread)
	}

	if err := repo.SoftDelete(ctx, a.ID); err != nil {
		t.Fatalf("SoftDelete: %v", err)
	}
	if _, err := repo.GetByID(ctx, a.ID); !apierr.Is(err, apierr.KindNotFound) {
		t.Errorf("deleted appointment should be hidden, got %v", err)
	}
	if err := repo.Update(ctx, got); !apierr.Is(err, apierr.KindNotFound) {
		t.Errorf("updating a deleted appointment should be not found, got %v", err)
	}
	if err := repo.SoftDelete(ctx, a.ID); !apierr.Is(err, apierr.KindNotFound) {
		t.Errorf("second delete should be not found, got %v", err)
	}
}

func TestAppointmentRepo_List(t *testing.T) {
	ctx := context.Background()
	pool := newSchemaPool(t, ctx)
	repo := scheduling.NewAppointmentRepo(pool)

	alice := createTestUser(t, ctx, pool, "alice", auth.RoleDoctor)
	bob := createTestUser(t, ctx, pool, "bob", auth.RoleDoctor)
	jane := createTestPatient(t, ctx, pool, alice.ID, "MED20240101AAAAAA", "Jane", "Smith")
	john := createTestPatient(t, ctx, pool, alice.ID, "MED20240101BBBBBB", "John", "Doe")
	other := createTestPatient(t, ctx, pool, bob.ID, "MED20240101CCCCCC", "Janet", "Moss")

	early := createTestAppointment(t, ctx, pool, jane.ID, at(20, 9), scheduling.StatusScheduled)
	late := createTestAppointment(t, ctx, pool, jane.ID, at(20, 23), "completed")
	next := createTestAppointment(t, ctx, pool, john.ID, at(21, 10), scheduling.StatusScheduled)
	createTestAppointment(t, ctx, pool, other.ID, at(20, 12), scheduling.StatusScheduled)
	gone := createTestAppointment(t, ctx, pool, john.ID, at(20, 11), scheduling.StatusScheduled)
	if err := repo.SoftDelete(ctx, gone.ID); err != nil {
		t.Fatal(err)
	}

	ids := func(items []*scheduling.Appointment) []uuid.UUID {
		out := make([]uuid.UUID, len(items))
		for i, a := range items {
			out[i] = a.ID
		}
		return out
	}

	t.Run("OwnerScopeNewestFirst", func(t *testing.T) {
		items, total, err := repo.List(ctx, scheduling.Filter{OwnerID: &alice.ID}, 10, 0)
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		if total != 3 {
			t.Fatalf("expected 3, got %d", total)
		}
		want := []uuid.UUID{next.ID, late.ID, early.ID}
		for i, id := range ids(items) {
			if id != want[i] {
				t.Errorf("position %d: got %s, want %s", i, id, want[i])
			}
		}
	})

	t.Run("InclusiveDay", func(t *testing.T) {
		day := at(20, 0)
		_, total, err := repo.List(ctx, scheduling.Filter{OwnerID: &alice.ID, From: &day, To: &day}, 10, 0)
		if err != nil || total != 2 {
			t.Errorf("expected both appointments on the 20th, got %d (%v)", total, err)
		}
	})

	t.Run("PatientNameAndStatus", func(t *testing.T) {
		items, total, err := repo.List(ctx, scheduling.Filter{PatientName: "jan"}, 10, 0)
		if err != nil || total != 3 {
			t.Errorf("expected Jane and Janet matches, got %d (%v)", total, err)
		}
		for _, a := range items {
			if a.PatientID == john.ID {
				t.Error("John should not match")
			}
		}

		items, total, err = repo.List(ctx, scheduling.Filter{OwnerID: &alice.ID, Status: "completed"}, 10, 0)
		if err != nil || total != 1 || items[0].ID != late.ID {
			t.Errorf("status filter: total=%d err=%v", total, err)
		}
	})

	t.Run("Paging", func(t *testing.T) {
		items, total, err := repo.List(ctx, scheduling.Filter{}, 2, 2)
		if err != nil {
			t.Fatal(err)
		}
		if total != 4 || len(items) != 2 {
			t.Errorf("expected page of 2 from 4, got %d/%d", len(items), total)
		}
	})

	t.Run("ListByPatient", func(t *testing.T) {
		items, err := repo.ListByPatient(ctx, jane.ID)
		if err != nil {
			t.Fatalf("ListByPatient: %v", err)
		}
		got := ids(items)
		if len(got) != 2 || got[0] != late.ID || got[1] != early.ID {
			t.Errorf("unexpected order %v", got)
		}
	})
}
