package dashboard

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/medora/medora/internal/domain/patient"
	"github.com/medora/medora/internal/domain/scheduling"
)

// Store answers the read-only aggregate queries behind the dashboard. Every
// method is scoped to the active patients owned by owner, and appointment
// queries only see active appointments.
type Store interface {
	CountPatients(ctx context.Context, owner uuid.UUID, createdSince *time.Time) (int64, error)
	CountAppointments(ctx context.Context, owner uuid.UUID, from, to *time.Time) (int64, error)
	GenderCounts(ctx context.Context, owner uuid.UUID) (map[string]int, error)
	BloodTypeCounts(ctx context.Context, owner uuid.UUID) (map[string]int, error)
	StatusCounts(ctx context.Context, owner uuid.UUID) (map[string]int, error)
	BirthDates(ctx context.Context, owner uuid.UUID) ([]time.Time, error)
	RegistrationTimes(ctx context.Context, owner uuid.UUID, since time.Time) ([]time.Time, error)
	RecentPatients(ctx context.Context, owner uuid.UUID, limit int) ([]*patient.Patient, error)
	// ScheduledBetween returns scheduled appointments in [from, to) ordered
	// by date. A limit of zero means no limit.
	ScheduledBetween(ctx context.Context, owner uuid.UUID, from, to time.Time, limit int) ([]*UpcomingAppointment, error)
	MissingInfo(ctx context.Context, owner uuid.UUID, limit int) ([]*patient.Patient, error)
}

type gormStore struct {
	db *gorm.DB
}

// NewGormStore builds a Store over a gorm handle.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) patients(ctx context.Context, owner uuid.UUID) *gorm.DB {
	return s.db.WithContext(ctx).
		Model(&patient.Patient{}).
		Where("user_id = ? AND is_active", owner)
}

func (s *gormStore) appointments(ctx context.Context, owner uuid.UUID) *gorm.DB {
	return s.db.WithContext(ctx).
		Model(&scheduling.Appointment{}).
		Joins("JOIN patients ON patients.id = appointments.patient_id").
		Where("patients.user_id = ? AND patients.is_active AND appointments.is_active", owner)
}

func (s *gormStore) CountPatients(ctx context.Context, owner uuid.UUID, createdSince *time.Time) (int64, error) {
	q := s.patients(ctx, owner)
	if createdSince != nil {
		q = q.Where("created_at >= ?", *createdSince)
	}
	var n int64
	if err := q.Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count patients: %w", err)
	}
	return n, nil
}

func (s *gormStore) CountAppointments(ctx context.Context, owner uuid.UUID, from, to *time.Time) (int64, error) {
	q := s.appointments(ctx, owner)
	if from != nil {
		q = q.Where("appointments.appointment_date >= ?", *from)
	}
	if to != nil {
		q = q.Where("appointments.appointment_date < ?", *to)
	}
	var n int64
	if err := q.Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count appointments: %w", err)
	}
	return n, nil
}

type groupRow struct {
	Key string
	N   int
}

func groupCounts(q *gorm.DB, column string) (map[string]int, error) {
	var rows []groupRow
	err := q.Select(column + " AS key, COUNT(*) AS n").
		Where(column + " IS NOT NULL").
		Group(column).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("group by %s: %w", column, err)
	}
	out := make(map[string]int, len(rows))
	for _, r := range rows {
		out[r.Key] = r.N
	}
	return out, nil
}

func (s *gormStore) GenderCounts(ctx context.Context, owner uuid.UUID) (map[string]int, error) {
	return groupCounts(s.patients(ctx, owner), "gender")
}

func (s *gormStore) BloodTypeCounts(ctx context.Context, owner uuid.UUID) (map[string]int, error) {
	return groupCounts(s.patients(ctx, owner), "blood_type")
}

func (s *gormStore) StatusCounts(ctx context.Context, owner uuid.UUID) (map[string]int, error) {
	return groupCounts(s.appointments(ctx, owner), "appointments.status")
}

func (s *gormStore) BirthDates(ctx context.Context, owner uuid.UUID) ([]time.Time, error) {
	var out []time.Time
	if err := s.patients(ctx, owner).Pluck("date_of_birth", &out).Error; err != nil {
		return nil, fmt.Errorf("birth dates: %w", err)
	}
	return out, nil
}

func (s *gormStore) RegistrationTimes(ctx context.Context, owner uuid.UUID, since time.Time) ([]time.Time, error) {
	var out []time.Time
	err := s.patients(ctx, owner).
		Where("created_at >= ?", since).
		Pluck("created_at", &out).Error
	if err != nil {
		return nil, fmt.Errorf("registration times: %w", err)
	}
	return out, nil
}

func (s *gormStore) RecentPatients(ctx context.Context, owner uuid.UUID, limit int) ([]*patient.Patient, error) {
	var out []*patient.Patient
	err := s.patients(ctx, owner).
		Order("created_at DESC").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("recent patients: %w", err)
	}
	return out, nil
}

func (s *gormStore) ScheduledBetween(ctx context.Context, owner uuid.UUID, from, to time.Time, limit int) ([]*UpcomingAppointment, error) {
	q := s.appointments(ctx, owner).
		Select("appointments.*, concat_ws(' ', patients.first_name, patients.last_name) AS patient_name").
		Where("appointments.status = ?", scheduling.StatusScheduled).
		Where("appointments.appointment_date >= ? AND appointments.appointment_date < ?", from, to).
		Order("appointments.appointment_date")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var out []*UpcomingAppointment
	if err := q.Scan(&out).Error; err != nil {
		return nil, fmt.Errorf("scheduled appointments: %w", err)
	}
	return out, nil
}

func (s *gormStore) MissingInfo(ctx context.Context, owner uuid.UUID, limit int) ([]*patient.Patient, error) {
	var out []*patient.Patient
	err := s.patients(ctx, owner).
		Where("(COALESCE(emergency_contact_name, '') = '' OR COALESCE(emergency_contact_phone, '') = '' OR COALESCE(allergies, '') = '')").
		Order("created_at").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("patients missing info: %w", err)
	}
	return out, nil
}
