package scheduling

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medora/medora/internal/platform/apierr"
	"github.com/medora/medora/internal/platform/db"
)

type appointmentRepoPG struct {
	pool *pgxpool.Pool
}

func NewAppointmentRepo(pool *pgxpool.Pool) AppointmentRepository {
	return &appointmentRepoPG{pool: pool}
}

func (r *appointmentRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const apptCols = `a.id, a.patient_id, a.doctor_name, a.appointment_date, a.appointment_type,
	a.symptoms, a.diagnosis, a.prescription, a.notes, a.status, a.is_active, p.user_id,
	a.created_at, a.updated_at`

const apptFrom = ` FROM appointments a JOIN patients p ON p.id = a.patient_id`

func (r *appointmentRepoPG) Create(ctx context.Context, a *Appointment) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO appointments (
			id, patient_id, doctor_name, appointment_date, appointment_type,
			symptoms, diagnosis, prescription, notes, status, is_active
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at, updated_at`,
		a.ID, a.PatientID, a.DoctorName, a.AppointmentDate, a.AppointmentType,
		a.Symptoms, a.Diagnosis, a.Prescription, a.Notes, a.Status, a.IsActive,
	).Scan(&a.CreatedAt, &a.UpdatedAt)
	if db.ValueTooLong(err) {
		return apierr.Validation(db.ValueTooLongMessage)
	}
	if err != nil {
		return fmt.Errorf("insert appointment: %w", err)
	}
	return nil
}

func (r *appointmentRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return r.scanAppt(r.conn(ctx).QueryRow(ctx, `SELECT `+apptCols+apptFrom+` WHERE a.id = $1 AND a.is_active`, id))
}

func (r *appointmentRepoPG) Update(ctx context.Context, a *Appointment) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE appointments SET
			doctor_name = $2, appointment_date = $3, appointment_type = $4,
			symptoms = $5, diagnosis = $6, prescription = $7, notes = $8, status = $9,
			updated_at = NOW()
		WHERE id = $1 AND is_active
		RETURNING updated_at`,
		a.ID, a.DoctorName, a.AppointmentDate, a.AppointmentType,
		a.Symptoms, a.Diagnosis, a.Prescription, a.Notes, a.Status,
	).Scan(&a.UpdatedAt)
	if db.IsNotFound(err) {
		return apierr.NotFound("Appointment not found")
	}
	if db.ValueTooLong(err) {
		return apierr.Validation(db.ValueTooLongMessage)
	}
	if err != nil {
		return fmt.Errorf("update appointment: %w", err)
	}
	return nil
}

func (r *appointmentRepoPG) SoftDelete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE appointments SET is_active = FALSE, updated_at = NOW() WHERE id = $1 AND is_active`, id)
	if err != nil {
		return fmt.Errorf("delete appointment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apierr.NotFound("Appointment not found")
	}
	return nil
}

func (r *appointmentRepoPG) List(ctx context.Context, f Filter, limit, offset int) ([]*Appointment, int, error) {
	where := ` WHERE a.is_active`
	var args []interface{}
	idx := 1

	if f.OwnerID != nil {
		where += fmt.Sprintf(` AND p.user_id = $%d`, idx)
		args = append(args, *f.OwnerID)
		idx++
	}
	if f.PatientName != "" {
		where += fmt.Sprintf(` AND (p.first_name ILIKE $%d OR p.last_name ILIKE $%d)`, idx, idx)
		args = append(args, "%"+escapeLike(f.PatientName)+"%")
		idx++
	}
	if f.From != nil {
		where += fmt.Sprintf(` AND a.appointment_date >= $%d`, idx)
		args = append(args, *f.From)
		idx++
	}
	if f.To != nil {
		where += fmt.Sprintf(` AND a.appointment_date < $%d`, idx)
		args = append(args, f.To.AddDate(0, 0, 1))
		idx++
	}
	if f.Status != "" {
		where += fmt.Sprintf(` AND a.status = $%d`, idx)
		args = append(args, f.Status)
		idx++
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*)`+apptFrom+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count appointments: %w", err)
	}

	query := `SELECT ` + apptCols + apptFrom + where +
		fmt.Sprintf(` ORDER BY a.appointment_date DESC LIMIT $%d OFFSET $%d`, idx, idx+1)
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list appointments: %w", err)
	}
	defer rows.Close()

	items, err := r.collect(rows)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (r *appointmentRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Appointment, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+apptCols+apptFrom+` WHERE a.patient_id = $1 AND a.is_active ORDER BY a.appointment_date DESC`, patientID)
	if err != nil {
		return nil, fmt.Errorf("list patient appointments: %w", err)
	}
	defer rows.Close()
	return r.collect(rows)
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func (r *appointmentRepoPG) collect(rows pgx.Rows) ([]*Appointment, error) {
	var items []*Appointment
	for rows.Next() {
		a, err := r.scanAppt(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	return items, rows.Err()
}

func (r *appointmentRepoPG) scanAppt(row pgx.Row) (*Appointment, error) {
	var a Appointment
	err := row.Scan(&a.ID, &a.PatientID, &a.DoctorName, &a.AppointmentDate, &a.AppointmentType,
		&a.Symptoms, &a.Diagnosis, &a.Prescription, &a.Notes, &a.Status, &a.IsActive, &a.OwnerID,
		&a.CreatedAt, &a.UpdatedAt)
	if db.IsNotFound(err) {
		return nil, apierr.NotFound("Appointment not found")
	}
	if err != nil {
		return nil, fmt.Errorf("scan appointment: %w", err)
	}
	return &a, nil
}
