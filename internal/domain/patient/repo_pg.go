package patient

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

type patientRepoPG struct {
	pool *pgxpool.Pool
}

func NewPatientRepo(pool *pgxpool.Pool) PatientRepository {
	return &patientRepoPG{pool: pool}
}

func (r *patientRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const patientColumns = `id, patient_id, user_id, first_name, last_name, date_of_birth, age, gender,
	phone, email, address, medical_history, current_medications, allergies,
	blood_type, height, weight,
	emergency_contact_name, emergency_contact_phone, emergency_contact_relationship,
	insurance_provider, insurance_number, is_active, created_at, updated_at`

func (r *patientRepoPG) Create(ctx context.Context, p *Patient) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO patients (
			id, patient_id, user_id, first_name, last_name, date_of_birth, age, gender,
			phone, email, address, medical_history, current_medications, allergies,
			blood_type, height, weight,
			emergency_contact_name, emergency_contact_phone, emergency_contact_relationship,
			insurance_provider, insurance_number, is_active
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8,
			$9, $10, $11, $12, $13, $14,
			$15, $16, $17,
			$18, $19, $20,
			$21, $22, $23
		)
		RETURNING created_at, updated_at`,
		p.ID, p.PatientID, p.UserID, p.FirstName, p.LastName, p.DateOfBirth, p.Age, p.Gender,
		p.Phone, p.Email, p.Address, p.MedicalHistory, p.CurrentMedications, p.Allergies,
		p.BloodType, p.Height, p.Weight,
		p.EmergencyContactName, p.EmergencyContactPhone, p.EmergencyContactRelationship,
		p.InsuranceProvider, p.InsuranceNumber, p.IsActive,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if _, dup := db.UniqueViolation(err); dup {
			return apierr.Conflict("Patient ID already exists")
		}
		if db.ValueTooLong(err) {
			return apierr.Validation(db.ValueTooLongMessage)
		}
		return fmt.Errorf("insert patient: %w", err)
	}
	return nil
}

func (r *patientRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return r.scanPatient(r.conn(ctx).QueryRow(ctx,
		`SELECT `+patientColumns+` FROM patients WHERE id = $1 AND is_active`, id))
}

func (r *patientRepoPG) FirstByOwner(ctx context.Context, userID uuid.UUID) (*Patient, error) {
	return r.scanPatient(r.conn(ctx).QueryRow(ctx,
		`SELECT `+patientColumns+` FROM patients WHERE user_id = $1 AND is_active ORDER BY created_at LIMIT 1`, userID))
}

func (r *patientRepoPG) List(ctx context.Context, filter ListFilter, limit, offset int) ([]*Patient, int, error) {
	where := ` WHERE is_active`
	var args []interface{}
	idx := 1

	if filter.OwnerID != nil {
		where += fmt.Sprintf(` AND user_id = $%d`, idx)
		args = append(args, *filter.OwnerID)
		idx++
	}
	if filter.Gender != "" {
		where += fmt.Sprintf(` AND gender = $%d`, idx)
		args = append(args, filter.Gender)
		idx++
	}
	if filter.Search != "" {
		where += fmt.Sprintf(` AND (first_name ILIKE $%d OR last_name ILIKE $%d OR patient_id ILIKE $%d
			OR phone ILIKE $%d OR email ILIKE $%d)`, idx, idx, idx, idx, idx)
		args = append(args, likePattern(filter.Search))
		idx++
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM patients`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count patients: %w", err)
	}

	query := `SELECT ` + patientColumns + ` FROM patients` + where +
		fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, idx, idx+1)
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list patients: %w", err)
	}
	defer rows.Close()

	patients, err := r.collect(rows)
	if err != nil {
		return nil, 0, err
	}
	return patients, total, nil
}

func (r *patientRepoPG) Search(ctx context.Context, ownerID uuid.UUID, term string, limit int) ([]*Patient, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+patientColumns+` FROM patients
		WHERE user_id = $1 AND is_active AND (
			first_name ILIKE $2 OR last_name ILIKE $2 OR patient_id ILIKE $2
			OR phone ILIKE $2 OR email ILIKE $2 OR emergency_contact_name ILIKE $2
		)
		ORDER BY last_name, first_name
		LIMIT $3`, ownerID, likePattern(term), limit)
	if err != nil {
		return nil, fmt.Errorf("search patients: %w", err)
	}
	defer rows.Close()
	return r.collect(rows)
}

func (r *patientRepoPG) Update(ctx context.Context, p *Patient) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE patients SET
			first_name = $2, last_name = $3, date_of_birth = $4, gender = $5,
			phone = $6, email = $7, address = $8,
			medical_history = $9, current_medications = $10, allergies = $11,
			blood_type = $12, height = $13, weight = $14,
			emergency_contact_name = $15, emergency_contact_phone = $16, emergency_contact_relationship = $17,
			insurance_provider = $18, insurance_number = $19, updated_at = NOW()
		WHERE id = $1 AND is_active
		RETURNING updated_at`,
		p.ID, p.FirstName, p.LastName, p.DateOfBirth, p.Gender,
		p.Phone, p.Email, p.Address,
		p.MedicalHistory, p.CurrentMedications, p.Allergies,
		p.BloodType, p.Height, p.Weight,
		p.EmergencyContactName, p.EmergencyContactPhone, p.EmergencyContactRelationship,
		p.InsuranceProvider, p.InsuranceNumber,
	).Scan(&p.UpdatedAt)
	if db.IsNotFound(err) {
		return apierr.NotFound("Patient not found")
	}
	if db.ValueTooLong(err) {
		return apierr.Validation(db.ValueTooLongMessage)
	}
	if err != nil {
		return fmt.Errorf("update patient: %w", err)
	}
	return nil
}

func (r *patientRepoPG) SoftDelete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE patients SET is_active = FALSE, updated_at = NOW() WHERE id = $1 AND is_active`, id)
	if err != nil {
		return fmt.Errorf("delete patient: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apierr.NotFound("Patient not found")
	}
	return nil
}

func (r *patientRepoPG) PatientIDExists(ctx context.Context, patientID string) (bool, error) {
	var exists bool
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM patients WHERE patient_id = $1)`, patientID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check patient id: %w", err)
	}
	return exists, nil
}

func (r *patientRepoPG) OwnerExists(ctx context.Context, userID uuid.UUID) (bool, error) {
	var exists bool
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, userID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check owner: %w", err)
	}
	return exists, nil
}

// likePattern escapes LIKE metacharacters and wraps term in wildcards.
func likePattern(term string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(term) + "%"
}

func (r *patientRepoPG) collect(rows pgx.Rows) ([]*Patient, error) {
	var patients []*Patient
	for rows.Next() {
		p, err := r.scanPatient(rows)
		if err != nil {
			return nil, err
		}
		patients = append(patients, p)
	}
	return patients, rows.Err()
}

func (r *patientRepoPG) scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(
		&p.ID, &p.PatientID, &p.UserID, &p.FirstName, &p.LastName, &p.DateOfBirth, &p.Age, &p.Gender,
		&p.Phone, &p.Email, &p.Address, &p.MedicalHistory, &p.CurrentMedications, &p.Allergies,
		&p.BloodType, &p.Height, &p.Weight,
		&p.EmergencyContactName, &p.EmergencyContactPhone, &p.EmergencyContactRelationship,
		&p.InsuranceProvider, &p.InsuranceNumber, &p.IsActive, &p.CreatedAt, &p.UpdatedAt,
	)
	if db.IsNotFound(err) {
		return nil, apierr.NotFound("Patient not found")
	}
	if err != nil {
		return nil, fmt.Errorf("scan patient: %w", err)
	}
	return &p, nil
}
