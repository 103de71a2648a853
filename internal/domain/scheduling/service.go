package scheduling

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/medora/medora/internal/domain/patient"
	"github.com/medora/medora/internal/platform/apierr"
	"github.com/medora/medora/internal/platform/auth"
	"github.com/medora/medora/internal/platform/db"
	"github.com/medora/medora/internal/platform/validate"
)

// PatientFinder returns an active patient visible to the actor, or a
// NotFound error.
type PatientFinder interface {
	Get(ctx context.Context, actor *auth.Actor, id uuid.UUID) (*patient.Patient, error)
}

type Service struct {
	appointments AppointmentRepository
	patients     PatientFinder
	tx           db.TxRunner
	loc          *time.Location
}

func NewService(appointments AppointmentRepository, patients PatientFinder, tx db.TxRunner) *Service {
	return &Service{appointments: appointments, patients: patients, tx: tx, loc: time.UTC}
}

// SetLocation sets the zone appointment dates and times are interpreted in.
func (s *Service) SetLocation(loc *time.Location) {
	if loc != nil {
		s.loc = loc
	}
}

func (s *Service) combine(date, clock string) (time.Time, error) {
	return time.ParseInLocation(dateLayout+" "+timeLayout, strings.TrimSpace(date)+" "+strings.TrimSpace(clock), s.loc)
}

const maxDoctorName = 100

func checkTypeAndStatus(errs *validate.Errors, apptType *string, status string) {
	if apptType != nil && *apptType != "" && !validAppointmentTypes[*apptType] {
		errs.Add("Invalid appointment type")
	}
	if status != "" && !validAppointmentStatuses[status] {
		errs.Add("Invalid appointment status")
	}
}

func dateTimeErrors(errs *validate.Errors, date, clock string) {
	if _, err := time.Parse(dateLayout, strings.TrimSpace(date)); err != nil {
		errs.Add("Invalid date format. Use YYYY-MM-DD")
	}
	if _, err := time.Parse(timeLayout, strings.TrimSpace(clock)); err != nil {
		errs.Add("Invalid time format. Use HH:MM")
	}
}

// CreateAppointment books an appointment for an existing active patient.
func (s *Service) CreateAppointment(ctx context.Context, actor *auth.Actor, in CreateInput) (*Appointment, error) {
	var errs validate.Errors
	required := map[string]string{
		"patient_id":       in.PatientID,
		"doctor_name":      in.DoctorName,
		"appointment_date": in.AppointmentDate,
		"appointment_time": in.AppointmentTime,
	}
	for _, field := range []string{"patient_id", "doctor_name", "appointment_date", "appointment_time"} {
		if validate.Blank(required[field]) {
			errs.Add(validate.Required(field))
		}
	}
	if validate.TooLong(in.DoctorName, maxDoctorName) {
		errs.Add(validate.MaxLength("doctor_name", maxDoctorName))
	}
	if !validate.Blank(in.AppointmentDate) && !validate.Blank(in.AppointmentTime) {
		dateTimeErrors(&errs, in.AppointmentDate, in.AppointmentTime)
	}
	checkTypeAndStatus(&errs, in.AppointmentType, in.Status)
	if !errs.Empty() {
		return nil, apierr.ValidationFailed(errs)
	}

	when, _ := s.combine(in.AppointmentDate, in.AppointmentTime)
	status := in.Status
	if status == "" {
		status = StatusScheduled
	}
	a := &Appointment{
		DoctorName:      strings.TrimSpace(in.DoctorName),
		AppointmentDate: when,
		AppointmentType: clean(in.AppointmentType),
		Symptoms:        clean(in.Symptoms),
		Diagnosis:       clean(in.Diagnosis),
		Prescription:    clean(in.Prescription),
		Notes:           clean(in.Notes),
		Status:          status,
		IsActive:        true,
	}

	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		pid, err := uuid.Parse(strings.TrimSpace(in.PatientID))
		if err != nil {
			return apierr.NotFound("Patient not found")
		}
		p, err := s.patients.Get(ctx, actor, pid)
		if err != nil {
			return err
		}
		a.PatientID = p.ID
		a.OwnerID = p.UserID
		return s.appointments.Create(ctx, a)
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}

// GetAppointment returns an active appointment visible to the actor.
func (s *Service) GetAppointment(ctx context.Context, actor *auth.Actor, id uuid.UUID) (*Appointment, error) {
	a, err := s.appointments.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.CanAccess(a.OwnerID) {
		return nil, apierr.NotFound("Appointment not found")
	}
	return a, nil
}

func (s *Service) scope(actor *auth.Actor, f *Filter) {
	f.OwnerID = nil
	if !actor.Can(auth.ManageClinicalRecords) {
		f.OwnerID = &actor.ID
	}
}

// ListAppointments returns all active appointments for clinical staff and
// the appointments of the actor's own patients for everyone else.
func (s *Service) ListAppointments(ctx context.Context, actor *auth.Actor, limit, offset int) ([]*Appointment, int, error) {
	var f Filter
	s.scope(actor, &f)
	return s.list(ctx, f, limit, offset)
}

// SearchAppointments filters like ListAppointments plus patient name, an
// inclusive date range and status.
func (s *Service) SearchAppointments(ctx context.Context, actor *auth.Actor, params SearchParams, limit, offset int) ([]*Appointment, int, error) {
	f := Filter{
		PatientName: strings.TrimSpace(params.PatientName),
		Status:      strings.TrimSpace(params.Status),
	}
	if v := strings.TrimSpace(params.DateFrom); v != "" {
		from, err := time.ParseInLocation(dateLayout, v, s.loc)
		if err != nil {
			return nil, 0, apierr.Validation("Invalid date_from format. Use YYYY-MM-DD")
		}
		f.From = &from
	}
	if v := strings.TrimSpace(params.DateTo); v != "" {
		to, err := time.ParseInLocation(dateLayout, v, s.loc)
		if err != nil {
			return nil, 0, apierr.Validation("Invalid date_to format. Use YYYY-MM-DD")
		}
		f.To = &to
	}
	s.scope(actor, &f)
	return s.list(ctx, f, limit, offset)
}

func (s *Service) list(ctx context.Context, f Filter, limit, offset int) ([]*Appointment, int, error) {
	items, total, err := s.appointments.List(ctx, f, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	if items == nil {
		items = []*Appointment{}
	}
	return items, total, nil
}

// PatientAppointments lists a visible patient's active appointments, newest
// first.
func (s *Service) PatientAppointments(ctx context.Context, actor *auth.Actor, patientID uuid.UUID) ([]*Appointment, error) {
	if _, err := s.patients.Get(ctx, actor, patientID); err != nil {
		return nil, err
	}
	items, err := s.appointments.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []*Appointment{}
	}
	return items, nil
}

// UpdateAppointment applies patch. A new date or time alone is combined with
// the other half of the stored instant.
func (s *Service) UpdateAppointment(ctx context.Context, actor *auth.Actor, id uuid.UUID, patch Patch) (*Appointment, error) {
	if patch.Empty() {
		return nil, apierr.Validation("No data provided")
	}

	var updated *Appointment
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		a, err := s.GetAppointment(ctx, actor, id)
		if err != nil {
			return err
		}

		var errs validate.Errors
		if patch.DoctorName != nil && validate.Blank(*patch.DoctorName) {
			errs.Add(validate.Required("doctor_name"))
		}
		if patch.DoctorName != nil && validate.TooLong(*patch.DoctorName, maxDoctorName) {
			errs.Add(validate.MaxLength("doctor_name", maxDoctorName))
		}
		local := a.AppointmentDate.In(s.loc)
		date, clock := local.Format(dateLayout), local.Format(timeLayout)
		if patch.AppointmentDate != nil {
			date = *patch.AppointmentDate
		}
		if patch.AppointmentTime != nil {
			clock = *patch.AppointmentTime
		}
		if patch.AppointmentDate != nil || patch.AppointmentTime != nil {
			dateTimeErrors(&errs, date, clock)
		}
		status := ""
		if patch.Status != nil {
			status = *patch.Status
			if status == "" {
				errs.Add("Invalid appointment status")
			}
		}
		checkTypeAndStatus(&errs, patch.AppointmentType, status)
		if !errs.Empty() {
			return apierr.ValidationFailed(errs)
		}

		if patch.DoctorName != nil {
			a.DoctorName = strings.TrimSpace(*patch.DoctorName)
		}
		if patch.AppointmentDate != nil || patch.AppointmentTime != nil {
			a.AppointmentDate, _ = s.combine(date, clock)
		}
		for _, pair := range []struct{ dst, src **string }{
			{&a.AppointmentType, &patch.AppointmentType},
			{&a.Symptoms, &patch.Symptoms},
			{&a.Diagnosis, &patch.Diagnosis},
			{&a.Prescription, &patch.Prescription},
			{&a.Notes, &patch.Notes},
		} {
			if *pair.src != nil {
				*pair.dst = clean(*pair.src)
			}
		}
		if patch.Status != nil {
			a.Status = *patch.Status
		}

		if err := s.appointments.Update(ctx, a); err != nil {
			return err
		}
		updated = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteAppointment soft-deletes an appointment.
func (s *Service) DeleteAppointment(ctx context.Context, actor *auth.Actor, id uuid.UUID) error {
	return s.tx.InTx(ctx, func(ctx context.Context) error {
		if _, err := s.GetAppointment(ctx, actor, id); err != nil {
			return err
		}
		return s.appointments.SoftDelete(ctx, id)
	})
}

func clean(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
