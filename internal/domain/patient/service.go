package patient

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/medora/medora/internal/platform/apierr"
	"github.com/medora/medora/internal/platform/auth"
	"github.com/medora/medora/internal/platform/db"
)

const (
	idPrefix      = "MED"
	idAttempts    = 5
	searchLimit   = 20
	maxPatientLen = 20
)

type Service struct {
	patients PatientRepository
	tx       db.TxRunner
	loc      *time.Location
	now      func() time.Time
	newID    func(day time.Time) string
}

func NewService(patients PatientRepository, tx db.TxRunner) *Service {
	return &Service{
		patients: patients,
		tx:       tx,
		loc:      time.UTC,
		now:      time.Now,
		newID:    generatePatientID,
	}
}

// SetLocation sets the time zone used to decide what "today" is.
func (s *Service) SetLocation(loc *time.Location) {
	if loc != nil {
		s.loc = loc
	}
}

func (s *Service) today() time.Time {
	return s.now().In(s.loc)
}

// generatePatientID returns MED + YYYYMMDD + six upper-case hex characters.
func generatePatientID(day time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:6]
	return idPrefix + day.Format("20060102") + strings.ToUpper(suffix)
}

// Create validates the input and stores a new patient owned by the actor, or
// by the requested user when the actor manages clinical records.
func (s *Service) Create(ctx context.Context, actor *auth.Actor, in CreateInput) (*Patient, error) {
	today := s.today()
	if errs := formFromInput(&in).check(today, false); len(errs) > 0 {
		return nil, apierr.ValidationFailed(errs)
	}
	dob, _ := time.Parse(dateLayout, strings.TrimSpace(in.DateOfBirth))

	owner := actor.ID
	if actor.Can(auth.ManageClinicalRecords) && in.UserID != nil && strings.TrimSpace(*in.UserID) != "" {
		id, err := uuid.Parse(strings.TrimSpace(*in.UserID))
		if err != nil {
			return nil, apierr.NotFound("Specified user not found")
		}
		owner = id
	}

	p := &Patient{
		UserID:                       owner,
		FirstName:                    strings.TrimSpace(in.FirstName),
		LastName:                     strings.TrimSpace(in.LastName),
		DateOfBirth:                  dob,
		Gender:                       in.Gender,
		Phone:                        clean(in.Phone),
		Email:                        clean(in.Email),
		Address:                      clean(in.Address),
		MedicalHistory:               clean(in.MedicalHistory),
		CurrentMedications:           clean(in.CurrentMedications),
		Allergies:                    clean(in.Allergies),
		BloodType:                    clean(in.BloodType),
		Height:                       in.Height,
		Weight:                       in.Weight,
		EmergencyContactName:         clean(in.EmergencyContactName),
		EmergencyContactPhone:        clean(in.EmergencyContactPhone),
		EmergencyContactRelationship: clean(in.EmergencyContactRelationship),
		InsuranceProvider:            clean(in.InsuranceProvider),
		InsuranceNumber:              clean(in.InsuranceNumber),
		IsActive:                     true,
	}
	if in.Age != nil {
		p.Age = in.Age
	} else {
		age := AgeOn(dob, today)
		p.Age = &age
	}

	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		if owner != actor.ID {
			ok, err := s.patients.OwnerExists(ctx, owner)
			if err != nil {
				return err
			}
			if !ok {
				return apierr.NotFound("Specified user not found")
			}
		}

		pid, err := s.assignPatientID(ctx, strings.TrimSpace(in.PatientID))
		if err != nil {
			return err
		}
		p.PatientID = pid
		return s.patients.Create(ctx, p)
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) assignPatientID(ctx context.Context, requested string) (string, error) {
	if requested != "" {
		if len(requested) > maxPatientLen {
			return "", apierr.Validation(fmt.Sprintf("Patient ID must be at most %d characters", maxPatientLen))
		}
		taken, err := s.patients.PatientIDExists(ctx, requested)
		if err != nil {
			return "", err
		}
		if taken {
			return "", apierr.Conflict("Patient ID already exists")
		}
		return requested, nil
	}

	for i := 0; i < idAttempts; i++ {
		candidate := s.newID(s.today())
		taken, err := s.patients.PatientIDExists(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
	}
	return "", apierr.Internal(fmt.Errorf("no free patient id after %d attempts", idAttempts))
}

// Get returns an active patient the actor may see. Records belonging to
// someone else are reported exactly like missing ones.
func (s *Service) Get(ctx context.Context, actor *auth.Actor, id uuid.UUID) (*Patient, error) {
	p, err := s.patients.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.CanAccess(p.UserID) {
		return nil, apierr.NotFound("Patient not found")
	}
	return p, nil
}

// MyPatient returns the actor's own patient record.
func (s *Service) MyPatient(ctx context.Context, actor *auth.Actor) (*Patient, error) {
	p, err := s.patients.FirstByOwner(ctx, actor.ID)
	if apierr.Is(err, apierr.KindNotFound) {
		return nil, apierr.NotFound("Patient record not found")
	}
	return p, err
}

func (s *Service) List(ctx context.Context, actor *auth.Actor, filter ListFilter, limit, offset int) ([]*Patient, int, error) {
	filter.OwnerID = nil
	if !actor.Can(auth.ManageClinicalRecords) {
		filter.OwnerID = &actor.ID
	}
	filter.Search = strings.TrimSpace(filter.Search)
	patients, total, err := s.patients.List(ctx, filter, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	if patients == nil {
		patients = []*Patient{}
	}
	return patients, total, nil
}

// Search matches term against the actor's own patients only.
func (s *Service) Search(ctx context.Context, actor *auth.Actor, term string) ([]*Patient, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return nil, apierr.Validation("Search term is required")
	}
	patients, err := s.patients.Search(ctx, actor.ID, term, searchLimit)
	if err != nil {
		return nil, err
	}
	if patients == nil {
		patients = []*Patient{}
	}
	return patients, nil
}

// IDAvailable reports whether an external patient id is unused.
func (s *Service) IDAvailable(ctx context.Context, patientID string) (bool, error) {
	taken, err := s.patients.PatientIDExists(ctx, patientID)
	if err != nil {
		return false, err
	}
	return !taken, nil
}

// Update applies patch. A change to the name, birth date or gender
// revalidates the whole merged record; otherwise only supplied fields are
// checked.
func (s *Service) Update(ctx context.Context, actor *auth.Actor, id uuid.UUID, patch Patch) (*Patient, error) {
	if patch.Empty() {
		return nil, apierr.Validation("No data provided")
	}

	var updated *Patient
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		p, err := s.Get(ctx, actor, id)
		if err != nil {
			return err
		}

		var errs []string
		if patch.touchesIdentity() {
			errs = formFromMerged(p, &patch).check(s.today(), false)
		} else {
			errs = formFromPatch(&patch).check(s.today(), true)
		}
		if len(errs) > 0 {
			return apierr.ValidationFailed(errs)
		}

		applyPatch(p, &patch)
		if err := s.patients.Update(ctx, p); err != nil {
			return err
		}
		updated = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func applyPatch(p *Patient, patch *Patch) {
	if patch.FirstName != nil {
		p.FirstName = strings.TrimSpace(*patch.FirstName)
	}
	if patch.LastName != nil {
		p.LastName = strings.TrimSpace(*patch.LastName)
	}
	if patch.DateOfBirth != nil {
		if dob, err := time.Parse(dateLayout, strings.TrimSpace(*patch.DateOfBirth)); err == nil {
			p.DateOfBirth = dob
		}
	}
	if patch.Gender != nil {
		p.Gender = *patch.Gender
	}
	for _, pair := range []struct{ dst, src **string }{
		{&p.Phone, &patch.Phone},
		{&p.Email, &patch.Email},
		{&p.Address, &patch.Address},
		{&p.MedicalHistory, &patch.MedicalHistory},
		{&p.CurrentMedications, &patch.CurrentMedications},
		{&p.Allergies, &patch.Allergies},
		{&p.EmergencyContactName, &patch.EmergencyContactName},
		{&p.EmergencyContactPhone, &patch.EmergencyContactPhone},
		{&p.EmergencyContactRelationship, &patch.EmergencyContactRelationship},
		{&p.BloodType, &patch.BloodType},
		{&p.InsuranceProvider, &patch.InsuranceProvider},
		{&p.InsuranceNumber, &patch.InsuranceNumber},
	} {
		if *pair.src != nil {
			*pair.dst = clean(*pair.src)
		}
	}
	if patch.Height != nil {
		p.Height = patch.Height
	}
	if patch.Weight != nil {
		p.Weight = patch.Weight
	}
}

// Delete soft-deletes a patient the actor may see.
func (s *Service) Delete(ctx context.Context, actor *auth.Actor, id uuid.UUID) error {
	return s.tx.InTx(ctx, func(ctx context.Context) error {
		if _, err := s.Get(ctx, actor, id); err != nil {
			return err
		}
		return s.patients.SoftDelete(ctx, id)
	})
}
