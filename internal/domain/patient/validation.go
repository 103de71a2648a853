package patient

import (
	"strings"
	"time"

	"github.com/medora/medora/internal/platform/validate"
)

var earliestBirth = time.Date(1900, 1, 1, 0, 0, 0, 0, time.UTC)

// form is the flat set of fields validation runs on. A nil field was not
// supplied.
type form struct {
	FirstName             *string
	LastName              *string
	DateOfBirth           *string
	Gender                *string
	Phone                 *string
	Email                 *string
	Address               *string
	EmergencyContactName  *string
	EmergencyContactPhone *string
	EmergencyContactRel   *string
	InsuranceProvider     *string
	InsuranceNumber       *string
	BloodType             *string
	Height                *float64
	Weight                *float64
	Age                   *int
}

func formFromInput(in *CreateInput) form {
	return form{
		FirstName:             &in.FirstName,
		LastName:              &in.LastName,
		DateOfBirth:           &in.DateOfBirth,
		Gender:                &in.Gender,
		Phone:                 in.Phone,
		Email:                 in.Email,
		Address:               in.Address,
		EmergencyContactName:  in.EmergencyContactName,
		EmergencyContactPhone: in.EmergencyContactPhone,
		EmergencyContactRel:   in.EmergencyContactRelationship,
		InsuranceProvider:     in.InsuranceProvider,
		InsuranceNumber:       in.InsuranceNumber,
		BloodType:             in.BloodType,
		Height:                in.Height,
		Weight:                in.Weight,
		Age:                   in.Age,
	}
}

func formFromPatch(p *Patch) form {
	return form{
		FirstName:             p.FirstName,
		LastName:              p.LastName,
		DateOfBirth:           p.DateOfBirth,
		Gender:                p.Gender,
		Phone:                 p.Phone,
		Email:                 p.Email,
		Address:               p.Address,
		EmergencyContactName:  p.EmergencyContactName,
		EmergencyContactPhone: p.EmergencyContactPhone,
		EmergencyContactRel:   p.EmergencyContactRelationship,
		InsuranceProvider:     p.InsuranceProvider,
		InsuranceNumber:       p.InsuranceNumber,
		BloodType:             p.BloodType,
		Height:                p.Height,
		Weight:                p.Weight,
	}
}

// formFromMerged renders an existing record with the patch applied.
func formFromMerged(existing *Patient, p *Patch) form {
	dob := existing.DateOfBirth.Format(dateLayout)
	f := form{
		FirstName:             &existing.FirstName,
		LastName:              &existing.LastName,
		DateOfBirth:           &dob,
		Gender:                &existing.Gender,
		Phone:                 existing.Phone,
		Email:                 existing.Email,
		Address:               existing.Address,
		EmergencyContactName:  existing.EmergencyContactName,
		EmergencyContactPhone: existing.EmergencyContactPhone,
		EmergencyContactRel:   existing.EmergencyContactRelationship,
		InsuranceProvider:     existing.InsuranceProvider,
		InsuranceNumber:       existing.InsuranceNumber,
		BloodType:             existing.BloodType,
		Height:                existing.Height,
		Weight:                existing.Weight,
	}
	patch := formFromPatch(p)
	for _, pair := range []struct{ dst, src **string }{
		{&f.FirstName, &patch.FirstName},
		{&f.LastName, &patch.LastName},
		{&f.DateOfBirth, &patch.DateOfBirth},
		{&f.Gender, &patch.Gender},
		{&f.Phone, &patch.Phone},
		{&f.Email, &patch.Email},
		{&f.Address, &patch.Address},
		{&f.EmergencyContactName, &patch.EmergencyContactName},
		{&f.EmergencyContactPhone, &patch.EmergencyContactPhone},
		{&f.EmergencyContactRel, &patch.EmergencyContactRel},
		{&f.InsuranceProvider, &patch.InsuranceProvider},
		{&f.InsuranceNumber, &patch.InsuranceNumber},
		{&f.BloodType, &patch.BloodType},
	} {
		if *pair.src != nil {
			*pair.dst = *pair.src
		}
	}
	if patch.Height != nil {
		f.Height = patch.Height
	}
	if patch.Weight != nil {
		f.Weight = patch.Weight
	}
	return f
}

var requiredFields = []string{
	"first_name", "last_name", "date_of_birth", "gender",
	"phone", "address", "emergency_contact_name", "emergency_contact_phone",
}

func (f form) byName(field string) *string {
	switch field {
	case "first_name":
		return f.FirstName
	case "last_name":
		return f.LastName
	case "date_of_birth":
		return f.DateOfBirth
	case "gender":
		return f.Gender
	case "phone":
		return f.Phone
	case "address":
		return f.Address
	case "emergency_contact_name":
		return f.EmergencyContactName
	case "emergency_contact_phone":
		return f.EmergencyContactPhone
	case "emergency_contact_relationship":
		return f.EmergencyContactRel
	case "insurance_provider":
		return f.InsuranceProvider
	case "insurance_number":
		return f.InsuranceNumber
	}
	return nil
}

// maxLengths mirrors the VARCHAR sizes of the patients table.
var maxLengths = []struct {
	field string
	max   int
}{
	{"first_name", 50},
	{"last_name", 50},
	{"phone", 20},
	{"email", 120},
	{"emergency_contact_name", 100},
	{"emergency_contact_phone", 20},
	{"emergency_contact_relationship", 50},
	{"insurance_provider", 100},
	{"insurance_number", 50},
}

func present(s *string) bool {
	return s != nil && !validate.Blank(*s)
}

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

// check returns every failed rule in a fixed order. In partial mode only
// supplied fields are checked and absent required fields are not reported.
func (f form) check(today time.Time, partial bool) []string {
	var errs validate.Errors

	for _, field := range requiredFields {
		v := f.byName(field)
		if partial && v == nil {
			continue
		}
		if !present(v) {
			errs.Add(validate.Required(field))
		}
	}

	if present(f.FirstName) && len([]rune(strings.TrimSpace(*f.FirstName))) < 2 {
		errs.Add("First name must be at least 2 characters long")
	}
	if present(f.LastName) && len([]rune(strings.TrimSpace(*f.LastName))) < 2 {
		errs.Add("Last name must be at least 2 characters long")
	}
	for _, l := range maxLengths {
		if v := f.byName(l.field); present(v) && validate.TooLong(*v, l.max) {
			errs.Add(validate.MaxLength(l.field, l.max))
		}
	}
	if present(f.Gender) && !contains(genders, *f.Gender) {
		errs.Add("Gender must be Male, Female, or Other")
	}

	if present(f.DateOfBirth) {
		dob, err := time.Parse(dateLayout, strings.TrimSpace(*f.DateOfBirth))
		if err != nil {
			errs.Add("Invalid date of birth format. Use YYYY-MM-DD")
		} else {
			day := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)
			if dob.After(day) {
				errs.Add("Date of birth cannot be in the future")
			}
			if dob.Before(earliestBirth) {
				errs.Add("Date of birth seems invalid")
			}
		}
	}

	if present(f.Phone) && !validate.Phone(*f.Phone) {
		errs.Add("Invalid phone number format")
	}
	if present(f.Email) && !validate.Email(strings.TrimSpace(*f.Email)) {
		errs.Add("Invalid email address format")
	}
	if present(f.EmergencyContactPhone) && !validate.Phone(*f.EmergencyContactPhone) {
		errs.Add("Invalid emergency contact phone number format")
	}
	if present(f.BloodType) && !contains(bloodTypes, *f.BloodType) {
		errs.Add("Invalid blood type")
	}
	if f.Height != nil && (*f.Height <= 0 || *f.Height > 300) {
		errs.Add("Height must be between 0 and 300 cm")
	}
	if f.Weight != nil && (*f.Weight <= 0 || *f.Weight > 500) {
		errs.Add("Weight must be between 0 and 500 kg")
	}
	if f.Age != nil && (*f.Age < 0 || *f.Age > 150) {
		errs.Add("Age must be between 0 and 150")
	}

	return errs
}

// clean trims s and maps blank strings to nil.
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
