package patient

import (
	"encoding/json"
	"math"
	"time"

	"github.com/google/uuid"
)

const dateLayout = "2006-01-02"

var (
	genders    = []string{"Male", "Female", "Other"}
	bloodTypes = []string{"A+", "A-", "B+", "B-", "AB+", "AB-", "O+", "O-"}
)

// Patient maps to the patients table.
type Patient struct {
	ID                           uuid.UUID
	PatientID                    string
	UserID                       uuid.UUID
	FirstName                    string
	LastName                     string
	DateOfBirth                  time.Time
	Age                          *int
	Gender                       string
	Phone                        *string
	Email                        *string
	Address                      *string
	MedicalHistory               *string
	CurrentMedications           *string
	Allergies                    *string
	BloodType                    *string
	Height                       *float64
	Weight                       *float64
	EmergencyContactName         *string
	EmergencyContactPhone        *string
	EmergencyContactRelationship *string
	InsuranceProvider            *string
	InsuranceNumber              *string
	IsActive                     bool
	CreatedAt                    time.Time
	UpdatedAt                    time.Time
}

func (p *Patient) FullName() string {
	return p.FirstName + " " + p.LastName
}

// BMI is weight / height(m)^2 rounded to one decimal, nil when either
// measurement is missing or the height is zero.
func (p *Patient) BMI() *float64 {
	if p.Height == nil || p.Weight == nil || *p.Height <= 0 {
		return nil
	}
	m := *p.Height / 100
	bmi := math.Round(*p.Weight/(m*m)*10) / 10
	return &bmi
}

func (p *Patient) BMICategory() *string {
	bmi := p.BMI()
	if bmi == nil {
		return nil
	}
	var c string
	switch {
	case *bmi < 18.5:
		c = "Underweight"
	case *bmi < 25:
		c = "Normal weight"
	case *bmi < 30:
		c = "Overweight"
	default:
		c = "Obese"
	}
	return &c
}

type patientJSON struct {
	ID                           uuid.UUID `json:"id"`
	PatientID                    string    `json:"patient_id"`
	UserID                       uuid.UUID `json:"user_id"`
	FirstName                    string    `json:"first_name"`
	LastName                     string    `json:"last_name"`
	FullName                     string    `json:"full_name"`
	DateOfBirth                  string    `json:"date_of_birth"`
	Age                          *int      `json:"age"`
	Gender                       string    `json:"gender"`
	Phone                        *string   `json:"phone"`
	Email                        *string   `json:"email"`
	Address                      *string   `json:"address"`
	MedicalHistory               *string   `json:"medical_history"`
	CurrentMedications           *string   `json:"current_medications"`
	Allergies                    *string   `json:"allergies"`
	BloodType                    *string   `json:"blood_type"`
	Height                       *float64  `json:"height"`
	Weight                       *float64  `json:"weight"`
	BMI                          *float64  `json:"bmi"`
	BMICategory                  *string   `json:"bmi_category"`
	EmergencyContactName         *string   `json:"emergency_contact_name"`
	EmergencyContactPhone        *string   `json:"emergency_contact_phone"`
	EmergencyContactRelationship *string   `json:"emergency_contact_relationship"`
	InsuranceProvider            *string   `json:"insurance_provider"`
	InsuranceNumber              *string   `json:"insurance_number"`
	IsActive                     bool      `json:"is_active"`
	CreatedAt                    time.Time `json:"created_at"`
	UpdatedAt                    time.Time `json:"updated_at"`
}

// MarshalJSON adds the derived fields and renders the birth date as
// YYYY-MM-DD.
func (p *Patient) MarshalJSON() ([]byte, error) {
	return json.Marshal(patientJSON{
		ID:                           p.ID,
		PatientID:                    p.PatientID,
		UserID:                       p.UserID,
		FirstName:                    p.FirstName,
		LastName:                     p.LastName,
		FullName:                     p.FullName(),
		DateOfBirth:                  p.DateOfBirth.Format(dateLayout),
		Age:                          p.Age,
		Gender:                       p.Gender,
		Phone:                        p.Phone,
		Email:                        p.Email,
		Address:                      p.Address,
		MedicalHistory:               p.MedicalHistory,
		CurrentMedications:           p.CurrentMedications,
		Allergies:                    p.Allergies,
		BloodType:                    p.BloodType,
		Height:                       p.Height,
		Weight:                       p.Weight,
		BMI:                          p.BMI(),
		BMICategory:                  p.BMICategory(),
		EmergencyContactName:         p.EmergencyContactName,
		EmergencyContactPhone:        p.EmergencyContactPhone,
		EmergencyContactRelationship: p.EmergencyContactRelationship,
		InsuranceProvider:            p.InsuranceProvider,
		InsuranceNumber:              p.InsuranceNumber,
		IsActive:                     p.IsActive,
		CreatedAt:                    p.CreatedAt,
		UpdatedAt:                    p.UpdatedAt,
	})
}

// AgeOn returns the age in whole years on the given day.
func AgeOn(dob, day time.Time) int {
	age := day.Year() - dob.Year()
	if day.Month() < dob.Month() || (day.Month() == dob.Month() && day.Day() < dob.Day()) {
		age--
	}
	return age
}

// CreateInput is the body of POST /patients.
type CreateInput struct {
	PatientID                    string   `json:"patient_id"`
	UserID                       *string  `json:"user_id"`
	FirstName                    string   `json:"first_name"`
	LastName                     string   `json:"last_name"`
	DateOfBirth                  string   `json:"date_of_birth"`
	Age                          *int     `json:"age"`
	Gender                       string   `json:"gender"`
	Phone                        *string  `json:"phone"`
	Email                        *string  `json:"email"`
	Address                      *string  `json:"address"`
	MedicalHistory               *string  `json:"medical_history"`
	CurrentMedications           *string  `json:"current_medications"`
	Allergies                    *string  `json:"allergies"`
	BloodType                    *string  `json:"blood_type"`
	Height                       *float64 `json:"height"`
	Weight                       *float64 `json:"weight"`
	EmergencyContactName         *string  `json:"emergency_contact_name"`
	EmergencyContactPhone        *string  `json:"emergency_contact_phone"`
	EmergencyContactRelationship *string  `json:"emergency_contact_relationship"`
	InsuranceProvider            *string  `json:"insurance_provider"`
	InsuranceNumber              *string  `json:"insurance_number"`
}

// Patch lists the mutable patient fields. The external id, owner and
// active flag cannot be changed through it.
type Patch struct {
	FirstName                    *string  `json:"first_name"`
	LastName                     *string  `json:"last_name"`
	DateOfBirth                  *string  `json:"date_of_birth"`
	Gender                       *string  `json:"gender"`
	Phone                        *string  `json:"phone"`
	Email                        *string  `json:"email"`
	Address                      *string  `json:"address"`
	MedicalHistory               *string  `json:"medical_history"`
	CurrentMedications           *string  `json:"current_medications"`
	Allergies                    *string  `json:"allergies"`
	EmergencyContactName         *string  `json:"emergency_contact_name"`
	EmergencyContactPhone        *string  `json:"emergency_contact_phone"`
	EmergencyContactRelationship *string  `json:"emergency_contact_relationship"`
	BloodType                    *string  `json:"blood_type"`
	Height                       *float64 `json:"height"`
	Weight                       *float64 `json:"weight"`
	InsuranceProvider            *string  `json:"insurance_provider"`
	InsuranceNumber              *string  `json:"insurance_number"`
}

func (p Patch) Empty() bool {
	return p == Patch{}
}

// touchesIdentity reports whether the patch changes a field that triggers
// full revalidation.
func (p Patch) touchesIdentity() bool {
	return p.FirstName != nil || p.LastName != nil || p.DateOfBirth != nil || p.Gender != nil
}

type ListFilter struct {
	OwnerID *uuid.UUID
	Search  string
	Gender  string
}
