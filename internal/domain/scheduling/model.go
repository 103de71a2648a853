package scheduling

import (
	"time"

	"github.com/google/uuid"
)

const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04"

	StatusScheduled = "scheduled"
)

var validAppointmentStatuses = map[string]bool{
	"scheduled":   true,
	"completed":   true,
	"cancelled":   true,
	"rescheduled": true,
}

var validAppointmentTypes = map[string]bool{
	"Checkup":      true,
	"Consultation": true,
	"Emergency":    true,
	"Follow-up":    true,
	"Surgery":      true,
	"Other":        true,
}

// Appointment maps to the appointments table. OwnerID is the user owning the
// referenced patient and is loaded with every read.
type Appointment struct {
	ID              uuid.UUID `json:"id"`
	PatientID       uuid.UUID `json:"patient_id"`
	DoctorName      string    `json:"doctor_name"`
	AppointmentDate time.Time `json:"appointment_date"`
	AppointmentType *string   `json:"appointment_type"`
	Symptoms        *string   `json:"symptoms"`
	Diagnosis       *string   `json:"diagnosis"`
	Prescription    *string   `json:"prescription"`
	Notes           *string   `json:"notes"`
	Status          string    `json:"status"`
	IsActive        bool      `json:"-"`
	OwnerID         uuid.UUID `json:"-"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// CreateInput is the body of POST /appointments. Date and time arrive as
// separate YYYY-MM-DD and HH:MM values.
type CreateInput struct {
	PatientID       string  `json:"patient_id"`
	DoctorName      string  `json:"doctor_name"`
	AppointmentDate string  `json:"appointment_date"`
	AppointmentTime string  `json:"appointment_time"`
	AppointmentType *string `json:"appointment_type"`
	Symptoms        *string `json:"symptoms"`
	Diagnosis       *string `json:"diagnosis"`
	Prescription    *string `json:"prescription"`
	Notes           *string `json:"notes"`
	Status          string  `json:"status"`
}

type Patch struct {
	DoctorName      *string `json:"doctor_name"`
	AppointmentDate *string `json:"appointment_date"`
	AppointmentTime *string `json:"appointment_time"`
	AppointmentType *string `json:"appointment_type"`
	Symptoms        *string `json:"symptoms"`
	Diagnosis       *string `json:"diagnosis"`
	Prescription    *string `json:"prescription"`
	Notes           *string `json:"notes"`
	Status          *string `json:"status"`
}

func (p Patch) Empty() bool {
	return p == Patch{}
}

// Filter narrows appointment listings. From and To are inclusive calendar
// days.
type Filter struct {
	OwnerID     *uuid.UUID
	PatientName string
	From        *time.Time
	To          *time.Time
	Status      string
}

// SearchParams are the raw query parameters of GET /appointments/search.
type SearchParams struct {
	PatientName string
	DateFrom    string
	DateTo      string
	Status      string
}
