package dashboard

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/medora/medora/internal/domain/account"
	"github.com/medora/medora/internal/domain/patient"
	"github.com/medora/medora/internal/domain/scheduling"
)

const (
	monthKeyLayout = "2006-01"

	trendMonths      = 6
	recentLimit      = 5
	upcomingLimit    = 5
	upcomingDays     = 7
	missingInfoLimit = 5
	reminderWindow   = 24 * time.Hour
)

// Statistics is the aggregate block of GET /dashboard.
type Statistics struct {
	TotalPatients                 int64          `json:"total_patients"`
	TotalAppointments             int64          `json:"total_appointments"`
	GenderDistribution            map[string]int `json:"gender_distribution"`
	AgeDistribution               map[string]int `json:"age_distribution"`
	BloodTypeDistribution         map[string]int `json:"blood_type_distribution"`
	AppointmentStatusDistribution map[string]int `json:"appointment_status_distribution"`
	MonthlyRegistrations          map[string]int `json:"monthly_registrations"`
}

type Overview struct {
	User                 *account.User          `json:"user"`
	Statistics           Statistics             `json:"statistics"`
	RecentPatients       []*patient.Patient     `json:"recent_patients"`
	UpcomingAppointments []*UpcomingAppointment `json:"upcoming_appointments"`
}

// UpcomingAppointment is an appointment joined with its patient's name.
type UpcomingAppointment struct {
	scheduling.Appointment
	PatientName string `json:"patient_name"`
}

type QuickStats struct {
	TotalPatients     int64 `json:"total_patients"`
	TodayAppointments int64 `json:"today_appointments"`
	WeekAppointments  int64 `json:"week_appointments"`
	NewPatientsMonth  int64 `json:"new_patients_month"`
}

const (
	NotificationAppointmentReminder = "appointment_reminder"
	NotificationMissingInfo         = "missing_info"
)

type Notification struct {
	Type      string     `json:"type"`
	Message   string     `json:"message"`
	Date      *time.Time `json:"date,omitempty"`
	PatientID *uuid.UUID `json:"patient_id,omitempty"`
	Priority  string     `json:"priority"`
}

// ageBucket maps an age in whole years to its distribution label.
func ageBucket(age int) string {
	switch {
	case age < 18:
		return "0-17"
	case age < 30:
		return "18-29"
	case age < 50:
		return "30-49"
	case age < 65:
		return "50-64"
	default:
		return "65+"
	}
}

// ageDistribution buckets birth dates by the age reached on day.
func ageDistribution(births []time.Time, day time.Time) map[string]int {
	out := make(map[string]int)
	for _, dob := range births {
		out[ageBucket(patient.AgeOn(dob, day))]++
	}
	return out
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func startOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}

// weekBounds returns the Monday starting t's week and the following Monday.
func weekBounds(t time.Time) (time.Time, time.Time) {
	offset := (int(t.Weekday()) + 6) % 7
	start := startOfDay(t).AddDate(0, 0, -offset)
	return start, start.AddDate(0, 0, 7)
}

// trendStart is the first instant of the oldest month in the trailing window
// ending with t's month.
func trendStart(t time.Time) time.Time {
	return startOfMonth(t).AddDate(0, -(trendMonths - 1), 0)
}

// monthlyRegistrations counts creation times per YYYY-MM in now's zone. Every month
// of the trailing window is present, zero when empty.
func monthlyRegistrations(created []time.Time, now time.Time) map[string]int {
	start := trendStart(now)
	out := make(map[string]int, trendMonths)
	for i := 0; i < trendMonths; i++ {
		out[start.AddDate(0, i, 0).Format(monthKeyLayout)] = 0
	}
	for _, c := range created {
		key := c.In(now.Location()).Format(monthKeyLayout)
		if _, ok := out[key]; ok {
			out[key]++
		}
	}
	return out
}

func reminder(a *UpcomingAppointment) Notification {
	when := a.AppointmentDate
	return Notification{
		Type:     NotificationAppointmentReminder,
		Message:  fmt.Sprintf("Appointment with %s for %s", a.DoctorName, a.PatientName),
		Date:     &when,
		Priority: "medium",
	}
}

func blank(s *string) bool {
	return s == nil || strings.TrimSpace(*s) == ""
}

// missingFields lists the critical contact details p lacks.
func missingFields(p *patient.Patient) []string {
	var out []string
	if blank(p.EmergencyContactName) {
		out = append(out, "emergency contact")
	}
	if blank(p.EmergencyContactPhone) {
		out = append(out, "emergency phone")
	}
	if blank(p.Allergies) {
		out = append(out, "allergies")
	}
	return out
}

func missingInfo(p *patient.Patient) (Notification, bool) {
	fields := missingFields(p)
	if len(fields) == 0 {
		return Notification{}, false
	}
	id := p.ID
	return Notification{
		Type:      NotificationMissingInfo,
		Message:   fmt.Sprintf("Patient %s is missing: %s", p.FullName(), strings.Join(fields, ", ")),
		PatientID: &id,
		Priority:  "low",
	}, true
}
