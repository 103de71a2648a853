package dashboard

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medora/medora/internal/domain/patient"
	"github.com/medora/medora/internal/domain/scheduling"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func sp(s string) *string { return &s }

func TestAgeBucket(t *testing.T) {
	tests := []struct {
		age  int
		want string
	}{
		{0, "0-17"},
		{17, "0-17"},
		{18, "18-29"},
		{29, "18-29"},
		{30, "30-49"},
		{49, "30-49"},
		{50, "50-64"},
		{64, "50-64"},
		{65, "65+"},
		{101, "65+"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ageBucket(tt.age), "age %d", tt.age)
	}
}

func TestAgeDistribution_UsesBirthdayNotYear(t *testing.T) {
	day := date(2024, 3, 10)
	births := []time.Time{
		date(2006, 3, 10), // 18 today
		date(2006, 3, 11), // 17 until tomorrow
		date(1959, 1, 1),  // 65
		date(1990, 6, 1),  // 33
	}
	got := ageDistribution(births, day)
	assert.Equal(t, map[string]int{"18-29": 1, "0-17": 1, "65+": 1, "30-49": 1}, got)
	assert.Empty(t, ageDistribution(nil, day))
}

func TestWeekBounds(t *testing.T) {
	loc := time.FixedZone("UTC-5", -5*60*60)
	tests := []struct {
		name string
		at   time.Time
		want time.Time
	}{
		{"monday", time.Date(2024, 5, 20, 9, 0, 0, 0, loc), time.Date(2024, 5, 20, 0, 0, 0, 0, loc)},
		{"wednesday", time.Date(2024, 5, 22, 23, 59, 0, 0, loc), time.Date(2024, 5, 20, 0, 0, 0, 0, loc)},
		{"sunday", time.Date(2024, 5, 26, 12, 0, 0, 0, loc), time.Date(2024, 5, 20, 0, 0, 0, 0, loc)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, end := weekBounds(tt.at)
			assert.True(t, start.Equal(tt.want), "start %v", start)
			assert.True(t, end.Equal(tt.want.AddDate(0, 0, 7)), "end %v", end)
		})
	}
}

func TestMonthlyRegistrations_TrailingWindow(t *testing.T) {
	now := time.Date(2024, 2, 15, 12, 0, 0, 0, time.UTC)
	created := []time.Time{
		time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 2, 14, 0, 0, 0, 0, time.UTC),
		time.Date(2023, 9, 3, 0, 0, 0, 0, time.UTC),
		time.Date(2023, 8, 31, 0, 0, 0, 0, time.UTC), // outside the window
	}

	got := monthlyRegistrations(created, now)
	assert.Equal(t, map[string]int{
		"2023-09": 1,
		"2023-10": 0,
		"2023-11": 0,
		"2023-12": 0,
		"2024-01": 0,
		"2024-02": 2,
	}, got)
	assert.True(t, trendStart(now).Equal(date(2023, 9, 1)))
}

func TestMonthlyRegistrations_KeysInLocalZone(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*60*60)
	now := time.Date(2024, 3, 5, 0, 0, 0, 0, loc)
	// 22:00 UTC on Feb 29 is already March 1 locally.
	created := []time.Time{time.Date(2024, 2, 29, 22, 0, 0, 0, time.UTC)}

	got := monthlyRegistrations(created, now)
	assert.Equal(t, 1, got["2024-03"])
	assert.Equal(t, 0, got["2024-02"])
}

func TestMissingInfo(t *testing.T) {
	p := &patient.Patient{ID: uuid.New(), FirstName: "Jane", LastName: "Smith", EmergencyContactName: sp("John"), EmergencyContactPhone: sp("  ")}

	n, ok := missingInfo(p)
	require.True(t, ok)
	assert.Equal(t, NotificationMissingInfo, n.Type)
	assert.Equal(t, "Patient Jane Smith is missing: emergency phone, allergies", n.Message)
	assert.Equal(t, "low", n.Priority)
	require.NotNil(t, n.PatientID)
	assert.Equal(t, p.ID, *n.PatientID)
	assert.Nil(t, n.Date)

	p.EmergencyContactPhone = sp("5551234567")
	p.Allergies = sp("None")
	_, ok = missingInfo(p)
	assert.False(t, ok)
}

func TestReminder(t *testing.T) {
	when := time.Date(2024, 5, 20, 14, 30, 0, 0, time.UTC)
	a := &UpcomingAppointment{
		Appointment: scheduling.Appointment{DoctorName: "Dr. House", AppointmentDate: when},
		PatientName: "Jane Smith",
	}

	n := reminder(a)
	assert.Equal(t, NotificationAppointmentReminder, n.Type)
	assert.Equal(t, "Appointment with Dr. House for Jane Smith", n.Message)
	assert.Equal(t, "medium", n.Priority)
	require.NotNil(t, n.Date)
	assert.True(t, n.Date.Equal(when))
	assert.Nil(t, n.PatientID)
}
