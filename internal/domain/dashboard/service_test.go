package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medora/medora/internal/domain/account"
	"github.com/medora/medora/internal/domain/patient"
	"github.com/medora/medora/internal/domain/scheduling"
	"github.com/medora/medora/internal/platform/apierr"
	"github.com/medora/medora/internal/platform/auth"
)

type window struct {
	from, to *time.Time
}

type fakeStore struct {
	patients     []*patient.Patient
	appointments []*UpcomingAppointment
	err          error

	countWindows []window
	sinceArgs    []*time.Time
	scheduled    []window
	limits       []int
}

func (f *fakeStore) owned(owner uuid.UUID) []*patient.Patient {
	var out []*patient.Patient
	for _, p := range f.patients {
		if p.UserID == owner && p.IsActive {
			out = append(out, p)
		}
	}
	return out
}

func (f *fakeStore) ownedAppointments(owner uuid.UUID) []*UpcomingAppointment {
	mine := make(map[uuid.UUID]bool)
	for _, p := range f.owned(owner) {
		mine[p.ID] = true
	}
	var out []*UpcomingAppointment
	for _, a := range f.appointments {
		if mine[a.PatientID] && a.IsActive {
			out = append(out, a)
		}
	}
	return out
}

func inWindow(t time.Time, from, to *time.Time) bool {
	return (from == nil || !t.Before(*from)) && (to == nil || t.Before(*to))
}

func (f *fakeStore) CountPatients(_ context.Context, owner uuid.UUID, since *time.Time) (int64, error) {
	f.sinceArgs = append(f.sinceArgs, since)
	if f.err != nil {
		return 0, f.err
	}
	var n int64
	for _, p := range f.owned(owner) {
		if inWindow(p.CreatedAt, since, nil) {
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) CountAppointments(_ context.Context, owner uuid.UUID, from, to *time.Time) (int64, error) {
	f.countWindows = append(f.countWindows, window{from, to})
	var n int64
	for _, a := range f.ownedAppointments(owner) {
		if inWindow(a.AppointmentDate, from, to) {
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) GenderCounts(_ context.Context, owner uuid.UUID) (map[string]int, error) {
	out := map[string]int{}
	for _, p := range f.owned(owner) {
		out[p.Gender]++
	}
	return out, nil
}

func (f *fakeStore) BloodTypeCounts(_ context.Context, owner uuid.UUID) (map[string]int, error) {
	out := map[string]int{}
	for _, p := range f.owned(owner) {
		if p.BloodType != nil {
			out[*p.BloodType]++
		}
	}
	return out, nil
}

func (f *fakeStore) StatusCounts(_ context.Context, owner uuid.UUID) (map[string]int, error) {
	out := map[string]int{}
	for _, a := range f.ownedAppointments(owner) {
		out[a.Status]++
	}
	return out, nil
}

func (f *fakeStore) BirthDates(_ context.Context, owner uuid.UUID) ([]time.Time, error) {
	var out []time.Time
	for _, p := range f.owned(owner) {
		out = append(out, p.DateOfBirth)
	}
	return out, nil
}

func (f *fakeStore) RegistrationTimes(_ context.Context, owner uuid.UUID, since time.Time) ([]time.Time, error) {
	var out []time.Time
	for _, p := range f.owned(owner) {
		if !p.CreatedAt.Before(since) {
			out = append(out, p.CreatedAt)
		}
	}
	return out, nil
}

func (f *fakeStore) RecentPatients(_ context.Context, owner uuid.UUID, limit int) ([]*patient.Patient, error) {
	f.limits = append(f.limits, limit)
	out := f.owned(owner)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeStore) ScheduledBetween(_ context.Context, owner uuid.UUID, from, to time.Time, limit int) ([]*UpcomingAppointment, error) {
	f.scheduled = append(f.scheduled, window{&from, &to})
	var out []*UpcomingAppointment
	for _, a := range f.ownedAppointments(owner) {
		if a.Status == scheduling.StatusScheduled && inWindow(a.AppointmentDate, &from, &to) {
			out = append(out, a)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeStore) MissingInfo(_ context.Context, owner uuid.UUID, limit int) ([]*patient.Patient, error) {
	var out []*patient.Patient
	for _, p := range f.owned(owner) {
		if len(missingFields(p)) > 0 {
			out = append(out, p)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type fakeProfiles struct{}

func (fakeProfiles) Profile(_ context.Context, actor *auth.Actor) (*account.User, error) {
	return &account.User{ID: actor.ID, Username: actor.Username, Role: actor.Role, IsActive: true}, nil
}

// Wednesday 2024-05-22 10:00 UTC.
var fixedNow = time.Date(2024, 5, 22, 10, 0, 0, 0, time.UTC)

type dashFixture struct {
	svc   *Service
	store *fakeStore
	actor *auth.Actor
}

func newDashFixture() *dashFixture {
	store := &fakeStore{}
	svc := NewService(store, fakeProfiles{})
	svc.now = func() time.Time { return fixedNow }
	return &dashFixture{
		svc:   svc,
		store: store,
		actor: &auth.Actor{ID: uuid.New(), Username: "alice", Role: auth.RoleUser, Active: true},
	}
}

func (f *dashFixture) addPatient(owner uuid.UUID, first, gender string, dob, created time.Time, blood *string) *patient.Patient {
	p := &patient.Patient{
		ID: uuid.New(), UserID: owner, FirstName: first, LastName: "Doe", Gender: gender,
		DateOfBirth: dob, BloodType: blood, CreatedAt: created, IsActive: true,
		EmergencyContactName: sp("Kin"), EmergencyContactPhone: sp("5550000000"), Allergies: sp("None"),
	}
	f.store.patients = append(f.store.patients, p)
	return p
}

func (f *dashFixture) addAppointment(p *patient.Patient, at time.Time, status string) *UpcomingAppointment {
	a := &UpcomingAppointment{
		Appointment: scheduling.Appointment{
			ID: uuid.New(), PatientID: p.ID, DoctorName: "Dr. Who", AppointmentDate: at, Status: status, IsActive: true,
		},
		PatientName: p.FirstName + " " + p.LastName,
	}
	f.store.appointments = append(f.store.appointments, a)
	return a
}

func TestOverview_ScopedStatistics(t *testing.T) {
	f := newDashFixture()
	jane := f.addPatient(f.actor.ID, "Jane", "Female", date(1990, 1, 1), fixedNow.AddDate(0, -1, 0), sp("A+"))
	f.addPatient(f.actor.ID, "Tim", "Male", date(2015, 6, 1), fixedNow, nil)
	stranger := f.addPatient(uuid.New(), "Other", "Male", date(1950, 1, 1), fixedNow, sp("O-"))
	f.addAppointment(jane, fixedNow.Add(48*time.Hour), scheduling.StatusScheduled)
	f.addAppointment(jane, fixedNow.AddDate(0, 0, -3), "completed")
	f.addAppointment(stranger, fixedNow.Add(time.Hour), scheduling.StatusScheduled)

	out, err := f.svc.Overview(context.Background(), f.actor)
	require.NoError(t, err)

	st := out.Statistics
	assert.Equal(t, f.actor.ID, out.User.ID)
	assert.EqualValues(t, 2, st.TotalPatients)
	assert.EqualValues(t, 2, st.TotalAppointments)
	assert.Equal(t, map[string]int{"Female": 1, "Male": 1}, st.GenderDistribution)
	assert.Equal(t, map[string]int{"30-49": 1, "0-17": 1}, st.AgeDistribution)
	assert.Equal(t, map[string]int{"A+": 1}, st.BloodTypeDistribution)
	assert.Equal(t, map[string]int{"scheduled": 1, "completed": 1}, st.AppointmentStatusDistribution)
	assert.Len(t, st.MonthlyRegistrations, 6)
	assert.Equal(t, 1, st.MonthlyRegistrations["2024-04"])
	assert.Equal(t, 1, st.MonthlyRegistrations["2024-05"])

	assert.Len(t, out.RecentPatients, 2)
	require.Len(t, out.UpcomingAppointments, 1)
	assert.Equal(t, jane.ID, out.UpcomingAppointments[0].PatientID)
	assert.Equal(t, []int{recentLimit}, f.store.limits)

	require.Len(t, f.store.scheduled, 1)
	w := f.store.scheduled[0]
	assert.True(t, w.from.Equal(date(2024, 5, 22)))
	assert.True(t, w.to.Equal(date(2024, 5, 30)))
}

func TestOverview_EmptyCollectionsAreNotNil(t *testing.T) {
	f := newDashFixture()
	out, err := f.svc.Overview(context.Background(), f.actor)
	require.NoError(t, err)
	assert.NotNil(t, out.RecentPatients)
	assert.NotNil(t, out.UpcomingAppointments)
	assert.Empty(t, out.Statistics.AgeDistribution)
}

func TestOverview_StoreFailureIsInternal(t *testing.T) {
	f := newDashFixture()
	f.store.err = errors.New("connection refused")

	_, err := f.svc.Overview(context.Background(), f.actor)
	require.Error(t, err)
	assert.True(t, apierr.Is(err, apierr.KindInternal))
}

func TestQuickStats_Windows(t *testing.T) {
	f := newDashFixture()
	p := f.addPatient(f.actor.ID, "Jane", "Female", date(1990, 1, 1), date(2024, 5, 2), nil)
	f.addPatient(f.actor.ID, "Old", "Male", date(1980, 1, 1), date(2024, 4, 30), nil)
	// Today, Monday and Sunday of this week, then next Monday.
	f.addAppointment(p, fixedNow.Add(2*time.Hour), scheduling.StatusScheduled)
	f.addAppointment(p, date(2024, 5, 20).Add(8*time.Hour), "completed")
	f.addAppointment(p, date(2024, 5, 26).Add(23*time.Hour), "cancelled")
	f.addAppointment(p, date(2024, 5, 27).Add(time.Hour), scheduling.StatusScheduled)

	qs, err := f.svc.QuickStats(context.Background(), f.actor)
	require.NoError(t, err)
	assert.EqualValues(t, 2, qs.TotalPatients)
	assert.EqualValues(t, 1, qs.TodayAppointments)
	assert.EqualValues(t, 3, qs.WeekAppointments)
	assert.EqualValues(t, 1, qs.NewPatientsMonth)

	require.Len(t, f.store.sinceArgs, 2)
	require.NotNil(t, f.store.sinceArgs[1])
	assert.True(t, f.store.sinceArgs[1].Equal(date(2024, 5, 1)))
}

func TestQuickStats_UsesLocation(t *testing.T) {
	f := newDashFixture()
	loc := time.FixedZone("UTC+14", 14*60*60)
	f.svc.SetLocation(loc)

	_, err := f.svc.QuickStats(context.Background(), f.actor)
	require.NoError(t, err)

	// 10:00 UTC on the 22nd is already the 23rd at UTC+14.
	require.NotEmpty(t, f.store.countWindows)
	today := f.store.countWindows[0]
	assert.True(t, today.from.Equal(time.Date(2024, 5, 23, 0, 0, 0, 0, loc)))
	assert.True(t, today.to.Equal(time.Date(2024, 5, 24, 0, 0, 0, 0, loc)))
}

func TestNotifications(t *testing.T) {
	f := newDashFixture()
	p := f.addPatient(f.actor.ID, "Jane", "Female", date(1990, 1, 1), fixedNow, nil)
	f.addAppointment(p, fixedNow.Add(3*time.Hour), scheduling.StatusScheduled)
	f.addAppointment(p, fixedNow.Add(30*time.Hour), scheduling.StatusScheduled)
	f.addAppointment(p, fixedNow.Add(time.Hour), "cancelled")
	f.addAppointment(p, fixedNow.Add(-time.Hour), scheduling.StatusScheduled)

	for i := 0; i < 7; i++ {
		q := f.addPatient(f.actor.ID, "Incomplete", "Male", date(1990, 1, 1), fixedNow, nil)
		q.Allergies = nil
	}

	items, err := f.svc.Notifications(context.Background(), f.actor)
	require.NoError(t, err)
	require.Len(t, items, 1+missingInfoLimit)

	assert.Equal(t, NotificationAppointmentReminder, items[0].Type)
	assert.Equal(t, "Appointment with Dr. Who for Jane Doe", items[0].Message)
	for _, n := range items[1:] {
		assert.Equal(t, NotificationMissingInfo, n.Type)
		assert.Equal(t, "Patient Incomplete Doe is missing: allergies", n.Message)
	}
}

func TestNotifications_EmptyIsNotNil(t *testing.T) {
	f := newDashFixture()
	items, err := f.svc.Notifications(context.Background(), f.actor)
	require.NoError(t, err)
	assert.NotNil(t, items)
	assert.Empty(t, items)
}

func TestHandler_Routes(t *testing.T) {
	f := newDashFixture()
	f.addPatient(f.actor.ID, "Jane", "Female", date(1990, 1, 1), fixedNow, nil)

	e := echo.New()
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		_ = c.JSON(apierr.KindOf(err).Status(), map[string]string{"error": err.Error()})
	}
	NewHandler(f.svc).RegisterRoutes(e.Group("/api"))

	get := func(path string, actor *auth.Actor) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		if actor != nil {
			req = req.WithContext(auth.WithActor(req.Context(), actor))
		}
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		return rec
	}

	rec := get("/api/dashboard", f.actor)
	require.Equal(t, http.StatusOK, rec.Code)
	var overview map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &overview))
	for _, key := range []string{"user", "statistics", "recent_patients", "upcoming_appointments"} {
		assert.Contains(t, overview, key)
	}

	rec = get("/api/dashboard/quick-stats", f.actor)
	require.Equal(t, http.StatusOK, rec.Code)
	var qs struct {
		QuickStats QuickStats `json:"quick_stats"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &qs))
	assert.EqualValues(t, 1, qs.QuickStats.TotalPatients)

	rec = get("/api/dashboard/notifications", f.actor)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"notifications":[]}`, rec.Body.String())

	f.store.patients[0].Allergies = nil
	rec = get("/api/dashboard/notifications", f.actor)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"notifications":[{"type":"missing_info","message":"Patient Jane Doe is missing: allergies","patient_id":"`+
		f.store.patients[0].ID.String()+`","priority":"low"}]}`, rec.Body.String())

	rec = get("/api/dashboard", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
