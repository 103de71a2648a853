package dashboard

import (
	"context"
	"time"

	"github.com/medora/medora/internal/domain/account"
	"github.com/medora/medora/internal/domain/patient"
	"github.com/medora/medora/internal/platform/apierr"
	"github.com/medora/medora/internal/platform/auth"
)

// ProfileSource loads the account shown at the top of the dashboard.
type ProfileSource interface {
	Profile(ctx context.Context, actor *auth.Actor) (*account.User, error)
}

type Service struct {
	store    Store
	profiles ProfileSource
	loc      *time.Location
	now      func() time.Time
}

func NewService(store Store, profiles ProfileSource) *Service {
	return &Service{store: store, profiles: profiles, loc: time.UTC, now: time.Now}
}

// SetLocation sets the zone calendar days, weeks and months are cut in.
func (s *Service) SetLocation(loc *time.Location) {
	if loc != nil {
		s.loc = loc
	}
}

func (s *Service) clock() time.Time {
	return s.now().In(s.loc)
}

func failed(err error) error {
	if apierr.KindOf(err) != apierr.KindInternal {
		return err
	}
	return apierr.Internal(err)
}

// Overview builds the full dashboard for the actor's own patients.
func (s *Service) Overview(ctx context.Context, actor *auth.Actor) (*Overview, error) {
	user, err := s.profiles.Profile(ctx, actor)
	if err != nil {
		return nil, err
	}
	now := s.clock()
	today := startOfDay(now)
	owner := actor.ID

	out := &Overview{User: user}
	st := &out.Statistics
	if st.TotalPatients, err = s.store.CountPatients(ctx, owner, nil); err != nil {
		return nil, failed(err)
	}
	if st.TotalAppointments, err = s.store.CountAppointments(ctx, owner, nil, nil); err != nil {
		return nil, failed(err)
	}
	if st.GenderDistribution, err = s.store.GenderCounts(ctx, owner); err != nil {
		return nil, failed(err)
	}
	births, err := s.store.BirthDates(ctx, owner)
	if err != nil {
		return nil, failed(err)
	}
	st.AgeDistribution = ageDistribution(births, today)
	if st.BloodTypeDistribution, err = s.store.BloodTypeCounts(ctx, owner); err != nil {
		return nil, failed(err)
	}
	if st.AppointmentStatusDistribution, err = s.store.StatusCounts(ctx, owner); err != nil {
		return nil, failed(err)
	}
	created, err := s.store.RegistrationTimes(ctx, owner, trendStart(now))
	if err != nil {
		return nil, failed(err)
	}
	st.MonthlyRegistrations = monthlyRegistrations(created, now)

	if out.RecentPatients, err = s.store.RecentPatients(ctx, owner, recentLimit); err != nil {
		return nil, failed(err)
	}
	if out.RecentPatients == nil {
		out.RecentPatients = []*patient.Patient{}
	}
	// Upcoming covers today through the whole seventh day after it.
	out.UpcomingAppointments, err = s.store.ScheduledBetween(ctx, owner, today, today.AddDate(0, 0, upcomingDays+1), upcomingLimit)
	if err != nil {
		return nil, failed(err)
	}
	if out.UpcomingAppointments == nil {
		out.UpcomingAppointments = []*UpcomingAppointment{}
	}
	return out, nil
}

// QuickStats returns headline counts for the current day, week and month.
func (s *Service) QuickStats(ctx context.Context, actor *auth.Actor) (*QuickStats, error) {
	now := s.clock()
	today := startOfDay(now)
	tomorrow := today.AddDate(0, 0, 1)
	weekStart, weekEnd := weekBounds(now)
	monthStart := startOfMonth(now)
	owner := actor.ID

	var (
		qs  QuickStats
		err error
	)
	if qs.TotalPatients, err = s.store.CountPatients(ctx, owner, nil); err != nil {
		return nil, failed(err)
	}
	if qs.TodayAppointments, err = s.store.CountAppointments(ctx, owner, &today, &tomorrow); err != nil {
		return nil, failed(err)
	}
	if qs.WeekAppointments, err = s.store.CountAppointments(ctx, owner, &weekStart, &weekEnd); err != nil {
		return nil, failed(err)
	}
	if qs.NewPatientsMonth, err = s.store.CountPatients(ctx, owner, &monthStart); err != nil {
		return nil, failed(err)
	}
	return &qs, nil
}

// Notifications returns reminders for scheduled appointments in the next
// 24 hours followed by notices for patients missing contact details.
func (s *Service) Notifications(ctx context.Context, actor *auth.Actor) ([]Notification, error) {
	now := s.clock()
	out := []Notification{}

	upcoming, err := s.store.ScheduledBetween(ctx, actor.ID, now, now.Add(reminderWindow), 0)
	if err != nil {
		return nil, failed(err)
	}
	for _, a := range upcoming {
		out = append(out, reminder(a))
	}

	missing, err := s.store.MissingInfo(ctx, actor.ID, missingInfoLimit)
	if err != nil {
		return nil, failed(err)
	}
	for _, p := range missing {
		if n, ok := missingInfo(p); ok {
			out = append(out, n)
		}
	}
	return out, nil
}
