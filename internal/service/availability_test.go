package service_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talktera/talktera-scheduling-service/internal/domain"
)

func TestFindAvailableSlotsEmptySchedule(t *testing.T) {
	env := newTestEnv()
	env.repo.addTherapist("t1", 200)

	months, err := env.svc.FindAvailableSlots(context.Background(), "t1", 30, time.Time{})
	require.NoError(t, err)
	assert.Empty(t, months)
}

func TestFindAvailableSlotsUnknownTherapist(t *testing.T) {
	env := newTestEnv()

	_, err := env.svc.FindAvailableSlots(context.Background(), "ghost", 30, time.Time{})
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestFindAvailableSlotsWeekdaysOnly(t *testing.T) {
	env := newTestEnv()
	env.repo.addTherapist("t1", 200)
	env.repo.addHour("t1", domain.Monday, 9)
	env.repo.addHour("t1", domain.Wednesday, 14)
	// A Saturday template should never surface: weekends are not bookable.
	env.repo.addHour("t1", domain.Saturday, 10)

	months, err := env.svc.FindAvailableSlots(context.Background(), "t1", 30, time.Time{})
	require.NoError(t, err)
	require.NotEmpty(t, months)

	seen := map[string]bool{}
	for _, month := range months {
		require.NotEmpty(t, month.Days)
		var prev time.Time
		for _, day := range month.Days {
			wd := day.Date.Weekday()
			assert.NotEqual(t, time.Saturday, wd)
			assert.NotEqual(t, time.Sunday, wd)
			assert.True(t, day.Date.After(prev), "dates must increase within a month group")
			prev = day.Date
			for _, hour := range day.Hours {
				key := fmt.Sprintf("%s:%d", day.Date.Format("2006-01-02"), hour.StartHour)
				assert.False(t, seen[key], "duplicate (date, hour) pair %s", key)
				seen[key] = true
				assert.Equal(t, domain.WeekdayOf(day.Date), hour.Weekday)
			}
		}
	}

	// baseNow is Wed Mar 5; the window crosses into April, so two month
	// groups in first-encountered order.
	require.Len(t, months, 2)
	assert.Equal(t, 3, months[0].Month)
	assert.Equal(t, 4, months[1].Month)
}

func TestFindAvailableSlotsExcludesBookedSlot(t *testing.T) {
	env := newTestEnv()
	env.repo.addTherapist("t1", 200)
	env.repo.addHour("t1", domain.Monday, 9)

	// Monday March 10 at 09:00 is taken.
	booked := time.Date(2025, 3, 10, 9, 0, 0, 0, providerZone)
	env.repo.addAppointment(domain.Appointment{
		TherapistId: "t1",
		PatientId:   "p1",
		ScheduledTo: booked,
		Status:      domain.AppointmentAccepted,
		Type:        domain.TypeOneOff,
	})

	months, err := env.svc.FindAvailableSlots(context.Background(), "t1", 30, time.Time{})
	require.NoError(t, err)

	for _, month := range months {
		for _, day := range month.Days {
			if day.Date.Year() == 2025 && day.Date.Month() == time.March && day.Date.Day() == 10 {
				t.Fatalf("booked Monday should not appear, got %v", day)
			}
		}
	}
	// The following Monday is still free.
	assert.True(t, hasDay(months, 2025, time.March, 17), "March 17 should remain available")
}

func TestFindAvailableSlotsCanceledBookingFreesSlot(t *testing.T) {
	env := newTestEnv()
	env.repo.addTherapist("t1", 200)
	env.repo.addHour("t1", domain.Monday, 9)

	env.repo.addAppointment(domain.Appointment{
		TherapistId: "t1",
		PatientId:   "p1",
		ScheduledTo: time.Date(2025, 3, 10, 9, 0, 0, 0, providerZone),
		Status:      domain.AppointmentCanceled,
		Type:        domain.TypeOneOff,
	})

	months, err := env.svc.FindAvailableSlots(context.Background(), "t1", 30, time.Time{})
	require.NoError(t, err)
	assert.True(t, hasDay(months, 2025, time.March, 10), "canceled booking must not block the slot")
}

func TestFindAvailableSlotsDateOnlyStartKeepsCalendarDay(t *testing.T) {
	env := newTestEnv()
	env.repo.addTherapist("t1", 200)
	env.repo.addHour("t1", domain.Monday, 9)

	// A bare start date parses to UTC midnight, the previous evening in
	// the provider zone. The walk must still begin on the named day.
	start, err := time.Parse("2006-01-02", "2025-03-11")
	require.NoError(t, err)

	months, err := env.svc.FindAvailableSlots(context.Background(), "t1", 7, start)
	require.NoError(t, err)

	// Tuesday Mar 11 through Monday Mar 17: only the later Monday is in
	// the window.
	assert.True(t, hasDay(months, 2025, time.March, 17))
	assert.False(t, hasDay(months, 2025, time.March, 10), "window must not slide back onto the previous day")
}

func TestFindAvailableSlotsUsesCache(t *testing.T) {
	env := newTestEnv()
	env.repo.addTherapist("t1", 200)
	env.repo.addHour("t1", domain.Monday, 9)

	first, err := env.svc.FindAvailableSlots(context.Background(), "t1", 30, time.Time{})
	require.NoError(t, err)
	second, err := env.svc.FindAvailableSlots(context.Background(), "t1", 30, time.Time{})
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, env.cache.hits)
	assert.Equal(t, 1, env.cache.misses)
}

func hasDay(months []domain.MonthAvailability, year int, month time.Month, day int) bool {
	for _, m := range months {
		for _, d := range m.Days {
			if d.Date.Year() == year && d.Date.Month() == month && d.Date.Day() == day {
				return true
			}
		}
	}
	return false
}
