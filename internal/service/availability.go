package service

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/talktera/talktera-scheduling-service/internal/domain"
)

// FindAvailableSlots derives the therapist's open slots over the lookahead
// window: weekday dates only, Hour templates matched by weekday name, blocks
// already claimed by a non-canceled appointment excluded, results grouped by
// calendar month in the order months are first encountered.
func (s *schedulingService) FindAvailableSlots(ctx context.Context, therapistId string, numberOfDays int, start time.Time) ([]domain.MonthAvailability, error) {
	if numberOfDays <= 0 {
		numberOfDays = s.opts.LookaheadDays
	}
	if start.IsZero() {
		start = s.now()
	}
	// Keep the caller's calendar day. Date-only input parses to UTC
	// midnight, which sits on the previous day in the provider zone.
	start = time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, s.opts.Location)

	s.logger.WithFields(logrus.Fields{
		"Function":    "FindAvailableSlots",
		"TherapistId": therapistId,
		"Days":        numberOfDays,
	}).Info("Computing availability")

	window := fmt.Sprintf("%s:%d", start.Format("2006-01-02"), numberOfDays)
	if s.cache != nil {
		if months, ok := s.cache.Get(ctx, therapistId, window); ok {
			return months, nil
		}
	}

	therapist, err := s.repo.GetTherapistWithSchedule(therapistId)
	if err != nil {
		return nil, err
	}

	months := buildAvailability(therapist, start, numberOfDays)
	if s.cache != nil {
		s.cache.Set(ctx, therapistId, window, months)
	}
	return months, nil
}

func buildAvailability(therapist *domain.Therapist, start time.Time, numberOfDays int) []domain.MonthAvailability {
	months := []domain.MonthAvailability{}
	index := map[string]int{}

	for offset := 0; offset < numberOfDays; offset++ {
		day := start.AddDate(0, 0, offset)
		date := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
		if date.Weekday() == time.Saturday || date.Weekday() == time.Sunday {
			continue
		}

		weekday := domain.WeekdayOf(date)
		var open []domain.Hour
		for _, hour := range therapist.Hours {
			if hour.Weekday != weekday {
				continue
			}
			if hourTaken(therapist.Appointments, date, hour) {
				continue
			}
			open = append(open, hour)
		}
		if len(open) == 0 {
			continue
		}

		key := fmt.Sprintf("%d-%d", date.Year(), int(date.Month()))
		pos, ok := index[key]
		if !ok {
			months = append(months, domain.MonthAvailability{
				Month: int(date.Month()),
				Year:  date.Year(),
			})
			pos = len(months) - 1
			index[key] = pos
		}
		months[pos].Days = append(months[pos].Days, domain.DayAvailability{
			Date:  date,
			Hours: open,
		})
	}
	return months
}

// hourTaken reports whether a non-canceled appointment of the therapist
// already occupies the hour block on the given date.
func hourTaken(appointments []domain.Appointment, date time.Time, hour domain.Hour) bool {
	for _, appointment := range appointments {
		if appointment.Status == domain.AppointmentCanceled {
			continue
		}
		scheduled := appointment.ScheduledTo.In(date.Location())
		sameDay := scheduled.Year() == date.Year() &&
			scheduled.Month() == date.Month() &&
			scheduled.Day() == date.Day()
		if sameDay && scheduled.Hour() == hour.StartHour {
			return true
		}
	}
	return false
}
