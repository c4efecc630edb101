package service

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/talktera/talktera-scheduling-service/internal/domain"
)

// CheckRecurrenceConflict reports whether a standing weekly booking at
// (weekday, startTime) would collide with the therapist's existing claims.
// A slot is claimed either by an accepted appointment sitting exactly on one
// of the weekly expansions of the candidate instant inside the horizon, or
// by an accepted recurrence at the same weekday and time.
func (s *schedulingService) CheckRecurrenceConflict(ctx context.Context, therapistId string, weekday domain.Weekday, startTime string) (bool, error) {
	if _, err := domain.ParseWeekday(string(weekday)); err != nil {
		return false, err
	}
	timeOfDay, err := domain.ParseTimeOfDay(startTime)
	if err != nil {
		return false, err
	}

	s.logger.WithFields(logrus.Fields{
		"Function":    "CheckRecurrenceConflict",
		"TherapistId": therapistId,
		"Weekday":     weekday,
		"StartTime":   startTime,
	}).Info("Checking recurrence conflict")

	if _, err := s.repo.GetTherapist(therapistId); err != nil {
		return false, err
	}

	first := nextOccurrence(s.now(), weekday.Time(), timeOfDay)
	return s.conflictAt(ctx, therapistId, first)
}

// conflictAt runs the two-level conflict check for a concrete instant. Both
// one-off bookings and recurrence requests go through it: either kind can
// establish a standing claim on the slot.
func (s *schedulingService) conflictAt(ctx context.Context, therapistId string, at time.Time) (bool, error) {
	weeks := s.opts.HorizonDays / 7

	instants := make([]time.Time, 0, weeks+1)
	for i := 0; i <= weeks; i++ {
		instants = append(instants, at.AddDate(0, 0, 7*i))
	}

	appointments, err := s.repo.CountAcceptedAppointmentsAt(therapistId, instants)
	if err != nil {
		return false, err
	}
	if appointments > 0 {
		return true, nil
	}

	recurrences, err := s.repo.CountAcceptedRecurrences(therapistId, domain.WeekdayOf(at), domain.TimeOfDayOf(at).String())
	if err != nil {
		return false, err
	}
	return recurrences > 0, nil
}

// nextOccurrence finds the first instant strictly after `from` that falls on
// the weekday at the given time of day.
func nextOccurrence(from time.Time, weekday time.Weekday, timeOfDay domain.TimeOfDay) time.Time {
	candidate := timeOfDay.At(from)
	for candidate.Weekday() != weekday || !candidate.After(from) {
		candidate = candidate.AddDate(0, 0, 1)
	}
	return candidate
}
