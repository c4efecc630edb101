package service

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/talktera/talktera-scheduling-service/internal/domain"
)

// RequestRecurrence registers a standing weekly booking request. Like
// BookAppointment, a conflict is a normal negative result.
func (s *schedulingService) RequestRecurrence(ctx context.Context, request RecurrenceRequest) (*domain.Recurrence, bool, error) {
	s.logger.WithFields(logrus.Fields{
		"Function":    "RequestRecurrence",
		"TherapistId": request.TherapistId,
		"PatientId":   request.PatientId,
		"Weekday":     request.Weekday,
		"StartTime":   request.StartTime,
	}).Info("Requesting recurrence")

	if _, err := domain.ParseWeekday(string(request.Weekday)); err != nil {
		return nil, false, err
	}
	timeOfDay, err := domain.ParseTimeOfDay(request.StartTime)
	if err != nil {
		return nil, false, err
	}
	if request.StartDate.IsZero() {
		return nil, false, &domain.ValidationError{Field: "startDate", Reason: "anchor date is required"}
	}
	therapist, err := s.repo.GetTherapist(request.TherapistId)
	if err != nil {
		return nil, false, err
	}
	if _, err := s.repo.GetPatient(request.PatientId); err != nil {
		return nil, false, err
	}

	conflict, err := s.CheckRecurrenceConflict(ctx, request.TherapistId, request.Weekday, request.StartTime)
	if err != nil {
		return nil, false, err
	}
	if conflict {
		return nil, true, nil
	}

	// Anchor on the calendar day the caller named. Date-only input parses
	// to UTC midnight; converting that instant would shift it to the
	// previous day in the provider zone.
	anchor := request.StartDate
	recurrence := &domain.Recurrence{
		TherapistId: request.TherapistId,
		PatientId:   request.PatientId,
		Weekday:     request.Weekday,
		StartTime:   timeOfDay.String(),
		StartDate:   time.Date(anchor.Year(), anchor.Month(), anchor.Day(), 0, 0, 0, 0, s.opts.Location),
		Modality:    request.Modality,
		Status:      domain.RecurrencePendent,
	}
	if err := s.repo.CreateRecurrence(recurrence); err != nil {
		return nil, false, err
	}
	s.notify(ctx, domain.AppointmentEvent{
		PushToken:   therapist.PushToken,
		Email:       therapist.Email,
		Title:       "New weekly booking request",
		Body:        fmt.Sprintf("A patient requested every %s at %s", request.Weekday, timeOfDay),
		ScheduledTo: recurrence.StartDate.Format(time.RFC3339),
		Kind:        "recurrence_requested",
	})
	return recurrence, false, nil
}

// AcceptRecurrence promotes a pendent recurrence and materializes its
// instances. Calendar events for the new instances are synced best-effort
// afterwards so a calendar outage never loses booked sessions.
func (s *schedulingService) AcceptRecurrence(ctx context.Context, recurrenceId uint) (*domain.Recurrence, int, error) {
	s.logger.WithFields(logrus.Fields{
		"Function":     "AcceptRecurrence",
		"RecurrenceId": recurrenceId,
	}).Info("Accepting recurrence")

	recurrence, err := s.repo.GetRecurrence(recurrenceId)
	if err != nil {
		return nil, 0, err
	}
	if recurrence.Status != domain.RecurrencePendent {
		return nil, 0, &domain.ValidationError{Field: "status", Reason: fmt.Sprintf("recurrence is %s, expected PENDENT", recurrence.Status)}
	}

	recurrence.Status = domain.RecurrenceAccepted
	if err := s.repo.SaveRecurrence(recurrence); err != nil {
		return nil, 0, err
	}

	created, err := s.CreateRecurrenceInstances(ctx, recurrence.ID)
	if err != nil {
		return recurrence, created, err
	}

	s.syncInstanceCalendarEvents(ctx, recurrence)

	patient, perr := s.repo.GetPatient(recurrence.PatientId)
	if perr == nil {
		s.notify(ctx, domain.AppointmentEvent{
			PushToken:   patient.PushToken,
			Email:       patient.Email,
			Title:       "Weekly booking confirmed",
			Body:        fmt.Sprintf("Your weekly session every %s at %s is confirmed", recurrence.Weekday, recurrence.StartTime),
			ScheduledTo: recurrence.StartDate.Format(time.RFC3339),
			Kind:        "recurrence_accepted",
		})
	}
	return recurrence, created, nil
}

// CreateRecurrenceInstances materializes an accepted recurrence into concrete
// accepted RECURRENT appointments across the horizon. A missing recurrence
// aborts before anything is written; a store failure mid-run aborts the
// remaining creations without compensating the ones already written.
func (s *schedulingService) CreateRecurrenceInstances(ctx context.Context, recurrenceId uint) (int, error) {
	recurrence, err := s.repo.GetRecurrence(recurrenceId)
	if err != nil {
		s.logger.WithError(err).Error("Recurrence lookup failed, no instances created")
		return 0, err
	}

	timeOfDay, err := domain.ParseTimeOfDay(recurrence.StartTime)
	if err != nil {
		return 0, err
	}

	first := timeOfDay.At(recurrence.StartDate.In(s.opts.Location))
	horizon := s.now().AddDate(0, 0, s.opts.HorizonDays)
	weeksToSchedule := int(horizon.Sub(first).Hours() / (24 * 7))

	s.logger.WithFields(logrus.Fields{
		"Function":     "CreateRecurrenceInstances",
		"RecurrenceId": recurrenceId,
		"FirstInstant": first,
		"Weeks":        weeksToSchedule,
	}).Info("Materializing recurrence")

	created := 0
	for i := 1; i <= weeksToSchedule; i++ {
		scheduledTo := first.AddDate(0, 0, 7*i+s.opts.AnchorOffsetDays)
		instance := &domain.Appointment{
			TherapistId:  recurrence.TherapistId,
			PatientId:    recurrence.PatientId,
			ScheduledTo:  scheduledTo,
			Modality:     recurrence.Modality,
			Status:       domain.AppointmentAccepted,
			Type:         domain.TypeRecurrent,
			RecurrenceId: &recurrence.ID,
		}
		if err := s.repo.CreateAppointment(instance); err != nil {
			s.logger.WithFields(logrus.Fields{
				"RecurrenceId": recurrenceId,
				"ScheduledTo":  scheduledTo,
				"Error":        err,
			}).Error("Instance creation failed, aborting remaining materialization")
			return created, err
		}
		created++
	}

	s.invalidateAvailability(ctx, recurrence.TherapistId)
	s.logger.WithFields(logrus.Fields{
		"RecurrenceId": recurrenceId,
		"Created":      created,
	}).Info("Recurrence materialized")
	return created, nil
}

// CancelRecurrence runs the three cleanup phases independently: recurrence
// status, future unpaid instances, external calendar events. A failed phase
// is logged and the remaining phases still run.
func (s *schedulingService) CancelRecurrence(ctx context.Context, recurrenceId uint) error {
	recurrence, err := s.repo.GetRecurrence(recurrenceId)
	if err != nil {
		return err
	}

	s.logger.WithFields(logrus.Fields{
		"Function":     "CancelRecurrence",
		"RecurrenceId": recurrenceId,
	}).Info("Cancelling recurrence")

	if err := s.repo.UpdateRecurrenceStatus(recurrence.ID, domain.RecurrenceCanceled); err != nil {
		s.logger.WithError(err).Error("Failed to cancel recurrence record")
	}

	instances, err := s.repo.FindFutureUnpaidInstances(recurrence.ID, s.now())
	if err != nil {
		s.logger.WithError(err).Error("Failed to load recurrence instances for cancellation")
		instances = nil
	}
	if len(instances) > 0 {
		ids := make([]uint, 0, len(instances))
		for _, instance := range instances {
			ids = append(ids, instance.ID)
		}
		if err := s.repo.CancelAppointments(ids); err != nil {
			s.logger.WithError(err).Error("Failed to cancel recurrence instances")
		}
	}

	for _, instance := range instances {
		if instance.CalendarEventId == "" {
			continue
		}
		if err := s.calendar.DeleteEvent(ctx, instance.CalendarEventId); err != nil {
			s.logger.WithFields(logrus.Fields{
				"AppointmentId":   instance.ID,
				"CalendarEventId": instance.CalendarEventId,
				"Error":           err,
			}).Warn("Calendar event cleanup failed")
		}
	}

	s.invalidateAvailability(ctx, recurrence.TherapistId)
	s.logger.WithField("RecurrenceId", recurrenceId).Info("Recurrence cancellation finished")
	return nil
}

// RollRecurrences tops up accepted recurrences so the horizon stays
// populated as time advances. Instants that already exist are skipped, which
// makes the job idempotent. Invoked by the cron scheduler.
func (s *schedulingService) RollRecurrences() {
	s.logger.Info("Rolling recurrence horizon")

	recurrences, err := s.repo.ListAcceptedRecurrences()
	if err != nil {
		s.logger.WithError(err).Error("Failed to list accepted recurrences")
		return
	}

	ctx := context.Background()
	for _, recurrence := range recurrences {
		timeOfDay, err := domain.ParseTimeOfDay(recurrence.StartTime)
		if err != nil {
			s.logger.WithError(err).WithField("RecurrenceId", recurrence.ID).Warn("Skipping recurrence with bad start time")
			continue
		}
		existing, err := s.repo.FindInstances(recurrence.ID)
		if err != nil {
			s.logger.WithError(err).WithField("RecurrenceId", recurrence.ID).Warn("Skipping recurrence, instance lookup failed")
			continue
		}
		taken := make(map[int64]bool, len(existing))
		for _, instance := range existing {
			taken[instance.ScheduledTo.Unix()] = true
		}

		first := timeOfDay.At(recurrence.StartDate.In(s.opts.Location))
		horizon := s.now().AddDate(0, 0, s.opts.HorizonDays)
		createdAny := false
		for i := 1; ; i++ {
			scheduledTo := first.AddDate(0, 0, 7*i+s.opts.AnchorOffsetDays)
			if scheduledTo.After(horizon) {
				break
			}
			if scheduledTo.Before(s.now()) || taken[scheduledTo.Unix()] {
				continue
			}
			instance := &domain.Appointment{
				TherapistId:  recurrence.TherapistId,
				PatientId:    recurrence.PatientId,
				ScheduledTo:  scheduledTo,
				Modality:     recurrence.Modality,
				Status:       domain.AppointmentAccepted,
				Type:         domain.TypeRecurrent,
				RecurrenceId: &recurrence.ID,
			}
			if err := s.repo.CreateAppointment(instance); err != nil {
				s.logger.WithError(err).WithField("RecurrenceId", recurrence.ID).Error("Horizon roll stopped for recurrence")
				break
			}
			createdAny = true
		}
		if createdAny {
			s.invalidateAvailability(ctx, recurrence.TherapistId)
		}
	}
}

// syncInstanceCalendarEvents creates calendar events for instances that don't
// have one yet. Failures are logged per instance and never abort the batch.
func (s *schedulingService) syncInstanceCalendarEvents(ctx context.Context, recurrence *domain.Recurrence) {
	therapist, err := s.repo.GetTherapist(recurrence.TherapistId)
	if err != nil {
		s.logger.WithError(err).Warn("Skipping calendar sync, therapist lookup failed")
		return
	}
	patient, err := s.repo.GetPatient(recurrence.PatientId)
	if err != nil {
		s.logger.WithError(err).Warn("Skipping calendar sync, patient lookup failed")
		return
	}
	instances, err := s.repo.FindInstances(recurrence.ID)
	if err != nil {
		s.logger.WithError(err).Warn("Skipping calendar sync, instance lookup failed")
		return
	}
	for _, instance := range instances {
		if instance.CalendarEventId != "" || instance.Status != domain.AppointmentAccepted {
			continue
		}
		eventId, err := s.calendar.CreateEvent(ctx, therapist.Email, patient.Email,
			instance.ScheduledTo, instance.ScheduledTo.Add(sessionDuration),
			instance.Modality == domain.ModalityOnline)
		if err != nil {
			s.logger.WithError(err).WithField("AppointmentId", instance.ID).Warn("Calendar event creation failed")
			continue
		}
		if err := s.repo.SetCalendarEvent(instance.ID, eventId); err != nil {
			s.logger.WithError(err).WithField("AppointmentId", instance.ID).Warn("Failed to store calendar event id")
		}
	}
}
