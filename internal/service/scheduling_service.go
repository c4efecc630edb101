package service

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/talktera/talktera-scheduling-service/internal/domain"
	"github.com/talktera/talktera-scheduling-service/internal/repository"
)

type SchedulingService interface {
	FindAvailableSlots(ctx context.Context, therapistId string, numberOfDays int, start time.Time) ([]domain.MonthAvailability, error)
	CheckRecurrenceConflict(ctx context.Context, therapistId string, weekday domain.Weekday, startTime string) (bool, error)
	CreateRecurrenceInstances(ctx context.Context, recurrenceId uint) (int, error)
	CancelRecurrence(ctx context.Context, recurrenceId uint) error

	BookAppointment(ctx context.Context, booking BookingRequest) (*domain.Appointment, bool, error)
	RespondToAppointment(ctx context.Context, appointmentId uint, accept bool) (*domain.Appointment, error)
	CancelAppointment(ctx context.Context, appointmentId uint) error
	GetUpcomingAppointments(ctx context.Context, patientId string) ([]domain.Appointment, error)

	RequestRecurrence(ctx context.Context, request RecurrenceRequest) (*domain.Recurrence, bool, error)
	AcceptRecurrence(ctx context.Context, recurrenceId uint) (*domain.Recurrence, int, error)
	SetWeeklyHours(ctx context.Context, therapistId string, hours []HourInput) error

	SendDailyReminders()
	RollRecurrences()
}

type BookingRequest struct {
	TherapistId string
	PatientId   string
	ScheduledTo time.Time
	Modality    domain.Modality
}

type RecurrenceRequest struct {
	TherapistId string
	PatientId   string
	Weekday     domain.Weekday
	StartTime   string
	StartDate   time.Time
	Modality    domain.Modality
}

type HourInput struct {
	Weekday   domain.Weekday
	StartHour int
}

// Options carries the temporal knobs of the scheduling engine.
type Options struct {
	// LookaheadDays is the availability search window.
	LookaheadDays int
	// HorizonDays bounds conflict expansion and recurrence materialization.
	HorizonDays int
	// AnchorOffsetDays is added to every materialized instance relative to
	// the recurrence anchor. Kept configurable until product settles the
	// intended spacing; the shipped behavior uses one day.
	AnchorOffsetDays int
	// ApplicationFeePercent of the session price retained by the platform.
	ApplicationFeePercent float64
	// Location is the provider's canonical zone for slot arithmetic.
	Location *time.Location
	// Now is overridable for tests.
	Now func() time.Time
}

func (o Options) withDefaults() Options {
	if o.LookaheadDays <= 0 {
		o.LookaheadDays = 30
	}
	if o.HorizonDays <= 0 {
		o.HorizonDays = 31
	}
	if o.ApplicationFeePercent <= 0 {
		o.ApplicationFeePercent = 10
	}
	if o.Location == nil {
		o.Location = time.FixedZone("provider", -3*60*60)
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

type schedulingService struct {
	repo     repository.SchedulingRepository
	calendar CalendarClient
	payment  PaymentClient
	notifier Notifier
	cache    AvailabilityCache
	logger   *logrus.Logger
	opts     Options
}

func NewSchedulingService(
	repo repository.SchedulingRepository,
	calendar CalendarClient,
	payment PaymentClient,
	notifier Notifier,
	cache AvailabilityCache,
	logger *logrus.Logger,
	opts Options,
) SchedulingService {
	return &schedulingService{
		repo:     repo,
		calendar: calendar,
		payment:  payment,
		notifier: notifier,
		cache:    cache,
		logger:   logger,
		opts:     opts.withDefaults(),
	}
}

func (s *schedulingService) now() time.Time {
	return s.opts.Now().In(s.opts.Location)
}

const sessionDuration = time.Hour

// BookAppointment registers a one-off booking request. The conflict check is
// a normal negative result: (nil, true, nil) means the slot is taken and the
// caller should offer alternatives.
func (s *schedulingService) BookAppointment(ctx context.Context, booking BookingRequest) (*domain.Appointment, bool, error) {
	s.logger.WithFields(logrus.Fields{
		"Function":    "BookAppointment",
		"TherapistId": booking.TherapistId,
		"PatientId":   booking.PatientId,
		"ScheduledTo": booking.ScheduledTo,
	}).Info("Booking one-off appointment")

	if booking.ScheduledTo.IsZero() || !booking.ScheduledTo.After(s.now()) {
		return nil, false, &domain.ValidationError{Field: "scheduledTo", Reason: "must be in the future"}
	}
	therapist, err := s.repo.GetTherapist(booking.TherapistId)
	if err != nil {
		return nil, false, err
	}
	if _, err := s.repo.GetPatient(booking.PatientId); err != nil {
		return nil, false, err
	}

	scheduledTo := booking.ScheduledTo.In(s.opts.Location)
	conflict, err := s.conflictAt(ctx, booking.TherapistId, scheduledTo)
	if err != nil {
		return nil, false, err
	}
	if conflict {
		s.logger.WithFields(logrus.Fields{
			"Function":    "BookAppointment",
			"TherapistId": booking.TherapistId,
			"ScheduledTo": scheduledTo,
		}).Info("Requested slot already claimed")
		return nil, true, nil
	}

	appointment := &domain.Appointment{
		TherapistId: booking.TherapistId,
		PatientId:   booking.PatientId,
		ScheduledTo: scheduledTo,
		Modality:    booking.Modality,
		Status:      domain.AppointmentPendent,
		Type:        domain.TypeOneOff,
	}
	if err := s.repo.CreateAppointment(appointment); err != nil {
		s.logger.WithError(err).Error("Failed to save appointment request")
		return nil, false, err
	}
	s.invalidateAvailability(ctx, booking.TherapistId)
	s.notify(ctx, domain.AppointmentEvent{
		AppointmentId: appointment.ID,
		PushToken:     therapist.PushToken,
		Email:         therapist.Email,
		Title:         "New appointment request",
		Body:          fmt.Sprintf("A patient requested %s on %s", booking.Modality, scheduledTo.Format("Mon Jan 2 15:04")),
		ScheduledTo:   scheduledTo.Format(time.RFC3339),
		Kind:          "appointment_requested",
	})

	s.logger.WithField("AppointmentId", appointment.ID).Info("Appointment request saved")
	return appointment, false, nil
}

// RespondToAppointment applies the therapist's decision on a pendent request.
// Accepting charges the patient and books the calendar event.
func (s *schedulingService) RespondToAppointment(ctx context.Context, appointmentId uint, accept bool) (*domain.Appointment, error) {
	s.logger.WithFields(logrus.Fields{
		"Function":      "RespondToAppointment",
		"AppointmentId": appointmentId,
		"Accept":        accept,
	}).Info("Applying therapist decision")

	appointment, err := s.repo.GetAppointment(appointmentId)
	if err != nil {
		return nil, err
	}
	if appointment.Status.Terminal() {
		return nil, &domain.ValidationError{Field: "status", Reason: fmt.Sprintf("appointment is already %s", appointment.Status)}
	}
	if appointment.Status != domain.AppointmentPendent {
		return nil, &domain.ValidationError{Field: "status", Reason: "only pendent appointments can be responded to"}
	}

	therapist, err := s.repo.GetTherapist(appointment.TherapistId)
	if err != nil {
		return nil, err
	}
	patient, err := s.repo.GetPatient(appointment.PatientId)
	if err != nil {
		return nil, err
	}

	if !accept {
		appointment.Status = domain.AppointmentRejected
		if err := s.repo.SaveAppointment(appointment); err != nil {
			return nil, err
		}
		s.invalidateAvailability(ctx, appointment.TherapistId)
		s.notify(ctx, domain.AppointmentEvent{
			AppointmentId: appointment.ID,
			PushToken:     patient.PushToken,
			Email:         patient.Email,
			Title:         "Appointment declined",
			Body:          "Your appointment request was declined. Pick another slot.",
			ScheduledTo:   appointment.ScheduledTo.Format(time.RFC3339),
			Kind:          "appointment_rejected",
		})
		return appointment, nil
	}

	fee := therapist.HourlyRate * s.opts.ApplicationFeePercent / 100
	if err := s.payment.Charge(ctx, patient.PaymentAccountId, therapist.PaymentAccountId, therapist.HourlyRate, fee); err != nil {
		s.logger.WithError(err).Error("Payment charge failed, appointment left pendent")
		return nil, &domain.DependencyError{Collaborator: "payment", Err: err}
	}

	appointment.Status = domain.AppointmentAccepted
	appointment.Paid = true

	// Calendar booking after a successful charge is best-effort: the session
	// happens either way, the event is a convenience.
	eventId, err := s.calendar.CreateEvent(ctx, therapist.Email, patient.Email,
		appointment.ScheduledTo, appointment.ScheduledTo.Add(sessionDuration),
		appointment.Modality == domain.ModalityOnline)
	if err != nil {
		s.logger.WithError(err).Warn("Calendar event creation failed, continuing without event")
	} else {
		appointment.CalendarEventId = eventId
	}

	if err := s.repo.SaveAppointment(appointment); err != nil {
		s.logger.WithError(err).Error("Failed to persist accepted appointment")
		return nil, err
	}
	s.invalidateAvailability(ctx, appointment.TherapistId)
	s.notify(ctx, domain.AppointmentEvent{
		AppointmentId: appointment.ID,
		PushToken:     patient.PushToken,
		Email:         patient.Email,
		Title:         "Appointment confirmed",
		Body:          fmt.Sprintf("Your session with %s is confirmed for %s", therapist.Name, appointment.ScheduledTo.Format("Mon Jan 2 15:04")),
		ScheduledTo:   appointment.ScheduledTo.Format(time.RFC3339),
		Kind:          "appointment_accepted",
	})

	s.logger.WithField("AppointmentId", appointment.ID).Info("Appointment accepted")
	return appointment, nil
}

// CancelAppointment cancels a single non-terminal appointment and removes its
// calendar event best-effort.
func (s *schedulingService) CancelAppointment(ctx context.Context, appointmentId uint) error {
	s.logger.WithFields(logrus.Fields{
		"Function":      "CancelAppointment",
		"AppointmentId": appointmentId,
	}).Info("Cancelling appointment")

	appointment, err := s.repo.GetAppointment(appointmentId)
	if err != nil {
		return err
	}
	if appointment.Status.Terminal() {
		return &domain.ValidationError{Field: "status", Reason: fmt.Sprintf("appointment is already %s", appointment.Status)}
	}

	appointment.Status = domain.AppointmentCanceled
	if err := s.repo.SaveAppointment(appointment); err != nil {
		return err
	}
	if appointment.CalendarEventId != "" {
		if err := s.calendar.DeleteEvent(ctx, appointment.CalendarEventId); err != nil {
			s.logger.WithError(err).Warn("Calendar event cleanup failed")
		}
	}
	s.invalidateAvailability(ctx, appointment.TherapistId)

	patient, err := s.repo.GetPatient(appointment.PatientId)
	if err == nil {
		s.notify(ctx, domain.AppointmentEvent{
			AppointmentId: appointment.ID,
			PushToken:     patient.PushToken,
			Email:         patient.Email,
			Title:         "Appointment canceled",
			Body:          fmt.Sprintf("The session on %s was canceled", appointment.ScheduledTo.Format("Mon Jan 2 15:04")),
			ScheduledTo:   appointment.ScheduledTo.Format(time.RFC3339),
			Kind:          "appointment_canceled",
		})
	}
	return nil
}

func (s *schedulingService) GetUpcomingAppointments(ctx context.Context, patientId string) ([]domain.Appointment, error) {
	s.logger.WithFields(logrus.Fields{
		"Function":  "GetUpcomingAppointments",
		"PatientId": patientId,
	}).Info("Fetching upcoming appointments")

	if _, err := s.repo.GetPatient(patientId); err != nil {
		return nil, err
	}
	return s.repo.FetchUpcomingByPatient(patientId, s.now())
}

// SetWeeklyHours bulk-replaces the therapist's Hour templates.
func (s *schedulingService) SetWeeklyHours(ctx context.Context, therapistId string, hours []HourInput) error {
	s.logger.WithFields(logrus.Fields{
		"Function":    "SetWeeklyHours",
		"TherapistId": therapistId,
		"Count":       len(hours),
	}).Info("Replacing weekly schedule")

	if _, err := s.repo.GetTherapist(therapistId); err != nil {
		return err
	}
	records := make([]domain.Hour, 0, len(hours))
	seen := make(map[string]bool, len(hours))
	for _, h := range hours {
		if _, err := domain.ParseWeekday(string(h.Weekday)); err != nil {
			return err
		}
		if h.StartHour < 0 || h.StartHour > 23 {
			return &domain.ValidationError{Field: "startHour", Reason: fmt.Sprintf("%d is outside 0-23", h.StartHour)}
		}
		key := fmt.Sprintf("%s-%d", h.Weekday, h.StartHour)
		if seen[key] {
			return &domain.ValidationError{Field: "hours", Reason: fmt.Sprintf("duplicate block %s %02d:00", h.Weekday, h.StartHour)}
		}
		seen[key] = true
		records = append(records, domain.Hour{
			TherapistId: therapistId,
			Weekday:     h.Weekday,
			StartHour:   h.StartHour,
		})
	}
	if err := s.repo.ReplaceHours(therapistId, records); err != nil {
		return err
	}
	s.invalidateAvailability(ctx, therapistId)
	return nil
}

// SendDailyReminders publishes one notification event per appointment booked
// for today. Invoked by the cron scheduler.
func (s *schedulingService) SendDailyReminders() {
	s.logger.Info("Sending daily appointment reminders")

	now := s.now()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.opts.Location)
	appointments, err := s.repo.FetchAppointmentsBetween(dayStart, dayStart.AddDate(0, 0, 1))
	if err != nil {
		s.logger.WithError(err).Error("Failed to fetch today's appointments")
		return
	}

	ctx := context.Background()
	for _, appointment := range appointments {
		patient, err := s.repo.GetPatient(appointment.PatientId)
		if err != nil {
			s.logger.WithError(err).Warn("Skipping reminder, patient lookup failed")
			continue
		}
		s.notify(ctx, domain.AppointmentEvent{
			AppointmentId: appointment.ID,
			PushToken:     patient.PushToken,
			Email:         patient.Email,
			Title:         "Session today",
			Body:          fmt.Sprintf("You have a session at %s", appointment.ScheduledTo.Format("15:04")),
			ScheduledTo:   appointment.ScheduledTo.Format(time.RFC3339),
			Kind:          "appointment_reminder",
		})
	}

	s.logger.WithField("Count", len(appointments)).Info("Daily reminders published")
}

func (s *schedulingService) notify(ctx context.Context, event domain.AppointmentEvent) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.PublishAppointmentEvent(ctx, event); err != nil {
		s.logger.WithError(err).Warn("Failed to publish appointment event")
	}
}

func (s *schedulingService) invalidateAvailability(ctx context.Context, therapistId string) {
	if s.cache == nil {
		return
	}
	s.cache.Invalidate(ctx, therapistId)
}
