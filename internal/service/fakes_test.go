package service_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/talktera/talktera-scheduling-service/internal/domain"
	"github.com/talktera/talktera-scheduling-service/internal/service"
)

// providerZone matches the default canonical offset used in production.
var providerZone = time.FixedZone("provider", -3*60*60)

// baseNow is a Wednesday noon; tests derive slots relative to it.
var baseNow = time.Date(2025, 3, 5, 12, 0, 0, 0, providerZone)

type fakeRepo struct {
	therapists   map[string]*domain.Therapist
	patients     map[string]*domain.Patient
	appointments map[uint]*domain.Appointment
	recurrences  map[uint]*domain.Recurrence
	nextId       uint

	createLimit          int // -1 means unlimited
	created              int
	updateRecurrenceErr  error
	findFutureErr        error
	cancelAppointmentErr error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		therapists:   make(map[string]*domain.Therapist),
		patients:     make(map[string]*domain.Patient),
		appointments: make(map[uint]*domain.Appointment),
		recurrences:  make(map[uint]*domain.Recurrence),
		createLimit:  -1,
	}
}

func (f *fakeRepo) addTherapist(id string, rate float64) *domain.Therapist {
	therapist := &domain.Therapist{
		ID:               id,
		Name:             "Dr. " + id,
		Email:            id + "@talktera.test",
		HourlyRate:       rate,
		PaymentAccountId: "acct_" + id,
		PushToken:        "push_" + id,
	}
	f.therapists[id] = therapist
	return therapist
}

func (f *fakeRepo) addPatient(id string) *domain.Patient {
	patient := &domain.Patient{
		ID:               id,
		Name:             id,
		Email:            id + "@talktera.test",
		PaymentAccountId: "acct_" + id,
		PushToken:        "push_" + id,
	}
	f.patients[id] = patient
	return patient
}

func (f *fakeRepo) addHour(therapistId string, weekday domain.Weekday, startHour int) {
	therapist := f.therapists[therapistId]
	therapist.Hours = append(therapist.Hours, domain.Hour{
		TherapistId: therapistId,
		Weekday:     weekday,
		StartHour:   startHour,
	})
}

func (f *fakeRepo) addAppointment(appointment domain.Appointment) *domain.Appointment {
	f.nextId++
	appointment.ID = f.nextId
	stored := appointment
	f.appointments[appointment.ID] = &stored
	return &stored
}

func (f *fakeRepo) addRecurrence(recurrence domain.Recurrence) *domain.Recurrence {
	f.nextId++
	recurrence.ID = f.nextId
	stored := recurrence
	f.recurrences[recurrence.ID] = &stored
	return &stored
}

func (f *fakeRepo) GetTherapist(therapistId string) (*domain.Therapist, error) {
	therapist, ok := f.therapists[therapistId]
	if !ok {
		return nil, fmt.Errorf("therapist %s: %w", therapistId, domain.ErrNotFound)
	}
	clone := *therapist
	return &clone, nil
}

func (f *fakeRepo) GetTherapistWithSchedule(therapistId string) (*domain.Therapist, error) {
	therapist, err := f.GetTherapist(therapistId)
	if err != nil {
		return nil, err
	}
	therapist.Appointments = nil
	for _, appointment := range f.appointments {
		if appointment.TherapistId == therapistId {
			therapist.Appointments = append(therapist.Appointments, *appointment)
		}
	}
	return therapist, nil
}

func (f *fakeRepo) GetPatient(patientId string) (*domain.Patient, error) {
	patient, ok := f.patients[patientId]
	if !ok {
		return nil, fmt.Errorf("patient %s: %w", patientId, domain.ErrNotFound)
	}
	clone := *patient
	return &clone, nil
}

func (f *fakeRepo) ReplaceHours(therapistId string, hours []domain.Hour) error {
	therapist, ok := f.therapists[therapistId]
	if !ok {
		return fmt.Errorf("therapist %s: %w", therapistId, domain.ErrNotFound)
	}
	therapist.Hours = hours
	return nil
}

func (f *fakeRepo) CreateAppointment(appointment *domain.Appointment) error {
	if f.createLimit >= 0 && f.created >= f.createLimit {
		return errors.New("insert failed")
	}
	f.created++
	f.nextId++
	appointment.ID = f.nextId
	stored := *appointment
	f.appointments[appointment.ID] = &stored
	return nil
}

func (f *fakeRepo) GetAppointment(appointmentId uint) (*domain.Appointment, error) {
	appointment, ok := f.appointments[appointmentId]
	if !ok {
		return nil, fmt.Errorf("appointment %d: %w", appointmentId, domain.ErrNotFound)
	}
	clone := *appointment
	return &clone, nil
}

func (f *fakeRepo) SaveAppointment(appointment *domain.Appointment) error {
	stored := *appointment
	f.appointments[appointment.ID] = &stored
	return nil
}

func (f *fakeRepo) SetCalendarEvent(appointmentId uint, eventId string) error {
	appointment, ok := f.appointments[appointmentId]
	if !ok {
		return fmt.Errorf("appointment %d: %w", appointmentId, domain.ErrNotFound)
	}
	appointment.CalendarEventId = eventId
	return nil
}

func (f *fakeRepo) CancelAppointments(appointmentIds []uint) error {
	if f.cancelAppointmentErr != nil {
		return f.cancelAppointmentErr
	}
	for _, id := range appointmentIds {
		if appointment, ok := f.appointments[id]; ok {
			appointment.Status = domain.AppointmentCanceled
		}
	}
	return nil
}

func (f *fakeRepo) CountAcceptedAppointmentsAt(therapistId string, instants []time.Time) (int64, error) {
	var count int64
	for _, appointment := range f.appointments {
		if appointment.TherapistId != therapistId || appointment.Status != domain.AppointmentAccepted {
			continue
		}
		for _, instant := range instants {
			if appointment.ScheduledTo.Equal(instant) {
				count++
				break
			}
		}
	}
	return count, nil
}

func (f *fakeRepo) FetchUpcomingByPatient(patientId string, from time.Time) ([]domain.Appointment, error) {
	var result []domain.Appointment
	for _, appointment := range f.appointments {
		if appointment.PatientId == patientId &&
			appointment.ScheduledTo.After(from) &&
			appointment.Status != domain.AppointmentCanceled {
			result = append(result, *appointment)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ScheduledTo.Before(result[j].ScheduledTo) })
	return result, nil
}

func (f *fakeRepo) FetchAppointmentsBetween(from, to time.Time) ([]domain.Appointment, error) {
	var result []domain.Appointment
	for _, appointment := range f.appointments {
		if appointment.Status == domain.AppointmentAccepted &&
			!appointment.ScheduledTo.Before(from) &&
			appointment.ScheduledTo.Before(to) {
			result = append(result, *appointment)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ScheduledTo.Before(result[j].ScheduledTo) })
	return result, nil
}

func (f *fakeRepo) CreateRecurrence(recurrence *domain.Recurrence) error {
	f.nextId++
	recurrence.ID = f.nextId
	stored := *recurrence
	f.recurrences[recurrence.ID] = &stored
	return nil
}

func (f *fakeRepo) GetRecurrence(recurrenceId uint) (*domain.Recurrence, error) {
	recurrence, ok := f.recurrences[recurrenceId]
	if !ok {
		return nil, fmt.Errorf("recurrence %d: %w", recurrenceId, domain.ErrNotFound)
	}
	clone := *recurrence
	return &clone, nil
}

func (f *fakeRepo) SaveRecurrence(recurrence *domain.Recurrence) error {
	stored := *recurrence
	f.recurrences[recurrence.ID] = &stored
	return nil
}

func (f *fakeRepo) UpdateRecurrenceStatus(recurrenceId uint, status domain.RecurrenceStatus) error {
	if f.updateRecurrenceErr != nil {
		return f.updateRecurrenceErr
	}
	recurrence, ok := f.recurrences[recurrenceId]
	if !ok {
		return fmt.Errorf("recurrence %d: %w", recurrenceId, domain.ErrNotFound)
	}
	recurrence.Status = status
	return nil
}

func (f *fakeRepo) CountAcceptedRecurrences(therapistId string, weekday domain.Weekday, startTime string) (int64, error) {
	var count int64
	for _, recurrence := range f.recurrences {
		if recurrence.TherapistId == therapistId &&
			recurrence.Weekday == weekday &&
			recurrence.StartTime == startTime &&
			recurrence.Status == domain.RecurrenceAccepted {
			count++
		}
	}
	return count, nil
}

func (f *fakeRepo) ListAcceptedRecurrences() ([]domain.Recurrence, error) {
	var result []domain.Recurrence
	for _, recurrence := range f.recurrences {
		if recurrence.Status == domain.RecurrenceAccepted {
			result = append(result, *recurrence)
		}
	}
	return result, nil
}

func (f *fakeRepo) FindInstances(recurrenceId uint) ([]domain.Appointment, error) {
	var result []domain.Appointment
	for _, appointment := range f.appointments {
		if appointment.RecurrenceId != nil && *appointment.RecurrenceId == recurrenceId {
			result = append(result, *appointment)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ScheduledTo.Before(result[j].ScheduledTo) })
	return result, nil
}

func (f *fakeRepo) FindFutureUnpaidInstances(recurrenceId uint, from time.Time) ([]domain.Appointment, error) {
	if f.findFutureErr != nil {
		return nil, f.findFutureErr
	}
	var result []domain.Appointment
	for _, appointment := range f.appointments {
		if appointment.RecurrenceId != nil && *appointment.RecurrenceId == recurrenceId &&
			!appointment.ScheduledTo.Before(from) &&
			!appointment.Paid &&
			appointment.Status != domain.AppointmentCanceled {
			result = append(result, *appointment)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ScheduledTo.Before(result[j].ScheduledTo) })
	return result, nil
}

type createdEvent struct {
	organizer    string
	attendee     string
	start        time.Time
	end          time.Time
	conferencing bool
}

type fakeCalendar struct {
	created   []createdEvent
	deleted   []string
	createErr error
	deleteErr error
}

func (f *fakeCalendar) CreateEvent(ctx context.Context, organizerEmail, attendeeEmail string, start, end time.Time, conferencing bool) (string, error) {
	if f.createErr != nil {
		return "", f.createErr
	}
	f.created = append(f.created, createdEvent{organizerEmail, attendeeEmail, start, end, conferencing})
	return fmt.Sprintf("evt_%d", len(f.created)), nil
}

func (f *fakeCalendar) UpdateEvent(ctx context.Context, eventId string, start, end time.Time) error {
	return nil
}

func (f *fakeCalendar) DeleteEvent(ctx context.Context, eventId string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, eventId)
	return nil
}

type charge struct {
	payer  string
	payee  string
	amount float64
	fee    float64
}

type fakePayment struct {
	charges []charge
	err     error
}

func (f *fakePayment) Charge(ctx context.Context, payerAccountId, payeeAccountId string, amount, applicationFee float64) error {
	if f.err != nil {
		return f.err
	}
	f.charges = append(f.charges, charge{payerAccountId, payeeAccountId, amount, applicationFee})
	return nil
}

type fakeNotifier struct {
	events []domain.AppointmentEvent
	err    error
}

func (f *fakeNotifier) PublishAppointmentEvent(ctx context.Context, event domain.AppointmentEvent) error {
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, event)
	return nil
}

type fakeCache struct {
	entries      map[string][]domain.MonthAvailability
	invalidated  []string
	hits, misses int
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[string][]domain.MonthAvailability)}
}

func (f *fakeCache) Get(ctx context.Context, therapistId, window string) ([]domain.MonthAvailability, bool) {
	months, ok := f.entries[therapistId+":"+window]
	if ok {
		f.hits++
	} else {
		f.misses++
	}
	return months, ok
}

func (f *fakeCache) Set(ctx context.Context, therapistId, window string, months []domain.MonthAvailability) {
	f.entries[therapistId+":"+window] = months
}

func (f *fakeCache) Invalidate(ctx context.Context, therapistId string) {
	f.invalidated = append(f.invalidated, therapistId)
	for key := range f.entries {
		if len(key) >= len(therapistId) && key[:len(therapistId)] == therapistId {
			delete(f.entries, key)
		}
	}
}

type testEnv struct {
	repo     *fakeRepo
	calendar *fakeCalendar
	payment  *fakePayment
	notifier *fakeNotifier
	cache    *fakeCache
	now      time.Time
	svc      service.SchedulingService
}

func newTestEnv(opts ...func(*service.Options)) *testEnv {
	env := &testEnv{
		repo:     newFakeRepo(),
		calendar: &fakeCalendar{},
		payment:  &fakePayment{},
		notifier: &fakeNotifier{},
		cache:    newFakeCache(),
		now:      baseNow,
	}
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	options := service.Options{
		Location: providerZone,
		Now:      func() time.Time { return env.now },
	}
	for _, opt := range opts {
		opt(&options)
	}
	env.svc = service.NewSchedulingService(env.repo, env.calendar, env.payment, env.notifier, env.cache, logger, options)
	return env
}
