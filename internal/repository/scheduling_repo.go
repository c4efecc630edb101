package repository

import (
	"errors"
	"fmt"
	"time"

	"github.com/talktera/talktera-scheduling-service/internal/domain"
	"gorm.io/gorm"
)

type SchedulingRepository interface {
	GetTherapist(therapistId string) (*domain.Therapist, error)
	GetTherapistWithSchedule(therapistId string) (*domain.Therapist, error)
	GetPatient(patientId string) (*domain.Patient, error)
	ReplaceHours(therapistId string, hours []domain.Hour) error

	CreateAppointment(appointment *domain.Appointment) error
	GetAppointment(appointmentId uint) (*domain.Appointment, error)
	SaveAppointment(appointment *domain.Appointment) error
	SetCalendarEvent(appointmentId uint, eventId string) error
	CancelAppointments(appointmentIds []uint) error
	CountAcceptedAppointmentsAt(therapistId string, instants []time.Time) (int64, error)
	FetchUpcomingByPatient(patientId string, from time.Time) ([]domain.Appointment, error)
	FetchAppointmentsBetween(from, to time.Time) ([]domain.Appointment, error)

	CreateRecurrence(recurrence *domain.Recurrence) error
	GetRecurrence(recurrenceId uint) (*domain.Recurrence, error)
	SaveRecurrence(recurrence *domain.Recurrence) error
	UpdateRecurrenceStatus(recurrenceId uint, status domain.RecurrenceStatus) error
	CountAcceptedRecurrences(therapistId string, weekday domain.Weekday, startTime string) (int64, error)
	ListAcceptedRecurrences() ([]domain.Recurrence, error)
	FindInstances(recurrenceId uint) ([]domain.Appointment, error)
	FindFutureUnpaidInstances(recurrenceId uint, from time.Time) ([]domain.Appointment, error)
}

type schedulingRepository struct {
	db *gorm.DB
}

func NewSchedulingRepository(db *gorm.DB) SchedulingRepository {
	return &schedulingRepository{
		db: db,
	}
}

func (r *schedulingRepository) GetTherapist(therapistId string) (*domain.Therapist, error) {
	var therapist domain.Therapist
	err := r.db.First(&therapist, "id = ?", therapistId).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("therapist %s: %w", therapistId, domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &therapist, nil
}

// GetTherapistWithSchedule loads the therapist together with the Hour
// templates and appointments the availability calculation reads.
func (r *schedulingRepository) GetTherapistWithSchedule(therapistId string) (*domain.Therapist, error) {
	var therapist domain.Therapist
	err := r.db.
		Preload("Hours").
		Preload("Appointments").
		First(&therapist, "id = ?", therapistId).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("therapist %s: %w", therapistId, domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &therapist, nil
}

func (r *schedulingRepository) GetPatient(patientId string) (*domain.Patient, error) {
	var patient domain.Patient
	err := r.db.First(&patient, "id = ?", patientId).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("patient %s: %w", patientId, domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &patient, nil
}

// ReplaceHours swaps a therapist's whole weekly schedule in one transaction.
func (r *schedulingRepository) ReplaceHours(therapistId string, hours []domain.Hour) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("therapist_id = ?", therapistId).Delete(&domain.Hour{}).Error; err != nil {
			return err
		}
		if len(hours) == 0 {
			return nil
		}
		return tx.Create(&hours).Error
	})
}

func (r *schedulingRepository) CreateAppointment(appointment *domain.Appointment) error {
	return r.db.Create(appointment).Error
}

func (r *schedulingRepository) GetAppointment(appointmentId uint) (*domain.Appointment, error) {
	var appointment domain.Appointment
	err := r.db.First(&appointment, appointmentId).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("appointment %d: %w", appointmentId, domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &appointment, nil
}

func (r *schedulingRepository) SaveAppointment(appointment *domain.Appointment) error {
	return r.db.Save(appointment).Error
}

func (r *schedulingRepository) SetCalendarEvent(appointmentId uint, eventId string) error {
	return r.db.Model(&domain.Appointment{}).
		Where("id = ?", appointmentId).
		Update("calendar_event_id", eventId).Error
}

func (r *schedulingRepository) CancelAppointments(appointmentIds []uint) error {
	if len(appointmentIds) == 0 {
		return nil
	}
	return r.db.Model(&domain.Appointment{}).
		Where("id IN ?", appointmentIds).
		Update("status", domain.AppointmentCanceled).Error
}

func (r *schedulingRepository) CountAcceptedAppointmentsAt(therapistId string, instants []time.Time) (int64, error) {
	if len(instants) == 0 {
		return 0, nil
	}
	var count int64
	err := r.db.Model(&domain.Appointment{}).
		Where("therapist_id = ? AND status = ? AND scheduled_to IN ?", therapistId, domain.AppointmentAccepted, instants).
		Count(&count).Error
	return count, err
}

func (r *schedulingRepository) FetchUpcomingByPatient(patientId string, from time.Time) ([]domain.Appointment, error) {
	var appointments []domain.Appointment
	err := r.db.
		Where("patient_id = ? AND scheduled_to > ? AND status <> ?", patientId, from, domain.AppointmentCanceled).
		Order("scheduled_to ASC").
		Find(&appointments).Error
	if err != nil {
		return nil, err
	}
	return appointments, nil
}

func (r *schedulingRepository) FetchAppointmentsBetween(from, to time.Time) ([]domain.Appointment, error) {
	var appointments []domain.Appointment
	err := r.db.
		Where("scheduled_to >= ? AND scheduled_to < ? AND status = ?", from, to, domain.AppointmentAccepted).
		Order("scheduled_to ASC").
		Find(&appointments).Error
	if err != nil {
		return nil, err
	}
	return appointments, nil
}

func (r *schedulingRepository) CreateRecurrence(recurrence *domain.Recurrence) error {
	return r.db.Create(recurrence).Error
}

func (r *schedulingRepository) GetRecurrence(recurrenceId uint) (*domain.Recurrence, error) {
	var recurrence domain.Recurrence
	err := r.db.First(&recurrence, recurrenceId).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("recurrence %d: %w", recurrenceId, domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &recurrence, nil
}

func (r *schedulingRepository) SaveRecurrence(recurrence *domain.Recurrence) error {
	return r.db.Save(recurrence).Error
}

func (r *schedulingRepository) UpdateRecurrenceStatus(recurrenceId uint, status domain.RecurrenceStatus) error {
	return r.db.Model(&domain.Recurrence{}).
		Where("id = ?", recurrenceId).
		Update("status", status).Error
}

func (r *schedulingRepository) CountAcceptedRecurrences(therapistId string, weekday domain.Weekday, startTime string) (int64, error) {
	var count int64
	err := r.db.Model(&domain.Recurrence{}).
		Where("therapist_id = ? AND weekday = ? AND start_time = ? AND status = ?",
			therapistId, weekday, startTime, domain.RecurrenceAccepted).
		Count(&count).Error
	return count, err
}

func (r *schedulingRepository) ListAcceptedRecurrences() ([]domain.Recurrence, error) {
	var recurrences []domain.Recurrence
	err := r.db.Where("status = ?", domain.RecurrenceAccepted).Find(&recurrences).Error
	if err != nil {
		return nil, err
	}
	return recurrences, nil
}

func (r *schedulingRepository) FindInstances(recurrenceId uint) ([]domain.Appointment, error) {
	var appointments []domain.Appointment
	err := r.db.
		Where("recurrence_id = ?", recurrenceId).
		Order("scheduled_to ASC").
		Find(&appointments).Error
	if err != nil {
		return nil, err
	}
	return appointments, nil
}

// FindFutureUnpaidInstances returns the cancellable tail of a recurrence:
// instances at or after `from` that have not been paid. Past or paid
// instances are immutable history.
func (r *schedulingRepository) FindFutureUnpaidInstances(recurrenceId uint, from time.Time) ([]domain.Appointment, error) {
	var appointments []domain.Appointment
	err := r.db.
		Where("recurrence_id = ? AND scheduled_to >= ? AND paid = ? AND status <> ?",
			recurrenceId, from, false, domain.AppointmentCanceled).
		Order("scheduled_to ASC").
		Find(&appointments).Error
	if err != nil {
		return nil, err
	}
	return appointments, nil
}
