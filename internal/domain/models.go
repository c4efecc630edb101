package domain

import (
	"time"

	"gorm.io/gorm"
)

type Therapist struct {
	ID               string        `gorm:"primaryKey" json:"id"`
	Name             string        `json:"name"`
	Email            string        `json:"email"`
	HourlyRate       float64       `json:"hourlyRate"`
	PaymentAccountId string        `json:"-"`
	PushToken        string        `json:"-"`
	Address          *Address      `gorm:"foreignKey:TherapistId" json:"address,omitempty"`
	Hours            []Hour        `gorm:"foreignKey:TherapistId" json:"hours,omitempty"`
	Appointments     []Appointment `gorm:"foreignKey:TherapistId" json:"-"`
	CreatedAt        time.Time     `json:"-"`
	UpdatedAt        time.Time     `json:"-"`
}

type Patient struct {
	ID               string    `gorm:"primaryKey" json:"id"`
	Name             string    `json:"name"`
	Email            string    `json:"email"`
	PaymentAccountId string    `json:"-"`
	PushToken        string    `json:"-"`
	CreatedAt        time.Time `json:"-"`
	UpdatedAt        time.Time `json:"-"`
}

type Address struct {
	gorm.Model  `json:"-"`
	TherapistId string `json:"-"`
	Street      string `json:"street"`
	City        string `json:"city"`
	State       string `json:"state"`
	ZipCode     string `json:"zipCode"`
}

// Hour is one recurring one-hour availability block of a therapist's weekly
// schedule. Hours are replaced in bulk when the therapist edits the schedule,
// never mutated individually.
type Hour struct {
	gorm.Model  `json:"-"`
	TherapistId string  `json:"therapistId"`
	Weekday     Weekday `json:"weekday"`
	StartHour   int     `json:"startHour"`
}

type Appointment struct {
	gorm.Model
	TherapistId     string            `gorm:"index" json:"therapistId"`
	PatientId       string            `gorm:"index" json:"patientId"`
	ScheduledTo     time.Time         `gorm:"index" json:"scheduledTo"`
	Modality        Modality          `json:"modality"`
	Status          AppointmentStatus `json:"status"`
	Type            AppointmentType   `json:"type"`
	Paid            bool              `json:"paid"`
	RecurrenceId    *uint             `gorm:"index" json:"recurrenceId,omitempty"`
	CalendarEventId string            `json:"-"`
}

// Recurrence is a standing weekly booking. Once accepted it spawns a bounded
// run of RECURRENT appointment instances linked back via RecurrenceId.
type Recurrence struct {
	gorm.Model
	TherapistId string           `gorm:"index" json:"therapistId"`
	PatientId   string           `gorm:"index" json:"patientId"`
	Weekday     Weekday          `json:"weekday"`
	StartTime   string           `json:"startTime"` // "HH:MM", 24h
	StartDate   time.Time        `json:"startDate"` // anchor of the first instance
	Modality    Modality         `json:"modality"`
	Status      RecurrenceStatus `json:"status"`
}

// AppointmentEvent is the payload published to the notification topic. The
// push delivery service consumes it and forwards title/body to the token.
type AppointmentEvent struct {
	EventId       string `json:"eventId"`
	AppointmentId uint   `json:"appointmentId"`
	PushToken     string `json:"pushToken"`
	Email         string `json:"email"`
	Title         string `json:"title"`
	Body          string `json:"body"`
	ScheduledTo   string `json:"scheduledTo"`
	Kind          string `json:"kind"`
}

// DayAvailability lists the Hour templates still open on one date.
type DayAvailability struct {
	Date  time.Time `json:"date"`
	Hours []Hour    `json:"hours"`
}

// MonthAvailability groups open days by calendar month, months in the order
// they are first encountered inside the lookahead window.
type MonthAvailability struct {
	Month int               `json:"month"`
	Year  int               `json:"year"`
	Days  []DayAvailability `json:"days"`
}
