package domain

import (
	"fmt"
	"strings"
	"time"
)

type AppointmentStatus string

const (
	AppointmentPendent  AppointmentStatus = "PENDENT"
	AppointmentAccepted AppointmentStatus = "ACCEPTED"
	AppointmentRejected AppointmentStatus = "REJECTED"
	AppointmentCanceled AppointmentStatus = "CANCELED"
)

// Terminal reports whether the status admits no further transitions.
func (s AppointmentStatus) Terminal() bool {
	return s == AppointmentRejected || s == AppointmentCanceled
}

type RecurrenceStatus string

const (
	RecurrencePendent  RecurrenceStatus = "PENDENT"
	RecurrenceAccepted RecurrenceStatus = "ACCEPTED"
	RecurrenceCanceled RecurrenceStatus = "CANCELED"
)

type Modality string

const (
	ModalityOnline Modality = "ONLINE"
	ModalityOnSite Modality = "ON_SITE"
)

func ParseModality(s string) (Modality, error) {
	switch Modality(strings.ToUpper(strings.TrimSpace(s))) {
	case ModalityOnline:
		return ModalityOnline, nil
	case ModalityOnSite:
		return ModalityOnSite, nil
	}
	return "", &ValidationError{Field: "modality", Reason: fmt.Sprintf("unknown modality %q", s)}
}

type AppointmentType string

const (
	TypeOneOff    AppointmentType = "ONE_OFF"
	TypeRecurrent AppointmentType = "RECURRENT"
)

type Weekday string

const (
	Monday    Weekday = "MONDAY"
	Tuesday   Weekday = "TUESDAY"
	Wednesday Weekday = "WEDNESDAY"
	Thursday  Weekday = "THURSDAY"
	Friday    Weekday = "FRIDAY"
	Saturday  Weekday = "SATURDAY"
	Sunday    Weekday = "SUNDAY"
)

var weekdayNames = map[time.Weekday]Weekday{
	time.Monday:    Monday,
	time.Tuesday:   Tuesday,
	time.Wednesday: Wednesday,
	time.Thursday:  Thursday,
	time.Friday:    Friday,
	time.Saturday:  Saturday,
	time.Sunday:    Sunday,
}

// WeekdayOf returns the weekday name of t in t's location.
func WeekdayOf(t time.Time) Weekday {
	return weekdayNames[t.Weekday()]
}

func ParseWeekday(s string) (Weekday, error) {
	wd := Weekday(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range weekdayNames {
		if wd == known {
			return wd, nil
		}
	}
	return "", &ValidationError{Field: "weekday", Reason: fmt.Sprintf("unknown weekday %q", s)}
}

// Time maps the weekday name to its time.Weekday. The receiver must come
// from ParseWeekday or one of the named constants; unknown values fall back
// to Monday.
func (w Weekday) Time() time.Weekday {
	for t, name := range weekdayNames {
		if name == w {
			return t
		}
	}
	return time.Monday
}

// TimeOfDay is a wall-clock "HH:MM" value, the start of a one-hour slot.
type TimeOfDay struct {
	Hour   int
	Minute int
}

func ParseTimeOfDay(s string) (TimeOfDay, error) {
	parsed, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return TimeOfDay{}, &ValidationError{Field: "startTime", Reason: fmt.Sprintf("invalid time of day %q, want HH:MM", s)}
	}
	return TimeOfDay{Hour: parsed.Hour(), Minute: parsed.Minute()}, nil
}

// TimeOfDayOf extracts the wall-clock component of t in t's location.
func TimeOfDayOf(t time.Time) TimeOfDay {
	return TimeOfDay{Hour: t.Hour(), Minute: t.Minute()}
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// At anchors the time of day on the given date, in date's location.
func (t TimeOfDay) At(date time.Time) time.Time {
	return time.Date(date.Year(), date.Month(), date.Day(), t.Hour, t.Minute, 0, 0, date.Location())
}
