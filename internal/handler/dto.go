package handler

import (
	"time"

	"github.com/talktera/talktera-scheduling-service/internal/domain"
)

type findAvailableSlotsRequest struct {
	TherapistId  string `json:"therapistId" validate:"required"`
	NumberOfDays int    `json:"numberOfDays" validate:"omitempty,gt=0,lte=365"`
	StartDate    string `json:"startDate" validate:"omitempty,datetime=2006-01-02"`
}

type findAvailableSlotsResponse struct {
	Months []domain.MonthAvailability `json:"months"`
}

type checkRecurrenceConflictRequest struct {
	TherapistId string `json:"therapistId" validate:"required"`
	Weekday     string `json:"weekday" validate:"required"`
	StartTime   string `json:"startTime" validate:"required"`
}

type checkRecurrenceConflictResponse struct {
	Conflict bool `json:"conflict"`
}

type bookAppointmentRequest struct {
	TherapistId string    `json:"therapistId" validate:"required"`
	PatientId   string    `json:"patientId" validate:"required"`
	ScheduledTo time.Time `json:"scheduledTo" validate:"required"`
	Modality    string    `json:"modality" validate:"required"`
}

type respondToAppointmentRequest struct {
	Accept bool `json:"accept"`
}

type requestRecurrenceRequest struct {
	TherapistId string `json:"therapistId" validate:"required"`
	PatientId   string `json:"patientId" validate:"required"`
	Weekday     string `json:"weekday" validate:"required"`
	StartTime   string `json:"startTime" validate:"required"`
	StartDate   string `json:"startDate" validate:"required,datetime=2006-01-02"`
	Modality    string `json:"modality" validate:"required"`
}

type createInstancesResponse struct {
	Created int `json:"created"`
}

type acceptRecurrenceResponse struct {
	Recurrence *domain.Recurrence `json:"recurrence"`
	Created    int                `json:"created"`
}

type setWeeklyHoursRequest struct {
	Hours []hourInput `json:"hours" validate:"required,dive"`
}

type hourInput struct {
	Weekday   string `json:"weekday" validate:"required"`
	StartHour int    `json:"startHour" validate:"gte=0,lte=23"`
}

type errorResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

type conflictResponse struct {
	Status   string `json:"status"`
	Conflict bool   `json:"conflict"`
	Message  string `json:"message"`
}
