package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
	"github.com/sirupsen/logrus"

	"github.com/talktera/talktera-scheduling-service/internal/domain"
	"github.com/talktera/talktera-scheduling-service/internal/service"
)

// SchedulingHandler adapts the scheduling service to the HTTP/JSON surface.
type SchedulingHandler struct {
	service  service.SchedulingService
	validate *validator.Validate
	logger   *logrus.Logger
}

func NewSchedulingHandler(svc service.SchedulingService, logger *logrus.Logger) *SchedulingHandler {
	return &SchedulingHandler{
		service:  svc,
		validate: validator.New(),
		logger:   logger,
	}
}

func (h *SchedulingHandler) Register(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/slots/search", h.FindAvailableSlots)

		r.Post("/appointments", h.BookAppointment)
		r.Post("/appointments/{appointmentId}/respond", h.RespondToAppointment)
		r.Delete("/appointments/{appointmentId}", h.CancelAppointment)
		r.Get("/patients/{patientId}/appointments/upcoming", h.GetUpcomingAppointments)

		r.Post("/recurrences/check-conflict", h.CheckRecurrenceConflict)
		r.Post("/recurrences", h.RequestRecurrence)
		r.Post("/recurrences/{recurrenceId}/accept", h.AcceptRecurrence)
		r.Post("/recurrences/{recurrenceId}/instances", h.CreateRecurrenceInstances)
		r.Delete("/recurrences/{recurrenceId}", h.CancelRecurrence)

		r.Put("/therapists/{therapistId}/hours", h.SetWeeklyHours)
	})
}

func (h *SchedulingHandler) FindAvailableSlots(w http.ResponseWriter, r *http.Request) {
	var req findAvailableSlotsRequest
	if !h.decode(w, r, &req) {
		return
	}
	var start time.Time
	if req.StartDate != "" {
		start, _ = time.Parse("2006-01-02", req.StartDate)
	}
	months, err := h.service.FindAvailableSlots(r.Context(), req.TherapistId, req.NumberOfDays, start)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, findAvailableSlotsResponse{Months: months})
}

func (h *SchedulingHandler) CheckRecurrenceConflict(w http.ResponseWriter, r *http.Request) {
	var req checkRecurrenceConflictRequest
	if !h.decode(w, r, &req) {
		return
	}
	conflict, err := h.service.CheckRecurrenceConflict(r.Context(), req.TherapistId, domain.Weekday(req.Weekday), req.StartTime)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, checkRecurrenceConflictResponse{Conflict: conflict})
}

func (h *SchedulingHandler) BookAppointment(w http.ResponseWriter, r *http.Request) {
	var req bookAppointmentRequest
	if !h.decode(w, r, &req) {
		return
	}
	modality, err := domain.ParseModality(req.Modality)
	if err != nil {
		h.writeError(w, err)
		return
	}
	appointment, conflict, err := h.service.BookAppointment(r.Context(), service.BookingRequest{
		TherapistId: req.TherapistId,
		PatientId:   req.PatientId,
		ScheduledTo: req.ScheduledTo,
		Modality:    modality,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	if conflict {
		h.writeJSON(w, http.StatusConflict, conflictResponse{
			Status:   "conflict",
			Conflict: true,
			Message:  "The requested slot is already taken, pick another one",
		})
		return
	}
	h.writeJSON(w, http.StatusCreated, appointment)
}

func (h *SchedulingHandler) RespondToAppointment(w http.ResponseWriter, r *http.Request) {
	appointmentId, ok := h.uintParam(w, r, "appointmentId")
	if !ok {
		return
	}
	var req respondToAppointmentRequest
	if !h.decode(w, r, &req) {
		return
	}
	appointment, err := h.service.RespondToAppointment(r.Context(), appointmentId, req.Accept)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, appointment)
}

func (h *SchedulingHandler) CancelAppointment(w http.ResponseWriter, r *http.Request) {
	appointmentId, ok := h.uintParam(w, r, "appointmentId")
	if !ok {
		return
	}
	if err := h.service.CancelAppointment(r.Context(), appointmentId); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "canceled"})
}

func (h *SchedulingHandler) GetUpcomingAppointments(w http.ResponseWriter, r *http.Request) {
	patientId := chi.URLParam(r, "patientId")
	appointments, err := h.service.GetUpcomingAppointments(r.Context(), patientId)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"appointments": appointments})
}

func (h *SchedulingHandler) RequestRecurrence(w http.ResponseWriter, r *http.Request) {
	var req requestRecurrenceRequest
	if !h.decode(w, r, &req) {
		return
	}
	modality, err := domain.ParseModality(req.Modality)
	if err != nil {
		h.writeError(w, err)
		return
	}
	startDate, _ := time.Parse("2006-01-02", req.StartDate)
	recurrence, conflict, err := h.service.RequestRecurrence(r.Context(), service.RecurrenceRequest{
		TherapistId: req.TherapistId,
		PatientId:   req.PatientId,
		Weekday:     domain.Weekday(req.Weekday),
		StartTime:   req.StartTime,
		StartDate:   startDate,
		Modality:    modality,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	if conflict {
		h.writeJSON(w, http.StatusConflict, conflictResponse{
			Status:   "conflict",
			Conflict: true,
			Message:  "The weekly slot is already claimed, pick another one",
		})
		return
	}
	h.writeJSON(w, http.StatusCreated, recurrence)
}

func (h *SchedulingHandler) AcceptRecurrence(w http.ResponseWriter, r *http.Request) {
	recurrenceId, ok := h.uintParam(w, r, "recurrenceId")
	if !ok {
		return
	}
	recurrence, created, err := h.service.AcceptRecurrence(r.Context(), recurrenceId)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, acceptRecurrenceResponse{Recurrence: recurrence, Created: created})
}

func (h *SchedulingHandler) CreateRecurrenceInstances(w http.ResponseWriter, r *http.Request) {
	recurrenceId, ok := h.uintParam(w, r, "recurrenceId")
	if !ok {
		return
	}
	created, err := h.service.CreateRecurrenceInstances(r.Context(), recurrenceId)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, createInstancesResponse{Created: created})
}

func (h *SchedulingHandler) CancelRecurrence(w http.ResponseWriter, r *http.Request) {
	recurrenceId, ok := h.uintParam(w, r, "recurrenceId")
	if !ok {
		return
	}
	if err := h.service.CancelRecurrence(r.Context(), recurrenceId); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "canceled"})
}

func (h *SchedulingHandler) SetWeeklyHours(w http.ResponseWriter, r *http.Request) {
	therapistId := chi.URLParam(r, "therapistId")
	var req setWeeklyHoursRequest
	if !h.decode(w, r, &req) {
		return
	}
	hours := make([]service.HourInput, 0, len(req.Hours))
	for _, hour := range req.Hours {
		hours = append(hours, service.HourInput{
			Weekday:   domain.Weekday(hour.Weekday),
			StartHour: hour.StartHour,
		})
	}
	if err := h.service.SetWeeklyHours(r.Context(), therapistId, hours); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

func (h *SchedulingHandler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Status: "error", Message: "malformed JSON body"})
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Status: "error", Message: err.Error()})
		return false
	}
	return true
}

func (h *SchedulingHandler) uintParam(w http.ResponseWriter, r *http.Request, name string) (uint, bool) {
	raw := chi.URLParam(r, name)
	parsed, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Status: "error", Message: "invalid " + name})
		return 0, false
	}
	return uint(parsed), true
}

func (h *SchedulingHandler) writeError(w http.ResponseWriter, err error) {
	var validationErr *domain.ValidationError
	var dependencyErr *domain.DependencyError

	switch {
	case errors.Is(err, domain.ErrNotFound):
		h.writeJSON(w, http.StatusNotFound, errorResponse{Status: "error", Message: err.Error()})
	case errors.As(err, &validationErr):
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Status: "error", Message: validationErr.Error()})
	case errors.As(err, &dependencyErr):
		h.logger.WithError(err).Error("Collaborator failure surfaced to caller")
		h.writeJSON(w, http.StatusBadGateway, errorResponse{Status: "error", Message: dependencyErr.Error()})
	default:
		h.logger.WithError(err).Error("Unhandled error")
		h.writeJSON(w, http.StatusInternalServerError, errorResponse{Status: "error", Message: "internal error"})
	}
}

func (h *SchedulingHandler) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.WithError(err).Error("Failed to encode response")
	}
}
