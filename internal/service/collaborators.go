package service

import (
	"context"
	"time"

	"github.com/talktera/talktera-scheduling-service/internal/domain"
)

// CalendarClient is the narrow contract against the external calendar
// provider. The scheduling core only relies on the event id round-tripping.
type CalendarClient interface {
	CreateEvent(ctx context.Context, organizerEmail, attendeeEmail string, start, end time.Time, conferencing bool) (string, error)
	UpdateEvent(ctx context.Context, eventId string, start, end time.Time) error
	DeleteEvent(ctx context.Context, eventId string) error
}

// PaymentClient charges the patient's account and routes the platform fee.
type PaymentClient interface {
	Charge(ctx context.Context, payerAccountId, payeeAccountId string, amount, applicationFee float64) error
}

// Notifier publishes appointment events for the push delivery service.
// Fire-and-forget from the core's point of view.
type Notifier interface {
	PublishAppointmentEvent(ctx context.Context, event domain.AppointmentEvent) error
}

// AvailabilityCache is the optional read-through cache for slot searches.
type AvailabilityCache interface {
	Get(ctx context.Context, therapistId, window string) ([]domain.MonthAvailability, bool)
	Set(ctx context.Context, therapistId, window string, months []domain.MonthAvailability)
	Invalidate(ctx context.Context, therapistId string)
}
