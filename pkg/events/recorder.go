package events

import (
	"context"
	"log/slog"

	"github.com/dmitrymomot/notifykit/pkg/logger"
)

// ReservationSaver upserts the reservation read model the reminder sweep
// queries.
type ReservationSaver interface {
	SaveReservation(ctx context.Context, r Reservation) error
}

// Recorder saves the reservation carried by each event and then routes the
// event. A failed save is logged; the event is still routed.
type Recorder struct {
	store  ReservationSaver
	next   Routable
	logger *slog.Logger
}

// NewRecorder wraps next. l may be nil.
func NewRecorder(store ReservationSaver, next Routable, l *slog.Logger) *Recorder {
	if l == nil {
		l = slog.Default()
	}
	return &Recorder{store: store, next: next, logger: l}
}

func (r *Recorder) RouteNotification(ctx context.Context, ec EventContext) {
	res := ec.Reservation
	// Deleted reservations stay in the read model but are never actionable.
	if ec.Event == EventDeleted {
		res.Status = StatusCancelled
	}
	if res.ID != "" && res.TenantID != "" {
		if err := r.store.SaveReservation(ctx, res); err != nil {
			r.logger.LogAttrs(ctx, slog.LevelError, "save reservation",
				logger.Event(ec.Event),
				logger.ReservationID(res.ID),
				logger.TenantID(res.TenantID),
				logger.Error(err),
			)
		}
	}
	r.next.RouteNotification(ctx, ec)
}
