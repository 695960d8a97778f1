package reminders

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/dmitrymomot/notifykit/pkg/events"
)

// RecordStatus is the outcome stored for a reminder.
type RecordStatus string

const (
	RecordSent   RecordStatus = "sent"
	RecordFailed RecordStatus = "failed"
)

// Record marks a reservation as reminded. At most one exists per reservation.
type Record struct {
	ReservationID  string
	TenantID       string
	ScheduledAt    time.Time
	SentAt         time.Time
	NotificationID string
	Status         RecordStatus
	Error          string
}

// Store is the datastore the processor works against.
type Store interface {
	// DueReservations lists reservations of the tenant starting within
	// [from, to], in one of statuses, that have no reminder record.
	DueReservations(ctx context.Context, tenantID string, from, to time.Time, statuses []events.Status) ([]events.Reservation, error)
	// InsertReminder returns ErrReminderExists if the reservation already
	// has a record. Implementations must enforce this atomically.
	InsertReminder(ctx context.Context, r Record) error
}

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu           sync.Mutex
	reservations map[string]events.Reservation
	records      map[string]Record
}

func NewMemoryStore(reservations ...events.Reservation) *MemoryStore {
	s := &MemoryStore{
		reservations: make(map[string]events.Reservation),
		records:      make(map[string]Record),
	}
	for _, r := range reservations {
		s.reservations[r.ID] = r
	}
	return s
}

// PutReservation adds or replaces a reservation.
func (s *MemoryStore) PutReservation(r events.Reservation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reservations[r.ID] = r
}

// SaveReservation implements events.ReservationSaver.
func (s *MemoryStore) SaveReservation(_ context.Context, r events.Reservation) error {
	s.PutReservation(r)
	return nil
}

func (s *MemoryStore) DueReservations(_ context.Context, tenantID string, from, to time.Time, statuses []events.Status) ([]events.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []events.Reservation
	for _, r := range s.reservations {
		if r.TenantID != tenantID || !slices.Contains(statuses, r.Status) {
			continue
		}
		if r.StartsAt.Before(from) || r.StartsAt.After(to) {
			continue
		}
		if _, done := s.records[r.ID]; done {
			continue
		}
		out = append(out, r)
	}
	slices.SortFunc(out, func(a, b events.Reservation) int { return a.StartsAt.Compare(b.StartsAt) })
	return out, nil
}

func (s *MemoryStore) InsertReminder(_ context.Context, r Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[r.ReservationID]; ok {
		return ErrReminderExists
	}
	s.records[r.ReservationID] = r
	return nil
}

// Record returns the reminder record of a reservation.
func (s *MemoryStore) Record(reservationID string) (Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[reservationID]
	return r, ok
}

// Records returns the number of stored reminder records.
func (s *MemoryStore) Records() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}
