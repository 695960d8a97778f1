package events_test

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/notifykit/pkg/events"
	"github.com/dmitrymomot/notifykit/pkg/reminders"
)

// fakeReader serves queued messages and then returns io.EOF.
type fakeReader struct {
	mu        sync.Mutex
	messages  []kafka.Message
	committed []int64
	closed    bool
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return kafka.Message{}, err
	}
	if len(r.messages) == 0 {
		return kafka.Message{}, io.EOF
	}
	m := r.messages[0]
	r.messages = r.messages[1:]
	return m, nil
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

type recordingRouter struct {
	mu  sync.Mutex
	got []events.EventContext
}

func (r *recordingRouter) RouteNotification(_ context.Context, ec events.EventContext) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, ec)
}

func TestKafkaConsumer_Run(t *testing.T) {
	t.Parallel()

	valid, err := events.EncodeEvent(events.EventContext{Event: events.EventCreated, Reservation: reservation()})
	require.NoError(t, err)

	reader := &fakeReader{messages: []kafka.Message{
		{Offset: 1, Value: valid},
		{Offset: 2, Value: []byte(`{not json`)},
		{Offset: 3, Value: []byte(`{"event":"exploded","reservation":{"id":"r","tenant_id":"t"}}`)},
		{Offset: 4, Value: []byte(`{"event":"Cancelled","reservation":{"id":"r2","tenant_id":"t"},"cancelled_by":"customer"}`)},
	}}
	router := &recordingRouter{}
	c := events.NewKafkaConsumer(reader, router, discard())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, c.Run(ctx))

	require.Len(t, router.got, 2)
	assert.Equal(t, events.EventCreated, router.got[0].Event)
	assert.Equal(t, "res-1", router.got[0].Reservation.ID)
	assert.Equal(t, events.EventCancelled, router.got[1].Event)
	assert.Equal(t, events.RoleCustomer, router.got[1].CancelledBy)

	// Malformed messages are committed so they are not redelivered forever.
	assert.Equal(t, []int64{1, 2, 3, 4}, reader.committed)

	require.NoError(t, c.Close())
	assert.True(t, reader.closed)
}

func TestKafkaConsumer_RecordsReservations(t *testing.T) {
	t.Parallel()

	res := reservation()
	res.Status = events.StatusReadyToConfirm
	created, err := events.EncodeEvent(events.EventContext{Event: events.EventCreated, Reservation: res})
	require.NoError(t, err)
	gone := res
	gone.ID = "res-2"
	deleted, err := events.EncodeEvent(events.EventContext{Event: events.EventDeleted, Reservation: gone})
	require.NoError(t, err)

	store := reminders.NewMemoryStore()
	router := &recordingRouter{}
	reader := &fakeReader{messages: []kafka.Message{{Offset: 1, Value: created}, {Offset: 2, Value: deleted}}}
	c := events.NewKafkaConsumer(reader, events.NewRecorder(store, router, discard()), discard())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, c.Run(ctx))
	assert.Len(t, router.got, 2)

	due, err := store.DueReservations(context.Background(), tenantID,
		res.StartsAt.Add(-5*time.Minute), res.StartsAt.Add(5*time.Minute),
		[]events.Status{events.StatusReadyToConfirm, events.StatusReady},
	)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, "res-1", due[0].ID)
}

type failingSaver struct{}

func (failingSaver) SaveReservation(context.Context, events.Reservation) error {
	return assert.AnError
}

func TestRecorder_RoutesWhenSaveFails(t *testing.T) {
	t.Parallel()

	router := &recordingRouter{}
	events.NewRecorder(failingSaver{}, router, discard()).
		RouteNotification(context.Background(), events.EventContext{Event: events.EventCreated, Reservation: reservation()})
	assert.Len(t, router.got, 1)
}

func TestKafkaConsumer_StopsOnCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c := events.NewKafkaConsumer(&fakeReader{}, &recordingRouter{}, nil)
	assert.NoError(t, c.Run(ctx))
}

func TestDecodeEvent(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		payload string
		wantErr error
	}{
		{name: "valid", payload: `{"event":"ready","reservation":{"id":"r","tenant_id":"t","starts_at":"2026-05-01T19:00:00Z"}}`},
		{name: "bad json", payload: `[`, wantErr: events.ErrInvalidEvent},
		{name: "unknown event", payload: `{"event":"boom","reservation":{"id":"r","tenant_id":"t"}}`, wantErr: events.ErrUnknownEvent},
		{name: "missing tenant", payload: `{"event":"ready","reservation":{"id":"r"}}`, wantErr: events.ErrInvalidEvent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ec, err := events.DecodeEvent([]byte(tt.payload))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, events.EventReady, ec.Event)
			assert.Equal(t, time.Date(2026, 5, 1, 19, 0, 0, 0, time.UTC), ec.Reservation.StartsAt)
		})
	}
}

func TestNewKafkaReader_RequiresBrokers(t *testing.T) {
	t.Parallel()

	_, err := events.NewKafkaReader(events.KafkaConfig{Topic: "x"})
	assert.ErrorIs(t, err, events.ErrKafkaNotConfigured)
}
