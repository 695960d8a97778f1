package reminders_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/notifykit/pkg/channels"
	"github.com/dmitrymomot/notifykit/pkg/events"
	"github.com/dmitrymomot/notifykit/pkg/notifications"
	"github.com/dmitrymomot/notifykit/pkg/reminders"
	"github.com/dmitrymomot/notifykit/pkg/settings"
)

const tenantID = "tenant-1"

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

type harness struct {
	clock     *clock
	storage   *notifications.MemoryStorage
	reminders *reminders.MemoryStore
	settings  *settings.Static
	processor *reminders.Processor
}

// newHarness wires the real service, router and onsite adapter.
func newHarness(t *testing.T) *harness {
	t.Helper()
	clk := &clock{now: time.Date(2026, 4, 30, 12, 0, 0, 0, time.UTC)}
	storage := notifications.NewMemoryStorage()
	storage.PutContact(notifications.Contact{UserID: "customer-1", Name: "Aiko"})

	registry := notifications.MustNewRegistry(channels.NewOnsite(nil))
	tracker := notifications.NewTracker(storage, notifications.WithTrackerClock(clk.Now), notifications.WithTrackerLogger(discard()))
	queue := notifications.NewQueue(storage, registry, tracker, notifications.WithQueueClock(clk.Now), notifications.WithQueueLogger(discard()))
	service := notifications.NewService(storage, queue, tracker, notifications.WithServiceClock(clk.Now), notifications.WithServiceLogger(discard()))

	provider := settings.NewStatic(settings.DefaultSystem(), settings.Tenant{
		TenantID:            tenantID,
		Name:                "Blue Door Bistro",
		OwnerUserID:         "owner-1",
		ReservationsEnabled: true,
		ReminderLeadTime:    24 * time.Hour,
	})
	router, err := events.NewRouter(service, provider,
		events.WithLogger(discard()),
		events.WithChannels(events.RoleCustomer, notifications.ChannelOnsite),
	)
	require.NoError(t, err)

	store := reminders.NewMemoryStore()
	p, err := reminders.NewProcessor(store, router, provider,
		reminders.WithClock(clk.Now),
		reminders.WithContacts(storage),
		reminders.WithLogger(discard()),
	)
	require.NoError(t, err)
	return &harness{clock: clk, storage: storage, reminders: store, settings: provider, processor: p}
}

func (h *harness) reservation(id string, startsIn time.Duration, status events.Status) events.Reservation {
	r := events.Reservation{
		ID:         id,
		TenantID:   tenantID,
		CustomerID: "customer-1",
		Resource:   "Table 4",
		PartySize:  2,
		StartsAt:   h.clock.Now().Add(startsIn),
		Status:     status,
	}
	h.reminders.PutReservation(r)
	return r
}

func (h *harness) customerNotifications(t *testing.T) []notifications.Notification {
	t.Helper()
	list, err := h.storage.ListNotifications(context.Background(), notifications.ListOptions{UserID: "customer-1"})
	require.NoError(t, err)
	return list
}

func TestProcessDueReminders_LeadTimeWindow(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.reservation("res-due", 24*time.Hour+2*time.Minute, events.StatusReady)

	sum, err := h.processor.ProcessDueReminders(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Due)
	assert.Equal(t, 1, sum.Sent)

	rec, ok := h.reminders.Record("res-due")
	require.True(t, ok)
	assert.Equal(t, reminders.RecordSent, rec.Status)
	assert.NotEmpty(t, rec.NotificationID)

	list := h.customerNotifications(t)
	require.Len(t, list, 1)
	assert.Equal(t, rec.NotificationID, list[0].ID)
	assert.Contains(t, list[0].Body, "Blue Door Bistro")

	h.clock.Advance(10 * time.Minute)
	sum, err = h.processor.ProcessDueReminders(context.Background())
	require.NoError(t, err)
	assert.Zero(t, sum.Due)
	assert.Len(t, h.customerNotifications(t), 1)
	assert.Equal(t, 1, h.reminders.Records())
}

func TestProcessDueReminders_Idempotent(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.reservation("res-1", 24*time.Hour, events.StatusReadyToConfirm)

	for range 2 {
		_, err := h.processor.ProcessDueReminders(context.Background())
		require.NoError(t, err)
	}
	assert.Equal(t, 1, h.reminders.Records())
	assert.Len(t, h.customerNotifications(t), 1)
}

func TestProcessDueReminders_Selection(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.reservation("too-early", 24*time.Hour-6*time.Minute, events.StatusReady)
	h.reservation("too-late", 24*time.Hour+6*time.Minute, events.StatusReady)
	h.reservation("edge", 24*time.Hour+5*time.Minute, events.StatusReady)
	h.reservation("cancelled", 24*time.Hour, events.StatusCancelled)
	h.reservation("confirmed", 24*time.Hour, events.StatusConfirmed)

	sum, err := h.processor.ProcessDueReminders(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Due)
	_, ok := h.reminders.Record("edge")
	assert.True(t, ok)
	assert.Equal(t, 1, h.reminders.Records())
}

func TestProcessDueReminders_InactiveTenants(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.reservation("res-1", 24*time.Hour, events.StatusReady)

	for _, tenant := range []settings.Tenant{
		{TenantID: tenantID, ReservationsEnabled: false, ReminderLeadTime: 24 * time.Hour},
		{TenantID: tenantID, ReservationsEnabled: true, ReminderLeadTime: 0},
	} {
		h.settings.SetTenant(tenant)
		sum, err := h.processor.ProcessDueReminders(context.Background())
		require.NoError(t, err)
		assert.Zero(t, sum.Tenants)
		assert.Zero(t, h.reminders.Records())
	}
}

func TestProcessDueReminders_FailureStillRecorded(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	r := h.reservation("guest", 24*time.Hour, events.StatusReady)
	r.CustomerID = ""
	h.reminders.PutReservation(r)

	sum, err := h.processor.ProcessDueReminders(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Failed)

	rec, ok := h.reminders.Record("guest")
	require.True(t, ok)
	assert.Equal(t, reminders.RecordFailed, rec.Status)
	assert.Contains(t, rec.Error, "anonymous customer")

	sum, err = h.processor.ProcessDueReminders(context.Background())
	require.NoError(t, err)
	assert.Zero(t, sum.Due)
}

// stubReminder counts calls and can block or fail.
type stubReminder struct {
	calls   atomic.Int64
	release chan struct{}
	result  events.Result
}

func (s *stubReminder) SendReminder(_ context.Context, rc events.ReminderContext) events.Result {
	s.calls.Add(1)
	if s.release != nil {
		<-s.release
	}
	res := s.result
	res.ReservationID = rc.Reservation.ID
	return res
}

func TestProcessDueReminders_RouterError(t *testing.T) {
	t.Parallel()

	start := time.Date(2026, 4, 30, 12, 0, 0, 0, time.UTC)
	store := reminders.NewMemoryStore(events.Reservation{
		ID: "res-1", TenantID: tenantID, CustomerID: "c", StartsAt: start.Add(time.Hour), Status: events.StatusReady,
	})
	provider := settings.NewStatic(settings.DefaultSystem(), settings.Tenant{
		TenantID: tenantID, ReservationsEnabled: true, ReminderLeadTime: time.Hour,
	})
	stub := &stubReminder{result: events.Result{Deliveries: []events.Delivery{{Err: errors.New("provider down")}}}}
	p, err := reminders.NewProcessor(store, stub, provider,
		reminders.WithClock(func() time.Time { return start }),
		reminders.WithLogger(discard()),
	)
	require.NoError(t, err)

	sum, err := p.ProcessDueReminders(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Failed)
	rec, ok := store.Record("res-1")
	require.True(t, ok)
	assert.Equal(t, reminders.RecordFailed, rec.Status)
	assert.Equal(t, "provider down", rec.Error)
	assert.Equal(t, start, rec.ScheduledAt)
}

func TestProcessDueReminders_OverlappingSweepSkipped(t *testing.T) {
	t.Parallel()

	start := time.Date(2026, 4, 30, 12, 0, 0, 0, time.UTC)
	store := reminders.NewMemoryStore(events.Reservation{
		ID: "res-1", TenantID: tenantID, CustomerID: "c", StartsAt: start.Add(time.Hour), Status: events.StatusReady,
	})
	provider := settings.NewStatic(settings.DefaultSystem(), settings.Tenant{
		TenantID: tenantID, ReservationsEnabled: true, ReminderLeadTime: time.Hour,
	})
	stub := &stubReminder{release: make(chan struct{})}
	p, err := reminders.NewProcessor(store, stub, provider,
		reminders.WithClock(func() time.Time { return start }),
		reminders.WithLogger(discard()),
	)
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = p.ProcessDueReminders(context.Background())
	}()
	require.Eventually(t, func() bool { return stub.calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	sum, err := p.ProcessDueReminders(context.Background())
	require.NoError(t, err)
	assert.True(t, sum.Overlapped)

	close(stub.release)
	<-done
	assert.Equal(t, int64(1), stub.calls.Load())
	assert.Equal(t, 1, store.Records())
}

// racingStore reports every insert as a duplicate, as if another process won.
type racingStore struct {
	*reminders.MemoryStore
}

func (racingStore) InsertReminder(context.Context, reminders.Record) error {
	return reminders.ErrReminderExists
}

func TestProcessDueReminders_DuplicateInsertIsNotAnError(t *testing.T) {
	t.Parallel()

	start := time.Date(2026, 4, 30, 12, 0, 0, 0, time.UTC)
	store := racingStore{reminders.NewMemoryStore(events.Reservation{
		ID: "res-1", TenantID: tenantID, CustomerID: "c", StartsAt: start.Add(time.Hour), Status: events.StatusReady,
	})}
	provider := settings.NewStatic(settings.DefaultSystem(), settings.Tenant{
		TenantID: tenantID, ReservationsEnabled: true, ReminderLeadTime: time.Hour,
	})
	p, err := reminders.NewProcessor(store, &stubReminder{}, provider,
		reminders.WithClock(func() time.Time { return start }),
		reminders.WithLogger(discard()),
	)
	require.NoError(t, err)

	sum, err := p.ProcessDueReminders(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Duplicates)
	assert.Zero(t, sum.Sent+sum.Failed)
}

// ctxStore fails like a database driver once the caller's context is done.
type ctxStore struct {
	*reminders.MemoryStore
}

func (s ctxStore) InsertReminder(ctx context.Context, r reminders.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.MemoryStore.InsertReminder(ctx, r)
}

// cancellingReminder cancels the sweep right after dispatching.
type cancellingReminder struct {
	calls  atomic.Int64
	cancel context.CancelFunc
}

func (c *cancellingReminder) SendReminder(_ context.Context, rc events.ReminderContext) events.Result {
	c.calls.Add(1)
	c.cancel()
	return events.Result{
		ReservationID: rc.Reservation.ID,
		Deliveries:    []events.Delivery{{NotificationID: "n-1"}},
	}
}

func TestProcessDueReminders_RecordSurvivesCancellation(t *testing.T) {
	t.Parallel()

	start := time.Date(2026, 4, 30, 12, 0, 0, 0, time.UTC)
	store := ctxStore{reminders.NewMemoryStore(events.Reservation{
		ID: "res-1", TenantID: tenantID, CustomerID: "c", StartsAt: start.Add(time.Hour), Status: events.StatusReady,
	})}
	provider := settings.NewStatic(settings.DefaultSystem(), settings.Tenant{
		TenantID: tenantID, ReservationsEnabled: true, ReminderLeadTime: time.Hour,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	stub := &cancellingReminder{cancel: cancel}
	p, err := reminders.NewProcessor(store, stub, provider,
		reminders.WithClock(func() time.Time { return start }),
		reminders.WithLogger(discard()),
	)
	require.NoError(t, err)

	_, _ = p.ProcessDueReminders(ctx)
	rec, ok := store.Record("res-1")
	require.True(t, ok)
	assert.Equal(t, "n-1", rec.NotificationID)

	sum, err := p.ProcessDueReminders(context.Background())
	require.NoError(t, err)
	assert.Zero(t, sum.Due)
	assert.Equal(t, int64(1), stub.calls.Load())
}

func TestNewProcessor_Validation(t *testing.T) {
	t.Parallel()

	provider := settings.NewStatic(settings.DefaultSystem())
	_, err := reminders.NewProcessor(nil, &stubReminder{}, provider)
	assert.ErrorIs(t, err, reminders.ErrStoreRequired)
	_, err = reminders.NewProcessor(reminders.NewMemoryStore(), nil, provider)
	assert.ErrorIs(t, err, reminders.ErrRouterRequired)
	_, err = reminders.NewProcessor(reminders.NewMemoryStore(), &stubReminder{}, nil)
	assert.ErrorIs(t, err, reminders.ErrSettingsRequired)
}
