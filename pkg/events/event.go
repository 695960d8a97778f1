package events

import (
	"fmt"
	"strings"
	"time"
)

// Event is a reservation lifecycle event.
type Event string

const (
	EventCreated             Event = "created"
	EventUpdated             Event = "updated"
	EventCancelled           Event = "cancelled"
	EventDeleted             Event = "deleted"
	EventConfirmedByTenant   Event = "confirmed_by_tenant"
	EventConfirmedByCustomer Event = "confirmed_by_customer"
	EventStatusChanged       Event = "status_changed"
	EventPaymentReceived     Event = "payment_received"
	EventReady               Event = "ready"
	EventCompleted           Event = "completed"
	EventNoShow              Event = "no_show"
)

var allEvents = []Event{
	EventCreated, EventUpdated, EventCancelled, EventDeleted,
	EventConfirmedByTenant, EventConfirmedByCustomer, EventStatusChanged,
	EventPaymentReceived, EventReady, EventCompleted, EventNoShow,
}

func (e Event) Valid() bool {
	for _, known := range allEvents {
		if e == known {
			return true
		}
	}
	return false
}

// ParseEvent accepts event names case-insensitively, with dashes or underscores.
func ParseEvent(s string) (Event, error) {
	e := Event(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_"))
	if !e.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownEvent, s)
	}
	return e, nil
}

// Status is a reservation status.
type Status string

const (
	StatusReadyToConfirm Status = "ready_to_confirm"
	StatusReady          Status = "ready"
	StatusConfirmed      Status = "confirmed"
	StatusCancelled      Status = "cancelled"
	StatusCompleted      Status = "completed"
	StatusNoShow         Status = "no_show"
)

// Role names the party a notification is addressed to.
type Role string

const (
	RoleOwner    Role = "owner"
	RoleCustomer Role = "customer"
)

// Reservation is the part of a reservation the router reads.
type Reservation struct {
	ID       string `json:"id"`
	TenantID string `json:"tenant_id"`
	// CustomerID is empty for anonymous (guest) reservations.
	CustomerID   string    `json:"customer_id,omitempty"`
	CustomerName string    `json:"customer_name,omitempty"`
	Resource     string    `json:"resource,omitempty"`
	PartySize    int       `json:"party_size,omitempty"`
	StartsAt     time.Time `json:"starts_at"`
	Status       Status    `json:"status"`
}

// Anonymous reports whether there is no stored customer identity.
func (r Reservation) Anonymous() bool { return r.CustomerID == "" }

// EventContext carries one lifecycle event.
type EventContext struct {
	Event       Event       `json:"event"`
	Reservation Reservation `json:"reservation"`
	// PreviousStatus is set for status_changed events.
	PreviousStatus Status `json:"previous_status,omitempty"`
	// ActorID is the user who caused the event; it becomes the sender.
	ActorID string `json:"actor_id,omitempty"`
	// CancelledBy selects the wording of cancellation messages.
	CancelledBy Role   `json:"cancelled_by,omitempty"`
	Reason      string `json:"reason,omitempty"`
	// Amount is a preformatted payment amount for payment_received.
	Amount string `json:"amount,omitempty"`
}

// ReminderContext carries one due reservation reminder.
type ReminderContext struct {
	Reservation  Reservation
	TenantName   string
	CustomerName string
	LeadTime     time.Duration
}
