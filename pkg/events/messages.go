package events

import (
	"fmt"
	"strings"
	"time"

	"github.com/dmitrymomot/notifykit/pkg/notifications"
)

// message is the content planned for one role.
type message struct {
	role     Role
	kind     notifications.Kind
	priority notifications.Priority
	subject  string
	body     string
}

// wording holds the values messages are built from.
type wording struct {
	tenant   string
	customer string
	resource string
	when     string
	party    int
}

func newWording(res Reservation, tenantName string, loc *time.Location) wording {
	w := wording{
		tenant:   tenantName,
		customer: res.CustomerName,
		resource: res.Resource,
		when:     res.StartsAt.In(loc).Format("Mon, Jan 2 at 15:04"),
		party:    res.PartySize,
	}
	if w.tenant == "" {
		w.tenant = "the shop"
	}
	if w.customer == "" {
		w.customer = "A guest"
	}
	if w.resource == "" {
		w.resource = "a reservation"
	}
	return w
}

func (w wording) booking() string {
	if w.party > 0 {
		return fmt.Sprintf("%s for %d on %s", w.resource, w.party, w.when)
	}
	return fmt.Sprintf("%s on %s", w.resource, w.when)
}

// plan applies the routing rules. An empty plan with a reason means the
// event needs no notification.
func plan(ec EventContext, w wording) ([]message, string) {
	owner := func(subject, body string) message {
		return message{role: RoleOwner, kind: notifications.KindReservation, subject: subject, body: body}
	}
	customer := func(subject, body string) message {
		return message{role: RoleCustomer, kind: notifications.KindReservation, subject: subject, body: body}
	}

	switch ec.Event {
	case EventCreated:
		return []message{owner("New reservation",
			fmt.Sprintf("%s booked %s.", w.customer, w.booking()))}, ""
	case EventUpdated:
		return []message{owner("Reservation updated",
			fmt.Sprintf("%s updated the reservation: %s.", w.customer, w.booking()))}, ""
	case EventDeleted:
		return []message{owner("Reservation deleted",
			fmt.Sprintf("The reservation of %s for %s was deleted.", w.customer, w.when))}, ""
	case EventPaymentReceived:
		m := owner("Payment received", paymentBody(w, ec.Amount))
		m.kind = notifications.KindPayment
		return []message{m}, ""
	case EventCancelled:
		return cancellation(ec, w), ""
	case EventConfirmedByTenant:
		return []message{customer("Reservation confirmed",
			fmt.Sprintf("%s confirmed your reservation: %s.", w.tenant, w.booking()))}, ""
	case EventConfirmedByCustomer:
		return []message{owner("Reservation confirmed by customer",
			fmt.Sprintf("%s confirmed the reservation for %s.", w.customer, w.when))}, ""
	case EventStatusChanged:
		switch ec.Reservation.Status {
		case StatusReadyToConfirm:
			return []message{owner("Reservation awaiting confirmation",
				fmt.Sprintf("The reservation of %s for %s is waiting for your confirmation.", w.customer, w.when))}, ""
		case StatusReady:
			return []message{readyMessage(w)}, ""
		default:
			return nil, fmt.Sprintf("no rule for status %q", ec.Reservation.Status)
		}
	case EventReady:
		return []message{readyMessage(w)}, ""
	case EventCompleted:
		return []message{customer("Thank you for visiting",
			fmt.Sprintf("Thank you for visiting %s. We hope to see you again soon.", w.tenant))}, ""
	case EventNoShow:
		return []message{customer("We missed you",
			fmt.Sprintf("You were expected at %s on %s. Contact us to book a new time.", w.tenant, w.when))}, ""
	default:
		return nil, "unknown event"
	}
}

func readyMessage(w wording) message {
	return message{
		role:     RoleCustomer,
		kind:     notifications.KindReservation,
		priority: notifications.PriorityHigh,
		subject:  "Your reservation is ready",
		body:     fmt.Sprintf("%s is ready for you: %s.", w.tenant, w.booking()),
	}
}

func paymentBody(w wording, amount string) string {
	if amount == "" {
		return fmt.Sprintf("%s paid for the reservation on %s.", w.customer, w.when)
	}
	return fmt.Sprintf("%s paid %s for the reservation on %s.", w.customer, amount, w.when)
}

// cancellation words the message for each side by who cancelled.
func cancellation(ec EventContext, w wording) []message {
	var ownerBody, customerBody string
	switch ec.CancelledBy {
	case RoleCustomer:
		ownerBody = fmt.Sprintf("%s cancelled their reservation for %s.", w.customer, w.when)
		customerBody = fmt.Sprintf("Your reservation at %s for %s is cancelled as requested.", w.tenant, w.when)
	case RoleOwner:
		ownerBody = fmt.Sprintf("You cancelled the reservation of %s for %s.", w.customer, w.when)
		customerBody = fmt.Sprintf("%s cancelled your reservation for %s.", w.tenant, w.when)
	default:
		ownerBody = fmt.Sprintf("The reservation of %s for %s was cancelled.", w.customer, w.when)
		customerBody = fmt.Sprintf("Your reservation at %s for %s was cancelled.", w.tenant, w.when)
	}
	if reason := strings.TrimSpace(ec.Reason); reason != "" {
		ownerBody += " Reason: " + reason
		customerBody += " Reason: " + reason
	}
	return []message{
		{role: RoleOwner, kind: notifications.KindReservation, priority: notifications.PriorityHigh, subject: "Reservation cancelled", body: ownerBody},
		{role: RoleCustomer, kind: notifications.KindReservation, priority: notifications.PriorityHigh, subject: "Reservation cancelled", body: customerBody},
	}
}

func reminderMessage(w wording) message {
	return message{
		role:     RoleCustomer,
		kind:     notifications.KindReservation,
		priority: notifications.PriorityHigh,
		subject:  "Reservation reminder",
		body:     fmt.Sprintf("A reminder of your reservation at %s: %s.", w.tenant, w.booking()),
	}
}
