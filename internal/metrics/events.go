package metrics

import "practicerooms/internal/events"

var transitionEvents = map[string]string{
	events.BookingUpdated:   "update",
	events.BookingCancelled: "cancel",
	events.BookingCheckedIn: "check_in",
	events.BookingApproved:  "approve",
	events.BookingDeleted:   "delete",
	events.BookingNoShow:    "no_show",
}

// SubscribeEvents feeds the booking counters from bus.
func SubscribeEvents(bus *events.EventBus) {
	bus.Subscribe(events.BookingCreated, func(e events.Event) error {
		var p events.BookingPayload
		if err := e.Decode(&p); err != nil {
			return err
		}
		IncBookingCreated(p.Purpose)
		return nil
	})
	bus.Subscribe(events.BookingRejected, func(e events.Event) error {
		var p events.BookingPayload
		if err := e.Decode(&p); err != nil {
			return err
		}
		IncBookingRejected(p.Reason)
		return nil
	})
	for eventType, transition := range transitionEvents {
		bus.Subscribe(eventType, func(events.Event) error {
			IncTransition(transition)
			return nil
		})
	}
	bus.Subscribe(events.StudentPenalized, func(e events.Event) error {
		var p events.PenaltyPayload
		if err := e.Decode(&p); err != nil {
			return err
		}
		if p.PenaltyApplied {
			IncNoShowPenalty()
		}
		return nil
	})
}
