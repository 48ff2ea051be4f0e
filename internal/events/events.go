package events

import (
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// Booking lifecycle event types.
const (
	BookingCreated   = "booking.created"
	BookingRejected  = "booking.rejected"
	BookingUpdated   = "booking.updated"
	BookingCancelled = "booking.cancelled"
	BookingCheckedIn = "booking.checked_in"
	BookingApproved  = "booking.approved"
	BookingDeleted   = "booking.deleted"
	BookingNoShow    = "booking.no_show"
	StudentPenalized = "student.penalized"
	CatalogSynced    = "catalog.synced"
)

// Event represents a lightweight domain event.
type Event struct {
	ID        int64
	Type      string
	Payload   []byte
	CreatedAt time.Time
}

// Decode unmarshals the payload into v.
func (e Event) Decode(v interface{}) error {
	return json.Unmarshal(e.Payload, v)
}

// EventHandler reacts to an event.
type EventHandler func(event Event) error

// EventBus provides in-process pub/sub for events.
type EventBus struct {
	subscribers map[string][]EventHandler
	mu          sync.RWMutex
	seq         atomic.Int64
}

// NewEventBus constructs an empty bus.
func NewEventBus() *EventBus {
	return &EventBus{subscribers: make(map[string][]EventHandler)}
}

// Subscribe registers a handler for a given event type.
func (b *EventBus) Subscribe(eventType string, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// Publish notifies subscribers of the event type and returns the first handler error.
// Every handler runs even if an earlier one failed.
func (b *EventBus) Publish(event Event) error {
	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.subscribers[event.Type]...)
	b.mu.RUnlock()

	if event.ID == 0 {
		event.ID = b.seq.Add(1)
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	var first error
	for _, handler := range handlers {
		// Handlers run synchronously; caller decides concurrency model.
		if err := handler(event); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// PublishJSON encodes payload and publishes it under eventType.
func (b *EventBus) PublishJSON(eventType string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", eventType, err)
	}
	return b.Publish(Event{Type: eventType, Payload: data})
}

// BookingPayload is carried by every booking.* event.
type BookingPayload struct {
	BookingID  int64  `json:"booking_id,omitempty"`
	StudentID  int64  `json:"student_id"`
	RoomID     int64  `json:"room_id"`
	Purpose    string `json:"purpose,omitempty"`
	Status     string `json:"status,omitempty"`
	Reason     string `json:"reason,omitempty"`
	Message    string `json:"message,omitempty"`
	Operation  string `json:"operation,omitempty"`
	Instructor int64  `json:"instructor_id,omitempty"`
}

// PenaltyPayload is carried by student.penalized.
type PenaltyPayload struct {
	StudentID         int64 `json:"student_id"`
	NoShowCount       int   `json:"no_show_count"`
	QuotaPenaltyHours int   `json:"quota_penalty_hours"`
	PenaltyApplied    bool  `json:"penalty_applied"`
}
