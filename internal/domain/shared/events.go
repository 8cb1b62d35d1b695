// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages.
package shared

import (
	"time"
)

// EventType represents the type of domain event.
type EventType string

// Domain event types. Each is published after the store transaction that
// produced it has committed.
const (
	EventAttendanceRecorded   EventType = "attendance.recorded"
	EventAssessmentsRecorded  EventType = "grade.assessments_recorded"
	EventMarksCorrected       EventType = "grade.marks_corrected"
	EventTransactionsRecorded EventType = "finance.transactions_recorded"
	EventPaymentStatusChanged EventType = "finance.payment_status_changed"
)

// Event is the base interface for all domain events.
type Event interface {
	// EventType returns the type of the event.
	EventType() EventType

	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time

	// AggregateID returns the ID of the aggregate that produced this event.
	AggregateID() string

	// Payload returns the event data as a map for serialization.
	Payload() map[string]interface{}
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	Type        EventType `json:"type"`
	Timestamp   time.Time `json:"timestamp"`
	AggregateId string    `json:"aggregate_id"`
}

// EventType returns the type of the event.
func (e BaseEvent) EventType() EventType {
	return e.Type
}

// OccurredAt returns when the event occurred.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// AggregateID returns the ID of the aggregate.
func (e BaseEvent) AggregateID() string {
	return e.AggregateId
}

// NewBaseEvent creates a new BaseEvent with the current timestamp.
func NewBaseEvent(eventType EventType, aggregateID string) BaseEvent {
	return BaseEvent{
		Type:        eventType,
		Timestamp:   time.Now().UTC(),
		AggregateId: aggregateID,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// RECORD EVENTS
// ═══════════════════════════════════════════════════════════════════════════

// RecordsCommittedEvent is published once per committed write (single upsert
// or whole batch). StudentIDs lists every student whose aggregates changed.
type RecordsCommittedEvent struct {
	BaseEvent
	StudentIDs  []string `json:"student_ids"`
	RecordCount int      `json:"record_count"`
}

// Payload returns the event data as a map.
func (e RecordsCommittedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"student_ids":  e.StudentIDs,
		"record_count": e.RecordCount,
	}
}

// NewRecordsCommittedEvent creates a RecordsCommittedEvent. The aggregate ID
// is the batch identifier assigned by the command handler.
func NewRecordsCommittedEvent(eventType EventType, batchID string, studentIDs []string, count int) RecordsCommittedEvent {
	return RecordsCommittedEvent{
		BaseEvent:   NewBaseEvent(eventType, batchID),
		StudentIDs:  studentIDs,
		RecordCount: count,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// EVENT BUS INTERFACES
// ═══════════════════════════════════════════════════════════════════════════

// EventHandler is a function that handles an event.
type EventHandler func(event Event) error

// EventPublisher defines the interface for publishing events.
type EventPublisher interface {
	// Publish sends an event to subscribers.
	Publish(event Event) error
}

// EventSubscriber defines the interface for subscribing to events.
type EventSubscriber interface {
	// Subscribe registers a handler for a specific event type.
	Subscribe(eventType EventType, handler EventHandler) error

	// SubscribeAll registers a handler for all events.
	SubscribeAll(handler EventHandler) error
}

// EventBus combines publishing and subscribing.
type EventBus interface {
	EventPublisher
	EventSubscriber
}

// NopPublisher discards events. Used when no subscriber is wired.
type NopPublisher struct{}

// Publish implements EventPublisher.
func (NopPublisher) Publish(Event) error { return nil }
