package messaging

import (
	"context"
	"log/slog"

	"github.com/campus-records/records-core/internal/domain/shared"
)

// StudentInvalidator drops cached aggregates of the given students.
type StudentInvalidator interface {
	InvalidateStudents(ctx context.Context, studentIDs ...string) error
}

// recordEvents lists every event that reports committed record writes.
var recordEvents = []shared.EventType{
	shared.EventAttendanceRecorded,
	shared.EventAssessmentsRecorded,
	shared.EventMarksCorrected,
	shared.EventTransactionsRecorded,
	shared.EventPaymentStatusChanged,
}

// SubscribeCacheInvalidation invalidates cached aggregates of every student
// touched by a committed write.
func SubscribeCacheInvalidation(bus shared.EventSubscriber, inv StudentInvalidator) error {
	handler := func(event shared.Event) error {
		e, ok := event.(shared.RecordsCommittedEvent)
		if !ok || len(e.StudentIDs) == 0 {
			return nil
		}
		return inv.InvalidateStudents(context.Background(), e.StudentIDs...)
	}
	for _, t := range recordEvents {
		if err := bus.Subscribe(t, handler); err != nil {
			return err
		}
	}
	return nil
}

// SubscribeAuditLog writes one structured log line per committed write.
func SubscribeAuditLog(bus shared.EventSubscriber, logger *slog.Logger) error {
	logger = logger.With(slog.String("component", "audit"))
	return bus.SubscribeAll(func(event shared.Event) error {
		attrs := []any{
			slog.String("event_type", string(event.EventType())),
			slog.String("batch_id", event.AggregateID()),
			slog.Time("occurred_at", event.OccurredAt()),
		}
		if e, ok := event.(shared.RecordsCommittedEvent); ok {
			attrs = append(attrs,
				slog.Int("record_count", e.RecordCount),
				slog.Any("student_ids", e.StudentIDs),
			)
		}
		logger.Info("records committed", attrs...)
		return nil
	})
}
