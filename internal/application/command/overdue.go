package command

import (
	"context"
	"log/slog"
	"time"

	"github.com/campus-records/records-core/internal/domain/finance"
	"github.com/campus-records/records-core/internal/domain/recordstore"
	"github.com/campus-records/records-core/internal/domain/shared"
	"github.com/campus-records/records-core/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// MARK OVERDUE COMMAND
// ══════════════════════════════════════════════════════════════════════════════

// MarkOverdueResult contains the result of one overdue sweep.
type MarkOverdueResult struct {
	BatchID string
	AsOf    time.Time
	Marked  []*finance.Transaction
}

// MarkOverdueHandler moves PENDING transactions whose due date has passed to
// OVERDUE.
type MarkOverdueHandler struct {
	writer
}

// NewMarkOverdueHandler creates a new MarkOverdueHandler.
func NewMarkOverdueHandler(store recordstore.UnitOfWorkFactory, publisher shared.EventPublisher, log *slog.Logger, config Config) *MarkOverdueHandler {
	return &MarkOverdueHandler{writer: newWriter(store, publisher, log, config)}
}

// Handle marks every PENDING transaction due before asOf in one unit of work.
// A zero asOf means today.
func (h *MarkOverdueHandler) Handle(ctx context.Context, asOf time.Time) (*MarkOverdueResult, error) {
	const op = "MarkOverdue"

	if asOf.IsZero() {
		asOf = timeutil.Today()
	}
	asOf = timeutil.CalendarDay(asOf)

	result := &MarkOverdueResult{BatchID: newBatchID(), AsOf: asOf}
	var students studentSet

	err := h.run(ctx, op, result.BatchID, 0, func(uow recordstore.UnitOfWork) error {
		due, err := uow.Transactions().List(ctx, finance.Filter{
			Statuses:  []finance.Status{finance.StatusPending},
			DueBefore: asOf,
		})
		if err != nil {
			return shared.Persistence("finance", op, "failed to list due transactions", err)
		}

		for i, t := range due {
			updated, err := uow.Transactions().UpdatePaymentStatus(ctx, t.Key(), finance.PaymentUpdate{Status: finance.StatusOverdue})
			if err != nil {
				return storeFailure("finance", op, i, t.Key().String(), err)
			}
			result.Marked = append(result.Marked, updated)
			students.add(updated.StudentID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(result.Marked) > 0 {
		h.publish(ctx, shared.EventPaymentStatusChanged, result.BatchID, students.ids, len(result.Marked))
	}
	return result, nil
}
