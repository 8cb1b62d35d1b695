package finance

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Filter narrows a transaction listing. Empty Statuses match every status.
// A non-zero DueBefore keeps only transactions due strictly before that day.
type Filter struct {
	StudentID uuid.UUID
	Statuses  []Status
	DueBefore time.Time
}

// Matches reports whether t satisfies the filter.
func (f Filter) Matches(t *Transaction) bool {
	if f.StudentID != uuid.Nil && t.StudentID != f.StudentID {
		return false
	}
	if !f.DueBefore.IsZero() && (t.DueDate == nil || !t.DueDate.Before(f.DueBefore)) {
		return false
	}
	if len(f.Statuses) == 0 {
		return true
	}
	for _, s := range f.Statuses {
		if t.Status == s {
			return true
		}
	}
	return false
}

// Repository is the financial part of the record store.
type Repository interface {
	// Find returns the transaction with the given natural key or
	// shared.ErrTransactionNotFound.
	Find(ctx context.Context, key NaturalKey) (*Transaction, error)

	// Upsert inserts the transaction or updates the mutable fields of the
	// one stored under the same natural key. A stored transaction with a
	// different type or amount fails with shared.ErrValidation; a status
	// change CanTransition rejects fails with shared.ErrStateTransition.
	Upsert(ctx context.Context, t *Transaction) (*Transaction, error)

	// UpdatePaymentStatus applies a payment update to an existing
	// transaction under the same transition rules as Upsert.
	UpdatePaymentStatus(ctx context.Context, key NaturalKey, u PaymentUpdate) (*Transaction, error)

	// List returns matching transactions ordered by transaction date.
	List(ctx context.Context, filter Filter) ([]*Transaction, error)

	// Pending returns PENDING and OVERDUE transactions of the student
	// ordered by due date, undated ones last.
	Pending(ctx context.Context, studentID uuid.UUID) ([]*Transaction, error)
}
