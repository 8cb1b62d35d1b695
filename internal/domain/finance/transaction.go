// Package finance models student financial transactions and the account
// balance derived from them.
package finance

import (
	"strings"
	"time"

	"github.com/campus-records/records-core/internal/domain/shared"
	"github.com/campus-records/records-core/pkg/timeutil"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// NaturalKey identifies a transaction by the caller's reference.
type NaturalKey struct {
	StudentID uuid.UUID
	Reference string
}

// String returns a compact representation for logs and error messages.
func (k NaturalKey) String() string {
	return k.StudentID.String() + "/" + k.Reference
}

// Transaction is a charge or credit on a student account.
// Type and Amount never change after the first write.
type Transaction struct {
	ID              uuid.UUID
	StudentID       uuid.UUID
	Reference       string
	Type            Type
	Amount          decimal.Decimal
	Description     string
	TransactionDate time.Time
	DueDate         *time.Time
	Status          Status
	PaymentMethod   string
	PaymentDate     *time.Time
	ReceiptNumber   string
	RecordedBy      uuid.NullUUID
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// NewTransactionParams contains the caller-supplied fields of a transaction.
type NewTransactionParams struct {
	ID              uuid.UUID
	StudentID       uuid.UUID
	Reference       string
	Type            Type
	Amount          decimal.Decimal
	Description     string
	TransactionDate time.Time
	DueDate         *time.Time
	Status          Status
	PaymentMethod   string
	PaymentDate     *time.Time
	ReceiptNumber   string
	RecordedBy      uuid.NullUUID
}

// NewTransaction validates the params. Status defaults to PENDING and the
// transaction date to today.
func NewTransaction(p NewTransactionParams) (*Transaction, error) {
	const op = "NewTransaction"

	if p.StudentID == uuid.Nil {
		return nil, shared.NewDomainError("finance", op, shared.ErrInvalidID, "student reference is required")
	}
	ref := strings.TrimSpace(p.Reference)
	if ref == "" {
		return nil, shared.NewDomainError("finance", op, shared.ErrEmptyValue, "reference is required")
	}
	if !p.Type.IsValid() {
		return nil, shared.NewDomainError("finance", op, shared.ErrValueOutOfRange, "unknown type "+p.Type.String())
	}
	if p.Amount.IsNegative() {
		return nil, shared.NewDomainError("finance", op, shared.ErrNegativeValue, "amount cannot be negative")
	}

	status := p.Status
	if status == "" {
		status = StatusPending
	}
	if !status.IsValid() {
		return nil, shared.NewDomainError("finance", op, shared.ErrValueOutOfRange, "unknown status "+status.String())
	}

	txDate := p.TransactionDate
	if txDate.IsZero() {
		txDate = timeutil.Today()
	}

	id := p.ID
	if id == uuid.Nil {
		id = shared.NewRecordID()
	}
	now := time.Now().UTC()

	return &Transaction{
		ID:              id,
		StudentID:       p.StudentID,
		Reference:       ref,
		Type:            p.Type,
		Amount:          p.Amount,
		Description:     strings.TrimSpace(p.Description),
		TransactionDate: timeutil.CalendarDay(txDate),
		DueDate:         calendarDayPtr(p.DueDate),
		Status:          status,
		PaymentMethod:   strings.TrimSpace(p.PaymentMethod),
		PaymentDate:     calendarDayPtr(p.PaymentDate),
		ReceiptNumber:   strings.TrimSpace(p.ReceiptNumber),
		RecordedBy:      p.RecordedBy,
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}

func calendarDayPtr(t *time.Time) *time.Time {
	if t == nil || t.IsZero() {
		return nil
	}
	d := timeutil.CalendarDay(*t)
	return &d
}

// Key returns the natural key of the transaction.
func (t *Transaction) Key() NaturalKey {
	return NaturalKey{StudentID: t.StudentID, Reference: t.Reference}
}

// Contribution returns the signed balance effect, zero when cancelled.
func (t *Transaction) Contribution() decimal.Decimal {
	if t.Status == StatusCancelled {
		return decimal.Zero
	}
	return Contribution(t.Type, t.Amount)
}

// SameCharge reports whether other carries the same immutable fields.
func (t *Transaction) SameCharge(other *Transaction) bool {
	return t.Type == other.Type && t.Amount.Equal(other.Amount)
}

// Clone returns a copy of the transaction.
func (t *Transaction) Clone() *Transaction {
	c := *t
	return &c
}

// ══════════════════════════════════════════════════════════════════════════════
// PAYMENT UPDATE
// ══════════════════════════════════════════════════════════════════════════════

// PaymentUpdate is the set of mutable payment fields.
type PaymentUpdate struct {
	Status        Status
	PaymentMethod string
	PaymentDate   *time.Time
	ReceiptNumber string
	RecordedBy    uuid.NullUUID
}

// Normalize trims the free-text fields and, for PAID, defaults the payment
// date to today.
func (u PaymentUpdate) Normalize() PaymentUpdate {
	u.PaymentMethod = strings.TrimSpace(u.PaymentMethod)
	u.ReceiptNumber = strings.TrimSpace(u.ReceiptNumber)
	u.PaymentDate = calendarDayPtr(u.PaymentDate)
	if u.Status == StatusPaid && u.PaymentDate == nil {
		today := timeutil.Today()
		u.PaymentDate = &today
	}
	return u
}

// ApplyPayment moves the transaction to a new status and records payment
// details. Empty update fields keep the stored values.
func (t *Transaction) ApplyPayment(u PaymentUpdate) error {
	if !u.Status.IsValid() {
		return shared.NewDomainError("finance", "ApplyPayment", shared.ErrValueOutOfRange, "unknown status "+u.Status.String())
	}
	if !CanTransition(t.Status, u.Status) {
		return shared.NewDomainError("finance", "ApplyPayment", shared.ErrStateTransition,
			"cannot move "+t.Reference+" from "+t.Status.String()+" to "+u.Status.String())
	}

	u = u.Normalize()
	t.Status = u.Status
	if u.PaymentMethod != "" {
		t.PaymentMethod = u.PaymentMethod
	}
	if u.PaymentDate != nil {
		t.PaymentDate = u.PaymentDate
	}
	if u.ReceiptNumber != "" {
		t.ReceiptNumber = u.ReceiptNumber
	}
	if u.RecordedBy.Valid {
		t.RecordedBy = u.RecordedBy
	}
	t.UpdatedAt = time.Now().UTC()
	return nil
}

// Merge overwrites the mutable fields of a stored transaction with those of
// a resubmitted one. ID and CreatedAt stay those of the stored row.
func (t *Transaction) Merge(incoming *Transaction) error {
	if !t.SameCharge(incoming) {
		return shared.NewDomainError("finance", "Merge", shared.ErrValidation,
			"reference "+t.Reference+" was already used for "+t.Type.String()+" "+t.Amount.String())
	}
	if !CanTransition(t.Status, incoming.Status) {
		return shared.NewDomainError("finance", "Merge", shared.ErrStateTransition,
			"cannot move "+t.Reference+" from "+t.Status.String()+" to "+incoming.Status.String())
	}

	t.Description = incoming.Description
	t.TransactionDate = incoming.TransactionDate
	t.DueDate = incoming.DueDate
	t.Status = incoming.Status
	t.PaymentMethod = incoming.PaymentMethod
	t.PaymentDate = incoming.PaymentDate
	t.ReceiptNumber = incoming.ReceiptNumber
	t.RecordedBy = incoming.RecordedBy
	t.UpdatedAt = time.Now().UTC()
	return nil
}
