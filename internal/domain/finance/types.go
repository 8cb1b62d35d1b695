package finance

import (
	"strings"

	"github.com/campus-records/records-core/internal/domain/shared"

	"github.com/shopspring/decimal"
)

// ══════════════════════════════════════════════════════════════════════════════
// TRANSACTION TYPE
// ══════════════════════════════════════════════════════════════════════════════

// Type is the kind of a financial transaction.
type Type string

const (
	TypeFee         Type = "FEE"
	TypePayment     Type = "PAYMENT"
	TypeRefund      Type = "REFUND"
	TypeScholarship Type = "SCHOLARSHIP"
	TypePenalty     Type = "PENALTY"
)

// String returns the string representation.
func (t Type) String() string {
	return string(t)
}

// IsValid checks if the type is one of the known values.
func (t Type) IsValid() bool {
	switch t {
	case TypeFee, TypePayment, TypeRefund, TypeScholarship, TypePenalty:
		return true
	}
	return false
}

// IsCharge reports whether the type increases what the student owes.
func (t Type) IsCharge() bool {
	return t == TypeFee || t == TypePenalty
}

// ParseType parses a case-insensitive type name.
func ParseType(value string) (Type, error) {
	t := Type(strings.ToUpper(strings.TrimSpace(value)))
	if !t.IsValid() {
		return "", shared.NewDomainError("finance", "ParseType", shared.ErrValueOutOfRange,
			"type must be one of FEE, PAYMENT, REFUND, SCHOLARSHIP, PENALTY")
	}
	return t, nil
}

// Contribution returns the signed effect of a transaction on the balance:
// charges add, credits subtract.
func Contribution(t Type, amount decimal.Decimal) decimal.Decimal {
	if t.IsCharge() {
		return amount
	}
	return amount.Neg()
}

// ══════════════════════════════════════════════════════════════════════════════
// PAYMENT STATUS
// ══════════════════════════════════════════════════════════════════════════════

// Status is the payment status of a transaction.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusPaid      Status = "PAID"
	StatusOverdue   Status = "OVERDUE"
	StatusCancelled Status = "CANCELLED"
)

// String returns the string representation.
func (s Status) String() string {
	return string(s)
}

// IsValid checks if the status is one of the known values.
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusPaid, StatusOverdue, StatusCancelled:
		return true
	}
	return false
}

// ParseStatus parses a case-insensitive status name.
func ParseStatus(value string) (Status, error) {
	s := Status(strings.ToUpper(strings.TrimSpace(value)))
	if !s.IsValid() {
		return "", shared.NewDomainError("finance", "ParseStatus", shared.ErrValueOutOfRange,
			"status must be one of PENDING, PAID, OVERDUE, CANCELLED")
	}
	return s, nil
}

var transitions = map[Status][]Status{
	StatusPending: {StatusPaid, StatusOverdue, StatusCancelled},
	StatusOverdue: {StatusPaid, StatusCancelled},
}

// CanTransition reports whether a transaction may move from one status to
// another. Staying in the same status is always allowed.
func CanTransition(from, to Status) bool {
	if from == to {
		return true
	}
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// AllowedSources returns every status from which a move to target is allowed,
// including target itself.
func AllowedSources(target Status) []Status {
	out := []Status{target}
	for from, tos := range transitions {
		if from == target {
			continue
		}
		for _, s := range tos {
			if s == target {
				out = append(out, from)
			}
		}
	}
	return out
}
