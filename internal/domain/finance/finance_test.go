package finance

import (
	"testing"
	"time"

	"github.com/campus-records/records-core/internal/domain/shared"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContribution(t *testing.T) {
	amount := decimal.NewFromInt(100)

	tests := []struct {
		typ  Type
		want string
	}{
		{TypeFee, "100"},
		{TypePenalty, "100"},
		{TypePayment, "-100"},
		{TypeRefund, "-100"},
		{TypeScholarship, "-100"},
	}

	for _, tt := range tests {
		t.Run(tt.typ.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, Contribution(tt.typ, amount).String())
		})
	}
}

func TestBalance_ExcludesCancelled(t *testing.T) {
	txs := []*Transaction{
		{Type: TypeFee, Amount: decimal.NewFromInt(500), Status: StatusPending},
		{Type: TypePayment, Amount: decimal.NewFromInt(200), Status: StatusPaid},
		{Type: TypeRefund, Amount: decimal.NewFromInt(100), Status: StatusCancelled},
	}

	b := Balance(txs)

	assert.Equal(t, "300", b.Total.String())
	assert.Equal(t, "500", b.Charges.String())
	assert.Equal(t, "200", b.Credits.String())
	assert.Equal(t, 2, b.Transactions)
	assert.True(t, txs[2].Contribution().IsZero())
}

func TestBalance_Empty(t *testing.T) {
	b := Balance(nil)
	assert.True(t, b.Total.IsZero())
	assert.Equal(t, 0, b.Transactions)
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to Status
		want     bool
	}{
		{StatusPending, StatusPaid, true},
		{StatusPending, StatusOverdue, true},
		{StatusPending, StatusCancelled, true},
		{StatusOverdue, StatusPaid, true},
		{StatusOverdue, StatusCancelled, true},
		{StatusOverdue, StatusPending, false},
		{StatusPaid, StatusPending, false},
		{StatusPaid, StatusCancelled, false},
		{StatusCancelled, StatusPaid, false},
		{StatusPaid, StatusPaid, true},
		{StatusCancelled, StatusCancelled, true},
	}

	for _, tt := range tests {
		t.Run(tt.from.String()+"->"+tt.to.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransition(tt.from, tt.to))
		})
	}
}

func TestAllowedSources(t *testing.T) {
	assert.ElementsMatch(t, []Status{StatusPaid, StatusPending, StatusOverdue}, AllowedSources(StatusPaid))
	assert.ElementsMatch(t, []Status{StatusPending}, AllowedSources(StatusPending))
	assert.ElementsMatch(t, []Status{StatusOverdue, StatusPending}, AllowedSources(StatusOverdue))
}

func newFee(t *testing.T) *Transaction {
	t.Helper()
	due := time.Date(2024, time.September, 30, 12, 0, 0, 0, time.UTC)
	tx, err := NewTransaction(NewTransactionParams{
		StudentID: uuid.New(),
		Reference: " INV-1 ",
		Type:      TypeFee,
		Amount:    decimal.RequireFromString("1250.50"),
		DueDate:   &due,
	})
	require.NoError(t, err)
	return tx
}

func TestNewTransaction(t *testing.T) {
	tx := newFee(t)

	assert.Equal(t, "INV-1", tx.Reference)
	assert.Equal(t, StatusPending, tx.Status)
	assert.False(t, tx.TransactionDate.IsZero())
	require.NotNil(t, tx.DueDate)
	assert.Equal(t, 0, tx.DueDate.Hour())
}

func TestNewTransaction_Validation(t *testing.T) {
	base := NewTransactionParams{
		StudentID: uuid.New(),
		Reference: "INV-1",
		Type:      TypeFee,
		Amount:    decimal.NewFromInt(10),
	}

	tests := []struct {
		name   string
		mutate func(p *NewTransactionParams)
	}{
		{"missing student", func(p *NewTransactionParams) { p.StudentID = uuid.Nil }},
		{"missing reference", func(p *NewTransactionParams) { p.Reference = " " }},
		{"unknown type", func(p *NewTransactionParams) { p.Type = "GIFT" }},
		{"negative amount", func(p *NewTransactionParams) { p.Amount = decimal.NewFromInt(-1) }},
		{"unknown status", func(p *NewTransactionParams) { p.Status = "LOST" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := base
			tt.mutate(&p)
			_, err := NewTransaction(p)
			assert.True(t, shared.IsValidation(err))
		})
	}
}

func TestApplyPayment(t *testing.T) {
	tx := newFee(t)

	err := tx.ApplyPayment(PaymentUpdate{Status: StatusPaid, PaymentMethod: "card", ReceiptNumber: "R-9"})
	require.NoError(t, err)
	assert.Equal(t, StatusPaid, tx.Status)
	assert.Equal(t, "card", tx.PaymentMethod)
	assert.Equal(t, "R-9", tx.ReceiptNumber)
	assert.NotNil(t, tx.PaymentDate)

	err = tx.ApplyPayment(PaymentUpdate{Status: StatusPending})
	assert.True(t, shared.IsStateTransition(err))
	assert.Equal(t, StatusPaid, tx.Status)
}

func TestMerge(t *testing.T) {
	stored := newFee(t)
	id := stored.ID

	again := stored.Clone()
	again.ID = uuid.New()
	again.Description = "tuition"
	again.Status = StatusOverdue
	require.NoError(t, stored.Merge(again))
	assert.Equal(t, id, stored.ID)
	assert.Equal(t, "tuition", stored.Description)
	assert.Equal(t, StatusOverdue, stored.Status)

	changed := stored.Clone()
	changed.Amount = decimal.NewFromInt(1)
	assert.ErrorIs(t, stored.Merge(changed), shared.ErrValidation)

	back := stored.Clone()
	back.Status = StatusPending
	assert.True(t, shared.IsStateTransition(stored.Merge(back)))
}
