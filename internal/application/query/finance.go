package query

import (
	"context"

	"github.com/campus-records/records-core/internal/domain/finance"
	"github.com/campus-records/records-core/internal/domain/shared"

	"github.com/shopspring/decimal"
)

// ══════════════════════════════════════════════════════════════════════════════
// BALANCE QUERY
// ══════════════════════════════════════════════════════════════════════════════

// BalanceDTO is a student's signed account balance. Positive means the
// student owes money. Cancelled transactions are not counted.
type BalanceDTO struct {
	StudentID    string          `json:"student_id"`
	Balance      decimal.Decimal `json:"balance"`
	Charges      decimal.Decimal `json:"charges"`
	Credits      decimal.Decimal `json:"credits"`
	Transactions int             `json:"transactions"`
}

// BalanceHandler computes account balances.
type BalanceHandler struct {
	repo  finance.Repository
	cache AggregateCache
}

// NewBalanceHandler creates a new BalanceHandler. cache may be nil.
func NewBalanceHandler(repo finance.Repository, cache AggregateCache) *BalanceHandler {
	return &BalanceHandler{repo: repo, cache: cache}
}

// Handle sums the contribution of every non-cancelled transaction.
func (h *BalanceHandler) Handle(ctx context.Context, studentIDValue string) (*BalanceDTO, error) {
	studentID, err := shared.ParseID("student_id", studentIDValue)
	if err != nil {
		return nil, err
	}

	dto, err := cached(ctx, h.cache, studentID.String(), "balance", func() (BalanceDTO, error) {
		txs, err := h.repo.List(ctx, finance.Filter{StudentID: studentID})
		if err != nil {
			return BalanceDTO{}, shared.Persistence("finance", "Balance", "failed to load transactions", err)
		}
		b := finance.Balance(txs)
		return BalanceDTO{
			StudentID:    studentID.String(),
			Balance:      b.Total,
			Charges:      b.Charges,
			Credits:      b.Credits,
			Transactions: b.Transactions,
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return &dto, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// PENDING TRANSACTIONS QUERY
// ══════════════════════════════════════════════════════════════════════════════

// PendingTransactionsHandler lists what a student still has to pay.
type PendingTransactionsHandler struct {
	repo finance.Repository
}

// NewPendingTransactionsHandler creates a new PendingTransactionsHandler.
func NewPendingTransactionsHandler(repo finance.Repository) *PendingTransactionsHandler {
	return &PendingTransactionsHandler{repo: repo}
}

// Handle returns PENDING and OVERDUE transactions, earliest due date first.
func (h *PendingTransactionsHandler) Handle(ctx context.Context, studentIDValue string) ([]TransactionDTO, error) {
	studentID, err := shared.ParseID("student_id", studentIDValue)
	if err != nil {
		return nil, err
	}
	txs, err := h.repo.Pending(ctx, studentID)
	if err != nil {
		return nil, shared.Persistence("finance", "Pending", "failed to load pending transactions", err)
	}
	return transactionDTOs(txs), nil
}
