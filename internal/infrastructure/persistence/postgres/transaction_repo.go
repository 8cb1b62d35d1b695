package postgres

import (
	"context"

	"github.com/campus-records/records-core/internal/domain/finance"
	"github.com/campus-records/records-core/internal/domain/shared"

	"github.com/google/uuid"
)

// TransactionRepository implements finance.Repository for PostgreSQL.
type TransactionRepository struct {
	db db
}

const transactionColumns = `id, student_id, reference, transaction_type, amount, description,
	transaction_date, due_date, payment_status, payment_method, payment_date,
	receipt_number, recorded_by, created_at, updated_at`

func scanTransaction(row rowScanner) (*finance.Transaction, error) {
	var (
		t              finance.Transaction
		txType, status string
	)
	err := row.Scan(
		&t.ID, &t.StudentID, &t.Reference, &txType, &t.Amount, &t.Description,
		&t.TransactionDate, &t.DueDate, &status, &t.PaymentMethod, &t.PaymentDate,
		&t.ReceiptNumber, &t.RecordedBy, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	t.Type = finance.Type(txType)
	t.Status = finance.Status(status)
	return &t, nil
}

func statusStrings(statuses []finance.Status) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = s.String()
	}
	return out
}

// Find returns the transaction with the given natural key.
func (r *TransactionRepository) Find(ctx context.Context, key finance.NaturalKey) (*finance.Transaction, error) {
	ctx, cancel := r.db.op(ctx)
	defer cancel()

	query := `SELECT ` + transactionColumns + `
		FROM financial_transactions
		WHERE student_id = $1 AND reference = $2`

	t, err := scanTransaction(r.db.q.QueryRow(ctx, query, key.StudentID, key.Reference))
	if IsNoRows(err) {
		return nil, shared.ErrTransactionNotFound
	}
	if err != nil {
		return nil, classify("finance", "Find", "failed to load "+key.String(), err)
	}
	return t, nil
}

// Upsert inserts the transaction or merges it into the stored one. The
// conflict update only fires when the charge matches and the status move is
// allowed; otherwise the stored row is loaded to report why.
func (r *TransactionRepository) Upsert(ctx context.Context, t *finance.Transaction) (*finance.Transaction, error) {
	ctx, cancel := r.db.op(ctx)
	defer cancel()

	query := `
		INSERT INTO financial_transactions (` + transactionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (student_id, reference) DO UPDATE SET
			description = EXCLUDED.description,
			transaction_date = EXCLUDED.transaction_date,
			due_date = EXCLUDED.due_date,
			payment_status = EXCLUDED.payment_status,
			payment_method = EXCLUDED.payment_method,
			payment_date = EXCLUDED.payment_date,
			receipt_number = EXCLUDED.receipt_number,
			recorded_by = EXCLUDED.recorded_by,
			updated_at = NOW()
		WHERE financial_transactions.transaction_type = EXCLUDED.transaction_type
		  AND financial_transactions.amount = EXCLUDED.amount
		  AND financial_transactions.payment_status = ANY($16)
		RETURNING ` + transactionColumns

	stored, err := scanTransaction(r.db.q.QueryRow(ctx, query,
		t.ID,
		t.StudentID,
		t.Reference,
		t.Type.String(),
		t.Amount,
		t.Description,
		t.TransactionDate,
		t.DueDate,
		t.Status.String(),
		t.PaymentMethod,
		t.PaymentDate,
		t.ReceiptNumber,
		t.RecordedBy,
		t.CreatedAt,
		t.UpdatedAt,
		statusStrings(finance.AllowedSources(t.Status)),
	))
	if err == nil {
		return stored, nil
	}
	if !IsNoRows(err) {
		return nil, classify("finance", "Upsert", "failed to upsert "+t.Key().String(), err)
	}

	existing, err := r.Find(ctx, t.Key())
	if err != nil {
		return nil, err
	}
	if err := existing.Clone().Merge(t); err != nil {
		return nil, err
	}
	// The stored row changed between the statement and the reload.
	return nil, shared.NewDomainError("finance", "Upsert", shared.ErrStateTransition,
		"concurrent update of "+t.Key().String())
}

// UpdatePaymentStatus applies a payment update to an existing transaction.
func (r *TransactionRepository) UpdatePaymentStatus(ctx context.Context, key finance.NaturalKey, u finance.PaymentUpdate) (*finance.Transaction, error) {
	if !u.Status.IsValid() {
		return nil, shared.NewDomainError("finance", "UpdatePaymentStatus", shared.ErrValueOutOfRange, "unknown status "+u.Status.String())
	}
	u = u.Normalize()

	ctx, cancel := r.db.op(ctx)
	defer cancel()

	query := `
		UPDATE financial_transactions SET
			payment_status = $3,
			payment_method = COALESCE(NULLIF($4, ''), payment_method),
			payment_date = COALESCE($5, payment_date),
			receipt_number = COALESCE(NULLIF($6, ''), receipt_number),
			recorded_by = COALESCE($7, recorded_by),
			updated_at = NOW()
		WHERE student_id = $1 AND reference = $2 AND payment_status = ANY($8)
		RETURNING ` + transactionColumns

	t, err := scanTransaction(r.db.q.QueryRow(ctx, query,
		key.StudentID,
		key.Reference,
		u.Status.String(),
		u.PaymentMethod,
		u.PaymentDate,
		u.ReceiptNumber,
		u.RecordedBy,
		statusStrings(finance.AllowedSources(u.Status)),
	))
	if err == nil {
		return t, nil
	}
	if !IsNoRows(err) {
		return nil, classify("finance", "UpdatePaymentStatus", "failed to update "+key.String(), err)
	}

	existing, err := r.Find(ctx, key)
	if err != nil {
		return nil, err
	}
	return nil, shared.NewDomainError("finance", "UpdatePaymentStatus", shared.ErrStateTransition,
		"cannot move "+key.Reference+" from "+existing.Status.String()+" to "+u.Status.String())
}

// List returns matching transactions ordered by transaction date.
func (r *TransactionRepository) List(ctx context.Context, filter finance.Filter) ([]*finance.Transaction, error) {
	var w where
	if filter.StudentID != uuid.Nil {
		w.add("student_id = ?", filter.StudentID)
	}
	if len(filter.Statuses) > 0 {
		w.add("payment_status = ANY(?)", statusStrings(filter.Statuses))
	}
	if !filter.DueBefore.IsZero() {
		w.add("due_date < ?", filter.DueBefore)
	}
	return r.list(ctx, "List", w, "transaction_date, reference")
}

// Pending returns outstanding transactions, earliest due date first.
func (r *TransactionRepository) Pending(ctx context.Context, studentID uuid.UUID) ([]*finance.Transaction, error) {
	var w where
	w.add("student_id = ?", studentID)
	w.add("payment_status = ANY(?)", []string{finance.StatusPending.String(), finance.StatusOverdue.String()})
	return r.list(ctx, "Pending", w, "due_date ASC NULLS LAST, transaction_date, reference")
}

func (r *TransactionRepository) list(ctx context.Context, op string, w where, orderBy string) ([]*finance.Transaction, error) {
	ctx, cancel := r.db.op(ctx)
	defer cancel()

	query := `SELECT ` + transactionColumns + ` FROM financial_transactions` + w.String() + ` ORDER BY ` + orderBy

	rows, err := r.db.q.Query(ctx, query, w.args...)
	if err != nil {
		return nil, classify("finance", op, "failed to list transactions", err)
	}
	defer rows.Close()

	var out []*finance.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, classify("finance", op, "failed to scan transaction", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("finance", op, "failed to list transactions", err)
	}
	return out, nil
}
