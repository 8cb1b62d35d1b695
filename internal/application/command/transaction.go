package command

import (
	"context"
	"log/slog"
	"strings"

	"github.com/campus-records/records-core/internal/domain/finance"
	"github.com/campus-records/records-core/internal/domain/recordstore"
	"github.com/campus-records/records-core/internal/domain/shared"
	"github.com/campus-records/records-core/pkg/logger"
	"github.com/campus-records/records-core/pkg/timeutil"

	"github.com/shopspring/decimal"
)

// ══════════════════════════════════════════════════════════════════════════════
// TRANSACTION INPUT
// ══════════════════════════════════════════════════════════════════════════════

// TransactionInput is one financial transaction as sent by a caller.
// Reference is the caller's idempotency key for the transaction.
type TransactionInput struct {
	StudentID       string           `json:"student_id" validate:"required,uuid"`
	Reference       string           `json:"reference" validate:"required,max=100"`
	Type            string           `json:"transaction_type" validate:"required"`
	Amount          *decimal.Decimal `json:"amount" validate:"required"`
	Description     string           `json:"description" validate:"max=1000"`
	TransactionDate string           `json:"transaction_date" validate:"omitempty,datetime=2006-01-02"`
	DueDate         string           `json:"due_date" validate:"omitempty,datetime=2006-01-02"`
	Status          string           `json:"payment_status"`
	PaymentMethod   string           `json:"payment_method" validate:"max=50"`
	PaymentDate     string           `json:"payment_date" validate:"omitempty,datetime=2006-01-02"`
	ReceiptNumber   string           `json:"receipt_number" validate:"max=100"`
	RecordedBy      string           `json:"recorded_by" validate:"omitempty,uuid"`
}

func (in TransactionInput) rawKey() string {
	return in.StudentID + "/" + in.Reference
}

// toTransaction validates the input and builds the transaction.
func (in TransactionInput) toTransaction(op string) (*finance.Transaction, error) {
	if err := checkShape("finance", op, in); err != nil {
		return nil, err
	}
	if in.Amount == nil {
		return nil, shared.NewDomainError("finance", op, shared.ErrEmptyValue, "amount is required")
	}
	studentID, err := shared.ParseID("student_id", in.StudentID)
	if err != nil {
		return nil, err
	}
	txType, err := finance.ParseType(in.Type)
	if err != nil {
		return nil, err
	}
	status := finance.StatusPending
	if in.Status != "" {
		if status, err = finance.ParseStatus(in.Status); err != nil {
			return nil, err
		}
	}

	txDate, err := parseOptionalDate("finance", op, "transaction_date", in.TransactionDate)
	if err != nil {
		return nil, err
	}
	dueDate, err := parseOptionalDate("finance", op, "due_date", in.DueDate)
	if err != nil {
		return nil, err
	}
	paymentDate, err := parseOptionalDate("finance", op, "payment_date", in.PaymentDate)
	if err != nil {
		return nil, err
	}
	if status == finance.StatusPaid && paymentDate == nil {
		today := timeutil.Today()
		paymentDate = &today
	}
	recordedBy, err := parseOptionalID("recorded_by", in.RecordedBy)
	if err != nil {
		return nil, err
	}

	p := finance.NewTransactionParams{
		StudentID:     studentID,
		Reference:     in.Reference,
		Type:          txType,
		Amount:        *in.Amount,
		Description:   in.Description,
		DueDate:       dueDate,
		Status:        status,
		PaymentMethod: in.PaymentMethod,
		PaymentDate:   paymentDate,
		ReceiptNumber: in.ReceiptNumber,
		RecordedBy:    recordedBy,
	}
	if txDate != nil {
		p.TransactionDate = *txDate
	}
	return finance.NewTransaction(p)
}

// ══════════════════════════════════════════════════════════════════════════════
// RECORD TRANSACTION BATCH COMMAND
// ══════════════════════════════════════════════════════════════════════════════

// RecordTransactionBatchResult contains the result of a committed batch.
type RecordTransactionBatchResult struct {
	BatchID   string
	Submitted int
	Records   []*finance.Transaction
}

// RecordTransactionBatchHandler stores many transactions atomically.
type RecordTransactionBatchHandler struct {
	writer
}

// NewRecordTransactionBatchHandler creates a new RecordTransactionBatchHandler.
func NewRecordTransactionBatchHandler(store recordstore.UnitOfWorkFactory, publisher shared.EventPublisher, log *slog.Logger, config Config) *RecordTransactionBatchHandler {
	return &RecordTransactionBatchHandler{writer: newWriter(store, publisher, log, config)}
}

// Handle validates every entry before writing any. Resubmitting a reference
// with a different type or amount, or with a status the stored transaction
// cannot move to, rolls back the whole batch.
func (h *RecordTransactionBatchHandler) Handle(ctx context.Context, inputs []TransactionInput) (*RecordTransactionBatchResult, error) {
	const op = "RecordTransactionBatch"

	if err := checkBatchSize("finance", op, len(inputs), h.config.MaxBatchSize); err != nil {
		return nil, err
	}

	entries := make([]entry[*finance.Transaction], 0, len(inputs))
	for i, in := range inputs {
		t, err := in.toTransaction(op)
		if err != nil {
			return nil, invalidRecord("finance", op, i, in.rawKey(), err)
		}
		entries = append(entries, entry[*finance.Transaction]{index: i, key: t.Key().String(), record: t})
	}
	entries = dedupe(entries)

	batchID := newBatchID()
	stored := make([]*finance.Transaction, 0, len(entries))
	var students studentSet
	err := h.run(ctx, op, batchID, len(entries), func(uow recordstore.UnitOfWork) error {
		repo := uow.Transactions()
		for _, e := range entries {
			t, err := repo.Upsert(ctx, e.record)
			if err != nil {
				h.logger.DebugContext(ctx, "transaction upsert failed",
					logger.RecordKey(e.key),
					logger.StudentID(e.record.StudentID.String()),
					logger.Err(err),
				)
				return storeFailure("finance", op, e.index, e.key, err)
			}
			stored = append(stored, t)
			students.add(t.StudentID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	h.publish(ctx, shared.EventTransactionsRecorded, batchID, students.ids, len(stored))
	return &RecordTransactionBatchResult{BatchID: batchID, Submitted: len(inputs), Records: stored}, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// UPDATE PAYMENT STATUS COMMAND
// ══════════════════════════════════════════════════════════════════════════════

// PaymentStatusInput moves a stored transaction to a new payment status.
// Empty optional fields keep the stored values.
type PaymentStatusInput struct {
	StudentID     string `json:"student_id" validate:"required,uuid"`
	Reference     string `json:"reference" validate:"required,max=100"`
	Status        string `json:"payment_status" validate:"required"`
	PaymentMethod string `json:"payment_method" validate:"max=50"`
	PaymentDate   string `json:"payment_date" validate:"omitempty,datetime=2006-01-02"`
	ReceiptNumber string `json:"receipt_number" validate:"max=100"`
	RecordedBy    string `json:"recorded_by" validate:"omitempty,uuid"`
}

// UpdatePaymentStatusHandler applies payment updates.
type UpdatePaymentStatusHandler struct {
	writer
}

// NewUpdatePaymentStatusHandler creates a new UpdatePaymentStatusHandler.
func NewUpdatePaymentStatusHandler(store recordstore.UnitOfWorkFactory, publisher shared.EventPublisher, log *slog.Logger, config Config) *UpdatePaymentStatusHandler {
	return &UpdatePaymentStatusHandler{writer: newWriter(store, publisher, log, config)}
}

// Handle applies the update in one conditional write.
func (h *UpdatePaymentStatusHandler) Handle(ctx context.Context, in PaymentStatusInput) (*finance.Transaction, error) {
	const op = "UpdatePaymentStatus"
	rawKey := in.StudentID + "/" + in.Reference

	key, update, err := in.parse(op)
	if err != nil {
		return nil, invalidRecord("finance", op, 0, rawKey, err)
	}

	batchID := newBatchID()
	var updated *finance.Transaction
	err = h.run(ctx, op, batchID, 1, func(uow recordstore.UnitOfWork) error {
		var err error
		updated, err = uow.Transactions().UpdatePaymentStatus(ctx, key, update)
		if err != nil {
			return storeFailure("finance", op, 0, key.String(), err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	h.logger.InfoContext(ctx, "payment status updated",
		logger.StudentID(key.StudentID.String()),
		slog.String("reference", key.Reference),
		slog.String("status", updated.Status.String()),
	)
	h.publish(ctx, shared.EventPaymentStatusChanged, batchID, []string{key.StudentID.String()}, 1)
	return updated, nil
}

func (in PaymentStatusInput) parse(op string) (finance.NaturalKey, finance.PaymentUpdate, error) {
	if err := checkShape("finance", op, in); err != nil {
		return finance.NaturalKey{}, finance.PaymentUpdate{}, err
	}
	studentID, err := shared.ParseID("student_id", in.StudentID)
	if err != nil {
		return finance.NaturalKey{}, finance.PaymentUpdate{}, err
	}
	status, err := finance.ParseStatus(in.Status)
	if err != nil {
		return finance.NaturalKey{}, finance.PaymentUpdate{}, err
	}
	paymentDate, err := parseOptionalDate("finance", op, "payment_date", in.PaymentDate)
	if err != nil {
		return finance.NaturalKey{}, finance.PaymentUpdate{}, err
	}
	recordedBy, err := parseOptionalID("recorded_by", in.RecordedBy)
	if err != nil {
		return finance.NaturalKey{}, finance.PaymentUpdate{}, err
	}

	key := finance.NaturalKey{StudentID: studentID, Reference: strings.TrimSpace(in.Reference)}
	update := finance.PaymentUpdate{
		Status:        status,
		PaymentMethod: in.PaymentMethod,
		PaymentDate:   paymentDate,
		ReceiptNumber: in.ReceiptNumber,
		RecordedBy:    recordedBy,
	}
	return key, update.Normalize(), nil
}
