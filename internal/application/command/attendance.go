package command

import (
	"context"
	"log/slog"
	"strings"

	"github.com/campus-records/records-core/internal/domain/attendance"
	"github.com/campus-records/records-core/internal/domain/recordstore"
	"github.com/campus-records/records-core/internal/domain/shared"
	"github.com/campus-records/records-core/pkg/logger"
	"github.com/campus-records/records-core/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECORD ATTENDANCE COMMAND
// ══════════════════════════════════════════════════════════════════════════════

// AttendanceInput is one attendance entry as sent by a caller.
type AttendanceInput struct {
	StudentID  string `json:"student_id" validate:"required,uuid"`
	CourseID   string `json:"course_id" validate:"required,uuid"`
	Date       string `json:"date" validate:"required,datetime=2006-01-02"`
	Status     string `json:"status" validate:"required"`
	Remarks    string `json:"remarks" validate:"max=1000"`
	RecordedBy string `json:"recorded_by" validate:"omitempty,uuid"`
}

func (in AttendanceInput) rawKey() string {
	return strings.Join([]string{in.StudentID, in.CourseID, in.Date}, "/")
}

// toRecord validates the input and builds the record it describes.
func (in AttendanceInput) toRecord(op string) (*attendance.Record, error) {
	if err := checkShape("attendance", op, in); err != nil {
		return nil, err
	}
	studentID, err := shared.ParseID("student_id", in.StudentID)
	if err != nil {
		return nil, err
	}
	courseID, err := shared.ParseID("course_id", in.CourseID)
	if err != nil {
		return nil, err
	}
	day, err := timeutil.ParseDate(in.Date)
	if err != nil {
		return nil, shared.WrapError("attendance", op, shared.ErrInvalidFormat, "date must be YYYY-MM-DD", err)
	}
	status, err := attendance.ParseStatus(in.Status)
	if err != nil {
		return nil, err
	}
	recordedBy, err := parseOptionalID("recorded_by", in.RecordedBy)
	if err != nil {
		return nil, err
	}
	return attendance.NewRecord(attendance.NewRecordParams{
		StudentID:  studentID,
		CourseID:   courseID,
		Date:       day,
		Status:     status,
		Remarks:    in.Remarks,
		RecordedBy: recordedBy,
	})
}

// RecordAttendanceHandler upserts a single attendance record.
type RecordAttendanceHandler struct {
	writer
}

// NewRecordAttendanceHandler creates a new RecordAttendanceHandler.
func NewRecordAttendanceHandler(store recordstore.UnitOfWorkFactory, publisher shared.EventPublisher, log *slog.Logger, config Config) *RecordAttendanceHandler {
	return &RecordAttendanceHandler{writer: newWriter(store, publisher, log, config)}
}

// Handle validates and stores the record. A record already stored under the
// same (student, course, date) is updated in place.
func (h *RecordAttendanceHandler) Handle(ctx context.Context, in AttendanceInput) (*attendance.Record, error) {
	const op = "RecordAttendance"

	rec, err := in.toRecord(op)
	if err != nil {
		return nil, invalidRecord("attendance", op, 0, in.rawKey(), err)
	}

	key := rec.Key().String()
	batchID := newBatchID()
	var stored *attendance.Record
	err = h.run(ctx, op, batchID, 1, func(uow recordstore.UnitOfWork) error {
		var err error
		stored, err = uow.Attendance().Upsert(ctx, rec)
		if err != nil {
			return storeFailure("attendance", op, 0, key, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	h.logger.InfoContext(ctx, "attendance recorded",
		logger.StudentID(stored.StudentID.String()),
		logger.CourseID(stored.CourseID.String()),
		slog.String("date", timeutil.FormatDay(stored.Date)),
		slog.String("status", stored.Status.String()),
	)
	h.publish(ctx, shared.EventAttendanceRecorded, batchID, []string{rec.StudentID.String()}, 1)
	return stored, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// RECORD ATTENDANCE BATCH COMMAND
// ══════════════════════════════════════════════════════════════════════════════

// RecordAttendanceBatchResult contains the result of a committed batch.
type RecordAttendanceBatchResult struct {
	// BatchID identifies the batch in logs and events.
	BatchID string

	// Submitted is the number of entries in the request.
	Submitted int

	// Records holds the stored records, one per distinct natural key.
	Records []*attendance.Record
}

// RecordAttendanceBatchHandler stores many attendance records atomically.
type RecordAttendanceBatchHandler struct {
	writer
}

// NewRecordAttendanceBatchHandler creates a new RecordAttendanceBatchHandler.
func NewRecordAttendanceBatchHandler(store recordstore.UnitOfWorkFactory, publisher shared.EventPublisher, log *slog.Logger, config Config) *RecordAttendanceBatchHandler {
	return &RecordAttendanceBatchHandler{writer: newWriter(store, publisher, log, config)}
}

// Handle validates every entry before writing any. Either all records are
// stored or none is.
func (h *RecordAttendanceBatchHandler) Handle(ctx context.Context, inputs []AttendanceInput) (*RecordAttendanceBatchResult, error) {
	const op = "RecordAttendanceBatch"

	if err := checkBatchSize("attendance", op, len(inputs), h.config.MaxBatchSize); err != nil {
		return nil, err
	}

	entries := make([]entry[*attendance.Record], 0, len(inputs))
	for i, in := range inputs {
		rec, err := in.toRecord(op)
		if err != nil {
			return nil, invalidRecord("attendance", op, i, in.rawKey(), err)
		}
		entries = append(entries, entry[*attendance.Record]{index: i, key: rec.Key().String(), record: rec})
	}
	entries = dedupe(entries)

	batchID := newBatchID()
	stored := make([]*attendance.Record, 0, len(entries))
	var students studentSet
	err := h.run(ctx, op, batchID, len(entries), func(uow recordstore.UnitOfWork) error {
		repo := uow.Attendance()
		for _, e := range entries {
			rec, err := repo.Upsert(ctx, e.record)
			if err != nil {
				h.logger.DebugContext(ctx, "attendance upsert failed",
					logger.RecordKey(e.key),
					logger.StudentID(e.record.StudentID.String()),
					logger.CourseID(e.record.CourseID.String()),
					logger.Err(err),
				)
				return storeFailure("attendance", op, e.index, e.key, err)
			}
			stored = append(stored, rec)
			students.add(rec.StudentID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	h.publish(ctx, shared.EventAttendanceRecorded, batchID, students.ids, len(stored))
	return &RecordAttendanceBatchResult{BatchID: batchID, Submitted: len(inputs), Records: stored}, nil
}
