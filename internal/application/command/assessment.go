package command

import (
	"context"
	"log/slog"
	"strings"

	"github.com/campus-records/records-core/internal/domain/grade"
	"github.com/campus-records/records-core/internal/domain/recordstore"
	"github.com/campus-records/records-core/internal/domain/shared"
	"github.com/campus-records/records-core/pkg/logger"

	"github.com/shopspring/decimal"
)

// ══════════════════════════════════════════════════════════════════════════════
// ASSESSMENT INPUT
// ══════════════════════════════════════════════════════════════════════════════

// AssessmentInput is one graded assessment as sent by a caller. Percentage
// and letter are never accepted from the caller; they are derived from the
// marks.
type AssessmentInput struct {
	StudentID      string           `json:"student_id" validate:"required,uuid"`
	CourseID       string           `json:"course_id" validate:"required,uuid"`
	AssessmentType string           `json:"assessment_type" validate:"required,max=30"`
	AssessmentName string           `json:"assessment_name" validate:"required,max=200"`
	MarksObtained  *decimal.Decimal `json:"marks_obtained"`
	MarksPossible  *decimal.Decimal `json:"marks_possible"`
	Term           string           `json:"term" validate:"required,max=20"`
	AcademicYear   string           `json:"academic_year" validate:"required"`
	RecordedBy     string           `json:"recorded_by" validate:"omitempty,uuid"`
}

func (in AssessmentInput) rawKey() string {
	return strings.Join([]string{in.StudentID, in.CourseID, in.AssessmentType, in.AssessmentName, in.Term, in.AcademicYear}, "/")
}

// toAssessment validates the input and derives percentage and letter.
func (in AssessmentInput) toAssessment(op string) (*grade.Assessment, error) {
	if err := checkShape("grade", op, in); err != nil {
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
	recordedBy, err := parseOptionalID("recorded_by", in.RecordedBy)
	if err != nil {
		return nil, err
	}
	return grade.NewAssessment(grade.NewAssessmentParams{
		StudentID:      studentID,
		CourseID:       courseID,
		AssessmentType: in.AssessmentType,
		AssessmentName: in.AssessmentName,
		MarksObtained:  in.MarksObtained,
		MarksPossible:  in.MarksPossible,
		Term:           in.Term,
		AcademicYear:   in.AcademicYear,
		RecordedBy:     recordedBy,
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// RECORD ASSESSMENT BATCH COMMAND
// ══════════════════════════════════════════════════════════════════════════════

// RecordAssessmentBatchResult contains the result of a committed batch.
type RecordAssessmentBatchResult struct {
	BatchID   string
	Submitted int
	Records   []*grade.Assessment
}

// RecordAssessmentBatchHandler stores many assessments atomically.
type RecordAssessmentBatchHandler struct {
	writer
}

// NewRecordAssessmentBatchHandler creates a new RecordAssessmentBatchHandler.
func NewRecordAssessmentBatchHandler(store recordstore.UnitOfWorkFactory, publisher shared.EventPublisher, log *slog.Logger, config Config) *RecordAssessmentBatchHandler {
	return &RecordAssessmentBatchHandler{writer: newWriter(store, publisher, log, config)}
}

// Handle validates and derives every entry before writing any. An entry with
// missing or non-positive marks possible fails the whole batch with
// shared.ErrInvalidAssessment.
func (h *RecordAssessmentBatchHandler) Handle(ctx context.Context, inputs []AssessmentInput) (*RecordAssessmentBatchResult, error) {
	const op = "RecordAssessmentBatch"

	if err := checkBatchSize("grade", op, len(inputs), h.config.MaxBatchSize); err != nil {
		return nil, err
	}

	entries := make([]entry[*grade.Assessment], 0, len(inputs))
	for i, in := range inputs {
		a, err := in.toAssessment(op)
		if err != nil {
			return nil, invalidRecord("grade", op, i, in.rawKey(), err)
		}
		entries = append(entries, entry[*grade.Assessment]{index: i, key: a.Key().String(), record: a})
	}
	entries = dedupe(entries)

	batchID := newBatchID()
	stored := make([]*grade.Assessment, 0, len(entries))
	var students studentSet
	err := h.run(ctx, op, batchID, len(entries), func(uow recordstore.UnitOfWork) error {
		repo := uow.Assessments()
		for _, e := range entries {
			a, err := repo.Upsert(ctx, e.record)
			if err != nil {
				h.logger.DebugContext(ctx, "assessment upsert failed",
					logger.RecordKey(e.key),
					logger.StudentID(e.record.StudentID.String()),
					logger.CourseID(e.record.CourseID.String()),
					logger.Err(err),
				)
				return storeFailure("grade", op, e.index, e.key, err)
			}
			stored = append(stored, a)
			students.add(a.StudentID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	h.publish(ctx, shared.EventAssessmentsRecorded, batchID, students.ids, len(stored))
	return &RecordAssessmentBatchResult{BatchID: batchID, Submitted: len(inputs), Records: stored}, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// CORRECT MARKS COMMAND
// ══════════════════════════════════════════════════════════════════════════════

// CorrectMarksHandler replaces the marks of a stored assessment.
type CorrectMarksHandler struct {
	writer
}

// NewCorrectMarksHandler creates a new CorrectMarksHandler.
func NewCorrectMarksHandler(store recordstore.UnitOfWorkFactory, publisher shared.EventPublisher, log *slog.Logger, config Config) *CorrectMarksHandler {
	return &CorrectMarksHandler{writer: newWriter(store, publisher, log, config)}
}

// Handle re-derives percentage and letter from the new marks and writes all
// three together. The assessment must already exist.
func (h *CorrectMarksHandler) Handle(ctx context.Context, in AssessmentInput) (*grade.Assessment, error) {
	const op = "CorrectMarks"

	a, err := in.toAssessment(op)
	if err != nil {
		return nil, invalidRecord("grade", op, 0, in.rawKey(), err)
	}

	key := a.Key()
	batchID := newBatchID()
	var updated *grade.Assessment
	err = h.run(ctx, op, batchID, 1, func(uow recordstore.UnitOfWork) error {
		var err error
		updated, err = uow.Assessments().UpdateMarks(ctx, key, a.Marks(), a.RecordedBy)
		if err != nil {
			return storeFailure("grade", op, 0, key.String(), err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	h.logger.InfoContext(ctx, "marks corrected",
		logger.StudentID(key.StudentID.String()),
		logger.CourseID(key.CourseID.String()),
		slog.String("letter", updated.Letter().String()),
	)
	h.publish(ctx, shared.EventMarksCorrected, batchID, []string{key.StudentID.String()}, 1)
	return updated, nil
}
