package query

import (
	"time"

	"github.com/campus-records/records-core/internal/domain/attendance"
	"github.com/campus-records/records-core/internal/domain/finance"
	"github.com/campus-records/records-core/internal/domain/grade"
	"github.com/campus-records/records-core/pkg/timeutil"

	"github.com/shopspring/decimal"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECORD DTOs
// Decimal values marshal as JSON strings so no precision is lost.
// ══════════════════════════════════════════════════════════════════════════════

// AttendanceDTO is an attendance record as returned to callers.
type AttendanceDTO struct {
	ID         string    `json:"id"`
	StudentID  string    `json:"student_id"`
	CourseID   string    `json:"course_id"`
	Date       string    `json:"date"`
	Status     string    `json:"status"`
	Remarks    string    `json:"remarks,omitempty"`
	RecordedBy string    `json:"recorded_by,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// NewAttendanceDTO converts a record.
func NewAttendanceDTO(r *attendance.Record) AttendanceDTO {
	dto := AttendanceDTO{
		ID:        r.ID.String(),
		StudentID: r.StudentID.String(),
		CourseID:  r.CourseID.String(),
		Date:      timeutil.FormatDay(r.Date),
		Status:    r.Status.String(),
		Remarks:   r.Remarks,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
	if r.RecordedBy.Valid {
		dto.RecordedBy = r.RecordedBy.UUID.String()
	}
	return dto
}

// AssessmentDTO is an assessment with its derived fields.
type AssessmentDTO struct {
	ID             string          `json:"id"`
	StudentID      string          `json:"student_id"`
	CourseID       string          `json:"course_id"`
	AssessmentType string          `json:"assessment_type"`
	AssessmentName string          `json:"assessment_name"`
	MarksObtained  decimal.Decimal `json:"marks_obtained"`
	MarksPossible  decimal.Decimal `json:"marks_possible"`
	Percentage     decimal.Decimal `json:"percentage"`
	LetterGrade    string          `json:"letter_grade"`
	Term           string          `json:"term"`
	AcademicYear   string          `json:"academic_year"`
	RecordedBy     string          `json:"recorded_by,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// NewAssessmentDTO converts an assessment.
func NewAssessmentDTO(a *grade.Assessment) AssessmentDTO {
	dto := AssessmentDTO{
		ID:             a.ID.String(),
		StudentID:      a.StudentID.String(),
		CourseID:       a.CourseID.String(),
		AssessmentType: a.AssessmentType,
		AssessmentName: a.AssessmentName,
		MarksObtained:  a.MarksObtained(),
		MarksPossible:  a.MarksPossible(),
		Percentage:     a.Percentage(),
		LetterGrade:    a.Letter().String(),
		Term:           a.Term.String(),
		AcademicYear:   a.AcademicYear.String(),
		CreatedAt:      a.CreatedAt,
		UpdatedAt:      a.UpdatedAt,
	}
	if a.RecordedBy.Valid {
		dto.RecordedBy = a.RecordedBy.UUID.String()
	}
	return dto
}

// TransactionDTO is a financial transaction as returned to callers.
type TransactionDTO struct {
	ID              string          `json:"id"`
	StudentID       string          `json:"student_id"`
	Reference       string          `json:"reference"`
	Type            string          `json:"transaction_type"`
	Amount          decimal.Decimal `json:"amount"`
	Description     string          `json:"description,omitempty"`
	TransactionDate string          `json:"transaction_date"`
	DueDate         string          `json:"due_date,omitempty"`
	Status          string          `json:"payment_status"`
	PaymentMethod   string          `json:"payment_method,omitempty"`
	PaymentDate     string          `json:"payment_date,omitempty"`
	ReceiptNumber   string          `json:"receipt_number,omitempty"`
	RecordedBy      string          `json:"recorded_by,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// NewTransactionDTO converts a transaction.
func NewTransactionDTO(t *finance.Transaction) TransactionDTO {
	dto := TransactionDTO{
		ID:              t.ID.String(),
		StudentID:       t.StudentID.String(),
		Reference:       t.Reference,
		Type:            t.Type.String(),
		Amount:          t.Amount,
		Description:     t.Description,
		TransactionDate: timeutil.FormatDay(t.TransactionDate),
		Status:          t.Status.String(),
		PaymentMethod:   t.PaymentMethod,
		ReceiptNumber:   t.ReceiptNumber,
		CreatedAt:       t.CreatedAt,
		UpdatedAt:       t.UpdatedAt,
	}
	if t.DueDate != nil {
		dto.DueDate = timeutil.FormatDay(*t.DueDate)
	}
	if t.PaymentDate != nil {
		dto.PaymentDate = timeutil.FormatDay(*t.PaymentDate)
	}
	if t.RecordedBy.Valid {
		dto.RecordedBy = t.RecordedBy.UUID.String()
	}
	return dto
}

func attendanceDTOs(records []*attendance.Record) []AttendanceDTO {
	out := make([]AttendanceDTO, 0, len(records))
	for _, r := range records {
		out = append(out, NewAttendanceDTO(r))
	}
	return out
}

func assessmentDTOs(records []*grade.Assessment) []AssessmentDTO {
	out := make([]AssessmentDTO, 0, len(records))
	for _, a := range records {
		out = append(out, NewAssessmentDTO(a))
	}
	return out
}

func transactionDTOs(records []*finance.Transaction) []TransactionDTO {
	out := make([]TransactionDTO, 0, len(records))
	for _, t := range records {
		out = append(out, NewTransactionDTO(t))
	}
	return out
}
