package grade

import (
	"strings"
	"time"

	"github.com/campus-records/records-core/internal/domain/shared"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ══════════════════════════════════════════════════════════════════════════════
// NATURAL KEY
// ══════════════════════════════════════════════════════════════════════════════

// NaturalKey identifies one assessment of a student in a course and term.
type NaturalKey struct {
	StudentID      uuid.UUID
	CourseID       uuid.UUID
	AssessmentType string
	AssessmentName string
	Term           shared.Term
	AcademicYear   shared.AcademicYear
}

// String returns a compact representation for logs and error messages.
func (k NaturalKey) String() string {
	return strings.Join([]string{
		k.StudentID.String(),
		k.CourseID.String(),
		k.AssessmentType,
		k.AssessmentName,
		k.Term.String(),
		k.AcademicYear.String(),
	}, "/")
}

// ══════════════════════════════════════════════════════════════════════════════
// ASSESSMENT ENTITY
// ══════════════════════════════════════════════════════════════════════════════

// Assessment is a graded piece of work. Percentage and letter are read from
// its Marks and cannot be set on their own.
type Assessment struct {
	ID             uuid.UUID
	StudentID      uuid.UUID
	CourseID       uuid.UUID
	AssessmentType string
	AssessmentName string
	Term           shared.Term
	AcademicYear   shared.AcademicYear
	RecordedBy     uuid.NullUUID
	CreatedAt      time.Time
	UpdatedAt      time.Time

	marks Marks
}

// NewAssessmentParams contains the caller-supplied fields of an assessment.
type NewAssessmentParams struct {
	ID             uuid.UUID
	StudentID      uuid.UUID
	CourseID       uuid.UUID
	AssessmentType string
	AssessmentName string
	MarksObtained  *decimal.Decimal
	MarksPossible  *decimal.Decimal
	Term           string
	AcademicYear   string
	RecordedBy     uuid.NullUUID
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// NewAssessment validates the params and derives percentage and letter.
func NewAssessment(p NewAssessmentParams) (*Assessment, error) {
	if p.StudentID == uuid.Nil {
		return nil, shared.NewDomainError("grade", "NewAssessment", shared.ErrInvalidID, "student reference is required")
	}
	if p.CourseID == uuid.Nil {
		return nil, shared.NewDomainError("grade", "NewAssessment", shared.ErrInvalidID, "course reference is required")
	}

	assessmentType := strings.ToUpper(strings.TrimSpace(p.AssessmentType))
	if assessmentType == "" {
		return nil, shared.NewDomainError("grade", "NewAssessment", shared.ErrEmptyValue, "assessment type is required")
	}
	assessmentName := strings.TrimSpace(p.AssessmentName)
	if assessmentName == "" {
		return nil, shared.NewDomainError("grade", "NewAssessment", shared.ErrEmptyValue, "assessment name is required")
	}

	term, err := shared.NewTerm(p.Term)
	if err != nil {
		return nil, err
	}
	year, err := shared.NewAcademicYear(p.AcademicYear)
	if err != nil {
		return nil, err
	}

	marks, err := NewMarks(p.MarksObtained, p.MarksPossible)
	if err != nil {
		return nil, err
	}

	id := p.ID
	if id == uuid.Nil {
		id = shared.NewRecordID()
	}

	now := time.Now().UTC()
	createdAt, updatedAt := p.CreatedAt, p.UpdatedAt
	if createdAt.IsZero() {
		createdAt = now
	}
	if updatedAt.IsZero() {
		updatedAt = createdAt
	}

	return &Assessment{
		ID:             id,
		StudentID:      p.StudentID,
		CourseID:       p.CourseID,
		AssessmentType: assessmentType,
		AssessmentName: assessmentName,
		Term:           term,
		AcademicYear:   year,
		RecordedBy:     p.RecordedBy,
		CreatedAt:      createdAt,
		UpdatedAt:      updatedAt,
		marks:          marks,
	}, nil
}

// Key returns the natural key of the assessment.
func (a *Assessment) Key() NaturalKey {
	return NaturalKey{
		StudentID:      a.StudentID,
		CourseID:       a.CourseID,
		AssessmentType: a.AssessmentType,
		AssessmentName: a.AssessmentName,
		Term:           a.Term,
		AcademicYear:   a.AcademicYear,
	}
}

// Marks returns the marks and their derivation.
func (a *Assessment) Marks() Marks { return a.marks }

// MarksObtained returns the marks obtained.
func (a *Assessment) MarksObtained() decimal.Decimal { return a.marks.Obtained() }

// MarksPossible returns the marks possible.
func (a *Assessment) MarksPossible() decimal.Decimal { return a.marks.Possible() }

// Percentage returns the derived percentage.
func (a *Assessment) Percentage() decimal.Decimal { return a.marks.Percentage() }

// Letter returns the derived letter grade.
func (a *Assessment) Letter() Letter { return a.marks.Letter() }

// CorrectMarks replaces both marks and re-derives percentage and letter.
// On error the assessment is left unchanged.
func (a *Assessment) CorrectMarks(obtained, possible *decimal.Decimal) error {
	m, err := NewMarks(obtained, possible)
	if err != nil {
		return err
	}
	a.ApplyMarks(m)
	return nil
}

// ApplyMarks sets already-derived marks.
func (a *Assessment) ApplyMarks(m Marks) {
	if m.IsZero() {
		return
	}
	a.marks = m
	a.UpdatedAt = time.Now().UTC()
}

// Clone returns a copy safe to hand to another goroutine.
func (a *Assessment) Clone() *Assessment {
	c := *a
	return &c
}
