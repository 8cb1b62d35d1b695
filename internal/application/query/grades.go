package query

import (
	"context"
	"strings"

	"github.com/campus-records/records-core/internal/domain/grade"
	"github.com/campus-records/records-core/internal/domain/shared"

	"github.com/shopspring/decimal"
)

// ══════════════════════════════════════════════════════════════════════════════
// GPA QUERY
// ══════════════════════════════════════════════════════════════════════════════

// GPAQuery selects a student's assessments in one term.
type GPAQuery struct {
	StudentID    string
	Term         string
	AcademicYear string
}

// GPADTO is the credit-weighted average percentage. HasData is false when no
// assessment contributed; GPA is then 0.
type GPADTO struct {
	StudentID    string          `json:"student_id"`
	Term         string          `json:"term"`
	AcademicYear string          `json:"academic_year"`
	GPA          decimal.Decimal `json:"gpa"`
	TotalCredits int             `json:"total_credits"`
	Assessments  int             `json:"assessments"`
	HasData      bool            `json:"has_data"`
}

// GPAHandler computes weighted GPAs.
type GPAHandler struct {
	repo  grade.Repository
	cache AggregateCache
}

// NewGPAHandler creates a new GPAHandler. cache may be nil.
func NewGPAHandler(repo grade.Repository, cache AggregateCache) *GPAHandler {
	return &GPAHandler{repo: repo, cache: cache}
}

// Handle returns Σ(percentage×credits)/Σ(credits) over the student's
// assessments in the term, weighted by course credits.
func (h *GPAHandler) Handle(ctx context.Context, q GPAQuery) (*GPADTO, error) {
	studentID, err := shared.ParseID("student_id", q.StudentID)
	if err != nil {
		return nil, err
	}
	term, err := shared.NewTerm(q.Term)
	if err != nil {
		return nil, err
	}
	year, err := shared.NewAcademicYear(q.AcademicYear)
	if err != nil {
		return nil, err
	}

	name := "gpa:" + term.String() + ":" + year.String()
	dto, err := cached(ctx, h.cache, studentID.String(), name, func() (GPADTO, error) {
		scores, err := h.repo.WeightedScores(ctx, studentID, term, year)
		if err != nil {
			return GPADTO{}, shared.Persistence("grade", "GPA", "failed to load weighted scores", err)
		}
		gpa := grade.WeightedAverage(scores)
		return GPADTO{
			StudentID:    studentID.String(),
			Term:         term.String(),
			AcademicYear: year.String(),
			GPA:          gpa.Value,
			TotalCredits: gpa.TotalCredits,
			Assessments:  gpa.Assessments,
			HasData:      gpa.HasData,
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return &dto, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// LIST ASSESSMENTS QUERY
// ══════════════════════════════════════════════════════════════════════════════

// ListAssessmentsQuery selects a student's assessments. Empty fields match
// everything.
type ListAssessmentsQuery struct {
	StudentID    string
	CourseID     string
	Term         string
	AcademicYear string
}

// ListAssessmentsHandler lists assessments.
type ListAssessmentsHandler struct {
	repo grade.Repository
}

// NewListAssessmentsHandler creates a new ListAssessmentsHandler.
func NewListAssessmentsHandler(repo grade.Repository) *ListAssessmentsHandler {
	return &ListAssessmentsHandler{repo: repo}
}

// Handle returns the assessments ordered by year, term, course and name.
func (h *ListAssessmentsHandler) Handle(ctx context.Context, q ListAssessmentsQuery) ([]AssessmentDTO, error) {
	studentID, err := shared.ParseID("student_id", q.StudentID)
	if err != nil {
		return nil, err
	}
	filter := grade.Filter{StudentID: studentID}

	if strings.TrimSpace(q.CourseID) != "" {
		if filter.CourseID, err = shared.ParseID("course_id", q.CourseID); err != nil {
			return nil, err
		}
	}
	if strings.TrimSpace(q.Term) != "" {
		if filter.Term, err = shared.NewTerm(q.Term); err != nil {
			return nil, err
		}
	}
	if strings.TrimSpace(q.AcademicYear) != "" {
		if filter.AcademicYear, err = shared.NewAcademicYear(q.AcademicYear); err != nil {
			return nil, err
		}
	}

	records, err := h.repo.List(ctx, filter)
	if err != nil {
		return nil, shared.Persistence("grade", "List", "failed to list assessments", err)
	}
	return assessmentDTOs(records), nil
}
