package grade

import (
	"context"

	"github.com/campus-records/records-core/internal/domain/shared"

	"github.com/google/uuid"
)

// Filter narrows an assessment listing. Zero fields match everything.
type Filter struct {
	StudentID    uuid.UUID
	CourseID     uuid.UUID
	Term         shared.Term
	AcademicYear shared.AcademicYear
}

// Matches reports whether a satisfies the filter.
func (f Filter) Matches(a *Assessment) bool {
	if f.StudentID != uuid.Nil && a.StudentID != f.StudentID {
		return false
	}
	if f.CourseID != uuid.Nil && a.CourseID != f.CourseID {
		return false
	}
	if f.Term != "" && a.Term != f.Term {
		return false
	}
	if f.AcademicYear != "" && a.AcademicYear != f.AcademicYear {
		return false
	}
	return true
}

// Repository is the assessment part of the record store.
type Repository interface {
	// Find returns the assessment with the given natural key or
	// shared.ErrAssessmentNotFound.
	Find(ctx context.Context, key NaturalKey) (*Assessment, error)

	// Upsert inserts the assessment or overwrites the mutable fields of the
	// one stored under the same natural key. The stored row is returned;
	// its ID and CreatedAt are those of the first insert.
	Upsert(ctx context.Context, a *Assessment) (*Assessment, error)

	// UpdateMarks replaces the marks (and their derivation) of an existing
	// assessment. Returns shared.ErrAssessmentNotFound when absent.
	UpdateMarks(ctx context.Context, key NaturalKey, marks Marks, recordedBy uuid.NullUUID) (*Assessment, error)

	// List returns assessments matching the filter ordered by academic year,
	// term, course, type and name.
	List(ctx context.Context, filter Filter) ([]*Assessment, error)

	// WeightedScores returns every assessment percentage of the student in
	// the term with its course's credits.
	WeightedScores(ctx context.Context, studentID uuid.UUID, term shared.Term, year shared.AcademicYear) ([]WeightedScore, error)
}
