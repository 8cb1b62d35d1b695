// Package course holds the course catalogue entry the GPA fold reads its
// credit weights from.
package course

import (
	"context"
	"strings"

	"github.com/campus-records/records-core/internal/domain/shared"

	"github.com/google/uuid"
)

// Course is a taught course with its credit weight.
type Course struct {
	ID           uuid.UUID
	Code         string
	Name         string
	Credits      int
	Term         shared.Term
	AcademicYear shared.AcademicYear
}

// NewCourseParams contains the fields of a course.
type NewCourseParams struct {
	ID           uuid.UUID
	Code         string
	Name         string
	Credits      int
	Term         string
	AcademicYear string
}

// NewCourse validates the params.
func NewCourse(p NewCourseParams) (*Course, error) {
	code := strings.ToUpper(strings.TrimSpace(p.Code))
	if code == "" {
		return nil, shared.NewDomainError("course", "NewCourse", shared.ErrEmptyValue, "course code is required")
	}
	if p.Credits <= 0 {
		return nil, shared.NewDomainError("course", "NewCourse", shared.ErrValueOutOfRange, "credits must be greater than zero")
	}
	term, err := shared.NewTerm(p.Term)
	if err != nil {
		return nil, err
	}
	year, err := shared.NewAcademicYear(p.AcademicYear)
	if err != nil {
		return nil, err
	}

	id := p.ID
	if id == uuid.Nil {
		id = shared.NewRecordID()
	}

	return &Course{
		ID:           id,
		Code:         code,
		Name:         strings.TrimSpace(p.Name),
		Credits:      p.Credits,
		Term:         term,
		AcademicYear: year,
	}, nil
}

// Repository stores courses. Upsert is keyed by ID.
type Repository interface {
	Find(ctx context.Context, id uuid.UUID) (*Course, error)
	Upsert(ctx context.Context, c *Course) (*Course, error)
}
