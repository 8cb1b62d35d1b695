package postgres

import (
	"context"

	"github.com/campus-records/records-core/internal/domain/course"
	"github.com/campus-records/records-core/internal/domain/shared"

	"github.com/google/uuid"
)

// CourseRepository implements course.Repository for PostgreSQL.
type CourseRepository struct {
	db db
}

const courseColumns = `id, code, name, credits, term, academic_year`

func scanCourse(row rowScanner) (*course.Course, error) {
	var (
		c          course.Course
		term, year string
	)
	if err := row.Scan(&c.ID, &c.Code, &c.Name, &c.Credits, &term, &year); err != nil {
		return nil, err
	}
	c.Term = shared.Term(term)
	c.AcademicYear = shared.AcademicYear(year)
	return &c, nil
}

// Find returns the course with the given ID.
func (r *CourseRepository) Find(ctx context.Context, id uuid.UUID) (*course.Course, error) {
	ctx, cancel := r.db.op(ctx)
	defer cancel()

	c, err := scanCourse(r.db.q.QueryRow(ctx, `SELECT `+courseColumns+` FROM courses WHERE id = $1`, id))
	if IsNoRows(err) {
		return nil, shared.ErrCourseNotFound
	}
	if err != nil {
		return nil, classify("course", "Find", "failed to load course "+id.String(), err)
	}
	return c, nil
}

// Upsert inserts or replaces the course.
func (r *CourseRepository) Upsert(ctx context.Context, c *course.Course) (*course.Course, error) {
	ctx, cancel := r.db.op(ctx)
	defer cancel()

	query := `
		INSERT INTO courses (` + courseColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			code = EXCLUDED.code,
			name = EXCLUDED.name,
			credits = EXCLUDED.credits,
			term = EXCLUDED.term,
			academic_year = EXCLUDED.academic_year,
			updated_at = NOW()
		RETURNING ` + courseColumns

	stored, err := scanCourse(r.db.q.QueryRow(ctx, query,
		c.ID, c.Code, c.Name, c.Credits, c.Term.String(), c.AcademicYear.String()))
	if err != nil {
		return nil, classify("course", "Upsert", "failed to upsert course "+c.Code, err)
	}
	return stored, nil
}
