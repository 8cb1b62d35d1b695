package postgres

import (
	"context"

	"github.com/campus-records/records-core/internal/domain/grade"
	"github.com/campus-records/records-core/internal/domain/shared"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AssessmentRepository implements grade.Repository for PostgreSQL.
// Percentage and letter are stored for reporting but always re-derived from
// the marks when a row is loaded.
type AssessmentRepository struct {
	db db
}

const assessmentColumns = `id, student_id, course_id, assessment_type, assessment_name,
	marks_obtained, marks_possible, term, academic_year, recorded_by, created_at, updated_at`

func scanAssessment(row rowScanner) (*grade.Assessment, error) {
	var (
		p                  grade.NewAssessmentParams
		obtained, possible decimal.Decimal
	)
	err := row.Scan(
		&p.ID, &p.StudentID, &p.CourseID, &p.AssessmentType, &p.AssessmentName,
		&obtained, &possible, &p.Term, &p.AcademicYear, &p.RecordedBy, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.MarksObtained = &obtained
	p.MarksPossible = &possible
	return grade.NewAssessment(p)
}

// Find returns the assessment with the given natural key.
func (r *AssessmentRepository) Find(ctx context.Context, key grade.NaturalKey) (*grade.Assessment, error) {
	ctx, cancel := r.db.op(ctx)
	defer cancel()

	query := `SELECT ` + assessmentColumns + `
		FROM assessments
		WHERE student_id = $1 AND course_id = $2 AND assessment_type = $3
		  AND assessment_name = $4 AND term = $5 AND academic_year = $6`

	a, err := scanAssessment(r.db.q.QueryRow(ctx, query,
		key.StudentID, key.CourseID, key.AssessmentType, key.AssessmentName, key.Term.String(), key.AcademicYear.String()))
	if IsNoRows(err) {
		return nil, shared.ErrAssessmentNotFound
	}
	if err != nil {
		return nil, classify("grade", "Find", "failed to load "+key.String(), err)
	}
	return a, nil
}

// Upsert inserts or updates the assessment in one statement. Marks and
// their derivation are written together.
func (r *AssessmentRepository) Upsert(ctx context.Context, a *grade.Assessment) (*grade.Assessment, error) {
	ctx, cancel := r.db.op(ctx)
	defer cancel()

	query := `
		INSERT INTO assessments (
			id, student_id, course_id, assessment_type, assessment_name,
			marks_obtained, marks_possible, percentage, letter_grade,
			term, academic_year, recorded_by, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (student_id, course_id, assessment_type, assessment_name, term, academic_year) DO UPDATE SET
			marks_obtained = EXCLUDED.marks_obtained,
			marks_possible = EXCLUDED.marks_possible,
			percentage = EXCLUDED.percentage,
			letter_grade = EXCLUDED.letter_grade,
			recorded_by = EXCLUDED.recorded_by,
			updated_at = NOW()
		RETURNING ` + assessmentColumns

	stored, err := scanAssessment(r.db.q.QueryRow(ctx, query,
		a.ID,
		a.StudentID,
		a.CourseID,
		a.AssessmentType,
		a.AssessmentName,
		a.MarksObtained(),
		a.MarksPossible(),
		a.Percentage(),
		a.Letter().String(),
		a.Term.String(),
		a.AcademicYear.String(),
		a.RecordedBy,
		a.CreatedAt,
		a.UpdatedAt,
	))
	if err != nil {
		return nil, classify("grade", "Upsert", "failed to upsert "+a.Key().String(), err)
	}
	return stored, nil
}

// UpdateMarks replaces the marks of an existing assessment.
func (r *AssessmentRepository) UpdateMarks(ctx context.Context, key grade.NaturalKey, marks grade.Marks, recordedBy uuid.NullUUID) (*grade.Assessment, error) {
	if marks.IsZero() {
		return nil, shared.NewDomainError("grade", "UpdateMarks", shared.ErrInvalidAssessment, "marks were not derived")
	}

	ctx, cancel := r.db.op(ctx)
	defer cancel()

	query := `
		UPDATE assessments SET
			marks_obtained = $7,
			marks_possible = $8,
			percentage = $9,
			letter_grade = $10,
			recorded_by = COALESCE($11, recorded_by),
			updated_at = NOW()
		WHERE student_id = $1 AND course_id = $2 AND assessment_type = $3
		  AND assessment_name = $4 AND term = $5 AND academic_year = $6
		RETURNING ` + assessmentColumns

	a, err := scanAssessment(r.db.q.QueryRow(ctx, query,
		key.StudentID, key.CourseID, key.AssessmentType, key.AssessmentName, key.Term.String(), key.AcademicYear.String(),
		marks.Obtained(), marks.Possible(), marks.Percentage(), marks.Letter().String(), recordedBy,
	))
	if IsNoRows(err) {
		return nil, shared.ErrAssessmentNotFound
	}
	if err != nil {
		return nil, classify("grade", "UpdateMarks", "failed to update "+key.String(), err)
	}
	return a, nil
}

// List returns assessments matching the filter.
func (r *AssessmentRepository) List(ctx context.Context, filter grade.Filter) ([]*grade.Assessment, error) {
	ctx, cancel := r.db.op(ctx)
	defer cancel()

	var w where
	if filter.StudentID != uuid.Nil {
		w.add("student_id = ?", filter.StudentID)
	}
	if filter.CourseID != uuid.Nil {
		w.add("course_id = ?", filter.CourseID)
	}
	if filter.Term != "" {
		w.add("term = ?", filter.Term.String())
	}
	if filter.AcademicYear != "" {
		w.add("academic_year = ?", filter.AcademicYear.String())
	}

	query := `SELECT ` + assessmentColumns + ` FROM assessments` + w.String() +
		` ORDER BY academic_year, term, course_id, assessment_type, assessment_name`

	rows, err := r.db.q.Query(ctx, query, w.args...)
	if err != nil {
		return nil, classify("grade", "List", "failed to list assessments", err)
	}
	defer rows.Close()

	var out []*grade.Assessment
	for rows.Next() {
		a, err := scanAssessment(rows)
		if err != nil {
			return nil, classify("grade", "List", "failed to scan assessment", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("grade", "List", "failed to list assessments", err)
	}
	return out, nil
}

// WeightedScores joins the student's assessments in a term to course credits.
func (r *AssessmentRepository) WeightedScores(ctx context.Context, studentID uuid.UUID, term shared.Term, year shared.AcademicYear) ([]grade.WeightedScore, error) {
	ctx, cancel := r.db.op(ctx)
	defer cancel()

	query := `
		SELECT a.course_id, a.percentage, c.credits
		FROM assessments a
		JOIN courses c ON c.id = a.course_id
		WHERE a.student_id = $1 AND a.term = $2 AND a.academic_year = $3`

	rows, err := r.db.q.Query(ctx, query, studentID, term.String(), year.String())
	if err != nil {
		return nil, classify("grade", "WeightedScores", "failed to load weighted scores", err)
	}
	defer rows.Close()

	var out []grade.WeightedScore
	for rows.Next() {
		var s grade.WeightedScore
		if err := rows.Scan(&s.CourseID, &s.Percentage, &s.Credits); err != nil {
			return nil, classify("grade", "WeightedScores", "failed to scan weighted score", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("grade", "WeightedScores", "failed to load weighted scores", err)
	}
	return out, nil
}
