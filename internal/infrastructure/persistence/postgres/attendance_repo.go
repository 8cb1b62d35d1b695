package postgres

import (
	"context"
	"time"

	"github.com/campus-records/records-core/internal/domain/attendance"
	"github.com/campus-records/records-core/internal/domain/shared"
	"github.com/campus-records/records-core/pkg/timeutil"

	"github.com/google/uuid"
)

// AttendanceRepository implements attendance.Repository for PostgreSQL.
type AttendanceRepository struct {
	db db
}

const attendanceColumns = `id, student_id, course_id, attendance_date, status, remarks, recorded_by, created_at, updated_at`

func scanAttendance(row rowScanner) (*attendance.Record, error) {
	var (
		r      attendance.Record
		status string
	)
	err := row.Scan(&r.ID, &r.StudentID, &r.CourseID, &r.Date, &status, &r.Remarks, &r.RecordedBy, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	r.Status = attendance.Status(status)
	r.Date = timeutil.Date(r.Date.Year(), r.Date.Month(), r.Date.Day())
	return &r, nil
}

// Find returns the record with the given natural key.
func (r *AttendanceRepository) Find(ctx context.Context, key attendance.NaturalKey) (*attendance.Record, error) {
	ctx, cancel := r.db.op(ctx)
	defer cancel()

	query := `SELECT ` + attendanceColumns + `
		FROM attendance
		WHERE student_id = $1 AND course_id = $2 AND attendance_date = $3`

	rec, err := scanAttendance(r.db.q.QueryRow(ctx, query, key.StudentID, key.CourseID, timeutil.CalendarDay(key.Date)))
	if IsNoRows(err) {
		return nil, shared.ErrAttendanceNotFound
	}
	if err != nil {
		return nil, classify("attendance", "Find", "failed to load "+key.String(), err)
	}
	return rec, nil
}

// Upsert inserts or updates the record in one statement.
func (r *AttendanceRepository) Upsert(ctx context.Context, rec *attendance.Record) (*attendance.Record, error) {
	ctx, cancel := r.db.op(ctx)
	defer cancel()

	query := `
		INSERT INTO attendance (` + attendanceColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (student_id, course_id, attendance_date) DO UPDATE SET
			status = EXCLUDED.status,
			remarks = EXCLUDED.remarks,
			recorded_by = EXCLUDED.recorded_by,
			updated_at = NOW()
		RETURNING ` + attendanceColumns

	stored, err := scanAttendance(r.db.q.QueryRow(ctx, query,
		rec.ID,
		rec.StudentID,
		rec.CourseID,
		rec.Date,
		string(rec.Status),
		rec.Remarks,
		rec.RecordedBy,
		rec.CreatedAt,
		rec.UpdatedAt,
	))
	if err != nil {
		return nil, classify("attendance", "Upsert", "failed to upsert "+rec.Key().String(), err)
	}
	return stored, nil
}

// List returns matching records ordered by date, then student.
func (r *AttendanceRepository) List(ctx context.Context, filter attendance.Filter) ([]*attendance.Record, error) {
	ctx, cancel := r.db.op(ctx)
	defer cancel()

	var w where
	if filter.StudentID != uuid.Nil {
		w.add("student_id = ?", filter.StudentID)
	}
	if filter.CourseID != uuid.Nil {
		w.add("course_id = ?", filter.CourseID)
	}
	if !filter.From.IsZero() {
		w.add("attendance_date >= ?", filter.From)
	}
	if !filter.To.IsZero() {
		w.add("attendance_date <= ?", filter.To)
	}

	query := `SELECT ` + attendanceColumns + ` FROM attendance` + w.String() + ` ORDER BY attendance_date, student_id`

	rows, err := r.db.q.Query(ctx, query, w.args...)
	if err != nil {
		return nil, classify("attendance", "List", "failed to list attendance", err)
	}
	defer rows.Close()

	var out []*attendance.Record
	for rows.Next() {
		rec, err := scanAttendance(rows)
		if err != nil {
			return nil, classify("attendance", "List", "failed to scan attendance", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("attendance", "List", "failed to list attendance", err)
	}
	return out, nil
}

// ListByCourseDate returns the roster of a course for one day.
func (r *AttendanceRepository) ListByCourseDate(ctx context.Context, courseID uuid.UUID, date time.Time) ([]*attendance.Record, error) {
	day := timeutil.CalendarDay(date)
	return r.List(ctx, attendance.Filter{CourseID: courseID, From: day, To: day})
}
