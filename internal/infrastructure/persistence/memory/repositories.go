package memory

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/campus-records/records-core/internal/domain/attendance"
	"github.com/campus-records/records-core/internal/domain/course"
	"github.com/campus-records/records-core/internal/domain/finance"
	"github.com/campus-records/records-core/internal/domain/grade"
	"github.com/campus-records/records-core/internal/domain/shared"
	"github.com/campus-records/records-core/pkg/timeutil"

	"github.com/google/uuid"
)

// ══════════════════════════════════════════════════════════════════════════════
// ATTENDANCE
// ══════════════════════════════════════════════════════════════════════════════

type attendanceRepo struct{ a access }

func (r *attendanceRepo) Find(ctx context.Context, key attendance.NaturalKey) (*attendance.Record, error) {
	key.Date = timeutil.CalendarDay(key.Date)
	var out *attendance.Record
	err := r.a.read(ctx, func(st *state) error {
		rec, ok := st.attendance[keyOfAttendance(key)]
		if !ok {
			return shared.ErrAttendanceNotFound
		}
		out = rec.Clone()
		return nil
	})
	return out, err
}

func (r *attendanceRepo) Upsert(ctx context.Context, rec *attendance.Record) (*attendance.Record, error) {
	var out *attendance.Record
	err := r.a.write(ctx, "attendance.Upsert", rec.Key().String(), func(st *state) error {
		k := keyOfAttendance(rec.Key())
		stored := rec.Clone()
		if existing, ok := st.attendance[k]; ok {
			stored.ID = existing.ID
			stored.CreatedAt = existing.CreatedAt
			stored.UpdatedAt = time.Now().UTC()
		}
		st.attendance[k] = stored
		out = stored.Clone()
		return nil
	})
	return out, err
}

func (r *attendanceRepo) List(ctx context.Context, filter attendance.Filter) ([]*attendance.Record, error) {
	var out []*attendance.Record
	err := r.a.read(ctx, func(st *state) error {
		for _, rec := range st.attendance {
			if filter.Matches(rec) {
				out = append(out, rec.Clone())
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].StudentID.String() < out[j].StudentID.String()
	})
	return out, err
}

func (r *attendanceRepo) ListByCourseDate(ctx context.Context, courseID uuid.UUID, date time.Time) ([]*attendance.Record, error) {
	day := timeutil.CalendarDay(date)
	return r.List(ctx, attendance.Filter{CourseID: courseID, From: day, To: day})
}

// ══════════════════════════════════════════════════════════════════════════════
// ASSESSMENTS
// ══════════════════════════════════════════════════════════════════════════════

type gradeRepo struct{ a access }

func (r *gradeRepo) Find(ctx context.Context, key grade.NaturalKey) (*grade.Assessment, error) {
	var out *grade.Assessment
	err := r.a.read(ctx, func(st *state) error {
		a, ok := st.assessments[key]
		if !ok {
			return shared.ErrAssessmentNotFound
		}
		out = a.Clone()
		return nil
	})
	return out, err
}

func (r *gradeRepo) Upsert(ctx context.Context, a *grade.Assessment) (*grade.Assessment, error) {
	var out *grade.Assessment
	err := r.a.write(ctx, "grade.Upsert", a.Key().String(), func(st *state) error {
		stored := a.Clone()
		if existing, ok := st.assessments[a.Key()]; ok {
			stored.ID = existing.ID
			stored.CreatedAt = existing.CreatedAt
			stored.UpdatedAt = time.Now().UTC()
		}
		st.assessments[a.Key()] = stored
		out = stored.Clone()
		return nil
	})
	return out, err
}

func (r *gradeRepo) UpdateMarks(ctx context.Context, key grade.NaturalKey, marks grade.Marks, recordedBy uuid.NullUUID) (*grade.Assessment, error) {
	var out *grade.Assessment
	err := r.a.write(ctx, "grade.UpdateMarks", key.String(), func(st *state) error {
		existing, ok := st.assessments[key]
		if !ok {
			return shared.ErrAssessmentNotFound
		}
		if marks.IsZero() {
			return shared.NewDomainError("grade", "UpdateMarks", shared.ErrInvalidAssessment, "marks were not derived")
		}
		updated := existing.Clone()
		updated.ApplyMarks(marks)
		if recordedBy.Valid {
			updated.RecordedBy = recordedBy
		}
		st.assessments[key] = updated
		out = updated.Clone()
		return nil
	})
	return out, err
}

func (r *gradeRepo) List(ctx context.Context, filter grade.Filter) ([]*grade.Assessment, error) {
	var out []*grade.Assessment
	err := r.a.read(ctx, func(st *state) error {
		for _, a := range st.assessments {
			if filter.Matches(a) {
				out = append(out, a.Clone())
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		return assessmentOrder(out[i]) < assessmentOrder(out[j])
	})
	return out, err
}

func assessmentOrder(a *grade.Assessment) string {
	return strings.Join([]string{
		a.AcademicYear.String(),
		a.Term.String(),
		a.CourseID.String(),
		a.AssessmentType,
		a.AssessmentName,
	}, "\x00")
}

func (r *gradeRepo) WeightedScores(ctx context.Context, studentID uuid.UUID, term shared.Term, year shared.AcademicYear) ([]grade.WeightedScore, error) {
	var out []grade.WeightedScore
	err := r.a.read(ctx, func(st *state) error {
		f := grade.Filter{StudentID: studentID, Term: term, AcademicYear: year}
		for _, a := range st.assessments {
			if !f.Matches(a) {
				continue
			}
			c, ok := st.courses[a.CourseID]
			if !ok {
				continue
			}
			out = append(out, grade.WeightedScore{
				CourseID:   a.CourseID,
				Percentage: a.Percentage(),
				Credits:    c.Credits,
			})
		}
		return nil
	})
	return out, err
}

// ══════════════════════════════════════════════════════════════════════════════
// FINANCIAL TRANSACTIONS
// ══════════════════════════════════════════════════════════════════════════════

type financeRepo struct{ a access }

func (r *financeRepo) Find(ctx context.Context, key finance.NaturalKey) (*finance.Transaction, error) {
	var out *finance.Transaction
	err := r.a.read(ctx, func(st *state) error {
		t, ok := st.transactions[key]
		if !ok {
			return shared.ErrTransactionNotFound
		}
		out = t.Clone()
		return nil
	})
	return out, err
}

func (r *financeRepo) Upsert(ctx context.Context, t *finance.Transaction) (*finance.Transaction, error) {
	var out *finance.Transaction
	err := r.a.write(ctx, "finance.Upsert", t.Key().String(), func(st *state) error {
		existing, ok := st.transactions[t.Key()]
		if !ok {
			stored := t.Clone()
			st.transactions[t.Key()] = stored
			out = stored.Clone()
			return nil
		}
		merged := existing.Clone()
		if err := merged.Merge(t); err != nil {
			return err
		}
		st.transactions[t.Key()] = merged
		out = merged.Clone()
		return nil
	})
	return out, err
}

func (r *financeRepo) UpdatePaymentStatus(ctx context.Context, key finance.NaturalKey, u finance.PaymentUpdate) (*finance.Transaction, error) {
	var out *finance.Transaction
	err := r.a.write(ctx, "finance.UpdatePaymentStatus", key.String(), func(st *state) error {
		existing, ok := st.transactions[key]
		if !ok {
			return shared.ErrTransactionNotFound
		}
		updated := existing.Clone()
		if err := updated.ApplyPayment(u); err != nil {
			return err
		}
		st.transactions[key] = updated
		out = updated.Clone()
		return nil
	})
	return out, err
}

func (r *financeRepo) List(ctx context.Context, filter finance.Filter) ([]*finance.Transaction, error) {
	var out []*finance.Transaction
	err := r.a.read(ctx, func(st *state) error {
		for _, t := range st.transactions {
			if filter.Matches(t) {
				out = append(out, t.Clone())
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if !out[i].TransactionDate.Equal(out[j].TransactionDate) {
			return out[i].TransactionDate.Before(out[j].TransactionDate)
		}
		return out[i].Reference < out[j].Reference
	})
	return out, err
}

func (r *financeRepo) Pending(ctx context.Context, studentID uuid.UUID) ([]*finance.Transaction, error) {
	out, err := r.List(ctx, finance.Filter{
		StudentID: studentID,
		Statuses:  []finance.Status{finance.StatusPending, finance.StatusOverdue},
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(out, func(i, j int) bool {
		di, dj := out[i].DueDate, out[j].DueDate
		switch {
		case di == nil:
			return false
		case dj == nil:
			return true
		default:
			return di.Before(*dj)
		}
	})
	return out, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// COURSES
// ══════════════════════════════════════════════════════════════════════════════

type courseRepo struct{ a access }

func (r *courseRepo) Find(ctx context.Context, id uuid.UUID) (*course.Course, error) {
	var out *course.Course
	err := r.a.read(ctx, func(st *state) error {
		c, ok := st.courses[id]
		if !ok {
			return shared.ErrCourseNotFound
		}
		cc := *c
		out = &cc
		return nil
	})
	return out, err
}

func (r *courseRepo) Upsert(ctx context.Context, c *course.Course) (*course.Course, error) {
	stored := *c
	err := r.a.write(ctx, "course.Upsert", c.ID.String(), func(st *state) error {
		cc := stored
		st.courses[c.ID] = &cc
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &stored, nil
}
