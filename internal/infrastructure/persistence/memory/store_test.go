package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/campus-records/records-core/internal/domain/attendance"
	"github.com/campus-records/records-core/internal/domain/course"
	"github.com/campus-records/records-core/internal/domain/finance"
	"github.com/campus-records/records-core/internal/domain/grade"
	"github.com/campus-records/records-core/internal/domain/recordstore"
	"github.com/campus-records/records-core/internal/domain/shared"
	"github.com/campus-records/records-core/pkg/timeutil"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRecord(t *testing.T, student, courseID uuid.UUID, day time.Time, status attendance.Status) *attendance.Record {
	t.Helper()
	r, err := attendance.NewRecord(attendance.NewRecordParams{
		StudentID: student,
		CourseID:  courseID,
		Date:      day,
		Status:    status,
	})
	require.NoError(t, err)
	return r
}

func TestAttendanceUpsert_KeepsIdentity(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	student, courseID := uuid.New(), uuid.New()
	day := timeutil.Date(2024, time.March, 4)

	first, err := s.Attendance().Upsert(ctx, newRecord(t, student, courseID, day, attendance.StatusAbsent))
	require.NoError(t, err)

	second, err := s.Attendance().Upsert(ctx, newRecord(t, student, courseID, day.Add(9*time.Hour), attendance.StatusPresent))
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, attendance.StatusPresent, second.Status)

	n, _, _ := s.Counts()
	assert.Equal(t, 1, n)

	found, err := s.Attendance().Find(ctx, attendance.NaturalKey{StudentID: student, CourseID: courseID, Date: day})
	require.NoError(t, err)
	assert.Equal(t, attendance.StatusPresent, found.Status)
}

func TestAttendanceUpsert_DateSurvivesSchoolTimezone(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	timeutil.SetLocation(loc)
	t.Cleanup(func() { timeutil.SetLocation(nil) })

	ctx := context.Background()
	s := NewStore()
	student, courseID := uuid.New(), uuid.New()
	day, err := timeutil.ParseDate("2024-03-07")
	require.NoError(t, err)

	rec := newRecord(t, student, courseID, day, attendance.StatusPresent)
	assert.Equal(t, "2024-03-07", timeutil.FormatDay(rec.Date))

	stored, err := s.Attendance().Upsert(ctx, rec)
	require.NoError(t, err)
	assert.Equal(t, "2024-03-07", timeutil.FormatDay(stored.Date))

	found, err := s.Attendance().Find(ctx, rec.Key())
	require.NoError(t, err)
	assert.Equal(t, stored.ID, found.ID)

	again, err := s.Attendance().Upsert(ctx, newRecord(t, student, courseID, day, attendance.StatusAbsent))
	require.NoError(t, err)
	assert.Equal(t, stored.ID, again.ID)

	listed, err := s.Attendance().List(ctx, attendance.Filter{StudentID: student, From: day, To: day})
	require.NoError(t, err)
	assert.Len(t, listed, 1)
}

func TestFind_NotFound(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	_, err := s.Attendance().Find(ctx, attendance.NaturalKey{StudentID: uuid.New(), CourseID: uuid.New(), Date: timeutil.Today()})
	assert.True(t, shared.IsNotFound(err))

	_, err = s.Transactions().Find(ctx, finance.NaturalKey{StudentID: uuid.New(), Reference: "X"})
	assert.True(t, shared.IsNotFound(err))

	_, err = s.Courses().Find(ctx, uuid.New())
	assert.True(t, shared.IsNotFound(err))
}

func TestUnitOfWork_RollbackDiscards(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	student, courseID := uuid.New(), uuid.New()

	err := recordstore.Run(ctx, s, func(uow recordstore.UnitOfWork) error {
		_, err := uow.Attendance().Upsert(ctx, newRecord(t, student, courseID, timeutil.Date(2024, 3, 4), attendance.StatusPresent))
		require.NoError(t, err)

		inside, err := uow.Attendance().List(ctx, attendance.Filter{StudentID: student})
		require.NoError(t, err)
		assert.Len(t, inside, 1)

		outside, err := s.Attendance().List(ctx, attendance.Filter{StudentID: student})
		require.NoError(t, err)
		assert.Empty(t, outside, "uncommitted writes are invisible")

		return errors.New("abort")
	})
	require.Error(t, err)

	n, _, _ := s.Counts()
	assert.Equal(t, 0, n)

	// Writer slot is free again.
	_, err = s.Attendance().Upsert(ctx, newRecord(t, student, courseID, timeutil.Date(2024, 3, 5), attendance.StatusPresent))
	assert.NoError(t, err)
}

func TestUnitOfWork_RollbackOnPanic(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	assert.Panics(t, func() {
		_ = recordstore.Run(ctx, s, func(uow recordstore.UnitOfWork) error {
			_, err := uow.Attendance().Upsert(ctx, newRecord(t, uuid.New(), uuid.New(), timeutil.Today(), attendance.StatusPresent))
			require.NoError(t, err)
			panic("boom")
		})
	})

	n, _, _ := s.Counts()
	assert.Equal(t, 0, n)

	uow, err := s.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, uow.Rollback(ctx))
}

func TestUnitOfWork_FaultRollsBack(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	student, courseID := uuid.New(), uuid.New()

	bad := newRecord(t, student, courseID, timeutil.Date(2024, 3, 6), attendance.StatusAbsent)
	s.InjectFault(FailOnKey(bad.Key().String(), errors.New("disk full")))

	err := recordstore.Run(ctx, s, func(uow recordstore.UnitOfWork) error {
		for _, r := range []*attendance.Record{
			newRecord(t, student, courseID, timeutil.Date(2024, 3, 4), attendance.StatusPresent),
			newRecord(t, student, courseID, timeutil.Date(2024, 3, 5), attendance.StatusPresent),
			bad,
		} {
			if _, err := uow.Attendance().Upsert(ctx, r); err != nil {
				return err
			}
		}
		return nil
	})
	require.Error(t, err)
	assert.True(t, shared.IsPersistence(err))

	n, _, _ := s.Counts()
	assert.Equal(t, 0, n)
}

func TestBegin_RespectsContext(t *testing.T) {
	s := NewStore()
	uow, err := s.Begin(context.Background())
	require.NoError(t, err)
	defer func() { _ = uow.Rollback(context.Background()) }()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = s.Begin(ctx)
	assert.ErrorIs(t, err, shared.ErrTimeout)
}

func TestGradeRepo_UpdateMarksAndWeightedScores(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	student := uuid.New()

	c, err := course.NewCourse(course.NewCourseParams{Code: "math101", Credits: 4, Term: "FALL", AcademicYear: "2023-2024"})
	require.NoError(t, err)
	_, err = s.Courses().Upsert(ctx, c)
	require.NoError(t, err)

	obtained, possible := decimal.NewFromInt(85), decimal.NewFromInt(100)
	a, err := grade.NewAssessment(grade.NewAssessmentParams{
		StudentID:      student,
		CourseID:       c.ID,
		AssessmentType: "EXAM",
		AssessmentName: "Final",
		MarksObtained:  &obtained,
		MarksPossible:  &possible,
		Term:           "FALL",
		AcademicYear:   "2023-2024",
	})
	require.NoError(t, err)
	_, err = s.Assessments().Upsert(ctx, a)
	require.NoError(t, err)

	updated, err := s.Assessments().UpdateMarks(ctx, a.Key(), grade.MustMarks(decimal.NewFromInt(45), decimal.NewFromInt(100)), uuid.NullUUID{})
	require.NoError(t, err)
	assert.Equal(t, grade.LetterC, updated.Letter())
	assert.Equal(t, a.ID, updated.ID)

	scores, err := s.Assessments().WeightedScores(ctx, student, "FALL", "2023-2024")
	require.NoError(t, err)
	require.Len(t, scores, 1)
	assert.Equal(t, 4, scores[0].Credits)
	assert.Equal(t, "45.00", scores[0].Percentage.StringFixed(2))

	missing := a.Key()
	missing.AssessmentName = "Quiz"
	_, err = s.Assessments().UpdateMarks(ctx, missing, grade.MustMarks(decimal.NewFromInt(1), decimal.NewFromInt(2)), uuid.NullUUID{})
	assert.True(t, shared.IsNotFound(err))
}

func TestFinanceRepo_TransitionsAndPending(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	student := uuid.New()

	late := timeutil.Date(2024, time.December, 1)
	early := timeutil.Date(2024, time.October, 1)
	for _, p := range []finance.NewTransactionParams{
		{StudentID: student, Reference: "INV-2", Type: finance.TypeFee, Amount: decimal.NewFromInt(100), DueDate: &late},
		{StudentID: student, Reference: "INV-1", Type: finance.TypeFee, Amount: decimal.NewFromInt(200), DueDate: &early},
		{StudentID: student, Reference: "INV-3", Type: finance.TypePenalty, Amount: decimal.NewFromInt(10)},
	} {
		tx, err := finance.NewTransaction(p)
		require.NoError(t, err)
		_, err = s.Transactions().Upsert(ctx, tx)
		require.NoError(t, err)
	}

	pending, err := s.Transactions().Pending(ctx, student)
	require.NoError(t, err)
	require.Len(t, pending, 3)
	assert.Equal(t, "INV-1", pending[0].Reference)
	assert.Equal(t, "INV-2", pending[1].Reference)
	assert.Equal(t, "INV-3", pending[2].Reference)

	key := finance.NaturalKey{StudentID: student, Reference: "INV-1"}
	paid, err := s.Transactions().UpdatePaymentStatus(ctx, key, finance.PaymentUpdate{Status: finance.StatusPaid})
	require.NoError(t, err)
	assert.Equal(t, finance.StatusPaid, paid.Status)

	_, err = s.Transactions().UpdatePaymentStatus(ctx, key, finance.PaymentUpdate{Status: finance.StatusPending})
	assert.True(t, shared.IsStateTransition(err))

	pending, err = s.Transactions().Pending(ctx, student)
	require.NoError(t, err)
	assert.Len(t, pending, 2)

	changed, err := finance.NewTransaction(finance.NewTransactionParams{
		StudentID: student, Reference: "INV-2", Type: finance.TypeFee, Amount: decimal.NewFromInt(999),
	})
	require.NoError(t, err)
	_, err = s.Transactions().Upsert(ctx, changed)
	assert.ErrorIs(t, err, shared.ErrValidation)
}
