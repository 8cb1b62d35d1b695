package query

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/campus-records/records-core/internal/domain/attendance"
	"github.com/campus-records/records-core/internal/domain/course"
	"github.com/campus-records/records-core/internal/domain/finance"
	"github.com/campus-records/records-core/internal/domain/grade"
	"github.com/campus-records/records-core/internal/domain/shared"
	"github.com/campus-records/records-core/internal/infrastructure/persistence/memory"
	"github.com/campus-records/records-core/pkg/timeutil"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedAttendance(t *testing.T, s *memory.Store, student, courseID uuid.UUID, day time.Time, status attendance.Status) {
	t.Helper()
	rec, err := attendance.NewRecord(attendance.NewRecordParams{StudentID: student, CourseID: courseID, Date: day, Status: status})
	require.NoError(t, err)
	_, err = s.Attendance().Upsert(context.Background(), rec)
	require.NoError(t, err)
}

func seedCourse(t *testing.T, s *memory.Store, credits int) uuid.UUID {
	t.Helper()
	c, err := course.NewCourse(course.NewCourseParams{Code: "C" + strconv.Itoa(credits), Credits: credits, Term: "FALL", AcademicYear: "2023-2024"})
	require.NoError(t, err)
	_, err = s.Courses().Upsert(context.Background(), c)
	require.NoError(t, err)
	return c.ID
}

func seedAssessment(t *testing.T, s *memory.Store, student, courseID uuid.UUID, name string, obtained int64) {
	t.Helper()
	o, p := decimal.NewFromInt(obtained), decimal.NewFromInt(100)
	a, err := grade.NewAssessment(grade.NewAssessmentParams{
		StudentID: student, CourseID: courseID, AssessmentType: "EXAM", AssessmentName: name,
		MarksObtained: &o, MarksPossible: &p, Term: "FALL", AcademicYear: "2023-2024",
	})
	require.NoError(t, err)
	_, err = s.Assessments().Upsert(context.Background(), a)
	require.NoError(t, err)
}

func seedTransaction(t *testing.T, s *memory.Store, student uuid.UUID, ref string, typ finance.Type, amount int64, status finance.Status, due *time.Time) {
	t.Helper()
	tx, err := finance.NewTransaction(finance.NewTransactionParams{
		StudentID: student, Reference: ref, Type: typ, Amount: decimal.NewFromInt(amount), Status: status, DueDate: due,
	})
	require.NoError(t, err)
	_, err = s.Transactions().Upsert(context.Background(), tx)
	require.NoError(t, err)
}

// ══════════════════════════════════════════════════════════════════════════════
// AGGREGATES
// ══════════════════════════════════════════════════════════════════════════════

func TestAttendancePercentage(t *testing.T) {
	ctx := context.Background()
	s := memory.NewStore()
	student, courseID := uuid.New(), uuid.New()

	for i, status := range []attendance.Status{attendance.StatusPresent, attendance.StatusPresent, attendance.StatusAbsent, attendance.StatusPresent} {
		seedAttendance(t, s, student, courseID, timeutil.Date(2024, time.March, 4+i), status)
	}
	seedAttendance(t, s, student, uuid.New(), timeutil.Date(2024, time.March, 4), attendance.StatusAbsent)

	h := NewAttendancePercentageHandler(s.Attendance(), nil)

	got, err := h.Handle(ctx, AttendancePercentageQuery{StudentID: student.String(), CourseID: courseID.String()})
	require.NoError(t, err)
	assert.Equal(t, 75.0, got.Percentage)
	assert.Equal(t, 4, got.Total)
	assert.Equal(t, 3, got.Present)
	assert.True(t, got.HasData)

	empty, err := h.Handle(ctx, AttendancePercentageQuery{StudentID: uuid.NewString(), CourseID: courseID.String()})
	require.NoError(t, err)
	assert.Equal(t, 0.0, empty.Percentage)
	assert.False(t, empty.HasData)

	_, err = h.Handle(ctx, AttendancePercentageQuery{StudentID: "x", CourseID: courseID.String()})
	assert.True(t, shared.IsValidation(err))
}

func TestGPA_WeightedByCredits(t *testing.T) {
	ctx := context.Background()
	s := memory.NewStore()
	student := uuid.New()

	math := seedCourse(t, s, 4)
	history := seedCourse(t, s, 2)
	seedAssessment(t, s, student, math, "Final", 85)
	seedAssessment(t, s, student, history, "Final", 70)

	h := NewGPAHandler(s.Assessments(), nil)

	got, err := h.Handle(ctx, GPAQuery{StudentID: student.String(), Term: "fall", AcademicYear: "2023-2024"})
	require.NoError(t, err)
	assert.True(t, got.GPA.Equal(decimal.NewFromInt(80)), got.GPA.String())
	assert.Equal(t, 6, got.TotalCredits)
	assert.True(t, got.HasData)

	none, err := h.Handle(ctx, GPAQuery{StudentID: student.String(), Term: "SPRING", AcademicYear: "2023-2024"})
	require.NoError(t, err)
	assert.True(t, none.GPA.IsZero())
	assert.False(t, none.HasData)

	_, err = h.Handle(ctx, GPAQuery{StudentID: student.String(), Term: "FALL", AcademicYear: "2023"})
	assert.True(t, shared.IsValidation(err))
}

func TestBalance_ExcludesCancelled(t *testing.T) {
	ctx := context.Background()
	s := memory.NewStore()
	student := uuid.New()

	seedTransaction(t, s, student, "F1", finance.TypeFee, 500, finance.StatusPending, nil)
	seedTransaction(t, s, student, "P1", finance.TypePayment, 200, finance.StatusPaid, nil)
	seedTransaction(t, s, student, "R1", finance.TypeRefund, 100, finance.StatusCancelled, nil)

	got, err := NewBalanceHandler(s.Transactions(), nil).Handle(ctx, student.String())
	require.NoError(t, err)
	assert.Equal(t, "300", got.Balance.String())
	assert.Equal(t, "500", got.Charges.String())
	assert.Equal(t, "200", got.Credits.String())
	assert.Equal(t, 2, got.Transactions)

	raw, err := json.Marshal(got)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"balance":"300"`)
}

// ══════════════════════════════════════════════════════════════════════════════
// LISTS
// ══════════════════════════════════════════════════════════════════════════════

func TestListAttendance_DateRange(t *testing.T) {
	ctx := context.Background()
	s := memory.NewStore()
	student, courseID := uuid.New(), uuid.New()
	for day := 1; day <= 5; day++ {
		seedAttendance(t, s, student, courseID, timeutil.Date(2024, time.March, day), attendance.StatusPresent)
	}

	h := NewListAttendanceHandler(s.Attendance())

	got, err := h.Handle(ctx, ListAttendanceQuery{StudentID: student.String(), CourseID: courseID.String(), From: "2024-03-02", To: "2024-03-04"})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "2024-03-02", got[0].Date)
	assert.Equal(t, "2024-03-04", got[2].Date)

	_, err = h.Handle(ctx, ListAttendanceQuery{StudentID: student.String(), CourseID: courseID.String(), From: "2024-03-04", To: "2024-03-02"})
	assert.True(t, shared.IsValidation(err))
}

func TestRoster(t *testing.T) {
	ctx := context.Background()
	s := memory.NewStore()
	courseID := uuid.New()
	day := timeutil.Date(2024, time.March, 4)
	for i := 0; i < 3; i++ {
		seedAttendance(t, s, uuid.New(), courseID, day, attendance.StatusPresent)
	}
	seedAttendance(t, s, uuid.New(), courseID, day.AddDate(0, 0, 1), attendance.StatusPresent)

	h := NewRosterHandler(s.Attendance())

	got, err := h.Handle(ctx, RosterQuery{CourseID: courseID.String(), Date: "2024-03-04"})
	require.NoError(t, err)
	assert.Len(t, got, 3)

	_, err = h.Handle(ctx, RosterQuery{CourseID: courseID.String()})
	assert.True(t, shared.IsValidation(err))
}

func TestListAssessments_FilterByCourse(t *testing.T) {
	ctx := context.Background()
	s := memory.NewStore()
	student := uuid.New()
	c1, c2 := seedCourse(t, s, 3), seedCourse(t, s, 5)
	seedAssessment(t, s, student, c1, "Quiz", 50)
	seedAssessment(t, s, student, c1, "Final", 90)
	seedAssessment(t, s, student, c2, "Final", 60)

	h := NewListAssessmentsHandler(s.Assessments())

	all, err := h.Handle(ctx, ListAssessmentsQuery{StudentID: student.String()})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	one, err := h.Handle(ctx, ListAssessmentsQuery{StudentID: student.String(), CourseID: c1.String()})
	require.NoError(t, err)
	require.Len(t, one, 2)
	for _, a := range one {
		assert.Equal(t, c1.String(), a.CourseID)
	}
}

func TestPendingTransactions_OrderedByDueDate(t *testing.T) {
	ctx := context.Background()
	s := memory.NewStore()
	student := uuid.New()
	early, late := timeutil.Date(2024, time.September, 1), timeutil.Date(2024, time.October, 1)

	seedTransaction(t, s, student, "NODUE", finance.TypeFee, 10, finance.StatusPending, nil)
	seedTransaction(t, s, student, "LATE", finance.TypeFee, 10, finance.StatusOverdue, &late)
	seedTransaction(t, s, student, "EARLY", finance.TypeFee, 10, finance.StatusPending, &early)
	seedTransaction(t, s, student, "DONE", finance.TypeFee, 10, finance.StatusPaid, &early)

	got, err := NewPendingTransactionsHandler(s.Transactions()).Handle(ctx, student.String())
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "EARLY", got[0].Reference)
	assert.Equal(t, "LATE", got[1].Reference)
	assert.Equal(t, "NODUE", got[2].Reference)
	assert.Equal(t, "2024-09-01", got[0].DueDate)
}

// ══════════════════════════════════════════════════════════════════════════════
// CACHE
// ══════════════════════════════════════════════════════════════════════════════

// memoryCache mimics the generation-keyed Redis cache.
type memoryCache struct {
	mu     sync.Mutex
	gens   map[string]int64
	values map[string][]byte
	loads  int
	hits   int
}

func newMemoryCache() *memoryCache {
	return &memoryCache{gens: map[string]int64{}, values: map[string][]byte{}}
}

func (c *memoryCache) key(student string, gen int64, name string) string {
	return student + ":" + strconv.FormatInt(gen, 10) + ":" + name
}

func (c *memoryCache) Load(_ context.Context, studentID, name string, dest any) (int64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loads++
	gen := c.gens[studentID]
	raw, ok := c.values[c.key(studentID, gen, name)]
	if !ok {
		return gen, false
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return gen, false
	}
	c.hits++
	return gen, true
}

func (c *memoryCache) Store(_ context.Context, studentID string, generation int64, name string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	raw, _ := json.Marshal(value)
	c.values[c.key(studentID, generation, name)] = raw
}

func (c *memoryCache) bump(studentID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gens[studentID]++
}

func TestBalance_CacheInvalidatedByGeneration(t *testing.T) {
	ctx := context.Background()
	s := memory.NewStore()
	cache := newMemoryCache()
	student := uuid.New()
	h := NewBalanceHandler(s.Transactions(), cache)

	seedTransaction(t, s, student, "F1", finance.TypeFee, 500, finance.StatusPending, nil)

	first, err := h.Handle(ctx, student.String())
	require.NoError(t, err)
	assert.Equal(t, "500", first.Balance.String())

	again, err := h.Handle(ctx, student.String())
	require.NoError(t, err)
	assert.Equal(t, "500", again.Balance.String())
	assert.Equal(t, 1, cache.hits)

	seedTransaction(t, s, student, "P1", finance.TypePayment, 200, finance.StatusPaid, nil)
	cache.bump(student.String())

	after, err := h.Handle(ctx, student.String())
	require.NoError(t, err)
	assert.Equal(t, "300", after.Balance.String())
	assert.Equal(t, 1, cache.hits)
}

// failingRepo fails every read.
type failingRepo struct {
	finance.Repository
}

func (failingRepo) List(context.Context, finance.Filter) ([]*finance.Transaction, error) {
	return nil, errors.New("connection refused")
}

func TestBalance_StoreFailure(t *testing.T) {
	_, err := NewBalanceHandler(failingRepo{}, nil).Handle(context.Background(), uuid.NewString())
	assert.True(t, errors.Is(err, shared.ErrPersistence))
}
