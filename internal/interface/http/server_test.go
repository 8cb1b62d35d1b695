package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/campus-records/records-core/internal/application/command"
	"github.com/campus-records/records-core/internal/application/query"
	"github.com/campus-records/records-core/internal/domain/course"
	"github.com/campus-records/records-core/internal/infrastructure/persistence/memory"
	"github.com/campus-records/records-core/pkg/logger"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type envelope struct {
	Success   bool            `json:"success"`
	Data      json.RawMessage `json:"data"`
	Error     *APIError       `json:"error"`
	RequestID string          `json:"request_id"`
}

func newTestServer(t *testing.T) (*Server, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	deps := NewDependencies(store, nil, nil, logger.Discard(), command.DefaultConfig())
	return NewServer(DefaultConfig(), deps), store
}

func do(t *testing.T, s *Server, method, path string, body any) (int, envelope) {
	t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	resp, err := s.App().Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	return resp.StatusCode, env
}

func decodeData[T any](t *testing.T, env envelope) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(env.Data, &v))
	return v
}

func attendanceEntry(student, courseID, day, status string) map[string]any {
	return map[string]any{"student_id": student, "course_id": courseID, "date": day, "status": status}
}

// ══════════════════════════════════════════════════════════════════════════════
// ATTENDANCE
// ══════════════════════════════════════════════════════════════════════════════

func TestAttendanceBatchAndPercentage(t *testing.T) {
	s, store := newTestServer(t)
	student, courseID := uuid.NewString(), uuid.NewString()

	body := map[string]any{"records": []any{
		attendanceEntry(student, courseID, "2024-03-04", "present"),
		attendanceEntry(student, courseID, "2024-03-05", "PRESENT"),
		attendanceEntry(student, courseID, "2024-03-06", "PRESENT"),
		attendanceEntry(student, courseID, "2024-03-07", "ABSENT"),
	}}
	status, env := do(t, s, fiber.MethodPost, "/api/v1/attendance/batch", body)
	require.Equal(t, fiber.StatusCreated, status)
	assert.True(t, env.Success)
	assert.NotEmpty(t, env.RequestID)

	batch := decodeData[batchResponse[query.AttendanceDTO]](t, env)
	assert.NotEmpty(t, batch.BatchID)
	assert.Equal(t, 4, batch.Submitted)
	assert.Equal(t, 4, batch.Stored)

	n, _, _ := store.Counts()
	assert.Equal(t, 4, n)

	status, env = do(t, s, fiber.MethodGet, "/api/v1/students/"+student+"/courses/"+courseID+"/attendance/percentage", nil)
	require.Equal(t, fiber.StatusOK, status)
	pct := decodeData[query.AttendancePercentageDTO](t, env)
	assert.InDelta(t, 75.0, pct.Percentage, 0.001)
	assert.Equal(t, 4, pct.Total)

	status, env = do(t, s, fiber.MethodGet, "/api/v1/students/"+student+"/courses/"+courseID+"/attendance?from=2024-03-05&to=2024-03-06", nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Len(t, decodeData[[]query.AttendanceDTO](t, env), 2)

	status, env = do(t, s, fiber.MethodGet, "/api/v1/attendance/roster?course_id="+courseID+"&date=2024-03-07", nil)
	require.Equal(t, fiber.StatusOK, status)
	roster := decodeData[[]query.AttendanceDTO](t, env)
	require.Len(t, roster, 1)
	assert.Equal(t, "ABSENT", roster[0].Status)
}

func TestAttendanceBatch_InvalidRecordIs422AndWritesNothing(t *testing.T) {
	s, store := newTestServer(t)
	student, courseID := uuid.NewString(), uuid.NewString()

	body := map[string]any{"records": []any{
		attendanceEntry(student, courseID, "2024-03-04", "PRESENT"),
		attendanceEntry(student, courseID, "2024-03-05", "PRESENT"),
		attendanceEntry(student, courseID, "2024-03-06", "PRESENT"),
		attendanceEntry(student, courseID, "2024-03-07", "SLEEPING"),
		attendanceEntry(student, courseID, "2024-03-08", "PRESENT"),
	}}
	status, env := do(t, s, fiber.MethodPost, "/api/v1/attendance/batch", body)
	assert.Equal(t, fiber.StatusUnprocessableEntity, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, CodeValidation, env.Error.Code)
	assert.Contains(t, env.Error.Message, "record 3")

	n, _, _ := store.Counts()
	assert.Equal(t, 0, n)
}

func TestAttendanceBatch_StoreFailureIs503(t *testing.T) {
	s, store := newTestServer(t)
	store.InjectFault(func(_, _ string) error { return errors.New("connection reset") })

	body := map[string]any{"records": []any{
		attendanceEntry(uuid.NewString(), uuid.NewString(), "2024-03-04", "PRESENT"),
	}}
	status, env := do(t, s, fiber.MethodPost, "/api/v1/attendance/batch", body)
	assert.Equal(t, fiber.StatusServiceUnavailable, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, CodeUnavailable, env.Error.Code)
	assert.NotContains(t, env.Error.Message, "connection reset")
}

func TestRecordAttendance_Single(t *testing.T) {
	s, _ := newTestServer(t)
	student, courseID := uuid.NewString(), uuid.NewString()

	status, env := do(t, s, fiber.MethodPut, "/api/v1/attendance", attendanceEntry(student, courseID, "2024-03-04", "LATE"))
	require.Equal(t, fiber.StatusOK, status)
	first := decodeData[query.AttendanceDTO](t, env)
	assert.Equal(t, "LATE", first.Status)

	status, env = do(t, s, fiber.MethodPut, "/api/v1/attendance", attendanceEntry(student, courseID, "2024-03-04", "PRESENT"))
	require.Equal(t, fiber.StatusOK, status)
	second := decodeData[query.AttendanceDTO](t, env)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "PRESENT", second.Status)
}

func TestMalformedBodyIs400(t *testing.T) {
	s, _ := newTestServer(t)

	status, env := do(t, s, fiber.MethodPost, "/api/v1/attendance/batch", `{"records": [`)
	assert.Equal(t, fiber.StatusBadRequest, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, CodeBadRequest, env.Error.Code)
}

func TestEmptyBatchIs422(t *testing.T) {
	s, _ := newTestServer(t)

	status, _ := do(t, s, fiber.MethodPost, "/api/v1/transactions/batch", map[string]any{"records": []any{}})
	assert.Equal(t, fiber.StatusUnprocessableEntity, status)
}

// ══════════════════════════════════════════════════════════════════════════════
// ASSESSMENTS
// ══════════════════════════════════════════════════════════════════════════════

func TestAssessmentsAndGPA(t *testing.T) {
	s, store := newTestServer(t)
	student := uuid.NewString()

	c, err := course.NewCourse(course.NewCourseParams{Code: "MATH101", Credits: 4, Term: "FALL", AcademicYear: "2023-2024"})
	require.NoError(t, err)
	_, err = store.Courses().Upsert(context.Background(), c)
	require.NoError(t, err)

	entry := map[string]any{
		"student_id":      student,
		"course_id":       c.ID.String(),
		"assessment_type": "EXAM",
		"assessment_name": "Final",
		"marks_obtained":  "80",
		"marks_possible":  "100",
		"term":            "FALL",
		"academic_year":   "2023-2024",
	}
	status, env := do(t, s, fiber.MethodPost, "/api/v1/assessments/batch", map[string]any{"records": []any{entry}})
	require.Equal(t, fiber.StatusCreated, status)
	batch := decodeData[batchResponse[query.AssessmentDTO]](t, env)
	require.Len(t, batch.Records, 1)
	assert.Equal(t, "A", batch.Records[0].LetterGrade)

	status, env = do(t, s, fiber.MethodGet, "/api/v1/students/"+student+"/gpa?term=FALL&year=2023-2024", nil)
	require.Equal(t, fiber.StatusOK, status)
	gpa := decodeData[query.GPADTO](t, env)
	assert.True(t, gpa.GPA.Equal(decimal.NewFromInt(80)), gpa.GPA.String())
	assert.Equal(t, 4, gpa.TotalCredits)

	entry["marks_obtained"] = "45"
	status, env = do(t, s, fiber.MethodPatch, "/api/v1/assessments/marks", entry)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "C", decodeData[query.AssessmentDTO](t, env).LetterGrade)

	status, env = do(t, s, fiber.MethodGet, "/api/v1/students/"+student+"/assessments?course_id="+c.ID.String(), nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Len(t, decodeData[[]query.AssessmentDTO](t, env), 1)

	entry["assessment_name"] = "Midterm"
	status, _ = do(t, s, fiber.MethodPatch, "/api/v1/assessments/marks", entry)
	assert.Equal(t, fiber.StatusNotFound, status)

	entry["marks_possible"] = "0"
	status, _ = do(t, s, fiber.MethodPost, "/api/v1/assessments/batch", map[string]any{"records": []any{entry}})
	assert.Equal(t, fiber.StatusUnprocessableEntity, status)
}

// ══════════════════════════════════════════════════════════════════════════════
// FINANCE
// ══════════════════════════════════════════════════════════════════════════════

func TestTransactionsBalanceAndStatus(t *testing.T) {
	s, _ := newTestServer(t)
	student := uuid.NewString()

	body := map[string]any{"records": []any{
		map[string]any{"student_id": student, "reference": "INV-1", "transaction_type": "FEE", "amount": "500", "due_date": "2024-09-01"},
		map[string]any{"student_id": student, "reference": "PAY-1", "transaction_type": "PAYMENT", "amount": "200", "payment_status": "PAID"},
	}}
	status, _ := do(t, s, fiber.MethodPost, "/api/v1/transactions/batch", body)
	require.Equal(t, fiber.StatusCreated, status)

	status, env := do(t, s, fiber.MethodGet, "/api/v1/students/"+student+"/balance", nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Contains(t, string(env.Data), `"balance":"300"`)

	status, env = do(t, s, fiber.MethodGet, "/api/v1/students/"+student+"/transactions/pending", nil)
	require.Equal(t, fiber.StatusOK, status)
	pending := decodeData[[]query.TransactionDTO](t, env)
	require.Len(t, pending, 1)
	assert.Equal(t, "INV-1", pending[0].Reference)

	path := "/api/v1/students/" + student + "/transactions/INV-1/status"
	status, env = do(t, s, fiber.MethodPatch, path, map[string]any{"payment_status": "PAID", "payment_method": "card"})
	require.Equal(t, fiber.StatusOK, status)
	paid := decodeData[query.TransactionDTO](t, env)
	assert.Equal(t, "PAID", paid.Status)
	assert.NotEmpty(t, paid.PaymentDate)

	status, env = do(t, s, fiber.MethodPatch, path, map[string]any{"payment_status": "PENDING"})
	assert.Equal(t, fiber.StatusConflict, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, CodeConflict, env.Error.Code)

	status, _ = do(t, s, fiber.MethodPatch, "/api/v1/students/"+student+"/transactions/NOPE/status", map[string]any{"payment_status": "PAID"})
	assert.Equal(t, fiber.StatusNotFound, status)

	status, env = do(t, s, fiber.MethodGet, "/api/v1/students/"+student+"/balance", nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Contains(t, string(env.Data), `"balance":"300"`)
}

func TestBadStudentIDIs422(t *testing.T) {
	s, _ := newTestServer(t)

	status, env := do(t, s, fiber.MethodGet, "/api/v1/students/not-a-uuid/balance", nil)
	assert.Equal(t, fiber.StatusUnprocessableEntity, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, CodeValidation, env.Error.Code)
}

func TestUnknownRouteIs404(t *testing.T) {
	s, _ := newTestServer(t)

	status, env := do(t, s, fiber.MethodGet, "/api/v1/nowhere", nil)
	assert.Equal(t, fiber.StatusNotFound, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, CodeRouteNotFound, env.Error.Code)
}

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH
// ══════════════════════════════════════════════════════════════════════════════

func TestHealth(t *testing.T) {
	s, store := newTestServer(t)

	checker := NewCompositeHealthChecker("test")
	checker.AddCheck("store", true, PingCheck(store))
	checker.AddCheck("cache", false, func(context.Context) error { return errors.New("redis down") })
	s.deps.HealthChecker = checker

	req := httptest.NewRequest(fiber.MethodGet, "/healthz", nil)
	resp, err := s.App().Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var health HealthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.Equal(t, HealthStatusDegraded, health.Status)
	require.Len(t, health.Checks, 2)
	assert.Equal(t, "cache", health.Checks[0].Name)
	assert.False(t, health.Checks[0].Healthy)
}

func TestCompositeHealthChecker_CriticalFailure(t *testing.T) {
	checker := NewCompositeHealthChecker("test")
	checker.AddCheck("store", true, func(context.Context) error { return errors.New("down") })

	assert.Equal(t, HealthStatusUnhealthy, checker.Check(context.Background()).Status)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{fiber.ErrNotFound, fiber.StatusNotFound},
		{badRequest("x"), fiber.StatusBadRequest},
		{errors.New("boom"), fiber.StatusInternalServerError},
	}
	for _, tt := range tests {
		got, _ := statusFor(tt.err)
		assert.Equal(t, tt.status, got, tt.err.Error())
	}
}
