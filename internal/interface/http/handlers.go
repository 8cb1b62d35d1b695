package http

import (
	"net/url"

	"github.com/campus-records/records-core/internal/application/command"
	"github.com/campus-records/records-core/internal/application/query"

	"github.com/gofiber/fiber/v2"
)

// batchRequest is the body of every batch endpoint.
type batchRequest[T any] struct {
	Records []T `json:"records"`
}

// batchResponse reports a committed batch.
type batchResponse[T any] struct {
	BatchID   string `json:"batch_id"`
	Submitted int    `json:"submitted"`
	Stored    int    `json:"stored"`
	Records   []T    `json:"records"`
}

func parseBody(c *fiber.Ctx, dest any) error {
	if err := c.BodyParser(dest); err != nil {
		return badRequest("malformed request body: " + err.Error())
	}
	return nil
}

// pathParam returns a decoded route parameter.
func pathParam(c *fiber.Ctx, name string) string {
	v := c.Params(name)
	if decoded, err := url.PathUnescape(v); err == nil {
		return decoded
	}
	return v
}

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleHealth runs every registered check.
func (s *Server) handleHealth(c *fiber.Ctx) error {
	if s.deps.HealthChecker == nil {
		return writeJSON(c, fiber.StatusOK, HealthResponse{Status: HealthStatusHealthy})
	}

	resp := s.deps.HealthChecker.Check(c.UserContext())
	status := fiber.StatusOK
	if resp.Status == HealthStatusUnhealthy {
		status = fiber.StatusServiceUnavailable
	}
	return c.Status(status).JSON(resp)
}

// handleLive reports that the process is up.
func (s *Server) handleLive(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "alive"})
}

// ══════════════════════════════════════════════════════════════════════════════
// ATTENDANCE HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleRecordAttendance upserts one attendance record.
func (s *Server) handleRecordAttendance(c *fiber.Ctx) error {
	var in command.AttendanceInput
	if err := parseBody(c, &in); err != nil {
		return err
	}

	record, err := s.deps.RecordAttendance.Handle(c.UserContext(), in)
	if err != nil {
		return err
	}
	return writeJSON(c, fiber.StatusOK, query.NewAttendanceDTO(record))
}

// handleRecordAttendanceBatch stores a batch of attendance records.
func (s *Server) handleRecordAttendanceBatch(c *fiber.Ctx) error {
	var req batchRequest[command.AttendanceInput]
	if err := parseBody(c, &req); err != nil {
		return err
	}

	result, err := s.deps.RecordAttendanceBatch.Handle(c.UserContext(), req.Records)
	if err != nil {
		return err
	}

	out := make([]query.AttendanceDTO, 0, len(result.Records))
	for _, r := range result.Records {
		out = append(out, query.NewAttendanceDTO(r))
	}
	return writeJSONWithMeta(c, fiber.StatusCreated, batchResponse[query.AttendanceDTO]{
		BatchID:   result.BatchID,
		Submitted: result.Submitted,
		Stored:    len(out),
		Records:   out,
	}, &ResponseMeta{BatchID: result.BatchID, TotalCount: len(out)})
}

// handleRoster lists a course's attendance on one day.
func (s *Server) handleRoster(c *fiber.Ctx) error {
	records, err := s.deps.Roster.Handle(c.UserContext(), query.RosterQuery{
		CourseID: c.Query("course_id"),
		Date:     c.Query("date"),
	})
	if err != nil {
		return err
	}
	return writeJSONWithMeta(c, fiber.StatusOK, records, &ResponseMeta{TotalCount: len(records)})
}

// handleListAttendance lists a student's attendance in a course.
func (s *Server) handleListAttendance(c *fiber.Ctx) error {
	records, err := s.deps.ListAttendance.Handle(c.UserContext(), query.ListAttendanceQuery{
		StudentID: c.Params("student_id"),
		CourseID:  c.Params("course_id"),
		From:      c.Query("from"),
		To:        c.Query("to"),
	})
	if err != nil {
		return err
	}
	return writeJSONWithMeta(c, fiber.StatusOK, records, &ResponseMeta{TotalCount: len(records)})
}

// handleAttendancePercentage returns a student's attendance percentage.
func (s *Server) handleAttendancePercentage(c *fiber.Ctx) error {
	dto, err := s.deps.AttendancePercentage.Handle(c.UserContext(), query.AttendancePercentageQuery{
		StudentID: c.Params("student_id"),
		CourseID:  c.Params("course_id"),
	})
	if err != nil {
		return err
	}
	return writeJSON(c, fiber.StatusOK, dto)
}

// ══════════════════════════════════════════════════════════════════════════════
// ASSESSMENT HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleRecordAssessmentBatch stores a batch of assessments.
func (s *Server) handleRecordAssessmentBatch(c *fiber.Ctx) error {
	var req batchRequest[command.AssessmentInput]
	if err := parseBody(c, &req); err != nil {
		return err
	}

	result, err := s.deps.RecordAssessmentBatch.Handle(c.UserContext(), req.Records)
	if err != nil {
		return err
	}

	out := make([]query.AssessmentDTO, 0, len(result.Records))
	for _, a := range result.Records {
		out = append(out, query.NewAssessmentDTO(a))
	}
	return writeJSONWithMeta(c, fiber.StatusCreated, batchResponse[query.AssessmentDTO]{
		BatchID:   result.BatchID,
		Submitted: result.Submitted,
		Stored:    len(out),
		Records:   out,
	}, &ResponseMeta{BatchID: result.BatchID, TotalCount: len(out)})
}

// handleCorrectMarks replaces the marks of a stored assessment.
func (s *Server) handleCorrectMarks(c *fiber.Ctx) error {
	var in command.AssessmentInput
	if err := parseBody(c, &in); err != nil {
		return err
	}

	a, err := s.deps.CorrectMarks.Handle(c.UserContext(), in)
	if err != nil {
		return err
	}
	return writeJSON(c, fiber.StatusOK, query.NewAssessmentDTO(a))
}

// handleListAssessments lists a student's assessments.
func (s *Server) handleListAssessments(c *fiber.Ctx) error {
	records, err := s.deps.ListAssessments.Handle(c.UserContext(), query.ListAssessmentsQuery{
		StudentID:    c.Params("student_id"),
		CourseID:     c.Query("course_id"),
		Term:         c.Query("term"),
		AcademicYear: c.Query("year"),
	})
	if err != nil {
		return err
	}
	return writeJSONWithMeta(c, fiber.StatusOK, records, &ResponseMeta{TotalCount: len(records)})
}

// handleGPA returns a student's weighted GPA for one term.
func (s *Server) handleGPA(c *fiber.Ctx) error {
	dto, err := s.deps.GPA.Handle(c.UserContext(), query.GPAQuery{
		StudentID:    c.Params("student_id"),
		Term:         c.Query("term"),
		AcademicYear: c.Query("year"),
	})
	if err != nil {
		return err
	}
	return writeJSON(c, fiber.StatusOK, dto)
}

// ══════════════════════════════════════════════════════════════════════════════
// FINANCE HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleRecordTransactionBatch stores a batch of financial transactions.
func (s *Server) handleRecordTransactionBatch(c *fiber.Ctx) error {
	var req batchRequest[command.TransactionInput]
	if err := parseBody(c, &req); err != nil {
		return err
	}

	result, err := s.deps.RecordTransactionBatch.Handle(c.UserContext(), req.Records)
	if err != nil {
		return err
	}

	out := make([]query.TransactionDTO, 0, len(result.Records))
	for _, t := range result.Records {
		out = append(out, query.NewTransactionDTO(t))
	}
	return writeJSONWithMeta(c, fiber.StatusCreated, batchResponse[query.TransactionDTO]{
		BatchID:   result.BatchID,
		Submitted: result.Submitted,
		Stored:    len(out),
		Records:   out,
	}, &ResponseMeta{BatchID: result.BatchID, TotalCount: len(out)})
}

// handleUpdatePaymentStatus moves a transaction to a new payment status.
// The route parameters override any student or reference in the body.
func (s *Server) handleUpdatePaymentStatus(c *fiber.Ctx) error {
	var in command.PaymentStatusInput
	if err := parseBody(c, &in); err != nil {
		return err
	}
	in.StudentID = c.Params("student_id")
	in.Reference = pathParam(c, "reference")

	t, err := s.deps.UpdatePaymentStatus.Handle(c.UserContext(), in)
	if err != nil {
		return err
	}
	return writeJSON(c, fiber.StatusOK, query.NewTransactionDTO(t))
}

// handlePendingTransactions lists a student's pending transactions.
func (s *Server) handlePendingTransactions(c *fiber.Ctx) error {
	records, err := s.deps.PendingTransactions.Handle(c.UserContext(), c.Params("student_id"))
	if err != nil {
		return err
	}
	return writeJSONWithMeta(c, fiber.StatusOK, records, &ResponseMeta{TotalCount: len(records)})
}

// handleBalance returns a student's account balance.
func (s *Server) handleBalance(c *fiber.Ctx) error {
	dto, err := s.deps.Balance.Handle(c.UserContext(), c.Params("student_id"))
	if err != nil {
		return err
	}
	return writeJSON(c, fiber.StatusOK, dto)
}
