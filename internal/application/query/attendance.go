package query

import (
	"context"
	"strings"
	"time"

	"github.com/campus-records/records-core/internal/domain/attendance"
	"github.com/campus-records/records-core/internal/domain/shared"
	"github.com/campus-records/records-core/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// ATTENDANCE PERCENTAGE QUERY
// ══════════════════════════════════════════════════════════════════════════════

// AttendancePercentageQuery selects one student in one course.
type AttendancePercentageQuery struct {
	StudentID string
	CourseID  string
}

// AttendancePercentageDTO holds the attendance percentage and the counts it
// was computed from. HasData is false when no record exists; the percentage
// is then 0.
type AttendancePercentageDTO struct {
	StudentID  string  `json:"student_id"`
	CourseID   string  `json:"course_id"`
	Percentage float64 `json:"percentage"`
	Total      int     `json:"total"`
	Present    int     `json:"present"`
	Absent     int     `json:"absent"`
	Late       int     `json:"late"`
	Excused    int     `json:"excused"`
	HasData    bool    `json:"has_data"`
}

// AttendancePercentageHandler computes attendance percentages.
type AttendancePercentageHandler struct {
	repo  attendance.Repository
	cache AggregateCache
}

// NewAttendancePercentageHandler creates a new AttendancePercentageHandler.
// cache may be nil.
func NewAttendancePercentageHandler(repo attendance.Repository, cache AggregateCache) *AttendancePercentageHandler {
	return &AttendancePercentageHandler{repo: repo, cache: cache}
}

// Handle returns count(PRESENT)*100/count(*) over the student's records in
// the course.
func (h *AttendancePercentageHandler) Handle(ctx context.Context, q AttendancePercentageQuery) (*AttendancePercentageDTO, error) {
	studentID, err := shared.ParseID("student_id", q.StudentID)
	if err != nil {
		return nil, err
	}
	courseID, err := shared.ParseID("course_id", q.CourseID)
	if err != nil {
		return nil, err
	}

	dto, err := cached(ctx, h.cache, studentID.String(), "attendance:"+courseID.String(), func() (AttendancePercentageDTO, error) {
		records, err := h.repo.List(ctx, attendance.Filter{StudentID: studentID, CourseID: courseID})
		if err != nil {
			return AttendancePercentageDTO{}, shared.Persistence("attendance", "Percentage", "failed to load attendance", err)
		}
		s := attendance.Summarize(records)
		return AttendancePercentageDTO{
			StudentID:  studentID.String(),
			CourseID:   courseID.String(),
			Percentage: s.Percentage(),
			Total:      s.Total,
			Present:    s.Present,
			Absent:     s.Absent,
			Late:       s.Late,
			Excused:    s.Excused,
			HasData:    s.HasData(),
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return &dto, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// ATTENDANCE LIST QUERIES
// ══════════════════════════════════════════════════════════════════════════════

// ListAttendanceQuery selects a student's records in a course, optionally
// limited to an inclusive date range.
type ListAttendanceQuery struct {
	StudentID string
	CourseID  string
	From      string
	To        string
}

// ListAttendanceHandler lists attendance records.
type ListAttendanceHandler struct {
	repo attendance.Repository
}

// NewListAttendanceHandler creates a new ListAttendanceHandler.
func NewListAttendanceHandler(repo attendance.Repository) *ListAttendanceHandler {
	return &ListAttendanceHandler{repo: repo}
}

// Handle returns the records ordered by date.
func (h *ListAttendanceHandler) Handle(ctx context.Context, q ListAttendanceQuery) ([]AttendanceDTO, error) {
	studentID, err := shared.ParseID("student_id", q.StudentID)
	if err != nil {
		return nil, err
	}
	courseID, err := shared.ParseID("course_id", q.CourseID)
	if err != nil {
		return nil, err
	}
	from, err := optionalDay("from", q.From)
	if err != nil {
		return nil, err
	}
	to, err := optionalDay("to", q.To)
	if err != nil {
		return nil, err
	}
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		return nil, shared.Validationf("attendance", "List", "to must not be before from")
	}

	records, err := h.repo.List(ctx, attendance.Filter{StudentID: studentID, CourseID: courseID, From: from, To: to})
	if err != nil {
		return nil, shared.Persistence("attendance", "List", "failed to list attendance", err)
	}
	return attendanceDTOs(records), nil
}

// RosterQuery selects every record of a course on one day.
type RosterQuery struct {
	CourseID string
	Date     string
}

// RosterHandler lists the attendance of a course for one day.
type RosterHandler struct {
	repo attendance.Repository
}

// NewRosterHandler creates a new RosterHandler.
func NewRosterHandler(repo attendance.Repository) *RosterHandler {
	return &RosterHandler{repo: repo}
}

// Handle returns the day's records ordered by student.
func (h *RosterHandler) Handle(ctx context.Context, q RosterQuery) ([]AttendanceDTO, error) {
	courseID, err := shared.ParseID("course_id", q.CourseID)
	if err != nil {
		return nil, err
	}
	day, err := optionalDay("date", q.Date)
	if err != nil {
		return nil, err
	}
	if day.IsZero() {
		return nil, shared.NewDomainError("attendance", "Roster", shared.ErrEmptyValue, "date is required")
	}

	records, err := h.repo.ListByCourseDate(ctx, courseID, day)
	if err != nil {
		return nil, shared.Persistence("attendance", "Roster", "failed to load roster", err)
	}
	return attendanceDTOs(records), nil
}

func optionalDay(field, value string) (time.Time, error) {
	if strings.TrimSpace(value) == "" {
		return time.Time{}, nil
	}
	d, err := timeutil.ParseDate(value)
	if err != nil {
		return time.Time{}, shared.WrapError("query", "ParseDate", shared.ErrInvalidFormat, field+" must be YYYY-MM-DD", err)
	}
	return d, nil
}
