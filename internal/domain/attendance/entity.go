// Package attendance models per-day attendance records and the attendance
// percentage derived from them.
package attendance

import (
	"strings"
	"time"

	"github.com/campus-records/records-core/internal/domain/shared"
	"github.com/campus-records/records-core/pkg/timeutil"

	"github.com/google/uuid"
)

// ══════════════════════════════════════════════════════════════════════════════
// STATUS
// ══════════════════════════════════════════════════════════════════════════════

// Status is the attendance outcome for one day.
type Status string

const (
	StatusPresent Status = "PRESENT"
	StatusAbsent  Status = "ABSENT"
	StatusLate    Status = "LATE"
	StatusExcused Status = "EXCUSED"
)

// Statuses lists every valid status in display order.
var Statuses = []Status{StatusPresent, StatusAbsent, StatusLate, StatusExcused}

// String returns the string representation.
func (s Status) String() string {
	return string(s)
}

// IsValid checks if the status is one of the known values.
func (s Status) IsValid() bool {
	switch s {
	case StatusPresent, StatusAbsent, StatusLate, StatusExcused:
		return true
	}
	return false
}

// ParseStatus parses a case-insensitive status name.
func ParseStatus(value string) (Status, error) {
	s := Status(strings.ToUpper(strings.TrimSpace(value)))
	if !s.IsValid() {
		return "", shared.NewDomainError("attendance", "ParseStatus", shared.ErrValueOutOfRange,
			"status must be one of PRESENT, ABSENT, LATE, EXCUSED")
	}
	return s, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// RECORD
// ══════════════════════════════════════════════════════════════════════════════

// NaturalKey identifies the attendance of a student in a course on a day.
type NaturalKey struct {
	StudentID uuid.UUID
	CourseID  uuid.UUID
	Date      time.Time
}

// String returns a compact representation for logs and error messages.
func (k NaturalKey) String() string {
	return k.StudentID.String() + "/" + k.CourseID.String() + "/" + timeutil.FormatDay(k.Date)
}

// Record is one attendance entry.
type Record struct {
	ID         uuid.UUID
	StudentID  uuid.UUID
	CourseID   uuid.UUID
	Date       time.Time
	Status     Status
	Remarks    string
	RecordedBy uuid.NullUUID
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// NewRecordParams contains the caller-supplied fields of a record.
type NewRecordParams struct {
	ID         uuid.UUID
	StudentID  uuid.UUID
	CourseID   uuid.UUID
	Date       time.Time
	Status     Status
	Remarks    string
	RecordedBy uuid.NullUUID
}

// NewRecord validates the params. The date is reduced to its calendar day.
func NewRecord(p NewRecordParams) (*Record, error) {
	if p.StudentID == uuid.Nil {
		return nil, shared.NewDomainError("attendance", "NewRecord", shared.ErrInvalidID, "student reference is required")
	}
	if p.CourseID == uuid.Nil {
		return nil, shared.NewDomainError("attendance", "NewRecord", shared.ErrInvalidID, "course reference is required")
	}
	if p.Date.IsZero() {
		return nil, shared.NewDomainError("attendance", "NewRecord", shared.ErrEmptyValue, "date is required")
	}
	if !p.Status.IsValid() {
		return nil, shared.NewDomainError("attendance", "NewRecord", shared.ErrValueOutOfRange, "unknown status "+p.Status.String())
	}

	id := p.ID
	if id == uuid.Nil {
		id = shared.NewRecordID()
	}
	now := time.Now().UTC()

	return &Record{
		ID:         id,
		StudentID:  p.StudentID,
		CourseID:   p.CourseID,
		Date:       timeutil.CalendarDay(p.Date),
		Status:     p.Status,
		Remarks:    strings.TrimSpace(p.Remarks),
		RecordedBy: p.RecordedBy,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// Key returns the natural key of the record.
func (r *Record) Key() NaturalKey {
	return NaturalKey{StudentID: r.StudentID, CourseID: r.CourseID, Date: r.Date}
}

// Clone returns a copy of the record.
func (r *Record) Clone() *Record {
	c := *r
	return &c
}
