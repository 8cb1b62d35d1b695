package attendance

import (
	"context"
	"time"

	"github.com/campus-records/records-core/pkg/timeutil"

	"github.com/google/uuid"
)

// Filter narrows an attendance listing. Zero fields match everything;
// From and To are inclusive calendar days.
type Filter struct {
	StudentID uuid.UUID
	CourseID  uuid.UUID
	From      time.Time
	To        time.Time
}

// Matches reports whether r satisfies the filter.
func (f Filter) Matches(r *Record) bool {
	if f.StudentID != uuid.Nil && r.StudentID != f.StudentID {
		return false
	}
	if f.CourseID != uuid.Nil && r.CourseID != f.CourseID {
		return false
	}
	return timeutil.InRange(r.Date, f.From, f.To)
}

// Repository is the attendance part of the record store.
type Repository interface {
	// Find returns the record with the given natural key or
	// shared.ErrAttendanceNotFound.
	Find(ctx context.Context, key NaturalKey) (*Record, error)

	// Upsert inserts the record or overwrites status, remarks and recorder
	// of the one stored under the same natural key.
	Upsert(ctx context.Context, r *Record) (*Record, error)

	// List returns matching records ordered by date, then student.
	List(ctx context.Context, filter Filter) ([]*Record, error)

	// ListByCourseDate returns the roster of a course for one day.
	ListByCourseDate(ctx context.Context, courseID uuid.UUID, date time.Time) ([]*Record, error)
}
