// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages.
package shared

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// ═══════════════════════════════════════════════════════════════════════════
// ID Value Objects
// ═══════════════════════════════════════════════════════════════════════════

// ParseID parses a record, student, course or user reference.
// The nil UUID is rejected: every reference in a record is required.
func ParseID(field, value string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(value))
	if err != nil {
		return uuid.Nil, WrapError("shared", "ParseID", ErrInvalidID, field+" is not a valid UUID", err)
	}
	if id == uuid.Nil {
		return uuid.Nil, NewDomainError("shared", "ParseID", ErrInvalidID, field+" is required")
	}
	return id, nil
}

// NewRecordID returns a fresh identifier for a stored record.
func NewRecordID() uuid.UUID {
	return uuid.New()
}

// ═══════════════════════════════════════════════════════════════════════════
// Term Value Object
// ═══════════════════════════════════════════════════════════════════════════

// Term is an academic term label such as FALL or SPRING.
type Term string

// String returns the string representation.
func (t Term) String() string {
	return string(t)
}

// IsValid checks the term is a non-empty label.
func (t Term) IsValid() bool {
	return strings.TrimSpace(string(t)) != ""
}

// NewTerm normalizes a term label (trimmed, upper case).
func NewTerm(value string) (Term, error) {
	t := Term(strings.ToUpper(strings.TrimSpace(value)))
	if !t.IsValid() {
		return "", NewDomainError("shared", "NewTerm", ErrEmptyValue, "term is required")
	}
	return t, nil
}

// ═══════════════════════════════════════════════════════════════════════════
// Academic Year Value Object
// ═══════════════════════════════════════════════════════════════════════════

// AcademicYear is a two-year span label such as "2023-2024".
type AcademicYear string

var academicYearRegex = regexp.MustCompile(`^(\d{4})-(\d{4})$`)

// String returns the string representation.
func (y AcademicYear) String() string {
	return string(y)
}

// IsValid checks the format and that the second year follows the first.
func (y AcademicYear) IsValid() bool {
	m := academicYearRegex.FindStringSubmatch(string(y))
	if m == nil {
		return false
	}
	start, _ := strconv.Atoi(m[1])
	end, _ := strconv.Atoi(m[2])
	return end == start+1
}

// StartYear returns the first calendar year of the span.
func (y AcademicYear) StartYear() int {
	m := academicYearRegex.FindStringSubmatch(string(y))
	if m == nil {
		return 0
	}
	start, _ := strconv.Atoi(m[1])
	return start
}

// NewAcademicYear creates an AcademicYear with validation.
func NewAcademicYear(value string) (AcademicYear, error) {
	y := AcademicYear(strings.TrimSpace(value))
	if !y.IsValid() {
		return "", NewDomainError("shared", "NewAcademicYear", ErrInvalidFormat, "academic year must look like 2023-2024")
	}
	return y, nil
}
