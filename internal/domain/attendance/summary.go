package attendance

// Summary counts records by status for one student in one course.
type Summary struct {
	Total   int
	Present int
	Absent  int
	Late    int
	Excused int
}

// Percentage returns Present*100/Total, or 0 when there are no records.
// Only PRESENT counts as attended.
func (s Summary) Percentage() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Present) * 100 / float64(s.Total)
}

// HasData reports whether any record contributed.
func (s Summary) HasData() bool {
	return s.Total > 0
}

// Summarize folds records into a Summary.
func Summarize(records []*Record) Summary {
	var s Summary
	for _, r := range records {
		s.Total++
		switch r.Status {
		case StatusPresent:
			s.Present++
		case StatusAbsent:
			s.Absent++
		case StatusLate:
			s.Late++
		case StatusExcused:
			s.Excused++
		}
	}
	return s
}
