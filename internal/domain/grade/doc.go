// Package grade models assessments and the rules that derive a percentage and
// a letter grade from raw marks.
//
// Percentage and letter are never stored independently of the marks: an
// Assessment only gets them through NewAssessment or CorrectMarks, both of
// which run Derive.
//
//	a, err := grade.NewAssessment(grade.NewAssessmentParams{
//	    StudentID:      studentID,
//	    CourseID:       courseID,
//	    AssessmentType: "EXAM",
//	    AssessmentName: "Midterm",
//	    MarksObtained:  &obtained,
//	    MarksPossible:  &possible,
//	    Term:           "FALL",
//	    AcademicYear:   "2023-2024",
//	})
//
// GPA is a credit-weighted fold over assessment percentages, see
// WeightedAverage.
package grade
