package grade

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// WeightedScore is one assessment percentage paired with the credit weight of
// its course.
type WeightedScore struct {
	CourseID   uuid.UUID
	Percentage decimal.Decimal
	Credits    int
}

// GPA is a credit-weighted average of assessment percentages.
type GPA struct {
	Value        decimal.Decimal
	TotalCredits int
	Assessments  int
	// HasData is false when nothing contributed; Value is then zero.
	HasData bool
}

// WeightedAverage computes Σ(percentage×credits)/Σ(credits) rounded to
// PercentagePlaces. Every assessment row carries its course's credits, so a
// course with several assessments weighs in once per assessment.
// Scores with non-positive credits are skipped.
func WeightedAverage(scores []WeightedScore) GPA {
	sum := decimal.Zero
	credits := 0
	n := 0

	for _, s := range scores {
		if s.Credits <= 0 {
			continue
		}
		sum = sum.Add(s.Percentage.Mul(decimal.NewFromInt(int64(s.Credits))))
		credits += s.Credits
		n++
	}

	if credits == 0 {
		return GPA{Value: decimal.Zero}
	}

	return GPA{
		Value:        sum.DivRound(decimal.NewFromInt(int64(credits)), PercentagePlaces),
		TotalCredits: credits,
		Assessments:  n,
		HasData:      true,
	}
}
