package grade

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestWeightedAverage(t *testing.T) {
	scores := []WeightedScore{
		{CourseID: uuid.New(), Percentage: decimal.NewFromInt(85), Credits: 4},
		{CourseID: uuid.New(), Percentage: decimal.NewFromInt(70), Credits: 2},
	}

	gpa := WeightedAverage(scores)

	assert.True(t, gpa.HasData)
	assert.Equal(t, "80.00", gpa.Value.StringFixed(2))
	assert.Equal(t, 6, gpa.TotalCredits)
	assert.Equal(t, 2, gpa.Assessments)
}

func TestWeightedAverage_Empty(t *testing.T) {
	gpa := WeightedAverage(nil)

	assert.False(t, gpa.HasData)
	assert.True(t, gpa.Value.IsZero())
	assert.Equal(t, 0, gpa.TotalCredits)
}

func TestWeightedAverage_SkipsUncredited(t *testing.T) {
	gpa := WeightedAverage([]WeightedScore{
		{Percentage: decimal.NewFromInt(90), Credits: 3},
		{Percentage: decimal.NewFromInt(10), Credits: 0},
	})

	assert.Equal(t, "90.00", gpa.Value.StringFixed(2))
	assert.Equal(t, 1, gpa.Assessments)
}

func TestWeightedAverage_Rounding(t *testing.T) {
	gpa := WeightedAverage([]WeightedScore{
		{Percentage: decimal.NewFromInt(100), Credits: 1},
		{Percentage: decimal.NewFromInt(0), Credits: 2},
	})

	assert.Equal(t, "33.33", gpa.Value.StringFixed(2))
}
