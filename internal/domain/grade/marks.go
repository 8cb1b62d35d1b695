package grade

import (
	"github.com/campus-records/records-core/internal/domain/shared"

	"github.com/shopspring/decimal"
)

// ══════════════════════════════════════════════════════════════════════════════
// LETTER GRADES
// ══════════════════════════════════════════════════════════════════════════════

// Letter is a letter grade derived from a percentage.
type Letter string

const (
	LetterAPlus Letter = "A+"
	LetterA     Letter = "A"
	LetterBPlus Letter = "B+"
	LetterB     Letter = "B"
	LetterCPlus Letter = "C+"
	LetterC     Letter = "C"
	LetterF     Letter = "F"
)

// String returns the string representation.
func (l Letter) String() string {
	return string(l)
}

type threshold struct {
	min    decimal.Decimal
	letter Letter
}

// Inclusive lower bounds, highest first.
var letterThresholds = []threshold{
	{decimal.NewFromInt(90), LetterAPlus},
	{decimal.NewFromInt(80), LetterA},
	{decimal.NewFromInt(70), LetterBPlus},
	{decimal.NewFromInt(60), LetterB},
	{decimal.NewFromInt(50), LetterCPlus},
	{decimal.NewFromInt(40), LetterC},
}

// LetterFor maps a percentage to its letter grade. The first threshold the
// percentage reaches wins, so a value exactly on a cutoff takes the higher band.
func LetterFor(percentage decimal.Decimal) Letter {
	for _, t := range letterThresholds {
		if percentage.GreaterThanOrEqual(t.min) {
			return t.letter
		}
	}
	return LetterF
}

// ══════════════════════════════════════════════════════════════════════════════
// MARKS VALUE OBJECT
// ══════════════════════════════════════════════════════════════════════════════

// PercentagePlaces is the number of decimal places kept on percentages.
const PercentagePlaces = 2

var hundred = decimal.NewFromInt(100)

// Derivation holds the values computed from a pair of marks.
type Derivation struct {
	Percentage decimal.Decimal
	Letter     Letter
}

// Derive computes percentage and letter from raw marks.
// Either mark being absent, or possible <= 0, is an ErrInvalidAssessment and
// yields a zero Derivation; callers must not store it.
func Derive(obtained, possible *decimal.Decimal) (Derivation, error) {
	if obtained == nil || possible == nil {
		return Derivation{}, shared.NewDomainError("grade", "Derive", shared.ErrInvalidAssessment, "marks obtained and marks possible are required")
	}
	if !possible.IsPositive() {
		return Derivation{}, shared.NewDomainError("grade", "Derive", shared.ErrInvalidAssessment, "marks possible must be greater than zero")
	}
	if obtained.IsNegative() {
		return Derivation{}, shared.NewDomainError("grade", "Derive", shared.ErrInvalidAssessment, "marks obtained cannot be negative")
	}

	// DivRound rounds half away from zero, which is half-up for
	// non-negative marks.
	pct := obtained.Mul(hundred).DivRound(*possible, PercentagePlaces)

	return Derivation{
		Percentage: pct,
		Letter:     LetterFor(pct),
	}, nil
}

// Marks is an immutable pair of marks together with its derivation.
// The only way to obtain a non-zero Marks is NewMarks, so percentage and
// letter always match the marks they were computed from.
type Marks struct {
	obtained   decimal.Decimal
	possible   decimal.Decimal
	derivation Derivation
}

// NewMarks validates the marks and derives percentage and letter.
func NewMarks(obtained, possible *decimal.Decimal) (Marks, error) {
	d, err := Derive(obtained, possible)
	if err != nil {
		return Marks{}, err
	}
	return Marks{
		obtained:   *obtained,
		possible:   *possible,
		derivation: d,
	}, nil
}

// MustMarks is NewMarks for literal values known to be valid.
func MustMarks(obtained, possible decimal.Decimal) Marks {
	m, err := NewMarks(&obtained, &possible)
	if err != nil {
		panic(err)
	}
	return m
}

// Obtained returns the marks obtained.
func (m Marks) Obtained() decimal.Decimal { return m.obtained }

// Possible returns the marks possible.
func (m Marks) Possible() decimal.Decimal { return m.possible }

// Percentage returns the derived percentage.
func (m Marks) Percentage() decimal.Decimal { return m.derivation.Percentage }

// Letter returns the derived letter grade.
func (m Marks) Letter() Letter { return m.derivation.Letter }

// IsZero reports whether the marks were never derived.
func (m Marks) IsZero() bool {
	return m.derivation.Letter == ""
}

// Equal compares marks by value.
func (m Marks) Equal(other Marks) bool {
	return m.obtained.Equal(other.obtained) && m.possible.Equal(other.possible)
}
