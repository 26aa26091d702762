package grade

import "github.com/shopspring/decimal"

// Letter is a letter grade.
type Letter string

// Letters
const (
	LetterA  Letter = "A"
	LetterAB Letter = "AB"
	LetterB  Letter = "B"
	LetterBC Letter = "BC"
	LetterC  Letter = "C"
	LetterD  Letter = "D"
	LetterE  Letter = "E"
)

// Threshold maps the lowest weighted total earning a letter.
type Threshold struct {
	Min    decimal.Decimal
	Letter Letter
}

// Scale is ordered from the highest threshold to the lowest.
var Scale = []Threshold{
	{Min: decimal.NewFromInt(80), Letter: LetterA},
	{Min: decimal.NewFromInt(75), Letter: LetterAB},
	{Min: decimal.NewFromInt(70), Letter: LetterB},
	{Min: decimal.NewFromInt(65), Letter: LetterBC},
	{Min: decimal.NewFromInt(60), Letter: LetterC},
	{Min: decimal.NewFromInt(50), Letter: LetterD},
	{Min: decimal.Zero, Letter: LetterE},
}

// LetterFor returns the letter of the highest threshold <= total. Totals below every threshold get an E.
func LetterFor(total decimal.Decimal) Letter {
	for _, th := range Scale {
		if total.GreaterThanOrEqual(th.Min) {
			return th.Letter
		}
	}
	return LetterE
}
