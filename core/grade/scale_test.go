package grade

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestLetterFor(t *testing.T) {
	tests := []struct {
		total string
		want  Letter
	}{
		{total: "100", want: LetterA},
		{total: "80.00", want: LetterA},
		{total: "79.99", want: LetterAB},
		{total: "75.00", want: LetterAB},
		{total: "74.999", want: LetterB},
		{total: "70", want: LetterB},
		{total: "65", want: LetterBC},
		{total: "64.99", want: LetterC},
		{total: "60", want: LetterC},
		{total: "50", want: LetterD},
		{total: "49.99", want: LetterE},
		{total: "0.00", want: LetterE},
		{total: "-5", want: LetterE},
		{total: "150", want: LetterA},
	}
	for _, tt := range tests {
		t.Run(tt.total, func(t *testing.T) {
			assert.Equal(t, tt.want, LetterFor(decimal.RequireFromString(tt.total)))
		})
	}
}

func TestWeightedTotal(t *testing.T) {
	entry := func(weight, score string) ScoreEntry {
		return ScoreEntry{Weight: decimal.RequireFromString(weight), Score: decimal.RequireFromString(score)}
	}

	tests := []struct {
		name    string
		entries []ScoreEntry
		want    string
	}{
		{name: "empty", want: "0"},
		{
			name:    "UTS UAS Tugas",
			entries: []ScoreEntry{entry("30", "80"), entry("40", "90"), entry("30", "70")},
			want:    "81.00",
		},
		{
			name:    "fractional",
			entries: []ScoreEntry{entry("33.33", "100"), entry("66.67", "50")},
			want:    "66.665",
		},
		{
			name:    "weights above 100",
			entries: []ScoreEntry{entry("100", "90"), entry("50", "90")},
			want:    "135",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := WeightedTotal(tt.entries)
			assert.Truef(t, got.Equal(decimal.RequireFromString(tt.want)), "WeightedTotal() = %s, want %s", got, tt.want)
		})
	}
}

func TestChange_LetterChanged(t *testing.T) {
	a := FinalGrade{Letter: nullLetter(LetterA)}
	b := FinalGrade{Letter: nullLetter(LetterB)}

	assert.True(t, Change{Current: a}.LetterChanged())
	assert.True(t, Change{Previous: &b, Current: a}.LetterChanged())
	assert.False(t, Change{Previous: &a, Current: a}.LetterChanged())
}
