package location

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCategoryValid(t *testing.T) {
	for _, c := range Categories {
		assert.True(t, c.Valid(), string(c))
	}
	assert.False(t, Category("parking").Valid())
}

func TestCompetitorDistanceMeters(t *testing.T) {
	cases := []struct {
		in     string
		want   float64
		wantOK bool
	}{
		{"300m", 300, true},
		{"1.2km", 1200, true},
		{" 450 m ", 450, true},
		{"2,5km", 2500, true},
		{"850", 850, true},
		{"unknown", 0, false},
		{"", 0, false},
	}
	for _, tc := range cases {
		got, ok := Competitor{Distance: tc.in}.DistanceMeters()
		assert.Equal(t, tc.wantOK, ok, tc.in)
		if tc.wantOK {
			assert.InDelta(t, tc.want, got, 0.001, tc.in)
		}
	}
}

func TestClassForScore(t *testing.T) {
	assert.Equal(t, ScoreHigh, ClassForScore(92.5))
	assert.Equal(t, ScoreHigh, ClassForScore(80))
	assert.Equal(t, ScoreMedium, ClassForScore(79.9))
	assert.Equal(t, ScoreMedium, ClassForScore(60))
	assert.Equal(t, ScoreLow, ClassForScore(59.9))
}

func TestRank_DescendingWithStableTies(t *testing.T) {
	input := []AnalysisResult{
		{LocationID: "a", TotalScore: 70},
		{LocationID: "b", TotalScore: 85},
		{LocationID: "c", TotalScore: 70},
		{LocationID: "d", TotalScore: 91},
	}

	ranked := Rank(input)

	require.Len(t, ranked, 4)
	assert.Equal(t, "d", ranked[0].LocationID)
	assert.Equal(t, "b", ranked[1].LocationID)
	// Tied scores keep submission order: a before c.
	assert.Equal(t, "a", ranked[2].LocationID)
	assert.Equal(t, "c", ranked[3].LocationID)

	for i, r := range ranked {
		assert.Equal(t, i+1, r.Rank)
	}

	// Input slice untouched.
	assert.Zero(t, input[0].Rank)
	assert.Equal(t, "a", input[0].LocationID)
}

func TestBest(t *testing.T) {
	_, ok := Best(nil)
	assert.False(t, ok)

	best, ok := Best([]AnalysisResult{
		{LocationID: "a", TotalScore: 55},
		{LocationID: "b", TotalScore: 88},
		{LocationID: "c", TotalScore: 61},
	})
	require.True(t, ok)
	assert.Equal(t, "b", best.LocationID)
}
