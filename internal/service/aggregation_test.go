package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAggregateGroupsInFirstAppearanceOrder(t *testing.T) {
	res := Aggregate([]ScoreItem{
		{Section: "coding", Score: 2, MaxScore: 4},
		{Section: "mcq", Score: 1, MaxScore: 1},
		{Section: "coding", Score: 4, MaxScore: 4},
	}, 70)

	require.Len(t, res.Sections, 2)
	assert.Equal(t, "coding", res.Sections[0].Section)
	assert.Equal(t, 6.0, res.Sections[0].Score)
	assert.Equal(t, 8.0, res.Sections[0].MaxScore)
	assert.Equal(t, 75.0, res.Sections[0].Percentage)
	assert.Equal(t, 2, res.Sections[0].Count)
	assert.Equal(t, "mcq", res.Sections[1].Section)

	assert.Equal(t, 7.0, res.Total)
	assert.Equal(t, 9.0, res.MaxTotal)
	assert.InDelta(t, 77.78, res.Percentage, 0.01)
	assert.True(t, res.Passed)
}

func TestAggregateEmptyInput(t *testing.T) {
	res := Aggregate(nil, 60)
	assert.Empty(t, res.Sections)
	assert.Zero(t, res.Percentage)
	assert.False(t, res.Passed)
}

func TestAggregateZeroMaxSection(t *testing.T) {
	res := Aggregate([]ScoreItem{{Section: "x", Score: 0, MaxScore: 0}}, 0)
	require.Len(t, res.Sections, 1)
	assert.Zero(t, res.Sections[0].Percentage)
	assert.True(t, res.Passed, "a zero threshold always passes")
}

func TestAggregatePassThresholdIsInclusive(t *testing.T) {
	res := Aggregate([]ScoreItem{{Section: "a", Score: 6, MaxScore: 10}}, 60)
	assert.True(t, res.Passed)
	res = Aggregate([]ScoreItem{{Section: "a", Score: 5.9, MaxScore: 10}}, 60)
	assert.False(t, res.Passed)
}

func TestAggregateSectionsPassIndependently(t *testing.T) {
	res := Aggregate([]ScoreItem{
		{Section: "coding", Score: 8, MaxScore: 10},
		{Section: "mcq", Score: 4, MaxScore: 10},
		{Section: "rubric", Score: 6, MaxScore: 10},
	}, 60)

	require.Len(t, res.Sections, 3)
	assert.True(t, res.Sections[0].Passed)
	assert.False(t, res.Sections[1].Passed)
	assert.True(t, res.Sections[2].Passed, "threshold is inclusive")
	assert.True(t, res.Passed)
}
