package score

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWeightsSumToOne(t *testing.T) {
	t.Parallel()

	var sum float64
	for _, w := range Weights {
		sum += w
	}
	require.InDelta(t, 1.0, sum, 1e-9)
}

func TestAggregateRenormalizesOverMeasuredWeight(t *testing.T) {
	t.Parallel()

	scores := Set{
		Technical: Value(80),
		Content:   nil,
		OnPage:    Value(60),
	}
	composite, notMeasured := Aggregate(scores)

	// (80*0.25 + 60*0.20) / 0.45
	require.InDelta(t, 71.1, composite, 0.01)
	require.Contains(t, notMeasured, Content)
	require.Contains(t, notMeasured, Schema)
	require.NotContains(t, notMeasured, Technical)
	require.NotContains(t, notMeasured, OnPage)
}

func TestAggregateAbsentEqualsNil(t *testing.T) {
	t.Parallel()

	withNil := Set{Technical: Value(50), Content: nil}
	absent := Set{Technical: Value(50)}

	c1, nm1 := Aggregate(withNil)
	c2, nm2 := Aggregate(absent)
	require.Equal(t, c1, c2)
	require.Equal(t, nm1, nm2)
}

func TestAggregateAllNilFailsSafeToZero(t *testing.T) {
	t.Parallel()

	composite, notMeasured := Aggregate(Set{})
	require.Zero(t, composite)
	require.Len(t, notMeasured, len(Weights))
}

func TestAggregateAllMeasured(t *testing.T) {
	t.Parallel()

	scores := Set{}
	for cat := range Weights {
		scores[cat] = Value(100)
	}
	composite, notMeasured := Aggregate(scores)
	require.Equal(t, 100.0, composite)
	require.Empty(t, notMeasured)
}

func TestBandAndGrade(t *testing.T) {
	t.Parallel()

	cases := []struct {
		score float64
		band  string
		grade string
	}{
		{95, "Excellent", "A"},
		{90, "Excellent", "A"},
		{85, "Strong", "B"},
		{72.4, "Good", "C"},
		{60, "Needs Improvement", "D"},
		{59.9, "At Risk", "F"},
		{0, "At Risk", "F"},
	}
	for _, tc := range cases {
		require.Equal(t, tc.band, Band(tc.score), "score=%v", tc.score)
		require.Equal(t, tc.grade, Grade(tc.score), "score=%v", tc.score)
	}
}

func TestClamp(t *testing.T) {
	t.Parallel()

	require.Equal(t, 0.0, Clamp(-4, 0, 100))
	require.Equal(t, 100.0, Clamp(130, 0, 100))
	require.Equal(t, 42.0, Clamp(42, 0, 100))
}
