package models

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestQuerySpaceSize(t *testing.T) {
	require := require.New(t)

	// Per publisher: 6 single segments x 2 devices x 2 ad types, plus
	// the 4 unknown-user combinations.
	queries := QuerySpace([]string{"yahoo"})
	require.Len(queries, 28)

	queries = QuerySpace([]string{"yahoo", "cnn", "weather"})
	require.Len(queries, 84)

	empties := 0
	for _, q := range queries {
		if q.Segments.Empty() {
			empties++
		}
	}
	require.Equal(12, empties)
}

func TestCampaignQueriesCarryTargetSet(t *testing.T) {
	require := require.New(t)

	target := NewSegmentSet(SegmentFemale, SegmentHighIncome)
	queries := CampaignQueries([]string{"yahoo", "cnn"}, target)
	require.Len(queries, 8)

	for _, q := range queries {
		require.True(q.Segments.Contains(SegmentFemale))
		require.True(q.Segments.Contains(SegmentHighIncome))
		require.False(q.Segments.Contains(SegmentMale))
	}

	// The sets are clones; mutating one query's set must not leak.
	queries[0].Segments[SegmentMale] = true
	require.False(queries[1].Segments.Contains(SegmentMale))
	require.False(target.Contains(SegmentMale))
}

func TestSegmentAxes(t *testing.T) {
	require := require.New(t)

	gender, age, income := NewSegmentSet(SegmentMale, SegmentOld).Axes()
	require.Equal(SegmentMale, gender)
	require.Equal(SegmentOld, age)
	require.Equal(MarketSegment(""), income)

	gender, age, income = NewSegmentSet().Axes()
	require.Empty(string(gender))
	require.Empty(string(age))
	require.Empty(string(income))
}

func TestSegmentSetKeyRoundTrip(t *testing.T) {
	require := require.New(t)

	s := NewSegmentSet(SegmentFemale, SegmentYoung, SegmentLowIncome)
	require.Equal("FEMALE-YOUNG-LOW_INCOME", s.Key())
	require.Equal(s, ParseSegmentSet(s.Key()))

	require.Empty(ParseSegmentSet("").Key())
	require.Empty(ParseSegmentSet("GIBBERISH").Key())
}

func TestRawAttributeSegments(t *testing.T) {
	require := require.New(t)

	require.Equal(SegmentMale, GenderMale.Segment())
	require.Equal(SegmentFemale, GenderFemale.Segment())

	require.Equal(SegmentHighIncome, IncomeHigh.Segment())
	require.Equal(SegmentHighIncome, IncomeVeryHigh.Segment())
	require.Equal(SegmentLowIncome, IncomeMedium.Segment())
	require.Equal(SegmentLowIncome, IncomeLow.Segment())

	require.Equal(SegmentYoung, Age18To24.Segment())
	require.Equal(SegmentYoung, Age35To44.Segment())
	require.Equal(SegmentOld, Age45To54.Segment())
	require.Equal(SegmentOld, Age65Plus.Segment())
}
