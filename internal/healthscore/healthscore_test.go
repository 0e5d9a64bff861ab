package healthscore

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCalculate_PerfectInputsGradeExcellent(t *testing.T) {
	score := Calculate(DefaultWeights(), Inputs{
		DurationSecs:         100,
		OptimalDurationSecs:  100,
		SuccessRate:          1.0,
		ParallelizationRatio: 1.0,
		HasCaching:           true,
	})
	require.InDelta(t, 100, score.TotalScore, 0.01)
	require.Equal(t, GradeExcellent, score.Grade)
	require.Contains(t, score.Recommendations[0], "well-optimized")
}

func TestCalculate_CriticalIssuesLowerScoreAndRecommend(t *testing.T) {
	score := Calculate(DefaultWeights(), Inputs{
		DurationSecs:         600,
		OptimalDurationSecs:  600,
		SuccessRate:          1.0,
		ParallelizationRatio: 1.0,
		HasCaching:           true,
		CriticalIssues:       2,
	})
	require.Less(t, score.IssueScore, 100.0)
	require.Contains(t, score.Recommendations[0], "2 critical issues")
}

func TestCalculate_IssueScoreFloorsAtZero(t *testing.T) {
	score := Calculate(DefaultWeights(), Inputs{CriticalIssues: 20})
	require.Equal(t, float64(0), score.IssueScore)
}

func TestCalculate_DurationEfficiencyCapsAt100(t *testing.T) {
	score := Calculate(DefaultWeights(), Inputs{
		DurationSecs:        50,
		OptimalDurationSecs: 600,
	})
	require.Equal(t, float64(100), score.DurationScore)
}

func TestCalculate_NoOptimalUsesTenMinuteBaseline(t *testing.T) {
	score := Calculate(DefaultWeights(), Inputs{DurationSecs: 600})
	require.InDelta(t, 100, score.DurationScore, 0.01)
}

func TestScoreToGrade_Thresholds(t *testing.T) {
	cases := []struct {
		score float64
		want  Grade
	}{
		{95, GradeExcellent},
		{80, GradeGood},
		{65, GradeFair},
		{45, GradePoor},
		{10, GradeCritical},
	}
	for _, c := range cases {
		require.Equal(t, c.want, scoreToGrade(c.score))
	}
}

func TestGrade_EmojiAndLabel(t *testing.T) {
	require.Equal(t, "Excellent", GradeExcellent.Label())
	require.NotEmpty(t, GradeExcellent.Emoji())
	require.Equal(t, "Critical", Grade("bogus").Label())
}

func TestBadge_ColorMatchesGrade(t *testing.T) {
	score := Score{TotalScore: 92, Grade: GradeExcellent}
	badge := Badge(score)
	require.Equal(t, "brightgreen", badge.Color)
	require.Contains(t, badge.Markdown, badge.ShieldsURL)
	require.Contains(t, badge.ShieldsURL, "shields.io")
}

func TestBadge_CriticalGradeIsRed(t *testing.T) {
	badge := Badge(Score{TotalScore: 12, Grade: GradeCritical})
	require.Equal(t, "red", badge.Color)
}
