// Package healthscore scores an analyzed pipeline 0-100 from a weighted
// blend of duration efficiency, success rate, parallelization, caching,
// and outstanding issue severity (SPEC_FULL.md §4.6, grounded on
// health_score.rs).
package healthscore

import "fmt"

// Weights are the caller-configurable component weights. They default to
// the values below but spec.md's Design Notes call out that health-score
// weighting is illustrative and should be exposed as configurable.
type Weights struct {
	DurationEfficiency float64
	SuccessRate        float64
	Parallelization    float64
	Caching            float64
	IssueSeverity      float64
}

// DefaultWeights matches health_score.rs's Default impl.
func DefaultWeights() Weights {
	return Weights{
		DurationEfficiency: 0.25,
		SuccessRate:        0.30,
		Parallelization:    0.20,
		Caching:            0.15,
		IssueSeverity:      0.10,
	}
}

type Grade string

const (
	GradeExcellent Grade = "excellent"
	GradeGood      Grade = "good"
	GradeFair      Grade = "fair"
	GradePoor      Grade = "poor"
	GradeCritical  Grade = "critical"
)

func (g Grade) Emoji() string {
	switch g {
	case GradeExcellent:
		return "🌟"
	case GradeGood:
		return "✅"
	case GradeFair:
		return "🟡"
	case GradePoor:
		return "🟠"
	default:
		return "🔴"
	}
}

func (g Grade) Label() string {
	switch g {
	case GradeExcellent:
		return "Excellent"
	case GradeGood:
		return "Good"
	case GradeFair:
		return "Fair"
	case GradePoor:
		return "Poor"
	default:
		return "Critical"
	}
}

// Score is the detailed health-score result.
type Score struct {
	TotalScore            float64
	DurationScore          float64
	SuccessRateScore       float64
	ParallelizationScore   float64
	CachingScore           float64
	IssueScore             float64
	Grade                  Grade
	Recommendations        []string
}

// Inputs are the metrics the score is derived from. DurationSecs and
// OptimalDurationSecs come from an analysis Report's critical-path and
// optimized-duration fields. SuccessRate and ParallelizationRatio have no
// execution-history source in this module (it never executes pipelines),
// so callers default them per SPEC_FULL.md §Open-question decisions:
// SuccessRate=1.0, ParallelizationRatio=MaxParallelism/JobCount.
type Inputs struct {
	DurationSecs          float64
	OptimalDurationSecs   float64
	SuccessRate           float64
	ParallelizationRatio  float64
	HasCaching            bool
	CriticalIssues        int
	HighIssues            int
	MediumIssues          int
}

// Calculate computes a Score from Inputs using weights (grounded on
// health_score.rs::HealthScoreCalculator::calculate).
func Calculate(weights Weights, in Inputs) Score {
	durationScore := durationEfficiency(in.DurationSecs, in.OptimalDurationSecs)
	successRateScore := in.SuccessRate * 100
	parallelizationScore := in.ParallelizationRatio * 100

	cachingScore := 0.0
	if in.HasCaching {
		cachingScore = 100
	}

	issueScore := 100.0 - float64(in.CriticalIssues)*15 - float64(in.HighIssues)*8 - float64(in.MediumIssues)*3
	if issueScore < 0 {
		issueScore = 0
	}

	total := durationScore*weights.DurationEfficiency +
		successRateScore*weights.SuccessRate +
		parallelizationScore*weights.Parallelization +
		cachingScore*weights.Caching +
		issueScore*weights.IssueSeverity

	grade := scoreToGrade(total)
	recs := generateRecommendations(successRateScore, durationScore, cachingScore, parallelizationScore, issueScore, in.CriticalIssues, in.HighIssues)

	return Score{
		TotalScore:           total,
		DurationScore:        durationScore,
		SuccessRateScore:     successRateScore,
		ParallelizationScore: parallelizationScore,
		CachingScore:         cachingScore,
		IssueScore:           issueScore,
		Grade:                grade,
		Recommendations:      recs,
	}
}

func durationEfficiency(actual, optimal float64) float64 {
	if actual <= 0 {
		actual = 1
	}
	baseline := optimal
	if baseline <= 0 {
		baseline = 600 // 10-minute baseline when no optimal projection exists
	}
	eff := baseline / actual * 100
	if eff > 100 {
		return 100
	}
	return eff
}

func scoreToGrade(score float64) Grade {
	s := int(score)
	switch {
	case s >= 90:
		return GradeExcellent
	case s >= 75:
		return GradeGood
	case s >= 60:
		return GradeFair
	case s >= 40:
		return GradePoor
	default:
		return GradeCritical
	}
}

func generateRecommendations(successRateScore, durationScore, cachingScore, parallelizationScore, issueScore float64, criticalIssues, highIssues int) []string {
	var recs []string

	if criticalIssues > 0 {
		recs = append(recs, fmt.Sprintf("🔴 Fix %d critical issues immediately - they have severe performance impact", criticalIssues))
	}
	if successRateScore < 90 {
		recs = append(recs, fmt.Sprintf("🔴 Improve success rate (currently %.1f%%) - investigate flaky tests and unstable jobs", successRateScore))
	}
	if highIssues > 0 && criticalIssues == 0 {
		recs = append(recs, fmt.Sprintf("🟠 Address %d high-priority issues for significant improvements", highIssues))
	}
	if durationScore < 60 {
		recs = append(recs, "🟠 Pipeline duration is suboptimal - consider parallelization and caching")
	}
	if cachingScore < 50 {
		recs = append(recs, "🟡 Add caching for dependencies to reduce build times")
	}
	if parallelizationScore < 50 {
		recs = append(recs, "🟡 Increase parallelization - many jobs could run concurrently")
	}
	if issueScore < 80 && len(recs) == 0 {
		recs = append(recs, "💡 Run the optimize command to generate an improved configuration")
	}
	if len(recs) == 0 {
		recs = append(recs, "✅ Pipeline is well-optimized! Keep monitoring for regressions.")
	}
	return recs
}
