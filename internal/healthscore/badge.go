package healthscore

import "fmt"

// BadgeInfo is a shields.io-compatible badge derived from a Score
// (SPEC_FULL.md §4.14, grounded on badge.rs).
type BadgeInfo struct {
	Score      float64
	Grade      Grade
	Color      string
	Markdown   string
	ShieldsURL string
}

var gradeColor = map[Grade]string{
	GradeExcellent: "brightgreen",
	GradeGood:      "green",
	GradeFair:      "yellow",
	GradePoor:      "orange",
	GradeCritical:  "red",
}

// Badge converts a Score into a renderable badge, reusing the same
// letter-grade thresholds as Calculate (grounded on
// badge.rs::generate_badge).
func Badge(score Score) BadgeInfo {
	color := gradeColor[score.Grade]
	label := fmt.Sprintf("pipelinex-%.0f%%25-%s", score.TotalScore, color)
	url := fmt.Sprintf("https://img.shields.io/badge/%s", label)
	markdown := fmt.Sprintf("![pipelinex](%s)", url)
	return BadgeInfo{
		Score:      score.TotalScore,
		Grade:      score.Grade,
		Color:      color,
		Markdown:   markdown,
		ShieldsURL: url,
	}
}
