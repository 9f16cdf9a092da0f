package milestone

import (
	"github.com/google/cel-go/cel"

	"progression/internal/metrics"
	"progression/internal/score"
)

// efficientDay is the efficiency bonus above which a day extends the efficient run.
const efficientDay = 0.10

// Facts are the running totals of a ledger prefix exposed to milestone conditions.
type Facts struct {
	XPTotal             int64
	Days                int64
	LongestChain        int64
	LongestStreak       int64
	CurrentStreak       int64
	TotalFinalized      int64
	TotalWords          int64
	TotalCommits        int64
	MaxCommits          int64
	MaxQualityBonus     float64
	EfficientRun        int64
	LongestEfficientRun int64
	SPlusDays           int64
	SDays               int64
	PolymathDays        int64
}

// NewEnv declares every fact as a CEL variable.
func NewEnv() (*cel.Env, error) {
	return cel.NewEnv(
		cel.Variable("xp_total", cel.IntType),
		cel.Variable("days", cel.IntType),
		cel.Variable("longest_chain", cel.IntType),
		cel.Variable("longest_streak", cel.IntType),
		cel.Variable("current_streak", cel.IntType),
		cel.Variable("total_finalized", cel.IntType),
		cel.Variable("total_words", cel.IntType),
		cel.Variable("total_commits", cel.IntType),
		cel.Variable("max_commits", cel.IntType),
		cel.Variable("max_quality_bonus", cel.DoubleType),
		cel.Variable("efficient_run", cel.IntType),
		cel.Variable("longest_efficient_run", cel.IntType),
		cel.Variable("s_plus_days", cel.IntType),
		cel.Variable("s_days", cel.IntType),
		cel.Variable("polymath_days", cel.IntType),
	)
}

// Activation returns the CEL variable bindings of f.
func (f Facts) Activation() map[string]any {
	return map[string]any{
		"xp_total":              f.XPTotal,
		"days":                  f.Days,
		"longest_chain":         f.LongestChain,
		"longest_streak":        f.LongestStreak,
		"current_streak":        f.CurrentStreak,
		"total_finalized":       f.TotalFinalized,
		"total_words":           f.TotalWords,
		"total_commits":         f.TotalCommits,
		"max_commits":           f.MaxCommits,
		"max_quality_bonus":     f.MaxQualityBonus,
		"efficient_run":         f.EfficientRun,
		"longest_efficient_run": f.LongestEfficientRun,
		"s_plus_days":           f.SPlusDays,
		"s_days":                f.SDays,
		"polymath_days":         f.PolymathDays,
	}
}

// Add folds one more ledger entry into the facts.
func (f Facts) Add(e score.Entry) Facts {
	f.XPTotal += e.V3XP
	f.Days++
	f.LongestChain = max(f.LongestChain, int64(e.AscendingChain))
	f.LongestStreak = max(f.LongestStreak, int64(e.StreakDays))
	f.CurrentStreak = int64(e.StreakDays)
	f.TotalFinalized += int64(e.Inputs.Finalized)
	f.TotalWords += int64(e.Inputs.Words)
	f.TotalCommits += int64(e.Inputs.Commits)
	f.MaxCommits = max(f.MaxCommits, int64(e.Inputs.Commits))
	f.MaxQualityBonus = max(f.MaxQualityBonus, e.QualityBonus)

	if e.EfficiencyBonus > efficientDay {
		f.EfficientRun++
	} else {
		f.EfficientRun = 0
	}
	f.LongestEfficientRun = max(f.LongestEfficientRun, f.EfficientRun)

	switch e.V3Grade {
	case score.GradeSPlus:
		f.SPlusDays++
		f.SDays++
	case score.GradeS:
		f.SDays++
	}
	if len(e.Inputs.DayCategories()) == len(metrics.Categories) {
		f.PolymathDays++
	}
	return f
}
