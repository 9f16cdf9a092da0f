package score

import (
	"errors"
	"fmt"

	"progression/internal/metrics"
)

// ErrNotAfter is returned when a day is built on top of a carry that is not strictly older.
var ErrNotAfter = errors.New("day does not follow the previous entry")

// Entry is the immutable scoring record of one calendar day.
type Entry struct {
	Date     string  `json:"date" yaml:"date"`
	Active   bool    `json:"active" yaml:"active"`
	RawScore float64 `json:"raw_score" yaml:"raw_score"`
	// MomentumMult — multiplier in effect for this day; tomorrow's multiplier derives from it.
	MomentumMult float64 `json:"momentum_mult" yaml:"momentum_mult"`
	// BaseScore — RawScore × MomentumMult.
	BaseScore      float64 `json:"base_score" yaml:"base_score"`
	AscendingChain int     `json:"ascending_chain" yaml:"ascending_chain"`
	AscendingBonus float64 `json:"ascending_bonus" yaml:"ascending_bonus"`
	StreakDays     int     `json:"streak_days" yaml:"streak_days"`
	StreakBonus    float64 `json:"streak_bonus" yaml:"streak_bonus"`

	QualityBonus    float64 `json:"quality_bonus" yaml:"quality_bonus"`
	TypeDiversity   float64 `json:"type_diversity" yaml:"type_diversity"`
	HighValueRatio  float64 `json:"high_value_ratio" yaml:"high_value_ratio"`
	EfficiencyBonus float64 `json:"efficiency_bonus" yaml:"efficiency_bonus"`
	VelocityBonus   float64 `json:"velocity_bonus" yaml:"velocity_bonus"`
	ShipBonus       float64 `json:"ship_bonus" yaml:"ship_bonus"`

	TotalBonus float64 `json:"total_bonus" yaml:"total_bonus"`
	TotalMult  float64 `json:"total_mult" yaml:"total_mult"`
	V3XP       int64   `json:"v3_xp" yaml:"v3_xp"`
	V3Grade    Grade   `json:"v3_grade" yaml:"v3_grade"`
	V2Grade    Grade   `json:"v2_grade" yaml:"v2_grade"`

	// Inputs — the metrics the entry was computed from; backfill recomputes later days from them.
	Inputs metrics.DayMetrics `json:"inputs" yaml:"inputs"`
}

// Build computes the entry of m on top of prev, the carry of the ledger prefix that
// ends before m's date (nil for the first day). It returns the entry and the carry
// that includes it; prev itself is not modified.
//
// Order: momentum, base score, chain and streak, activity bonuses, totals, grades.
// Any failure returns no entry at all.
func Build(prev *Carry, m metrics.DayMetrics, p Params) (Entry, *Carry, error) {
	if err := m.Validate(); err != nil {
		return Entry{}, nil, err
	}
	day, _ := m.Day()

	momentum := p.MomentumBaseline
	gap := 0
	if prev != nil {
		gap = daysBetween(prev.Date, day)
		if gap <= 0 {
			return Entry{}, nil, fmt.Errorf("%w: %s after %s", ErrNotAfter, m.Date, prev.Date.Format(metrics.DateLayout))
		}
		momentum = carryMomentum(prev.Momentum, prev.Grade, gap, p)
	}

	raw := m.Raw()
	base := raw * momentum

	var progress Progress
	if prev != nil {
		progress = AdvanceProgress(&prev.Progress, prev.Base, gap == 1, base, m.IsActive())
	} else {
		progress = AdvanceProgress(nil, 0, false, base, m.IsActive())
	}

	bonuses := ComposeBonuses(m, prev.trailingAverage(), p)
	ascending := AscendingBonus(progress.Chain, p)
	streak := StreakBonus(progress.Streak, p)

	totalBonus := ascending + streak + bonuses.Sum()
	totalMult := 1 + totalBonus
	xp := ClampXP(base * totalMult)

	entry := Entry{
		Date:            m.Date,
		Active:          m.IsActive(),
		RawScore:        raw,
		MomentumMult:    momentum,
		BaseScore:       base,
		AscendingChain:  progress.Chain,
		AscendingBonus:  ascending,
		StreakDays:      progress.Streak,
		StreakBonus:     streak,
		QualityBonus:    bonuses.Quality,
		TypeDiversity:   bonuses.TypeDiversity,
		HighValueRatio:  bonuses.HighValueRatio,
		EfficiencyBonus: bonuses.Efficiency,
		VelocityBonus:   bonuses.Velocity,
		ShipBonus:       bonuses.Ship,
		TotalBonus:      totalBonus,
		TotalMult:       totalMult,
		V3XP:            xp,
		V3Grade:         GradeForXP(xp),
		V2Grade:         LegacyGrade(raw),
		Inputs:          m,
	}

	return entry, prev.advance(day, entry, p), nil
}
