package score

import (
	"errors"
	"fmt"
)

// Params holds every tunable constant of the scoring formulas.
// The shape of the algorithm is fixed; the numbers are policy and come from configuration.
type Params struct {
	// AscendingStep — bonus per chain day beyond the first.
	AscendingStep float64 `mapstructure:"ascending_step" yaml:"ascending_step"`
	// AscendingCap — maximal ascending bonus.
	AscendingCap float64 `mapstructure:"ascending_cap" yaml:"ascending_cap"`
	// StreakStep — bonus per streak day beyond the first.
	StreakStep float64 `mapstructure:"streak_step" yaml:"streak_step"`
	// StreakCap — maximal streak bonus.
	StreakCap float64 `mapstructure:"streak_cap" yaml:"streak_cap"`

	// MomentumBaseline — multiplier of a day without carried momentum.
	MomentumBaseline float64 `mapstructure:"momentum_baseline" yaml:"momentum_baseline"`
	// MomentumUp — factor applied after a strong day.
	MomentumUp float64 `mapstructure:"momentum_up" yaml:"momentum_up"`
	// MomentumCeiling — upper bound of the multiplier.
	MomentumCeiling float64 `mapstructure:"momentum_ceiling" yaml:"momentum_ceiling"`
	// MomentumDown — factor applied after a weak day.
	MomentumDown float64 `mapstructure:"momentum_down" yaml:"momentum_down"`
	// StrongGrade — lowest grade that raises momentum.
	StrongGrade Grade `mapstructure:"strong_grade" yaml:"strong_grade"`
	// WeakGrade — highest grade that decays momentum.
	WeakGrade Grade `mapstructure:"weak_grade" yaml:"weak_grade"`

	// DiversityTypes — number of distinct accomplishment types that saturates diversity.
	DiversityTypes int `mapstructure:"diversity_types" yaml:"diversity_types"`
	// DiversityWeight — quality bonus contributed by full diversity.
	DiversityWeight float64 `mapstructure:"diversity_weight" yaml:"diversity_weight"`
	// HighValueWeight — quality bonus contributed by an all-high-value day.
	HighValueWeight float64 `mapstructure:"high_value_weight" yaml:"high_value_weight"`
	// QualityCap — maximal quality bonus.
	QualityCap float64 `mapstructure:"quality_cap" yaml:"quality_cap"`

	// EfficiencyCap — maximal efficiency bonus.
	EfficiencyCap float64 `mapstructure:"efficiency_cap" yaml:"efficiency_cap"`
	// EfficiencyScale — output per unit of cost at which the curve reaches ~63% of the cap.
	EfficiencyScale float64 `mapstructure:"efficiency_scale" yaml:"efficiency_scale"`
	// EfficiencyMinCost — costs at or below this are treated as unmeasured.
	EfficiencyMinCost float64 `mapstructure:"efficiency_min_cost" yaml:"efficiency_min_cost"`

	// VelocityWindow — number of prior days in the trailing average.
	VelocityWindow int `mapstructure:"velocity_window" yaml:"velocity_window"`
	// VelocityGain — bonus per 100% of acceleration over the trailing average.
	VelocityGain float64 `mapstructure:"velocity_gain" yaml:"velocity_gain"`
	// VelocityCap — maximal velocity bonus.
	VelocityCap float64 `mapstructure:"velocity_cap" yaml:"velocity_cap"`

	// ShipCap — ship bonus of a day that finalized everything it drafted.
	ShipCap float64 `mapstructure:"ship_cap" yaml:"ship_cap"`
}

// DefaultParams returns the reference tuning.
func DefaultParams() Params {
	return Params{
		AscendingStep: 0.05,
		AscendingCap:  0.50,
		StreakStep:    0.02,
		StreakCap:     0.30,

		MomentumBaseline: 1.0,
		MomentumUp:       1.05,
		MomentumCeiling:  1.5,
		MomentumDown:     0.9,
		StrongGrade:      GradeAPlus,
		WeakGrade:        GradeB,

		DiversityTypes:  8,
		DiversityWeight: 0.15,
		HighValueWeight: 0.10,
		QualityCap:      0.25,

		EfficiencyCap:     0.15,
		EfficiencyScale:   80,
		EfficiencyMinCost: 0.01,

		VelocityWindow: 7,
		VelocityGain:   0.10,
		VelocityCap:    0.10,

		ShipCap: 0.10,
	}
}

// Validate checks that the tuning keeps every bonus non-negative and momentum bounded.
func (p Params) Validate() error {
	nonNegative := []struct {
		name  string
		value float64
	}{
		{"ascending_step", p.AscendingStep},
		{"ascending_cap", p.AscendingCap},
		{"streak_step", p.StreakStep},
		{"streak_cap", p.StreakCap},
		{"diversity_weight", p.DiversityWeight},
		{"high_value_weight", p.HighValueWeight},
		{"quality_cap", p.QualityCap},
		{"efficiency_cap", p.EfficiencyCap},
		{"efficiency_min_cost", p.EfficiencyMinCost},
		{"velocity_gain", p.VelocityGain},
		{"velocity_cap", p.VelocityCap},
		{"ship_cap", p.ShipCap},
	}
	for _, v := range nonNegative {
		if v.value < 0 {
			return fmt.Errorf("scoring.%s: must be non-negative, got %v", v.name, v.value)
		}
	}

	if p.MomentumBaseline <= 0 {
		return errors.New("scoring.momentum_baseline: must be positive")
	}
	if p.MomentumCeiling < p.MomentumBaseline {
		return errors.New("scoring.momentum_ceiling: must not be below momentum_baseline")
	}
	if p.MomentumUp < 1 {
		return errors.New("scoring.momentum_up: must be at least 1")
	}
	if p.MomentumDown <= 0 || p.MomentumDown > 1 {
		return errors.New("scoring.momentum_down: must be within (0, 1]")
	}
	if !p.StrongGrade.Valid() || !p.WeakGrade.Valid() {
		return fmt.Errorf("scoring: unknown grade in strong_grade %q / weak_grade %q", p.StrongGrade, p.WeakGrade)
	}
	if p.WeakGrade.AtLeast(p.StrongGrade) {
		return errors.New("scoring.weak_grade: must rank below strong_grade")
	}
	if p.DiversityTypes <= 0 {
		return errors.New("scoring.diversity_types: must be positive")
	}
	if p.EfficiencyScale <= 0 {
		return errors.New("scoring.efficiency_scale: must be positive")
	}
	if p.VelocityWindow <= 0 {
		return errors.New("scoring.velocity_window: must be positive")
	}

	return nil
}
